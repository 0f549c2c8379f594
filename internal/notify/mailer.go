package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Carlosrossos/dlh-backend/internal/config"
)

// Mailer sends transactional email through a Brevo-style HTTP API.
// With no API key configured every send is a no-op that reports success,
// which keeps development and tests quiet.
type Mailer struct {
	apiURL      string
	apiKey      string
	fromAddress string
	fromName    string
	frontendURL string
	client      *http.Client
}

func NewMailer(cfg config.Config) *Mailer {
	return &Mailer{
		apiURL:      cfg.EmailAPIURL,
		apiKey:      cfg.EmailAPIKey,
		fromAddress: cfg.EmailFromAddress,
		fromName:    cfg.EmailFromName,
		frontendURL: cfg.FrontendURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type emailRequest struct {
	Sender      emailAddress   `json:"sender"`
	To          []emailAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type emailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func (m *Mailer) SendModificationApprovedEmail(ctx context.Context, email, name, modType, poiName string) bool {
	subject := "✅ Votre contribution a été approuvée - Dormir Là-Haut"
	body := fmt.Sprintf("<p>Bonjour %s,</p><p>Votre contribution (%s%s) a été approuvée par un administrateur. Elle est maintenant visible sur le site.</p><p>Merci de faire vivre Dormir Là-Haut !</p>",
		name, typeLabel(modType), forPOI(poiName))
	return m.send(ctx, email, subject, body)
}

func (m *Mailer) SendModificationRejectedEmail(ctx context.Context, email, name, modType, reason, poiName string) bool {
	subject := "❌ Votre contribution n'a pas été retenue - Dormir Là-Haut"
	body := fmt.Sprintf("<p>Bonjour %s,</p><p>Votre contribution (%s%s) n'a pas été retenue.</p><p>Motif : %s</p><p>Vous pouvez soumettre une nouvelle proposition à tout moment.</p>",
		name, typeLabel(modType), forPOI(poiName), reason)
	return m.send(ctx, email, subject, body)
}

func (m *Mailer) SendPasswordResetEmail(ctx context.Context, email, resetToken, userName string) bool {
	resetURL := m.frontendURL + "/reset-password/" + resetToken
	subject := "🔐 Réinitialisation de votre mot de passe - Dormir Là-Haut"
	body := fmt.Sprintf("<p>Bonjour %s,</p><p>Cliquez sur ce lien pour créer un nouveau mot de passe :</p><p><a href=%q>%s</a></p><p>Ce lien expire dans 1 heure.</p>",
		userName, resetURL, resetURL)
	return m.send(ctx, email, subject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) bool {
	if m.apiKey == "" {
		return true
	}

	payload, err := json.Marshal(emailRequest{
		Sender:      emailAddress{Name: m.fromName, Email: m.fromAddress},
		To:          []emailAddress{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		log.Printf("mailer: marshal payload: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("mailer: build request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		log.Printf("mailer: send to %s: %v", to, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("mailer: API returned %s for %s", resp.Status, to)
		return false
	}
	return true
}

func typeLabel(modType string) string {
	switch modType {
	case "new_poi":
		return "nouveau lieu"
	case "comment":
		return "commentaire"
	case "photo":
		return "photo"
	case "edit_poi":
		return "modification de lieu"
	}
	return modType
}

func forPOI(poiName string) string {
	if poiName == "" {
		return ""
	}
	return " pour " + poiName
}

package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Carlosrossos/dlh-backend/internal/db"
	"github.com/Carlosrossos/dlh-backend/internal/poi"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound         = errors.New("modification not found")
	ErrAlreadyProcessed = errors.New("modification already processed")
	ErrValidation       = errors.New("invalid input")
)

// POIStore is the slice of the POI store the moderation engine writes into
// when a contribution is approved.
type POIStore interface {
	Insert(ctx context.Context, p poi.POI) (poi.POI, error)
	Name(ctx context.Context, poiID string) (string, error)
	AppendComment(ctx context.Context, poiID string, c poi.Comment) error
	AppendPhoto(ctx context.Context, poiID, url string) error
	ApplyPatch(ctx context.Context, poiID string, changes map[string]any) error
	DeleteComment(ctx context.Context, poiID, commentID string) (poi.Comment, error)
}

// Notifier is fire-and-forget: the decision is durable before any call here,
// and a failed delivery never rolls it back.
type Notifier interface {
	ModificationApproved(ctx context.Context, email, name, modType, poiName string)
	ModificationRejected(ctx context.Context, email, name, modType, reason, poiName string)
}

type Service struct {
	db       db.Querier
	pois     POIStore
	notifier Notifier
}

func NewService(db db.Querier, pois POIStore, notifier Notifier) *Service {
	return &Service{db: db, pois: pois, notifier: notifier}
}

const modColumns = `id, type, user_id, poi_id, data, status, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at`

// Approve flips a pending record to approved and materializes its payload
// into the POI store. The conditional update is the gate: it only matches
// while status is pending, so of two concurrent approvals exactly one
// materializes and the other reports ErrAlreadyProcessed.
func (s *Service) Approve(ctx context.Context, id, reviewerID string, selectedFields []string) (PendingModification, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE pending_modifications
		SET status='approved', reviewed_by=$2, reviewed_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='pending'
		RETURNING `+modColumns+`
	`, id, reviewerID)
	mod, err := scanModification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingModification{}, s.transitionFailure(ctx, id)
		}
		return PendingModification{}, err
	}

	if err := s.materialize(ctx, mod, selectedFields); err != nil {
		return mod, err
	}

	s.notifyOutcome(ctx, mod)
	return mod, nil
}

func (s *Service) Reject(ctx context.Context, id, reviewerID, reason string) (PendingModification, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}
	if len(reason) > maxRejectionReasonLen {
		return PendingModification{}, fmt.Errorf("%w: rejection reason exceeds %d characters", ErrValidation, maxRejectionReasonLen)
	}

	row := s.db.QueryRow(ctx, `
		UPDATE pending_modifications
		SET status='rejected', reviewed_by=$2, reviewed_at=NOW(), rejection_reason=$3, updated_at=NOW()
		WHERE id=$1 AND status='pending'
		RETURNING `+modColumns+`
	`, id, reviewerID, reason)
	mod, err := scanModification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingModification{}, s.transitionFailure(ctx, id)
		}
		return PendingModification{}, err
	}

	s.notifyOutcome(ctx, mod)
	return mod, nil
}

// transitionFailure tells a missing record apart from one already reviewed.
func (s *Service) transitionFailure(ctx context.Context, id string) error {
	var status string
	row := s.db.QueryRow(ctx, `SELECT status FROM pending_modifications WHERE id=$1`, id)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyProcessed
}

// materialize applies an approved payload onto the POI store. A target POI
// deleted between submission and review is skipped, not an error: the
// approval stands even when it has no effect.
func (s *Service) materialize(ctx context.Context, mod PendingModification, selectedFields []string) error {
	switch mod.Type {
	case TypeNewPOI:
		var payload NewPOIPayload
		if err := json.Unmarshal(mod.Data, &payload); err != nil {
			return err
		}
		_, err := s.pois.Insert(ctx, poi.POI{
			Name:          payload.Name,
			Category:      payload.Category,
			Massif:        payload.Massif,
			Coordinates:   payload.Coordinates,
			Description:   payload.Description,
			Altitude:      payload.Altitude,
			SunExposition: payload.SunExposition,
			Photos:        payload.Photos,
			CreatedBy:     mod.UserID,
			Status:        poi.StatusApproved,
		})
		return err

	case TypeComment:
		var payload CommentPayload
		if err := json.Unmarshal(mod.Data, &payload); err != nil {
			return err
		}
		if gone, err := s.targetGone(ctx, mod); gone || err != nil {
			return err
		}
		author := payload.Author
		if author == "" {
			author = fallbackCommentAuthor
		}
		return s.pois.AppendComment(ctx, mod.POIID, poi.Comment{
			ID:     uuid.NewString(),
			Author: author,
			UserID: mod.UserID,
			Text:   payload.Text,
			Date:   time.Now(),
		})

	case TypePhoto:
		var payload PhotoPayload
		if err := json.Unmarshal(mod.Data, &payload); err != nil {
			return err
		}
		if gone, err := s.targetGone(ctx, mod); gone || err != nil {
			return err
		}
		return s.pois.AppendPhoto(ctx, mod.POIID, payload.PhotoURL)

	case TypeEditPOI:
		var payload EditPayload
		if err := json.Unmarshal(mod.Data, &payload); err != nil {
			return err
		}
		changes := map[string]any(payload)
		if len(selectedFields) > 0 {
			filtered := map[string]any{}
			for _, field := range selectedFields {
				if value, ok := payload[field]; ok {
					filtered[field] = value
				}
			}
			changes = filtered
		}
		if len(changes) == 0 {
			return nil
		}
		if err := s.pois.ApplyPatch(ctx, mod.POIID, changes); err != nil {
			if errors.Is(err, poi.ErrNotFound) {
				log.Printf("moderation: poi %s gone, edit %s approved without effect", mod.POIID, mod.ID)
				return nil
			}
			return err
		}
		return nil
	}
	return nil
}

func (s *Service) targetGone(ctx context.Context, mod PendingModification) (bool, error) {
	_, err := s.pois.Name(ctx, mod.POIID)
	if err != nil {
		if errors.Is(err, poi.ErrNotFound) {
			log.Printf("moderation: poi %s gone, %s %s approved without effect", mod.POIID, mod.Type, mod.ID)
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (s *Service) notifyOutcome(ctx context.Context, mod PendingModification) {
	if s.notifier == nil {
		return
	}

	var email, name string
	row := s.db.QueryRow(ctx, `SELECT email, name FROM users WHERE id=$1`, mod.UserID)
	if err := row.Scan(&email, &name); err != nil {
		log.Printf("moderation: contributor lookup failed for %s: %v", mod.UserID, err)
		return
	}

	poiName := ""
	if mod.POIID != "" {
		if n, err := s.pois.Name(ctx, mod.POIID); err == nil {
			poiName = n
		}
	}

	switch mod.Status {
	case StatusApproved:
		s.notifier.ModificationApproved(ctx, email, name, mod.Type, poiName)
	case StatusRejected:
		s.notifier.ModificationRejected(ctx, email, name, mod.Type, mod.RejectionReason, poiName)
	}
}

// Pending lists modifications for the dashboard, newest first. Status
// defaults to pending; type narrows the list when set.
func (s *Service) Pending(ctx context.Context, modType, status string) ([]PendingModification, error) {
	if status == "" {
		status = StatusPending
	}

	query := `SELECT ` + modColumns + ` FROM pending_modifications WHERE status=$1`
	args := []any{status}
	if modType != "" {
		query += ` AND type=$2`
		args = append(args, modType)
	}
	query += ` ORDER BY created_at DESC`

	return s.queryModifications(ctx, query, args...)
}

func (s *Service) UserContributions(ctx context.Context, userID string) ([]PendingModification, error) {
	return s.queryModifications(ctx, `
		SELECT `+modColumns+`
		FROM pending_modifications
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByType: map[string]int{}}

	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM pending_modifications GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusApproved:
			stats.Approved = count
		case StatusRejected:
			stats.Rejected = count
		}
	}
	rows.Close()
	stats.Total = stats.Pending + stats.Approved + stats.Rejected

	rows, err = s.db.Query(ctx, `SELECT type, COUNT(*) FROM pending_modifications WHERE status='pending' GROUP BY type`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var modType string
		var count int
		if err := rows.Scan(&modType, &count); err != nil {
			return Stats{}, err
		}
		stats.ByType[modType] = count
	}
	return stats, nil
}

// DeleteComment is a direct store mutation sharing the admin boundary, not a
// queue transition.
func (s *Service) DeleteComment(ctx context.Context, poiID, commentID string) (poi.Comment, error) {
	return s.pois.DeleteComment(ctx, poiID, commentID)
}

func (s *Service) SubmitNewPOI(ctx context.Context, userID string, payload NewPOIPayload) (PendingModification, error) {
	if err := validateNewPOI(payload); err != nil {
		return PendingModification{}, err
	}
	return s.create(ctx, TypeNewPOI, userID, "", payload)
}

func (s *Service) SubmitComment(ctx context.Context, userID, poiID, author, text string) (PendingModification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return PendingModification{}, fmt.Errorf("%w: comment cannot be empty", ErrValidation)
	}
	if len(text) > maxCommentLen {
		return PendingModification{}, fmt.Errorf("%w: comment exceeds %d characters", ErrValidation, maxCommentLen)
	}
	return s.create(ctx, TypeComment, userID, poiID, CommentPayload{Author: author, Text: text})
}

func (s *Service) SubmitPhoto(ctx context.Context, userID, poiID, photoURL string) (PendingModification, error) {
	if strings.TrimSpace(photoURL) == "" {
		return PendingModification{}, fmt.Errorf("%w: photo url required", ErrValidation)
	}
	return s.create(ctx, TypePhoto, userID, poiID, PhotoPayload{PhotoURL: photoURL})
}

func (s *Service) SubmitEdit(ctx context.Context, userID, poiID string, changes map[string]any) (PendingModification, error) {
	if len(changes) == 0 {
		return PendingModification{}, fmt.Errorf("%w: no changes provided", ErrValidation)
	}
	for field, value := range changes {
		if !contains(EditableFields, field) {
			return PendingModification{}, fmt.Errorf("%w: field %q cannot be edited", ErrValidation, field)
		}
		switch field {
		case "altitude":
			altitude, ok := asInt(value)
			if !ok || altitude < 0 || altitude > 9000 {
				return PendingModification{}, fmt.Errorf("%w: altitude must be between 0 and 9000", ErrValidation)
			}
			changes[field] = altitude
		case "sunExposition":
			expo, ok := value.(string)
			if !ok || !poi.ValidSunExposition(expo) {
				return PendingModification{}, fmt.Errorf("%w: invalid sun exposition", ErrValidation)
			}
		}
	}
	return s.create(ctx, TypeEditPOI, userID, poiID, EditPayload(changes))
}

func (s *Service) create(ctx context.Context, modType, userID, poiID string, data any) (PendingModification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PendingModification{}, err
	}

	mod := PendingModification{
		ID:     uuid.NewString(),
		Type:   modType,
		UserID: userID,
		POIID:  poiID,
		Data:   raw,
		Status: StatusPending,
	}

	var poiArg any
	if poiID != "" {
		poiArg = poiID
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO pending_modifications (id, type, user_id, poi_id, data, status)
		VALUES ($1,$2,$3,$4,$5,'pending')
		RETURNING created_at, updated_at
	`, mod.ID, mod.Type, mod.UserID, poiArg, raw)
	if err := row.Scan(&mod.CreatedAt, &mod.UpdatedAt); err != nil {
		return PendingModification{}, err
	}
	return mod, nil
}

func (s *Service) queryModifications(ctx context.Context, query string, args ...any) ([]PendingModification, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []PendingModification
	for rows.Next() {
		mod, err := scanModification(rows)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func scanModification(row pgx.Row) (PendingModification, error) {
	var mod PendingModification
	var poiID, reviewedBy, reason *string
	var reviewedAt *time.Time
	var data []byte

	err := row.Scan(&mod.ID, &mod.Type, &mod.UserID, &poiID, &data, &mod.Status,
		&reviewedBy, &reviewedAt, &reason, &mod.CreatedAt, &mod.UpdatedAt)
	if err != nil {
		return PendingModification{}, err
	}

	mod.Data = json.RawMessage(data)
	if poiID != nil {
		mod.POIID = *poiID
	}
	if reviewedBy != nil {
		mod.ReviewedBy = *reviewedBy
	}
	if reason != nil {
		mod.RejectionReason = *reason
	}
	mod.ReviewedAt = reviewedAt
	return mod, nil
}

func validateNewPOI(payload NewPOIPayload) error {
	name := strings.TrimSpace(payload.Name)
	if len(name) < 3 || len(name) > 100 {
		return fmt.Errorf("%w: name must be 3-100 characters", ErrValidation)
	}
	if !poi.ValidCategory(payload.Category) {
		return fmt.Errorf("%w: invalid category", ErrValidation)
	}
	if !poi.ValidMassif(payload.Massif) {
		return fmt.Errorf("%w: invalid massif", ErrValidation)
	}
	if payload.Coordinates.Lat < -90 || payload.Coordinates.Lat > 90 {
		return fmt.Errorf("%w: latitude out of range", ErrValidation)
	}
	if payload.Coordinates.Lng < -180 || payload.Coordinates.Lng > 180 {
		return fmt.Errorf("%w: longitude out of range", ErrValidation)
	}
	if len(payload.Description) < 10 || len(payload.Description) > 2000 {
		return fmt.Errorf("%w: description must be 10-2000 characters", ErrValidation)
	}
	if payload.Altitude < 0 || payload.Altitude > 9000 {
		return fmt.Errorf("%w: altitude must be between 0 and 9000", ErrValidation)
	}
	if payload.SunExposition != "" && !poi.ValidSunExposition(payload.SunExposition) {
		return fmt.Errorf("%w: invalid sun exposition", ErrValidation)
	}
	if len(payload.Photos) > poi.MaxPhotos {
		return fmt.Errorf("%w: maximum %d photos", ErrValidation, poi.MaxPhotos)
	}
	return nil
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

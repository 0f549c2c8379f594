package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

func authApp(mock pgxmock.PgxPoolIface, mailer ResetMailer) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/auth"), NewService("secret", mock, mailer))
	return app
}

func TestRegisterHandler(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "ana@example.com", "Ana", pgxmock.AnyArg(), RoleUser).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := authApp(mock, nil)

	body, _ := json.Marshal(RegisterRequest{Email: "ana@example.com", Name: "Ana", Password: "motdepasse"})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: %v", err)
	}

	var out struct {
		User   User          `json:"user"`
		Tokens TokenResponse `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.User.Email != "ana@example.com" || out.Tokens.AccessToken == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestRegisterHandlerBadPayload(t *testing.T) {
	app := authApp(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

func TestLoginHandler(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	now := time.Now()
	hash, _ := bcrypt.GenerateFromPassword([]byte("motdepasse"), bcrypt.DefaultCost)
	mock.ExpectQuery(`SELECT id, email, name, password_hash, role, created_at, updated_at`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}).
			AddRow("user-1", "ana@example.com", "Ana", string(hash), RoleUser, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := authApp(mock, nil)

	body, _ := json.Marshal(LoginRequest{Email: "ana@example.com", Password: "motdepasse"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %v", err)
	}
}

func TestLoginHandlerMissingFields(t *testing.T) {
	app := authApp(nil, nil)

	body, _ := json.Marshal(LoginRequest{Email: "ana@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, name, password_hash, role, created_at, updated_at`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}))

	app := authApp(mock, nil)

	body, _ := json.Marshal(LoginRequest{Email: "ana@example.com", Password: "faux"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}

func TestRefreshHandler(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	svc := NewService("secret", mock, nil)
	token, err := svc.signToken("user-1", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(time.Hour)))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/auth"), svc)

	body, _ := json.Marshal(RefreshRequest{RefreshToken: token})
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %v", err)
	}
}

func TestRefreshHandlerInvalidToken(t *testing.T) {
	app := authApp(nil, nil)

	body, _ := json.Marshal(RefreshRequest{RefreshToken: "pas-un-jwt"})
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}

func TestForgotPasswordHandlerSameResponse(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM users`).
		WithArgs("inconnu@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	app := authApp(mock, &fakeResetMailer{})

	body, _ := json.Marshal(ForgotPasswordRequest{Email: "inconnu@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown email must return ok: %v", err)
	}
}

func TestResetPasswordHandler(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs("token-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(time.Hour)))
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs("user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE reset_tokens SET used_at`).
		WithArgs("token-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := authApp(mock, nil)

	body, _ := json.Marshal(ResetPasswordRequest{Token: "token-1", Password: "nouveaumdp"})
	req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status: %v", err)
	}
}

func TestResetPasswordHandlerMissingToken(t *testing.T) {
	app := authApp(nil, nil)

	body, _ := json.Marshal(ResetPasswordRequest{Password: "nouveaumdp"})
	req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

var errAuth = errors.New("auth error")

type fakeResetMailer struct {
	emails []string
	tokens []string
}

func (f *fakeResetMailer) SendPasswordResetEmail(_ context.Context, email, resetToken, _ string) bool {
	f.emails = append(f.emails, email)
	f.tokens = append(f.tokens, resetToken)
	return true
}

func newAuthMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	return mock
}

func TestRegisterAndLogin(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "ana@example.com", "Ana", pgxmock.AnyArg(), RoleUser).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("secret", mock, nil)
	user, tokens, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ana@example.com",
		Name:     "Ana",
		Password: "motdepasse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleUser || user.ID == "" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.TokenType != "Bearer" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("motdepasse"), bcrypt.DefaultCost)
	mock.ExpectQuery(`SELECT id, email, name, password_hash, role, created_at, updated_at`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(user.ID, user.Email, user.Name, string(hash), RoleUser, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	loggedIn, _, err := svc.Login(context.Background(), LoginRequest{Email: "ana@example.com", Password: "motdepasse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("unexpected user on login")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc := NewService("secret", nil, nil)
	if _, _, err := svc.Register(context.Background(), RegisterRequest{Email: "ana@example.com"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	now := time.Now()
	hash, _ := bcrypt.GenerateFromPassword([]byte("motdepasse"), bcrypt.DefaultCost)
	mock.ExpectQuery(`SELECT id, email, name, password_hash, role, created_at, updated_at`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}).
			AddRow("user-1", "ana@example.com", "Ana", string(hash), RoleUser, now, now))

	svc := NewService("secret", mock, nil)
	if _, _, err := svc.Login(context.Background(), LoginRequest{Email: "ana@example.com", Password: "faux"}); err == nil {
		t.Fatalf("expected invalid credentials")
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, name, password_hash, role, created_at, updated_at`).
		WithArgs("inconnu@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}))

	svc := NewService("secret", mock, nil)
	if _, _, err := svc.Login(context.Background(), LoginRequest{Email: "inconnu@example.com", Password: "x"}); err == nil {
		t.Fatalf("expected invalid credentials")
	}
}

func TestValidateRefreshToken(t *testing.T) {
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

	claims, err := svc.ValidateRefreshToken(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != RoleUser {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRefreshTokenRevoked(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	svc := NewService("secret", mock, nil)
	token, _ := svc.signToken("user-1", RoleUser, time.Hour)

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}))

	if _, err := svc.ValidateRefreshToken(context.Background(), token); err == nil {
		t.Fatalf("expected invalid refresh token")
	}
}

func TestValidateRefreshTokenExpiredRecord(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	svc := NewService("secret", mock, nil)
	token, _ := svc.signToken("user-1", RoleUser, time.Hour)

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(-time.Minute)))

	if _, err := svc.ValidateRefreshToken(context.Background(), token); err == nil {
		t.Fatalf("expected expired refresh token")
	}
}

func TestValidateRefreshTokenBadSignature(t *testing.T) {
	other := NewService("autre", nil, nil)
	token, _ := other.signToken("user-1", RoleUser, time.Hour)

	svc := NewService("secret", nil, nil)
	if _, err := svc.ValidateRefreshToken(context.Background(), token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestRequestPasswordReset(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM users`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow("user-1", "Ana"))
	mock.ExpectExec(`INSERT INTO reset_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mailer := &fakeResetMailer{}
	svc := NewService("secret", mock, mailer)
	if err := svc.RequestPasswordReset(context.Background(), "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(mailer.emails) != 1 || mailer.emails[0] != "ana@example.com" {
		t.Fatalf("expected reset mail sent")
	}
	if len(mailer.tokens) != 1 || mailer.tokens[0] == "" {
		t.Fatalf("expected reset token in mail")
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM users`).
		WithArgs("inconnu@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	mailer := &fakeResetMailer{}
	svc := NewService("secret", mock, mailer)
	if err := svc.RequestPasswordReset(context.Background(), "inconnu@example.com"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if len(mailer.emails) != 0 {
		t.Fatalf("no mail for unknown email")
	}
}

func TestResetPassword(t *testing.T) {
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

	svc := NewService("secret", mock, nil)
	if err := svc.ResetPassword(context.Background(), "token-1", "nouveaumdp"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetPasswordShort(t *testing.T) {
	svc := NewService("secret", nil, nil)
	if err := svc.ResetPassword(context.Background(), "token-1", "court"); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs("token-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(-time.Minute)))

	svc := NewService("secret", mock, nil)
	if err := svc.ResetPassword(context.Background(), "token-1", "nouveaumdp"); err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestResetPasswordUnknownToken(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs("inconnu").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}))

	svc := NewService("secret", mock, nil)
	if err := svc.ResetPassword(context.Background(), "inconnu", "nouveaumdp"); err == nil {
		t.Fatalf("expected invalid token error")
	}
}

func TestGenerateTokensSaveError(t *testing.T) {
	mock := newAuthMock(t)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errAuth)

	svc := NewService("secret", mock, nil)
	if _, err := svc.GenerateTokens(context.Background(), "user-1", RoleUser); err == nil {
		t.Fatalf("expected save error")
	}
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sakif/devtoolbox/internal/apperror"
	"github.com/sakif/devtoolbox/internal/auth"
	"github.com/sakif/devtoolbox/internal/kv"
	"github.com/sakif/devtoolbox/internal/repository/kvrepo"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	return NewAuthService(
		kvrepo.NewUserRepo(kv.NewMemory(), logger),
		tokens,
		auth.NewPasswordServiceForTest(4),
		logger,
	)
}

func TestCreateAccount(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, "dev@example.com", "hunter2hunter2", "Dev")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if user.ID == "" {
		t.Error("CreateAccount() did not set an ID")
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in plaintext")
	}
}

func TestCreateAccount_DefaultsName(t *testing.T) {
	svc := newTestAuthService(t)

	user, err := svc.CreateAccount(context.Background(), "dev@example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if user.Name != "Developer" {
		t.Errorf("Name = %q, want Developer", user.Name)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name            string
		email, password string
	}{
		{"missing email", "", "hunter2hunter2"},
		{"invalid email", "not-an-email", "hunter2hunter2"},
		{"missing password", "dev@example.com", ""},
		{"short password", "dev@example.com", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tt.email, tt.password, "Dev")
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("CreateAccount() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx, "dev@example.com", "hunter2hunter2", "A"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	_, err := svc.CreateAccount(ctx, "dev@example.com", "hunter2hunter2", "B")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateAccount() duplicate error = %v, want ErrConflict", err)
	}
}

func TestIssueAndValidateCredential(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, "dev@example.com", "hunter2hunter2", "Dev")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	result, err := svc.IssueCredential(ctx, "dev@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("IssueCredential() error = %v", err)
	}
	if result.Token == "" {
		t.Fatal("IssueCredential() returned an empty token")
	}

	principalID, err := svc.ValidateCredential(result.Token)
	if err != nil {
		t.Fatalf("ValidateCredential() error = %v", err)
	}
	if principalID != user.ID {
		t.Errorf("ValidateCredential() = %q, want %q", principalID, user.ID)
	}
}

func TestIssueCredential_BadCredentials(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx, "dev@example.com", "hunter2hunter2", "Dev"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	// Wrong password and unknown email must be indistinguishable.
	_, errWrongPass := svc.IssueCredential(ctx, "dev@example.com", "wrong-password")
	_, errNoAccount := svc.IssueCredential(ctx, "nobody@example.com", "hunter2hunter2")

	if !errors.Is(errWrongPass, apperror.ErrUnauthorized) {
		t.Errorf("wrong password error = %v, want ErrUnauthorized", errWrongPass)
	}
	if !errors.Is(errNoAccount, apperror.ErrUnauthorized) {
		t.Errorf("unknown email error = %v, want ErrUnauthorized", errNoAccount)
	}
	if errWrongPass.Error() != errNoAccount.Error() {
		t.Errorf("error messages differ: %q vs %q (account enumeration)", errWrongPass, errNoAccount)
	}
}

func TestValidateCredential_Invalid(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.ValidateCredential("garbage")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ValidateCredential() error = %v, want ErrUnauthorized", err)
	}
}

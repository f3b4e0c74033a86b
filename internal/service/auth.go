package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/devtoolbox/internal/apperror"
	"github.com/sakif/devtoolbox/internal/auth"
	"github.com/sakif/devtoolbox/internal/model"
	"github.com/sakif/devtoolbox/internal/repository"
)

// AuthService is the identity provider: it creates accounts, issues bearer
// credentials, and validates them to a principal id.
//
// Accounts are auto-confirmed at sign-up; no verification mail is sent.
// That is a deliberate simplification for a side-project deployment without
// a mail server.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// CreateAccount registers a new principal. Email and password are required;
// an empty name defaults to "Developer" to match what the UI displays for
// accounts that never set one.
func (s *AuthService) CreateAccount(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "email is not valid")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if len(password) < 8 {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Developer"
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "an account with this email already exists",
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("service/auth: creating account: %w", err)
	}

	s.logger.Info("account created", slog.String("userID", user.ID))
	return user, nil
}

// AuthResult bundles the principal and the credential issued for it.
type AuthResult struct {
	User  *model.User
	Token string
}

// IssueCredential verifies email+password and returns a signed bearer
// credential. Wrong email and wrong password produce the same error so the
// response does not reveal which accounts exist.
func (s *AuthService) IssueCredential(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up account: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("credential issued", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// ValidateCredential resolves a bearer token to a principal id.
func (s *AuthService) ValidateCredential(token string) (string, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return "", apperror.Unauthorized("invalid or expired credential")
	}
	return userID, nil
}

// GetUserByID returns the principal's profile.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

package kvrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/devtoolbox/internal/apperror"
	"github.com/sakif/devtoolbox/internal/kv"
	"github.com/sakif/devtoolbox/internal/model"
	"github.com/sakif/devtoolbox/internal/repository"
)

const (
	userKeyPrefix      = "user:"
	userEmailKeyPrefix = "user_email:"
)

// UserRepo stores identity-provider accounts in the kv.Store.
//
// Email uniqueness is enforced through the user_email index. The check and
// the insert are separate writes, so concurrent sign-ups race; a single
// mutex serializes account creation. Sign-up volume does not justify
// anything finer.
type UserRepo struct {
	store  kv.Store
	logger *slog.Logger

	createMu sync.Mutex
}

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a UserRepo on the given store.
func NewUserRepo(store kv.Store, logger *slog.Logger) *UserRepo {
	return &UserRepo{store: store, logger: logger}
}

func userKey(id string) string {
	return userKeyPrefix + id
}

func userEmailKey(email string) string {
	return userEmailKeyPrefix + strings.ToLower(email)
}

// Create stores a new account, generating the id and timestamps.
// Returns ErrConflict if the email already maps to an account.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	emailKey := userEmailKey(user.Email)
	if _, err := r.store.Get(ctx, emailKey); err == nil {
		return apperror.Conflict("user", user.Email)
	} else if !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("kvrepo: checking email %s: %w", user.Email, err)
	}

	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	value, err := json.Marshal(user.Record())
	if err != nil {
		return fmt.Errorf("kvrepo: marshaling user: %w", err)
	}
	if err := r.store.Set(ctx, userKey(user.ID), value); err != nil {
		return fmt.Errorf("kvrepo: writing user %s: %w", user.ID, err)
	}

	// The record write succeeded; an email-index failure would orphan the
	// account from sign-in, so this one is reported, not just logged.
	if err := r.store.Set(ctx, emailKey, []byte(user.ID)); err != nil {
		return fmt.Errorf("kvrepo: indexing email for user %s: %w", user.ID, err)
	}

	return nil
}

// GetByID returns the account stored under id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	value, err := r.store.Get(ctx, userKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("kvrepo: getting user %s: %w", id, err)
	}

	var rec model.UserRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("kvrepo: decoding user %s: %w", id, err)
	}
	return rec.User(), nil
}

// GetByEmail resolves the email index and fetches the account.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := r.store.Get(ctx, userEmailKey(email))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("kvrepo: resolving email %s: %w", email, err)
	}
	return r.GetByID(ctx, string(id))
}

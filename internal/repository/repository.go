// Package repository defines the storage interfaces consumed by the service
// layer. Implementations live in subpackages (kvrepo builds them on kv.Store).
package repository

import (
	"context"

	"github.com/sakif/devtoolbox/internal/model"
)

// SnippetRepository owns snippet persistence: CRUD, the per-owner index, and
// the public-listing index. Authorization decisions live in the service
// layer, except for Delete's ownership check, which is part of the repository
// contract so no caller can bypass it.
type SnippetRepository interface {
	// Create generates the id and timestamps, writes the record, and indexes
	// it for its owner (if any) and for the public listing (if public).
	Create(ctx context.Context, snippet *model.Snippet) error

	// GetByID returns the snippet or apperror.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Snippet, error)

	// ListByOwner resolves the owner index, newest first. Ids that no longer
	// resolve to a record are dropped.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error)

	// ListPublic returns metadata for public snippets, newest first,
	// optionally filtered by type and truncated to limit.
	ListPublic(ctx context.Context, typeFilter string, limit int) ([]model.SnippetMeta, error)

	// Delete removes the snippet and its index entries. Returns ErrNotFound
	// if absent, ErrForbidden if requesterID is not the owner.
	Delete(ctx context.Context, id, requesterID string) error
}

// UserRepository persists identity-provider accounts. Snippet code only ever
// sees user ids.
type UserRepository interface {
	// Create stores a new user. Returns ErrConflict if the email is taken.
	Create(ctx context.Context, user *model.User) error

	// GetByID returns the user or apperror.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByEmail returns the user or apperror.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

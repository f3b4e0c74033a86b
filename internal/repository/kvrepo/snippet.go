// Package kvrepo implements the repository interfaces on the kv.Store
// primitive.
//
// Key space:
//
//	snippet:{id}              -> snippet record (JSON)
//	user_snippets:{ownerId}   -> JSON array of snippet ids owned by ownerId
//	public_snippets           -> JSON array of public snippet ids
//	user:{id}                 -> user record (JSON)
//	user_email:{email}        -> user id
//
// The store has no multi-key transactions. A crash between the record write
// and an index write leaves the record persisted but unindexed (still
// fetchable by id); the delete path can leave a dangling index entry. Both
// divergences are tolerated at read time and logged, never raised to the
// caller.
package kvrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/devtoolbox/internal/apperror"
	"github.com/sakif/devtoolbox/internal/kv"
	"github.com/sakif/devtoolbox/internal/model"
	"github.com/sakif/devtoolbox/internal/repository"
)

const (
	snippetKeyPrefix    = "snippet:"
	ownerIndexKeyPrefix = "user_snippets:"
	publicIndexKey      = "public_snippets"

	defaultPublicLimit = 20
	maxPublicLimit     = 100
)

// SnippetRepo stores snippets in a kv.Store.
//
// Index updates are read-modify-write, so concurrent creates by the same
// owner would race and lose entries. A per-owner mutex serializes them; the
// public index gets its own mutex. Lock granularity is per owner, so
// unrelated owners never contend.
type SnippetRepo struct {
	store  kv.Store
	logger *slog.Logger

	mu         sync.Mutex // guards ownerLocks
	ownerLocks map[string]*sync.Mutex
	publicMu   sync.Mutex
}

var _ repository.SnippetRepository = (*SnippetRepo)(nil)

// NewSnippetRepo creates a SnippetRepo on the given store.
func NewSnippetRepo(store kv.Store, logger *slog.Logger) *SnippetRepo {
	return &SnippetRepo{
		store:      store,
		logger:     logger,
		ownerLocks: make(map[string]*sync.Mutex),
	}
}

func snippetKey(id string) string {
	return snippetKeyPrefix + id
}

func ownerIndexKey(ownerID string) string {
	return ownerIndexKeyPrefix + ownerID
}

// ownerLock returns the mutex serializing index writes for one owner.
func (r *SnippetRepo) ownerLock(ownerID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.ownerLocks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		r.ownerLocks[ownerID] = l
	}
	return l
}

// Create writes the snippet record and appends it to the relevant indexes.
//
// The id is a random UUID: for public snippets it doubles as the share
// capability, so it must be unguessable, not merely unique.
//
// The record write is the operation that must succeed; index appends that
// fail afterwards are logged and the create still reports success. The
// snippet stays fetchable by id either way.
func (r *SnippetRepo) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = uuid.NewString()

	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	value, err := json.Marshal(snippet)
	if err != nil {
		return fmt.Errorf("kvrepo: marshaling snippet: %w", err)
	}
	if err := r.store.Set(ctx, snippetKey(snippet.ID), value); err != nil {
		return fmt.Errorf("kvrepo: writing snippet %s: %w", snippet.ID, err)
	}

	if snippet.OwnerID != "" {
		if err := r.appendToOwnerIndex(ctx, snippet.OwnerID, snippet.ID); err != nil {
			r.logger.Warn("snippet saved but not indexed for owner",
				slog.String("id", snippet.ID),
				slog.String("ownerID", snippet.OwnerID),
				slog.String("error", err.Error()),
			)
		}
	}

	if snippet.IsPublic {
		if err := r.appendToPublicIndex(ctx, snippet.ID); err != nil {
			r.logger.Warn("snippet saved but missing from public index",
				slog.String("id", snippet.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// GetByID returns the snippet stored under id.
func (r *SnippetRepo) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	value, err := r.store.Get(ctx, snippetKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("kvrepo: getting snippet %s: %w", id, err)
	}

	var snippet model.Snippet
	if err := json.Unmarshal(value, &snippet); err != nil {
		return nil, fmt.Errorf("kvrepo: decoding snippet %s: %w", id, err)
	}
	return &snippet, nil
}

// ListByOwner resolves the owner index and fetches each snippet, newest
// first. Ids whose record is gone (the accepted divergence window) are
// dropped, not reported.
func (r *SnippetRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Snippet, error) {
	ids, err := r.readIndex(ctx, ownerIndexKey(ownerID))
	if err != nil {
		return nil, fmt.Errorf("kvrepo: reading owner index for %s: %w", ownerID, err)
	}

	snippets := make([]model.Snippet, 0, len(ids))
	for _, id := range ids {
		snippet, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				r.logger.Debug("owner index references missing snippet",
					slog.String("id", id),
					slog.String("ownerID", ownerID),
				)
				continue
			}
			return nil, err
		}
		snippets = append(snippets, *snippet)
	}

	sort.Slice(snippets, func(i, j int) bool {
		return snippets[i].CreatedAt.After(snippets[j].CreatedAt)
	})

	return snippets, nil
}

// ListPublic returns metadata for public snippets, newest first. The public
// index is maintained incrementally at create/delete so listing does not
// scan the whole keyspace. Stale index entries (deleted records) are
// skipped.
func (r *SnippetRepo) ListPublic(ctx context.Context, typeFilter string, limit int) ([]model.SnippetMeta, error) {
	if limit <= 0 {
		limit = defaultPublicLimit
	}
	if limit > maxPublicLimit {
		limit = maxPublicLimit
	}

	ids, err := r.readIndex(ctx, publicIndexKey)
	if err != nil {
		return nil, fmt.Errorf("kvrepo: reading public index: %w", err)
	}

	metas := make([]model.SnippetMeta, 0, len(ids))
	for _, id := range ids {
		snippet, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				r.logger.Debug("public index references missing snippet",
					slog.String("id", id))
				continue
			}
			return nil, err
		}
		if !snippet.IsPublic {
			continue
		}
		if typeFilter != "" && snippet.Type != typeFilter {
			continue
		}
		metas = append(metas, snippet.Meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})

	if len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// Delete removes a snippet after checking ownership.
//
// Order: existence check, ownership check, record delete, index pruning.
// Anonymous snippets have no owner and therefore no requester can pass the
// ownership check; they are undeletable through this path.
func (r *SnippetRepo) Delete(ctx context.Context, id, requesterID string) error {
	snippet, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if snippet.OwnerID == "" || snippet.OwnerID != requesterID {
		return apperror.Forbidden("you do not own this snippet")
	}

	if err := r.store.Delete(ctx, snippetKey(id)); err != nil {
		return fmt.Errorf("kvrepo: deleting snippet %s: %w", id, err)
	}

	if err := r.removeFromOwnerIndex(ctx, snippet.OwnerID, id); err != nil {
		r.logger.Warn("snippet deleted but still referenced by owner index",
			slog.String("id", id),
			slog.String("ownerID", snippet.OwnerID),
			slog.String("error", err.Error()),
		)
	}
	if snippet.IsPublic {
		if err := r.removeFromPublicIndex(ctx, id); err != nil {
			r.logger.Warn("snippet deleted but still referenced by public index",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// readIndex loads a JSON id list. An absent key is an empty index.
func (r *SnippetRepo) readIndex(ctx context.Context, key string) ([]string, error) {
	value, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(value, &ids); err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", key, err)
	}
	return ids, nil
}

func (r *SnippetRepo) writeIndex(ctx context.Context, key string, ids []string) error {
	value, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding index %s: %w", key, err)
	}
	return r.store.Set(ctx, key, value)
}

func (r *SnippetRepo) appendToOwnerIndex(ctx context.Context, ownerID, id string) error {
	l := r.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	key := ownerIndexKey(ownerID)
	ids, err := r.readIndex(ctx, key)
	if err != nil {
		return err
	}
	return r.writeIndex(ctx, key, append(ids, id))
}

func (r *SnippetRepo) removeFromOwnerIndex(ctx context.Context, ownerID, id string) error {
	l := r.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	key := ownerIndexKey(ownerID)
	ids, err := r.readIndex(ctx, key)
	if err != nil {
		return err
	}
	return r.writeIndex(ctx, key, remove(ids, id))
}

func (r *SnippetRepo) appendToPublicIndex(ctx context.Context, id string) error {
	r.publicMu.Lock()
	defer r.publicMu.Unlock()

	ids, err := r.readIndex(ctx, publicIndexKey)
	if err != nil {
		return err
	}
	return r.writeIndex(ctx, publicIndexKey, append(ids, id))
}

func (r *SnippetRepo) removeFromPublicIndex(ctx context.Context, id string) error {
	r.publicMu.Lock()
	defer r.publicMu.Unlock()

	ids, err := r.readIndex(ctx, publicIndexKey)
	if err != nil {
		return err
	}
	return r.writeIndex(ctx, publicIndexKey, remove(ids, id))
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

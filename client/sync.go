package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/sakif/devtoolbox/internal/model"
)

// Mode selects which collection List reads from.
type Mode int

const (
	// ModeLocal lists the device-only collection.
	ModeLocal Mode = iota
	// ModeCloud lists the signed-in user's server-side snippets.
	ModeCloud
	// ModePublic lists recent public snippet metadata.
	ModePublic
)

// Item is a unified listing row across all three modes. Exactly one of
// LocalID and RemoteID is set. Content is empty for public rows, which
// are metadata only.
type Item struct {
	LocalID   int64
	RemoteID  string
	Title     string
	Content   string
	Type      string
	IsPublic  bool
	ShareURL  string
	CreatedAt time.Time
}

// Syncer ties the local collection and the service API together. It owns
// the session: a successful SignIn stores the bearer token, and every
// write is routed to the server while one is held, to the local store
// otherwise.
type Syncer struct {
	api    *API
	local  *LocalStore
	logger *slog.Logger

	// copyFn puts text on the system clipboard. Replaceable in tests.
	copyFn func(string) error

	mu    sync.Mutex
	token string
	user  *model.User
}

// NewSyncer creates a Syncer around the given API client and local store.
func NewSyncer(api *API, local *LocalStore, logger *slog.Logger) *Syncer {
	return &Syncer{
		api:    api,
		local:  local,
		logger: logger,
		copyFn: clipboard.WriteAll,
	}
}

// SignUp registers an account; it does not sign in.
func (s *Syncer) SignUp(ctx context.Context, email, password, name string) error {
	return s.api.SignUp(ctx, email, password, name)
}

// SignIn obtains a credential and stores it for subsequent calls.
func (s *Syncer) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	token, user, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	s.logger.Info("signed in", slog.String("email", user.Email))
	return user, nil
}

// SignOut drops the credential. The local collection is untouched and the
// server-side snippets stay on the server; only this device's view of
// them goes away.
func (s *Syncer) SignOut() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
}

// SignedIn reports whether a credential is held.
func (s *Syncer) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// User returns the signed-in profile, or nil.
func (s *Syncer) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Syncer) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Save stores a snippet: on the server when signed in, in the local
// collection otherwise. Publishing requires an account, since the local
// collection has no public side.
//
// A public save puts the share link on the clipboard. Clipboard failure is
// logged and never fails the completed save; Share re-copies on demand.
func (s *Syncer) Save(ctx context.Context, title, content, snippetType string, isPublic bool) (Item, error) {
	token := s.currentToken()

	if token == "" {
		if isPublic {
			return Item{}, fmt.Errorf("sign in to publish a snippet")
		}
		local, err := s.local.Add(title, content, snippetType)
		if err != nil {
			return Item{}, err
		}
		return localItem(local), nil
	}

	snippet, err := s.api.CreateSnippet(ctx, token, title, content, snippetType, isPublic)
	if err != nil {
		return Item{}, err
	}

	item := remoteItem(*snippet)
	if item.ShareURL != "" {
		if err := s.copyFn(item.ShareURL); err != nil {
			s.logger.Warn("clipboard copy failed", slog.String("error", err.Error()))
		}
	}
	return item, nil
}

// Delete removes an item from whichever collection it lives in.
func (s *Syncer) Delete(ctx context.Context, item Item) error {
	if item.RemoteID != "" {
		token := s.currentToken()
		if token == "" {
			return fmt.Errorf("sign in to delete server snippets")
		}
		return s.api.DeleteSnippet(ctx, token, item.RemoteID)
	}
	return s.local.Delete(item.LocalID)
}

// Share copies the snippet's share link to the clipboard and returns it.
// A clipboard failure is not fatal: the link is still returned, with
// copied=false, so the caller can show it for manual copying.
func (s *Syncer) Share(ctx context.Context, remoteID string) (link string, copied bool, err error) {
	snippet, err := s.api.GetSnippet(ctx, s.currentToken(), remoteID)
	if err != nil {
		return "", false, err
	}
	if snippet.ShareURL == "" {
		return "", false, fmt.Errorf("snippet %s is not public", remoteID)
	}

	if err := s.copyFn(snippet.ShareURL); err != nil {
		s.logger.Warn("clipboard copy failed", slog.String("error", err.Error()))
		return snippet.ShareURL, false, nil
	}
	return snippet.ShareURL, true, nil
}

// List returns the selected collection, newest first, optionally filtered
// by snippet type and a case-insensitive search over title and content.
func (s *Syncer) List(ctx context.Context, mode Mode, search, typeFilter string) ([]Item, error) {
	var items []Item

	switch mode {
	case ModeLocal:
		for _, sn := range s.local.List() {
			items = append(items, localItem(sn))
		}

	case ModeCloud:
		token := s.currentToken()
		if token == "" {
			return nil, fmt.Errorf("sign in to list your snippets")
		}
		snippets, err := s.api.ListOwn(ctx, token)
		if err != nil {
			return nil, err
		}
		for _, sn := range snippets {
			items = append(items, remoteItem(sn))
		}

	case ModePublic:
		metas, err := s.api.ListPublic(ctx, typeFilter, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range metas {
			items = append(items, Item{
				RemoteID:  m.ID,
				Title:     m.Title,
				Type:      m.Type,
				IsPublic:  true,
				CreatedAt: m.CreatedAt,
			})
		}
		// The server already applied the type filter.
		typeFilter = ""

	default:
		return nil, fmt.Errorf("unknown listing mode %d", mode)
	}

	return filterItems(items, search, typeFilter), nil
}

// filterItems applies the type filter and the search filter. Search
// matches a case-insensitive substring of title or content.
func filterItems(items []Item, search, typeFilter string) []Item {
	if search == "" && typeFilter == "" {
		return items
	}

	needle := strings.ToLower(search)
	out := items[:0:0]
	for _, it := range items {
		if typeFilter != "" && it.Type != typeFilter {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.Title), needle) &&
			!strings.Contains(strings.ToLower(it.Content), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func localItem(sn LocalSnippet) Item {
	return Item{
		LocalID:   sn.ID,
		Title:     sn.Title,
		Content:   sn.Content,
		Type:      sn.Type,
		CreatedAt: sn.CreatedAt,
	}
}

func remoteItem(sn model.Snippet) Item {
	return Item{
		RemoteID:  sn.ID,
		Title:     sn.Title,
		Content:   sn.Content,
		Type:      sn.Type,
		IsPublic:  sn.IsPublic,
		ShareURL:  sn.ShareURL,
		CreatedAt: sn.CreatedAt,
	}
}

// Package model defines the data structures shared across the application.
package model

import "time"

// Snippet types recognised by the UI. The enumeration is open: Type is a
// display/filter tag only and is never validated against content.
const (
	TypeJSON   = "json"
	TypeRegex  = "regex"
	TypeUUID   = "uuid"
	TypeBase64 = "base64"
	TypeURL    = "url"
	TypeHash   = "hash"
	TypeCustom = "custom"
)

// Snippet is a stored text artifact with visibility and optional ownership.
//
// ID doubles as the share capability for public snippets, so it is generated
// with crypto-random UUIDs rather than time-ordered ids. OwnerID is empty for
// anonymous snippets and is set exactly once, at creation.
type Snippet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	IsPublic  bool      `json:"isPublic"`
	OwnerID   string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ShareURL is derived from ID for public snippets. It is never persisted;
	// the service fills it in on responses.
	ShareURL string `json:"shareUrl,omitempty"`
}

// SnippetMeta is the metadata-only projection used by the public listing.
// Content is deliberately absent.
type SnippetMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Meta returns the metadata projection of s.
func (s *Snippet) Meta() SnippetMeta {
	return SnippetMeta{
		ID:        s.ID,
		Title:     s.Title,
		Type:      s.Type,
		CreatedAt: s.CreatedAt,
	}
}

// Package client implements the device-side companion to the snippet
// service: a local-only collection stored in a JSON file, an HTTP client
// for the service API, and a Syncer that routes saves and listings
// between the two depending on whether a credential is held.
package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// LocalSnippet is a snippet that exists only on this device. Ids are
// numeric creation timestamps, unlike the server's opaque string ids, so
// the two namespaces can never be confused.
type LocalSnippet struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// LocalStore is an ordered snippet collection persisted to a JSON file,
// newest first. Every mutation rewrites the file.
type LocalStore struct {
	path string

	mu       sync.Mutex
	snippets []LocalSnippet
	lastID   int64
}

// OpenLocalStore loads the collection at path, which may not exist yet.
func OpenLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading local store: %w", err)
	}

	if err := json.Unmarshal(data, &s.snippets); err != nil {
		return nil, fmt.Errorf("parsing local store %s: %w", path, err)
	}
	for _, sn := range s.snippets {
		if sn.ID > s.lastID {
			s.lastID = sn.ID
		}
	}
	return s, nil
}

// nextID returns a fresh millisecond-timestamp id, bumped past the last
// issued one so rapid adds within the same millisecond stay distinct.
func (s *LocalStore) nextID() int64 {
	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Add prepends a new snippet and persists the collection.
func (s *LocalStore) Add(title, content, snippetType string) (LocalSnippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snippet := LocalSnippet{
		ID:        s.nextID(),
		Title:     title,
		Content:   content,
		Type:      snippetType,
		CreatedAt: time.Now().UTC(),
	}
	s.snippets = append([]LocalSnippet{snippet}, s.snippets...)

	if err := s.save(); err != nil {
		return LocalSnippet{}, err
	}
	return snippet, nil
}

// List returns a copy of the collection, newest first.
func (s *LocalStore) List() []LocalSnippet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LocalSnippet, len(s.snippets))
	copy(out, s.snippets)
	return out
}

// Delete removes the snippet with the given id. Deleting an absent id
// reports an error so the caller can surface it.
func (s *LocalStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sn := range s.snippets {
		if sn.ID == id {
			s.snippets = append(s.snippets[:i], s.snippets[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("local snippet %d not found", id)
}

// Export serializes the collection for backup or transfer to another
// device.
func (s *LocalStore) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.snippets, "", "  ")
}

// Import prepends the snippets in data to the collection. The merge is
// deliberately naive: imported snippets keep their ids and no
// deduplication happens, so importing the same export twice duplicates
// entries. It returns the number of snippets imported.
func (s *LocalStore) Import(data []byte) (int, error) {
	var imported []LocalSnippet
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("parsing import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snippets = append(imported, s.snippets...)
	for _, sn := range imported {
		if sn.ID > s.lastID {
			s.lastID = sn.ID
		}
	}

	if err := s.save(); err != nil {
		return 0, err
	}
	return len(imported), nil
}

// save must be called with the mutex held.
func (s *LocalStore) save() error {
	data, err := json.MarshalIndent(s.snippets, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding local store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing local store: %w", err)
	}
	return nil
}

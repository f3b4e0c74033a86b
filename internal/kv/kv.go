// Package kv defines the key-value persistence primitive.
//
// The store maps string keys to JSON values. It offers get, set, delete, and
// prefix scan, and nothing else: there are no transactions across keys. A
// multi-key update (snippet record plus owner index) is not atomic, and the
// repositories built on top accept the resulting orphan windows rather than
// blocking the request path on strict atomicity.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Entry is one (key, value) pair from a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the durable key to JSON-value mapping underlying the repositories.
//
// GetByPrefix returns entries in unspecified order; callers sort. All methods
// take a context because every implementation does I/O that should be
// cancellable at the transport boundary.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)
}

// Package session keeps per-player values keyed by an opaque session id.
package session

import "context"

// Store is the session backend used by the arena.
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, bool, error)
	Put(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
	Range(fn func(id string, v T) bool)
	Len() int
	NewID() string
}

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{m: map[string]T{}}
}

func (s *MemoryStore[T]) Get(_ context.Context, id string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[id]
	return v, ok, nil
}

func (s *MemoryStore[T]) Put(_ context.Context, id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = v
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

// Range calls fn for each entry until fn returns false.
// fn runs on a copy, so it may call back into the store.
func (s *MemoryStore[T]) Range(fn func(id string, v T) bool) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.m))
	vals := make([]T, 0, len(s.m))
	for id, v := range s.m {
		ids = append(ids, id)
		vals = append(vals, v)
	}
	s.mu.RUnlock()

	for i := range ids {
		if !fn(ids[i], vals[i]) {
			return
		}
	}
}

func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *MemoryStore[T]) NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

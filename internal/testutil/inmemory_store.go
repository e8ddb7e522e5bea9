package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/flexprice/collections/internal/errors"
)

// InMemoryStore is a thread safe map backed store used to fake repositories.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{items: make(map[string]T)}
}

func (s *InMemoryStore[T]) Create(_ context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewErrorf("item %s already exists", id).
			WithHint("Item already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.items[id] = item
	return nil
}

// CreateIfAbsent stores item unless an existing item matches. The check and the
// insert happen under one lock, like a unique index.
func (s *InMemoryStore[T]) CreateIfAbsent(_ context.Context, id string, item T, matches func(T) bool) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if matches(existing) {
			return existing, false
		}
	}
	s.items[id] = item
	return item, true
}

func (s *InMemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, ierr.NewErrorf("item %s not found", id).
			WithHint("Item not found").
			Mark(ierr.ErrNotFound)
	}
	return item, nil
}

// Find returns the first item matching fn in sort order.
func (s *InMemoryStore[T]) Find(ctx context.Context, fn func(T) bool, less func(a, b T) bool) (T, bool) {
	items, _ := s.List(ctx, fn, less)
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[0], true
}

// List returns items matching fn, sorted by less when given.
func (s *InMemoryStore[T]) List(_ context.Context, fn func(T) bool, less func(a, b T) bool) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []T
	for _, item := range s.items {
		if fn == nil || fn(item) {
			items = append(items, item)
		}
	}
	if less != nil {
		sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	}
	return items, nil
}

func (s *InMemoryStore[T]) Update(_ context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ierr.NewErrorf("item %s not found", id).
			WithHint("Item not found").
			Mark(ierr.ErrNotFound)
	}
	s.items[id] = item
	return nil
}

func (s *InMemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ierr.NewErrorf("item %s not found", id).
			WithHint("Item not found").
			Mark(ierr.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *InMemoryStore[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

// page applies offset and limit to an already sorted slice.
func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

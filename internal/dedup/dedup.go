// Package dedup implements the in-memory deduplication window: a fixed
// capacity LRU set of message identifiers that suppresses re-delivery of a
// message already seen in the current process lifetime. The window is not
// durable; a restart resets it, and replay then relies on the acked set
// alone.
package dedup

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the window size used when the caller does not configure
// one.
const DefaultCapacity = 100

// Window is a capacity-bounded LRU set of identifiers. All operations are
// serialized internally so that a contains-then-add pair from one caller can
// not interleave with another caller's pair for the same key.
type Window struct {
	mu    sync.Mutex
	cache *lru.Cache[string, struct{}]
}

// New creates a Window with the given capacity. Capacity must be positive;
// anything else is a configuration error.
func New(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("dedup: window capacity must be positive, got %d", capacity)
	}
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("dedup: %w", err)
	}
	return &Window{cache: cache}, nil
}

// Contains reports whether key is present and promotes it to
// most-recently-used as a side effect.
func (w *Window) Contains(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.cache.Get(key)
	return ok
}

// Add inserts key as most-recently-used. A present key is moved, not
// duplicated; a new key at capacity evicts the least-recently-used entry.
func (w *Window) Add(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache.Add(key, struct{}{})
}

// Observe is the atomic contains-then-add used on the delivery paths: it
// returns true if key was already present (promoting it), and inserts it
// otherwise.
func (w *Window) Observe(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.cache.Get(key); ok {
		return true
	}
	w.cache.Add(key, struct{}{})
	return false
}

// Remove drops key from the window. Delivery paths use it to roll back an
// Observe whose follow-up write failed, so the message stays eligible for
// redelivery.
func (w *Window) Remove(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache.Remove(key)
}

// Len returns the number of identifiers currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cache.Len()
}

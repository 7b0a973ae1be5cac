// Package kv defines the durable string-keyed store contract consumed by the
// queue engine, with a Pebble-backed implementation for production and an
// in-memory implementation for tests.
//
// The contract deliberately offers atomic per-key upsert/delete plus atomic
// multi-key batches instead of whole-collection rewrites: rewriting a full
// map on every mutation loses updates under concurrent producers, while
// per-key operations make each public queue operation an atomic unit.
// Absent keys read as "not present", never as an error.
package kv

import "context"

// Entry is a single key/value pair returned by Scan.
type Entry struct {
	Key   string
	Value string
}

// Op is one mutation inside an atomic batch.
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// Put builds an upsert op.
func Put(key, value string) Op { return Op{Key: key, Value: value} }

// Del builds a delete op.
func Del(key string) Op { return Op{Key: key, Delete: true} }

// Store is the durable store consumed by the queue engine. Implementations
// must apply batches atomically: either every op is durable or none is.
type Store interface {
	// Get returns the value for key. A missing key yields ("", false, nil).
	Get(key string) (string, bool, error)
	// Set upserts a single key.
	Set(key, value string) error
	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(key string) error
	// Scan returns all entries whose key starts with prefix, ascending by key.
	Scan(prefix string) ([]Entry, error)
	// Apply commits the ops as one atomic batch.
	Apply(ctx context.Context, ops []Op) error
	// Close releases underlying resources.
	Close() error
}

// Compactor is optionally implemented by stores that can reclaim space for a
// key range after large deletions.
type Compactor interface {
	Compact(prefix string) error
}

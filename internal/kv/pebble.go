package kv

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/flutterjanus/bridgeq/internal/storage/pebble"
)

// PebbleStore adapts pebblestore.DB to the Store contract.
type PebbleStore struct {
	db *pebblestore.DB
}

var _ Store = (*PebbleStore)(nil)
var _ Compactor = (*PebbleStore)(nil)

// NewPebbleStore wraps an open database. The caller keeps ownership of db
// unless Close is used.
func NewPebbleStore(db *pebblestore.DB) *PebbleStore {
	return &PebbleStore{db: db}
}

// Get implements Store.
func (s *PebbleStore) Get(key string) (string, bool, error) {
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(val), true, nil
}

// Set implements Store.
func (s *PebbleStore) Set(key, value string) error {
	return s.db.Set([]byte(key), []byte(value))
}

// Delete implements Store.
func (s *PebbleStore) Delete(key string) error {
	return s.db.Delete([]byte(key))
}

// Scan implements Store. Pebble keys are already lexicographically ordered,
// so the iterator order is the contract order.
func (s *PebbleStore) Scan(prefix string) ([]Entry, error) {
	low := []byte(prefix)
	hi := append(append([]byte{}, low...), 0xFF)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	for ok := iter.First(); ok; ok = iter.Next() {
		out = append(out, Entry{
			Key:   string(iter.Key()),
			Value: string(iter.Value()),
		})
	}
	return out, nil
}

// Apply implements Store using a single Pebble batch.
func (s *PebbleStore) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, op := range ops {
		if op.Delete {
			if err := b.Delete([]byte(op.Key), nil); err != nil {
				return err
			}
			continue
		}
		if err := b.Set([]byte(op.Key), []byte(op.Value), nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

// Compact implements Compactor.
func (s *PebbleStore) Compact(prefix string) error {
	low := []byte(prefix)
	hi := append(append([]byte{}, low...), 0xFF)
	return s.db.CompactRange(low, hi)
}

// Close closes the underlying database.
func (s *PebbleStore) Close() error { return s.db.Close() }

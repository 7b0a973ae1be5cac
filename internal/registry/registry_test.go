package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flutterjanus/bridgeq/internal/kv"
	"github.com/flutterjanus/bridgeq/internal/notify"
	"github.com/flutterjanus/bridgeq/internal/queue"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(kv.NewMemoryStore(), notify.NewHub(), Options{})
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	r := newRegistry(t)
	q1, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	q2, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q1 != q2 {
		t.Fatalf("expected the same engine instance per name")
	}
	if _, ok := r.Get("jobs"); !ok {
		t.Fatalf("engine not reachable by name")
	}
}

type intCodec struct{}

func (intCodec) Encode(n int) (queue.Record, error) { return queue.Record{"n": n}, nil }
func (intCodec) Decode(rec queue.Record) (int, error) {
	f, _ := rec["n"].(float64)
	return int(f), nil
}

func TestGetOrCreateRejectsTypeMismatch(t *testing.T) {
	r := newRegistry(t)
	if _, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := GetOrCreate[int](r, "jobs", intCodec{}, queue.Options{}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestSendByNameRequiresInstance(t *testing.T) {
	r := newRegistry(t)
	_, err := r.SendByName(context.Background(), "ghost", queue.Record{"id": "m"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestSendByNameDeliversToLiveEndpoint(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	q, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := q.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	mid, err := r.SendByName(ctx, "jobs", queue.Record{"n": "hello"})
	if err != nil {
		t.Fatalf("send by name: %v", err)
	}
	select {
	case d := <-q.Messages():
		if d.ID != mid {
			t.Fatalf("delivered %q, want %q", d.ID, mid)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery")
	}
}

func TestSendByNameFallsBackToPersistence(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	q, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// engine exists but was never initialized: no live endpoint
	mid, err := r.SendByName(ctx, "jobs", queue.Record{"n": "later"})
	if err != nil {
		t.Fatalf("send by name: %v", err)
	}
	pending, err := q.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID() != mid {
		t.Fatalf("fallback should persist, pending = %v", pending)
	}
}

func TestDisposeRemovesFromRegistry(t *testing.T) {
	r := newRegistry(t)
	q, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	q.Dispose()
	if _, ok := r.Get("jobs"); ok {
		t.Fatalf("disposed engine still registered")
	}
	// a later GetOrCreate builds a fresh engine
	q2, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if q2 == q {
		t.Fatalf("expected a fresh engine after dispose")
	}
}

func TestRemoveDisposesEngine(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	q, err := GetOrCreate[queue.Record](r, "jobs", queue.RecordCodec{}, queue.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r.Remove("jobs")
	if _, err := q.Enqueue(ctx, queue.Record{}); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("engine should be disposed, got %v", err)
	}
	r.Remove("jobs") // unknown name is a no-op
}

func TestCloseDisposesAllAndRejectsFurtherUse(t *testing.T) {
	r := newRegistry(t)
	q1, _ := GetOrCreate[queue.Record](r, "a", queue.RecordCodec{}, queue.Options{})
	q2, _ := GetOrCreate[queue.Record](r, "b", queue.RecordCodec{}, queue.Options{})

	r.Close()
	r.Close() // idempotent

	if _, ok := <-q1.Messages(); ok {
		t.Fatalf("q1 stream should be closed")
	}
	if _, ok := <-q2.Messages(); ok {
		t.Fatalf("q2 stream should be closed")
	}
	if _, err := GetOrCreate[queue.Record](r, "c", queue.RecordCodec{}, queue.Options{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
	if _, err := r.SendByName(context.Background(), "a", queue.Record{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestPerChannelOptionsOverrideDefaults(t *testing.T) {
	r := New(kv.NewMemoryStore(), notify.NewHub(), Options{Window: 100})
	if _, err := GetOrCreate[queue.Record](r, "bad", queue.RecordCodec{}, queue.Options{Window: -1}); err == nil {
		t.Fatalf("negative per-channel window must be rejected")
	}
}

package id

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNextIsMonotonic(t *testing.T) {
	g := NewGenerator(WithClock(func() int64 { return 1000 }))
	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b, got %s vs %s", a, b)
	}
	if a.String() >= b.String() {
		t.Fatalf("hex encoding should preserve order")
	}
}

func TestClockRegressionPinsToLastMs(t *testing.T) {
	var ms atomic.Int64
	ms.Store(1000)
	g := NewGenerator(WithClock(ms.Load))

	a := g.Next()
	ms.Store(900) // clock went backwards
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected b > a despite clock regression")
	}
}

func TestSequenceOverflowWaitsForNextMs(t *testing.T) {
	var ms atomic.Int64
	ms.Store(2000)
	g := NewGenerator(WithClock(ms.Load))
	g.lastMs = 2000
	g.seq = ^uint64(0) - 1

	_ = g.Next() // seq reaches MaxUint64

	done := make(chan ID, 1)
	go func() { done <- g.Next() }()

	time.AfterFunc(10*time.Millisecond, func() { ms.Store(2001) })

	select {
	case got := <-done:
		if got[15] != 0 {
			t.Fatalf("expected sequence reset after rollover, got %s", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for overflow handling")
	}
}

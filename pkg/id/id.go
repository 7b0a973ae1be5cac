package id

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable identifier.
type ID [16]byte

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, i[:])
	return b
}

// String returns the lowercase hex encoding.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Compare returns -1, 0 or 1 ordering IDs byte-wise.
func (i ID) Compare(other ID) int {
	for n := 0; n < 16; n++ {
		switch {
		case i[n] < other[n]:
			return -1
		case i[n] > other[n]:
			return 1
		}
	}
	return 0
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock overrides the millisecond clock. Intended for tests.
func WithClock(now func() int64) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// Generator produces strictly increasing IDs per process.
type Generator struct {
	mu     sync.Mutex
	now    func() int64
	lastMs int64
	seq    uint64
}

// NewGenerator creates a Generator backed by the wall clock.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{now: func() int64 { return time.Now().UnixMilli() }}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns a new ID strictly greater than all previously returned ones.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMs {
		// clock regression: pin to the last observed millisecond
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.seq == math.MaxUint64 {
			for ms <= g.lastMs {
				time.Sleep(time.Millisecond / 8)
				ms = g.now()
			}
			g.seq = 0
		} else {
			g.seq++
		}
	} else {
		g.seq = 0
	}
	g.lastMs = ms

	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms))
	binary.BigEndian.PutUint64(out[8:16], g.seq)
	return out
}

// Package registry maintains the one-engine-per-channel-name invariant
// within a process. Engines are created lazily by GetOrCreate, removed when
// disposed, and reachable by name for producers that do not hold an engine
// reference.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flutterjanus/bridgeq/internal/kv"
	"github.com/flutterjanus/bridgeq/internal/metrics"
	"github.com/flutterjanus/bridgeq/internal/notify"
	"github.com/flutterjanus/bridgeq/internal/queue"
	"github.com/flutterjanus/bridgeq/pkg/id"
	"github.com/flutterjanus/bridgeq/pkg/log"
)

var (
	// ErrNotInitialized is returned by SendByName when no engine for the
	// name was ever created in this process. It is a distinct condition so
	// callers can detect misconfiguration instead of silently losing sends.
	ErrNotInitialized = errors.New("registry: channel not initialized")
	// ErrClosed is returned once the registry has been closed.
	ErrClosed = errors.New("registry: closed")
)

// Options carries process-wide defaults applied to every engine the
// registry creates. Zero values fall back to the engine defaults.
type Options struct {
	Logger       log.Logger
	Metrics      *metrics.Metrics
	IDs          *id.Generator
	Window       int
	Buffer       int
	GCBatchLimit int
}

// Registry maps channel names to live engines. All engines share one store
// and one notification hub.
type Registry struct {
	store kv.Store
	hub   *notify.Hub
	opts  Options

	mu       sync.Mutex
	channels map[string]queue.Channel
	closed   bool
}

// New creates an empty registry over a store and a hub.
func New(store kv.Store, hub *notify.Hub, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	return &Registry{
		store:    store,
		hub:      hub,
		opts:     opts,
		channels: make(map[string]queue.Channel),
	}
}

// GetOrCreate returns the engine registered under name, constructing and
// registering one when absent. Construction performs no I/O; the caller
// decides when to Initialize. Per-call options override the registry
// defaults; a name already bound to a different message type is an error.
func GetOrCreate[T any](r *Registry, name string, codec queue.Codec[T], opts queue.Options) (*queue.Queue[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if ch, ok := r.channels[name]; ok {
		q, ok := ch.(*queue.Queue[T])
		if !ok {
			return nil, fmt.Errorf("registry: channel %q already bound to a different message type", name)
		}
		return q, nil
	}

	if opts.Window == 0 {
		opts.Window = r.opts.Window
	}
	if opts.Buffer == 0 {
		opts.Buffer = r.opts.Buffer
	}
	if opts.GCBatchLimit == 0 {
		opts.GCBatchLimit = r.opts.GCBatchLimit
	}
	if opts.Logger == nil {
		opts.Logger = r.opts.Logger
	}
	if opts.Metrics == nil {
		opts.Metrics = r.opts.Metrics
	}
	if opts.IDs == nil {
		opts.IDs = r.opts.IDs
	}
	userDispose := opts.OnDispose
	opts.OnDispose = func() {
		r.remove(name)
		if userDispose != nil {
			userDispose()
		}
	}

	q, err := queue.Open[T](r.store, r.hub, name, codec, opts)
	if err != nil {
		return nil, err
	}
	r.channels[name] = q
	return q, nil
}

func (r *Registry) remove(name string) {
	r.mu.Lock()
	delete(r.channels, name)
	r.mu.Unlock()
}

// Get returns the engine for name through its codec-independent face.
func (r *Registry) Get(name string) (queue.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// Names returns the currently registered channel names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

// SendByName sends a record to the channel registered under name: live
// delivery when an endpoint is bound, persistence-only fallback otherwise.
// Fails with ErrNotInitialized when no engine for the name exists in this
// process.
func (r *Registry) SendByName(ctx context.Context, name string, rec queue.Record) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	ch, ok := r.channels[name]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotInitialized, name)
	}
	return ch.SendRecord(ctx, rec)
}

// Remove disposes the engine for name and drops it from the registry.
// Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	ch, ok := r.channels[name]
	r.mu.Unlock()
	if !ok {
		return
	}
	// Dispose triggers the OnDispose hook, which removes the map entry.
	ch.Dispose()
}

// Close disposes every registered engine and rejects further use.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	chans := make([]queue.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.channels = make(map[string]queue.Channel)
	r.mu.Unlock()

	for _, ch := range chans {
		ch.Dispose()
	}
}

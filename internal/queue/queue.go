package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/flutterjanus/bridgeq/internal/dedup"
	"github.com/flutterjanus/bridgeq/internal/kv"
	"github.com/flutterjanus/bridgeq/internal/metrics"
	"github.com/flutterjanus/bridgeq/internal/notify"
	"github.com/flutterjanus/bridgeq/pkg/id"
	"github.com/flutterjanus/bridgeq/pkg/log"
)

var (
	// ErrClosed is returned by operations on a disposed engine.
	ErrClosed = errors.New("queue: channel disposed")
	// ErrMissingID is returned when an operation requires a message id and
	// none was given.
	ErrMissingID = errors.New("queue: record has no id")
	// ErrEmptyName rejects channels without a name.
	ErrEmptyName = errors.New("queue: channel name must not be empty")
	// ErrInvalidName rejects channel names outside the allowed character
	// set.
	ErrInvalidName = errors.New("queue: invalid channel name")
)

// Channel names share one keyspace under ch/{name}/; the character set
// keeps one channel's prefix from nesting inside another's.
var nameRE = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

const (
	defaultBuffer       = 64
	defaultGCBatchLimit = 1024

	// compactThreshold is the number of reconciled markers above which a
	// garbage collection pass hints range compaction to the store.
	compactThreshold = 256
)

// Meta is the channel metadata record persisted under MetaKey. Written once
// on first initialize.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
	Window      int    `json:"window"`
}

func encodeMeta(m Meta) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("queue: encode meta: %w", err)
	}
	return string(data), nil
}

// DecodeMeta parses a persisted channel metadata record.
func DecodeMeta(data string) (Meta, error) {
	var m Meta
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return Meta{}, fmt.Errorf("queue: decode meta: %w", err)
	}
	return m, nil
}

// Options configures an engine at construction time. The zero value is
// usable: defaults are a 100-entry window, a 64-slot observer buffer, no
// filter, and nop logging/metrics.
type Options struct {
	// Window is the deduplication window capacity. Zero means the default;
	// negative values are a configuration error.
	Window int
	// Buffer is the observer stream buffer size.
	Buffer int
	// Filter is an optional CEL expression evaluated against each record
	// before emission. Variables: id, channel, record, now_ms.
	Filter string
	// GCBatchLimit bounds the number of store ops per garbage collection
	// batch commit.
	GCBatchLimit int

	Logger  log.Logger
	Metrics *metrics.Metrics
	// IDs generates identifiers for records whose codec leaves the id
	// field empty.
	IDs *id.Generator
	// OnDispose runs once after Dispose completes. The registry uses it to
	// drop its reference.
	OnDispose func()
}

// Channel is the codec-independent face of an engine, used by the registry
// and the CLI where the message type is not statically known.
type Channel interface {
	Name() string
	SendRecord(ctx context.Context, rec Record) (string, error)
	Ack(ctx context.Context, msgID string) error
	GarbageCollect(ctx context.Context) (int, error)
	Pending() ([]Record, error)
	ClearAll(ctx context.Context) error
	Dispose()
}

// Queue is the durable channel engine for message type T. Construct with
// Open (no I/O), then Initialize to register the live endpoint and replay
// the pending set. See the package documentation for the full lifecycle.
type Queue[T any] struct {
	name       string
	store      kv.Store
	hub        *notify.Hub
	codec      Codec[T]
	filter     recordFilter
	gen        *id.Generator
	logger     log.Logger
	metrics    *metrics.Metrics
	windowSize int
	gcLimit    int
	onDispose  func()

	// mu serializes read-modify-write sequences against the store and
	// guards the sequence counter, the endpoint and the closed flag.
	mu        sync.Mutex
	window    *dedup.Window
	lastSeq   uint64
	seqLoaded bool
	closed    bool
	endpoint  *notify.Endpoint

	// emitMu makes close(out) safe against concurrent emits.
	emitMu sync.Mutex
	done   chan struct{}
	out    chan Delivery[T]
}

var _ Channel = (*Queue[Record])(nil)

// Open constructs an engine bound to a store, a notification hub and a
// channel name. Construction performs no I/O; call Initialize to replay.
func Open[T any](store kv.Store, hub *notify.Hub, name string, codec Codec[T], opts Options) (*Queue[T], error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: %q must match %s", ErrInvalidName, name, nameRE)
	}
	if codec == nil {
		return nil, errors.New("queue: codec must not be nil")
	}
	capacity := opts.Window
	if capacity == 0 {
		capacity = dedup.DefaultCapacity
	}
	window, err := dedup.New(capacity)
	if err != nil {
		return nil, err
	}
	filter, err := newRecordFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("queue: filter: %w", err)
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	gcLimit := opts.GCBatchLimit
	if gcLimit <= 0 {
		gcLimit = defaultGCBatchLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	mets := opts.Metrics
	if mets == nil {
		mets = metrics.Nop()
	}
	gen := opts.IDs
	if gen == nil {
		gen = id.NewGenerator()
	}
	return &Queue[T]{
		name:       name,
		store:      store,
		hub:        hub,
		codec:      codec,
		filter:     filter,
		gen:        gen,
		logger:     logger.WithComponent("queue").With(log.Str("channel", name)),
		metrics:    mets,
		windowSize: capacity,
		gcLimit:    gcLimit,
		onDispose:  opts.OnDispose,
		window:     window,
		done:       make(chan struct{}),
		out:        make(chan Delivery[T], buffer),
	}, nil
}

// Name returns the channel name.
func (q *Queue[T]) Name() string { return q.name }

// win returns the current deduplication window. ClearAll swaps the pointer,
// so delivery paths load it under the mutex.
func (q *Queue[T]) win() *dedup.Window {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.window
}

// Messages returns the observer stream. The channel is closed by Dispose.
// When the pending set can exceed the observer buffer, drain it concurrently
// with Initialize.
func (q *Queue[T]) Messages() <-chan Delivery[T] { return q.out }

// Initialize registers the live notification endpoint for the channel
// (replacing any prior registration for the name in this process) and
// replays the pending set in insertion order: every record not yet in the
// deduplication window and not acknowledged is emitted to the observer
// stream. Per-record decode failures are logged and skipped.
func (q *Queue[T]) Initialize(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if err := q.ensureSeqLocked(); err != nil {
		q.mu.Unlock()
		return err
	}
	q.endpoint = q.hub.Register(q.name, q.onNotify)
	q.mu.Unlock()

	if err := q.ensureMeta(); err != nil {
		return err
	}
	return q.replay(ctx)
}

// ensureSeqLocked restores the sequence counter from the store on first use.
// Callers hold q.mu.
func (q *Queue[T]) ensureSeqLocked() error {
	if q.seqLoaded {
		return nil
	}
	v, ok, err := q.store.Get(SeqKey(q.name))
	if err != nil {
		return fmt.Errorf("queue: restore sequence: %w", err)
	}
	if ok {
		seq, perr := ParseSeq(v)
		if perr != nil {
			return fmt.Errorf("queue: corrupt sequence key %q: %w", v, perr)
		}
		q.lastSeq = seq
	}
	q.seqLoaded = true
	return nil
}

func (q *Queue[T]) ensureMeta() error {
	_, ok, err := q.store.Get(MetaKey(q.name))
	if err != nil {
		return fmt.Errorf("queue: read meta: %w", err)
	}
	if ok {
		return nil
	}
	meta := Meta{Name: q.name, CreatedAtMs: time.Now().UnixMilli(), Window: q.windowSize}
	data, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	return q.store.Set(MetaKey(q.name), data)
}

func (q *Queue[T]) replay(ctx context.Context) error {
	acked, err := q.ackedSet()
	if err != nil {
		return err
	}
	entries, err := q.store.Scan(PendingPrefix(q.name))
	if err != nil {
		return fmt.Errorf("queue: scan pending: %w", err)
	}
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rec, derr := DecodeRecord([]byte(e.Value))
		if derr != nil {
			q.metrics.DecodeFailures.WithLabelValues(q.name).Inc()
			q.logger.Warn("skipping undecodable pending record", log.Str("key", e.Key), log.Err(derr))
			continue
		}
		mid := rec.ID()
		if mid == "" {
			q.logger.Warn("skipping pending record without id", log.Str("key", e.Key))
			continue
		}
		if _, ok := acked[mid]; ok {
			continue
		}
		if q.win().Observe(mid) {
			q.metrics.Duplicates.WithLabelValues(q.name).Inc()
			continue
		}
		if !q.filter.Eval(q.name, rec) {
			continue
		}
		msg, derr := q.codec.Decode(rec)
		if derr != nil {
			q.metrics.DecodeFailures.WithLabelValues(q.name).Inc()
			q.logger.Warn("skipping undecodable message", log.Str("id", mid), log.Err(derr))
			continue
		}
		if !q.emit(Delivery[T]{ID: mid, Msg: msg, Replayed: true}) {
			return ErrClosed
		}
		q.metrics.Replayed.WithLabelValues(q.name).Inc()
		q.metrics.Delivered.WithLabelValues(q.name).Inc()
	}
	return nil
}

func (q *Queue[T]) ackedSet() (map[string]struct{}, error) {
	entries, err := q.store.Scan(AckedPrefix(q.name))
	if err != nil {
		return nil, fmt.Errorf("queue: scan acked: %w", err)
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[AckedID(q.name, e.Key)] = struct{}{}
	}
	return set, nil
}

// onNotify is the live delivery path, invoked by the hub. The sender has
// already persisted the record, but the upsert here keeps the pending set
// authoritative when the endpoint is driven through the hub directly.
func (q *Queue[T]) onNotify(payload []byte) {
	rec, err := DecodeRecord(payload)
	if err != nil {
		q.metrics.DecodeFailures.WithLabelValues(q.name).Inc()
		q.logger.Warn("dropping undecodable live payload", log.Err(err))
		return
	}
	mid := rec.ID()
	if mid == "" {
		q.logger.Warn("dropping live payload without id")
		return
	}
	if q.win().Observe(mid) {
		q.metrics.Duplicates.WithLabelValues(q.name).Inc()
		return
	}
	if err := q.persist(context.Background(), rec); err != nil {
		// nothing was stored, so the id must not linger in the window
		// suppressing a later redelivery
		q.win().Remove(mid)
		q.logger.Error("persist on live delivery failed", log.Str("id", mid), log.Err(err))
		return
	}
	if !q.filter.Eval(q.name, rec) {
		return
	}
	msg, err := q.codec.Decode(rec)
	if err != nil {
		q.metrics.DecodeFailures.WithLabelValues(q.name).Inc()
		q.logger.Warn("dropping undecodable message", log.Str("id", mid), log.Err(err))
		return
	}
	if q.emit(Delivery[T]{ID: mid, Msg: msg}) {
		q.metrics.Delivered.WithLabelValues(q.name).Inc()
	}
}

// emit delivers to the observer stream unless the engine is disposed.
func (q *Queue[T]) emit(d Delivery[T]) bool {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.out <- d:
		return true
	case <-q.done:
		return false
	}
}

// persist upserts rec into the pending set, keyed by its id: an id seen
// before overwrites its existing entry in place (keeping its sequence and
// hence its replay position); a new id is appended with the next sequence.
func (q *Queue[T]) persist(ctx context.Context, rec Record) error {
	mid := rec.ID()
	if mid == "" {
		return ErrMissingID
	}
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("queue: encode record: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if err := q.ensureSeqLocked(); err != nil {
		return err
	}
	v, ok, err := q.store.Get(IndexKey(q.name, mid))
	if err != nil {
		return fmt.Errorf("queue: read index: %w", err)
	}
	if ok {
		seq, perr := ParseSeq(v)
		if perr != nil {
			return fmt.Errorf("queue: corrupt index for %q: %w", mid, perr)
		}
		return q.store.Set(PendingKey(q.name, seq), string(data))
	}
	seq := q.lastSeq + 1
	ops := []kv.Op{
		kv.Put(PendingKey(q.name, seq), string(data)),
		kv.Put(IndexKey(q.name, mid), FormatSeq(seq)),
		kv.Put(SeqKey(q.name), FormatSeq(seq)),
	}
	if err := q.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("queue: persist: %w", err)
	}
	q.lastSeq = seq
	return nil
}

// Enqueue persists msg into the pending set without attempting live
// delivery; replay emits it on the next Initialize. Returns the message id,
// assigning one when the codec leaves it empty. An id already pending is
// upserted in place.
func (q *Queue[T]) Enqueue(ctx context.Context, msg T) (string, error) {
	rec, err := q.codec.Encode(msg)
	if err != nil {
		return "", fmt.Errorf("queue: encode: %w", err)
	}
	return q.enqueueRecord(ctx, rec)
}

func (q *Queue[T]) enqueueRecord(ctx context.Context, rec Record) (string, error) {
	mid := rec.ID()
	if mid == "" {
		mid = q.gen.Next().String()
		rec[FieldID] = mid
	}
	if err := q.persist(ctx, rec); err != nil {
		return "", err
	}
	q.metrics.Enqueued.WithLabelValues(q.name).Inc()
	return mid, nil
}

// Send persists msg and, when a live endpoint is registered for the channel,
// additionally hands it over for immediate delivery. Persistence always
// happens first so a consumer crash between receipt and ack cannot lose the
// message; without a live endpoint Send degrades to Enqueue.
func (q *Queue[T]) Send(ctx context.Context, msg T) (string, error) {
	rec, err := q.codec.Encode(msg)
	if err != nil {
		return "", fmt.Errorf("queue: encode: %w", err)
	}
	return q.sendRecord(ctx, rec)
}

// SendRecord is Send for raw records. It implements Channel for the
// registry's send-by-name path.
func (q *Queue[T]) SendRecord(ctx context.Context, rec Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("queue: nil record")
	}
	return q.sendRecord(ctx, rec)
}

func (q *Queue[T]) sendRecord(ctx context.Context, rec Record) (string, error) {
	mid, err := q.enqueueRecord(ctx, rec)
	if err != nil {
		return "", err
	}
	if ep, ok := q.hub.Lookup(q.name); ok {
		payload, perr := rec.Encode()
		if perr != nil {
			return mid, nil
		}
		q.hub.Deliver(ep, payload)
	}
	return mid, nil
}

// Ack records msgID in the acknowledged set and removes its pending entry.
// Acking an id twice, or one never enqueued, is a no-op beyond the marker
// write; garbage collection retires stray markers.
func (q *Queue[T]) Ack(ctx context.Context, msgID string) error {
	if msgID == "" {
		return ErrMissingID
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	ops := []kv.Op{kv.Put(AckedKey(q.name, msgID), "")}
	v, ok, err := q.store.Get(IndexKey(q.name, msgID))
	if err != nil {
		return fmt.Errorf("queue: read index: %w", err)
	}
	if ok {
		if seq, perr := ParseSeq(v); perr == nil {
			ops = append(ops, kv.Del(PendingKey(q.name, seq)))
		}
		ops = append(ops, kv.Del(IndexKey(q.name, msgID)))
	}
	if err := q.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}
	q.metrics.Acked.WithLabelValues(q.name).Inc()
	return nil
}

// GarbageCollect reconciles the acknowledged set against the pending set:
// any pending entry whose id carries an ack marker is removed, then the
// markers themselves are retired. Work is committed in bounded batches.
// Returns the number of pending entries removed.
func (q *Queue[T]) GarbageCollect(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrClosed
	}
	markers, err := q.store.Scan(AckedPrefix(q.name))
	if err != nil {
		return 0, fmt.Errorf("queue: scan acked: %w", err)
	}
	removed := 0
	ops := make([]kv.Op, 0, q.gcLimit)
	flush := func() error {
		if len(ops) == 0 {
			return nil
		}
		if err := q.store.Apply(ctx, ops); err != nil {
			return fmt.Errorf("queue: gc commit: %w", err)
		}
		ops = ops[:0]
		return nil
	}
	for _, m := range markers {
		mid := AckedID(q.name, m.Key)
		v, ok, err := q.store.Get(IndexKey(q.name, mid))
		if err != nil {
			return removed, fmt.Errorf("queue: read index: %w", err)
		}
		if ok {
			if seq, perr := ParseSeq(v); perr == nil {
				ops = append(ops, kv.Del(PendingKey(q.name, seq)))
			}
			ops = append(ops, kv.Del(IndexKey(q.name, mid)))
			removed++
		}
		ops = append(ops, kv.Del(m.Key))
		if len(ops) >= q.gcLimit {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := flush(); err != nil {
		return removed, err
	}
	if removed > 0 {
		q.metrics.GCRemoved.WithLabelValues(q.name).Add(float64(removed))
	}
	if c, ok := q.store.(kv.Compactor); ok && len(markers) >= compactThreshold {
		if cerr := c.Compact(ChannelPrefix(q.name)); cerr != nil {
			q.logger.Warn("compaction after gc failed", log.Err(cerr))
		}
	}
	return removed, nil
}

// Pending returns the pending set in insertion order. Undecodable entries
// are skipped.
func (q *Queue[T]) Pending() ([]Record, error) {
	entries, err := q.store.Scan(PendingPrefix(q.name))
	if err != nil {
		return nil, fmt.Errorf("queue: scan pending: %w", err)
	}
	recs := make([]Record, 0, len(entries))
	for _, e := range entries {
		rec, derr := DecodeRecord([]byte(e.Value))
		if derr != nil {
			q.metrics.DecodeFailures.WithLabelValues(q.name).Inc()
			q.logger.Warn("skipping undecodable pending record", log.Str("key", e.Key), log.Err(derr))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ClearAll erases the channel's entire keyspace (pending set, acknowledged
// set, index, sequence, metadata), resets the deduplication window and
// unregisters the notification endpoint. Intended for tests and explicit
// resets, not normal operation; call Initialize again to resume live
// delivery.
func (q *Queue[T]) ClearAll(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.endpoint != nil {
		if cur, ok := q.hub.Lookup(q.name); ok && cur == q.endpoint {
			q.hub.Unregister(q.name)
		}
		q.endpoint = nil
	}
	entries, err := q.store.Scan(ChannelPrefix(q.name))
	if err != nil {
		return fmt.Errorf("queue: scan channel: %w", err)
	}
	ops := make([]kv.Op, 0, q.gcLimit)
	for _, e := range entries {
		ops = append(ops, kv.Del(e.Key))
		if len(ops) >= q.gcLimit {
			if err := q.store.Apply(ctx, ops); err != nil {
				return fmt.Errorf("queue: clear: %w", err)
			}
			ops = ops[:0]
		}
	}
	if len(ops) > 0 {
		if err := q.store.Apply(ctx, ops); err != nil {
			return fmt.Errorf("queue: clear: %w", err)
		}
	}
	q.lastSeq = 0
	q.seqLoaded = true
	window, err := dedup.New(q.windowSize)
	if err != nil {
		return err
	}
	q.window = window
	return nil
}

// Dispose closes the observer stream, unregisters the notification endpoint
// and marks the engine closed. Idempotent. Further operations return
// ErrClosed.
func (q *Queue[T]) Dispose() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	ep := q.endpoint
	q.endpoint = nil
	q.mu.Unlock()

	if ep != nil {
		// Only drop the registration if it is still ours: a replacement
		// engine may have re-registered the name.
		if cur, ok := q.hub.Lookup(q.name); ok && cur == ep {
			q.hub.Unregister(q.name)
		}
	}
	close(q.done)
	q.emitMu.Lock()
	close(q.out)
	q.emitMu.Unlock()
	if q.onDispose != nil {
		q.onDispose()
	}
}

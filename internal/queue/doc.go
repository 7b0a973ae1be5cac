// Package queue implements bridgeq's durable channel engine: at-least-once,
// deduplicated, replayable delivery of messages between a producer context
// and a consumer context that share a durable store but not memory.
//
// # Keyspace
//
// All keys are prefixed with ch/{channel}/:
//
//	meta            - Channel metadata (created-at, window size)
//	seq             - Last assigned sequence (hex, 16 digits)
//	pending/{seq}   - Pending set entry: JSON record, ordered by sequence
//	idx/{id}        - Message id -> sequence index (upsert/ack by id)
//	acked/{id}      - Acknowledged set marker
//
// Sequences are zero-padded hex so lexicographic key order is insertion
// order, which is the replay order.
//
// # Message lifecycle
//
//  1. Enqueue/Send: record persisted into the pending set (upsert by id).
//  2. Send with a live endpoint: record additionally handed to the
//     notification hub for immediate delivery. Persistence always happens
//     first, so a consumer crash between receipt and ack never loses the
//     message.
//  3. Delivery (live or replay): the deduplication window drops identifiers
//     already emitted in this process lifetime; fresh ones are decoded and
//     emitted to the observer stream.
//  4. Ack: pending entry removed, id recorded in the acked set.
//  5. GarbageCollect: acked set reconciled against the pending set in
//     bounded batches; markers are retired once reconciled.
//
// # At-least-once semantics
//
// Messages are delivered at least once. Duplicates can occur if the process
// restarts before ack (the window is not durable) or if the window evicted
// an identifier before its duplicate arrived. Consumers should be idempotent
// keyed on the message id.
//
// # Concurrency
//
// Each engine expects a single consuming context draining Messages and any
// number of in-process producers calling Enqueue/Send/Ack. Read-modify-write
// sequences against the store are serialized by an internal mutex; cross
// process producers against the same data directory are not coordinated.
package queue

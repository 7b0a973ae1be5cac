package queue

import (
	"encoding/json"
	"fmt"
)

// FieldID is the record field carrying the message identifier. Every
// persisted or delivered record must have it; Enqueue assigns one when the
// codec leaves it empty.
const FieldID = "id"

// Record is the wire and storage form of a message: a JSON object with at
// least an "id" field. Application payload lives in the remaining fields,
// shaped by the channel's codec.
type Record map[string]any

// ID returns the message identifier, or "" when absent or not a string.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// Encode renders the record as JSON.
func (r Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses a JSON record. Non-object payloads are rejected.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("queue: decode record: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("queue: decode record: not a JSON object")
	}
	return r, nil
}

// Codec translates between the application's message type and the stored
// record form. Encode may leave the id field empty; the engine then assigns
// one. Decode failures on individual records are swallowed by the engine so
// a corrupt record never blocks its siblings.
type Codec[T any] interface {
	Encode(msg T) (Record, error)
	Decode(rec Record) (T, error)
}

// RecordCodec is the identity codec for callers that work with raw records,
// such as the CLI and the registry's send-by-name path.
type RecordCodec struct{}

// Encode implements Codec.
func (RecordCodec) Encode(rec Record) (Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("queue: nil record")
	}
	return rec, nil
}

// Decode implements Codec.
func (RecordCodec) Decode(rec Record) (Record, error) { return rec, nil }

// Delivery is one message emitted to the observer stream.
type Delivery[T any] struct {
	// ID is the message identifier to acknowledge once processed.
	ID string
	// Msg is the decoded message.
	Msg T
	// Replayed is true when the message came from the pending set during
	// initialize rather than from a live send.
	Replayed bool
}

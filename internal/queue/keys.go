package queue

import (
	"fmt"
	"strconv"
)

// Key layout helpers. Everything for one channel lives under ch/{name}/ so
// ClearAll and compaction can operate on a single prefix.
const (
	prefixPending = "pending/"
	prefixIndex   = "idx/"
	prefixAcked   = "acked/"
	suffixMeta    = "meta"
	suffixSeq     = "seq"
)

// ChannelPrefix returns the base prefix for a channel.
// Format: ch/{name}/
func ChannelPrefix(name string) string {
	return "ch/" + name + "/"
}

// MetaKey returns the channel metadata key.
func MetaKey(name string) string { return ChannelPrefix(name) + suffixMeta }

// SeqKey returns the key holding the last assigned sequence.
func SeqKey(name string) string { return ChannelPrefix(name) + suffixSeq }

// PendingKey returns the pending set key for a sequence. Sequences are
// zero-padded hex so lexicographic order equals numeric order.
func PendingKey(name string, seq uint64) string {
	return fmt.Sprintf("%s%s%016x", ChannelPrefix(name), prefixPending, seq)
}

// PendingPrefix returns the scan prefix for the pending set.
func PendingPrefix(name string) string { return ChannelPrefix(name) + prefixPending }

// IndexKey returns the id -> sequence index key.
func IndexKey(name, id string) string { return ChannelPrefix(name) + prefixIndex + id }

// AckedKey returns the acknowledged set marker key for an id.
func AckedKey(name, id string) string { return ChannelPrefix(name) + prefixAcked + id }

// AckedPrefix returns the scan prefix for the acknowledged set.
func AckedPrefix(name string) string { return ChannelPrefix(name) + prefixAcked }

// FormatSeq renders a sequence the way index values store it.
func FormatSeq(seq uint64) string { return fmt.Sprintf("%016x", seq) }

// ParseSeq parses an index value back into a sequence.
func ParseSeq(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

// AckedID extracts the message id from an acked set key.
func AckedID(name, key string) string {
	return key[len(AckedPrefix(name)):]
}

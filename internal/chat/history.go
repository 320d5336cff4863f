package chat

import (
	"sync"
)

// History retains the most recent messages per conversation: one bounded
// sequence for the global room and one per unordered pair of display names.
// Insertion beyond capacity evicts the oldest entry. Stored messages are
// never mutated or deleted individually.
type History struct {
	mu       sync.Mutex
	capacity int
	global   []Message
	private  map[string][]Message // PairKey -> messages
}

// DefaultHistoryCapacity is the bound used when no explicit capacity is
// configured.
const DefaultHistoryCapacity = 20

// NewHistory creates a history store holding at most capacity messages per
// conversation. A non-positive capacity falls back to the default.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		private:  make(map[string][]Message),
	}
}

// AppendGlobal adds a message to the global sequence, evicting the oldest
// entry when the bound is exceeded.
func (h *History) AppendGlobal(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.global = appendBounded(h.global, msg, h.capacity)
}

// AppendPrivate adds a message to the pair's sequence.
func (h *History) AppendPrivate(pairKey string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.private[pairKey] = appendBounded(h.private[pairKey], msg, h.capacity)
}

// SnapshotGlobal returns a copy of the global sequence, oldest first.
func (h *History) SnapshotGlobal() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshot(h.global)
}

// SnapshotPrivate returns a copy of the pair's sequence, oldest first.
// A conversation with no stored messages yields an empty, non-nil slice so
// it serializes as [] rather than null.
func (h *History) SnapshotPrivate(pairKey string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshot(h.private[pairKey])
}

func appendBounded(seq []Message, msg Message, capacity int) []Message {
	seq = append(seq, msg)
	if len(seq) > capacity {
		seq = seq[len(seq)-capacity:]
	}
	return seq
}

func snapshot(seq []Message) []Message {
	out := make([]Message, len(seq))
	copy(out, seq)
	return out
}

package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one chat utterance as it travels on the wire and sits in
// history. Immutable once created.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Private   bool   `json:"private"`
	To        string `json:"to,omitempty"`
}

// pairKeySeparator joins the two participant names of a private
// conversation. Names containing it are rejected at join time, so the key
// is unambiguous.
const pairKeySeparator = "|"

// NewMessageID returns a server-assigned message id: the current epoch
// milliseconds plus a short random suffix so concurrent messages in the
// same millisecond do not collide. Lexical ordering is close enough to
// submission order for display purposes.
func NewMessageID(now time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// PairKey computes the commutative identifier for a private conversation:
// the two names sorted lexicographically and joined with the separator, so
// PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return strings.Join(names, pairKeySeparator)
}

package negotiation

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies who produced a transcript entry.
type Source string

const (
	SourceClient       Source = "client"
	SourceCounterparty Source = "counterparty"
	SourcePlaceholder  Source = "placeholder"
)

// EntryKind classifies an entry so render layers need not parse messages.
type EntryKind string

const (
	KindOffer     EntryKind = "offer"
	KindBid       EntryKind = "bid"
	KindCounter   EntryKind = "counter"
	KindFinal     EntryKind = "final"
	KindAccept    EntryKind = "accept"
	KindReject    EntryKind = "reject"
	KindAgreed    EntryKind = "agreed"
	KindReviewing EntryKind = "reviewing"
)

// Entry is one immutable line of the exchange. Amount is zero for non-monetary entries.
type Entry struct {
	Source  Source          `json:"source"`
	Kind    EntryKind       `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message"`
	At      time.Time       `json:"at"`
}

// Transcript is the ordered, append-only log of a session. Readers on other goroutines
// may call Entries, Len and Last at any time.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTranscript creates an empty transcript optionally pre-sizing storage.
func NewTranscript(capacity int) *Transcript {
	if capacity < 0 {
		capacity = 0
	}
	return &Transcript{entries: make([]Entry, 0, capacity)}
}

// Append adds e to the end of the log.
func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

// ReplacePlaceholder swaps the most recent entry for e if, and only if, that entry is a
// placeholder. It is the one non-append mutation the log allows.
func (t *Transcript) ReplacePlaceholder(e Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	if n == 0 || t.entries[n-1].Source != SourcePlaceholder {
		return false
	}
	t.entries[n-1] = e
	return true
}

// Entries returns a copy of the log.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last returns the most recent entry.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

package analytics

import (
	"sync"

	"haggle-go/internal/negotiation"
)

// DefaultMemoryLimit caps the "memory" sink when no limit is configured.
const DefaultMemoryLimit = 1024

// Ledger is the in-process "memory" sink. It keeps the most recent transitions, evicting
// the oldest once limit is reached, and answers per-session queries.
type Ledger struct {
	mu      sync.Mutex
	limit   int
	entries []negotiation.Transition
	evicted int64
}

// NewLedger builds a ledger holding at most limit transitions. A limit <= 0 keeps all.
func NewLedger(limit int) *Ledger {
	if limit < 0 {
		limit = 0
	}
	return &Ledger{limit: limit}
}

// Record appends tr, dropping the oldest entry when full.
func (l *Ledger) Record(tr negotiation.Transition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
		l.evicted++
	}
	l.entries = append(l.entries, tr)
	return nil
}

// Snapshot returns the retained transitions, oldest first.
func (l *Ledger) Snapshot() []negotiation.Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]negotiation.Transition, len(l.entries))
	copy(out, l.entries)
	return out
}

// Session returns the retained transitions of one session, oldest first.
func (l *Ledger) Session(id string) []negotiation.Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []negotiation.Transition
	for _, tr := range l.entries {
		if tr.SessionID == id {
			out = append(out, tr)
		}
	}
	return out
}

// Evicted counts transitions pushed out by the limit.
func (l *Ledger) Evicted() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

// Reset clears retained transitions and the eviction count.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.entries = l.entries[:0]
	l.evicted = 0
	l.mu.Unlock()
}

package negotiation

import (
	"context"
	"time"

	"haggle-go/internal/loop"
	"haggle-go/internal/metrics"
)

// DefaultThinkDelay mimics a human reviewing the bid.
const DefaultThinkDelay = 2500 * time.Millisecond

// ReviewingMessage is shown while a response is pending.
const ReviewingMessage = "Reviewing your offer…"

// Simulator inserts a placeholder, waits a fixed delay, then swaps in the computed
// response. At most one response is pending at a time.
type Simulator struct {
	sched   loop.Scheduler
	delay   time.Duration
	now     func() time.Time
	gen     uint64
	pending *pendingResponse
}

type pendingResponse struct {
	gen    uint64
	cancel context.CancelFunc
	timer  loop.Timer
}

// NewSimulator builds a simulator scheduling on sched.
func NewSimulator(sched loop.Scheduler, delay time.Duration, now func() time.Time) *Simulator {
	if delay <= 0 {
		delay = DefaultThinkDelay
	}
	if now == nil {
		now = time.Now
	}
	return &Simulator{sched: sched, delay: delay, now: now}
}

// Delay returns the configured think-delay.
func (s *Simulator) Delay() time.Duration { return s.delay }

// Pending reports whether a response is scheduled.
func (s *Simulator) Pending() bool { return s.pending != nil }

// Start appends a placeholder to t and, once the delay elapses, replaces it with
// resolve's entry and hands that entry to done. Cancelling parent, calling Cancel, or
// starting another response turns the scheduled completion into a no-op, even when
// its callback has already been queued.
func (s *Simulator) Start(parent context.Context, t *Transcript, resolve func() Entry, done func(Entry)) {
	s.Cancel()

	ctx, cancel := context.WithCancel(parent)
	s.gen++
	gen := s.gen

	t.Append(Entry{Source: SourcePlaceholder, Kind: KindReviewing, Message: ReviewingMessage, At: s.now()})

	p := &pendingResponse{gen: gen, cancel: cancel}
	s.pending = p
	p.timer = s.sched.AfterFunc(s.delay, func() {
		if ctx.Err() != nil || s.pending == nil || s.pending.gen != gen {
			return
		}
		s.pending = nil
		cancel()
		e := resolve()
		if e.At.IsZero() {
			e.At = s.now()
		}
		t.ReplacePlaceholder(e)
		if done != nil {
			done(e)
		}
	})
}

// Cancel revokes the pending response, if any, and reports whether there was one.
func (s *Simulator) Cancel() bool {
	p := s.pending
	if p == nil {
		return false
	}
	s.pending = nil
	p.cancel()
	if p.timer != nil {
		p.timer.Stop()
	}
	metrics.ThinkCancellations.Inc()
	return true
}

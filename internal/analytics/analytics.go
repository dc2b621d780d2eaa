// Package analytics records negotiation transitions for collaborators outside the core.
// Delivery is best-effort: nothing here can block or fail a negotiation.
package analytics

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"haggle-go/internal/config"
	"haggle-go/internal/metrics"
	"haggle-go/internal/negotiation"
)

// Sink persists or forwards a transition.
type Sink interface {
	Record(tr negotiation.Transition) error
}

// Async adapts a Sink into a non-blocking negotiation.Notifier. Transitions are queued
// and written on a background goroutine; when the queue is full they are dropped.
type Async struct {
	sink  Sink
	log   zerolog.Logger
	mu    sync.RWMutex
	queue chan negotiation.Transition
	done  chan struct{}

	closed  bool
	dropped atomic.Int64
}

// NewAsync starts the delivery goroutine.
func NewAsync(sink Sink, size int, log zerolog.Logger) *Async {
	if size <= 0 {
		size = 64
	}
	a := &Async{
		sink:  sink,
		log:   log,
		queue: make(chan negotiation.Transition, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify enqueues tr without blocking.
func (a *Async) Notify(tr negotiation.Transition) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- tr:
	default:
		a.dropped.Add(1)
		metrics.AnalyticsDropped.Inc()
	}
}

// Dropped reports how many transitions were discarded on a full queue.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

func (a *Async) run() {
	defer close(a.done)
	for tr := range a.queue {
		if err := a.sink.Record(tr); err != nil {
			a.log.Warn().Err(err).Str("event", tr.Event).Str("session", tr.SessionID).Msg("analytics record failed")
		}
	}
}

// Close drains queued transitions and closes the sink when it supports closing.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	if c, ok := a.sink.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Open builds the sink selected by cfg. It returns a nil Sink for "none".
func Open(cfg config.Analytics, log zerolog.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", "none":
		return nil, nil
	case "log":
		return NewLogSink(log), nil
	case "memory":
		limit := cfg.MemoryLimit
		if limit <= 0 {
			limit = DefaultMemoryLimit
		}
		return NewLedger(limit), nil
	case "jsonl":
		sink, err := NewJSONLSink(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open jsonl sink: %w", err)
		}
		return sink, nil
	case "sql":
		sink, err := OpenSQLSink(cfg.Dialect, cfg.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("open sql sink: %w", err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown analytics sink %q", cfg.Sink)
	}
}

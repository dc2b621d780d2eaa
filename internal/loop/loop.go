// Package loop serializes session work onto a single goroutine and schedules delayed callbacks onto it.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned when work is posted to a loop that is no longer running.
var ErrStopped = errors.New("loop stopped")

// Timer is the cancellation handle of a scheduled callback.
type Timer interface {
	// Stop prevents the callback from being scheduled. It reports false when the
	// callback already fired or was already stopped.
	Stop() bool
}

// Scheduler runs fn after at least d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// PostFunc hands a callback to the goroutine that owns session state.
type PostFunc func(fn func())

type deferred struct{ post PostFunc }

// Deferred returns a Scheduler whose timers fire on the runtime timer goroutine and
// hand the callback to post. A timer stopped after it fired may still have its
// callback queued; callers guard stale work themselves.
func Deferred(post PostFunc) Scheduler { return deferred{post: post} }

func (d deferred) AfterFunc(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, func() { d.post(fn) })
}

// Loop executes posted callbacks one at a time, in arrival order, on the goroutine
// that calls Run.
type Loop struct {
	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

const defaultQueueSize = 256

// New builds a loop with the given queue capacity.
func New(capacity int) *Loop {
	if capacity <= 0 {
		capacity = defaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and reports false once the loop
// has stopped. Never call Post from inside a callback with a full queue.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do posts fn and waits for it to finish on the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc schedules fn to run on the loop goroutine after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return Deferred(func(f func()) { l.Post(f) }).AfterFunc(d, fn)
}

// Run drains the queue until ctx is cancelled. Callbacks still queued at that point
// are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) stop() {
	l.closeOnce.Do(func() { close(l.done) })
}

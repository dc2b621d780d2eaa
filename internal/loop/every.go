package loop

import (
	"sync"
	"time"
)

type repeating struct {
	s       Scheduler
	every   time.Duration
	fn      func()
	mu      sync.Mutex
	timer   Timer
	stopped bool
}

// Every runs fn each interval on s until the returned stop function is called.
// Stop is idempotent and guarantees fn is not invoked afterwards.
func Every(s Scheduler, interval time.Duration, fn func()) (stop func()) {
	r := &repeating{s: s, every: interval, fn: fn}
	r.arm()
	return r.stop
}

func (r *repeating) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.timer = r.s.AfterFunc(r.every, r.fire)
}

func (r *repeating) fire() {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}
	r.fn()
	r.arm()
}

func (r *repeating) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

// Package overlay owns one negotiation per page view: it arms the engagement heartbeat,
// feeds ambient signals to the reveal trigger and opens the negotiation when it fires.
package overlay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"haggle-go/internal/engagement"
	"haggle-go/internal/loop"
	"haggle-go/internal/negotiation"
	"haggle-go/internal/signal"
)

// DefaultTickInterval is the engagement heartbeat period.
const DefaultTickInterval = time.Second

// Config gathers everything needed to build an Overlay.
type Config struct {
	Enabled      bool
	Thresholds   engagement.Thresholds
	TickInterval time.Duration
	Session      negotiation.Config
	Now          func() time.Time
}

// Overlay couples a Trigger and a Machine on a single scheduler. Like the Machine it
// must only be touched from the goroutine that runs the scheduler's callbacks.
type Overlay struct {
	cfg      Config
	sched    loop.Scheduler
	log      zerolog.Logger
	trigger  *engagement.Trigger
	machine  *negotiation.Machine
	stopTick func()
	reveal   *engagement.Reveal
	onReveal []func(engagement.Reveal)
	closed   bool
}

// New builds an Overlay. An empty session ID is replaced by a fresh ULID.
func New(ctx context.Context, cfg Config, sched loop.Scheduler, log zerolog.Logger, opts ...negotiation.Option) (*Overlay, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Session.SessionID == "" {
		cfg.Session.SessionID = NewSessionID()
	}
	opts = append([]negotiation.Option{negotiation.WithClock(cfg.Now)}, opts...)
	machine, err := negotiation.NewMachine(ctx, cfg.Session, sched, log, opts...)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("session", cfg.Session.SessionID).Logger()
	return &Overlay{
		cfg:     cfg,
		sched:   sched,
		log:     log,
		trigger: engagement.NewTrigger(cfg.Enabled, cfg.Thresholds, log),
		machine: machine,
	}, nil
}

// SessionID returns the identifier shared by logs, snapshots and notifications.
func (o *Overlay) SessionID() string { return o.cfg.Session.SessionID }

// Machine exposes the negotiation for commands and snapshots.
func (o *Overlay) Machine() *negotiation.Machine { return o.machine }

// Trigger exposes the engagement counters.
func (o *Overlay) Trigger() *engagement.Trigger { return o.trigger }

// Revealed returns the reveal that opened the negotiation, if any.
func (o *Overlay) Revealed() (engagement.Reveal, bool) {
	if o.reveal == nil {
		return engagement.Reveal{}, false
	}
	return *o.reveal, true
}

// OnReveal registers fn to run once the overlay is revealed.
func (o *Overlay) OnReveal(fn func(engagement.Reveal)) {
	o.onReveal = append(o.onReveal, fn)
}

// Start arms the heartbeat. A disabled overlay never ticks.
func (o *Overlay) Start() {
	if o.closed || o.stopTick != nil || !o.cfg.Enabled {
		return
	}
	o.stopTick = loop.Every(o.sched, o.cfg.TickInterval, func() {
		o.Observe(signal.Tick(o.cfg.Now()))
	})
	o.log.Debug().Dur("interval", o.cfg.TickInterval).Msg("engagement heartbeat armed")
}

// Observe feeds ev to the trigger and reveals the negotiation the first time it fires.
func (o *Overlay) Observe(ev signal.Event) bool {
	if o.closed || o.machine.State().Terminal() {
		return false
	}
	rv := o.trigger.Observe(ev)
	if rv == nil {
		return false
	}
	o.reveal = rv
	o.halt()
	o.machine.Reveal()
	for _, fn := range o.onReveal {
		fn(*rv)
	}
	return true
}

// Pump forwards events from src onto the session goroutine via post until src closes
// or ctx ends.
func (o *Overlay) Pump(ctx context.Context, src signal.Source, post loop.PostFunc) {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			post(func() { o.Observe(ev) })
		}
	}
}

// Close stops the heartbeat and disposes the negotiation.
func (o *Overlay) Close() {
	if o.closed {
		return
	}
	o.closed = true
	o.halt()
	o.machine.Close()
}

func (o *Overlay) halt() {
	if o.stopTick != nil {
		o.stopTick()
		o.stopTick = nil
	}
}

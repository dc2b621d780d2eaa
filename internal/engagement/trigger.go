// Package engagement decides the single moment a negotiation overlay is revealed to a visitor.
package engagement

import (
	"github.com/rs/zerolog"

	"haggle-go/internal/metrics"
	"haggle-go/internal/signal"
)

// Reason names the condition that caused a reveal.
type Reason string

const (
	ReasonExitIntent Reason = "exit_intent"
	ReasonDwell      Reason = "dwell"
	ReasonScroll     Reason = "scroll"
)

const (
	// DefaultDwellSeconds is the dwell time that reveals the overlay for a visitor who has not clicked a CTA.
	DefaultDwellSeconds = 15
	// DefaultScrollReversals is the number of scroll direction changes that reveals the overlay.
	DefaultScrollReversals = 4
)

// Thresholds tunes the reveal heuristics.
type Thresholds struct {
	DwellSeconds    int
	ScrollReversals int
}

// Signals holds the ambient counters observed so far.
type Signals struct {
	ElapsedSeconds  int
	ScrollReversals int
	ExitIntent      bool
	CTAClicked      bool
}

// Reveal is emitted exactly once per session, when the trigger latches.
type Reveal struct {
	Reason  Reason
	Signals Signals
}

// Trigger accumulates engagement signals and latches on the first qualifying moment.
// It is driven from a single goroutine, like the rest of a session.
type Trigger struct {
	enabled    bool
	thresholds Thresholds
	signals    Signals
	lastDir    int
	latched    bool
	log        zerolog.Logger
}

// NewTrigger builds a trigger. A disabled trigger keeps counting but never reveals.
func NewTrigger(enabled bool, thresholds Thresholds, log zerolog.Logger) *Trigger {
	if thresholds.DwellSeconds <= 0 {
		thresholds.DwellSeconds = DefaultDwellSeconds
	}
	if thresholds.ScrollReversals <= 0 {
		thresholds.ScrollReversals = DefaultScrollReversals
	}
	return &Trigger{enabled: enabled, thresholds: thresholds, log: log}
}

// Observe folds ev into the counters and returns a Reveal the first time the reveal
// condition holds. Every later call returns nil.
func (t *Trigger) Observe(ev signal.Event) *Reveal {
	switch ev.Kind {
	case signal.KindTick:
		t.signals.ElapsedSeconds++
	case signal.KindScroll:
		t.observeScroll(ev.Direction)
	case signal.KindPointer:
		if ev.ExitIntent() {
			t.signals.ExitIntent = true
		}
	case signal.KindCTAClick:
		t.signals.CTAClicked = true
	default:
		return nil
	}
	return t.evaluate()
}

// observeScroll counts every raw direction change; there is no jitter threshold.
func (t *Trigger) observeScroll(dir int) {
	switch {
	case dir > 0:
		dir = signal.ScrollDown
	case dir < 0:
		dir = signal.ScrollUp
	default:
		return
	}
	if t.lastDir != 0 && dir != t.lastDir {
		t.signals.ScrollReversals++
	}
	t.lastDir = dir
}

func (t *Trigger) evaluate() *Reveal {
	if t.latched || !t.enabled {
		return nil
	}
	reason, ok := t.reason()
	if !ok {
		return nil
	}
	t.latched = true
	metrics.RevealsTotal.WithLabelValues(string(reason)).Inc()
	t.log.Info().
		Str("reason", string(reason)).
		Int("elapsed_s", t.signals.ElapsedSeconds).
		Int("scroll_reversals", t.signals.ScrollReversals).
		Msg("overlay reveal")
	return &Reveal{Reason: reason, Signals: t.signals}
}

func (t *Trigger) reason() (Reason, bool) {
	s := t.signals
	if s.ExitIntent {
		return ReasonExitIntent, true
	}
	if s.CTAClicked {
		return "", false
	}
	if s.ElapsedSeconds >= t.thresholds.DwellSeconds {
		return ReasonDwell, true
	}
	if s.ScrollReversals >= t.thresholds.ScrollReversals {
		return ReasonScroll, true
	}
	return "", false
}

// Latched reports whether the trigger already revealed.
func (t *Trigger) Latched() bool { return t.latched }

// Enabled reports whether the trigger is armed.
func (t *Trigger) Enabled() bool { return t.enabled }

// Signals returns the counters observed so far.
func (t *Trigger) Signals() Signals { return t.signals }

// Reset clears counters and the latch for a new page view.
func (t *Trigger) Reset() {
	t.signals = Signals{}
	t.lastDir = 0
	t.latched = false
}

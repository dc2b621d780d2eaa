package engagement

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"haggle-go/internal/signal"
)

func newTestTrigger() *Trigger {
	return NewTrigger(true, Thresholds{}, zerolog.Nop())
}

func TestDwellReveal(t *testing.T) {
	trig := newTestTrigger()
	now := time.Now()
	for i := 1; i < DefaultDwellSeconds; i++ {
		if rv := trig.Observe(signal.Tick(now)); rv != nil {
			t.Fatalf("unexpected reveal after %d ticks", i)
		}
	}
	rv := trig.Observe(signal.Tick(now))
	if rv == nil {
		t.Fatalf("expected reveal at %d seconds", DefaultDwellSeconds)
	}
	if rv.Reason != ReasonDwell {
		t.Fatalf("expected dwell reason, got %s", rv.Reason)
	}
	if rv.Signals.ElapsedSeconds != DefaultDwellSeconds {
		t.Fatalf("unexpected elapsed seconds %d", rv.Signals.ElapsedSeconds)
	}
}

func TestScrollReversalReveal(t *testing.T) {
	trig := newTestTrigger()
	now := time.Now()
	dirs := []int{signal.ScrollDown, signal.ScrollDown, signal.ScrollUp, 0, signal.ScrollDown, signal.ScrollUp}
	for _, d := range dirs {
		if rv := trig.Observe(signal.Scroll(d, now)); rv != nil {
			t.Fatalf("unexpected reveal with %d reversals", trig.Signals().ScrollReversals)
		}
	}
	if got := trig.Signals().ScrollReversals; got != 3 {
		t.Fatalf("expected 3 reversals, got %d", got)
	}
	rv := trig.Observe(signal.Scroll(signal.ScrollDown, now))
	if rv == nil || rv.Reason != ReasonScroll {
		t.Fatalf("expected scroll reveal, got %+v", rv)
	}
}

func TestFirstScrollSampleIsNotAReversal(t *testing.T) {
	trig := newTestTrigger()
	trig.Observe(signal.Scroll(signal.ScrollUp, time.Now()))
	if got := trig.Signals().ScrollReversals; got != 0 {
		t.Fatalf("expected no reversal on first sample, got %d", got)
	}
}

func TestExitIntentOverridesCTA(t *testing.T) {
	trig := newTestTrigger()
	now := time.Now()
	trig.Observe(signal.CTAClick(now))
	for i := 0; i < 30; i++ {
		if rv := trig.Observe(signal.Tick(now)); rv != nil {
			t.Fatalf("CTA click should suppress dwell reveal")
		}
	}
	if rv := trig.Observe(signal.Pointer(200, now)); rv != nil {
		t.Fatalf("pointer inside viewport should not reveal")
	}
	rv := trig.Observe(signal.Pointer(0, now))
	if rv == nil || rv.Reason != ReasonExitIntent {
		t.Fatalf("expected exit intent reveal, got %+v", rv)
	}
}

func TestCTASuppressesScrollReveal(t *testing.T) {
	trig := newTestTrigger()
	now := time.Now()
	trig.Observe(signal.CTAClick(now))
	dir := signal.ScrollDown
	for i := 0; i < 10; i++ {
		if rv := trig.Observe(signal.Scroll(dir, now)); rv != nil {
			t.Fatalf("CTA click should suppress scroll reveal")
		}
		dir = -dir
	}
}

func TestRevealLatchesOnce(t *testing.T) {
	trig := NewTrigger(true, Thresholds{DwellSeconds: 1, ScrollReversals: 1}, zerolog.Nop())
	now := time.Now()
	trig.Observe(signal.Scroll(signal.ScrollDown, now))
	trig.Observe(signal.Pointer(-1, now))
	if !trig.Latched() {
		t.Fatalf("expected exit intent to latch")
	}

	reveals := 0
	events := []signal.Event{
		signal.Scroll(signal.ScrollUp, now),
		signal.Tick(now),
		signal.Pointer(-5, now),
	}
	for _, ev := range events {
		if trig.Observe(ev) != nil {
			reveals++
		}
	}
	if reveals != 0 {
		t.Fatalf("expected no reveal after latch, got %d", reveals)
	}
}

func TestSimultaneousConditionsRevealOnce(t *testing.T) {
	trig := NewTrigger(true, Thresholds{DwellSeconds: 1, ScrollReversals: 1}, zerolog.Nop())
	now := time.Now()
	trig.Observe(signal.Scroll(signal.ScrollDown, now))
	trig.signals.ScrollReversals = 1
	trig.signals.ExitIntent = true

	reveals := 0
	for i := 0; i < 3; i++ {
		if trig.Observe(signal.Tick(now)) != nil {
			reveals++
		}
	}
	if reveals != 1 {
		t.Fatalf("expected exactly one reveal, got %d", reveals)
	}
}

func TestDisabledTriggerNeverReveals(t *testing.T) {
	trig := NewTrigger(false, Thresholds{}, zerolog.Nop())
	now := time.Now()
	for i := 0; i < 60; i++ {
		if trig.Observe(signal.Tick(now)) != nil {
			t.Fatalf("disabled trigger revealed")
		}
	}
	if trig.Observe(signal.Pointer(0, now)) != nil {
		t.Fatalf("disabled trigger revealed on exit intent")
	}
	if trig.Signals().ElapsedSeconds != 60 {
		t.Fatalf("disabled trigger should still count, got %d", trig.Signals().ElapsedSeconds)
	}
}

func TestResetRearms(t *testing.T) {
	trig := newTestTrigger()
	trig.Observe(signal.Pointer(0, time.Now()))
	trig.Reset()
	if trig.Latched() {
		t.Fatalf("expected latch cleared")
	}
	if (trig.Signals() != Signals{}) {
		t.Fatalf("expected counters cleared, got %+v", trig.Signals())
	}
	if trig.Observe(signal.Pointer(0, time.Now())) == nil {
		t.Fatalf("expected reveal after reset")
	}
}

func TestRevealIsLogged(t *testing.T) {
	var buf bytes.Buffer
	trig := NewTrigger(true, Thresholds{}, zerolog.New(&buf))
	trig.Observe(signal.Pointer(0, time.Now()))
	if !strings.Contains(buf.String(), "exit_intent") {
		t.Fatalf("expected reveal reason in log, got %s", buf.String())
	}
}

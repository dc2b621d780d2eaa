package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"haggle-go/internal/loop"
	"haggle-go/internal/negotiation"
	"haggle-go/internal/overlay"
)

func newTestModel(t *testing.T) (model, *loop.Manual) {
	t.Helper()
	clock := loop.NewManual(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	ov, err := overlay.New(context.Background(), overlay.Config{
		Enabled: true,
		Now:     clock.Now,
		Session: negotiation.Config{BasePrice: decimal.NewFromInt(100_000_000)},
	}, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("overlay.New returned error: %v", err)
	}
	t.Cleanup(ov.Close)
	ov.Start()
	return newModel(ov), clock
}

func press(t *testing.T, m model, keys ...tea.KeyMsg) model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(model)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestExitKeyRevealsOverlay(t *testing.T) {
	m, _ := newTestModel(t)
	if !strings.Contains(m.View(), "Product page") {
		t.Fatalf("expected page view before reveal")
	}
	m = press(t, m, runes("x"))
	if m.ov.Machine().State() != negotiation.StateAwaitingAction {
		t.Fatalf("expected reveal on exit key, got %s", m.ov.Machine().State())
	}
	if !strings.Contains(m.View(), "100,000,000") {
		t.Fatalf("expected opening offer in view:\n%s", m.View())
	}
}

func TestCounterFlowInTerminal(t *testing.T) {
	m, clock := newTestModel(t)
	m = press(t, m, runes("x"), runes("n"))
	if m.ov.Machine().State() != negotiation.StateBidding {
		t.Fatalf("expected bidding, got %s", m.ov.Machine().State())
	}
	if m.input.Value() != "101000000" {
		t.Fatalf("expected seeded bid 101000000, got %q", m.input.Value())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "102000000" {
		t.Fatalf("expected raised bid 102000000, got %q", m.input.Value())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ov.Machine().State() != negotiation.StateThinking {
		t.Fatalf("expected thinking after submit, got %s", m.ov.Machine().State())
	}
	if !strings.Contains(m.View(), negotiation.ReviewingMessage) {
		t.Fatalf("expected reviewing placeholder in view")
	}

	clock.Advance(negotiation.DefaultThinkDelay)
	if m.ov.Machine().State() != negotiation.StateAgreed {
		t.Fatalf("expected agreement on optimal bid, got %s", m.ov.Machine().State())
	}
	if !strings.Contains(m.View(), "Deal at 102,000,000") {
		t.Fatalf("expected outcome in view:\n%s", m.View())
	}
}

func TestEscapeCancelsCounter(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, runes("x"), runes("n"), tea.KeyMsg{Type: tea.KeyEsc})
	if m.ov.Machine().State() != negotiation.StateAwaitingAction {
		t.Fatalf("expected awaiting_action after esc, got %s", m.ov.Machine().State())
	}
	if m.input.Focused() {
		t.Fatalf("expected input blurred")
	}
}

func TestRunMsgExecutesCallback(t *testing.T) {
	m, _ := newTestModel(t)
	ran := false
	next, _ := m.Update(runMsg{fn: func() { ran = true }})
	if !ran || next == nil {
		t.Fatalf("expected runMsg callback to execute inside Update")
	}
}

func TestDwellRevealThroughManualClock(t *testing.T) {
	m, clock := newTestModel(t)
	clock.Advance(15 * time.Second)
	if m.ov.Machine().State() != negotiation.StateAwaitingAction {
		t.Fatalf("expected dwell reveal, got %s", m.ov.Machine().State())
	}
	m = press(t, m, runes("d"))
	if m.ov.Machine().State() != negotiation.StateDismissed {
		t.Fatalf("expected dismiss, got %s", m.ov.Machine().State())
	}
	if !strings.Contains(m.View(), "Overlay closed") {
		t.Fatalf("expected closed notice in view")
	}
}

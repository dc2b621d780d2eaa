// Package negotiation runs a bounded, turn-based price negotiation between a visitor and a
// simulated counterparty. A Machine owns all session state and must be driven from a
// single goroutine; see package loop.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"haggle-go/internal/loop"
	"haggle-go/internal/metrics"
	"haggle-go/internal/pricing"
)

// DefaultMaxRounds caps client bids per session.
const DefaultMaxRounds = 3

// ErrInvalidBasePrice is returned when the base price is not positive.
var ErrInvalidBasePrice = errors.New("base price must be positive")

// State tags the session's position in the negotiation.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingAction State = "awaiting_action"
	StateBidding        State = "bidding"
	StateThinking       State = "thinking"
	StateAgreed         State = "agreed"
	StateDismissed      State = "dismissed"
)

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool { return s == StateAgreed || s == StateDismissed }

// Config describes one session.
type Config struct {
	SessionID  string
	DealID     string // opaque, passed through to notifications untouched
	BasePrice  decimal.Decimal
	MaxRounds  int
	ThinkDelay time.Duration
	BidStep    decimal.Decimal // zero derives 1% of the base price
	Bands      pricing.Bands   // zero value uses pricing.DefaultBands
}

// Transition is emitted to the Notifier after every state change.
type Transition struct {
	SessionID string          `json:"session_id"`
	DealID    string          `json:"deal_id,omitempty"`
	Event     string          `json:"event"`
	From      State           `json:"from"`
	To        State           `json:"to"`
	Round     int             `json:"round"`
	Amount    decimal.Decimal `json:"amount"`
	Zone      pricing.Zone    `json:"zone,omitempty"`
	At        time.Time       `json:"at"`
}

// Notifier receives best-effort transition notifications. Implementations must not block.
type Notifier interface {
	Notify(Transition)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Transition) {}

// Snapshot is a read-only view of the session for render layers.
type Snapshot struct {
	SessionID  string          `json:"session_id"`
	DealID     string          `json:"deal_id,omitempty"`
	State      State           `json:"state"`
	Terminal   bool            `json:"terminal"`
	Latched    bool            `json:"latched"`
	BasePrice  decimal.Decimal `json:"base_price"`
	CurrentBid decimal.Decimal `json:"current_bid"`
	MinBid     decimal.Decimal `json:"min_bid"`
	Offer      decimal.Decimal `json:"offer"`
	Agreed     decimal.Decimal `json:"agreed"`
	Round      int             `json:"round"`
	MaxRounds  int             `json:"max_rounds"`
	CanCounter bool            `json:"can_counter"`
	Transcript []Entry         `json:"transcript"`
}

// Option configures Machine construction parameters.
type Option func(*Machine)

// WithNotifier routes transition notifications to n.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock overrides the timestamp source for entries and notifications.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// Machine is the negotiation state machine.
type Machine struct {
	cfg        Config
	bands      pricing.Bands
	step       decimal.Decimal
	log        zerolog.Logger
	notifier   Notifier
	now        func() time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	sim        *Simulator
	transcript *Transcript

	state      State
	round      int
	currentBid decimal.Decimal
	offer      decimal.Decimal
	agreed     decimal.Decimal
	latched    bool
	closed     bool

	subscribers map[int]func(Snapshot)
	nextSub     int
}

// NewMachine validates cfg and returns an Idle machine. The session ends when ctx is
// cancelled or Close is called; either revokes any pending response.
func NewMachine(ctx context.Context, cfg Config, sched loop.Scheduler, log zerolog.Logger, opts ...Option) (*Machine, error) {
	if !cfg.BasePrice.IsPositive() {
		return nil, fmt.Errorf("new machine: %w", ErrInvalidBasePrice)
	}
	if sched == nil {
		return nil, errors.New("new machine: nil scheduler")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	bands := cfg.Bands
	if bands.Optimal.IsZero() && bands.Minimum.IsZero() && bands.Fallback.IsZero() {
		bands = pricing.DefaultBands()
	}
	if err := bands.Validate(); err != nil {
		return nil, fmt.Errorf("new machine: %w", err)
	}
	step := cfg.BidStep
	if !step.IsPositive() {
		step = DefaultBidStep(cfg.BasePrice)
	}

	m := &Machine{
		cfg:         cfg,
		bands:       bands,
		step:        step,
		log:         log.With().Str("session", cfg.SessionID).Logger(),
		notifier:    nopNotifier{},
		now:         time.Now,
		transcript:  NewTranscript(2*cfg.MaxRounds + 2),
		state:       StateIdle,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.sim = NewSimulator(sched, cfg.ThinkDelay, m.now)
	return m, nil
}

// Subscribe registers fn to receive a snapshot after every change. Snapshots share
// their transcript slice between subscribers and must be treated as read-only.
func (m *Machine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	return func() { delete(m.subscribers, id) }
}

// Transcript exposes the session log for read-only consumers.
func (m *Machine) Transcript() *Transcript { return m.transcript }

// State returns the current state tag.
func (m *Machine) State() State { return m.state }

// Snapshot returns a read-only copy of the session.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		SessionID:  m.cfg.SessionID,
		DealID:     m.cfg.DealID,
		State:      m.state,
		Terminal:   m.state.Terminal(),
		Latched:    m.latched,
		BasePrice:  m.cfg.BasePrice,
		CurrentBid: m.currentBid,
		MinBid:     m.minBid(),
		Offer:      m.offer,
		Agreed:     m.agreed,
		Round:      m.round,
		MaxRounds:  m.cfg.MaxRounds,
		CanCounter: m.state == StateAwaitingAction && m.round < m.cfg.MaxRounds,
		Transcript: m.transcript.Entries(),
	}
}

// Reveal opens the session with the counterparty's initial offer at the base price.
func (m *Machine) Reveal() bool {
	if !m.live() || m.state != StateIdle {
		return false
	}
	m.latched = true
	m.round = 0
	m.offer = m.cfg.BasePrice
	m.transcript.Append(Entry{
		Source:  SourceCounterparty,
		Kind:    KindOffer,
		Amount:  m.offer,
		Message: fmt.Sprintf("The price for this offer is %s. Accept it, or propose your own price.", pricing.FormatAmount(m.offer)),
		At:      m.now(),
	})
	m.transition("reveal", StateAwaitingAction, m.offer, "")
	return true
}

// StartCounter exposes the bid editor, seeded above the base price.
func (m *Machine) StartCounter() bool {
	if !m.live() || m.state != StateAwaitingAction || m.round >= m.cfg.MaxRounds {
		return false
	}
	if !m.currentBid.GreaterThan(m.cfg.BasePrice) {
		m.currentBid = m.minBid()
	}
	m.transition("start_counter", StateBidding, m.currentBid, "")
	return true
}

// CancelCounter hides the bid editor without submitting.
func (m *Machine) CancelCounter() bool {
	if !m.live() || m.state != StateBidding {
		return false
	}
	m.transition("cancel_counter", StateAwaitingAction, m.currentBid, "")
	return true
}

// AdjustBid moves the pending bid by steps bid increments, never below the minimum valid bid.
func (m *Machine) AdjustBid(steps int) bool {
	if !m.live() || m.state != StateBidding || steps == 0 {
		return false
	}
	m.currentBid = m.clampBid(m.currentBid.Add(m.step.Mul(decimal.NewFromInt(int64(steps)))))
	m.publish()
	return true
}

// SetBidText replaces the pending bid with manually edited text. Text that does not
// parse to an amount above the base price is clamped to the minimum valid bid.
func (m *Machine) SetBidText(text string) (decimal.Decimal, bool) {
	if !m.live() || m.state != StateBidding {
		return decimal.Zero, false
	}
	amount, ok := ParseAmount(text)
	if !ok {
		amount = m.minBid()
	}
	m.currentBid = m.clampBid(amount)
	m.publish()
	return m.currentBid, true
}

// SubmitCurrentBid submits the bid held by the editor.
func (m *Machine) SubmitCurrentBid() bool { return m.SubmitBid(m.currentBid) }

// SubmitBid proposes amount. Bids at or below the base price, bids outside the
// Bidding state and bids past the round limit are ignored.
func (m *Machine) SubmitBid(amount decimal.Decimal) bool {
	if !m.live() || m.state != StateBidding || m.round >= m.cfg.MaxRounds {
		return false
	}
	if !amount.GreaterThan(m.cfg.BasePrice) {
		return false
	}
	m.round++
	m.currentBid = amount
	m.transcript.Append(Entry{
		Source:  SourceClient,
		Kind:    KindBid,
		Amount:  amount,
		Message: fmt.Sprintf("I'd like to offer %s.", pricing.FormatAmount(amount)),
		At:      m.now(),
	})
	final := m.round == m.cfg.MaxRounds
	var res pricing.Result
	m.sim.Start(m.ctx, m.transcript, func() Entry {
		res = m.bands.Counter(amount, m.cfg.BasePrice, final)
		kind := KindCounter
		switch {
		case res.Accepted():
			kind = KindAgreed
		case res.Final:
			kind = KindFinal
		}
		return Entry{Source: SourceCounterparty, Kind: kind, Amount: res.Amount, Message: res.Message}
	}, func(Entry) { m.applyCounter(res) })
	m.transition("submit_bid", StateThinking, amount, "")
	return true
}

func (m *Machine) applyCounter(res pricing.Result) {
	metrics.BidsTotal.WithLabelValues(string(res.Zone)).Inc()
	m.offer = res.Amount
	if res.Accepted() {
		m.agreed = res.Amount
		m.transition("agreed", StateAgreed, res.Amount, res.Zone)
		return
	}
	m.transition("counter", StateAwaitingAction, res.Amount, res.Zone)
}

// Accept takes the offer on the table. Agreement is confirmed after the think-delay.
func (m *Machine) Accept() bool {
	if !m.live() || m.state != StateAwaitingAction {
		return false
	}
	offer := m.offer
	m.transcript.Append(Entry{
		Source:  SourceClient,
		Kind:    KindAccept,
		Amount:  offer,
		Message: fmt.Sprintf("I accept %s.", pricing.FormatAmount(offer)),
		At:      m.now(),
	})
	m.sim.Start(m.ctx, m.transcript, func() Entry {
		return Entry{
			Source:  SourceCounterparty,
			Kind:    KindAgreed,
			Amount:  offer,
			Message: fmt.Sprintf("Agreed at %s. Thank you!", pricing.FormatAmount(offer)),
		}
	}, func(Entry) {
		m.agreed = offer
		m.transition("agreed", StateAgreed, offer, "")
	})
	m.transition("accept", StateThinking, offer, "")
	return true
}

// Reject declines the offer on the table and ends the session.
func (m *Machine) Reject() bool {
	if !m.live() || m.state != StateAwaitingAction {
		return false
	}
	m.transcript.Append(Entry{
		Source:  SourceClient,
		Kind:    KindReject,
		Message: "No thanks.",
		At:      m.now(),
	})
	m.transition("reject", StateDismissed, decimal.Zero, "")
	return true
}

// Dismiss closes the overlay from any non-terminal state, discarding a pending response.
func (m *Machine) Dismiss() bool {
	if !m.live() {
		return false
	}
	m.transition("dismiss", StateDismissed, decimal.Zero, "")
	return true
}

// Close disposes the session without changing its state. Pending responses never run.
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.sim.Cancel()
	m.cancel()
}

// MinBid is the lowest bid the machine will accept.
func (m *Machine) MinBid() decimal.Decimal { return m.minBid() }

func (m *Machine) minBid() decimal.Decimal { return m.cfg.BasePrice.Add(m.step) }

func (m *Machine) clampBid(v decimal.Decimal) decimal.Decimal {
	if floor := m.minBid(); v.LessThan(floor) {
		return floor
	}
	return v
}

func (m *Machine) live() bool {
	return !m.closed && !m.state.Terminal()
}

func (m *Machine) transition(event string, to State, amount decimal.Decimal, zone pricing.Zone) {
	from := m.state
	m.state = to
	if to.Terminal() {
		m.sim.Cancel()
		m.cancel()
		metrics.SessionsTotal.WithLabelValues(event).Inc()
	}
	m.log.Debug().
		Str("event", event).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("round", m.round).
		Str("amount", amount.String()).
		Msg("negotiation transition")
	m.notifier.Notify(Transition{
		SessionID: m.cfg.SessionID,
		DealID:    m.cfg.DealID,
		Event:     event,
		From:      from,
		To:        to,
		Round:     m.round,
		Amount:    amount,
		Zone:      zone,
		At:        m.now(),
	})
	m.publish()
}

func (m *Machine) publish() {
	if len(m.subscribers) == 0 {
		return
	}
	snap := m.Snapshot()
	for _, fn := range m.subscribers {
		fn(snap)
	}
}

package overlay

import (
	"errors"
	"fmt"
	"time"

	"haggle-go/internal/negotiation"
	"haggle-go/internal/signal"
)

// ErrUnknownCommand is returned for command types the overlay does not understand.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a user or page event addressed to the overlay by a render layer.
type Command struct {
	Type      string  `json:"type"`
	Direction int     `json:"direction,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Steps     int     `json:"steps,omitempty"`
	Text      string  `json:"text,omitempty"`
	Amount    string  `json:"amount,omitempty"`
}

// Command types.
const (
	CmdScroll        = "scroll"
	CmdPointer       = "pointer"
	CmdCTA           = "cta"
	CmdStartCounter  = "start_counter"
	CmdAdjust        = "adjust"
	CmdBidText       = "bid_text"
	CmdSubmit        = "submit"
	CmdCancelCounter = "cancel_counter"
	CmdAccept        = "accept"
	CmdReject        = "reject"
	CmdDismiss       = "dismiss"
)

// Apply routes cmd to the trigger or the machine. It reports whether anything changed;
// a rejected transition is not an error.
func (o *Overlay) Apply(cmd Command) (bool, error) {
	now := o.cfg.Now()
	m := o.machine
	switch cmd.Type {
	case CmdScroll:
		return o.Observe(signal.Scroll(cmd.Direction, now)), nil
	case CmdPointer:
		return o.Observe(signal.Pointer(cmd.Y, now)), nil
	case CmdCTA:
		return o.Observe(signal.CTAClick(now)), nil
	case CmdStartCounter:
		return m.StartCounter(), nil
	case CmdAdjust:
		return m.AdjustBid(cmd.Steps), nil
	case CmdBidText:
		_, ok := m.SetBidText(cmd.Text)
		return ok, nil
	case CmdSubmit:
		if cmd.Amount == "" {
			return m.SubmitCurrentBid(), nil
		}
		amount, ok := negotiation.ParseAmount(cmd.Amount)
		if !ok {
			return false, nil
		}
		return m.SubmitBid(amount), nil
	case CmdCancelCounter:
		return m.CancelCounter(), nil
	case CmdAccept:
		return m.Accept(), nil
	case CmdReject:
		return m.Reject(), nil
	case CmdDismiss:
		o.halt()
		return m.Dismiss(), nil
	default:
		return false, fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Type)
	}
}

// Elapsed reports the dwell time observed so far.
func (o *Overlay) Elapsed() time.Duration {
	return time.Duration(o.trigger.Signals().ElapsedSeconds) * o.cfg.TickInterval
}

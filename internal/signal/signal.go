// Package signal standardizes the engagement payloads shared between event sources and the reveal trigger.
package signal

import "time"

// Kind tags which ambient signal an Event carries.
type Kind string

const (
	// KindTick is the 1 Hz dwell-time heartbeat.
	KindTick Kind = "tick"
	// KindScroll carries one scroll-direction sample.
	KindScroll Kind = "scroll"
	// KindPointer carries a pointer-leave coordinate.
	KindPointer Kind = "pointer"
	// KindCTAClick reports that some call-to-action was clicked.
	KindCTAClick Kind = "cta"
)

// Direction of a scroll sample.
const (
	ScrollUp   = -1
	ScrollDown = 1
)

// Event models one ambient signal observed on the page.
type Event struct {
	Kind      Kind
	Direction int     // scroll only: ScrollUp, ScrollDown, 0 for no movement
	Y         float64 // pointer only: viewport y at which the pointer left
	Ts        time.Time
}

// Tick builds a heartbeat event.
func Tick(ts time.Time) Event { return Event{Kind: KindTick, Ts: ts} }

// Scroll builds a scroll sample moving in direction.
func Scroll(direction int, ts time.Time) Event {
	return Event{Kind: KindScroll, Direction: direction, Ts: ts}
}

// Pointer builds a pointer-leave event at viewport height y.
func Pointer(y float64, ts time.Time) Event { return Event{Kind: KindPointer, Y: y, Ts: ts} }

// CTAClick builds a call-to-action click event.
func CTAClick(ts time.Time) Event { return Event{Kind: KindCTAClick, Ts: ts} }

// ExitIntent reports whether a pointer event crossed the top edge of the viewport.
func (e Event) ExitIntent() bool {
	return e.Kind == KindPointer && e.Y <= 0
}

// Source yields engagement events until it is exhausted or ctx ends.
type Source interface {
	Events() <-chan Event
}

// ChanSource adapts a plain channel into a Source.
type ChanSource chan Event

// Events returns the underlying channel.
func (c ChanSource) Events() <-chan Event { return c }

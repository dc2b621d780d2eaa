// Package pricing classifies client proposals against tolerance bands around a base price
// and computes the counterparty's response. Everything here is pure.
package pricing

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Zone classifies a proposal relative to the base price.
type Zone string

const (
	ZoneOptimal    Zone = "optimal"
	ZoneMinimum    Zone = "minimum"
	ZoneOutOfRange Zone = "out_of_range"
)

// Bands holds the multipliers applied to the base price.
type Bands struct {
	Optimal  decimal.Decimal // upper bound of the optimal zone
	Minimum  decimal.Decimal // upper bound of the minimum zone
	Fallback decimal.Decimal // counter quoted for out-of-range proposals
}

// DefaultBands returns the 4% / 8% bands with a 6% fallback counter.
func DefaultBands() Bands {
	return Bands{
		Optimal:  decimal.RequireFromString("1.04"),
		Minimum:  decimal.RequireFromString("1.08"),
		Fallback: decimal.RequireFromString("1.06"),
	}
}

// Validate checks that the bands are ordered above the base price.
func (b Bands) Validate() error {
	one := decimal.NewFromInt(1)
	if !b.Optimal.GreaterThan(one) {
		return fmt.Errorf("optimal band %s must exceed 1", b.Optimal)
	}
	if !b.Minimum.GreaterThan(b.Optimal) {
		return fmt.Errorf("minimum band %s must exceed optimal band %s", b.Minimum, b.Optimal)
	}
	if !b.Fallback.GreaterThan(one) {
		return fmt.Errorf("fallback band %s must exceed 1", b.Fallback)
	}
	return nil
}

// Result is the counterparty's answer to one proposal.
type Result struct {
	Zone    Zone
	Amount  decimal.Decimal
	Final   bool
	Message string
}

// Accepted reports whether the proposal closes the deal.
func (r Result) Accepted() bool { return r.Zone == ZoneOptimal }

// Counter evaluates proposed against base using DefaultBands.
func Counter(proposed, base decimal.Decimal, final bool) Result {
	return DefaultBands().Counter(proposed, base, final)
}

// Classify returns the zone of proposed.
func (b Bands) Classify(proposed, base decimal.Decimal) Zone {
	switch {
	case proposed.LessThanOrEqual(base.Mul(b.Optimal)):
		return ZoneOptimal
	case proposed.LessThanOrEqual(base.Mul(b.Minimum)):
		return ZoneMinimum
	default:
		return ZoneOutOfRange
	}
}

// Counter computes the counter-offer for proposed. final marks the last allowed round;
// it changes the message of a non-optimal answer, never the amount.
func (b Bands) Counter(proposed, base decimal.Decimal, final bool) Result {
	zone := b.Classify(proposed, base)
	res := Result{Zone: zone}
	switch zone {
	case ZoneOptimal:
		res.Amount = proposed
	case ZoneMinimum:
		floor := base.Mul(b.Optimal)
		res.Amount = clamp(floor.Add(proposed).Div(decimal.NewFromInt(2)).Round(0), floor.Ceil(), proposed)
	default:
		res.Amount = base.Mul(b.Fallback).Round(0)
	}
	res.Final = final && zone != ZoneOptimal
	res.Message = message(zone, res.Amount, res.Final)
	return res
}

// clamp keeps a rounded minimum-zone counter inside [lo, hi]. Rounding can only leave
// that range when base×Optimal is fractional; hi wins when the two cross.
func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		v = lo
	}
	if v.GreaterThan(hi) {
		v = hi
	}
	return v
}

func message(zone Zone, amount decimal.Decimal, final bool) string {
	px := FormatAmount(amount)
	switch {
	case zone == ZoneOptimal:
		return fmt.Sprintf("Deal. We accept your offer of %s.", px)
	case zone == ZoneMinimum && final:
		return fmt.Sprintf("Our final offer is %s. This price is not negotiable.", px)
	case zone == ZoneMinimum:
		return fmt.Sprintf("We can't go that high, but we can meet you at %s.", px)
	case final:
		return fmt.Sprintf("That offer is out of our range. Our final, non-negotiable offer is %s.", px)
	default:
		return fmt.Sprintf("That offer is out of our range. The best we can do is %s.", px)
	}
}

// FormatAmount renders a currency amount with thousands separators and at most two
// decimals. Amounts of any magnitude format exactly.
func FormatAmount(d decimal.Decimal) string {
	r := d.Round(2)
	whole := r.Truncate(0)
	out := humanize.BigComma(whole.Abs().BigInt())
	if frac := r.Sub(whole).Abs(); !frac.IsZero() {
		out += strings.TrimPrefix(frac.String(), "0")
	}
	if r.IsNegative() {
		out = "-" + out
	}
	return out
}

package pricing

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

var base = decimal.NewFromInt(100_000_000)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestOptimalZoneReturnsProposal(t *testing.T) {
	for _, p := range []int64{100_000_001, 102_500_000, 104_000_000} {
		res := Counter(d(p), base, false)
		if res.Zone != ZoneOptimal {
			t.Fatalf("%d: expected optimal, got %s", p, res.Zone)
		}
		if !res.Amount.Equal(d(p)) {
			t.Fatalf("%d: expected proposal unchanged, got %s", p, res.Amount)
		}
		if !res.Accepted() {
			t.Fatalf("%d: expected accepted", p)
		}
	}
}

func TestOptimalIgnoresFinalFlag(t *testing.T) {
	res := Counter(d(103_000_000), base, true)
	if res.Final {
		t.Fatalf("optimal proposal should never be flagged final")
	}
}

func TestMinimumZoneSplitsDifference(t *testing.T) {
	lo := base.Mul(DefaultBands().Optimal)
	for _, p := range []int64{104_000_001, 105_000_000, 106_000_000, 107_333_333, 108_000_000} {
		proposed := d(p)
		res := Counter(proposed, base, false)
		if res.Zone != ZoneMinimum {
			t.Fatalf("%d: expected minimum, got %s", p, res.Zone)
		}
		want := lo.Add(proposed).Div(d(2)).Round(0)
		if !res.Amount.Equal(want) {
			t.Fatalf("%d: expected %s, got %s", p, want, res.Amount)
		}
		if res.Amount.LessThan(lo) || res.Amount.GreaterThan(proposed) {
			t.Fatalf("%d: counter %s outside [%s, %s]", p, res.Amount, lo, proposed)
		}
	}
}

func TestOutOfRangeIsFixed(t *testing.T) {
	for _, p := range []int64{108_000_001, 120_000_000, 999_000_000_000} {
		res := Counter(d(p), base, false)
		if res.Zone != ZoneOutOfRange {
			t.Fatalf("%d: expected out of range, got %s", p, res.Zone)
		}
		if !res.Amount.Equal(d(106_000_000)) {
			t.Fatalf("%d: expected 106,000,000 got %s", p, res.Amount)
		}
	}
}

func TestScenarioMinimum(t *testing.T) {
	res := Counter(d(106_000_000), base, false)
	if res.Zone != ZoneMinimum || !res.Amount.Equal(d(105_000_000)) {
		t.Fatalf("expected minimum 105,000,000, got %s %s", res.Zone, res.Amount)
	}
	if !strings.Contains(res.Message, "105,000,000") {
		t.Fatalf("expected formatted amount in message: %s", res.Message)
	}
}

func TestScenarioOutOfRangeMessage(t *testing.T) {
	res := Counter(d(120_000_000), base, false)
	if !strings.Contains(res.Message, "out of our range") {
		t.Fatalf("expected out-of-range message, got %s", res.Message)
	}
	if strings.Contains(res.Message, "final") {
		t.Fatalf("non-final counter flagged as final: %s", res.Message)
	}
}

func TestFinalRoundMessageKeepsAmount(t *testing.T) {
	for _, p := range []int64{106_000_000, 130_000_000} {
		normal := Counter(d(p), base, false)
		final := Counter(d(p), base, true)
		if !final.Final {
			t.Fatalf("%d: expected final flag", p)
		}
		if !final.Amount.Equal(normal.Amount) {
			t.Fatalf("%d: final round changed amount %s -> %s", p, normal.Amount, final.Amount)
		}
		if !strings.Contains(final.Message, "final") || !strings.Contains(final.Message, "negotiable") {
			t.Fatalf("%d: expected non-negotiable message, got %s", p, final.Message)
		}
	}
}

func TestRoundingHalfAwayFromZero(t *testing.T) {
	b := d(1000)
	// optimal edge 1040, proposal 1041 -> (1040 + 1041) / 2 = 1040.5 -> 1041
	res := Counter(d(1041), b, false)
	if !res.Amount.Equal(d(1041)) {
		t.Fatalf("expected half to round up, got %s", res.Amount)
	}
}

func TestCustomBands(t *testing.T) {
	bands := Bands{
		Optimal:  decimal.RequireFromString("1.10"),
		Minimum:  decimal.RequireFromString("1.20"),
		Fallback: decimal.RequireFromString("1.15"),
	}
	if err := bands.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if z := bands.Classify(d(110), d(100)); z != ZoneOptimal {
		t.Fatalf("expected optimal, got %s", z)
	}
	res := bands.Counter(d(150), d(100), false)
	if !res.Amount.Equal(d(115)) {
		t.Fatalf("expected fallback 115, got %s", res.Amount)
	}
}

func TestValidateRejectsUnorderedBands(t *testing.T) {
	bands := DefaultBands()
	bands.Minimum = bands.Optimal
	if err := bands.Validate(); err == nil {
		t.Fatalf("expected error for unordered bands")
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(d(104_000_000)); got != "104,000,000" {
		t.Fatalf("unexpected format %s", got)
	}
	if got := FormatAmount(decimal.RequireFromString("1234.5")); got != "1,234.5" {
		t.Fatalf("unexpected fractional format %s", got)
	}
	if got := FormatAmount(decimal.RequireFromString("-0.25")); got != "-0.25" {
		t.Fatalf("unexpected negative format %s", got)
	}
}

func TestFormatAmountBeyondInt64(t *testing.T) {
	cases := map[string]string{
		"20000000000000000000":     "20,000,000,000,000,000,000",
		"123456789012345678901.5":  "123,456,789,012,345,678,901.5",
		"99999999999999999999.999": "100,000,000,000,000,000,000",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func TestHugeBidMessageKeepsAmount(t *testing.T) {
	huge := decimal.RequireFromString("20000000000000000000")
	res := Counter(huge, base, true)
	if res.Zone != ZoneOutOfRange || !res.Amount.Equal(d(106_000_000)) {
		t.Fatalf("expected fixed out-of-range counter, got %s %s", res.Zone, res.Amount)
	}
	if !strings.Contains(res.Message, "106,000,000") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestMinimumCounterStaysInRangeForSmallBases(t *testing.T) {
	// base 10, bid 10.5: the split 10.45 rounds to 10, below base×1.04
	res := Counter(decimal.RequireFromString("10.5"), d(10), false)
	if res.Zone != ZoneMinimum {
		t.Fatalf("expected minimum zone, got %s", res.Zone)
	}
	if !res.Amount.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("expected counter clamped to the bid, got %s", res.Amount)
	}

	bands := DefaultBands()
	step := decimal.RequireFromString("0.1")
	for b := int64(1); b <= 60; b++ {
		bp := d(b)
		lo, hi := bp.Mul(bands.Optimal), bp.Mul(bands.Minimum)
		for p := lo.Add(step).Truncate(1); p.LessThanOrEqual(hi); p = p.Add(step) {
			if !p.GreaterThan(lo) {
				continue
			}
			res := bands.Counter(p, bp, false)
			if res.Amount.LessThan(lo) || res.Amount.GreaterThan(p) {
				t.Fatalf("base %s bid %s: counter %s outside [%s, %s]", bp, p, res.Amount, lo, p)
			}
		}
	}
}

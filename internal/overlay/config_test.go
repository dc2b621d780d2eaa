package overlay

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"haggle-go/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Negotiation.BasePrice = decimal.NewFromInt(250)
	cfg.Negotiation.DealID = "deal-9"
	cfg.Engagement.DwellSeconds = 20

	oc := FromConfig(cfg)
	if !oc.Enabled {
		t.Fatalf("expected enabled overlay by default")
	}
	if oc.Thresholds.DwellSeconds != 20 || oc.Thresholds.ScrollReversals != 4 {
		t.Fatalf("unexpected thresholds %+v", oc.Thresholds)
	}
	if oc.TickInterval != time.Second {
		t.Fatalf("expected 1s heartbeat, got %s", oc.TickInterval)
	}
	if oc.Session.SessionID != "" {
		t.Fatalf("expected empty session id template")
	}
	if oc.Session.ThinkDelay != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s think delay, got %s", oc.Session.ThinkDelay)
	}
	if !oc.Session.Bands.Optimal.Equal(decimal.RequireFromString("1.04")) {
		t.Fatalf("expected optimal band 1.04, got %s", oc.Session.Bands.Optimal)
	}
	if err := oc.Session.Bands.Validate(); err != nil {
		t.Fatalf("expected default bands to validate: %v", err)
	}
}

package overlay

import (
	"haggle-go/internal/config"
	"haggle-go/internal/engagement"
	"haggle-go/internal/negotiation"
	"haggle-go/internal/pricing"
)

// FromConfig maps the loaded application config onto an overlay template. The session
// ID is left empty so every overlay built from it gets its own.
func FromConfig(cfg *config.Config) Config {
	e, n := cfg.Engagement, cfg.Negotiation
	return Config{
		Enabled: e.Enabled,
		Thresholds: engagement.Thresholds{
			DwellSeconds:    e.DwellSeconds,
			ScrollReversals: e.ScrollReversals,
		},
		TickInterval: e.TickInterval(),
		Session: negotiation.Config{
			DealID:     n.DealID,
			BasePrice:  n.BasePrice,
			MaxRounds:  n.MaxRounds,
			ThinkDelay: n.ThinkDelay(),
			BidStep:    n.BidStep,
			Bands: pricing.Bands{
				Optimal:  n.OptimalBand,
				Minimum:  n.MinimumBand,
				Fallback: n.FallbackBand,
			},
		},
	}
}

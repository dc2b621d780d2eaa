package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment variables that override YAML settings.
const (
	EnvLogLevel     = "HAGGLE_LOG_LEVEL"
	EnvBasePrice    = "HAGGLE_BASE_PRICE"
	EnvDealID       = "HAGGLE_DEAL_ID"
	EnvEnabled      = "HAGGLE_ENABLED"
	EnvAnalyticsDSN = "HAGGLE_ANALYTICS_DSN"
	EnvServerAddr   = "HAGGLE_SERVER_ADDR"
)

// ApplyEnv loads .env files (best-effort, existing variables win) and applies overrides.
func ApplyEnv(cfg *Config, envFiles ...string) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	_ = godotenv.Load(envFiles...) // best-effort

	if v := env(EnvLogLevel); v != "" {
		cfg.App.LogLevel = v
	}
	if v := env(EnvBasePrice); v != "" {
		px, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvBasePrice, err)
		}
		cfg.Negotiation.BasePrice = px
	}
	if v := env(EnvDealID); v != "" {
		cfg.Negotiation.DealID = v
	}
	if v := env(EnvEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvEnabled, err)
		}
		cfg.Engagement.Enabled = enabled
	}
	if v := env(EnvAnalyticsDSN); v != "" {
		cfg.Analytics.DSN = v
	}
	if v := env(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	return cfg.Validate()
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

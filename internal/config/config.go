// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"haggle-go/internal/pricing"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Engagement tunes when the overlay is revealed.
type Engagement struct {
	Enabled         bool `yaml:"enabled"`
	DwellSeconds    int  `yaml:"dwell_seconds"`
	ScrollReversals int  `yaml:"scroll_reversals"`
	TickIntervalMs  int  `yaml:"tick_interval_ms"`
}

// Negotiation describes the offer under negotiation and the bargaining rules.
type Negotiation struct {
	BasePrice    decimal.Decimal `yaml:"base_price"`
	DealID       string          `yaml:"deal_id"`
	MaxRounds    int             `yaml:"max_rounds"`
	ThinkDelayMs int             `yaml:"think_delay_ms"`
	BidStep      decimal.Decimal `yaml:"bid_step"`
	OptimalBand  decimal.Decimal `yaml:"optimal_band"`
	MinimumBand  decimal.Decimal `yaml:"minimum_band"`
	FallbackBand decimal.Decimal `yaml:"fallback_band"`
}

// Analytics selects where transition notifications are recorded.
type Analytics struct {
	Sink        string `yaml:"sink"` // none|log|memory|jsonl|sql
	Path        string `yaml:"path"`
	Dialect     string `yaml:"dialect"` // sqlite|postgres
	DSN         string `yaml:"dsn"`
	QueueSize   int    `yaml:"queue_size"`
	MemoryLimit int    `yaml:"memory_limit"` // memory sink only
}

// Server configures the websocket overlay host.
type Server struct {
	Addr           string   `yaml:"addr"`
	WriteTimeoutMs int      `yaml:"write_timeout_ms"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App         `yaml:"app"`
	Engagement  Engagement  `yaml:"engagement"`
	Negotiation Negotiation `yaml:"negotiation"`
	Analytics   Analytics   `yaml:"analytics"`
	Server      Server      `yaml:"server"`
}

// Default returns a config with every knob at its documented default.
func Default() *Config {
	cfg := &Config{
		App:        App{Name: "haggle", Env: "dev", LogLevel: "info"},
		Engagement: Engagement{Enabled: true},
		Analytics:  Analytics{Sink: "log"},
	}
	cfg.Normalize()
	return cfg
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Config{Engagement: Engagement{Enabled: true}}
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Engagement.DwellSeconds <= 0 {
		c.Engagement.DwellSeconds = 15
	}
	if c.Engagement.ScrollReversals <= 0 {
		c.Engagement.ScrollReversals = 4
	}
	if c.Engagement.TickIntervalMs <= 0 {
		c.Engagement.TickIntervalMs = 1000
	}
	n := &c.Negotiation
	if n.MaxRounds <= 0 {
		n.MaxRounds = 3
	}
	if n.ThinkDelayMs <= 0 {
		n.ThinkDelayMs = 2500
	}
	if n.OptimalBand.IsZero() {
		n.OptimalBand = decimal.RequireFromString("1.04")
	}
	if n.MinimumBand.IsZero() {
		n.MinimumBand = decimal.RequireFromString("1.08")
	}
	if n.FallbackBand.IsZero() {
		n.FallbackBand = decimal.RequireFromString("1.06")
	}
	c.Analytics.Sink = strings.ToLower(strings.TrimSpace(c.Analytics.Sink))
	if c.Analytics.Sink == "" {
		c.Analytics.Sink = "none"
	}
	c.Analytics.Dialect = strings.ToLower(strings.TrimSpace(c.Analytics.Dialect))
	if c.Analytics.Dialect == "" {
		c.Analytics.Dialect = "sqlite"
	}
	if c.Analytics.QueueSize <= 0 {
		c.Analytics.QueueSize = 64
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.WriteTimeoutMs <= 0 {
		c.Server.WriteTimeoutMs = 5000
	}
}

// Validate rejects configurations the negotiation core cannot run with.
func (c *Config) Validate() error {
	n := c.Negotiation
	if !n.BasePrice.IsPositive() {
		return fmt.Errorf("negotiation.base_price %s must be positive", n.BasePrice)
	}
	bands := pricing.Bands{Optimal: n.OptimalBand, Minimum: n.MinimumBand, Fallback: n.FallbackBand}
	if err := bands.Validate(); err != nil {
		return fmt.Errorf("negotiation bands: %w", err)
	}
	if c.Negotiation.BidStep.IsNegative() {
		return fmt.Errorf("negotiation.bid_step %s must not be negative", c.Negotiation.BidStep)
	}
	switch c.Analytics.Sink {
	case "none", "log", "memory", "jsonl", "sql":
	default:
		return fmt.Errorf("analytics.sink %q not one of none|log|memory|jsonl|sql", c.Analytics.Sink)
	}
	if c.Analytics.Sink == "jsonl" && c.Analytics.Path == "" {
		return fmt.Errorf("analytics.sink jsonl requires analytics.path")
	}
	return nil
}

// TickInterval returns the engagement heartbeat period.
func (e Engagement) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalMs) * time.Millisecond
}

// WriteTimeout bounds a single websocket write.
func (s Server) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}

// ThinkDelay returns the simulated review time.
func (n Negotiation) ThinkDelay() time.Duration {
	return time.Duration(n.ThinkDelayMs) * time.Millisecond
}

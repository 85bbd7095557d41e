// Package config loads service configuration from defaults, an optional YAML
// file and ROTA_ environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds every tunable of the service.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or console.
	LogFormat string `koanf:"log_format"`

	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// DatabaseURL selects the SQL store. Empty keeps state in memory.
	DatabaseURL      string `koanf:"database_url"`
	DatabaseMaxConns int    `koanf:"database_max_conns"`

	// RedisURL enables the shared event-id dedupe.
	RedisURL string `koanf:"redis_url"`
	// RabbitMQURL enables domain event publishing.
	RabbitMQURL string `koanf:"rabbitmq_url"`

	QueueSize   int           `koanf:"queue_size"`
	WorkerCount int           `koanf:"worker_count"`
	DedupeSize  int           `koanf:"dedupe_size"`
	DedupeTTL   time.Duration `koanf:"dedupe_ttl"`

	CandidateLimit     int       `koanf:"candidate_limit"`
	TopN               int       `koanf:"top_n"`
	RotationWeights    []float64 `koanf:"rotation_weights"`
	AgentMinReputation float64   `koanf:"agent_min_reputation"`

	MentorshipBonus     string  `koanf:"mentorship_bonus"`
	MentorMinCompleted  int     `koanf:"mentor_min_completed"`
	MentorMinReputation float64 `koanf:"mentor_min_reputation"`

	BreakerFailureThreshold int           `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "json",
		Addr:                    ":9080",
		ShutdownTimeout:         15 * time.Second,
		DatabaseMaxConns:        10,
		QueueSize:               10_000,
		WorkerCount:             runtime.NumCPU() * 2,
		DedupeSize:              50_000,
		DedupeTTL:               24 * time.Hour,
		CandidateLimit:          20,
		TopN:                    3,
		RotationWeights:         []float64{0.5, 0.3, 0.2},
		AgentMinReputation:      2.5,
		MentorshipBonus:         "5.00",
		MentorMinCompleted:      25,
		MentorMinReputation:     4.0,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// BonusAmount parses MentorshipBonus. Call Validate first.
func (c *Config) BonusAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.MentorshipBonus)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.CandidateLimit < 1:
		return invalid("candidate_limit must be positive, got %d", c.CandidateLimit)
	case c.TopN < 1:
		return invalid("top_n must be positive, got %d", c.TopN)
	case len(c.RotationWeights) == 0:
		return invalid("rotation_weights must not be empty")
	case len(c.RotationWeights) < c.TopN:
		return invalid("rotation_weights needs one weight per rank, got %d for top_n %d", len(c.RotationWeights), c.TopN)
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.AgentMinReputation < 0 || c.MentorMinReputation < 0:
		return invalid("reputation thresholds must not be negative")
	case c.MentorMinCompleted < 0:
		return invalid("mentor_min_completed must not be negative")
	}
	for _, w := range c.RotationWeights {
		if w < 0 {
			return invalid("rotation_weights must not be negative, got %v", c.RotationWeights)
		}
	}
	if d, err := decimal.NewFromString(c.MentorshipBonus); err != nil || !d.IsPositive() {
		return invalid("mentorship_bonus must be a positive decimal, got %q", c.MentorshipBonus)
	}
	return nil
}

package broker

import (
	"context"
	"errors"
	"time"

	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// BreakerOption configures a BreakerPublisher.
type BreakerOption func(*breakerConfig)

type breakerConfig struct {
	name      string
	threshold uint32
	timeout   time.Duration
	log       logger.Logger
}

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n uint32) BreakerOption {
	return func(c *breakerConfig) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(c *breakerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBreakerLogger sets a custom logger.
func WithBreakerLogger(l logger.Logger) BreakerOption {
	return func(c *breakerConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// BreakerPublisher fails fast while the wrapped publisher keeps failing.
type BreakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerPublisher wraps next with a circuit breaker.
func NewBreakerPublisher(next Publisher, opts ...BreakerOption) *BreakerPublisher {
	cfg := breakerConfig{
		name:      "broker",
		threshold: defaultFailureThreshold,
		timeout:   defaultOpenTimeout,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.Named("breaker")

	settings := gobreaker.Settings{
		Name:        cfg.name,
		MaxRequests: 1,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, int(to))
		},
	}
	metrics.UpdateBreakerState(cfg.name, int(gobreaker.StateClosed))

	return &BreakerPublisher{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Publish forwards to the wrapped publisher unless the breaker is open.
func (b *BreakerPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Publish(ctx, routingKey, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordPublish(routingKey, "rejected")
	}
	return err
}

// State reports the breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}

// Close closes the wrapped publisher.
func (b *BreakerPublisher) Close() error {
	return b.next.Close()
}

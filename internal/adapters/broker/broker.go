// Package broker publishes domain events to a message broker.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
)

// Routing keys on the domain events exchange.
const (
	ExchangeName = "rota.domain.events"

	KeyAssignmentCommitted = "assignment.committed"
	KeyBonusAwarded        = "mentorship.bonus_awarded"
)

const defaultPublishTimeout = 2 * time.Second

// Publisher sends an encoded event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// Envelope wraps every published event.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NoopPublisher drops every event.
type NoopPublisher struct {
	log logger.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(l logger.Logger) *NoopPublisher {
	if l == nil {
		l = logger.Nop()
	}
	return &NoopPublisher{log: l.Named("broker")}
}

// Publish logs the event at debug level.
func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.log.Debug(ctx, "noop publish",
		logger.String("routing_key", routingKey),
		logger.Int("size", len(payload)),
	)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithEmitterLogger sets a custom logger.
func WithEmitterLogger(l logger.Logger) EmitterOption {
	return func(e *Emitter) {
		if l != nil {
			e.log = l
		}
	}
}

// Emitter turns domain outcomes into published events. Failures are logged
// and counted; they never propagate to the caller.
type Emitter struct {
	pub     Publisher
	timeout time.Duration
	log     logger.Logger
}

// NewEmitter creates an emitter over pub.
func NewEmitter(pub Publisher, opts ...EmitterOption) *Emitter {
	e := &Emitter{pub: pub, timeout: defaultPublishTimeout, log: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("emitter")
	return e
}

// AssignmentCommitted publishes a committed assignment.
func (e *Emitter) AssignmentCommitted(ctx context.Context, a model.Assignment) {
	e.emit(ctx, KeyAssignmentCommitted, a.AssignedAt, a)
}

// BonusAwarded publishes a mentorship ledger entry.
func (e *Emitter) BonusAwarded(ctx context.Context, b model.MentorshipBonus) {
	e.emit(ctx, KeyBonusAwarded, b.CreatedAt, b)
}

func (e *Emitter) emit(ctx context.Context, key string, at time.Time, data any) {
	payload, err := Encode(key, at, data)
	if err != nil {
		metrics.RecordPublish(key, "encode_error")
		e.log.Error(ctx, "encode event", logger.String("routing_key", key), logger.Error(err))
		return
	}

	// The request context may already be finishing; the publish gets its own deadline.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.pub.Publish(pctx, key, payload); err != nil {
		e.log.Warn(ctx, "publish failed", logger.String("routing_key", key), logger.Error(err))
	}
}

// Encode builds the JSON envelope for an event.
func Encode(key string, at time.Time, data any) ([]byte, error) {
	b, err := json.Marshal(Envelope{Type: key, OccurredAt: at, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", key, err)
	}
	return b, nil
}

// Package mentorship pays a one-time bonus to experienced operators who help
// newcomers.
package mentorship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Default eligibility policy.
const (
	defaultMinCompleted  = 25
	defaultMinReputation = 4.0
	defaultAmount        = "5.00"
)

// OperatorReader loads operators by id.
type OperatorReader interface {
	GetOperator(ctx context.Context, id string) (model.Operator, error)
}

// Ledger is the append-only bonus sink. AppendBonus returns
// model.ErrDuplicateBonus when an entry for the same expert, beginner and
// task already exists.
type Ledger interface {
	AppendBonus(ctx context.Context, bonus model.MentorshipBonus) error
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithEligibility sets the experience and reputation an expert needs.
func WithEligibility(minCompleted int, minReputation float64) Option {
	return func(e *Engine) {
		if minCompleted >= 0 && minReputation >= 0 {
			e.minCompleted = minCompleted
			e.minReputation = minReputation
		}
	}
}

// WithAmount sets the bonus amount. Non-positive amounts are ignored.
func WithAmount(amount decimal.Decimal) Option {
	return func(e *Engine) {
		if amount.IsPositive() {
			e.amount = amount
		}
	}
}

// WithClock sets the time source for ledger entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOnAward registers a hook called after a bonus is appended.
func WithOnAward(fn func(ctx context.Context, b model.MentorshipBonus)) Option {
	return func(e *Engine) {
		e.onAward = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine evaluates mentorship bonuses.
type Engine struct {
	operators OperatorReader
	ledger    Ledger

	minCompleted  int
	minReputation float64
	amount        decimal.Decimal
	now           func() time.Time

	onAward func(ctx context.Context, b model.MentorshipBonus)
	log     logger.Logger
}

// New creates an engine with the default policy.
func New(operators OperatorReader, ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		operators:     operators,
		ledger:        ledger,
		minCompleted:  defaultMinCompleted,
		minReputation: defaultMinReputation,
		amount:        decimal.RequireFromString(defaultAmount),
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.Named("mentorship")
	return e
}

// Amount returns the configured bonus amount.
func (e *Engine) Amount() decimal.Decimal {
	return e.amount
}

// Eligible reports whether op may earn mentorship bonuses.
func (e *Engine) Eligible(op model.Operator) bool {
	return op.CompletedTasks >= e.minCompleted && op.Reputation >= e.minReputation
}

// Evaluate awards the bonus to expertID for helping beginnerID on taskID.
// Each (expert, beginner, task) triple pays at most once; a repeat returns
// Awarded=false with reason already_awarded.
func (e *Engine) Evaluate(ctx context.Context, expertID, beginnerID, taskID string) (types.MentorshipResult, error) {
	res, err := e.evaluate(ctx, expertID, beginnerID, taskID)

	switch {
	case err != nil:
		metrics.RecordMentorshipEvaluation("error")
	case res.Awarded:
		metrics.RecordMentorshipEvaluation("awarded")
		metrics.AddMentorshipPaid(res.Amount.InexactFloat64())
	default:
		metrics.RecordMentorshipEvaluation(string(res.Reason))
	}
	return res, err
}

func (e *Engine) evaluate(ctx context.Context, expertID, beginnerID, taskID string) (types.MentorshipResult, error) {
	if expertID == beginnerID {
		return types.MentorshipResult{Reason: types.ReasonSelfMentorship}, nil
	}

	expert, err := e.operators.GetOperator(ctx, expertID)
	if err != nil {
		return types.MentorshipResult{}, fmt.Errorf("get expert %q: %w", expertID, err)
	}
	if !e.Eligible(expert) {
		return types.MentorshipResult{Reason: types.ReasonNotEligible}, nil
	}
	if _, err := e.operators.GetOperator(ctx, beginnerID); err != nil {
		return types.MentorshipResult{}, fmt.Errorf("get beginner %q: %w", beginnerID, err)
	}

	bonus := model.MentorshipBonus{
		ID:         uuid.NewString(),
		OperatorID: expertID,
		BeginnerID: beginnerID,
		TaskID:     taskID,
		Amount:     e.amount,
		Reason:     string(types.ReasonMentorshipBonus),
		CreatedAt:  e.now(),
	}
	err = e.ledger.AppendBonus(ctx, bonus)
	if errors.Is(err, model.ErrDuplicateBonus) {
		return types.MentorshipResult{Reason: types.ReasonAlreadyAwarded}, nil
	}
	if err != nil {
		return types.MentorshipResult{}, fmt.Errorf("append bonus: %w", err)
	}

	e.log.Info(ctx, "mentorship bonus awarded",
		logger.String("expert_id", expertID),
		logger.String("beginner_id", beginnerID),
		logger.String("task_id", taskID),
		logger.String("amount", e.amount.StringFixed(2)),
	)
	if e.onAward != nil {
		e.onAward(ctx, bonus)
	}
	return types.MentorshipResult{Awarded: true, Amount: e.amount}, nil
}

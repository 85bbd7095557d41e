// Package scoring computes the opportunity score of an operator for a task.
package scoring

import (
	"math"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/tier"
)

// Default bonus table.
const (
	defaultFirstTaskBonus   = 30
	defaultUnderFiveBonus   = 20
	defaultUnderTenBonus    = 10
	defaultReputationWeight = 40
	defaultSkillGapBonus    = 10
	defaultFullMatchBonus   = 20
	defaultTierMatchBonus   = 10
	defaultStretchBonus     = 15
)

// Option applies a configuration option to the OpportunityScorer.
type Option func(*OpportunityScorer)

// WithNewcomerBonuses sets the bonuses for operators with zero, fewer than
// five and fewer than ten completed tasks.
func WithNewcomerBonuses(first, underFive, underTen float64) Option {
	return func(s *OpportunityScorer) {
		if first >= 0 && underFive >= 0 && underTen >= 0 {
			s.firstTaskBonus = first
			s.underFiveBonus = underFive
			s.underTenBonus = underTen
		}
	}
}

// WithReputationWeight sets the points awarded for a perfect reputation.
func WithReputationWeight(weight float64) Option {
	return func(s *OpportunityScorer) {
		if weight >= 0 {
			s.reputationWeight = weight
		}
	}
}

// WithSkillBonuses sets the learning-opportunity and reliable-match bonuses.
func WithSkillBonuses(gap, full float64) Option {
	return func(s *OpportunityScorer) {
		if gap >= 0 && full >= 0 {
			s.skillGapBonus = gap
			s.fullMatchBonus = full
		}
	}
}

// WithTierBonuses sets the exact-tier and one-step-stretch bonuses.
func WithTierBonuses(match, stretch float64) Option {
	return func(s *OpportunityScorer) {
		if match >= 0 && stretch >= 0 {
			s.tierMatchBonus = match
			s.stretchBonus = stretch
		}
	}
}

// Input carries the typed fields the scorer reads.
type Input struct {
	Operator   model.Operator
	Task       model.Task
	Difficulty tier.Level
}

// Breakdown lists the summed score components.
type Breakdown struct {
	Newcomer     float64    `json:"newcomer"`
	Reputation   float64    `json:"reputation"`
	Skills       float64    `json:"skills"`
	Tier         float64    `json:"tier"`
	OperatorTier tier.Level `json:"operator_tier"`
}

// Result is the opportunity score of one operator. It is never persisted.
type Result struct {
	OperatorID string    `json:"operator_id"`
	Score      float64   `json:"score"`
	Breakdown  Breakdown `json:"breakdown"`
}

// Scorer computes an opportunity score. Implementations must be deterministic
// and free of side effects.
type Scorer interface {
	Score(in Input) Result
}

// OpportunityScorer implements Scorer with an additive bonus table.
type OpportunityScorer struct {
	firstTaskBonus   float64
	underFiveBonus   float64
	underTenBonus    float64
	reputationWeight float64
	skillGapBonus    float64
	fullMatchBonus   float64
	tierMatchBonus   float64
	stretchBonus     float64
}

// NewOpportunityScorer creates a scorer with the default bonus table.
func NewOpportunityScorer(opts ...Option) *OpportunityScorer {
	s := &OpportunityScorer{
		firstTaskBonus:   defaultFirstTaskBonus,
		underFiveBonus:   defaultUnderFiveBonus,
		underTenBonus:    defaultUnderTenBonus,
		reputationWeight: defaultReputationWeight,
		skillGapBonus:    defaultSkillGapBonus,
		fullMatchBonus:   defaultFullMatchBonus,
		tierMatchBonus:   defaultTierMatchBonus,
		stretchBonus:     defaultStretchBonus,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes the opportunity score for in.
func (s *OpportunityScorer) Score(in Input) Result {
	op := in.Operator
	b := Breakdown{
		Newcomer:     s.newcomer(op.CompletedTasks),
		Reputation:   s.reputation(op.Reputation),
		Skills:       s.skills(&op, in.Task.RequiredSkills),
		OperatorTier: tier.ForOperator(op.CompletedTasks, op.Reputation),
	}
	b.Tier = s.tierAlignment(b.OperatorTier, in.Difficulty)

	return Result{
		OperatorID: op.ID,
		Score:      b.Newcomer + b.Reputation + b.Skills + b.Tier,
		Breakdown:  b,
	}
}

func (s *OpportunityScorer) newcomer(completed int) float64 {
	switch {
	case completed <= 0:
		return s.firstTaskBonus
	case completed < 5:
		return s.underFiveBonus
	case completed < 10:
		return s.underTenBonus
	default:
		return 0
	}
}

func (s *OpportunityScorer) reputation(rep float64) float64 {
	rep = math.Max(model.MinReputation, math.Min(model.MaxReputation, rep))
	return rep / model.MaxReputation * s.reputationWeight
}

// skills awards the reliable-match bonus when the operator holds every
// required skill, and the learning bonus otherwise.
func (s *OpportunityScorer) skills(op *model.Operator, required []string) float64 {
	for _, skill := range model.NormalizeSkills(required) {
		if !op.HasSkill(skill) {
			return s.skillGapBonus
		}
	}
	return s.fullMatchBonus
}

func (s *OpportunityScorer) tierAlignment(operator, task tier.Level) float64 {
	if operator == task {
		return s.tierMatchBonus
	}
	if next, ok := tier.StretchTarget(operator); ok && next == task {
		return s.stretchBonus
	}
	return 0
}

// ScoreAll scores every operator against the same task, keeping input order.
func ScoreAll(s Scorer, task model.Task, difficulty tier.Level, operators []model.Operator) []Result {
	out := make([]Result, 0, len(operators))
	for _, op := range operators {
		out = append(out, s.Score(Input{Operator: op, Task: task, Difficulty: difficulty}))
	}
	return out
}

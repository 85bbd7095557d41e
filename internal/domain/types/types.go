// Package types contains result shapes returned by the engines
package types

import (
	"time"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/tier"
	"github.com/shopspring/decimal"
)

// Reason is a machine-readable code explaining a negative outcome.
type Reason string

// Assignment reasons.
const (
	ReasonNoQualifiedCandidates Reason = "no_qualified_candidates"
	ReasonAssignmentConflict    Reason = "assignment_conflict"
	ReasonAgentReputationTooLow Reason = "agent_reputation_too_low"
)

// Mentorship reasons.
const (
	ReasonNotEligible     Reason = "not_eligible"
	ReasonAlreadyAwarded  Reason = "already_awarded"
	ReasonSelfMentorship  Reason = "self_mentorship"
	ReasonMentorshipBonus Reason = "mentorship_bonus"
)

// AssignmentResult is the outcome of one assignment request
type AssignmentResult struct {
	Success    bool       `json:"success"`
	TaskID     string     `json:"task_id"`
	OperatorID string     `json:"operator_id,omitempty"`
	Reason     Reason     `json:"reason,omitempty"`
	Score      float64    `json:"score,omitempty"`
	Difficulty tier.Level `json:"difficulty"`
	// Candidates is the size of the eligible pool that was scored.
	Candidates int       `json:"candidates"`
	AssignedAt time.Time `json:"assigned_at,omitzero"`
}

// MentorshipResult is the outcome of one mentorship evaluation
type MentorshipResult struct {
	Awarded bool            `json:"awarded"`
	Amount  decimal.Decimal `json:"amount,omitzero"`
	Reason  Reason          `json:"reason,omitempty"`
}

// OperatorView is an operator with its derived experience tier.
type OperatorView struct {
	model.Operator
	Tier tier.Level `json:"tier"`
}

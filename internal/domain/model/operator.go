package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationStatus tells whether an operator passed identity verification.
type VerificationStatus string

// Verification statuses.
const (
	Unverified VerificationStatus = "unverified"
	Verified   VerificationStatus = "verified"
)

// Reputation bounds.
const (
	MinReputation = 0.0
	MaxReputation = 5.0
)

// Operator is a human who can be assigned tasks.
// Reputation and CompletedTasks are owned by the completion and review flows.
type Operator struct {
	ID             string             `json:"id"`
	Reputation     float64            `json:"reputation"`
	CompletedTasks int                `json:"completed_tasks"`
	Skills         []string           `json:"skills"`
	Verification   VerificationStatus `json:"verification"`
}

// IsVerified reports whether the operator is verified.
func (o *Operator) IsVerified() bool {
	return o.Verification == Verified
}

// HasSkill reports whether the operator lists skill (case-insensitive).
func (o *Operator) HasSkill(skill string) bool {
	want := NormalizeSkills([]string{skill})
	if len(want) == 0 {
		return false
	}
	for _, s := range NormalizeSkills(o.Skills) {
		if s == want[0] {
			return true
		}
	}
	return false
}

// Agent is the machine client that posted a task.
type Agent struct {
	ID         string  `json:"id"`
	Reputation float64 `json:"reputation"`
}

// MentorshipBonus is an append-only ledger entry paid to an expert operator.
type MentorshipBonus struct {
	ID         string          `json:"id"`
	OperatorID string          `json:"operator_id"`
	BeginnerID string          `json:"beginner_id"`
	TaskID     string          `json:"task_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MentorshipEvent is the asynchronous trigger for a mentorship evaluation.
type MentorshipEvent struct {
	EventID    string    `json:"event_id"`
	ExpertID   string    `json:"expert_id"`
	BeginnerID string    `json:"beginner_id"`
	TaskID     string    `json:"task_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

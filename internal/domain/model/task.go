// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task statuses.
const (
	TaskOpen              TaskStatus = "open"
	TaskPendingAcceptance TaskStatus = "pending_acceptance"
	TaskAssigned          TaskStatus = "assigned"
	TaskCompleted         TaskStatus = "completed"
	TaskCancelled         TaskStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskOpen, TaskPendingAcceptance, TaskAssigned, TaskCompleted, TaskCancelled:
		return true
	default:
		return false
	}
}

// budgetScale is the number of decimal places a budget may carry.
const budgetScale = 2

// ErrInvalidTask marks a task that cannot be classified.
var ErrInvalidTask = errors.New("invalid task")

// Task is a machine-originated work request.
type Task struct {
	ID             string          `json:"id"`
	AgentID        string          `json:"agent_id,omitempty"`
	Budget         decimal.Decimal `json:"budget"`
	RequiredSkills []string        `json:"required_skills"`
	Priority       int             `json:"priority"`
	Status         TaskStatus      `json:"status"`
	// AssignedOperatorID is empty until the task is committed to an operator.
	AssignedOperatorID string    `json:"assigned_operator_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Validate rejects tasks missing the fields classification reads.
// A nil skill set means "missing"; an empty, non-nil set is a task with no
// skill requirements. Budgets are whole cents so every store keeps them exact.
func (t *Task) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	case t.RequiredSkills == nil:
		return fmt.Errorf("%w: missing required skills", ErrInvalidTask)
	case t.Budget.IsNegative():
		return fmt.Errorf("%w: negative budget %s", ErrInvalidTask, t.Budget.String())
	case !t.Budget.Equal(t.Budget.Round(budgetScale)):
		return fmt.Errorf("%w: budget %s has fractions of a cent", ErrInvalidTask, t.Budget.String())
	case !t.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, t.Status)
	}
	return nil
}

// SkillCount returns the number of distinct, non-blank required skills.
func (t *Task) SkillCount() int {
	return len(NormalizeSkills(t.RequiredSkills))
}

// NormalizeSkills lower-cases, trims and de-duplicates skills, keeping order.
func NormalizeSkills(skills []string) []string {
	if skills == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Assignment is the durable outcome of a matching decision.
type Assignment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	OperatorID string    `json:"operator_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Package repository stores tasks, operators, agents, assignments and the
// mentorship ledger.
package repository

import (
	"context"
	"time"

	"github.com/okian/rota/internal/domain/model"
)

// Stats summarises the stored state.
type Stats struct {
	TasksByStatus map[model.TaskStatus]int `json:"tasks_by_status"`
	Operators     int                      `json:"operators"`
	Agents        int                      `json:"agents"`
	Assignments   int                      `json:"assignments"`
	Bonuses       int                      `json:"bonuses"`
}

// Store provides read/write access to the marketplace state.
type Store interface {
	// GetTask returns ErrNotFound if the task is unknown.
	GetTask(ctx context.Context, id string) (model.Task, error)
	// TryAssign moves a task from expected to assigned and records the
	// assignment atomically. Returns ErrConflict without mutating anything if
	// the task is not in the expected status.
	TryAssign(ctx context.Context, taskID, operatorID string, expected model.TaskStatus, at time.Time) (model.Assignment, error)
	PutTask(ctx context.Context, task model.Task) error

	// FindEligible returns up to limit operators with reputation >= minReputation
	// ordered by completed tasks ascending (ties by id).
	FindEligible(ctx context.Context, minReputation float64, limit int, verifiedOnly bool) ([]model.Operator, error)
	GetOperator(ctx context.Context, id string) (model.Operator, error)
	PutOperator(ctx context.Context, op model.Operator) error

	GetAgent(ctx context.Context, id string) (model.Agent, error)
	PutAgent(ctx context.Context, agent model.Agent) error

	// AppendBonus returns ErrDuplicateBonus if the (operator, beginner, task)
	// triple is already in the ledger.
	AppendBonus(ctx context.Context, bonus model.MentorshipBonus) error
	ListBonuses(ctx context.Context, operatorID string) ([]model.MentorshipBonus, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

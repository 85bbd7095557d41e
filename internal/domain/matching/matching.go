// Package matching assigns an open task to exactly one operator.
//
// A request runs classify → filter → score → select → commit. Everything up to
// the commit is computed from a snapshot and has no side effects; the commit
// is a status-guarded write owned by the task repository.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/scoring"
	"github.com/okian/rota/internal/domain/selection"
	"github.com/okian/rota/internal/domain/tier"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
)

// Default policy values.
const (
	defaultCandidateLimit     = 20
	defaultAgentMinReputation = 2.5
)

// TaskRepository reads tasks and commits assignments.
type TaskRepository interface {
	GetTask(ctx context.Context, id string) (model.Task, error)
	// TryAssign moves the task from expected to assigned and records the
	// assignment in one atomic step. It returns model.ErrConflict, without
	// mutating anything, when the task is no longer in the expected status.
	TryAssign(ctx context.Context, taskID, operatorID string, expected model.TaskStatus, at time.Time) (model.Assignment, error)
}

// OperatorDirectory lists operators eligible for a reputation floor, ordered
// by completed tasks ascending.
type OperatorDirectory interface {
	FindEligible(ctx context.Context, minReputation float64, limit int, verifiedOnly bool) ([]model.Operator, error)
}

// AgentDirectory resolves the agent that posted a task.
type AgentDirectory interface {
	GetAgent(ctx context.Context, id string) (model.Agent, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithScorer sets the opportunity scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithSelector sets the rotation selector.
func WithSelector(s *selection.Selector) Option {
	return func(e *Engine) {
		if s != nil {
			e.selector = s
		}
	}
}

// WithClock sets the time source for assignment timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCandidateLimit caps how many operators the filter returns.
func WithCandidateLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.candidateLimit = n
		}
	}
}

// WithAgentMinReputation sets the reputation an agent needs to get its tasks matched.
func WithAgentMinReputation(min float64) Option {
	return func(e *Engine) {
		if min >= 0 {
			e.agentMinReputation = min
		}
	}
}

// WithAgents enables the agent reputation gate.
func WithAgents(agents AgentDirectory) Option {
	return func(e *Engine) {
		e.agents = agents
	}
}

// WithOnAssigned registers a hook called after every successful commit.
func WithOnAssigned(fn func(ctx context.Context, a model.Assignment)) Option {
	return func(e *Engine) {
		e.onAssigned = fn
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

// Engine runs assignment decisions. It is safe for concurrent use.
type Engine struct {
	tasks     TaskRepository
	operators OperatorDirectory
	agents    AgentDirectory

	scorer   scoring.Scorer
	selector *selection.Selector
	now      func() time.Time

	candidateLimit     int
	agentMinReputation float64

	onAssigned func(ctx context.Context, a model.Assignment)
	log        logger.Logger
}

// New creates an engine over the given task repository and operator directory.
func New(tasks TaskRepository, operators OperatorDirectory, opts ...Option) *Engine {
	e := &Engine{
		tasks:              tasks,
		operators:          operators,
		scorer:             scoring.NewOpportunityScorer(),
		selector:           selection.New(),
		now:                func() time.Time { return time.Now().UTC() },
		candidateLimit:     defaultCandidateLimit,
		agentMinReputation: defaultAgentMinReputation,
		log:                logger.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.Named("matching")
	return e
}

// FindCandidates returns verified operators allowed to see a task of the
// given difficulty, least experienced first. An empty result is not an error.
func (e *Engine) FindCandidates(ctx context.Context, difficulty tier.Level) ([]model.Operator, error) {
	ops, err := e.operators.FindEligible(ctx, tier.ReputationFloor(difficulty), e.candidateLimit, true)
	if err != nil {
		return nil, fmt.Errorf("find eligible operators: %w", err)
	}
	return ops, nil
}

// AssignTask runs one assignment decision for taskID.
//
// Negative outcomes come back as a result with Success=false and a reason.
// Errors are returned for unknown tasks or agents (model.ErrNotFound), invalid
// tasks (model.ErrInvalidTask) and upstream failures, wrapped with %w.
func (e *Engine) AssignTask(ctx context.Context, taskID string) (types.AssignmentResult, error) {
	start := time.Now()
	res, err := e.assign(ctx, taskID)
	metrics.ObserveAssignmentLatency(float64(time.Since(start).Milliseconds()))

	switch {
	case err != nil:
		metrics.RecordAssignment("error")
	case res.Success:
		metrics.RecordAssignment("assigned")
	default:
		metrics.RecordAssignment(string(res.Reason))
	}
	return res, err
}

func (e *Engine) assign(ctx context.Context, taskID string) (types.AssignmentResult, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return types.AssignmentResult{}, fmt.Errorf("get task %q: %w", taskID, err)
	}
	if err := task.Validate(); err != nil {
		return types.AssignmentResult{}, err
	}

	difficulty := tier.Classify(task.Budget, task.SkillCount())
	res := types.AssignmentResult{TaskID: task.ID, Difficulty: difficulty}

	if task.AgentID != "" && e.agents != nil {
		agent, err := e.agents.GetAgent(ctx, task.AgentID)
		if err != nil {
			return res, fmt.Errorf("get agent %q: %w", task.AgentID, err)
		}
		if agent.Reputation < e.agentMinReputation {
			res.Reason = types.ReasonAgentReputationTooLow
			return res, nil
		}
	}

	if task.Status != model.TaskOpen {
		res.Reason = types.ReasonAssignmentConflict
		return res, nil
	}

	pool, err := e.FindCandidates(ctx, difficulty)
	if err != nil {
		return res, err
	}
	res.Candidates = len(pool)
	metrics.ObserveCandidatePool(len(pool))

	scored := scoring.ScoreAll(e.scorer, task, difficulty, pool)
	for _, c := range scored {
		metrics.ObserveOpportunityScore(c.Score)
	}

	pick, ok := e.selector.Select(scored)
	if !ok {
		res.Reason = types.ReasonNoQualifiedCandidates
		return res, nil
	}
	metrics.RecordSelectedRank(pick.Rank)

	assignment, err := e.tasks.TryAssign(ctx, task.ID, pick.Candidate.OperatorID, model.TaskOpen, e.now())
	if errors.Is(err, model.ErrConflict) {
		metrics.RecordCommitConflict()
		e.log.Debug(ctx, "assignment lost commit race",
			logger.String("task_id", task.ID),
			logger.String("operator_id", pick.Candidate.OperatorID),
		)
		res.Reason = types.ReasonAssignmentConflict
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("commit assignment for %q: %w", task.ID, err)
	}

	res.Success = true
	res.OperatorID = assignment.OperatorID
	res.Score = pick.Candidate.Score
	res.AssignedAt = assignment.AssignedAt
	if e.onAssigned != nil {
		e.onAssigned(ctx, assignment)
	}

	e.log.Info(ctx, "task assigned",
		logger.String("task_id", task.ID),
		logger.String("operator_id", assignment.OperatorID),
		logger.String("difficulty", difficulty.String()),
		logger.Int("candidates", len(pool)),
		logger.Int("rank", pick.Rank),
		logger.Float64("score", pick.Candidate.Score),
	)
	return res, nil
}

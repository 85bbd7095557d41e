package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/pkg/metrics"
)

func newUUID() string { return uuid.NewString() }

type bonusKey struct {
	operator, beginner, task string
}

// InMemoryStore keeps all state in maps behind one RWMutex. The commit
// compare-and-set and the assignment insert run under the write lock.
type InMemoryStore struct {
	mu          sync.RWMutex
	tasks       map[string]model.Task
	operators   map[string]model.Operator
	agents      map[string]model.Agent
	assignments map[string]model.Assignment // by task id
	bonuses     []model.MentorshipBonus
	bonusKeys   map[bonusKey]struct{}
	closed      bool

	opts options
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	return &InMemoryStore{
		tasks:       make(map[string]model.Task),
		operators:   make(map[string]model.Operator),
		agents:      make(map[string]model.Agent),
		assignments: make(map[string]model.Assignment),
		bonusKeys:   make(map[bonusKey]struct{}),
		opts:        buildOptions(opts),
	}
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordRepositoryError(op)
	}
}

// GetTask implements Store.
func (s *InMemoryStore) GetTask(_ context.Context, id string) (task model.Task, err error) {
	defer func(start time.Time) { observe("get_task", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Task{}, ErrClosed
	}
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return cloneTask(t), nil
}

// TryAssign implements Store.
func (s *InMemoryStore) TryAssign(_ context.Context, taskID, operatorID string, expected model.TaskStatus, at time.Time) (a model.Assignment, err error) {
	defer func(start time.Time) { observe("try_assign", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Assignment{}, ErrClosed
	}

	t, ok := s.tasks[taskID]
	if !ok {
		return model.Assignment{}, fmt.Errorf("task %q: %w", taskID, ErrNotFound)
	}
	if t.Status != expected || t.AssignedOperatorID != "" {
		return model.Assignment{}, fmt.Errorf("task %q is %s: %w", taskID, t.Status, ErrConflict)
	}
	if _, ok := s.operators[operatorID]; !ok {
		return model.Assignment{}, fmt.Errorf("operator %q: %w", operatorID, ErrNotFound)
	}

	a = model.Assignment{ID: s.opts.newID(), TaskID: taskID, OperatorID: operatorID, AssignedAt: at}
	t.Status = model.TaskAssigned
	t.AssignedOperatorID = operatorID
	s.tasks[taskID] = t
	s.assignments[taskID] = a
	return a, nil
}

// PutTask implements Store. It inserts or replaces the task.
func (s *InMemoryStore) PutTask(_ context.Context, task model.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// FindEligible implements Store.
func (s *InMemoryStore) FindEligible(_ context.Context, minReputation float64, limit int, verifiedOnly bool) (out []model.Operator, err error) {
	defer func(start time.Time) { observe("find_eligible", start, err) }(time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	for _, op := range s.operators {
		if op.Reputation < minReputation || (verifiedOnly && !op.IsVerified()) {
			continue
		}
		out = append(out, cloneOperator(op))
	}
	slices.SortFunc(out, func(a, b model.Operator) int {
		if c := cmp.Compare(a.CompletedTasks, b.CompletedTasks); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetOperator implements Store.
func (s *InMemoryStore) GetOperator(_ context.Context, id string) (model.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Operator{}, ErrClosed
	}
	op, ok := s.operators[id]
	if !ok {
		return model.Operator{}, fmt.Errorf("operator %q: %w", id, ErrNotFound)
	}
	return cloneOperator(op), nil
}

// PutOperator implements Store.
func (s *InMemoryStore) PutOperator(_ context.Context, op model.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.operators[op.ID] = cloneOperator(op)
	return nil
}

// GetAgent implements Store.
func (s *InMemoryStore) GetAgent(_ context.Context, id string) (model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Agent{}, ErrClosed
	}
	a, ok := s.agents[id]
	if !ok {
		return model.Agent{}, fmt.Errorf("agent %q: %w", id, ErrNotFound)
	}
	return a, nil
}

// PutAgent implements Store.
func (s *InMemoryStore) PutAgent(_ context.Context, agent model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.agents[agent.ID] = agent
	return nil
}

// AppendBonus implements Store.
func (s *InMemoryStore) AppendBonus(_ context.Context, bonus model.MentorshipBonus) (err error) {
	defer func(start time.Time) { observe("append_bonus", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	key := bonusKey{bonus.OperatorID, bonus.BeginnerID, bonus.TaskID}
	if _, dup := s.bonusKeys[key]; dup {
		return ErrDuplicateBonus
	}
	s.bonusKeys[key] = struct{}{}
	s.bonuses = append(s.bonuses, bonus)
	return nil
}

// ListBonuses implements Store. Entries come back in append order.
func (s *InMemoryStore) ListBonuses(_ context.Context, operatorID string) ([]model.MentorshipBonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []model.MentorshipBonus
	for _, b := range s.bonuses {
		if b.OperatorID == operatorID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Stats implements Store.
func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	st := Stats{
		TasksByStatus: make(map[model.TaskStatus]int),
		Operators:     len(s.operators),
		Agents:        len(s.agents),
		Assignments:   len(s.assignments),
		Bonuses:       len(s.bonuses),
	}
	for _, t := range s.tasks {
		st.TasksByStatus[t.Status]++
	}
	return st, nil
}

// Assignment returns the recorded assignment for a task.
func (s *InMemoryStore) Assignment(taskID string) (model.Assignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[taskID]
	return a, ok
}

// Close implements Store. Further calls return ErrClosed.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneTask(t model.Task) model.Task {
	t.RequiredSkills = slices.Clone(t.RequiredSkills)
	return t
}

func cloneOperator(op model.Operator) model.Operator {
	op.Skills = slices.Clone(op.Skills)
	return op
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/rota/internal/adapters/database"
	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	qGetTask = `SELECT id, agent_id, CAST(budget AS TEXT), required_skills, priority, status,
		COALESCE(assigned_operator_id, ''), created_at FROM tasks WHERE id = ?`
	qCommitTask = `UPDATE tasks SET status = ?, assigned_operator_id = ?
		WHERE id = ? AND status = ? AND assigned_operator_id IS NULL`
	qTaskStatus       = `SELECT status FROM tasks WHERE id = ?`
	qInsertAssignment = `INSERT INTO assignments (id, task_id, operator_id, assigned_at) VALUES (?, ?, ?, ?)`
	qUpsertTask       = `INSERT INTO tasks (id, agent_id, budget, required_skills, priority, status, assigned_operator_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET agent_id = excluded.agent_id, budget = excluded.budget,
		required_skills = excluded.required_skills, priority = excluded.priority, status = excluded.status,
		assigned_operator_id = excluded.assigned_operator_id`

	qFindEligible = `SELECT id, reputation, completed_tasks, skills, verification FROM operators
		WHERE reputation >= ? AND (? = 0 OR verification = 'verified')
		ORDER BY completed_tasks ASC, id ASC LIMIT ?`
	qGetOperator    = `SELECT id, reputation, completed_tasks, skills, verification FROM operators WHERE id = ?`
	qUpsertOperator = `INSERT INTO operators (id, reputation, completed_tasks, skills, verification) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET reputation = excluded.reputation, completed_tasks = excluded.completed_tasks,
		skills = excluded.skills, verification = excluded.verification`

	qGetAgent    = `SELECT id, reputation FROM agents WHERE id = ?`
	qUpsertAgent = `INSERT INTO agents (id, reputation) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET reputation = excluded.reputation`

	qAppendBonus = `INSERT INTO mentorship_bonuses (id, operator_id, beginner_id, task_id, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (operator_id, beginner_id, task_id) DO NOTHING`
	qListBonuses = `SELECT id, operator_id, beginner_id, task_id, CAST(amount AS TEXT), reason, created_at
		FROM mentorship_bonuses WHERE operator_id = ? ORDER BY created_at ASC, id ASC`

	qCountStatus      = `SELECT status, COUNT(*) FROM tasks GROUP BY status`
	qCountOperators   = `SELECT COUNT(*) FROM operators`
	qCountAgents      = `SELECT COUNT(*) FROM agents`
	qCountAssignments = `SELECT COUNT(*) FROM assignments`
	qCountBonuses     = `SELECT COUNT(*) FROM mentorship_bonuses`
)

// SQLStore implements Store on a database.Connection. The commit is a
// status-guarded UPDATE plus the assignment INSERT in one transaction.
type SQLStore struct {
	conn database.Connection
	opts options
}

// NewSQLStore wraps conn, applying the schema first when WithMigrate is set.
func NewSQLStore(ctx context.Context, conn database.Connection, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{conn: conn, opts: buildOptions(opts)}
	s.opts.log = s.opts.log.Named("sqlstore")
	if s.opts.migrate {
		if err := database.Migrate(ctx, conn); err != nil {
			return nil, err
		}
		s.opts.log.Info(ctx, "schema migrated", logger.String("driver", conn.Driver().String()))
	}
	return s, nil
}

func (s *SQLStore) q(query string) string {
	return database.Rebind(s.conn.Driver(), query)
}

// GetTask implements Store.
func (s *SQLStore) GetTask(ctx context.Context, id string) (task model.Task, err error) {
	defer func(start time.Time) { observe("get_task", start, err) }(time.Now())
	return s.scanTask(s.conn.QueryRow(ctx, s.q(qGetTask), id), id)
}

func (s *SQLStore) scanTask(row database.Row, id string) (model.Task, error) {
	var (
		t      model.Task
		budget string
		skills string
		status string
	)
	if err := row.Scan(&t.ID, &t.AgentID, &budget, &skills, &t.Priority, &status, &t.AssignedOperatorID, &t.CreatedAt); err != nil {
		if database.IsNoRows(err) {
			return model.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
		}
		return model.Task{}, fmt.Errorf("scan task %q: %w", id, err)
	}
	b, err := decimal.NewFromString(budget)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %q budget: %w", id, err)
	}
	t.Budget = b
	t.Status = model.TaskStatus(status)
	if err := json.Unmarshal([]byte(skills), &t.RequiredSkills); err != nil {
		return model.Task{}, fmt.Errorf("task %q skills: %w", id, err)
	}
	return t, nil
}

// TryAssign implements Store.
func (s *SQLStore) TryAssign(ctx context.Context, taskID, operatorID string, expected model.TaskStatus, at time.Time) (a model.Assignment, err error) {
	defer func(start time.Time) { observe("try_assign", start, err) }(time.Now())

	a = model.Assignment{ID: s.opts.newID(), TaskID: taskID, OperatorID: operatorID, AssignedAt: at.UTC()}
	err = database.InTx(ctx, s.conn, func(tx database.Transaction) error {
		res, err := tx.Exec(ctx, s.q(qCommitTask), string(model.TaskAssigned), operatorID, taskID, string(expected))
		if err != nil {
			return fmt.Errorf("update task %q: %w", taskID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var status string
			if err := tx.QueryRow(ctx, s.q(qTaskStatus), taskID).Scan(&status); err != nil {
				if database.IsNoRows(err) {
					return fmt.Errorf("task %q: %w", taskID, ErrNotFound)
				}
				return err
			}
			return fmt.Errorf("task %q is %s: %w", taskID, status, ErrConflict)
		}
		if _, err := tx.Exec(ctx, s.q(qInsertAssignment), a.ID, a.TaskID, a.OperatorID, a.AssignedAt); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	return a, nil
}

// PutTask implements Store.
func (s *SQLStore) PutTask(ctx context.Context, task model.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	skills, err := json.Marshal(task.RequiredSkills)
	if err != nil {
		return err
	}
	var assigned any
	if task.AssignedOperatorID != "" {
		assigned = task.AssignedOperatorID
	}
	created := task.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.conn.Exec(ctx, s.q(qUpsertTask),
		task.ID, task.AgentID, task.Budget.StringFixed(2), string(skills), task.Priority,
		string(task.Status), assigned, created.UTC())
	if err != nil {
		return fmt.Errorf("put task %q: %w", task.ID, err)
	}
	return nil
}

// FindEligible implements Store.
func (s *SQLStore) FindEligible(ctx context.Context, minReputation float64, limit int, verifiedOnly bool) (out []model.Operator, err error) {
	defer func(start time.Time) { observe("find_eligible", start, err) }(time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	verified := 0
	if verifiedOnly {
		verified = 1
	}
	rows, err := s.conn.Query(ctx, s.q(qFindEligible), minReputation, verified, limit)
	if err != nil {
		return nil, fmt.Errorf("find eligible: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func scanOperator(row database.Row) (model.Operator, error) {
	var (
		op     model.Operator
		skills string
		ver    string
	)
	if err := row.Scan(&op.ID, &op.Reputation, &op.CompletedTasks, &skills, &ver); err != nil {
		return model.Operator{}, err
	}
	op.Verification = model.VerificationStatus(ver)
	if err := json.Unmarshal([]byte(skills), &op.Skills); err != nil {
		return model.Operator{}, fmt.Errorf("operator %q skills: %w", op.ID, err)
	}
	return op, nil
}

// GetOperator implements Store.
func (s *SQLStore) GetOperator(ctx context.Context, id string) (model.Operator, error) {
	op, err := scanOperator(s.conn.QueryRow(ctx, s.q(qGetOperator), id))
	if database.IsNoRows(err) {
		return model.Operator{}, fmt.Errorf("operator %q: %w", id, ErrNotFound)
	}
	return op, err
}

// PutOperator implements Store.
func (s *SQLStore) PutOperator(ctx context.Context, op model.Operator) error {
	skills := op.Skills
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return err
	}
	ver := op.Verification
	if ver == "" {
		ver = model.Unverified
	}
	if _, err := s.conn.Exec(ctx, s.q(qUpsertOperator), op.ID, op.Reputation, op.CompletedTasks, string(b), string(ver)); err != nil {
		return fmt.Errorf("put operator %q: %w", op.ID, err)
	}
	return nil
}

// GetAgent implements Store.
func (s *SQLStore) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	var a model.Agent
	err := s.conn.QueryRow(ctx, s.q(qGetAgent), id).Scan(&a.ID, &a.Reputation)
	if database.IsNoRows(err) {
		return model.Agent{}, fmt.Errorf("agent %q: %w", id, ErrNotFound)
	}
	return a, err
}

// PutAgent implements Store.
func (s *SQLStore) PutAgent(ctx context.Context, agent model.Agent) error {
	if _, err := s.conn.Exec(ctx, s.q(qUpsertAgent), agent.ID, agent.Reputation); err != nil {
		return fmt.Errorf("put agent %q: %w", agent.ID, err)
	}
	return nil
}

// AppendBonus implements Store.
func (s *SQLStore) AppendBonus(ctx context.Context, bonus model.MentorshipBonus) (err error) {
	defer func(start time.Time) { observe("append_bonus", start, err) }(time.Now())

	res, err := s.conn.Exec(ctx, s.q(qAppendBonus),
		bonus.ID, bonus.OperatorID, bonus.BeginnerID, bonus.TaskID,
		bonus.Amount.StringFixed(2), bonus.Reason, bonus.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append bonus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateBonus
	}
	return nil
}

// ListBonuses implements Store.
func (s *SQLStore) ListBonuses(ctx context.Context, operatorID string) ([]model.MentorshipBonus, error) {
	rows, err := s.conn.Query(ctx, s.q(qListBonuses), operatorID)
	if err != nil {
		return nil, fmt.Errorf("list bonuses: %w", err)
	}
	defer rows.Close()

	var out []model.MentorshipBonus
	for rows.Next() {
		var (
			b      model.MentorshipBonus
			amount string
		)
		if err := rows.Scan(&b.ID, &b.OperatorID, &b.BeginnerID, &b.TaskID, &amount, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bonus %q amount: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Stats implements Store.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{TasksByStatus: make(map[model.TaskStatus]int)}

	rows, err := s.conn.Query(ctx, qCountStatus)
	if err != nil {
		return Stats{}, err
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			_ = rows.Close()
			return Stats{}, err
		}
		st.TasksByStatus[model.TaskStatus(status)] = n
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return Stats{}, err
	}

	for query, dst := range map[string]*int{
		qCountOperators:   &st.Operators,
		qCountAgents:      &st.Agents,
		qCountAssignments: &st.Assignments,
		qCountBonuses:     &st.Bonuses,
	} {
		if err := s.conn.QueryRow(ctx, query).Scan(dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

// Ping verifies the database answers.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.conn.Close()
}

package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rota/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Store is the write side the generator needs.
type Store interface {
	PutOperator(ctx context.Context, op model.Operator) error
	PutAgent(ctx context.Context, agent model.Agent) error
	PutTask(ctx context.Context, task model.Task) error
}

var skillPool = []string{"go", "sql", "k8s", "python", "react", "rust", "terraform", "kafka"} //nolint:gochecknoglobals // fixture data

// namespace scopes the deterministic task ids.
var namespace = uuid.MustParse("6f1c0e52-8d0b-4f8e-9d3a-3b9c2f7a1e44") //nolint:gochecknoglobals // id namespace

const (
	lowAgentShare     = 0.1
	unverifiedShare   = 0.1
	minBudgetCents    = 1_000
	budgetRangeCents  = 40_000
	maxRequiredSkills = 7
)

// Population lists what Populate wrote.
type Population struct {
	Operators []model.Operator
	Agents    []model.Agent
	TaskIDs   []string
}

// Populate writes a reproducible marketplace for cfg.Seed into store.
func Populate(ctx context.Context, store Store, cfg Config) (Population, error) {
	if err := cfg.Validate(); err != nil {
		return Population{}, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var pop Population
	for i := range cfg.Operators {
		op := model.Operator{
			ID:             fmt.Sprintf("op-%05d", i),
			CompletedTasks: experience(rng),
			Reputation:     2.0 + float64(rng.IntN(31))/10, // 2.0 to 5.0
			Skills:         pickSkills(rng, 1+rng.IntN(3)),
			Verification:   model.Verified,
		}
		if rng.Float64() < unverifiedShare {
			op.Verification = model.Unverified
		}
		if err := store.PutOperator(ctx, op); err != nil {
			return pop, fmt.Errorf("put operator %s: %w", op.ID, err)
		}
		pop.Operators = append(pop.Operators, op)
	}

	for i := range cfg.Agents {
		agent := model.Agent{ID: fmt.Sprintf("agent-%03d", i), Reputation: 2.5 + float64(rng.IntN(26))/10}
		if rng.Float64() < lowAgentShare {
			agent.Reputation = 1.0 + float64(rng.IntN(15))/10
		}
		if err := store.PutAgent(ctx, agent); err != nil {
			return pop, fmt.Errorf("put agent %s: %w", agent.ID, err)
		}
		pop.Agents = append(pop.Agents, agent)
	}

	for i := range cfg.Tasks {
		id := uuid.NewSHA1(namespace, fmt.Appendf(nil, "%d/%d", cfg.Seed, i)).String()
		task := model.Task{
			ID:             id,
			AgentID:        pop.Agents[rng.IntN(len(pop.Agents))].ID,
			Budget:         decimal.New(int64(minBudgetCents+rng.IntN(budgetRangeCents)), -2),
			RequiredSkills: pickSkills(rng, 1+rng.IntN(maxRequiredSkills)),
			Priority:       rng.IntN(3),
			Status:         model.TaskOpen,
			CreatedAt:      created.Add(time.Duration(i) * time.Minute),
		}
		if err := store.PutTask(ctx, task); err != nil {
			return pop, fmt.Errorf("put task %s: %w", id, err)
		}
		pop.TaskIDs = append(pop.TaskIDs, id)
	}
	return pop, nil
}

// experience draws completed-task counts skewed toward newer operators.
func experience(rng *rand.Rand) int {
	switch r := rng.Float64(); {
	case r < 0.15:
		return 0
	case r < 0.45:
		return 1 + rng.IntN(9)
	case r < 0.70:
		return 10 + rng.IntN(15)
	case r < 0.88:
		return 25 + rng.IntN(25)
	default:
		return 50 + rng.IntN(150)
	}
}

func pickSkills(rng *rand.Rand, n int) []string {
	n = min(n, len(skillPool))
	perm := rng.Perm(len(skillPool))
	out := make([]string, n)
	for i := range n {
		out[i] = skillPool[perm[i]]
	}
	return out
}

// Band names an experience bracket by completed tasks.
func Band(completed int) string {
	switch {
	case completed == 0:
		return "newcomer"
	case completed < 10:
		return "junior"
	case completed < 25:
		return "intermediate"
	case completed < 50:
		return "senior"
	default:
		return "veteran"
	}
}

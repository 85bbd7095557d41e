package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/rota/internal/adapters/repository"
	"github.com/okian/rota/internal/domain/matching"
	"github.com/okian/rota/internal/domain/scoring"
	"github.com/okian/rota/internal/domain/selection"
	"github.com/okian/rota/internal/domain/tier"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ErrDoubleAssignment reports a task committed to more than one operator.
var ErrDoubleAssignment = errors.New("task assigned more than once")

// Run seeds an in-memory store, sends cfg.Contenders concurrent assignment
// requests per task and verifies every task has at most one winner.
func Run(ctx context.Context, cfg Config, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("simulation")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := repository.NewInMemoryStore()
	defer store.Close()

	start := time.Now()
	pop, err := Populate(ctx, store, cfg)
	if err != nil {
		return nil, fmt.Errorf("populate: %w", err)
	}
	log.Info(ctx, "marketplace generated",
		logger.Int("operators", len(pop.Operators)),
		logger.Int("agents", len(pop.Agents)),
		logger.Int("tasks", len(pop.TaskIDs)),
		logger.Int("workers", cfg.Workers),
	)

	scorer := scoring.NewOpportunityScorer()
	engine := matching.New(store, store,
		matching.WithAgents(store),
		matching.WithScorer(scorer),
		matching.WithSelector(selection.New(selection.WithSource(selection.NewSeededSource(cfg.Seed)))),
		matching.WithLogger(log),
	)

	results := make([][]types.AssignmentResult, len(pop.TaskIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, id := range pop.TaskIDs {
		for range cfg.Contenders {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := engine.AssignTask(gctx, id)
				if err != nil {
					return fmt.Errorf("assign %s: %w", id, err)
				}
				mu.Lock()
				results[i] = append(results[i], res)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := newReport(cfg)
	for _, op := range pop.Operators {
		report.OperatorsByBand[Band(op.CompletedTasks)]++
	}
	bandOf := make(map[string]string, len(pop.Operators))
	for _, op := range pop.Operators {
		bandOf[op.ID] = Band(op.CompletedTasks)
	}
	winsPerOperator := make(map[string]int)

	for i, id := range pop.TaskIDs {
		var winner *types.AssignmentResult
		for j := range results[i] {
			res := &results[i][j]
			if res.Success {
				if winner != nil {
					return nil, fmt.Errorf("%w: %s", ErrDoubleAssignment, id)
				}
				winner = res
				continue
			}
			report.Reasons[res.Reason]++
		}
		if winner == nil {
			report.Unassigned++
			continue
		}

		report.Assigned++
		report.WinsByBand[bandOf[winner.OperatorID]]++
		report.WinsByDifficulty[winner.Difficulty.String()]++
		winsPerOperator[winner.OperatorID]++

		top, err := topScore(ctx, store, engine, scorer, id, winner.Difficulty)
		if err != nil {
			return nil, err
		}
		if winner.Score >= top {
			report.TopRankedWins++
		}
	}

	report.DistinctWinners = len(winsPerOperator)
	for _, n := range winsPerOperator {
		report.MaxWinsPerOperator = max(report.MaxWinsPerOperator, n)
	}
	report.Duration = time.Since(start)
	return report, nil
}

// topScore recomputes the best score among the candidates of a task. The
// operator set does not change during a run, so the pool matches the one
// the engine saw.
func topScore(ctx context.Context, store *repository.InMemoryStore, engine *matching.Engine, scorer scoring.Scorer, taskID string, difficulty tier.Level) (float64, error) {
	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		return 0, err
	}
	pool, err := engine.FindCandidates(ctx, difficulty)
	if err != nil {
		return 0, err
	}
	ranked := selection.Rank(scoring.ScoreAll(scorer, task, difficulty, pool))
	if len(ranked) == 0 {
		return 0, nil
	}
	return ranked[0].Score, nil
}

// Report summarises a run.
type Report struct {
	Config   Config
	Duration time.Duration

	Assigned   int
	Unassigned int
	// Reasons counts every losing request by reason, including the
	// expected conflicts between contenders.
	Reasons map[types.Reason]int

	OperatorsByBand  map[string]int
	WinsByBand       map[string]int
	WinsByDifficulty map[string]int

	TopRankedWins      int
	DistinctWinners    int
	MaxWinsPerOperator int
}

func newReport(cfg Config) *Report {
	return &Report{
		Config:           cfg,
		Reasons:          make(map[types.Reason]int),
		OperatorsByBand:  make(map[string]int),
		WinsByBand:       make(map[string]int),
		WinsByDifficulty: make(map[string]int),
	}
}

// WinShare returns the fraction of assigned tasks won by band.
func (r *Report) WinShare(band string) float64 {
	if r.Assigned == 0 {
		return 0
	}
	return float64(r.WinsByBand[band]) / float64(r.Assigned)
}

// TopRankedShare returns the fraction of winners that held the best score.
func (r *Report) TopRankedShare() float64 {
	if r.Assigned == 0 {
		return 0
	}
	return float64(r.TopRankedWins) / float64(r.Assigned)
}

// Bands lists the bands present in the run in a stable order.
func (r *Report) Bands() []string {
	bands := make([]string, 0, len(r.OperatorsByBand))
	for b := range r.OperatorsByBand {
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool { return bandOrder(bands[i]) < bandOrder(bands[j]) })
	return bands
}

func bandOrder(b string) int {
	for i, name := range []string{"newcomer", "junior", "intermediate", "senior", "veteran"} {
		if name == b {
			return i
		}
	}
	return 100
}

// Log writes the report through l.
func (r *Report) Log(ctx context.Context, l logger.Logger) {
	l.Info(ctx, "simulation finished",
		logger.Int("tasks", r.Config.Tasks),
		logger.Int("assigned", r.Assigned),
		logger.Int("unassigned", r.Unassigned),
		logger.Int("distinct_winners", r.DistinctWinners),
		logger.Int("max_wins_per_operator", r.MaxWinsPerOperator),
		logger.Float64("top_ranked_share", r.TopRankedShare()),
		logger.Duration("duration", r.Duration),
	)
	for _, b := range r.Bands() {
		l.Info(ctx, "band",
			logger.String("band", b),
			logger.Int("operators", r.OperatorsByBand[b]),
			logger.Int("wins", r.WinsByBand[b]),
			logger.Float64("win_share", r.WinShare(b)),
		)
	}
	for reason, n := range r.Reasons {
		l.Info(ctx, "rejections", logger.String("reason", string(reason)), logger.Int("count", n))
	}
}

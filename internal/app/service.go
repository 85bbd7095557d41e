package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/rota/internal/adapters/broker"
	"github.com/okian/rota/internal/adapters/database"
	"github.com/okian/rota/internal/adapters/http/api"
	"github.com/okian/rota/internal/adapters/mq/queue"
	"github.com/okian/rota/internal/adapters/mq/worker"
	"github.com/okian/rota/internal/adapters/repository"
	"github.com/okian/rota/internal/config"
	"github.com/okian/rota/internal/domain/dedupe"
	"github.com/okian/rota/internal/domain/matching"
	"github.com/okian/rota/internal/domain/mentorship"
	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/scoring"
	"github.com/okian/rota/internal/domain/selection"
	"github.com/okian/rota/internal/domain/tier"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const systemMetricsInterval = 5 * time.Second

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service owns every runtime component and implements api.Dependencies.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store     repository.Store
	deduper   dedupe.Deduper
	publisher broker.Publisher
	source    selection.Source
	now       func() time.Time

	redis   *redis.Client
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	matcher *matching.Engine
	mentor  *mentorship.Engine

	// owned marks components built by Start; injected ones are left open.
	owned struct{ store, deduper, publisher bool }

	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

var _ api.Dependencies = (*Service)(nil)

// New creates a service from cfg. Nothing is connected until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start connects the stores and the broker, builds the engines and launches
// the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting rota service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}
	if err := s.openDeduper(ctx); err != nil {
		if cerr := s.closeOwned(); cerr != nil {
			s.logger.Warn(ctx, "cleanup after failed start", logger.Error(cerr))
		}
		return err
	}
	s.openPublisher(ctx)

	emitter := broker.NewEmitter(s.publisher, broker.WithEmitterLogger(s.logger))

	selOpts := []selection.Option{
		selection.WithTopN(s.cfg.TopN),
		selection.WithWeights(s.cfg.RotationWeights),
	}
	if s.source != nil {
		selOpts = append(selOpts, selection.WithSource(s.source))
	}
	s.matcher = matching.New(s.store, s.store,
		matching.WithAgents(s.store),
		matching.WithScorer(scoring.NewOpportunityScorer()),
		matching.WithSelector(selection.New(selOpts...)),
		matching.WithCandidateLimit(s.cfg.CandidateLimit),
		matching.WithAgentMinReputation(s.cfg.AgentMinReputation),
		matching.WithClock(s.now),
		matching.WithOnAssigned(emitter.AssignmentCommitted),
		matching.WithLogger(s.logger),
	)
	s.mentor = mentorship.New(s.store, s.store,
		mentorship.WithEligibility(s.cfg.MentorMinCompleted, s.cfg.MentorMinReputation),
		mentorship.WithAmount(s.cfg.BonusAmount()),
		mentorship.WithClock(s.now),
		mentorship.WithOnAward(emitter.BonusAwarded),
		mentorship.WithLogger(s.logger),
	)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, s.mentor,
		worker.WithLogger(s.logger),
		worker.WithOnFailure(s.releaseEvent),
	)
	s.pool.Start(context.WithoutCancel(ctx))

	s.stopCh = make(chan struct{})
	go s.collectSystemMetrics(s.stopCh)

	s.started = true
	s.logger.Info(ctx, "rota service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.cfg.QueueSize),
		logger.Bool("sql_store", s.cfg.DatabaseURL != ""),
		logger.Bool("redis_dedupe", s.redis != nil),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	if s.cfg.DatabaseURL == "" {
		s.store = repository.NewInMemoryStore(repository.WithLogger(s.logger))
		s.owned.store = true
		s.logger.Info(ctx, "using in-memory store")
		return nil
	}

	conn, err := database.Open(ctx, database.Config{URL: s.cfg.DatabaseURL, MaxConns: s.cfg.DatabaseMaxConns})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store, err := repository.NewSQLStore(ctx, conn,
		repository.WithMigrate(true),
		repository.WithLogger(s.logger),
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open sql store: %w", err)
	}
	s.store = store
	s.owned.store = true
	s.logger.Info(ctx, "using sql store", logger.String("driver", string(database.DetectDriver(s.cfg.DatabaseURL))))
	return nil
}

func (s *Service) openDeduper(ctx context.Context) error {
	if s.deduper != nil {
		return nil
	}
	s.owned.deduper = true
	if s.cfg.RedisURL == "" {
		s.deduper = dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(s.cfg.DedupeSize),
			dedupe.WithTTL(s.cfg.DedupeTTL),
		)
		return nil
	}

	client, err := dedupe.Connect(ctx, s.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	s.redis = client
	s.deduper = dedupe.NewRedisDeduper(client, dedupe.WithKeyTTL(s.cfg.DedupeTTL))
	return nil
}

// openPublisher falls back to the no-op publisher when the broker cannot be
// reached; events are best effort.
func (s *Service) openPublisher(ctx context.Context) {
	if s.publisher != nil {
		return
	}
	s.owned.publisher = true
	if s.cfg.RabbitMQURL == "" {
		s.publisher = broker.NewNoopPublisher(s.logger)
		return
	}

	rabbit, err := broker.NewRabbitMQPublisher(s.cfg.RabbitMQURL, s.logger)
	if err != nil {
		s.logger.Error(ctx, "rabbitmq unavailable, domain events disabled", logger.Error(err))
		s.publisher = broker.NewNoopPublisher(s.logger)
		return
	}
	threshold := uint32(max(s.cfg.BreakerFailureThreshold, 1)) //nolint:gosec // bounded by config validation
	s.publisher = broker.NewBreakerPublisher(rabbit,
		broker.WithFailureThreshold(threshold),
		broker.WithOpenTimeout(s.cfg.BreakerTimeout),
		broker.WithBreakerLogger(s.logger),
	)
}

// Stop drains the worker pool and releases every connection.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping rota service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	close(s.stopCh)
	if err := s.closeOwned(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "rota service stopped")
	return errors.Join(errs...)
}

// closeOwned releases the components Start built and forgets them so the
// next Start rebuilds them.
func (s *Service) closeOwned() error {
	var errs []error
	if s.owned.publisher && s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		s.publisher = nil
	}
	if s.owned.store && s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.store = nil
	}
	if s.owned.deduper {
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
			s.redis = nil
		}
		s.deduper = nil
	}
	s.owned = struct{ store, deduper, publisher bool }{}
	return errors.Join(errs...)
}

func (s *Service) collectSystemMetrics(stop <-chan struct{}) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	var m runtime.MemStats
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			if m.NumGC > 0 {
				metrics.RecordSystemGCPauseTime(float64(m.PauseNs[(m.NumGC+255)%256]) / 1e6)
			}
		}
	}
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Store exposes the backing store, for seeding.
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// AssignTask implements api.TaskDependencies.
func (s *Service) AssignTask(ctx context.Context, taskID string) (types.AssignmentResult, error) {
	if !s.running() {
		return types.AssignmentResult{}, ErrNotStarted
	}
	return s.matcher.AssignTask(ctx, taskID)
}

// GetTask implements api.TaskDependencies.
func (s *Service) GetTask(ctx context.Context, taskID string) (model.Task, error) {
	if !s.running() {
		return model.Task{}, ErrNotStarted
	}
	return s.store.GetTask(ctx, taskID)
}

// GetOperator implements api.OperatorDependencies.
func (s *Service) GetOperator(ctx context.Context, operatorID string) (types.OperatorView, error) {
	if !s.running() {
		return types.OperatorView{}, ErrNotStarted
	}
	op, err := s.store.GetOperator(ctx, operatorID)
	if err != nil {
		return types.OperatorView{}, err
	}
	return types.OperatorView{Operator: op, Tier: tier.ForOperator(op.CompletedTasks, op.Reputation)}, nil
}

// EvaluateMentorship implements api.MentorshipDependencies.
func (s *Service) EvaluateMentorship(ctx context.Context, expertID, beginnerID, taskID string) (types.MentorshipResult, error) {
	if !s.running() {
		return types.MentorshipResult{}, ErrNotStarted
	}
	return s.mentor.Evaluate(ctx, expertID, beginnerID, taskID)
}

// SubmitMentorshipEvent implements api.MentorshipDependencies. The event id
// is recorded before enqueueing and released again when the queue refuses
// the event, so the client can retry.
func (s *Service) SubmitMentorshipEvent(ctx context.Context, e model.MentorshipEvent) (bool, error) {
	const op = "service.submit_mentorship_event"
	if !s.running() {
		return false, ErrNotStarted
	}

	seen, err := s.deduper.SeenAndRecord(ctx, e.EventID)
	if err != nil {
		return false, fmt.Errorf("dedupe %s: %w", e.EventID, err)
	}
	if seen {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate mentorship event", logger.String("event_id", e.EventID))
		return true, nil
	}

	e.ReceivedAt = s.now()
	if err := s.queue.Enqueue(ctx, e); err != nil {
		s.releaseEvent(ctx, e, err)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			return false, api.WrapKind(op, api.ErrBackpressure, err)
		}
		return false, fmt.Errorf("enqueue %s: %w", e.EventID, err)
	}
	return false, nil
}

func (s *Service) releaseEvent(ctx context.Context, e model.MentorshipEvent, cause error) {
	if err := s.deduper.Unrecord(context.WithoutCancel(ctx), e.EventID); err != nil {
		s.logger.Warn(ctx, "release event id failed",
			logger.String("event_id", e.EventID),
			logger.Error(err),
		)
		return
	}
	s.logger.Debug(ctx, "event id released",
		logger.String("event_id", e.EventID),
		logger.Error(cause),
	)
}

// GetStats implements api.StatsProvider.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
	}
	if !s.started {
		return stats
	}

	stats["queue_length"] = s.queue.Len()
	stats["queue_capacity"] = s.queue.Capacity()
	stats["workers"] = s.pool.Size()
	stats["dedupe_size"] = s.deduper.Size()

	st, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn(ctx, "store stats failed", logger.Error(err))
		stats["store_error"] = err.Error()
		return stats
	}
	stats["tasks_by_status"] = st.TasksByStatus
	stats["operators"] = st.Operators
	stats["agents"] = st.Agents
	stats["assignments"] = st.Assignments
	stats["bonuses"] = st.Bonuses
	return stats
}

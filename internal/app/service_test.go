package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/rota/internal/adapters/broker"
	_ "github.com/okian/rota/internal/adapters/database/sqlite"
	"github.com/okian/rota/internal/adapters/http/api"
	"github.com/okian/rota/internal/adapters/repository"
	service "github.com/okian/rota/internal/app"
	"github.com/okian/rota/internal/config"
	"github.com/okian/rota/internal/domain/model"
	"github.com/okian/rota/internal/domain/selection"
	"github.com/okian/rota/internal/domain/tier"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/pkg/logger"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func seedStore(ctx context.Context, s repository.Store) {
	for _, op := range []model.Operator{
		{ID: "expert", CompletedTasks: 40, Reputation: 4.6, Skills: []string{"go"}, Verification: model.Verified},
		{ID: "mid", CompletedTasks: 12, Reputation: 4.1, Verification: model.Verified},
		{ID: "beginner", CompletedTasks: 0, Reputation: 3.2, Verification: model.Verified},
	} {
		So(s.PutOperator(ctx, op), ShouldBeNil)
	}
	So(s.PutAgent(ctx, model.Agent{ID: "good-agent", Reputation: 3.0}), ShouldBeNil)
	So(s.PutAgent(ctx, model.Agent{ID: "bad-agent", Reputation: 1.0}), ShouldBeNil)
	for _, task := range []model.Task{
		{ID: "t1", AgentID: "good-agent", Budget: decimal.NewFromInt(40), RequiredSkills: []string{"go"}, Status: model.TaskOpen, CreatedAt: now},
		{ID: "t2", AgentID: "bad-agent", Budget: decimal.NewFromInt(40), RequiredSkills: []string{"go"}, Status: model.TaskOpen, CreatedAt: now},
	} {
		So(s.PutTask(ctx, task), ShouldBeNil)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.WorkerCount = 2
	cfg.QueueSize = 16
	return cfg
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService(t *testing.T) {
	Convey("Given a started service over a seeded store", t, func() {
		ctx := context.Background()
		store := repository.NewInMemoryStore()
		seedStore(ctx, store)
		pub := &recordingPublisher{}

		svc := service.New(testConfig(),
			service.WithStore(store),
			service.WithPublisher(pub),
			service.WithRandomSource(selection.NewSeededSource(7)),
			service.WithClock(func() time.Time { return now }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { So(svc.Stop(ctx), ShouldBeNil) }()

		Convey("When a task is assigned", func() {
			res, err := svc.AssignTask(ctx, "t1")
			So(err, ShouldBeNil)

			Convey("Then one eligible operator wins and an event is published", func() {
				So(res.Success, ShouldBeTrue)
				So(res.OperatorID, ShouldBeIn, []string{"expert", "mid", "beginner"})
				So(res.Difficulty, ShouldEqual, tier.Easy)
				So(res.AssignedAt, ShouldEqual, now)
				So(pub.published(), ShouldContain, broker.KeyAssignmentCommitted)

				task, err := svc.GetTask(ctx, "t1")
				So(err, ShouldBeNil)
				So(task.AssignedOperatorID, ShouldEqual, res.OperatorID)
			})

			Convey("And assigning it again conflicts", func() {
				again, err := svc.AssignTask(ctx, "t1")
				So(err, ShouldBeNil)
				So(again.Success, ShouldBeFalse)
				So(again.Reason, ShouldEqual, types.ReasonAssignmentConflict)
			})
		})

		Convey("When the posting agent is below the bar", func() {
			res, err := svc.AssignTask(ctx, "t2")
			So(err, ShouldBeNil)
			So(res.Reason, ShouldEqual, types.ReasonAgentReputationTooLow)
		})

		Convey("When the task is unknown", func() {
			_, err := svc.AssignTask(ctx, "nope")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When reading an operator", func() {
			view, err := svc.GetOperator(ctx, "mid")
			So(err, ShouldBeNil)
			So(view.Tier, ShouldEqual, tier.Medium)
			So(view.CompletedTasks, ShouldEqual, 12)
		})

		Convey("When mentorship is evaluated synchronously", func() {
			res, err := svc.EvaluateMentorship(ctx, "expert", "beginner", "t1")
			So(err, ShouldBeNil)
			So(res.Awarded, ShouldBeTrue)
			So(res.Amount.StringFixed(2), ShouldEqual, "5.00")
			So(pub.published(), ShouldContain, broker.KeyBonusAwarded)

			again, err := svc.EvaluateMentorship(ctx, "expert", "beginner", "t1")
			So(err, ShouldBeNil)
			So(again.Reason, ShouldEqual, types.ReasonAlreadyAwarded)
		})

		Convey("When a mentorship event is submitted", func() {
			e := model.MentorshipEvent{EventID: "evt-1", ExpertID: "expert", BeginnerID: "beginner", TaskID: "t9"}
			dup, err := svc.SubmitMentorshipEvent(ctx, e)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			Convey("Then a worker pays the bonus once", func() {
				paid := eventually(func() bool {
					list, _ := store.ListBonuses(ctx, "expert")
					return len(list) == 1
				})
				So(paid, ShouldBeTrue)
			})

			Convey("And resubmitting the same id is a duplicate", func() {
				dup, err := svc.SubmitMentorshipEvent(ctx, e)
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When stats are read", func() {
			_, _ = svc.AssignTask(ctx, "t1")
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["assignments"], ShouldEqual, 1)
			So(stats["operators"], ShouldEqual, 3)
			So(stats["workers"], ShouldEqual, 2)
			So(stats["queue_capacity"], ShouldEqual, 16)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		ctx := context.Background()
		svc := service.New(nil, service.WithLogger(logger.Nop()))

		Convey("Operations report ErrNotStarted", func() {
			_, err := svc.AssignTask(ctx, "t1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.SubmitMentorshipEvent(ctx, model.MentorshipEvent{EventID: "x"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("It can be started and stopped repeatedly with its own store", func() {
			for range 3 {
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Store(), ShouldNotBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
			}
			_, err := svc.GetTask(ctx, "t1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_StartFailure(t *testing.T) {
	Convey("Given a SQL-backed service whose Redis is unreachable", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := config.New()
		cfg.DatabaseURL = filepath.Join(t.TempDir(), "rota.db")
		cfg.RedisURL = "redis://127.0.0.1:1/0"
		svc := service.New(cfg, service.WithLogger(logger.Nop()))

		err := svc.Start(ctx)

		Convey("Then Start fails and releases the store it opened", func() {
			So(err, ShouldNotBeNil)
			So(svc.Store(), ShouldBeNil)
			So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("And a later Start over the same database succeeds", func() {
			cfg.RedisURL = ""
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Store(), ShouldNotBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given an injected store and an unreachable Redis", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		store := repository.NewInMemoryStore()
		seedStore(ctx, store)
		cfg := config.New()
		cfg.RedisURL = "redis://127.0.0.1:1/0"
		svc := service.New(cfg, service.WithStore(store), service.WithLogger(logger.Nop()))

		So(svc.Start(ctx), ShouldNotBeNil)

		Convey("Then the injected store is left open", func() {
			_, err := store.GetTask(ctx, "t1")
			So(err, ShouldBeNil)
			So(svc.Store(), ShouldEqual, store)
		})
	})
}

// gatedStore blocks operator reads until the gate opens.
type gatedStore struct {
	*repository.InMemoryStore
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedStore) GetOperator(ctx context.Context, id string) (model.Operator, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.InMemoryStore.GetOperator(ctx, id)
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given one busy worker and a queue of one", t, func() {
		ctx := context.Background()
		mem := repository.NewInMemoryStore()
		seedStore(ctx, mem)
		store := &gatedStore{InMemoryStore: mem, entered: make(chan struct{}), gate: make(chan struct{})}

		cfg := testConfig()
		cfg.WorkerCount = 1
		cfg.QueueSize = 1
		svc := service.New(cfg, service.WithStore(store), service.WithPublisher(broker.NewNoopPublisher(nil)))
		So(svc.Start(ctx), ShouldBeNil)

		ev := func(id string) model.MentorshipEvent {
			return model.MentorshipEvent{EventID: id, ExpertID: "expert", BeginnerID: "beginner", TaskID: id}
		}

		_, err := svc.SubmitMentorshipEvent(ctx, ev("e1"))
		So(err, ShouldBeNil)
		<-store.entered
		_, err = svc.SubmitMentorshipEvent(ctx, ev("e2"))
		So(err, ShouldBeNil)

		Convey("When the queue is full the event is refused and its id released", func() {
			_, err := svc.SubmitMentorshipEvent(ctx, ev("e3"))
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)

			close(store.gate)
			So(eventually(func() bool {
				list, _ := mem.ListBonuses(ctx, "expert")
				return len(list) == 2
			}), ShouldBeTrue)

			dup, err := svc.SubmitMentorshipEvent(ctx, ev("e3"))
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)
			So(svc.Stop(ctx), ShouldBeNil)

			list, _ := mem.ListBonuses(ctx, "expert")
			So(len(list), ShouldEqual, 3)
		})
	})
}

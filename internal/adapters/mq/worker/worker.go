package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/rota/internal/adapters/mq/queue"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/pkg/logger"
	"github.com/okian/rota/pkg/metrics"
)

const defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()

// Event is the unit of work taken from the queue.
type Event = queue.Event

// Evaluator decides and records the bonus for one mentorship event.
type Evaluator interface {
	Evaluate(ctx context.Context, expertID, beginnerID, taskID string) (types.MentorshipResult, error)
}

// Queue is the consuming side of queue.Queue.
type Queue interface {
	Dequeue(ctx context.Context) (Event, error)
	Close() error
}

// Pool runs a fixed number of workers over a shared queue.
type Pool struct {
	size      int
	queue     Queue
	evaluator Evaluator
	onFailure func(ctx context.Context, e Event, err error)

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one uses a
// multiple of the CPU count.
func NewPool(workerCount int, q Queue, evaluator Evaluator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		size:      workerCount,
		queue:     q,
		evaluator: evaluator,
		cancel:    func() {},
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool")
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. They stop when ctx is done or the queue is
// closed and drained.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(p.size)
	for i := range p.size {
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(p.size)
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()

	for {
		e, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				log.Error(ctx, "dequeue failed", logger.Error(err))
			}
			return
		}
		if err := p.process(ctx, e); err != nil {
			log.Error(ctx, "error processing event",
				logger.String("event_id", e.EventID),
				logger.Error(err),
			)
		}
	}
}

func (p *Pool) process(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.ObserveWorkerLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	res, err := p.evaluator.Evaluate(ctx, e.ExpertID, e.BeginnerID, e.TaskID)
	if err != nil {
		metrics.RecordWorkerError()
		if p.onFailure != nil {
			p.onFailure(ctx, e, err)
		}
		return fmt.Errorf("evaluate event %s: %w", e.EventID, err)
	}

	metrics.RecordWorkerProcessed()
	p.logger.Debug(ctx, "event processed",
		logger.String("event_id", e.EventID),
		logger.Bool("awarded", res.Awarded),
		logger.String("reason", string(res.Reason)),
	)
	return nil
}

// Shutdown closes the queue and waits for the workers to drain it. When ctx
// expires first the remaining workers are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	var closeErr error
	p.once.Do(func() {
		closeErr = p.queue.Close()
	})
	if closeErr != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(closeErr))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "shutdown timed out, cancelling workers")
		p.cancel()
		<-done
		metrics.UpdateWorkerCount(0)
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of deferred work, typically a cleanup step left over from
// a subject deletion. Payload is interpreted by the queue's handler based on
// Type.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a single job. A non-nil error triggers a retry until the
// attempt budget runs out.
type Handler func(context.Context, Job) error

// QueueConfig tunes the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue runs jobs on a fixed pool of goroutines fed by a buffered channel.
// It deliberately has no persistence: a crash loses queued cleanup work,
// which is acceptable because every job it carries is idempotent and
// re-creatable from the database.
type Queue struct {
	name string

	handler    Handler
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	pending chan Job
	seq     atomic.Uint64

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewQueue builds a stopped queue. Zero config values fall back to safe
// defaults.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	buffer := cfg.BufferSize
	if buffer < 1 {
		buffer = workers * 4
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    workers,
		maxRetries: retries,
		retryDelay: delay,
		logger:     log.With(zap.String("queue", name)),
		pending:    make(chan Job, buffer),
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels the workers and blocks until they exit. Jobs still buffered
// in the channel are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.running = false
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue submits a job, blocking while the buffer is full. It fails when
// the queue was never started or has been stopped.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	running := q.running
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %s is not running", q.name)
	}
	if job.ID == "" {
		job.ID = fmt.Sprintf("%s-%d", q.name, q.seq.Add(1))
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s shut down: %w", q.name, ctx.Err())
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			q.process(job)
		}
	}
}

func (q *Queue) process(job Job) {
	err := q.handler(q.ctx, job)
	if err == nil {
		return
	}

	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error("job dropped after exhausting retries",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("attempts", job.Attempt),
			zap.Error(err))
		return
	}

	q.logger.Warn("job failed, scheduling retry",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))

	// Requeue off-worker so the retry delay never stalls the pool.
	go func(j Job) {
		select {
		case <-q.ctx.Done():
		case <-time.After(q.retryDelay):
			select {
			case q.pending <- j:
			case <-q.ctx.Done():
			}
		}
	}(job)
}

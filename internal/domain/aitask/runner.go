package aitask

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/clinical-ai/internal/platform/genai"
)

// RunnerOptions configures the background worker pool.
type RunnerOptions struct {
	Workers     int
	QueueSize   int
	CallTimeout time.Duration
}

// Runner executes queued tasks on a fixed pool of workers. Each task is run
// at most once per dispatch; a worker marks the row IN_PROGRESS before
// calling the generation capability and always leaves it in a terminal
// status, even on panic.
type Runner struct {
	repo    Repository
	gen     genai.Generator
	log     zerolog.Logger
	opts    RunnerOptions
	queue   chan uuid.UUID
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

func NewRunner(repo Repository, gen genai.Generator, log zerolog.Logger, opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 90 * time.Second
	}
	return &Runner{
		repo:  repo,
		gen:   gen,
		log:   log.With().Str("component", "aitask-runner").Logger(),
		opts:  opts,
		queue: make(chan uuid.UUID, opts.QueueSize),
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.log.Info().Int("workers", r.opts.Workers).Int("queue_size", r.opts.QueueSize).
		Msg("task runner started")
}

// Dispatch queues a task for execution. It never blocks; when the queue is
// saturated it returns ErrQueueFull and the caller decides what to do with
// the already-persisted row.
func (r *Runner) Dispatch(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrQueueFull
	}
	select {
	case r.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new dispatches, drains queued work, and waits for in-flight
// tasks up to the context deadline.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info().Msg("task runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task runner shutdown: %w", ctx.Err())
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for id := range r.queue {
		r.runOne(id)
	}
}

// runOne isolates a single execution so a panicking task only fails its own
// row instead of killing the worker.
func (r *Runner) runOne(id uuid.UUID) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("task_id", id.String()).Interface("panic", rec).
				Msg("task execution panicked")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.repo.Fail(ctx, id, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.CallTimeout)
	defer cancel()

	if err := r.repo.MarkInProgress(ctx, id); err != nil {
		// Already terminal or gone; nothing to run.
		r.log.Warn().Err(err).Str("task_id", id.String()).Msg("skipping task")
		return
	}

	t, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.fail(id, fmt.Sprintf("load task: %v", err))
		return
	}

	started := time.Now()
	output, err := r.execute(ctx, t)
	if err != nil {
		r.log.Error().Err(err).Str("task_id", id.String()).Str("type", t.Type).
			Dur("elapsed", time.Since(started)).Msg("task failed")
		r.fail(id, truncate(err.Error(), 1000))
		return
	}

	if err := r.repo.Complete(ctx, id, output); err != nil {
		r.log.Error().Err(err).Str("task_id", id.String()).Msg("persist task result")
		return
	}
	r.log.Info().Str("task_id", id.String()).Str("type", t.Type).
		Dur("elapsed", time.Since(started)).Msg("task completed")
}

func (r *Runner) execute(ctx context.Context, t *Task) ([]byte, error) {
	prompt, err := BuildPrompt(t)
	if err != nil {
		return nil, err
	}
	output, err := r.gen.GenerateObject(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if err := ValidateResult(t.Type, output); err != nil {
		return nil, err
	}
	return output, nil
}

// fail writes the terminal failure on a fresh context so a task that failed
// by deadline still gets its status recorded.
func (r *Runner) fail(id uuid.UUID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.repo.Fail(ctx, id, message); err != nil {
		r.log.Error().Err(err).Str("task_id", id.String()).Msg("persist task failure")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

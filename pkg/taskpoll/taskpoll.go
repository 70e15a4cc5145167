// Package taskpoll implements client-side polling of asynchronous task
// status endpoints: a fixed-interval watch loop with a hard ceiling, and a
// tracker that keeps at most one watch alive per consumer.
package taskpoll

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultCeiling  = 120 * time.Second
)

var (
	// ErrTimeout is reported when a task does not reach a terminal status
	// within the ceiling.
	ErrTimeout = errors.New("task polling timed out")
	// ErrCancelled is reported when the watch was cancelled before the task
	// finished.
	ErrCancelled = errors.New("task polling cancelled")
)

// Snapshot is one observed task state.
type Snapshot struct {
	TaskID string          `json:"taskId"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Terminal reports whether the snapshot's status is final.
func (s Snapshot) Terminal() bool {
	return s.Status == "COMPLETED" || s.Status == "FAILED"
}

// Fetcher retrieves the current state of a task, typically via the status
// endpoint.
type Fetcher func(ctx context.Context, taskID string) (Snapshot, error)

// Options tunes the watch loop. Zero values take the defaults.
type Options struct {
	Interval time.Duration
	Ceiling  time.Duration
}

// Poller creates watches over a Fetcher.
type Poller struct {
	fetch Fetcher
	opts  Options
}

func New(fetch Fetcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultCeiling
	}
	return &Poller{fetch: fetch, opts: opts}
}

// Subscription is a single live watch. Snapshot is safe to call from any
// goroutine; Done closes once the watch has ended for any reason.
type Subscription struct {
	taskID string
	cancel context.CancelFunc

	mu     sync.Mutex
	latest Snapshot
	err    error

	done     chan struct{}
	doneOnce sync.Once
}

// Watch begins polling taskID. The first fetch happens immediately, then
// every interval until a terminal status, a fetch error, the ceiling, or
// cancellation. A single fetch failure ends the watch. The ceiling is a
// deadline on the watch context, so a status fetch that blocks is cancelled
// when the ceiling passes rather than keeping the watch alive.
func (p *Poller) Watch(ctx context.Context, taskID string) *Subscription {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Ceiling)
	s := &Subscription{
		taskID: taskID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run(ctx, s)
	return s
}

func (p *Poller) run(ctx context.Context, s *Subscription) {
	defer s.finish()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		snap, err := p.fetch(ctx, s.taskID)
		if err != nil {
			s.setErr(watchErr(ctx, err))
			return
		}
		s.setSnapshot(snap)
		if snap.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			s.setErr(watchErr(ctx, ctx.Err()))
			return
		case <-ticker.C:
		}
	}
}

// watchErr maps a context-driven termination onto the package sentinels; any
// other fetch error passes through unchanged.
func watchErr(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ErrTimeout
	case context.Canceled:
		return ErrCancelled
	}
	return err
}

// Snapshot returns the most recent observation and the terminal error of the
// watch, if any.
func (s *Subscription) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.err
}

// Done closes when the watch has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cancel stops the watch. Safe to call multiple times and after completion.
func (s *Subscription) Cancel() { s.cancel() }

func (s *Subscription) setSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Subscription) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Tracker keeps at most one live watch. Tracking a new task cancels the
// previous watch and waits for it to wind down first, so two watches never
// report interleaved.
type Tracker struct {
	poller *Poller

	mu     sync.Mutex
	active *Subscription
}

func NewTracker(poller *Poller) *Tracker {
	return &Tracker{poller: poller}
}

// Track switches the tracker to taskID and returns the new subscription.
func (t *Tracker) Track(ctx context.Context, taskID string) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		t.active.Cancel()
		<-t.active.Done()
	}
	t.active = t.poller.Watch(ctx, taskID)
	return t.active
}

// Stop cancels the current watch, if any.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		t.active.Cancel()
		<-t.active.Done()
		t.active = nil
	}
}

// Current returns the live subscription, or nil when nothing is tracked.
func (t *Tracker) Current() *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

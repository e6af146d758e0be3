// Package scheduler runs the deferred reminder timer engine.
//
// The Engine keeps at most one pending job per booking in a min-heap ordered
// by fire time and a single goroutine sleeps until the earliest deadline.
// Every mutation is written through to a JobStore first, so the in-memory
// queue can always be rebuilt by Start. Jobs that became due while the
// process was down are fired sequentially by Start before the loop begins.
//
// Delivery is at-least-once: a crash between Notifier.Send and the job
// deletion causes one more send on the next start.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// Engine is the timer engine for reminder jobs. Upsert, Cancel, FireNow and
// Pending are safe for concurrent use while the loop is running.
type Engine struct {
	store    JobStore
	bookings reminder.BookingStore
	notifier reminder.Notifier
	clock    types.Clock
	retry    *RetryPolicy
	logger   *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*entry
	queue   jobQueue
	version uint64

	wake    chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// EngineConfig holds the dependencies of an Engine. Retry is optional; when
// nil a failed delivery stays pending until the next Start or reschedule.
type EngineConfig struct {
	Store    JobStore
	Bookings reminder.BookingStore
	Notifier reminder.Notifier
	Clock    types.Clock
	Retry    *RetryPolicy
	Logger   *slog.Logger
}

// NewEngine creates an Engine. It does not touch the store until Start.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Engine{
		store:    cfg.Store,
		bookings: cfg.Bookings,
		notifier: cfg.Notifier,
		clock:    clock,
		retry:    cfg.Retry,
		logger:   logger,
		jobs:     make(map[string]*entry),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads every persisted job, fires the overdue ones in fire-time order
// and then launches the timing loop. It returns once catch-up has finished.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return types.NewAppError(types.ErrCodeConflictEngineState, "engine already started", nil)
	}
	e.started = true

	persisted, err := e.store.List(ctx)
	if err != nil {
		e.started = false
		e.mu.Unlock()
		return fmt.Errorf("loading reminder jobs: %w", err)
	}

	e.jobs = make(map[string]*entry, len(persisted))
	e.queue = make(jobQueue, 0, len(persisted))
	for _, job := range persisted {
		e.version++
		ent := &entry{job: job, version: e.version}
		e.jobs[job.BookingID] = ent
		heap.Push(&e.queue, ent)
	}
	e.mu.Unlock()

	now := e.clock.Now()
	overdue := 0
	for _, job := range persisted {
		if !job.FireAt.After(now) {
			overdue++
		}
	}
	e.logger.InfoContext(ctx, "reminder engine starting",
		"jobs", len(persisted),
		"overdue", overdue,
	)

	// The loop outlives the caller's context; Stop ends it.
	runCtx := context.WithoutCancel(ctx)
	e.fireDue(runCtx)

	go e.loop(runCtx)
	return nil
}

// Stop ends the timing loop and waits for an in-flight delivery to finish.
// Pending jobs are left in the store. Calling Stop on an engine that was
// never started is a no-op.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()

	select {
	case <-e.done:
		e.logger.Info("reminder engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upsert schedules the reminder for bookingID at fireAt, replacing any
// existing job. fireAt must be strictly in the future. Re-submitting the
// currently scheduled fire time is a no-op.
func (e *Engine) Upsert(ctx context.Context, bookingID string, fireAt time.Time) error {
	if bookingID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "booking id is required", nil)
	}
	now := e.clock.Now()
	if !fireAt.After(now) {
		return types.NewAppError(types.ErrCodeValidationFireAtPast, "fire time must be in the future", nil).
			WithDetails(map[string]any{"booking_id": bookingID, "fire_at": fireAt})
	}
	return e.schedule(ctx, bookingID, fireAt.UTC(), now)
}

// FireNow persists a zero-delay job for bookingID and wakes the loop, so the
// reminder is sent asynchronously through the same guarded path as timed
// jobs. If the engine is not running the job fires on the next Start.
func (e *Engine) FireNow(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "booking id is required", nil)
	}
	now := e.clock.Now()
	return e.schedule(ctx, bookingID, now.UTC(), now)
}

func (e *Engine) schedule(ctx context.Context, bookingID string, fireAt, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.jobs[bookingID]
	if ok && existing.index >= 0 && existing.job.FireAt.Equal(fireAt) {
		return nil
	}

	job := types.ScheduledJob{
		BookingID: bookingID,
		FireAt:    fireAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ok {
		job.CreatedAt = existing.job.CreatedAt
	}

	if err := e.store.Upsert(ctx, job); err != nil {
		return fmt.Errorf("persisting reminder job for booking %s: %w", bookingID, err)
	}

	e.version++
	if ok && existing.index >= 0 {
		existing.job = job
		existing.version = e.version
		heap.Fix(&e.queue, existing.index)
	} else {
		ent := &entry{job: job, version: e.version}
		e.jobs[bookingID] = ent
		heap.Push(&e.queue, ent)
	}

	e.logger.DebugContext(ctx, "reminder job scheduled",
		"booking_id", bookingID,
		"fire_at", fireAt.Format(time.RFC3339),
	)
	e.signal()
	return nil
}

// Cancel removes the job for bookingID. A missing job is not an error.
func (e *Engine) Cancel(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "booking id is required", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Delete(ctx, bookingID); err != nil {
		return fmt.Errorf("deleting reminder job for booking %s: %w", bookingID, err)
	}

	ent, ok := e.jobs[bookingID]
	if !ok {
		return nil
	}
	if ent.index >= 0 {
		heap.Remove(&e.queue, ent.index)
	}
	delete(e.jobs, bookingID)

	e.logger.DebugContext(ctx, "reminder job cancelled", "booking_id", bookingID)
	e.signal()
	return nil
}

// Pending returns a diagnostic view of every job the engine holds, ordered
// by fire time.
func (e *Engine) Pending(now time.Time) []types.JobView {
	e.mu.Lock()
	jobs := make([]types.ScheduledJob, 0, len(e.jobs))
	for _, ent := range e.jobs {
		jobs = append(jobs, ent.job)
	}
	e.mu.Unlock()

	sortJobs(jobs)
	views := make([]types.JobView, len(jobs))
	for i, j := range jobs {
		views[i] = types.ViewOf(j, now)
	}
	return views
}

// signal wakes the loop without blocking. Callers hold e.mu.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		if d, ok := e.nextDelay(); ok {
			timer.Reset(d)
		}

		select {
		case <-e.stopCh:
			timer.Stop()
			return
		case <-e.wake:
		case <-timer.C:
		}
		timer.Stop()

		e.fireDue(ctx)
	}
}

// nextDelay returns the time until the earliest deadline.
func (e *Engine) nextDelay() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	head := e.queue.peek()
	if head == nil {
		return 0, false
	}
	d := head.job.FireAt.Sub(e.clock.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// fireDue fires every job whose deadline has passed, one at a time, in
// queue order. It returns early when Stop has been requested.
func (e *Engine) fireDue(ctx context.Context) {
	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		job, version, ok := e.popDue()
		if !ok {
			return
		}
		e.fire(ctx, job, version)
	}
}

// popDue removes the earliest job from the queue if it is due. The entry stays
// in the job map while firing so that Pending and Cancel still see it.
func (e *Engine) popDue() (types.ScheduledJob, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	head := e.queue.peek()
	if head == nil || head.job.FireAt.After(e.clock.Now()) {
		return types.ScheduledJob{}, 0, false
	}
	heap.Pop(&e.queue)
	return head.job, head.version, true
}

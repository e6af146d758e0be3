package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

// ============================================================
// Fakes
// ============================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeBookings struct {
	mu       sync.Mutex
	bookings map[string]*types.Booking
	getErr   error
	markErr  error
	marked   []string
}

func newFakeBookings(bs ...types.Booking) *fakeBookings {
	f := &fakeBookings{bookings: make(map[string]*types.Booking)}
	for i := range bs {
		b := bs[i]
		f.bookings[b.ID] = &b
	}
	return f
}

func (f *fakeBookings) Get(_ context.Context, id string) (*types.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.bookings[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundBooking, "booking not found", nil)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) MarkReminderSent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if b, ok := f.bookings[id]; ok {
		b.ReminderSent = true
	}
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeBookings) ListScheduled(context.Context) ([]types.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Booking, 0, len(f.bookings))
	for _, b := range f.bookings {
		if b.ScheduledAt != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookings) isMarked(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	return ok && b.ReminderSent
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	err   error
	calls chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{calls: make(chan string, 64)}
}

func (n *fakeNotifier) Send(_ context.Context, id string) error {
	n.mu.Lock()
	n.sent = append(n.sent, id)
	err := n.err
	n.mu.Unlock()
	n.calls <- id
	return err
}

func (n *fakeNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

// gatedNotifier blocks every Send until open is called.
type gatedNotifier struct {
	mu      sync.Mutex
	sent    []string
	err     error
	entered chan string
	release chan struct{}
	once    sync.Once
}

func newGatedNotifier() *gatedNotifier {
	return &gatedNotifier{entered: make(chan string, 16), release: make(chan struct{})}
}

func (n *gatedNotifier) Send(_ context.Context, id string) error {
	n.mu.Lock()
	n.sent = append(n.sent, id)
	err := n.err
	n.mu.Unlock()
	n.entered <- id
	<-n.release
	return err
}

func (n *gatedNotifier) open() { n.once.Do(func() { close(n.release) }) }

func (n *gatedNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func (n *gatedNotifier) waitEntered(t *testing.T, id string) {
	t.Helper()
	select {
	case got := <-n.entered:
		require.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery of %s", id)
	}
}

// newGatedEngine starts an engine whose deliveries block until the gate opens.
func newGatedEngine(t *testing.T, bookings ...types.Booking) (*Engine, *gatedNotifier, *MemoryJobStore, *fakeBookings, *fakeClock) {
	t.Helper()
	clock := newFakeClock(t0)
	store := NewMemoryJobStore()
	fb := newFakeBookings(bookings...)
	n := newGatedNotifier()
	e := NewEngine(EngineConfig{
		Store:    store,
		Bookings: fb,
		Notifier: n,
		Clock:    clock,
		Logger:   quietLogger(),
	})
	t.Cleanup(func() { _ = e.Stop(context.Background()) })
	t.Cleanup(n.open)
	require.NoError(t, e.Start(context.Background()))
	return e, n, store, fb, clock
}

// countingStore records how many writes reach the store.
type countingStore struct {
	*MemoryJobStore
	mu      sync.Mutex
	upserts int
}

func (s *countingStore) Upsert(ctx context.Context, job types.ScheduledJob) error {
	s.mu.Lock()
	s.upserts++
	s.mu.Unlock()
	return s.MemoryJobStore.Upsert(ctx, job)
}

type failingStore struct{ *MemoryJobStore }

func (s *failingStore) Upsert(context.Context, types.ScheduledJob) error {
	return types.NewAppError(types.ErrCodeInternalDB, "store unavailable", errors.New("connection refused"))
}

func (s *failingStore) Delete(context.Context, string) error {
	return types.NewAppError(types.ErrCodeInternalDB, "store unavailable", errors.New("connection refused"))
}

var t0 = time.Date(2026, 1, 4, 13, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	clock    *fakeClock
	store    *MemoryJobStore
	bookings *fakeBookings
	notifier *fakeNotifier
	engine   *Engine
}

func newHarness(t *testing.T, retry *RetryPolicy, bookings ...types.Booking) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(t0),
		store:    NewMemoryJobStore(),
		bookings: newFakeBookings(bookings...),
		notifier: newFakeNotifier(),
	}
	h.engine = NewEngine(EngineConfig{
		Store:    h.store,
		Bookings: h.bookings,
		Notifier: h.notifier,
		Clock:    h.clock,
		Retry:    retry,
		Logger:   quietLogger(),
	})
	t.Cleanup(func() {
		_ = h.engine.Stop(context.Background())
	})
	return h
}

// advance moves the fake clock and nudges the loop to re-evaluate deadlines.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.engine.mu.Lock()
	h.engine.signal()
	h.engine.mu.Unlock()
}

func (h *harness) waitSent(t *testing.T, id string) {
	t.Helper()
	select {
	case got := <-h.notifier.calls:
		require.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reminder %s", id)
	}
}

func (h *harness) waitJobGone(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := h.store.Get(id)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func upcoming(id string, in time.Duration) types.Booking {
	return types.Booking{ID: id, Status: types.BookingConfirmed, ScheduledAt: ptr(t0.Add(in))}
}

// ============================================================
// Upsert / Cancel
// ============================================================

func TestEngine_UpsertRejectsNonFutureFireTime(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	err := h.engine.Upsert(ctx, "1", t0)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationFireAtPast))

	err = h.engine.Upsert(ctx, "1", t0.Add(-time.Second))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationFireAtPast))

	assert.Equal(t, 0, h.store.Len())
}

func TestEngine_UpsertRequiresBookingID(t *testing.T) {
	h := newHarness(t, nil)

	err := h.engine.Upsert(context.Background(), "", t0.Add(time.Hour))
	assert.True(t, types.IsCode(err, types.ErrCodeValidationMissingField))
}

func TestEngine_UpsertReplacesExistingJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.engine.Upsert(ctx, "2", t0.Add(24*time.Hour)))
	require.NoError(t, h.engine.Upsert(ctx, "2", t0.Add(48*time.Hour)))

	views := h.engine.Pending(t0)
	require.Len(t, views, 1)
	assert.Equal(t, "2", views[0].BookingID)
	assert.True(t, views[0].FireAt.Equal(t0.Add(48*time.Hour)))

	job, ok := h.store.Get("2")
	require.True(t, ok)
	assert.True(t, job.FireAt.Equal(t0.Add(48*time.Hour)))
	assert.Equal(t, 1, h.store.Len())
}

func TestEngine_IdenticalUpsertIsNoOp(t *testing.T) {
	clock := newFakeClock(t0)
	store := &countingStore{MemoryJobStore: NewMemoryJobStore()}
	e := NewEngine(EngineConfig{
		Store:    store,
		Bookings: newFakeBookings(),
		Notifier: newFakeNotifier(),
		Clock:    clock,
		Logger:   quietLogger(),
	})
	ctx := context.Background()
	at := t0.Add(24 * time.Hour)

	require.NoError(t, e.Upsert(ctx, "1", at))
	require.NoError(t, e.Upsert(ctx, "1", at))

	assert.Equal(t, 1, store.upserts)
	assert.Len(t, e.Pending(t0), 1)
}

func TestEngine_CancelMissingJobIsNotAnError(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.engine.Cancel(context.Background(), "nope"))
}

func TestEngine_CancelRemovesJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.engine.Upsert(ctx, "3", t0.Add(time.Hour)))
	require.NoError(t, h.engine.Cancel(ctx, "3"))

	assert.Empty(t, h.engine.Pending(t0))
	assert.Equal(t, 0, h.store.Len())
}

func TestEngine_StoreErrorsPropagate(t *testing.T) {
	e := NewEngine(EngineConfig{
		Store:    &failingStore{MemoryJobStore: NewMemoryJobStore()},
		Bookings: newFakeBookings(),
		Notifier: newFakeNotifier(),
		Clock:    newFakeClock(t0),
		Logger:   quietLogger(),
	})
	ctx := context.Background()

	err := e.Upsert(ctx, "1", t0.Add(time.Hour))
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	assert.Empty(t, e.Pending(t0))

	err = e.Cancel(ctx, "1")
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

// ============================================================
// Start / catch-up
// ============================================================

func TestEngine_StartFiresOverdueJobsBeforeReturning(t *testing.T) {
	// The process was down across the fire time of booking 7.
	h := newHarness(t, nil, upcoming("7", 2*time.Hour))
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "7", FireAt: t0.Add(-30 * time.Minute)}))

	require.NoError(t, h.engine.Start(ctx))

	assert.Equal(t, []string{"7"}, h.notifier.Sent())
	assert.True(t, h.bookings.isMarked("7"))
	assert.Equal(t, 0, h.store.Len())
	assert.Empty(t, h.engine.Pending(t0))
}

func TestEngine_CatchUpFiresInFireTimeOrder(t *testing.T) {
	h := newHarness(t, nil,
		upcoming("a", time.Hour), upcoming("b", time.Hour), upcoming("c", time.Hour),
	)
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "c", FireAt: t0.Add(-3 * time.Minute)}))
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "b", FireAt: t0.Add(-5 * time.Minute)}))
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "a", FireAt: t0.Add(-5 * time.Minute)}))

	require.NoError(t, h.engine.Start(ctx))

	assert.Equal(t, []string{"a", "b", "c"}, h.notifier.Sent())
}

func TestEngine_StartKeepsFutureJobs(t *testing.T) {
	h := newHarness(t, nil, upcoming("8", 30*time.Hour))
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "8", FireAt: t0.Add(24 * time.Hour)}))

	require.NoError(t, h.engine.Start(ctx))

	assert.Empty(t, h.notifier.Sent())
	views := h.engine.Pending(t0)
	require.Len(t, views, 1)
	assert.Equal(t, types.JobStatusPending, views[0].Status)
}

func TestEngine_StartTwiceConflicts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.engine.Start(ctx))
	err := h.engine.Start(ctx)
	assert.True(t, types.IsCode(err, types.ErrCodeConflictEngineState))
}

func TestEngine_StopWithoutStart(t *testing.T) {
	h := newHarness(t, nil)
	assert.NoError(t, h.engine.Stop(context.Background()))
}

// ============================================================
// Timing loop
// ============================================================

func TestEngine_FiresWhenDeadlineArrives(t *testing.T) {
	h := newHarness(t, nil, upcoming("2", 30*time.Hour))
	ctx := context.Background()
	require.NoError(t, h.engine.Start(ctx))

	require.NoError(t, h.engine.Upsert(ctx, "2", t0.Add(24*time.Hour)))
	h.advance(23 * time.Hour)
	// Not yet due.
	assert.Len(t, h.engine.Pending(h.clock.Now()), 1)

	h.advance(time.Hour)
	h.waitSent(t, "2")
	h.waitJobGone(t, "2")
	assert.True(t, h.bookings.isMarked("2"))
}

func TestEngine_RescheduledJobFiresOnlyAtNewTime(t *testing.T) {
	h := newHarness(t, nil, upcoming("2", 54*time.Hour))
	ctx := context.Background()
	require.NoError(t, h.engine.Start(ctx))

	require.NoError(t, h.engine.Upsert(ctx, "2", t0.Add(24*time.Hour)))
	require.NoError(t, h.engine.Upsert(ctx, "2", t0.Add(48*time.Hour)))

	h.advance(24 * time.Hour)
	assert.Empty(t, h.notifier.Sent())

	h.advance(24 * time.Hour)
	h.waitSent(t, "2")
	h.waitJobGone(t, "2")
	assert.Equal(t, []string{"2"}, h.notifier.Sent())
}

func TestEngine_FireNowSendsThroughLoop(t *testing.T) {
	h := newHarness(t, nil, upcoming("1", 30*time.Minute))
	ctx := context.Background()
	require.NoError(t, h.engine.Start(ctx))

	require.NoError(t, h.engine.FireNow(ctx, "1"))

	h.waitSent(t, "1")
	h.waitJobGone(t, "1")
	assert.True(t, h.bookings.isMarked("1"))
}

func TestEngine_FireNowBeforeStartIsPersisted(t *testing.T) {
	h := newHarness(t, nil, upcoming("1", 30*time.Minute))
	ctx := context.Background()

	require.NoError(t, h.engine.FireNow(ctx, "1"))
	_, ok := h.store.Get("1")
	require.True(t, ok)

	require.NoError(t, h.engine.Start(ctx))
	assert.Equal(t, []string{"1"}, h.notifier.Sent())
}

func TestEngine_StopLeavesPendingJobs(t *testing.T) {
	h := newHarness(t, nil, upcoming("9", 30*time.Hour))
	ctx := context.Background()
	require.NoError(t, h.engine.Start(ctx))
	require.NoError(t, h.engine.Upsert(ctx, "9", t0.Add(24*time.Hour)))

	require.NoError(t, h.engine.Stop(ctx))

	assert.Empty(t, h.notifier.Sent())
	_, ok := h.store.Get("9")
	assert.True(t, ok)
}

// ============================================================
// Fire-time guard
// ============================================================

func TestEngine_GuardDropsJobs(t *testing.T) {
	tests := []struct {
		name    string
		booking *types.Booking
	}{
		{name: "booking missing"},
		{name: "reminder already sent", booking: &types.Booking{ID: "x", Status: types.BookingConfirmed, ReminderSent: true, ScheduledAt: ptr(t0.Add(time.Hour))}},
		{name: "cancelled", booking: &types.Booking{ID: "x", Status: types.BookingCancelled, ScheduledAt: ptr(t0.Add(time.Hour))}},
		{name: "event passed", booking: &types.Booking{ID: "x", Status: types.BookingConfirmed, ScheduledAt: ptr(t0.Add(-time.Minute))}},
		{name: "schedule cleared", booking: &types.Booking{ID: "x", Status: types.BookingConfirmed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bs []types.Booking
			if tt.booking != nil {
				bs = append(bs, *tt.booking)
			}
			h := newHarness(t, nil, bs...)
			ctx := context.Background()
			require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "x", FireAt: t0.Add(-time.Minute)}))

			require.NoError(t, h.engine.Start(ctx))

			assert.Empty(t, h.notifier.Sent())
			assert.Equal(t, 0, h.store.Len())
			assert.Empty(t, h.bookings.marked)
		})
	}
}

func TestEngine_DeliveryFailureKeepsJob(t *testing.T) {
	h := newHarness(t, nil, upcoming("5", time.Hour))
	h.notifier.err = errors.New("smtp timeout")
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "5", FireAt: t0.Add(-time.Minute)}))

	require.NoError(t, h.engine.Start(ctx))

	job, ok := h.store.Get("5")
	require.True(t, ok)
	assert.Equal(t, 1, job.AttemptCount)
	assert.Equal(t, "smtp timeout", job.LastError)
	assert.False(t, h.bookings.isMarked("5"))

	views := h.engine.Pending(t0)
	require.Len(t, views, 1)
	assert.Equal(t, types.JobStatusOverdue, views[0].Status)
	assert.Equal(t, 1, views[0].AttemptCount)
}

func TestEngine_MarkFailureKeepsJob(t *testing.T) {
	h := newHarness(t, nil, upcoming("5", time.Hour))
	h.bookings.markErr = errors.New("deadlock detected")
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "5", FireAt: t0.Add(-time.Minute)}))

	require.NoError(t, h.engine.Start(ctx))

	job, ok := h.store.Get("5")
	require.True(t, ok)
	assert.Equal(t, 1, job.AttemptCount)
	assert.Contains(t, job.LastError, "deadlock detected")
}

func TestEngine_RetryPolicyRearmsFailedJob(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 2, BaseDelay: time.Minute, MaxDelay: time.Hour, BackoffFactor: 2}
	h := newHarness(t, policy, upcoming("6", 3*time.Hour))
	h.notifier.err = errors.New("provider 503")
	ctx := context.Background()
	require.NoError(t, h.store.Upsert(ctx, types.ScheduledJob{BookingID: "6", FireAt: t0.Add(-time.Minute)}))

	require.NoError(t, h.engine.Start(ctx))
	<-h.notifier.calls

	job, ok := h.store.Get("6")
	require.True(t, ok)
	assert.Equal(t, 1, job.AttemptCount)
	assert.True(t, job.FireAt.Equal(t0.Add(time.Minute)), "fire_at = %s", job.FireAt)

	h.advance(time.Minute)
	h.waitSent(t, "6")

	require.Eventually(t, func() bool {
		j, ok := h.store.Get("6")
		return ok && j.AttemptCount == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Exhausted: parked, not re-armed.
	j, _ := h.store.Get("6")
	assert.True(t, j.FireAt.Equal(t0.Add(time.Minute)))
}

func TestEngine_SingleJobPerBooking(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, h.engine.Upsert(ctx, "1", t0.Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, h.engine.Upsert(ctx, "2", t0.Add(time.Hour)))

	assert.Len(t, h.engine.Pending(t0), 2)
	assert.Equal(t, 2, h.store.Len())
}


// ============================================================
// Concurrency
// ============================================================

func TestEngine_ConcurrentMutations(t *testing.T) {
	const bookings = 10
	var bs []types.Booking
	for i := 0; i < bookings; i++ {
		bs = append(bs, upcoming(fmt.Sprint(i), 72*time.Hour))
	}
	h := newHarness(t, nil, bs...)
	ctx := context.Background()
	require.NoError(t, h.engine.Start(ctx))

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprint((g + i) % bookings)
				switch (g * i) % 3 {
				case 0:
					assert.NoError(t, h.engine.Upsert(ctx, id, t0.Add(time.Duration(1+i%24)*time.Hour)))
				case 1:
					assert.NoError(t, h.engine.Cancel(ctx, id))
				default:
					assert.NoError(t, h.engine.FireNow(ctx, id))
				}
				_ = h.engine.Pending(t0)
			}
		}(g)
	}
	wg.Wait()

	// Every due job is eventually fired and dropped.
	require.Eventually(t, func() bool {
		for _, v := range h.engine.Pending(h.clock.Now()) {
			if !v.FireAt.After(h.clock.Now()) {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.engine.Stop(ctx))

	stored, err := h.store.List(ctx)
	require.NoError(t, err)
	inStore := make(map[string]time.Time, len(stored))
	for _, j := range stored {
		inStore[j.BookingID] = j.FireAt
	}
	inMemory := make(map[string]time.Time)
	for _, v := range h.engine.Pending(t0) {
		inMemory[v.BookingID] = v.FireAt
	}
	assert.Equal(t, inStore, inMemory)

	seen := make(map[string]bool)
	for _, id := range h.notifier.Sent() {
		assert.False(t, seen[id], "booking %s reminded twice", id)
		seen[id] = true
	}
}

func TestEngine_RescheduleWhileFiringKeepsNewJob(t *testing.T) {
	e, n, store, fb, clock := newGatedEngine(t, upcoming("4", 48*time.Hour))
	ctx := context.Background()

	require.NoError(t, e.FireNow(ctx, "4"))
	n.waitEntered(t, "4")

	require.NoError(t, e.Upsert(ctx, "4", t0.Add(24*time.Hour)))
	n.open()

	require.Eventually(t, func() bool { return fb.isMarked("4") }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		views := e.Pending(clock.Now())
		return len(views) == 1 && views[0].FireAt.Equal(t0.Add(24*time.Hour))
	}, 2*time.Second, 5*time.Millisecond)
	job, ok := store.Get("4")
	require.True(t, ok)
	assert.True(t, job.FireAt.Equal(t0.Add(24*time.Hour)))

	// The replacement fires, finds the flag set and is dropped without sending.
	clock.Advance(24 * time.Hour)
	e.mu.Lock()
	e.signal()
	e.mu.Unlock()
	require.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, e.Pending(clock.Now()))
	assert.Equal(t, []string{"4"}, n.Sent())
}

func TestEngine_CancelWhileFiringIsNotUndoneByFailure(t *testing.T) {
	e, n, store, _, _ := newGatedEngine(t, upcoming("5", time.Hour))
	n.mu.Lock()
	n.err = errors.New("smtp timeout")
	n.mu.Unlock()
	ctx := context.Background()

	require.NoError(t, e.FireNow(ctx, "5"))
	n.waitEntered(t, "5")

	require.NoError(t, e.Cancel(ctx, "5"))
	n.open()
	require.NoError(t, e.Stop(ctx))

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, e.Pending(t0))
}

func TestEngine_SweepDuringDeliveryRemindsOnce(t *testing.T) {
	e, n, store, fb, clock := newGatedEngine(t, upcoming("7", 30*time.Minute))
	ctx := context.Background()

	require.NoError(t, e.FireNow(ctx, "7"))
	n.waitEntered(t, "7")

	sweeper := reminder.NewSweeper(reminder.SweeperConfig{
		Bookings:   fb,
		Dispatcher: e,
		Clock:      clock,
	})
	res, err := sweeper.Sweep(ctx, reminder.SweepInput{Window: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)
	assert.Zero(t, res.Sent)

	n.open()
	require.Eventually(t, func() bool { return store.Len() == 0 && fb.isMarked("7") }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, e.Stop(ctx))

	assert.Equal(t, []string{"7"}, n.Sent())
	assert.Empty(t, e.Pending(clock.Now()))
}

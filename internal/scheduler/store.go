package scheduler

import (
	"context"
	"sort"
	"sync"

	"carwash/internal/types"
)

// JobStore persists pending reminder jobs keyed by booking id. Every engine
// mutation is written through before it takes effect in memory, so a crash
// loses nothing that was acknowledged.
type JobStore interface {
	// Upsert inserts or replaces the job for job.BookingID.
	Upsert(ctx context.Context, job types.ScheduledJob) error
	// Delete removes the job for bookingID. Deleting a missing job is not an error.
	Delete(ctx context.Context, bookingID string) error
	// List returns every persisted job ordered by fire time.
	List(ctx context.Context) ([]types.ScheduledJob, error)
}

// Compile-time assertion that MemoryJobStore implements JobStore.
var _ JobStore = (*MemoryJobStore)(nil)

// MemoryJobStore is a process-local JobStore. It does not survive restarts
// and is meant for tests and single-shot tooling.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]types.ScheduledJob
}

// NewMemoryJobStore returns an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]types.ScheduledJob)}
}

func (s *MemoryJobStore) Upsert(_ context.Context, job types.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.BookingID] = job
	return nil
}

func (s *MemoryJobStore) Delete(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, bookingID)
	return nil
}

func (s *MemoryJobStore) List(_ context.Context) ([]types.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sortJobs(out)
	return out, nil
}

// Get returns the job for bookingID, if any.
func (s *MemoryJobStore) Get(bookingID string) (types.ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[bookingID]
	return j, ok
}

// Len returns the number of persisted jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// sortJobs orders jobs by fire time, then booking id.
func sortJobs(jobs []types.ScheduledJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].FireAt.Equal(jobs[j].FireAt) {
			return jobs[i].FireAt.Before(jobs[j].FireAt)
		}
		return jobs[i].BookingID < jobs[j].BookingID
	})
}

package scheduler

import "carwash/internal/types"

// entry is the in-memory record of one job. index is the position in the
// queue, or -1 while the job is firing or parked after a failure.
type entry struct {
	job     types.ScheduledJob
	index   int
	version uint64
}

// jobQueue is a min-heap of entries ordered by FireAt, ties broken by
// booking id. It implements container/heap.Interface.
type jobQueue []*entry

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	a, b := q[i].job, q[j].job
	if !a.FireAt.Equal(b.FireAt) {
		return a.FireAt.Before(b.FireAt)
	}
	return a.BookingID < b.BookingID
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// peek returns the earliest entry without removing it.
func (q jobQueue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

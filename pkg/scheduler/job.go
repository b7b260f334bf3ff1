package scheduler

import (
	"math"
	"sync/atomic"
)

// Job is a schedulable unit: a function plus an optional ordering ID.
// Jobs are deduplicated by pointer identity, so the same *Job enqueued
// twice before a flush runs once.
type Job struct {
	// id orders execution within a flush; 0 means unordered, which sorts
	// after every ordered job.
	id uint64

	// allowRecurse permits the job to re-enqueue itself while it is
	// executing.
	allowRecurse bool

	// active gates execution: a disabled job still in the queue is skipped
	// without being removed.
	active atomic.Bool

	fn func()
}

// JobOption configures a Job at creation.
type JobOption func(*Job)

// WithID assigns the ordering ID. IDs sort ascending; jobs without an ID
// run after all ordered jobs.
func WithID(id uint64) JobOption {
	return func(j *Job) { j.id = id }
}

// AllowRecurse permits the job to re-enqueue itself mid-execution, e.g. a
// computation that legitimately triggers itself once more.
func AllowRecurse() JobOption {
	return func(j *Job) { j.allowRecurse = true }
}

// NewJob wraps fn as a schedulable job.
func NewJob(fn func(), opts ...JobOption) *Job {
	j := &Job{fn: fn}
	j.active.Store(true)
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ID returns the ordering ID (0 = unordered).
func (j *Job) ID() uint64 {
	return j.id
}

// Active reports whether the job will execute when reached.
func (j *Job) Active() bool {
	return j.active.Load()
}

// Disable flags the job inactive: it is skipped by any flush that reaches
// it, without being disposed or removed.
func (j *Job) Disable() {
	j.active.Store(false)
}

// Enable re-activates a disabled job.
func (j *Job) Enable() {
	j.active.Store(true)
}

// sortKey maps the ID space so that unordered jobs sort last.
func (j *Job) sortKey() uint64 {
	if j.id == 0 {
		return math.MaxUint64
	}
	return j.id
}

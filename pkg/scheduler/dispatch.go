package scheduler

import (
	"sync"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// Dispatcher adapts reactive effects to scheduler jobs. Each effect gets a
// stable job whose ordering ID is the effect's creation ID, so duplicate
// triggers before a flush coalesce into one run and effects created
// parent-first execute parent-first.
type Dispatcher struct {
	s    *Scheduler
	mu   sync.Mutex
	jobs map[*reactive.Effect]*Job
}

// NewDispatcher creates a dispatcher over s. Passing nil uses the default
// scheduler.
func NewDispatcher(s *Scheduler) *Dispatcher {
	if s == nil {
		s = Default()
	}
	return &Dispatcher{
		s:    s,
		jobs: make(map[*reactive.Effect]*Job),
	}
}

// Option returns the effect option that routes the effect's re-runs
// through the scheduler instead of running them synchronously on trigger.
//
// Example:
//
//	d := scheduler.NewDispatcher(nil)
//	e := reactive.NewEffect(render, d.Option())
func (d *Dispatcher) Option() reactive.EffectOption {
	return reactive.WithScheduler(d.Dispatch)
}

// Dispatch enqueues the effect's job for the next flush.
func (d *Dispatcher) Dispatch(e *reactive.Effect) {
	d.s.Enqueue(d.jobFor(e))
}

// Cancel removes the effect's job from the queue if it has not run yet.
func (d *Dispatcher) Cancel(e *reactive.Effect) {
	d.mu.Lock()
	job := d.jobs[e]
	d.mu.Unlock()
	if job != nil {
		d.s.Cancel(job)
	}
}

// Release drops the effect's job mapping. Call after stopping an effect
// that went through this dispatcher; the job is disabled so a queued copy
// is skipped rather than run.
func (d *Dispatcher) Release(e *reactive.Effect) {
	d.mu.Lock()
	job := d.jobs[e]
	delete(d.jobs, e)
	d.mu.Unlock()
	if job != nil {
		job.Disable()
	}
}

func (d *Dispatcher) jobFor(e *reactive.Effect) *Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	if job, ok := d.jobs[e]; ok {
		return job
	}
	opts := []JobOption{WithID(e.ID())}
	if e.AllowsRecurse() {
		opts = append(opts, AllowRecurse())
	}
	job := NewJob(func() {
		if e.Active() {
			e.Run()
		}
	}, opts...)
	d.jobs[e] = job
	return job
}

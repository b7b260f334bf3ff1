package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reflow-dev/reflow/pkg/metrics"
)

// maxRecursionLimit bounds how many times one job may be selected for
// execution within a single flush. A job exceeding it is skipped for the
// remainder of the flush with a diagnostic, so a self-triggering loop
// cannot hang the process.
const maxRecursionLimit = 100

// Scheduler batches jobs into cooperative-tick flushes. See the package
// documentation for the flush ordering contract.
type Scheduler struct {
	mu sync.Mutex

	// Main queue, kept sorted ascending by sort key. flushIndex is the
	// execution cursor of the current main pass.
	queue      []*Job
	flushIndex int

	// Pre-pass state. preParent is the job currently being processed as a
	// parent by FlushPreCallbacks; enqueuing it is suppressed.
	pendingPre []*Job
	activePre  []*Job
	preIndex   int
	preParent  *Job

	// Post-pass state. Arrivals while activePost is executing append to
	// the running batch instead of opening a second one.
	pendingPost []*Job
	activePost  []*Job
	postIndex   int

	flushPending bool
	flushing     bool

	// flushCounts is the per-flush recursion guard. Non-nil only while a
	// flush is in progress.
	flushCounts map[*Job]int

	waiters []waiter

	wake   chan struct{}
	closed bool

	logger  *slog.Logger
	onError func(error)
	tracer  trace.Tracer
}

type waiter struct {
	fns  []func()
	done chan struct{}
}

// Option configures a Scheduler at creation.
type Option func(*Scheduler)

// WithLogger sets the diagnostic logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithErrorHandler routes recovered job panics to fn instead of the
// logger. The flush continues with subsequent jobs either way.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithTracing wraps every flush in an OpenTelemetry span from the named
// tracer, resolved against the global tracer provider.
func WithTracing(tracerName string) Option {
	return func(s *Scheduler) { s.tracer = otel.Tracer(tracerName) }
}

// NewScheduler creates a scheduler and starts its flush goroutine.
// Call Close when done with it.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		wake:   make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	for range s.wake {
		s.flush()
	}
}

// Close stops the flush goroutine and releases any pending waiters.
// Enqueues after Close are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.wake)
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		close(w.done)
	}
}

// Enqueue adds a job to the main queue unless an equal job is already
// queued at or after the execution cursor. A job with AllowRecurse may
// re-enqueue itself while executing: its duplicate search starts one past
// the cursor. The job currently being pre-pass-processed as a parent is
// never enqueued.
func (s *Scheduler) Enqueue(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || job == s.preParent {
		return
	}

	start := s.flushIndex
	if s.flushing && job.allowRecurse {
		start++
	}
	for i := start; i < len(s.queue); i++ {
		if s.queue[i] == job {
			return
		}
	}

	s.insert(job)
	metrics.RecordQueueDepth(len(s.queue))
	s.scheduleFlush()
}

// insert places job into the queue by binary search on ascending sort key,
// so the queue stays sorted. Mid-flush insertions land after the cursor.
// Caller holds mu.
func (s *Scheduler) insert(job *Job) {
	lo, hi := 0, len(s.queue)
	if s.flushing {
		lo = s.flushIndex + 1
		if lo > hi {
			lo = hi
		}
	}
	key := job.sortKey()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s.queue[mid].sortKey() <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[lo+1:], s.queue[lo:])
	s.queue[lo] = job
}

// Cancel removes a queued job as long as it is still ahead of the
// execution cursor. Removing a job already passed or currently executing
// is a no-op.
func (s *Scheduler) Cancel(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, queued := range s.queue {
		if queued != job {
			continue
		}
		if s.flushing && i <= s.flushIndex {
			return
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		return
	}
}

// EnqueuePre queues a callback for the pre-pass of the next flush.
// Duplicates against the pending queue and the currently executing batch
// are suppressed (with the same allowRecurse exception as the main queue).
func (s *Scheduler) EnqueuePre(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || job == s.preParent {
		return
	}
	if s.jobPending(s.pendingPre, job) || s.jobInActiveBatch(s.activePre, s.preIndex, job) {
		return
	}
	s.pendingPre = append(s.pendingPre, job)
	s.scheduleFlush()
}

// EnqueuePost queues a callback for the post-pass of the current or next
// flush.
func (s *Scheduler) EnqueuePost(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.jobPending(s.pendingPost, job) || s.jobInActiveBatch(s.activePost, s.postIndex, job) {
		return
	}
	s.pendingPost = append(s.pendingPost, job)
	s.scheduleFlush()
}

func (s *Scheduler) jobPending(pending []*Job, job *Job) bool {
	for _, j := range pending {
		if j == job {
			return true
		}
	}
	return false
}

func (s *Scheduler) jobInActiveBatch(batch []*Job, cursor int, job *Job) bool {
	if batch == nil {
		return false
	}
	start := cursor
	if job.allowRecurse {
		start = cursor + 1
	}
	for i := start; i < len(batch); i++ {
		if batch[i] == job {
			return true
		}
	}
	return false
}

// NextTick returns a channel closed strictly after the currently pending
// or in-progress flush completes, or immediately when no flush is
// scheduled. Optional callbacks run (in order) just before the channel is
// closed, on the flush goroutine.
func (s *Scheduler) NextTick(fns ...func()) <-chan struct{} {
	done := make(chan struct{})
	s.mu.Lock()
	if !s.flushPending && !s.flushing {
		s.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
		close(done)
		return done
	}
	s.waiters = append(s.waiters, waiter{fns: fns, done: done})
	s.mu.Unlock()
	return done
}

// scheduleFlush wakes the flush goroutine exactly once per tick: the first
// enqueue while no flush is pending or running schedules it, later
// enqueues coalesce. Caller holds mu.
func (s *Scheduler) scheduleFlush() {
	if s.closed || s.flushPending || s.flushing {
		return
	}
	s.flushPending = true
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// flush runs one batched pass over all three queues, repeating until
// nothing re-enqueued more work. An explicit loop rather than recursion
// keeps the stack flat under pathological job storms.
func (s *Scheduler) flush() {
	start := time.Now()

	var span trace.Span
	if s.tracer != nil {
		_, span = s.tracer.Start(context.Background(), "reflow.flush")
	}

	s.mu.Lock()
	s.flushPending = false
	s.flushing = true
	s.flushCounts = make(map[*Job]int)
	s.mu.Unlock()

	for {
		s.flushPre(nil)
		s.flushMain()
		s.flushPost()

		s.mu.Lock()
		if len(s.queue) == 0 && len(s.pendingPre) == 0 && len(s.pendingPost) == 0 {
			break
		}
		s.mu.Unlock()
	}

	distinct := len(s.flushCounts)
	s.flushing = false
	s.flushCounts = nil
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	metrics.RecordFlush(time.Since(start))
	if span != nil {
		span.SetAttributes(attribute.Int("reflow.flush_jobs", distinct))
		span.End()
	}

	for _, w := range waiters {
		for _, fn := range w.fns {
			s.safeCall(fn)
		}
		close(w.done)
	}
}

// FlushPreCallbacks synchronously drains the pre-pass queue. An external
// renderer calls this before re-rendering, passing the component's own
// update job as parent so the drain cannot re-enqueue it.
func (s *Scheduler) FlushPreCallbacks(parent *Job) {
	s.flushPre(parent)
}

func (s *Scheduler) flushPre(parent *Job) {
	s.mu.Lock()
	prevParent := s.preParent
	s.preParent = parent

	for len(s.pendingPre) > 0 {
		batch := dedupJobs(s.pendingPre)
		s.pendingPre = s.pendingPre[:0]
		s.activePre = batch

		for s.preIndex = 0; s.preIndex < len(s.activePre); s.preIndex++ {
			job := s.activePre[s.preIndex]
			if !job.Active() || !s.admitLocked(job) {
				continue
			}
			s.mu.Unlock()
			s.invoke(job)
			s.mu.Lock()
		}
		s.activePre = nil
		s.preIndex = 0
	}

	s.preParent = prevParent
	s.mu.Unlock()
}

func (s *Scheduler) flushMain() {
	s.mu.Lock()
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].sortKey() < s.queue[j].sortKey()
	})

	for s.flushIndex = 0; s.flushIndex < len(s.queue); s.flushIndex++ {
		job := s.queue[s.flushIndex]
		if !job.Active() || !s.admitLocked(job) {
			continue
		}
		s.mu.Unlock()
		s.invoke(job)
		s.mu.Lock()
	}

	s.queue = s.queue[:0]
	s.flushIndex = 0
	s.mu.Unlock()
}

// FlushPostCallbacks synchronously drains the post-pass queue. When a
// post batch is already executing, the pending callbacks are appended to
// that batch instead of starting a second one.
func (s *Scheduler) FlushPostCallbacks() {
	s.flushPost()
}

func (s *Scheduler) flushPost() {
	s.mu.Lock()
	if len(s.pendingPost) == 0 {
		s.mu.Unlock()
		return
	}
	batch := dedupJobs(s.pendingPost)
	s.pendingPost = s.pendingPost[:0]

	if s.activePost != nil {
		s.activePost = append(s.activePost, batch...)
		s.mu.Unlock()
		return
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].sortKey() < batch[j].sortKey()
	})
	s.activePost = batch

	for s.postIndex = 0; s.postIndex < len(s.activePost); s.postIndex++ {
		job := s.activePost[s.postIndex]
		if !job.Active() || !s.admitLocked(job) {
			continue
		}
		s.mu.Unlock()
		s.invoke(job)
		s.mu.Lock()
	}
	s.activePost = nil
	s.postIndex = 0
	s.mu.Unlock()
}

// admitLocked counts a selection of job in the current flush and rejects
// it once past the recursion limit. Caller holds mu.
func (s *Scheduler) admitLocked(job *Job) bool {
	if s.flushCounts == nil {
		// Standalone FlushPre/PostCallbacks outside a flush.
		return true
	}
	n := s.flushCounts[job] + 1
	s.flushCounts[job] = n
	if n > maxRecursionLimit {
		if n == maxRecursionLimit+1 {
			s.logger.Warn("reflow: job exceeded recursion limit, skipping for remainder of flush",
				"limit", maxRecursionLimit, "job_id", job.id)
			metrics.RecordRecursionLimit()
		}
		return false
	}
	return true
}

// invoke runs a job, converting a panic into an error surfaced through the
// error boundary. The flush continues with subsequent jobs.
func (s *Scheduler) invoke(job *Job) {
	metrics.RecordJobRun()
	s.safeCall(job.fn)
}

func (s *Scheduler) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordJobError()
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			s.handleError(fmt.Errorf("%w: %w", ErrJobFailed, err))
		}
	}()
	fn()
}

func (s *Scheduler) handleError(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.logger.Error("reflow: "+err.Error(), "error", err)
}

// dedupJobs returns batch with later duplicates removed, preserving first
// occurrence order.
func dedupJobs(batch []*Job) []*Job {
	seen := make(map[*Job]struct{}, len(batch))
	out := make([]*Job, 0, len(batch))
	for _, j := range batch {
		if _, ok := seen[j]; ok {
			continue
		}
		seen[j] = struct{}{}
		out = append(out, j)
	}
	return out
}

// =============================================================================
// Default Scheduler
// =============================================================================

var (
	defaultOnce  sync.Once
	defaultSched *Scheduler
)

// Default returns the process-wide scheduler, creating it on first use.
func Default() *Scheduler {
	defaultOnce.Do(func() {
		defaultSched = NewScheduler()
	})
	return defaultSched
}

// Enqueue queues a job on the default scheduler.
func Enqueue(job *Job) { Default().Enqueue(job) }

// Cancel removes a job from the default scheduler's queue.
func Cancel(job *Job) { Default().Cancel(job) }

// EnqueuePre queues a pre-pass callback on the default scheduler.
func EnqueuePre(job *Job) { Default().EnqueuePre(job) }

// EnqueuePost queues a post-pass callback on the default scheduler.
func EnqueuePost(job *Job) { Default().EnqueuePost(job) }

// NextTick waits on the default scheduler. See Scheduler.NextTick.
func NextTick(fns ...func()) <-chan struct{} { return Default().NextTick(fns...) }

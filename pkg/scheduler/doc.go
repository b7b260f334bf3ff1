// Package scheduler batches, deduplicates and orders re-runnable work.
//
// Jobs enqueued on a Scheduler are flushed together on the next cooperative
// tick: the first enqueue wakes the flush goroutine, and everything queued
// before the flush actually runs is coalesced into one pass. Within a pass,
// pre-pass callbacks run first, then main-queue jobs in ascending ID order,
// then post-pass callbacks; the pass repeats until all three queues are
// empty. IDs assigned in creation order of a hierarchy therefore give
// parent-before-child execution.
//
// The scheduler is generic over Job and knows nothing about what a job
// does; the reactive package's effects become jobs through Dispatcher.
package scheduler

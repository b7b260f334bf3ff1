package reactive

import (
	"sync/atomic"

	"github.com/reflow-dev/reflow/pkg/metrics"
)

// TrackEvent describes the first subscription of an effect to a dep during
// one run. Delivered to the effect's OnTrack observer.
type TrackEvent struct {
	Effect *Effect
	Target any
	Kind   TrackKind
	Key    any
}

// TriggerEvent describes a change notification delivered to an effect.
// Delivered to the effect's OnTrigger observer before the effect is re-run
// or rescheduled.
type TriggerEvent struct {
	Effect   *Effect
	Target   any
	Kind     TriggerKind
	Key      any
	NewValue any
	OldValue any
}

// Effect is a re-runnable computation. While it runs it is the goroutine's
// active effect, so every tracked read performed by its function subscribes
// it; a later write to any of those keys re-runs it (or hands it to its
// scheduler callback).
//
// Effects run once at creation unless created with Lazy(), and re-run on
// triggers until Stop() is called.
type Effect struct {
	id uint64

	// fn is the wrapped computation.
	fn func() any

	// deps are the subscriber sets this effect currently appears in.
	// Kept in lock-step with the sets themselves via clear-then-repopulate
	// on every run. Guarded by graphMu.
	deps []*Dep

	// active is false after Stop(). A stopped effect invoked again runs
	// its function once, untracked, and never resubscribes.
	active atomic.Bool

	lazy         bool
	allowRecurse bool

	// scheduler, when set, replaces "run immediately on trigger": the
	// trigger hands the effect to this callback instead.
	scheduler func(*Effect)

	onTrack   func(TrackEvent)
	onTrigger func(TriggerEvent)
	onStop    func()
}

// EffectOption configures an Effect at creation.
type EffectOption interface {
	isEffectOption()
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) isEffectOption()       {}
func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// Lazy defers the first run: the effect subscribes to nothing until its
// Run method is invoked explicitly.
func Lazy() EffectOption {
	return effectOptionFunc(func(e *Effect) { e.lazy = true })
}

// AllowRecurse permits the effect to re-trigger itself: a write it performs
// to one of its own tracked keys schedules another run instead of being
// suppressed.
func AllowRecurse() EffectOption {
	return effectOptionFunc(func(e *Effect) { e.allowRecurse = true })
}

// WithScheduler replaces the default "run immediately on trigger" behavior
// with a custom dispatcher. This is the sole integration point used by the
// scheduler package and any external renderer.
func WithScheduler(fn func(*Effect)) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.scheduler = fn })
}

// OnTrack installs a debug observer fired the first time this effect
// subscribes to a dep within a run.
func OnTrack(fn func(TrackEvent)) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.onTrack = fn })
}

// OnTrigger installs a debug observer fired when a change selects this
// effect for re-run.
func OnTrigger(fn func(TriggerEvent)) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.onTrigger = fn })
}

// OnStop registers a disposal callback, run once when Stop() takes effect.
func OnStop(fn func()) EffectOption {
	return effectOptionFunc(func(e *Effect) { e.onStop = fn })
}

// NewEffect creates an effect around fn and, unless Lazy() is given, runs
// it immediately to collect its initial dependencies.
func NewEffect(fn func() any, opts ...EffectOption) *Effect {
	e := &Effect{
		id: nextID(),
		fn: fn,
	}
	e.active.Store(true)
	for _, opt := range opts {
		opt.applyEffect(e)
	}
	if !e.lazy {
		e.Run()
	}
	return e
}

// ID returns the effect's creation-ordered identifier.
func (e *Effect) ID() uint64 {
	return e.id
}

// Active reports whether the effect still re-runs on triggers.
func (e *Effect) Active() bool {
	return e.active.Load()
}

// AllowsRecurse reports whether the effect may re-trigger itself.
func (e *Effect) AllowsRecurse() bool {
	return e.allowRecurse
}

// Run executes the effect's function, collecting a fresh dependency set.
// Returns the function's result. A stopped effect runs its function once
// with no tracking. If this effect is already running on the current
// goroutine's call stack, Run returns nil without executing.
//
// Cleanup (call-stack pop, active-effect restore, tracking reset) happens
// whether the function returns normally or panics; a panic then propagates
// to the caller.
func (e *Effect) Run() any {
	if !e.active.Load() {
		return e.fn()
	}

	tc := currentContext()
	for _, running := range tc.effectStack {
		if running == e {
			return nil
		}
	}

	metrics.RecordEffectRun()

	// Fresh run: drop every previous subscription, then repopulate via
	// track() as the function reads.
	e.clearDeps()

	tc.effectStack = append(tc.effectStack, e)
	prev := tc.active
	tc.active = e
	EnableTracking()

	defer func() {
		ResetTracking()
		tc.effectStack = tc.effectStack[:len(tc.effectStack)-1]
		tc.active = prev
	}()

	return e.fn()
}

// Stop disposes the effect: it is removed from every subscriber set, the
// optional OnStop callback runs, and future triggers ignore it. Idempotent.
func (e *Effect) Stop() {
	if !e.active.CompareAndSwap(true, false) {
		return
	}
	e.clearDeps()
	if e.onStop != nil {
		e.onStop()
	}
}

// clearDeps removes the effect from each Dep it appears in and empties its
// owned list, restoring the lock-step invariant from a clean slate.
func (e *Effect) clearDeps() {
	graphMu.Lock()
	for _, d := range e.deps {
		delete(d.effects, e)
	}
	e.deps = e.deps[:0]
	graphMu.Unlock()
}

package reactive

import (
	"sync"

	"github.com/petermattis/goid"
)

// trackingContext holds the reactive state for a goroutine: the effect
// currently collecting dependencies and the tracking suspend/resume stack.
//
// There is one logical consumer per goroutine by construction, so no lock
// is needed on the context itself; the sync.Map only mediates lookup.
type trackingContext struct {
	// active is the effect whose run is currently collecting dependencies.
	// nil means reads do not subscribe anything.
	active *Effect

	// effectStack guards against synchronous self-recursion: an effect
	// already on the stack is not re-entered.
	effectStack []*Effect

	// shouldTrack gates track(). Array length-mutating methods suspend
	// tracking around their internal reads.
	shouldTrack bool

	// trackStack saves shouldTrack across nested suspend/resume regions so
	// they compose at any call depth.
	trackStack []bool
}

// trackingContexts stores per-goroutine contexts, keyed by goroutine ID.
var trackingContexts sync.Map

// currentContext returns the tracking context for the current goroutine,
// creating one on first use.
func currentContext() *trackingContext {
	gid := goid.Get()
	if v, ok := trackingContexts.Load(gid); ok {
		return v.(*trackingContext)
	}
	tc := &trackingContext{shouldTrack: true}
	trackingContexts.Store(gid, tc)
	return tc
}

// PauseTracking suspends dependency collection on this goroutine until the
// matching ResetTracking call.
func PauseTracking() {
	tc := currentContext()
	tc.trackStack = append(tc.trackStack, tc.shouldTrack)
	tc.shouldTrack = false
}

// EnableTracking force-enables dependency collection until the matching
// ResetTracking call.
func EnableTracking() {
	tc := currentContext()
	tc.trackStack = append(tc.trackStack, tc.shouldTrack)
	tc.shouldTrack = true
}

// ResetTracking restores the tracking state saved by the most recent
// PauseTracking or EnableTracking.
func ResetTracking() {
	tc := currentContext()
	if n := len(tc.trackStack); n > 0 {
		tc.shouldTrack = tc.trackStack[n-1]
		tc.trackStack = tc.trackStack[:n-1]
	} else {
		tc.shouldTrack = true
	}
}

// Untracked runs fn with dependency collection suspended. Reads inside fn
// do not subscribe the running effect.
func Untracked(fn func()) {
	PauseTracking()
	defer ResetTracking()
	fn()
}

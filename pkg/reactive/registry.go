package reactive

import (
	"runtime"
	"sync"
	"weak"
)

// registry maps target identity to an existing wrapper so that wrapping the
// same target twice in the same mode yields the same wrapper.
//
// The association is non-owning in both directions: the key is a bare
// identity and the value is a weak pointer to the wrapper, so neither the
// target nor the wrapper is kept alive by the registry. A cleanup attached
// to the wrapper purges the entry once the wrapper is collected.
type registry struct {
	mu      sync.Mutex
	entries map[uintptr]weak.Pointer[Wrapper]
}

func newRegistry() *registry {
	return &registry{entries: make(map[uintptr]weak.Pointer[Wrapper])}
}

// lookup returns the live wrapper for an identity, or nil.
// Stale entries whose wrapper has been collected are dropped on the way.
func (r *registry) lookup(id uintptr) *Wrapper {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.entries[id]
	if !ok {
		return nil
	}
	if w := wp.Value(); w != nil {
		return w
	}
	delete(r.entries, id)
	return nil
}

// store records a wrapper for an identity and schedules removal of the
// entry when the wrapper is garbage collected.
func (r *registry) store(id uintptr, w *Wrapper) {
	r.mu.Lock()
	r.entries[id] = weak.Make(w)
	r.mu.Unlock()

	runtime.AddCleanup(w, func(id uintptr) {
		r.remove(id)
		dropDeps(id)
	}, id)
}

func (r *registry) remove(id uintptr) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// One registry per wrapping mode. Identity stability is per (target, mode).
var (
	mutableRegistry         = newRegistry()
	readonlyRegistry        = newRegistry()
	shallowRegistry         = newRegistry()
	shallowReadonlyRegistry = newRegistry()
)

func registryFor(mode Mode) *registry {
	switch mode {
	case Readonly:
		return readonlyRegistry
	case ShallowMutable:
		return shallowRegistry
	case ShallowReadonly:
		return shallowReadonlyRegistry
	default:
		return mutableRegistry
	}
}

// skipped tracks targets excluded from wrapping via MarkNonObservable.
var (
	skippedMu sync.Mutex
	skippedID = make(map[uintptr]struct{})
)

func markSkipped(id uintptr) {
	skippedMu.Lock()
	skippedID[id] = struct{}{}
	skippedMu.Unlock()
}

func isSkipped(id uintptr) bool {
	skippedMu.Lock()
	defer skippedMu.Unlock()
	_, ok := skippedID[id]
	return ok
}

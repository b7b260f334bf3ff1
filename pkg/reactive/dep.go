package reactive

import (
	"fmt"
	"sync"

	"github.com/reflow-dev/reflow/pkg/metrics"
)

// TrackKind classifies a read interception.
type TrackKind int

const (
	TrackGet TrackKind = iota
	TrackHas
	TrackIterate
)

func (k TrackKind) String() string {
	switch k {
	case TrackGet:
		return "get"
	case TrackHas:
		return "has"
	case TrackIterate:
		return "iterate"
	default:
		return "unknown"
	}
}

// TriggerKind classifies a write interception.
type TriggerKind int

const (
	TriggerSet TriggerKind = iota
	TriggerAdd
	TriggerDelete
	TriggerClear
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerSet:
		return "set"
	case TriggerAdd:
		return "add"
	case TriggerDelete:
		return "delete"
	case TriggerClear:
		return "clear"
	default:
		return "unknown"
	}
}

// sentinelKey is a synthetic property key. Its unexported type guarantees it
// can never collide with a caller-supplied key.
type sentinelKey uint8

const (
	// iterateKey subscribes whole-object enumeration.
	iterateKey sentinelKey = iota + 1

	// mapKeyIterateKey subscribes key-enumeration of keyed collections.
	mapKeyIterateKey

	// lengthKey is the list length pseudo-property. Length changes imply
	// membership changes, so list enumeration tracks this key.
	lengthKey
)

func (k sentinelKey) String() string {
	switch k {
	case iterateKey:
		return "iterate"
	case mapKeyIterateKey:
		return "map-key-iterate"
	case lengthKey:
		return "length"
	default:
		return "sentinel"
	}
}

// Dep is the subscriber set for one (target, key) pair.
// Membership is guarded by graphMu, never by a per-Dep lock.
type Dep struct {
	effects map[*Effect]struct{}
}

func newDep() *Dep {
	return &Dep{effects: make(map[*Effect]struct{})}
}

// depsMap is the per-target table of key subscriber sets.
type depsMap struct {
	deps map[any]*Dep
}

// The process-wide dependency graph: target identity -> depsMap.
// The graph holds no reference to targets; entries are dropped when the
// target's wrapper is collected (see registry.store).
var (
	graphMu      sync.Mutex
	graphTargets = make(map[uintptr]*depsMap)
)

// dropDeps removes every subscription record for a collected target.
func dropDeps(id uintptr) {
	graphMu.Lock()
	delete(graphTargets, id)
	graphMu.Unlock()
}

// track records that the active effect read (target, key). No-op when
// tracking is suspended or no effect is running.
func track(target any, kind TrackKind, key any) {
	tc := currentContext()
	if !tc.shouldTrack || tc.active == nil {
		return
	}
	e := tc.active

	id := identityOf(target)
	graphMu.Lock()
	dm := graphTargets[id]
	if dm == nil {
		dm = &depsMap{deps: make(map[any]*Dep)}
		graphTargets[id] = dm
	}
	dep := dm.deps[key]
	if dep == nil {
		dep = newDep()
		dm.deps[key] = dep
	}
	added := false
	if _, ok := dep.effects[e]; !ok {
		dep.effects[e] = struct{}{}
		e.deps = append(e.deps, dep)
		added = true
	}
	graphMu.Unlock()

	if added {
		if e.onTrack != nil {
			e.onTrack(TrackEvent{Effect: e, Target: target, Kind: kind, Key: key})
		}
		notifyObserver(GraphEvent{Op: "track", EffectID: e.id, TargetType: fmt.Sprintf("%T", target), Kind: kind.String(), Key: keyLabel(key)})
	}
}

// trigger notifies every effect subscribed to a change of (target, key).
// Selected effects run immediately unless they declare a scheduler
// callback, in which case the callback decides (this is the job-scheduler
// integration point).
func trigger(target any, kind TriggerKind, key any, newValue, oldValue any) {
	id := identityOf(target)
	sh := shapeOf(target)

	graphMu.Lock()
	dm := graphTargets[id]
	if dm == nil {
		// Never tracked.
		graphMu.Unlock()
		return
	}

	var deps []*Dep
	collect := func(d *Dep) {
		if d != nil {
			deps = append(deps, d)
		}
	}

	switch {
	case kind == TriggerClear:
		for _, d := range dm.deps {
			collect(d)
		}
	case sh == shapeList && key == any(lengthKey):
		// Length truncation invalidates every index at or past the new
		// length, plus direct length subscribers.
		newLen, _ := newValue.(int)
		for k, d := range dm.deps {
			if k == any(lengthKey) {
				collect(d)
			} else if idx, ok := k.(int); ok && idx >= newLen {
				collect(d)
			}
		}
	default:
		if key != nil {
			collect(dm.deps[key])
		}
		switch kind {
		case TriggerAdd:
			if sh != shapeList {
				collect(dm.deps[any(iterateKey)])
				if sh.keyed() {
					collect(dm.deps[any(mapKeyIterateKey)])
				}
			} else if isIntegerKey(key) {
				// New index extends the list.
				collect(dm.deps[any(lengthKey)])
			}
		case TriggerDelete:
			if sh != shapeList {
				collect(dm.deps[any(iterateKey)])
				if sh.keyed() {
					collect(dm.deps[any(mapKeyIterateKey)])
				}
			}
		case TriggerSet:
			if sh == shapeMap {
				collect(dm.deps[any(iterateKey)])
			}
		}
	}

	seen := make(map[*Effect]struct{})
	var run []*Effect
	for _, d := range deps {
		for e := range d.effects {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			run = append(run, e)
		}
	}
	graphMu.Unlock()

	if len(run) == 0 {
		return
	}
	metrics.RecordTrigger(kind.String())

	active := currentContext().active
	for _, e := range run {
		if e == active && !e.allowRecurse {
			// An effect's own incidental writes must not retrigger it.
			continue
		}
		if e.onTrigger != nil {
			e.onTrigger(TriggerEvent{
				Effect: e, Target: target, Kind: kind, Key: key,
				NewValue: newValue, OldValue: oldValue,
			})
		}
		notifyObserver(GraphEvent{Op: "trigger", EffectID: e.id, TargetType: fmt.Sprintf("%T", target), Kind: kind.String(), Key: keyLabel(key)})
		if e.scheduler != nil {
			e.scheduler(e)
		} else {
			e.Run()
		}
	}
}

// keyLabel renders a property key for diagnostics and the observer stream.
func keyLabel(key any) any {
	if s, ok := key.(sentinelKey); ok {
		return s.String()
	}
	return key
}

// GraphEvent is a flattened track/trigger record for external observers
// such as the devtools event stream.
type GraphEvent struct {
	Op         string
	EffectID   uint64
	TargetType string
	Kind       string
	Key        any
}

var (
	observerMu sync.RWMutex
	observer   func(GraphEvent)
)

// SetObserver installs a process-wide observer for graph events.
// Passing nil removes it. Intended for tooling; the observer runs inline
// with track/trigger and must be fast.
func SetObserver(fn func(GraphEvent)) {
	observerMu.Lock()
	observer = fn
	observerMu.Unlock()
}

func notifyObserver(ev GraphEvent) {
	observerMu.RLock()
	fn := observer
	observerMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

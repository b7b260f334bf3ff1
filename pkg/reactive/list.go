package reactive

// List method family. The length-mutating methods run their internal reads
// with tracking suspended: without that, an effect calling Push would read
// the length it is about to change and subscribe to it, re-triggering
// itself forever. Suspension is scoped to the method and restored even when
// a trigger below panics. Triggers themselves are unaffected by suspension.

// Push appends items and returns the new length.
func (w *Wrapper) Push(items ...any) int {
	w.splice(w.rawLen(), 0, items)
	return w.rawLen()
}

// Pop removes and returns the last element, or nil on an empty list.
func (w *Wrapper) Pop() any {
	n := w.rawLen()
	if n == 0 {
		return nil
	}
	removed := w.splice(n-1, 1, nil)
	if len(removed) == 0 {
		return nil
	}
	return removed[0]
}

// Shift removes and returns the first element, or nil on an empty list.
func (w *Wrapper) Shift() any {
	if w.rawLen() == 0 {
		return nil
	}
	removed := w.splice(0, 1, nil)
	if len(removed) == 0 {
		return nil
	}
	return removed[0]
}

// Unshift prepends items and returns the new length.
func (w *Wrapper) Unshift(items ...any) int {
	w.splice(0, 0, items)
	return w.rawLen()
}

// Splice removes deleteCount elements at start, inserts items in their
// place, and returns the removed elements. Out-of-range arguments are
// clamped.
func (w *Wrapper) Splice(start, deleteCount int, items ...any) []any {
	return w.splice(start, deleteCount, items)
}

// SetLen truncates or nil-extends the list to n, invalidating subscribers
// of any index at or past the new length.
func (w *Wrapper) SetLen(n int) {
	if w.mode.readonly() {
		warn("length write ignored on readonly wrapper", "mode", w.mode.String())
		return
	}
	if w.shape != shapeList || n < 0 {
		warn("SetLen on non-list wrapper")
		return
	}

	PauseTracking()
	defer ResetTracking()

	s := w.listTarget()
	oldLen := len(*s)
	if n == oldLen {
		return
	}
	if n < oldLen {
		*s = (*s)[:n]
	} else {
		*s = append(*s, make([]any, n-oldLen)...)
	}
	trigger(w.target, TriggerSet, any(lengthKey), n, oldLen)
}

// IndexOf returns the index of the first element matching value, or -1.
//
// Identity-sensitive search must subscribe every index, since a mutation
// anywhere can change the result. The comparison runs first against the
// arguments as given; a miss is retried once with both sides fully
// unwrapped, reconciling wrapped-vs-raw identity mismatches.
func (w *Wrapper) IndexOf(value any) int {
	if w.shape != shapeList {
		warn("IndexOf on non-list wrapper")
		return -1
	}
	s := *w.listTarget()
	for i := range s {
		track(w.target, TrackGet, i)
	}
	for i, el := range s {
		if sameValue(el, value) {
			return i
		}
	}
	raw := GetRaw(value)
	for i, el := range s {
		if sameValue(GetRaw(el), raw) {
			return i
		}
	}
	return -1
}

// LastIndexOf returns the index of the last element matching value, or -1.
func (w *Wrapper) LastIndexOf(value any) int {
	if w.shape != shapeList {
		warn("LastIndexOf on non-list wrapper")
		return -1
	}
	s := *w.listTarget()
	for i := range s {
		track(w.target, TrackGet, i)
	}
	for i := len(s) - 1; i >= 0; i-- {
		if sameValue(s[i], value) {
			return i
		}
	}
	raw := GetRaw(value)
	for i := len(s) - 1; i >= 0; i-- {
		if sameValue(GetRaw(s[i]), raw) {
			return i
		}
	}
	return -1
}

// Contains reports membership using IndexOf semantics.
func (w *Wrapper) Contains(value any) bool {
	return w.IndexOf(value) >= 0
}

// rawLen reads the length without tracking.
func (w *Wrapper) rawLen() int {
	if w.shape != shapeList {
		return 0
	}
	return len(*w.listTarget())
}

// splice is the shared implementation behind the length-mutating methods.
// It performs the structural edit, then fires a set trigger for every
// surviving slot that actually changed, an add trigger per appended slot,
// and a length-set trigger when the list shrank.
func (w *Wrapper) splice(start, deleteCount int, items []any) []any {
	if w.mode.readonly() {
		warn("splice ignored on readonly wrapper", "mode", w.mode.String())
		return nil
	}
	if w.shape != shapeList {
		warn("splice on non-list wrapper")
		return nil
	}

	PauseTracking()
	defer ResetTracking()

	s := w.listTarget()
	old := append([]any(nil), *s...)
	oldLen := len(old)

	if start < 0 {
		start = 0
	}
	if start > oldLen {
		start = oldLen
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if deleteCount > oldLen-start {
		deleteCount = oldLen - start
	}

	if !w.mode.shallow() {
		for i, it := range items {
			items[i] = GetRaw(it)
		}
	}

	removed := append([]any(nil), old[start:start+deleteCount]...)

	next := make([]any, 0, oldLen-deleteCount+len(items))
	next = append(next, old[:start]...)
	next = append(next, items...)
	next = append(next, old[start+deleteCount:]...)
	*s = next
	newLen := len(next)

	minLen := oldLen
	if newLen < minLen {
		minLen = newLen
	}
	for i := start; i < minLen; i++ {
		if hasChanged(next[i], old[i]) {
			trigger(w.target, TriggerSet, i, next[i], old[i])
		}
	}
	// Growth notifies length subscribers through the add triggers; shrink
	// goes through the length write, which also invalidates every index at
	// or past the new length.
	for i := oldLen; i < newLen; i++ {
		trigger(w.target, TriggerAdd, i, next[i], nil)
	}
	if newLen < oldLen {
		trigger(w.target, TriggerSet, any(lengthKey), newLen, oldLen)
	}
	return removed
}

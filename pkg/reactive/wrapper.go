package reactive

// Wrapper is the interception shim returned by Wrap. It owns no data:
// every operation delegates to the underlying target, recording reads via
// track and reporting writes via trigger.
//
// Keys are shape-dependent: string for records, int for lists, any
// comparable value for keyed maps and sets. Keyed-collection keys are
// normalized to their raw form, so a wrapped key and its raw target address
// the same entry.
type Wrapper struct {
	target any
	shape  shape
	mode   Mode
}

// Mode returns the wrapper's mode.
func (w *Wrapper) Mode() Mode {
	return w.mode
}

// Get resolves key through the target's normal semantics and tracks the
// read. In deep modes the resolved value is wrapped on access if it is a
// supported container (readonly-ness is inherited), and cells are
// transparently unwrapped except for list integer indices.
func (w *Wrapper) Get(key any) any {
	key = w.normalizeKey(key)
	val, _ := w.rawGet(key)
	track(w.target, TrackGet, key)
	return w.outValue(key, val)
}

// Set writes key to value. On a readonly wrapper the write is a successful
// no-op with a diagnostic. Returns true unless the write was structurally
// impossible (wrong key type, list index out of range).
//
// In deep modes the incoming value is unwrapped to its raw form first, and
// a write over an existing cell with a non-cell value is redirected into
// the cell's own slot (no structural trigger fires). Otherwise the write
// triggers "add" for a new key or "set" when the value actually changed.
func (w *Wrapper) Set(key, value any) bool {
	if w.mode.readonly() {
		warn("set ignored on readonly wrapper", "mode", w.mode.String())
		return true
	}
	key = w.normalizeKey(key)
	old, had := w.rawGet(key)

	if !w.mode.shallow() {
		value = GetRaw(value)
		old = GetRaw(old)
		if had && isCell(old) && !isCell(value) && w.shape != shapeList {
			old.(Cell).SetCellValue(value)
			return true
		}
	}

	if !w.rawSet(key, value) {
		return false
	}
	if !had {
		trigger(w.target, TriggerAdd, key, value, nil)
	} else if hasChanged(value, old) {
		trigger(w.target, TriggerSet, key, value, old)
	}
	return true
}

// Delete removes key from the target. Triggers only if the key existed and
// removal succeeded. On a readonly wrapper it is a successful no-op with a
// diagnostic.
func (w *Wrapper) Delete(key any) bool {
	if w.mode.readonly() {
		warn("delete ignored on readonly wrapper", "mode", w.mode.String())
		return true
	}
	key = w.normalizeKey(key)
	old, had := w.rawGet(key)
	ok := w.rawDelete(key)
	if had && ok {
		trigger(w.target, TriggerDelete, key, nil, old)
	}
	return ok
}

// Has reports key existence and tracks it.
func (w *Wrapper) Has(key any) bool {
	key = w.normalizeKey(key)
	_, ok := w.rawGet(key)
	track(w.target, TrackHas, key)
	return ok
}

// Keys returns the target's own keys and subscribes enumeration: the
// length key for lists (length changes imply membership changes), the
// map-key-iterate sentinel for keyed collections, and the iterate sentinel
// for records.
func (w *Wrapper) Keys() []any {
	switch w.shape {
	case shapeList:
		track(w.target, TrackIterate, any(lengthKey))
		s := *w.listTarget()
		keys := make([]any, len(s))
		for i := range s {
			keys[i] = i
		}
		return keys
	case shapeRecord:
		track(w.target, TrackIterate, any(iterateKey))
		m := w.target.(map[string]any)
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return keys
	case shapeMap:
		track(w.target, TrackIterate, any(mapKeyIterateKey))
		m := w.target.(map[any]any)
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return keys
	default:
		track(w.target, TrackIterate, any(mapKeyIterateKey))
		m := w.target.(map[any]struct{})
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return keys
	}
}

// Len returns the number of entries. Lists track the length key; other
// shapes track the iterate sentinel.
func (w *Wrapper) Len() int {
	switch w.shape {
	case shapeList:
		track(w.target, TrackGet, any(lengthKey))
		return len(*w.listTarget())
	case shapeRecord:
		track(w.target, TrackIterate, any(iterateKey))
		return len(w.target.(map[string]any))
	case shapeMap:
		track(w.target, TrackIterate, any(iterateKey))
		return len(w.target.(map[any]any))
	default:
		track(w.target, TrackIterate, any(iterateKey))
		return len(w.target.(map[any]struct{}))
	}
}

// Range calls fn for each entry until fn returns false. It subscribes
// whole-object enumeration and yields values with the same wrap/unwrap
// behavior as Get.
func (w *Wrapper) Range(fn func(key, value any) bool) {
	switch w.shape {
	case shapeList:
		track(w.target, TrackIterate, any(lengthKey))
		for i, v := range *w.listTarget() {
			if !fn(i, w.outValue(i, v)) {
				return
			}
		}
	case shapeRecord:
		track(w.target, TrackIterate, any(iterateKey))
		for k, v := range w.target.(map[string]any) {
			if !fn(k, w.outValue(k, v)) {
				return
			}
		}
	case shapeMap:
		track(w.target, TrackIterate, any(iterateKey))
		for k, v := range w.target.(map[any]any) {
			if !fn(k, w.outValue(k, v)) {
				return
			}
		}
	default:
		track(w.target, TrackIterate, any(iterateKey))
		for k := range w.target.(map[any]struct{}) {
			if !fn(k, w.outValue(k, k)) {
				return
			}
		}
	}
}

// Add inserts a member into a set. No-op (with trigger suppressed) when the
// member is already present.
func (w *Wrapper) Add(value any) bool {
	if w.mode.readonly() {
		warn("add ignored on readonly wrapper", "mode", w.mode.String())
		return true
	}
	if w.shape != shapeSet {
		warn("Add on non-set wrapper")
		return false
	}
	value = GetRaw(value)
	m := w.target.(map[any]struct{})
	if _, ok := m[value]; ok {
		return true
	}
	m[value] = struct{}{}
	trigger(w.target, TriggerAdd, value, value, nil)
	return true
}

// Clear empties a keyed collection, notifying every subscriber of the
// target. No-op on an already empty collection.
func (w *Wrapper) Clear() {
	if w.mode.readonly() {
		warn("clear ignored on readonly wrapper", "mode", w.mode.String())
		return
	}
	if !w.shape.keyed() {
		warn("Clear on non-collection wrapper")
		return
	}
	switch m := w.target.(type) {
	case map[any]any:
		if len(m) == 0 {
			return
		}
		clear(m)
	case map[any]struct{}:
		if len(m) == 0 {
			return
		}
		clear(m)
	}
	trigger(w.target, TriggerClear, nil, nil, nil)
}

// outValue applies Get's value semantics: shallow modes pass through, deep
// modes unwrap cells (except list indices) and lazily wrap nested
// containers with inherited readonly-ness.
func (w *Wrapper) outValue(key, val any) any {
	if w.mode.shallow() {
		return val
	}
	if isCell(val) && !(w.shape == shapeList && isIntegerKey(key)) {
		return unwrapCell(val)
	}
	if shapeOf(val) != shapeInvalid {
		if w.mode.readonly() {
			return WrapReadonly(val)
		}
		return Wrap(val)
	}
	return val
}

// normalizeKey unwraps wrapped keys for keyed collections so that wrapped
// and raw identities address the same entry.
func (w *Wrapper) normalizeKey(key any) any {
	if w.shape.keyed() {
		return GetRaw(key)
	}
	return key
}

func (w *Wrapper) listTarget() *[]any {
	return w.target.(*[]any)
}

// rawGet resolves key with the target's plain semantics. For sets the
// returned value is the member itself.
func (w *Wrapper) rawGet(key any) (any, bool) {
	switch w.shape {
	case shapeRecord:
		k, ok := key.(string)
		if !ok {
			return nil, false
		}
		v, ok := w.target.(map[string]any)[k]
		return v, ok
	case shapeList:
		i, ok := key.(int)
		if !ok {
			return nil, false
		}
		s := *w.listTarget()
		if i < 0 || i >= len(s) {
			return nil, false
		}
		return s[i], true
	case shapeMap:
		v, ok := w.target.(map[any]any)[key]
		return v, ok
	default:
		_, ok := w.target.(map[any]struct{})[key]
		if !ok {
			return nil, false
		}
		return key, true
	}
}

// rawSet performs the real write. List writes accept indices 0..len: an
// index equal to the length appends.
func (w *Wrapper) rawSet(key, value any) bool {
	switch w.shape {
	case shapeRecord:
		k, ok := key.(string)
		if !ok {
			warn("record key must be a string")
			return false
		}
		w.target.(map[string]any)[k] = value
		return true
	case shapeList:
		i, ok := key.(int)
		if !ok {
			warn("list key must be an int")
			return false
		}
		s := w.listTarget()
		switch {
		case i >= 0 && i < len(*s):
			(*s)[i] = value
		case i == len(*s):
			*s = append(*s, value)
		default:
			warn("list index out of range", "index", i, "len", len(*s))
			return false
		}
		return true
	case shapeMap:
		w.target.(map[any]any)[key] = value
		return true
	default:
		// Sets have no key->value write; Add is the mutation surface.
		warn("Set on set wrapper; use Add")
		return false
	}
}

// rawDelete removes key. List deletion nils the slot without shifting,
// mirroring hole semantics; length is unchanged.
func (w *Wrapper) rawDelete(key any) bool {
	switch w.shape {
	case shapeRecord:
		k, ok := key.(string)
		if !ok {
			return false
		}
		delete(w.target.(map[string]any), k)
		return true
	case shapeList:
		i, ok := key.(int)
		if !ok {
			return false
		}
		s := *w.listTarget()
		if i < 0 || i >= len(s) {
			return false
		}
		s[i] = nil
		return true
	case shapeMap:
		delete(w.target.(map[any]any), key)
		return true
	default:
		delete(w.target.(map[any]struct{}), key)
		return true
	}
}

package reactive

import (
	"math"
	"reflect"
)

// shape is the closed set of container forms the virtualization layer
// understands. Anything outside this set is returned from Wrap unchanged.
type shape int

const (
	shapeInvalid shape = iota

	// shapeRecord is a string-keyed record: map[string]any.
	shapeRecord

	// shapeList is an integer-indexed sequence: *[]any. A pointer is
	// required so that length-changing operations survive the call.
	shapeList

	// shapeMap is a keyed collection with arbitrary comparable keys:
	// map[any]any.
	shapeMap

	// shapeSet is a membership collection: map[any]struct{}.
	shapeSet
)

// shapeOf classifies a candidate target. shapeInvalid means the value is
// not observable.
func shapeOf(target any) shape {
	switch target.(type) {
	case map[string]any:
		return shapeRecord
	case *[]any:
		return shapeList
	case map[any]any:
		return shapeMap
	case map[any]struct{}:
		return shapeSet
	}
	return shapeInvalid
}

// keyed reports whether the shape is one of the keyed-collection variants,
// which carry the map-key-iterate sentinel in addition to the iterate one.
func (s shape) keyed() bool {
	return s == shapeMap || s == shapeSet
}

// identityOf returns a stable identity for a supported target. Maps and
// pointers both carry a referable header, so reflect's Pointer is a valid
// identity for the life of the target. Returns 0 for unsupported values.
func identityOf(target any) uintptr {
	switch target.(type) {
	case map[string]any, *[]any, map[any]any, map[any]struct{}:
		return reflect.ValueOf(target).Pointer()
	}
	return 0
}

// isIntegerKey reports whether key is a list index.
func isIntegerKey(key any) bool {
	_, ok := key.(int)
	return ok
}

// isNaN reports whether v is a floating-point NaN.
func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// sameValue compares two values by identity-or-value semantics.
// Comparable values use ==. Reference values (maps, slices, funcs,
// channels, pointers) compare by shallow identity only; uncomparable
// structs are always considered different. Deep equality is deliberately
// not performed.
func sameValue(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || tb == nil {
		return ta == tb
	}
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && (va.Len() == 0 || va.Pointer() == vb.Pointer())
	}
	return false
}

// hasChanged reports whether a write from old to value should count as a
// change for triggering purposes. NaN-aware: NaN overwriting NaN is not a
// change, matching identity semantics rather than float equality.
func hasChanged(value, old any) bool {
	if isNaN(value) && isNaN(old) {
		return false
	}
	return !sameValue(value, old)
}

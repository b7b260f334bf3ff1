package reactive

// Wrap returns a mutable wrapper for target. Reads through the wrapper are
// tracked against the running effect; writes trigger subscribed effects.
//
// Wrapping is identity-stable: wrapping the same target twice returns the
// same wrapper, and Wrap(Wrap(target)) is Wrap(target). Values that are not
// supported containers (see shape set in the package docs) are returned
// unchanged with a debug diagnostic.
func Wrap(target any) any {
	// Readonly wrappers stay readonly; requesting a mutable view of one
	// hands back the readonly wrapper itself.
	if w, ok := target.(*Wrapper); ok && w.mode.readonly() {
		return w
	}
	return wrapMode(target, Mutable)
}

// WrapReadonly returns a readonly wrapper for target. Writes and deletes
// through it succeed as no-ops while emitting a diagnostic, and never
// trigger subscribers. Nested containers read through it are readonly too.
func WrapReadonly(target any) any {
	return wrapMode(target, Readonly)
}

// WrapShallow is like Wrap but only intercepts root-level access: nested
// containers are returned raw and cells are not unwrapped.
func WrapShallow(target any) any {
	if w, ok := target.(*Wrapper); ok && w.mode.readonly() {
		return w
	}
	return wrapMode(target, ShallowMutable)
}

// WrapShallowReadonly is like WrapReadonly but only intercepts root-level
// access.
func WrapShallowReadonly(target any) any {
	return wrapMode(target, ShallowReadonly)
}

func wrapMode(target any, mode Mode) any {
	if target == nil {
		debug("value cannot be made reactive", "type", "nil")
		return target
	}

	if w, ok := target.(*Wrapper); ok {
		// Already wrapped. Requesting a readonly view over a mutable
		// wrapper is the one case that produces a new wrapper, layered
		// over the same raw target; everything else reuses w.
		if !(mode.readonly() && !w.mode.readonly()) {
			return w
		}
		target = w.target
	}

	sh := shapeOf(target)
	if sh == shapeInvalid {
		debug("value cannot be made reactive", "mode", mode.String())
		return target
	}

	id := identityOf(target)
	reg := registryFor(mode)
	if existing := reg.lookup(id); existing != nil {
		return existing
	}
	if isSkipped(id) {
		return target
	}

	w := &Wrapper{target: target, shape: sh, mode: mode}
	reg.store(id, w)
	return w
}

// IsWrapped reports whether v is a wrapper of any mode.
func IsWrapped(v any) bool {
	_, ok := v.(*Wrapper)
	return ok
}

// IsReadonlyWrapped reports whether v is a readonly or shallow-readonly
// wrapper.
func IsReadonlyWrapped(v any) bool {
	w, ok := v.(*Wrapper)
	return ok && w.mode.readonly()
}

// GetRaw resolves any number of wrapper layers back to the original target.
// It is transitive and idempotent: GetRaw(GetRaw(v)) == GetRaw(v).
// Non-wrapped values pass through unchanged.
func GetRaw(v any) any {
	for {
		w, ok := v.(*Wrapper)
		if !ok {
			return v
		}
		v = w.target
	}
}

// MarkNonObservable excludes target from future wrapping: Wrap will return
// it unchanged. Returns target for chaining. Wrappers that already exist
// for the target are unaffected.
func MarkNonObservable(target any) any {
	id := identityOf(target)
	if id == 0 {
		debug("MarkNonObservable on unsupported value")
		return target
	}
	markSkipped(id)
	return target
}

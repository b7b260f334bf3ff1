package reactive

import "sync/atomic"

// globalIDCounter is the source of unique IDs for all effects.
var globalIDCounter uint64

// nextID returns the next unique effect ID.
// IDs are monotonically increasing and never reused, so sorting jobs by
// effect ID yields creation order.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}

// Package reactive implements fine-grained dependency tracking over plain
// Go containers.
//
// A plain container (a record map, a list, a keyed map, or a set) is wrapped
// with Wrap or one of its mode variants. Reads through the wrapper are
// recorded against the currently running Effect; writes notify exactly the
// effects that previously read the changed key. Effects either re-run
// synchronously or hand themselves to a dispatcher (see WithScheduler),
// which is how the scheduler package batches them.
//
// The package is the tracking kernel only: it knows nothing about what the
// effects compute. Rendering, templating and value-cell construction live
// elsewhere and interact with this package exclusively through Wrap, Effect
// and the Cell capability interface.
package reactive

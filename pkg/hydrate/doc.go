// Package hydrate coordinates deferred-fragment hydration and event replay.
//
// Server-rendered pages ship with deferred fragments: subtrees that are
// visible but inert until something interacts with them. The coordinator in
// this package owns the machinery that makes that work: a global FIFO queue
// of events awaiting replay, a per-fragment hydration state machine, the
// listener stash holding handlers for not-yet-hydrated elements, and the
// cleanup pass that strips delegation markers once a fragment is live.
//
// # Fragment lifecycle
//
// Each deferred fragment moves through three states:
//
//	idle -> hydrating -> drained
//
// The idle-to-hydrating transition happens exactly once per fragment per
// application lifetime, on the first event that targets it. While the
// fragment hydrates, further events for it are queued, never dropped. Once
// the renderer reports completion and the application reaches a stable
// point, the fragment is marked drained, its queued events are replayed in
// arrival order, and its delegation markers are stripped.
//
// # Event routing
//
// OnEvent is the single entry point. Events whose target carries a deferred
// fragment marker are queued and trigger hydration; events for root content
// are invoked immediately through the stash when they carry the replay
// phase, or handed to the configured live handler otherwise. Events for a
// fragment that already drained invoke directly: the fragment is live and
// must not hydrate twice.
//
// # Concurrency
//
// OnEvent is synchronous and never blocks on hydration. Hydration itself
// runs on its own goroutine per triggering fragment; completion re-enters
// the coordinator to drain the queue. Internal state, the registry, the
// stash, and delegation marker attributes are guarded by the coordinator's
// lock; handlers are always invoked outside it, so a handler may safely
// dispatch new events synchronously. Handlers must tolerate being called
// from a hydration goroutine.
//
// Event ingress for one application is expected to be serialized by the
// caller, which is what the transport layer does with its per-connection
// read loop. Mutating an application's document tree from outside the
// renderer while the coordinator is running is not supported.
package hydrate

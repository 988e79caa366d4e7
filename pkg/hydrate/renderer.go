package hydrate

import "context"

// Renderer is the coordinator's view of the hydration subsystem. The
// component renderer itself lives outside this module; anything that can
// hydrate a fragment and report stability satisfies the interface.
// pkg/source carries a content-fetching implementation.
type Renderer interface {
	// Hydrate triggers hydration of one deferred fragment and returns when
	// the renderer signals completion. Hydration may be arbitrarily long;
	// network-bound implementations honor ctx cancellation.
	Hydrate(ctx context.Context, fragmentID string) error

	// Ancestors returns the fragment's not-yet-hydrated ancestor deferred
	// fragments, outermost first. Fragments hydrate top-down, so these run
	// before the fragment itself.
	Ancestors(fragmentID string) []string

	// WhenStable blocks until the application reaches a stable point after
	// hydration: pending renders flushed, effects settled. Resolved by the
	// external application-readiness signal.
	WhenStable(ctx context.Context) error

	// CleanupViews releases server-rendered view state superseded by
	// hydration. Called once per drain pass, after replay.
	CleanupViews()
}

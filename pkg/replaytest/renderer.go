package replaytest

import (
	"context"
	"sync"
)

// FakeRenderer implements the coordinator's renderer interface with
// scriptable blocking and failure, recording every hydration call.
type FakeRenderer struct {
	mu       sync.Mutex
	calls    []string
	cleanups int

	// AncestorMap answers Ancestors; ids without an entry have none.
	AncestorMap map[string][]string

	// Failures makes Hydrate fail for the mapped fragment ids.
	Failures map[string]error

	// StableErr makes WhenStable fail.
	StableErr error

	gates map[string]chan struct{}
}

// NewFakeRenderer returns a FakeRenderer with empty maps.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{
		AncestorMap: make(map[string][]string),
		Failures:    make(map[string]error),
		gates:       make(map[string]chan struct{}),
	}
}

// GateFragment makes Hydrate block for the fragment until OpenGate.
// Call before any event triggers the fragment.
func (f *FakeRenderer) GateFragment(fragmentID string) {
	f.mu.Lock()
	f.gates[fragmentID] = make(chan struct{})
	f.mu.Unlock()
}

// OpenGate unblocks a gated fragment.
func (f *FakeRenderer) OpenGate(fragmentID string) {
	f.mu.Lock()
	gate := f.gates[fragmentID]
	delete(f.gates, fragmentID)
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// Hydrate records the call, honoring gates and scripted failures.
func (f *FakeRenderer) Hydrate(ctx context.Context, fragmentID string) error {
	f.mu.Lock()
	gate := f.gates[fragmentID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, fragmentID)
	err := f.Failures[fragmentID]
	f.mu.Unlock()
	return err
}

// Ancestors answers from AncestorMap.
func (f *FakeRenderer) Ancestors(fragmentID string) []string {
	return f.AncestorMap[fragmentID]
}

// WhenStable returns StableErr.
func (f *FakeRenderer) WhenStable(ctx context.Context) error {
	if f.StableErr != nil {
		return f.StableErr
	}
	return ctx.Err()
}

// CleanupViews counts invocations.
func (f *FakeRenderer) CleanupViews() {
	f.mu.Lock()
	f.cleanups++
	f.mu.Unlock()
}

// HydratedFragments returns the hydration calls in order.
func (f *FakeRenderer) HydratedFragments() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Cleanups returns how many times CleanupViews ran.
func (f *FakeRenderer) Cleanups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanups
}

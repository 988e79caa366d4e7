package hydrate

import (
	"errors"
	"fmt"
)

// Coordinator errors.
var (
	// ErrNilRenderer is returned when a coordinator is constructed without
	// a renderer.
	ErrNilRenderer = errors.New("hydrate: nil renderer")
)

// HydrationError wraps a renderer failure with the fragment and operation
// it occurred in. Hydration is asynchronous, so these surface through logs
// and metrics rather than return values.
type HydrationError struct {
	FragmentID string
	Op         string // "hydrate" or "stability"
	Err        error
}

// Error implements the error interface.
func (e *HydrationError) Error() string {
	return fmt.Sprintf("hydrate: %s failed for fragment %q: %v", e.Op, e.FragmentID, e.Err)
}

// Unwrap returns the underlying error.
func (e *HydrationError) Unwrap() error {
	return e.Err
}

// Package contract carries the server-side half of the event-capture
// contract: the event model, a minimal capture contract implementation that
// buffers events until a dispatcher registers, and the serialized descriptor
// ("bundle") the server embeds in markup so the contract can be rebuilt when
// the application initializes.
//
// The capture/bubble mechanics of live DOM dispatch stay outside this
// module; what crosses the wire and what replay needs to reconstruct is all
// that lives here.
package contract

import (
	"time"

	"golang.org/x/net/html"
)

// Phase tags an event with how it reached the dispatcher.
type Phase uint8

const (
	// PhaseLive marks events dispatched as they happen.
	PhaseLive Phase = iota

	// PhaseReplay marks events captured before the application became
	// interactive and delivered later by the replay pass.
	PhaseReplay
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLive:
		return "live"
	case PhaseReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// Event is a single captured UI event flowing through the delegation
// system.
type Event struct {
	// Seq is the transport sequence number, 0 when untracked.
	Seq uint64

	// Type is the DOM event type ("click", "keydown", ...).
	Type string

	// TargetID is the hydration ID of the delegated element the event was
	// captured on.
	TargetID string

	// Target is the resolved element. Nil until the contract resolves
	// TargetID against its container subtree.
	Target *html.Node

	// Phase distinguishes replayed from live dispatch.
	Phase Phase

	// Data is an opaque payload forwarded to handlers untouched.
	Data []byte

	// Time is when the event entered the system.
	Time time.Time
}

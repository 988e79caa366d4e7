package contract

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
)

// Descriptor identifies the event-capture configuration of one application:
// where the contract listens and which event types it routes.
type Descriptor struct {
	// AppID is the application identifier the bundle is keyed by.
	AppID string `msgpack:"app_id"`

	// Container is the hydration ID of the container element. Empty means
	// the contract listens at the document root.
	Container string `msgpack:"container"`

	// EventTypes are the regular (bubble-phase) event types.
	EventTypes []string `msgpack:"event_types"`

	// CaptureEventTypes are the capture-phase event types.
	CaptureEventTypes []string `msgpack:"capture_event_types"`
}

// EarlyEvent is the serialized form of one event captured before the
// application became interactive.
type EarlyEvent struct {
	Seq      uint64 `msgpack:"seq"`
	Type     string `msgpack:"type"`
	TargetID string `msgpack:"target"`
	Data     []byte `msgpack:"data,omitempty"`
	TS       int64  `msgpack:"ts,omitempty"` // unix milliseconds
}

// Bundle pairs a descriptor with the events captured before interactivity.
// Bundles are single-use: once an application initializes from one, it is
// discarded.
type Bundle struct {
	Descriptor Descriptor   `msgpack:"descriptor"`
	Early      []EarlyEvent `msgpack:"early,omitempty"`
}

// EncodeBundle serializes a bundle for markup embedding: msgpack, then
// base64 raw-URL encoding.
func EncodeBundle(b *Bundle) (string, error) {
	raw, err := msgpack.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("contract: encode bundle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeBundle reverses EncodeBundle.
func DecodeBundle(s string) (*Bundle, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("contract: decode bundle: %w", err)
	}
	var b Bundle
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("contract: decode bundle: %w", err)
	}
	return &b, nil
}

// Rebuild constructs the event-capture contract the bundle describes:
// resolves the container element under root, registers the event types, and
// buffers the early events for replay.
func (b *Bundle) Rebuild(root *html.Node, opts ...Option) (*Contract, error) {
	container := root
	if b.Descriptor.Container != "" {
		container = dom.FindByHID(root, b.Descriptor.Container)
		if container == nil {
			return nil, fmt.Errorf("%w: hid %q", ErrContainerNotFound, b.Descriptor.Container)
		}
	}

	c := New(container, opts...)
	for _, t := range b.Descriptor.EventTypes {
		c.AddEvent(t)
	}
	for _, t := range b.Descriptor.CaptureEventTypes {
		c.AddCaptureEvent(t)
	}
	for _, e := range b.Early {
		ev := &Event{
			Seq:      e.Seq,
			Type:     e.Type,
			TargetID: e.TargetID,
			Data:     e.Data,
		}
		if e.TS != 0 {
			ev.Time = time.UnixMilli(e.TS)
		}
		c.BufferEarly(ev)
	}
	return c, nil
}

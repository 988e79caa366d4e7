package contract

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
)

// Contract errors.
var (
	// ErrNilEvent is returned when a nil event is dispatched.
	ErrNilEvent = errors.New("contract: nil event")

	// ErrTargetNotResolved is returned when an event's target cannot be
	// found in the container subtree.
	ErrTargetNotResolved = errors.New("contract: event target not resolved")

	// ErrContainerNotFound is returned when a bundle names a container
	// element that does not exist in the document.
	ErrContainerNotFound = errors.New("contract: container element not found")
)

// DispatchFunc receives every event the contract routes.
type DispatchFunc func(*Event)

// Option configures a Contract.
type Option func(*Contract)

// WithTreeLock shares a document mutex with other components that mutate
// the same tree, such as a renderer splicing hydrated fragment content.
// Target-resolution walks take the lock.
func WithTreeLock(mu *sync.Mutex) Option {
	return func(c *Contract) {
		if mu != nil {
			c.treeMu = mu
		}
	}
}

// Contract is the event-capture contract for one application instance.
//
// Until a dispatcher registers, dispatched events are buffered as early
// events; ReplayEarly hands them over exactly once, tagged with the replay
// phase. Target resolution maps the hydration ID carried by serialized
// events back to an element in the container subtree.
type Contract struct {
	container *html.Node
	treeMu    *sync.Mutex

	mu         sync.Mutex
	regular    map[string]struct{}
	capture    map[string]struct{}
	early      []*Event
	replayed   bool
	dispatcher DispatchFunc
	hidIndex   map[string]*html.Node
	unresolved uint64
}

// New creates a contract rooted at the given container element.
func New(container *html.Node, opts ...Option) *Contract {
	c := &Contract{
		container: container,
		treeMu:    &sync.Mutex{},
		regular:   make(map[string]struct{}),
		capture:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Container returns the contract's container element.
func (c *Contract) Container() *html.Node {
	return c.container
}

// AddEvent registers a regular event type with the contract.
func (c *Contract) AddEvent(eventType string) {
	if eventType == "" {
		return
	}
	c.mu.Lock()
	c.regular[eventType] = struct{}{}
	c.mu.Unlock()
}

// AddCaptureEvent registers a capture-phase event type with the contract.
func (c *Contract) AddCaptureEvent(eventType string) {
	if eventType == "" {
		return
	}
	c.mu.Lock()
	c.capture[eventType] = struct{}{}
	c.mu.Unlock()
}

// HasEvent reports whether the event type is registered, in either phase.
func (c *Contract) HasEvent(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.regular[eventType]; ok {
		return true
	}
	_, ok := c.capture[eventType]
	return ok
}

// EventTypes returns the registered regular event types, sorted.
func (c *Contract) EventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.regular)
}

// CaptureEventTypes returns the registered capture-phase event types,
// sorted.
func (c *Contract) CaptureEventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.capture)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetDispatcher registers the dispatch callback. Events dispatched before
// registration are buffered; call ReplayEarly to deliver them.
func (c *Contract) SetDispatcher(fn DispatchFunc) {
	c.mu.Lock()
	c.dispatcher = fn
	c.mu.Unlock()
}

// BufferEarly appends an event to the early-event buffer without
// dispatching it. Used when rebuilding a contract from serialized state.
func (c *Contract) BufferEarly(ev *Event) {
	if ev == nil {
		return
	}
	c.mu.Lock()
	c.early = append(c.early, ev)
	c.mu.Unlock()
}

// EarlyCount returns the number of buffered early events.
func (c *Contract) EarlyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.early)
}

// Unresolved returns the number of events whose target could not be
// resolved and which were therefore skipped.
func (c *Contract) Unresolved() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unresolved
}

// Dispatch routes one event. With no dispatcher registered yet the event is
// buffered as an early event. The target is resolved from TargetID when
// unset; unresolvable targets are counted and reported.
func (c *Contract) Dispatch(ev *Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	c.mu.Lock()
	fn := c.dispatcher
	if fn == nil {
		c.early = append(c.early, ev)
		c.mu.Unlock()
		return nil
	}
	ok := c.resolveLocked(ev)
	if !ok {
		c.unresolved++
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: hid %q", ErrTargetNotResolved, ev.TargetID)
	}
	fn(ev)
	return nil
}

// ReplayEarly marks all buffered early events with the replay phase and
// hands them to the dispatcher in capture order. The buffer is handed over
// exactly once; later calls return 0. Events whose target no longer
// resolves are counted and skipped.
func (c *Contract) ReplayEarly() int {
	c.mu.Lock()
	if c.replayed || c.dispatcher == nil {
		c.mu.Unlock()
		return 0
	}
	c.replayed = true
	events := c.early
	c.early = nil
	fn := c.dispatcher

	delivered := make([]*Event, 0, len(events))
	for _, ev := range events {
		ev.Phase = PhaseReplay
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		if !c.resolveLocked(ev) {
			c.unresolved++
			continue
		}
		delivered = append(delivered, ev)
	}
	c.mu.Unlock()

	for _, ev := range delivered {
		fn(ev)
	}
	return len(delivered)
}

// resolveLocked fills in ev.Target from its hydration ID. The index over
// the container subtree is built lazily and rebuilt once on a miss, since
// hydration splices new elements into the tree. Walks hold the tree lock
// so they never observe a splice mid-flight.
func (c *Contract) resolveLocked(ev *Event) bool {
	if ev.Target != nil {
		return true
	}
	if ev.TargetID == "" {
		return false
	}
	if c.hidIndex == nil {
		c.hidIndex = c.collectHIDs()
	}
	if el, ok := c.hidIndex[ev.TargetID]; ok {
		ev.Target = el
		return true
	}
	c.hidIndex = c.collectHIDs()
	if el, ok := c.hidIndex[ev.TargetID]; ok {
		ev.Target = el
		return true
	}
	return false
}

func (c *Contract) collectHIDs() map[string]*html.Node {
	c.treeMu.Lock()
	defer c.treeMu.Unlock()
	return dom.CollectHIDs(c.container)
}

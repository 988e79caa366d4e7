package hydrate

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/contract"
)

// Handler consumes one delegated event.
type Handler func(*contract.Event)

// Stash holds event handlers for elements whose views are not yet hydrated.
//
// Entries are keyed by element identity and map event type to an ordered
// handler list. The stash is an explicit out-of-band structure: nothing is
// hung off the elements themselves. The coordinator drops an element's
// entry when its fragment drains.
type Stash struct {
	mu      sync.Mutex
	entries map[*html.Node]map[string][]Handler
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{entries: make(map[*html.Node]map[string][]Handler)}
}

// Add appends a handler to the element's list for the event type,
// creating structures lazily. Nil elements, empty types, and nil handlers
// are ignored.
func (s *Stash) Add(el *html.Node, eventType string, h Handler) {
	if el == nil || eventType == "" || h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := s.entries[el]
	if byType == nil {
		byType = make(map[string][]Handler)
		s.entries[el] = byType
	}
	byType[eventType] = append(byType[eventType], h)
}

// Invoke calls every handler stashed for the event's type on the element,
// in registration order, and returns how many ran. Elements without an
// entry, or without handlers for the type, are a silent no-op.
func (s *Stash) Invoke(el *html.Node, ev *contract.Event) int {
	if el == nil || ev == nil {
		return 0
	}
	s.mu.Lock()
	var handlers []Handler
	if byType := s.entries[el]; byType != nil {
		stashed := byType[ev.Type]
		if len(stashed) > 0 {
			handlers = make([]Handler, len(stashed))
			copy(handlers, stashed)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return len(handlers)
}

// Drop removes the element's entire entry.
func (s *Stash) Drop(el *html.Node) {
	if el == nil {
		return
	}
	s.mu.Lock()
	delete(s.entries, el)
	s.mu.Unlock()
}

// Handlers returns the number of handlers stashed for the element and
// event type.
func (s *Stash) Handlers(el *html.Node, eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byType := s.entries[el]; byType != nil {
		return len(byType[eventType])
	}
	return 0
}

// Len returns the number of elements with stashed handlers.
func (s *Stash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

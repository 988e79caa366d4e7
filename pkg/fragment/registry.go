package fragment

import (
	"sort"
	"sync"

	"golang.org/x/net/html"
)

// Registry maps fragment identifiers to the elements recorded under them.
// Elements are deduplicated by node identity and kept in recording order.
//
// Entries survive until the fragment's queued events have been drained; the
// hydration coordinator removes them with Take as the last step of cleanup.
type Registry struct {
	mu       sync.Mutex
	elements map[string][]*html.Node
	members  map[string]map[*html.Node]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		elements: make(map[string][]*html.Node),
		members:  make(map[string]map[*html.Node]struct{}),
	}
}

// Record reads the element's current fragment marker (default empty) and
// adds the element to that fragment's set. Recording the same element twice
// is a no-op. Returns the fragment identifier the element was recorded
// under.
func (r *Registry) Record(el *html.Node) string {
	if el == nil {
		return ""
	}
	id := IDOf(el)

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.members[id]
	if set == nil {
		set = make(map[*html.Node]struct{})
		r.members[id] = set
	}
	if _, dup := set[el]; dup {
		return id
	}
	set[el] = struct{}{}
	r.elements[id] = append(r.elements[id], el)
	return id
}

// Elements returns the elements recorded for the fragment, in recording
// order. The returned slice is a copy.
func (r *Registry) Elements(id string) []*html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	els := r.elements[id]
	if len(els) == 0 {
		return nil
	}
	out := make([]*html.Node, len(els))
	copy(out, els)
	return out
}

// Take removes the fragment's entry and returns its elements in recording
// order. Returns nil when the fragment has no entry.
func (r *Registry) Take(id string) []*html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	els := r.elements[id]
	delete(r.elements, id)
	delete(r.members, id)
	return els
}

// Fragments returns the tracked fragment identifiers, sorted.
func (r *Registry) Fragments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.elements))
	for id := range r.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of fragments with at least one recorded element.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.elements)
}

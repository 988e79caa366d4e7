package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
	"github.com/vango-dev/replay/pkg/jsaction"
)

// ErrNoContainer is returned when the page has no element carrying the
// fragment marker being hydrated.
var ErrNoContainer = errors.New("source: fragment container not found")

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithParents supplies the fragment nesting map: fragment id to its
// ancestor chain, outermost first. Fragments without an entry hydrate
// alone.
func WithParents(parents map[string][]string) RendererOption {
	return func(r *Renderer) { r.parents = parents }
}

// WithLogger sets the renderer's logger.
func WithLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTreeLock shares a document mutex with other components that walk or
// mutate the same tree, such as the event-capture contract's target
// resolution. Splices take the lock for their whole critical section.
func WithTreeLock(mu *sync.Mutex) RendererOption {
	return func(r *Renderer) {
		if mu != nil {
			r.treeMu = mu
		}
	}
}

// Renderer hydrates deferred fragments by fetching their pre-rendered
// content and splicing it into the fragment's container element, the
// first element in document order whose fragment marker equals the id.
//
// Old children are detached and retained until CleanupViews releases
// them, mirroring how superseded dehydrated views persist until the
// coordinator finishes a drain pass.
type Renderer struct {
	src    Source
	logger *slog.Logger
	treeMu *sync.Mutex

	mu         sync.Mutex
	doc        *html.Node
	parents    map[string][]string
	hydrated   map[string]bool
	superseded []*html.Node
}

// NewRenderer builds a Renderer splicing into doc with content from src.
func NewRenderer(doc *html.Node, src Source, opts ...RendererOption) *Renderer {
	r := &Renderer{
		src:      src,
		logger:   slog.Default(),
		treeMu:   &sync.Mutex{},
		doc:      doc,
		hydrated: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hydrate fetches the fragment's content and replaces the container's
// children with it. Safe for concurrent use; concurrent calls for
// different fragments serialize on the splice only.
func (r *Renderer) Hydrate(ctx context.Context, fragmentID string) error {
	body, err := r.src.Fetch(ctx, fragmentID)
	if err != nil {
		return fmt.Errorf("hydrate fragment %s: %w", fragmentID, err)
	}

	nodes, err := dom.ParseFragment(string(body))
	if err != nil {
		return fmt.Errorf("hydrate fragment %s: parse content: %w", fragmentID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.treeMu.Lock()
	container := dom.FindByAttr(r.doc, jsaction.FragmentAttribute, fragmentID)
	if container == nil {
		r.treeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoContainer, fragmentID)
	}
	old := dom.ReplaceChildren(container, nodes)
	r.treeMu.Unlock()

	r.superseded = append(r.superseded, old...)
	r.hydrated[fragmentID] = true

	r.logger.Debug("fragment content applied",
		"fragment_id", fragmentID, "bytes", len(body), "superseded", len(old))
	return nil
}

// Ancestors returns the fragment's not-yet-hydrated ancestors, outermost
// first, from the parents map.
func (r *Renderer) Ancestors(fragmentID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, a := range r.parents[fragmentID] {
		if a != fragmentID && !r.hydrated[a] {
			out = append(out, a)
		}
	}
	return out
}

// WhenStable reports readiness immediately: content application is
// synchronous, so nothing is pending once Hydrate returns.
func (r *Renderer) WhenStable(ctx context.Context) error {
	return ctx.Err()
}

// CleanupViews releases the superseded dehydrated children.
func (r *Renderer) CleanupViews() {
	r.mu.Lock()
	n := len(r.superseded)
	r.superseded = nil
	r.mu.Unlock()

	if n > 0 {
		r.logger.Debug("released superseded views", "count", n)
	}
}

// Hydrated reports whether the fragment's content has been applied.
func (r *Renderer) Hydrated(fragmentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hydrated[fragmentID]
}

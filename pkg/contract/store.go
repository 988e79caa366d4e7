package contract

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
)

// Markup embedding of contract bundles. Server rendering emits one script
// element per application that captured early events:
//
//	<script type="application/replay-state" data-app="APPID">BUNDLE</script>
//
// Absence of the script means event replay stays disabled for that
// application.
const (
	// ScriptType is the type attribute of embedded replay-state scripts.
	ScriptType = "application/replay-state"

	// ScriptAppAttr names the application the script belongs to.
	ScriptAppAttr = "data-app"
)

// ErrNoAppID is returned for embedded bundles that name no application.
var ErrNoAppID = errors.New("contract: bundle has no application id")

// Store holds contract bundles keyed by application identifier.
//
// Bundles are single-use: Take removes the entry it returns, so a second
// initialization of the same application finds nothing and degrades to a
// no-op.
type Store struct {
	mu      sync.Mutex
	bundles map[string]*Bundle
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{bundles: make(map[string]*Bundle)}
}

// Put stores a bundle under its application identifier, replacing any
// existing entry. Bundles without an AppID are ignored.
func (s *Store) Put(b *Bundle) {
	if b == nil || b.Descriptor.AppID == "" {
		return
	}
	s.mu.Lock()
	s.bundles[b.Descriptor.AppID] = b
	s.mu.Unlock()
}

// Take removes and returns the bundle for the application, if present.
func (s *Store) Take(appID string) (*Bundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[appID]
	if ok {
		delete(s.bundles, appID)
	}
	return b, ok
}

// Has reports whether a bundle is stored for the application.
func (s *Store) Has(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bundles[appID]
	return ok
}

// Len returns the number of stored bundles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bundles)
}

// Extract scans the document for embedded replay-state scripts and loads
// each bundle into the store. Returns the number loaded; malformed scripts
// are skipped and their errors joined into the returned error.
func (s *Store) Extract(doc *html.Node) (int, error) {
	var errs []error
	loaded := 0

	dom.WalkElements(doc, func(n *html.Node) bool {
		if n.Data != "script" {
			return true
		}
		if typ, _ := dom.Attr(n, "type"); typ != ScriptType {
			return true
		}

		appID := dom.AttrOr(n, ScriptAppAttr, "")
		b, err := DecodeBundle(dom.Text(n))
		if err != nil {
			errs = append(errs, fmt.Errorf("app %q: %w", appID, err))
			return true
		}
		if b.Descriptor.AppID == "" {
			b.Descriptor.AppID = appID
		}
		if b.Descriptor.AppID == "" {
			errs = append(errs, ErrNoAppID)
			return true
		}
		s.Put(b)
		loaded++
		return true
	})

	return loaded, errors.Join(errs...)
}

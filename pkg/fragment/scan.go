package fragment

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
	"github.com/vango-dev/replay/pkg/jsaction"
)

// Hydration trigger event types. Fragments deferred "on hover" or
// "on interaction" are rendered with these types in their delegation
// markers; the startup scan must register them before any event fires.
var (
	HoverTriggers       = []string{"mouseenter", "focusin"}
	InteractionTriggers = []string{"click", "keydown"}
)

var triggerSet = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range HoverTriggers {
		set[t] = struct{}{}
	}
	for _, t := range InteractionTriggers {
		set[t] = struct{}{}
	}
	return set
}()

// IsTrigger reports whether the event type is a hydration trigger.
func IsTrigger(eventType string) bool {
	_, ok := triggerSet[eventType]
	return ok
}

// Scan walks the subtree under root for elements whose delegation marker
// includes a hydration trigger event type and records each into the
// registry, grouped by its fragment marker. Returns the number of elements
// recorded.
//
// Scan runs once at application startup so that hover- and
// interaction-triggered fragments are known to the cleanup path even when
// hydration is initiated by an ancestor rather than by an event of their
// own.
func Scan(root *html.Node, reg *Registry) int {
	if root == nil || reg == nil {
		return 0
	}
	doc := goquery.NewDocumentFromNode(root)
	count := 0
	for _, n := range doc.Find("[" + jsaction.Attribute + "]").Nodes {
		marker := dom.AttrOr(n, jsaction.Attribute, "")
		for _, t := range jsaction.ParseMarker(marker) {
			if IsTrigger(t) {
				reg.Record(n)
				count++
				break
			}
		}
	}
	return count
}

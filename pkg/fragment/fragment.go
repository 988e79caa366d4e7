// Package fragment tracks deferred-fragment membership of rendered elements.
//
// Deferred fragments are the lazily hydrated islands of a server-rendered
// page. Every element participating in event delegation carries the fragment
// marker of the fragment it belongs to; the registry groups elements by
// fragment so post-hydration cleanup can find and strip them.
package fragment

import (
	"regexp"

	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
	"github.com/vango-dev/replay/pkg/jsaction"
)

// Deferred fragment identifiers are assigned during server rendering as
// "d<number>". Anything else, including the empty string, denotes root
// content that hydrates with the application itself.
var deferredPattern = regexp.MustCompile(`^d[0-9]+$`)

// IsDeferred reports whether id names a deferred fragment.
func IsDeferred(id string) bool {
	return deferredPattern.MatchString(id)
}

// IDOf returns the element's current fragment marker, or the empty string
// when the element carries none.
func IDOf(el *html.Node) string {
	return dom.AttrOr(el, jsaction.FragmentAttribute, "")
}

package jsaction

import (
	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/dom"
)

// Tag merges the given event types into the element's delegation marker.
// Types already present are skipped. When fragmentID is non-empty and at
// least one new type was added, the fragment marker is set as well; a call
// that adds nothing leaves both attributes untouched.
//
// Tag reports whether the element changed. Nil or non-element nodes and
// empty type lists are no-ops.
func Tag(el *html.Node, eventTypes []string, fragmentID string) bool {
	if !dom.IsElement(el) || len(eventTypes) == 0 {
		return false
	}

	existing := dom.AttrOr(el, Attribute, "")
	marker, changed := AppendMarker(existing, eventTypes)
	if !changed {
		return false
	}

	dom.SetAttr(el, Attribute, marker)
	if fragmentID != "" {
		dom.SetAttr(el, FragmentAttribute, fragmentID)
	}
	return true
}

// Untag removes both delegation markers from the element. The caller is
// responsible for dropping any stashed listeners tied to the element.
func Untag(el *html.Node) {
	dom.RemoveAttr(el, Attribute)
	dom.RemoveAttr(el, FragmentAttribute)
}

// Types returns the event types currently listed on the element's
// delegation marker.
func Types(el *html.Node) []string {
	marker, ok := dom.Attr(el, Attribute)
	if !ok {
		return nil
	}
	return ParseMarker(marker)
}

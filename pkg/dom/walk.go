package dom

import "golang.org/x/net/html"

// Walk visits n and every descendant in document order. The visit function
// returns false to stop the walk early. Walk reports whether the walk ran to
// completion.
func Walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, visit) {
			return false
		}
	}
	return true
}

// WalkElements visits every element node in the subtree in document order.
func WalkElements(n *html.Node, visit func(*html.Node) bool) {
	Walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return true
		}
		return visit(c)
	})
}

// FindByAttr returns the first element in document order whose attribute
// key equals val, or nil.
func FindByAttr(root *html.Node, key, val string) *html.Node {
	var found *html.Node
	WalkElements(root, func(n *html.Node) bool {
		if v, ok := Attr(n, key); ok && v == val {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByID returns the first element with the given id attribute, or nil.
func FindByID(root *html.Node, id string) *html.Node {
	return FindByAttr(root, "id", id)
}

// FindByHID returns the element carrying the given hydration ID, or nil.
func FindByHID(root *html.Node, hid string) *html.Node {
	return FindByAttr(root, HIDAttr, hid)
}

// ElementsWithAttr returns all elements carrying the named attribute, in
// document order.
func ElementsWithAttr(root *html.Node, key string) []*html.Node {
	var out []*html.Node
	WalkElements(root, func(n *html.Node) bool {
		if _, ok := Attr(n, key); ok {
			out = append(out, n)
		}
		return true
	})
	return out
}

// CollectHIDs returns a map of hydration ID to element for the subtree.
func CollectHIDs(root *html.Node) map[string]*html.Node {
	result := make(map[string]*html.Node)
	WalkElements(root, func(n *html.Node) bool {
		if hid, ok := Attr(n, HIDAttr); ok && hid != "" {
			result[hid] = n
		}
		return true
	})
	return result
}

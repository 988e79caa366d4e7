// Package dom provides element handle utilities over golang.org/x/net/html
// node trees.
//
// The replay runtime represents server-rendered markup as parsed HTML trees
// and identifies elements by node pointer. This package carries the small set
// of attribute and tree helpers the rest of the runtime is built on: attribute
// access and mutation, document and fragment parsing, serialization, and
// walkers for locating elements by attribute or hydration ID.
package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HIDAttr is the attribute carrying the hydration ID assigned during
// server-side rendering. Serialized events reference their target element
// through this attribute.
const HIDAttr = "data-hid"

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the value of the named attribute, or fallback when absent.
func AttrOr(n *html.Node, key, fallback string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return fallback
}

// SetAttr sets the named attribute, replacing any existing value.
// No-op on nil or non-element nodes.
func SetAttr(n *html.Node, key, val string) {
	if !IsElement(n) {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr removes the named attribute. No-op when absent.
func RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Parse parses a complete HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ParseString parses a complete HTML document from a string.
func ParseString(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

// ParseFragment parses markup as the contents of a <div> element and returns
// the top-level nodes, detached and ready for insertion.
func ParseFragment(s string) ([]*html.Node, error) {
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	}
	return html.ParseFragment(strings.NewReader(s), ctx)
}

// Render serializes the node and its subtree to HTML.
func Render(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Text returns the concatenated text content of the subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// Detach removes n from its parent. No-op when n has no parent.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// ReplaceChildren removes all children of n and appends the given nodes in
// order. The removed children are returned detached, in their original order.
func ReplaceChildren(n *html.Node, children []*html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, c := range children {
		Detach(c)
		n.AppendChild(c)
	}
	return removed
}

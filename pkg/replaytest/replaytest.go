package replaytest

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/dom"
)

// MustParse parses an HTML document, failing the test on error.
func MustParse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return doc
}

// MustFindHID returns the element carrying the hydration id, failing the
// test when absent.
func MustFindHID(t *testing.T, root *html.Node, hid string) *html.Node {
	t.Helper()
	el := dom.FindByHID(root, hid)
	if el == nil {
		t.Fatalf("no element with hydration id %q", hid)
	}
	return el
}

// MustRender serializes a document, failing the test on error.
func MustRender(t *testing.T, n *html.Node) string {
	t.Helper()
	out, err := dom.Render(n)
	if err != nil {
		t.Fatalf("render document: %v", err)
	}
	return out
}

// StateScript renders the embedded replay-state script tag for a bundle.
//
// Example:
//
//	page := "<body>" + replaytest.StateScript(t, bundle) + "</body>"
func StateScript(t *testing.T, b *contract.Bundle) string {
	t.Helper()
	encoded, err := contract.EncodeBundle(b)
	if err != nil {
		t.Fatalf("encode bundle: %v", err)
	}
	return `<script type="` + contract.ScriptType + `" data-app="` +
		b.Descriptor.AppID + `">` + encoded + `</script>`
}

// ExpectAttr asserts an element carries an attribute value.
func ExpectAttr(t *testing.T, el *html.Node, key, want string) {
	t.Helper()
	got, ok := dom.Attr(el, key)
	if !ok {
		t.Errorf("expected attribute %s=%q, attribute missing", key, want)
		return
	}
	if got != want {
		t.Errorf("attribute %s = %q, want %q", key, got, want)
	}
}

// ExpectNoAttr asserts an element does not carry an attribute.
func ExpectNoAttr(t *testing.T, el *html.Node, key string) {
	t.Helper()
	if got, ok := dom.Attr(el, key); ok {
		t.Errorf("expected attribute %s to be absent, got %q", key, got)
	}
}

// ExpectContains asserts the document's serialized form contains the
// substring.
func ExpectContains(t *testing.T, n *html.Node, want string) {
	t.Helper()
	out := MustRender(t, n)
	if !strings.Contains(out, want) {
		t.Errorf("expected document to contain %q, got:\n%s", want, truncate(out, 500))
	}
}

// ExpectNotContains asserts the document's serialized form does not
// contain the substring.
func ExpectNotContains(t *testing.T, n *html.Node, unwanted string) {
	t.Helper()
	out := MustRender(t, n)
	if strings.Contains(out, unwanted) {
		t.Errorf("expected document to NOT contain %q, got:\n%s", unwanted, truncate(out, 500))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

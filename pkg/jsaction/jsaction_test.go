package jsaction

import (
	"reflect"
	"testing"

	"github.com/vango-dev/replay/pkg/dom"
)

func TestParseMarker(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		want   []string
	}{
		{"empty", "", nil},
		{"single", "click:;", []string{"click"}},
		{"multiple", "click:;keydown:;", []string{"click", "keydown"}},
		{"long form", "click:ns.handler;keydown:;", []string{"click", "keydown"}},
		{"whitespace", " click:; keydown:; ", []string{"click", "keydown"}},
		{"bare separator", ";;;", nil},
		{"no trailing separator", "click:;keydown", []string{"click", "keydown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMarker(tt.marker)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMarker(%q) = %v, want %v", tt.marker, got, tt.want)
			}
		})
	}
}

func TestFormatMarker(t *testing.T) {
	if got := FormatMarker([]string{"click", "keydown"}); got != "click:;keydown:;" {
		t.Errorf("FormatMarker = %q, want click:;keydown:;", got)
	}
	if got := FormatMarker([]string{"click", "click"}); got != "click:;" {
		t.Errorf("FormatMarker with dup = %q, want click:;", got)
	}
	if got := FormatMarker(nil); got != "" {
		t.Errorf("FormatMarker(nil) = %q, want empty", got)
	}
}

func TestAppendMarker(t *testing.T) {
	t.Run("appends preserving order", func(t *testing.T) {
		got, changed := AppendMarker("click:;", []string{"click", "keydown"})
		if !changed {
			t.Fatal("expected change")
		}
		if got != "click:;keydown:;" {
			t.Errorf("AppendMarker = %q, want click:;keydown:;", got)
		}
	})

	t.Run("no change for subset", func(t *testing.T) {
		got, changed := AppendMarker("click:;keydown:;", []string{"keydown"})
		if changed {
			t.Errorf("unexpected change, marker = %q", got)
		}
		if got != "click:;keydown:;" {
			t.Errorf("marker rewritten to %q", got)
		}
	})

	t.Run("from empty", func(t *testing.T) {
		got, changed := AppendMarker("", []string{"mouseenter", "focusin"})
		if !changed || got != "mouseenter:;focusin:;" {
			t.Errorf("AppendMarker = %q, %v", got, changed)
		}
	})
}

func TestTag(t *testing.T) {
	t.Run("tags and sets fragment marker", func(t *testing.T) {
		doc, err := dom.ParseString(`<button id="b">go</button>`)
		if err != nil {
			t.Fatal(err)
		}
		el := dom.FindByID(doc, "b")

		if !Tag(el, []string{"click"}, "d1") {
			t.Fatal("Tag reported no change")
		}
		if got := dom.AttrOr(el, Attribute, ""); got != "click:;" {
			t.Errorf("jsaction = %q, want click:;", got)
		}
		if got := dom.AttrOr(el, FragmentAttribute, ""); got != "d1" {
			t.Errorf("ngb = %q, want d1", got)
		}
	})

	t.Run("re-tag dedupes and appends", func(t *testing.T) {
		doc, _ := dom.ParseString(`<button id="b">go</button>`)
		el := dom.FindByID(doc, "b")

		Tag(el, []string{"click"}, "")
		Tag(el, []string{"click", "keydown"}, "")

		if got := dom.AttrOr(el, Attribute, ""); got != "click:;keydown:;" {
			t.Errorf("jsaction = %q, want click:;keydown:;", got)
		}
	})

	t.Run("no new types leaves fragment marker alone", func(t *testing.T) {
		doc, _ := dom.ParseString(`<button id="b" jsaction="click:;">go</button>`)
		el := dom.FindByID(doc, "b")

		if Tag(el, []string{"click"}, "d7") {
			t.Error("Tag reported change for subset")
		}
		if _, ok := dom.Attr(el, FragmentAttribute); ok {
			t.Error("ngb set despite no new event types")
		}
	})

	t.Run("empty types is a no-op", func(t *testing.T) {
		doc, _ := dom.ParseString(`<button id="b">go</button>`)
		el := dom.FindByID(doc, "b")
		if Tag(el, nil, "d1") {
			t.Error("Tag reported change for empty types")
		}
	})

	t.Run("nil element is a no-op", func(t *testing.T) {
		if Tag(nil, []string{"click"}, "d1") {
			t.Error("Tag reported change for nil element")
		}
	})
}

func TestUntag(t *testing.T) {
	doc, _ := dom.ParseString(`<button id="b" jsaction="click:;" ngb="d1">go</button>`)
	el := dom.FindByID(doc, "b")

	Untag(el)

	if _, ok := dom.Attr(el, Attribute); ok {
		t.Error("jsaction still present after Untag")
	}
	if _, ok := dom.Attr(el, FragmentAttribute); ok {
		t.Error("ngb still present after Untag")
	}
}

func TestTypes(t *testing.T) {
	doc, _ := dom.ParseString(`<button id="b" jsaction="click:;keydown:;">go</button>`)
	el := dom.FindByID(doc, "b")
	got := Types(el)
	want := []string{"click", "keydown"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Types = %v, want %v", got, want)
	}
	if Types(nil) != nil {
		t.Error("Types(nil) != nil")
	}
}

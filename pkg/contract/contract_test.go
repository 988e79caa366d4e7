package contract

import (
	"errors"
	"testing"

	"github.com/vango-dev/replay/pkg/dom"
)

const page = `
<div data-hid="h0">
	<button data-hid="h1" jsaction="click:;">one</button>
	<button data-hid="h2" jsaction="click:;keydown:;">two</button>
</div>`

func TestPhaseString(t *testing.T) {
	if PhaseLive.String() != "live" || PhaseReplay.String() != "replay" {
		t.Errorf("Phase strings = %q, %q", PhaseLive, PhaseReplay)
	}
	if Phase(9).String() != "unknown" {
		t.Errorf("Phase(9) = %q, want unknown", Phase(9))
	}
}

func TestEventTypeRegistration(t *testing.T) {
	doc, _ := dom.ParseString(page)
	c := New(doc)

	c.AddEvent("click")
	c.AddEvent("keydown")
	c.AddEvent("") // ignored
	c.AddCaptureEvent("focus")

	if !c.HasEvent("click") || !c.HasEvent("focus") {
		t.Error("registered event types not reported by HasEvent")
	}
	if c.HasEvent("change") {
		t.Error("HasEvent(change) = true, want false")
	}

	got := c.EventTypes()
	if len(got) != 2 || got[0] != "click" || got[1] != "keydown" {
		t.Errorf("EventTypes = %v, want [click keydown]", got)
	}
	if cap := c.CaptureEventTypes(); len(cap) != 1 || cap[0] != "focus" {
		t.Errorf("CaptureEventTypes = %v, want [focus]", cap)
	}
}

func TestDispatchBuffersWithoutDispatcher(t *testing.T) {
	doc, _ := dom.ParseString(page)
	c := New(doc)

	if err := c.Dispatch(&Event{Type: "click", TargetID: "h1"}); err != nil {
		t.Fatalf("Dispatch returned %v", err)
	}
	if got := c.EarlyCount(); got != 1 {
		t.Errorf("EarlyCount = %d, want 1", got)
	}
}

func TestReplayEarly(t *testing.T) {
	doc, _ := dom.ParseString(page)
	c := New(doc)
	c.BufferEarly(&Event{Seq: 1, Type: "click", TargetID: "h1"})
	c.BufferEarly(&Event{Seq: 2, Type: "keydown", TargetID: "h2"})
	c.BufferEarly(&Event{Seq: 3, Type: "click", TargetID: "missing"})

	var seen []*Event
	c.SetDispatcher(func(ev *Event) { seen = append(seen, ev) })

	n := c.ReplayEarly()
	if n != 2 {
		t.Fatalf("ReplayEarly delivered %d, want 2", n)
	}
	if len(seen) != 2 || seen[0].Seq != 1 || seen[1].Seq != 2 {
		t.Errorf("delivery order wrong: %+v", seen)
	}
	for _, ev := range seen {
		if ev.Phase != PhaseReplay {
			t.Errorf("event %d phase = %v, want replay", ev.Seq, ev.Phase)
		}
		if ev.Target == nil {
			t.Errorf("event %d target not resolved", ev.Seq)
		}
		if ev.Time.IsZero() {
			t.Errorf("event %d time not set", ev.Seq)
		}
	}
	if got := c.Unresolved(); got != 1 {
		t.Errorf("Unresolved = %d, want 1", got)
	}

	t.Run("second replay is empty", func(t *testing.T) {
		if n := c.ReplayEarly(); n != 0 {
			t.Errorf("second ReplayEarly = %d, want 0", n)
		}
	})
}

func TestReplayEarlyWithoutDispatcher(t *testing.T) {
	doc, _ := dom.ParseString(page)
	c := New(doc)
	c.BufferEarly(&Event{Type: "click", TargetID: "h1"})
	if n := c.ReplayEarly(); n != 0 {
		t.Errorf("ReplayEarly without dispatcher = %d, want 0", n)
	}
	// Buffer must survive for a later replay once a dispatcher exists.
	if got := c.EarlyCount(); got != 1 {
		t.Errorf("EarlyCount = %d, want 1", got)
	}
}

func TestDispatchResolvesTargets(t *testing.T) {
	doc, _ := dom.ParseString(page)
	c := New(doc)

	var got *Event
	c.SetDispatcher(func(ev *Event) { got = ev })

	if err := c.Dispatch(&Event{Type: "click", TargetID: "h2"}); err != nil {
		t.Fatalf("Dispatch returned %v", err)
	}
	if got == nil || got.Target == nil || dom.AttrOr(got.Target, "data-hid", "") != "h2" {
		t.Fatalf("target not resolved: %+v", got)
	}
	if got.Phase != PhaseLive {
		t.Errorf("phase = %v, want live", got.Phase)
	}

	t.Run("unresolvable target", func(t *testing.T) {
		err := c.Dispatch(&Event{Type: "click", TargetID: "h99"})
		if !errors.Is(err, ErrTargetNotResolved) {
			t.Errorf("err = %v, want ErrTargetNotResolved", err)
		}
		if c.Unresolved() != 1 {
			t.Errorf("Unresolved = %d, want 1", c.Unresolved())
		}
	})

	t.Run("nil event", func(t *testing.T) {
		if err := c.Dispatch(nil); !errors.Is(err, ErrNilEvent) {
			t.Errorf("err = %v, want ErrNilEvent", err)
		}
	})
}

func TestDispatchResolvesSplicedElements(t *testing.T) {
	doc, _ := dom.ParseString(page)
	c := New(doc)
	c.SetDispatcher(func(*Event) {})

	// Build the index with a first dispatch.
	if err := c.Dispatch(&Event{Type: "click", TargetID: "h1"}); err != nil {
		t.Fatal(err)
	}

	// Splice in a new element after the index exists; resolution must
	// rebuild and find it.
	host := dom.FindByHID(doc, "h0")
	fresh, err := dom.ParseFragment(`<button data-hid="h9">late</button>`)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range fresh {
		host.AppendChild(n)
	}

	if err := c.Dispatch(&Event{Type: "click", TargetID: "h9"}); err != nil {
		t.Errorf("Dispatch after splice returned %v", err)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	b := &Bundle{
		Descriptor: Descriptor{
			AppID:             "app-1",
			Container:         "h0",
			EventTypes:        []string{"click", "keydown"},
			CaptureEventTypes: []string{"focus"},
		},
		Early: []EarlyEvent{
			{Seq: 1, Type: "click", TargetID: "h1", TS: 1700000000000},
		},
	}

	encoded, err := EncodeBundle(b)
	if err != nil {
		t.Fatalf("EncodeBundle failed: %v", err)
	}
	decoded, err := DecodeBundle(encoded)
	if err != nil {
		t.Fatalf("DecodeBundle failed: %v", err)
	}
	if decoded.Descriptor.AppID != "app-1" || decoded.Descriptor.Container != "h0" {
		t.Errorf("descriptor = %+v", decoded.Descriptor)
	}
	if len(decoded.Early) != 1 || decoded.Early[0].TargetID != "h1" {
		t.Errorf("early events = %+v", decoded.Early)
	}

	t.Run("corrupt input", func(t *testing.T) {
		if _, err := DecodeBundle("!!! not base64 !!!"); err == nil {
			t.Error("DecodeBundle accepted corrupt input")
		}
	})
}

func TestBundleRebuild(t *testing.T) {
	doc, _ := dom.ParseString(page)
	b := &Bundle{
		Descriptor: Descriptor{
			AppID:      "app-1",
			Container:  "h0",
			EventTypes: []string{"click"},
		},
		Early: []EarlyEvent{{Seq: 7, Type: "click", TargetID: "h1", TS: 1700000000000}},
	}

	c, err := b.Rebuild(doc)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if c.Container() == nil || dom.AttrOr(c.Container(), "data-hid", "") != "h0" {
		t.Error("container not resolved to h0")
	}
	if !c.HasEvent("click") {
		t.Error("event types not registered")
	}
	if c.EarlyCount() != 1 {
		t.Errorf("EarlyCount = %d, want 1", c.EarlyCount())
	}

	t.Run("missing container", func(t *testing.T) {
		bad := &Bundle{Descriptor: Descriptor{AppID: "x", Container: "h404"}}
		if _, err := bad.Rebuild(doc); !errors.Is(err, ErrContainerNotFound) {
			t.Errorf("err = %v, want ErrContainerNotFound", err)
		}
	})

	t.Run("empty container means root", func(t *testing.T) {
		b := &Bundle{Descriptor: Descriptor{AppID: "x"}}
		c, err := b.Rebuild(doc)
		if err != nil {
			t.Fatalf("Rebuild failed: %v", err)
		}
		if c.Container() != doc {
			t.Error("container is not the document root")
		}
	})
}

func TestStoreTakeIsSingleUse(t *testing.T) {
	s := NewStore()
	s.Put(&Bundle{Descriptor: Descriptor{AppID: "app-1"}})
	s.Put(nil)
	s.Put(&Bundle{}) // no AppID, ignored

	if s.Len() != 1 || !s.Has("app-1") {
		t.Fatalf("store state wrong: len=%d", s.Len())
	}

	if _, ok := s.Take("app-1"); !ok {
		t.Fatal("Take(app-1) found nothing")
	}
	if _, ok := s.Take("app-1"); ok {
		t.Error("second Take(app-1) found a bundle")
	}
	if s.Has("app-1") {
		t.Error("Has(app-1) = true after Take")
	}
}

func TestStoreExtract(t *testing.T) {
	good, err := EncodeBundle(&Bundle{
		Descriptor: Descriptor{AppID: "app-1", EventTypes: []string{"click"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// A bundle with no embedded AppID picks it up from the data-app
	// attribute.
	anon, err := EncodeBundle(&Bundle{Descriptor: Descriptor{EventTypes: []string{"keydown"}}})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := dom.ParseString(`
		<html><body>
		<script type="application/replay-state" data-app="app-1">` + good + `</script>
		<script type="application/replay-state" data-app="app-2">` + anon + `</script>
		<script type="application/replay-state" data-app="bad">%%%</script>
		<script type="text/javascript">var x = 1;</script>
		</body></html>`)
	if err != nil {
		t.Fatal(err)
	}

	s := NewStore()
	n, extractErr := s.Extract(doc)
	if n != 2 {
		t.Errorf("Extract loaded %d, want 2", n)
	}
	if extractErr == nil {
		t.Error("Extract returned nil error despite malformed script")
	}
	if !s.Has("app-1") || !s.Has("app-2") {
		t.Error("expected bundles for app-1 and app-2")
	}
	if b, _ := s.Take("app-2"); b == nil || b.Descriptor.AppID != "app-2" {
		t.Errorf("app-2 bundle did not inherit id from attribute: %+v", b)
	}
}

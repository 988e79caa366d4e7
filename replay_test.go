package replay

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/replay/pkg/hydrate"
	"github.com/vango-dev/replay/pkg/jsaction"
	"github.com/vango-dev/replay/pkg/replaytest"
)

// TestPublicAPIFlow drives the whole runtime through the root package:
// extract the embedded state, build the app, init, and route a live event.
func TestPublicAPIFlow(t *testing.T) {
	bundle := &Bundle{
		Descriptor: Descriptor{
			AppID:      "shop",
			Container:  "root",
			EventTypes: []string{"click"},
		},
		Early: []EarlyEvent{
			{Seq: 1, Type: "click", TargetID: "h1"},
		},
	}
	page := `<!DOCTYPE html><html><body>
<div data-hid="root">
<button data-hid="h1" jsaction="click:;" ngb="d1">buy</button>
<button data-hid="h3" jsaction="click:;">live</button>
</div>` + replaytest.StateScript(t, bundle) + `</body></html>`
	doc := replaytest.MustParse(t, page)

	store := NewStore()
	if n, err := store.Extract(doc); err != nil || n != 1 {
		t.Fatalf("Extract() = %d, %v, want 1 bundle", n, err)
	}

	r := replaytest.NewFakeRenderer()
	metrics := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	app, err := NewApp("shop", doc, r, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	var phases []Phase
	buy := replaytest.MustFindHID(t, doc, "h1")
	app.Stash().Add(buy, "click", func(ev *Event) { phases = append(phases, ev.Phase) })
	live := replaytest.MustFindHID(t, doc, "h3")
	app.Stash().Add(live, "click", func(ev *Event) { phases = append(phases, ev.Phase) })

	d := NewDispatcher(store, nil)
	if err := d.Init(context.Background(), app); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	app.Wait()

	if err := app.HandleEvent(&Event{Type: "click", TargetID: "h3", Phase: PhaseLive}); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	app.Wait()

	if len(phases) != 2 || phases[0] != PhaseReplay || phases[1] != PhaseLive {
		t.Errorf("handler phases = %v, want [replay live]", phases)
	}
	if got := r.HydratedFragments(); len(got) != 1 || got[0] != "d1" {
		t.Errorf("hydrated = %v, want [d1]", got)
	}
	if got := app.Coordinator().State("d1"); got != hydrate.StateDrained {
		t.Errorf("State(d1) = %v, want drained", got)
	}
	replaytest.ExpectNoAttr(t, buy, jsaction.Attribute)
	replaytest.ExpectNoAttr(t, buy, jsaction.FragmentAttribute)
}

func TestMarkupHelpers(t *testing.T) {
	doc := replaytest.MustParse(t, `<div data-hid="x">item</div>`)
	el := replaytest.MustFindHID(t, doc, "x")

	if !Tag(el, []string{"click"}, "d7") {
		t.Fatal("Tag() = false, want change")
	}
	replaytest.ExpectAttr(t, el, jsaction.Attribute, "click:;")
	replaytest.ExpectAttr(t, el, jsaction.FragmentAttribute, "d7")

	Untag(el)
	replaytest.ExpectNoAttr(t, el, jsaction.Attribute)
	replaytest.ExpectNoAttr(t, el, jsaction.FragmentAttribute)

	for id, want := range map[string]bool{"d7": true, "": false, "frag": false, "d": false} {
		if got := IsDeferred(id); got != want {
			t.Errorf("IsDeferred(%q) = %v, want %v", id, got, want)
		}
	}
}

// Package dispatch wires event replay per application instance: it
// rebuilds the event-capture contract from server-serialized state, scans
// the page for delegated elements, registers the coordinator as the
// dispatch target, and replays early events exactly once.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/fragment"
	"github.com/vango-dev/replay/pkg/hydrate"
)

// Construction errors.
var (
	// ErrEmptyAppID is returned when an application is built without an id.
	ErrEmptyAppID = errors.New("dispatch: empty application id")

	// ErrNilDocument is returned when an application is built without a
	// page document.
	ErrNilDocument = errors.New("dispatch: nil document")
)

// AppOption configures an App.
type AppOption func(*App)

// WithLogger sets the application logger. The app id is attached to every
// record.
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics attaches coordinator metrics.
func WithMetrics(m *hydrate.Metrics) AppOption {
	return func(a *App) { a.metrics = m }
}

// WithTracer sets the tracer for hydration spans.
func WithTracer(tracer trace.Tracer) AppOption {
	return func(a *App) { a.tracer = tracer }
}

// WithLiveHandler routes live-phase events on non-deferred content to fn
// instead of the stash.
func WithLiveHandler(fn func(*contract.Event)) AppOption {
	return func(a *App) { a.live = fn }
}

// WithOnDrained registers a hook called with each drained fragment batch.
// Hooks accumulate; AddDrainedHook registers more after construction.
func WithOnDrained(fn func(fragmentIDs []string)) AppOption {
	return func(a *App) {
		if fn != nil {
			a.drainedHooks = append(a.drainedHooks, fn)
		}
	}
}

// WithHydrateTimeout bounds each hydration call.
func WithHydrateTimeout(d time.Duration) AppOption {
	return func(a *App) { a.hydrateTimeout = d }
}

// WithTreeLock shares a document mutex with components outside the app
// that mutate the same tree. Build the renderer with the same lock:
//
//	var mu sync.Mutex
//	r := source.NewRenderer(doc, src, source.WithTreeLock(&mu))
//	app, err := dispatch.NewApp("shop", doc, r, dispatch.WithTreeLock(&mu))
func WithTreeLock(mu *sync.Mutex) AppOption {
	return func(a *App) {
		if mu != nil {
			a.treeMu = mu
		}
	}
}

// App is one application instance on a server-rendered page: its document,
// fragment registry, listener stash, hydration coordinator, and
// event-capture contract.
type App struct {
	id     string
	doc    *html.Node
	logger *slog.Logger

	metrics        *hydrate.Metrics
	tracer         trace.Tracer
	live           func(*contract.Event)
	hydrateTimeout time.Duration
	treeMu         *sync.Mutex

	registry    *fragment.Registry
	stash       *hydrate.Stash
	coordinator *hydrate.Coordinator

	mu           sync.Mutex
	contract     *contract.Contract
	drainedHooks []func([]string)
}

// NewApp builds an application instance around a parsed page document and
// a renderer. The app starts with a bare live contract rooted at the
// document; Dispatcher.Init replaces it when serialized replay state
// exists for the id.
func NewApp(id string, doc *html.Node, renderer hydrate.Renderer, opts ...AppOption) (*App, error) {
	if id == "" {
		return nil, ErrEmptyAppID
	}
	if doc == nil {
		return nil, ErrNilDocument
	}

	a := &App{
		id:     id,
		doc:    doc,
		logger: slog.Default(),
		treeMu: &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("app_id", id)
	a.registry = fragment.NewRegistry()
	a.stash = hydrate.NewStash()

	coordinator, err := hydrate.NewCoordinator(hydrate.Config{
		Renderer:       renderer,
		Registry:       a.registry,
		Stash:          a.stash,
		LiveHandler:    a.live,
		OnDrained:      a.notifyDrained,
		HydrateTimeout: a.hydrateTimeout,
		TreeLock:       a.treeMu,
		Logger:         a.logger,
		Metrics:        a.metrics,
		Tracer:         a.tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: app %s: %w", id, err)
	}
	a.coordinator = coordinator

	bare := contract.New(doc, contract.WithTreeLock(a.treeMu))
	bare.SetDispatcher(coordinator.OnEvent)
	a.contract = bare

	return a, nil
}

// ID returns the application identifier.
func (a *App) ID() string { return a.id }

// Doc returns the page document.
func (a *App) Doc() *html.Node { return a.doc }

// Registry returns the app's fragment registry.
func (a *App) Registry() *fragment.Registry { return a.registry }

// Stash returns the app's listener stash.
func (a *App) Stash() *hydrate.Stash { return a.stash }

// Coordinator returns the app's hydration coordinator.
func (a *App) Coordinator() *hydrate.Coordinator { return a.coordinator }

// TreeLock returns the document mutex shared with tree-mutating
// components.
func (a *App) TreeLock() *sync.Mutex { return a.treeMu }

// Contract returns the app's current event-capture contract.
func (a *App) Contract() *contract.Contract {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contract
}

func (a *App) setContract(c *contract.Contract) {
	a.mu.Lock()
	a.contract = c
	a.mu.Unlock()
}

// AddDrainedHook registers fn to run with each drained fragment batch, after
// hooks supplied at construction. Transports use this to push hydration
// completions to clients.
func (a *App) AddDrainedHook(fn func(fragmentIDs []string)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	a.drainedHooks = append(a.drainedHooks, fn)
	a.mu.Unlock()
}

func (a *App) notifyDrained(fragmentIDs []string) {
	a.mu.Lock()
	hooks := make([]func([]string), len(a.drainedHooks))
	copy(hooks, a.drainedHooks)
	a.mu.Unlock()

	for _, fn := range hooks {
		fn(fragmentIDs)
	}
}

// HandleEvent feeds one captured event into the application through the
// current contract: targets are resolved by hydration id and the event is
// routed live, queued, or replayed by the coordinator.
func (a *App) HandleEvent(ev *contract.Event) error {
	return a.Contract().Dispatch(ev)
}

// Wait blocks until in-flight hydrations drain. Intended for tests and
// shutdown paths.
func (a *App) Wait() { a.coordinator.Wait() }

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/fragment"
)

// ErrNilApp is returned when Init is handed a nil application.
var ErrNilApp = errors.New("dispatch: nil app")

// Dispatcher initializes event replay for application instances. It owns
// the already-initialized set, so initializing the same application twice
// is a silent no-op.
type Dispatcher struct {
	store  *contract.Store
	logger *slog.Logger

	mu          sync.Mutex
	initialized map[string]struct{}
}

// NewDispatcher builds a dispatcher over a bundle store. A nil store
// starts empty, which leaves every app's replay feature inert.
func NewDispatcher(store *contract.Store, logger *slog.Logger) *Dispatcher {
	if store == nil {
		store = contract.NewStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:       store,
		logger:      logger,
		initialized: make(map[string]struct{}),
	}
}

// Store returns the dispatcher's bundle store.
func (d *Dispatcher) Store() *contract.Store { return d.store }

// Initialized reports whether the application has been initialized.
func (d *Dispatcher) Initialized(appID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.initialized[appID]
	return ok
}

// Init wires event replay for one application instance:
//
//  1. Take the app's contract bundle from the store (single use). With no
//     bundle the feature stays inert: the app keeps its bare live contract.
//  2. Rebuild the event-capture contract the bundle describes.
//  3. Scan the container subtree, recording delegated elements whose
//     marker carries a hydration trigger.
//  4. Register the coordinator as the dispatch target.
//  5. Replay the early events, tagged with the replay phase.
//
// Init runs once per application id; repeat calls return nil without side
// effects. A failed init is rolled back so it can be retried.
func (d *Dispatcher) Init(ctx context.Context, app *App) error {
	if app == nil {
		return ErrNilApp
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	if _, ok := d.initialized[app.ID()]; ok {
		d.mu.Unlock()
		return nil
	}
	d.initialized[app.ID()] = struct{}{}
	d.mu.Unlock()

	bundle, ok := d.store.Take(app.ID())
	if !ok {
		d.logger.Debug("no replay state for application, replay inert", "app_id", app.ID())
		return nil
	}

	c, err := bundle.Rebuild(app.Doc(), contract.WithTreeLock(app.TreeLock()))
	if err != nil {
		d.forget(app.ID())
		d.store.Put(bundle)
		return fmt.Errorf("dispatch: init %s: %w", app.ID(), err)
	}

	app.TreeLock().Lock()
	delegated := fragment.Scan(c.Container(), app.Registry())
	app.TreeLock().Unlock()

	c.SetDispatcher(app.Coordinator().OnEvent)
	app.setContract(c)
	replayed := c.ReplayEarly()

	d.logger.Info("event replay initialized",
		"app_id", app.ID(),
		"delegated_elements", delegated,
		"replayed_events", replayed,
		"unresolved_events", c.Unresolved(),
	)
	return nil
}

// Teardown removes the application from the initialized set, allowing a
// future instance with the same id to initialize. In-flight hydration is
// not cancelled; a running drain finishes against the old structures.
func (d *Dispatcher) Teardown(appID string) {
	d.forget(appID)
	d.logger.Debug("event replay torn down", "app_id", appID)
}

func (d *Dispatcher) forget(appID string) {
	d.mu.Lock()
	delete(d.initialized, appID)
	d.mu.Unlock()
}

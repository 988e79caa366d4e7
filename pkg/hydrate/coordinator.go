package hydrate

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/fragment"
	"github.com/vango-dev/replay/pkg/jsaction"
)

// State is the lifecycle state of a deferred fragment.
type State uint8

const (
	// StateIdle marks fragments nothing has interacted with yet.
	StateIdle State = iota

	// StateHydrating marks fragments whose hydration is in flight. Events
	// for them queue instead of dispatching.
	StateHydrating

	// StateDrained marks fragments that hydrated and replayed their queued
	// events. Terminal: a drained fragment never hydrates again.
	StateDrained
)

// String returns the state name for logs and metrics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHydrating:
		return "hydrating"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// QueuedEvent pairs a captured event with the delegated element it was
// queued against. The target's fragment membership is re-read at drain
// time, not stored, because hydration may move markers between capture
// and replay.
type QueuedEvent struct {
	Event  *contract.Event
	Target *html.Node
}

// Config configures a Coordinator. Renderer is the only required field.
type Config struct {
	// Renderer performs the actual hydration work.
	Renderer Renderer

	// Registry tracks which elements belong to which fragment. A fresh
	// registry is created when nil.
	Registry *fragment.Registry

	// Stash holds handlers registered before hydration completed. A fresh
	// stash is created when nil.
	Stash *Stash

	// LiveHandler receives live-phase events on non-deferred content,
	// where delegation is not involved. When nil such events are invoked
	// against the stash like everything else.
	LiveHandler func(*contract.Event)

	// OnDrained is called after each drain pass with the fragment ids that
	// completed, markers already stripped. Optional.
	OnDrained func(fragmentIDs []string)

	// HydrateTimeout bounds each Renderer.Hydrate call. Zero means
	// unbounded.
	HydrateTimeout time.Duration

	// TreeLock is the document mutex shared with components that walk or
	// mutate the same tree. The drain pass holds it while stripping
	// delegation markers. A fresh mutex is created when nil.
	TreeLock *sync.Mutex

	// BaseContext is the parent context for hydration goroutines. Defaults
	// to context.Background. Teardown does not cancel in-flight hydration;
	// cancel this context to force it.
	BaseContext context.Context

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics records counters and gauges when non-nil.
	Metrics *Metrics

	// Tracer defaults to the global provider's "replay" tracer.
	Tracer trace.Tracer
}

// Coordinator owns the event queue and the per-fragment state machine for
// one application instance. Construct with NewCoordinator; the zero value
// is not usable.
//
// OnEvent is safe for concurrent use, but events from a single source must
// be delivered by a single goroutine if their relative order matters.
type Coordinator struct {
	renderer Renderer
	registry *fragment.Registry
	stash    *Stash
	live     func(*contract.Event)

	onDrained      func([]string)
	hydrateTimeout time.Duration
	treeMu         *sync.Mutex
	baseCtx        context.Context

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// mu guards queue and states, and serializes every read or write of
	// delegation markers against the drain pass that strips them.
	mu     sync.Mutex
	queue  []QueuedEvent
	states map[string]State

	wg sync.WaitGroup
}

// NewCoordinator builds a Coordinator from cfg, filling defaults for every
// optional field. It returns ErrNilRenderer when cfg.Renderer is nil.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Renderer == nil {
		return nil, ErrNilRenderer
	}

	c := &Coordinator{
		renderer:       cfg.Renderer,
		registry:       cfg.Registry,
		stash:          cfg.Stash,
		onDrained:      cfg.OnDrained,
		hydrateTimeout: cfg.HydrateTimeout,
		treeMu:         cfg.TreeLock,
		baseCtx:        cfg.BaseContext,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		tracer:         tracerOrDefault(cfg.Tracer),
		states:         make(map[string]State),
	}
	if c.registry == nil {
		c.registry = fragment.NewRegistry()
	}
	if c.stash == nil {
		c.stash = NewStash()
	}
	if c.treeMu == nil {
		c.treeMu = &sync.Mutex{}
	}
	if c.baseCtx == nil {
		c.baseCtx = context.Background()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if cfg.LiveHandler != nil {
		c.live = cfg.LiveHandler
	} else {
		c.live = c.invoke
	}
	return c, nil
}

// Registry returns the fragment registry the coordinator strips on drain.
func (c *Coordinator) Registry() *fragment.Registry { return c.registry }

// Stash returns the handler stash events are replayed into.
func (c *Coordinator) Stash() *Stash { return c.stash }

// State reports the lifecycle state of a fragment. Unknown ids are idle.
func (c *Coordinator) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// QueueLen reports how many events are waiting for a drain pass.
func (c *Coordinator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Wait blocks until every in-flight hydration has finished draining. It
// does not prevent new hydrations from starting.
func (c *Coordinator) Wait() { c.wg.Wait() }

// OnEvent routes a single event. It never blocks on hydration: the first
// event for an idle fragment queues and triggers hydration asynchronously,
// later events queue behind it, and everything replays in capture order
// once the fragment drains.
func (c *Coordinator) OnEvent(ev *contract.Event) {
	if ev == nil {
		return
	}
	if ev.Target == nil {
		c.logger.Warn("dropping event with no target", "event_type", ev.Type, "phase", ev.Phase.String())
		c.metrics.recordEvent("unroutable", ev.Phase.String())
		return
	}

	c.mu.Lock()
	id := fragment.IDOf(ev.Target)
	if !fragment.IsDeferred(id) {
		c.mu.Unlock()
		if ev.Phase == contract.PhaseReplay {
			// Root content was hydrated with the initial page; replayed
			// events go straight to their handlers.
			c.metrics.recordEvent("root", ev.Phase.String())
			c.invoke(ev)
			return
		}
		c.metrics.recordEvent("live", ev.Phase.String())
		c.live(ev)
		return
	}

	switch c.states[id] {
	case StateDrained:
		// The fragment already hydrated; this element just kept its marker
		// past a drain pass. Dispatch directly, never re-trigger.
		c.mu.Unlock()
		c.metrics.recordEvent("direct", ev.Phase.String())
		c.invoke(ev)

	case StateHydrating:
		c.queue = append(c.queue, QueuedEvent{Event: ev, Target: ev.Target})
		c.registry.Record(ev.Target)
		depth := len(c.queue)
		c.mu.Unlock()
		c.metrics.recordEvent("queued", ev.Phase.String())
		c.metrics.setQueueDepth(depth)

	default:
		c.queue = append(c.queue, QueuedEvent{Event: ev, Target: ev.Target})
		c.registry.Record(ev.Target)
		c.states[id] = StateHydrating
		depth := len(c.queue)
		c.mu.Unlock()
		c.metrics.recordEvent("queued", ev.Phase.String())
		c.metrics.setQueueDepth(depth)
		c.logger.Debug("hydration triggered", "fragment_id", id, "event_type", ev.Type)

		c.wg.Add(1)
		go c.hydrate(id)
	}
}

// hydrate runs the lifecycle for one triggering fragment: claim idle
// ancestors, hydrate outermost first, wait for stability, then drain.
// A failure at any step is logged and counted; the fragments stay in
// StateHydrating with their events queued, so a later successful pass
// can still replay them.
func (c *Coordinator) hydrate(id string) {
	defer c.wg.Done()

	start := time.Now()
	ctx, span := c.tracer.Start(c.baseCtx, "replay.hydrate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("replay.fragment_id", id)),
	)
	defer span.End()

	// A dehydrated fragment cannot become interactive inside a dehydrated
	// parent. Claim every idle ancestor so concurrent triggers on a shared
	// parent hydrate it exactly once.
	var batch []string
	ancestors := c.renderer.Ancestors(id)
	c.mu.Lock()
	for _, a := range ancestors {
		if a == id || !fragment.IsDeferred(a) {
			continue
		}
		if c.states[a] == StateIdle {
			c.states[a] = StateHydrating
			batch = append(batch, a)
		}
	}
	batch = append(batch, id)
	c.mu.Unlock()

	c.metrics.hydrationStarted(len(batch))
	span.SetAttributes(attribute.StringSlice("replay.batch", batch))

	for _, fid := range batch {
		if err := c.hydrateOne(ctx, fid); err != nil {
			herr := &HydrationError{FragmentID: fid, Op: "hydrate", Err: err}
			c.logger.Error("hydration failed, events remain queued",
				"fragment_id", fid, "error", err)
			c.metrics.recordFailure("hydrate")
			span.RecordError(herr)
			span.SetStatus(codes.Error, herr.Error())
			return
		}
	}

	if err := c.renderer.WhenStable(ctx); err != nil {
		herr := &HydrationError{FragmentID: id, Op: "stability", Err: err}
		c.logger.Error("stability wait failed, events remain queued",
			"fragment_id", id, "error", err)
		c.metrics.recordFailure("stability")
		span.RecordError(herr)
		span.SetStatus(codes.Error, herr.Error())
		return
	}

	replayed, requeued := c.drain(ctx, batch)
	c.metrics.hydrationDrained(len(batch), time.Since(start))
	span.SetAttributes(
		attribute.Int("replay.replayed", replayed),
		attribute.Int("replay.requeued", requeued),
	)
	span.SetStatus(codes.Ok, "")

	if c.onDrained != nil {
		c.onDrained(batch)
	}
}

func (c *Coordinator) hydrateOne(ctx context.Context, fid string) error {
	if c.hydrateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.hydrateTimeout)
		defer cancel()
	}
	return c.renderer.Hydrate(ctx, fid)
}

// drain marks the batch drained, replays every queued event whose target
// now belongs to a drained fragment, and strips delegation state for the
// batch. Events whose targets still sit inside hydrating fragments keep
// their queue positions. Replay repeats until no ready event remains, so
// events requeued by a concurrent drain pass are picked up here instead
// of stranding until the next trigger.
func (c *Coordinator) drain(ctx context.Context, batch []string) (replayed, requeued int) {
	_, span := c.tracer.Start(ctx, "replay.drain", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	c.mu.Lock()
	for _, fid := range batch {
		c.states[fid] = StateDrained
	}
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var ready []QueuedEvent
		var rest []QueuedEvent
		for _, qe := range c.queue {
			if c.states[fragment.IDOf(qe.Target)] == StateDrained {
				ready = append(ready, qe)
			} else {
				rest = append(rest, qe)
			}
		}
		c.queue = rest
		requeued = len(rest)
		c.mu.Unlock()
		c.metrics.setQueueDepth(requeued)

		if len(ready) == 0 {
			break
		}
		for _, qe := range ready {
			qe.Event.Phase = contract.PhaseReplay
			c.invoke(qe.Event)
			replayed++
		}
	}

	c.metrics.recordReplayed(replayed)
	c.metrics.recordRequeued(requeued)

	// Strip delegation only after replay. The registry entry is the drain
	// pass's view of the fragment; taking it first would lose elements
	// whose events are still in flight. Untag mutates tree attributes, so
	// the tree lock is held against concurrent target resolution.
	c.mu.Lock()
	c.treeMu.Lock()
	stripped := 0
	for _, fid := range batch {
		for _, el := range c.registry.Take(fid) {
			jsaction.Untag(el)
			c.stash.Drop(el)
			stripped++
		}
	}
	c.treeMu.Unlock()
	c.mu.Unlock()

	c.renderer.CleanupViews()

	c.logger.Debug("fragments drained",
		"fragments", batch, "replayed", replayed, "requeued", requeued, "stripped", stripped)
	span.SetAttributes(attribute.Int("replay.stripped", stripped))
	return replayed, requeued
}

// invoke delivers one event to its stashed handlers, isolating panics so
// a misbehaving handler cannot take down the drain pass.
func (c *Coordinator) invoke(ev *contract.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.recordPanic()
			c.logger.Error("handler panic",
				"event_type", ev.Type,
				"target_id", ev.TargetID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	c.stash.Invoke(ev.Target, ev)
}

// Package replay provides the public API for the replay runtime: event
// replay and deferred-fragment hydration for server-rendered pages.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/replay"
//
// Usage:
//
//	store := replay.NewStore()
//	store.Extract(doc) // pick up embedded replay-state scripts
//
//	app, err := replay.NewApp("shop", doc, renderer,
//	    replay.WithLogger(logger),
//	    replay.WithMetrics(replay.NewMetrics()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	dispatcher := replay.NewDispatcher(store, logger)
//	if err := dispatcher.Init(ctx, app); err != nil {
//	    return err
//	}
//
//	// Captured events flow in from the transport.
//	app.HandleEvent(ev)
//
// Subpackages hold the moving parts: pkg/dom for element handles over
// x/net/html trees, pkg/jsaction for delegation markers, pkg/fragment for
// the deferred-fragment registry, pkg/contract for the event-capture
// contract and its serialized form, pkg/hydrate for the queue-and-drain
// coordinator, pkg/source for fragment content sources, and pkg/server for
// the WebSocket ingestion endpoint.
package replay

import (
	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/dispatch"
	"github.com/vango-dev/replay/pkg/fragment"
	"github.com/vango-dev/replay/pkg/hydrate"
	"github.com/vango-dev/replay/pkg/jsaction"
)

// =============================================================================
// Event model (re-export from pkg/contract)
// =============================================================================

// Event is a captured UI event routed through the runtime.
type Event = contract.Event

// Phase tags an event as captured live or replayed from the early-event queue.
type Phase = contract.Phase

// Phase constants.
const (
	PhaseLive   = contract.PhaseLive
	PhaseReplay = contract.PhaseReplay
)

// EarlyEvent is the serialized form of an event captured before init.
type EarlyEvent = contract.EarlyEvent

// Descriptor identifies an application's capture configuration.
type Descriptor = contract.Descriptor

// Bundle is a descriptor plus the early events captured under it.
type Bundle = contract.Bundle

// EncodeBundle serializes a bundle for markup embedding.
var EncodeBundle = contract.EncodeBundle

// DecodeBundle reverses EncodeBundle.
var DecodeBundle = contract.DecodeBundle

// Store holds contract bundles keyed by application id with single-use Take.
type Store = contract.Store

// NewStore creates an empty bundle store.
var NewStore = contract.NewStore

// Contract is the rebuilt event-capture contract for one application.
type Contract = contract.Contract

// NewContract builds a contract rooted at the given container element.
var NewContract = contract.New

// =============================================================================
// Application lifecycle (re-export from pkg/dispatch)
// =============================================================================

// App bundles the per-application runtime state: document, registry, stash,
// coordinator, and contract.
type App = dispatch.App

// NewApp constructs a per-application runtime instance.
var NewApp = dispatch.NewApp

// AppOption configures NewApp.
type AppOption = dispatch.AppOption

// App options.
var (
	WithLogger         = dispatch.WithLogger
	WithMetrics        = dispatch.WithMetrics
	WithTracer         = dispatch.WithTracer
	WithLiveHandler    = dispatch.WithLiveHandler
	WithOnDrained      = dispatch.WithOnDrained
	WithHydrateTimeout = dispatch.WithHydrateTimeout
	WithTreeLock       = dispatch.WithTreeLock
)

// Dispatcher initializes applications from stored bundles and guards against
// double init.
type Dispatcher = dispatch.Dispatcher

// NewDispatcher creates a dispatcher backed by the given store.
var NewDispatcher = dispatch.NewDispatcher

// =============================================================================
// Hydration (re-export from pkg/hydrate)
// =============================================================================

// Renderer is the hydration backend the coordinator drives.
type Renderer = hydrate.Renderer

// HydrationError reports a failed hydration step for one fragment.
type HydrationError = hydrate.HydrationError

// Metrics instruments queue depth, replay counts, and hydration durations.
type Metrics = hydrate.Metrics

// NewMetrics creates and registers the runtime's Prometheus collectors.
var NewMetrics = hydrate.NewMetrics

// MetricsOption configures NewMetrics.
type MetricsOption = hydrate.MetricsOption

// Metrics options.
var (
	WithNamespace   = hydrate.WithNamespace
	WithSubsystem   = hydrate.WithSubsystem
	WithConstLabels = hydrate.WithConstLabels
	WithBuckets     = hydrate.WithBuckets
	WithRegistry    = hydrate.WithRegistry
)

// =============================================================================
// Markup helpers (re-export from pkg/jsaction and pkg/fragment)
// =============================================================================

// Tag writes delegation markers onto an element.
var Tag = jsaction.Tag

// Untag removes delegation markers from an element.
var Untag = jsaction.Untag

// IsDeferred reports whether a fragment id denotes a deferred fragment.
var IsDeferred = fragment.IsDeferred

package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/replay/pkg/wire"
)

// ServerConfig holds configuration for the event ingestion server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080").
	// Default: ":8080".
	Address string

	// Path is the route the WebSocket upgrade is served on.
	// Default: "/replay".
	Path string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Timeouts

	// ReadTimeout is the maximum time to wait for a frame from the client.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the wait for the hello frame after upgrade.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Limits

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: one full frame (header plus maximum payload).
	MaxMessageSize int64

	// Observability

	// Registry is the Prometheus registry served on /metrics. Nil serves
	// the default registry.
	Registry *prometheus.Registry

	// Logger is the server logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
// CheckOrigin enforces same-origin by default.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:          ":8080",
		Path:             "/replay",
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      SameOriginCheck,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		MaxMessageSize:   wire.FrameHeaderSize + wire.MaxPayloadSize,
	}
}

// SameOriginCheck validates that the WebSocket request origin matches the
// host. This is the secure default for CheckOrigin.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (same-origin request or non-browser client)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}

	return originURL.Host == host
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithPath sets the WebSocket route and returns the config for chaining.
func (c *ServerConfig) WithPath(path string) *ServerConfig {
	c.Path = path
	return c
}

// WithCheckOrigin sets the origin validator and returns the config for
// chaining.
func (c *ServerConfig) WithCheckOrigin(fn func(r *http.Request) bool) *ServerConfig {
	c.CheckOrigin = fn
	return c
}

// WithRegistry sets the metrics registry and returns the config for
// chaining.
func (c *ServerConfig) WithRegistry(reg *prometheus.Registry) *ServerConfig {
	c.Registry = reg
	return c
}

// WithLogger sets the logger and returns the config for chaining.
func (c *ServerConfig) WithLogger(logger *slog.Logger) *ServerConfig {
	c.Logger = logger
	return c
}

// Package source fetches pre-rendered fragment content and splices it
// into the page, implementing the hydration coordinator's renderer for
// deployments where deferred fragments are stored server-side.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Fetch errors.
var (
	// ErrNotFound is returned when a source has no content for the
	// fragment id.
	ErrNotFound = errors.New("source: fragment content not found")
)

// DefaultMaxFragmentSize caps how much fragment content a remote source
// reads into memory.
const DefaultMaxFragmentSize = 4 << 20

// Source fetches the pre-rendered HTML for one deferred fragment.
type Source interface {
	Fetch(ctx context.Context, fragmentID string) ([]byte, error)
}

// MapSource serves fragment content from memory. Useful for tests and
// single-binary deployments where fragments are compiled in.
type MapSource map[string]string

// Fetch returns the mapped content for id.
func (m MapSource) Fetch(_ context.Context, fragmentID string) ([]byte, error) {
	content, ok := m[fragmentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fragmentID)
	}
	return []byte(content), nil
}

// HTTPSource fetches fragment content from a content server with
// GET {base}/{id}.html.
type HTTPSource struct {
	base    string
	client  *http.Client
	maxSize int64
}

// NewHTTPSource builds an HTTPSource for the given base URL. The default
// http client and DefaultMaxFragmentSize apply unless overridden.
func NewHTTPSource(base string) *HTTPSource {
	return &HTTPSource{
		base:    strings.TrimRight(base, "/"),
		client:  http.DefaultClient,
		maxSize: DefaultMaxFragmentSize,
	}
}

// WithClient sets the http client used for fetches.
func (s *HTTPSource) WithClient(c *http.Client) *HTTPSource {
	if c != nil {
		s.client = c
	}
	return s
}

// WithMaxSize caps the response size read per fragment.
func (s *HTTPSource) WithMaxSize(n int64) *HTTPSource {
	if n > 0 {
		s.maxSize = n
	}
	return s
}

// Fetch retrieves {base}/{id}.html, honoring ctx cancellation.
func (s *HTTPSource) Fetch(ctx context.Context, fragmentID string) ([]byte, error) {
	url := s.base + "/" + fragmentID + ".html"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request for %s: %w", fragmentID, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", fragmentID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fragmentID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("source: fetch %s: unexpected status %d", fragmentID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", fragmentID, err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, fmt.Errorf("source: fragment %s exceeds %d bytes", fragmentID, s.maxSize)
	}
	return body, nil
}

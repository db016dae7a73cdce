package offline

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Source tells where a resolved response came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// Result is the outcome of Resolve.
type Result struct {
	Response *Response
	Source   Source
}

// Resolve answers an intercepted request.
//
// Same-origin requests follow the configured Strategy. Cross-origin requests,
// and requests whose URL cannot be parsed, always go to the network first and
// are never stored. A returned error wraps ErrUnavailable, and the network
// error when there was one.
func (m *Manager) Resolve(ctx context.Context, req *Request) (Result, error) {
	if m.cfg.SameOrigin(req.URL) {
		if m.cfg.Strategy == StrategyCacheFirst {
			return m.cacheFirst(ctx, req)
		}
		return m.staleWhileRevalidate(ctx, req)
	}
	return m.crossOrigin(ctx, req)
}

func (m *Manager) staleWhileRevalidate(ctx context.Context, req *Request) (Result, error) {
	cached, found, err := m.match(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if found {
		m.spawn.Spawn("revalidate "+req.URL, func(ctx context.Context) error {
			return m.revalidate(ctx, req)
		})
		return Result{Response: cached, Source: SourceCache}, nil
	}

	resp, err := m.fetch.Fetch(ctx, req)
	if err != nil {
		m.log.Warn("network fetch failed", zap.String("url", req.URL), zap.Error(err))
		if fb, ok := m.fallback(ctx); ok {
			return Result{Response: fb, Source: SourceFallback}, nil
		}
		return Result{}, unavailable(req, err)
	}

	if storable(req, resp) {
		snapshot := resp.Clone()
		m.spawn.Spawn("store "+req.URL, func(ctx context.Context) error {
			return m.put(ctx, req, snapshot)
		})
	}
	return Result{Response: resp, Source: SourceNetwork}, nil
}

func (m *Manager) cacheFirst(ctx context.Context, req *Request) (Result, error) {
	cached, found, err := m.match(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if found {
		return Result{Response: cached, Source: SourceCache}, nil
	}

	resp, err := m.fetch.Fetch(ctx, req)
	if err != nil {
		return Result{}, unavailable(req, err)
	}
	if storable(req, resp) {
		if err := m.put(ctx, req, resp.Clone()); err != nil {
			m.log.Error("failed to store response", zap.String("url", req.URL), zap.Error(err))
		}
	}
	return Result{Response: resp, Source: SourceNetwork}, nil
}

func (m *Manager) crossOrigin(ctx context.Context, req *Request) (Result, error) {
	resp, err := m.fetch.Fetch(ctx, req)
	if err == nil {
		return Result{Response: resp, Source: SourceNetwork}, nil
	}
	m.log.Warn("cross-origin or network fetch failed", zap.String("url", req.URL), zap.Error(err))

	if m.cfg.Strategy == StrategyCacheFirst {
		return Result{}, unavailable(req, err)
	}

	cached, found, merr := m.match(ctx, req)
	if merr != nil {
		m.log.Warn("cache lookup failed", zap.String("url", req.URL), zap.Error(merr))
	}
	if found {
		return Result{Response: cached, Source: SourceCache}, nil
	}
	if fb, ok := m.fallback(ctx); ok {
		return Result{Response: fb, Source: SourceFallback}, nil
	}
	return Result{}, unavailable(req, err)
}

// revalidate refreshes the stored copy of req from the network.
func (m *Manager) revalidate(ctx context.Context, req *Request) error {
	resp, err := m.fetch.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("network fetch failed for %s: %w", req.URL, err)
	}
	if !storable(req, resp) {
		return nil
	}
	return m.put(ctx, req, resp)
}

// match only looks up GET requests; anything else is a miss.
func (m *Manager) match(ctx context.Context, req *Request) (*Response, bool, error) {
	if req.method() != http.MethodGet {
		return nil, false, nil
	}
	e, found, err := m.store.Match(ctx, m.cfg.CacheName, http.MethodGet, req.URL)
	if err != nil {
		return nil, false, fmt.Errorf("offline: match %s: %w", req.URL, err)
	}
	if !found {
		return nil, false, nil
	}
	return responseFromEntry(e), true, nil
}

// fallback returns the first root document candidate present in the bucket.
func (m *Manager) fallback(ctx context.Context) (*Response, bool) {
	for _, u := range m.cfg.Fallbacks {
		e, found, err := m.store.Match(ctx, m.cfg.CacheName, http.MethodGet, u)
		if err != nil {
			m.log.Warn("fallback lookup failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if found {
			return responseFromEntry(e), true
		}
	}
	return nil, false
}

func (m *Manager) put(ctx context.Context, req *Request, resp *Response) error {
	return m.store.Put(ctx, resp.entry(m.cfg.CacheName, http.MethodGet, req.URL, m.now()))
}

// storable reports whether a network response may replace the bucket entry:
// a GET answered with 200 from the app's own origin.
func storable(req *Request, resp *Response) bool {
	return req.method() == http.MethodGet && resp.Status == http.StatusOK && resp.Type == TypeBasic
}

func unavailable(req *Request, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, req.URL, err)
}

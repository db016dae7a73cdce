package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/padariapdv/internal/app/system/limits"
)

// Fetcher performs the network half of a resolution. A non-nil error means the
// network was unreachable; any HTTP status, including 4xx and 5xx, is a
// successful fetch.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// HTTPFetcher fetches over net/http and classifies responses against the app
// origin.
type HTTPFetcher struct {
	origin       string
	roundTripper http.RoundTripper
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption interface {
	set(*HTTPFetcher)
}

type roundTripperOption struct {
	r http.RoundTripper
}

func (o *roundTripperOption) set(f *HTTPFetcher) {
	f.roundTripper = o.r
}

// WithRoundTripper replaces the default transport.
func WithRoundTripper(r http.RoundTripper) FetcherOption {
	return &roundTripperOption{r: r}
}

// NewHTTPFetcher returns a fetcher for an app served from origin.
func NewHTTPFetcher(origin string, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{origin: origin}
	if o, err := parseOrigin(origin); err == nil {
		f.origin = o.String()
	}
	for _, opt := range opts {
		opt.set(f)
	}
	return f
}

// client has no Timeout: a fetch only fails when the transport fails or ctx
// ends.
func (f *HTTPFetcher) client() *http.Client {
	return &http.Client{Transport: f.roundTripper}
}

// Fetch issues req and reads the whole body.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.method(), req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		hreq.Header[k] = append([]string(nil), v...)
	}

	resp, err := f.client().Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limits.MaxFetchedResponseBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > limits.MaxFetchedResponseBody {
		return nil, fmt.Errorf("offline: response body of %s exceeds %d bytes", req.URL, limits.MaxFetchedResponseBody)
	}

	final := hreq.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	return &Response{
		URL:    final.String(),
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
		Type:   f.classify(final.String(), resp.Header),
	}, nil
}

func (f *HTTPFetcher) classify(finalURL string, h http.Header) ResponseType {
	if (Config{Origin: f.origin}).SameOrigin(finalURL) {
		return TypeBasic
	}
	if h.Get("Access-Control-Allow-Origin") != "" {
		return TypeCORS
	}
	return TypeOpaque
}

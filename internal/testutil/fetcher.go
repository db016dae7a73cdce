package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
)

// ErrOffline is what FakeFetcher returns for URLs marked as unreachable.
var ErrOffline = errors.New("testutil: network unreachable")

// FakeFetcher is an in-memory offline.Fetcher. Unknown URLs answer 404 basic,
// URLs passed to Fail return ErrOffline, and every call is counted.
type FakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*offline.Response
	failing   map[string]bool
	offline   bool
	calls     map[string]int
}

// NewFakeFetcher returns an empty FakeFetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		responses: map[string]*offline.Response{},
		failing:   map[string]bool{},
		calls:     map[string]int{},
	}
}

// Serve registers a 200 response with the given body and type for url.
func (f *FakeFetcher) Serve(url, body string, typ offline.ResponseType) {
	f.ServeStatus(url, http.StatusOK, body, typ)
}

// ServeStatus registers a response with an explicit status for url.
func (f *FakeFetcher) ServeStatus(url string, status int, body string, typ offline.ResponseType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &offline.Response{
		URL:    url,
		Status: status,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte(body),
		Type:   typ,
	}
	delete(f.failing, url)
}

// Fail makes every fetch of url return ErrOffline.
func (f *FakeFetcher) Fail(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[url] = true
}

// SetOffline makes every fetch fail while on is true.
func (f *FakeFetcher) SetOffline(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = on
}

// Calls returns how many times url was fetched.
func (f *FakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// Fetch implements offline.Fetcher.
func (f *FakeFetcher) Fetch(ctx context.Context, req *offline.Request) (*offline.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[req.URL]++
	if f.offline || f.failing[req.URL] {
		return nil, ErrOffline
	}
	if resp, ok := f.responses[req.URL]; ok {
		return resp.Clone(), nil
	}
	return &offline.Response{
		URL:    req.URL,
		Status: http.StatusNotFound,
		Header: http.Header{},
		Type:   offline.TypeBasic,
	}, nil
}

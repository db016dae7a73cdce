package offline

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/padariapdv/internal/domain/models"
)

// ResponseType mirrors the fetch response types the bucket cares about.
type ResponseType string

const (
	TypeBasic  ResponseType = "basic"  // same-origin response
	TypeCORS   ResponseType = "cors"   // cross-origin response that opted in with CORS headers
	TypeOpaque ResponseType = "opaque" // any other cross-origin response
)

// Request is an intercepted outbound request. URL is absolute.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest builds a GET request for rawURL.
func NewRequest(rawURL string) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL, Header: http.Header{}}
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Response is a response snapshot, either fresh from the network or read back
// from a bucket.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
	Type   ResponseType
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	out := *r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

func (r *Response) entry(bucket, method, url string, storedAt time.Time) models.CacheEntry {
	return models.CacheEntry{
		Bucket:   bucket,
		Method:   method,
		URL:      url,
		Status:   r.Status,
		Header:   map[string][]string(r.Header.Clone()),
		Body:     r.Body,
		Type:     string(r.Type),
		StoredAt: storedAt,
	}
}

func responseFromEntry(e models.CacheEntry) *Response {
	return &Response{
		URL:    e.URL,
		Status: e.Status,
		Header: http.Header(e.Header).Clone(),
		Body:   e.Body,
		Type:   ResponseType(e.Type),
	}
}

package offline_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
)

func TestHTTPFetcher_ClassifiesResponses(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("pdv"))
		}
	}))
	defer app.Close()

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cors.css" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		_, _ = w.Write([]byte("css"))
	}))
	defer cdn.Close()

	f := offline.NewHTTPFetcher(app.URL)
	ctx := context.Background()

	tests := []struct {
		name     string
		url      string
		status   int
		wantType offline.ResponseType
	}{
		{"same origin", app.URL + "/index.html", http.StatusOK, offline.TypeBasic},
		{"same origin not found", app.URL + "/missing", http.StatusNotFound, offline.TypeBasic},
		{"cross origin with cors", cdn.URL + "/cors.css", http.StatusOK, offline.TypeCORS},
		{"cross origin without cors", cdn.URL + "/plain.css", http.StatusOK, offline.TypeOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.Fetch(ctx, offline.NewRequest(tt.url))
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("status: got %d, want %d", resp.Status, tt.status)
			}
			if resp.Type != tt.wantType {
				t.Errorf("type: got %q, want %q", resp.Type, tt.wantType)
			}
		})
	}
}

func TestHTTPFetcher_ForwardsMethodHeadersAndBody(t *testing.T) {
	var gotMethod, gotHeader, gotBody string
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Till")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer app.Close()

	f := offline.NewHTTPFetcher(app.URL)
	req := &offline.Request{
		Method: http.MethodPost,
		URL:    app.URL + "/sales",
		Header: http.Header{"X-Till": {"3"}},
		Body:   []byte(`{"total":12}`),
	}

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("status: got %d, want %d", resp.Status, http.StatusCreated)
	}
	if gotMethod != http.MethodPost || gotHeader != "3" || gotBody != `{"total":12}` {
		t.Errorf("forwarded request: method=%q header=%q body=%q", gotMethod, gotHeader, gotBody)
	}
}

func TestHTTPFetcher_NetworkFailure(t *testing.T) {
	app := httptest.NewServer(http.NotFoundHandler())
	url := app.URL
	app.Close()

	f := offline.NewHTTPFetcher(url)
	if _, err := f.Fetch(context.Background(), offline.NewRequest(url+"/index.html")); err == nil {
		t.Fatal("expected an error from a closed server")
	}
}

type recordingTransport struct {
	hits int
}

func (rt *recordingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.hits++
	return http.DefaultTransport.RoundTrip(r)
}

func TestHTTPFetcher_WithRoundTripper(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer app.Close()

	rt := &recordingTransport{}
	f := offline.NewHTTPFetcher(app.URL, offline.WithRoundTripper(rt))
	if _, err := f.Fetch(context.Background(), offline.NewRequest(app.URL+"/")); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rt.hits != 1 {
		t.Errorf("round tripper hits: got %d, want 1", rt.hits)
	}
}

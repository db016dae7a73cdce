package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/padariapdv/internal/app/features/health"
	"github.com/dalemusser/padariapdv/internal/app/store/cachebuckets"
	"github.com/dalemusser/padariapdv/internal/app/store/membuckets"
	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/domain/models"
	"github.com/dalemusser/padariapdv/internal/testutil"
	"go.uber.org/zap"
)

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Bucket   string `json:"bucket"`
	Entries  int64  `json:"entries"`
	Message  string `json:"message"`
}

func newManager(t *testing.T, store offline.Storage) *offline.Manager {
	t.Helper()
	cfg, err := offline.NewConfig(offline.Options{Origin: "http://pos.test", WorkerPath: "/sw.js"})
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	return offline.New(cfg, store, testutil.NewFakeFetcher(), zap.NewNop())
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func TestServe_MemoryBackend(t *testing.T) {
	store := membuckets.New()
	mgr := newManager(t, store)
	ctx := context.Background()
	if err := store.Open(ctx, offline.DefaultCacheName); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	rec, body := serve(t, health.NewHandler(nil, mgr, zap.NewNop()))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	if body.Status != "ok" || body.Database != "memory" {
		t.Errorf("got status=%q database=%q, want ok/memory", body.Status, body.Database)
	}
	if body.Bucket != offline.DefaultCacheName {
		t.Errorf("bucket: got %q, want %q", body.Bucket, offline.DefaultCacheName)
	}
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mgr := newManager(t, cachebuckets.New(db))

	rec, body := serve(t, health.NewHandler(db.Client(), mgr, zap.NewNop()))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Status != "ok" {
		t.Errorf("status: got %q, want %q", body.Status, "ok")
	}
	if body.Database != "connected" {
		t.Errorf("database: got %q, want %q", body.Database, "connected")
	}
}

func TestServe_DatabaseDisconnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := db.Client()
	mgr := newManager(t, cachebuckets.New(db))

	// A second disconnect in SetupTestDB cleanup is tolerated by the driver.
	if err := client.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	rec, body := serve(t, health.NewHandler(client, mgr, zap.NewNop()))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if body.Status != "error" || body.Database != "disconnected" {
		t.Errorf("got status=%q database=%q, want error/disconnected", body.Status, body.Database)
	}
}

func TestRoutes_ReportsBucketEntries(t *testing.T) {
	store := membuckets.New()
	mgr := newManager(t, store)
	ctx := context.Background()
	for _, u := range []string{"http://pos.test/index.html", "http://pos.test/app.js"} {
		if err := store.Put(ctx, models.CacheEntry{Bucket: offline.DefaultCacheName, Method: "GET", URL: u, Status: 200, Type: "basic"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	router := health.Routes(health.NewHandler(nil, mgr, zap.NewNop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Bucket != offline.DefaultCacheName || body.Entries != 2 {
		t.Errorf("got bucket=%q entries=%d, want %q/2", body.Bucket, body.Entries, offline.DefaultCacheName)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: got %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

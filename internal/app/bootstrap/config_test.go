package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/timeouts"
	"github.com/dalemusser/padariapdv/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "padaria_pdv_test",
		CacheBackend:   BackendMemory,
		CacheName:      offline.DefaultCacheName,
		AppOrigin:      "http://localhost:8080",
		WorkerPath:     "/pdv/sw.js",
		InstallPolicy:  "best_effort",
		FetchStrategy:  "stale_while_revalidate",
		FetchTimeout:   5 * time.Second,
		InstallTimeout: time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"memory backend", func(c *AppConfig) {}, false},
		{"mongo backend", func(c *AppConfig) { c.CacheBackend = BackendMongo }, false},
		{"unknown backend", func(c *AppConfig) { c.CacheBackend = "redis" }, true},
		{"missing mongo database", func(c *AppConfig) { c.CacheBackend = BackendMongo; c.MongoDatabase = " " }, true},
		{"bad mongo uri ignored for memory", func(c *AppConfig) { c.MongoURI = "nope" }, false},
		{"bad origin", func(c *AppConfig) { c.AppOrigin = "ftp://pos" }, true},
		{"cache first", func(c *AppConfig) { c.FetchStrategy = "cache-first" }, false},
		{"unknown strategy", func(c *AppConfig) { c.FetchStrategy = "network_only" }, true},
		{"unknown policy", func(c *AppConfig) { c.InstallPolicy = "sometimes" }, true},
		{"trusted proxies", func(c *AppConfig) { c.TrustedProxies = "10.0.0.0/8, 192.0.2.1" }, false},
		{"bad trusted proxy", func(c *AppConfig) { c.TrustedProxies = "10.0.0.0/8, proxy.local" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAppConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{Env: "dev"}, cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOfflineConfig(t *testing.T) {
	cfg := validAppConfig()
	cfg.InstallPolicy = "All-Or-Nothing"
	cfg.FetchStrategy = "cache_first"

	oc, err := offlineConfig(cfg)
	if err != nil {
		t.Fatalf("offlineConfig failed: %v", err)
	}
	if oc.BasePath != "/pdv/" {
		t.Errorf("BasePath: got %q, want %q", oc.BasePath, "/pdv/")
	}
	if oc.InstallPolicy != offline.InstallAllOrNothing {
		t.Errorf("InstallPolicy: got %q", oc.InstallPolicy)
	}
	if oc.Strategy != offline.StrategyCacheFirst {
		t.Errorf("Strategy: got %q", oc.Strategy)
	}

	cfg.FetchStrategy = "bogus"
	if _, err := offlineConfig(cfg); !errors.Is(err, offline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestConnectDB_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	deps, err := ConnectDB(ctx, &config.CoreConfig{}, validAppConfig(), testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	defer func() { _ = Shutdown(ctx, &config.CoreConfig{}, validAppConfig(), deps, testLogger()) }()

	if deps.MongoClient != nil || deps.MongoDatabase != nil {
		t.Error("memory backend should not connect to MongoDB")
	}
	if deps.CacheStorage == nil || deps.Offline == nil || deps.Revalidator == nil {
		t.Fatal("expected storage, manager and revalidator")
	}
	if err := EnsureSchema(ctx, &config.CoreConfig{}, validAppConfig(), deps, testLogger()); err != nil {
		t.Errorf("EnsureSchema on memory backend: %v", err)
	}
}

func TestConnectDB_MongoBackend(t *testing.T) {
	// Only runs where the test MongoDB is reachable.
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validAppConfig()
	cfg.CacheBackend = BackendMongo
	cfg.MongoDatabase = db.Name()

	deps, err := ConnectDB(ctx, &config.CoreConfig{}, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	defer func() { _ = Shutdown(ctx, &config.CoreConfig{}, cfg, deps, testLogger()) }()

	if deps.MongoDatabase == nil {
		t.Fatal("expected a MongoDB database")
	}
	if err := EnsureSchema(ctx, &config.CoreConfig{}, cfg, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
}

func TestBuildHandler_Routes(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "app:"+r.URL.Path)
	}))
	defer app.Close()

	ctx := context.Background()
	cfg := validAppConfig()
	cfg.AppOrigin = app.URL

	deps, err := ConnectDB(ctx, &config.CoreConfig{}, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	defer func() { _ = Shutdown(ctx, &config.CoreConfig{}, cfg, deps, testLogger()) }()

	h, err := BuildHandler(&config.CoreConfig{}, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	tests := []struct {
		method, path string
		want         int
		contains     string
	}{
		{http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/_offline/status", http.StatusOK, `"base_path":"/pdv/"`},
		{http.MethodGet, "/pdv/sales.js", http.StatusOK, "app:/pdv/sales.js"},
	}
	for _, tt := range tests {
		rec := testutil.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		rec.AssertStatus(t, tt.want)
		rec.AssertContains(t, tt.contains)
	}
}

func TestConnectDB_FetchTimeoutBoundsBackgroundTasks(t *testing.T) {
	t.Cleanup(timeouts.Reset)

	ctx := context.Background()
	cfg := validAppConfig()
	cfg.FetchTimeout = 5 * time.Minute

	core, logs := observer.New(zap.InfoLevel)
	deps, err := ConnectDB(ctx, &config.CoreConfig{}, cfg, zap.New(core))
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	defer func() { _ = Shutdown(ctx, &config.CoreConfig{}, cfg, deps, testLogger()) }()

	if got := timeouts.Fetch(); got != 5*time.Minute {
		t.Errorf("timeouts.Fetch() = %v, want 5m", got)
	}
	entries := logs.FilterMessage("timeouts configured").All()
	if len(entries) != 1 {
		t.Fatalf("expected one timeouts log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["fetch"]; got != 5*time.Minute {
		t.Errorf("logged fetch timeout = %v, want 5m", got)
	}

	deps.Revalidator.Start()
	var remaining time.Duration
	deps.Revalidator.Spawn("deadline", func(ctx context.Context) error {
		if dl, ok := ctx.Deadline(); ok {
			remaining = time.Until(dl)
		}
		return nil
	})
	deps.Revalidator.Wait()

	if remaining < 4*time.Minute {
		t.Errorf("background task deadline in %v, want about 5m", remaining)
	}
}

func TestBuildHandler_InstallLimitKeysByForwardedClient(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer app.Close()

	ctx := context.Background()
	cfg := validAppConfig()
	cfg.AppOrigin = app.URL
	cfg.InstallRateLimit = 1
	// httptest requests arrive from 192.0.2.1.
	cfg.TrustedProxies = "192.0.2.0/24"

	deps, err := ConnectDB(ctx, &config.CoreConfig{}, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	defer func() { _ = Shutdown(ctx, &config.CoreConfig{}, cfg, deps, testLogger()) }()

	h, err := BuildHandler(&config.CoreConfig{}, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	install := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/_offline/install", nil)
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := install("203.0.113.1"); code == http.StatusTooManyRequests {
		t.Fatal("first install for a client should not be limited")
	}
	if code := install("203.0.113.2"); code == http.StatusTooManyRequests {
		t.Error("a different forwarded client should have its own window")
	}
	if code := install("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("repeat install: got %d, want %d", code, http.StatusTooManyRequests)
	}
}

func TestBuildHandler_RejectsBadTrustedProxies(t *testing.T) {
	ctx := context.Background()
	cfg := validAppConfig()
	cfg.InstallRateLimit = 1
	cfg.TrustedProxies = "proxy.local"

	deps, err := ConnectDB(ctx, &config.CoreConfig{}, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	defer func() { _ = Shutdown(ctx, &config.CoreConfig{}, cfg, deps, testLogger()) }()

	if _, err := BuildHandler(&config.CoreConfig{}, cfg, deps, testLogger()); err == nil {
		t.Error("expected error for unparsable trusted_proxies")
	}
}

// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Cache storage backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// appConfigKeys defines the configuration keys for padariapdv.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, cache_name, etc.
//   - Environment variables: PADARIAPDV_MONGO_URI, PADARIAPDV_CACHE_NAME, etc.
//   - Command-line flags: --mongo_uri, --cache_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "padaria_pdv", Desc: "MongoDB database name"},

	// Cache buckets
	{Name: "cache_backend", Default: BackendMongo, Desc: "Cache bucket storage: 'mongo' or 'memory'"},
	{Name: "cache_name", Default: offline.DefaultCacheName, Desc: "Version-tagged cache bucket name; changing it retires the old bucket"},

	// The POS app
	{Name: "app_origin", Default: "http://localhost:8080", Desc: "Origin (scheme://host[:port]) of the POS app"},
	{Name: "worker_path", Default: "/" + offline.WorkerFile, Desc: "Path of the worker script; the asset base path derives from it"},

	// Policies
	{Name: "install_policy", Default: string(offline.InstallBestEffort), Desc: "Install policy: 'best_effort' or 'all_or_nothing'"},
	{Name: "fetch_strategy", Default: string(offline.StrategyStaleWhileRevalidate), Desc: "Fetch strategy: 'stale_while_revalidate' or 'cache_first'"},

	// Timeouts
	{Name: "fetch_timeout", Default: "30s", Desc: "Bound on each background refresh task; client fetches are unbounded (e.g., 10s, 1m)"},
	{Name: "install_timeout", Default: "2m", Desc: "Bound on a full install plus activation"},

	// Background revalidation
	{Name: "revalidate_workers", Default: 4, Desc: "Concurrent background refresh tasks"},
	{Name: "revalidate_queue", Default: 64, Desc: "Queued refresh tasks before new ones are dropped"},
	{Name: "revalidate_per_second", Default: 0, Desc: "Refresh task starts per second (0 = unlimited)"},

	// Admin endpoints
	{Name: "install_rate_limit", Default: 6, Desc: "Manual reinstalls per client IP per minute (0 = unlimited)"},
	{Name: "trusted_proxies", Default: "", Desc: "Comma-separated IPs/CIDRs of reverse proxies whose X-Forwarded-For is trusted"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, PADARIAPDV_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PADARIAPDV", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		CacheBackend: strings.ToLower(strings.TrimSpace(appValues.String("cache_backend"))),
		CacheName:    appValues.String("cache_name"),

		AppOrigin:  appValues.String("app_origin"),
		WorkerPath: appValues.String("worker_path"),

		InstallPolicy: appValues.String("install_policy"),
		FetchStrategy: appValues.String("fetch_strategy"),

		FetchTimeout:   appValues.Duration("fetch_timeout", 30*time.Second),
		InstallTimeout: appValues.Duration("install_timeout", 2*time.Minute),

		RevalidateWorkers:   appValues.Int("revalidate_workers"),
		RevalidateQueue:     appValues.Int("revalidate_queue"),
		RevalidatePerSecond: appValues.Int("revalidate_per_second"),

		InstallRateLimit: appValues.Int("install_rate_limit"),
		TrustedProxies:   appValues.String("trusted_proxies"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is only checked when MongoDB is the cache backend. The app
// origin and the policy names are checked by building the offline config.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.CacheBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if strings.TrimSpace(appCfg.MongoDatabase) == "" {
			return fmt.Errorf("mongo_database is required when cache_backend is %q", BackendMongo)
		}
	case BackendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			logger.Warn("memory cache backend in production; buckets are lost on restart")
		}
	default:
		return fmt.Errorf("cache_backend must be %q or %q, got %q", BackendMongo, BackendMemory, appCfg.CacheBackend)
	}

	if _, err := offlineConfig(appCfg); err != nil {
		logger.Error("invalid offline configuration", zap.Error(err))
		return err
	}
	if _, err := ratelimit.ParseProxies(appCfg.TrustedProxies); err != nil {
		logger.Error("invalid trusted_proxies", zap.Error(err))
		return err
	}
	return nil
}

// offlineConfig computes the immutable offline config from AppConfig.
func offlineConfig(appCfg AppConfig) (offline.Config, error) {
	policy, err := offline.ParseInstallPolicy(appCfg.InstallPolicy)
	if err != nil {
		return offline.Config{}, err
	}
	strategy, err := offline.ParseStrategy(appCfg.FetchStrategy)
	if err != nil {
		return offline.Config{}, err
	}
	return offline.NewConfig(offline.Options{
		CacheName:     appCfg.CacheName,
		Origin:        appCfg.AppOrigin,
		WorkerPath:    appCfg.WorkerPath,
		InstallPolicy: policy,
		Strategy:      strategy,
	})
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS ports,
// TLS, logging level and request limits. AppConfig carries what the offline
// asset edge needs: where cache buckets live, which app it fronts, and how
// installs and fetches behave.
type AppConfig struct {
	// MongoDB connection configuration (cache_backend = "mongo")
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Cache bucket storage
	CacheBackend string // "mongo" or "memory"
	CacheName    string // version-tagged bucket name (e.g., padaria-pdv-v1)

	// The app being served offline
	AppOrigin  string // scheme://host[:port] of the POS app
	WorkerPath string // path the worker script is served from; the base path derives from it

	// Policies
	InstallPolicy string // "best_effort" or "all_or_nothing"
	FetchStrategy string // "stale_while_revalidate" or "cache_first"

	// Timeouts
	FetchTimeout   time.Duration // bound on each background refresh task
	InstallTimeout time.Duration // bound on a full install plus activation

	// Background revalidation pool
	RevalidateWorkers   int // concurrent background tasks
	RevalidateQueue     int // queued tasks before new ones are dropped
	RevalidatePerSecond int // task starts per second, 0 for unlimited

	// POST /_offline/install requests per client IP per minute, 0 for unlimited
	InstallRateLimit int
	// Reverse proxies whose X-Forwarded-For names the client, comma-separated IPs/CIDRs
	TrustedProxies string
}

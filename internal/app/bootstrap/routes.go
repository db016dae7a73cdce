// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	cacheadminfeature "github.com/dalemusser/padariapdv/internal/app/features/cacheadmin"
	healthfeature "github.com/dalemusser/padariapdv/internal/app/features/health"
	offlinefeature "github.com/dalemusser/padariapdv/internal/app/features/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. /health and /_offline are served locally;
// every other request goes through the offline asset cache.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Offline, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Bucket status and manual reinstall
	adminHandler := cacheadminfeature.NewHandler(deps.Offline, logger)
	var installGuard func(http.Handler) http.Handler
	if appCfg.InstallRateLimit > 0 {
		proxies, err := ratelimit.ParseProxies(appCfg.TrustedProxies)
		if err != nil {
			return nil, err
		}
		installGuard = ratelimit.Middleware(ratelimit.New(appCfg.InstallRateLimit, time.Minute), proxies, logger)
	}
	r.Mount("/_offline", cacheadminfeature.Routes(adminHandler, installGuard))

	// Everything else is an intercepted app request.
	offlineHandler := offlinefeature.NewHandler(deps.Offline, logger)
	r.Mount("/", offlinefeature.Routes(offlineHandler))

	return r, nil
}

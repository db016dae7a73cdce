// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/padariapdv/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// It starts the revalidation pool, then runs Install and, only when Install
// succeeds, Activate. An install failure is logged and does not abort
// startup: the previous bucket keeps serving and POST /_offline/install can
// retry.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	deps.Revalidator.Start()

	ictx, cancel := timeouts.WithTimeout(ctx, timeouts.Install(), logger, "offline install")
	defer cancel()

	if _, err := deps.Offline.Install(ictx); err != nil {
		logger.Warn("initial install failed; keeping existing buckets", zap.Error(err))
		return nil
	}
	if _, err := deps.Offline.Activate(ictx); err != nil {
		logger.Warn("initial activate failed", zap.Error(err))
	}
	return nil
}

// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/padariapdv/internal/app/store/cachebuckets"
	"github.com/dalemusser/padariapdv/internal/app/store/membuckets"
	"github.com/dalemusser/padariapdv/internal/app/system/indexes"
	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/timeouts"
	"github.com/dalemusser/padariapdv/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the cache bucket storage and builds the offline manager on
// top of it. With cache_backend "mongo" it connects and pings MongoDB first.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	// Everything built below reads its bounds from timeouts.
	timeouts.Configure(timeouts.Config{
		Fetch:   appCfg.FetchTimeout,
		Install: appCfg.InstallTimeout,
	})
	t := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", t.Ping),
		zap.Duration("lookup", t.Lookup),
		zap.Duration("fetch", t.Fetch),
		zap.Duration("install", t.Install))

	var deps DBDeps

	switch appCfg.CacheBackend {
	case BackendMemory:
		logger.Info("using in-memory cache buckets")
		deps.CacheStorage = membuckets.New()
	default:
		client, err := connectMongo(ctx, appCfg.MongoURI, logger)
		if err != nil {
			return DBDeps{}, err
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
		deps.CacheStorage = cachebuckets.New(deps.MongoDatabase)
	}

	mgr, rv, err := newOfflineManager(appCfg, deps.CacheStorage, logger)
	if err != nil {
		if deps.MongoClient != nil {
			_ = deps.MongoClient.Disconnect(ctx)
		}
		return DBDeps{}, err
	}
	deps.Offline = mgr
	deps.Revalidator = rv
	return deps, nil
}

func connectMongo(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	cctx, cancel := timeouts.WithTimeout(ctx, timeouts.Ping(), logger, "mongo connect")
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB")
	return client, nil
}

// newOfflineManager wires the offline manager with an HTTP fetcher and the
// background revalidation pool. The pool is started in Startup.
//
// Client-path fetches carry no deadline of their own; only background tasks
// are bounded, by timeouts.Fetch.
func newOfflineManager(appCfg AppConfig, store offline.Storage, logger *zap.Logger) (*offline.Manager, *workers.Revalidator, error) {
	cfg, err := offlineConfig(appCfg)
	if err != nil {
		return nil, nil, err
	}

	fetcher := offline.NewHTTPFetcher(cfg.Origin)
	rv := workers.NewRevalidator(workers.RevalidatorConfig{
		Workers:   appCfg.RevalidateWorkers,
		QueueSize: appCfg.RevalidateQueue,
		PerSecond: appCfg.RevalidatePerSecond,
		Timeout:   timeouts.Fetch(),
	}, logger.Named("revalidator"))

	mgr := offline.New(cfg, store, fetcher, logger.Named("offline"), offline.WithSpawner(rv))
	return mgr, rv, nil
}

// EnsureSchema sets up indexes for the MongoDB cache collections. The memory
// backend has no schema.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}

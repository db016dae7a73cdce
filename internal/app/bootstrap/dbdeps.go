// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/padariapdv/internal/app/system/offline"
	"github.com/dalemusser/padariapdv/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	// Set only when cache_backend is "mongo".
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	CacheStorage offline.Storage
	Revalidator  *workers.Revalidator
	Offline      *offline.Manager
}

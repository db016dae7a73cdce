package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/padariapdv/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateBucket inserts a bucket document with the given name.
func (f *Fixtures) CreateBucket(ctx context.Context, name string) models.CacheBucket {
	f.t.Helper()

	b := models.CacheBucket{
		ID:        primitive.NewObjectID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("cache_buckets").InsertOne(ctx, b); err != nil {
		f.t.Fatalf("failed to create test bucket: %v", err)
	}
	return b
}

// CreateEntry inserts a 200 basic GET entry for url into bucket.
func (f *Fixtures) CreateEntry(ctx context.Context, bucket, url, body string) models.CacheEntry {
	f.t.Helper()

	e := models.CacheEntry{
		ID:       primitive.NewObjectID(),
		Bucket:   bucket,
		Method:   http.MethodGet,
		URL:      url,
		Status:   http.StatusOK,
		Header:   map[string][]string{"Content-Type": {"text/plain"}},
		Body:     []byte(body),
		Type:     "basic",
		StoredAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("cache_entries").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test entry: %v", err)
	}
	return e
}

// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called from EnsureSchema when the MongoDB backend is selected.
Each ensure* function is idempotent. Errors are aggregated so every problem
is visible in one startup failure.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureCacheBuckets(ctx, db); err != nil {
		problems = append(problems, "cache_buckets: "+err.Error())
	}
	if err := ensureCacheEntries(ctx, db); err != nil {
		problems = append(problems, "cache_entries: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

type desiredIndex struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique != nil && *m.Options.Unique
	}
	return d
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// IndexOptionsConflict shows up when an index with the same keys exists
// under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{} // sig -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes to reconcile.
		existing = map[string]existingIndex{}
	}

	for _, m := range models {
		d := describe(m)
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique))

		ex, found := existing[d.sig]
		switch {
		case found && (ex.Unique != nil && *ex.Unique) == d.unique && (d.name == "" || ex.Name == d.name):
			log.Info("reusing existing index", zap.String("took", time.Since(start).String()))
			continue
		case found:
			// Name or options differ: drop and recreate under the desired shape.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), d.name, err))
				continue
			}
		}

		if err := createIndex(ctx, coll, d); err != nil {
			log.Warn("index ensure failed", zap.String("took", time.Since(start).String()), zap.Error(err))
			errs = append(errs, err.Error())
			continue
		}
		log.Info("index ensured", zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func createIndex(ctx context.Context, coll *mongo.Collection, d desiredIndex) error {
	_, err := coll.Indexes().CreateOne(ctx, d.model)
	if err != nil && isOptionsConflictErr(err) {
		// Lost a race with another instance; reconcile against what is there now.
		existing, lerr := listIndexes(ctx, coll)
		if lerr == nil {
			if ex, ok := existing[d.sig]; ok {
				if (ex.Unique != nil && *ex.Unique) == d.unique {
					return nil
				}
				if _, derr := coll.Indexes().DropOne(ctx, ex.Name); derr == nil {
					_, err = coll.Indexes().CreateOne(ctx, d.model)
				}
			}
		}
	}
	if err == nil {
		return nil
	}
	if isDuplicateKeyErr(err) && d.unique {
		return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), d.name)
	}
	return fmt.Errorf("%s(%s): %w", coll.Name(), d.name, err)
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureCacheBuckets(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("cache_buckets")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Bucket names are the version tag; one document per name.
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_cache_buckets_name"),
		},
	})
}

func ensureCacheEntries(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("cache_entries")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) Lookup key for Match and the upsert filter for Put.
		{
			Keys: bson.D{
				{Key: "bucket", Value: 1},
				{Key: "method", Value: 1},
				{Key: "url", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_cache_entries_bucket_method_url"),
		},
		// 2) Bucket scans (Count, Delete) and freshness inspection.
		{
			Keys: bson.D{
				{Key: "bucket", Value: 1},
				{Key: "stored_at", Value: -1},
			},
			Options: options.Index().SetName("idx_cache_entries_bucket_storedat"),
		},
	})
}

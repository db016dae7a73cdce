// internal/app/store/cachebuckets/store.go
package cachebuckets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/padariapdv/internal/app/system/limits"
	"github.com/dalemusser/padariapdv/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	BucketsCollection = "cache_buckets"
	EntriesCollection = "cache_entries"
)

// Store persists cache buckets in MongoDB.
// cache_buckets holds one document per bucket name so empty buckets still
// exist; cache_entries holds the response snapshots.
type Store struct {
	buckets *mongo.Collection
	entries *mongo.Collection
}

// New creates a new cache bucket store.
func New(db *mongo.Database) *Store {
	return &Store{
		buckets: db.Collection(BucketsCollection),
		entries: db.Collection(EntriesCollection),
	}
}

// Open creates the bucket document if it does not exist yet.
func (s *Store) Open(ctx context.Context, bucket string) error {
	filter := bson.M{"name": bucket}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"name":       bucket,
			"created_at": time.Now().UTC(),
		},
	}
	_, err := s.buckets.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if wafflemongo.IsDup(err) {
		// A concurrent upsert created it first.
		return nil
	}
	return err
}

// Match finds the entry for (bucket, method, url).
func (s *Store) Match(ctx context.Context, bucket, method, url string) (models.CacheEntry, bool, error) {
	var e models.CacheEntry
	err := s.entries.FindOne(ctx, entryFilter(bucket, method, url)).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	return e, true, nil
}

// ErrEntryTooLarge is returned for bodies over limits.MaxStoredDocumentBody.
var ErrEntryTooLarge = errors.New("cachebuckets: entry body too large")

func checkSize(e models.CacheEntry) error {
	if len(e.Body) > limits.MaxStoredDocumentBody {
		return fmt.Errorf("%w: %s %s is %d bytes", ErrEntryTooLarge, e.Method, e.URL, len(e.Body))
	}
	return nil
}

// Put upserts entry and makes sure its bucket exists.
func (s *Store) Put(ctx context.Context, entry models.CacheEntry) error {
	if err := checkSize(entry); err != nil {
		return err
	}
	if err := s.Open(ctx, entry.Bucket); err != nil {
		return err
	}
	_, err := s.entries.UpdateOne(ctx,
		entryFilter(entry.Bucket, entry.Method, entry.URL),
		entryUpdate(entry),
		options.Update().SetUpsert(true))
	return err
}

// PutAll upserts every entry or none of them. Sizes are checked before any
// write. If the bulk write fails part way, the entries it touched are put
// back to what they were before the call.
func (s *Store) PutAll(ctx context.Context, entries []models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := checkSize(e); err != nil {
			return err
		}
	}

	prior, err := s.snapshot(ctx, entries)
	if err != nil {
		return err
	}

	opened := map[string]bool{}
	writes := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		if !opened[e.Bucket] {
			if err := s.Open(ctx, e.Bucket); err != nil {
				return err
			}
			opened[e.Bucket] = true
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(entryFilter(e.Bucket, e.Method, e.URL)).
			SetUpdate(entryUpdate(e)).
			SetUpsert(true))
	}

	if _, err := s.entries.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		if rerr := s.restore(context.WithoutCancel(ctx), entries, prior); rerr != nil {
			return errors.Join(err, fmt.Errorf("cachebuckets: rollback: %w", rerr))
		}
		return err
	}
	return nil
}

func entryKey(bucket, method, url string) string {
	return bucket + "\x00" + method + " " + url
}

// snapshot returns the stored entries that share an identity with entries.
func (s *Store) snapshot(ctx context.Context, entries []models.CacheEntry) (map[string]models.CacheEntry, error) {
	or := make(bson.A, 0, len(entries))
	for _, e := range entries {
		or = append(or, entryFilter(e.Bucket, e.Method, e.URL))
	}
	cur, err := s.entries.Find(ctx, bson.M{"$or": or})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	prior := map[string]models.CacheEntry{}
	for cur.Next(ctx) {
		var e models.CacheEntry
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		prior[entryKey(e.Bucket, e.Method, e.URL)] = e
	}
	return prior, cur.Err()
}

// restore puts every identity in entries back to its state in prior:
// replaced when it existed, removed when it did not.
func (s *Store) restore(ctx context.Context, entries []models.CacheEntry, prior map[string]models.CacheEntry) error {
	var errs []error
	for _, e := range entries {
		filter := entryFilter(e.Bucket, e.Method, e.URL)
		if old, ok := prior[entryKey(e.Bucket, e.Method, e.URL)]; ok {
			_, err := s.entries.ReplaceOne(ctx, filter, old, options.Replace().SetUpsert(true))
			errs = append(errs, err)
			continue
		}
		_, err := s.entries.DeleteOne(ctx, filter)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Names lists bucket names in name order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.buckets.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	names := []string{}
	for cur.Next(ctx) {
		var b models.CacheBucket
		if err := cur.Decode(&b); err != nil {
			return nil, err
		}
		names = append(names, b.Name)
	}
	return names, cur.Err()
}

// Delete removes the bucket document and every entry in it.
func (s *Store) Delete(ctx context.Context, bucket string) (bool, error) {
	res, err := s.buckets.DeleteOne(ctx, bson.M{"name": bucket})
	if err != nil {
		return false, err
	}
	if _, err := s.entries.DeleteMany(ctx, bson.M{"bucket": bucket}); err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Count returns the number of entries in bucket.
func (s *Store) Count(ctx context.Context, bucket string) (int64, error) {
	return s.entries.CountDocuments(ctx, bson.M{"bucket": bucket})
}

func entryFilter(bucket, method, url string) bson.M {
	return bson.M{"bucket": bucket, "method": method, "url": url}
}

func entryUpdate(e models.CacheEntry) bson.M {
	storedAt := e.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}
	return bson.M{
		"$set": bson.M{
			"bucket":    e.Bucket,
			"method":    e.Method,
			"url":       e.URL,
			"status":    e.Status,
			"header":    e.Header,
			"body":      e.Body,
			"type":      e.Type,
			"stored_at": storedAt,
		},
		"$setOnInsert": bson.M{
			"_id": primitive.NewObjectID(),
		},
	}
}

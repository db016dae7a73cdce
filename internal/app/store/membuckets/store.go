// internal/app/store/membuckets/store.go
package membuckets

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/padariapdv/internal/domain/models"
	cache "github.com/patrickmn/go-cache"
)

const (
	bucketPrefix = "b\x00"
	entryPrefix  = "e\x00"
)

// Store keeps buckets in process memory. Nothing expires; entries live until
// their bucket is deleted or the process exits.
type Store struct {
	c *cache.Cache
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{c: cache.New(cache.NoExpiration, 0)}
}

func bucketKey(bucket string) string {
	return bucketPrefix + bucket
}

func entryKey(bucket, method, url string) string {
	return entryPrefix + bucket + "\x00" + method + " " + url
}

// Open creates the bucket if it does not exist yet.
func (s *Store) Open(ctx context.Context, bucket string) error {
	// Add fails when the key exists, which is exactly the lazy-create case.
	_ = s.c.Add(bucketKey(bucket), models.CacheBucket{Name: bucket, CreatedAt: time.Now().UTC()}, cache.NoExpiration)
	return nil
}

// Match looks up an entry. The returned entry is a copy.
func (s *Store) Match(ctx context.Context, bucket, method, url string) (models.CacheEntry, bool, error) {
	obj, found := s.c.Get(entryKey(bucket, method, url))
	if !found {
		return models.CacheEntry{}, false, nil
	}
	return obj.(models.CacheEntry).Clone(), true, nil
}

// Put stores a copy of entry, opening its bucket first.
func (s *Store) Put(ctx context.Context, entry models.CacheEntry) error {
	if err := s.Open(ctx, entry.Bucket); err != nil {
		return err
	}
	e := entry.Clone()
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now().UTC()
	}
	if prev, found := s.c.Get(entryKey(e.Bucket, e.Method, e.URL)); found {
		e.ID = prev.(models.CacheEntry).ID
	}
	s.c.Set(entryKey(e.Bucket, e.Method, e.URL), e, cache.NoExpiration)
	return nil
}

// PutAll stores every entry.
func (s *Store) PutAll(ctx context.Context, entries []models.CacheEntry) error {
	for _, e := range entries {
		if err := s.Put(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Names lists buckets in name order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	names := []string{}
	for k := range s.c.Items() {
		if strings.HasPrefix(k, bucketPrefix) {
			names = append(names, strings.TrimPrefix(k, bucketPrefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a bucket and all of its entries.
func (s *Store) Delete(ctx context.Context, bucket string) (bool, error) {
	_, existed := s.c.Get(bucketKey(bucket))
	prefix := entryPrefix + bucket + "\x00"
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			s.c.Delete(k)
		}
	}
	s.c.Delete(bucketKey(bucket))
	return existed, nil
}

// Count returns the number of entries in bucket.
func (s *Store) Count(ctx context.Context, bucket string) (int64, error) {
	prefix := entryPrefix + bucket + "\x00"
	var n int64
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

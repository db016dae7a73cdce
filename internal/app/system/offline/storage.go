package offline

import (
	"context"
	"sync"

	"github.com/dalemusser/padariapdv/internal/domain/models"
	"go.uber.org/zap"
)

// Storage is the set of named buckets the manager caches into.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Open creates the bucket if it does not exist yet.
	Open(ctx context.Context, bucket string) error
	// Match looks up (method, url) in bucket. A miss is (zero, false, nil).
	Match(ctx context.Context, bucket, method, url string) (models.CacheEntry, bool, error)
	// Put stores entry, replacing any entry with the same identity.
	Put(ctx context.Context, entry models.CacheEntry) error
	// PutAll stores every entry.
	PutAll(ctx context.Context, entries []models.CacheEntry) error
	// Names lists every bucket that exists.
	Names(ctx context.Context) ([]string, error)
	// Delete removes a bucket and its entries, reporting whether it existed.
	Delete(ctx context.Context, bucket string) (bool, error)
	// Count returns the number of entries in bucket.
	Count(ctx context.Context, bucket string) (int64, error)
}

// Spawner runs background tasks that the response path does not wait for.
// Each task owns its error; the spawner only logs it.
type Spawner interface {
	Spawn(name string, task func(ctx context.Context) error)
	// Wait blocks until every task spawned so far has finished.
	Wait()
}

// goSpawner runs each task on its own goroutine.
type goSpawner struct {
	log *zap.Logger
	wg  sync.WaitGroup
}

func newGoSpawner(logger *zap.Logger) *goSpawner {
	return &goSpawner{log: logger}
}

func (s *goSpawner) Spawn(name string, task func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := task(context.Background()); err != nil {
			s.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

func (s *goSpawner) Wait() {
	s.wg.Wait()
}

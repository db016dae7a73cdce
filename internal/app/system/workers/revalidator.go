// internal/app/system/workers/revalidator.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Revalidator is a bounded background worker pool for cache refresh and
// cache write tasks. It satisfies offline.Spawner.
//
// Tasks are queued without blocking the caller. When the queue is full the
// task is dropped and logged; the response path never waits on a cache write.
type Revalidator struct {
	log     *zap.Logger
	workers int
	timeout time.Duration
	limiter *rate.Limiter
	queue   chan task
	stopCh  chan struct{}
	wg      sync.WaitGroup // worker goroutines
	pending sync.WaitGroup // queued and running tasks
	mu      sync.Mutex
	started bool
	stopped bool
	dropped int64
}

type task struct {
	name string
	run  func(ctx context.Context) error
}

// RevalidatorConfig holds pool sizing. Zero values pick defaults.
type RevalidatorConfig struct {
	Workers   int           // concurrent tasks (default 4)
	QueueSize int           // queued tasks before dropping (default 64)
	PerSecond int           // task starts per second, 0 for unlimited
	Timeout   time.Duration // per-task bound (default 30s)
}

// NewRevalidator creates a new revalidation worker pool.
func NewRevalidator(cfg RevalidatorConfig, logger *zap.Logger) *Revalidator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}

	return &Revalidator{
		log:     logger,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, cfg.Workers),
		queue:   make(chan task, cfg.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (w *Revalidator) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	w.log.Info("revalidator started",
		zap.Int("workers", w.workers),
		zap.Int("queue", cap(w.queue)),
		zap.Duration("timeout", w.timeout))
}

// Stop signals the workers to stop, waits for running tasks, and discards
// anything still queued.
func (w *Revalidator) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()

	discarded := 0
	for {
		select {
		case <-w.queue:
			w.pending.Done()
			discarded++
		default:
			w.log.Info("revalidator stopped",
				zap.Int("discarded", discarded),
				zap.Int64("dropped", w.Dropped()))
			return
		}
	}
}

// Spawn queues a task. It never blocks.
func (w *Revalidator) Spawn(name string, run func(ctx context.Context) error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		w.dropped++
		w.log.Debug("revalidator stopped, task dropped", zap.String("task", name))
		return
	}

	w.pending.Add(1)
	select {
	case w.queue <- task{name: name, run: run}:
	default:
		w.pending.Done()
		w.dropped++
		w.log.Warn("revalidator queue full, task dropped", zap.String("task", name))
	}
}

// Wait blocks until every queued task has run. Only meaningful while started.
func (w *Revalidator) Wait() {
	w.pending.Wait()
}

// Dropped returns how many tasks were discarded because the queue was full or
// the pool was stopped.
func (w *Revalidator) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Revalidator) run() {
	defer w.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stopCh
		cancel()
	}()

	for {
		select {
		case <-w.stopCh:
			return
		case t := <-w.queue:
			w.execute(ctx, t)
		}
	}
}

func (w *Revalidator) execute(ctx context.Context, t task) {
	defer w.pending.Done()

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	tctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := t.run(tctx); err != nil {
		w.log.Warn("background task failed",
			zap.String("task", t.name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	w.log.Debug("background task done",
		zap.String("task", t.name),
		zap.Duration("took", time.Since(start)))
}

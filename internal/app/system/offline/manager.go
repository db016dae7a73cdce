// Package offline keeps a local snapshot of the app's core assets and answers
// requests from it.
//
// A Manager owns one named bucket. Install fills it from the asset manifest,
// Activate removes buckets left behind by earlier cache names, and Resolve
// answers an intercepted request using the configured Strategy.
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/padariapdv/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager is safe for concurrent use once constructed.
type Manager struct {
	cfg   Config
	store Storage
	fetch Fetcher
	spawn Spawner
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a Manager.
type Option interface {
	apply(*Manager)
}

type spawnerOption struct {
	s Spawner
}

func (o spawnerOption) apply(m *Manager) {
	m.spawn = o.s
}

// WithSpawner routes background cache writes through s instead of bare goroutines.
func WithSpawner(s Spawner) Option {
	return spawnerOption{s: s}
}

type clockOption struct {
	now func() time.Time
}

func (o clockOption) apply(m *Manager) {
	m.now = o.now
}

// WithClock overrides the time source used to stamp stored entries.
func WithClock(now func() time.Time) Option {
	return clockOption{now: now}
}

// New returns a Manager for cfg.
func New(cfg Config, store Storage, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:   cfg,
		store: store,
		fetch: fetcher,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	if m.spawn == nil {
		m.spawn = newGoSpawner(logger)
	}
	return m
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Wait blocks until pending background cache writes have finished.
func (m *Manager) Wait() {
	m.spawn.Wait()
}

// InstallReport describes one Install run.
type InstallReport struct {
	RunID  string            `json:"run_id"`
	Bucket string            `json:"bucket"`
	Policy InstallPolicy     `json:"policy"`
	Cached []string          `json:"cached"`
	Failed map[string]string `json:"failed,omitempty"`
	Took   string            `json:"took"`
}

// Install opens the bucket and stores every manifest asset in it.
//
// Under InstallBestEffort the returned error is only non-nil when the bucket
// itself cannot be opened. Under InstallAllOrNothing any failed asset makes
// Install return an error wrapping ErrInstall, and nothing is stored.
func (m *Manager) Install(ctx context.Context) (InstallReport, error) {
	start := time.Now()
	report := InstallReport{
		RunID:  uuid.NewString(),
		Bucket: m.cfg.CacheName,
		Policy: m.cfg.InstallPolicy,
		Cached: []string{},
		Failed: map[string]string{},
	}

	if err := m.store.Open(ctx, m.cfg.CacheName); err != nil {
		return report, fmt.Errorf("offline: open bucket %q: %w", m.cfg.CacheName, err)
	}

	var err error
	if m.cfg.InstallPolicy == InstallAllOrNothing {
		err = m.installAll(ctx, &report)
	} else {
		m.installEach(ctx, &report)
	}
	report.Took = time.Since(start).String()

	if err != nil {
		m.log.Error("install failed",
			zap.String("run_id", report.RunID),
			zap.String("bucket", report.Bucket),
			zap.Int("failed", len(report.Failed)),
			zap.Error(err))
		return report, err
	}

	m.log.Info("install complete",
		zap.String("run_id", report.RunID),
		zap.String("bucket", report.Bucket),
		zap.String("policy", string(report.Policy)),
		zap.Int("cached", len(report.Cached)),
		zap.Int("failed", len(report.Failed)),
		zap.String("took", report.Took))
	return report, nil
}

// installEach adds every asset independently; a failure never stops the others.
func (m *Manager) installEach(ctx context.Context, report *InstallReport) {
	errs := make([]error, len(m.cfg.Manifest))

	var g errgroup.Group
	for i, u := range m.cfg.Manifest {
		g.Go(func() error {
			errs[i] = m.add(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range m.cfg.Manifest {
		if errs[i] != nil {
			m.log.Warn("failed to cache asset", zap.String("url", u), zap.Error(errs[i]))
			report.Failed[u] = errs[i].Error()
			continue
		}
		report.Cached = append(report.Cached, u)
	}
}

// installAll fetches every asset first and stores them only if all succeeded.
func (m *Manager) installAll(ctx context.Context, report *InstallReport) error {
	resps := make([]*Response, len(m.cfg.Manifest))
	errs := make([]error, len(m.cfg.Manifest))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range m.cfg.Manifest {
		g.Go(func() error {
			resp, err := m.fetchOK(gctx, u)
			if err != nil {
				errs[i] = err
				return fmt.Errorf("%s: %w", u, err)
			}
			resps[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for i, u := range m.cfg.Manifest {
			if errs[i] != nil && !errors.Is(errs[i], context.Canceled) {
				report.Failed[u] = errs[i].Error()
			}
		}
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	stamp := m.now()
	entries := make([]models.CacheEntry, 0, len(resps))
	for i, resp := range resps {
		entries = append(entries, resp.entry(m.cfg.CacheName, http.MethodGet, m.cfg.Manifest[i], stamp))
	}
	if err := m.store.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("%w: store assets: %w", ErrInstall, err)
	}
	report.Cached = append(report.Cached, m.cfg.Manifest...)
	return nil
}

// add fetches one asset and stores it.
func (m *Manager) add(ctx context.Context, url string) error {
	resp, err := m.fetchOK(ctx, url)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, resp.entry(m.cfg.CacheName, http.MethodGet, url, m.now()))
}

// fetchOK fetches url and rejects responses without a 2xx status.
func (m *Manager) fetchOK(ctx context.Context, url string) (*Response, error) {
	resp, err := m.fetch.Fetch(ctx, NewRequest(url))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{URL: url, Status: resp.Status}
	}
	return resp, nil
}

// Activate deletes every bucket except the current one and returns the names
// it removed.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	names, err := m.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("offline: list buckets: %w", err)
	}

	var deleted []string
	for _, name := range names {
		if name == m.cfg.CacheName {
			continue
		}
		ok, err := m.store.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("offline: delete bucket %q: %w", name, err)
		}
		if ok {
			m.log.Info("deleted stale cache bucket", zap.String("bucket", name))
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}

// Stats is a point-in-time view of the buckets.
type Stats struct {
	Bucket  string   `json:"bucket"`
	Buckets []string `json:"buckets"`
	Entries int64    `json:"entries"`
}

// Stats reports the existing buckets and the size of the current one.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	names, err := m.store.Names(ctx)
	if err != nil {
		return Stats{}, err
	}
	n, err := m.store.Count(ctx, m.cfg.CacheName)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Bucket: m.cfg.CacheName, Buckets: names, Entries: n}, nil
}

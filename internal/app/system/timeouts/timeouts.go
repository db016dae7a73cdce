// Package timeouts provides centralized timeout values for storage, install
// and background work.
//
// Network fetches made on behalf of a client request are deliberately not
// bounded here: a fetch only fails when the transport fails. Everything the
// server does on its own (health pings, bucket lookups, the startup install,
// background refreshes) uses one of these values.
//
// Timeouts can be configured at startup using Configure(). If not configured,
// the defaults are used.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing    = 2 * time.Second
	DefaultLookup  = 5 * time.Second
	DefaultFetch   = 30 * time.Second
	DefaultInstall = 2 * time.Minute
)

// mu protects all timeout values from concurrent access.
var mu sync.RWMutex

var (
	ping    = DefaultPing
	lookup  = DefaultLookup
	fetch   = DefaultFetch
	install = DefaultInstall
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Lookup returns the timeout for bucket reads such as status and counts.
func Lookup() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return lookup
}

// Fetch returns the bound for one background refresh task.
func Fetch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return fetch
}

// Install returns the bound for a full manifest install plus activation.
func Install() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return install
}

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping    time.Duration
	Lookup  time.Duration
	Fetch   time.Duration
	Install time.Duration
}

// Configure sets custom timeout values. Call it during startup before
// handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Lookup > 0 {
		lookup = cfg.Lookup
	}
	if cfg.Fetch > 0 {
		fetch = cfg.Fetch
	}
	if cfg.Install > 0 {
		install = cfg.Install
	}
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	lookup = DefaultLookup
	fetch = DefaultFetch
	install = DefaultInstall
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:    ping,
		Lookup:  lookup,
		Fetch:   fetch,
		Install: install,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context ended because the deadline passed.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Install(), logger, "offline install")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}

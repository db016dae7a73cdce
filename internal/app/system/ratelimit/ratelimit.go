// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Limiter is a fixed-window counter per key. Windows expire on their own, so
// no cleanup goroutine is needed. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	counts   *cache.Cache
	limit    int           // max requests per window
	duration time.Duration // window duration
}

// New creates a new rate limiter.
// limit: maximum requests allowed per duration
// duration: the time window for counting requests
func New(limit int, duration time.Duration) *Limiter {
	return &Limiter{
		counts:   cache.New(duration, duration*2),
		limit:    limit,
		duration: duration,
	}
}

// Allow checks if a request from the given key should be allowed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.counts.Add(key, 1, cache.DefaultExpiration); err == nil {
		return l.limit > 0
	}
	n, err := l.counts.IncrementInt(key, 1)
	if err != nil {
		// The window expired between Add and IncrementInt.
		l.counts.Set(key, 1, cache.DefaultExpiration)
		return l.limit > 0
	}
	return n <= l.limit
}

// Remaining returns how many requests are left for this key in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.counts.Get(key)
	if !ok {
		return l.limit
	}
	if remaining := l.limit - v.(int); remaining > 0 {
		return remaining
	}
	return 0
}

// Proxies lists the peers allowed to report the client address through
// X-Forwarded-For or X-Real-IP. Requests from any other peer are keyed by
// their own address, so a client cannot pick its own rate-limit key.
type Proxies struct {
	prefixes []netip.Prefix
}

// ParseProxies parses a comma-separated list of IPs and CIDR prefixes.
// An empty list trusts no one.
func ParseProxies(list string) (*Proxies, error) {
	p := &Proxies{}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
			}
			p.prefixes = append(p.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
		}
		p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

func (p *Proxies) trusts(ip string) bool {
	if p == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client IP from an HTTP request. Forwarding headers
// are only honored when the direct peer is a trusted proxy; a nil *Proxies
// trusts no one.
func (p *Proxies) ClientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !p.trusts(peer) {
		return peer
	}

	// X-Forwarded-For is a comma-separated list; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return peer
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
// Allowed requests carry X-RateLimit-Remaining.
func Middleware(l *Limiter, proxies *Proxies, logger *zap.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(l.duration.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := proxies.ClientIP(r)
			if !l.Allow(ip) {
				logger.Warn("rate limited",
					zap.String("ip", ip),
					zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.Remaining(ip)))
			next.ServeHTTP(w, r)
		})
	}
}

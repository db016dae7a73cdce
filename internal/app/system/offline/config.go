// internal/app/system/offline/config.go
package offline

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultCacheName is the version-tagged bucket name. Changing it is how old
// cached assets are invalidated; Activate removes the buckets left behind.
const DefaultCacheName = "padaria-pdv-v1"

// DefaultAssets is the ordered list of core assets. Relative entries are
// resolved against the base path; the empty entry is the base path itself.
var DefaultAssets = []string{
	"",
	"index.html",
	"styles.css",
	"script.js",
	"sales.html",
	"sales.css",
	"sales.js",
	"manifest.json",
	"android-launchericon-192-192.png",
	"android-launchericon-512-512.png",
	"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.0.0/css/all.min.css",
}

// Options are the raw settings a Config is built from.
type Options struct {
	CacheName     string
	Origin        string // scheme://host[:port] of the app the worker serves
	WorkerPath    string // path the worker script is installed at, e.g. /shop/sw.js
	Assets        []string
	InstallPolicy InstallPolicy
	Strategy      Strategy
}

// Config is computed once at startup and never modified afterwards.
type Config struct {
	CacheName     string
	Origin        string
	BasePath      string
	Manifest      []string // absolute URLs, in manifest order
	Fallbacks     []string // root document candidates, tried in order
	InstallPolicy InstallPolicy
	Strategy      Strategy
}

// NewConfig resolves the base path and manifest for opts.
func NewConfig(opts Options) (Config, error) {
	origin, err := parseOrigin(opts.Origin)
	if err != nil {
		return Config{}, err
	}

	name := strings.TrimSpace(opts.CacheName)
	if name == "" {
		name = DefaultCacheName
	}

	policy := opts.InstallPolicy
	if policy == "" {
		policy = InstallBestEffort
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyStaleWhileRevalidate
	}

	assets := opts.Assets
	if assets == nil {
		assets = DefaultAssets
	}

	base := BasePath(opts.WorkerPath)
	manifest := make([]string, 0, len(assets))
	for _, a := range assets {
		abs, err := resolveAsset(origin, base, a)
		if err != nil {
			return Config{}, err
		}
		manifest = append(manifest, abs)
	}

	root := origin.String() + base
	return Config{
		CacheName:     name,
		Origin:        origin.String(),
		BasePath:      base,
		Manifest:      manifest,
		Fallbacks:     []string{root + "index.html", root},
		InstallPolicy: policy,
		Strategy:      strategy,
	}, nil
}

// SameOrigin reports whether rawURL shares scheme, host and port with the app
// origin. URLs that fail to parse are never same-origin.
func (c Config) SameOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return originOf(u) == c.Origin
}

func parseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: origin %q: %v", ErrConfig, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: origin %q must be an absolute http(s) URL", ErrConfig, raw)
	}
	o, _ := url.Parse(originOf(u))
	return o, nil
}

func resolveAsset(origin *url.URL, base, asset string) (string, error) {
	u, err := url.Parse(asset)
	if err != nil {
		return "", fmt.Errorf("%w: asset %q: %v", ErrConfig, asset, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return origin.String() + base + strings.TrimPrefix(asset, "/"), nil
}

// originOf returns the serialized origin of u with default ports dropped.
func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host
}

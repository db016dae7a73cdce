package offline_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/padariapdv/internal/app/system/offline"
)

func TestNewConfig_ResolvesManifestAgainstBasePath(t *testing.T) {
	cfg, err := offline.NewConfig(offline.Options{
		Origin:     "http://pos.test:80/ignored/path",
		WorkerPath: "/shop/sw.js",
	})
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if cfg.Origin != "http://pos.test" {
		t.Errorf("Origin: got %q, want %q", cfg.Origin, "http://pos.test")
	}
	if cfg.BasePath != "/shop/" {
		t.Errorf("BasePath: got %q, want %q", cfg.BasePath, "/shop/")
	}
	if cfg.CacheName != offline.DefaultCacheName {
		t.Errorf("CacheName: got %q, want %q", cfg.CacheName, offline.DefaultCacheName)
	}
	if cfg.InstallPolicy != offline.InstallBestEffort {
		t.Errorf("InstallPolicy: got %q", cfg.InstallPolicy)
	}
	if cfg.Strategy != offline.StrategyStaleWhileRevalidate {
		t.Errorf("Strategy: got %q", cfg.Strategy)
	}

	want := []string{
		"http://pos.test/shop/",
		"http://pos.test/shop/index.html",
		"http://pos.test/shop/styles.css",
		"http://pos.test/shop/script.js",
		"http://pos.test/shop/sales.html",
		"http://pos.test/shop/sales.css",
		"http://pos.test/shop/sales.js",
		"http://pos.test/shop/manifest.json",
		"http://pos.test/shop/android-launchericon-192-192.png",
		"http://pos.test/shop/android-launchericon-512-512.png",
		"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.0.0/css/all.min.css",
	}
	if len(cfg.Manifest) != len(want) {
		t.Fatalf("manifest length: got %d, want %d", len(cfg.Manifest), len(want))
	}
	for i := range want {
		if cfg.Manifest[i] != want[i] {
			t.Errorf("manifest[%d]: got %q, want %q", i, cfg.Manifest[i], want[i])
		}
	}

	if len(cfg.Fallbacks) != 2 ||
		cfg.Fallbacks[0] != "http://pos.test/shop/index.html" ||
		cfg.Fallbacks[1] != "http://pos.test/shop/" {
		t.Errorf("Fallbacks: got %v", cfg.Fallbacks)
	}
}

func TestNewConfig_RejectsBadOrigin(t *testing.T) {
	for _, origin := range []string{"", "pos.test", "ftp://pos.test", "http://"} {
		_, err := offline.NewConfig(offline.Options{Origin: origin})
		if !errors.Is(err, offline.ErrConfig) {
			t.Errorf("origin %q: expected ErrConfig, got %v", origin, err)
		}
	}
}

func TestConfig_SameOrigin(t *testing.T) {
	cfg, err := offline.NewConfig(offline.Options{Origin: "https://pos.test"})
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://pos.test/index.html", true},
		{"https://POS.test:443/sales.js", true},
		{"http://pos.test/index.html", false},
		{"https://pos.test:8443/index.html", false},
		{"https://cdnjs.cloudflare.com/x.css", false},
		{"/index.html", false},
		{"http://[::1", false},
	}
	for _, tt := range tests {
		if got := cfg.SameOrigin(tt.url); got != tt.want {
			t.Errorf("SameOrigin(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := offline.ParseInstallPolicy("all-or-nothing"); err != nil || p != offline.InstallAllOrNothing {
		t.Errorf("ParseInstallPolicy: got %q, %v", p, err)
	}
	if p, err := offline.ParseInstallPolicy(""); err != nil || p != offline.InstallBestEffort {
		t.Errorf("ParseInstallPolicy empty: got %q, %v", p, err)
	}
	if _, err := offline.ParseInstallPolicy("sometimes"); !errors.Is(err, offline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}

	if s, err := offline.ParseStrategy("Cache_First"); err != nil || s != offline.StrategyCacheFirst {
		t.Errorf("ParseStrategy: got %q, %v", s, err)
	}
	if s, err := offline.ParseStrategy(""); err != nil || s != offline.StrategyStaleWhileRevalidate {
		t.Errorf("ParseStrategy empty: got %q, %v", s, err)
	}
	if _, err := offline.ParseStrategy("network_only"); !errors.Is(err, offline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

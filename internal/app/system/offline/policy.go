package offline

import (
	"fmt"
	"strings"
)

// InstallPolicy decides what happens when one manifest asset cannot be cached.
type InstallPolicy string

const (
	// InstallBestEffort attempts every asset independently. A failure is logged
	// and the rest of the install continues.
	InstallBestEffort InstallPolicy = "best_effort"

	// InstallAllOrNothing fetches every asset before storing any of them.
	// One failure aborts the install and leaves the bucket untouched.
	InstallAllOrNothing InstallPolicy = "all_or_nothing"
)

// Strategy decides how same-origin requests are answered.
type Strategy string

const (
	// StrategyStaleWhileRevalidate answers from the bucket when it can and
	// refreshes the entry from the network in the background. Misses wait for the
	// network and fall back to the root document when it is unreachable.
	StrategyStaleWhileRevalidate Strategy = "stale_while_revalidate"

	// StrategyCacheFirst answers from the bucket when it can. Misses go to the
	// network and the network outcome is returned unchanged.
	StrategyCacheFirst Strategy = "cache_first"
)

// ParseInstallPolicy accepts "best_effort" or "all_or_nothing" (hyphens allowed).
// An empty string selects InstallBestEffort.
func ParseInstallPolicy(s string) (InstallPolicy, error) {
	switch normalizeName(s) {
	case "", string(InstallBestEffort):
		return InstallBestEffort, nil
	case string(InstallAllOrNothing):
		return InstallAllOrNothing, nil
	}
	return "", fmt.Errorf("%w: unknown install policy %q", ErrConfig, s)
}

// ParseStrategy accepts "stale_while_revalidate" or "cache_first" (hyphens allowed).
// An empty string selects StrategyStaleWhileRevalidate.
func ParseStrategy(s string) (Strategy, error) {
	switch normalizeName(s) {
	case "", string(StrategyStaleWhileRevalidate):
		return StrategyStaleWhileRevalidate, nil
	case string(StrategyCacheFirst):
		return StrategyCacheFirst, nil
	}
	return "", fmt.Errorf("%w: unknown fetch strategy %q", ErrConfig, s)
}

func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

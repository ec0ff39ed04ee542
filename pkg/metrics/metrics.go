// Package metrics provides DNFS's Prometheus metrics surface.
//
// Metrics are opt-in (pkg/config MetricsConfig.Enabled): when disabled,
// InitRegistry is never called, IsEnabled reports false, and every recorder
// in this package is a nil-receiver no-op, so callers never need to branch
// on whether metrics are enabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide metrics registry. Must be called
// before constructing any prometheus-backed recorder.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

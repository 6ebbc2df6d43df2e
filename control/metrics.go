// File: control/metrics.go
// Package control provides runtime observability and configuration:
// per-core counters, a snapshot registry, and the TOML-loadable runtime
// config file.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// CoreStats accumulates one executor's counters. Updated with plain
// atomics so foreign threads can snapshot them at any time.
type CoreStats struct {
	Core           int
	Spawned        atomic.Int64
	Injected       atomic.Int64
	Polls          atomic.Int64
	Wakes          atomic.Int64
	SyntheticWakes atomic.Int64
	Completions    atomic.Int64
	Cancelled      atomic.Int64
	Faulted        atomic.Int64
}

// Snapshot returns the counters as a plain map for the registry.
func (s *CoreStats) Snapshot() map[string]int64 {
	return map[string]int64{
		"spawned":         s.Spawned.Load(),
		"injected":        s.Injected.Load(),
		"polls":           s.Polls.Load(),
		"wakes":           s.Wakes.Load(),
		"synthetic_wakes": s.SyntheticWakes.Load(),
		"completions":     s.Completions.Load(),
		"cancelled":       s.Cancelled.Load(),
		"faulted":         s.Faulted.Load(),
	}
}

// MetricsRegistry holds the latest runtime-wide metric snapshots in a
// thread-safe map with dynamic registration.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{metrics: make(map[string]any)}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns a copy of the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated returns the time of the last Set.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

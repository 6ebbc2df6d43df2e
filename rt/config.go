// File: rt/config.go
// Package rt
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rt

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/momentics/percore/affinity"
	"github.com/momentics/percore/control"
)

// Config selects cores and sizes the runtime. Zero values take the
// documented defaults.
type Config struct {
	// Cores lists the logical CPUs to run executors on. Default: every
	// CPU visible to the process.
	Cores []int
	// BufferSize is the fixed slab size of each core's buffer pool.
	// Default 64 KiB.
	BufferSize int
	// PoolCapacity caps the free slabs retained per core. Default 1024.
	PoolCapacity int
	// MaxEvents bounds completions retrieved per poll. Default 256.
	MaxEvents int
	// PortDepth sizes the completion queue where the port is software
	// backed. Default 1024.
	PortDepth int
	// IdlePollMs is the blocking completion-poll timeout used when a
	// core has no ready tasks; -1 (default) blocks until woken.
	IdlePollMs int
	// Logger receives lifecycle and fault logs. Default: no-op. Errors
	// always also reach callers through operation results.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if len(c.Cores) == 0 {
		for i := 0; i < affinity.NumCPUs(); i++ {
			c.Cores = append(c.Cores, i)
		}
	}
	if c.IdlePollMs == 0 {
		c.IdlePollMs = -1
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) validate() error {
	seen := make(map[int]struct{}, len(c.Cores))
	for _, core := range c.Cores {
		if core < 0 {
			return fmt.Errorf("rt: negative core index %d", core)
		}
		if _, dup := seen[core]; dup {
			return fmt.Errorf("rt: duplicate core index %d", core)
		}
		seen[core] = struct{}{}
	}
	return nil
}

// ConfigFromFile builds a Config from a TOML file (see
// control.FileConfig for the schema).
func ConfigFromFile(path string) (Config, error) {
	fc, err := control.LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Cores:        fc.Cores,
		BufferSize:   fc.BufferSize,
		PoolCapacity: fc.PoolCapacity,
		MaxEvents:    fc.MaxEvents,
		PortDepth:    fc.InjectDepth,
		IdlePollMs:   fc.IdlePollMs,
	}
	if fc.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(fc.LogLevel)
		if err != nil {
			return Config{}, fmt.Errorf("rt: log level %q: %w", fc.LogLevel, err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		logger, err := zc.Build()
		if err != nil {
			return Config{}, fmt.Errorf("rt: build logger: %w", err)
		}
		cfg.Logger = logger
	}
	return cfg, nil
}

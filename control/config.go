// File: control/config.go
// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TOML-backed runtime configuration. The programmatic rt.Config remains
// primary; this file format exists for deployments that select cores
// and sizing without recompiling.

package control

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// FileConfig mirrors the runtime's tunables in TOML form.
//
//	cores = [0, 1, 2]
//	buffer_size = 65536
//	pool_capacity = 1024
//	max_events = 256
//	inject_depth = 4096
//	idle_poll_ms = -1
//	log_level = "info"
type FileConfig struct {
	Cores        []int  `toml:"cores"`
	BufferSize   int    `toml:"buffer_size"`
	PoolCapacity int    `toml:"pool_capacity"`
	MaxEvents    int    `toml:"max_events"`
	InjectDepth  int    `toml:"inject_depth"`
	IdlePollMs   int    `toml:"idle_poll_ms"`
	LogLevel     string `toml:"log_level"`
}

// LoadFile parses a TOML runtime config.
func LoadFile(path string) (FileConfig, error) {
	cfg := FileConfig{IdlePollMs: -1}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("control: load config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot start with.
func (c FileConfig) Validate() error {
	seen := make(map[int]struct{}, len(c.Cores))
	for _, core := range c.Cores {
		if core < 0 {
			return fmt.Errorf("control: negative core index %d", core)
		}
		if _, dup := seen[core]; dup {
			return fmt.Errorf("control: duplicate core index %d", core)
		}
		seen[core] = struct{}{}
	}
	if c.BufferSize < 0 || c.PoolCapacity < 0 || c.MaxEvents < 0 || c.InjectDepth < 0 {
		return fmt.Errorf("control: negative sizing value")
	}
	return nil
}

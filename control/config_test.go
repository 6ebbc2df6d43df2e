// File: control/config_test.go
// Package control tests
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/momentics/percore/control"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "percore.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileParsesAllFields(t *testing.T) {
	path := writeConfig(t, `
cores = [0, 2, 4]
buffer_size = 32768
pool_capacity = 512
max_events = 128
inject_depth = 2048
idle_poll_ms = 50
log_level = "debug"
`)
	cfg, err := control.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Cores) != 3 || cfg.Cores[1] != 2 {
		t.Fatalf("Cores = %v", cfg.Cores)
	}
	if cfg.BufferSize != 32768 || cfg.PoolCapacity != 512 || cfg.MaxEvents != 128 {
		t.Fatalf("sizing = %+v", cfg)
	}
	if cfg.InjectDepth != 2048 || cfg.IdlePollMs != 50 || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadFileDefaultsIdlePollToBlocking(t *testing.T) {
	path := writeConfig(t, `cores = [0]`)
	cfg, err := control.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IdlePollMs != -1 {
		t.Fatalf("IdlePollMs = %d, want -1", cfg.IdlePollMs)
	}
}

func TestLoadFileRejectsBadConfigs(t *testing.T) {
	for name, body := range map[string]string{
		"duplicate cores": `cores = [1, 1]`,
		"negative core":   `cores = [-1]`,
		"negative sizing": `buffer_size = -1`,
		"bad syntax":      `cores = [`,
	} {
		if _, err := control.LoadFile(writeConfig(t, body)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
	if _, err := control.LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file: accepted")
	}
}

func TestMetricsRegistrySnapshotIsACopy(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Set("core_0", map[string]int64{"polls": 1})

	snap := mr.GetSnapshot()
	snap["core_1"] = nil
	if _, ok := mr.GetSnapshot()["core_1"]; ok {
		t.Fatal("snapshot mutation leaked into the registry")
	}
	if mr.Updated().IsZero() {
		t.Fatal("Updated not recorded")
	}
}

func TestCoreStatsSnapshotKeys(t *testing.T) {
	s := &control.CoreStats{Core: 2}
	s.Polls.Add(3)
	s.Cancelled.Add(1)
	snap := s.Snapshot()
	if snap["polls"] != 3 || snap["cancelled"] != 1 || snap["wakes"] != 0 {
		t.Fatalf("snapshot = %v", snap)
	}
}

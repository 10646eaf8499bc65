package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akmonengine/feathersync/actor"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	evaluation, err := cfg.EvaluationType()
	if err != nil || evaluation != actor.EvaluationImmediate {
		t.Errorf("expected immediate evaluation, got %v (%v)", evaluation, err)
	}
	if cfg.Gravity[1] >= 0 {
		t.Errorf("gravity should point down, got %v", cfg.Gravity)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	data := []byte("evaluation: buffered\nmax_sub_steps: 2\nspin_warn_threshold: 500us\nengine:\n  worker: true\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Evaluation != "buffered" {
		t.Errorf("expected buffered, got %s", cfg.Evaluation)
	}
	if cfg.MaxSubSteps != 2 {
		t.Errorf("expected 2 sub steps, got %d", cfg.MaxSubSteps)
	}
	if cfg.SpinWarnThreshold != 500*time.Microsecond {
		t.Errorf("expected 500us, got %s", cfg.SpinWarnThreshold)
	}
	if !cfg.Engine.Worker {
		t.Error("expected worker to be enabled")
	}
	// untouched keys keep their defaults
	if cfg.Engine.MemorySize != DefaultMemorySize {
		t.Errorf("expected default memory size, got %d", cfg.Engine.MemorySize)
	}
	if cfg.FixedTimeStep != DefaultFixedTimeStep {
		t.Errorf("expected default fixed step, got %v", cfg.FixedTimeStep)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("evaluation: sometimes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	malformed := filepath.Join(dir, "malformed.yaml")
	if err := os.WriteFile(malformed, []byte("gravity: [1, 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(malformed); err == nil {
		t.Error("expected a parse error")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	cfg := GetPreset("realtime")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", *cfg, *loaded)
	}
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(c *Config) {}, true},
		{"buffered", func(c *Config) { c.Evaluation = " Buffered " }, true},
		{"unknown evaluation", func(c *Config) { c.Evaluation = "lazy" }, false},
		{"negative time step", func(c *Config) { c.TimeStep = -1 }, false},
		{"negative sub steps", func(c *Config) { c.MaxSubSteps = -1 }, false},
		{"sub steps without fixed step", func(c *Config) { c.FixedTimeStep = 0 }, false},
		{"no sub steps without fixed step", func(c *Config) { c.MaxSubSteps = 0; c.FixedTimeStep = 0 }, true},
		{"negative threshold", func(c *Config) { c.SpinWarnThreshold = -time.Second }, false},
		{"tiny memory", func(c *Config) { c.Engine.MemorySize = 1024 }, false},
		{"no workers", func(c *Config) { c.Engine.Workers = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

// ============================================================================
// Presets
// ============================================================================

func TestPresets_Validate(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			if err := GetPreset(name).Validate(); err != nil {
				t.Errorf("preset %s: %v", name, err)
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("realtime")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Evaluation != "buffered" || !cfg.Engine.Worker {
		t.Errorf("unexpected realtime preset %+v", cfg)
	}

	cfg.Evaluation = "immediate"
	if Presets["realtime"].Evaluation != "buffered" {
		t.Error("GetPreset should return a copy")
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("presets not sorted: %v", names)
		}
	}
}

package config

import (
	"sort"
	"time"
)

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	// realtime steps on the worker while the caller prepares the next frame
	"realtime": {
		Evaluation: "buffered", Gravity: DefaultGravity,
		MaxSubSteps: 5, FixedTimeStep: 1.0 / 120.0, SpinWarnThreshold: time.Millisecond,
		Engine: EngineConfig{MemorySize: DefaultMemorySize, Worker: true, Workers: 4},
	},
	"deterministic": {
		Evaluation: "immediate", Gravity: DefaultGravity,
		TimeStep: 1.0 / 60.0, MaxSubSteps: 1, FixedTimeStep: 1.0 / 60.0, SpinWarnThreshold: DefaultSpinWarnThreshold,
		Engine: EngineConfig{MemorySize: DefaultMemorySize, Workers: 1},
	},
	"crowd": {
		Evaluation: "buffered", Gravity: DefaultGravity, PreserveBackBuffer: true,
		MaxSubSteps: 3, FixedTimeStep: 1.0 / 60.0, SpinWarnThreshold: 4 * time.Millisecond,
		Engine: EngineConfig{MemorySize: 256 << 20, Worker: true, Workers: 8},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

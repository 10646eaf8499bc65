package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akmonengine/feathersync/actor"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeStep          = 0
	DefaultMaxSubSteps       = 5
	DefaultFixedTimeStep     = 1.0 / 100.0
	DefaultSpinWarnThreshold = 2 * time.Millisecond
	DefaultMemorySize        = 64 << 20
	DefaultWorkers           = 1

	// MinMemorySize leaves room for the lock word and a few bodies.
	MinMemorySize = 64 << 10
)

var DefaultGravity = [3]float32{0, -9.81, 0}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	// Evaluation is "immediate" or "buffered".
	Evaluation string     `yaml:"evaluation"`
	Gravity    [3]float32 `yaml:"gravity"`
	// TimeStep in seconds; 0 derives it from the frame delta.
	TimeStep           float32       `yaml:"time_step"`
	MaxSubSteps        int           `yaml:"max_sub_steps"`
	FixedTimeStep      float32       `yaml:"fixed_time_step"`
	PreserveBackBuffer bool          `yaml:"preserve_back_buffer"`
	SpinWarnThreshold  time.Duration `yaml:"spin_warn_threshold"`
	Engine             EngineConfig  `yaml:"engine"`
}

// EngineConfig configures the in-process engine.
type EngineConfig struct {
	MemorySize int  `yaml:"memory_size"`
	Worker     bool `yaml:"worker"`
	Workers    int  `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Evaluation:        actor.EvaluationImmediate.String(),
		Gravity:           DefaultGravity,
		TimeStep:          DefaultTimeStep,
		MaxSubSteps:       DefaultMaxSubSteps,
		FixedTimeStep:     DefaultFixedTimeStep,
		SpinWarnThreshold: DefaultSpinWarnThreshold,
		Engine: EngineConfig{
			MemorySize: DefaultMemorySize,
			Workers:    DefaultWorkers,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EvaluationType parses Evaluation.
func (c *Config) EvaluationType() (actor.EvaluationType, error) {
	t, err := actor.ParseEvaluationType(c.Evaluation)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return t, nil
}

func (c *Config) Validate() error {
	if _, err := c.EvaluationType(); err != nil {
		return err
	}
	if c.TimeStep < 0 {
		return fmt.Errorf("%w: time_step %v is negative", ErrInvalid, c.TimeStep)
	}
	if c.MaxSubSteps < 0 {
		return fmt.Errorf("%w: max_sub_steps %d is negative", ErrInvalid, c.MaxSubSteps)
	}
	if c.MaxSubSteps > 0 && c.FixedTimeStep <= 0 {
		return fmt.Errorf("%w: fixed_time_step must be positive when max_sub_steps is set", ErrInvalid)
	}
	if c.SpinWarnThreshold < 0 {
		return fmt.Errorf("%w: spin_warn_threshold %s is negative", ErrInvalid, c.SpinWarnThreshold)
	}
	if c.Engine.MemorySize < MinMemorySize {
		return fmt.Errorf("%w: engine.memory_size %d is below %d", ErrInvalid, c.Engine.MemorySize, MinMemorySize)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("%w: engine.workers %d must be at least 1", ErrInvalid, c.Engine.Workers)
	}
	return nil
}

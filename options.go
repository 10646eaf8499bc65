package feathersync

import (
	"time"

	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/config"
	"github.com/akmonengine/feathersync/logging"
	"github.com/akmonengine/feathersync/spinlock"
	"github.com/go-gl/mathgl/mgl32"
)

type Option func(*settings)

type settings struct {
	logger             logging.Logger
	gravity            mgl32.Vec3
	evaluation         actor.EvaluationType
	timeStep           float32
	maxSubSteps        int
	fixedTimeStep      float32
	preserveBackBuffer bool
	spinWarnThreshold  time.Duration
}

func defaultSettings() settings {
	return settings{
		logger:            logging.Nop(),
		gravity:           mgl32.Vec3(config.DefaultGravity),
		evaluation:        actor.EvaluationImmediate,
		timeStep:          config.DefaultTimeStep,
		maxSubSteps:       config.DefaultMaxSubSteps,
		fixedTimeStep:     config.DefaultFixedTimeStep,
		spinWarnThreshold: config.DefaultSpinWarnThreshold,
	}
}

func (s settings) lockOptions() []spinlock.Option {
	return []spinlock.Option{spinlock.WithWarnThreshold(s.spinWarnThreshold)}
}

func WithLogger(logger logging.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithGravity(gravity mgl32.Vec3) Option {
	return func(s *settings) { s.gravity = gravity }
}

func WithEvaluation(t actor.EvaluationType) Option {
	return func(s *settings) { s.evaluation = t }
}

// WithTimeStep fixes the step length in seconds. 0 uses the frame delta.
func WithTimeStep(seconds float32) Option {
	return func(s *settings) { s.timeStep = seconds }
}

// WithSubSteps configures the engine accumulator: each frame is split into
// at most maxSubSteps steps of fixedTimeStep seconds.
func WithSubSteps(maxSubSteps int, fixedTimeStep float32) Option {
	return func(s *settings) {
		s.maxSubSteps = maxSubSteps
		s.fixedTimeStep = fixedTimeStep
	}
}

// WithPreserveBackBuffer keeps the engine motion state buffer on after
// leaving buffered evaluation.
func WithPreserveBackBuffer(preserve bool) Option {
	return func(s *settings) { s.preserveBackBuffer = preserve }
}

func WithSpinWarnThreshold(d time.Duration) Option {
	return func(s *settings) { s.spinWarnThreshold = d }
}

// WithConfig applies cfg. An invalid evaluation keeps the current one; call
// cfg.Validate first to reject it. A nil cfg is ignored.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) {
		if cfg == nil {
			return
		}
		if t, err := cfg.EvaluationType(); err == nil {
			s.evaluation = t
		}
		s.gravity = mgl32.Vec3(cfg.Gravity)
		s.timeStep = cfg.TimeStep
		s.maxSubSteps = cfg.MaxSubSteps
		s.fixedTimeStep = cfg.FixedTimeStep
		s.preserveBackBuffer = cfg.PreserveBackBuffer
		s.spinWarnThreshold = cfg.SpinWarnThreshold
	}
}

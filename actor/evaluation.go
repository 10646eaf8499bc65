package actor

import (
	"fmt"
	"strings"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// EvaluationType selects how body mutations reach the engine.
type EvaluationType uint8

const (
	// EvaluationImmediate writes straight into engine memory, waiting on the
	// step lock when the body is shared.
	EvaluationImmediate EvaluationType = iota
	// EvaluationBuffered stages writes per body and flushes them at the
	// frame's commit point, while the engine steps on its worker.
	EvaluationBuffered
)

func (t EvaluationType) String() string {
	switch t {
	case EvaluationImmediate:
		return "immediate"
	case EvaluationBuffered:
		return "buffered"
	default:
		return fmt.Sprintf("EvaluationType(%d)", uint8(t))
	}
}

// ParseEvaluationType is the inverse of String.
func ParseEvaluationType(s string) (EvaluationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immediate":
		return EvaluationImmediate, nil
	case "buffered":
		return EvaluationBuffered, nil
	default:
		return 0, fmt.Errorf("actor: unknown evaluation type %q", s)
	}
}

// evaluator is one strategy. Every index has been range checked and the
// body is known to be live.
type evaluator interface {
	kind() EvaluationType
	// shouldSync reports whether motion state reads must wait for the step
	// lock. Buffered reads hit the published front buffer, which the engine
	// never writes while stepping.
	shouldSync() bool
	needsCommit() bool
	commit(s *bodySet)

	setTransform(s *bodySet, i int, m mgl32.Mat4, state engine.KinematicState)
	setDynamicTransform(s *bodySet, i int, m mgl32.Mat4)
	translate(s *bodySet, i int, offset mgl32.Vec3)
	setDamping(s *bodySet, i int, linear, angular float32)
	setMassProps(s *bodySet, i int, mass float32, localInertia mgl32.Vec3)
	setLinearVelocity(s *bodySet, i int, v mgl32.Vec3)
	setAngularVelocity(s *bodySet, i int, v mgl32.Vec3)
	setLinearFactor(s *bodySet, i int, f mgl32.Vec3)
	setAngularFactor(s *bodySet, i int, f mgl32.Vec3)
	setFriction(s *bodySet, i int, friction float32)
	setRestitution(s *bodySet, i int, restitution float32)
	applyImpulse(s *bodySet, i int, impulse, relativePosition mgl32.Vec3)
	applyCentralForce(s *bodySet, i int, force mgl32.Vec3)

	transform(s *bodySet, i int) mgl32.Mat4
	damping(s *bodySet, i int) (linear, angular float32)
	mass(s *bodySet, i int) float32
	linearVelocity(s *bodySet, i int) mgl32.Vec3
	angularVelocity(s *bodySet, i int) mgl32.Vec3
	totalForce(s *bodySet, i int) mgl32.Vec3
}

func newEvaluator(t EvaluationType, count int) evaluator {
	if t == EvaluationBuffered {
		return newBuffered(count)
	}
	return immediate{}
}

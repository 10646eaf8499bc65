package local

import (
	"math"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// body is the engine side state of one rigid body. Dynamic bodies keep their
// transform in linear memory (the world transform region); the others keep it
// here.
type body struct {
	index      int
	shape      *shape
	motionType engine.MotionType

	transform mgl32.Mat4

	mass                float32
	invMass             float32
	localInertia        mgl32.Vec3
	inverseInertiaLocal mgl32.Vec3

	linearVelocity  mgl32.Vec3
	angularVelocity mgl32.Vec3
	linearFactor    mgl32.Vec3
	angularFactor   mgl32.Vec3

	linearDamping  float32
	angularDamping float32
	friction       float32
	restitution    float32

	accumulatedForce  mgl32.Vec3
	accumulatedTorque mgl32.Vec3

	collisionGroup uint16
	collisionMask  uint16
}

func newBody(index int, s *shape, info engine.RigidBodyInfo) *body {
	b := &body{
		index:          index,
		shape:          s,
		motionType:     info.MotionType,
		transform:      info.Transform,
		linearFactor:   mgl32.Vec3{1, 1, 1},
		angularFactor:  mgl32.Vec3{1, 1, 1},
		linearDamping:  info.LinearDamping,
		angularDamping: info.AngularDamping,
		friction:       info.Friction,
		restitution:    info.Restitution,
		collisionGroup: info.CollisionGroup,
		collisionMask:  info.CollisionMask,
	}
	if b.transform == (mgl32.Mat4{}) {
		b.transform = mgl32.Ident4()
	}

	mass := info.Mass
	if info.MotionType != engine.MotionTypeDynamic {
		// Static and kinematic bodies have infinite mass
		mass = 0
	}
	b.setMassProps(mass, info.LocalInertia)
	return b
}

func (b *body) isDynamic() bool {
	return b.motionType == engine.MotionTypeDynamic
}

func (b *body) setMassProps(mass float32, localInertia mgl32.Vec3) {
	if localInertia == (mgl32.Vec3{}) && mass > 0 {
		localInertia = b.shape.computeInertia(mass)
	}

	b.mass = mass
	b.localInertia = localInertia
	b.invMass = 0
	if mass > 0 {
		b.invMass = 1 / mass
	}
	for i := 0; i < 3; i++ {
		b.inverseInertiaLocal[i] = 0
		if localInertia[i] > 0 {
			b.inverseInertiaLocal[i] = 1 / localInertia[i]
		}
	}
}

// inverseInertiaWorld computes R * I_local^-1 * R^T
func (b *body) inverseInertiaWorld(transform mgl32.Mat4) mgl32.Mat3 {
	if b.invMass == 0 {
		return mgl32.Mat3{}
	}
	r := transform.Mat3()
	return r.Mul3(mgl32.Diag3(b.inverseInertiaLocal)).Mul3(r.Transpose())
}

func (b *body) applyImpulse(transform mgl32.Mat4, impulse, relativePosition mgl32.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.linearVelocity = b.linearVelocity.Add(mulElem(impulse.Mul(b.invMass), b.linearFactor))
	torque := relativePosition.Cross(impulse)
	angular := b.inverseInertiaWorld(transform).Mul3x1(mulElem(torque, b.angularFactor))
	b.angularVelocity = b.angularVelocity.Add(angular)
}

func (b *body) applyCentralForce(force mgl32.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.accumulatedForce = b.accumulatedForce.Add(mulElem(force, b.linearFactor))
}

func (b *body) clearForces() {
	b.accumulatedForce = mgl32.Vec3{}
	b.accumulatedTorque = mgl32.Vec3{}
}

// integrate advances a dynamic body by h seconds. transform is the body's
// world transform region.
func (b *body) integrate(h float32, gravity mgl32.Vec3, transform []float32) {
	if b.invMass == 0 {
		return
	}

	var m mgl32.Mat4
	copy(m[:], transform)

	// Linear integration
	acceleration := gravity.Add(b.accumulatedForce.Mul(b.invMass))
	b.linearVelocity = b.linearVelocity.Add(mulElem(acceleration.Mul(h), b.linearFactor))
	b.linearVelocity = b.linearVelocity.Mul(float32(math.Exp(float64(-b.linearDamping * h))))

	position := mgl32.Vec3{m[12], m[13], m[14]}.Add(b.linearVelocity.Mul(h))

	// Angular integration
	angularAcceleration := b.inverseInertiaWorld(m).Mul3x1(b.accumulatedTorque)
	b.angularVelocity = b.angularVelocity.Add(mulElem(angularAcceleration.Mul(h), b.angularFactor))
	b.angularVelocity = b.angularVelocity.Mul(float32(math.Exp(float64(-b.angularDamping * h))))

	rotation := mgl32.Mat4ToQuat(m)
	omega := mgl32.Quat{V: b.angularVelocity, W: 0}
	qDot := omega.Mul(rotation).Scale(0.5)
	rotation = rotation.Add(qDot.Scale(h)).Normalize()

	m = rotation.Mat4()
	m[12], m[13], m[14] = position[0], position[1], position[2]
	copy(transform, m[:])
}

// applyKinematic consumes the host written transform according to state and
// returns the next state.
func (b *body) applyKinematic(dt float32, state engine.KinematicState, motionState []float32) engine.KinematicState {
	switch state {
	case engine.KinematicWaitForChange:
		var next mgl32.Mat4
		copy(next[:], motionState)
		if dt > 0 {
			displacement := mgl32.Vec3{next[12] - b.transform[12], next[13] - b.transform[13], next[14] - b.transform[14]}
			b.linearVelocity = displacement.Mul(1 / dt)
		}
		b.transform = next
		return engine.KinematicRestoring

	case engine.KinematicWaitForRestore:
		copy(b.transform[:], motionState)
		b.linearVelocity = mgl32.Vec3{}
		b.angularVelocity = mgl32.Vec3{}
		return engine.KinematicRestoring

	case engine.KinematicRestoring:
		b.linearVelocity = mgl32.Vec3{}
		b.angularVelocity = mgl32.Vec3{}
		return engine.KinematicIdle

	default:
		return engine.KinematicIdle
	}
}

func mulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

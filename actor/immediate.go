package actor

import (
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// immediate applies every mutation at once. Writes on a shared body wait for
// the engine to finish its step first.
type immediate struct{}

func (immediate) kind() EvaluationType { return EvaluationImmediate }
func (immediate) shouldSync() bool     { return true }
func (immediate) needsCommit() bool    { return false }
func (immediate) commit(*bodySet)      {}

func (immediate) setTransform(s *bodySet, i int, m mgl32.Mat4, state engine.KinematicState) {
	s.waitForEngine()
	s.writeTransform(i, m, state)
}

func (immediate) setDynamicTransform(s *bodySet, i int, m mgl32.Mat4) {
	s.waitForEngine()
	s.writeDynamicTransform(i, m)
}

func (immediate) translate(s *bodySet, i int, offset mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodyTranslate(s.handle.ptr, i, offset)
}

func (immediate) setDamping(s *bodySet, i int, linear, angular float32) {
	s.waitForEngine()
	s.host.engine.RigidBodySetDamping(s.handle.ptr, i, linear, angular)
}

func (immediate) setMassProps(s *bodySet, i int, mass float32, localInertia mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodySetMassProps(s.handle.ptr, i, mass, localInertia)
}

func (immediate) setLinearVelocity(s *bodySet, i int, v mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodySetLinearVelocity(s.handle.ptr, i, v)
}

func (immediate) setAngularVelocity(s *bodySet, i int, v mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodySetAngularVelocity(s.handle.ptr, i, v)
}

func (immediate) setLinearFactor(s *bodySet, i int, f mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodySetLinearFactor(s.handle.ptr, i, f)
}

func (immediate) setAngularFactor(s *bodySet, i int, f mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodySetAngularFactor(s.handle.ptr, i, f)
}

func (immediate) setFriction(s *bodySet, i int, friction float32) {
	s.waitForEngine()
	s.host.engine.RigidBodySetFriction(s.handle.ptr, i, friction)
}

func (immediate) setRestitution(s *bodySet, i int, restitution float32) {
	s.waitForEngine()
	s.host.engine.RigidBodySetRestitution(s.handle.ptr, i, restitution)
}

func (immediate) applyImpulse(s *bodySet, i int, impulse, relativePosition mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodyApplyImpulse(s.handle.ptr, i, impulse, relativePosition)
}

func (immediate) applyCentralForce(s *bodySet, i int, force mgl32.Vec3) {
	s.waitForEngine()
	s.host.engine.RigidBodyApplyCentralForce(s.handle.ptr, i, force)
}

func (e immediate) transform(s *bodySet, i int) mgl32.Mat4 {
	return s.readTransform(i, e.shouldSync())
}

func (immediate) damping(s *bodySet, i int) (float32, float32) {
	return s.engineDamping(i)
}

func (immediate) mass(s *bodySet, i int) float32 {
	s.waitForEngine()
	return s.host.engine.RigidBodyGetMass(s.handle.ptr, i)
}

func (immediate) linearVelocity(s *bodySet, i int) mgl32.Vec3 {
	s.waitForEngine()
	return s.host.engine.RigidBodyGetLinearVelocity(s.handle.ptr, i)
}

func (immediate) angularVelocity(s *bodySet, i int) mgl32.Vec3 {
	s.waitForEngine()
	return s.host.engine.RigidBodyGetAngularVelocity(s.handle.ptr, i)
}

func (immediate) totalForce(s *bodySet, i int) mgl32.Vec3 {
	s.waitForEngine()
	return s.host.engine.RigidBodyGetTotalForce(s.handle.ptr, i)
}

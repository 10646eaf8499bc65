package actor

import (
	"fmt"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// RigidBodyBundle is a set of bodies stored contiguously in the engine and
// addressed by index. Members may have different motion types.
type RigidBodyBundle struct {
	*bodySet
}

func NewRigidBodyBundle(host *Host, infos []RigidBodyConstructionInfo) (*RigidBodyBundle, error) {
	s, err := newBodySet(host, infos, true)
	if err != nil {
		return nil, err
	}
	b := &RigidBodyBundle{bodySet: s}
	s.id = host.Register(b)
	return b, nil
}

func (b *RigidBodyBundle) Count() int {
	return b.count()
}

func (b *RigidBodyBundle) MotionType(i int) (engine.MotionType, error) {
	if err := b.check(i); err != nil {
		return 0, err
	}
	return b.motionTypes[i], nil
}

func (b *RigidBodyBundle) IsDynamic(i int) bool {
	return i >= 0 && i < b.count() && b.motionTypes[i] == engine.MotionTypeDynamic
}

func (b *RigidBodyBundle) Shape(i int) (*Shape, error) {
	if err := b.check(i); err != nil {
		return nil, err
	}
	return b.shapes[i], nil
}

func (b *RigidBodyBundle) SetTransformMatrix(i int, m mgl32.Mat4) error {
	return b.setTransformMatrix(i, m, engine.KinematicWaitForChange)
}

func (b *RigidBodyBundle) ResetTransformMatrix(i int, m mgl32.Mat4) error {
	return b.setTransformMatrix(i, m, engine.KinematicWaitForRestore)
}

func (b *RigidBodyBundle) SetDynamicTransformMatrix(i int, m mgl32.Mat4, fallbackToSetTransformMatrix bool) error {
	return b.setDynamicTransformMatrix(i, m, fallbackToSetTransformMatrix)
}

func (b *RigidBodyBundle) Translate(i int, offset mgl32.Vec3) error {
	return b.translate(i, offset)
}

func (b *RigidBodyBundle) SetDamping(i int, linear, angular float32) error {
	return b.setDamping(i, linear, angular)
}

func (b *RigidBodyBundle) SetMassProps(i int, mass float32, localInertia mgl32.Vec3) error {
	return b.setMassProps(i, mass, localInertia)
}

func (b *RigidBodyBundle) SetLinearVelocity(i int, v mgl32.Vec3) error {
	return b.setLinearVelocity(i, v)
}

func (b *RigidBodyBundle) SetAngularVelocity(i int, v mgl32.Vec3) error {
	return b.setAngularVelocity(i, v)
}

func (b *RigidBodyBundle) SetLinearFactor(i int, f mgl32.Vec3) error {
	return b.setLinearFactor(i, f)
}

func (b *RigidBodyBundle) SetAngularFactor(i int, f mgl32.Vec3) error {
	return b.setAngularFactor(i, f)
}

func (b *RigidBodyBundle) SetFriction(i int, friction float32) error {
	return b.setFriction(i, friction)
}

func (b *RigidBodyBundle) SetRestitution(i int, restitution float32) error {
	return b.setRestitution(i, restitution)
}

func (b *RigidBodyBundle) ApplyImpulse(i int, impulse, relativePosition mgl32.Vec3) error {
	return b.applyImpulse(i, impulse, relativePosition)
}

func (b *RigidBodyBundle) ApplyCentralForce(i int, force mgl32.Vec3) error {
	return b.applyCentralForce(i, force)
}

func (b *RigidBodyBundle) TransformMatrix(i int) (mgl32.Mat4, error) {
	var m mgl32.Mat4
	err := b.transformMatrixToRef(i, &m)
	return m, err
}

func (b *RigidBodyBundle) TransformMatrixToRef(i int, result *mgl32.Mat4) error {
	return b.transformMatrixToRef(i, result)
}

func (b *RigidBodyBundle) TransformMatrixToArray(i int, dst []float32, offset int) error {
	return b.transformMatrixToArray(i, dst, offset)
}

// TransformMatricesToArray writes every member's transform, 16 floats each,
// starting at offset.
func (b *RigidBodyBundle) TransformMatricesToArray(dst []float32, offset int) error {
	if b.handle.IsDisposed() {
		return ErrDisposed
	}
	need := b.count() * engine.MotionStateFloats
	if offset < 0 || offset+need > len(dst) {
		return fmt.Errorf("%w: %d floats at offset %d, array holds %d", ErrIndexOutOfRange, need, offset, len(dst))
	}
	for i, n := 0, b.count(); i < n; i++ {
		m := b.impl.transform(b.bodySet, i)
		copy(dst[offset+i*engine.MotionStateFloats:], m[:])
	}
	return nil
}

func (b *RigidBodyBundle) Damping(i int) (linear, angular float32, err error) {
	return b.damping(i)
}

func (b *RigidBodyBundle) Mass(i int) (float32, error) {
	return b.mass(i)
}

func (b *RigidBodyBundle) LinearVelocity(i int) (mgl32.Vec3, error) {
	return b.linearVelocity(i)
}

func (b *RigidBodyBundle) AngularVelocity(i int) (mgl32.Vec3, error) {
	return b.angularVelocity(i)
}

func (b *RigidBodyBundle) TotalForce(i int) (mgl32.Vec3, error) {
	return b.totalForce(i)
}

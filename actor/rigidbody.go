package actor

import (
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// RigidBody is a single body living in the engine.
type RigidBody struct {
	*bodySet
}

// NewRigidBody creates the body in the engine and registers it on host.
func NewRigidBody(host *Host, info RigidBodyConstructionInfo) (*RigidBody, error) {
	s, err := newBodySet(host, []RigidBodyConstructionInfo{info}, false)
	if err != nil {
		return nil, err
	}
	rb := &RigidBody{bodySet: s}
	s.id = host.Register(rb)
	return rb, nil
}

func (rb *RigidBody) MotionType() engine.MotionType {
	return rb.motionTypes[0]
}

// IsDynamic is fixed at construction.
func (rb *RigidBody) IsDynamic() bool {
	return rb.motionTypes[0] == engine.MotionTypeDynamic
}

func (rb *RigidBody) Shape() *Shape {
	return rb.shapes[0]
}

// SetTransformMatrix moves a kinematic body; the engine interpolates to it.
func (rb *RigidBody) SetTransformMatrix(m mgl32.Mat4) error {
	return rb.setTransformMatrix(0, m, engine.KinematicWaitForChange)
}

// ResetTransformMatrix snaps a kinematic body without a kinematic velocity.
func (rb *RigidBody) ResetTransformMatrix(m mgl32.Mat4) error {
	return rb.setTransformMatrix(0, m, engine.KinematicWaitForRestore)
}

// SetTransform is SetTransformMatrix for a decomposed transform.
func (rb *RigidBody) SetTransform(t Transform) error {
	return rb.SetTransformMatrix(t.Matrix())
}

// SetDynamicTransformMatrix teleports a dynamic body. With
// fallbackToSetTransformMatrix a kinematic body is moved instead of failing.
func (rb *RigidBody) SetDynamicTransformMatrix(m mgl32.Mat4, fallbackToSetTransformMatrix bool) error {
	return rb.setDynamicTransformMatrix(0, m, fallbackToSetTransformMatrix)
}

func (rb *RigidBody) Translate(offset mgl32.Vec3) error {
	return rb.translate(0, offset)
}

func (rb *RigidBody) SetDamping(linear, angular float32) error {
	return rb.setDamping(0, linear, angular)
}

// SetMassProps is only valid on dynamic bodies. A zero localInertia is
// derived from the shape.
func (rb *RigidBody) SetMassProps(mass float32, localInertia mgl32.Vec3) error {
	return rb.setMassProps(0, mass, localInertia)
}

func (rb *RigidBody) SetLinearVelocity(v mgl32.Vec3) error {
	return rb.setLinearVelocity(0, v)
}

func (rb *RigidBody) SetAngularVelocity(v mgl32.Vec3) error {
	return rb.setAngularVelocity(0, v)
}

func (rb *RigidBody) SetLinearFactor(f mgl32.Vec3) error {
	return rb.setLinearFactor(0, f)
}

func (rb *RigidBody) SetAngularFactor(f mgl32.Vec3) error {
	return rb.setAngularFactor(0, f)
}

func (rb *RigidBody) SetFriction(friction float32) error {
	return rb.setFriction(0, friction)
}

func (rb *RigidBody) SetRestitution(restitution float32) error {
	return rb.setRestitution(0, restitution)
}

// ApplyImpulse applies impulse at relativePosition from the center of mass.
func (rb *RigidBody) ApplyImpulse(impulse, relativePosition mgl32.Vec3) error {
	return rb.applyImpulse(0, impulse, relativePosition)
}

func (rb *RigidBody) ApplyCentralForce(force mgl32.Vec3) error {
	return rb.applyCentralForce(0, force)
}

// TransformMatrix returns the last known good transform.
func (rb *RigidBody) TransformMatrix() (mgl32.Mat4, error) {
	var m mgl32.Mat4
	err := rb.transformMatrixToRef(0, &m)
	return m, err
}

func (rb *RigidBody) TransformMatrixToRef(result *mgl32.Mat4) error {
	return rb.transformMatrixToRef(0, result)
}

// TransformMatrixToArray writes the 16 floats of the transform at offset.
func (rb *RigidBody) TransformMatrixToArray(dst []float32, offset int) error {
	return rb.transformMatrixToArray(0, dst, offset)
}

func (rb *RigidBody) Transform() (Transform, error) {
	m, err := rb.TransformMatrix()
	if err != nil {
		return Transform{}, err
	}
	return TransformFromMatrix(m), nil
}

func (rb *RigidBody) Damping() (linear, angular float32, err error) {
	return rb.damping(0)
}

func (rb *RigidBody) Mass() (float32, error) {
	return rb.mass(0)
}

func (rb *RigidBody) LinearVelocity() (mgl32.Vec3, error) {
	return rb.linearVelocity(0)
}

func (rb *RigidBody) AngularVelocity() (mgl32.Vec3, error) {
	return rb.angularVelocity(0)
}

func (rb *RigidBody) TotalForce() (mgl32.Vec3, error) {
	return rb.totalForce(0)
}

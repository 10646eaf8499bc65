package engine

import "github.com/go-gl/mathgl/mgl32"

// Ptr is a byte offset into the shared linear memory. Zero means null.
type Ptr uint32

const (
	// MotionStateFloats is the size of one motion state: a column-major 4x4
	// matrix holding the 3x3 rotation and the translation.
	MotionStateFloats = 16
	MotionStateSize   = MotionStateFloats * 4

	// WorldTransformFloats matches the motion state layout.
	WorldTransformFloats = MotionStateFloats
)

// MotionType is fixed at body construction.
type MotionType uint8

const (
	// MotionTypeDynamic bodies are integrated by the engine
	MotionTypeDynamic MotionType = iota
	// MotionTypeStatic bodies never move
	MotionTypeStatic
	// MotionTypeKinematic bodies are driven by the host through their motion state
	MotionTypeKinematic
)

func (t MotionType) String() string {
	switch t {
	case MotionTypeDynamic:
		return "dynamic"
	case MotionTypeStatic:
		return "static"
	case MotionTypeKinematic:
		return "kinematic"
	default:
		return "unknown"
	}
}

// KinematicState is the one-byte flag the host raises after writing a
// kinematic transform, and the engine lowers once consumed.
type KinematicState uint8

const (
	KinematicIdle KinematicState = iota
	// KinematicWaitForChange asks the engine to move to the new transform,
	// deriving a kinematic velocity from the displacement.
	KinematicWaitForChange
	// KinematicWaitForRestore asks the engine to snap to the new transform.
	KinematicWaitForRestore
	// KinematicRestoring is set by the engine after consuming a transform;
	// it returns to Idle on the next step without a new write.
	KinematicRestoring
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypeCapsule
	ShapeTypeStaticPlane
)

// ShapeInfo describes a shape to create. Only the fields relevant to Type
// are read.
type ShapeInfo struct {
	Type        ShapeType
	Radius      float32
	HalfExtents mgl32.Vec3
	Height      float32
	Normal      mgl32.Vec3
	Distance    float32
}

// RigidBodyInfo is the construction info of one body.
type RigidBodyInfo struct {
	Shape      Ptr
	MotionType MotionType
	Transform  mgl32.Mat4
	Mass       float32
	// LocalInertia is derived from the shape when zero
	LocalInertia   mgl32.Vec3
	LinearDamping  float32
	AngularDamping float32
	Friction       float32
	Restitution    float32

	CollisionGroup      uint16
	CollisionMask       uint16
	NoContactResponse   bool
	DisableDeactivation bool
}

// ConstraintType selects the joint model.
type ConstraintType uint8

const (
	ConstraintGeneric6DofSpring ConstraintType = iota
)

// ConstraintInfo links either two bodies, or two members of one bundle.
type ConstraintInfo struct {
	Type ConstraintType

	BodyA Ptr
	BodyB Ptr

	// Bundle is used instead of BodyA/BodyB when non-zero
	Bundle Ptr
	IndexA int
	IndexB int

	FrameA                   mgl32.Mat4
	FrameB                   mgl32.Mat4
	UseLinearReferenceFrameA bool
}

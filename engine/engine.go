package engine

import "github.com/go-gl/mathgl/mgl32"

// Future is closed once an asynchronous step has finished and released the
// step lock.
type Future <-chan struct{}

// Engine is the opaque physics engine call surface. All handles are Ptr
// values into Memory.
//
// Bodies and bundles share one addressing scheme: a single rigid body is
// addressed with index 0, a bundle member with its index.
//
// Calls are made from one orchestrating goroutine. The engine may step on its
// own worker; while it does, the word at LockPtr is non-zero.
type Engine interface {
	Memory() *Memory
	// LockPtr locates the step lock word in Memory.
	LockPtr() Ptr

	AllocateBuffer(size int) (Ptr, error)
	DeallocateBuffer(ptr Ptr, size int)

	CreateShape(info ShapeInfo) (Ptr, error)
	DestroyShape(ptr Ptr)

	CreateRigidBody(info RigidBodyInfo) (Ptr, error)
	CreateRigidBodyBundle(infos []RigidBodyInfo) (Ptr, error)
	DestroyRigidBody(ptr Ptr)
	DestroyRigidBodyBundle(ptr Ptr)

	// RigidBodyGetMotionStatePtr returns the working motion states of all
	// members, contiguous.
	RigidBodyGetMotionStatePtr(ptr Ptr) Ptr
	// RigidBodyGetBufferedMotionStatePtr returns the currently published
	// motion states. It equals the working pointer when buffering is off.
	RigidBodyGetBufferedMotionStatePtr(ptr Ptr) Ptr
	// RigidBodyGetWorldTransformPtr returns 0 for non dynamic members.
	RigidBodyGetWorldTransformPtr(ptr Ptr, index int) Ptr
	// RigidBodyGetKinematicStatePtr returns one byte per member, contiguous.
	RigidBodyGetKinematicStatePtr(ptr Ptr) Ptr

	RigidBodySetDamping(ptr Ptr, index int, linear, angular float32)
	RigidBodyGetLinearDamping(ptr Ptr, index int) float32
	RigidBodyGetAngularDamping(ptr Ptr, index int) float32
	RigidBodySetMassProps(ptr Ptr, index int, mass float32, localInertia mgl32.Vec3)
	RigidBodyGetMass(ptr Ptr, index int) float32
	RigidBodyGetLocalInertia(ptr Ptr, index int) mgl32.Vec3
	RigidBodySetLinearVelocity(ptr Ptr, index int, v mgl32.Vec3)
	RigidBodyGetLinearVelocity(ptr Ptr, index int) mgl32.Vec3
	RigidBodySetAngularVelocity(ptr Ptr, index int, v mgl32.Vec3)
	RigidBodyGetAngularVelocity(ptr Ptr, index int) mgl32.Vec3
	RigidBodySetLinearFactor(ptr Ptr, index int, f mgl32.Vec3)
	RigidBodySetAngularFactor(ptr Ptr, index int, f mgl32.Vec3)
	RigidBodySetFriction(ptr Ptr, index int, friction float32)
	RigidBodySetRestitution(ptr Ptr, index int, restitution float32)
	RigidBodyApplyImpulse(ptr Ptr, index int, impulse, relativePosition mgl32.Vec3)
	RigidBodyApplyCentralForce(ptr Ptr, index int, force mgl32.Vec3)
	RigidBodyGetTotalForce(ptr Ptr, index int) mgl32.Vec3
	RigidBodyTranslate(ptr Ptr, index int, offset mgl32.Vec3)

	CreateMultiPhysicsWorld(gravity mgl32.Vec3, preserveBackBuffer bool) (Ptr, error)
	DestroyMultiPhysicsWorld(ptr Ptr)
	MultiPhysicsWorldSetGravity(ptr Ptr, gravity mgl32.Vec3)
	MultiPhysicsWorldAddRigidBody(ptr Ptr, worldID int, body Ptr)
	MultiPhysicsWorldRemoveRigidBody(ptr Ptr, worldID int, body Ptr)
	MultiPhysicsWorldAddRigidBodyBundle(ptr Ptr, worldID int, bundle Ptr)
	MultiPhysicsWorldRemoveRigidBodyBundle(ptr Ptr, worldID int, bundle Ptr)
	MultiPhysicsWorldAddRigidBodyToGlobal(ptr Ptr, body Ptr)
	MultiPhysicsWorldRemoveRigidBodyFromGlobal(ptr Ptr, body Ptr)
	MultiPhysicsWorldAddRigidBodyBundleToGlobal(ptr Ptr, bundle Ptr)
	MultiPhysicsWorldRemoveRigidBodyBundleFromGlobal(ptr Ptr, bundle Ptr)
	MultiPhysicsWorldAddRigidBodyShadow(ptr Ptr, worldID int, body Ptr)
	MultiPhysicsWorldRemoveRigidBodyShadow(ptr Ptr, worldID int, body Ptr)
	MultiPhysicsWorldAddRigidBodyBundleShadow(ptr Ptr, worldID int, bundle Ptr)
	MultiPhysicsWorldRemoveRigidBodyBundleShadow(ptr Ptr, worldID int, bundle Ptr)
	// MultiPhysicsWorldGetShadowTransform reads the mirrored transform of a
	// shadowed member as seen from worldID.
	MultiPhysicsWorldGetShadowTransform(ptr Ptr, worldID int, body Ptr, index int) (mgl32.Mat4, bool)
	MultiPhysicsWorldAddConstraint(ptr Ptr, worldID int, constraint Ptr, disableCollisionsBetweenLinkedBodies bool)
	MultiPhysicsWorldRemoveConstraint(ptr Ptr, worldID int, constraint Ptr)
	MultiPhysicsWorldUseMotionStateBuffer(ptr Ptr, use bool)
	MultiPhysicsWorldStepSimulation(ptr Ptr, timeStep float32, maxSubSteps int, fixedTimeStep float32)
	// MultiPhysicsWorldStepSimulationAsync raises the lock before returning and
	// steps on the worker. ok is false when no worker is available.
	MultiPhysicsWorldStepSimulationAsync(ptr Ptr, timeStep float32, maxSubSteps int, fixedTimeStep float32) (done Future, ok bool)

	CreateConstraint(info ConstraintInfo) (Ptr, error)
	DestroyConstraint(ptr Ptr)
	ConstraintSetLinearLowerLimit(ptr Ptr, limit mgl32.Vec3)
	ConstraintSetLinearUpperLimit(ptr Ptr, limit mgl32.Vec3)
	ConstraintSetAngularLowerLimit(ptr Ptr, limit mgl32.Vec3)
	ConstraintSetAngularUpperLimit(ptr Ptr, limit mgl32.Vec3)
	ConstraintEnableSpring(ptr Ptr, dof int, enable bool)
	ConstraintSetStiffness(ptr Ptr, dof int, stiffness float32)
	ConstraintSetDamping(ptr Ptr, dof int, damping float32)
	ConstraintSetEquilibriumPoint(ptr Ptr, dof int, value float32)
}

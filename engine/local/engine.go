// Package local is an in-process reference implementation of engine.Engine.
//
// It integrates bodies (gravity, damping, velocities, forces and impulses)
// and implements the full membership and motion state buffer protocol, but
// performs no collision detection or constraint solving.
package local

import (
	"errors"
	"fmt"

	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/spinlock"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultMemorySize = 16 << 20
	DefaultWorkers    = 1
)

var (
	ErrUnknownPointer = errors.New("local: unknown pointer")
	ErrShapeInUse     = errors.New("local: shape still used by bodies")
)

type stepJob struct {
	world         *multiWorld
	timeStep      float32
	maxSubSteps   int
	fixedTimeStep float32
	done          chan struct{}
}

// Engine is not safe for concurrent use: all calls come from one goroutine.
// The worker goroutine only touches the world being stepped and the groups
// it holds.
type Engine struct {
	mem     *engine.Memory
	lockPtr engine.Ptr
	lock    *spinlock.SpinLock

	shapes      map[engine.Ptr]*shape
	groups      map[engine.Ptr]*group
	worlds      map[engine.Ptr]*multiWorld
	constraints map[engine.Ptr]*constraint

	workers int
	jobs    chan stepJob
	closed  bool
}

type Option func(*config)

type config struct {
	memorySize int
	worker     bool
	workers    int
}

// WithMemorySize sets the linear memory size in bytes.
func WithMemorySize(size int) Option {
	return func(c *config) { c.memorySize = size }
}

// WithWorker enables the asynchronous step worker.
func WithWorker(enabled bool) Option {
	return func(c *config) { c.worker = enabled }
}

// WithWorkers sets how many sub-worlds may be integrated in parallel.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

func New(opts ...Option) (*Engine, error) {
	cfg := config{memorySize: DefaultMemorySize, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}

	mem := engine.NewMemory(cfg.memorySize)
	lockPtr, err := mem.Allocate(4)
	if err != nil {
		return nil, fmt.Errorf("local: allocate lock word: %w", err)
	}

	e := &Engine{
		mem:         mem,
		lockPtr:     lockPtr,
		lock:        spinlock.New(mem, lockPtr),
		shapes:      make(map[engine.Ptr]*shape),
		groups:      make(map[engine.Ptr]*group),
		worlds:      make(map[engine.Ptr]*multiWorld),
		constraints: make(map[engine.Ptr]*constraint),
		workers:     max(cfg.workers, 1),
	}
	if cfg.worker {
		e.jobs = make(chan stepJob, 1)
		go e.work()
	}
	return e, nil
}

// Close stops the worker. Any running step completes first.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.jobs != nil {
		close(e.jobs)
	}
}

func (e *Engine) work() {
	for job := range e.jobs {
		job.world.step(e.mem, e.workers, job.timeStep, job.maxSubSteps, job.fixedTimeStep)
		e.lock.Unlock()
		close(job.done)
	}
}

func (e *Engine) Memory() *engine.Memory { return e.mem }
func (e *Engine) LockPtr() engine.Ptr    { return e.lockPtr }

// HasWorker reports whether asynchronous stepping is available.
func (e *Engine) HasWorker() bool {
	return e.jobs != nil && !e.closed
}

func (e *Engine) AllocateBuffer(size int) (engine.Ptr, error) {
	return e.mem.Allocate(size)
}

func (e *Engine) DeallocateBuffer(ptr engine.Ptr, size int) {
	e.mem.Deallocate(ptr, size)
}

// ============================================================================
// Shapes
// ============================================================================

func (e *Engine) CreateShape(info engine.ShapeInfo) (engine.Ptr, error) {
	s, err := newShape(info)
	if err != nil {
		return 0, err
	}
	// Shapes own no memory, but still need a unique non-null address
	ptr, err := e.mem.Allocate(engine.Alignment)
	if err != nil {
		return 0, err
	}
	e.shapes[ptr] = s
	return ptr, nil
}

func (e *Engine) DestroyShape(ptr engine.Ptr) {
	s, ok := e.shapes[ptr]
	if !ok {
		panic(fmt.Sprintf("%v: shape %d", ErrUnknownPointer, ptr))
	}
	if s.users > 0 {
		panic(fmt.Sprintf("%v: shape %d used by %d bodies", ErrShapeInUse, ptr, s.users))
	}
	delete(e.shapes, ptr)
	e.mem.Deallocate(ptr, engine.Alignment)
}

// ============================================================================
// Bodies and bundles
// ============================================================================

func (e *Engine) CreateRigidBody(info engine.RigidBodyInfo) (engine.Ptr, error) {
	return e.createGroup([]engine.RigidBodyInfo{info}, false)
}

func (e *Engine) CreateRigidBodyBundle(infos []engine.RigidBodyInfo) (engine.Ptr, error) {
	if len(infos) == 0 {
		return 0, fmt.Errorf("local: bundle needs at least one body")
	}
	return e.createGroup(infos, true)
}

func (e *Engine) createGroup(infos []engine.RigidBodyInfo, isBundle bool) (engine.Ptr, error) {
	bodies := make([]*body, len(infos))
	for i, info := range infos {
		s, ok := e.shapes[info.Shape]
		if !ok {
			return 0, fmt.Errorf("%w: shape %d for body %d", ErrUnknownPointer, info.Shape, i)
		}
		bodies[i] = newBody(i, s, info)
	}

	g := &group{isBundle: isBundle, bodies: bodies}
	region := g.regionSize()

	var allocated []engine.Ptr
	alloc := func(size int) (engine.Ptr, error) {
		ptr, err := e.mem.Allocate(size)
		if err != nil {
			for _, p := range allocated {
				e.mem.Deallocate(p, region)
			}
			return 0, err
		}
		allocated = append(allocated, ptr)
		return ptr, nil
	}

	var err error
	if g.motionStates, err = alloc(region); err != nil {
		return 0, err
	}
	if g.buffered[0], err = alloc(region); err != nil {
		return 0, err
	}
	if g.buffered[1], err = alloc(region); err != nil {
		return 0, err
	}
	if g.worldTransforms, err = alloc(region); err != nil {
		return 0, err
	}
	// kinematic states are padded to the region size so that every block of
	// the group can be released with one size
	if g.kinematicStates, err = alloc(region); err != nil {
		return 0, err
	}
	g.ptr = g.motionStates

	for i, b := range bodies {
		copy(g.motionState(e.mem, i), b.transform[:])
		copy(g.worldTransform(e.mem, i), b.transform[:])
		b.shape.users++
	}

	e.groups[g.ptr] = g
	return g.ptr, nil
}

func (e *Engine) DestroyRigidBody(ptr engine.Ptr) {
	e.destroyGroup(ptr)
}

func (e *Engine) DestroyRigidBodyBundle(ptr engine.Ptr) {
	e.destroyGroup(ptr)
}

func (e *Engine) destroyGroup(ptr engine.Ptr) {
	g := e.group(ptr)
	for _, w := range e.worlds {
		w.dropGroup(e.mem, g)
	}
	for _, b := range g.bodies {
		b.shape.users--
	}

	region := g.regionSize()
	for _, p := range []engine.Ptr{g.motionStates, g.buffered[0], g.buffered[1], g.worldTransforms, g.kinematicStates} {
		e.mem.Deallocate(p, region)
	}
	delete(e.groups, ptr)
}

func (e *Engine) group(ptr engine.Ptr) *group {
	g, ok := e.groups[ptr]
	if !ok {
		panic(fmt.Sprintf("%v: rigid body %d", ErrUnknownPointer, ptr))
	}
	return g
}

func (e *Engine) body(ptr engine.Ptr, index int) (*group, *body) {
	g := e.group(ptr)
	if index < 0 || index >= g.count() {
		panic(fmt.Sprintf("local: index %d out of range for rigid body %d with %d members", index, ptr, g.count()))
	}
	return g, g.bodies[index]
}

func (e *Engine) RigidBodyGetMotionStatePtr(ptr engine.Ptr) engine.Ptr {
	return e.group(ptr).motionStates
}

func (e *Engine) RigidBodyGetBufferedMotionStatePtr(ptr engine.Ptr) engine.Ptr {
	return e.group(ptr).publishedPtr()
}

func (e *Engine) RigidBodyGetWorldTransformPtr(ptr engine.Ptr, index int) engine.Ptr {
	g, b := e.body(ptr, index)
	if !b.isDynamic() {
		return 0
	}
	return g.worldTransforms + engine.Ptr(index*engine.MotionStateSize)
}

func (e *Engine) RigidBodyGetKinematicStatePtr(ptr engine.Ptr) engine.Ptr {
	return e.group(ptr).kinematicStates
}

func (e *Engine) RigidBodySetDamping(ptr engine.Ptr, index int, linear, angular float32) {
	_, b := e.body(ptr, index)
	b.linearDamping = linear
	b.angularDamping = angular
}

func (e *Engine) RigidBodyGetLinearDamping(ptr engine.Ptr, index int) float32 {
	_, b := e.body(ptr, index)
	return b.linearDamping
}

func (e *Engine) RigidBodyGetAngularDamping(ptr engine.Ptr, index int) float32 {
	_, b := e.body(ptr, index)
	return b.angularDamping
}

func (e *Engine) RigidBodySetMassProps(ptr engine.Ptr, index int, mass float32, localInertia mgl32.Vec3) {
	_, b := e.body(ptr, index)
	if !b.isDynamic() {
		return
	}
	b.setMassProps(mass, localInertia)
}

func (e *Engine) RigidBodyGetMass(ptr engine.Ptr, index int) float32 {
	_, b := e.body(ptr, index)
	return b.mass
}

func (e *Engine) RigidBodyGetLocalInertia(ptr engine.Ptr, index int) mgl32.Vec3 {
	_, b := e.body(ptr, index)
	return b.localInertia
}

func (e *Engine) RigidBodySetLinearVelocity(ptr engine.Ptr, index int, v mgl32.Vec3) {
	_, b := e.body(ptr, index)
	b.linearVelocity = v
}

func (e *Engine) RigidBodyGetLinearVelocity(ptr engine.Ptr, index int) mgl32.Vec3 {
	_, b := e.body(ptr, index)
	return b.linearVelocity
}

func (e *Engine) RigidBodySetAngularVelocity(ptr engine.Ptr, index int, v mgl32.Vec3) {
	_, b := e.body(ptr, index)
	b.angularVelocity = v
}

func (e *Engine) RigidBodyGetAngularVelocity(ptr engine.Ptr, index int) mgl32.Vec3 {
	_, b := e.body(ptr, index)
	return b.angularVelocity
}

func (e *Engine) RigidBodySetLinearFactor(ptr engine.Ptr, index int, f mgl32.Vec3) {
	_, b := e.body(ptr, index)
	b.linearFactor = f
}

func (e *Engine) RigidBodySetAngularFactor(ptr engine.Ptr, index int, f mgl32.Vec3) {
	_, b := e.body(ptr, index)
	b.angularFactor = f
}

func (e *Engine) RigidBodySetFriction(ptr engine.Ptr, index int, friction float32) {
	_, b := e.body(ptr, index)
	b.friction = friction
}

func (e *Engine) RigidBodySetRestitution(ptr engine.Ptr, index int, restitution float32) {
	_, b := e.body(ptr, index)
	b.restitution = restitution
}

func (e *Engine) RigidBodyApplyImpulse(ptr engine.Ptr, index int, impulse, relativePosition mgl32.Vec3) {
	g, b := e.body(ptr, index)
	b.applyImpulse(g.transform(e.mem, index), impulse, relativePosition)
}

func (e *Engine) RigidBodyApplyCentralForce(ptr engine.Ptr, index int, force mgl32.Vec3) {
	_, b := e.body(ptr, index)
	b.applyCentralForce(force)
}

func (e *Engine) RigidBodyGetTotalForce(ptr engine.Ptr, index int) mgl32.Vec3 {
	_, b := e.body(ptr, index)
	return b.accumulatedForce
}

func (e *Engine) RigidBodyTranslate(ptr engine.Ptr, index int, offset mgl32.Vec3) {
	g, b := e.body(ptr, index)
	if b.isDynamic() {
		wt := g.worldTransform(e.mem, index)
		wt[12] += offset[0]
		wt[13] += offset[1]
		wt[14] += offset[2]
		copy(g.motionState(e.mem, index), wt)
		return
	}
	b.transform[12] += offset[0]
	b.transform[13] += offset[1]
	b.transform[14] += offset[2]
	copy(g.motionState(e.mem, index), b.transform[:])
}

// ============================================================================
// Worlds
// ============================================================================

func (e *Engine) CreateMultiPhysicsWorld(gravity mgl32.Vec3, preserveBackBuffer bool) (engine.Ptr, error) {
	ptr, err := e.mem.Allocate(engine.Alignment)
	if err != nil {
		return 0, err
	}
	e.worlds[ptr] = newMultiWorld(ptr, gravity, preserveBackBuffer)
	return ptr, nil
}

func (e *Engine) DestroyMultiPhysicsWorld(ptr engine.Ptr) {
	w := e.world(ptr)
	for _, sw := range w.worlds {
		for _, g := range sw.groups {
			g.world = nil
			g.setBuffering(e.mem, false)
		}
	}
	for _, g := range w.globals {
		g.world = nil
		g.global = false
		g.setBuffering(e.mem, false)
	}
	delete(e.worlds, ptr)
	e.mem.Deallocate(ptr, engine.Alignment)
}

func (e *Engine) world(ptr engine.Ptr) *multiWorld {
	w, ok := e.worlds[ptr]
	if !ok {
		panic(fmt.Sprintf("%v: world %d", ErrUnknownPointer, ptr))
	}
	return w
}

// WorldCount returns the number of live sub-worlds, for diagnostics.
func (e *Engine) WorldCount(ptr engine.Ptr) int {
	return len(e.world(ptr).worlds)
}

func (e *Engine) MultiPhysicsWorldSetGravity(ptr engine.Ptr, gravity mgl32.Vec3) {
	e.world(ptr).gravity = gravity
}

func (e *Engine) MultiPhysicsWorldAddRigidBody(ptr engine.Ptr, worldID int, body engine.Ptr) {
	e.world(ptr).addGroup(e.mem, worldID, e.group(body))
}

func (e *Engine) MultiPhysicsWorldRemoveRigidBody(ptr engine.Ptr, worldID int, body engine.Ptr) {
	e.world(ptr).removeGroup(e.mem, worldID, e.group(body))
}

func (e *Engine) MultiPhysicsWorldAddRigidBodyBundle(ptr engine.Ptr, worldID int, bundle engine.Ptr) {
	e.MultiPhysicsWorldAddRigidBody(ptr, worldID, bundle)
}

func (e *Engine) MultiPhysicsWorldRemoveRigidBodyBundle(ptr engine.Ptr, worldID int, bundle engine.Ptr) {
	e.MultiPhysicsWorldRemoveRigidBody(ptr, worldID, bundle)
}

func (e *Engine) MultiPhysicsWorldAddRigidBodyToGlobal(ptr engine.Ptr, body engine.Ptr) {
	e.world(ptr).addGlobal(e.mem, e.group(body))
}

func (e *Engine) MultiPhysicsWorldRemoveRigidBodyFromGlobal(ptr engine.Ptr, body engine.Ptr) {
	e.world(ptr).removeGlobal(e.mem, e.group(body))
}

func (e *Engine) MultiPhysicsWorldAddRigidBodyBundleToGlobal(ptr engine.Ptr, bundle engine.Ptr) {
	e.MultiPhysicsWorldAddRigidBodyToGlobal(ptr, bundle)
}

func (e *Engine) MultiPhysicsWorldRemoveRigidBodyBundleFromGlobal(ptr engine.Ptr, bundle engine.Ptr) {
	e.MultiPhysicsWorldRemoveRigidBodyFromGlobal(ptr, bundle)
}

func (e *Engine) MultiPhysicsWorldAddRigidBodyShadow(ptr engine.Ptr, worldID int, body engine.Ptr) {
	e.world(ptr).addShadow(e.mem, worldID, e.group(body))
}

func (e *Engine) MultiPhysicsWorldRemoveRigidBodyShadow(ptr engine.Ptr, worldID int, body engine.Ptr) {
	e.world(ptr).removeShadow(worldID, e.group(body))
}

func (e *Engine) MultiPhysicsWorldAddRigidBodyBundleShadow(ptr engine.Ptr, worldID int, bundle engine.Ptr) {
	e.MultiPhysicsWorldAddRigidBodyShadow(ptr, worldID, bundle)
}

func (e *Engine) MultiPhysicsWorldRemoveRigidBodyBundleShadow(ptr engine.Ptr, worldID int, bundle engine.Ptr) {
	e.MultiPhysicsWorldRemoveRigidBodyShadow(ptr, worldID, bundle)
}

func (e *Engine) MultiPhysicsWorldGetShadowTransform(ptr engine.Ptr, worldID int, body engine.Ptr, index int) (mgl32.Mat4, bool) {
	sw, ok := e.world(ptr).worlds[worldID]
	if !ok {
		return mgl32.Mat4{}, false
	}
	s, ok := sw.shadows[e.group(body)]
	if !ok || index < 0 || index >= len(s.transforms) {
		return mgl32.Mat4{}, false
	}
	return s.transforms[index], true
}

func (e *Engine) MultiPhysicsWorldAddConstraint(ptr engine.Ptr, worldID int, constraint engine.Ptr, disableCollisionsBetweenLinkedBodies bool) {
	c := e.constraint(constraint)
	e.world(ptr).subWorld(worldID).constraints[c] = constraintLink{
		constraint:                           c,
		disableCollisionsBetweenLinkedBodies: disableCollisionsBetweenLinkedBodies,
	}
}

func (e *Engine) MultiPhysicsWorldRemoveConstraint(ptr engine.Ptr, worldID int, constraint engine.Ptr) {
	w := e.world(ptr)
	if sw, ok := w.worlds[worldID]; ok {
		delete(sw.constraints, e.constraint(constraint))
		w.release(worldID)
	}
}

func (e *Engine) MultiPhysicsWorldUseMotionStateBuffer(ptr engine.Ptr, use bool) {
	e.world(ptr).setUseMotionStateBuffer(e.mem, use)
}

func (e *Engine) MultiPhysicsWorldStepSimulation(ptr engine.Ptr, timeStep float32, maxSubSteps int, fixedTimeStep float32) {
	w := e.world(ptr)
	e.lock.Lock()
	defer e.lock.Unlock()
	w.step(e.mem, e.workers, timeStep, maxSubSteps, fixedTimeStep)
}

func (e *Engine) MultiPhysicsWorldStepSimulationAsync(ptr engine.Ptr, timeStep float32, maxSubSteps int, fixedTimeStep float32) (engine.Future, bool) {
	if !e.HasWorker() {
		return nil, false
	}
	w := e.world(ptr)

	e.lock.Lock()
	done := make(chan struct{})
	e.jobs <- stepJob{world: w, timeStep: timeStep, maxSubSteps: maxSubSteps, fixedTimeStep: fixedTimeStep, done: done}
	return done, true
}

// ============================================================================
// Constraints
// ============================================================================

func (e *Engine) CreateConstraint(info engine.ConstraintInfo) (engine.Ptr, error) {
	c := &constraint{info: info}
	if info.Bundle != 0 {
		g, ok := e.groups[info.Bundle]
		if !ok {
			return 0, fmt.Errorf("%w: bundle %d", ErrUnknownPointer, info.Bundle)
		}
		if info.IndexA < 0 || info.IndexA >= g.count() || info.IndexB < 0 || info.IndexB >= g.count() {
			return 0, fmt.Errorf("local: constraint indices %d, %d out of range for %d members", info.IndexA, info.IndexB, g.count())
		}
		c.groups = []*group{g}
	} else {
		a, okA := e.groups[info.BodyA]
		b, okB := e.groups[info.BodyB]
		if !okA || !okB {
			return 0, fmt.Errorf("%w: constraint bodies %d, %d", ErrUnknownPointer, info.BodyA, info.BodyB)
		}
		c.groups = []*group{a, b}
	}

	ptr, err := e.mem.Allocate(engine.Alignment)
	if err != nil {
		return 0, err
	}
	e.constraints[ptr] = c
	return ptr, nil
}

func (e *Engine) DestroyConstraint(ptr engine.Ptr) {
	c := e.constraint(ptr)
	for _, w := range e.worlds {
		for id, sw := range w.worlds {
			delete(sw.constraints, c)
			w.release(id)
		}
	}
	delete(e.constraints, ptr)
	e.mem.Deallocate(ptr, engine.Alignment)
}

func (e *Engine) constraint(ptr engine.Ptr) *constraint {
	c, ok := e.constraints[ptr]
	if !ok {
		panic(fmt.Sprintf("%v: constraint %d", ErrUnknownPointer, ptr))
	}
	return c
}

func (e *Engine) ConstraintSetLinearLowerLimit(ptr engine.Ptr, limit mgl32.Vec3) {
	e.constraint(ptr).linearLowerLimit = limit
}

func (e *Engine) ConstraintSetLinearUpperLimit(ptr engine.Ptr, limit mgl32.Vec3) {
	e.constraint(ptr).linearUpperLimit = limit
}

func (e *Engine) ConstraintSetAngularLowerLimit(ptr engine.Ptr, limit mgl32.Vec3) {
	e.constraint(ptr).angularLowerLimit = limit
}

func (e *Engine) ConstraintSetAngularUpperLimit(ptr engine.Ptr, limit mgl32.Vec3) {
	e.constraint(ptr).angularUpperLimit = limit
}

func (e *Engine) ConstraintEnableSpring(ptr engine.Ptr, dof int, enable bool) {
	if validDof(dof) {
		e.constraint(ptr).springEnabled[dof] = enable
	}
}

func (e *Engine) ConstraintSetStiffness(ptr engine.Ptr, dof int, stiffness float32) {
	if validDof(dof) {
		e.constraint(ptr).stiffness[dof] = stiffness
	}
}

func (e *Engine) ConstraintSetDamping(ptr engine.Ptr, dof int, damping float32) {
	if validDof(dof) {
		e.constraint(ptr).damping[dof] = damping
	}
}

func (e *Engine) ConstraintSetEquilibriumPoint(ptr engine.Ptr, dof int, value float32) {
	if validDof(dof) {
		e.constraint(ptr).equilibrium[dof] = value
	}
}

// Springs reports the spring configuration of one degree of freedom, for
// inspection in tests and tools.
func (e *Engine) Springs(ptr engine.Ptr, dof int) (enabled bool, stiffness, damping, equilibrium float32) {
	c := e.constraint(ptr)
	if !validDof(dof) {
		return false, 0, 0, 0
	}
	return c.springEnabled[dof], c.stiffness[dof], c.damping[dof], c.equilibrium[dof]
}

// Limits reports the configured limits.
func (e *Engine) Limits(ptr engine.Ptr) (linearLower, linearUpper, angularLower, angularUpper mgl32.Vec3) {
	c := e.constraint(ptr)
	return c.linearLowerLimit, c.linearUpperLimit, c.angularLowerLimit, c.angularUpperLimit
}

var _ engine.Engine = (*Engine)(nil)

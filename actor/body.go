package actor

import (
	"fmt"

	"github.com/akmonengine/feathersync/buffer"
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// RigidBodyConstructionInfo describes one body. A zero Transform means
// identity; a zero LocalInertia is derived from the shape by the engine.
type RigidBodyConstructionInfo struct {
	Shape      *Shape
	MotionType engine.MotionType
	Transform  mgl32.Mat4

	Mass           float32
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

func (info RigidBodyConstructionInfo) engineInfo(shape engine.Ptr) engine.RigidBodyInfo {
	transform := info.Transform
	if transform == (mgl32.Mat4{}) {
		transform = mgl32.Ident4()
	}
	return engine.RigidBodyInfo{
		Shape:               shape,
		MotionType:          info.MotionType,
		Transform:           transform,
		Mass:                info.Mass,
		LocalInertia:        info.LocalInertia,
		LinearDamping:       info.LinearDamping,
		AngularDamping:      info.AngularDamping,
		Friction:            info.Friction,
		Restitution:         info.Restitution,
		CollisionGroup:      info.CollisionGroup,
		CollisionMask:       info.CollisionMask,
		NoContactResponse:   info.NoContactResponse,
		DisableDeactivation: info.DisableDeactivation,
	}
}

// bodySet is the state shared by RigidBody (one member) and RigidBodyBundle.
type bodySet struct {
	host     *Host
	id       EntityID
	handle   Handle
	isBundle bool

	shapes      []*Shape
	motionTypes []engine.MotionType

	// working is the motion state region the host writes. motionStates is
	// what it reads: the same region, or the published slots while
	// double-buffered.
	working         []float32
	motionStates    *buffer.DoubleBuffer
	spans           []*buffer.Span
	worldTransforms [][]float32
	kinematicStates []byte
	backBuffer      bool

	impl evaluator

	world   World
	worldID int
}

func newBodySet(host *Host, infos []RigidBodyConstructionInfo, isBundle bool) (*bodySet, error) {
	if len(infos) == 0 {
		return nil, fmt.Errorf("actor: a bundle needs at least one body")
	}

	engineInfos := make([]engine.RigidBodyInfo, len(infos))
	shapes := make([]*Shape, len(infos))
	motionTypes := make([]engine.MotionType, len(infos))
	for i, info := range infos {
		if info.Shape == nil {
			return nil, fmt.Errorf("actor: body %d has no shape", i)
		}
		if err := host.Check(info.Shape.host); err != nil {
			return nil, fmt.Errorf("actor: body %d shape: %w", i, err)
		}
		shapePtr, err := info.Shape.Ptr()
		if err != nil {
			return nil, fmt.Errorf("actor: body %d shape: %w", i, err)
		}
		engineInfos[i] = info.engineInfo(shapePtr)
		shapes[i] = info.Shape
		motionTypes[i] = info.MotionType
	}

	eng := host.engine
	var ptr engine.Ptr
	var err error
	release := eng.DestroyRigidBody
	if isBundle {
		ptr, err = eng.CreateRigidBodyBundle(engineInfos)
		release = eng.DestroyRigidBodyBundle
	} else {
		ptr, err = eng.CreateRigidBody(engineInfos[0])
	}
	if err != nil {
		return nil, fmt.Errorf("actor: create rigid body: %w", err)
	}

	count := len(infos)
	motionStatePtr := eng.RigidBodyGetMotionStatePtr(ptr)
	s := &bodySet{
		host:            host,
		handle:          NewHandle(ptr, release),
		isBundle:        isBundle,
		shapes:          shapes,
		motionTypes:     motionTypes,
		working:         host.memory.Float32s(motionStatePtr, count*engine.MotionStateFloats),
		motionStates:    buffer.New(host.memory, motionStatePtr, count*engine.MotionStateFloats),
		spans:           make([]*buffer.Span, count),
		worldTransforms: make([][]float32, count),
		kinematicStates: host.memory.Bytes(eng.RigidBodyGetKinematicStatePtr(ptr), count),
		impl:            newEvaluator(host.evaluation, count),
	}
	for i := 0; i < count; i++ {
		s.spans[i] = s.motionStates.Span(i*engine.MotionStateFloats, engine.MotionStateFloats)
		if motionTypes[i] == engine.MotionTypeDynamic {
			wt := eng.RigidBodyGetWorldTransformPtr(ptr, i)
			s.worldTransforms[i] = host.memory.Float32s(wt, engine.WorldTransformFloats)
		}
		shapes[i].addReference()
	}
	if host.useBackBuffer {
		s.useBackBuffer(true)
	}
	return s, nil
}

func (s *bodySet) count() int {
	return len(s.motionTypes)
}

// check validates a member index on a live body.
func (s *bodySet) check(i int) error {
	if s.handle.IsDisposed() {
		return ErrDisposed
	}
	if i < 0 || i >= s.count() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, s.count())
	}
	return nil
}

// waitForEngine guards access to state the engine mutates while stepping.
// Unshared bodies cannot be stepped, so they skip the lock.
func (s *bodySet) waitForEngine() {
	if s.handle.HasReferences() {
		s.host.lock.Wait()
	}
}

func (s *bodySet) readTransform(i int, shouldSync bool) mgl32.Mat4 {
	if shouldSync && s.handle.HasReferences() {
		s.host.lock.Wait()
	}
	var m mgl32.Mat4
	copy(m[:], s.spans[i].Front())
	return m
}

func (s *bodySet) engineDamping(i int) (float32, float32) {
	s.waitForEngine()
	eng := s.host.engine
	return eng.RigidBodyGetLinearDamping(s.handle.ptr, i), eng.RigidBodyGetAngularDamping(s.handle.ptr, i)
}

func (s *bodySet) writeTransform(i int, m mgl32.Mat4, state engine.KinematicState) {
	copy(s.working[i*engine.MotionStateFloats:(i+1)*engine.MotionStateFloats], m[:])
	s.kinematicStates[i] = byte(state)
}

func (s *bodySet) writeDynamicTransform(i int, m mgl32.Mat4) {
	copy(s.worldTransforms[i], m[:])
	copy(s.working[i*engine.MotionStateFloats:(i+1)*engine.MotionStateFloats], m[:])
}

// ============================================================================
// Indexed operations, wrapped by RigidBody and RigidBodyBundle
// ============================================================================

func (s *bodySet) setTransformMatrix(i int, m mgl32.Mat4, state engine.KinematicState) error {
	if err := s.check(i); err != nil {
		return err
	}
	if s.motionTypes[i] != engine.MotionTypeKinematic {
		return fmt.Errorf("%w: transform of a %s body is driven by the engine", ErrMotionType, s.motionTypes[i])
	}
	s.impl.setTransform(s, i, m, state)
	return nil
}

func (s *bodySet) setDynamicTransformMatrix(i int, m mgl32.Mat4, fallbackToSetTransformMatrix bool) error {
	if err := s.check(i); err != nil {
		return err
	}
	switch {
	case s.motionTypes[i] == engine.MotionTypeDynamic:
		s.impl.setDynamicTransform(s, i, m)
		return nil
	case fallbackToSetTransformMatrix:
		return s.setTransformMatrix(i, m, engine.KinematicWaitForChange)
	default:
		return fmt.Errorf("%w: dynamic transform on a %s body", ErrMotionType, s.motionTypes[i])
	}
}

func (s *bodySet) translate(i int, offset mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.translate(s, i, offset)
	return nil
}

func (s *bodySet) setDamping(i int, linear, angular float32) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setDamping(s, i, linear, angular)
	return nil
}

func (s *bodySet) setMassProps(i int, mass float32, localInertia mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	if s.motionTypes[i] != engine.MotionTypeDynamic {
		return fmt.Errorf("%w: mass of a %s body", ErrMotionType, s.motionTypes[i])
	}
	s.impl.setMassProps(s, i, mass, localInertia)
	return nil
}

func (s *bodySet) setLinearVelocity(i int, v mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setLinearVelocity(s, i, v)
	return nil
}

func (s *bodySet) setAngularVelocity(i int, v mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setAngularVelocity(s, i, v)
	return nil
}

func (s *bodySet) setLinearFactor(i int, f mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setLinearFactor(s, i, f)
	return nil
}

func (s *bodySet) setAngularFactor(i int, f mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setAngularFactor(s, i, f)
	return nil
}

func (s *bodySet) setFriction(i int, friction float32) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setFriction(s, i, friction)
	return nil
}

func (s *bodySet) setRestitution(i int, restitution float32) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.setRestitution(s, i, restitution)
	return nil
}

func (s *bodySet) applyImpulse(i int, impulse, relativePosition mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.applyImpulse(s, i, impulse, relativePosition)
	return nil
}

func (s *bodySet) applyCentralForce(i int, force mgl32.Vec3) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.impl.applyCentralForce(s, i, force)
	return nil
}

func (s *bodySet) transformMatrixToRef(i int, result *mgl32.Mat4) error {
	if err := s.check(i); err != nil {
		return err
	}
	*result = s.impl.transform(s, i)
	return nil
}

func (s *bodySet) transformMatrixToArray(i int, dst []float32, offset int) error {
	if err := s.check(i); err != nil {
		return err
	}
	if offset < 0 || offset+engine.MotionStateFloats > len(dst) {
		return fmt.Errorf("%w: %d floats at offset %d, array holds %d", ErrIndexOutOfRange, engine.MotionStateFloats, offset, len(dst))
	}
	m := s.impl.transform(s, i)
	copy(dst[offset:], m[:])
	return nil
}

func (s *bodySet) damping(i int) (float32, float32, error) {
	if err := s.check(i); err != nil {
		return 0, 0, err
	}
	linear, angular := s.impl.damping(s, i)
	return linear, angular, nil
}

func (s *bodySet) mass(i int) (float32, error) {
	if err := s.check(i); err != nil {
		return 0, err
	}
	return s.impl.mass(s, i), nil
}

func (s *bodySet) linearVelocity(i int) (mgl32.Vec3, error) {
	if err := s.check(i); err != nil {
		return mgl32.Vec3{}, err
	}
	return s.impl.linearVelocity(s, i), nil
}

func (s *bodySet) angularVelocity(i int) (mgl32.Vec3, error) {
	if err := s.check(i); err != nil {
		return mgl32.Vec3{}, err
	}
	return s.impl.angularVelocity(s, i), nil
}

func (s *bodySet) totalForce(i int) (mgl32.Vec3, error) {
	if err := s.check(i); err != nil {
		return mgl32.Vec3{}, err
	}
	return s.impl.totalForce(s, i), nil
}

// ============================================================================
// Lifecycle and references
// ============================================================================

func (s *bodySet) EntityID() EntityID       { return s.id }
func (s *bodySet) Host() *Host              { return s.host }
func (s *bodySet) IsDisposed() bool         { return s.handle.IsDisposed() }
func (s *bodySet) Ptr() (engine.Ptr, error) { return s.handle.Ptr() }
func (s *bodySet) ReferenceCount() int      { return s.handle.ReferenceCount() }
func (s *bodySet) ShadowCount() int         { return s.handle.ShadowCount() }
func (s *bodySet) HasReferences() bool      { return s.handle.HasReferences() }
func (s *bodySet) AddReference()            { s.handle.AddReference() }
func (s *bodySet) RemoveReference()         { s.handle.RemoveReference() }
func (s *bodySet) AddShadowReference()      { s.handle.AddShadowReference() }
func (s *bodySet) RemoveShadowReference()   { s.handle.RemoveShadowReference() }

// EvaluationType reports the strategy currently applied to this body.
func (s *bodySet) EvaluationType() EvaluationType {
	return s.impl.kind()
}

// HasDynamic reports whether any member is dynamic.
func (s *bodySet) HasDynamic() bool {
	for _, t := range s.motionTypes {
		if t == engine.MotionTypeDynamic {
			return true
		}
	}
	return false
}

// WorldReference returns the world owning the body, and the world id of
// the membership (GlobalWorldID for a global one).
func (s *bodySet) WorldReference() (World, int) {
	return s.world, s.worldID
}

// SetWorldReference records the owning world. Setting the same membership
// again is a no-op; any other membership fails with ErrAlreadyAssigned.
func (s *bodySet) SetWorldReference(w World, worldID int) error {
	if s.handle.IsDisposed() {
		return ErrDisposed
	}
	if err := s.host.Check(w.Host()); err != nil {
		return err
	}
	if s.world != nil {
		if s.world == w && s.worldID == worldID {
			return nil
		}
		return fmt.Errorf("%w: world id %d", ErrAlreadyAssigned, s.worldID)
	}
	s.world = w
	s.worldID = worldID
	return nil
}

func (s *bodySet) ClearWorldReference() {
	s.world = nil
	s.worldID = 0
}

func (s *bodySet) NeedsCommit() bool {
	return !s.handle.IsDisposed() && s.impl.needsCommit()
}

// CommitToEngine flushes staged writes. The caller has waited for the step
// lock.
func (s *bodySet) CommitToEngine() error {
	if s.handle.IsDisposed() {
		return ErrDisposed
	}
	s.impl.commit(s)
	return nil
}

// SwitchEvaluation replaces the strategy. Pending staged writes are
// committed first so that none is lost.
func (s *bodySet) SwitchEvaluation(t EvaluationType) error {
	if s.handle.IsDisposed() {
		return ErrDisposed
	}
	if s.impl.kind() == t {
		return nil
	}
	if s.impl.needsCommit() {
		s.host.lock.Wait()
		s.impl.commit(s)
	}
	s.impl = newEvaluator(t, s.count())
	return nil
}

// UseBackBuffer moves reads to the engine's published motion states, or
// back to the working region.
func (s *bodySet) UseBackBuffer(enabled bool) error {
	if s.handle.IsDisposed() {
		return ErrDisposed
	}
	s.useBackBuffer(enabled)
	return nil
}

func (s *bodySet) useBackBuffer(enabled bool) {
	s.backBuffer = enabled
	if enabled {
		s.motionStates.ForceFront(s.host.engine.RigidBodyGetBufferedMotionStatePtr(s.handle.ptr))
		return
	}
	s.motionStates.ForceFront(s.host.engine.RigidBodyGetMotionStatePtr(s.handle.ptr))
}

// SyncBuffer follows the slot the engine published last. Spans notice the
// flip on their next read.
func (s *bodySet) SyncBuffer() error {
	if s.handle.IsDisposed() {
		return ErrDisposed
	}
	if s.backBuffer {
		s.motionStates.Sync(s.host.engine.RigidBodyGetBufferedMotionStatePtr(s.handle.ptr))
	}
	return nil
}

// UsingBackBuffer reports whether reads come from published slots.
func (s *bodySet) UsingBackBuffer() bool {
	return s.backBuffer
}

// Dispose waits for the engine, destroys the body and releases its shapes.
// It fails with ErrInUse while a world, constraint or shadow references it.
func (s *bodySet) Dispose() error {
	if s.handle.IsDisposed() {
		return nil
	}
	if s.handle.HasReferences() {
		return s.handle.Dispose()
	}

	s.host.lock.Wait()
	if err := s.handle.Dispose(); err != nil {
		return err
	}
	for _, shape := range s.shapes {
		shape.removeReference()
	}
	s.world = nil
	s.host.Unregister(s.id)
	return nil
}

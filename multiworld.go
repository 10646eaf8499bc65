package feathersync

import (
	"errors"
	"fmt"

	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/constraint"
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// member is what *actor.RigidBody and *actor.RigidBodyBundle have in common
// as world participants.
type member interface {
	actor.Entity
	Host() *actor.Host
	Ptr() (engine.Ptr, error)
	HasDynamic() bool
	EvaluationType() actor.EvaluationType
	AddReference()
	RemoveReference()
	AddShadowReference()
	RemoveShadowReference()
	SetWorldReference(w actor.World, worldID int) error
	ClearWorldReference()
}

type membership struct {
	entity  member
	bundle  bool
	worldID int
}

type shadowKey struct {
	id      actor.EntityID
	worldID int
}

type constraintMembership struct {
	constraint *constraint.Constraint
	worldID    int
}

// MultiWorld is a set of worlds addressed by id inside one engine object.
// A body is owned by at most one world id, or is global (present in all of
// them, non dynamic only). A shadow mirrors an owned body into another world
// id as a kinematic read only copy.
//
// Every mutation validates the bookkeeping first, then waits for the step
// lock before calling the engine.
type MultiWorld struct {
	runtime *Runtime
	host    *actor.Host
	id      actor.EntityID
	handle  actor.Handle

	owned       map[actor.EntityID]membership
	globals     map[actor.EntityID]membership
	shadows     map[shadowKey]membership
	constraints map[actor.EntityID]constraintMembership
}

func newMultiWorld(r *Runtime, gravity mgl32.Vec3, preserveBackBuffer bool) (*MultiWorld, error) {
	eng := r.host.Engine()
	ptr, err := eng.CreateMultiPhysicsWorld(gravity, preserveBackBuffer)
	if err != nil {
		return nil, fmt.Errorf("feathersync: create world: %w", err)
	}

	w := &MultiWorld{
		runtime:     r,
		host:        r.host,
		handle:      actor.NewHandle(ptr, eng.DestroyMultiPhysicsWorld),
		owned:       make(map[actor.EntityID]membership),
		globals:     make(map[actor.EntityID]membership),
		shadows:     make(map[shadowKey]membership),
		constraints: make(map[actor.EntityID]constraintMembership),
	}
	w.id = r.host.Register(w)
	return w, nil
}

func (w *MultiWorld) Host() *actor.Host        { return w.host }
func (w *MultiWorld) EntityID() actor.EntityID { return w.id }
func (w *MultiWorld) IsDisposed() bool         { return w.handle.IsDisposed() }
func (w *MultiWorld) Ptr() (engine.Ptr, error) { return w.handle.Ptr() }
func (w *MultiWorld) BodyCount() int           { return len(w.owned) }
func (w *MultiWorld) GlobalCount() int         { return len(w.globals) }
func (w *MultiWorld) ShadowCount() int         { return len(w.shadows) }
func (w *MultiWorld) ConstraintCount() int     { return len(w.constraints) }
func (w *MultiWorld) engine() engine.Engine    { return w.host.Engine() }
func (w *MultiWorld) wait()                    { w.host.Lock().Wait() }
func (w *MultiWorld) shadowsOf(id actor.EntityID) int {
	n := 0
	for key := range w.shadows {
		if key.id == id {
			n++
		}
	}
	return n
}

// prepare checks the world and the entity, and returns both pointers.
func (w *MultiWorld) prepare(e member) (world, entity engine.Ptr, err error) {
	world, err = w.handle.Ptr()
	if err != nil {
		return 0, 0, fmt.Errorf("feathersync: world: %w", err)
	}
	if err := w.host.Check(e.Host()); err != nil {
		return 0, 0, err
	}
	entity, err = e.Ptr()
	if err != nil {
		return 0, 0, err
	}
	return world, entity, nil
}

// ============================================================================
// Owning membership
// ============================================================================

// AddRigidBody makes worldID the owner of body. It returns false when the
// body is already owned by worldID.
func (w *MultiWorld) AddRigidBody(worldID int, body *actor.RigidBody) (bool, error) {
	return w.add(worldID, membership{entity: body, worldID: worldID})
}

// RemoveRigidBody returns false when body is not owned by worldID.
func (w *MultiWorld) RemoveRigidBody(worldID int, body *actor.RigidBody) (bool, error) {
	return w.remove(worldID, body)
}

func (w *MultiWorld) AddRigidBodyBundle(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return w.add(worldID, membership{entity: bundle, bundle: true, worldID: worldID})
}

func (w *MultiWorld) RemoveRigidBodyBundle(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return w.remove(worldID, bundle)
}

func (w *MultiWorld) add(worldID int, m membership) (bool, error) {
	if worldID < 0 {
		return false, fmt.Errorf("feathersync: world id %d must not be negative", worldID)
	}
	worldPtr, ptr, err := w.prepare(m.entity)
	if err != nil {
		return false, err
	}

	id := m.entity.EntityID()
	if owned, ok := w.owned[id]; ok {
		if owned.worldID == worldID {
			return false, nil
		}
		return false, fmt.Errorf("%w: entity %d is owned by world %d", actor.ErrInvariant, id, owned.worldID)
	}
	if _, ok := w.globals[id]; ok {
		return false, fmt.Errorf("%w: entity %d is global", actor.ErrInvariant, id)
	}
	if _, ok := w.shadows[shadowKey{id: id, worldID: worldID}]; ok {
		return false, fmt.Errorf("%w: entity %d is a shadow in world %d", actor.ErrInvariant, id, worldID)
	}
	if err := m.entity.SetWorldReference(w, worldID); err != nil {
		return false, err
	}
	w.owned[id] = m
	m.entity.AddReference()

	w.wait()
	if m.bundle {
		w.engine().MultiPhysicsWorldAddRigidBodyBundle(worldPtr, worldID, ptr)
	} else {
		w.engine().MultiPhysicsWorldAddRigidBody(worldPtr, worldID, ptr)
	}
	return true, nil
}

func (w *MultiWorld) remove(worldID int, e member) (bool, error) {
	worldPtr, ptr, err := w.prepare(e)
	if err != nil {
		return false, err
	}

	id := e.EntityID()
	m, ok := w.owned[id]
	if !ok || m.worldID != worldID {
		return false, nil
	}
	if n := w.shadowsOf(id); n > 0 {
		return false, fmt.Errorf("%w: entity %d still has %d shadows", actor.ErrInvariant, id, n)
	}
	delete(w.owned, id)
	e.ClearWorldReference()
	e.RemoveReference()

	w.wait()
	if m.bundle {
		w.engine().MultiPhysicsWorldRemoveRigidBodyBundle(worldPtr, worldID, ptr)
	} else {
		w.engine().MultiPhysicsWorldRemoveRigidBody(worldPtr, worldID, ptr)
	}
	return true, nil
}

// ============================================================================
// Global membership
// ============================================================================

// AddRigidBodyToGlobal adds a static or kinematic body to every world.
func (w *MultiWorld) AddRigidBodyToGlobal(body *actor.RigidBody) (bool, error) {
	return w.addGlobal(membership{entity: body, worldID: actor.GlobalWorldID})
}

func (w *MultiWorld) RemoveRigidBodyFromGlobal(body *actor.RigidBody) (bool, error) {
	return w.removeGlobal(body)
}

func (w *MultiWorld) AddRigidBodyBundleToGlobal(bundle *actor.RigidBodyBundle) (bool, error) {
	return w.addGlobal(membership{entity: bundle, bundle: true, worldID: actor.GlobalWorldID})
}

func (w *MultiWorld) RemoveRigidBodyBundleFromGlobal(bundle *actor.RigidBodyBundle) (bool, error) {
	return w.removeGlobal(bundle)
}

func (w *MultiWorld) addGlobal(m membership) (bool, error) {
	worldPtr, ptr, err := w.prepare(m.entity)
	if err != nil {
		return false, err
	}

	id := m.entity.EntityID()
	if _, ok := w.globals[id]; ok {
		return false, nil
	}
	if m.entity.HasDynamic() {
		return false, fmt.Errorf("%w: dynamic entity %d cannot be global", actor.ErrInvariant, id)
	}
	if owned, ok := w.owned[id]; ok {
		return false, fmt.Errorf("%w: entity %d is owned by world %d", actor.ErrInvariant, id, owned.worldID)
	}
	if err := m.entity.SetWorldReference(w, actor.GlobalWorldID); err != nil {
		return false, err
	}
	w.globals[id] = m
	m.entity.AddReference()

	w.wait()
	if m.bundle {
		w.engine().MultiPhysicsWorldAddRigidBodyBundleToGlobal(worldPtr, ptr)
	} else {
		w.engine().MultiPhysicsWorldAddRigidBodyToGlobal(worldPtr, ptr)
	}
	return true, nil
}

func (w *MultiWorld) removeGlobal(e member) (bool, error) {
	worldPtr, ptr, err := w.prepare(e)
	if err != nil {
		return false, err
	}

	id := e.EntityID()
	m, ok := w.globals[id]
	if !ok {
		return false, nil
	}
	delete(w.globals, id)
	e.ClearWorldReference()
	e.RemoveReference()

	w.wait()
	if m.bundle {
		w.engine().MultiPhysicsWorldRemoveRigidBodyBundleFromGlobal(worldPtr, ptr)
	} else {
		w.engine().MultiPhysicsWorldRemoveRigidBodyFromGlobal(worldPtr, ptr)
	}
	return true, nil
}

// ============================================================================
// Shadows
// ============================================================================

// AddRigidBodyShadow mirrors a body owned by this MultiWorld into worldID.
// Shadowing the owning world id is a no-op returning false.
func (w *MultiWorld) AddRigidBodyShadow(worldID int, body *actor.RigidBody) (bool, error) {
	return w.addShadow(worldID, body)
}

func (w *MultiWorld) RemoveRigidBodyShadow(worldID int, body *actor.RigidBody) (bool, error) {
	return w.removeShadow(worldID, body)
}

func (w *MultiWorld) AddRigidBodyBundleShadow(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return w.addShadow(worldID, bundle)
}

func (w *MultiWorld) RemoveRigidBodyBundleShadow(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return w.removeShadow(worldID, bundle)
}

func (w *MultiWorld) addShadow(worldID int, e member) (bool, error) {
	if worldID < 0 {
		return false, fmt.Errorf("feathersync: world id %d must not be negative", worldID)
	}
	worldPtr, ptr, err := w.prepare(e)
	if err != nil {
		return false, err
	}

	id := e.EntityID()
	owner, ok := w.owned[id]
	if !ok {
		return false, fmt.Errorf("%w: entity %d must be owned by this world to be shadowed", actor.ErrInvariant, id)
	}
	if owner.worldID == worldID {
		return false, nil
	}
	key := shadowKey{id: id, worldID: worldID}
	if _, ok := w.shadows[key]; ok {
		return false, nil
	}

	w.shadows[key] = membership{entity: e, bundle: owner.bundle, worldID: worldID}
	e.AddShadowReference()
	if e.HasDynamic() {
		w.runtime.dynamicShadowAdded()
	}

	w.wait()
	if owner.bundle {
		w.engine().MultiPhysicsWorldAddRigidBodyBundleShadow(worldPtr, worldID, ptr)
	} else {
		w.engine().MultiPhysicsWorldAddRigidBodyShadow(worldPtr, worldID, ptr)
	}
	return true, nil
}

func (w *MultiWorld) removeShadow(worldID int, e member) (bool, error) {
	worldPtr, ptr, err := w.prepare(e)
	if err != nil {
		return false, err
	}

	key := shadowKey{id: e.EntityID(), worldID: worldID}
	m, ok := w.shadows[key]
	if !ok {
		return false, nil
	}
	delete(w.shadows, key)
	e.RemoveShadowReference()

	w.wait()
	if m.bundle {
		w.engine().MultiPhysicsWorldRemoveRigidBodyBundleShadow(worldPtr, worldID, ptr)
	} else {
		w.engine().MultiPhysicsWorldRemoveRigidBodyShadow(worldPtr, worldID, ptr)
	}
	if e.HasDynamic() {
		w.runtime.dynamicShadowRemoved()
	}
	return true, nil
}

// ShadowTransform reads body as mirrored into worldID. Under buffered
// evaluation it is the front buffer of the owner, which the engine mirrors
// at the end of every step. Staged writes are not visible until the step
// after their commit.
func (w *MultiWorld) ShadowTransform(worldID int, body *actor.RigidBody) (mgl32.Mat4, error) {
	return w.shadowTransform(worldID, body, 0, body.TransformMatrix)
}

func (w *MultiWorld) BundleShadowTransform(worldID int, bundle *actor.RigidBodyBundle, index int) (mgl32.Mat4, error) {
	if index < 0 || index >= bundle.Count() {
		return mgl32.Mat4{}, fmt.Errorf("%w: %d not in [0, %d)", actor.ErrIndexOutOfRange, index, bundle.Count())
	}
	return w.shadowTransform(worldID, bundle, index, func() (mgl32.Mat4, error) {
		return bundle.TransformMatrix(index)
	})
}

func (w *MultiWorld) shadowTransform(worldID int, e member, index int, front func() (mgl32.Mat4, error)) (mgl32.Mat4, error) {
	worldPtr, ptr, err := w.prepare(e)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	if _, ok := w.shadows[shadowKey{id: e.EntityID(), worldID: worldID}]; !ok {
		return mgl32.Mat4{}, fmt.Errorf("%w: entity %d has no shadow in world %d", actor.ErrInvariant, e.EntityID(), worldID)
	}

	if e.EvaluationType() == actor.EvaluationBuffered {
		return front()
	}
	w.wait()
	m, ok := w.engine().MultiPhysicsWorldGetShadowTransform(worldPtr, worldID, ptr, index)
	if !ok {
		return mgl32.Mat4{}, fmt.Errorf("feathersync: engine lost shadow of entity %d in world %d", e.EntityID(), worldID)
	}
	return m, nil
}

// ============================================================================
// Constraints
// ============================================================================

// AddConstraint adds c to worldID. A constraint belongs to one world at a
// time.
func (w *MultiWorld) AddConstraint(worldID int, c *constraint.Constraint, disableCollisionsBetweenLinkedBodies bool) (bool, error) {
	worldPtr, err := w.handle.Ptr()
	if err != nil {
		return false, fmt.Errorf("feathersync: world: %w", err)
	}
	if err := w.host.Check(c.Host()); err != nil {
		return false, err
	}
	ptr, err := c.Ptr()
	if err != nil {
		return false, err
	}

	id := c.EntityID()
	if existing, ok := w.constraints[id]; ok && existing.worldID == worldID {
		return false, nil
	}
	if err := c.SetWorldReference(w, worldID); err != nil {
		return false, err
	}
	w.constraints[id] = constraintMembership{constraint: c, worldID: worldID}
	c.AddReference()

	w.wait()
	w.engine().MultiPhysicsWorldAddConstraint(worldPtr, worldID, ptr, disableCollisionsBetweenLinkedBodies)
	return true, nil
}

func (w *MultiWorld) RemoveConstraint(worldID int, c *constraint.Constraint) (bool, error) {
	worldPtr, err := w.handle.Ptr()
	if err != nil {
		return false, fmt.Errorf("feathersync: world: %w", err)
	}
	ptr, err := c.Ptr()
	if err != nil {
		return false, err
	}

	id := c.EntityID()
	m, ok := w.constraints[id]
	if !ok || m.worldID != worldID {
		return false, nil
	}
	delete(w.constraints, id)
	c.ClearWorldReference()
	c.RemoveReference()

	w.wait()
	w.engine().MultiPhysicsWorldRemoveConstraint(worldPtr, worldID, ptr)
	return true, nil
}

// ============================================================================
// Engine state
// ============================================================================

func (w *MultiWorld) setGravity(gravity mgl32.Vec3) {
	ptr, err := w.handle.Ptr()
	if err != nil {
		return
	}
	w.wait()
	w.engine().MultiPhysicsWorldSetGravity(ptr, gravity)
}

func (w *MultiWorld) useMotionStateBuffer(use bool) {
	ptr, err := w.handle.Ptr()
	if err != nil {
		return
	}
	w.wait()
	w.engine().MultiPhysicsWorldUseMotionStateBuffer(ptr, use)
}

// Dispose releases every membership, shadows first, then destroys the
// engine world. Disposing twice is a no-op.
func (w *MultiWorld) Dispose() error {
	if w.handle.IsDisposed() {
		return nil
	}

	var errs []error
	for key, m := range w.shadows {
		if _, err := w.removeShadow(key.worldID, m.entity); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range w.constraints {
		if _, err := w.RemoveConstraint(m.worldID, m.constraint); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range w.owned {
		if _, err := w.remove(m.worldID, m.entity); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range w.globals {
		if _, err := w.removeGlobal(m.entity); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	w.wait()
	if err := w.handle.Dispose(); err != nil {
		return err
	}
	w.host.Unregister(w.id)
	return nil
}

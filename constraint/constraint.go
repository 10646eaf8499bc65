package constraint

import (
	"fmt"

	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// DofCount is the number of degrees of freedom of a 6-DoF spring: 0..2
// are linear, 3..5 angular.
const DofCount = 6

// Frames places the joint in each body's local space.
type Frames struct {
	FrameA mgl32.Mat4
	FrameB mgl32.Mat4
	// UseLinearReferenceFrameA measures linear limits in frame A
	UseLinearReferenceFrameA bool
}

// Constraint links either two bodies or two members of one bundle. It holds
// a counted reference on what it links, and belongs to at most one world.
type Constraint struct {
	host   *actor.Host
	id     actor.EntityID
	handle actor.Handle

	bodyA  *actor.RigidBody
	bodyB  *actor.RigidBody
	bundle *actor.RigidBodyBundle
	indexA int
	indexB int

	world   actor.World
	worldID int
}

// NewGeneric6DofSpring links bodyA and bodyB.
func NewGeneric6DofSpring(host *actor.Host, bodyA, bodyB *actor.RigidBody, frames Frames) (*Constraint, error) {
	if bodyA == nil || bodyB == nil {
		return nil, fmt.Errorf("constraint: both bodies are required")
	}
	if bodyA == bodyB {
		return nil, fmt.Errorf("%w: a body cannot be constrained to itself", actor.ErrInvariant)
	}
	for _, b := range []*actor.RigidBody{bodyA, bodyB} {
		if err := host.Check(b.Host()); err != nil {
			return nil, err
		}
	}
	ptrA, err := bodyA.Ptr()
	if err != nil {
		return nil, fmt.Errorf("constraint: body A: %w", err)
	}
	ptrB, err := bodyB.Ptr()
	if err != nil {
		return nil, fmt.Errorf("constraint: body B: %w", err)
	}

	c := &Constraint{host: host, bodyA: bodyA, bodyB: bodyB, indexA: 0, indexB: 0}
	if err := c.create(engine.ConstraintInfo{BodyA: ptrA, BodyB: ptrB}, frames); err != nil {
		return nil, err
	}
	bodyA.AddReference()
	bodyB.AddReference()
	return c, nil
}

// NewGeneric6DofSpringInBundle links members indexA and indexB of bundle.
func NewGeneric6DofSpringInBundle(host *actor.Host, bundle *actor.RigidBodyBundle, indexA, indexB int, frames Frames) (*Constraint, error) {
	if bundle == nil {
		return nil, fmt.Errorf("constraint: bundle is required")
	}
	if err := host.Check(bundle.Host()); err != nil {
		return nil, err
	}
	ptr, err := bundle.Ptr()
	if err != nil {
		return nil, fmt.Errorf("constraint: bundle: %w", err)
	}
	for _, i := range []int{indexA, indexB} {
		if i < 0 || i >= bundle.Count() {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", actor.ErrIndexOutOfRange, i, bundle.Count())
		}
	}
	if indexA == indexB {
		return nil, fmt.Errorf("%w: member %d constrained to itself", actor.ErrInvariant, indexA)
	}

	c := &Constraint{host: host, bundle: bundle, indexA: indexA, indexB: indexB}
	if err := c.create(engine.ConstraintInfo{Bundle: ptr, IndexA: indexA, IndexB: indexB}, frames); err != nil {
		return nil, err
	}
	bundle.AddReference()
	return c, nil
}

func (c *Constraint) create(info engine.ConstraintInfo, frames Frames) error {
	info.Type = engine.ConstraintGeneric6DofSpring
	info.FrameA = orIdentity(frames.FrameA)
	info.FrameB = orIdentity(frames.FrameB)
	info.UseLinearReferenceFrameA = frames.UseLinearReferenceFrameA

	eng := c.host.Engine()
	ptr, err := eng.CreateConstraint(info)
	if err != nil {
		return fmt.Errorf("constraint: create: %w", err)
	}
	c.handle = actor.NewHandle(ptr, eng.DestroyConstraint)
	c.id = c.host.Register(c)
	return nil
}

func orIdentity(m mgl32.Mat4) mgl32.Mat4 {
	if m == (mgl32.Mat4{}) {
		return mgl32.Ident4()
	}
	return m
}

func (c *Constraint) EntityID() actor.EntityID        { return c.id }
func (c *Constraint) Host() *actor.Host               { return c.host }
func (c *Constraint) IsDisposed() bool                { return c.handle.IsDisposed() }
func (c *Constraint) Ptr() (engine.Ptr, error)        { return c.handle.Ptr() }
func (c *Constraint) ReferenceCount() int             { return c.handle.ReferenceCount() }
func (c *Constraint) HasReferences() bool             { return c.handle.HasReferences() }
func (c *Constraint) AddReference()                   { c.handle.AddReference() }
func (c *Constraint) RemoveReference()                { c.handle.RemoveReference() }
func (c *Constraint) Bodies() (a, b *actor.RigidBody) { return c.bodyA, c.bodyB }
func (c *Constraint) Bundle() *actor.RigidBodyBundle  { return c.bundle }
func (c *Constraint) Indices() (a, b int)             { return c.indexA, c.indexB }

// WorldReference returns the world the constraint was added to.
func (c *Constraint) WorldReference() (actor.World, int) {
	return c.world, c.worldID
}

// SetWorldReference assigns the constraint to a world. A constraint lives in
// one world at a time; a second assignment fails with ErrAlreadyAssigned.
func (c *Constraint) SetWorldReference(w actor.World, worldID int) error {
	if c.handle.IsDisposed() {
		return actor.ErrDisposed
	}
	if err := c.host.Check(w.Host()); err != nil {
		return err
	}
	if c.world != nil {
		return fmt.Errorf("%w: constraint is in world id %d", actor.ErrAlreadyAssigned, c.worldID)
	}
	c.world = w
	c.worldID = worldID
	return nil
}

func (c *Constraint) ClearWorldReference() {
	c.world = nil
	c.worldID = 0
}

// ptr returns the engine pointer after waiting for a running step when the
// constraint is in a world.
func (c *Constraint) ptr() (engine.Ptr, error) {
	ptr, err := c.handle.Ptr()
	if err != nil {
		return 0, err
	}
	if c.handle.HasReferences() {
		c.host.Lock().Wait()
	}
	return ptr, nil
}

func (c *Constraint) SetLinearLowerLimit(limit mgl32.Vec3) error {
	ptr, err := c.ptr()
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetLinearLowerLimit(ptr, limit)
	return nil
}

func (c *Constraint) SetLinearUpperLimit(limit mgl32.Vec3) error {
	ptr, err := c.ptr()
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetLinearUpperLimit(ptr, limit)
	return nil
}

func (c *Constraint) SetAngularLowerLimit(limit mgl32.Vec3) error {
	ptr, err := c.ptr()
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetAngularLowerLimit(ptr, limit)
	return nil
}

func (c *Constraint) SetAngularUpperLimit(limit mgl32.Vec3) error {
	ptr, err := c.ptr()
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetAngularUpperLimit(ptr, limit)
	return nil
}

func (c *Constraint) dofPtr(dof int) (engine.Ptr, error) {
	if dof < 0 || dof >= DofCount {
		return 0, fmt.Errorf("%w: degree of freedom %d", actor.ErrIndexOutOfRange, dof)
	}
	return c.ptr()
}

func (c *Constraint) EnableSpring(dof int, enable bool) error {
	ptr, err := c.dofPtr(dof)
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintEnableSpring(ptr, dof, enable)
	return nil
}

func (c *Constraint) SetStiffness(dof int, stiffness float32) error {
	ptr, err := c.dofPtr(dof)
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetStiffness(ptr, dof, stiffness)
	return nil
}

func (c *Constraint) SetDamping(dof int, damping float32) error {
	ptr, err := c.dofPtr(dof)
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetDamping(ptr, dof, damping)
	return nil
}

func (c *Constraint) SetEquilibriumPoint(dof int, value float32) error {
	ptr, err := c.dofPtr(dof)
	if err != nil {
		return err
	}
	c.host.Engine().ConstraintSetEquilibriumPoint(ptr, dof, value)
	return nil
}

// Dispose destroys the constraint and releases the bodies it linked. It
// fails with ErrInUse while the constraint is in a world.
func (c *Constraint) Dispose() error {
	if c.handle.IsDisposed() {
		return nil
	}
	if c.handle.HasReferences() {
		return c.handle.Dispose()
	}

	c.host.Lock().Wait()
	if err := c.handle.Dispose(); err != nil {
		return err
	}
	if c.bundle != nil {
		c.bundle.RemoveReference()
	} else {
		c.bodyA.RemoveReference()
		c.bodyB.RemoveReference()
	}
	c.host.Unregister(c.id)
	return nil
}

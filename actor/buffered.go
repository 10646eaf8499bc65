package actor

import (
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

type dirtyField uint16

const (
	dirtyTransform dirtyField = 1 << iota
	dirtyDynamicTransform
	dirtyTranslation
	dirtyDamping
	dirtyMassProps
	dirtyLinearVelocity
	dirtyAngularVelocity
	dirtyLinearFactor
	dirtyAngularFactor
	dirtyFriction
	dirtyRestitution
	dirtyImpulse
	dirtyForce
)

type impulseCommand struct {
	impulse          mgl32.Vec3
	relativePosition mgl32.Vec3
}

// stagedBody holds the writes of one member since the last commit. Fields
// are last write wins; impulses and forces accumulate.
type stagedBody struct {
	dirty dirtyField

	transform        mgl32.Mat4
	kinematicState   engine.KinematicState
	dynamicTransform mgl32.Mat4
	translation      mgl32.Vec3

	linearDamping  float32
	angularDamping float32
	mass           float32
	localInertia   mgl32.Vec3

	linearVelocity  mgl32.Vec3
	angularVelocity mgl32.Vec3
	linearFactor    mgl32.Vec3
	angularFactor   mgl32.Vec3
	friction        float32
	restitution     float32

	impulses []impulseCommand
	force    mgl32.Vec3
}

// buffered stages mutations and applies them in one pass from commit, which
// the runtime calls with the step lock released.
type buffered struct {
	staged []stagedBody
	// members with staged state, in first write order
	pending []int
}

func newBuffered(count int) *buffered {
	return &buffered{staged: make([]stagedBody, count)}
}

func (*buffered) kind() EvaluationType { return EvaluationBuffered }
func (*buffered) shouldSync() bool     { return false }

func (b *buffered) needsCommit() bool {
	return len(b.pending) > 0
}

func (b *buffered) stage(i int, field dirtyField) *stagedBody {
	st := &b.staged[i]
	if st.dirty == 0 {
		b.pending = append(b.pending, i)
	}
	st.dirty |= field
	return st
}

func (b *buffered) commit(s *bodySet) {
	eng := s.host.engine
	ptr := s.handle.ptr

	for _, i := range b.pending {
		st := &b.staged[i]

		if st.dirty&dirtyTransform != 0 {
			s.writeTransform(i, st.transform, st.kinematicState)
		}
		if st.dirty&dirtyDynamicTransform != 0 {
			s.writeDynamicTransform(i, st.dynamicTransform)
		}
		if st.dirty&dirtyTranslation != 0 {
			eng.RigidBodyTranslate(ptr, i, st.translation)
		}
		if st.dirty&dirtyMassProps != 0 {
			eng.RigidBodySetMassProps(ptr, i, st.mass, st.localInertia)
		}
		if st.dirty&dirtyDamping != 0 {
			eng.RigidBodySetDamping(ptr, i, st.linearDamping, st.angularDamping)
		}
		if st.dirty&dirtyLinearFactor != 0 {
			eng.RigidBodySetLinearFactor(ptr, i, st.linearFactor)
		}
		if st.dirty&dirtyAngularFactor != 0 {
			eng.RigidBodySetAngularFactor(ptr, i, st.angularFactor)
		}
		if st.dirty&dirtyLinearVelocity != 0 {
			eng.RigidBodySetLinearVelocity(ptr, i, st.linearVelocity)
		}
		if st.dirty&dirtyAngularVelocity != 0 {
			eng.RigidBodySetAngularVelocity(ptr, i, st.angularVelocity)
		}
		if st.dirty&dirtyFriction != 0 {
			eng.RigidBodySetFriction(ptr, i, st.friction)
		}
		if st.dirty&dirtyRestitution != 0 {
			eng.RigidBodySetRestitution(ptr, i, st.restitution)
		}
		// impulses land after velocities staged in the same frame
		for _, cmd := range st.impulses {
			eng.RigidBodyApplyImpulse(ptr, i, cmd.impulse, cmd.relativePosition)
		}
		if st.dirty&dirtyForce != 0 {
			eng.RigidBodyApplyCentralForce(ptr, i, st.force)
		}

		*st = stagedBody{impulses: st.impulses[:0]}
	}
	b.pending = b.pending[:0]
}

func (b *buffered) setTransform(_ *bodySet, i int, m mgl32.Mat4, state engine.KinematicState) {
	st := b.stage(i, dirtyTransform)
	st.transform = m
	st.kinematicState = state
	st.dirty &^= dirtyTranslation
	st.translation = mgl32.Vec3{}
}

func (b *buffered) setDynamicTransform(_ *bodySet, i int, m mgl32.Mat4) {
	st := b.stage(i, dirtyDynamicTransform)
	st.dynamicTransform = m
	st.dirty &^= dirtyTranslation
	st.translation = mgl32.Vec3{}
}

func (b *buffered) translate(_ *bodySet, i int, offset mgl32.Vec3) {
	st := &b.staged[i]
	switch {
	case st.dirty&dirtyTransform != 0:
		translateMatrix(&st.transform, offset)
	case st.dirty&dirtyDynamicTransform != 0:
		translateMatrix(&st.dynamicTransform, offset)
	default:
		st = b.stage(i, dirtyTranslation)
		st.translation = st.translation.Add(offset)
	}
}

func (b *buffered) setDamping(_ *bodySet, i int, linear, angular float32) {
	st := b.stage(i, dirtyDamping)
	st.linearDamping = linear
	st.angularDamping = angular
}

func (b *buffered) setMassProps(_ *bodySet, i int, mass float32, localInertia mgl32.Vec3) {
	st := b.stage(i, dirtyMassProps)
	st.mass = mass
	st.localInertia = localInertia
}

func (b *buffered) setLinearVelocity(_ *bodySet, i int, v mgl32.Vec3) {
	b.stage(i, dirtyLinearVelocity).linearVelocity = v
}

func (b *buffered) setAngularVelocity(_ *bodySet, i int, v mgl32.Vec3) {
	b.stage(i, dirtyAngularVelocity).angularVelocity = v
}

func (b *buffered) setLinearFactor(_ *bodySet, i int, f mgl32.Vec3) {
	b.stage(i, dirtyLinearFactor).linearFactor = f
}

func (b *buffered) setAngularFactor(_ *bodySet, i int, f mgl32.Vec3) {
	b.stage(i, dirtyAngularFactor).angularFactor = f
}

func (b *buffered) setFriction(_ *bodySet, i int, friction float32) {
	b.stage(i, dirtyFriction).friction = friction
}

func (b *buffered) setRestitution(_ *bodySet, i int, restitution float32) {
	b.stage(i, dirtyRestitution).restitution = restitution
}

func (b *buffered) applyImpulse(_ *bodySet, i int, impulse, relativePosition mgl32.Vec3) {
	st := b.stage(i, dirtyImpulse)
	st.impulses = append(st.impulses, impulseCommand{impulse: impulse, relativePosition: relativePosition})
}

func (b *buffered) applyCentralForce(_ *bodySet, i int, force mgl32.Vec3) {
	st := b.stage(i, dirtyForce)
	st.force = st.force.Add(force)
}

// Transform reads always see the front buffer, never staged writes: a
// staged transform is not held by any world until the next commit. The other
// reads return staged values first, so that a body reads back its own
// writes before the commit.

func (b *buffered) transform(s *bodySet, i int) mgl32.Mat4 {
	return s.readTransform(i, b.shouldSync())
}

func (b *buffered) damping(s *bodySet, i int) (float32, float32) {
	if st := &b.staged[i]; st.dirty&dirtyDamping != 0 {
		return st.linearDamping, st.angularDamping
	}
	return s.engineDamping(i)
}

func (b *buffered) mass(s *bodySet, i int) float32 {
	if st := &b.staged[i]; st.dirty&dirtyMassProps != 0 {
		return st.mass
	}
	s.waitForEngine()
	return s.host.engine.RigidBodyGetMass(s.handle.ptr, i)
}

func (b *buffered) linearVelocity(s *bodySet, i int) mgl32.Vec3 {
	if st := &b.staged[i]; st.dirty&dirtyLinearVelocity != 0 {
		return st.linearVelocity
	}
	s.waitForEngine()
	return s.host.engine.RigidBodyGetLinearVelocity(s.handle.ptr, i)
}

func (b *buffered) angularVelocity(s *bodySet, i int) mgl32.Vec3 {
	if st := &b.staged[i]; st.dirty&dirtyAngularVelocity != 0 {
		return st.angularVelocity
	}
	s.waitForEngine()
	return s.host.engine.RigidBodyGetAngularVelocity(s.handle.ptr, i)
}

func (b *buffered) totalForce(s *bodySet, i int) mgl32.Vec3 {
	s.waitForEngine()
	return s.host.engine.RigidBodyGetTotalForce(s.handle.ptr, i).Add(b.staged[i].force)
}

func translateMatrix(m *mgl32.Mat4, offset mgl32.Vec3) {
	m[12] += offset[0]
	m[13] += offset[1]
	m[14] += offset[2]
}

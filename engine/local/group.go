package local

import (
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// group backs both a single rigid body (one member) and a bundle. All
// per-member regions are contiguous so the host can view them as one array.
type group struct {
	ptr      engine.Ptr
	isBundle bool
	bodies   []*body

	motionStates    engine.Ptr
	buffered        [2]engine.Ptr
	published       int
	worldTransforms engine.Ptr
	kinematicStates engine.Ptr

	// buffering is on while the group sits in a world using the motion
	// state buffer
	buffering bool

	// membership, maintained by multiWorld
	world  *multiWorld
	global bool
}

func (g *group) count() int {
	return len(g.bodies)
}

func (g *group) regionSize() int {
	return g.count() * engine.MotionStateSize
}

func (g *group) motionState(mem *engine.Memory, i int) []float32 {
	return mem.Float32s(g.motionStates+engine.Ptr(i*engine.MotionStateSize), engine.MotionStateFloats)
}

func (g *group) worldTransform(mem *engine.Memory, i int) []float32 {
	return mem.Float32s(g.worldTransforms+engine.Ptr(i*engine.MotionStateSize), engine.WorldTransformFloats)
}

func (g *group) kinematicState(mem *engine.Memory) []byte {
	return mem.Bytes(g.kinematicStates, g.count())
}

// transform returns the engine's current transform of member i.
func (g *group) transform(mem *engine.Memory, i int) mgl32.Mat4 {
	b := g.bodies[i]
	if !b.isDynamic() {
		return b.transform
	}
	var m mgl32.Mat4
	copy(m[:], g.worldTransform(mem, i))
	return m
}

// publishedPtr is what RigidBodyGetBufferedMotionStatePtr reports.
func (g *group) publishedPtr() engine.Ptr {
	if !g.buffering {
		return g.motionStates
	}
	return g.buffered[g.published]
}

func (g *group) setBuffering(mem *engine.Memory, on bool) {
	if g.buffering == on {
		return
	}
	g.buffering = on
	if !on {
		return
	}

	working := mem.Float32s(g.motionStates, g.count()*engine.MotionStateFloats)
	for _, slot := range g.buffered {
		copy(mem.Float32s(slot, len(working)), working)
	}
	g.published = 0
}

// writeMotionStates copies dynamic world transforms into the working motion
// states, and kinematic transforms for members the host did not just write.
func (g *group) writeMotionStates(mem *engine.Memory) {
	for i, b := range g.bodies {
		switch b.motionType {
		case engine.MotionTypeDynamic:
			copy(g.motionState(mem, i), g.worldTransform(mem, i))
		case engine.MotionTypeKinematic:
			copy(g.motionState(mem, i), b.transform[:])
		}
	}
}

// publish writes the working motion states into the unpublished slot and
// rotates.
func (g *group) publish(mem *engine.Memory) {
	if !g.buffering {
		return
	}
	n := g.count() * engine.MotionStateFloats
	next := 1 - g.published
	copy(mem.Float32s(g.buffered[next], n), mem.Float32s(g.motionStates, n))
	g.published = next
}

func (g *group) applyKinematics(mem *engine.Memory, dt float32) {
	states := g.kinematicState(mem)
	for i, b := range g.bodies {
		if b.motionType != engine.MotionTypeKinematic {
			continue
		}
		states[i] = byte(b.applyKinematic(dt, engine.KinematicState(states[i]), g.motionState(mem, i)))
	}
}

func (g *group) integrate(mem *engine.Memory, h float32, gravity mgl32.Vec3) {
	for i, b := range g.bodies {
		if b.isDynamic() {
			b.integrate(h, gravity, g.worldTransform(mem, i))
		}
	}
}

func (g *group) clearForces() {
	for _, b := range g.bodies {
		b.clearForces()
	}
}

func (g *group) hasDynamic() bool {
	for _, b := range g.bodies {
		if b.isDynamic() {
			return true
		}
	}
	return false
}

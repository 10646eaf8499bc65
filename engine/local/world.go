package local

import (
	"sort"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

type shadow struct {
	group *group
	// mirrored transforms, one per member
	transforms []mgl32.Mat4
}

type constraintLink struct {
	constraint                           *constraint
	disableCollisionsBetweenLinkedBodies bool
}

// subWorld is one worldID of a multiWorld. It is created on first use and
// dropped once its last participant leaves.
type subWorld struct {
	id          int
	groups      []*group
	shadows     map[*group]*shadow
	constraints map[*constraint]constraintLink
}

func newSubWorld(id int) *subWorld {
	return &subWorld{
		id:          id,
		shadows:     make(map[*group]*shadow),
		constraints: make(map[*constraint]constraintLink),
	}
}

func (sw *subWorld) empty() bool {
	return len(sw.groups) == 0 && len(sw.shadows) == 0 && len(sw.constraints) == 0
}

func (sw *subWorld) removeGroup(g *group) bool {
	for i, other := range sw.groups {
		if other == g {
			sw.groups = append(sw.groups[:i], sw.groups[i+1:]...)
			return true
		}
	}
	return false
}

type multiWorld struct {
	ptr     engine.Ptr
	gravity mgl32.Vec3

	worlds  map[int]*subWorld
	globals []*group

	useMotionStateBuffer bool
	preserveBackBuffer   bool

	accumulator float32
}

func newMultiWorld(ptr engine.Ptr, gravity mgl32.Vec3, preserveBackBuffer bool) *multiWorld {
	return &multiWorld{
		ptr:                ptr,
		gravity:            gravity,
		worlds:             make(map[int]*subWorld),
		preserveBackBuffer: preserveBackBuffer,
	}
}

func (w *multiWorld) subWorld(id int) *subWorld {
	sw, ok := w.worlds[id]
	if !ok {
		sw = newSubWorld(id)
		w.worlds[id] = sw
	}
	return sw
}

// release drops the sub-world once nothing references it.
func (w *multiWorld) release(id int) {
	if sw, ok := w.worlds[id]; ok && sw.empty() {
		delete(w.worlds, id)
	}
}

func (w *multiWorld) addGroup(mem *engine.Memory, id int, g *group) {
	if g.world != nil {
		return
	}
	sw := w.subWorld(id)
	sw.groups = append(sw.groups, g)
	g.world = w
	g.setBuffering(mem, w.useMotionStateBuffer)
}

func (w *multiWorld) removeGroup(mem *engine.Memory, id int, g *group) {
	sw, ok := w.worlds[id]
	if !ok || !sw.removeGroup(g) {
		return
	}
	g.world = nil
	g.setBuffering(mem, false)
	w.release(id)
}

func (w *multiWorld) addGlobal(mem *engine.Memory, g *group) {
	if g.world != nil {
		return
	}
	w.globals = append(w.globals, g)
	g.world = w
	g.global = true
	g.setBuffering(mem, w.useMotionStateBuffer)
}

func (w *multiWorld) removeGlobal(mem *engine.Memory, g *group) {
	for i, other := range w.globals {
		if other == g {
			w.globals = append(w.globals[:i], w.globals[i+1:]...)
			g.world = nil
			g.global = false
			g.setBuffering(mem, false)
			return
		}
	}
}

func (w *multiWorld) addShadow(mem *engine.Memory, id int, g *group) {
	sw := w.subWorld(id)
	if _, ok := sw.shadows[g]; ok {
		return
	}
	s := &shadow{group: g, transforms: make([]mgl32.Mat4, g.count())}
	for i := range s.transforms {
		s.transforms[i] = g.transform(mem, i)
	}
	sw.shadows[g] = s
}

func (w *multiWorld) removeShadow(id int, g *group) {
	sw, ok := w.worlds[id]
	if !ok {
		return
	}
	delete(sw.shadows, g)
	w.release(id)
}

// dropGroup removes every trace of a destroyed group.
func (w *multiWorld) dropGroup(mem *engine.Memory, g *group) {
	for id, sw := range w.worlds {
		if sw.removeGroup(g) {
			g.world = nil
		}
		delete(sw.shadows, g)
		w.release(id)
	}
	w.removeGlobal(mem, g)
}

func (w *multiWorld) setUseMotionStateBuffer(mem *engine.Memory, use bool) {
	w.useMotionStateBuffer = use
	for _, sw := range w.worlds {
		for _, g := range sw.groups {
			g.setBuffering(mem, use)
		}
	}
	for _, g := range w.globals {
		g.setBuffering(mem, use)
	}
}

// sortedWorlds gives a deterministic stepping order.
func (w *multiWorld) sortedWorlds() []*subWorld {
	worlds := make([]*subWorld, 0, len(w.worlds))
	for _, sw := range w.worlds {
		worlds = append(worlds, sw)
	}
	sort.Slice(worlds, func(i, j int) bool { return worlds[i].id < worlds[j].id })
	return worlds
}

// substeps follows the fixed step accumulator model: with a positive
// maxSubSteps the frame is split into whole fixedTimeStep steps, the
// remainder carried to the next frame, and the count clamped. Otherwise
// a single step of timeStep is taken.
func (w *multiWorld) substeps(timeStep float32, maxSubSteps int, fixedTimeStep float32) (int, float32) {
	if timeStep <= 0 {
		return 0, 0
	}
	if maxSubSteps <= 0 || fixedTimeStep <= 0 {
		return 1, timeStep
	}

	w.accumulator += timeStep
	n := int(w.accumulator / fixedTimeStep)
	w.accumulator -= float32(n) * fixedTimeStep
	return min(n, maxSubSteps), fixedTimeStep
}

// step runs one frame. workers bounds the number of sub-worlds integrated in
// parallel, which is only done while the motion state buffer is on since
// shadows then read stable published data.
func (w *multiWorld) step(mem *engine.Memory, workers int, timeStep float32, maxSubSteps int, fixedTimeStep float32) {
	n, h := w.substeps(timeStep, maxSubSteps, fixedTimeStep)
	worlds := w.sortedWorlds()

	for _, sw := range worlds {
		for _, g := range sw.groups {
			g.applyKinematics(mem, timeStep)
		}
	}
	for _, g := range w.globals {
		g.applyKinematics(mem, timeStep)
	}

	if !w.useMotionStateBuffer {
		workers = 1
	}
	for iter := 0; iter < n; iter++ {
		task(workers, worlds, func(sw *subWorld) {
			for _, g := range sw.groups {
				g.integrate(mem, h, w.gravity)
			}
		})
	}

	for _, sw := range worlds {
		for _, g := range sw.groups {
			g.writeMotionStates(mem)
			g.publish(mem)
			g.clearForces()
		}
	}
	for _, g := range w.globals {
		g.writeMotionStates(mem)
		g.publish(mem)
	}

	// Shadows mirror the owner's freshly published state
	for _, sw := range worlds {
		for g, s := range sw.shadows {
			for i := range s.transforms {
				s.transforms[i] = g.transform(mem, i)
			}
		}
	}
}

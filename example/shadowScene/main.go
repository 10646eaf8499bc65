package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/akmonengine/feathersync"
	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/constraint"
	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/engine/local"
	"github.com/akmonengine/feathersync/logging"
	"github.com/go-gl/mathgl/mgl32"
)

// A falling crate in world 0 is shadowed into world 1, where a kinematic
// paddle sees it without owning it. A sphere hangs from the crate on a
// spring. The ground plane is global and collides with every world.
func main() {
	logger := logging.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	eng, err := local.New(local.WithMemorySize(8<<20), local.WithWorker(true))
	if err != nil {
		fail(err)
	}
	defer eng.Close()

	r, err := feathersync.NewRuntime(eng,
		feathersync.WithLogger(logger),
		feathersync.WithEvaluation(actor.EvaluationBuffered),
	)
	if err != nil {
		fail(err)
	}
	defer r.Dispose()

	host := r.Host()
	plane := must(actor.NewStaticPlaneShape(host, mgl32.Vec3{0, 1, 0}, 0))
	box := must(actor.NewBoxShape(host, mgl32.Vec3{0.5, 0.5, 0.5}))
	sphere := must(actor.NewSphereShape(host, 0.25))

	ground := must(actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{Shape: plane, MotionType: engine.MotionTypeStatic}))
	crate := must(actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{
		Shape:      box,
		MotionType: engine.MotionTypeDynamic,
		Transform:  mgl32.Translate3D(0, 5, 0),
		Mass:       2,
	}))
	bob := must(actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{
		Shape:      sphere,
		MotionType: engine.MotionTypeDynamic,
		Transform:  mgl32.Translate3D(0, 4, 0),
		Mass:       0.5,
	}))
	paddle := must(actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{
		Shape:      box,
		MotionType: engine.MotionTypeKinematic,
		Transform:  mgl32.Translate3D(3, 1, 0),
	}))

	spring := must(constraint.NewGeneric6DofSpring(host, crate, bob, constraint.Frames{
		FrameA: mgl32.Translate3D(0, -0.5, 0),
		FrameB: mgl32.Translate3D(0, 0.5, 0),
	}))
	must(true, spring.EnableSpring(1, true))
	must(true, spring.SetStiffness(1, 40))
	must(true, spring.SetDamping(1, 0.5))

	must(r.AddRigidBodyToGlobal(ground))
	must(r.AddRigidBody(0, crate))
	must(r.AddRigidBody(0, bob))
	must(r.AddRigidBody(1, paddle))
	must(r.AddConstraint(0, spring, true))
	must(r.AddRigidBodyShadow(1, crate))

	unsubscribe := r.OnTick().Subscribe(func(e feathersync.TickEvent) {
		if e.Frame%30 != 0 {
			return
		}
		own := must(crate.TransformMatrix())
		shadow := must(r.MultiWorld().ShadowTransform(1, crate))
		fmt.Printf("frame %3d  crate y=%6.3f  shadow y=%6.3f  dynamic shadows=%d\n",
			e.Frame, own.Col(3).Y(), shadow.Col(3).Y(), r.DynamicShadowCount())
	})
	defer unsubscribe()

	const fps = 60
	for frame := 0; frame < 240; frame++ {
		x := 3 - float32(frame)/fps
		must(true, paddle.SetTransformMatrix(mgl32.Translate3D(x, 1, 0)))
		r.Step(1000.0 / fps)
	}
	r.Wait()

	// Tear down in reverse: memberships first, then the entities that
	// hold references, then the shapes.
	must(r.RemoveRigidBodyShadow(1, crate))
	must(r.RemoveConstraint(0, spring))
	must(true, spring.Dispose())
	for _, m := range []struct {
		worldID int
		body    *actor.RigidBody
	}{{0, crate}, {0, bob}, {1, paddle}} {
		must(r.RemoveRigidBody(m.worldID, m.body))
		must(true, m.body.Dispose())
	}
	must(r.RemoveRigidBodyFromGlobal(ground))
	must(true, ground.Dispose())
	for _, s := range []*actor.Shape{plane, box, sphere} {
		must(true, s.Dispose())
	}
	fmt.Printf("live entities after teardown: %d\n", r.LiveCount())
}

func must[T any](v T, err error) T {
	if err != nil {
		fail(err)
	}
	return v
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

package main

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/akmonengine/feathersync"
	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/config"
	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/engine/local"
	"github.com/akmonengine/feathersync/logging"
	"github.com/akmonengine/feathersync/spinlock"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444466")).Padding(0, 2)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type sceneOptions struct {
	bodies     int
	bundles    int
	bundleSize int
	shadows    int
	worlds     int
	frames     int
	frameRate  float64
}

type benchResult struct {
	evaluation actor.EvaluationType
	frameTimes []time.Duration
	spin       spinlock.Stats
	shadows    int
	live       int
	ticks      int
	finalY     float32
}

func benchScene(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evaluation != "" {
		cfg.Evaluation = evaluation
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	opts := sceneOptions{
		bodies:     bodies,
		bundles:    bundles,
		bundleSize: bundleSize,
		shadows:    shadows,
		worlds:     worlds,
		frames:     frames,
		frameRate:  frameRate,
	}
	result, err := runBench(cfg, opts, newLogger())
	if err != nil {
		return err
	}
	fmt.Println(report(opts, result))
	if plot && len(result.frameTimes) > 1 {
		fmt.Println(frameTimePlot(result.frameTimes))
	}
	return nil
}

// runBench builds the scene on a fresh local engine, steps it and disposes
// everything.
func runBench(cfg *config.Config, opts sceneOptions, logger logging.Logger) (*benchResult, error) {
	if opts.worlds < 1 || opts.frameRate <= 0 {
		return nil, fmt.Errorf("bench: need at least one world and a positive frame rate")
	}

	eng, err := local.New(
		local.WithMemorySize(cfg.Engine.MemorySize),
		local.WithWorker(cfg.Engine.Worker),
		local.WithWorkers(cfg.Engine.Workers),
	)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	r, err := feathersync.NewRuntime(eng, feathersync.WithConfig(cfg), feathersync.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	sc, err := buildScene(r, opts)
	if err != nil {
		r.Dispose()
		return nil, err
	}

	result := &benchResult{evaluation: r.EvaluationType(), shadows: r.MultiWorld().ShadowCount()}
	unsubscribe := r.OnTick().Subscribe(func(e feathersync.TickEvent) { result.ticks++ })
	defer unsubscribe()

	deltaMillis := 1000 / opts.frameRate
	r.Host().Lock().ResetStats()
	for frame := 0; frame < opts.frames; frame++ {
		start := time.Now()
		if err := sc.animate(frame, float32(deltaMillis/1000)); err != nil {
			r.Dispose()
			return nil, err
		}
		r.Step(deltaMillis)
		result.frameTimes = append(result.frameTimes, time.Since(start))
	}
	r.Wait()

	result.spin = r.Host().Lock().Stats()
	if len(sc.bodies) > 0 {
		m, err := sc.bodies[0].entity.TransformMatrix()
		if err == nil {
			result.finalY = m.Col(3).Y()
		}
	}

	if err := sc.dispose(r); err != nil {
		r.Dispose()
		return nil, err
	}
	// Only the runtime's own world is left once the scene is torn down.
	result.live = r.LiveCount() - 1
	if err := r.Dispose(); err != nil {
		return nil, err
	}
	return result, nil
}

type placed[T any] struct {
	entity  T
	worldID int
	shadow  int
}

type scene struct {
	shapes  []*actor.Shape
	ground  *actor.RigidBody
	bodies  []placed[*actor.RigidBody]
	bundles []placed[*actor.RigidBodyBundle]
}

const noShadow = -1

// buildScene spreads dynamic bodies over the world ids, shadows the first
// ones into the next world id, adds bundles with a kinematic root, and a
// global ground plane.
func buildScene(r *feathersync.Runtime, opts sceneOptions) (s *scene, err error) {
	host := r.Host()
	s = &scene{}
	defer func() {
		if err != nil {
			s.dispose(r)
		}
	}()

	sphere, err := actor.NewSphereShape(host, 0.25)
	if err != nil {
		return nil, err
	}
	box, err := actor.NewBoxShape(host, mgl32.Vec3{0.1, 0.3, 0.1})
	if err != nil {
		return nil, err
	}
	plane, err := actor.NewStaticPlaneShape(host, mgl32.Vec3{0, 1, 0}, 0)
	if err != nil {
		return nil, err
	}
	s.shapes = append(s.shapes, sphere, box, plane)

	s.ground, err = actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{Shape: plane, MotionType: engine.MotionTypeStatic})
	if err != nil {
		return nil, err
	}
	if _, err := r.AddRigidBodyToGlobal(s.ground); err != nil {
		return nil, err
	}

	for i := 0; i < opts.bodies; i++ {
		body, err := actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{
			Shape:          sphere,
			MotionType:     engine.MotionTypeDynamic,
			Transform:      mgl32.Translate3D(float32(i%10), 10+float32(i/10), 0),
			Mass:           1,
			LinearDamping:  0.05,
			AngularDamping: 0.05,
		})
		if err != nil {
			return nil, err
		}
		p := placed[*actor.RigidBody]{entity: body, worldID: i % opts.worlds, shadow: noShadow}
		s.bodies = append(s.bodies, p)
		if _, err := r.AddRigidBody(p.worldID, body); err != nil {
			return nil, err
		}
		if i < opts.shadows && opts.worlds > 1 {
			shadow := (p.worldID + 1) % opts.worlds
			if _, err := r.AddRigidBodyShadow(shadow, body); err != nil {
				return nil, err
			}
			s.bodies[len(s.bodies)-1].shadow = shadow
		}
	}

	for i := 0; i < opts.bundles; i++ {
		infos := make([]actor.RigidBodyConstructionInfo, opts.bundleSize)
		for j := range infos {
			motion := engine.MotionTypeDynamic
			if j == 0 {
				motion = engine.MotionTypeKinematic
			}
			infos[j] = actor.RigidBodyConstructionInfo{
				Shape:      box,
				MotionType: motion,
				Transform:  mgl32.Translate3D(float32(i)*2, 2+float32(j)*0.6, 5),
				Mass:       0.5,
			}
		}
		bundle, err := actor.NewRigidBodyBundle(host, infos)
		if err != nil {
			return nil, err
		}
		s.bundles = append(s.bundles, placed[*actor.RigidBodyBundle]{entity: bundle, worldID: i % opts.worlds, shadow: noShadow})
		if _, err := r.AddRigidBodyBundle(i%opts.worlds, bundle); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// animate drives the kinematic roots on a circle and pushes a few bodies,
// the per frame writes a host application would do.
func (s *scene) animate(frame int, dt float32) error {
	t := float32(frame) * dt
	for i, p := range s.bundles {
		phase := t + float32(i)
		x := float32(i)*2 + float32(math.Cos(float64(phase)))
		z := 5 + float32(math.Sin(float64(phase)))
		if err := p.entity.SetTransformMatrix(0, mgl32.Translate3D(x, 2, z)); err != nil {
			return err
		}
	}
	for i := frame % 7; i < len(s.bodies); i += 7 {
		if err := s.bodies[i].entity.ApplyCentralForce(mgl32.Vec3{0, 2, 0}); err != nil {
			return err
		}
	}
	return nil
}

// dispose releases the scene in reverse order of construction. Shapes are
// released last since bodies hold a reference on them.
func (s *scene) dispose(r *feathersync.Runtime) error {
	var errs []error
	for _, p := range s.bundles {
		if _, err := r.RemoveRigidBodyBundle(p.worldID, p.entity); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, p.entity.Dispose())
	}
	for _, p := range s.bodies {
		if p.shadow != noShadow {
			if _, err := r.RemoveRigidBodyShadow(p.shadow, p.entity); err != nil {
				errs = append(errs, err)
			}
		}
		if _, err := r.RemoveRigidBody(p.worldID, p.entity); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, p.entity.Dispose())
	}
	if s.ground != nil {
		if _, err := r.RemoveRigidBodyFromGlobal(s.ground); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, s.ground.Dispose())
	}
	for _, shape := range s.shapes {
		errs = append(errs, shape.Dispose())
	}
	return errors.Join(errs...)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Ceil(p*float64(len(sorted)))) - 1
	return sorted[max(i, 0)]
}

func report(opts sceneOptions, result *benchResult) string {
	sorted := slices.Clone(result.frameTimes)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	var mean time.Duration
	if len(sorted) > 0 {
		mean = total / time.Duration(len(sorted))
	}

	rows := [][2]string{
		{"evaluation", result.evaluation.String()},
		{"bodies", fmt.Sprintf("%d (+%d shadows)", opts.bodies, result.shadows)},
		{"bundles", fmt.Sprintf("%d x %d", opts.bundles, opts.bundleSize)},
		{"frames / ticks", fmt.Sprintf("%d / %d", len(result.frameTimes), result.ticks)},
		{"frame mean", mean.String()},
		{"frame p50", percentile(sorted, 0.5).String()},
		{"frame p99", percentile(sorted, 0.99).String()},
		{"spin waits", fmt.Sprintf("%d (%d contended)", result.spin.Waits, result.spin.Contended)},
		{"spin total", result.spin.TotalWait.String()},
		{"spin max", result.spin.MaxWait.String()},
		{"leaked", fmt.Sprintf("%d", result.live)},
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("feathersync bench"))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(valueStyle.Render(row[1]))
		b.WriteString("\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func frameTimePlot(frameTimes []time.Duration) string {
	data := make([]float64, len(frameTimes))
	for i, d := range frameTimes {
		data[i] = float64(d.Microseconds())
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("frame time (us)"),
	)
}

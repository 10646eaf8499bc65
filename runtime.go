// Package feathersync drives rigid bodies living in an external physics
// engine: it owns the worlds, decides when the engine may step, and makes
// sure host reads and writes never race with a running step.
package feathersync

import (
	"errors"
	"fmt"

	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/constraint"
	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/logging"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrRuntimeDisposed is returned by Runtime operations after Dispose.
var ErrRuntimeDisposed = errors.New("feathersync: runtime is disposed")

// maxDisposePasses bounds the passes Dispose makes over leaked resources.
const maxDisposePasses = 8

// FrameSource calls its callbacks once per rendered frame with the elapsed
// time in milliseconds.
type FrameSource interface {
	OnFrame(fn func(deltaMillis float64)) (unregister func())
}

// Runtime steps one MultiWorld. All methods must be called from a single
// goroutine; under buffered evaluation the engine steps on its own worker
// between two calls to Step.
type Runtime struct {
	host   *actor.Host
	logger logging.Logger
	world  *MultiWorld

	gravity       mgl32.Vec3
	timeStep      float32
	maxSubSteps   int
	fixedTimeStep float32

	evaluation actor.EvaluationType
	// usingBackBuffer mirrors the engine world's motion state buffer.
	usingBackBuffer bool
	// rigidBodyUsingBackBuffer is set once entities read published slots.
	rigidBodyUsingBackBuffer bool
	dynamicShadowCount       int
	preserveBackBuffer       bool

	onSync Observable[SyncEvent]
	onTick Observable[TickEvent]

	frame    uint64
	pending  engine.Future
	inflight TickEvent

	unregister func()
	disposed   bool
}

func NewRuntime(eng engine.Engine, opts ...Option) (*Runtime, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	r := &Runtime{
		host:               actor.NewHost(eng, s.logger, s.lockOptions()...),
		logger:             s.logger,
		gravity:            s.gravity,
		timeStep:           s.timeStep,
		maxSubSteps:        s.maxSubSteps,
		fixedTimeStep:      s.fixedTimeStep,
		evaluation:         s.evaluation,
		preserveBackBuffer: s.preserveBackBuffer,
	}
	r.host.SetEvaluation(s.evaluation)

	world, err := newMultiWorld(r, s.gravity, s.preserveBackBuffer)
	if err != nil {
		return nil, err
	}
	r.world = world

	r.logger.Info("runtime created", "id", r.host.ID(), "evaluation", r.evaluation)
	return r, nil
}

// Host is passed to the actor and constraint constructors.
func (r *Runtime) Host() *actor.Host {
	return r.host
}

func (r *Runtime) MultiWorld() *MultiWorld {
	return r.world
}

// World returns the single world view over DefaultWorldID.
func (r *Runtime) World() *World {
	return &World{multi: r.world}
}

func (r *Runtime) OnSync() *Observable[SyncEvent] {
	return &r.onSync
}

func (r *Runtime) OnTick() *Observable[TickEvent] {
	return &r.onTick
}

func (r *Runtime) Frame() uint64 {
	return r.frame
}

func (r *Runtime) IsDisposed() bool {
	return r.disposed
}

// LiveCount counts the live bodies, bundles, shapes, constraints and the
// world itself.
func (r *Runtime) LiveCount() int {
	return r.host.LiveCount()
}

// UsingBackBuffer reports whether the engine keeps published motion states.
func (r *Runtime) UsingBackBuffer() bool {
	return r.usingBackBuffer
}

func (r *Runtime) DynamicShadowCount() int {
	return r.dynamicShadowCount
}

// ============================================================================
// Frame driver
// ============================================================================

// Register steps r on every frame of src until Dispose.
func (r *Runtime) Register(src FrameSource) error {
	if r.disposed {
		return ErrRuntimeDisposed
	}
	if r.unregister != nil {
		r.unregister()
	}
	r.unregister = src.OnFrame(r.Step)
	return nil
}

func (r *Runtime) detach() {
	if r.unregister != nil {
		r.unregister()
		r.unregister = nil
	}
}

// Step advances the simulation by deltaMillis. After Dispose it only
// unregisters from its frame source.
func (r *Runtime) Step(deltaMillis float64) {
	if r.disposed {
		r.detach()
		return
	}

	dt := r.timeStep
	if dt == 0 {
		dt = float32(deltaMillis / 1000)
	}
	r.frame++

	if r.evaluation == actor.EvaluationBuffered {
		r.stepBuffered(dt)
	} else {
		r.stepImmediate(dt)
	}
}

func (r *Runtime) stepBuffered(dt float32) {
	r.host.Lock().Wait()
	r.complete()

	if !r.usingBackBuffer {
		r.setUsingBackBuffer(true)
	}
	entities := r.host.Entities()
	if !r.rigidBodyUsingBackBuffer {
		r.useBackBuffer(entities, true)
	} else {
		for _, e := range entities {
			if err := e.SyncBuffer(); err != nil {
				r.logger.Error("sync buffer", "entity", e.EntityID(), "error", err)
			}
		}
	}
	for _, e := range entities {
		if !e.NeedsCommit() {
			continue
		}
		if err := e.CommitToEngine(); err != nil {
			r.logger.Error("commit", "entity", e.EntityID(), "error", err)
		}
	}

	r.onSync.notify(SyncEvent{Frame: r.frame, DeltaTime: dt, Evaluation: r.evaluation})

	ptr, err := r.world.Ptr()
	if err != nil {
		return
	}
	tick := TickEvent{Frame: r.frame, DeltaTime: dt}
	done, ok := r.host.Engine().MultiPhysicsWorldStepSimulationAsync(ptr, dt, r.maxSubSteps, r.fixedTimeStep)
	if !ok {
		r.host.Engine().MultiPhysicsWorldStepSimulation(ptr, dt, r.maxSubSteps, r.fixedTimeStep)
		r.onTick.notify(tick)
		return
	}
	r.pending = done
	r.inflight = tick
}

func (r *Runtime) stepImmediate(dt float32) {
	r.complete()

	if r.usingBackBuffer && r.dynamicShadowCount == 0 && !r.preserveBackBuffer {
		r.setUsingBackBuffer(false)
	}
	if r.rigidBodyUsingBackBuffer {
		r.host.Lock().Wait()
		r.useBackBuffer(r.host.Entities(), false)
	}

	ptr, err := r.world.Ptr()
	if err != nil {
		return
	}
	r.host.Engine().MultiPhysicsWorldStepSimulation(ptr, dt, r.maxSubSteps, r.fixedTimeStep)

	r.onSync.notify(SyncEvent{Frame: r.frame, DeltaTime: dt, Evaluation: r.evaluation})
	r.onTick.notify(TickEvent{Frame: r.frame, DeltaTime: dt})
}

// Wait blocks until the step handed to the worker, if any, has completed,
// and fires its tick.
func (r *Runtime) Wait() {
	r.complete()
}

func (r *Runtime) complete() {
	if r.pending == nil {
		return
	}
	<-r.pending
	r.pending = nil
	r.onTick.notify(r.inflight)
}

func (r *Runtime) setUsingBackBuffer(use bool) {
	r.world.useMotionStateBuffer(use)
	r.usingBackBuffer = use
	r.logger.Debug("motion state buffer", "enabled", use, "dynamicShadows", r.dynamicShadowCount)
}

func (r *Runtime) useBackBuffer(entities []actor.Entity, enabled bool) {
	for _, e := range entities {
		if err := e.UseBackBuffer(enabled); err != nil {
			r.logger.Error("use back buffer", "entity", e.EntityID(), "error", err)
		}
	}
	r.rigidBodyUsingBackBuffer = enabled
	r.host.SetUsingBackBuffer(enabled)
}

// dynamicShadowAdded turns the engine buffer on before a dynamic shadow
// exists: the shadow may be read while its owning world steps.
func (r *Runtime) dynamicShadowAdded() {
	r.dynamicShadowCount++
	if !r.usingBackBuffer {
		r.setUsingBackBuffer(true)
	}
}

// dynamicShadowRemoved leaves the buffer on; the next immediate step turns
// it off if nothing needs it anymore.
func (r *Runtime) dynamicShadowRemoved() {
	r.dynamicShadowCount--
}

// ============================================================================
// Settings
// ============================================================================

func (r *Runtime) Gravity() mgl32.Vec3 {
	return r.gravity
}

func (r *Runtime) SetGravity(gravity mgl32.Vec3) {
	r.gravity = gravity
	r.world.setGravity(gravity)
}

func (r *Runtime) EvaluationType() actor.EvaluationType {
	return r.evaluation
}

// SetEvaluationType switches every live entity. Writes staged under
// buffered evaluation are committed before the switch.
func (r *Runtime) SetEvaluationType(t actor.EvaluationType) error {
	if r.disposed {
		return ErrRuntimeDisposed
	}
	if t == r.evaluation {
		return nil
	}

	r.host.Lock().Wait()
	r.complete()

	var errs []error
	for _, e := range r.host.Entities() {
		if err := e.SwitchEvaluation(t); err != nil {
			errs = append(errs, fmt.Errorf("entity %d: %w", e.EntityID(), err))
		}
	}
	r.logger.Info("evaluation switched", "from", r.evaluation, "to", t)
	r.evaluation = t
	r.host.SetEvaluation(t)
	return errors.Join(errs...)
}

// ============================================================================
// Membership, forwarded to the MultiWorld
// ============================================================================

func (r *Runtime) AddRigidBody(worldID int, body *actor.RigidBody) (bool, error) {
	return r.world.AddRigidBody(worldID, body)
}

func (r *Runtime) RemoveRigidBody(worldID int, body *actor.RigidBody) (bool, error) {
	return r.world.RemoveRigidBody(worldID, body)
}

func (r *Runtime) AddRigidBodyBundle(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return r.world.AddRigidBodyBundle(worldID, bundle)
}

func (r *Runtime) RemoveRigidBodyBundle(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return r.world.RemoveRigidBodyBundle(worldID, bundle)
}

func (r *Runtime) AddRigidBodyToGlobal(body *actor.RigidBody) (bool, error) {
	return r.world.AddRigidBodyToGlobal(body)
}

func (r *Runtime) RemoveRigidBodyFromGlobal(body *actor.RigidBody) (bool, error) {
	return r.world.RemoveRigidBodyFromGlobal(body)
}

func (r *Runtime) AddRigidBodyBundleToGlobal(bundle *actor.RigidBodyBundle) (bool, error) {
	return r.world.AddRigidBodyBundleToGlobal(bundle)
}

func (r *Runtime) RemoveRigidBodyBundleFromGlobal(bundle *actor.RigidBodyBundle) (bool, error) {
	return r.world.RemoveRigidBodyBundleFromGlobal(bundle)
}

func (r *Runtime) AddRigidBodyShadow(worldID int, body *actor.RigidBody) (bool, error) {
	return r.world.AddRigidBodyShadow(worldID, body)
}

func (r *Runtime) RemoveRigidBodyShadow(worldID int, body *actor.RigidBody) (bool, error) {
	return r.world.RemoveRigidBodyShadow(worldID, body)
}

func (r *Runtime) AddRigidBodyBundleShadow(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return r.world.AddRigidBodyBundleShadow(worldID, bundle)
}

func (r *Runtime) RemoveRigidBodyBundleShadow(worldID int, bundle *actor.RigidBodyBundle) (bool, error) {
	return r.world.RemoveRigidBodyBundleShadow(worldID, bundle)
}

func (r *Runtime) AddConstraint(worldID int, c *constraint.Constraint, disableCollisionsBetweenLinkedBodies bool) (bool, error) {
	return r.world.AddConstraint(worldID, c, disableCollisionsBetweenLinkedBodies)
}

func (r *Runtime) RemoveConstraint(worldID int, c *constraint.Constraint) (bool, error) {
	return r.world.RemoveConstraint(worldID, c)
}

// ============================================================================
// Disposal
// ============================================================================

// Dispose waits for the engine, releases the world and every resource still
// alive, and unregisters from the frame source. Resources left alive are
// reported as leaks. Disposing twice is a no-op.
func (r *Runtime) Dispose() error {
	if r.disposed {
		return nil
	}
	r.complete()
	r.host.Lock().Wait()

	var errs []error
	if err := r.world.Dispose(); err != nil {
		errs = append(errs, fmt.Errorf("feathersync: dispose world: %w", err))
	}

	if leaked := r.host.Resources(); len(leaked) > 0 {
		r.logger.Warn("disposing leaked resources", "count", len(leaked))
		errs = append(errs, r.disposeAll(leaked)...)
	}

	r.disposed = true
	r.detach()
	r.logger.Info("runtime disposed", "id", r.host.ID(), "frames", r.frame)
	return errors.Join(errs...)
}

// disposeAll retries until every resource is gone or a pass makes no
// progress: constraints release bodies, bodies release shapes.
func (r *Runtime) disposeAll(resources []actor.Resource) []error {
	var errs []error
	for pass := 0; pass < maxDisposePasses && len(resources) > 0; pass++ {
		errs = errs[:0]
		remaining := resources[:0]
		for _, res := range resources {
			if err := res.Dispose(); err != nil {
				errs = append(errs, fmt.Errorf("entity %d: %w", res.EntityID(), err))
			}
			if !res.IsDisposed() {
				remaining = append(remaining, res)
			}
		}
		if len(remaining) == len(resources) {
			break
		}
		resources = remaining
	}
	return errs
}

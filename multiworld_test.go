package feathersync

import (
	"testing"

	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/constraint"
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/gomega"
)

// ============================================================================
// Reference bookkeeping
// ============================================================================

type membershipOps struct {
	add    func() (bool, error)
	remove func() (bool, error)
	refs   func() int
}

func TestMultiWorld_ReferenceSymmetry(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, r *Runtime) membershipOps
	}{
		{
			name: "body",
			setup: func(t *testing.T, r *Runtime) membershipOps {
				body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
				return membershipOps{
					add:    func() (bool, error) { return r.AddRigidBody(3, body) },
					remove: func() (bool, error) { return r.RemoveRigidBody(3, body) },
					refs:   body.ReferenceCount,
				}
			},
		},
		{
			name: "bundle",
			setup: func(t *testing.T, r *Runtime) membershipOps {
				bundle := newBundle(t, r, engine.MotionTypeDynamic, engine.MotionTypeKinematic)
				return membershipOps{
					add:    func() (bool, error) { return r.AddRigidBodyBundle(3, bundle) },
					remove: func() (bool, error) { return r.RemoveRigidBodyBundle(3, bundle) },
					refs:   bundle.ReferenceCount,
				}
			},
		},
		{
			name: "global body",
			setup: func(t *testing.T, r *Runtime) membershipOps {
				body := newBody(t, r, engine.MotionTypeStatic, mgl32.Vec3{})
				return membershipOps{
					add:    func() (bool, error) { return r.AddRigidBodyToGlobal(body) },
					remove: func() (bool, error) { return r.RemoveRigidBodyFromGlobal(body) },
					refs:   body.ReferenceCount,
				}
			},
		},
		{
			name: "global bundle",
			setup: func(t *testing.T, r *Runtime) membershipOps {
				bundle := newBundle(t, r, engine.MotionTypeStatic, engine.MotionTypeKinematic)
				return membershipOps{
					add:    func() (bool, error) { return r.AddRigidBodyBundleToGlobal(bundle) },
					remove: func() (bool, error) { return r.RemoveRigidBodyBundleFromGlobal(bundle) },
					refs:   bundle.ReferenceCount,
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			r := newTestRuntime(t, newTestEngine(t, false))
			ops := tt.setup(t, r)

			before := ops.refs()
			g.Expect(ops.add()).To(BeTrue())
			g.Expect(ops.refs()).To(Equal(before + 1))
			g.Expect(ops.add()).To(BeFalse())
			g.Expect(ops.refs()).To(Equal(before + 1))

			g.Expect(ops.remove()).To(BeTrue())
			g.Expect(ops.remove()).To(BeFalse())
			g.Expect(ops.refs()).To(Equal(before))
		})
	}
}

func TestMultiWorld_RemoveFromOtherWorldID(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})

	g.Expect(r.AddRigidBody(0, body)).To(BeTrue())
	g.Expect(r.RemoveRigidBody(1, body)).To(BeFalse())
	g.Expect(body.ReferenceCount()).To(Equal(1))

	w, id := body.WorldReference()
	g.Expect(w).To(BeIdenticalTo(r.MultiWorld()))
	g.Expect(id).To(Equal(0))
}

func TestMultiWorld_SubWorldIsReleasedWithLastParticipant(t *testing.T) {
	g := NewWithT(t)
	eng := newTestEngine(t, false)
	r := newTestRuntime(t, eng)
	a := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	b := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	ptr, _ := r.MultiWorld().Ptr()

	g.Expect(r.AddRigidBody(2, a)).To(BeTrue())
	g.Expect(r.AddRigidBody(2, b)).To(BeTrue())
	g.Expect(eng.WorldCount(ptr)).To(Equal(1))

	g.Expect(r.RemoveRigidBody(2, a)).To(BeTrue())
	g.Expect(eng.WorldCount(ptr)).To(Equal(1))
	g.Expect(r.RemoveRigidBody(2, b)).To(BeTrue())
	g.Expect(eng.WorldCount(ptr)).To(Equal(0))
}

// ============================================================================
// Invariants
// ============================================================================

func TestMultiWorld_Exclusivity(t *testing.T) {
	tests := []struct {
		name   string
		motion engine.MotionType
		run    func(r *Runtime, body *actor.RigidBody) (bool, error)
	}{
		{
			name:   "owning then global",
			motion: engine.MotionTypeKinematic,
			run: func(r *Runtime, body *actor.RigidBody) (bool, error) {
				if _, err := r.AddRigidBody(0, body); err != nil {
					return false, err
				}
				return r.AddRigidBodyToGlobal(body)
			},
		},
		{
			name:   "global then owning",
			motion: engine.MotionTypeStatic,
			run: func(r *Runtime, body *actor.RigidBody) (bool, error) {
				if _, err := r.AddRigidBodyToGlobal(body); err != nil {
					return false, err
				}
				return r.AddRigidBody(0, body)
			},
		},
		{
			name:   "owned by two world ids",
			motion: engine.MotionTypeDynamic,
			run: func(r *Runtime, body *actor.RigidBody) (bool, error) {
				if _, err := r.AddRigidBody(0, body); err != nil {
					return false, err
				}
				return r.AddRigidBody(1, body)
			},
		},
		{
			name:   "dynamic global",
			motion: engine.MotionTypeDynamic,
			run: func(r *Runtime, body *actor.RigidBody) (bool, error) {
				return r.AddRigidBodyToGlobal(body)
			},
		},
		{
			name:   "shadow without owner",
			motion: engine.MotionTypeDynamic,
			run: func(r *Runtime, body *actor.RigidBody) (bool, error) {
				return r.AddRigidBodyShadow(1, body)
			},
		},
		{
			name:   "owning where shadowed",
			motion: engine.MotionTypeKinematic,
			run: func(r *Runtime, body *actor.RigidBody) (bool, error) {
				if _, err := r.AddRigidBody(0, body); err != nil {
					return false, err
				}
				if _, err := r.AddRigidBodyShadow(1, body); err != nil {
					return false, err
				}
				return r.AddRigidBody(1, body)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			r := newTestRuntime(t, newTestEngine(t, false))
			body := newBody(t, r, tt.motion, mgl32.Vec3{})

			ok, err := tt.run(r, body)
			g.Expect(ok).To(BeFalse())
			g.Expect(err).To(MatchError(actor.ErrInvariant))
		})
	}
}

func TestMultiWorld_ShadowOfOwnWorldIsRejected(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	g.Expect(r.AddRigidBody(4, body)).To(BeTrue())

	g.Expect(r.AddRigidBodyShadow(4, body)).To(BeFalse())
	g.Expect(body.ShadowCount()).To(Equal(0))
	g.Expect(r.DynamicShadowCount()).To(Equal(0))
}

func TestMultiWorld_NegativeWorldID(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})

	_, err := r.AddRigidBody(actor.GlobalWorldID, body)
	g.Expect(err).To(HaveOccurred())
	g.Expect(body.ReferenceCount()).To(Equal(0))
}

func TestMultiWorld_DifferentRuntime(t *testing.T) {
	g := NewWithT(t)
	eng := newTestEngine(t, false)
	a := newTestRuntime(t, eng)
	b := newTestRuntime(t, eng)
	body := newBody(t, a, engine.MotionTypeDynamic, mgl32.Vec3{})

	_, err := b.AddRigidBody(0, body)
	g.Expect(err).To(MatchError(actor.ErrDifferentRuntime))
	g.Expect(body.ReferenceCount()).To(Equal(0))
}

func TestMultiWorld_DisposedBody(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	g.Expect(body.Dispose()).To(Succeed())

	_, err := r.AddRigidBody(0, body)
	g.Expect(err).To(MatchError(actor.ErrDisposed))
}

func TestMultiWorld_DisposalOrdering(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	g.Expect(r.AddRigidBody(0, body)).To(BeTrue())

	g.Expect(body.Dispose()).To(MatchError(actor.ErrInUse))
	g.Expect(body.IsDisposed()).To(BeFalse())

	g.Expect(r.RemoveRigidBody(0, body)).To(BeTrue())
	g.Expect(body.Dispose()).To(Succeed())
	g.Expect(body.IsDisposed()).To(BeTrue())
	g.Expect(body.Dispose()).To(Succeed())
}

// ============================================================================
// Shadows
// ============================================================================

func TestMultiWorld_DynamicShadowKeepsBackBuffer(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	g.Expect(r.AddRigidBody(0, body)).To(BeTrue())

	g.Expect(r.AddRigidBodyShadow(1, body)).To(BeTrue())
	g.Expect(r.AddRigidBodyShadow(1, body)).To(BeFalse())
	g.Expect(r.UsingBackBuffer()).To(BeTrue())
	g.Expect(r.DynamicShadowCount()).To(Equal(1))
	g.Expect(body.ShadowCount()).To(Equal(1))

	// the buffer stays on across immediate steps while the shadow exists
	r.Step(frameMillis)
	g.Expect(r.UsingBackBuffer()).To(BeTrue())
	// immediate reads keep using the working region
	g.Expect(body.UsingBackBuffer()).To(BeFalse())

	_, err := r.RemoveRigidBody(0, body)
	g.Expect(err).To(MatchError(actor.ErrInvariant))
	g.Expect(body.Dispose()).To(MatchError(actor.ErrInUse))

	g.Expect(r.RemoveRigidBodyShadow(1, body)).To(BeTrue())
	g.Expect(r.RemoveRigidBodyShadow(1, body)).To(BeFalse())
	g.Expect(r.DynamicShadowCount()).To(Equal(0))
	g.Expect(r.UsingBackBuffer()).To(BeTrue())

	r.Step(frameMillis)
	g.Expect(r.UsingBackBuffer()).To(BeFalse())
	g.Expect(r.RemoveRigidBody(0, body)).To(BeTrue())
}

func TestMultiWorld_KinematicShadowLeavesBufferAlone(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	bundle := newBundle(t, r, engine.MotionTypeKinematic, engine.MotionTypeKinematic)
	g.Expect(r.AddRigidBodyBundle(0, bundle)).To(BeTrue())

	g.Expect(r.AddRigidBodyBundleShadow(1, bundle)).To(BeTrue())
	g.Expect(r.AddRigidBodyBundleShadow(2, bundle)).To(BeTrue())
	g.Expect(r.UsingBackBuffer()).To(BeFalse())
	g.Expect(r.MultiWorld().ShadowCount()).To(Equal(2))
	g.Expect(bundle.ShadowCount()).To(Equal(2))

	g.Expect(r.RemoveRigidBodyBundleShadow(1, bundle)).To(BeTrue())
	g.Expect(r.RemoveRigidBodyBundleShadow(2, bundle)).To(BeTrue())
	g.Expect(bundle.ShadowCount()).To(Equal(0))
}

func TestMultiWorld_ShadowTransformMirrorsOwner(t *testing.T) {
	tests := []struct {
		name       string
		evaluation actor.EvaluationType
		worker     bool
	}{
		{"immediate", actor.EvaluationImmediate, false},
		{"buffered", actor.EvaluationBuffered, false},
		{"buffered with worker", actor.EvaluationBuffered, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			r := newTestRuntime(t, newTestEngine(t, tt.worker), WithEvaluation(tt.evaluation))
			body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{0, 10, 0})
			g.Expect(r.AddRigidBody(0, body)).To(BeTrue())
			g.Expect(r.AddRigidBodyShadow(1, body)).To(BeTrue())

			for iter := 0; iter < 3; iter++ {
				r.Step(frameMillis)

				owner, err := body.TransformMatrix()
				g.Expect(err).NotTo(HaveOccurred())
				shadow, err := r.MultiWorld().ShadowTransform(1, body)
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(shadow).To(Equal(owner))
			}
			g.Expect(translationY(mustTransform(t, body))).To(BeNumerically("<", 10))

			_, err := r.MultiWorld().ShadowTransform(2, body)
			g.Expect(err).To(MatchError(actor.ErrInvariant))
		})
	}
}

func TestMultiWorld_ShadowTransformIgnoresStagedWrites(t *testing.T) {
	for _, worker := range []bool{false, true} {
		g := NewWithT(t)
		eng := newTestEngine(t, worker)
		r := newTestRuntime(t, eng, WithEvaluation(actor.EvaluationBuffered))
		body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{0, 10, 0})
		g.Expect(r.AddRigidBody(0, body)).To(BeTrue())
		g.Expect(r.AddRigidBodyShadow(1, body)).To(BeTrue())

		worldPtr, err := r.MultiWorld().Ptr()
		g.Expect(err).NotTo(HaveOccurred())
		bodyPtr, err := body.Ptr()
		g.Expect(err).NotTo(HaveOccurred())

		r.Step(frameMillis)
		r.Wait()
		mirrored, ok := eng.MultiPhysicsWorldGetShadowTransform(worldPtr, 1, bodyPtr, 0)
		g.Expect(ok).To(BeTrue())
		g.Expect(translationY(mirrored)).To(BeNumerically("~", 9.9, 1e-5))

		// the second step publishes what the first one mirrored
		r.Step(frameMillis)
		r.Wait()
		g.Expect(body.SetDynamicTransformMatrix(mgl32.Translate3D(99, 99, 99), false)).To(Succeed())

		owner := mustTransform(t, body)
		shadow, err := r.MultiWorld().ShadowTransform(1, body)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(shadow).To(Equal(owner))
		g.Expect(shadow).To(Equal(mirrored))
		g.Expect(translationY(owner)).NotTo(BeNumerically("~", 99, 1e-3))

		// once committed and stepped, the teleport reaches every path
		r.Step(frameMillis)
		r.Step(frameMillis)
		r.Wait()
		shadow, err = r.MultiWorld().ShadowTransform(1, body)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(shadow).To(Equal(mustTransform(t, body)))
		g.Expect(shadow.Col(3).X()).To(BeNumerically("~", 99, 1e-3))
	}
}

func TestMultiWorld_BundleShadowTransform(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	bundle := newBundle(t, r, engine.MotionTypeKinematic, engine.MotionTypeDynamic)
	g.Expect(r.AddRigidBodyBundle(0, bundle)).To(BeTrue())
	g.Expect(r.AddRigidBodyBundleShadow(1, bundle)).To(BeTrue())
	g.Expect(r.DynamicShadowCount()).To(Equal(1))

	g.Expect(bundle.SetTransformMatrix(0, mgl32.Translate3D(0, 2, 0))).To(Succeed())
	r.Step(frameMillis)

	for i, n := 0, bundle.Count(); i < n; i++ {
		owner, err := bundle.TransformMatrix(i)
		g.Expect(err).NotTo(HaveOccurred())
		shadow, err := r.MultiWorld().BundleShadowTransform(1, bundle, i)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(shadow).To(Equal(owner))
	}

	_, err := r.MultiWorld().BundleShadowTransform(1, bundle, 2)
	g.Expect(err).To(MatchError(actor.ErrIndexOutOfRange))
}

func mustTransform(t *testing.T, body *actor.RigidBody) mgl32.Mat4 {
	t.Helper()
	m, err := body.TransformMatrix()
	if err != nil {
		t.Fatalf("TransformMatrix() error = %v", err)
	}
	return m
}

// ============================================================================
// Constraints
// ============================================================================

func TestMultiWorld_Constraints(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	a := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	b := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{1, 0, 0})
	c, err := constraint.NewGeneric6DofSpring(r.Host(), a, b, constraint.Frames{})
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(r.AddConstraint(0, c, true)).To(BeTrue())
	g.Expect(r.AddConstraint(0, c, true)).To(BeFalse())
	_, err = r.AddConstraint(1, c, true)
	g.Expect(err).To(MatchError(actor.ErrAlreadyAssigned))
	g.Expect(c.ReferenceCount()).To(Equal(1))
	g.Expect(r.MultiWorld().ConstraintCount()).To(Equal(1))

	g.Expect(c.Dispose()).To(MatchError(actor.ErrInUse))
	g.Expect(a.Dispose()).To(MatchError(actor.ErrInUse))

	g.Expect(r.RemoveConstraint(1, c)).To(BeFalse())
	g.Expect(r.RemoveConstraint(0, c)).To(BeTrue())
	g.Expect(r.RemoveConstraint(0, c)).To(BeFalse())
	g.Expect(c.Dispose()).To(Succeed())
	g.Expect(a.Dispose()).To(Succeed())
}

// ============================================================================
// Single world
// ============================================================================

func TestWorld(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	w := r.World()
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	bundle := newBundle(t, r, engine.MotionTypeKinematic)
	other := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})

	g.Expect(w.AddRigidBody(body)).To(BeTrue())
	g.Expect(w.AddRigidBodyBundle(bundle)).To(BeTrue())
	g.Expect(r.AddRigidBody(1, other)).To(BeTrue())
	g.Expect(w.BodyCount()).To(Equal(2))
	g.Expect(w.Multi().BodyCount()).To(Equal(3))

	_, id := body.WorldReference()
	g.Expect(id).To(Equal(DefaultWorldID))

	c, err := constraint.NewGeneric6DofSpringInBundle(r.Host(), newBundle(t, r, engine.MotionTypeDynamic, engine.MotionTypeDynamic), 0, 1, constraint.Frames{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(w.AddConstraint(c, false)).To(BeTrue())
	g.Expect(w.RemoveConstraint(c)).To(BeTrue())

	g.Expect(w.RemoveRigidBody(body)).To(BeTrue())
	g.Expect(w.RemoveRigidBodyBundle(bundle)).To(BeTrue())
	g.Expect(w.BodyCount()).To(Equal(0))
}

func TestMultiWorld_Dispose(t *testing.T) {
	g := NewWithT(t)
	r := newTestRuntime(t, newTestEngine(t, false))
	body := newBody(t, r, engine.MotionTypeDynamic, mgl32.Vec3{})
	static := newBody(t, r, engine.MotionTypeStatic, mgl32.Vec3{})
	g.Expect(r.AddRigidBody(0, body)).To(BeTrue())
	g.Expect(r.AddRigidBodyShadow(1, body)).To(BeTrue())
	g.Expect(r.AddRigidBodyToGlobal(static)).To(BeTrue())

	g.Expect(r.MultiWorld().Dispose()).To(Succeed())

	g.Expect(body.ReferenceCount()).To(Equal(0))
	g.Expect(body.ShadowCount()).To(Equal(0))
	g.Expect(static.ReferenceCount()).To(Equal(0))
	g.Expect(r.DynamicShadowCount()).To(Equal(0))
	g.Expect(r.MultiWorld().Dispose()).To(Succeed())

	_, err := r.AddRigidBody(0, body)
	g.Expect(err).To(MatchError(actor.ErrDisposed))
}

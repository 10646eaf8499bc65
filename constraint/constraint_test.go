package constraint

import (
	"errors"
	"testing"

	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/engine/local"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestHost(t *testing.T) (*actor.Host, *local.Engine) {
	t.Helper()
	eng, err := local.New(local.WithMemorySize(1 << 20))
	if err != nil {
		t.Fatalf("local.New() error = %v", err)
	}
	t.Cleanup(eng.Close)
	return actor.NewHost(eng, nil), eng
}

func newBody(t *testing.T, host *actor.Host) *actor.RigidBody {
	t.Helper()
	shape, _ := actor.NewSphereShape(host, 1)
	rb, err := actor.NewRigidBody(host, actor.RigidBodyConstructionInfo{Shape: shape, MotionType: engine.MotionTypeDynamic, Mass: 1})
	if err != nil {
		t.Fatalf("NewRigidBody() error = %v", err)
	}
	return rb
}

func newBundle(t *testing.T, host *actor.Host, n int) *actor.RigidBodyBundle {
	t.Helper()
	shape, _ := actor.NewSphereShape(host, 1)
	infos := make([]actor.RigidBodyConstructionInfo, n)
	for i := range infos {
		infos[i] = actor.RigidBodyConstructionInfo{Shape: shape, MotionType: engine.MotionTypeDynamic, Mass: 1}
	}
	b, err := actor.NewRigidBodyBundle(host, infos)
	if err != nil {
		t.Fatalf("NewRigidBodyBundle() error = %v", err)
	}
	return b
}

type testWorld struct{ host *actor.Host }

func (w *testWorld) Host() *actor.Host { return w.host }

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewGeneric6DofSpring_References(t *testing.T) {
	host, _ := newTestHost(t)
	a, b := newBody(t, host), newBody(t, host)

	c, err := NewGeneric6DofSpring(host, a, b, Frames{})
	if err != nil {
		t.Fatalf("NewGeneric6DofSpring() error = %v", err)
	}
	if a.ReferenceCount() != 1 || b.ReferenceCount() != 1 {
		t.Errorf("body references = %d, %d, want 1, 1", a.ReferenceCount(), b.ReferenceCount())
	}
	if err := a.Dispose(); !errors.Is(err, actor.ErrInUse) {
		t.Errorf("body Dispose() while constrained error = %v, want ErrInUse", err)
	}

	if err := c.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if a.ReferenceCount() != 0 || b.ReferenceCount() != 0 {
		t.Errorf("body references after dispose = %d, %d, want 0, 0", a.ReferenceCount(), b.ReferenceCount())
	}
	if err := c.Dispose(); err != nil {
		t.Errorf("second Dispose() error = %v", err)
	}
	if err := c.SetStiffness(0, 1); !errors.Is(err, actor.ErrDisposed) {
		t.Errorf("SetStiffness() after dispose error = %v, want ErrDisposed", err)
	}
}

func TestNewGeneric6DofSpring_Errors(t *testing.T) {
	host, _ := newTestHost(t)
	other := actor.NewHost(host.Engine(), nil)
	a := newBody(t, host)
	foreign := newBody(t, other)
	disposed := newBody(t, host)
	disposed.Dispose()

	tests := []struct {
		name string
		a, b *actor.RigidBody
		want error
	}{
		{"same body", a, a, actor.ErrInvariant},
		{"different runtime", a, foreign, actor.ErrDifferentRuntime},
		{"disposed body", a, disposed, actor.ErrDisposed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeneric6DofSpring(host, tt.a, tt.b, Frames{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if a.ReferenceCount() != 0 {
				t.Errorf("failed construction left %d references", a.ReferenceCount())
			}
		})
	}
}

func TestNewGeneric6DofSpringInBundle(t *testing.T) {
	host, _ := newTestHost(t)
	bundle := newBundle(t, host, 3)

	tests := []struct {
		name           string
		indexA, indexB int
		want           error
	}{
		{"valid", 0, 2, nil},
		{"out of range", 0, 3, actor.ErrIndexOutOfRange},
		{"negative", -1, 1, actor.ErrIndexOutOfRange},
		{"same member", 1, 1, actor.ErrInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewGeneric6DofSpringInBundle(host, bundle, tt.indexA, tt.indexB, Frames{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if err != nil {
				return
			}
			if a, b := c.Indices(); a != tt.indexA || b != tt.indexB {
				t.Errorf("Indices() = %d, %d", a, b)
			}
			if bundle.ReferenceCount() != 1 {
				t.Errorf("bundle ReferenceCount() = %d, want 1", bundle.ReferenceCount())
			}
			c.Dispose()
			if bundle.ReferenceCount() != 0 {
				t.Errorf("bundle ReferenceCount() after dispose = %d, want 0", bundle.ReferenceCount())
			}
		})
	}
}

// =============================================================================
// Configuration Tests
// =============================================================================

func TestConstraint_LimitsAndSprings(t *testing.T) {
	host, eng := newTestHost(t)
	c, _ := NewGeneric6DofSpring(host, newBody(t, host), newBody(t, host), Frames{})
	ptr, _ := c.Ptr()

	c.SetLinearLowerLimit(mgl32.Vec3{-1, -2, -3})
	c.SetLinearUpperLimit(mgl32.Vec3{1, 2, 3})
	c.SetAngularLowerLimit(mgl32.Vec3{-0.5, 0, 0})
	c.SetAngularUpperLimit(mgl32.Vec3{0.5, 0, 0})
	c.EnableSpring(4, true)
	c.SetStiffness(4, 200)
	c.SetDamping(4, 0.25)
	c.SetEquilibriumPoint(4, 0.1)

	ll, lu, al, au := eng.Limits(ptr)
	if ll != (mgl32.Vec3{-1, -2, -3}) || lu != (mgl32.Vec3{1, 2, 3}) || al.X() != -0.5 || au.X() != 0.5 {
		t.Errorf("Limits() = %v %v %v %v", ll, lu, al, au)
	}
	enabled, stiffness, damping, equilibrium := eng.Springs(ptr, 4)
	if !enabled || stiffness != 200 || damping != 0.25 || equilibrium != 0.1 {
		t.Errorf("Springs(4) = %v %v %v %v", enabled, stiffness, damping, equilibrium)
	}

	tests := []struct {
		name string
		dof  int
	}{
		{"negative", -1},
		{"past angular", DofCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.EnableSpring(tt.dof, true); !errors.Is(err, actor.ErrIndexOutOfRange) {
				t.Errorf("EnableSpring(%d) error = %v, want ErrIndexOutOfRange", tt.dof, err)
			}
		})
	}
}

func TestConstraint_WorldReference(t *testing.T) {
	host, _ := newTestHost(t)
	c, _ := NewGeneric6DofSpring(host, newBody(t, host), newBody(t, host), Frames{})
	w := &testWorld{host}

	if err := c.SetWorldReference(w, 1); err != nil {
		t.Fatalf("SetWorldReference() error = %v", err)
	}
	if err := c.SetWorldReference(w, 1); !errors.Is(err, actor.ErrAlreadyAssigned) {
		t.Errorf("second SetWorldReference() error = %v, want ErrAlreadyAssigned", err)
	}
	if got, id := c.WorldReference(); got != w || id != 1 {
		t.Errorf("WorldReference() = %v, %d", got, id)
	}

	c.AddReference()
	if err := c.Dispose(); !errors.Is(err, actor.ErrInUse) {
		t.Errorf("Dispose() while in a world error = %v, want ErrInUse", err)
	}
	c.RemoveReference()
	c.ClearWorldReference()
	if err := c.SetWorldReference(&testWorld{actor.NewHost(host.Engine(), nil)}, 0); !errors.Is(err, actor.ErrDifferentRuntime) {
		t.Errorf("foreign world error = %v, want ErrDifferentRuntime", err)
	}
}

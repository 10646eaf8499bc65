package actor

import (
	"errors"
	"testing"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// =============================================================================
// Shape Tests
// =============================================================================

func TestNewShapes(t *testing.T) {
	host := newTestHost(t)

	tests := []struct {
		name    string
		create  func() (*Shape, error)
		want    engine.ShapeType
		wantErr bool
	}{
		{"box", func() (*Shape, error) { return NewBoxShape(host, mgl32.Vec3{1, 2, 3}) }, engine.ShapeTypeBox, false},
		{"sphere", func() (*Shape, error) { return NewSphereShape(host, 0.5) }, engine.ShapeTypeSphere, false},
		{"capsule", func() (*Shape, error) { return NewCapsuleShape(host, 0.5, 2) }, engine.ShapeTypeCapsule, false},
		{"plane", func() (*Shape, error) { return NewStaticPlaneShape(host, mgl32.Vec3{0, 1, 0}, 0) }, engine.ShapeTypeStaticPlane, false},
		{"zero sphere", func() (*Shape, error) { return NewSphereShape(host, 0) }, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.create()
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("create error = %v", err)
			}
			if s.Type() != tt.want {
				t.Errorf("Type() = %v, want %v", s.Type(), tt.want)
			}
			if _, err := s.Ptr(); err != nil {
				t.Errorf("Ptr() error = %v", err)
			}
			if s.Host() != host {
				t.Error("Host() is not the creating host")
			}
		})
	}
}

func TestShape_Dispose(t *testing.T) {
	host := newTestHost(t)
	shape, _ := NewBoxShape(host, mgl32.Vec3{1, 1, 1})
	rb, err := NewRigidBody(host, RigidBodyConstructionInfo{Shape: shape, MotionType: engine.MotionTypeStatic})
	if err != nil {
		t.Fatalf("NewRigidBody() error = %v", err)
	}

	if err := shape.Dispose(); !errors.Is(err, ErrInUse) {
		t.Fatalf("Dispose() error = %v, want ErrInUse", err)
	}
	rb.Dispose()
	if err := shape.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if _, err := shape.Ptr(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Ptr() error = %v, want ErrDisposed", err)
	}
	if err := shape.Dispose(); err != nil {
		t.Errorf("second Dispose() error = %v", err)
	}
}

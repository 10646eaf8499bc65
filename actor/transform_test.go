package actor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestTransform_MatrixRoundTrip(t *testing.T) {
	tr := Transform{
		Position: mgl32.Vec3{1, 2, 3},
		Rotation: mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}),
	}

	m := tr.Matrix()
	if m[12] != 1 || m[13] != 2 || m[14] != 3 {
		t.Errorf("translation column = %v, want {1 2 3}", m.Col(3))
	}

	// +X rotated 90° around Y points to -Z
	x := m.Mul4x1(mgl32.Vec4{1, 0, 0, 0})
	if !almostEqual(x.Z(), -1, 1e-5) {
		t.Errorf("rotated X axis = %v, want {0 0 -1}", x)
	}

	back := TransformFromMatrix(m)
	if !back.Position.ApproxEqual(tr.Position) {
		t.Errorf("Position = %v, want %v", back.Position, tr.Position)
	}
	if !back.Rotation.ApproxEqualThreshold(tr.Rotation, 1e-5) && !back.Rotation.Scale(-1).ApproxEqualThreshold(tr.Rotation, 1e-5) {
		t.Errorf("Rotation = %v, want %v", back.Rotation, tr.Rotation)
	}
}

func TestNewTransform_Identity(t *testing.T) {
	if m := NewTransform().Matrix(); m != mgl32.Ident4() {
		t.Errorf("NewTransform().Matrix() = %v, want identity", m)
	}
}

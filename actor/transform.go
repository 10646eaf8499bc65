package actor

import "github.com/go-gl/mathgl/mgl32"

// Transform is a motion state decomposed into position and rotation.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
	}
}

// Matrix composes the column-major motion state matrix.
func (t Transform) Matrix() mgl32.Mat4 {
	m := t.Rotation.Normalize().Mat4()
	m[12], m[13], m[14] = t.Position[0], t.Position[1], t.Position[2]
	return m
}

// TransformFromMatrix decomposes a motion state matrix. Scale is ignored.
func TransformFromMatrix(m mgl32.Mat4) Transform {
	return Transform{
		Position: mgl32.Vec3{m[12], m[13], m[14]},
		Rotation: mgl32.Mat4ToQuat(m).Normalize(),
	}
}

package local

import (
	"fmt"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

type shape struct {
	info engine.ShapeInfo
	// bodies using the shape; DestroyShape refuses while non-zero
	users int
}

func newShape(info engine.ShapeInfo) (*shape, error) {
	switch info.Type {
	case engine.ShapeTypeSphere:
		if info.Radius <= 0 {
			return nil, fmt.Errorf("local: sphere radius must be positive, got %v", info.Radius)
		}
	case engine.ShapeTypeBox:
		if info.HalfExtents.X() <= 0 || info.HalfExtents.Y() <= 0 || info.HalfExtents.Z() <= 0 {
			return nil, fmt.Errorf("local: box half extents must be positive, got %v", info.HalfExtents)
		}
	case engine.ShapeTypeCapsule:
		if info.Radius <= 0 || info.Height < 0 {
			return nil, fmt.Errorf("local: invalid capsule radius %v height %v", info.Radius, info.Height)
		}
	case engine.ShapeTypeStaticPlane:
		if info.Normal.Len() == 0 {
			return nil, fmt.Errorf("local: plane normal must be non-zero")
		}
		info.Normal = info.Normal.Normalize()
	default:
		return nil, fmt.Errorf("local: unknown shape type %d", info.Type)
	}
	return &shape{info: info}, nil
}

// computeInertia returns the diagonal of the local inertia tensor for mass.
func (s *shape) computeInertia(mass float32) mgl32.Vec3 {
	switch s.info.Type {
	case engine.ShapeTypeSphere:
		// I = (2/5) * m * r²
		i := (2.0 / 5.0) * mass * s.info.Radius * s.info.Radius
		return mgl32.Vec3{i, i, i}

	case engine.ShapeTypeBox:
		// I = (m/12) * (dimension1² + dimension2²)
		x := s.info.HalfExtents.X() * 2
		y := s.info.HalfExtents.Y() * 2
		z := s.info.HalfExtents.Z() * 2
		factor := mass / 12.0
		return mgl32.Vec3{
			factor * (y*y + z*z),
			factor * (x*x + z*z),
			factor * (x*x + y*y),
		}

	case engine.ShapeTypeCapsule:
		// Box approximation around the capsule, Y up
		r := s.info.Radius
		x := r * 2
		y := s.info.Height + r*2
		factor := mass / 12.0
		return mgl32.Vec3{
			factor * (y*y + x*x),
			factor * (x*x + x*x),
			factor * (x*x + y*y),
		}

	default:
		// Static planes have no inertia
		return mgl32.Vec3{}
	}
}

package local

import (
	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// Degrees of freedom of a 6-DoF spring: 0..2 linear, 3..5 angular.
const dofCount = 6

// constraint only records its configuration; no solving is done.
type constraint struct {
	info engine.ConstraintInfo

	linearLowerLimit  mgl32.Vec3
	linearUpperLimit  mgl32.Vec3
	angularLowerLimit mgl32.Vec3
	angularUpperLimit mgl32.Vec3

	springEnabled [dofCount]bool
	stiffness     [dofCount]float32
	damping       [dofCount]float32
	equilibrium   [dofCount]float32

	groups []*group
}

func validDof(dof int) bool {
	return dof >= 0 && dof < dofCount
}

package feathersync

import (
	"github.com/akmonengine/feathersync/actor"
	"github.com/akmonengine/feathersync/constraint"
)

// DefaultWorldID is the world id used by World.
const DefaultWorldID = 0

// World is the single world view of a Runtime: every body it owns lives in
// DefaultWorldID of the runtime's MultiWorld.
type World struct {
	multi *MultiWorld
}

func (w *World) Host() *actor.Host {
	return w.multi.Host()
}

// Multi returns the MultiWorld backing w.
func (w *World) Multi() *MultiWorld {
	return w.multi
}

// AddRigidBody adds a rigid body to the world
func (w *World) AddRigidBody(body *actor.RigidBody) (bool, error) {
	return w.multi.AddRigidBody(DefaultWorldID, body)
}

// RemoveRigidBody removes a rigid body from the world
func (w *World) RemoveRigidBody(body *actor.RigidBody) (bool, error) {
	return w.multi.RemoveRigidBody(DefaultWorldID, body)
}

func (w *World) AddRigidBodyBundle(bundle *actor.RigidBodyBundle) (bool, error) {
	return w.multi.AddRigidBodyBundle(DefaultWorldID, bundle)
}

func (w *World) RemoveRigidBodyBundle(bundle *actor.RigidBodyBundle) (bool, error) {
	return w.multi.RemoveRigidBodyBundle(DefaultWorldID, bundle)
}

func (w *World) AddConstraint(c *constraint.Constraint, disableCollisionsBetweenLinkedBodies bool) (bool, error) {
	return w.multi.AddConstraint(DefaultWorldID, c, disableCollisionsBetweenLinkedBodies)
}

func (w *World) RemoveConstraint(c *constraint.Constraint) (bool, error) {
	return w.multi.RemoveConstraint(DefaultWorldID, c)
}

// BodyCount counts the bodies and bundles of the world.
func (w *World) BodyCount() int {
	n := 0
	for _, m := range w.multi.owned {
		if m.worldID == DefaultWorldID {
			n++
		}
	}
	return n
}

package actor

import (
	"fmt"

	"github.com/akmonengine/feathersync/engine"
	"github.com/go-gl/mathgl/mgl32"
)

// Shape is a collision shape living in the engine. Bodies built on it hold
// a reference, so it cannot be disposed before them.
type Shape struct {
	host   *Host
	id     EntityID
	handle Handle
	info   engine.ShapeInfo
}

func newShape(host *Host, info engine.ShapeInfo) (*Shape, error) {
	ptr, err := host.engine.CreateShape(info)
	if err != nil {
		return nil, fmt.Errorf("actor: create shape: %w", err)
	}

	s := &Shape{
		host:   host,
		handle: NewHandle(ptr, host.engine.DestroyShape),
		info:   info,
	}
	s.id = host.Register(s)
	return s, nil
}

// NewBoxShape creates a box from its half extents.
func NewBoxShape(host *Host, halfExtents mgl32.Vec3) (*Shape, error) {
	return newShape(host, engine.ShapeInfo{Type: engine.ShapeTypeBox, HalfExtents: halfExtents})
}

func NewSphereShape(host *Host, radius float32) (*Shape, error) {
	return newShape(host, engine.ShapeInfo{Type: engine.ShapeTypeSphere, Radius: radius})
}

// NewCapsuleShape creates a Y-aligned capsule. height excludes the caps.
func NewCapsuleShape(host *Host, radius, height float32) (*Shape, error) {
	return newShape(host, engine.ShapeInfo{Type: engine.ShapeTypeCapsule, Radius: radius, Height: height})
}

func NewStaticPlaneShape(host *Host, normal mgl32.Vec3, distance float32) (*Shape, error) {
	return newShape(host, engine.ShapeInfo{Type: engine.ShapeTypeStaticPlane, Normal: normal, Distance: distance})
}

func (s *Shape) EntityID() EntityID       { return s.id }
func (s *Shape) Host() *Host              { return s.host }
func (s *Shape) Type() engine.ShapeType   { return s.info.Type }
func (s *Shape) Info() engine.ShapeInfo   { return s.info }
func (s *Shape) IsDisposed() bool         { return s.handle.IsDisposed() }
func (s *Shape) Ptr() (engine.Ptr, error) { return s.handle.Ptr() }
func (s *Shape) ReferenceCount() int      { return s.handle.ReferenceCount() }

func (s *Shape) addReference()    { s.handle.AddReference() }
func (s *Shape) removeReference() { s.handle.RemoveReference() }

// Dispose destroys the shape once no body uses it.
func (s *Shape) Dispose() error {
	if s.handle.IsDisposed() {
		return nil
	}
	if s.handle.HasReferences() {
		return s.handle.Dispose()
	}
	s.host.lock.Wait()
	if err := s.handle.Dispose(); err != nil {
		return err
	}
	s.host.Unregister(s.id)
	return nil
}

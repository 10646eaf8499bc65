package actor

import (
	"fmt"

	"github.com/akmonengine/feathersync/engine"
	"github.com/akmonengine/feathersync/logging"
	"github.com/akmonengine/feathersync/spinlock"
	"github.com/google/uuid"
)

// GlobalWorldID is the world id recorded by a global membership.
const GlobalWorldID = -1

// EntityID is a stable arena index. It is reused only after the entity it
// named has been disposed.
type EntityID uint32

// Resource is anything the Host tracks until it is disposed.
type Resource interface {
	EntityID() EntityID
	IsDisposed() bool
	Dispose() error
}

// Entity is a resource holding motion state: a RigidBody or a
// RigidBodyBundle. The Runtime drives these every frame.
type Entity interface {
	Resource
	NeedsCommit() bool
	CommitToEngine() error
	SwitchEvaluation(t EvaluationType) error
	UseBackBuffer(enabled bool) error
	SyncBuffer() error
}

// World is the marker implemented by the worlds entities can join. Entities
// only keep it as a non-owning back reference.
type World interface {
	Host() *Host
}

// Host is the context shared by everything created under one runtime: the
// engine, its memory, the step lock, and the entity arena.
type Host struct {
	id     uuid.UUID
	engine engine.Engine
	memory *engine.Memory
	lock   *spinlock.SpinLock
	logger logging.Logger

	evaluation    EvaluationType
	useBackBuffer bool

	resources []Resource
	free      []EntityID
	live      int
}

func NewHost(eng engine.Engine, logger logging.Logger, lockOpts ...spinlock.Option) *Host {
	if logger == nil {
		logger = logging.Nop()
	}
	opts := append([]spinlock.Option{spinlock.WithLogger(logger)}, lockOpts...)

	return &Host{
		id:     uuid.New(),
		engine: eng,
		memory: eng.Memory(),
		lock:   spinlock.New(eng.Memory(), eng.LockPtr(), opts...),
		logger: logger,
	}
}

func (h *Host) ID() uuid.UUID                  { return h.id }
func (h *Host) Engine() engine.Engine          { return h.engine }
func (h *Host) Memory() *engine.Memory         { return h.memory }
func (h *Host) Lock() *spinlock.SpinLock       { return h.lock }
func (h *Host) Logger() logging.Logger         { return h.logger }
func (h *Host) Evaluation() EvaluationType     { return h.evaluation }
func (h *Host) UsingBackBuffer() bool          { return h.useBackBuffer }
func (h *Host) SetEvaluation(t EvaluationType) { h.evaluation = t }

// SetUsingBackBuffer records whether new entities start double-buffered.
func (h *Host) SetUsingBackBuffer(enabled bool) {
	h.useBackBuffer = enabled
}

// Check returns ErrDifferentRuntime unless other is h.
func (h *Host) Check(other *Host) error {
	if other != h {
		var otherID uuid.UUID
		if other != nil {
			otherID = other.id
		}
		return fmt.Errorf("%w: %s, expected %s", ErrDifferentRuntime, otherID, h.id)
	}
	return nil
}

// Register adds r to the arena and returns its id.
func (h *Host) Register(r Resource) EntityID {
	h.live++
	if n := len(h.free); n > 0 {
		id := h.free[n-1]
		h.free = h.free[:n-1]
		h.resources[id-1] = r
		return id
	}
	h.resources = append(h.resources, r)
	return EntityID(len(h.resources))
}

// Unregister frees id. Unknown ids are ignored.
func (h *Host) Unregister(id EntityID) {
	if id == 0 || int(id) > len(h.resources) || h.resources[id-1] == nil {
		return
	}
	h.resources[id-1] = nil
	h.free = append(h.free, id)
	h.live--
}

// Resource returns the live resource registered under id.
func (h *Host) Resource(id EntityID) (Resource, bool) {
	if id == 0 || int(id) > len(h.resources) || h.resources[id-1] == nil {
		return nil, false
	}
	return h.resources[id-1], true
}

// Resources returns the live resources in id order.
func (h *Host) Resources() []Resource {
	resources := make([]Resource, 0, h.live)
	for _, r := range h.resources {
		if r != nil {
			resources = append(resources, r)
		}
	}
	return resources
}

// Entities returns the live bodies and bundles in id order.
func (h *Host) Entities() []Entity {
	entities := make([]Entity, 0, h.live)
	for _, r := range h.resources {
		if e, ok := r.(Entity); ok {
			entities = append(entities, e)
		}
	}
	return entities
}

func (h *Host) LiveCount() int {
	return h.live
}

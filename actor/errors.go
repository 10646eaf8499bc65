package actor

import "errors"

// Contract violations. None of them are retried; they are returned to the
// caller as soon as they are detected and tested with errors.Is.
var (
	// ErrDisposed is returned by any operation on a released handle.
	ErrDisposed = errors.New("actor: handle is disposed")

	// ErrDifferentRuntime is returned when entities of two runtimes are mixed.
	ErrDifferentRuntime = errors.New("actor: entity belongs to a different runtime")

	// ErrInUse is returned by Dispose while references or shadows remain.
	ErrInUse = errors.New("actor: handle is still referenced")

	// ErrIndexOutOfRange is returned for a bundle index outside 0..count-1.
	ErrIndexOutOfRange = errors.New("actor: index out of range")

	// ErrMotionType is returned when an operation does not apply to the
	// body's motion type.
	ErrMotionType = errors.New("actor: operation not valid for motion type")

	// ErrInvariant is returned for membership violations: double owning,
	// owning and global at once, dynamic bodies added as global.
	ErrInvariant = errors.New("actor: membership invariant violated")

	// ErrAlreadyAssigned is returned when an entity is attached to a second
	// world.
	ErrAlreadyAssigned = errors.New("actor: already assigned to a world")
)

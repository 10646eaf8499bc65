package actor

import (
	"fmt"

	"github.com/akmonengine/feathersync/engine"
)

// Handle wraps an engine pointer with explicit reference counting.
//
// Counters are plain integers: every call happens on the orchestrating
// goroutine, never on the engine worker.
type Handle struct {
	ptr            engine.Ptr
	referenceCount int
	shadowCount    int
	release        func(engine.Ptr)
}

// NewHandle wraps ptr. release is called exactly once, by Dispose.
func NewHandle(ptr engine.Ptr, release func(engine.Ptr)) Handle {
	return Handle{ptr: ptr, release: release}
}

// Ptr returns the engine pointer, or ErrDisposed.
func (h *Handle) Ptr() (engine.Ptr, error) {
	if h.ptr == 0 {
		return 0, ErrDisposed
	}
	return h.ptr, nil
}

func (h *Handle) IsDisposed() bool {
	return h.ptr == 0
}

func (h *Handle) AddReference() {
	h.referenceCount++
}

func (h *Handle) RemoveReference() {
	if h.referenceCount == 0 {
		panic("actor: reference count underflow")
	}
	h.referenceCount--
}

func (h *Handle) AddShadowReference() {
	h.shadowCount++
}

func (h *Handle) RemoveShadowReference() {
	if h.shadowCount == 0 {
		panic("actor: shadow count underflow")
	}
	h.shadowCount--
}

func (h *Handle) ReferenceCount() int {
	return h.referenceCount
}

func (h *Handle) ShadowCount() int {
	return h.shadowCount
}

// HasReferences reports whether anything besides the owner may read the
// entity: a world, a constraint or a shadow.
func (h *Handle) HasReferences() bool {
	return h.referenceCount > 0 || h.shadowCount > 0
}

// Dispose releases the engine object. Disposing twice is a no-op.
func (h *Handle) Dispose() error {
	if h.ptr == 0 {
		return nil
	}
	if h.HasReferences() {
		return fmt.Errorf("%w: %d references, %d shadows", ErrInUse, h.referenceCount, h.shadowCount)
	}
	ptr := h.ptr
	h.ptr = 0
	if h.release != nil {
		h.release(ptr)
	}
	return nil
}

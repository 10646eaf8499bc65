package buffer

import "github.com/akmonengine/feathersync/engine"

// DoubleBuffer is a pair of views, front and back, over the same logical
// float32 array in linear memory. In single-buffered mode both views point
// at the same region.
type DoubleBuffer struct {
	mem    *engine.Memory
	length int

	frontPtr engine.Ptr
	backPtr  engine.Ptr
	front    []float32
	back     []float32
}

// New creates a single-buffered DoubleBuffer of length floats at ptr.
func New(mem *engine.Memory, ptr engine.Ptr, length int) *DoubleBuffer {
	view := mem.Float32s(ptr, length)
	return &DoubleBuffer{
		mem:      mem,
		length:   length,
		frontPtr: ptr,
		backPtr:  ptr,
		front:    view,
		back:     view,
	}
}

func (b *DoubleBuffer) Len() int {
	return b.length
}

func (b *DoubleBuffer) Front() []float32 {
	return b.front
}

func (b *DoubleBuffer) Back() []float32 {
	return b.back
}

func (b *DoubleBuffer) FrontPtr() engine.Ptr {
	return b.frontPtr
}

func (b *DoubleBuffer) BackPtr() engine.Ptr {
	return b.backPtr
}

// IsDoubleBuffered reports whether the two views are distinct.
func (b *DoubleBuffer) IsDoubleBuffered() bool {
	return b.frontPtr != b.backPtr
}

// Swap exchanges the front and back views. O(1).
func (b *DoubleBuffer) Swap() {
	b.frontPtr, b.backPtr = b.backPtr, b.frontPtr
	b.front, b.back = b.back, b.front
}

// UpdateBackBufferReference re-derives the back view at ptr.
func (b *DoubleBuffer) UpdateBackBufferReference(ptr engine.Ptr) {
	if ptr == b.backPtr {
		return
	}
	b.backPtr = ptr
	b.back = b.mem.Float32s(ptr, b.length)
}

// ForceFront resynchronizes to single-buffered mode on ptr.
func (b *DoubleBuffer) ForceFront(ptr engine.Ptr) {
	if ptr != b.frontPtr {
		b.frontPtr = ptr
		b.front = b.mem.Float32s(ptr, b.length)
	}
	b.backPtr = b.frontPtr
	b.back = b.front
}

// Sync follows the engine's published pointer. When it equals the back view
// the views are swapped; an unknown pointer becomes the new front and the old
// front becomes the back. It reports whether the front moved.
func (b *DoubleBuffer) Sync(published engine.Ptr) bool {
	if published == b.frontPtr {
		return false
	}
	if published != b.backPtr {
		b.UpdateBackBufferReference(published)
	}
	b.Swap()
	return true
}

// Span returns a window of length floats starting at offset floats.
func (b *DoubleBuffer) Span(offset, length int) *Span {
	if offset < 0 || length < 0 || offset+length > b.length {
		panic("buffer: span out of range")
	}
	s := &Span{buffer: b, offset: offset, length: length}
	s.rederive()
	return s
}

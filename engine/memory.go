package engine

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

const (
	// Alignment of every block returned by Allocate, in bytes.
	Alignment = 16

	// reserved keeps offset 0 free so that Ptr(0) always means null.
	reserved = Alignment
)

var (
	ErrOutOfMemory = errors.New("engine: out of linear memory")
	ErrInvalidSize = errors.New("engine: invalid allocation size")
)

// Memory is the single linear memory block shared between the host and the
// engine. Offsets into it are handed around as Ptr values.
//
// The allocator is a bump allocator with per-size free lists. Views returned by
// Float32s and Bytes alias the block and stay valid for the lifetime of Memory.
type Memory struct {
	words []uint64
	data  []byte

	mu     sync.Mutex
	offset int
	free   map[int][]Ptr
	used   int
}

// NewMemory creates a linear memory of size bytes, rounded up to Alignment.
func NewMemory(size int) *Memory {
	size = alignUp(max(size, reserved+Alignment))
	words := make([]uint64, size/8)

	return &Memory{
		words:  words,
		data:   unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size),
		offset: reserved,
		free:   make(map[int][]Ptr),
	}
}

func alignUp(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// Allocate reserves size bytes and returns their offset. The block is zeroed.
func (m *Memory) Allocate(size int) (Ptr, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	size = alignUp(size)

	m.mu.Lock()
	defer m.mu.Unlock()

	if blocks := m.free[size]; len(blocks) > 0 {
		ptr := blocks[len(blocks)-1]
		m.free[size] = blocks[:len(blocks)-1]
		clear(m.data[ptr : int(ptr)+size])
		m.used += size
		return ptr, nil
	}

	if m.offset+size > len(m.data) {
		return 0, fmt.Errorf("%w: requested %d bytes, %d left", ErrOutOfMemory, size, len(m.data)-m.offset)
	}

	ptr := Ptr(m.offset)
	m.offset += size
	m.used += size
	return ptr, nil
}

// Deallocate returns a block obtained from Allocate with the same size.
func (m *Memory) Deallocate(ptr Ptr, size int) {
	if ptr == 0 || size <= 0 {
		return
	}
	size = alignUp(size)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.free[size] = append(m.free[size], ptr)
	m.used -= size
}

// Size is the total capacity of the block in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// Used is the number of bytes currently allocated.
func (m *Memory) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Float32s returns a view of n float32 values starting at ptr.
func (m *Memory) Float32s(ptr Ptr, n int) []float32 {
	m.check(ptr, n*4)
	return unsafe.Slice((*float32)(unsafe.Pointer(&m.data[ptr])), n)
}

// Bytes returns a view of n bytes starting at ptr.
func (m *Memory) Bytes(ptr Ptr, n int) []byte {
	m.check(ptr, n)
	return m.data[ptr : int(ptr)+n : int(ptr)+n]
}

// Word returns the 32-bit word at ptr, for use with sync/atomic.
func (m *Memory) Word(ptr Ptr) *uint32 {
	m.check(ptr, 4)
	if ptr%4 != 0 {
		panic(fmt.Sprintf("engine: unaligned word at %d", ptr))
	}
	return (*uint32)(unsafe.Pointer(&m.data[ptr]))
}

func (m *Memory) check(ptr Ptr, n int) {
	if ptr == 0 || int(ptr)+n > len(m.data) {
		panic(fmt.Sprintf("engine: access [%d, %d) outside linear memory of %d bytes", ptr, int(ptr)+n, len(m.data)))
	}
}

package buffer

import "github.com/akmonengine/feathersync/engine"

// Span is a narrow window into a DoubleBuffer, typically one body's motion
// state inside a bundle. It detects front/back flips lazily on access, by
// comparing the pointers cached at the last access with the buffer's.
type Span struct {
	buffer *DoubleBuffer
	offset int
	length int

	cachedFront engine.Ptr
	cachedBack  engine.Ptr
	front       []float32
	back        []float32
}

// Front returns the current front window.
func (s *Span) Front() []float32 {
	s.refresh()
	return s.front
}

// Back returns the current back window.
func (s *Span) Back() []float32 {
	s.refresh()
	return s.back
}

func (s *Span) Len() int {
	return s.length
}

func (s *Span) refresh() {
	b := s.buffer
	if s.cachedFront == b.frontPtr && s.cachedBack == b.backPtr {
		return
	}
	if s.cachedFront == b.backPtr && s.cachedBack == b.frontPtr {
		s.cachedFront, s.cachedBack = s.cachedBack, s.cachedFront
		s.front, s.back = s.back, s.front
		return
	}
	s.rederive()
}

func (s *Span) rederive() {
	b := s.buffer
	s.cachedFront = b.frontPtr
	s.cachedBack = b.backPtr
	s.front = b.front[s.offset : s.offset+s.length : s.offset+s.length]
	s.back = b.back[s.offset : s.offset+s.length : s.offset+s.length]
}

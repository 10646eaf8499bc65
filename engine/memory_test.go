package engine

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestMemory_AllocateAligned(t *testing.T) {
	mem := NewMemory(1024)

	a, err := mem.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	b, err := mem.Allocate(MotionStateSize)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if a == 0 || b == 0 {
		t.Fatal("Allocate() returned the null pointer")
	}
	if a%Alignment != 0 || b%Alignment != 0 {
		t.Errorf("pointers %d, %d are not %d-byte aligned", a, b, Alignment)
	}
	if b-a != Alignment {
		t.Errorf("second block at %d, want %d", b, a+Alignment)
	}
}

func TestMemory_AllocateInvalid(t *testing.T) {
	mem := NewMemory(1024)

	tests := []struct {
		name string
		size int
		want error
	}{
		{"zero", 0, ErrInvalidSize},
		{"negative", -4, ErrInvalidSize},
		{"too large", 1 << 20, ErrOutOfMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mem.Allocate(tt.size)
			if !errors.Is(err, tt.want) {
				t.Errorf("Allocate(%d) error = %v, want %v", tt.size, err, tt.want)
			}
		})
	}
}

func TestMemory_DeallocateReuses(t *testing.T) {
	mem := NewMemory(1024)

	a, _ := mem.Allocate(64)
	view := mem.Float32s(a, 16)
	view[3] = 42

	mem.Deallocate(a, 64)
	if mem.Used() != 0 {
		t.Errorf("Used() = %d after deallocate, want 0", mem.Used())
	}

	b, _ := mem.Allocate(64)
	if b != a {
		t.Errorf("Allocate() = %d, want reused block %d", b, a)
	}
	if mem.Float32s(b, 16)[3] != 0 {
		t.Error("reused block was not zeroed")
	}
}

func TestMemory_ViewsAlias(t *testing.T) {
	mem := NewMemory(256)
	ptr, _ := mem.Allocate(16)

	mem.Float32s(ptr, 4)[0] = 1.5
	if got := mem.Float32s(ptr, 4)[0]; got != 1.5 {
		t.Errorf("Float32s()[0] = %v, want 1.5", got)
	}

	mem.Bytes(ptr+8, 1)[0] = 7
	if got := mem.Bytes(ptr, 16)[8]; got != 7 {
		t.Errorf("Bytes()[8] = %v, want 7", got)
	}

	atomic.StoreUint32(mem.Word(ptr+12), 9)
	if got := atomic.LoadUint32(mem.Word(ptr + 12)); got != 9 {
		t.Errorf("Word() = %v, want 9", got)
	}
}

func TestMemory_OutOfBoundsPanics(t *testing.T) {
	mem := NewMemory(64)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on out of bounds view")
		}
	}()
	mem.Float32s(Ptr(mem.Size()-4), 4)
}

func TestMotionType_String(t *testing.T) {
	tests := []struct {
		motion MotionType
		want   string
	}{
		{MotionTypeDynamic, "dynamic"},
		{MotionTypeStatic, "static"},
		{MotionTypeKinematic, "kinematic"},
		{MotionType(9), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.motion.String(); got != tt.want {
			t.Errorf("MotionType(%d).String() = %q, want %q", tt.motion, got, tt.want)
		}
	}
}

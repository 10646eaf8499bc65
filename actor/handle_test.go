package actor

import (
	"errors"
	"testing"

	"github.com/akmonengine/feathersync/engine"
)

// =============================================================================
// Handle Tests
// =============================================================================

func TestHandle_Dispose(t *testing.T) {
	released := 0
	h := NewHandle(16, func(ptr engine.Ptr) {
		if ptr != 16 {
			t.Errorf("release got ptr %d, want 16", ptr)
		}
		released++
	})

	h.AddReference()
	if err := h.Dispose(); !errors.Is(err, ErrInUse) {
		t.Fatalf("Dispose() with a reference error = %v, want ErrInUse", err)
	}

	h.RemoveReference()
	h.AddShadowReference()
	if err := h.Dispose(); !errors.Is(err, ErrInUse) {
		t.Fatalf("Dispose() with a shadow error = %v, want ErrInUse", err)
	}

	h.RemoveShadowReference()
	if err := h.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if err := h.Dispose(); err != nil {
		t.Errorf("second Dispose() error = %v, want nil", err)
	}
	if released != 1 {
		t.Errorf("release called %d times, want 1", released)
	}
	if _, err := h.Ptr(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Ptr() after dispose error = %v, want ErrDisposed", err)
	}
}

func TestHandle_HasReferences(t *testing.T) {
	tests := []struct {
		name       string
		references int
		shadows    int
		want       bool
	}{
		{"none", 0, 0, false},
		{"referenced", 2, 0, true},
		{"shadowed", 0, 1, true},
		{"both", 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandle(16, nil)
			for iter := 0; iter < tt.references; iter++ {
				h.AddReference()
			}
			for iter := 0; iter < tt.shadows; iter++ {
				h.AddShadowReference()
			}
			if got := h.HasReferences(); got != tt.want {
				t.Errorf("HasReferences() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandle_UnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("RemoveReference() on a zero count did not panic")
		}
	}()
	h := NewHandle(16, nil)
	h.RemoveReference()
}

// =============================================================================
// Host Tests
// =============================================================================

type fakeResource struct {
	id       EntityID
	disposed bool
}

func (r *fakeResource) EntityID() EntityID { return r.id }
func (r *fakeResource) IsDisposed() bool   { return r.disposed }
func (r *fakeResource) Dispose() error     { r.disposed = true; return nil }

func TestHost_RegisterReusesIDs(t *testing.T) {
	host := newTestHost(t)

	a, b := &fakeResource{}, &fakeResource{}
	a.id = host.Register(a)
	b.id = host.Register(b)
	if a.id == b.id || a.id == 0 || b.id == 0 {
		t.Fatalf("ids = %d, %d, want distinct non-zero ids", a.id, b.id)
	}

	host.Unregister(a.id)
	if _, ok := host.Resource(a.id); ok {
		t.Error("Resource() found an unregistered id")
	}
	if host.LiveCount() != 1 {
		t.Errorf("LiveCount() = %d, want 1", host.LiveCount())
	}

	c := &fakeResource{}
	c.id = host.Register(c)
	if c.id != a.id {
		t.Errorf("Register() = %d, want reused id %d", c.id, a.id)
	}
	if got := host.Resources(); len(got) != 2 || got[0] != c || got[1] != b {
		t.Errorf("Resources() = %v, want [c b] in id order", got)
	}
	if len(host.Entities()) != 0 {
		t.Error("Entities() returned non-entity resources")
	}

	host.Unregister(a.id)
	host.Unregister(a.id)
	if host.LiveCount() != 1 {
		t.Errorf("LiveCount() = %d after a double unregister, want 1", host.LiveCount())
	}
}

func TestHost_Check(t *testing.T) {
	eng := newTestEngine(t)
	a := NewHost(eng, nil)
	b := NewHost(eng, nil)

	if err := a.Check(a); err != nil {
		t.Errorf("Check(self) error = %v", err)
	}
	if err := a.Check(b); !errors.Is(err, ErrDifferentRuntime) {
		t.Errorf("Check(other) error = %v, want ErrDifferentRuntime", err)
	}
	if err := a.Check(nil); !errors.Is(err, ErrDifferentRuntime) {
		t.Errorf("Check(nil) error = %v, want ErrDifferentRuntime", err)
	}
	if a.ID() == b.ID() {
		t.Error("two hosts share an id")
	}
}

func TestParseEvaluationType(t *testing.T) {
	tests := []struct {
		input   string
		want    EvaluationType
		wantErr bool
	}{
		{"immediate", EvaluationImmediate, false},
		{" Buffered ", EvaluationBuffered, false},
		{"deferred", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEvaluationType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEvaluationType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEvaluationType(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !tt.wantErr && got.String() != "immediate" && got.String() != "buffered" {
				t.Errorf("String() = %q", got.String())
			}
		})
	}
}

package resource

import (
	"errors"
	"testing"
)

func TestImportAudioDedupByPath(t *testing.T) {
	t.Parallel()

	m := NewManager(8000)
	defer m.Close()

	path := writeEncodedWAV(t, 8000, 16, 1, make([]int, 400))
	a, err := m.ImportAudio(path)
	if err != nil {
		t.Fatalf("ImportAudio() error = %v", err)
	}
	b, err := m.ImportAudio(path)
	if err != nil {
		t.Fatalf("second ImportAudio() error = %v", err)
	}
	if a != b || a.ID() != 1 {
		t.Fatalf("expected the same resource with ID 1, got %p (%d) and %p (%d)", a, a.ID(), b, b.ID())
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}

	other, err := m.ImportAudio(writeEncodedWAV(t, 8000, 16, 1, make([]int, 10)))
	if err != nil {
		t.Fatalf("ImportAudio() error = %v", err)
	}
	if other.ID() != 2 {
		t.Fatalf("second file ID = %d, want 2", other.ID())
	}
	if m.Resource(2) != other || m.ResourceByPath(path) != a {
		t.Fatal("lookups do not return the imported resources")
	}
	if res := m.Resources(); len(res) != 2 || res[0] != a || res[1] != other {
		t.Fatalf("Resources() = %v", res)
	}
}

func TestImportAudioFailureNotRegistered(t *testing.T) {
	t.Parallel()

	m := NewManager(8000)
	defer m.Close()

	bad := writeFile(t, []byte("definitely not audio"))
	r, err := m.ImportAudio(bad)
	if !errors.Is(err, ErrNotWavFile) || r != nil {
		t.Fatalf("ImportAudio() = %v, %v; want nil, ErrNotWavFile", r, err)
	}
	if m.Len() != 0 || m.ResourceByPath(bad) != nil {
		t.Fatal("failed import was registered")
	}

	good, err := m.ImportAudio(writeEncodedWAV(t, 8000, 16, 1, make([]int, 10)))
	if err != nil {
		t.Fatalf("ImportAudio() error = %v", err)
	}
	if good.ID() != 1 {
		t.Fatalf("ID after failed import = %d, want 1", good.ID())
	}
}

func TestRemoveAudioResource(t *testing.T) {
	t.Parallel()

	m := NewManager(8000)
	path := writeEncodedWAV(t, 8000, 16, 1, make([]int, 10))
	r, err := m.ImportAudio(path)
	if err != nil {
		t.Fatalf("ImportAudio() error = %v", err)
	}
	if !m.RemoveAudioResource(r.ID()) {
		t.Fatal("RemoveAudioResource() = false for a registered ID")
	}
	if m.Resource(r.ID()) != nil || m.ResourceByPath(path) != nil || m.Len() != 0 {
		t.Fatal("resource still reachable after removal")
	}
	if r.Loaded() {
		t.Fatal("removed resource should be closed")
	}
	if m.RemoveAudioResource(r.ID()) {
		t.Fatal("RemoveAudioResource() = true for an unknown ID")
	}
}

func TestUpdateResourceID(t *testing.T) {
	t.Parallel()

	m := NewManager(8000)
	defer m.Close()

	a, _ := m.ImportAudio(writeEncodedWAV(t, 8000, 16, 1, make([]int, 10)))
	b, _ := m.ImportAudio(writeEncodedWAV(t, 8000, 16, 1, make([]int, 20)))
	if a == nil || b == nil {
		t.Fatal("fixture import failed")
	}

	if !m.UpdateResourceID(a, 10) {
		t.Fatal("UpdateResourceID(a, 10) = false")
	}
	if m.Resource(10) != a || m.Resource(1) != nil || a.ID() != 10 {
		t.Fatal("resource not re-indexed under 10")
	}
	if m.UpdateResourceID(b, 10) {
		t.Fatal("UpdateResourceID should refuse an ID held by another resource")
	}
	if !m.UpdateResourceID(a, 10) {
		t.Fatal("re-applying the same ID should succeed")
	}
	if m.UpdateResourceID(New(99, "elsewhere.wav"), 50) {
		t.Fatal("UpdateResourceID should refuse an unregistered resource")
	}

	c, err := m.ImportAudio(writeEncodedWAV(t, 8000, 16, 1, make([]int, 30)))
	if err != nil {
		t.Fatalf("ImportAudio() error = %v", err)
	}
	if c.ID() != 11 {
		t.Fatalf("next ID after restore = %d, want 11", c.ID())
	}
}

func TestClearResetsIDs(t *testing.T) {
	t.Parallel()

	m := NewManager(8000)
	defer m.Close()

	path := writeEncodedWAV(t, 8000, 16, 1, make([]int, 10))
	first, _ := m.ImportAudio(path)
	m.ImportAudio(writeEncodedWAV(t, 8000, 16, 1, make([]int, 10)))
	m.Clear()
	if m.Len() != 0 || first.Loaded() {
		t.Fatal("Clear() left resources behind")
	}
	again, err := m.ImportAudio(path)
	if err != nil {
		t.Fatalf("ImportAudio() error = %v", err)
	}
	if again == first || again.ID() != 1 {
		t.Fatalf("expected a fresh resource with ID 1, got ID %d", again.ID())
	}
}

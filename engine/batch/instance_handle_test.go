package batch

import (
	"errors"
	"testing"
)

func TestHandleStaleAfterFree(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()
	if !h.Valid() {
		t.Fatal("fresh handle should be valid")
	}

	if err := p.FreeSlot(h.Slot()); err != nil {
		t.Fatalf("free failed: %v", err)
	}
	if h.Valid() {
		t.Error("handle should be stale after its slot is freed")
	}
	if err := h.SetTransform(translation(1, 0, 0)); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetTransform: got %v, want ErrStaleHandle", err)
	}
	if err := h.SetTint([4]float32{1, 1, 1, 1}, TintModeMultiply); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetTint: got %v, want ErrStaleHandle", err)
	}
	if err := h.SetUVScale([2]float32{1, 1}); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetUVScale: got %v, want ErrStaleHandle", err)
	}
	if err := h.SetUVOffset([2]float32{0, 0}); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetUVOffset: got %v, want ErrStaleHandle", err)
	}
	if err := h.Hide(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Hide: got %v, want ErrStaleHandle", err)
	}
	if err := h.Show(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Show: got %v, want ErrStaleHandle", err)
	}
	if _, err := h.State(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("State: got %v, want ErrStaleHandle", err)
	}
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()

	if err := h.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if h.Valid() {
		t.Error("handle should be stale after release")
	}
	if p.Used() != 0 {
		t.Errorf("used after release: got %d, want 0", p.Used())
	}
	if err := h.Release(); err != nil {
		t.Errorf("second release should be a no-op, got %v", err)
	}
}

func TestHandleReacquire(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()
	h.SetTransform(translation(7, 0, 0))

	// A valid handle is left untouched.
	rebound, err := h.Reacquire()
	if rebound || err != nil {
		t.Fatalf("valid handle: got (%v, %v), want (false, nil)", rebound, err)
	}
	if m, _ := p.Transform(h.Slot()); m != translation(7, 0, 0) {
		t.Error("reacquire of a valid handle must not reset the slot")
	}

	// A stale handle claims a fresh slot with default parameters.
	if err := p.FreeSlot(h.Slot()); err != nil {
		t.Fatalf("free failed: %v", err)
	}
	rebound, err = h.Reacquire()
	if !rebound || err != nil {
		t.Fatalf("stale handle: got (%v, %v), want (true, nil)", rebound, err)
	}
	if !h.Valid() {
		t.Error("reacquired handle should be valid")
	}
	if m, _ := p.Transform(h.Slot()); m != ([16]float32{}) {
		t.Error("reacquired slot should start with a zero transform")
	}
}

func TestHandleReacquireSaturated(t *testing.T) {
	p := testPool(t, 1)
	h, _ := p.Allocate()
	p.FreeSlot(h.Slot())

	// Another caller takes the only slot before the stale handle rebinds.
	taken, _ := p.Allocate()
	rebound, err := h.Reacquire()
	if rebound || !errors.Is(err, ErrNoFreeSlot) {
		t.Errorf("got (%v, %v), want (false, ErrNoFreeSlot)", rebound, err)
	}
	if !taken.Valid() {
		t.Error("failed reacquire must not disturb the living handle")
	}
}

func TestHandleDoesNotControlReallocatedSlot(t *testing.T) {
	p := testPool(t, 1)
	old, _ := p.Allocate()
	old.Release()

	// The slot is handed out again; the old handle must not affect it.
	fresh, err := p.Allocate()
	if err != nil {
		t.Fatalf("reallocate failed: %v", err)
	}
	if fresh.Slot() != old.Slot() {
		t.Fatalf("expected slot reuse, got %d and %d", old.Slot(), fresh.Slot())
	}
	if err := old.Hide(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("stale handle mutation: got %v, want ErrStaleHandle", err)
	}
	if st, _ := fresh.State(); st != SlotStateVisible {
		t.Errorf("fresh handle state: got %v, want visible", st)
	}
	if err := old.Release(); err != nil {
		t.Errorf("stale release should be a no-op, got %v", err)
	}
	if p.Used() != 1 {
		t.Error("stale release must not free the reallocated slot")
	}
}

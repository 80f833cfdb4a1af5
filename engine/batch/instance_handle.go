package batch

// InstanceHandle controls one claimed slot of an InstancePool. Handles are
// created by Allocate and invalidated by Release (or the pool's FreeSlot);
// every method of a stale handle fails with ErrStaleHandle. Release must be
// called explicitly when the instance is no longer needed.
type InstanceHandle interface {
	// Slot returns the slot index this handle controls.
	//
	// Returns:
	//   - int: the slot index
	Slot() int

	// Valid reports whether the handle still controls its slot.
	//
	// Returns:
	//   - bool: true while the slot has not been freed or reallocated
	Valid() bool

	// SetTransform replaces the instance's world transform.
	//
	// Parameters:
	//   - m: the world matrix (column-major)
	//
	// Returns:
	//   - error: ErrStaleHandle when the handle is no longer valid
	SetTransform(m [16]float32) error

	// SetTint sets the instance's tint color and combine mode.
	//
	// Parameters:
	//   - color: the RGBA tint
	//   - mode: multiply or replace
	//
	// Returns:
	//   - error: ErrStaleHandle when the handle is no longer valid
	SetTint(color [4]float32, mode TintMode) error

	// SetUVScale sets the instance's texture coordinate scale.
	//
	// Parameters:
	//   - scale: the per-axis UV scale
	//
	// Returns:
	//   - error: ErrStaleHandle when the handle is no longer valid
	SetUVScale(scale [2]float32) error

	// SetUVOffset sets the instance's texture coordinate offset.
	//
	// Parameters:
	//   - offset: the per-axis UV offset
	//
	// Returns:
	//   - error: ErrStaleHandle when the handle is no longer valid
	SetUVOffset(offset [2]float32) error

	// Hide suppresses the instance's rendering without releasing its slot.
	//
	// Returns:
	//   - error: ErrStaleHandle when the handle is no longer valid
	Hide() error

	// Show re-enables rendering of a hidden instance.
	//
	// Returns:
	//   - error: ErrStaleHandle when the handle is no longer valid
	Show() error

	// State returns the instance's slot state.
	//
	// Returns:
	//   - SlotState: the current state
	//   - error: ErrStaleHandle when the handle is no longer valid
	State() (SlotState, error)

	// Reacquire rebinds a stale handle to a freshly claimed slot so long-lived
	// callers can keep one handle across free/reallocate cycles. A handle that
	// is still valid is left untouched. The new slot starts with default
	// parameters, the same as one returned by Allocate.
	//
	// Returns:
	//   - bool: true when a new slot was claimed, false when the handle was
	//     still valid
	//   - error: ErrNoFreeSlot when the handle was stale and the pool is
	//     saturated
	Reacquire() (bool, error)

	// Release returns the slot to the pool and invalidates the handle.
	// Releasing twice is a no-op.
	//
	// Returns:
	//   - error: an error if the slot index is invalid
	Release() error
}

var _ InstanceHandle = &instanceHandle{}

type instanceHandle struct {
	pool       *instancePool
	slot       int
	generation uint32
}

// Slot implements InstanceHandle.
func (h *instanceHandle) Slot() int {
	return h.slot
}

// Valid implements InstanceHandle.
func (h *instanceHandle) Valid() bool {
	return h.pool.checkHandle(h.slot, h.generation) == nil
}

// SetTransform implements InstanceHandle.
func (h *instanceHandle) SetTransform(m [16]float32) error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return err
	}
	return h.pool.SetTransform(h.slot, m)
}

// SetTint implements InstanceHandle.
func (h *instanceHandle) SetTint(color [4]float32, mode TintMode) error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return err
	}
	return h.pool.SetTint(h.slot, color, mode)
}

// SetUVScale implements InstanceHandle.
func (h *instanceHandle) SetUVScale(scale [2]float32) error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return err
	}
	return h.pool.SetUVScale(h.slot, scale)
}

// SetUVOffset implements InstanceHandle.
func (h *instanceHandle) SetUVOffset(offset [2]float32) error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return err
	}
	return h.pool.SetUVOffset(h.slot, offset)
}

// Hide implements InstanceHandle.
func (h *instanceHandle) Hide() error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return err
	}
	return h.pool.Hide(h.slot)
}

// Show implements InstanceHandle.
func (h *instanceHandle) Show() error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return err
	}
	return h.pool.Show(h.slot)
}

// State implements InstanceHandle.
func (h *instanceHandle) State() (SlotState, error) {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		return SlotStateFree, err
	}
	return h.pool.State(h.slot)
}

// Reacquire implements InstanceHandle.
func (h *instanceHandle) Reacquire() (bool, error) {
	return h.pool.reacquire(h)
}

// Release implements InstanceHandle.
func (h *instanceHandle) Release() error {
	if err := h.pool.checkHandle(h.slot, h.generation); err != nil {
		if err == ErrStaleHandle {
			return nil
		}
		return err
	}
	return h.pool.FreeSlot(h.slot)
}

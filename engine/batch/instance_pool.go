package batch

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
	"github.com/embergfx/ember/engine/renderer"
)

// SlotState describes the lifecycle state of one instance slot.
type SlotState uint8

const (
	// SlotStateFree means the slot is unclaimed and renders nothing.
	SlotStateFree SlotState = iota

	// SlotStateHidden means the slot is claimed but deliberately not rendered.
	SlotStateHidden

	// SlotStateCulled means the slot is claimed and shown, but its bounds fell
	// outside the frustum on the last recompute.
	SlotStateCulled

	// SlotStateVisible means the slot is claimed, shown, and in view.
	SlotStateVisible
)

// String returns the state's name.
//
// Returns:
//   - string: "free", "hidden", "culled", or "visible"
func (s SlotState) String() string {
	switch s {
	case SlotStateFree:
		return "free"
	case SlotStateHidden:
		return "hidden"
	case SlotStateCulled:
		return "culled"
	default:
		return "visible"
	}
}

// TintMode selects how a slot's tint color combines with the base mesh colors.
type TintMode uint8

const (
	// TintModeMultiply modulates the base vertex colors by the tint.
	TintModeMultiply TintMode = iota

	// TintModeSet replaces the base vertex colors with the tint.
	TintModeSet
)

// InstancePool maintains many independently transformable copies of one base
// mesh inside a single shared vertex buffer, emulating GPU instancing on the
// CPU for hosts that cannot rely on GPU-side instancing. Each
// copy occupies a fixed slot; slot mutations mark the slot dirty, Recompute
// re-bakes dirty slots in parallel, and UploadPending pushes the touched byte
// span to the GPU in one write.
//
// Slot mutators are safe for concurrent use. Recompute and UploadPending are
// frame-loop calls and must not run concurrently with each other.
type InstancePool interface {
	// Allocate claims a free slot and returns a handle to it. New slots start
	// visible with a zero transform, so they render nothing until positioned.
	//
	// Returns:
	//   - InstanceHandle: the handle controlling the claimed slot
	//   - error: ErrNoFreeSlot when every slot is claimed
	Allocate() (InstanceHandle, error)

	// FreeSlot returns a slot to the free list, invalidating any handle that
	// points at it and zeroing its geometry on the next recompute.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	FreeSlot(slot int) error

	// SetTransform replaces a slot's world transform.
	//
	// Parameters:
	//   - slot: the slot index
	//   - m: the world matrix (column-major)
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	SetTransform(slot int, m [16]float32) error

	// Transform returns a slot's current world transform.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - [16]float32: the world matrix
	//   - error: ErrSlotOutOfRange when the index is invalid
	Transform(slot int) ([16]float32, error)

	// SetTint sets a slot's tint color and how it combines with base colors.
	//
	// Parameters:
	//   - slot: the slot index
	//   - color: the RGBA tint
	//   - mode: multiply or replace
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	SetTint(slot int, color [4]float32, mode TintMode) error

	// SetUVScale sets the factor a slot's texture coordinates are multiplied by
	// before the offset is applied. New slots start at (1, 1).
	//
	// Parameters:
	//   - slot: the slot index
	//   - scale: the per-axis UV scale
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	SetUVScale(slot int, scale [2]float32) error

	// SetUVOffset sets the offset added to a slot's scaled texture coordinates,
	// typically to select an atlas region. New slots start at (0, 0).
	//
	// Parameters:
	//   - slot: the slot index
	//   - offset: the per-axis UV offset
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	SetUVOffset(slot int, offset [2]float32) error

	// MarkDirty forces a slot to be re-baked on the next recompute even though
	// none of its parameters changed, for callers that mutated shared state the
	// pool cannot observe. A slot is queued at most once per recompute cycle.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	MarkDirty(slot int) error

	// Hide suppresses a slot's rendering without releasing it.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	Hide(slot int) error

	// Show re-enables rendering of a hidden slot.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - error: ErrSlotOutOfRange when the index is invalid
	Show(slot int) error

	// State returns a slot's lifecycle state.
	//
	// Parameters:
	//   - slot: the slot index
	//
	// Returns:
	//   - SlotState: the current state
	//   - error: ErrSlotOutOfRange when the index is invalid
	State(slot int) (SlotState, error)

	// Capacity returns the total number of slots.
	//
	// Returns:
	//   - int: the slot count
	Capacity() int

	// Used returns the number of claimed slots.
	//
	// Returns:
	//   - int: the claimed slot count
	Used() int

	// Recompute re-bakes every dirty slot's region of the shared vertex buffer
	// and, when a frustum is given, re-evaluates visibility of all shown slots,
	// re-baking those whose cull result changed. Baking fans out across the
	// pool's workers; the touched byte span is merged into the pending upload.
	//
	// Parameters:
	//   - frustum: the view frustum for CPU culling, or nil to skip culling
	Recompute(frustum *common.Frustum)

	// UploadPending writes the pending dirty byte span into the pool's GPU
	// vertex buffer. A pool whose buffer has not been created yet keeps the
	// span pending and returns nil.
	//
	// Parameters:
	//   - r: the renderer performing the write
	//
	// Returns:
	//   - error: an error if the write fails
	UploadPending(r renderer.Renderer) error

	// Model returns the pool's drawable model, whose mesh provider owns the
	// shared vertex and index buffers.
	//
	// Returns:
	//   - model.Model: the pool model
	Model() model.Model

	// Release frees the pool's GPU resources. The pool must not be used after
	// release; pending uploads are discarded.
	Release()
}

var _ InstancePool = &instancePool{}

// bakeRangeVerts is the largest vertex range one bake task covers. Slots with
// more vertices are split into contiguous ranges so a pool of a few large
// instances still spreads across the workers.
const bakeRangeVerts = 1024

// slotWork is one slot's bake job, captured under the pool lock so the fan-out
// runs without touching shared mutable state.
type slotWork struct {
	slot      int
	state     SlotState
	transform [16]float32
	tint      [4]float32
	tintMode  TintMode
	uvScale   [2]float32
	uvOffset  [2]float32
}

type instancePool struct {
	mu   *sync.Mutex
	name string

	base         *MeshData
	baseMin      [3]float32
	baseMax      [3]float32
	vertsPerSlot int
	slotBytes    int
	offsets      semanticOffsets

	capacity int
	used     int

	// vertexData is the CPU mirror of the shared GPU vertex buffer, one
	// slotBytes region per slot.
	vertexData []byte

	states      []SlotState
	generations []uint32
	transforms  [][16]float32
	tints       [][4]float32
	tintModes   []TintMode
	uvScales    [][2]float32
	uvOffsets   [][2]float32

	// searchHint is where Allocate starts scanning. FreeSlot points it at the
	// slot it just released so free-then-allocate reuses the same slot.
	searchHint int

	// Dirty slot dedup: a slot enters dirtyIndices at most once between
	// recomputes, tracked by the bitset (word = slot/64, bit = slot%64).
	dirtyIndices []uint32
	dirtyBitset  []uint64

	// Pending upload span in bytes over vertexData. pendingMin > pendingMax
	// means nothing is pending.
	pendingMin int
	pendingMax int

	pool    worker.DynamicWorkerPool
	workers int

	mdl      model.Model
	released bool

	// Construction-only inputs, cleared by NewInstancePool once consumed.
	buildBase  model.Model
	buildCache MeshDataCache
}

// Allocate implements InstancePool.
func (p *instancePool) Allocate() (InstanceHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, err := p.claimSlotLocked()
	if err != nil {
		return nil, err
	}
	return &instanceHandle{pool: p, slot: slot, generation: p.generations[slot]}, nil
}

// claimSlotLocked claims the first free slot scanning forward from the search
// hint with wraparound, resetting its parameters to defaults. Callers must
// hold the pool lock.
func (p *instancePool) claimSlotLocked() (int, error) {
	if p.used >= p.capacity {
		return 0, ErrNoFreeSlot
	}
	for i := 0; i < p.capacity; i++ {
		slot := (p.searchHint + i) % p.capacity
		if p.states[slot] != SlotStateFree {
			continue
		}
		p.states[slot] = SlotStateVisible
		p.transforms[slot] = [16]float32{}
		p.tints[slot] = [4]float32{1, 1, 1, 1}
		p.tintModes[slot] = TintModeMultiply
		p.uvScales[slot] = [2]float32{1, 1}
		p.uvOffsets[slot] = [2]float32{}
		p.used++
		p.searchHint = (slot + 1) % p.capacity
		p.enqueueDirtyLocked(uint32(slot))
		return slot, nil
	}
	return 0, ErrNoFreeSlot
}

// reacquire rebinds a stale handle to a freshly claimed slot. The check and
// the claim happen under one lock acquisition so no other caller can slip in
// between them.
func (p *instancePool) reacquire(h *instanceHandle) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.slot >= 0 && h.slot < p.capacity && p.generations[h.slot] == h.generation {
		return false, nil
	}
	slot, err := p.claimSlotLocked()
	if err != nil {
		return false, err
	}
	h.slot = slot
	h.generation = p.generations[slot]
	return true, nil
}

// FreeSlot implements InstancePool.
func (p *instancePool) FreeSlot(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.states[slot] == SlotStateFree {
		return nil
	}
	p.states[slot] = SlotStateFree
	p.generations[slot]++
	p.transforms[slot] = [16]float32{}
	p.used--
	p.searchHint = slot
	p.enqueueDirtyLocked(uint32(slot))
	return nil
}

// SetTransform implements InstancePool.
func (p *instancePool) SetTransform(slot int, m [16]float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.transforms[slot] == m {
		return nil
	}
	p.transforms[slot] = m
	p.enqueueDirtyLocked(uint32(slot))
	return nil
}

// Transform implements InstancePool.
func (p *instancePool) Transform(slot int) ([16]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return [16]float32{}, err
	}
	return p.transforms[slot], nil
}

// SetTint implements InstancePool.
func (p *instancePool) SetTint(slot int, color [4]float32, mode TintMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.tints[slot] == color && p.tintModes[slot] == mode {
		return nil
	}
	p.tints[slot] = color
	p.tintModes[slot] = mode
	p.enqueueDirtyLocked(uint32(slot))
	return nil
}

// SetUVScale implements InstancePool.
func (p *instancePool) SetUVScale(slot int, scale [2]float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.uvScales[slot] == scale {
		return nil
	}
	p.uvScales[slot] = scale
	p.enqueueDirtyLocked(uint32(slot))
	return nil
}

// SetUVOffset implements InstancePool.
func (p *instancePool) SetUVOffset(slot int, offset [2]float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.uvOffsets[slot] == offset {
		return nil
	}
	p.uvOffsets[slot] = offset
	p.enqueueDirtyLocked(uint32(slot))
	return nil
}

// MarkDirty implements InstancePool.
func (p *instancePool) MarkDirty(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	p.enqueueDirtyLocked(uint32(slot))
	return nil
}

// Hide implements InstancePool.
func (p *instancePool) Hide(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	switch p.states[slot] {
	case SlotStateVisible, SlotStateCulled:
		p.states[slot] = SlotStateHidden
		p.enqueueDirtyLocked(uint32(slot))
	}
	return nil
}

// Show implements InstancePool.
func (p *instancePool) Show(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.states[slot] == SlotStateHidden {
		p.states[slot] = SlotStateVisible
		p.enqueueDirtyLocked(uint32(slot))
	}
	return nil
}

// State implements InstancePool.
func (p *instancePool) State(slot int) (SlotState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return SlotStateFree, err
	}
	return p.states[slot], nil
}

// Capacity implements InstancePool.
func (p *instancePool) Capacity() int {
	return p.capacity
}

// Used implements InstancePool.
func (p *instancePool) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Model implements InstancePool.
func (p *instancePool) Model() model.Model {
	return p.mdl
}

// Recompute implements InstancePool.
func (p *instancePool) Recompute(frustum *common.Frustum) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}

	// Snapshot and clear the dirty set. inWork guards against double-baking a
	// slot that is both dirty and changed cull state.
	inWork := make([]bool, p.capacity)
	work := make([]slotWork, 0, len(p.dirtyIndices))
	for _, idx := range p.dirtyIndices {
		p.dirtyBitset[idx/64] &^= 1 << (idx % 64)
		inWork[idx] = true
		work = append(work, p.captureSlotLocked(int(idx)))
	}
	p.dirtyIndices = p.dirtyIndices[:0]

	if frustum != nil {
		for slot := 0; slot < p.capacity; slot++ {
			st := p.states[slot]
			if st != SlotStateVisible && st != SlotStateCulled {
				continue
			}
			bmin, bmax := transformBounds(p.transforms[slot][:], p.baseMin, p.baseMax)
			next := SlotStateCulled
			if frustum.ContainsAABB(bmin, bmax) {
				next = SlotStateVisible
			}
			if next == st {
				continue
			}
			p.states[slot] = next
			if inWork[slot] {
				// Already captured; refresh the captured state.
				for i := range work {
					if work[i].slot == slot {
						work[i].state = next
						break
					}
				}
				continue
			}
			inWork[slot] = true
			work = append(work, p.captureSlotLocked(slot))
		}
	}
	p.mu.Unlock()

	if len(work) == 0 {
		return
	}

	var wg sync.WaitGroup
	taskID := 0
	for _, w := range work {
		for from := 0; from < p.vertsPerSlot; from += bakeRangeVerts {
			to := from + bakeRangeVerts
			if to > p.vertsPerSlot {
				to = p.vertsPerSlot
			}
			wg.Add(1)
			wCap, fromCap, toCap := w, from, to
			p.pool.SubmitTask(worker.Task{
				ID: taskID,
				Do: func() (any, error) {
					defer wg.Done()
					p.bakeSlotRange(wCap, fromCap, toCap)
					return nil, nil
				},
			})
			taskID++
		}
	}
	wg.Wait()

	// Merge the touched slot range into the pending upload span.
	lo, hi := work[0].slot, work[0].slot
	for _, w := range work[1:] {
		if w.slot < lo {
			lo = w.slot
		}
		if w.slot > hi {
			hi = w.slot
		}
	}
	p.mu.Lock()
	if byteLo := lo * p.slotBytes; byteLo < p.pendingMin {
		p.pendingMin = byteLo
	}
	if byteHi := (hi + 1) * p.slotBytes; byteHi > p.pendingMax {
		p.pendingMax = byteHi
	}
	p.mu.Unlock()
}

// UploadPending implements InstancePool.
func (p *instancePool) UploadPending(r renderer.Renderer) error {
	p.mu.Lock()
	if p.released || p.pendingMin > p.pendingMax {
		p.mu.Unlock()
		return nil
	}
	provider := p.mdl.MeshProvider()
	if provider == nil || provider.VertexBuffer() == nil {
		// Buffer not created yet; keep the span pending for a later frame.
		p.mu.Unlock()
		return nil
	}
	lo, hi := p.pendingMin, p.pendingMax
	p.pendingMin = len(p.vertexData) + 1
	p.pendingMax = 0
	data := p.vertexData[lo:hi]
	p.mu.Unlock()

	if err := r.WriteVertexBuffer(provider, uint64(lo), data); err != nil {
		return fmt.Errorf("instance pool %q upload failed: %w", p.name, err)
	}
	return nil
}

// Release implements InstancePool.
func (p *instancePool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	p.pendingMin = len(p.vertexData) + 1
	p.pendingMax = 0
	if provider := p.mdl.MeshProvider(); provider != nil {
		provider.Release()
	}
}

// checkSlotLocked validates a slot index. Callers must hold the pool lock.
func (p *instancePool) checkSlotLocked(slot int) error {
	if slot < 0 || slot >= p.capacity {
		return fmt.Errorf("%w: %d (capacity %d)", ErrSlotOutOfRange, slot, p.capacity)
	}
	return nil
}

// checkHandle validates a handle's slot and generation.
func (p *instancePool) checkHandle(slot int, generation uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSlotLocked(slot); err != nil {
		return err
	}
	if p.generations[slot] != generation {
		return ErrStaleHandle
	}
	return nil
}

// enqueueDirtyLocked marks a slot for the next recompute, at most once per
// recompute cycle. Callers must hold the pool lock.
func (p *instancePool) enqueueDirtyLocked(idx uint32) {
	word, bit := idx/64, idx%64
	if p.dirtyBitset[word]&(1<<bit) != 0 {
		return
	}
	p.dirtyBitset[word] |= 1 << bit
	p.dirtyIndices = append(p.dirtyIndices, idx)
}

// captureSlotLocked snapshots a slot's bake inputs. Callers must hold the pool lock.
func (p *instancePool) captureSlotLocked(slot int) slotWork {
	return slotWork{
		slot:      slot,
		state:     p.states[slot],
		transform: p.transforms[slot],
		tint:      p.tints[slot],
		tintMode:  p.tintModes[slot],
		uvScale:   p.uvScales[slot],
		uvOffset:  p.uvOffsets[slot],
	}
}

// bakeSlotRange writes the [from, to) vertex range of one slot's region of the
// CPU vertex mirror. Non-visible slots are zeroed so their triangles degenerate
// and rasterize nothing. Each task touches only its own byte range, so
// concurrent bakes need no lock.
func (p *instancePool) bakeSlotRange(w slotWork, from, to int) {
	slotBase := w.slot * p.slotBytes
	region := p.vertexData[slotBase : slotBase+p.slotBytes]
	if w.state != SlotStateVisible {
		clear(region[from*model.GPUVertexStride : to*model.GPUVertexStride])
		return
	}

	m := w.transform[:]
	identity := common.IsIdentity(m)
	var rot []float32
	if !identity {
		rot = make([]float32, 16)
		common.RotationOnly(rot, m)
	}

	off := p.offsets
	for i := from; i < to; i++ {
		base := i * model.GPUVertexStride
		pos := p.base.Positions[i]
		if !identity {
			x, y, z := common.TransformPoint(m, pos[0], pos[1], pos[2])
			pos = [3]float32{x, y, z}
		}
		writeF32(region, base+off.position, pos[0])
		writeF32(region, base+off.position+4, pos[1])
		writeF32(region, base+off.position+8, pos[2])

		if off.normal >= 0 {
			var n [3]float32
			if p.base.Normals != nil {
				n = p.base.Normals[i]
				if !identity {
					x, y, z := common.TransformDirection(rot, n[0], n[1], n[2])
					n = common.Normalize3(x, y, z)
				}
			}
			writeF32(region, base+off.normal, n[0])
			writeF32(region, base+off.normal+4, n[1])
			writeF32(region, base+off.normal+8, n[2])
		}
		if off.texCoord >= 0 {
			var uv [2]float32
			if p.base.TexCoords != nil {
				uv = p.base.TexCoords[i]
				uv[0] = uv[0]*w.uvScale[0] + w.uvOffset[0]
				uv[1] = uv[1]*w.uvScale[1] + w.uvOffset[1]
			}
			writeF32(region, base+off.texCoord, uv[0])
			writeF32(region, base+off.texCoord+4, uv[1])
		}
		if off.color >= 0 {
			c := [4]float32{1, 1, 1, 1}
			if p.base.Colors != nil {
				c = p.base.Colors[i]
			}
			if w.tintMode == TintModeSet {
				c = w.tint
			} else {
				c = [4]float32{c[0] * w.tint[0], c[1] * w.tint[1], c[2] * w.tint[2], c[3] * w.tint[3]}
			}
			writeF32(region, base+off.color, c[0])
			writeF32(region, base+off.color+4, c[1])
			writeF32(region, base+off.color+8, c[2])
			writeF32(region, base+off.color+12, c[3])
		}
		if off.tangent >= 0 {
			var t [4]float32
			if p.base.Tangents != nil {
				t = p.base.Tangents[i]
				if !identity {
					x, y, z := common.TransformDirection(rot, t[0], t[1], t[2])
					n := common.Normalize3(x, y, z)
					t = [4]float32{n[0], n[1], n[2], t[3]}
				}
			}
			writeF32(region, base+off.tangent, t[0])
			writeF32(region, base+off.tangent+4, t[1])
			writeF32(region, base+off.tangent+8, t[2])
			writeF32(region, base+off.tangent+12, t[3])
		}
	}
}

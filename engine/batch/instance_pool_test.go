package batch

import (
	"errors"
	"sync"
	"testing"

	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
)

func testPool(t *testing.T, capacity int) InstancePool {
	t.Helper()
	return NewInstancePool(
		WithPoolModel(triangleModel("base", [3]float32{}, true, false)),
		WithPoolCapacity(capacity),
		WithPoolWorkers(1),
		WithPoolName("test_pool"),
	)
}

// slotPositions reads the baked positions of one slot from the pool's shared
// vertex buffer.
func slotPositions(t *testing.T, p InstancePool, slot int) [][3]float32 {
	t.Helper()
	vd := p.Model().VertexData()
	slotBytes := 3 * model.GPUVertexStride
	region := vd[slot*slotBytes : (slot+1)*slotBytes]
	md := ExtractMeshData(region, model.GPUVertexDeclaration(), model.GPUVertexStride, 0)
	if md == nil {
		t.Fatal("failed to read slot region")
	}
	return md.Positions
}

func TestPoolAllocateSequence(t *testing.T) {
	p := testPool(t, 4)
	for want := 0; want < 4; want++ {
		h, err := p.Allocate()
		if err != nil {
			t.Fatalf("allocate %d failed: %v", want, err)
		}
		if h.Slot() != want {
			t.Errorf("slot: got %d, want %d", h.Slot(), want)
		}
	}
	if _, err := p.Allocate(); !errors.Is(err, ErrNoFreeSlot) {
		t.Errorf("saturated pool: got %v, want ErrNoFreeSlot", err)
	}
	if p.Used() != 4 {
		t.Errorf("used: got %d, want 4", p.Used())
	}
}

func TestPoolFreeThenAllocateReusesSlot(t *testing.T) {
	p := testPool(t, 4)
	var handles []InstanceHandle
	for i := 0; i < 4; i++ {
		h, _ := p.Allocate()
		handles = append(handles, h)
	}

	if err := p.FreeSlot(1); err != nil {
		t.Fatalf("free failed: %v", err)
	}
	if p.Used() != 3 {
		t.Errorf("used after free: got %d, want 3", p.Used())
	}

	h, err := p.Allocate()
	if err != nil {
		t.Fatalf("allocate after free failed: %v", err)
	}
	if h.Slot() != 1 {
		t.Errorf("freed slot should be reused: got %d, want 1", h.Slot())
	}
	if handles[1].Valid() {
		t.Error("handle to freed slot should be stale after reallocation")
	}
}

func TestPoolSlotOutOfRange(t *testing.T) {
	p := testPool(t, 2)
	if err := p.SetTransform(2, translation(0, 0, 0)); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("got %v, want ErrSlotOutOfRange", err)
	}
	if err := p.Hide(-1); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("got %v, want ErrSlotOutOfRange", err)
	}
	if _, err := p.State(99); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("got %v, want ErrSlotOutOfRange", err)
	}
}

func TestPoolRecomputeBakesTransform(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()

	// A fresh slot has a zero transform and must bake degenerate geometry.
	p.Recompute(nil)
	for _, pos := range slotPositions(t, p, h.Slot()) {
		if pos != ([3]float32{}) {
			t.Fatalf("unpositioned slot should bake to origin, got %v", pos)
		}
	}

	if err := h.SetTransform(translation(5, 0, 0)); err != nil {
		t.Fatalf("set transform failed: %v", err)
	}
	p.Recompute(nil)
	got := slotPositions(t, p, h.Slot())
	want := [][3]float32{{5, 0, 0}, {6, 0, 0}, {5, 1, 0}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("baked position %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPoolRecomputeIsIdempotent(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()
	h.SetTransform(translation(1, 2, 3))

	p.Recompute(nil)
	first := append([][3]float32(nil), slotPositions(t, p, h.Slot())...)
	p.Recompute(nil)
	second := slotPositions(t, p, h.Slot())
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("recompute without mutations changed slot data at vertex %d", i)
		}
	}
}

func TestPoolHideZeroesSlot(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()
	h.SetTransform(translation(3, 0, 0))
	p.Recompute(nil)

	if err := h.Hide(); err != nil {
		t.Fatalf("hide failed: %v", err)
	}
	p.Recompute(nil)
	for _, pos := range slotPositions(t, p, h.Slot()) {
		if pos != ([3]float32{}) {
			t.Fatalf("hidden slot should bake to zero, got %v", pos)
		}
	}
	if st, _ := h.State(); st != SlotStateHidden {
		t.Errorf("state: got %v, want hidden", st)
	}

	if err := h.Show(); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	p.Recompute(nil)
	if got := slotPositions(t, p, h.Slot())[0]; got != ([3]float32{3, 0, 0}) {
		t.Errorf("shown slot should re-bake geometry, got %v", got)
	}
}

func TestPoolFrustumCulling(t *testing.T) {
	p := testPool(t, 2)
	inside, _ := p.Allocate()
	outside, _ := p.Allocate()
	inside.SetTransform(translation(0, 0, 0))
	outside.SetTransform(translation(50, 0, 0))

	// An identity view-projection bounds the visible region to the clip cube.
	var vp [16]float32
	common.Identity(vp[:])
	frustum := common.ExtractFrustumFromMatrix(vp[:])

	p.Recompute(&frustum)

	if st, _ := inside.State(); st != SlotStateVisible {
		t.Errorf("in-view slot: got %v, want visible", st)
	}
	if st, _ := outside.State(); st != SlotStateCulled {
		t.Errorf("out-of-view slot: got %v, want culled", st)
	}
	for _, pos := range slotPositions(t, p, outside.Slot()) {
		if pos != ([3]float32{}) {
			t.Fatalf("culled slot should bake to zero, got %v", pos)
		}
	}

	// Moving the slot back in view must restore it on the next recompute.
	outside.SetTransform(translation(0, 0, 0))
	p.Recompute(&frustum)
	if st, _ := outside.State(); st != SlotStateVisible {
		t.Errorf("returned slot: got %v, want visible", st)
	}
}

func TestPoolTint(t *testing.T) {
	p := testPool(t, 1)
	h, _ := p.Allocate()
	h.SetTransform(translation(0, 0, 0))
	h.SetTint([4]float32{1, 0, 0, 1}, TintModeSet)
	p.Recompute(nil)

	vd := p.Model().VertexData()
	md := ExtractMeshData(vd, model.GPUVertexDeclaration(), model.GPUVertexStride, 0)
	for i, c := range md.Colors {
		if c != ([4]float32{1, 0, 0, 1}) {
			t.Errorf("vertex %d color: got %v, want red", i, c)
		}
	}

	// Multiply against the white default base color yields the tint itself.
	h.SetTint([4]float32{0.5, 0.5, 0.5, 1}, TintModeMultiply)
	p.Recompute(nil)
	md = ExtractMeshData(vd, model.GPUVertexDeclaration(), model.GPUVertexStride, 0)
	if md.Colors[0] != ([4]float32{0.5, 0.5, 0.5, 1}) {
		t.Errorf("multiplied color: got %v, want (0.5,0.5,0.5,1)", md.Colors[0])
	}
}

func TestPoolUVTransform(t *testing.T) {
	p := testPool(t, 1)
	h, _ := p.Allocate()
	h.SetTransform(translation(0, 0, 0))
	h.SetUVScale([2]float32{0.5, 0.5})
	h.SetUVOffset([2]float32{0.25, 0.25})
	p.Recompute(nil)

	vd := p.Model().VertexData()
	md := ExtractMeshData(vd, model.GPUVertexDeclaration(), model.GPUVertexStride, 0)
	// Base UVs (0,0), (1,0), (0,1) remapped into the atlas quarter.
	want := [][2]float32{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}}
	for i := range want {
		if md.TexCoords[i] != want[i] {
			t.Errorf("uv %d: got %v, want %v", i, md.TexCoords[i], want[i])
		}
	}

	// Re-setting the same values is a no-op that leaves nothing dirty.
	if err := p.SetUVScale(h.Slot(), [2]float32{0.5, 0.5}); err != nil {
		t.Fatalf("redundant set failed: %v", err)
	}
	if err := p.SetUVOffset(h.Slot(), [2]float32{0.25, 0.25}); err != nil {
		t.Fatalf("redundant set failed: %v", err)
	}
}

func TestPoolMarkDirtyDedup(t *testing.T) {
	p := testPool(t, 2)
	h, _ := p.Allocate()
	h.SetTransform(translation(4, 0, 0))

	// Repeated marks between recomputes collapse into one queue entry; the
	// bake still reflects the latest parameters.
	for i := 0; i < 5; i++ {
		if err := p.MarkDirty(h.Slot()); err != nil {
			t.Fatalf("mark dirty failed: %v", err)
		}
	}
	if err := p.MarkDirty(99); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("got %v, want ErrSlotOutOfRange", err)
	}

	p.Recompute(nil)
	if got := slotPositions(t, p, h.Slot())[0]; got != ([3]float32{4, 0, 0}) {
		t.Errorf("baked position: got %v, want (4,0,0)", got)
	}
}

func TestPoolUploadSpanIsMinimal(t *testing.T) {
	p := testPool(t, 8)
	var handles []InstanceHandle
	for i := 0; i < 6; i++ {
		h, _ := p.Allocate()
		handles = append(handles, h)
	}
	p.Recompute(nil)

	// Drop the span left by the allocation bakes so only the mutations below
	// count toward the next one.
	ip := p.(*instancePool)
	ip.mu.Lock()
	ip.pendingMin = len(ip.vertexData) + 1
	ip.pendingMax = 0
	ip.mu.Unlock()

	handles[1].SetTransform(translation(1, 0, 0))
	handles[3].SetTransform(translation(3, 0, 0))
	handles[5].SetTransform(translation(5, 0, 0))
	p.Recompute(nil)

	// Touching slots {1, 3, 5} must pend exactly the contiguous byte span from
	// the start of slot 1 through the end of slot 5.
	slotBytes := 3 * model.GPUVertexStride
	ip.mu.Lock()
	lo, hi := ip.pendingMin, ip.pendingMax
	ip.mu.Unlock()
	if lo != 1*slotBytes || hi != 6*slotBytes {
		t.Errorf("pending span: got [%d, %d), want [%d, %d)", lo, hi, 1*slotBytes, 6*slotBytes)
	}

	// A recompute with nothing dirty must not widen it.
	p.Recompute(nil)
	ip.mu.Lock()
	lo2, hi2 := ip.pendingMin, ip.pendingMax
	ip.mu.Unlock()
	if lo2 != lo || hi2 != hi {
		t.Errorf("idle recompute changed span: got [%d, %d)", lo2, hi2)
	}
}

func TestPoolMarkDirtyConcurrentDedup(t *testing.T) {
	p := testPool(t, 4)
	for i := 0; i < 4; i++ {
		p.Allocate()
	}
	p.Recompute(nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				for slot := 0; slot < 4; slot++ {
					if err := p.MarkDirty(slot); err != nil {
						t.Errorf("mark dirty failed: %v", err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	// However many callers raced, each slot enters the queue at most once.
	ip := p.(*instancePool)
	ip.mu.Lock()
	queued := append([]uint32(nil), ip.dirtyIndices...)
	ip.mu.Unlock()
	if len(queued) != 4 {
		t.Fatalf("dirty queue length: got %d, want 4", len(queued))
	}
	seen := make(map[uint32]bool, len(queued))
	for _, idx := range queued {
		if seen[idx] {
			t.Errorf("slot %d queued twice", idx)
		}
		seen[idx] = true
	}

	p.Recompute(nil)
	ip.mu.Lock()
	remaining := len(ip.dirtyIndices)
	ip.mu.Unlock()
	if remaining != 0 {
		t.Errorf("queue should drain on recompute, %d left", remaining)
	}
}

func TestPoolUploadPendingWithoutBuffer(t *testing.T) {
	p := testPool(t, 1)
	h, _ := p.Allocate()
	h.SetTransform(translation(1, 0, 0))
	p.Recompute(nil)

	// The pool's vertex buffer has not been created, so the upload must no-op
	// without touching the renderer.
	if err := p.UploadPending(nil); err != nil {
		t.Errorf("upload without GPU buffer should be a no-op, got %v", err)
	}
}

func TestPoolIndexBufferTilesBaseIndices(t *testing.T) {
	p := testPool(t, 3)
	m := p.Model()
	indices := ExtractIndices(m.IndexData(), m.IndexFormat())
	if len(indices) != 9 {
		t.Fatalf("index count: got %d, want 9", len(indices))
	}
	want := []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, indices[i], want[i])
		}
	}
	if m.IndexCount() != 9 {
		t.Errorf("model index count: got %d, want 9", m.IndexCount())
	}
}

func TestPoolRelease(t *testing.T) {
	p := testPool(t, 1)
	h, _ := p.Allocate()
	h.SetTransform(translation(1, 0, 0))
	p.Release()

	// Released pools drop pending work and ignore further recomputes.
	p.Recompute(nil)
	if err := p.UploadPending(nil); err != nil {
		t.Errorf("upload after release should be a no-op, got %v", err)
	}
	p.Release() // second release is a no-op
}

func TestNewInstancePoolPanicsWithoutModel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing base model")
		}
	}()
	NewInstancePool(WithPoolCapacity(1))
}

package batch

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
	"github.com/embergfx/ember/engine/renderer/bind_group_provider"
)

// defaultPoolCapacity is the slot count used when WithPoolCapacity is not given.
const defaultPoolCapacity = 64

// InstancePoolBuilderOption is a functional option for configuring an InstancePool via NewInstancePool.
type InstancePoolBuilderOption func(*instancePool)

// WithPoolModel is an option builder that sets the base model whose mesh every
// slot instantiates. Required; NewInstancePool panics without it.
//
// Parameters:
//   - m: the base model
//
// Returns:
//   - InstancePoolBuilderOption: a function that applies the base model option to a pool
func WithPoolModel(m model.Model) InstancePoolBuilderOption {
	return func(p *instancePool) {
		p.buildBase = m
	}
}

// WithPoolCapacity is an option builder that sets the number of instance slots.
// Values below 1 are ignored.
//
// Parameters:
//   - capacity: the slot count
//
// Returns:
//   - InstancePoolBuilderOption: a function that applies the capacity option to a pool
func WithPoolCapacity(capacity int) InstancePoolBuilderOption {
	return func(p *instancePool) {
		if capacity > 0 {
			p.capacity = capacity
		}
	}
}

// WithPoolCache is an option builder that sets the mesh data cache used to
// extract the base model's geometry, so pools sharing a base model share one
// decode.
//
// Parameters:
//   - cache: the cache to read through
//
// Returns:
//   - InstancePoolBuilderOption: a function that applies the cache option to a pool
func WithPoolCache(cache MeshDataCache) InstancePoolBuilderOption {
	return func(p *instancePool) {
		p.buildCache = cache
	}
}

// WithPoolWorkers is an option builder that sets the number of goroutines used
// by the recompute fan-out. Values below 1 are ignored.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - InstancePoolBuilderOption: a function that applies the worker count option to a pool
func WithPoolWorkers(workers int) InstancePoolBuilderOption {
	return func(p *instancePool) {
		if workers > 0 {
			p.workers = workers
		}
	}
}

// WithPoolName is an option builder that sets the pool's name, used for the
// drawable model and its GPU buffer labels.
//
// Parameters:
//   - name: the pool name
//
// Returns:
//   - InstancePoolBuilderOption: a function that applies the name option to a pool
func WithPoolName(name string) InstancePoolBuilderOption {
	return func(p *instancePool) {
		p.name = name
	}
}

// NewInstancePool creates an InstancePool with the given options applied. The
// base model is required and must be batchable; the pool panics otherwise, as
// pools are constructed during setup where a bad base model is a programming
// error. All slots start free.
//
// Parameters:
//   - options: functional options to configure the pool
//
// Returns:
//   - InstancePool: the configured pool
func NewInstancePool(options ...InstancePoolBuilderOption) InstancePool {
	p := &instancePool{
		mu:       &sync.Mutex{},
		name:     "instance_pool",
		capacity: defaultPoolCapacity,
		workers:  max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(p)
	}
	base := p.buildBase
	cache := p.buildCache
	p.buildBase, p.buildCache = nil, nil

	if base == nil {
		panic("batch: instance pool requires a base model (WithPoolModel)")
	}
	if !ModelOKForBatching(base) {
		panic(fmt.Sprintf("batch: instance pool base model %q is not batchable", base.Name()))
	}

	var md *MeshData
	if cache != nil {
		md = cache.Get(base)
	} else {
		md = ExtractModelMeshData(base)
	}
	if md == nil || md.VertexCount() == 0 || len(md.Indices) == 0 {
		panic(fmt.Sprintf("batch: instance pool base model %q has no extractable geometry", base.Name()))
	}
	p.base = md
	p.vertsPerSlot = md.VertexCount()
	p.slotBytes = p.vertsPerSlot * model.GPUVertexStride
	p.offsets = resolveSemantics(model.GPUVertexDeclaration())

	p.baseMin, p.baseMax = base.BoundingBox()
	if p.baseMin == p.baseMax {
		p.baseMin, p.baseMax = emptyBounds()
		for _, pos := range md.Positions {
			expandBounds(&p.baseMin, &p.baseMax, pos[0], pos[1], pos[2])
		}
	}

	p.vertexData = make([]byte, p.capacity*p.slotBytes)
	p.states = make([]SlotState, p.capacity)
	p.generations = make([]uint32, p.capacity)
	p.transforms = make([][16]float32, p.capacity)
	p.tints = make([][4]float32, p.capacity)
	p.tintModes = make([]TintMode, p.capacity)
	p.uvScales = make([][2]float32, p.capacity)
	p.uvOffsets = make([][2]float32, p.capacity)
	p.dirtyBitset = make([]uint64, (p.capacity+63)/64)
	p.pendingMin = len(p.vertexData) + 1

	// The index buffer is static: one copy of the base indices per slot,
	// offset into that slot's vertex region.
	indices := make([]uint32, 0, p.capacity*len(md.Indices))
	for slot := 0; slot < p.capacity; slot++ {
		vbase := uint32(slot * p.vertsPerSlot)
		for _, idx := range md.Indices {
			indices = append(indices, vbase+idx)
		}
	}
	indexData := common.SliceToBytes(indices)

	p.pool = worker.NewDynamicWorkerPool(p.workers, 256, 1*time.Second)

	p.mdl = model.NewModel(
		model.WithName(p.name),
		model.WithMeshProvider(bind_group_provider.NewBindGroupProvider(p.name+"_mesh")),
		model.WithVertexData(p.vertexData),
		model.WithIndexData(indexData),
		model.WithIndexCount(len(indices)),
		model.WithVertexLayout(model.GPUVertexDeclaration(), model.GPUVertexStride),
	)
	p.mdl.SetRenderMaterials(base.RenderMaterials())

	return p
}

package renderer

import (
	"sync"

	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	// Buffer writes staged via StageBufferWrite, flushed as one batch.
	stagedWrites []bind_group_provider.BufferWrite

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
}

// Renderer defines the interface for the GPU resource system.
//
// The Renderer owns the WebGPU device and queue and exposes a high-level API for
// creating mesh buffers, bind groups, textures, and samplers, and for writing
// data into existing GPU buffers. It implements a backend which allows for
// multiple backend API implementations to exist.
type Renderer interface {
	// InitMeshBuffers creates GPU vertex and index buffers from raw byte data and stores them
	// on the given BindGroupProvider for later use in draw calls.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created buffers on
	//   - vertexData: the raw vertex data bytes to upload to the GPU
	//   - indexData: the raw index data bytes to upload to the GPU
	//   - indexCount: the number of indices, used for draw calls
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	// InitBindGroup creates GPU buffers and a bind group from a layout descriptor and stores them
	// on the given BindGroupProvider. Textures and samplers must be initialized via InitTextureView
	// and InitSampler before calling this method. Buffer usage and size can be overridden per binding.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - descriptor: the layout descriptor defining the bind group entries
	//   - bufferUsageOverrides: additional buffer usage flags to OR into the derived usage, keyed by binding index (nil safe)
	//   - bufferSizeOverrides: custom buffer sizes to use instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// InitTextureView creates a GPU texture from staging data and stores the resulting texture view
	// on the given BindGroupProvider at the specified binding index. Must be called before InitBindGroup
	// for any texture bindings.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created texture view on
	//   - bindingKey: the binding index for this texture
	//   - stagingData: the pixel data and dimensions for the texture
	//
	// Returns:
	//   - error: an error if texture creation fails
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error

	// InitSampler creates a GPU sampler from staging data and stores it on the given BindGroupProvider
	// at the specified binding index. Must be called before InitBindGroup for any sampler bindings.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created sampler on
	//   - bindingKey: the binding index for this sampler
	//   - samplerStagingData: the sampler configuration
	//
	// Returns:
	//   - error: an error if sampler creation fails
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error

	// WriteBuffers writes all provided buffer writes to the GPU queue immediately.
	// Each BufferWrite targets a specific buffer on a BindGroupProvider at a given binding and offset.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// StageBufferWrite queues a buffer write to be submitted by the next
	// FlushBufferWrites call. Safe for concurrent use, letting worker goroutines
	// stage writes that the frame loop flushes in one batch.
	//
	// Parameters:
	//   - write: the BufferWrite to stage
	StageBufferWrite(write bind_group_provider.BufferWrite)

	// FlushBufferWrites submits all staged buffer writes to the GPU queue and
	// clears the staging list.
	FlushBufferWrites()

	// WriteVertexBuffer writes a contiguous span of vertex data into a provider's
	// existing vertex buffer at the given byte offset. The buffer must have been
	// created via InitMeshBuffers first.
	//
	// Parameters:
	//   - provider: the BindGroupProvider holding the target vertex buffer
	//   - offset: the destination byte offset within the vertex buffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the provider has no vertex buffer
	WriteVertexBuffer(provider bind_group_provider.BindGroupProvider, offset uint64, data []byte) error

	// Release frees the GPU device and adapter owned by the renderer.
	// The renderer must not be used after Release returns.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type.
// The backend acquires a GPU adapter and device on construction.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(r.forceFallbackAdapter)
	}

	return r
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	return r.backend.InitMeshBuffers(provider, vertexData, indexData, indexCount)
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	return r.backend.InitTextureView(provider, bindingKey, stagingData)
}

func (r *renderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	return r.backend.InitSampler(provider, bindingKey, samplerStagingData)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) StageBufferWrite(write bind_group_provider.BufferWrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stagedWrites = append(r.stagedWrites, write)
}

func (r *renderer) FlushBufferWrites() {
	r.mu.Lock()
	writes := r.stagedWrites
	r.stagedWrites = nil
	r.mu.Unlock()

	if len(writes) == 0 {
		return
	}
	r.backend.WriteBuffers(writes)
}

func (r *renderer) WriteVertexBuffer(provider bind_group_provider.BindGroupProvider, offset uint64, data []byte) error {
	return r.backend.WriteVertexBuffer(provider, offset, data)
}

func (r *renderer) Release() {
	r.backend.Release()
}

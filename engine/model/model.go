package model

import (
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/renderer/bind_group_provider"
	"github.com/embergfx/ember/engine/renderer/material"
)

// nextBatchID is the source of stable opaque mesh identities handed out at model
// creation. Batching caches key on this rather than on object identity.
var nextBatchID uint64

// model is the implementation of the Model interface.
type model struct {
	name                  string
	skinned               bool
	importedMaterials     []common.ImportedMaterial
	renderMaterials       []material.Material
	meshProvider          bind_group_provider.BindGroupProvider
	boundingRadius        float32
	vertexData, indexData []byte
	indexCount            int

	// Batching metadata: layout of the raw vertex/index bytes plus eligibility
	// facts the static batcher checks before merging.
	batchID                  uint64
	vertexDecl               []common.VertexElement
	vertexStride             int
	vertexDataOffset         int
	indexFormat              wgpu.IndexFormat
	topology                 wgpu.PrimitiveTopology
	vertexStreamCount        int
	boundingMin, boundingMax [3]float32
}

// Model defines the interface for a loaded 3D model.
// A Model is a GPU-ready container holding mesh data via a BindGroupProvider,
// the layout metadata batching needs, and material properties.
// It is produced by the Loader after importing and processing a model file.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Skinned reports whether this model uses skeletal animation.
	//
	// Returns:
	//   - bool: true if the model has bone data
	Skinned() bool

	// ImportedMaterials retrieves the raw material properties imported from the model file.
	//
	// Returns:
	//   - []common.ImportedMaterial: the imported materials
	ImportedMaterials() []common.ImportedMaterial

	// MeshProvider retrieves the BindGroupProvider holding GPU mesh resources.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the mesh provider
	MeshProvider() bind_group_provider.BindGroupProvider

	// VertexData returns the raw vertex data for this model's mesh.
	//
	// Returns:
	//   - []byte: the vertex data
	VertexData() []byte

	// IndexData returns the raw index data for this model's mesh.
	//
	// Returns:
	//   - []byte: the index data
	IndexData() []byte

	// IndexCount returns the number of indices in the model's mesh.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// RenderMaterials retrieves the render-ready materials for this model.
	// These are GPU-configured Material instances used during DrawCalls,
	// as opposed to the raw common.ImportedMaterial data from the loader.
	//
	// Returns:
	//   - []material.Material: the render-ready materials
	RenderMaterials() []material.Material

	// SetRenderMaterials replaces the render-ready material list for this model.
	//
	// Parameters:
	//   - mats: the render-ready materials to set
	SetRenderMaterials(mats []material.Material)

	// BoundingRadius returns the bounding sphere radius for this model, measured as
	// the maximum vertex distance from the origin. Used by frustum culling.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// SetVertexData sets the raw vertex data for this model's mesh.
	//
	// Parameters:
	//   - data: the vertex data to set
	SetVertexData(data []byte)

	// SetIndexData sets the raw index data for this model's mesh.
	//
	// Parameters:
	//   - data: the index data to set
	SetIndexData(data []byte)

	// SetIndexCount sets the number of indices in the model's mesh.
	//
	// Parameters:
	//   - count: the index count to set
	SetIndexCount(count int)

	// BatchID returns the stable opaque identity assigned to this model at
	// creation. Batching caches key on this value rather than on pointer
	// identity: two models with identical geometry but different identities
	// are cached separately.
	//
	// Returns:
	//   - uint64: the model's batch identity
	BatchID() uint64

	// VertexDeclaration returns the semantic layout of this model's raw vertex
	// data, or nil if no declaration has been set (the model is then not
	// eligible for CPU batching).
	//
	// Returns:
	//   - []common.VertexElement: the vertex declaration or nil
	VertexDeclaration() []common.VertexElement

	// SetVertexDeclaration sets the semantic layout of this model's raw vertex data.
	//
	// Parameters:
	//   - decl: the vertex declaration to set
	SetVertexDeclaration(decl []common.VertexElement)

	// VertexStride returns the byte size of one packed vertex in the raw vertex data.
	//
	// Returns:
	//   - int: the vertex stride in bytes
	VertexStride() int

	// SetVertexStride sets the byte size of one packed vertex in the raw vertex data.
	//
	// Parameters:
	//   - stride: the vertex stride in bytes
	SetVertexStride(stride int)

	// VertexDataOffset returns the leading byte offset at which packed vertices
	// begin within the raw vertex data. Zero for models built by the loader.
	//
	// Returns:
	//   - int: the leading byte offset
	VertexDataOffset() int

	// IndexFormat returns the width of the raw index data entries.
	//
	// Returns:
	//   - wgpu.IndexFormat: Uint16 or Uint32
	IndexFormat() wgpu.IndexFormat

	// Topology returns the primitive topology of the model's mesh. Only
	// triangle-list models are eligible for CPU batching.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology
	Topology() wgpu.PrimitiveTopology

	// VertexStreamCount returns the number of vertex buffer streams backing the
	// mesh. Models with more than one stream are rejected wholesale by the
	// batcher's eligibility check.
	//
	// Returns:
	//   - int: the vertex stream count
	VertexStreamCount() int

	// BoundingBox returns the axis-aligned bounding box of the model's
	// untransformed vertices.
	//
	// Returns:
	//   - bmin: the minimum corner
	//   - bmax: the maximum corner
	BoundingBox() (bmin, bmax [3]float32)

	// SetBoundingBox sets the axis-aligned bounding box of the model's
	// untransformed vertices.
	//
	// Parameters:
	//   - bmin: the minimum corner
	//   - bmax: the maximum corner
	SetBoundingBox(bmin, bmax [3]float32)
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{
		batchID:           atomic.AddUint64(&nextBatchID, 1),
		indexFormat:       wgpu.IndexFormatUint32,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		vertexStreamCount: 1,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Skinned() bool {
	return m.skinned
}

func (m *model) ImportedMaterials() []common.ImportedMaterial {
	return m.importedMaterials
}

func (m *model) MeshProvider() bind_group_provider.BindGroupProvider {
	return m.meshProvider
}

func (m *model) VertexData() []byte {
	return m.vertexData
}

func (m *model) SetVertexData(data []byte) {
	m.vertexData = data
}

func (m *model) IndexData() []byte {
	return m.indexData
}

func (m *model) SetIndexData(data []byte) {
	m.indexData = data
}

func (m *model) IndexCount() int {
	return m.indexCount
}

func (m *model) SetIndexCount(count int) {
	m.indexCount = count
}

func (m *model) RenderMaterials() []material.Material {
	return m.renderMaterials
}

func (m *model) SetRenderMaterials(mats []material.Material) {
	m.renderMaterials = mats
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) BatchID() uint64 {
	return m.batchID
}

func (m *model) VertexDeclaration() []common.VertexElement {
	return m.vertexDecl
}

func (m *model) SetVertexDeclaration(decl []common.VertexElement) {
	m.vertexDecl = decl
}

func (m *model) VertexStride() int {
	return m.vertexStride
}

func (m *model) SetVertexStride(stride int) {
	m.vertexStride = stride
}

func (m *model) VertexDataOffset() int {
	return m.vertexDataOffset
}

func (m *model) IndexFormat() wgpu.IndexFormat {
	return m.indexFormat
}

func (m *model) Topology() wgpu.PrimitiveTopology {
	return m.topology
}

func (m *model) VertexStreamCount() int {
	return m.vertexStreamCount
}

func (m *model) BoundingBox() (bmin, bmax [3]float32) {
	return m.boundingMin, m.boundingMax
}

func (m *model) SetBoundingBox(bmin, bmax [3]float32) {
	m.boundingMin = bmin
	m.boundingMax = bmax
}

package model

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/renderer/bind_group_provider"
	"github.com/embergfx/ember/engine/renderer/material"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithSkinned is an option builder that sets whether the Model uses skeletal animation.
//
// Parameters:
//   - skinned: true if the model has bone data
//
// Returns:
//   - ModelBuilderOption: a function that applies the skinned option to a model
func WithSkinned(skinned bool) ModelBuilderOption {
	return func(m *model) {
		m.skinned = skinned
	}
}

// WithImportedMaterials is an option builder that sets the raw imported materials of the Model.
//
// Parameters:
//   - materials: the imported materials to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the imported materials option to a model
func WithImportedMaterials(materials []common.ImportedMaterial) ModelBuilderOption {
	return func(m *model) {
		m.importedMaterials = materials
	}
}

// WithMeshProvider is an option builder that sets the BindGroupProvider for mesh GPU resources.
//
// Parameters:
//   - provider: the BindGroupProvider holding vertex/index buffers and bind group data
//
// Returns:
//   - ModelBuilderOption: a function that applies the mesh provider option to a model
func WithMeshProvider(provider bind_group_provider.BindGroupProvider) ModelBuilderOption {
	return func(m *model) {
		m.meshProvider = provider
	}
}

// WithBoundingRadius is an option builder that manually sets the bounding sphere radius.
// Use this to override the auto-computed value from ComputeBoundingRadius when a manually
// tuned conservative bound is preferred.
//
// Parameters:
//   - radius: the bounding radius to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounding radius option to a model
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}

// WithRenderMaterials is an option builder that sets the render-ready materials for the Model.
// These are GPU-configured Material instances used during DrawCalls.
//
// Parameters:
//   - mats: the render-ready materials to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the render materials option to a model
func WithRenderMaterials(mats ...material.Material) ModelBuilderOption {
	return func(m *model) {
		m.renderMaterials = mats
	}
}

// WithVertexData is an option builder that sets the raw vertex data for this model's mesh.
//
// Parameters:
//   - data: the vertex data to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertex data option to a model
func WithVertexData(data []byte) ModelBuilderOption {
	return func(m *model) {
		m.vertexData = data
	}
}

// WithIndexData is an option builder that sets the raw index data for this model's mesh.
//
// Parameters:
//   - data: the index data to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the index data option to a model
func WithIndexData(data []byte) ModelBuilderOption {
	return func(m *model) {
		m.indexData = data
	}
}

// WithVertexLayout is an option builder that sets the semantic declaration and
// stride describing the model's raw vertex data. Both are required for the
// model to be eligible for CPU mesh batching.
//
// Parameters:
//   - decl: the vertex declaration
//   - stride: the byte size of one packed vertex
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertex layout option to a model
func WithVertexLayout(decl []common.VertexElement, stride int) ModelBuilderOption {
	return func(m *model) {
		m.vertexDecl = decl
		m.vertexStride = stride
	}
}

// WithVertexDataOffset is an option builder that sets the leading byte offset
// at which packed vertices begin within the raw vertex data.
//
// Parameters:
//   - offset: the leading byte offset
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertex data offset option to a model
func WithVertexDataOffset(offset int) ModelBuilderOption {
	return func(m *model) {
		m.vertexDataOffset = offset
	}
}

// WithIndexFormat is an option builder that sets the width of the model's raw
// index data entries. The default is 32-bit indices.
//
// Parameters:
//   - format: wgpu.IndexFormatUint16 or wgpu.IndexFormatUint32
//
// Returns:
//   - ModelBuilderOption: a function that applies the index format option to a model
func WithIndexFormat(format wgpu.IndexFormat) ModelBuilderOption {
	return func(m *model) {
		m.indexFormat = format
	}
}

// WithTopology is an option builder that sets the model's primitive topology.
// The default is triangle list, the only topology eligible for CPU batching.
//
// Parameters:
//   - topology: the primitive topology
//
// Returns:
//   - ModelBuilderOption: a function that applies the topology option to a model
func WithTopology(topology wgpu.PrimitiveTopology) ModelBuilderOption {
	return func(m *model) {
		m.topology = topology
	}
}

// WithVertexStreamCount is an option builder that sets the number of vertex
// buffer streams backing the mesh. The default is a single interleaved stream.
//
// Parameters:
//   - count: the vertex stream count
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertex stream count option to a model
func WithVertexStreamCount(count int) ModelBuilderOption {
	return func(m *model) {
		m.vertexStreamCount = count
	}
}

// WithBoundingBox is an option builder that sets the axis-aligned bounding box
// of the model's untransformed vertices.
//
// Parameters:
//   - bmin: the minimum corner
//   - bmax: the maximum corner
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounding box option to a model
func WithBoundingBox(bmin, bmax [3]float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingMin = bmin
		m.boundingMax = bmax
	}
}

// WithIndexCount is an option builder that sets the number of indices in the model's mesh.
//
// Parameters:
//   - count: the index count to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the index count option to a model
func WithIndexCount(count int) ModelBuilderOption {
	return func(m *model) {
		m.indexCount = count
	}
}

package model

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/embergfx/ember/common"
)

// GPUVertexStride is the byte size of one packed GPUVertex.
const GPUVertexStride = 64

// GPUSkinnedVertexStride is the byte size of one packed GPUSkinnedVertex.
const GPUSkinnedVertexStride = 96

// GPUVertexDeclaration returns the semantic declaration of the packed GPUVertex
// layout. This is the canonical layout merged/batched meshes are emitted in.
//
// Returns:
//   - []common.VertexElement: the declaration matching GPUVertex field offsets
func GPUVertexDeclaration() []common.VertexElement {
	return []common.VertexElement{
		{Semantic: common.VertexSemanticPosition, Format: common.VertexFormatFloat32x3, Offset: 0},
		{Semantic: common.VertexSemanticNormal, Format: common.VertexFormatFloat32x3, Offset: 12},
		{Semantic: common.VertexSemanticTexCoord, Format: common.VertexFormatFloat32x2, Offset: 24},
		{Semantic: common.VertexSemanticColor, Format: common.VertexFormatFloat32x4, Offset: 32},
		{Semantic: common.VertexSemanticTangent, Format: common.VertexFormatFloat32x4, Offset: 48},
	}
}

// GPUSkinnedVertexDeclaration returns the semantic declaration of the packed
// GPUSkinnedVertex layout. Bone indices and weights carry no batching semantic
// and are not declared; parsers skip them via the 96-byte stride.
//
// Returns:
//   - []common.VertexElement: the declaration matching GPUSkinnedVertex field offsets
func GPUSkinnedVertexDeclaration() []common.VertexElement {
	return GPUVertexDeclaration()
}

// GPUVertex is the GPU-aligned representation of a single mesh vertex for static (non-skinned) models.
// Size: 64 bytes (std430 aligned, no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal for lighting (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
	Color    [4]float32 // offset 32: per-vertex RGBA color (16 bytes)
	Tangent  [4]float32 // offset 48: tangent vector (xyz) + handedness (w) for normal mapping (16 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Normal[0]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Normal[1]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Normal[2]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.TexCoord[0]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.TexCoord[1]))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.Color[3]))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Tangent[0]))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.Tangent[1]))
	binary.LittleEndian.PutUint32(buf[56:60], math.Float32bits(g.Tangent[2]))
	binary.LittleEndian.PutUint32(buf[60:64], math.Float32bits(g.Tangent[3]))
	return buf
}

// GPUSkinnedVertex is the 96-byte import vertex layout: the base GPUVertex plus
// the bone influence data glTF files carry. The loader imports every mesh in
// this layout; the bone fields stay zero for static models and are skipped by
// batching via the declaration.
type GPUSkinnedVertex struct {
	GPUVertex
	BoneIndices [4]uint32  // offset 64: indices of up to 4 influencing bones (16 bytes)
	BoneWeights [4]float32 // offset 80: blend weights for each bone (16 bytes)
}

// Size returns the size of the GPUSkinnedVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinnedVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// ComputeBoundingRadius calculates the bounding sphere radius from a slice of
// GPUSkinnedVertex positions. The radius is the maximum distance from the origin
// across all vertices in the slice.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []GPUSkinnedVertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		p := v.Position
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}

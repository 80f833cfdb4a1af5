package batch

import (
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
)

// triangleMesh builds a single right triangle in the XY plane with its first
// vertex at the given offset. UVs and colors are optional so tests can produce
// either vertex variant.
func triangleMesh(offset [3]float32, withUV, withColor bool) *MeshData {
	md := &MeshData{
		Positions: [][3]float32{
			{offset[0], offset[1], offset[2]},
			{offset[0] + 1, offset[1], offset[2]},
			{offset[0], offset[1] + 1, offset[2]},
		},
		Normals: [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices: []uint32{0, 1, 2},
	}
	if withUV {
		md.TexCoords = [][2]float32{{0, 0}, {1, 0}, {0, 1}}
		md.Tangents = [][4]float32{{1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, 1}}
	}
	if withColor {
		md.Colors = [][4]float32{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}}
	}
	return md
}

// triangleModel wraps a triangle mesh in a model carrying the packed layout of
// its variant, ready for extraction and merging.
func triangleModel(name string, offset [3]float32, withUV, withColor bool) model.Model {
	md := triangleMesh(offset, withUV, withColor)
	decl := declarationFor(md.SemanticSet())
	return model.NewModel(
		model.WithName(name),
		model.WithVertexData(PackMeshData(md, decl, model.GPUVertexStride)),
		model.WithIndexData(common.SliceToBytes(md.Indices)),
		model.WithIndexCount(len(md.Indices)),
		model.WithVertexLayout(decl, model.GPUVertexStride),
		model.WithBoundingBox(
			[3]float32{offset[0], offset[1], offset[2]},
			[3]float32{offset[0] + 1, offset[1] + 1, offset[2]},
		),
	)
}

// translation returns a column-major matrix translating by (x, y, z).
func translation(x, y, z float32) [16]float32 {
	var m [16]float32
	common.Identity(m[:])
	m[12], m[13], m[14] = x, y, z
	return m
}

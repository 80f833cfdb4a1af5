package batch

import (
	"encoding/binary"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
)

// semanticOffsets holds the byte offset of each supported semantic within one
// packed vertex, resolved once per declaration before the extraction loop.
// A value of -1 means the declaration does not carry that semantic.
type semanticOffsets struct {
	position int
	normal   int
	texCoord int
	color    int
	tangent  int
}

// resolveSemantics scans a vertex declaration and records where each supported
// semantic lives. Unknown semantics are ignored.
func resolveSemantics(decl []common.VertexElement) semanticOffsets {
	off := semanticOffsets{position: -1, normal: -1, texCoord: -1, color: -1, tangent: -1}
	for _, el := range decl {
		switch el.Semantic {
		case common.VertexSemanticPosition:
			off.position = el.Offset
		case common.VertexSemanticNormal:
			off.normal = el.Offset
		case common.VertexSemanticTexCoord:
			off.texCoord = el.Offset
		case common.VertexSemanticColor:
			off.color = el.Offset
		case common.VertexSemanticTangent:
			off.tangent = el.Offset
		}
	}
	return off
}

func readF32(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
}

func writeF32(data []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(data[off:off+4], math.Float32bits(v))
}

// ExtractMeshData reads typed vertex arrays out of a packed interleaved vertex
// buffer. The declaration is resolved to fixed byte offsets once, then every
// vertex is decoded in a single pass. Trailing bytes shorter than one stride
// are ignored.
//
// Parameters:
//   - data: the packed vertex buffer
//   - decl: the semantic declaration describing the packed layout
//   - stride: the byte size of one packed vertex
//   - byteOffset: leading bytes to skip before the first vertex
//
// Returns:
//   - *MeshData: the decoded arrays, or nil when data is empty, the declaration
//     carries no position, or the stride is not positive
func ExtractMeshData(data []byte, decl []common.VertexElement, stride, byteOffset int) *MeshData {
	if stride <= 0 || byteOffset < 0 || byteOffset >= len(data) {
		return nil
	}
	off := resolveSemantics(decl)
	if off.position < 0 {
		return nil
	}
	count := (len(data) - byteOffset) / stride
	if count == 0 {
		return nil
	}

	md := &MeshData{Positions: make([][3]float32, count)}
	if off.normal >= 0 {
		md.Normals = make([][3]float32, count)
	}
	if off.texCoord >= 0 {
		md.TexCoords = make([][2]float32, count)
	}
	if off.color >= 0 {
		md.Colors = make([][4]float32, count)
	}
	if off.tangent >= 0 {
		md.Tangents = make([][4]float32, count)
	}

	for i := 0; i < count; i++ {
		base := byteOffset + i*stride
		md.Positions[i] = [3]float32{
			readF32(data, base+off.position),
			readF32(data, base+off.position+4),
			readF32(data, base+off.position+8),
		}
		if off.normal >= 0 {
			md.Normals[i] = [3]float32{
				readF32(data, base+off.normal),
				readF32(data, base+off.normal+4),
				readF32(data, base+off.normal+8),
			}
		}
		if off.texCoord >= 0 {
			md.TexCoords[i] = [2]float32{
				readF32(data, base+off.texCoord),
				readF32(data, base+off.texCoord+4),
			}
		}
		if off.color >= 0 {
			md.Colors[i] = [4]float32{
				readF32(data, base+off.color),
				readF32(data, base+off.color+4),
				readF32(data, base+off.color+8),
				readF32(data, base+off.color+12),
			}
		}
		if off.tangent >= 0 {
			md.Tangents[i] = [4]float32{
				readF32(data, base+off.tangent),
				readF32(data, base+off.tangent+4),
				readF32(data, base+off.tangent+8),
				readF32(data, base+off.tangent+12),
			}
		}
	}
	return md
}

// ExtractIndices decodes a raw index buffer into uniform 32-bit indices,
// widening 16-bit entries. Trailing bytes shorter than one entry are ignored.
//
// Parameters:
//   - data: the raw index buffer
//   - format: wgpu.IndexFormatUint16 or wgpu.IndexFormatUint32
//
// Returns:
//   - []uint32: the decoded indices, or nil when data is empty
func ExtractIndices(data []byte, format wgpu.IndexFormat) []uint32 {
	if len(data) == 0 {
		return nil
	}
	if format == wgpu.IndexFormatUint16 {
		count := len(data) / 2
		out := make([]uint32, count)
		for i := 0; i < count; i++ {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		}
		return out
	}
	count := len(data) / 4
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out
}

// PackMeshData packs typed vertex arrays back into an interleaved buffer using
// the given declaration. Semantics declared but absent from the mesh data are
// filled with defaults (white for color, zero otherwise).
//
// Parameters:
//   - md: the typed vertex arrays
//   - decl: the target semantic declaration
//   - stride: the byte size of one packed vertex
//
// Returns:
//   - []byte: the packed vertex buffer, or nil when md is nil or empty
func PackMeshData(md *MeshData, decl []common.VertexElement, stride int) []byte {
	if md == nil || md.VertexCount() == 0 || stride <= 0 {
		return nil
	}
	off := resolveSemantics(decl)
	count := md.VertexCount()
	out := make([]byte, count*stride)
	for i := 0; i < count; i++ {
		base := i * stride
		if off.position >= 0 {
			p := md.Positions[i]
			writeF32(out, base+off.position, p[0])
			writeF32(out, base+off.position+4, p[1])
			writeF32(out, base+off.position+8, p[2])
		}
		if off.normal >= 0 {
			var n [3]float32
			if md.Normals != nil {
				n = md.Normals[i]
			}
			writeF32(out, base+off.normal, n[0])
			writeF32(out, base+off.normal+4, n[1])
			writeF32(out, base+off.normal+8, n[2])
		}
		if off.texCoord >= 0 {
			var uv [2]float32
			if md.TexCoords != nil {
				uv = md.TexCoords[i]
			}
			writeF32(out, base+off.texCoord, uv[0])
			writeF32(out, base+off.texCoord+4, uv[1])
		}
		if off.color >= 0 {
			c := [4]float32{1, 1, 1, 1}
			if md.Colors != nil {
				c = md.Colors[i]
			}
			writeF32(out, base+off.color, c[0])
			writeF32(out, base+off.color+4, c[1])
			writeF32(out, base+off.color+8, c[2])
			writeF32(out, base+off.color+12, c[3])
		}
		if off.tangent >= 0 {
			var t [4]float32
			if md.Tangents != nil {
				t = md.Tangents[i]
			}
			writeF32(out, base+off.tangent, t[0])
			writeF32(out, base+off.tangent+4, t[1])
			writeF32(out, base+off.tangent+8, t[2])
			writeF32(out, base+off.tangent+12, t[3])
		}
	}
	return out
}

// ExtractModelMeshData extracts typed geometry from a model using the layout
// metadata the model carries. Indices are decoded according to the model's
// index format.
//
// Parameters:
//   - m: the source model
//
// Returns:
//   - *MeshData: the decoded geometry, or nil when the model has no vertex
//     data or no declaration
func ExtractModelMeshData(m model.Model) *MeshData {
	if m == nil {
		return nil
	}
	md := ExtractMeshData(m.VertexData(), m.VertexDeclaration(), m.VertexStride(), m.VertexDataOffset())
	if md == nil {
		return nil
	}
	md.Indices = ExtractIndices(m.IndexData(), m.IndexFormat())
	return md
}

package common

// VertexSemantic identifies the semantic family of a vertex attribute within a
// packed vertex buffer. The set is closed: parsers resolve a semantic to a fixed
// byte offset once per declaration instead of matching attribute names per vertex.
type VertexSemantic int

const (
	// VertexSemanticPosition is the vertex position attribute. Required by every declaration.
	VertexSemanticPosition VertexSemantic = iota

	// VertexSemanticNormal is the vertex normal attribute used for lighting.
	VertexSemanticNormal

	// VertexSemanticTexCoord is the UV texture coordinate attribute.
	VertexSemanticTexCoord

	// VertexSemanticColor is the per-vertex RGBA color attribute.
	VertexSemanticColor

	// VertexSemanticTangent is the tangent (xyz) + handedness (w) attribute for normal mapping.
	VertexSemanticTangent
)

// String returns the semantic's canonical attribute name.
//
// Returns:
//   - string: the attribute name (e.g. "POSITION")
func (s VertexSemantic) String() string {
	switch s {
	case VertexSemanticPosition:
		return "POSITION"
	case VertexSemanticNormal:
		return "NORMAL"
	case VertexSemanticTexCoord:
		return "TEXCOORD"
	case VertexSemanticColor:
		return "COLOR"
	case VertexSemanticTangent:
		return "TANGENT"
	default:
		return "UNKNOWN"
	}
}

// VertexFormat describes the component layout of a single vertex attribute.
type VertexFormat int

const (
	// VertexFormatFloat32x2 is two consecutive float32 components (8 bytes).
	VertexFormatFloat32x2 VertexFormat = iota

	// VertexFormatFloat32x3 is three consecutive float32 components (12 bytes).
	VertexFormatFloat32x3

	// VertexFormatFloat32x4 is four consecutive float32 components (16 bytes).
	VertexFormatFloat32x4
)

// ByteSize returns the total size of one attribute value in this format.
//
// Returns:
//   - int: the attribute size in bytes
func (f VertexFormat) ByteSize() int {
	return f.ComponentCount() * 4
}

// ComponentCount returns the number of float32 components in this format.
//
// Returns:
//   - int: the component count
func (f VertexFormat) ComponentCount() int {
	switch f {
	case VertexFormatFloat32x2:
		return 2
	case VertexFormatFloat32x3:
		return 3
	case VertexFormatFloat32x4:
		return 4
	default:
		return 0
	}
}

// VertexElement describes one attribute of a packed vertex buffer: its semantic
// family, component format, and byte offset within a single vertex stride.
type VertexElement struct {
	// Semantic is the attribute's semantic family.
	Semantic VertexSemantic

	// Format is the attribute's component layout.
	Format VertexFormat

	// Offset is the attribute's byte offset from the start of each vertex.
	Offset int
}

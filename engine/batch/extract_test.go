package batch

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
)

// packVertex writes position + uv floats into an interleaved test layout:
// 12 bytes position, 8 bytes uv, 20-byte stride.
func packVertex(buf []byte, base int, px, py, pz, u, v float32) {
	binary.LittleEndian.PutUint32(buf[base:], math.Float32bits(px))
	binary.LittleEndian.PutUint32(buf[base+4:], math.Float32bits(py))
	binary.LittleEndian.PutUint32(buf[base+8:], math.Float32bits(pz))
	binary.LittleEndian.PutUint32(buf[base+12:], math.Float32bits(u))
	binary.LittleEndian.PutUint32(buf[base+16:], math.Float32bits(v))
}

func posUVDecl() []common.VertexElement {
	return []common.VertexElement{
		{Semantic: common.VertexSemanticPosition, Format: common.VertexFormatFloat32x3, Offset: 0},
		{Semantic: common.VertexSemanticTexCoord, Format: common.VertexFormatFloat32x2, Offset: 12},
	}
}

func TestExtractMeshData(t *testing.T) {
	buf := make([]byte, 3*20)
	packVertex(buf, 0, 0, 0, 0, 0, 0)
	packVertex(buf, 20, 1, 0, 0, 1, 0)
	packVertex(buf, 40, 0, 1, 0, 0, 1)

	md := ExtractMeshData(buf, posUVDecl(), 20, 0)
	if md == nil {
		t.Fatal("expected mesh data, got nil")
	}
	if md.VertexCount() != 3 {
		t.Fatalf("vertex count: got %d, want 3", md.VertexCount())
	}
	if md.Positions[1] != [3]float32{1, 0, 0} {
		t.Errorf("position 1: got %v, want (1,0,0)", md.Positions[1])
	}
	if md.TexCoords[2] != [2]float32{0, 1} {
		t.Errorf("uv 2: got %v, want (0,1)", md.TexCoords[2])
	}
	if md.Normals != nil || md.Colors != nil || md.Tangents != nil {
		t.Error("undeclared semantics should stay nil")
	}
}

func TestExtractMeshDataByteOffset(t *testing.T) {
	buf := make([]byte, 8+2*20)
	packVertex(buf, 8, 5, 6, 7, 0, 0)
	packVertex(buf, 28, 8, 9, 10, 0, 0)

	md := ExtractMeshData(buf, posUVDecl(), 20, 8)
	if md == nil || md.VertexCount() != 2 {
		t.Fatalf("expected 2 vertices after leading offset, got %v", md)
	}
	if md.Positions[0] != [3]float32{5, 6, 7} {
		t.Errorf("position 0: got %v, want (5,6,7)", md.Positions[0])
	}
}

func TestExtractMeshDataTruncatesPartialStride(t *testing.T) {
	// Two full vertices plus 7 trailing bytes that don't make a third.
	buf := make([]byte, 2*20+7)
	packVertex(buf, 0, 1, 1, 1, 0, 0)
	packVertex(buf, 20, 2, 2, 2, 0, 0)

	md := ExtractMeshData(buf, posUVDecl(), 20, 0)
	if md == nil || md.VertexCount() != 2 {
		t.Fatalf("expected trailing partial stride to be ignored, got %v", md)
	}
}

func TestExtractMeshDataRejectsBadInput(t *testing.T) {
	if ExtractMeshData(nil, posUVDecl(), 20, 0) != nil {
		t.Error("nil data should yield nil")
	}
	if ExtractMeshData(make([]byte, 40), posUVDecl(), 0, 0) != nil {
		t.Error("zero stride should yield nil")
	}
	if ExtractMeshData(make([]byte, 40), nil, 20, 0) != nil {
		t.Error("empty declaration should yield nil")
	}
	noPos := []common.VertexElement{
		{Semantic: common.VertexSemanticNormal, Format: common.VertexFormatFloat32x3, Offset: 0},
	}
	if ExtractMeshData(make([]byte, 40), noPos, 12, 0) != nil {
		t.Error("declaration without position should yield nil")
	}
	if ExtractMeshData(make([]byte, 10), posUVDecl(), 20, 0) != nil {
		t.Error("data shorter than one stride should yield nil")
	}
}

func TestExtractIndices16BitWidening(t *testing.T) {
	raw := make([]byte, 6)
	binary.LittleEndian.PutUint16(raw[0:], 0)
	binary.LittleEndian.PutUint16(raw[2:], 513)
	binary.LittleEndian.PutUint16(raw[4:], 65535)

	got := ExtractIndices(raw, wgpu.IndexFormatUint16)
	want := []uint32{0, 513, 65535}
	if len(got) != len(want) {
		t.Fatalf("index count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestExtractIndices32Bit(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], 70000)
	binary.LittleEndian.PutUint32(raw[4:], 3)

	got := ExtractIndices(raw, wgpu.IndexFormatUint32)
	if len(got) != 2 || got[0] != 70000 || got[1] != 3 {
		t.Errorf("got %v, want [70000 3]", got)
	}
	if ExtractIndices(nil, wgpu.IndexFormatUint32) != nil {
		t.Error("empty index data should yield nil")
	}
}

func TestPackExtractRoundTrip(t *testing.T) {
	src := &MeshData{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		TexCoords: [][2]float32{{0, 0}, {1, 0}, {0, 1}},
		Colors:    [][4]float32{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}},
		Tangents:  [][4]float32{{1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, 1}},
		Indices:   []uint32{0, 1, 2},
	}
	decl := model.GPUVertexDeclaration()
	packed := PackMeshData(src, decl, model.GPUVertexStride)
	if len(packed) != 3*model.GPUVertexStride {
		t.Fatalf("packed size: got %d, want %d", len(packed), 3*model.GPUVertexStride)
	}

	got := ExtractMeshData(packed, decl, model.GPUVertexStride, 0)
	if got == nil {
		t.Fatal("round trip extraction failed")
	}
	for i := 0; i < 3; i++ {
		if got.Positions[i] != src.Positions[i] {
			t.Errorf("position %d: got %v, want %v", i, got.Positions[i], src.Positions[i])
		}
		if got.Colors[i] != src.Colors[i] {
			t.Errorf("color %d: got %v, want %v", i, got.Colors[i], src.Colors[i])
		}
		if got.Tangents[i] != src.Tangents[i] {
			t.Errorf("tangent %d: got %v, want %v", i, got.Tangents[i], src.Tangents[i])
		}
	}
}

func TestPackMeshDataDefaults(t *testing.T) {
	// A positions-only mesh packed into the full layout gets white color and
	// zeroed normals/uvs/tangents.
	src := &MeshData{Positions: [][3]float32{{1, 2, 3}}}
	decl := model.GPUVertexDeclaration()
	packed := PackMeshData(src, decl, model.GPUVertexStride)

	got := ExtractMeshData(packed, decl, model.GPUVertexStride, 0)
	if got.Colors[0] != [4]float32{1, 1, 1, 1} {
		t.Errorf("default color: got %v, want white", got.Colors[0])
	}
	if got.Normals[0] != [3]float32{} {
		t.Errorf("default normal: got %v, want zero", got.Normals[0])
	}
}

func TestExtractModelMeshData(t *testing.T) {
	src := &MeshData{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}
	decl := model.GPUVertexDeclaration()
	m := model.NewModel(
		model.WithName("tri"),
		model.WithVertexData(PackMeshData(src, decl, model.GPUVertexStride)),
		model.WithIndexData(common.SliceToBytes(src.Indices)),
		model.WithIndexCount(3),
		model.WithVertexLayout(decl, model.GPUVertexStride),
	)

	got := ExtractModelMeshData(m)
	if got == nil || got.VertexCount() != 3 || len(got.Indices) != 3 {
		t.Fatalf("unexpected extraction result: %v", got)
	}
	if ExtractModelMeshData(nil) != nil {
		t.Error("nil model should yield nil")
	}
	bare := model.NewModel(model.WithName("bare"))
	if ExtractModelMeshData(bare) != nil {
		t.Error("model without vertex data should yield nil")
	}
}

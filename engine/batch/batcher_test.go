package batch

import (
	"errors"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/engine/model"
)

func TestMergeTwoTriangles(t *testing.T) {
	b := NewModelBatcher()
	a := triangleModel("a", [3]float32{}, true, false)
	c := triangleModel("c", [3]float32{}, true, false)

	t1 := translation(0, 0, 0)
	t2 := translation(1, 0, 0)
	merged, unbatched, err := b.Merge([]BatchChunk{
		{Model: a, Transform: t1[:], MaterialIndex: 0},
		{Model: c, Transform: t2[:], MaterialIndex: 0},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(unbatched) != 0 {
		t.Fatalf("unexpected unbatched chunks: %d", len(unbatched))
	}
	if len(merged.Meshes) != 1 {
		t.Fatalf("mesh count: got %d, want 1", len(merged.Meshes))
	}

	mesh := merged.Meshes[0]
	if mesh.VertexCount != 6 {
		t.Errorf("vertex count: got %d, want 6", mesh.VertexCount)
	}
	if mesh.IndexCount != 6 {
		t.Errorf("index count: got %d, want 6", mesh.IndexCount)
	}
	indices := ExtractIndices(mesh.IndexData, wgpu.IndexFormatUint32)
	want := []uint32{0, 1, 2, 3, 4, 5}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, indices[i], want[i])
		}
	}

	// The second triangle's vertices must be translated by (1,0,0).
	got := ExtractMeshData(mesh.VertexData, mesh.Declaration, mesh.VertexStride, 0)
	if got.Positions[3] != [3]float32{1, 0, 0} {
		t.Errorf("translated vertex: got %v, want (1,0,0)", got.Positions[3])
	}
	if got.Positions[4] != [3]float32{2, 0, 0} {
		t.Errorf("translated vertex: got %v, want (2,0,0)", got.Positions[4])
	}

	if mesh.BoundingMin != [3]float32{0, 0, 0} || mesh.BoundingMax != [3]float32{2, 1, 0} {
		t.Errorf("bounds: got %v..%v, want (0,0,0)..(2,1,0)", mesh.BoundingMin, mesh.BoundingMax)
	}
}

func TestMergeGroupsByMaterial(t *testing.T) {
	b := NewModelBatcher()
	merged, unbatched, err := b.Merge([]BatchChunk{
		{Model: triangleModel("a", [3]float32{}, true, false), MaterialIndex: 0},
		{Model: triangleModel("c", [3]float32{}, true, false), MaterialIndex: 1},
		{Model: triangleModel("d", [3]float32{}, true, false), MaterialIndex: 0},
	})
	if err != nil || len(unbatched) != 0 {
		t.Fatalf("merge failed: %v, unbatched %d", err, len(unbatched))
	}
	if len(merged.Meshes) != 2 {
		t.Fatalf("mesh count: got %d, want 2", len(merged.Meshes))
	}
	if merged.Meshes[0].MaterialIndex != 0 || merged.Meshes[1].MaterialIndex != 1 {
		t.Errorf("material order: got %d,%d, want 0,1",
			merged.Meshes[0].MaterialIndex, merged.Meshes[1].MaterialIndex)
	}
	if merged.Meshes[0].VertexCount != 6 || merged.Meshes[1].VertexCount != 3 {
		t.Errorf("group sizes: got %d,%d, want 6,3",
			merged.Meshes[0].VertexCount, merged.Meshes[1].VertexCount)
	}
}

func TestMergeVariantMismatchGoesUnbatched(t *testing.T) {
	b := NewModelBatcher()
	textured := triangleModel("textured", [3]float32{}, true, false)
	colored := triangleModel("colored", [3]float32{}, false, true)

	merged, unbatched, err := b.Merge([]BatchChunk{
		{Model: textured, MaterialIndex: 0},
		{Model: colored, MaterialIndex: 0},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(merged.Meshes) != 1 || merged.Meshes[0].SemanticSet != SemanticSetTextured {
		t.Fatalf("expected a single textured mesh, got %d meshes", len(merged.Meshes))
	}
	if len(unbatched) != 1 || unbatched[0].Model != colored {
		t.Fatalf("mismatched variant chunk should be surfaced as unbatched")
	}
}

func TestMergeIneligibleModelGoesUnbatched(t *testing.T) {
	b := NewModelBatcher()
	skinned := model.NewModel(model.WithName("skinned"), model.WithSkinned(true))

	merged, unbatched, err := b.Merge([]BatchChunk{
		{Model: skinned, MaterialIndex: 0},
		{Model: triangleModel("ok", [3]float32{}, true, false), MaterialIndex: 0},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(merged.Meshes) != 1 || merged.Meshes[0].VertexCount != 3 {
		t.Fatal("eligible chunk should still merge")
	}
	if len(unbatched) != 1 || unbatched[0].Model != skinned {
		t.Fatal("ineligible chunk should be surfaced as unbatched")
	}
}

func TestMergeEmptyInput(t *testing.T) {
	b := NewModelBatcher()
	merged, unbatched, err := b.Merge(nil)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(merged.Meshes) != 0 || unbatched != nil {
		t.Error("empty input should produce empty output")
	}
}

func TestMergeModelsMismatchedInput(t *testing.T) {
	b := NewModelBatcher()
	models := []model.Model{triangleModel("a", [3]float32{}, true, false)}
	_, _, err := b.MergeModels(models, make([][]float32, 2), nil, nil)
	if !errors.Is(err, ErrMismatchedInput) {
		t.Errorf("transforms: got %v, want ErrMismatchedInput", err)
	}
	_, _, err = b.MergeModels(models, nil, make([][2]float32, 3), nil)
	if !errors.Is(err, ErrMismatchedInput) {
		t.Errorf("uv scales: got %v, want ErrMismatchedInput", err)
	}
	_, _, err = b.MergeModels(models, nil, nil, make([][2]float32, 3))
	if !errors.Is(err, ErrMismatchedInput) {
		t.Errorf("uv offsets: got %v, want ErrMismatchedInput", err)
	}
}

func TestMergeModelsNilTransforms(t *testing.T) {
	b := NewModelBatcher()
	models := []model.Model{
		triangleModel("a", [3]float32{}, true, false),
		triangleModel("c", [3]float32{1, 0, 0}, true, false),
	}
	merged, unbatched, err := b.MergeModels(models, nil, nil, nil)
	if err != nil || len(unbatched) != 0 {
		t.Fatalf("merge failed: %v, unbatched %d", err, len(unbatched))
	}
	// No render materials on either model means one shared group.
	if len(merged.Meshes) != 1 || merged.Meshes[0].VertexCount != 6 {
		t.Fatalf("expected one merged mesh of 6 vertices")
	}
}

func TestMergeModelsUVRemap(t *testing.T) {
	b := NewModelBatcher()
	models := []model.Model{triangleModel("a", [3]float32{}, true, false)}
	merged, _, err := b.MergeModels(models, nil,
		[][2]float32{{0.5, 0.5}}, [][2]float32{{0.25, 0.25}})
	if err != nil || len(merged.Meshes) != 1 {
		t.Fatalf("merge failed: %v", err)
	}

	mesh := merged.Meshes[0]
	md := ExtractMeshData(mesh.VertexData, mesh.Declaration, mesh.VertexStride, 0)
	// Base UVs (0,0), (1,0), (0,1) remapped into the atlas quarter.
	want := [][2]float32{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}}
	for i := range want {
		if md.TexCoords[i] != want[i] {
			t.Errorf("uv %d: got %v, want %v", i, md.TexCoords[i], want[i])
		}
	}
}

func TestModelOKForBatching(t *testing.T) {
	ok := triangleModel("ok", [3]float32{}, true, false)
	if !ModelOKForBatching(ok) {
		t.Error("well-formed static model should be batchable")
	}
	if ModelOKForBatching(nil) {
		t.Error("nil model must not be batchable")
	}
	if ModelOKForBatching(model.NewModel(model.WithName("empty"))) {
		t.Error("model without geometry must not be batchable")
	}

	md := triangleMesh([3]float32{}, true, false)
	decl := declarationFor(SemanticSetTextured)
	skinned := model.NewModel(
		model.WithName("skinned"),
		model.WithSkinned(true),
		model.WithVertexData(PackMeshData(md, decl, model.GPUVertexStride)),
		model.WithIndexData([]byte{0, 0, 0, 0}),
		model.WithVertexLayout(decl, model.GPUVertexStride),
	)
	if ModelOKForBatching(skinned) {
		t.Error("skinned model must not be batchable")
	}

	strips := model.NewModel(
		model.WithVertexData(PackMeshData(md, decl, model.GPUVertexStride)),
		model.WithIndexData([]byte{0, 0, 0, 0}),
		model.WithVertexLayout(decl, model.GPUVertexStride),
		model.WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
	)
	if ModelOKForBatching(strips) {
		t.Error("non-triangle-list topology must not be batchable")
	}
}

func TestMergedMeshToModel(t *testing.T) {
	b := NewModelBatcher()
	merged, _, err := b.Merge([]BatchChunk{
		{Model: triangleModel("a", [3]float32{}, true, false), MaterialIndex: 0},
	})
	if err != nil || len(merged.Meshes) != 1 {
		t.Fatalf("merge failed: %v", err)
	}

	m := merged.Meshes[0].ToModel("merged")
	if m.Name() != "merged" {
		t.Errorf("name: got %q", m.Name())
	}
	if !ModelOKForBatching(m) {
		t.Error("merged model should itself be batchable")
	}
	if m.IndexCount() != 3 {
		t.Errorf("index count: got %d, want 3", m.IndexCount())
	}
}

func TestBoundsRadiusFurthestCorner(t *testing.T) {
	got := boundsRadius([3]float32{-1, -2, -3}, [3]float32{4, 1, 2})
	want := float32(math.Sqrt(16 + 4 + 9))
	if got < want-1e-5 || got > want+1e-5 {
		t.Errorf("radius: got %v, want %v", got, want)
	}

	// An elongated box must not be inflated toward the cube bound.
	got = boundsRadius([3]float32{-10, 0, 0}, [3]float32{10, 1, 1})
	want = float32(math.Sqrt(100 + 1 + 1))
	if got < want-1e-5 || got > want+1e-5 {
		t.Errorf("elongated radius: got %v, want %v", got, want)
	}
}

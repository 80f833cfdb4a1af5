package batch

import (
	"testing"

	"github.com/embergfx/ember/engine/game_object"
	"github.com/embergfx/ember/engine/light"
	"github.com/embergfx/ember/engine/model"
)

func containsObject(objs []game_object.GameObject, target game_object.GameObject) bool {
	for _, o := range objs {
		if o == target {
			return true
		}
	}
	return false
}

func TestBatchChildrenMergesStaticSubtree(t *testing.T) {
	root := game_object.NewGameObject()
	a := game_object.NewGameObject(
		game_object.WithModel(triangleModel("a", [3]float32{}, true, false)),
		game_object.WithStatic(true),
		game_object.WithParent(root),
	)
	c := game_object.NewGameObject(
		game_object.WithModel(triangleModel("c", [3]float32{}, true, false)),
		game_object.WithStatic(true),
		game_object.WithLocalMatrix(translation(2, 0, 0)),
		game_object.WithParent(root),
	)
	mobile := game_object.NewGameObject(
		game_object.WithModel(triangleModel("mobile", [3]float32{}, true, false)),
		game_object.WithParent(root),
	)

	merged, skipped, err := BatchChildren(root, NewModelBatcher())
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("merged objects: got %d, want 1", len(merged))
	}
	if !containsObject(skipped, mobile) {
		t.Error("non-static child should be reported as skipped")
	}

	// Contributors are detached; the mobile child and the merged object remain.
	children := root.Children()
	if containsObject(children, a) || containsObject(children, c) {
		t.Error("contributing children should be detached from the root")
	}
	if !containsObject(children, mobile) {
		t.Error("skipped child should stay attached")
	}
	if !containsObject(children, merged[0]) {
		t.Error("merged object should be parented under the root")
	}
	if !merged[0].Static() {
		t.Error("merged object should be static")
	}

	md := ExtractModelMeshData(merged[0].Model())
	if md == nil || md.VertexCount() != 6 {
		t.Fatalf("merged geometry: got %v, want 6 vertices", md)
	}
	if md.Positions[3] != [3]float32{2, 0, 0} {
		t.Errorf("translated child vertex: got %v, want (2,0,0)", md.Positions[3])
	}
}

func TestBatchChildrenBakesIntoRootLocalSpace(t *testing.T) {
	root := game_object.NewGameObject(
		game_object.WithLocalMatrix(translation(10, 0, 0)),
	)
	game_object.NewGameObject(
		game_object.WithModel(triangleModel("tri", [3]float32{}, true, false)),
		game_object.WithStatic(true),
		game_object.WithLocalMatrix(translation(2, 0, 0)),
		game_object.WithParent(root),
	)

	merged, _, err := BatchChildren(root, NewModelBatcher())
	if err != nil || len(merged) != 1 {
		t.Fatalf("batch failed: %v, merged %d", err, len(merged))
	}

	// The child's world offset is 12, but the baked geometry must carry only
	// the root-relative 2 so the root's own transform still applies on top.
	md := ExtractModelMeshData(merged[0].Model())
	if md.Positions[0] != [3]float32{2, 0, 0} {
		t.Errorf("baked position: got %v, want (2,0,0)", md.Positions[0])
	}
	local := merged[0].LocalMatrix()
	if local[12] != 0 || local[13] != 0 || local[14] != 0 {
		t.Errorf("merged object should have an identity local transform, got translation (%v,%v,%v)",
			local[12], local[13], local[14])
	}
}

func TestBatchChildrenGathersNestedDescendants(t *testing.T) {
	root := game_object.NewGameObject()
	group := game_object.NewGameObject(
		game_object.WithLocalMatrix(translation(5, 0, 0)),
		game_object.WithParent(root),
	)
	leaf := game_object.NewGameObject(
		game_object.WithModel(triangleModel("leaf", [3]float32{}, true, false)),
		game_object.WithStatic(true),
		game_object.WithParent(group),
	)

	merged, skipped, err := BatchChildren(root, NewModelBatcher())
	if err != nil || len(merged) != 1 {
		t.Fatalf("batch failed: %v, merged %d", err, len(merged))
	}
	// The model-less group node is not geometry and not an error.
	if skipped != nil {
		t.Errorf("unexpected skipped objects: %d", len(skipped))
	}
	if containsObject(group.Children(), leaf) {
		t.Error("nested contributor should be detached from its parent")
	}

	md := ExtractModelMeshData(merged[0].Model())
	if md.Positions[0] != [3]float32{5, 0, 0} {
		t.Errorf("nested bake should include the group transform, got %v", md.Positions[0])
	}
}

func TestBatchChildrenRescuesSkippedDescendants(t *testing.T) {
	root := game_object.NewGameObject()
	pillar := game_object.NewGameObject(
		game_object.WithModel(triangleModel("pillar", [3]float32{}, true, false)),
		game_object.WithStatic(true),
		game_object.WithLocalMatrix(translation(4, 0, 0)),
		game_object.WithParent(root),
	)
	lantern := game_object.NewGameObject(
		game_object.WithModel(triangleModel("lantern", [3]float32{}, true, false)),
		game_object.WithLocalMatrix(translation(0, 2, 0)),
		game_object.WithParent(pillar),
	)

	merged, skipped, err := BatchChildren(root, NewModelBatcher())
	if err != nil || len(merged) != 1 {
		t.Fatalf("batch failed: %v, merged %d", err, len(merged))
	}
	if !containsObject(skipped, lantern) {
		t.Error("mobile descendant should be reported as skipped")
	}

	// The pillar merged and left the tree, but the lantern beneath it must not
	// leave with it: it is reparented under the root with its world placement
	// rewritten into a root-relative local matrix.
	if containsObject(root.Children(), pillar) {
		t.Error("contributing parent should be detached")
	}
	if lantern.Parent() != root {
		t.Fatal("skipped descendant should be reparented under the root")
	}
	local := lantern.LocalMatrix()
	if local[12] != 4 || local[13] != 2 || local[14] != 0 {
		t.Errorf("rescued local translation: got (%v,%v,%v), want (4,2,0)",
			local[12], local[13], local[14])
	}
}

func TestBatchChildrenKeepsLightCarriers(t *testing.T) {
	root := game_object.NewGameObject()
	group := game_object.NewGameObject(
		game_object.WithLocalMatrix(translation(3, 0, 0)),
		game_object.WithParent(root),
	)
	lamp := game_object.NewGameObject(
		game_object.WithModel(triangleModel("lamp", [3]float32{}, true, false)),
		game_object.WithStatic(true),
		game_object.WithLight(light.NewLight(light.LightTypePoint)),
		game_object.WithParent(group),
	)

	merged, _, err := BatchChildren(root, NewModelBatcher())
	if err != nil || len(merged) != 1 {
		t.Fatalf("batch failed: %v, merged %d", err, len(merged))
	}

	// The lamp's geometry merged, so the node survives only as a light anchor
	// directly under the root, holding its old world placement.
	if lamp.Model() != nil {
		t.Error("light carrier should have its model stripped")
	}
	if lamp.Light() == nil {
		t.Error("light carrier should keep its light")
	}
	if lamp.Parent() != root {
		t.Error("light carrier should be reparented under the root")
	}
	local := lamp.LocalMatrix()
	if local[12] != 3 {
		t.Errorf("light carrier local translation: got %v, want 3", local[12])
	}
}

func TestBatchChildrenSkipsIneligibleModels(t *testing.T) {
	md := triangleMesh([3]float32{}, true, false)
	decl := declarationFor(SemanticSetTextured)
	skinned := model.NewModel(
		model.WithName("skinned"),
		model.WithSkinned(true),
		model.WithVertexData(PackMeshData(md, decl, model.GPUVertexStride)),
		model.WithIndexData([]byte{0, 0, 0, 0}),
		model.WithVertexLayout(decl, model.GPUVertexStride),
	)
	root := game_object.NewGameObject()
	bad := game_object.NewGameObject(
		game_object.WithModel(skinned),
		game_object.WithStatic(true),
		game_object.WithParent(root),
	)

	merged, skipped, err := BatchChildren(root, NewModelBatcher())
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(merged) != 0 {
		t.Errorf("nothing should merge, got %d objects", len(merged))
	}
	if !containsObject(skipped, bad) {
		t.Error("ineligible child should be reported as skipped")
	}
	if !containsObject(root.Children(), bad) {
		t.Error("skipped child should stay attached")
	}
}

func TestBatchChildrenNilInputs(t *testing.T) {
	merged, skipped, err := BatchChildren(nil, NewModelBatcher())
	if merged != nil || skipped != nil || err != nil {
		t.Error("nil root should be a no-op")
	}
	merged, skipped, err = BatchChildren(game_object.NewGameObject(), nil)
	if merged != nil || skipped != nil || err != nil {
		t.Error("nil batcher should be a no-op")
	}
}

func TestMergedMeshModels(t *testing.T) {
	b := NewModelBatcher()
	merged, _, err := b.Merge([]BatchChunk{
		{Model: triangleModel("a", [3]float32{}, true, false), MaterialIndex: 0},
		{Model: triangleModel("c", [3]float32{}, true, false), MaterialIndex: 1},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	models := MergedMeshModels(merged, "city")
	if len(models) != 2 {
		t.Fatalf("model count: got %d, want 2", len(models))
	}
	if models[0].Name() != "city_0" || models[1].Name() != "city_1" {
		t.Errorf("names: got %q, %q", models[0].Name(), models[1].Name())
	}
	if MergedMeshModels(nil, "x") != nil {
		t.Error("nil input should yield nil")
	}
}

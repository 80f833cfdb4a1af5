package batch

import (
	"fmt"

	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/game_object"
	"github.com/embergfx/ember/engine/model"
	"github.com/embergfx/ember/engine/renderer/material"
)

// BatchChildren collapses the static geometry beneath a root game object into
// merged child objects, one per distinct material. Geometry is baked into the
// root's local space, so the root keeps its own transform and the merged
// children sit under it with identity local matrices.
//
// Descendants that contributed geometry are detached from the tree. A
// contributed descendant carrying a light is kept instead, reparented directly
// under the root with its model stripped, so the light keeps its world
// placement without the geometry drawing twice. Descendants that are mobile,
// carry an ineligible or multi-material model, or fail variant matching stay
// attached untouched and are reported in the skipped list.
//
// Parameters:
//   - root: the subtree root
//   - batcher: the batcher performing the merge
//
// Returns:
//   - []game_object.GameObject: the merged child objects added under root
//   - []game_object.GameObject: descendants left unbatched, or nil
//   - error: an error if the merge could not run
func BatchChildren(root game_object.GameObject, batcher ModelBatcher) ([]game_object.GameObject, []game_object.GameObject, error) {
	if root == nil || batcher == nil {
		return nil, nil, nil
	}

	// Bake into root-local space: pre-multiply each descendant's world matrix
	// by the inverse of the root's. A singular root transform falls back to
	// world space baking.
	rootWorld := root.WorldMatrix()
	invRoot := make([]float32, 16)
	if !common.Invert4(invRoot, rootWorld[:]) {
		common.Identity(invRoot)
	}

	var (
		chunks  []BatchChunk
		skipped []game_object.GameObject
	)
	groupByMaterial := make(map[material.Material]int)
	groupMaterial := make(map[int]material.Material)

	var gather func(node game_object.GameObject)
	gather = func(node game_object.GameObject) {
		for _, child := range node.Children() {
			gather(child)
		}
		if node == root {
			return
		}
		mdl := node.Model()
		if mdl == nil {
			return
		}
		if !node.Static() || !ModelOKForBatching(mdl) || len(mdl.RenderMaterials()) > 1 {
			skipped = append(skipped, node)
			return
		}

		var mat material.Material
		if mats := mdl.RenderMaterials(); len(mats) == 1 {
			mat = mats[0]
		}
		idx, ok := groupByMaterial[mat]
		if !ok {
			idx = len(groupByMaterial)
			groupByMaterial[mat] = idx
			groupMaterial[idx] = mat
		}

		world := node.WorldMatrix()
		rel := make([]float32, 16)
		common.Mul4(rel, invRoot, world[:])
		chunks = append(chunks, BatchChunk{
			Object:        node,
			Transform:     rel,
			Model:         mdl,
			MaterialIndex: idx,
		})
	}
	gather(root)

	if len(chunks) == 0 {
		return nil, skipped, nil
	}

	mergedModel, unbatched, err := batcher.Merge(chunks)
	if err != nil {
		return nil, nil, err
	}

	rejected := make(map[game_object.GameObject]bool, len(unbatched))
	for _, c := range unbatched {
		if c.Object != nil {
			rejected[c.Object] = true
			skipped = append(skipped, c.Object)
		}
	}

	// Detach every contributing descendant. Light carriers survive as bare
	// transform nodes directly under the root. Chunks were gathered child
	// first, so by the time a contributor is detached its merged descendants
	// are already gone and whatever children remain (skipped nodes and their
	// subtrees) must be rescued: they are reparented under the root with their
	// local matrix rewritten to the root-relative one, keeping their world
	// placement.
	for _, c := range chunks {
		node := c.Object
		if node == nil || rejected[node] {
			continue
		}
		if node.Light() != nil {
			// The carrier stays in the tree, so its children follow it.
			if parent := node.Parent(); parent != nil {
				parent.RemoveChild(node)
			}
			node.SetModel(nil)
			var local [16]float32
			copy(local[:], c.Transform)
			node.SetLocalMatrix(local)
			root.AddChild(node)
			continue
		}
		survivors := append([]game_object.GameObject(nil), node.Children()...)
		for _, child := range survivors {
			world := child.WorldMatrix()
			rel := make([]float32, 16)
			common.Mul4(rel, invRoot, world[:])
			node.RemoveChild(child)
			var local [16]float32
			copy(local[:], rel)
			child.SetLocalMatrix(local)
			root.AddChild(child)
		}
		if parent := node.Parent(); parent != nil {
			parent.RemoveChild(node)
		}
	}

	baseName := "batched"
	if root.Model() != nil {
		baseName = root.Model().Name() + "_batched"
	}

	var mergedObjects []game_object.GameObject
	for i := range mergedModel.Meshes {
		mesh := &mergedModel.Meshes[i]
		mdl := mesh.ToModel(fmt.Sprintf("%s_%d", baseName, mesh.MaterialIndex))
		if mat := groupMaterial[mesh.MaterialIndex]; mat != nil {
			mdl.SetRenderMaterials([]material.Material{mat})
		}
		obj := game_object.NewGameObject(
			game_object.WithModel(mdl),
			game_object.WithStatic(true),
			game_object.WithParent(root),
		)
		mergedObjects = append(mergedObjects, obj)
	}
	if len(skipped) == 0 {
		skipped = nil
	}
	return mergedObjects, skipped, nil
}

// MergedMeshModels is a convenience for callers that want the merged output as
// plain models rather than scene objects.
//
// Parameters:
//   - merged: the merge output
//   - baseName: the name prefix for each produced model
//
// Returns:
//   - []model.Model: one model per merged mesh
func MergedMeshModels(merged *MergedModel, baseName string) []model.Model {
	if merged == nil || len(merged.Meshes) == 0 {
		return nil
	}
	out := make([]model.Model, 0, len(merged.Meshes))
	for i := range merged.Meshes {
		mesh := &merged.Meshes[i]
		out = append(out, mesh.ToModel(fmt.Sprintf("%s_%d", baseName, mesh.MaterialIndex)))
	}
	return out
}

package batch

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/model"
	"github.com/embergfx/ember/engine/renderer/material"
)

// ModelBatcher merges the geometry of many static models into as few meshes as
// possible, one per distinct material, with every vertex pre-transformed into
// world space. The merged output draws in a single call per material instead of
// one per source mesh. Source models are read through a MeshDataCache so the
// same model contributes to repeated merges without re-decoding.
type ModelBatcher interface {
	// Merge combines the given chunks into merged meshes grouped by material
	// index. Chunks whose model is ineligible, or whose vertex variant does not
	// match the variant their material group committed to, are returned in the
	// unbatched list instead of being silently dropped.
	//
	// Parameters:
	//   - chunks: the merge requests
	//
	// Returns:
	//   - *MergedModel: the merged output, with zero meshes when nothing merged
	//   - []BatchChunk: the chunks that could not be merged, or nil
	//   - error: an error if the merge could not run
	Merge(chunks []BatchChunk) (*MergedModel, []BatchChunk, error)

	// MergeModels is the list-entry form of Merge: parallel slices of models,
	// world transforms, and optional UV remaps. Each model must carry at most
	// one render material; material groups are formed by material identity in
	// encounter order. The uvScales and uvOffsets slices may be nil.
	//
	// Parameters:
	//   - models: the source models
	//   - transforms: one world matrix per model, nil entries meaning identity
	//   - uvScales: one UV scale per model, or nil for no scaling
	//   - uvOffsets: one UV offset per model, or nil for no offset
	//
	// Returns:
	//   - *MergedModel: the merged output
	//   - []BatchChunk: the chunks that could not be merged, or nil
	//   - error: ErrMismatchedInput when the slices disagree in length, or
	//     ErrMultiMaterialModel when a model carries several materials
	MergeModels(models []model.Model, transforms [][]float32, uvScales, uvOffsets [][2]float32) (*MergedModel, []BatchChunk, error)

	// Cache returns the mesh data cache backing this batcher.
	//
	// Returns:
	//   - MeshDataCache: the backing cache
	Cache() MeshDataCache
}

var _ ModelBatcher = &modelBatcher{}

type modelBatcher struct {
	cache   MeshDataCache
	pool    worker.DynamicWorkerPool
	workers int
}

// ModelOKForBatching reports whether a model's geometry can be merged: it must
// carry raw vertex and index data with a declared layout, use triangle list
// topology on a single interleaved stream, and not be skinned.
//
// Parameters:
//   - m: the model to check
//
// Returns:
//   - bool: true when the model is eligible
func ModelOKForBatching(m model.Model) bool {
	if m == nil || m.Skinned() {
		return false
	}
	if len(m.VertexData()) == 0 || len(m.IndexData()) == 0 {
		return false
	}
	if len(m.VertexDeclaration()) == 0 || m.VertexStride() <= 0 {
		return false
	}
	if m.Topology() != wgpu.PrimitiveTopologyTriangleList {
		return false
	}
	return m.VertexStreamCount() == 1
}

// Cache implements ModelBatcher.
func (b *modelBatcher) Cache() MeshDataCache {
	return b.cache
}

// MergeModels implements ModelBatcher.
func (b *modelBatcher) MergeModels(models []model.Model, transforms [][]float32, uvScales, uvOffsets [][2]float32) (*MergedModel, []BatchChunk, error) {
	if transforms != nil && len(transforms) != len(models) {
		return nil, nil, fmt.Errorf("%w: %d models, %d transforms", ErrMismatchedInput, len(models), len(transforms))
	}
	if uvScales != nil && len(uvScales) != len(models) {
		return nil, nil, fmt.Errorf("%w: %d models, %d uv scales", ErrMismatchedInput, len(models), len(uvScales))
	}
	if uvOffsets != nil && len(uvOffsets) != len(models) {
		return nil, nil, fmt.Errorf("%w: %d models, %d uv offsets", ErrMismatchedInput, len(models), len(uvOffsets))
	}

	// Material identity decides group membership; groups are numbered in
	// encounter order so output mesh order is deterministic.
	groupByMaterial := make(map[material.Material]int)
	chunks := make([]BatchChunk, 0, len(models))
	for i, m := range models {
		if m == nil {
			continue
		}
		mats := m.RenderMaterials()
		if len(mats) > 1 {
			return nil, nil, fmt.Errorf("%w: model %q has %d materials", ErrMultiMaterialModel, m.Name(), len(mats))
		}
		var mat material.Material
		if len(mats) == 1 {
			mat = mats[0]
		}
		idx, ok := groupByMaterial[mat]
		if !ok {
			idx = len(groupByMaterial)
			groupByMaterial[mat] = idx
		}
		chunk := BatchChunk{Model: m, MaterialIndex: idx}
		if transforms != nil {
			chunk.Transform = transforms[i]
		}
		if uvScales != nil {
			chunk.UVScale = uvScales[i]
		}
		if uvOffsets != nil {
			chunk.UVOffset = uvOffsets[i]
		}
		chunks = append(chunks, chunk)
	}
	return b.Merge(chunks)
}

// transformedChunk is one chunk's geometry after world transformation, ready
// for sequential assembly into its material group's buffers.
type transformedChunk struct {
	chunk BatchChunk
	data  *MeshData
	bmin  [3]float32
	bmax  [3]float32
}

// Merge implements ModelBatcher.
func (b *modelBatcher) Merge(chunks []BatchChunk) (*MergedModel, []BatchChunk, error) {
	merged := &MergedModel{}
	merged.BoundingMin, merged.BoundingMax = emptyBounds()
	if len(chunks) == 0 {
		return merged, nil, nil
	}

	var unbatched []BatchChunk

	// Phase 1: resolve geometry and commit each material group to the vertex
	// variant of its first contributing chunk.
	type pending struct {
		chunk BatchChunk
		data  *MeshData
	}
	groupVariant := make(map[int]VertexSemanticSet)
	groupOrder := []int{}
	eligible := make([]pending, 0, len(chunks))
	for _, c := range chunks {
		if !ModelOKForBatching(c.Model) {
			unbatched = append(unbatched, c)
			continue
		}
		md := b.cache.Get(c.Model)
		if md == nil || md.VertexCount() == 0 || len(md.Indices) == 0 {
			unbatched = append(unbatched, c)
			continue
		}
		variant, committed := groupVariant[c.MaterialIndex]
		if !committed {
			variant = md.SemanticSet()
			groupVariant[c.MaterialIndex] = variant
			groupOrder = append(groupOrder, c.MaterialIndex)
		}
		if md.SemanticSet() != variant {
			unbatched = append(unbatched, c)
			continue
		}
		eligible = append(eligible, pending{chunk: c, data: md})
	}
	if len(eligible) == 0 {
		return merged, unbatched, nil
	}

	// Phase 2: transform every chunk's geometry into world space, fanned out
	// across the worker pool. Each task writes only its own slot.
	transformed := make([]transformedChunk, len(eligible))
	var wg sync.WaitGroup
	for i, p := range eligible {
		wg.Add(1)
		iCap, pCap := i, p
		b.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				transformed[iCap] = transformChunk(pCap.chunk, pCap.data)
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 3: sequential assembly. Concatenate each group's vertices in chunk
	// order, offsetting indices by the running vertex base.
	type group struct {
		vertexData []byte
		indices    []uint32
		vertCount  int
		bmin, bmax [3]float32
	}
	groups := make(map[int]*group, len(groupOrder))
	for _, tc := range transformed {
		mi := tc.chunk.MaterialIndex
		g, ok := groups[mi]
		if !ok {
			g = &group{}
			g.bmin, g.bmax = emptyBounds()
			groups[mi] = g
		}
		decl := declarationFor(groupVariant[mi])
		packed := PackMeshData(tc.data, decl, model.GPUVertexStride)
		base := uint32(g.vertCount)
		g.vertexData = append(g.vertexData, packed...)
		for _, idx := range tc.data.Indices {
			g.indices = append(g.indices, base+idx)
		}
		g.vertCount += tc.data.VertexCount()
		unionBounds(&g.bmin, &g.bmax, tc.bmin, tc.bmax)
	}

	for _, mi := range groupOrder {
		g := groups[mi]
		if g == nil || g.vertCount == 0 {
			continue
		}
		variant := groupVariant[mi]
		merged.Meshes = append(merged.Meshes, MergedMesh{
			MaterialIndex: mi,
			SemanticSet:   variant,
			VertexData:    g.vertexData,
			Declaration:   declarationFor(variant),
			VertexStride:  model.GPUVertexStride,
			VertexCount:   g.vertCount,
			IndexData:     common.SliceToBytes(g.indices),
			IndexCount:    len(g.indices),
			BoundingMin:   g.bmin,
			BoundingMax:   g.bmax,
		})
		unionBounds(&merged.BoundingMin, &merged.BoundingMax, g.bmin, g.bmax)
	}
	return merged, unbatched, nil
}

// declarationFor returns the subset of the canonical GPUVertex declaration a
// variant carries. Both variants pack at the full 64-byte stride so merged
// meshes draw through the standard mesh pipeline unchanged.
func declarationFor(set VertexSemanticSet) []common.VertexElement {
	full := model.GPUVertexDeclaration()
	out := make([]common.VertexElement, 0, len(full))
	for _, el := range full {
		switch el.Semantic {
		case common.VertexSemanticTexCoord, common.VertexSemanticTangent:
			if set == SemanticSetTextured {
				out = append(out, el)
			}
		case common.VertexSemanticColor:
			if set == SemanticSetColored {
				out = append(out, el)
			}
		default:
			out = append(out, el)
		}
	}
	return out
}

// transformChunk produces a world-space copy of a chunk's geometry. Positions
// take the full affine transform; normals and tangent directions take the
// rotation with scale removed, re-normalized. The UV remap is applied here so
// assembly is a plain copy.
func transformChunk(c BatchChunk, md *MeshData) transformedChunk {
	m := chunkTransform(c)
	identity := common.IsIdentity(m)

	out := &MeshData{
		Positions: make([][3]float32, len(md.Positions)),
		Indices:   md.Indices,
	}
	var rot []float32
	if !identity {
		rot = make([]float32, 16)
		common.RotationOnly(rot, m)
	}

	bmin, bmax := emptyBounds()
	for i, p := range md.Positions {
		if identity {
			out.Positions[i] = p
		} else {
			x, y, z := common.TransformPoint(m, p[0], p[1], p[2])
			out.Positions[i] = [3]float32{x, y, z}
		}
		expandBounds(&bmin, &bmax, out.Positions[i][0], out.Positions[i][1], out.Positions[i][2])
	}
	if md.Normals != nil {
		if identity {
			out.Normals = md.Normals
		} else {
			out.Normals = make([][3]float32, len(md.Normals))
			for i, n := range md.Normals {
				x, y, z := common.TransformDirection(rot, n[0], n[1], n[2])
				out.Normals[i] = common.Normalize3(x, y, z)
			}
		}
	}
	if md.Tangents != nil {
		if identity {
			out.Tangents = md.Tangents
		} else {
			out.Tangents = make([][4]float32, len(md.Tangents))
			for i, t := range md.Tangents {
				x, y, z := common.TransformDirection(rot, t[0], t[1], t[2])
				n := common.Normalize3(x, y, z)
				out.Tangents[i] = [4]float32{n[0], n[1], n[2], t[3]}
			}
		}
	}
	out.Colors = md.Colors
	if md.TexCoords != nil {
		scale := c.UVScale
		if scale == ([2]float32{}) {
			scale = [2]float32{1, 1}
		}
		if scale == ([2]float32{1, 1}) && c.UVOffset == ([2]float32{}) {
			out.TexCoords = md.TexCoords
		} else {
			out.TexCoords = make([][2]float32, len(md.TexCoords))
			for i, uv := range md.TexCoords {
				out.TexCoords[i] = [2]float32{
					uv[0]*scale[0] + c.UVOffset[0],
					uv[1]*scale[1] + c.UVOffset[1],
				}
			}
		}
	}
	return transformedChunk{chunk: c, data: out, bmin: bmin, bmax: bmax}
}

// chunkTransform resolves a chunk's bake matrix: the explicit transform when
// set, the owning object's world matrix otherwise, identity as the fallback.
// Explicit transforms win so callers can bake into a space other than world
// while still tagging the chunk with its owner.
func chunkTransform(c BatchChunk) []float32 {
	if len(c.Transform) == 16 {
		return c.Transform
	}
	if c.Object != nil {
		w := c.Object.WorldMatrix()
		return w[:]
	}
	m := make([]float32, 16)
	common.Identity(m)
	return m
}

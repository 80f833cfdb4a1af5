// Package batch implements CPU-side mesh batching: a static model batcher that
// collapses many meshes, materials, and game objects into minimal-draw-call
// merged geometry, and a dynamic instance pool that emulates GPU instancing on
// the CPU by maintaining many independently transformable copies of one base
// mesh inside a single shared vertex buffer. It needs no compute shaders, so
// it works on hosts without a GPU instancing path.
package batch

import (
	"errors"
	"math"

	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/game_object"
	"github.com/embergfx/ember/engine/model"
	"github.com/embergfx/ember/engine/renderer/bind_group_provider"
)

var (
	// ErrSlotOutOfRange is returned by instance pool accessors given a slot
	// index outside [0, capacity).
	ErrSlotOutOfRange = errors.New("batch: slot index out of range")

	// ErrNoFreeSlot is returned by Allocate when the pool is saturated.
	// Non-fatal: the caller decides whether to grow, drop, or defer.
	ErrNoFreeSlot = errors.New("batch: no free slot available")

	// ErrMismatchedInput is returned when the list arguments of a batch call
	// have inconsistent lengths. Rejected before any work begins.
	ErrMismatchedInput = errors.New("batch: mismatched input list lengths")

	// ErrMultiMaterialModel is returned when a model with more than one render
	// material is passed to a call that requires exactly one.
	ErrMultiMaterialModel = errors.New("batch: model has more than one material")

	// ErrStaleHandle is returned by instance handle methods after the slot the
	// handle points at has been freed or reallocated.
	ErrStaleHandle = errors.New("batch: instance handle is stale")
)

// VertexSemanticSet identifies which vertex variant a merged mesh uses. A merge
// group commits to the variant of its first contributing chunk; chunks of the
// other variant within the same material group are surfaced as unbatched.
type VertexSemanticSet int

const (
	// SemanticSetTextured is the {Position, Normal, TexCoord, Tangent} variant.
	SemanticSetTextured VertexSemanticSet = iota

	// SemanticSetColored is the {Position, Normal, Color} variant.
	SemanticSetColored
)

// String returns the variant's name.
//
// Returns:
//   - string: "textured" or "colored"
func (s VertexSemanticSet) String() string {
	if s == SemanticSetColored {
		return "colored"
	}
	return "textured"
}

// MeshData holds a source mesh's geometry as typed parallel arrays, one per
// semantic family present in the source declaration. Positions and Indices are
// always populated; the remaining arrays are nil when the source buffer does
// not carry that semantic. Instances are immutable once inserted into a
// MeshDataCache.
type MeshData struct {
	// Positions are the vertex positions. Always present.
	Positions [][3]float32

	// Normals are the vertex normals, or nil if absent from the source.
	Normals [][3]float32

	// TexCoords are the UV coordinates, or nil if absent from the source.
	TexCoords [][2]float32

	// Colors are the per-vertex RGBA colors, or nil if absent from the source.
	Colors [][4]float32

	// Tangents are the tangent+handedness vectors, or nil if absent from the source.
	Tangents [][4]float32

	// Indices are the local, zero-based triangle indices.
	Indices []uint32
}

// VertexCount returns the number of vertices in the mesh data.
//
// Returns:
//   - int: the vertex count
func (m *MeshData) VertexCount() int {
	return len(m.Positions)
}

// SemanticSet returns the vertex variant this mesh data naturally produces:
// textured when UV coordinates are present, colored otherwise.
//
// Returns:
//   - VertexSemanticSet: the natural variant
func (m *MeshData) SemanticSet() VertexSemanticSet {
	if m.TexCoords != nil {
		return SemanticSetTextured
	}
	return SemanticSetColored
}

// BatchChunk is one ephemeral merge request: a source model plus either an
// owning game object (whose world matrix is used) or an explicit transform,
// a material index selecting the merge group, and an optional UV remap.
// Chunks are created and consumed within a single Merge call.
type BatchChunk struct {
	// Object is the owning game object, or nil when Transform is explicit.
	Object game_object.GameObject

	// Transform is an explicit bake matrix (column-major, 16 elements). When
	// set it takes precedence over the owning object's world matrix; when both
	// are absent the identity transform is used.
	Transform []float32

	// Model is the source geometry.
	Model model.Model

	// MaterialIndex selects which material group the chunk contributes to.
	MaterialIndex int

	// UVScale scales the source UV coordinates. Zero value means no scaling
	// is applied (treated as 1,1).
	UVScale [2]float32

	// UVOffset offsets the source UV coordinates after scaling.
	UVOffset [2]float32
}

// MergedMesh is one merged output mesh: all contributing geometry for a single
// material, packed into the engine's canonical GPUVertex layout with indices
// offset so every source mesh co-exists in the one buffer.
type MergedMesh struct {
	// MaterialIndex is the material group this mesh was merged for.
	MaterialIndex int

	// SemanticSet is the vertex variant the group committed to.
	SemanticSet VertexSemanticSet

	// VertexData is the packed vertex buffer (GPUVertex layout).
	VertexData []byte

	// Declaration describes which semantics of the packed layout carry data.
	Declaration []common.VertexElement

	// VertexStride is the byte size of one packed vertex.
	VertexStride int

	// VertexCount is the number of vertices in VertexData.
	VertexCount int

	// IndexData is the packed 32-bit index buffer.
	IndexData []byte

	// IndexCount is the number of indices in IndexData.
	IndexCount int

	// BoundingMin and BoundingMax enclose every transformed vertex.
	BoundingMin, BoundingMax [3]float32
}

// ToModel wraps the merged mesh in an engine Model consumable by the standard
// mesh draw path. GPU buffers are not created; callers init them through the
// renderer (Renderer.InitMeshBuffers) when one is available.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - model.Model: the merged mesh as an engine model
func (m *MergedMesh) ToModel(name string) model.Model {
	radius := boundsRadius(m.BoundingMin, m.BoundingMax)
	return model.NewModel(
		model.WithName(name),
		model.WithMeshProvider(bind_group_provider.NewBindGroupProvider(name+"_mesh")),
		model.WithVertexData(m.VertexData),
		model.WithIndexData(m.IndexData),
		model.WithIndexCount(m.IndexCount),
		model.WithVertexLayout(m.Declaration, m.VertexStride),
		model.WithBoundingBox(m.BoundingMin, m.BoundingMax),
		model.WithBoundingRadius(radius),
	)
}

// MergedModel is the output of a merge pass: one mesh per distinct material
// encountered, with the model-level bounding box as the union of the meshes'.
type MergedModel struct {
	// Meshes are the merged meshes in first-encountered material order.
	Meshes []MergedMesh

	// BoundingMin and BoundingMax enclose every mesh's bounding box.
	BoundingMin, BoundingMax [3]float32
}

// emptyBounds returns an inverted box that any expandBounds call will replace.
func emptyBounds() (bmin, bmax [3]float32) {
	bmin = [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	bmax = [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	return
}

// expandBounds grows a bounding box to include a point.
func expandBounds(bmin, bmax *[3]float32, x, y, z float32) {
	p := [3]float32{x, y, z}
	for j := 0; j < 3; j++ {
		if p[j] < bmin[j] {
			bmin[j] = p[j]
		}
		if p[j] > bmax[j] {
			bmax[j] = p[j]
		}
	}
}

// unionBounds grows box a to include box b.
func unionBounds(amin, amax *[3]float32, bmin, bmax [3]float32) {
	expandBounds(amin, amax, bmin[0], bmin[1], bmin[2])
	expandBounds(amin, amax, bmax[0], bmax[1], bmax[2])
}

// transformBounds returns the axis-aligned box enclosing the eight corners of
// the input box after transformation by a column-major 4x4 matrix.
func transformBounds(m []float32, bmin, bmax [3]float32) (omin, omax [3]float32) {
	omin, omax = emptyBounds()
	for i := 0; i < 8; i++ {
		c := [3]float32{bmin[0], bmin[1], bmin[2]}
		if i&1 != 0 {
			c[0] = bmax[0]
		}
		if i&2 != 0 {
			c[1] = bmax[1]
		}
		if i&4 != 0 {
			c[2] = bmax[2]
		}
		x, y, z := common.TransformPoint(m, c[0], c[1], c[2])
		expandBounds(&omin, &omax, x, y, z)
	}
	return
}

// boundsRadius returns the bounding sphere radius of a box, measured as the
// furthest corner distance from the origin (matching model.ComputeBoundingRadius).
func boundsRadius(bmin, bmax [3]float32) float32 {
	var sumSq float32
	for j := 0; j < 3; j++ {
		a := bmin[j] * bmin[j]
		if b := bmax[j] * bmax[j]; b > a {
			a = b
		}
		sumSq += a
	}
	return float32(math.Sqrt(float64(sumSq)))
}

package scene

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/batch"
	"github.com/embergfx/ember/engine/game_object"
	"github.com/embergfx/ember/engine/light"
	"github.com/embergfx/ember/engine/model"
	"github.com/embergfx/ember/engine/renderer/bind_group_provider"
)

// stubRenderer satisfies renderer.Renderer without touching a GPU. Vertex
// buffer writes fail with writeErr when set.
type stubRenderer struct {
	writeErr   error
	meshInits  int
	vertWrites int
}

func (s *stubRenderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	s.meshInits++
	provider.SetIndexCount(indexCount)
	return nil
}

func (s *stubRenderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return nil
}

func (s *stubRenderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	return nil
}

func (s *stubRenderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	return nil
}

func (s *stubRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {}

func (s *stubRenderer) StageBufferWrite(write bind_group_provider.BufferWrite) {}

func (s *stubRenderer) FlushBufferWrites() {}

func (s *stubRenderer) WriteVertexBuffer(provider bind_group_provider.BindGroupProvider, offset uint64, data []byte) error {
	s.vertWrites++
	return s.writeErr
}

func (s *stubRenderer) Release() {}

func triangleModel(name string) model.Model {
	md := &batch.MeshData{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		TexCoords: [][2]float32{{0, 0}, {1, 0}, {0, 1}},
		Indices:   []uint32{0, 1, 2},
	}
	decl := model.GPUVertexDeclaration()
	return model.NewModel(
		model.WithName(name),
		model.WithVertexData(batch.PackMeshData(md, decl, model.GPUVertexStride)),
		model.WithIndexData(common.SliceToBytes(md.Indices)),
		model.WithIndexCount(3),
		model.WithVertexLayout(decl, model.GPUVertexStride),
		model.WithBoundingBox([3]float32{0, 0, 0}, [3]float32{1, 1, 0}),
	)
}

func TestSceneAddAssignsIDsAndTracksLights(t *testing.T) {
	s := NewScene("test", nil, WithComputeWorkers(1))

	lit := game_object.NewGameObject(
		game_object.WithLight(light.NewLight(light.LightTypePoint)),
	)
	plain := game_object.NewGameObject()

	id1, err := s.Add(lit)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	id2, err := s.Add(plain)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Fatalf("ids not assigned uniquely: %d, %d", id1, id2)
	}
	if s.Count() != 2 {
		t.Errorf("count: got %d, want 2", s.Count())
	}
	if len(s.Lights()) != 1 {
		t.Fatalf("light count: got %d, want 1", len(s.Lights()))
	}

	s.Remove(id1)
	if s.Get(id1) != nil {
		t.Error("removed object still retrievable")
	}
	if len(s.Lights()) != 0 {
		t.Error("removing the carrier should unregister its light")
	}
}

func TestSceneEphemeralNotPersisted(t *testing.T) {
	s := NewScene("test", nil, WithComputeWorkers(1))

	obj := game_object.NewGameObject(game_object.WithEphemeral(true))
	id, err := s.Add(obj)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if id == 0 {
		t.Fatal("ephemeral object should still get an ID")
	}
	if s.Count() != 0 || s.Get(id) != nil {
		t.Error("ephemeral object must not enter the registry")
	}
}

func TestScenePrepareComputeSpinsObjectsAndSyncsLights(t *testing.T) {
	s := NewScene("test", nil, WithComputeWorkers(2))

	l := light.NewLight(light.LightTypePoint)
	obj := game_object.NewGameObject(
		game_object.WithEnabled(true),
		game_object.WithPosition(2, 3, 4),
		game_object.WithRotationSpeed(0, 1.5, 0),
		game_object.WithLight(l),
	)
	if _, err := s.Add(obj); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s.PrepareCompute(2.0)

	_, ry, _ := obj.Rotation()
	if ry < 3.0-1e-5 || ry > 3.0+1e-5 {
		t.Errorf("rotation y after spin: got %v, want 3.0", ry)
	}
	pos := l.Position()
	if pos != [3]float32{2, 3, 4} {
		t.Errorf("light position: got %v, want (2,3,4)", pos)
	}
}

func TestSceneDetachLight(t *testing.T) {
	s := NewScene("test", nil, WithComputeWorkers(1))

	l := light.NewLight(light.LightTypePoint)
	obj := game_object.NewGameObject(game_object.WithLight(l))
	if _, err := s.Add(obj); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	s.DetachLight(obj)
	if len(s.Lights()) != 0 {
		t.Error("detached light should leave the scene")
	}
	if obj.Light() != nil {
		t.Error("detached light should be cleared from the object")
	}
}

func TestSceneBatchStaticChildren(t *testing.T) {
	s := NewScene("test", nil, WithComputeWorkers(1))

	root := game_object.NewGameObject()
	for i := 0; i < 3; i++ {
		child := game_object.NewGameObject(
			game_object.WithModel(triangleModel("chunk")),
			game_object.WithStatic(true),
			game_object.WithPosition(float32(i), 0, 0),
		)
		root.AddChild(child)
	}

	merged, skipped, err := s.BatchStaticChildren(root, nil)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped: got %d, want 0", len(skipped))
	}
	if len(merged) != 1 {
		t.Fatalf("merged: got %d, want 1", len(merged))
	}
	if merged[0].Model().IndexCount() != 9 {
		t.Errorf("merged index count: got %d, want 9", merged[0].Model().IndexCount())
	}
}

func TestSceneInstancePoolRegistration(t *testing.T) {
	r := &stubRenderer{}
	s := NewScene("test", r, WithComputeWorkers(1))

	p := batch.NewInstancePool(
		batch.WithPoolModel(triangleModel("base")),
		batch.WithPoolCapacity(4),
		batch.WithPoolWorkers(1),
	)
	if err := s.AddInstancePool(p); err != nil {
		t.Fatalf("add pool failed: %v", err)
	}
	if r.meshInits != 1 {
		t.Errorf("mesh buffer init calls: got %d, want 1", r.meshInits)
	}
	if len(s.InstancePools()) != 1 {
		t.Fatal("pool not registered")
	}

	s.RemoveInstancePool(p)
	if len(s.InstancePools()) != 0 {
		t.Error("pool not removed")
	}
}

func TestScenePrepareComputeLogsUploadFailure(t *testing.T) {
	r := &stubRenderer{writeErr: errors.New("device lost")}
	s := NewScene("test", r, WithComputeWorkers(1))

	p := batch.NewInstancePool(
		batch.WithPoolModel(triangleModel("base")),
		batch.WithPoolCapacity(4),
		batch.WithPoolWorkers(1),
	)
	if err := s.AddInstancePool(p); err != nil {
		t.Fatalf("add pool failed: %v", err)
	}
	// Give the pool a vertex buffer so UploadPending reaches the write path.
	p.Model().MeshProvider().SetVertexBuffer(&wgpu.Buffer{})

	h, err := p.Allocate()
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	ident := [16]float32{}
	common.Identity(ident[:])
	if err := h.SetTransform(ident); err != nil {
		t.Fatalf("set transform failed: %v", err)
	}

	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	s.PrepareCompute(0.016)

	if r.vertWrites == 0 {
		t.Fatal("expected an upload attempt")
	}
	if !strings.Contains(buf.String(), "upload failed") {
		t.Errorf("upload error not logged, got %q", buf.String())
	}
}

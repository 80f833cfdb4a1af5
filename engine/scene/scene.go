package scene

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/batch"
	"github.com/embergfx/ember/engine/game_object"
	"github.com/embergfx/ember/engine/light"
	"github.com/embergfx/ember/engine/renderer"
)

// Scene manages a registry of GameObjects, a set of Lights, and the CPU
// instance pools that feed merged static geometry to the GPU. Each frame,
// PrepareCompute advances spinning objects, syncs attached lights, and drives
// every registered pool against the current view frustum.
type Scene interface {
	// Name returns the scene's name.
	//
	// Returns:
	//   - string: the scene name
	Name() string

	// SetName sets the scene's name.
	//
	// Parameters:
	//   - name: the new scene name
	SetName(name string)

	// Active returns whether this scene is active for rendering.
	//
	// Returns:
	//   - bool: true if active
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	//
	// Parameters:
	//   - active: true to activate
	SetActive(active bool)

	// Renderer returns the renderer attached to this scene, or nil.
	//
	// Returns:
	//   - renderer.Renderer: the attached renderer or nil
	Renderer() renderer.Renderer

	// SetRenderer attaches a renderer to this scene.
	//
	// Parameters:
	//   - r: the renderer to attach
	SetRenderer(r renderer.Renderer)

	// CullingDisabled reports whether frustum culling is disabled for this scene.
	//
	// Returns:
	//   - bool: true when culling is off
	CullingDisabled() bool

	// SetCullingDisabled toggles frustum culling for this scene. When disabled,
	// instance pools recompute without a frustum and every visible slot stays baked.
	//
	// Parameters:
	//   - disabled: true to disable culling
	SetCullingDisabled(disabled bool)

	// ViewProjection returns the scene's current view-projection matrix.
	//
	// Returns:
	//   - [16]float32: the column-major view-projection matrix
	ViewProjection() [16]float32

	// SetViewProjection sets the view-projection matrix used to derive the
	// culling frustum each frame. The caller owns camera logic; the scene only
	// consumes the composed matrix.
	//
	// Parameters:
	//   - vp: the column-major view-projection matrix
	SetViewProjection(vp [16]float32)

	// AddLight registers a light with the scene.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight unregisters a light from the scene. No-op if not present.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// DetachLight removes the light attached to the given object from the scene
	// and clears the object's light reference.
	//
	// Parameters:
	//   - obj: the object whose attached light should be detached
	DetachLight(obj game_object.GameObject)

	// Lights returns a copy of the scene's registered lights.
	//
	// Returns:
	//   - []light.Light: the registered lights
	Lights() []light.Light

	// AmbientColor returns the scene's ambient light color.
	//
	// Returns:
	//   - [3]float32: the ambient RGB color
	AmbientColor() [3]float32

	// SetAmbientColor sets the scene's ambient light color.
	//
	// Parameters:
	//   - color: the ambient RGB color
	SetAmbientColor(color [3]float32)

	// Count returns the number of persistent objects in the registry.
	//
	// Returns:
	//   - int: the registry size
	Count() int

	// Add registers a GameObject with the scene, assigning an ID if the object
	// has none. When a renderer is attached and the object's model has staged
	// mesh data without GPU buffers, the buffers are created. Objects carrying
	// a light are tracked so the light follows the object's transform.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object's ID
	//   - error: error if GPU buffer creation fails
	Add(obj game_object.GameObject) (uint64, error)

	// Get retrieves a registered object by ID. Returns nil if not found.
	//
	// Parameters:
	//   - id: the object ID to look up
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove unregisters an object by ID. Its attached light, if registered,
	// is removed as well. No-op if the ID is unknown.
	//
	// Parameters:
	//   - id: the object ID to remove
	Remove(id uint64)

	// Clear removes all objects, lights, and instance pools from the scene.
	// Instance pools are released.
	Clear()

	// AddInstancePool registers a CPU instance pool with the scene. When a
	// renderer is attached and the pool's model has staged mesh data without
	// GPU buffers, the buffers are created so UploadPending has a target.
	//
	// Parameters:
	//   - p: the pool to register
	//
	// Returns:
	//   - error: error if GPU buffer creation fails
	AddInstancePool(p batch.InstancePool) error

	// InstancePools returns a copy of the scene's registered instance pools.
	//
	// Returns:
	//   - []batch.InstancePool: the registered pools
	InstancePools() []batch.InstancePool

	// RemoveInstancePool unregisters a pool and releases its GPU resources.
	// No-op if the pool is not registered.
	//
	// Parameters:
	//   - p: the pool to remove
	RemoveInstancePool(p batch.InstancePool)

	// BatchStaticChildren collapses the static children beneath root into
	// merged models and uploads their mesh data when a renderer is attached.
	// Passing a nil batcher uses a default ModelBatcher.
	//
	// Parameters:
	//   - root: the subtree root whose static descendants should be merged
	//   - batcher: the batcher to merge with, or nil for a default one
	//
	// Returns:
	//   - []game_object.GameObject: the new objects holding merged geometry
	//   - []game_object.GameObject: descendants that could not be merged
	//   - error: error if merging or buffer creation fails
	BatchStaticChildren(root game_object.GameObject, batcher batch.ModelBatcher) ([]game_object.GameObject, []game_object.GameObject, error)

	// PrepareCompute runs the per-frame CPU work: spinning objects advance
	// their rotation, attached lights follow their objects, and every instance
	// pool re-bakes dirty slots against this frame's frustum and uploads the
	// touched vertex span. Object updates fan out across the scene's worker pool.
	//
	// Parameters:
	//   - deltaTime: seconds elapsed since the previous frame
	PrepareCompute(deltaTime float32)
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	r renderer.Renderer

	registry map[uint64]game_object.GameObject
	nextID   uint64

	lights       []light.Light
	lightObjects []game_object.GameObject
	ambientColor [3]float32

	instancePools []batch.InstancePool

	viewProj    [16]float32
	hasViewProj bool

	cullingDisabled bool

	computeWorkers int
	computePool    worker.DynamicWorkerPool
}

var _ Scene = &scene{}

// NewScene creates a new Scene with the given name and renderer.
//
// Parameters:
//   - name: the scene name
//   - r: the renderer to attach, or nil for a CPU-only scene
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, r renderer.Renderer, options ...SceneBuilderOption) Scene {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}

	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		active:         true,
		r:              r,
		registry:       make(map[uint64]game_object.GameObject),
		nextID:         1,
		ambientColor:   [3]float32{0.03, 0.03, 0.03},
		computeWorkers: workers,
	}

	for _, option := range options {
		option(s)
	}

	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) SetRenderer(r renderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r = r
}

func (s *scene) CullingDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cullingDisabled
}

func (s *scene) SetCullingDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullingDisabled = disabled
}

func (s *scene) ViewProjection() [16]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewProj
}

func (s *scene) SetViewProjection(vp [16]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewProj = vp
	s.hasViewProj = true
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLightLocked(l)
}

// removeLightLocked removes l from the light list. Caller must hold s.mu.
func (s *scene) removeLightLocked(l light.Light) {
	for i, registered := range s.lights {
		if registered == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return
		}
	}
}

func (s *scene) DetachLight(obj game_object.GameObject) {
	if obj == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := obj.Light()
	if l == nil {
		return
	}
	s.removeLightLocked(l)
	for i, tracked := range s.lightObjects {
		if tracked == obj {
			s.lightObjects = append(s.lightObjects[:i], s.lightObjects[i+1:]...)
			break
		}
	}
	obj.SetLight(nil)
}

func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *scene) AmbientColor() [3]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientColor
}

func (s *scene) SetAmbientColor(color [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor = color
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Add(obj game_object.GameObject) (uint64, error) {
	if obj == nil {
		return 0, fmt.Errorf("scene %q: cannot add nil object", s.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.ID() == 0 {
		obj.SetID(s.nextID)
		s.nextID++
	}

	if mdl := obj.Model(); mdl != nil && s.r != nil {
		if mp := mdl.MeshProvider(); mp != nil && mp.VertexBuffer() == nil {
			if err := s.r.InitMeshBuffers(mp, mdl.VertexData(), mdl.IndexData(), mdl.IndexCount()); err != nil {
				return 0, fmt.Errorf("scene %q: failed to init mesh buffers for %q: %w", s.name, mdl.Name(), err)
			}
		}
	}

	if !obj.Ephemeral() {
		s.registry[obj.ID()] = obj
	}
	if l := obj.Light(); l != nil {
		s.lights = append(s.lights, l)
		s.lightObjects = append(s.lightObjects, obj)
	}

	return obj.ID(), nil
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.registry[id]
	if !ok {
		return
	}
	delete(s.registry, id)

	if l := obj.Light(); l != nil {
		s.removeLightLocked(l)
	}
	for i, tracked := range s.lightObjects {
		if tracked == obj {
			s.lightObjects = append(s.lightObjects[:i], s.lightObjects[i+1:]...)
			break
		}
	}
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry = make(map[uint64]game_object.GameObject)
	s.lights = nil
	s.lightObjects = nil
	for _, p := range s.instancePools {
		p.Release()
	}
	s.instancePools = nil
}

func (s *scene) AddInstancePool(p batch.InstancePool) error {
	if p == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mdl := p.Model()
	if s.r != nil && mdl != nil && mdl.MeshProvider() != nil && mdl.MeshProvider().VertexBuffer() == nil {
		if err := s.r.InitMeshBuffers(mdl.MeshProvider(), mdl.VertexData(), mdl.IndexData(), mdl.IndexCount()); err != nil {
			return fmt.Errorf("scene %q: failed to init instance pool mesh buffers: %w", s.name, err)
		}
	}
	s.instancePools = append(s.instancePools, p)
	return nil
}

func (s *scene) InstancePools() []batch.InstancePool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]batch.InstancePool, len(s.instancePools))
	copy(out, s.instancePools)
	return out
}

func (s *scene) RemoveInstancePool(p batch.InstancePool) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, registered := range s.instancePools {
		if registered == p {
			// Swap-remove; pool order carries no meaning.
			last := len(s.instancePools) - 1
			s.instancePools[i] = s.instancePools[last]
			s.instancePools = s.instancePools[:last]
			p.Release()
			return
		}
	}
}

func (s *scene) BatchStaticChildren(root game_object.GameObject, batcher batch.ModelBatcher) ([]game_object.GameObject, []game_object.GameObject, error) {
	if batcher == nil {
		batcher = batch.NewModelBatcher()
	}
	merged, skipped, err := batch.BatchChildren(root, batcher)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	r := s.r
	s.mu.RUnlock()
	if r != nil {
		for _, obj := range merged {
			mdl := obj.Model()
			if mdl == nil || mdl.MeshProvider() == nil {
				continue
			}
			if err := r.InitMeshBuffers(mdl.MeshProvider(), mdl.VertexData(), mdl.IndexData(), mdl.IndexCount()); err != nil {
				return merged, skipped, fmt.Errorf("scene %q: failed to init merged mesh buffers: %w", s.name, err)
			}
		}
	}
	return merged, skipped, nil
}

func (s *scene) PrepareCompute(deltaTime float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Extract the culling frustum from the current view-projection matrix.
	var cpuFrustum *common.Frustum
	if s.hasViewProj && !s.cullingDisabled {
		frustum := common.ExtractFrustumFromMatrix(s.viewProj[:])
		cpuFrustum = &frustum
	}

	// Phase 1: parallel CPU prep. Advance each spinning object's rotation on
	// the compute pool. Workers are reused across frames (no goroutine spawn
	// overhead). A WaitGroup provides per-frame barrier sync since pool.Wait()
	// blocks until workers idle-exit which is unsuitable for frame-rate workloads.
	var wg sync.WaitGroup
	taskID := 0
	for _, obj := range s.registry {
		if !obj.Enabled() {
			continue
		}
		rx, ry, rz := obj.RotationSpeed()
		if rx == 0 && ry == 0 && rz == 0 {
			continue
		}

		wg.Add(1)
		objCap := obj
		id := taskID
		taskID++
		s.computePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				cx, cy, cz := objCap.Rotation()
				objCap.SetRotation(cx+rx*deltaTime, cy+ry*deltaTime, cz+rz*deltaTime)
				return nil, nil
			},
		})
	}
	wg.Wait()

	// Phase 2: sync attached lights. Copy each object's world position to its light.
	for _, obj := range s.lightObjects {
		if l := obj.Light(); l != nil && obj.Enabled() {
			world := obj.WorldMatrix()
			l.SetPosition(world[12], world[13], world[14])
		}
	}

	// Phase 3: drive CPU instance pools. Re-bake dirty slots against this
	// frame's frustum, then push each pool's touched vertex span in one write.
	// A failed upload keeps the span pending, so log and move on.
	if s.r == nil {
		for _, p := range s.instancePools {
			p.Recompute(cpuFrustum)
		}
		return
	}
	for _, p := range s.instancePools {
		p.Recompute(cpuFrustum)
		if err := p.UploadPending(s.r); err != nil {
			log.Printf("scene %q: instance pool upload failed: %v", s.name, err)
		}
	}
}

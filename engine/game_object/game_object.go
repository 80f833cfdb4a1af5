package game_object

import (
	"sync/atomic"

	"github.com/embergfx/ember/common"
	"github.com/embergfx/ember/engine/light"
	"github.com/embergfx/ember/engine/model"
)

type gameObject struct {
	id            uint64
	enabled       atomic.Bool
	ephemeral     bool
	mdl           model.Model
	attachedLight light.Light

	position      [3]float32
	scale         [3]float32
	rotation      [3]float32
	rotationSpeed [3]float32

	// Hierarchy state used by static mesh batching: objects form a tree with
	// per-node local matrices; the static flag marks objects whose geometry is
	// eligible for collapsing into a merged mesh.
	parent      GameObject
	children    []GameObject
	localMatrix [16]float32
	static      bool
}

// GameObject defines the interface for a scene entity: an optional model and
// light plus a transform that composes through the parent chain. The local
// matrix is authoritative; the component setters (position, rotation, scale)
// rebuild it, while SetLocalMatrix replaces it wholesale.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Enabled returns whether this object is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Ephemeral returns whether this object is ephemeral.
	// Ephemeral objects are not persisted in the scene's registry when added.
	//
	// Returns:
	//   - bool: true if ephemeral
	Ephemeral() bool

	// Model returns the Model associated with this object, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Model() model.Model

	// Position returns the object's position relative to its parent.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Rotation returns the object's rotation relative to its parent.
	//
	// Returns:
	//   - rx, ry, rz: rotation angles
	Rotation() (rx, ry, rz float32)

	// RotationSpeed returns the object's rotation speed, applied by the scene
	// each tick for objects that spin in place.
	//
	// Returns:
	//   - rx, ry, rz: rotation speed values
	RotationSpeed() (rx, ry, rz float32)

	// Scale returns the object's scale relative to its parent.
	//
	// Returns:
	//   - sx, sy, sz: scale components
	Scale() (sx, sy, sz float32)

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// SetEnabled sets whether the object is enabled for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetModel assigns a Model to this object.
	//
	// Parameters:
	//   - m: the Model to associate
	SetModel(m model.Model)

	// SetPosition updates the object's position and rebuilds its local matrix.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation updates the object's rotation and rebuilds its local matrix.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles
	SetRotation(rx, ry, rz float32)

	// SetRotationSpeed updates the object's rotation speed.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation speed values
	SetRotationSpeed(rx, ry, rz float32)

	// SetScale updates the object's scale and rebuilds its local matrix.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// Light returns the Light attached to this object, or nil if none is set.
	//
	// Returns:
	//   - light.Light: the attached light or nil
	Light() light.Light

	// SetLight attaches a Light to this object. When the object is added to a
	// scene, the scene will automatically sync the light's position from the
	// object's transform each frame. Pass nil to detach.
	//
	// Parameters:
	//   - l: the Light to attach, or nil to detach
	SetLight(l light.Light)

	// Parent returns this object's parent in the hierarchy, or nil for roots.
	//
	// Returns:
	//   - GameObject: the parent or nil
	Parent() GameObject

	// SetParent sets the parent link only. It does not modify either parent's
	// child list; use AddChild/RemoveChild to keep both sides consistent.
	//
	// Parameters:
	//   - p: the parent to link, or nil to clear
	SetParent(p GameObject)

	// Children returns a copy of this object's direct children.
	//
	// Returns:
	//   - []GameObject: the child objects
	Children() []GameObject

	// AddChild appends a child to this object and sets its parent link.
	//
	// Parameters:
	//   - child: the object to attach
	AddChild(child GameObject)

	// RemoveChild detaches a child from this object and clears its parent link.
	// No-op if the child is not present.
	//
	// Parameters:
	//   - child: the object to detach
	RemoveChild(child GameObject)

	// LocalMatrix returns the object's transform relative to its parent as a
	// column-major 4x4 matrix.
	//
	// Returns:
	//   - [16]float32: the local matrix
	LocalMatrix() [16]float32

	// SetLocalMatrix sets the object's transform relative to its parent.
	//
	// Parameters:
	//   - m: the local matrix (column-major)
	SetLocalMatrix(m [16]float32)

	// WorldMatrix returns the object's world transform: the product of every
	// ancestor's local matrix down to this object.
	//
	// Returns:
	//   - [16]float32: the world matrix
	WorldMatrix() [16]float32

	// Static reports whether this object is immobile. Static objects are
	// eligible for collapsing into merged static geometry.
	//
	// Returns:
	//   - bool: true if the object is immobile
	Static() bool

	// SetStatic sets whether this object is immobile.
	//
	// Parameters:
	//   - static: true to mark the object immobile
	SetStatic(static bool)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		scale: [3]float32{1, 1, 1},
	}
	common.Identity(obj.localMatrix[:])
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Ephemeral() bool {
	return g.ephemeral
}

func (g *gameObject) Model() model.Model {
	return g.mdl
}

func (g *gameObject) Position() (x, y, z float32) {
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) RotationSpeed() (rx, ry, rz float32) {
	return g.rotationSpeed[0], g.rotationSpeed[1], g.rotationSpeed[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetModel(m model.Model) {
	g.mdl = m
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.position = [3]float32{x, y, z}
	g.rebuildLocal()
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.rotation = [3]float32{rx, ry, rz}
	g.rebuildLocal()
}

func (g *gameObject) SetRotationSpeed(rx, ry, rz float32) {
	g.rotationSpeed = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.scale = [3]float32{sx, sy, sz}
	g.rebuildLocal()
}

func (g *gameObject) rebuildLocal() {
	common.BuildModelMatrix(g.localMatrix[:],
		g.position[0], g.position[1], g.position[2],
		g.rotation[0], g.rotation[1], g.rotation[2],
		g.scale[0], g.scale[1], g.scale[2])
}

func (g *gameObject) Light() light.Light {
	return g.attachedLight
}

func (g *gameObject) SetLight(l light.Light) {
	g.attachedLight = l
}

func (g *gameObject) Parent() GameObject {
	return g.parent
}

func (g *gameObject) SetParent(p GameObject) {
	g.parent = p
}

func (g *gameObject) Children() []GameObject {
	out := make([]GameObject, len(g.children))
	copy(out, g.children)
	return out
}

func (g *gameObject) AddChild(child GameObject) {
	if child == nil {
		return
	}
	child.SetParent(g)
	g.children = append(g.children, child)
}

func (g *gameObject) RemoveChild(child GameObject) {
	for i, c := range g.children {
		if c == child {
			g.children = append(g.children[:i], g.children[i+1:]...)
			child.SetParent(nil)
			return
		}
	}
}

func (g *gameObject) LocalMatrix() [16]float32 {
	return g.localMatrix
}

func (g *gameObject) SetLocalMatrix(m [16]float32) {
	g.localMatrix = m
}

func (g *gameObject) WorldMatrix() [16]float32 {
	if g.parent == nil {
		return g.localMatrix
	}
	parentWorld := g.parent.WorldMatrix()
	var world [16]float32
	common.Mul4(world[:], parentWorld[:], g.localMatrix[:])
	return world
}

func (g *gameObject) Static() bool {
	return g.static
}

func (g *gameObject) SetStatic(static bool) {
	g.static = static
}

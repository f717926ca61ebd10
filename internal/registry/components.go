package registry

import (
	"fmt"

	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// AllLayers is the default layer mask.
const AllLayers = ^uint32(0)

// State is the bookkeeping shared by every component record.
//
// Dirty means the host-side payload has not reached the GPU yet. Only a
// successful Sync clears it; every mutation sets it again.
type State struct {
	LayerMask uint32
	Dirty     bool

	// Offset is the record's slot in its uniform region. It is meaningful
	// only when Placed is true and never moves once assigned.
	Offset uint64
	Placed bool
}

// MarkDirty flags the record for the next Sync.
func (s *State) MarkDirty() { s.Dirty = true }

func newState() State { return State{LayerMask: AllLayers, Dirty: true} }

// Camera is a viewpoint with its own render targets.
type Camera struct {
	State
	ID      uint32
	Uniform CameraUniform
	Active  bool
	Width   uint32
	Height  uint32
	Format  gputypes.TextureFormat
	Targets *gpu.RenderTargets
}

// Model places a geometry with a material in the scene.
type Model struct {
	State
	ID       uint32
	Uniform  ModelUniform
	Geometry uint32
	Material uint32
	Skinned  bool
}

// Light is a scene light.
type Light struct {
	State
	ID      uint32
	Uniform LightUniform
}

// MaterialInstance is the uniform block of a material resource. It shares
// the material's id.
type MaterialInstance struct {
	State
	ID      uint32
	Uniform MaterialUniform
}

// NewCamera returns an inactive dirty camera with default uniforms.
func NewCamera(id uint32) *Camera {
	return &Camera{State: newState(), ID: id, Uniform: DefaultCameraUniform()}
}

// NewModel returns a dirty model with default uniforms.
func NewModel(id, geometry, material uint32) *Model {
	return &Model{State: newState(), ID: id, Uniform: DefaultModelUniform(), Geometry: geometry, Material: material}
}

// NewLight returns a dirty light with default uniforms.
func NewLight(id uint32) *Light {
	return &Light{State: newState(), ID: id, Uniform: DefaultLightUniform()}
}

// NewMaterialInstance returns a dirty material block with default uniforms.
func NewMaterialInstance(id uint32) *MaterialInstance {
	return &MaterialInstance{State: newState(), ID: id, Uniform: DefaultMaterialUniform()}
}

// Update applies fn to the record for id and marks it dirty.
func Update[T interface{ MarkDirty() }](t *Table[T], id uint32, fn func(T)) error {
	v, err := t.Lookup(id)
	if err != nil {
		return err
	}
	fn(v)
	v.MarkDirty()
	return nil
}

// RegionWriter places and writes uniform payloads. *gpu.RegionManager
// implements it.
type RegionWriter interface {
	Allocate(class gpu.RegionClass, size uint64) (uint64, error)
	Write(class gpu.RegionClass, offset uint64, data []byte) error
	Free(class gpu.RegionClass, offset uint64)
}

// SyncResult summarizes one Sync pass.
type SyncResult struct {
	Written  int
	Skipped  int
	Failed   int
	Retarget int
	Err      error
}

type syncItem struct {
	kind    string
	id      uint32
	class   gpu.RegionClass
	size    uint64
	state   *State
	payload func() []byte
	camera  *Camera
}

// ComponentRegistry owns the per-entity records whose payloads mirror into
// uniform regions.
type ComponentRegistry struct {
	Cameras   *Table[*Camera]
	Models    *Table[*Model]
	Lights    *Table[*Light]
	Materials *Table[*MaterialInstance]

	device  hal.Device
	targets gpu.TargetsConfig
}

// NewComponentRegistry creates empty tables. device creates camera render
// targets.
func NewComponentRegistry(device hal.Device, targets gpu.TargetsConfig) *ComponentRegistry {
	return &ComponentRegistry{
		Cameras:   NewTable[*Camera]("camera"),
		Models:    NewTable[*Model]("model"),
		Lights:    NewTable[*Light]("light"),
		Materials: NewTable[*MaterialInstance]("material"),
		device:    device,
		targets:   targets,
	}
}

// items lists every record in class then id order.
func (r *ComponentRegistry) items() []syncItem {
	out := make([]syncItem, 0, r.Cameras.Len()+r.Models.Len()+r.Materials.Len()+r.Lights.Len())
	r.Cameras.Each(func(id uint32, c *Camera) {
		out = append(out, syncItem{
			kind: "camera", id: id, class: gpu.RegionCamera, size: CameraUniformSize,
			state: &c.State, payload: c.Uniform.Bytes, camera: c,
		})
	})
	r.Models.Each(func(id uint32, m *Model) {
		out = append(out, syncItem{
			kind: "model", id: id, class: gpu.RegionModel, size: ModelUniformSize,
			state: &m.State, payload: m.Uniform.Bytes,
		})
	})
	r.Materials.Each(func(id uint32, m *MaterialInstance) {
		out = append(out, syncItem{
			kind: "material", id: id, class: gpu.RegionMaterial, size: MaterialUniformSize,
			state: &m.State, payload: m.Uniform.Bytes,
		})
	})
	r.Lights.Each(func(id uint32, l *Light) {
		out = append(out, syncItem{
			kind: "light", id: id, class: gpu.RegionLight, size: LightUniformSize,
			state: &l.State, payload: l.Uniform.Bytes,
		})
	})
	return out
}

// Place assigns a region slot to every dirty record that has none.
// Allocation may push a region past its buffer capacity; callers check
// NeedsResize before Sync.
func (r *ComponentRegistry) Place(w RegionWriter) error {
	for _, it := range r.items() {
		if !it.state.Dirty || it.state.Placed {
			continue
		}
		off, err := w.Allocate(it.class, it.size)
		if err != nil {
			return fmt.Errorf("place %s %d: %w", it.kind, it.id, err)
		}
		it.state.Offset = off
		it.state.Placed = true
	}
	return nil
}

// MarkClassDirty flags every placed record of class. A region resize
// discards the old buffer contents, so all of them must be rewritten.
func (r *ComponentRegistry) MarkClassDirty(class gpu.RegionClass) int {
	n := 0
	for _, it := range r.items() {
		if it.class == class && it.state.Placed {
			it.state.Dirty = true
			n++
		}
	}
	return n
}

// Sync writes every dirty record and clears its flag on success. Inactive
// cameras are skipped and stay dirty. Active cameras with a size get their
// render targets ensured first. A failing record stays dirty and the first
// error is reported; the pass continues with the rest.
func (r *ComponentRegistry) Sync(w RegionWriter) SyncResult {
	var res SyncResult
	fail := func(err error) {
		res.Failed++
		if res.Err == nil {
			res.Err = err
		}
	}

	for _, it := range r.items() {
		if !it.state.Dirty {
			continue
		}
		if it.camera != nil {
			if !it.camera.Active {
				res.Skipped++
				continue
			}
			recreated, err := r.ensureTargets(it.camera)
			if err != nil {
				fail(fmt.Errorf("camera %d targets: %w", it.id, err))
				continue
			}
			if recreated {
				res.Retarget++
			}
		}
		if !it.state.Placed {
			off, err := w.Allocate(it.class, it.size)
			if err != nil {
				fail(fmt.Errorf("place %s %d: %w", it.kind, it.id, err))
				continue
			}
			it.state.Offset = off
			it.state.Placed = true
		}
		if err := w.Write(it.class, it.state.Offset, it.payload()); err != nil {
			fail(fmt.Errorf("write %s %d: %w", it.kind, it.id, err))
			continue
		}
		it.state.Dirty = false
		res.Written++
	}
	return res
}

func (r *ComponentRegistry) ensureTargets(c *Camera) (bool, error) {
	if c.Width == 0 || c.Height == 0 {
		return false, nil
	}
	if c.Targets == nil {
		c.Targets = gpu.NewRenderTargets(r.device, r.targets)
	}
	return c.Targets.Ensure(c.Width, c.Height, c.Format)
}

// DirtyCount returns the number of records awaiting Sync.
func (r *ComponentRegistry) DirtyCount() int {
	n := 0
	for _, it := range r.items() {
		if it.state.Dirty {
			n++
		}
	}
	return n
}

// RemoveCamera drops a camera, its render targets and its region slot.
func (r *ComponentRegistry) RemoveCamera(w RegionWriter, id uint32) error {
	c, err := r.Cameras.Remove(id)
	if err != nil {
		return err
	}
	if c.Targets != nil {
		c.Targets.Destroy()
	}
	freeSlot(w, gpu.RegionCamera, &c.State)
	return nil
}

// RemoveModel drops a model and its region slot. The caller releases any
// bone run the model held.
func (r *ComponentRegistry) RemoveModel(w RegionWriter, id uint32) (*Model, error) {
	m, err := r.Models.Remove(id)
	if err != nil {
		return nil, err
	}
	freeSlot(w, gpu.RegionModel, &m.State)
	return m, nil
}

// RemoveLight drops a light and its region slot.
func (r *ComponentRegistry) RemoveLight(w RegionWriter, id uint32) error {
	l, err := r.Lights.Remove(id)
	if err != nil {
		return err
	}
	freeSlot(w, gpu.RegionLight, &l.State)
	return nil
}

// RemoveMaterial drops a material block and its region slot. Unknown ids
// are ignored since not every material has been instanced.
func (r *ComponentRegistry) RemoveMaterial(w RegionWriter, id uint32) {
	m, err := r.Materials.Remove(id)
	if err != nil {
		return
	}
	freeSlot(w, gpu.RegionMaterial, &m.State)
}

func freeSlot(w RegionWriter, class gpu.RegionClass, s *State) {
	if s.Placed && w != nil {
		w.Free(class, s.Offset)
	}
	s.Placed = false
}

// ModelsUsing returns the ids of models drawing geometry or material.
// Zero matches nothing.
func (r *ComponentRegistry) ModelsUsing(geometry, material uint32) []uint32 {
	var out []uint32
	r.Models.Each(func(id uint32, m *Model) {
		if (geometry != 0 && m.Geometry == geometry) || (material != 0 && m.Material == material) {
			out = append(out, id)
		}
	})
	return out
}

// ReleaseTargetViews destroys every camera's render target views without
// touching the textures.
func (r *ComponentRegistry) ReleaseTargetViews() {
	r.Cameras.Each(func(_ uint32, c *Camera) {
		if c.Targets != nil {
			c.Targets.ReleaseViews()
		}
	})
}

// DropAll destroys every camera's render target views, then every render
// target texture, then clears all tables. Region slots are not freed
// individually; the caller destroys the region buffers afterwards.
func (r *ComponentRegistry) DropAll() {
	r.ReleaseTargetViews()
	r.Cameras.Each(func(_ uint32, c *Camera) {
		if c.Targets != nil {
			c.Targets.Destroy()
			c.Targets = nil
		}
	})
	r.Cameras.Clear()
	r.Models.Clear()
	r.Lights.Clear()
	r.Materials.Clear()
}

// Counts returns the number of live records per kind.
func (r *ComponentRegistry) Counts() map[string]int {
	return map[string]int{
		r.Cameras.Kind():    r.Cameras.Len(),
		r.Models.Kind():     r.Models.Len(),
		r.Lights.Kind():     r.Lights.Len(),
		"material_instance": r.Materials.Len(),
	}
}

package registry

import (
	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/wgpu/hal"
)

// Shader is a compiled shader module.
type Shader struct {
	ID     uint32
	Source string
	Module hal.ShaderModule
}

// IndexFormat is the width of geometry indices.
type IndexFormat uint8

// Index formats.
const (
	IndexUint16 IndexFormat = iota
	IndexUint32
)

// Geometry locates a mesh's data in the shared geometry pool and describes
// its vertex stream.
type Geometry struct {
	ID          uint32
	Layout      gpu.VertexLayout
	Slice       gpu.GeometrySlice
	VertexCount uint32
	IndexCount  uint32
	IndexFormat IndexFormat
}

// Texture is a sampled texture. Tex is nil until the first pixels arrive.
// Ticket identifies the newest decode submitted for the record; older
// decode results are dropped.
type Texture struct {
	ID      uint32
	Tex     *gpu.Texture
	Pending bool
	Ticket  uint64
}

// Material ties a shader to a pipeline specification and an optional base
// color texture (zero means none). Its uniform block lives in the matching
// MaterialInstance component.
type Material struct {
	ID      uint32
	Shader  uint32
	Texture uint32
	Spec    gpu.PipelineSpec
	Layout  gpu.VertexLayout
}

// ResourceRegistry owns the shared GPU-backed assets. No other component
// keeps their handles beyond the frame that uses them.
type ResourceRegistry struct {
	Shaders    *Table[*Shader]
	Geometries *Table[*Geometry]
	Textures   *Table[*Texture]
	Materials  *Table[*Material]
}

// NewResourceRegistry creates empty tables.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		Shaders:    NewTable[*Shader]("shader"),
		Geometries: NewTable[*Geometry]("geometry"),
		Textures:   NewTable[*Texture]("texture"),
		Materials:  NewTable[*Material]("material"),
	}
}

// MaterialsUsingShader returns the ids of materials built on shader.
func (r *ResourceRegistry) MaterialsUsingShader(shader uint32) []uint32 {
	var out []uint32
	r.Materials.Each(func(id uint32, m *Material) {
		if m.Shader == shader {
			out = append(out, id)
		}
	})
	return out
}

// MaterialsUsingTexture returns the ids of materials sampling texture.
func (r *ResourceRegistry) MaterialsUsingTexture(texture uint32) []uint32 {
	var out []uint32
	r.Materials.Each(func(id uint32, m *Material) {
		if m.Texture == texture {
			out = append(out, id)
		}
	})
	return out
}

// DropAll releases every resource. Materials go first since they refer to
// shaders and textures; texture views are destroyed before any texture;
// geometry ranges return to pool; shader modules go last. Every table is
// empty afterwards.
func (r *ResourceRegistry) DropAll(device hal.Device, pool *gpu.GeometryPool) {
	r.Materials.Clear()

	r.Textures.Each(func(_ uint32, t *Texture) {
		if t.Tex != nil {
			t.Tex.ReleaseView()
		}
	})
	r.Textures.Each(func(_ uint32, t *Texture) {
		if t.Tex != nil {
			t.Tex.Destroy()
		}
	})
	r.Textures.Clear()

	r.Geometries.Each(func(id uint32, _ *Geometry) {
		pool.Release(id)
	})
	r.Geometries.Clear()

	r.Shaders.Each(func(_ uint32, s *Shader) {
		if s.Module != nil {
			device.DestroyShaderModule(s.Module)
		}
	})
	r.Shaders.Clear()
}

// Counts returns the number of live records per kind.
func (r *ResourceRegistry) Counts() map[string]int {
	return map[string]int{
		r.Shaders.Kind():    r.Shaders.Len(),
		r.Geometries.Kind(): r.Geometries.Len(),
		r.Textures.Kind():   r.Textures.Len(),
		r.Materials.Kind():  r.Materials.Len(),
	}
}

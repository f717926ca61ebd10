package g3d

import (
	"errors"
	"fmt"

	"github.com/gogpu/g3d/internal/alloc"
	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/g3d/internal/registry"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Every command runs on the render thread and reports ErrNotInitialized,
// ErrWrongThread, ErrIDCollision on create and ErrNotFound on update or
// dispose of an unknown id. Commands that replace a shader or material
// evict and destroy the pipelines built from it.

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

// CreateShader compiles WGSL source under id.
func (e *Engine) CreateShader(id uint32, source string) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.resources.Shaders.Has(id) {
		return fmt.Errorf("%w: shader %d", ErrIDCollision, id)
	}
	module, err := e.shaderModule(id, source)
	if err != nil {
		return err
	}
	return e.resources.Shaders.Insert(id, &registry.Shader{ID: id, Source: source, Module: module})
}

// UpdateShader replaces the source of shader id. The old module is kept if
// the new source fails to compile.
func (e *Engine) UpdateShader(id uint32, source string) error {
	if err := e.check(); err != nil {
		return err
	}
	s, err := e.resources.Shaders.Lookup(id)
	if err != nil {
		return err
	}
	module, err := e.shaderModule(id, source)
	if err != nil {
		return err
	}
	e.evictShader(id)
	if s.Module != nil {
		e.device.Device.DestroyShaderModule(s.Module)
	}
	s.Source, s.Module = source, module
	return nil
}

// DisposeShader destroys shader id and every pipeline built from it.
// Materials that use it stay; resolving their pipeline fails until a
// shader with the same id is created again.
func (e *Engine) DisposeShader(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	s, err := e.resources.Shaders.Remove(id)
	if err != nil {
		return err
	}
	e.evictShader(id)
	if s.Module != nil {
		e.device.Device.DestroyShaderModule(s.Module)
	}
	return nil
}

func (e *Engine) shaderModule(id uint32, source string) (hal.ShaderModule, error) {
	module, err := gpu.CreateShaderModule(e.device.Device, fmt.Sprintf("shader_%d", id), source, e.config.PrecompileShaders)
	if errors.Is(err, gpu.ErrEmptyShader) {
		return nil, invalid(err)
	}
	return module, err
}

func (e *Engine) evictShader(id uint32) {
	evicted := e.pipelines.RemoveShaderPipelines(id)
	for _, p := range evicted {
		e.destroyPipeline(p)
	}
	if len(evicted) > 0 {
		Logger().Debug("g3d: shader pipelines evicted", "shader", id, "count", len(evicted))
	}
}

func (e *Engine) evictMaterial(id uint32) {
	evicted := e.pipelines.RemoveMaterialPipelines(id)
	for _, p := range evicted {
		e.destroyPipeline(p)
	}
	if len(evicted) > 0 {
		Logger().Debug("g3d: material pipelines evicted", "material", id, "count", len(evicted))
	}
}

// resolveBytes returns inline data or consumes the upload buffer.
func (e *Engine) resolveBytes(inline []byte, buffer uint64, kind UploadKind) ([]byte, error) {
	if inline != nil || buffer == 0 {
		return inline, nil
	}
	return e.uploads.takeKind(buffer, kind, UploadRaw)
}

func (e *Engine) geometryData(desc *GeometryDesc) (vertices, indices []byte, err error) {
	if desc.Layout.Stride == 0 {
		return nil, nil, fmt.Errorf("%w: zero vertex stride", ErrInvalidArgument)
	}
	vertices, err = e.resolveBytes(desc.Vertices, desc.VertexBuffer, UploadVertex)
	if err != nil {
		return nil, nil, err
	}
	indices, err = e.resolveBytes(desc.Indices, desc.IndexBuffer, UploadIndex)
	if err != nil {
		return nil, nil, err
	}
	if len(vertices) == 0 || uint64(len(vertices))%desc.Layout.Stride != 0 {
		return nil, nil, fmt.Errorf("%w: %d vertex bytes for stride %d", ErrInvalidArgument, len(vertices), desc.Layout.Stride)
	}
	if len(indices)%indexSize(desc.IndexFormat) != 0 {
		return nil, nil, fmt.Errorf("%w: %d index bytes", ErrInvalidArgument, len(indices))
	}
	return vertices, indices, nil
}

func indexSize(f IndexFormat) int {
	if f == IndexUint32 {
		return 4
	}
	return 2
}

func geometryRecord(id uint32, desc *GeometryDesc, slice gpu.GeometrySlice, vertices, indices []byte) *registry.Geometry {
	return &registry.Geometry{
		ID:          id,
		Layout:      desc.Layout,
		Slice:       slice,
		VertexCount: uint32(uint64(len(vertices)) / desc.Layout.Stride),
		IndexCount:  uint32(len(indices) / indexSize(desc.IndexFormat)),
		IndexFormat: desc.IndexFormat,
	}
}

// CreateGeometry stores vertex and index data in the shared pools.
func (e *Engine) CreateGeometry(id uint32, desc GeometryDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.resources.Geometries.Has(id) {
		return fmt.Errorf("%w: geometry %d", ErrIDCollision, id)
	}
	vertices, indices, err := e.geometryData(&desc)
	if err != nil {
		return err
	}
	slice, err := e.geometry.Store(id, vertices, indices)
	if err != nil {
		return fmt.Errorf("create geometry %d: %w", id, err)
	}
	return e.resources.Geometries.Insert(id, geometryRecord(id, &desc, slice, vertices, indices))
}

// UpdateGeometry replaces the data of geometry id. Its ranges are released
// and allocated again, so offsets may change. If the new data cannot be
// stored the geometry keeps its old data and the error is returned; only
// when that restore fails too is the geometry disposed.
func (e *Engine) UpdateGeometry(id uint32, desc GeometryDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.resources.Geometries.Has(id) {
		return fmt.Errorf("%w: geometry %d", ErrNotFound, id)
	}
	vertices, indices, err := e.geometryData(&desc)
	if err != nil {
		return err
	}
	g, err := e.resources.Geometries.Lookup(id)
	if err != nil {
		return err
	}
	slice, err := e.geometry.Replace(id, vertices, indices)
	if err != nil {
		if kept, ok := e.geometry.Slice(id); ok {
			g.Slice = kept
		} else {
			e.resources.Geometries.Remove(id) //nolint:errcheck // id is known live
			Logger().Warn("g3d: geometry lost on failed update", "geometry", id, "err", err)
		}
		return fmt.Errorf("update geometry %d: %w", id, err)
	}
	*g = *geometryRecord(id, &desc, slice, vertices, indices)
	return nil
}

// DisposeGeometry returns geometry id's ranges to the pools.
func (e *Engine) DisposeGeometry(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	if _, err := e.resources.Geometries.Remove(id); err != nil {
		return err
	}
	e.geometry.Release(id)
	return nil
}

func (e *Engine) texturePixels(desc *TextureDesc) (gpu.TextureDesc, []byte, error) {
	pixels, err := e.resolveBytes(desc.Pixels, desc.Buffer, UploadTexture)
	if err != nil {
		return gpu.TextureDesc{}, nil, err
	}
	format := desc.Format
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	return gpu.TextureDesc{Width: desc.Width, Height: desc.Height, Format: format}, pixels, nil
}

// CreateTexture creates a texture from tightly packed pixels. A zero
// format means RGBA8.
func (e *Engine) CreateTexture(id uint32, desc TextureDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.resources.Textures.Has(id) {
		return fmt.Errorf("%w: texture %d", ErrIDCollision, id)
	}
	td, pixels, err := e.texturePixels(&desc)
	if err != nil {
		return err
	}
	tex, err := gpu.NewTexture(e.device.Device, e.device.Queue, fmt.Sprintf("texture_%d", id), td, pixels)
	if err != nil {
		return textureError(err)
	}
	return e.resources.Textures.Insert(id, &registry.Texture{ID: id, Tex: tex})
}

// UpdateTexture writes new pixels to texture id. The GPU texture is
// recreated only if the size or format changed. A decode still in flight
// for id is superseded.
func (e *Engine) UpdateTexture(id uint32, desc TextureDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	t, err := e.resources.Textures.Lookup(id)
	if err != nil {
		return err
	}
	td, pixels, err := e.texturePixels(&desc)
	if err != nil {
		return err
	}
	if t.Tex == nil {
		tex, err := gpu.NewTexture(e.device.Device, e.device.Queue, fmt.Sprintf("texture_%d", id), td, pixels)
		if err != nil {
			return textureError(err)
		}
		t.Tex = tex
	} else if err := t.Tex.Update(td, pixels); err != nil {
		return textureError(err)
	}
	e.ticket++
	t.Ticket, t.Pending = e.ticket, false
	return nil
}

// DecodeTexture creates texture id from an uploaded PNG or JPEG. Decoding
// runs on a worker; the texture has no pixels until a later Tick applies
// the result.
func (e *Engine) DecodeTexture(id uint32, buffer uint64) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.resources.Textures.Has(id) {
		return fmt.Errorf("%w: texture %d", ErrIDCollision, id)
	}
	data, err := e.uploads.takeKind(buffer, UploadImage, UploadRaw)
	if err != nil {
		return err
	}
	e.ticket++
	if err := e.decoder.Submit(id, e.ticket, data); err != nil {
		return err
	}
	return e.resources.Textures.Insert(id, &registry.Texture{ID: id, Pending: true, Ticket: e.ticket})
}

// DisposeTexture destroys texture id. A pending decode for it is dropped
// when it completes.
func (e *Engine) DisposeTexture(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	t, err := e.resources.Textures.Remove(id)
	if err != nil {
		return err
	}
	if t.Tex != nil {
		t.Tex.Destroy()
	}
	return nil
}

func textureError(err error) error {
	if errors.Is(err, gpu.ErrPixelSize) || errors.Is(err, gpu.ErrTextureFormat) {
		return invalid(err)
	}
	return err
}

func (e *Engine) checkMaterialRefs(desc *MaterialDesc) error {
	if !e.resources.Shaders.Has(desc.Shader) {
		return fmt.Errorf("%w: shader %d", ErrNotFound, desc.Shader)
	}
	if desc.Texture != 0 && !e.resources.Textures.Has(desc.Texture) {
		return fmt.Errorf("%w: texture %d", ErrNotFound, desc.Texture)
	}
	return nil
}

func (e *Engine) materialRecord(id uint32, desc *MaterialDesc) *registry.Material {
	layout := desc.Layout
	if layout.Stride == 0 {
		layout = PositionOnlyLayout
	}
	spec := desc.Spec
	if spec == (PipelineSpec{}) {
		spec = DefaultPipelineSpec()
	}
	if spec.ColorFormat == gputypes.TextureFormatUndefined {
		spec.ColorFormat = e.colorFormat
	}
	return &registry.Material{ID: id, Shader: desc.Shader, Texture: desc.Texture, Spec: spec, Layout: layout}
}

// CreateMaterial creates material id. Its shader must exist, and so must
// its texture when one is named.
func (e *Engine) CreateMaterial(id uint32, desc MaterialDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.resources.Materials.Has(id) {
		return fmt.Errorf("%w: material %d", ErrIDCollision, id)
	}
	if err := e.checkMaterialRefs(&desc); err != nil {
		return err
	}
	inst := registry.NewMaterialInstance(id)
	inst.Uniform = desc.Uniform
	if err := e.components.Materials.Insert(id, inst); err != nil {
		return err
	}
	return e.resources.Materials.Insert(id, e.materialRecord(id, &desc))
}

// UpdateMaterial replaces material id and evicts its pipelines.
func (e *Engine) UpdateMaterial(id uint32, desc MaterialDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.resources.Materials.Has(id) {
		return fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	if err := e.checkMaterialRefs(&desc); err != nil {
		return err
	}
	e.evictMaterial(id)
	m, err := e.resources.Materials.Lookup(id)
	if err != nil {
		return err
	}
	*m = *e.materialRecord(id, &desc)
	return registry.Update(e.components.Materials, id, func(m *registry.MaterialInstance) {
		m.Uniform = desc.Uniform
	})
}

// DisposeMaterial destroys material id, its uniform slot and its
// pipelines.
func (e *Engine) DisposeMaterial(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	if _, err := e.resources.Materials.Remove(id); err != nil {
		return err
	}
	e.components.RemoveMaterial(e.regions, id)
	e.evictMaterial(id)
	return nil
}

func (e *Engine) applyCamera(c *registry.Camera, desc *CameraDesc) {
	c.Active = desc.Active
	c.Width, c.Height = desc.Width, desc.Height
	c.Format = desc.Format
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = e.colorFormat
	}
	c.LayerMask = layerMask(desc.LayerMask)
	c.Uniform = desc.Uniform
}

// CreateCamera creates camera id. Render targets are created by the next
// SyncFrame in which the camera is active.
func (e *Engine) CreateCamera(id uint32, desc CameraDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	c := registry.NewCamera(id)
	e.applyCamera(c, &desc)
	return e.components.Cameras.Insert(id, c)
}

// UpdateCamera replaces camera id's state.
func (e *Engine) UpdateCamera(id uint32, desc CameraDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	return registry.Update(e.components.Cameras, id, func(c *registry.Camera) {
		e.applyCamera(c, &desc)
	})
}

// DisposeCamera destroys camera id and its render targets.
func (e *Engine) DisposeCamera(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.components.RemoveCamera(e.regions, id)
}

func (e *Engine) checkModelRefs(desc *ModelDesc) error {
	if !e.resources.Geometries.Has(desc.Geometry) {
		return fmt.Errorf("%w: geometry %d", ErrNotFound, desc.Geometry)
	}
	if !e.resources.Materials.Has(desc.Material) {
		return fmt.Errorf("%w: material %d", ErrNotFound, desc.Material)
	}
	return nil
}

func applyModel(m *registry.Model, desc *ModelDesc) {
	offset, count := m.Uniform.BoneOffset, m.Uniform.BoneCount
	m.Geometry, m.Material = desc.Geometry, desc.Material
	m.LayerMask = layerMask(desc.LayerMask)
	m.Uniform = desc.Uniform
	m.Uniform.BoneOffset, m.Uniform.BoneCount = offset, count
}

// CreateModel creates model id drawing an existing geometry with an
// existing material.
func (e *Engine) CreateModel(id uint32, desc ModelDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if e.components.Models.Has(id) {
		return fmt.Errorf("%w: model %d", ErrIDCollision, id)
	}
	if err := e.checkModelRefs(&desc); err != nil {
		return err
	}
	m := registry.NewModel(id, desc.Geometry, desc.Material)
	applyModel(m, &desc)
	return e.components.Models.Insert(id, m)
}

// UpdateModel replaces model id's state. Its bone run is kept.
func (e *Engine) UpdateModel(id uint32, desc ModelDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.components.Models.Has(id) {
		return fmt.Errorf("%w: model %d", ErrNotFound, id)
	}
	if err := e.checkModelRefs(&desc); err != nil {
		return err
	}
	return registry.Update(e.components.Models, id, func(m *registry.Model) {
		applyModel(m, &desc)
	})
}

// SetModelBones uploads skinning matrices for model id. The model keeps
// its bone run while the bone count does not grow.
func (e *Engine) SetModelBones(id uint32, matrices []byte) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.components.Models.Has(id) {
		return fmt.Errorf("%w: model %d", ErrNotFound, id)
	}
	run, err := e.bones.Write(id, matrices)
	if errors.Is(err, alloc.ErrBoneCount) || errors.Is(err, gpu.ErrBoneData) {
		return invalid(err)
	}
	if err != nil {
		return fmt.Errorf("set model %d bones: %w", id, err)
	}
	return registry.Update(e.components.Models, id, func(m *registry.Model) {
		m.Skinned = true
		m.Uniform.BoneOffset = run.Offset
		m.Uniform.BoneCount = uint32(len(matrices) / gpu.BoneMatrixSize)
	})
}

// DisposeModel destroys model id and releases its bone run.
func (e *Engine) DisposeModel(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	m, err := e.components.RemoveModel(e.regions, id)
	if err != nil {
		return err
	}
	if m.Skinned {
		e.bones.Release(id)
	}
	return nil
}

// CreateLight creates light id.
func (e *Engine) CreateLight(id uint32, desc LightDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	l := registry.NewLight(id)
	l.LayerMask = layerMask(desc.LayerMask)
	l.Uniform = desc.Uniform
	return e.components.Lights.Insert(id, l)
}

// UpdateLight replaces light id's state.
func (e *Engine) UpdateLight(id uint32, desc LightDesc) error {
	if err := e.check(); err != nil {
		return err
	}
	return registry.Update(e.components.Lights, id, func(l *registry.Light) {
		l.LayerMask = layerMask(desc.LayerMask)
		l.Uniform = desc.Uniform
	})
}

// DisposeLight destroys light id.
func (e *Engine) DisposeLight(id uint32) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.components.RemoveLight(e.regions, id)
}

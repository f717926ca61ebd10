package main

/*
#include <stdlib.h>
#include <stdint.h>
#include <stdbool.h>
#include <string.h>

#define G3D_API_VERSION_MAJOR 0
#define G3D_API_VERSION_MINOR 1

typedef struct { uint64_t _h; } g3d_engine;

// Result codes (must match g3d.Result)
typedef enum {
    G3D_SUCCESS = 0,
    G3D_NOT_INITIALIZED = 1,
    G3D_ALREADY_INITIALIZED = 2,
    G3D_WRONG_THREAD = 3,
    G3D_INVALID_UPLOAD_TYPE = 4,
    G3D_BUFFER_ID_COLLISION = 5,
    G3D_BUFFER_NOT_FOUND = 6,
    G3D_NOT_FOUND = 7,
    G3D_ID_COLLISION = 8,
    G3D_INVALID_ARGUMENT = 9,
    G3D_UNKNOWN_ERROR = 99
} g3d_result;

typedef enum {
    G3D_BACKEND_NOOP = 0,
    G3D_BACKEND_VULKAN = 1
} g3d_backend;

typedef struct {
    uint32_t format;
    uint64_t offset;
    uint32_t location;
} g3d_vertex_attribute;

typedef struct {
    uint64_t stride;
    const g3d_vertex_attribute* attributes;
    size_t attribute_count;
} g3d_vertex_layout;

typedef struct {
    float view_proj[16];
    float view[16];
    float position[3];
    float near_plane;
    float viewport[2];
    float far_plane;
    float exposure;
} g3d_camera_uniform;

typedef struct {
    bool active;
    uint32_t width;
    uint32_t height;
    uint32_t layer_mask;
    g3d_camera_uniform uniform;
} g3d_camera_desc;

typedef struct {
    float world[16];
    float normal[16];
    float tint[4];
    uint32_t flags;
} g3d_model_uniform;

typedef struct {
    uint32_t geometry;
    uint32_t material;
    uint32_t layer_mask;
    g3d_model_uniform uniform;
} g3d_model_desc;

typedef struct {
    float base_color[4];
    float emissive[4];
    float metallic;
    float roughness;
    float alpha_cutoff;
    uint32_t flags;
} g3d_material_uniform;

typedef struct {
    uint32_t shader;
    uint32_t texture;
    uint32_t blend;
    bool double_sided;
    bool no_depth;
    g3d_vertex_layout layout;
    g3d_material_uniform uniform;
} g3d_material_desc;

typedef struct {
    float position[3];
    float range;
    float direction[3];
    uint32_t kind;
    float color[3];
    float intensity;
    float inner_cone;
    float outer_cone;
} g3d_light_uniform;

typedef struct {
    uint32_t layer_mask;
    g3d_light_uniform uniform;
} g3d_light_desc;

typedef struct {
    uint64_t frame;
    int32_t written;
    int32_t skipped;
    int32_t failed;
    int32_t retargets;
    int32_t resized;
} g3d_frame_result;
*/
import "C"

import (
	"unsafe"

	"github.com/gogpu/g3d"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func result(err error) C.g3d_result {
	return C.g3d_result(g3d.ResultOf(err))
}

func engineOf(h C.g3d_engine) (*g3d.Engine, bool) {
	return lookupHandle[*g3d.Engine](uint64(h._h))
}

func floats(dst []float32, src []C.float) {
	for i := range dst {
		dst[i] = float32(src[i])
	}
}

func goBytes(ptr *C.uint8_t, length C.size_t) []byte {
	if ptr == nil || length == 0 {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(ptr), C.int(length))
}

// ==========================================================================
// Library
// ==========================================================================

//export g3d_api_version
func g3d_api_version(major, minor *C.int) {
	if major != nil {
		*major = C.G3D_API_VERSION_MAJOR
	}
	if minor != nil {
		*minor = C.G3D_API_VERSION_MINOR
	}
}

//export g3d_result_string
func g3d_result_string(code C.g3d_result) *C.char {
	return C.CString(g3d.Result(code).String())
}

//export g3d_free_string
func g3d_free_string(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

//export g3d_free_buffer
func g3d_free_buffer(buf *C.uint8_t) {
	if buf != nil {
		C.free(unsafe.Pointer(buf))
	}
}

// ==========================================================================
// Engine lifecycle
// ==========================================================================

// g3d_new creates an engine from an optional YAML config. The render
// thread check is always on across the C boundary.
//
//export g3d_new
func g3d_new(config *C.uint8_t, configLen C.size_t, out *C.g3d_engine) C.g3d_result {
	if out == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	cfg, err := g3d.ParseConfig(goBytes(config, configLen))
	if err != nil {
		return C.G3D_INVALID_ARGUMENT
	}
	e, err := g3d.New(g3d.WithConfig(cfg), g3d.WithThreadCheck(true))
	if err != nil {
		return result(err)
	}
	out._h = C.uint64_t(newHandle(e))
	return C.G3D_SUCCESS
}

// g3d_init opens a device on backend. The calling thread becomes the
// render thread.
//
//export g3d_init
func g3d_init(h C.g3d_engine, backend C.g3d_backend) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	switch backend {
	case C.G3D_BACKEND_NOOP:
		return result(e.Open(&noop.API{}))
	case C.G3D_BACKEND_VULKAN:
		return result(e.OpenBackend(gputypes.BackendVulkan))
	default:
		return C.G3D_INVALID_ARGUMENT
	}
}

//export g3d_dispose
func g3d_dispose(h C.g3d_engine) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.Dispose())
}

// g3d_destroy releases the handle, disposing the engine first if needed.
//
//export g3d_destroy
func g3d_destroy(h C.g3d_engine) {
	e, ok := releaseHandle[*g3d.Engine](uint64(h._h))
	if ok && e.State() == g3d.StateReady {
		e.Dispose() //nolint:errcheck // handle is gone either way
	}
}

//export g3d_state
func g3d_state(h C.g3d_engine) C.int32_t {
	e, ok := engineOf(h)
	if !ok {
		return -1
	}
	return C.int32_t(e.State())
}

// ==========================================================================
// Buffers
// ==========================================================================

//export g3d_upload_buffer
func g3d_upload_buffer(h C.g3d_engine, id C.uint64_t, tag C.uint32_t, data *C.uint8_t, length C.size_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if data == nil && length > 0 {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.UploadBuffer(uint64(id), uint32(tag), goBytes(data, length)))
}

// g3d_download_buffer hands buffer id to the caller, who frees it with
// g3d_free_buffer. An empty buffer yields a NULL pointer and zero length.
//
//export g3d_download_buffer
func g3d_download_buffer(h C.g3d_engine, id C.uint64_t, out **C.uint8_t, length *C.size_t, tag *C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if out == nil || length == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	*out, *length = nil, 0

	buf, err := e.DownloadBuffer(uint64(id))
	if err != nil {
		return result(err)
	}
	data := buf.Bytes()
	if len(data) > 0 {
		p := C.malloc(C.size_t(len(data)))
		C.memcpy(p, unsafe.Pointer(&data[0]), C.size_t(len(data)))
		*out = (*C.uint8_t)(p)
	}
	*length = C.size_t(len(data))
	if tag != nil {
		*tag = C.uint32_t(buf.Kind)
	}
	buf.Release()
	return C.G3D_SUCCESS
}

//export g3d_publish_stats
func g3d_publish_stats(h C.g3d_engine, id C.uint64_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.PublishStats(uint64(id)))
}

// ==========================================================================
// Frame
// ==========================================================================

//export g3d_tick
func g3d_tick(h C.g3d_engine, applied *C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	n, err := e.Tick()
	if applied != nil {
		*applied = C.uint32_t(n)
	}
	return result(err)
}

//export g3d_sync_frame
func g3d_sync_frame(h C.g3d_engine, out *C.g3d_frame_result) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	res, err := e.SyncFrame()
	if out != nil {
		out.frame = C.uint64_t(res.Frame)
		out.written = C.int32_t(res.Written)
		out.skipped = C.int32_t(res.Skipped)
		out.failed = C.int32_t(res.Failed)
		out.retargets = C.int32_t(res.Retargets)
		out.resized = C.int32_t(res.Resized)
	}
	return result(err)
}

// g3d_prepare_pipeline builds and caches the pipeline for a shader and
// material pair ahead of drawing.
//
//export g3d_prepare_pipeline
func g3d_prepare_pipeline(h C.g3d_engine, shader, material C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	_, err := e.ResolvePipeline(uint32(shader), uint32(material))
	return result(err)
}

// ==========================================================================
// Shaders
// ==========================================================================

//export g3d_create_shader
func g3d_create_shader(h C.g3d_engine, id C.uint32_t, source *C.char) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if source == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.CreateShader(uint32(id), C.GoString(source)))
}

//export g3d_update_shader
func g3d_update_shader(h C.g3d_engine, id C.uint32_t, source *C.char) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if source == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.UpdateShader(uint32(id), C.GoString(source)))
}

//export g3d_dispose_shader
func g3d_dispose_shader(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeShader(uint32(id)))
}

// ==========================================================================
// Geometry
// ==========================================================================

func vertexLayout(l *C.g3d_vertex_layout) g3d.VertexLayout {
	if l == nil || l.stride == 0 {
		return g3d.PositionOnlyLayout
	}
	out := g3d.VertexLayout{Stride: uint64(l.stride)}
	if l.attributes != nil && l.attribute_count > 0 {
		for _, a := range unsafe.Slice(l.attributes, int(l.attribute_count)) {
			out.Attributes = append(out.Attributes, gputypes.VertexAttribute{
				Format:         gputypes.VertexFormat(a.format),
				Offset:         uint64(a.offset),
				ShaderLocation: uint32(a.location),
			})
		}
	}
	return out
}

func geometryDesc(layout *C.g3d_vertex_layout, vertices, indices C.uint64_t, index32 C.bool) g3d.GeometryDesc {
	desc := g3d.GeometryDesc{
		Layout:       vertexLayout(layout),
		VertexBuffer: uint64(vertices),
		IndexBuffer:  uint64(indices),
		IndexFormat:  g3d.IndexUint16,
	}
	if index32 {
		desc.IndexFormat = g3d.IndexUint32
	}
	return desc
}

// g3d_create_geometry consumes the vertex buffer and, if nonzero, the
// index buffer. A NULL layout means float32x3 positions.
//
//export g3d_create_geometry
func g3d_create_geometry(h C.g3d_engine, id C.uint32_t, layout *C.g3d_vertex_layout, vertices, indices C.uint64_t, index32 C.bool) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.CreateGeometry(uint32(id), geometryDesc(layout, vertices, indices, index32)))
}

//export g3d_update_geometry
func g3d_update_geometry(h C.g3d_engine, id C.uint32_t, layout *C.g3d_vertex_layout, vertices, indices C.uint64_t, index32 C.bool) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.UpdateGeometry(uint32(id), geometryDesc(layout, vertices, indices, index32)))
}

//export g3d_dispose_geometry
func g3d_dispose_geometry(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeGeometry(uint32(id)))
}

// ==========================================================================
// Textures
// ==========================================================================

//export g3d_create_texture
func g3d_create_texture(h C.g3d_engine, id, width, height C.uint32_t, pixels C.uint64_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.CreateTexture(uint32(id), g3d.TextureDesc{
		Width: uint32(width), Height: uint32(height), Buffer: uint64(pixels),
	}))
}

//export g3d_update_texture
func g3d_update_texture(h C.g3d_engine, id, width, height C.uint32_t, pixels C.uint64_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.UpdateTexture(uint32(id), g3d.TextureDesc{
		Width: uint32(width), Height: uint32(height), Buffer: uint64(pixels),
	}))
}

//export g3d_decode_texture
func g3d_decode_texture(h C.g3d_engine, id C.uint32_t, image C.uint64_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DecodeTexture(uint32(id), uint64(image)))
}

//export g3d_dispose_texture
func g3d_dispose_texture(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeTexture(uint32(id)))
}

// ==========================================================================
// Materials
// ==========================================================================

func materialDesc(d *C.g3d_material_desc) g3d.MaterialDesc {
	spec := g3d.DefaultPipelineSpec()
	spec.Blend = g3d.BlendMode(d.blend)
	spec.CullBack = !bool(d.double_sided)
	if d.no_depth {
		spec.DepthTest, spec.DepthWrite = false, false
	}
	u := &d.uniform
	desc := g3d.MaterialDesc{
		Shader:  uint32(d.shader),
		Texture: uint32(d.texture),
		Spec:    spec,
		Layout:  vertexLayout(&d.layout),
		Uniform: g3d.MaterialUniform{
			Metallic:    float32(u.metallic),
			Roughness:   float32(u.roughness),
			AlphaCutoff: float32(u.alpha_cutoff),
			Flags:       uint32(u.flags),
		},
	}
	floats(desc.Uniform.BaseColor[:], u.base_color[:])
	floats(desc.Uniform.Emissive[:], u.emissive[:])
	return desc
}

//export g3d_create_material
func g3d_create_material(h C.g3d_engine, id C.uint32_t, desc *C.g3d_material_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.CreateMaterial(uint32(id), materialDesc(desc)))
}

//export g3d_update_material
func g3d_update_material(h C.g3d_engine, id C.uint32_t, desc *C.g3d_material_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.UpdateMaterial(uint32(id), materialDesc(desc)))
}

//export g3d_dispose_material
func g3d_dispose_material(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeMaterial(uint32(id)))
}

// ==========================================================================
// Cameras
// ==========================================================================

func cameraDesc(d *C.g3d_camera_desc) g3d.CameraDesc {
	u := &d.uniform
	desc := g3d.CameraDesc{
		Active:    bool(d.active),
		Width:     uint32(d.width),
		Height:    uint32(d.height),
		LayerMask: uint32(d.layer_mask),
		Uniform: g3d.CameraUniform{
			Near:     float32(u.near_plane),
			Far:      float32(u.far_plane),
			Exposure: float32(u.exposure),
		},
	}
	floats(desc.Uniform.ViewProj[:], u.view_proj[:])
	floats(desc.Uniform.View[:], u.view[:])
	floats(desc.Uniform.Position[:], u.position[:])
	floats(desc.Uniform.Viewport[:], u.viewport[:])
	return desc
}

//export g3d_create_camera
func g3d_create_camera(h C.g3d_engine, id C.uint32_t, desc *C.g3d_camera_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.CreateCamera(uint32(id), cameraDesc(desc)))
}

//export g3d_update_camera
func g3d_update_camera(h C.g3d_engine, id C.uint32_t, desc *C.g3d_camera_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.UpdateCamera(uint32(id), cameraDesc(desc)))
}

//export g3d_dispose_camera
func g3d_dispose_camera(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeCamera(uint32(id)))
}

// ==========================================================================
// Models
// ==========================================================================

func modelDesc(d *C.g3d_model_desc) g3d.ModelDesc {
	u := &d.uniform
	desc := g3d.ModelDesc{
		Geometry:  uint32(d.geometry),
		Material:  uint32(d.material),
		LayerMask: uint32(d.layer_mask),
		Uniform:   g3d.ModelUniform{Flags: uint32(u.flags)},
	}
	floats(desc.Uniform.World[:], u.world[:])
	floats(desc.Uniform.Normal[:], u.normal[:])
	floats(desc.Uniform.Tint[:], u.tint[:])
	return desc
}

//export g3d_create_model
func g3d_create_model(h C.g3d_engine, id C.uint32_t, desc *C.g3d_model_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.CreateModel(uint32(id), modelDesc(desc)))
}

//export g3d_update_model
func g3d_update_model(h C.g3d_engine, id C.uint32_t, desc *C.g3d_model_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.UpdateModel(uint32(id), modelDesc(desc)))
}

// g3d_set_model_bones writes count column-major 4x4 float matrices.
//
//export g3d_set_model_bones
func g3d_set_model_bones(h C.g3d_engine, id C.uint32_t, matrices *C.float, count C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if matrices == nil && count > 0 {
		return C.G3D_INVALID_ARGUMENT
	}
	size := C.size_t(count) * g3d.BoneMatrixSize
	return result(e.SetModelBones(uint32(id), goBytes((*C.uint8_t)(unsafe.Pointer(matrices)), size)))
}

//export g3d_dispose_model
func g3d_dispose_model(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeModel(uint32(id)))
}

// ==========================================================================
// Lights
// ==========================================================================

func lightDesc(d *C.g3d_light_desc) g3d.LightDesc {
	u := &d.uniform
	desc := g3d.LightDesc{
		LayerMask: uint32(d.layer_mask),
		Uniform: g3d.LightUniform{
			Range:     float32(u._range),
			Kind:      g3d.LightKind(u.kind),
			Intensity: float32(u.intensity),
			InnerCone: float32(u.inner_cone),
			OuterCone: float32(u.outer_cone),
		},
	}
	floats(desc.Uniform.Position[:], u.position[:])
	floats(desc.Uniform.Direction[:], u.direction[:])
	floats(desc.Uniform.Color[:], u.color[:])
	return desc
}

//export g3d_create_light
func g3d_create_light(h C.g3d_engine, id C.uint32_t, desc *C.g3d_light_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.CreateLight(uint32(id), lightDesc(desc)))
}

//export g3d_update_light
func g3d_update_light(h C.g3d_engine, id C.uint32_t, desc *C.g3d_light_desc) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	if desc == nil {
		return C.G3D_INVALID_ARGUMENT
	}
	return result(e.UpdateLight(uint32(id), lightDesc(desc)))
}

//export g3d_dispose_light
func g3d_dispose_light(h C.g3d_engine, id C.uint32_t) C.g3d_result {
	e, ok := engineOf(h)
	if !ok {
		return C.G3D_NOT_INITIALIZED
	}
	return result(e.DisposeLight(uint32(id)))
}

func main() {}

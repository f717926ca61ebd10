package g3d

import (
	"github.com/gogpu/g3d/internal/alloc"
	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/g3d/internal/registry"
	"github.com/gogpu/gputypes"
)

// Payload types shared with the internal packages.
type (
	VertexLayout    = gpu.VertexLayout
	PipelineSpec    = gpu.PipelineSpec
	BlendMode       = gpu.BlendMode
	IndexFormat     = registry.IndexFormat
	CameraUniform   = registry.CameraUniform
	ModelUniform    = registry.ModelUniform
	MaterialUniform = registry.MaterialUniform
	LightUniform    = registry.LightUniform
	LightKind       = registry.LightKind
)

// Re-exported constants.
const (
	BlendOpaque        = gpu.BlendOpaque
	BlendPremultiplied = gpu.BlendPremultiplied

	IndexUint16 = registry.IndexUint16
	IndexUint32 = registry.IndexUint32

	LightDirectional = registry.LightDirectional
	LightPoint       = registry.LightPoint
	LightSpot        = registry.LightSpot

	// AllLayers is the default layer mask.
	AllLayers = registry.AllLayers

	// MaxBonesPerSkeleton bounds SetModelBones.
	MaxBonesPerSkeleton = alloc.MaxBonesPerSkeleton

	// BoneMatrixSize is the byte size of one bone matrix.
	BoneMatrixSize = gpu.BoneMatrixSize
)

// PositionOnlyLayout is a single float32x3 position stream.
var PositionOnlyLayout = gpu.PositionOnlyLayout

// DefaultPipelineSpec returns an opaque, depth-tested triangle pipeline.
func DefaultPipelineSpec() PipelineSpec { return gpu.DefaultPipelineSpec() }

// Default uniform payloads.
var (
	DefaultCameraUniform   = registry.DefaultCameraUniform
	DefaultModelUniform    = registry.DefaultModelUniform
	DefaultMaterialUniform = registry.DefaultMaterialUniform
	DefaultLightUniform    = registry.DefaultLightUniform
)

// GeometryDesc describes a geometry. Vertex and index data come either
// inline or from uploaded buffers, which are consumed.
type GeometryDesc struct {
	Layout VertexLayout

	Vertices     []byte
	VertexBuffer uint64 // UploadVertex id, used when Vertices is nil

	Indices     []byte
	IndexBuffer uint64 // UploadIndex id, used when Indices is nil
	IndexFormat IndexFormat
}

// TextureDesc describes an RGBA8 texture.
type TextureDesc struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat

	Pixels []byte
	Buffer uint64 // UploadTexture id, used when Pixels is nil
}

// MaterialDesc describes a material. Texture zero means none.
type MaterialDesc struct {
	Shader  uint32
	Texture uint32
	Spec    PipelineSpec
	Layout  VertexLayout
	Uniform MaterialUniform
}

// CameraDesc describes a camera. Zero width or height skips render
// targets; an undefined format takes the configured color format.
type CameraDesc struct {
	Active    bool
	Width     uint32
	Height    uint32
	Format    gputypes.TextureFormat
	LayerMask uint32
	Uniform   CameraUniform
}

// ModelDesc describes a model. Bone fields of Uniform are owned by
// SetModelBones and ignored here.
type ModelDesc struct {
	Geometry  uint32
	Material  uint32
	LayerMask uint32
	Uniform   ModelUniform
}

// LightDesc describes a light.
type LightDesc struct {
	LayerMask uint32
	Uniform   LightUniform
}

func layerMask(m uint32) uint32 {
	if m == 0 {
		return AllLayers
	}
	return m
}

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Bind group indices shared by every material shader.
//
//	@group(0) camera uniforms
//	@group(1) model uniforms + bone matrices
//	@group(2) material uniforms + base color texture + sampler
const (
	CameraGroup   = 0
	ModelGroup    = 1
	MaterialGroup = 2
)

// Layouts holds the bind group layouts and the pipeline layout every
// material pipeline is built against, plus the default sampler.
type Layouts struct {
	device hal.Device

	Camera   hal.BindGroupLayout
	Model    hal.BindGroupLayout
	Material hal.BindGroupLayout
	Pipeline hal.PipelineLayout
	Sampler  hal.Sampler
}

// NewLayouts creates the shared layouts. On error everything created so far
// is destroyed.
func NewLayouts(device hal.Device) (*Layouts, error) { //nolint:funlen // layout descriptors are verbose
	l := &Layouts{device: device}

	camera, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "camera_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create camera bind group layout: %w", err)
	}
	l.Camera = camera

	model, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "model_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("create model bind group layout: %w", err)
	}
	l.Model = model

	material, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "material_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("create material bind group layout: %w", err)
	}
	l.Material = material

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "material_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{l.Camera, l.Model, l.Material},
	})
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("create material pipeline layout: %w", err)
	}
	l.Pipeline = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "material_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("create material sampler: %w", err)
	}
	l.Sampler = sampler

	return l, nil
}

// Destroy releases the sampler, the pipeline layout, then the bind group
// layouts. Safe to call on a partially built value.
func (l *Layouts) Destroy() {
	if l.Sampler != nil {
		l.device.DestroySampler(l.Sampler)
		l.Sampler = nil
	}
	if l.Pipeline != nil {
		l.device.DestroyPipelineLayout(l.Pipeline)
		l.Pipeline = nil
	}
	for _, bgl := range []*hal.BindGroupLayout{&l.Material, &l.Model, &l.Camera} {
		if *bgl != nil {
			l.device.DestroyBindGroupLayout(*bgl)
			*bgl = nil
		}
	}
}

// BlendMode selects the color blend state of a material pipeline.
type BlendMode uint8

// Blend modes.
const (
	BlendOpaque BlendMode = iota
	BlendPremultiplied
)

// VertexLayout describes one interleaved vertex stream.
type VertexLayout struct {
	Stride     uint64
	Attributes []gputypes.VertexAttribute
}

// PositionOnlyLayout is a float32x3 position stream.
var PositionOnlyLayout = VertexLayout{
	Stride: 12,
	Attributes: []gputypes.VertexAttribute{
		{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
	},
}

// PipelineSpec is the part of a material that determines its pipeline.
type PipelineSpec struct {
	VertexEntry   string
	FragmentEntry string
	ColorFormat   gputypes.TextureFormat
	Blend         BlendMode
	CullBack      bool
	DepthWrite    bool
	DepthTest     bool
	Lines         bool
}

// DefaultPipelineSpec returns an opaque, depth-tested triangle pipeline.
func DefaultPipelineSpec() PipelineSpec {
	return PipelineSpec{
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		ColorFormat:   DefaultColorFormat,
		Blend:         BlendOpaque,
		CullBack:      true,
		DepthWrite:    true,
		DepthTest:     true,
	}
}

// BuildRenderPipeline compiles the pipeline for one (shader, material) pair.
// It is called on pipeline cache misses.
func BuildRenderPipeline(device hal.Device, layouts *Layouts, label string, module hal.ShaderModule, vertex VertexLayout, spec PipelineSpec) (hal.RenderPipeline, error) {
	if spec.VertexEntry == "" {
		spec.VertexEntry = "vs_main"
	}
	if spec.FragmentEntry == "" {
		spec.FragmentEntry = "fs_main"
	}
	if spec.ColorFormat == gputypes.TextureFormatUndefined {
		spec.ColorFormat = DefaultColorFormat
	}

	target := gputypes.ColorTargetState{
		Format:    spec.ColorFormat,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if spec.Blend == BlendPremultiplied {
		premul := gputypes.BlendStatePremultiplied()
		target.Blend = &premul
	}

	primitive := gputypes.PrimitiveState{
		Topology: gputypes.PrimitiveTopologyTriangleList,
		CullMode: gputypes.CullModeNone,
	}
	if spec.Lines {
		primitive.Topology = gputypes.PrimitiveTopologyLineList
	}
	if spec.CullBack {
		primitive.FrontFace = gputypes.FrontFaceCCW
		primitive.CullMode = gputypes.CullModeBack
	}

	compare := gputypes.CompareFunctionAlways
	if spec.DepthTest {
		compare = gputypes.CompareFunctionLess
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}

	var buffers []gputypes.VertexBufferLayout
	if len(vertex.Attributes) > 0 {
		buffers = []gputypes.VertexBufferLayout{
			{
				ArrayStride: vertex.Stride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  vertex.Attributes,
			},
		}
	}

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layouts.Pipeline,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: spec.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: spec.FragmentEntry,
			Targets:    []gputypes.ColorTargetState{target},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: spec.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0x00,
			StencilWriteMask:  0x00,
		},
		Primitive: primitive,
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	slogger().Debug("gpu: pipeline compiled", "label", label)
	return pipeline, nil
}

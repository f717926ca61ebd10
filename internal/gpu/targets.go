package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Render target defaults.
const (
	DefaultMipChainLength = 6
	DefaultPostTargets    = 2
	DefaultColorFormat    = gputypes.TextureFormatRGBA8Unorm
	DepthFormat           = gputypes.TextureFormatDepth24PlusStencil8
)

// TargetsConfig fixes the shape of every camera's attachment set.
type TargetsConfig struct {
	// MipChainLength is the number of downsampled levels below the color
	// target. Defaults to DefaultMipChainLength if zero.
	MipChainLength int

	// PostTargets is the number of full-size ping-pong targets used by post
	// processing. Defaults to DefaultPostTargets if zero.
	PostTargets int
}

func (c TargetsConfig) withDefaults() TargetsConfig {
	if c.MipChainLength <= 0 {
		c.MipChainLength = DefaultMipChainLength
	}
	if c.PostTargets <= 0 {
		c.PostTargets = DefaultPostTargets
	}
	return c
}

// attachment is one texture and its default view.
type attachment struct {
	tex  hal.Texture
	view hal.TextureView
}

// RenderTargets holds one camera's attachments: color, depth/stencil,
// post-processing targets and a mip chain of separate half-size textures.
// Attachments are created on the first Ensure and recreated only when the
// requested size or format changes.
type RenderTargets struct {
	device hal.Device
	config TargetsConfig

	color attachment
	depth attachment
	post  []attachment
	mips  []attachment

	width, height uint32
	format        gputypes.TextureFormat
	recreations   uint64
}

// NewRenderTargets creates an empty attachment set for a camera.
func NewRenderTargets(device hal.Device, config TargetsConfig) *RenderTargets {
	return &RenderTargets{
		device: device,
		config: config.withDefaults(),
	}
}

// Ensure creates or recreates the attachments for width x height in
// format. It is a no-op when nothing changed and reports whether textures
// were (re)created. On error every partially created resource is released.
func (rt *RenderTargets) Ensure(width, height uint32, format gputypes.TextureFormat) (bool, error) {
	if width == 0 || height == 0 {
		return false, fmt.Errorf("gpu: invalid render target size %dx%d", width, height)
	}
	if format == gputypes.TextureFormatUndefined {
		format = DefaultColorFormat
	}
	if rt.color.tex != nil && rt.width == width && rt.height == height && rt.format == format {
		return false, nil
	}

	rt.destroyTextures()

	color, err := rt.create("camera_color", width, height, format,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopySrc)
	if err != nil {
		return false, err
	}
	rt.color = color

	depth, err := rt.create("camera_depth", width, height, DepthFormat, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		rt.destroyTextures()
		return false, err
	}
	rt.depth = depth

	for i := 0; i < rt.config.PostTargets; i++ {
		a, err := rt.create(fmt.Sprintf("camera_post_%d", i), width, height, format,
			gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
		if err != nil {
			rt.destroyTextures()
			return false, err
		}
		rt.post = append(rt.post, a)
	}

	w, h := width, height
	for i := 0; i < rt.config.MipChainLength; i++ {
		w, h = max(w/2, 1), max(h/2, 1)
		a, err := rt.create(fmt.Sprintf("camera_mip_%d", i), w, h, format,
			gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
		if err != nil {
			rt.destroyTextures()
			return false, err
		}
		rt.mips = append(rt.mips, a)
	}

	rt.width, rt.height, rt.format = width, height, format
	rt.recreations++
	slogger().Debug("gpu: render targets created", "width", width, "height", height, "format", format)
	return true, nil
}

func (rt *RenderTargets) create(label string, width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (attachment, error) {
	tex, err := rt.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return attachment{}, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := rt.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		rt.device.DestroyTexture(tex)
		return attachment{}, fmt.Errorf("create %s texture view: %w", label, err)
	}
	return attachment{tex: tex, view: view}, nil
}

// Destroy releases every attachment. Safe to call more than once.
func (rt *RenderTargets) Destroy() {
	rt.destroyTextures()
}

// ReleaseViews destroys every view and keeps the textures. Bulk teardown
// runs it over all cameras before any texture goes.
func (rt *RenderTargets) ReleaseViews() {
	for _, a := range rt.all() {
		if a.view != nil {
			rt.device.DestroyTextureView(a.view)
			a.view = nil
		}
	}
}

// destroyTextures releases all views, then all textures, and resets the size.
func (rt *RenderTargets) destroyTextures() {
	rt.ReleaseViews()
	for _, a := range rt.all() {
		if a.tex != nil {
			rt.device.DestroyTexture(a.tex)
			a.tex = nil
		}
	}
	rt.post = rt.post[:0]
	rt.mips = rt.mips[:0]
	rt.width, rt.height = 0, 0
	rt.format = gputypes.TextureFormatUndefined
}

func (rt *RenderTargets) all() []*attachment {
	out := []*attachment{&rt.color, &rt.depth}
	for i := range rt.post {
		out = append(out, &rt.post[i])
	}
	for i := range rt.mips {
		out = append(out, &rt.mips[i])
	}
	return out
}

// RenderPassDescriptor returns a pass that clears color and depth. Returns
// nil before Ensure.
func (rt *RenderTargets) RenderPassDescriptor(clearColor gputypes.Color) *hal.RenderPassDescriptor {
	if rt.color.view == nil || rt.depth.view == nil {
		return nil
	}
	return &hal.RenderPassDescriptor{
		Label: "camera_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       rt.color.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: clearColor,
			},
		},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              rt.depth.view,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	}
}

// ColorTexture returns the color attachment, nil before Ensure.
func (rt *RenderTargets) ColorTexture() hal.Texture { return rt.color.tex }

// ColorView returns the color attachment view, nil before Ensure.
func (rt *RenderTargets) ColorView() hal.TextureView { return rt.color.view }

// PostView returns the i-th post-processing target view.
func (rt *RenderTargets) PostView(i int) hal.TextureView {
	if i < 0 || i >= len(rt.post) {
		return nil
	}
	return rt.post[i].view
}

// MipView returns the view of mip level i (level 0 is half size).
func (rt *RenderTargets) MipView(i int) hal.TextureView {
	if i < 0 || i >= len(rt.mips) {
		return nil
	}
	return rt.mips[i].view
}

// MipCount returns the number of mip chain levels currently allocated.
func (rt *RenderTargets) MipCount() int { return len(rt.mips) }

// Size returns the current dimensions, (0, 0) before Ensure.
func (rt *RenderTargets) Size() (uint32, uint32) { return rt.width, rt.height }

// Format returns the current color format.
func (rt *RenderTargets) Format() gputypes.TextureFormat { return rt.format }

// Recreations returns how many times the attachment set was (re)created.
func (rt *RenderTargets) Recreations() uint64 { return rt.recreations }

package gpu

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"
)

// DefaultMaxTextureDimension bounds decoded images; larger ones are scaled
// down preserving aspect ratio.
const DefaultMaxTextureDimension = 4096

// Texture errors.
var (
	// ErrPixelSize is returned when pixel data does not match the texture
	// size times the texel size of its format.
	ErrPixelSize = errors.New("gpu: pixel data size mismatch")

	// ErrTextureFormat is returned for formats that cannot be uploaded as
	// tightly packed texels, such as depth and compressed formats.
	ErrTextureFormat = errors.New("gpu: unsupported texture format")
)

// TexelSize returns the bytes per texel of an uploadable color format.
func TexelSize(f gputypes.TextureFormat) (uint32, bool) {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1, true
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatR16Float:
		return 2, true
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRG16Float, gputypes.TextureFormatR32Float:
		return 4, true
	case gputypes.TextureFormatRGBA16Float:
		return 8, true
	case gputypes.TextureFormatRGBA32Float:
		return 16, true
	default:
		return 0, false
	}
}

// TextureDesc describes a 2D color texture. A zero Format means RGBA8.
type TextureDesc struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
}

// Texture is a sampled 2D texture and its view.
type Texture struct {
	device hal.Device
	queue  hal.Queue
	label  string

	tex  hal.Texture
	view hal.TextureView
	desc TextureDesc
}

// NewTexture creates a texture and uploads pixels, tightly packed at the
// format's texel size.
func NewTexture(device hal.Device, queue hal.Queue, label string, desc TextureDesc, pixels []byte) (*Texture, error) {
	t := &Texture{device: device, queue: queue, label: label}
	if err := t.Update(desc, pixels); err != nil {
		return nil, err
	}
	return t, nil
}

// Update writes new pixels. The GPU texture is recreated only if the size
// or format changed; the old one is released after its replacement exists,
// so a failed Update leaves the texture as it was.
func (t *Texture) Update(desc TextureDesc, pixels []byte) error {
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = gputypes.TextureFormatRGBA8Unorm
	}
	texel, ok := TexelSize(desc.Format)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTextureFormat, desc.Format)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return fmt.Errorf("gpu: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if want := int(desc.Width) * int(desc.Height) * int(texel); len(pixels) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPixelSize, len(pixels), want)
	}

	if t.tex == nil || t.desc != desc {
		tex, err := t.device.CreateTexture(&hal.TextureDescriptor{
			Label: t.label,
			Size: hal.Extent3D{
				Width:              desc.Width,
				Height:             desc.Height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        desc.Format,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create texture %s: %w", t.label, err)
		}
		view, err := t.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         t.label + "_view",
			Format:        desc.Format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			t.device.DestroyTexture(tex)
			return fmt.Errorf("create texture view %s: %w", t.label, err)
		}
		t.Destroy()
		t.tex, t.view, t.desc = tex, view, desc
	}

	t.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
		},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Width * texel,
			RowsPerImage: desc.Height,
		},
		&hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
	)
	return nil
}

// View returns the texture view, nil after Destroy.
func (t *Texture) View() hal.TextureView { return t.view }

// Desc returns the current size and format.
func (t *Texture) Desc() TextureDesc { return t.desc }

// ReleaseView destroys the view and keeps the texture.
func (t *Texture) ReleaseView() {
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
}

// Destroy releases the view, then the texture. Safe to call more than once.
func (t *Texture) Destroy() {
	t.ReleaseView()
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
		t.tex = nil
	}
	t.desc = TextureDesc{}
}

// DecodeRGBA decodes an encoded PNG or JPEG image into tightly packed RGBA
// pixels no larger than maxDim on either side.
func DecodeRGBA(data []byte, maxDim int) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return RGBAFromImage(img, maxDim), nil
}

// RGBAFromImage converts img to RGBA with a zero origin. Images larger than
// maxDim on either side are scaled down with Catmull-Rom filtering; a
// maxDim of zero disables scaling.
func RGBAFromImage(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = max(h*maxDim/w, 1)
			w = maxDim
		} else {
			w = max(w*maxDim/h, 1)
			h = maxDim
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		return dst
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == w*4 {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

package registry

import (
	"encoding/binary"
	"math"
)

// Uniform payloads are plain values with a fixed std140-compatible layout.
// Bytes packs them little-endian in WGSL field order.

// Identity is the 4x4 identity matrix in column-major order.
var Identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

type packer struct {
	buf []byte
	off int
}

func newPacker(size int) *packer { return &packer{buf: make([]byte, size)} }

func (p *packer) f32(vs ...float32) {
	for _, v := range vs {
		binary.LittleEndian.PutUint32(p.buf[p.off:], math.Float32bits(v))
		p.off += 4
	}
}

func (p *packer) u32(vs ...uint32) {
	for _, v := range vs {
		binary.LittleEndian.PutUint32(p.buf[p.off:], v)
		p.off += 4
	}
}

// CameraUniformSize is the packed size of CameraUniform.
const CameraUniformSize = 160

// CameraUniform is the per-camera block at @group(0) @binding(0).
type CameraUniform struct {
	ViewProj [16]float32
	View     [16]float32
	Position [3]float32
	Near     float32
	Viewport [2]float32
	Far      float32
	Exposure float32
}

// DefaultCameraUniform returns identity matrices and unit exposure.
func DefaultCameraUniform() CameraUniform {
	return CameraUniform{ViewProj: Identity, View: Identity, Near: 0.1, Far: 1000, Exposure: 1}
}

// Bytes packs u.
func (u *CameraUniform) Bytes() []byte {
	p := newPacker(CameraUniformSize)
	p.f32(u.ViewProj[:]...)
	p.f32(u.View[:]...)
	p.f32(u.Position[:]...)
	p.f32(u.Near)
	p.f32(u.Viewport[:]...)
	p.f32(u.Far, u.Exposure)
	return p.buf
}

// ModelUniformSize is the packed size of ModelUniform.
const ModelUniformSize = 160

// ModelUniform is the per-model block at @group(1) @binding(0).
// BoneOffset and BoneCount index the bone storage buffer; BoneCount is zero
// for rigid models.
type ModelUniform struct {
	World      [16]float32
	Normal     [16]float32
	Tint       [4]float32
	BoneOffset uint32
	BoneCount  uint32
	Flags      uint32
}

// DefaultModelUniform returns an identity transform with a white tint.
func DefaultModelUniform() ModelUniform {
	return ModelUniform{World: Identity, Normal: Identity, Tint: [4]float32{1, 1, 1, 1}}
}

// Bytes packs u.
func (u *ModelUniform) Bytes() []byte {
	p := newPacker(ModelUniformSize)
	p.f32(u.World[:]...)
	p.f32(u.Normal[:]...)
	p.f32(u.Tint[:]...)
	p.u32(u.BoneOffset, u.BoneCount, u.Flags, 0)
	return p.buf
}

// MaterialUniformSize is the packed size of MaterialUniform.
const MaterialUniformSize = 48

// MaterialUniform is the per-material block at @group(2) @binding(0).
type MaterialUniform struct {
	BaseColor   [4]float32
	Emissive    [4]float32
	Metallic    float32
	Roughness   float32
	AlphaCutoff float32
	Flags       uint32
}

// DefaultMaterialUniform returns an opaque white dielectric.
func DefaultMaterialUniform() MaterialUniform {
	return MaterialUniform{BaseColor: [4]float32{1, 1, 1, 1}, Roughness: 1, AlphaCutoff: 0.5}
}

// Bytes packs u.
func (u *MaterialUniform) Bytes() []byte {
	p := newPacker(MaterialUniformSize)
	p.f32(u.BaseColor[:]...)
	p.f32(u.Emissive[:]...)
	p.f32(u.Metallic, u.Roughness, u.AlphaCutoff)
	p.u32(u.Flags)
	return p.buf
}

// LightKind selects the light model.
type LightKind uint32

// Light kinds.
const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

// LightUniformSize is the packed size of LightUniform.
const LightUniformSize = 64

// LightUniform is one light's block.
type LightUniform struct {
	Position  [3]float32
	Range     float32
	Direction [3]float32
	Kind      LightKind
	Color     [3]float32
	Intensity float32
	InnerCone float32
	OuterCone float32
}

// DefaultLightUniform returns a white directional light pointing down.
func DefaultLightUniform() LightUniform {
	return LightUniform{
		Direction: [3]float32{0, -1, 0},
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Range:     10,
	}
}

// Bytes packs u.
func (u *LightUniform) Bytes() []byte {
	p := newPacker(LightUniformSize)
	p.f32(u.Position[:]...)
	p.f32(u.Range)
	p.f32(u.Direction[:]...)
	p.u32(uint32(u.Kind))
	p.f32(u.Color[:]...)
	p.f32(u.Intensity, u.InnerCone, u.OuterCone)
	p.u32(0, 0)
	return p.buf
}

package registry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/google/go-cmp/cmp"
)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	dev, err := gpu.OpenDevice(&noop.API{})
	if err != nil {
		t.Fatalf("OpenDevice failed: %v", err)
	}
	return dev.Device, dev.Queue, dev.Close
}

// recordingDevice logs destroy calls in order.
type recordingDevice struct {
	hal.Device
	events []string
}

func (d *recordingDevice) DestroyTextureView(v hal.TextureView) {
	d.events = append(d.events, "view")
	d.Device.DestroyTextureView(v)
}

func (d *recordingDevice) DestroyTexture(t hal.Texture) {
	d.events = append(d.events, "texture")
	d.Device.DestroyTexture(t)
}

func (d *recordingDevice) DestroyShaderModule(m hal.ShaderModule) {
	d.events = append(d.events, "shader")
	d.Device.DestroyShaderModule(m)
}

// fakeWriter is an in-memory RegionWriter. Writes at offsets listed in
// failAt return an error.
type fakeWriter struct {
	next   map[gpu.RegionClass]uint64
	writes map[gpu.RegionClass]map[uint64][]byte
	freed  []uint64
	failAt map[uint64]bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		next:   map[gpu.RegionClass]uint64{},
		writes: map[gpu.RegionClass]map[uint64][]byte{},
		failAt: map[uint64]bool{},
	}
}

func (w *fakeWriter) Allocate(class gpu.RegionClass, size uint64) (uint64, error) {
	off := w.next[class]
	w.next[class] = off + alignUp(size, 256)
	return off, nil
}

func (w *fakeWriter) Write(class gpu.RegionClass, offset uint64, data []byte) error {
	if w.failAt[offset] {
		return fmt.Errorf("write at %d: %w", offset, gpu.ErrOutOfBounds)
	}
	if w.writes[class] == nil {
		w.writes[class] = map[uint64][]byte{}
	}
	w.writes[class][offset] = append([]byte(nil), data...)
	return nil
}

func (w *fakeWriter) Free(_ gpu.RegionClass, offset uint64) {
	w.freed = append(w.freed, offset)
}

func alignUp(v, a uint64) uint64 { return (v + a - 1) &^ (a - 1) }

func TestTableCollisionAndNotFound(t *testing.T) {
	tab := NewTable[*Light]("light")
	if err := tab.Insert(7, NewLight(7)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	first, _ := tab.Get(7)
	if err := tab.Insert(7, NewLight(7)); !errors.Is(err, ErrIDCollision) {
		t.Errorf("Insert(live id) = %v, want ErrIDCollision", err)
	}
	if got, _ := tab.Get(7); got != first {
		t.Error("collision replaced the live record")
	}

	if _, err := tab.Remove(8); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(unknown) = %v, want ErrNotFound", err)
	}
	if err := Update(tab, 8, func(*Light) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(unknown) = %v, want ErrNotFound", err)
	}

	tab.Insert(3, NewLight(3))
	tab.Insert(11, NewLight(11))
	if diff := cmp.Diff([]uint32{3, 7, 11}, tab.IDs()); diff != "" {
		t.Errorf("IDs() (-want +got):\n%s", diff)
	}
	if _, err := tab.Remove(7); err != nil {
		t.Errorf("Remove(live) = %v", err)
	}
	if tab.Has(7) || tab.Len() != 2 {
		t.Errorf("after Remove: Has(7)=%v Len()=%d", tab.Has(7), tab.Len())
	}
}

func TestUniformSizes(t *testing.T) {
	cam := DefaultCameraUniform()
	model := DefaultModelUniform()
	mat := DefaultMaterialUniform()
	light := DefaultLightUniform()

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"camera", len(cam.Bytes()), CameraUniformSize},
		{"model", len(model.Bytes()), ModelUniformSize},
		{"material", len(mat.Bytes()), MaterialUniformSize},
		{"light", len(light.Bytes()), LightUniformSize},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s uniform packs to %d bytes, want %d", tt.name, tt.got, tt.want)
		}
		if tt.want%16 != 0 {
			t.Errorf("%s uniform size %d not a multiple of 16", tt.name, tt.want)
		}
	}
}

func TestSyncDirtyLifecycle(t *testing.T) {
	r := NewComponentRegistry(nil, gpu.TargetsConfig{})
	w := newFakeWriter()

	r.Models.Insert(1, NewModel(1, 10, 20))
	r.Lights.Insert(2, NewLight(2))

	if n := r.DirtyCount(); n != 2 {
		t.Fatalf("DirtyCount() after create = %d, want 2", n)
	}
	res := r.Sync(w)
	if res.Err != nil || res.Written != 2 {
		t.Fatalf("Sync() = %+v, want 2 written", res)
	}
	if n := r.DirtyCount(); n != 0 {
		t.Errorf("DirtyCount() after Sync = %d, want 0", n)
	}

	m, _ := r.Models.Get(1)
	off := m.Offset
	if err := Update(r.Models, 1, func(m *Model) { m.Uniform.Tint = [4]float32{1, 0, 0, 1} }); err != nil {
		t.Fatal(err)
	}
	if !m.Dirty {
		t.Fatal("Update did not mark the model dirty")
	}
	res = r.Sync(w)
	if res.Written != 1 {
		t.Errorf("second Sync wrote %d records, want 1", res.Written)
	}
	if m.Offset != off {
		t.Errorf("slot moved from %d to %d", off, m.Offset)
	}
	if got := w.writes[gpu.RegionModel][off]; !cmp.Equal(got, m.Uniform.Bytes()) {
		t.Error("region holds a stale model payload")
	}

	// Nothing dirty: nothing written.
	if res := r.Sync(w); res.Written != 0 {
		t.Errorf("idle Sync wrote %d records", res.Written)
	}
}

func TestSyncFailureKeepsDirty(t *testing.T) {
	r := NewComponentRegistry(nil, gpu.TargetsConfig{})
	w := newFakeWriter()
	r.Lights.Insert(1, NewLight(1))
	r.Lights.Insert(2, NewLight(2))

	w.failAt[256] = true
	res := r.Sync(w)
	if res.Written != 1 || res.Failed != 1 || !errors.Is(res.Err, gpu.ErrOutOfBounds) {
		t.Fatalf("Sync() = %+v, want 1 written, 1 failed", res)
	}
	l2, _ := r.Lights.Get(2)
	if !l2.Dirty {
		t.Error("failed record was cleaned")
	}

	delete(w.failAt, 256)
	if res := r.Sync(w); res.Written != 1 || res.Err != nil {
		t.Errorf("retry Sync() = %+v, want 1 written", res)
	}
	if l2.Dirty {
		t.Error("retried record still dirty")
	}
}

func TestSyncInactiveCameraStaysDirty(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	r := NewComponentRegistry(device, gpu.TargetsConfig{MipChainLength: 2, PostTargets: 1})
	defer r.DropAll()
	w := newFakeWriter()

	cam := NewCamera(1)
	cam.Width, cam.Height = 64, 32
	r.Cameras.Insert(1, cam)

	res := r.Sync(w)
	if res.Skipped != 1 || res.Written != 0 {
		t.Fatalf("Sync() = %+v, want the inactive camera skipped", res)
	}
	if !cam.Dirty || cam.Placed || cam.Targets != nil {
		t.Error("inactive camera was processed")
	}

	Update(r.Cameras, 1, func(c *Camera) { c.Active = true })
	res = r.Sync(w)
	if res.Written != 1 || res.Retarget != 1 || res.Err != nil {
		t.Fatalf("Sync() = %+v, want camera written with new targets", res)
	}
	if cam.Dirty || cam.Targets == nil {
		t.Fatal("active camera not synced")
	}
	if w, h := cam.Targets.Size(); w != 64 || h != 32 {
		t.Errorf("targets size = %dx%d, want 64x32", w, h)
	}

	// Same size: no recreation.
	Update(r.Cameras, 1, func(c *Camera) { c.Uniform.Exposure = 2 })
	if res := r.Sync(w); res.Retarget != 0 {
		t.Errorf("unchanged size recreated targets")
	}
	Update(r.Cameras, 1, func(c *Camera) { c.Width = 128 })
	if res := r.Sync(w); res.Retarget != 1 {
		t.Errorf("resized camera did not recreate targets")
	}
	if cam.Targets.Recreations() != 2 {
		t.Errorf("Recreations() = %d, want 2", cam.Targets.Recreations())
	}
}

func TestPlaceAndMarkClassDirty(t *testing.T) {
	r := NewComponentRegistry(nil, gpu.TargetsConfig{})
	w := newFakeWriter()
	for id := uint32(1); id <= 3; id++ {
		r.Models.Insert(id, NewModel(id, 1, 1))
	}
	r.Lights.Insert(9, NewLight(9))

	if err := r.Place(w); err != nil {
		t.Fatal(err)
	}
	got := map[uint32]uint64{}
	r.Models.Each(func(id uint32, m *Model) { got[id] = m.Offset })
	if diff := cmp.Diff(map[uint32]uint64{1: 0, 2: 256, 3: 512}, got); diff != "" {
		t.Errorf("model offsets (-want +got):\n%s", diff)
	}
	r.Sync(w)

	if n := r.MarkClassDirty(gpu.RegionModel); n != 3 {
		t.Errorf("MarkClassDirty(model) = %d, want 3", n)
	}
	if n := r.DirtyCount(); n != 3 {
		t.Errorf("DirtyCount() = %d, want only the models", n)
	}
}

func TestRemoveFreesSlot(t *testing.T) {
	r := NewComponentRegistry(nil, gpu.TargetsConfig{})
	w := newFakeWriter()
	r.Models.Insert(1, NewModel(1, 4, 5))
	r.Models.Insert(2, NewModel(2, 6, 5))
	r.Sync(w)

	if diff := cmp.Diff([]uint32{1, 2}, r.ModelsUsing(0, 5)); diff != "" {
		t.Errorf("ModelsUsing(material) (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{2}, r.ModelsUsing(6, 0)); diff != "" {
		t.Errorf("ModelsUsing(geometry) (-want +got):\n%s", diff)
	}

	m, err := r.RemoveModel(w, 2)
	if err != nil || m.ID != 2 {
		t.Fatalf("RemoveModel = %v, %v", m, err)
	}
	if diff := cmp.Diff([]uint64{256}, w.freed); diff != "" {
		t.Errorf("freed (-want +got):\n%s", diff)
	}
	if _, err := r.RemoveModel(w, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveModel = %v, want ErrNotFound", err)
	}
	if err := r.RemoveLight(w, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveLight(unknown) = %v, want ErrNotFound", err)
	}
}

// Every mutation leaves the record dirty and only a successful Sync
// cleans it, under any interleaving.
func TestDirtyProtocolRandom(t *testing.T) {
	for seed := uint64(1); seed <= 4; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7))
		r := NewComponentRegistry(nil, gpu.TargetsConfig{})
		w := newFakeWriter()
		for i := 0; i < 500; i++ {
			id := uint32(rng.IntN(8)) + 1
			switch rng.IntN(4) {
			case 0:
				r.Lights.Insert(id, NewLight(id))
			case 1:
				if Update(r.Lights, id, func(l *Light) { l.Uniform.Intensity = rng.Float32() }) == nil {
					if l, _ := r.Lights.Get(id); !l.Dirty {
						t.Fatalf("seed %d step %d: update left light %d clean", seed, i, id)
					}
				}
			case 2:
				r.RemoveLight(w, id)
			case 3:
				res := r.Sync(w)
				if res.Err != nil {
					t.Fatalf("seed %d: Sync error %v", seed, res.Err)
				}
				if r.DirtyCount() != 0 {
					t.Fatalf("seed %d step %d: dirty records after Sync", seed, i)
				}
				r.Lights.Each(func(id uint32, l *Light) {
					if !cmp.Equal(w.writes[gpu.RegionLight][l.Offset], l.Uniform.Bytes()) {
						t.Fatalf("seed %d: light %d payload mismatch after Sync", seed, id)
					}
				})
			}
		}
	}
}

func TestDropAllOrder(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	rec := &recordingDevice{Device: device}

	comps := NewComponentRegistry(rec, gpu.TargetsConfig{MipChainLength: 1, PostTargets: 1})
	for id := uint32(1); id <= 2; id++ {
		cam := NewCamera(id)
		cam.Active, cam.Width, cam.Height = true, 16, 16
		comps.Cameras.Insert(id, cam)
	}
	if res := comps.Sync(newFakeWriter()); res.Err != nil {
		t.Fatal(res.Err)
	}

	res := NewResourceRegistry()
	pool := gpu.NewGeometryPool(rec, queue, gpu.GeometryConfig{})
	defer pool.Destroy()

	tex, err := gpu.NewTexture(rec, queue, "albedo", gpu.TextureDesc{Width: 2, Height: 2, Format: gputypes.TextureFormatRGBA8Unorm}, make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	res.Textures.Insert(1, &Texture{ID: 1, Tex: tex})
	module, err := gpu.CreateShaderModule(rec, "s", "@vertex fn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }", false)
	if err != nil {
		t.Fatal(err)
	}
	res.Shaders.Insert(1, &Shader{ID: 1, Module: module})
	slice, err := pool.Store(1, make([]byte, 36), nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Geometries.Insert(1, &Geometry{ID: 1, Slice: slice, VertexCount: 3})
	res.Materials.Insert(1, &Material{ID: 1, Shader: 1, Texture: 1})

	rec.events = nil
	comps.DropAll()
	res.DropAll(rec, pool)

	// Two cameras with color, depth, one post and one mip attachment each.
	var want []string
	for i := 0; i < 8; i++ {
		want = append(want, "view")
	}
	for i := 0; i < 8; i++ {
		want = append(want, "texture")
	}
	want = append(want, "view", "texture", "shader")
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("teardown order (-want +got):\n%s", diff)
	}

	for kind, n := range res.Counts() {
		if n != 0 {
			t.Errorf("%d %s records after DropAll", n, kind)
		}
	}
	for kind, n := range comps.Counts() {
		if n != 0 {
			t.Errorf("%d %s records after DropAll", n, kind)
		}
	}
	if _, ok := pool.Slice(1); ok {
		t.Error("geometry range survived DropAll")
	}
}

func TestMaterialsUsing(t *testing.T) {
	r := NewResourceRegistry()
	r.Materials.Insert(1, &Material{ID: 1, Shader: 5, Texture: 9})
	r.Materials.Insert(2, &Material{ID: 2, Shader: 6, Texture: 9})
	r.Materials.Insert(3, &Material{ID: 3, Shader: 5})

	if diff := cmp.Diff([]uint32{1, 3}, r.MaterialsUsingShader(5)); diff != "" {
		t.Errorf("MaterialsUsingShader (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{1, 2}, r.MaterialsUsingTexture(9)); diff != "" {
		t.Errorf("MaterialsUsingTexture (-want +got):\n%s", diff)
	}
}

// Command g3ddemo drives a g3d engine through a small animated scene and
// prints the final engine stats as YAML.
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/g3d"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	_ "github.com/gogpu/wgpu/hal/vulkan"
)

const shaderSource = `
struct Camera { view_proj: mat4x4<f32> };
struct Model { world: mat4x4<f32> };

@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var<uniform> model: Model;

@vertex
fn vs_main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> {
    return camera.view_proj * model.world * vec4<f32>(pos, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.5, 0.2, 1.0);
}
`

func main() {
	var (
		frames  = flag.Int("frames", 120, "frames to simulate")
		config  = flag.String("config", "", "YAML config file")
		backend = flag.String("backend", "noop", "GPU backend: noop or vulkan")
		width   = flag.Uint("width", 1280, "camera width")
		height  = flag.Uint("height", 720, "camera height")
		models  = flag.Int("models", 64, "number of models")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		g3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := g3d.DefaultConfig()
	if *config != "" {
		var err error
		if cfg, err = g3d.LoadConfig(*config); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	e, err := g3d.New(g3d.WithConfig(cfg), g3d.WithMetricsRegisterer(reg))
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	switch *backend {
	case "noop":
		err = e.Open(&noop.API{})
	case "vulkan":
		err = e.OpenBackend(gputypes.BackendVulkan)
	default:
		log.Fatalf("Unknown backend %q", *backend)
	}
	if err != nil {
		log.Fatalf("Failed to open %s device: %v", *backend, err)
	}
	defer e.Dispose() //nolint:errcheck // process exit

	if err := buildScene(e, uint32(*width), uint32(*height), *models); err != nil { //nolint:gosec // flag values
		log.Fatalf("Failed to build scene: %v", err)
	}

	for frame := 0; frame < *frames; frame++ {
		if err := step(e, frame, *models); err != nil {
			log.Fatalf("Frame %d: %v", frame, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		log.Fatalf("Failed to gather metrics: %v", err)
	}
	out, err := yaml.Marshal(e.Stats())
	if err != nil {
		log.Fatalf("Failed to render stats: %v", err)
	}
	fmt.Print(string(out))
	log.Printf("Simulated %d frames, %d metric families\n", *frames, len(families))
}

func buildScene(e *g3d.Engine, width, height uint32, models int) error {
	if err := e.CreateShader(1, shaderSource); err != nil {
		return err
	}

	if err := e.UploadBuffer(1, uint32(g3d.UploadVertex), cube()); err != nil {
		return err
	}
	if err := e.CreateGeometry(1, g3d.GeometryDesc{Layout: g3d.PositionOnlyLayout, VertexBuffer: 1}); err != nil {
		return err
	}

	if err := e.UploadBuffer(2, uint32(g3d.UploadImage), checker(64)); err != nil {
		return err
	}
	if err := e.DecodeTexture(1, 2); err != nil {
		return err
	}
	if err := e.CreateMaterial(1, g3d.MaterialDesc{Shader: 1, Texture: 1, Uniform: g3d.DefaultMaterialUniform()}); err != nil {
		return err
	}

	cam := g3d.DefaultCameraUniform()
	cam.Viewport = [2]float32{float32(width), float32(height)}
	if err := e.CreateCamera(1, g3d.CameraDesc{Active: true, Width: width, Height: height, Uniform: cam}); err != nil {
		return err
	}
	if err := e.CreateLight(1, g3d.LightDesc{Uniform: g3d.DefaultLightUniform()}); err != nil {
		return err
	}

	for i := 1; i <= models; i++ {
		if err := e.CreateModel(uint32(i), g3d.ModelDesc{Geometry: 1, Material: 1, Uniform: g3d.DefaultModelUniform()}); err != nil { //nolint:gosec // small counts
			return err
		}
	}
	// Every fourth model is skinned with a two-bone rig.
	for i := 4; i <= models; i += 4 {
		if err := e.SetModelBones(uint32(i), bones(0)); err != nil { //nolint:gosec // small counts
			return err
		}
	}
	return nil
}

// step animates one frame: half the models spin, the rigs swing, then the
// engine applies completions, syncs and resolves the draw pipeline.
func step(e *g3d.Engine, frame, models int) error {
	angle := float64(frame) * math.Pi / 60
	for i := 2; i <= models; i += 2 {
		u := g3d.DefaultModelUniform()
		u.World = rotationY(angle + float64(i))
		if err := e.UpdateModel(uint32(i), g3d.ModelDesc{Geometry: 1, Material: 1, Uniform: u}); err != nil { //nolint:gosec // small counts
			return err
		}
	}
	for i := 4; i <= models; i += 4 {
		if err := e.SetModelBones(uint32(i), bones(angle)); err != nil { //nolint:gosec // small counts
			return err
		}
	}

	if _, err := e.Tick(); err != nil {
		return err
	}
	if _, err := e.SyncFrame(); err != nil {
		return err
	}
	_, err := e.ResolvePipeline(1, 1)
	return err
}

func rotationY(a float64) [16]float32 {
	s, c := float32(math.Sin(a)), float32(math.Cos(a))
	return [16]float32{
		c, 0, -s, 0,
		0, 1, 0, 0,
		s, 0, c, 0,
		0, 0, 0, 1,
	}
}

func bones(a float64) []byte {
	buf := make([]byte, 0, 2*g3d.BoneMatrixSize)
	for _, m := range [][16]float32{rotationY(0), rotationY(a)} {
		for _, v := range m {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf
}

func cube() []byte {
	corners := [8][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	faces := [12][3]int{
		{0, 2, 1}, {0, 3, 2}, {4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4}, {3, 6, 2}, {3, 7, 6},
		{0, 4, 7}, {0, 7, 3}, {1, 2, 6}, {1, 6, 5},
	}
	buf := make([]byte, 0, len(faces)*3*12)
	for _, f := range faces {
		for _, i := range f {
			for _, v := range corners[i] {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
			}
		}
	}
	return buf
}

func checker(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Fatalf("Failed to encode texture: %v", err)
	}
	return buf.Bytes()
}

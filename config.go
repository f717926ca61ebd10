package g3d

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/gputypes"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for a configuration value out of range.
var ErrInvalidConfig = errors.New("g3d: invalid config")

// maxConfigSize bounds config files read by LoadConfig.
const maxConfigSize = 1 << 20

// Config sizes the engine's GPU pools and workers. Unset fields in a YAML
// document keep their DefaultConfig values.
type Config struct {
	// UniformAlignment is the offset alignment of the uniform regions.
	UniformAlignment uint64 `yaml:"uniform_alignment"`

	// GeometryAlignment is the offset alignment inside the geometry pools.
	GeometryAlignment uint64 `yaml:"geometry_alignment"`

	// VertexPoolCapacity and IndexPoolCapacity are the initial geometry
	// buffer sizes in bytes.
	VertexPoolCapacity uint64 `yaml:"vertex_pool_capacity"`
	IndexPoolCapacity  uint64 `yaml:"index_pool_capacity"`

	// Region buffer sizes in bytes, per class.
	CameraRegionCapacity   uint64 `yaml:"camera_region_capacity"`
	ModelRegionCapacity    uint64 `yaml:"model_region_capacity"`
	MaterialRegionCapacity uint64 `yaml:"material_region_capacity"`
	LightRegionCapacity    uint64 `yaml:"light_region_capacity"`

	// BoneCapacity is the initial bone buffer size in matrices.
	BoneCapacity uint32 `yaml:"bone_capacity"`

	// MipChainLength and PostTargets shape each camera's render targets.
	MipChainLength int `yaml:"mip_chain_length"`
	PostTargets    int `yaml:"post_targets"`

	// ColorFormat is the default camera color format: "rgba8unorm" or
	// "bgra8unorm".
	ColorFormat string `yaml:"color_format"`

	// MaxTextureDimension bounds decoded textures.
	MaxTextureDimension int `yaml:"max_texture_dimension"`

	// DecodeWorkers caps concurrent texture decodes.
	DecodeWorkers int `yaml:"decode_workers"`

	// ThreadCheck rejects render-thread calls from other OS threads.
	ThreadCheck bool `yaml:"thread_check"`

	// PrecompileShaders translates WGSL to SPIR-V with naga before handing
	// it to the backend.
	PrecompileShaders bool `yaml:"precompile_shaders"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		UniformAlignment:       gpu.DefaultUniformAlignment,
		GeometryAlignment:      gpu.DefaultGeometryAlignment,
		VertexPoolCapacity:     gpu.DefaultVertexPoolCapacity,
		IndexPoolCapacity:      gpu.DefaultIndexPoolCapacity,
		CameraRegionCapacity:   gpu.DefaultCameraRegionCapacity,
		ModelRegionCapacity:    gpu.DefaultModelRegionCapacity,
		MaterialRegionCapacity: gpu.DefaultMaterialRegionCapacity,
		LightRegionCapacity:    gpu.DefaultLightRegionCapacity,
		BoneCapacity:           gpu.DefaultBoneCapacity,
		MipChainLength:         gpu.DefaultMipChainLength,
		PostTargets:            gpu.DefaultPostTargets,
		ColorFormat:            "rgba8unorm",
		MaxTextureDimension:    gpu.DefaultMaxTextureDimension,
		DecodeWorkers:          max(runtime.GOMAXPROCS(0)/2, 1),
	}
}

// ParseConfig decodes a YAML document over DefaultConfig and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("%w: %s is %d bytes", ErrInvalidConfig, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return ParseConfig(data)
}

// Validate reports the first out-of-range field.
func (c *Config) Validate() error {
	for _, a := range []struct {
		name string
		v    uint64
	}{
		{"uniform_alignment", c.UniformAlignment},
		{"geometry_alignment", c.GeometryAlignment},
	} {
		if a.v == 0 || a.v&(a.v-1) != 0 {
			return fmt.Errorf("%w: %s %d is not a power of two", ErrInvalidConfig, a.name, a.v)
		}
	}
	if c.MipChainLength < 0 || c.MipChainLength > 16 {
		return fmt.Errorf("%w: mip_chain_length %d", ErrInvalidConfig, c.MipChainLength)
	}
	if c.PostTargets < 0 || c.PostTargets > 8 {
		return fmt.Errorf("%w: post_targets %d", ErrInvalidConfig, c.PostTargets)
	}
	if c.MaxTextureDimension <= 0 {
		return fmt.Errorf("%w: max_texture_dimension %d", ErrInvalidConfig, c.MaxTextureDimension)
	}
	if c.DecodeWorkers <= 0 {
		return fmt.Errorf("%w: decode_workers %d", ErrInvalidConfig, c.DecodeWorkers)
	}
	if _, err := parseColorFormat(c.ColorFormat); err != nil {
		return err
	}
	return nil
}

func parseColorFormat(s string) (gputypes.TextureFormat, error) {
	switch s {
	case "", "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: color_format %q", ErrInvalidConfig, s)
	}
}

func (c *Config) regionConfig() gpu.RegionConfig {
	rc := gpu.RegionConfig{Alignment: c.UniformAlignment}
	rc.Capacities[gpu.RegionCamera] = c.CameraRegionCapacity
	rc.Capacities[gpu.RegionModel] = c.ModelRegionCapacity
	rc.Capacities[gpu.RegionMaterial] = c.MaterialRegionCapacity
	rc.Capacities[gpu.RegionLight] = c.LightRegionCapacity
	return rc
}

func (c *Config) geometryConfig() gpu.GeometryConfig {
	return gpu.GeometryConfig{
		VertexCapacity: c.VertexPoolCapacity,
		IndexCapacity:  c.IndexPoolCapacity,
		Alignment:      c.GeometryAlignment,
	}
}

func (c *Config) targetsConfig() gpu.TargetsConfig {
	return gpu.TargetsConfig{MipChainLength: c.MipChainLength, PostTargets: c.PostTargets}
}

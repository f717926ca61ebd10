package g3d

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
uniform_alignment: 64
light_region_capacity: 4096
color_format: bgra8unorm
decode_workers: 3
thread_check: true
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	want := DefaultConfig()
	want.UniformAlignment = 64
	want.LightRegionCapacity = 4096
	want.ColorFormat = "bgra8unorm"
	want.DecodeWorkers = 3
	want.ThreadCheck = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	rc := cfg.regionConfig()
	if rc.Alignment != 64 {
		t.Errorf("region alignment = %d, want 64", rc.Alignment)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("empty document must yield defaults (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero uniform alignment", func(c *Config) { c.UniformAlignment = 0 }},
		{"odd geometry alignment", func(c *Config) { c.GeometryAlignment = 12 }},
		{"negative mips", func(c *Config) { c.MipChainLength = -1 }},
		{"too many mips", func(c *Config) { c.MipChainLength = 17 }},
		{"too many post targets", func(c *Config) { c.PostTargets = 9 }},
		{"zero texture dimension", func(c *Config) { c.MaxTextureDimension = 0 }},
		{"zero decode workers", func(c *Config) { c.DecodeWorkers = 0 }},
		{"unknown color format", func(c *Config) { c.ColorFormat = "rgb565" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestParseColorFormat(t *testing.T) {
	tests := []struct {
		in   string
		want gputypes.TextureFormat
	}{
		{"", gputypes.TextureFormatRGBA8Unorm},
		{"rgba8unorm", gputypes.TextureFormatRGBA8Unorm},
		{"bgra8unorm", gputypes.TextureFormatBGRA8Unorm},
	}
	for _, tt := range tests {
		got, err := parseColorFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseColorFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "g3d.yaml")
	if err := os.WriteFile(path, []byte("post_targets: 2\nmip_chain_length: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PostTargets != 2 || cfg.MipChainLength != 4 {
		t.Errorf("got post_targets=%d mip_chain_length=%d", cfg.PostTargets, cfg.MipChainLength)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig on a missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("post_targets: 99\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig(bad) = %v, want ErrInvalidConfig", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(WithDecodeWorkers(0)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(WithDecodeWorkers(0)) = %v, want ErrInvalidConfig", err)
	}
}

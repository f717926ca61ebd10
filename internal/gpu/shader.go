package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// ErrEmptyShader is returned for a shader upload with no source.
var ErrEmptyShader = errors.New("gpu: empty shader source")

// CompileWGSL translates WGSL to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not word aligned", len(spirv))
	}
	// SPIR-V words are little-endian.
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

// CreateShaderModule creates a module from WGSL source. With precompile set
// the source is translated to SPIR-V here; otherwise it is handed to the
// backend as WGSL.
func CreateShaderModule(device hal.Device, label, source string, precompile bool) (hal.ShaderModule, error) {
	if source == "" {
		return nil, ErrEmptyShader
	}
	desc := &hal.ShaderModuleDescriptor{Label: label}
	if precompile {
		words, err := CompileWGSL(source)
		if err != nil {
			return nil, err
		}
		desc.Source = hal.ShaderSource{SPIRV: words}
	} else {
		desc.Source = hal.ShaderSource{WGSL: source}
	}
	module, err := device.CreateShaderModule(desc)
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", label, err)
	}
	return module, nil
}

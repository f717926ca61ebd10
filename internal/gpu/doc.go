// Package gpu owns the GPU-side objects of the retained-state core.
//
// Everything here talks to the device through github.com/gogpu/wgpu/hal and
// is driven from the render thread only. The allocators in internal/alloc
// decide where data lives; this package creates, grows and writes the
// buffers and textures those decisions refer to.
//
// Key components:
//
//   - RegionManager: one uniform buffer per data class (camera, model,
//     material, light), each paired with a RegionAllocator and created
//     lazily.
//   - GeometryPool: shared vertex and index buffers suballocated with a
//     RangeAllocator. Growth recreates the buffer and replays a CPU shadow so
//     existing offsets keep their contents.
//   - BoneBuffer: a storage buffer of 4x4 matrices addressed by
//     BoneSlotAllocator runs.
//   - RenderTargets: per-camera color, post-processing and mip chain
//     attachments, recreated only when size or format changes.
//   - Layouts and BuildRenderPipeline: the shared bind group layouts and the
//     pipeline builder used on pipeline cache misses.
//   - Textures and shader modules created from host uploads.
//
// # Device
//
// OpenDevice opens a standalone device for hosts that do not share one:
//
//	dev, err := gpu.OpenDevice(backend)
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
// Tests open the same way on the noop backend (github.com/gogpu/wgpu/hal/noop).
package gpu

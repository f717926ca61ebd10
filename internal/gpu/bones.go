package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/g3d/internal/alloc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BoneMatrixSize is the size of one column-major mat4x4<f32>.
const BoneMatrixSize = 64

// ErrBoneData is returned for bone data that is not a whole number of
// matrices.
var ErrBoneData = errors.New("gpu: bone data length is not a multiple of 64")

// DefaultBoneCapacity is the initial number of matrix slots.
const DefaultBoneCapacity = 1024

// BoneBuffer stores skinning matrices for every skinned model in one
// storage buffer. Slot runs come from a BoneSlotAllocator keyed by model id.
type BoneBuffer struct {
	device hal.Device
	queue  hal.Queue

	slots    *alloc.BoneSlotAllocator
	buffer   hal.Buffer
	capacity uint32 // in matrices
	shadow   []byte
	grows    uint64
}

// NewBoneBuffer creates an empty bone buffer. The GPU buffer is created on
// the first Write.
func NewBoneBuffer(device hal.Device, queue hal.Queue, capacity uint32) *BoneBuffer {
	if capacity == 0 {
		capacity = DefaultBoneCapacity
	}
	return &BoneBuffer{
		device:   device,
		queue:    queue,
		slots:    alloc.NewBoneSlotAllocator(),
		capacity: capacity,
	}
}

// Write ensures model owns at least len(matrices)/BoneMatrixSize slots and
// uploads the matrices there. The returned run is what shaders index with.
func (b *BoneBuffer) Write(model uint32, matrices []byte) (alloc.BoneAllocation, error) {
	if len(matrices)%BoneMatrixSize != 0 {
		return alloc.BoneAllocation{}, fmt.Errorf("%w: got %d bytes", ErrBoneData, len(matrices))
	}
	count := uint32(len(matrices) / BoneMatrixSize) //nolint:gosec // bounded by MaxBonesPerSkeleton check below
	run, err := b.slots.EnsureAllocation(model, count)
	if err != nil {
		return alloc.BoneAllocation{}, err
	}

	if b.buffer == nil || b.slots.Total() > b.capacity {
		if err := b.grow(); err != nil {
			return alloc.BoneAllocation{}, err
		}
	}

	off := uint64(run.Offset) * BoneMatrixSize
	copy(b.shadow[off:], matrices)
	b.queue.WriteBuffer(b.buffer, off, matrices)
	return run, nil
}

func (b *BoneBuffer) grow() error {
	capacity := b.capacity
	if b.buffer != nil {
		capacity = max(b.capacity*2, b.slots.Total())
	}
	capacity = max(capacity, b.slots.Total())

	buf, err := createBuffer(b.device, "bone_matrices", uint64(capacity)*BoneMatrixSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	if b.buffer != nil {
		b.device.DestroyBuffer(b.buffer)
		b.grows++
		slogger().Debug("gpu: bone buffer grown", "matrices", capacity)
	}
	b.buffer = buf
	b.capacity = capacity

	grown := make([]byte, uint64(capacity)*BoneMatrixSize)
	copy(grown, b.shadow)
	b.shadow = grown
	if used := uint64(b.slots.Total()) * BoneMatrixSize; used > 0 {
		b.queue.WriteBuffer(b.buffer, 0, b.shadow[:used])
	}
	return nil
}

// Release frees model's slot run.
func (b *BoneBuffer) Release(model uint32) bool {
	return b.slots.Release(model)
}

// Allocation returns model's slot run.
func (b *BoneBuffer) Allocation(model uint32) (alloc.BoneAllocation, bool) {
	return b.slots.Allocation(model)
}

// Buffer returns the storage buffer, nil before the first Write.
func (b *BoneBuffer) Buffer() hal.Buffer { return b.buffer }

// Capacity returns the buffer size in matrices.
func (b *BoneBuffer) Capacity() uint32 { return b.capacity }

// Stats returns bone buffer statistics.
func (b *BoneBuffer) Stats() BoneStats {
	return BoneStats{
		Capacity: b.capacity,
		Used:     b.slots.Total(),
		Owners:   b.slots.Owners(),
		Free:     len(b.slots.FreeList()),
		Grows:    b.grows,
	}
}

// BoneStats describes the bone buffer.
type BoneStats struct {
	Capacity uint32
	Used     uint32
	Owners   int
	Free     int
	Grows    uint64
}

// Destroy releases the buffer and clears all slot runs.
func (b *BoneBuffer) Destroy() {
	if b.buffer != nil {
		b.device.DestroyBuffer(b.buffer)
		b.buffer = nil
	}
	b.slots.Clear()
	b.shadow = nil
}

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrOutOfBounds is returned when a write would run past the end of a buffer.
	ErrOutOfBounds = errors.New("gpu: write exceeds buffer size")

	// ErrNoBuffer is returned when writing to a buffer that was never created.
	ErrNoBuffer = errors.New("gpu: buffer not created")
)

// minBufferSize keeps zero-length descriptors away from the driver.
const minBufferSize = 16

// writeAlign is the granularity of queue buffer writes.
const writeAlign = 4

// createBuffer creates a buffer of at least minBufferSize bytes.
func createBuffer(device hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if size < minBufferSize {
		size = minBufferSize
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, nil
}

// padWrite returns data extended with zeros to a multiple of writeAlign.
// The input is returned as is when already aligned.
func padWrite(data []byte) []byte {
	rem := len(data) % writeAlign
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+writeAlign-rem)
	copy(out, data)
	return out
}

package gpu

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogpu/g3d/internal/alloc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Default geometry pool sizes.
const (
	DefaultVertexPoolCapacity = 4 << 20
	DefaultIndexPoolCapacity  = 1 << 20
	DefaultGeometryAlignment  = 256
)

// pooledBuffer is one GPU buffer suballocated by a RangeAllocator.
//
// shadow mirrors the buffer contents so a grown buffer can be refilled;
// GPU buffers cannot be resized in place. size is the length of both,
// the allocator capacity rounded up to writeAlign.
type pooledBuffer struct {
	label  string
	usage  gputypes.BufferUsage
	ranges *alloc.RangeAllocator
	buffer hal.Buffer
	size   uint64
	shadow []byte
	grows  uint64
}

// newPooledBuffer raises alignment to writeAlign so every range starts on
// a legal queue write offset.
func newPooledBuffer(label string, usage gputypes.BufferUsage, capacity, alignment uint64) *pooledBuffer {
	return &pooledBuffer{
		label:  label,
		usage:  usage | gputypes.BufferUsageCopyDst,
		ranges: alloc.NewRangeAllocator(capacity, max(alignment, writeAlign)),
	}
}

// store places data under id and uploads it. The returned allocation holds
// the aligned size.
//
// The buffer is rebuilt whenever the allocator outgrew it, not only on the
// Allocate call that grew it: a rebuild that failed earlier leaves the
// allocator ahead of the buffer.
func (p *pooledBuffer) store(device hal.Device, queue hal.Queue, id uint32, data []byte) (alloc.Allocation, error) {
	off, _, err := p.ranges.Allocate(id, uint64(len(data)))
	if err != nil {
		return alloc.Allocation{}, fmt.Errorf("%s: %w", p.label, err)
	}
	if p.buffer == nil || p.ranges.Capacity() > p.size {
		grown := p.buffer != nil
		if err := p.recreate(device, queue); err != nil {
			p.ranges.Deallocate(id)
			return alloc.Allocation{}, err
		}
		if grown {
			p.grows++
			slogger().Debug("gpu: pool grown", "pool", p.label, "capacity", p.size)
		}
	}

	a, _ := p.ranges.Allocation(id)
	end := min(a.End(), p.size)
	n := copy(p.shadow[off:end], data)
	clear(p.shadow[off+uint64(n) : end])
	queue.WriteBuffer(p.buffer, off, p.shadow[off:min(off+alloc.AlignUp(uint64(len(data)), writeAlign), p.size)])
	return a, nil
}

// recreate replaces the buffer with one covering the allocator's capacity
// and replays the shadow into it. On failure the old buffer and shadow are
// kept as they were.
func (p *pooledBuffer) recreate(device hal.Device, queue hal.Queue) error {
	size := alloc.AlignUp(p.ranges.Capacity(), writeAlign)
	buf, err := createBuffer(device, p.label, size, p.usage)
	if err != nil {
		return err
	}
	if p.buffer != nil {
		device.DestroyBuffer(p.buffer)
	}
	p.buffer = buf
	p.size = size

	if uint64(len(p.shadow)) < size {
		grown := make([]byte, size)
		copy(grown, p.shadow)
		p.shadow = grown
	}
	if used := min(alloc.AlignUp(p.ranges.NextOffset(), writeAlign), size); used > 0 {
		queue.WriteBuffer(p.buffer, 0, p.shadow[:used])
	}
	return nil
}

func (p *pooledBuffer) release(id uint32) bool {
	return p.ranges.Deallocate(id)
}

func (p *pooledBuffer) destroy(device hal.Device) {
	if p.buffer != nil {
		device.DestroyBuffer(p.buffer)
		p.buffer = nil
	}
	p.size = 0
	p.ranges.Reset()
	p.shadow = nil
}

func (p *pooledBuffer) stats() PoolStats {
	return PoolStats{
		Capacity:  p.ranges.Capacity(),
		Used:      p.ranges.UsedBytes(),
		Live:      p.ranges.Len(),
		FreeSlots: len(p.ranges.FreeSlots()),
		Grows:     p.grows,
	}
}

// PoolStats describes one pooled buffer.
type PoolStats struct {
	Capacity  uint64
	Used      uint64
	Live      int
	FreeSlots int
	Grows     uint64
}

// GeometrySlice locates one geometry inside the shared pools.
type GeometrySlice struct {
	VertexOffset uint64
	VertexSize   uint64
	IndexOffset  uint64
	IndexSize    uint64
	Indexed      bool
}

// GeometryConfig sizes the geometry pools.
type GeometryConfig struct {
	VertexCapacity uint64
	IndexCapacity  uint64
	Alignment      uint64
}

// GeometryPool keeps every geometry's vertex and index data in two shared
// buffers keyed by geometry id.
type GeometryPool struct {
	device hal.Device
	queue  hal.Queue

	vertices *pooledBuffer
	indices  *pooledBuffer
	slices   map[uint32]GeometrySlice
}

// NewGeometryPool creates empty pools. Buffers are created on first Store.
func NewGeometryPool(device hal.Device, queue hal.Queue, config GeometryConfig) *GeometryPool {
	if config.VertexCapacity == 0 {
		config.VertexCapacity = DefaultVertexPoolCapacity
	}
	if config.IndexCapacity == 0 {
		config.IndexCapacity = DefaultIndexPoolCapacity
	}
	if config.Alignment == 0 {
		config.Alignment = DefaultGeometryAlignment
	}
	return &GeometryPool{
		device:   device,
		queue:    queue,
		vertices: newPooledBuffer("geometry_vertices", gputypes.BufferUsageVertex, config.VertexCapacity, config.Alignment),
		indices:  newPooledBuffer("geometry_indices", gputypes.BufferUsageIndex, config.IndexCapacity, config.Alignment),
		slices:   make(map[uint32]GeometrySlice),
	}
}

// Store uploads a geometry. indices may be empty for non-indexed draws.
func (g *GeometryPool) Store(id uint32, vertices, indices []byte) (GeometrySlice, error) {
	va, err := g.vertices.store(g.device, g.queue, id, vertices)
	if err != nil {
		return GeometrySlice{}, err
	}
	s := GeometrySlice{VertexOffset: va.Offset, VertexSize: uint64(len(vertices))}

	if len(indices) > 0 {
		ia, err := g.indices.store(g.device, g.queue, id, indices)
		if err != nil {
			g.vertices.release(id)
			return GeometrySlice{}, err
		}
		s.IndexOffset = ia.Offset
		s.IndexSize = uint64(len(indices))
		s.Indexed = true
	}
	g.slices[id] = s
	return s, nil
}

// Replace swaps id's data for new data. The old ranges are released first
// so the new data may reuse them. If the new data cannot be stored the old
// data is stored again, possibly at other offsets, and the error is
// returned; Slice reports where it went. Only when that fails too is id
// left without data.
func (g *GeometryPool) Replace(id uint32, vertices, indices []byte) (GeometrySlice, error) {
	old, ok := g.slices[id]
	if !ok {
		return g.Store(id, vertices, indices)
	}
	oldVertices := bytes.Clone(g.vertices.shadow[old.VertexOffset : old.VertexOffset+old.VertexSize])
	var oldIndices []byte
	if old.Indexed {
		oldIndices = bytes.Clone(g.indices.shadow[old.IndexOffset : old.IndexOffset+old.IndexSize])
	}

	g.Release(id)
	s, err := g.Store(id, vertices, indices)
	if err == nil {
		return s, nil
	}
	if _, rerr := g.Store(id, oldVertices, oldIndices); rerr != nil {
		return GeometrySlice{}, errors.Join(err, rerr)
	}
	return GeometrySlice{}, err
}

// Release returns id's ranges to the pools. Unknown ids are ignored.
func (g *GeometryPool) Release(id uint32) bool {
	if _, ok := g.slices[id]; !ok {
		return false
	}
	delete(g.slices, id)
	g.vertices.release(id)
	g.indices.release(id)
	return true
}

// Slice returns where id's data lives.
func (g *GeometryPool) Slice(id uint32) (GeometrySlice, bool) {
	s, ok := g.slices[id]
	return s, ok
}

// VertexBuffer returns the shared vertex buffer, nil before the first Store.
func (g *GeometryPool) VertexBuffer() hal.Buffer { return g.vertices.buffer }

// IndexBuffer returns the shared index buffer, nil before the first indexed
// Store.
func (g *GeometryPool) IndexBuffer() hal.Buffer { return g.indices.buffer }

// Stats returns vertex and index pool statistics.
func (g *GeometryPool) Stats() (vertex, index PoolStats) {
	return g.vertices.stats(), g.indices.stats()
}

// Destroy releases both buffers and forgets every geometry.
func (g *GeometryPool) Destroy() {
	g.vertices.destroy(g.device)
	g.indices.destroy(g.device)
	clear(g.slices)
}

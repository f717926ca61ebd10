package alloc

// RegionAllocator is a monotonic bump allocator for uniform-data regions.
//
// Offsets are aligned up before they are handed out, then the tail advances
// by the unaligned size, so the alignment gap in front of each region is
// never reused. Free only forgets the region; the space is reclaimed by
// Reset when the owning buffer is recreated wholesale.
type RegionAllocator struct {
	alignment  uint64
	capacity   uint64
	nextOffset uint64

	live map[uint64]uint64 // offset -> size
}

// NewRegionAllocator creates a region allocator for a buffer of the given
// capacity and offset alignment.
func NewRegionAllocator(capacity, alignment uint64) *RegionAllocator {
	if alignment == 0 {
		alignment = 1
	}
	return &RegionAllocator{
		alignment: alignment,
		capacity:  capacity,
		live:      make(map[uint64]uint64),
	}
}

// Allocate reserves size bytes and returns the aligned offset. It never
// fails; exceeding the capacity is reported by NeedsResize.
func (r *RegionAllocator) Allocate(size uint64) uint64 {
	offset := AlignUp(r.nextOffset, r.alignment)
	r.nextOffset = offset + size
	r.live[offset] = size
	return offset
}

// Free forgets the region at offset. The bytes are not handed out again
// until Reset.
func (r *RegionAllocator) Free(offset uint64) {
	delete(r.live, offset)
}

// TotalSize returns the current tail, i.e. the number of bytes the backing
// buffer must hold.
func (r *RegionAllocator) TotalSize() uint64 { return r.nextOffset }

// Capacity returns the capacity of the backing buffer.
func (r *RegionAllocator) Capacity() uint64 { return r.capacity }

// SetCapacity records a new backing buffer capacity.
func (r *RegionAllocator) SetCapacity(capacity uint64) { r.capacity = capacity }

// NeedsResize reports whether the regions handed out exceed the capacity.
func (r *RegionAllocator) NeedsResize() bool { return r.nextOffset > r.capacity }

// Live returns the number of regions not yet freed.
func (r *RegionAllocator) Live() int { return len(r.live) }

// Alignment returns the offset alignment.
func (r *RegionAllocator) Alignment() uint64 { return r.alignment }

// Reset zeroes all state except capacity and alignment.
func (r *RegionAllocator) Reset() {
	r.nextOffset = 0
	clear(r.live)
}

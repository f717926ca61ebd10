package alloc

import (
	"errors"
	"fmt"
	"sort"
)

// Allocator errors.
var (
	// ErrInvalidSize is returned when a zero-sized range is requested.
	ErrInvalidSize = errors.New("alloc: allocation size must be positive")

	// ErrAllocationExists is returned when an id that is still live is allocated again.
	ErrAllocationExists = errors.New("alloc: id already has a live allocation")
)

// AlignUp rounds v up to the next multiple of align.
// An align of 0 or 1 leaves v unchanged.
func AlignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// Allocation is a live range handed out by a RangeAllocator.
// Size is the aligned size, not the requested one.
type Allocation struct {
	ID     uint32
	Offset uint64
	Size   uint64
}

// End returns the first byte past the allocation.
func (a Allocation) End() uint64 { return a.Offset + a.Size }

// FreeSlot is a reusable hole inside the allocator's address space.
type FreeSlot struct {
	Offset uint64
	Size   uint64
}

// End returns the first byte past the slot.
func (s FreeSlot) End() uint64 { return s.Offset + s.Size }

// RangeAllocator assigns byte ranges inside one shared buffer.
//
// Free slots are kept sorted by offset. Allocation is first-fit; an exact
// match consumes the slot, a larger one is split and keeps the remainder
// at the back. When no slot fits the range is bumped at the tail.
type RangeAllocator struct {
	alignment  uint64
	capacity   uint64
	nextOffset uint64

	allocations map[uint32]Allocation
	free        []FreeSlot
}

// NewRangeAllocator creates an allocator for a buffer of the given initial
// capacity. Every request is rounded up to alignment before it is placed.
func NewRangeAllocator(capacity, alignment uint64) *RangeAllocator {
	if alignment == 0 {
		alignment = 1
	}
	return &RangeAllocator{
		alignment:   alignment,
		capacity:    capacity,
		allocations: make(map[uint32]Allocation),
	}
}

// Allocate reserves size bytes for id and returns the range's offset.
//
// grew is true when the tail moved past the current capacity and the
// capacity was raised; the caller must recreate the backing buffer at
// Capacity(). Offsets handed out earlier remain valid after growth.
func (a *RangeAllocator) Allocate(id uint32, size uint64) (offset uint64, grew bool, err error) {
	if size == 0 {
		return 0, false, ErrInvalidSize
	}
	if _, ok := a.allocations[id]; ok {
		return 0, false, fmt.Errorf("%w: id %d", ErrAllocationExists, id)
	}

	aligned := AlignUp(size, a.alignment)

	if idx := a.firstFit(aligned); idx >= 0 {
		slot := a.free[idx]
		offset = slot.Offset
		if slot.Size == aligned {
			a.free = append(a.free[:idx], a.free[idx+1:]...)
		} else {
			a.free[idx] = FreeSlot{Offset: slot.Offset + aligned, Size: slot.Size - aligned}
		}
	} else {
		offset = a.nextOffset
		a.nextOffset += aligned
		if a.nextOffset > a.capacity {
			a.capacity = max(a.capacity*2, a.nextOffset)
			grew = true
		}
	}

	a.allocations[id] = Allocation{ID: id, Offset: offset, Size: aligned}
	return offset, grew, nil
}

// Deallocate returns id's range to the free list. Unknown ids are ignored.
// It reports whether a range was released.
func (a *RangeAllocator) Deallocate(id uint32) bool {
	alloc, ok := a.allocations[id]
	if !ok {
		return false
	}
	delete(a.allocations, id)

	a.free = append(a.free, FreeSlot{Offset: alloc.Offset, Size: alloc.Size})
	a.free = coalesce(a.free)
	return true
}

// Capacity returns the size the backing buffer must have.
func (a *RangeAllocator) Capacity() uint64 { return a.capacity }

// NextOffset returns the current tail.
func (a *RangeAllocator) NextOffset() uint64 { return a.nextOffset }

// Alignment returns the boundary every range is rounded to.
func (a *RangeAllocator) Alignment() uint64 { return a.alignment }

// Allocation returns the live range for id.
func (a *RangeAllocator) Allocation(id uint32) (Allocation, bool) {
	alloc, ok := a.allocations[id]
	return alloc, ok
}

// Len returns the number of live allocations.
func (a *RangeAllocator) Len() int { return len(a.allocations) }

// FreeSlots returns a copy of the free list in offset order.
func (a *RangeAllocator) FreeSlots() []FreeSlot {
	out := make([]FreeSlot, len(a.free))
	copy(out, a.free)
	return out
}

// UsedBytes returns the sum of live (aligned) allocation sizes.
func (a *RangeAllocator) UsedBytes() uint64 {
	var n uint64
	for _, alloc := range a.allocations {
		n += alloc.Size
	}
	return n
}

// Reset drops every allocation and free slot. Capacity is kept.
func (a *RangeAllocator) Reset() {
	a.nextOffset = 0
	a.free = a.free[:0]
	clear(a.allocations)
}

// firstFit returns the index of the first free slot that can hold size
// bytes, or -1.
func (a *RangeAllocator) firstFit(size uint64) int {
	for i, slot := range a.free {
		if slot.Size >= size {
			return i
		}
	}
	return -1
}

// coalesce sorts slots by offset and merges adjacent neighbours.
// One ordered pass reaches the fixed point: after sorting, any slot that
// touches the running slot is merged into it before the next is examined.
func coalesce(slots []FreeSlot) []FreeSlot {
	if len(slots) < 2 {
		return slots
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Offset < slots[j].Offset
	})

	merged := slots[:1]
	for _, next := range slots[1:] {
		cur := &merged[len(merged)-1]
		if cur.End() == next.Offset {
			cur.Size += next.Size
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

package alloc

import (
	"errors"
	"fmt"
	"sort"
)

// MaxBonesPerSkeleton caps the bone count of a single skeleton.
const MaxBonesPerSkeleton = 256

// ErrBoneCount is returned for a bone count of zero or above MaxBonesPerSkeleton.
var ErrBoneCount = errors.New("alloc: invalid bone count")

// BoneAllocation is a run of matrix slots owned by one model.
type BoneAllocation struct {
	Offset uint32
	Count  uint32
}

func (b BoneAllocation) end() uint32 { return b.Offset + b.Count }

// BoneSlotAllocator hands out bone matrix slots keyed by owning model id.
//
// Released slots go to a free list without merging; adjacent entries are
// coalesced lazily at the start of the next reallocation.
type BoneSlotAllocator struct {
	next    uint32
	byOwner map[uint32]BoneAllocation
	free    []BoneAllocation
}

// NewBoneSlotAllocator creates an empty bone slot allocator.
func NewBoneSlotAllocator() *BoneSlotAllocator {
	return &BoneSlotAllocator{byOwner: make(map[uint32]BoneAllocation)}
}

// EnsureAllocation returns a slot run of at least count matrices for owner.
//
// An existing run that is already large enough is returned unchanged so its
// offset stays stable. Otherwise the old run is released, the free list is
// coalesced and searched first-fit. A matching free entry is granted whole,
// even when larger than requested. With no match the run is bumped at the
// tail.
func (b *BoneSlotAllocator) EnsureAllocation(owner, count uint32) (BoneAllocation, error) {
	if count == 0 || count > MaxBonesPerSkeleton {
		return BoneAllocation{}, fmt.Errorf("%w: %d (max %d)", ErrBoneCount, count, MaxBonesPerSkeleton)
	}

	if cur, ok := b.byOwner[owner]; ok {
		if cur.Count >= count {
			return cur, nil
		}
		b.free = append(b.free, cur)
		delete(b.byOwner, owner)
	}

	b.coalesce()

	for i, slot := range b.free {
		if slot.Count >= count {
			b.free = append(b.free[:i], b.free[i+1:]...)
			b.byOwner[owner] = slot
			return slot, nil
		}
	}

	slot := BoneAllocation{Offset: b.next, Count: count}
	b.next += count
	b.byOwner[owner] = slot
	return slot, nil
}

// Release returns owner's slot run to the free list. It reports whether
// the owner had one.
func (b *BoneSlotAllocator) Release(owner uint32) bool {
	cur, ok := b.byOwner[owner]
	if !ok {
		return false
	}
	delete(b.byOwner, owner)
	b.free = append(b.free, cur)
	return true
}

// Allocation returns owner's current slot run.
func (b *BoneSlotAllocator) Allocation(owner uint32) (BoneAllocation, bool) {
	cur, ok := b.byOwner[owner]
	return cur, ok
}

// Total returns the high-water mark in slots; the bone buffer must hold at
// least this many matrices.
func (b *BoneSlotAllocator) Total() uint32 { return b.next }

// Owners returns the number of models holding a slot run.
func (b *BoneSlotAllocator) Owners() int { return len(b.byOwner) }

// FreeList returns a copy of the free entries in their current order.
func (b *BoneSlotAllocator) FreeList() []BoneAllocation {
	out := make([]BoneAllocation, len(b.free))
	copy(out, b.free)
	return out
}

// Clear drops every slot run and resets the tail.
func (b *BoneSlotAllocator) Clear() {
	b.next = 0
	b.free = b.free[:0]
	clear(b.byOwner)
}

func (b *BoneSlotAllocator) coalesce() {
	if len(b.free) < 2 {
		return
	}
	sort.Slice(b.free, func(i, j int) bool {
		return b.free[i].Offset < b.free[j].Offset
	})
	merged := b.free[:1]
	for _, next := range b.free[1:] {
		cur := &merged[len(merged)-1]
		if cur.end() == next.Offset {
			cur.Count += next.Count
			continue
		}
		merged = append(merged, next)
	}
	b.free = merged
}

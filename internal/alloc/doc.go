// Package alloc provides offset bookkeeping for GPU-resident buffers.
//
// None of the allocators in this package touch memory. They hand out byte
// (or slot) offsets into a buffer owned by someone else and track which
// ranges are live, so the same code serves vertex pools, uniform regions
// and bone matrix storage.
//
// # RangeAllocator
//
// A first-fit free-list allocator for variable-sized, individually freeable
// ranges keyed by a caller id. Sizes are rounded up to the buffer's
// alignment. Freed ranges are sorted by offset and coalesced before control
// returns, so no two free slots are ever adjacent. When nothing fits, the
// allocation is bumped at the tail and the capacity grows to
// max(capacity*2, tail); the caller is told so it can recreate the backing
// buffer. Growth is append-only: existing offsets stay valid.
//
//	ra := alloc.NewRangeAllocator(1024, 256)
//	off, grew, err := ra.Allocate(7, 128) // off = 0, grew = false
//	ra.Deallocate(7)
//
// # RegionAllocator
//
// A monotonic bump allocator with aligned offsets for per-frame uniform
// data. Free drops bookkeeping only; space comes back through Reset when
// the backing buffer is recreated wholesale.
//
// # BoneSlotAllocator
//
// A free-list allocator over matrix slots keyed by the owning model. A
// request that fits the owner's current slot returns it unchanged; a larger
// one releases the slot, coalesces the free list and reallocates first-fit.
//
// # Thread Safety
//
// The allocators are not safe for concurrent use. They are driven from the
// render thread only.
package alloc

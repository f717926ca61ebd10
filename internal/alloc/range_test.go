package alloc

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// checkRangeInvariants verifies that live ranges never overlap each other or
// a free slot, that no two free slots touch, and that everything sits below
// the tail.
func checkRangeInvariants(a *RangeAllocator) error {
	type span struct {
		off, end uint64
		what     string
	}
	spans := make([]span, 0, len(a.allocations)+len(a.free))
	for id, alloc := range a.allocations {
		if alloc.ID != id {
			return fmt.Errorf("allocation keyed %d carries id %d", id, alloc.ID)
		}
		if alloc.Size%a.alignment != 0 {
			return fmt.Errorf("allocation %d size %d not aligned to %d", id, alloc.Size, a.alignment)
		}
		spans = append(spans, span{alloc.Offset, alloc.End(), fmt.Sprintf("alloc %d", id)})
	}
	for i, slot := range a.free {
		if slot.Size == 0 {
			return fmt.Errorf("free slot %d is empty", i)
		}
		if i > 0 {
			prev := a.free[i-1]
			if prev.Offset >= slot.Offset {
				return fmt.Errorf("free list not sorted at %d", i)
			}
			if prev.End() == slot.Offset {
				return fmt.Errorf("free slots %d and %d are adjacent", i-1, i)
			}
		}
		spans = append(spans, span{slot.Offset, slot.End(), fmt.Sprintf("free %d", i)})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].off < spans[j].off })
	for i := 1; i < len(spans); i++ {
		if spans[i].off < spans[i-1].end {
			return fmt.Errorf("%s [%d,%d) overlaps %s [%d,%d)",
				spans[i].what, spans[i].off, spans[i].end,
				spans[i-1].what, spans[i-1].off, spans[i-1].end)
		}
	}
	if n := len(spans); n > 0 && spans[n-1].end > a.nextOffset {
		return fmt.Errorf("%s ends at %d past tail %d", spans[n-1].what, spans[n-1].end, a.nextOffset)
	}
	if a.nextOffset > a.capacity {
		return fmt.Errorf("tail %d past capacity %d", a.nextOffset, a.capacity)
	}
	return nil
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, align, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{128, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{7, 0, 7},
		{7, 1, 7},
		{10, 12, 12},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
}

func TestRangeAllocatorReusesFreedSlot(t *testing.T) {
	a := NewRangeAllocator(1024, 256)

	for i, want := range []uint64{0, 256, 512} {
		off, grew, err := a.Allocate(uint32(i+1), 128)
		if err != nil {
			t.Fatalf("Allocate(%d): %v", i+1, err)
		}
		if grew {
			t.Errorf("Allocate(%d) grew, capacity 1024 should fit", i+1)
		}
		if off != want {
			t.Errorf("Allocate(%d) offset = %d, want %d", i+1, off, want)
		}
	}

	if !a.Deallocate(2) {
		t.Fatal("Deallocate(2) = false, want true")
	}
	if diff := cmp.Diff([]FreeSlot{{Offset: 256, Size: 256}}, a.FreeSlots()); diff != "" {
		t.Errorf("free slots after Deallocate(2) (-want +got):\n%s", diff)
	}

	off, _, err := a.Allocate(4, 128)
	if err != nil {
		t.Fatalf("Allocate(4): %v", err)
	}
	if off != 256 {
		t.Errorf("Allocate(4) offset = %d, want 256", off)
	}
	if len(a.FreeSlots()) != 0 {
		t.Errorf("free slots = %v, want none", a.FreeSlots())
	}
}

func TestRangeAllocatorCoalesces(t *testing.T) {
	a := NewRangeAllocator(1024, 256)
	for id := uint32(1); id <= 3; id++ {
		if _, _, err := a.Allocate(id, 128); err != nil {
			t.Fatalf("Allocate(%d): %v", id, err)
		}
	}

	a.Deallocate(1)
	a.Deallocate(2)

	if diff := cmp.Diff([]FreeSlot{{Offset: 0, Size: 512}}, a.FreeSlots()); diff != "" {
		t.Errorf("free slots (-want +got):\n%s", diff)
	}

	// Freeing out of order still merges into one slot.
	a.Deallocate(3)
	if diff := cmp.Diff([]FreeSlot{{Offset: 0, Size: 768}}, a.FreeSlots()); diff != "" {
		t.Errorf("free slots after freeing all (-want +got):\n%s", diff)
	}
}

func TestRangeAllocatorSplitsLargerSlot(t *testing.T) {
	a := NewRangeAllocator(1024, 256)
	mustAllocate(t, a, 1, 512)
	mustAllocate(t, a, 2, 256)
	a.Deallocate(1)

	off := mustAllocate(t, a, 3, 100)
	if off != 0 {
		t.Errorf("offset = %d, want front of the freed slot (0)", off)
	}
	if diff := cmp.Diff([]FreeSlot{{Offset: 256, Size: 256}}, a.FreeSlots()); diff != "" {
		t.Errorf("free slots (-want +got):\n%s", diff)
	}
	got, ok := a.Allocation(3)
	if !ok || got.Size != 256 {
		t.Errorf("Allocation(3) = %+v, %v; want aligned size 256", got, ok)
	}
}

func TestRangeAllocatorFirstFit(t *testing.T) {
	a := NewRangeAllocator(4096, 256)
	for id := uint32(1); id <= 6; id++ {
		mustAllocate(t, a, id, 256)
	}
	// Holes: [256,512) and [768,1280).
	a.Deallocate(2)
	a.Deallocate(4)
	a.Deallocate(5)

	// 256 fits the first hole even though the second is larger.
	if off := mustAllocate(t, a, 10, 256); off != 256 {
		t.Errorf("offset = %d, want 256", off)
	}
	// 512 only fits the merged hole.
	if off := mustAllocate(t, a, 11, 512); off != 768 {
		t.Errorf("offset = %d, want 768", off)
	}
}

func TestRangeAllocatorGrowth(t *testing.T) {
	tests := []struct {
		name         string
		capacity     uint64
		sizes        []uint64
		wantGrew     []bool
		wantCapacity uint64
	}{
		{
			name:         "doubling",
			capacity:     512,
			sizes:        []uint64{256, 256, 256},
			wantGrew:     []bool{false, false, true},
			wantCapacity: 1024,
		},
		{
			name:         "exact fit beats doubling",
			capacity:     256,
			sizes:        []uint64{1000},
			wantGrew:     []bool{true},
			wantCapacity: 1024,
		},
		{
			name:         "zero capacity",
			capacity:     0,
			sizes:        []uint64{1},
			wantGrew:     []bool{true},
			wantCapacity: 256,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewRangeAllocator(tt.capacity, 256)
			var prev []Allocation
			for i, size := range tt.sizes {
				_, grew, err := a.Allocate(uint32(i+1), size)
				if err != nil {
					t.Fatalf("Allocate: %v", err)
				}
				if grew != tt.wantGrew[i] {
					t.Errorf("allocation %d grew = %v, want %v", i, grew, tt.wantGrew[i])
				}
				for _, p := range prev {
					if got, _ := a.Allocation(p.ID); got != p {
						t.Errorf("allocation %d moved from %+v to %+v", p.ID, p, got)
					}
				}
				got, _ := a.Allocation(uint32(i + 1))
				prev = append(prev, got)
			}
			if a.Capacity() != tt.wantCapacity {
				t.Errorf("Capacity() = %d, want %d", a.Capacity(), tt.wantCapacity)
			}
		})
	}
}

func TestRangeAllocatorDeallocateUnknown(t *testing.T) {
	a := NewRangeAllocator(1024, 256)
	mustAllocate(t, a, 1, 64)

	if a.Deallocate(42) {
		t.Error("Deallocate(42) = true for an unknown id")
	}
	if a.Len() != 1 || len(a.FreeSlots()) != 0 {
		t.Errorf("state changed: len=%d free=%v", a.Len(), a.FreeSlots())
	}
	a.Deallocate(1)
	if a.Deallocate(1) {
		t.Error("second Deallocate(1) = true")
	}
}

func TestRangeAllocatorRejects(t *testing.T) {
	a := NewRangeAllocator(1024, 256)
	mustAllocate(t, a, 1, 64)

	if _, _, err := a.Allocate(1, 64); !errors.Is(err, ErrAllocationExists) {
		t.Errorf("Allocate(live id) err = %v, want ErrAllocationExists", err)
	}
	if _, _, err := a.Allocate(2, 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Allocate(size 0) err = %v, want ErrInvalidSize", err)
	}

	// An id becomes usable again once freed.
	a.Deallocate(1)
	if _, _, err := a.Allocate(1, 64); err != nil {
		t.Errorf("Allocate(freed id) = %v", err)
	}
}

func TestRangeAllocatorReset(t *testing.T) {
	a := NewRangeAllocator(256, 256)
	mustAllocate(t, a, 1, 256)
	mustAllocate(t, a, 2, 256)
	a.Deallocate(1)
	capBefore := a.Capacity()

	a.Reset()

	if a.Len() != 0 || len(a.FreeSlots()) != 0 || a.NextOffset() != 0 {
		t.Errorf("Reset left len=%d free=%v tail=%d", a.Len(), a.FreeSlots(), a.NextOffset())
	}
	if a.Capacity() != capBefore {
		t.Errorf("Reset changed capacity %d -> %d", capBefore, a.Capacity())
	}
}

func TestRangeAllocatorRandomOps(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*31))
			a := NewRangeAllocator(1024, 256)
			live := map[uint32]bool{}

			for step := 0; step < 2000; step++ {
				id := uint32(rng.IntN(64))
				if live[id] && rng.IntN(3) > 0 {
					a.Deallocate(id)
					delete(live, id)
				} else if !live[id] {
					size := uint64(rng.IntN(2048) + 1)
					capBefore := a.Capacity()
					_, grew, err := a.Allocate(id, size)
					if err != nil {
						t.Fatalf("step %d: Allocate(%d, %d): %v", step, id, size, err)
					}
					if grew != (a.Capacity() != capBefore) {
						t.Fatalf("step %d: grew=%v but capacity %d -> %d", step, grew, capBefore, a.Capacity())
					}
					if a.Capacity() < capBefore {
						t.Fatalf("step %d: capacity shrank %d -> %d", step, capBefore, a.Capacity())
					}
					live[id] = true
				} else {
					a.Deallocate(uint32(64 + rng.IntN(8))) // unknown ids are no-ops
				}
				if err := checkRangeInvariants(a); err != nil {
					t.Fatalf("step %d: %v", step, err)
				}
			}
			if a.Len() != len(live) {
				t.Errorf("Len() = %d, want %d", a.Len(), len(live))
			}
		})
	}
}

func mustAllocate(t *testing.T, a *RangeAllocator, id uint32, size uint64) uint64 {
	t.Helper()
	off, _, err := a.Allocate(id, size)
	if err != nil {
		t.Fatalf("Allocate(%d, %d): %v", id, size, err)
	}
	return off
}

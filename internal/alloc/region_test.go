package alloc

import "testing"

func TestRegionAllocatorAlignment(t *testing.T) {
	tests := []struct {
		name      string
		alignment uint64
		sizes     []uint64
		want      []uint64
		wantTotal uint64
	}{
		{
			name:      "uniform 256",
			alignment: 256,
			sizes:     []uint64{64, 64, 300, 16},
			want:      []uint64{0, 256, 512, 1024},
			wantTotal: 1040,
		},
		{
			name:      "already aligned sizes",
			alignment: 256,
			sizes:     []uint64{256, 256},
			want:      []uint64{0, 256},
			wantTotal: 512,
		},
		{
			name:      "zero alignment behaves as one",
			alignment: 0,
			sizes:     []uint64{3, 5},
			want:      []uint64{0, 3},
			wantTotal: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegionAllocator(4096, tt.alignment)
			for i, size := range tt.sizes {
				if got := r.Allocate(size); got != tt.want[i] {
					t.Errorf("Allocate(%d) = %d, want %d", size, got, tt.want[i])
				}
			}
			if r.TotalSize() != tt.wantTotal {
				t.Errorf("TotalSize() = %d, want %d", r.TotalSize(), tt.wantTotal)
			}
		})
	}
}

func TestRegionAllocatorFreeDoesNotReclaim(t *testing.T) {
	r := NewRegionAllocator(4096, 256)
	a := r.Allocate(64)
	r.Allocate(64)

	r.Free(a)
	if r.Live() != 1 {
		t.Errorf("Live() = %d, want 1", r.Live())
	}
	if got := r.Allocate(64); got != 512 {
		t.Errorf("Allocate after Free = %d, want 512 (no reuse)", got)
	}

	// Unknown offsets are ignored.
	r.Free(12345)
	if r.Live() != 2 {
		t.Errorf("Live() = %d, want 2", r.Live())
	}
}

func TestRegionAllocatorNeedsResize(t *testing.T) {
	r := NewRegionAllocator(512, 256)
	r.Allocate(256)
	r.Allocate(256)
	if r.NeedsResize() {
		t.Fatal("NeedsResize() = true at exactly capacity")
	}

	r.Allocate(1)
	if !r.NeedsResize() {
		t.Fatal("NeedsResize() = false past capacity")
	}

	r.SetCapacity(AlignUp(r.TotalSize()*2, 256))
	if r.NeedsResize() {
		t.Errorf("NeedsResize() = true after SetCapacity(%d)", r.Capacity())
	}
}

func TestRegionAllocatorReset(t *testing.T) {
	r := NewRegionAllocator(1024, 256)
	r.Allocate(100)
	r.Allocate(100)

	r.Reset()

	if r.TotalSize() != 0 || r.Live() != 0 {
		t.Errorf("Reset left total=%d live=%d", r.TotalSize(), r.Live())
	}
	if r.Capacity() != 1024 || r.Alignment() != 256 {
		t.Errorf("Reset changed capacity=%d alignment=%d", r.Capacity(), r.Alignment())
	}
	if got := r.Allocate(8); got != 0 {
		t.Errorf("Allocate after Reset = %d, want 0", got)
	}
}

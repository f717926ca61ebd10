//go:build !cgo

package main

import (
	"sync"
	"testing"
)

func TestHandleLifecycle(t *testing.T) {
	h := newHandle("engine")
	if h == 0 {
		t.Fatal("expected non-zero handle")
	}

	if v, ok := lookupHandle[string](h); !ok || v != "engine" {
		t.Fatalf("lookupHandle = %q, %v", v, ok)
	}
	if _, ok := lookupHandle[int](h); ok {
		t.Fatal("lookup with the wrong type should fail")
	}
	if _, ok := releaseHandle[int](h); ok {
		t.Fatal("release with the wrong type should fail")
	}
	if _, ok := lookupHandle[string](h); !ok {
		t.Fatal("a failed typed release must keep the handle")
	}

	if v, ok := releaseHandle[string](h); !ok || v != "engine" {
		t.Fatalf("releaseHandle = %q, %v", v, ok)
	}
	if _, ok := lookupHandle[string](h); ok {
		t.Fatal("handle still live after release")
	}
	if _, ok := releaseHandle[string](h); ok {
		t.Fatal("double release should fail")
	}
}

func TestHandleZeroIsInvalid(t *testing.T) {
	if _, ok := lookupHandle[any](0); ok {
		t.Error("handle 0 resolved")
	}
	if _, ok := releaseHandle[any](0); ok {
		t.Error("handle 0 released")
	}
}

func TestHandlesConcurrent(t *testing.T) {
	const n = 200
	var wg sync.WaitGroup
	got := make([]uint64, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = newHandle(i)
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for i, h := range got {
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
		if v, ok := releaseHandle[int](h); !ok || v != i {
			t.Errorf("handle %d = %d, %v; want %d", h, v, ok, i)
		}
	}
}

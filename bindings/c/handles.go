package main

import (
	"sync"
	"sync/atomic"
)

const handleShards = 16

// handleShard is one lock domain of the handle table.
type handleShard struct {
	mu     sync.RWMutex
	values map[uint64]any
}

// Handles given to C are opaque integers; Go pointers never cross the
// boundary. Zero is never issued.
var (
	handles    [handleShards]handleShard
	lastHandle atomic.Uint64
)

func init() {
	for i := range handles {
		handles[i].values = make(map[uint64]any)
	}
}

func shardOf(h uint64) *handleShard {
	return &handles[h%handleShards]
}

// newHandle stores v and returns its handle.
func newHandle(v any) uint64 {
	h := lastHandle.Add(1)
	s := shardOf(h)
	s.mu.Lock()
	s.values[h] = v
	s.mu.Unlock()
	return h
}

// lookupHandle returns the value stored under h if it has type T.
func lookupHandle[T any](h uint64) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	s := shardOf(h)
	s.mu.RLock()
	v, ok := s.values[h]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// releaseHandle removes h and returns its value if it had type T. A value
// of another type is left in place.
func releaseHandle[T any](h uint64) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	s := shardOf(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	typed, ok := s.values[h].(T)
	if !ok {
		return zero, false
	}
	delete(s.values, h)
	return typed, true
}

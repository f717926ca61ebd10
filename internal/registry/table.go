package registry

import (
	"errors"
	"fmt"
	"slices"
)

// Registry errors.
var (
	// ErrIDCollision is returned when creating a record under a live id.
	ErrIDCollision = errors.New("registry: id already in use")

	// ErrNotFound is returned when updating or disposing an unknown id.
	ErrNotFound = errors.New("registry: id not found")
)

// Table maps caller-chosen ids to records of one kind.
type Table[T any] struct {
	kind  string
	items map[uint32]T
}

// NewTable creates an empty table. kind names the records in errors.
func NewTable[T any](kind string) *Table[T] {
	return &Table[T]{kind: kind, items: make(map[uint32]T)}
}

// Insert adds v under id. A live id is rejected, never replaced.
func (t *Table[T]) Insert(id uint32, v T) error {
	if _, ok := t.items[id]; ok {
		return fmt.Errorf("%w: %s %d", ErrIDCollision, t.kind, id)
	}
	t.items[id] = v
	return nil
}

// Get returns the record for id.
func (t *Table[T]) Get(id uint32) (T, bool) {
	v, ok := t.items[id]
	return v, ok
}

// Lookup is Get with a not-found error.
func (t *Table[T]) Lookup(id uint32) (T, error) {
	v, ok := t.items[id]
	if !ok {
		return v, fmt.Errorf("%w: %s %d", ErrNotFound, t.kind, id)
	}
	return v, nil
}

// Remove deletes and returns the record for id.
func (t *Table[T]) Remove(id uint32) (T, error) {
	v, ok := t.items[id]
	if !ok {
		return v, fmt.Errorf("%w: %s %d", ErrNotFound, t.kind, id)
	}
	delete(t.items, id)
	return v, nil
}

// Has reports whether id is live.
func (t *Table[T]) Has(id uint32) bool {
	_, ok := t.items[id]
	return ok
}

// Len returns the number of live records.
func (t *Table[T]) Len() int { return len(t.items) }

// IDs returns the live ids in ascending order.
func (t *Table[T]) IDs() []uint32 {
	ids := make([]uint32, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Each calls fn for every record in ascending id order.
func (t *Table[T]) Each(fn func(id uint32, v T)) {
	for _, id := range t.IDs() {
		fn(id, t.items[id])
	}
}

// Clear drops every record.
func (t *Table[T]) Clear() { clear(t.items) }

// Kind returns the record kind name.
func (t *Table[T]) Kind() string { return t.kind }

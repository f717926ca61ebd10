package cache

import "sync"

// PipelineKey identifies a compiled pipeline by the shader and material it
// was built from.
type PipelineKey struct {
	Shader   uint32
	Material uint32
}

// PipelineCache maps (shader, material) pairs to compiled pipeline handles.
type PipelineCache[H any] struct {
	mu      sync.Mutex
	entries map[PipelineKey]H

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewPipelineCache creates an empty cache.
func NewPipelineCache[H any]() *PipelineCache[H] {
	return &PipelineCache[H]{
		entries: make(map[PipelineKey]H),
	}
}

// Get returns the pipeline for key. Returns (zero, false) on a miss.
func (c *PipelineCache[H]) Get(key PipelineKey) (H, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return h, ok
}

// Insert stores h under key. An existing entry is never overwritten: Insert
// returns false and the caller keeps ownership of h.
func (c *PipelineCache[H]) Insert(key PipelineKey, h H) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = h
	return true
}

// RemoveShaderPipelines evicts every entry built from shader and returns the
// evicted handles.
func (c *PipelineCache[H]) RemoveShaderPipelines(shader uint32) []H {
	return c.removeWhere(func(k PipelineKey) bool { return k.Shader == shader })
}

// RemoveMaterialPipelines evicts every entry built from material and returns
// the evicted handles.
func (c *PipelineCache[H]) RemoveMaterialPipelines(material uint32) []H {
	return c.removeWhere(func(k PipelineKey) bool { return k.Material == material })
}

// Clear evicts every entry and returns the evicted handles.
func (c *PipelineCache[H]) Clear() []H {
	return c.removeWhere(func(PipelineKey) bool { return true })
}

// Len returns the number of cached pipelines.
func (c *PipelineCache[H]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Keys returns the cached keys in no particular order.
func (c *PipelineCache[H]) Keys() []PipelineKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]PipelineKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns cache statistics.
func (c *PipelineCache[H]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// removeWhere deletes matching entries. Full scan; the cache holds one
// entry per drawn (shader, material) pair, so it stays small.
func (c *PipelineCache[H]) removeWhere(match func(PipelineKey) bool) []H {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []H
	for k, h := range c.entries {
		if match(k) {
			out = append(out, h)
			delete(c.entries, k)
		}
	}
	c.evictions += uint64(len(out))
	return out
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Hits is the number of Get calls that found an entry.
	Hits uint64
	// Misses is the number of Get calls that found nothing.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when nothing was looked up.
	HitRate float64
	// Evictions is the number of entries removed by invalidation or Clear.
	Evictions uint64
}

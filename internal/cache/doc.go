// Package cache memoizes compiled render pipelines.
//
// # PipelineCache[H]
//
// Entries are keyed by the exact (shader, material) pair that produced the
// pipeline. A miss is not an error: the caller compiles the pipeline and
// inserts it. Entries are never replaced in place. When a shader or a
// material changes, every entry that depends on it is evicted by a full scan
// and the evicted handles are returned so the caller can destroy them.
//
//	pc := cache.NewPipelineCache[hal.RenderPipeline]()
//	key := cache.PipelineKey{Shader: 1, Material: 4}
//	if p, ok := pc.Get(key); ok {
//		return p
//	}
//	p := compile()
//	pc.Insert(key, p)
//
// # Thread Safety
//
// PipelineCache is safe for concurrent use. It must not be copied after
// creation (it contains a mutex).
package cache

package g3d

import (
	"fmt"

	"github.com/gogpu/g3d/internal/cache"
	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/wgpu/hal"
	"gopkg.in/yaml.v3"
)

// FrameResult summarizes one SyncFrame.
type FrameResult struct {
	Frame     uint64 `yaml:"frame"`
	Written   int    `yaml:"written"`
	Skipped   int    `yaml:"skipped"`
	Failed    int    `yaml:"failed"`
	Retargets int    `yaml:"retargets"`
	Resized   int    `yaml:"resized"`
}

// SyncFrame runs the per-frame buffer sync pass. Every dirty component
// gets a uniform slot on first sync and has its payload written there;
// its dirty flag is cleared only when the write succeeds. Region buffers
// that outgrew their capacity are recreated first and every record of the
// class is rewritten. Inactive cameras are skipped and stay dirty.
//
// A failed write leaves its record dirty for the next frame; the first
// such error is returned alongside the result.
func (e *Engine) SyncFrame() (FrameResult, error) {
	if err := e.check(); err != nil {
		return FrameResult{}, err
	}

	var res FrameResult
	if err := e.components.Place(e.regions); err != nil {
		return res, err
	}
	for _, class := range gpu.RegionClasses {
		if !e.regions.NeedsResize(class) {
			continue
		}
		resized, err := e.regions.Resize(class)
		if err != nil {
			return res, fmt.Errorf("sync: %w", err)
		}
		if resized {
			n := e.components.MarkClassDirty(class)
			e.regionGrow++
			res.Resized++
			Logger().Warn("g3d: region buffer resized", "class", class, "rewrites", n)
		}
	}

	sr := e.components.Sync(e.regions)
	e.frame++
	e.lastSync = sr
	res.Frame = e.frame
	res.Written, res.Skipped, res.Failed, res.Retargets = sr.Written, sr.Skipped, sr.Failed, sr.Retarget
	e.publishStats()
	if sr.Err != nil {
		return res, fmt.Errorf("sync: %w", sr.Err)
	}
	return res, nil
}

// ResolvePipeline returns the pipeline for drawing with shader and
// material, building and caching it on a miss.
func (e *Engine) ResolvePipeline(shader, material uint32) (hal.RenderPipeline, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	key := cache.PipelineKey{Shader: shader, Material: material}
	if p, ok := e.pipelines.Get(key); ok {
		return p, nil
	}

	s, err := e.resources.Shaders.Lookup(shader)
	if err != nil {
		return nil, err
	}
	m, err := e.resources.Materials.Lookup(material)
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("pipeline_%d_%d", shader, material)
	p, err := gpu.BuildRenderPipeline(e.device.Device, e.layouts, label, s.Module, m.Layout, m.Spec)
	if err != nil {
		return nil, fmt.Errorf("resolve pipeline: %w", err)
	}
	e.pipelines.Insert(key, p)
	Logger().Debug("g3d: pipeline built", "shader", shader, "material", material)
	return p, nil
}

// Tick applies completed background work in completion order and returns
// how many completions were applied. Completions for disposed textures,
// or superseded by a later update, are dropped.
func (e *Engine) Tick() (int, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	applied := 0
	var firstErr error
	for _, c := range e.completions.Drain() {
		t, ok := e.resources.Textures.Get(c.Texture)
		if !ok || t.Ticket != c.Ticket {
			e.dropped++
			Logger().Warn("g3d: stale decode dropped", "texture", c.Texture)
			continue
		}
		t.Pending = false
		if c.Err != nil {
			Logger().Warn("g3d: texture decode failed", "texture", c.Texture, "err", c.Err)
			if firstErr == nil {
				firstErr = fmt.Errorf("decode texture %d: %w", c.Texture, c.Err)
			}
			continue
		}
		b := c.Image.Bounds()
		desc := gpu.TextureDesc{Width: uint32(b.Dx()), Height: uint32(b.Dy())} //nolint:gosec // bounded by MaxTextureDimension
		if t.Tex == nil {
			tex, err := gpu.NewTexture(e.device.Device, e.device.Queue, fmt.Sprintf("texture_%d", c.Texture), desc, c.Image.Pix)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			t.Tex = tex
		} else if err := t.Tex.Update(desc, c.Image.Pix); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
	}
	e.publishStats()
	return applied, firstErr
}

// Stats is a snapshot of the engine's allocators, caches and registries.
type Stats struct {
	State State  `yaml:"state"`
	Frame uint64 `yaml:"frame"`

	Regions  []gpu.RegionStats `yaml:"regions"`
	Vertices gpu.PoolStats     `yaml:"vertices"`
	Indices  gpu.PoolStats     `yaml:"indices"`
	Bones    gpu.BoneStats     `yaml:"bones"`

	Pipelines          cache.Stats `yaml:"pipelines"`
	PipelinesDestroyed uint64      `yaml:"pipelines_destroyed"`

	Resources  map[string]int `yaml:"resources"`
	Components map[string]int `yaml:"components"`
	Dirty      int            `yaml:"dirty"`

	Uploads            int    `yaml:"uploads"`
	UploadBytes        uint64 `yaml:"upload_bytes"`
	PendingCompletions int    `yaml:"pending_completions"`
	DroppedCompletions uint64 `yaml:"dropped_completions"`
	RegionResizes      uint64 `yaml:"region_resizes"`

	LastSync FrameResult `yaml:"last_sync"`
}

// publishStats refreshes the snapshot read by Stats. Render thread only.
func (e *Engine) publishStats() {
	s := &Stats{State: e.State(), Frame: e.frame}
	if s.State == StateReady {
		s.Regions = e.regions.Stats()
		s.Vertices, s.Indices = e.geometry.Stats()
		s.Bones = e.bones.Stats()
		s.Pipelines = e.pipelines.Stats()
		s.Resources = e.resources.Counts()
		s.Components = e.components.Counts()
		s.Dirty = e.components.DirtyCount()
	}
	s.PipelinesDestroyed = e.destroyed
	s.DroppedCompletions = e.dropped
	s.RegionResizes = e.regionGrow
	s.LastSync = FrameResult{
		Frame:     e.frame,
		Written:   e.lastSync.Written,
		Skipped:   e.lastSync.Skipped,
		Failed:    e.lastSync.Failed,
		Retargets: e.lastSync.Retarget,
	}
	e.stats.Store(s)
}

// Stats returns the snapshot published by the last Init, SyncFrame, Tick
// or Dispose, with live upload and completion counts. Safe from any
// goroutine.
func (e *Engine) Stats() Stats {
	s := *e.stats.Load()
	s.Uploads, s.UploadBytes = e.uploads.stats()
	s.PendingCompletions = e.completions.Len()
	return s
}

// PublishStats stores a YAML rendering of Stats as a raw buffer under id
// for the host to download.
func (e *Engine) PublishStats(id uint64) error {
	if e.State() == StateDisposed {
		return ErrNotInitialized
	}
	data, err := yaml.Marshal(e.Stats())
	if err != nil {
		return fmt.Errorf("publish stats: %w", err)
	}
	return e.uploads.put(id, UploadRaw, data)
}

package cache

import (
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sortedKeys(c *PipelineCache[string]) []PipelineKey {
	keys := c.Keys()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Shader != keys[j].Shader {
			return keys[i].Shader < keys[j].Shader
		}
		return keys[i].Material < keys[j].Material
	})
	return keys
}

func TestPipelineCacheInvalidation(t *testing.T) {
	tests := []struct {
		name        string
		remove      func(c *PipelineCache[string]) []string
		wantEvicted []string
		wantKeys    []PipelineKey
	}{
		{
			name:        "shader",
			remove:      func(c *PipelineCache[string]) []string { return c.RemoveShaderPipelines(1) },
			wantEvicted: []string{"1/1", "1/2"},
			wantKeys:    []PipelineKey{},
		},
		{
			name:        "material",
			remove:      func(c *PipelineCache[string]) []string { return c.RemoveMaterialPipelines(2) },
			wantEvicted: []string{"1/2"},
			wantKeys:    []PipelineKey{{Shader: 1, Material: 1}},
		},
		{
			name:        "unknown shader",
			remove:      func(c *PipelineCache[string]) []string { return c.RemoveShaderPipelines(9) },
			wantEvicted: nil,
			wantKeys:    []PipelineKey{{Shader: 1, Material: 1}, {Shader: 1, Material: 2}},
		},
		{
			name:        "clear",
			remove:      func(c *PipelineCache[string]) []string { return c.Clear() },
			wantEvicted: []string{"1/1", "1/2"},
			wantKeys:    []PipelineKey{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPipelineCache[string]()
			c.Insert(PipelineKey{Shader: 1, Material: 1}, "1/1")
			c.Insert(PipelineKey{Shader: 1, Material: 2}, "1/2")

			evicted := tt.remove(c)
			sort.Strings(evicted)

			if diff := cmp.Diff(tt.wantEvicted, evicted); diff != "" {
				t.Errorf("evicted (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantKeys, sortedKeys(c)); diff != "" {
				t.Errorf("remaining keys (-want +got):\n%s", diff)
			}
			if got := c.Stats().Evictions; got != uint64(len(tt.wantEvicted)) {
				t.Errorf("Stats().Evictions = %d, want %d", got, len(tt.wantEvicted))
			}
		})
	}
}

func TestPipelineCacheExactKey(t *testing.T) {
	c := NewPipelineCache[string]()
	c.Insert(PipelineKey{Shader: 1, Material: 2}, "a")

	if _, ok := c.Get(PipelineKey{Shader: 2, Material: 1}); ok {
		t.Error("Get matched a swapped key")
	}
	if _, ok := c.Get(PipelineKey{Shader: 1}); ok {
		t.Error("Get matched a partial key")
	}
	if got, ok := c.Get(PipelineKey{Shader: 1, Material: 2}); !ok || got != "a" {
		t.Errorf("Get = %q, %v; want \"a\", true", got, ok)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 2 {
		t.Errorf("Stats() hits=%d misses=%d, want 1 and 2", s.Hits, s.Misses)
	}
	if s.HitRate < 0.33 || s.HitRate > 0.34 {
		t.Errorf("Stats().HitRate = %v, want 1/3", s.HitRate)
	}
}

func TestPipelineCacheInsertNeverReplaces(t *testing.T) {
	c := NewPipelineCache[string]()
	key := PipelineKey{Shader: 3, Material: 3}

	if !c.Insert(key, "first") {
		t.Fatal("first Insert = false")
	}
	if c.Insert(key, "second") {
		t.Error("second Insert = true, want false")
	}
	if got, _ := c.Get(key); got != "first" {
		t.Errorf("Get = %q, want \"first\"", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestPipelineCacheConcurrent(t *testing.T) {
	c := NewPipelineCache[int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := PipelineKey{Shader: uint32(g), Material: uint32(i)}
				c.Insert(key, i)
				c.Get(key)
			}
			c.RemoveShaderPipelines(uint32(g))
		}(g)
	}
	wg.Wait()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after every shader was removed", c.Len())
	}
}

func BenchmarkPipelineCacheGet(b *testing.B) {
	c := NewPipelineCache[string]()
	for i := 0; i < 100; i++ {
		c.Insert(PipelineKey{Shader: uint32(i % 10), Material: uint32(i)}, strconv.Itoa(i))
	}
	key := PipelineKey{Shader: 5, Material: 55}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(key)
	}
}

func BenchmarkPipelineCacheRemoveMaterial(b *testing.B) {
	c := NewPipelineCache[string]()
	for i := 0; i < b.N; i++ {
		c.Insert(PipelineKey{Shader: 1, Material: uint32(i)}, "p")
		c.RemoveMaterialPipelines(uint32(i))
	}
}

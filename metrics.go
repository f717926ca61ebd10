package g3d

import (
	"github.com/gogpu/g3d/internal/gpu"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "g3d"

var (
	descFrames = prometheus.NewDesc(
		metricsNamespace+"_frames_total",
		"Number of completed sync passes.",
		nil, nil,
	)
	descRegionCapacity = prometheus.NewDesc(
		metricsNamespace+"_region_capacity_bytes",
		"Backing buffer size of each uniform region class.",
		[]string{"class"}, nil,
	)
	descRegionUsed = prometheus.NewDesc(
		metricsNamespace+"_region_used_bytes",
		"Bytes handed out by each uniform region allocator.",
		[]string{"class"}, nil,
	)
	descRegionResizes = prometheus.NewDesc(
		metricsNamespace+"_region_resizes_total",
		"Number of region buffer recreations.",
		nil, nil,
	)
	descPoolCapacity = prometheus.NewDesc(
		metricsNamespace+"_geometry_pool_capacity_bytes",
		"Capacity of the shared geometry buffers.",
		[]string{"pool"}, nil,
	)
	descPoolUsed = prometheus.NewDesc(
		metricsNamespace+"_geometry_pool_used_bytes",
		"Live bytes in the shared geometry buffers.",
		[]string{"pool"}, nil,
	)
	descPoolFreeSlots = prometheus.NewDesc(
		metricsNamespace+"_geometry_pool_free_slots",
		"Free slots in the shared geometry buffers.",
		[]string{"pool"}, nil,
	)
	descBoneSlots = prometheus.NewDesc(
		metricsNamespace+"_bone_slots",
		"Bone matrix slots by state.",
		[]string{"state"}, nil,
	)
	descPipelines = prometheus.NewDesc(
		metricsNamespace+"_pipeline_cache_entries",
		"Number of cached pipelines.",
		nil, nil,
	)
	descPipelineLookups = prometheus.NewDesc(
		metricsNamespace+"_pipeline_cache_lookups_total",
		"Pipeline cache lookups by outcome.",
		[]string{"outcome"}, nil,
	)
	descRecords = prometheus.NewDesc(
		metricsNamespace+"_records",
		"Live registry records by kind.",
		[]string{"registry", "kind"}, nil,
	)
	descDirty = prometheus.NewDesc(
		metricsNamespace+"_dirty_records",
		"Component records awaiting the next sync pass.",
		nil, nil,
	)
	descUploads = prometheus.NewDesc(
		metricsNamespace+"_upload_buffers",
		"Host buffers held by the engine.",
		nil, nil,
	)
	descUploadBytes = prometheus.NewDesc(
		metricsNamespace+"_upload_bytes",
		"Bytes held in host buffers.",
		nil, nil,
	)
)

// Collector exposes an engine's Stats as Prometheus metrics. It reads the
// published snapshot, so scrapes never touch render-thread state.
type Collector struct {
	engine *Engine
}

// Check if Collector implements necessary interface
var _ prometheus.Collector = &Collector{}

// NewCollector returns a collector for e. WithMetricsRegisterer registers
// one automatically.
func NewCollector(e *Engine) *Collector {
	return &Collector{engine: e}
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descFrames, descRegionCapacity, descRegionUsed, descRegionResizes,
		descPoolCapacity, descPoolUsed, descPoolFreeSlots, descBoneSlots,
		descPipelines, descPipelineLookups, descRecords, descDirty,
		descUploads, descUploadBytes,
	} {
		ch <- d
	}
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	counter(descFrames, float64(s.Frame))
	counter(descRegionResizes, float64(s.RegionResizes))
	gauge(descUploads, float64(s.Uploads))
	gauge(descUploadBytes, float64(s.UploadBytes))
	if s.State != StateReady {
		return
	}

	for _, r := range s.Regions {
		gauge(descRegionCapacity, float64(r.Capacity), r.Class.String())
		gauge(descRegionUsed, float64(r.Total), r.Class.String())
	}
	for _, p := range []struct {
		name  string
		stats gpu.PoolStats
	}{
		{"vertex", s.Vertices},
		{"index", s.Indices},
	} {
		gauge(descPoolCapacity, float64(p.stats.Capacity), p.name)
		gauge(descPoolUsed, float64(p.stats.Used), p.name)
		gauge(descPoolFreeSlots, float64(p.stats.FreeSlots), p.name)
	}
	gauge(descBoneSlots, float64(s.Bones.Used), "used")
	gauge(descBoneSlots, float64(s.Bones.Capacity-min(s.Bones.Used, s.Bones.Capacity)), "unused")

	gauge(descPipelines, float64(s.Pipelines.Len))
	counter(descPipelineLookups, float64(s.Pipelines.Hits), "hit")
	counter(descPipelineLookups, float64(s.Pipelines.Misses), "miss")

	for kind, n := range s.Resources {
		gauge(descRecords, float64(n), "resource", kind)
	}
	for kind, n := range s.Components {
		gauge(descRecords, float64(n), "component", kind)
	}
	gauge(descDirty, float64(s.Dirty))
}

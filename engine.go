package g3d

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/g3d/internal/cache"
	"github.com/gogpu/g3d/internal/gpu"
	"github.com/gogpu/g3d/internal/registry"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/prometheus/client_golang/prometheus"
)

// State is the engine lifecycle state.
type State int32

// Lifecycle states. An engine moves forward only:
// Uninitialized, then Ready after Init, then Disposed after Dispose.
const (
	StateUninitialized State = iota
	StateReady
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateDisposed:
		return "Disposed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalYAML renders the state by name.
func (s State) MarshalYAML() (any, error) { return s.String(), nil }

// Engine is the retained-state GPU core. The host creates one, initializes
// it with a device, drives it from a single render thread and disposes it.
//
// Commands, Tick and SyncFrame must run on the render thread. UploadBuffer,
// DownloadBuffer, State and Stats may be called from any goroutine.
type Engine struct {
	config      Config
	colorFormat gputypes.TextureFormat
	registerer  prometheus.Registerer

	state  atomic.Int32
	thread uint64

	device     *gpu.Device
	layouts    *gpu.Layouts
	regions    *gpu.RegionManager
	geometry   *gpu.GeometryPool
	bones      *gpu.BoneBuffer
	pipelines  *cache.PipelineCache[hal.RenderPipeline]
	resources  *registry.ResourceRegistry
	components *registry.ComponentRegistry

	uploads     *uploadStore
	completions *CompletionQueue
	decoder     *DecodePool
	collector   *Collector

	frame      uint64
	ticket     uint64
	lastSync   registry.SyncResult
	stats      atomic.Pointer[Stats]
	destroyed  uint64
	dropped    uint64
	regionGrow uint64
}

// New creates an uninitialized engine. The configuration is validated
// here; GPU objects are created by Init.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	format, err := parseColorFormat(o.config.ColorFormat)
	if err != nil {
		return nil, err
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	e := &Engine{
		config:      o.config,
		colorFormat: format,
		registerer:  o.registerer,
		uploads:     newUploadStore(),
		completions: &CompletionQueue{},
	}
	e.stats.Store(&Stats{State: StateUninitialized})
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// State returns the lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Init binds the engine to a device owned by the host. The calling OS
// thread becomes the render thread.
func (e *Engine) Init(device hal.Device, queue hal.Queue) error {
	if device == nil || queue == nil {
		return fmt.Errorf("%w: nil device or queue", ErrInvalidArgument)
	}
	return e.init(gpu.WrapDevice(device, queue))
}

// InitWithProvider shares the device of a gpucontext host. The provider
// must also expose HAL handles through HalDevice() and HalQueue().
func (e *Engine) InitWithProvider(provider gpucontext.DeviceProvider) error {
	if provider == nil {
		return fmt.Errorf("%w: nil provider", ErrInvalidArgument)
	}
	dev, err := gpu.DeviceFromProvider(provider)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return e.init(dev)
}

// Open creates a device of its own on factory and initializes with it.
// Dispose destroys the device.
func (e *Engine) Open(factory gpu.InstanceFactory) error {
	if e.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	dev, err := gpu.OpenDevice(factory)
	if err != nil {
		return err
	}
	if err := e.init(dev); err != nil {
		dev.Close()
		return err
	}
	return nil
}

// OpenBackend is Open on a registered HAL backend.
func (e *Engine) OpenBackend(backend gputypes.Backend) error {
	if e.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}
	dev, err := gpu.OpenBackend(backend)
	if err != nil {
		return err
	}
	if err := e.init(dev); err != nil {
		dev.Close()
		return err
	}
	return nil
}

func (e *Engine) init(dev *gpu.Device) error {
	if e.State() != StateUninitialized {
		return ErrAlreadyInitialized
	}

	layouts, err := gpu.NewLayouts(dev.Device)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	cfg := &e.config
	e.device = dev
	e.layouts = layouts
	e.regions = gpu.NewRegionManager(dev.Device, dev.Queue, cfg.regionConfig())
	e.geometry = gpu.NewGeometryPool(dev.Device, dev.Queue, cfg.geometryConfig())
	e.bones = gpu.NewBoneBuffer(dev.Device, dev.Queue, cfg.BoneCapacity)
	e.pipelines = cache.NewPipelineCache[hal.RenderPipeline]()
	e.resources = registry.NewResourceRegistry()
	e.components = registry.NewComponentRegistry(dev.Device, cfg.targetsConfig())
	e.decoder = NewDecodePool(cfg.DecodeWorkers, cfg.MaxTextureDimension, e.completions)

	if e.registerer != nil {
		c := NewCollector(e)
		if err := e.registerer.Register(c); err != nil {
			e.teardown()
			e.reset()
			return fmt.Errorf("init: register metrics: %w", err)
		}
		e.collector = c
	}

	if cfg.ThreadCheck {
		e.thread = currentThreadID()
	}
	e.state.Store(int32(StateReady))
	e.publishStats()
	Logger().Info("g3d: engine initialized",
		"adapter", dev.AdapterName,
		"owned_device", dev.Owned(),
		"thread_check", cfg.ThreadCheck)
	return nil
}

// Dispose releases every GPU object the engine created, in dependency
// order, and moves the engine to StateDisposed. Pending decodes are
// dropped. A device opened by Open is destroyed; a host device is not.
func (e *Engine) Dispose() error {
	if err := e.check(); err != nil {
		return err
	}
	e.state.Store(int32(StateDisposed))
	e.teardown()
	e.uploads.clear()
	e.publishStats()
	Logger().Info("g3d: engine disposed", "frames", e.frame)
	return nil
}

// teardown destroys pipelines, then render target views and textures,
// then resources, then the shared buffers and layouts, then the device.
func (e *Engine) teardown() {
	if e.decoder != nil {
		e.decoder.Close()
		e.completions.Drain()
	}
	if e.collector != nil && e.registerer != nil {
		e.registerer.Unregister(e.collector)
	}
	if e.pipelines != nil {
		for _, p := range e.pipelines.Clear() {
			e.destroyPipeline(p)
		}
	}
	if e.components != nil {
		e.components.DropAll()
	}
	if e.resources != nil {
		e.resources.DropAll(e.device.Device, e.geometry)
	}
	if e.regions != nil {
		e.regions.Destroy()
	}
	if e.geometry != nil {
		e.geometry.Destroy()
	}
	if e.bones != nil {
		e.bones.Destroy()
	}
	if e.layouts != nil {
		e.layouts.Destroy()
	}
	if e.device != nil {
		e.device.Close()
	}
}

// reset forgets the objects of a failed init so Init can be retried. The
// state never left StateUninitialized and the published stats still say so.
func (e *Engine) reset() {
	e.device, e.layouts = nil, nil
	e.regions, e.geometry, e.bones = nil, nil, nil
	e.pipelines, e.resources, e.components = nil, nil, nil
	e.decoder, e.collector = nil, nil
	e.destroyed = 0
}

func (e *Engine) destroyPipeline(p hal.RenderPipeline) {
	if p != nil {
		e.device.Device.DestroyRenderPipeline(p)
		e.destroyed++
	}
}

// check guards render-thread entry points.
func (e *Engine) check() error {
	if e.State() != StateReady {
		return ErrNotInitialized
	}
	if e.config.ThreadCheck && currentThreadID() != e.thread {
		return ErrWrongThread
	}
	return nil
}

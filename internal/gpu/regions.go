package gpu

import (
	"fmt"

	"github.com/gogpu/g3d/internal/alloc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RegionClass names a family of uniform records sharing one buffer.
type RegionClass int

// Region classes.
const (
	RegionCamera RegionClass = iota
	RegionModel
	RegionMaterial
	RegionLight

	numRegionClasses
)

// RegionClasses lists every class.
var RegionClasses = [...]RegionClass{RegionCamera, RegionModel, RegionMaterial, RegionLight}

func (c RegionClass) String() string {
	switch c {
	case RegionCamera:
		return "camera"
	case RegionModel:
		return "model"
	case RegionMaterial:
		return "material"
	case RegionLight:
		return "light"
	default:
		return fmt.Sprintf("RegionClass(%d)", int(c))
	}
}

// Default region buffer sizes.
const (
	DefaultCameraRegionCapacity   = 16 << 10
	DefaultModelRegionCapacity    = 256 << 10
	DefaultMaterialRegionCapacity = 64 << 10
	DefaultLightRegionCapacity    = 16 << 10

	// DefaultUniformAlignment matches minUniformBufferOffsetAlignment on
	// every desktop backend.
	DefaultUniformAlignment = 256
)

// RegionConfig sizes the region buffers.
type RegionConfig struct {
	// Alignment is the uniform offset alignment. Defaults to
	// DefaultUniformAlignment if zero.
	Alignment uint64

	// Capacities holds the initial buffer size per class, indexed by
	// RegionClass. Zero entries take the class default.
	Capacities [numRegionClasses]uint64
}

func (c RegionConfig) withDefaults() RegionConfig {
	if c.Alignment == 0 {
		c.Alignment = DefaultUniformAlignment
	}
	defaults := [numRegionClasses]uint64{
		DefaultCameraRegionCapacity,
		DefaultModelRegionCapacity,
		DefaultMaterialRegionCapacity,
		DefaultLightRegionCapacity,
	}
	for i := range c.Capacities {
		if c.Capacities[i] == 0 {
			c.Capacities[i] = defaults[i]
		}
	}
	return c
}

type regionPool struct {
	alloc  *alloc.RegionAllocator
	buffer hal.Buffer
}

// RegionStats describes one region class.
type RegionStats struct {
	Class    RegionClass
	Capacity uint64
	Total    uint64
	Live     int
	Resizes  uint64
}

// RegionManager pairs one RegionAllocator with one uniform buffer per
// RegionClass. Both are created on the first allocation for the class.
type RegionManager struct {
	device hal.Device
	queue  hal.Queue
	config RegionConfig

	pools   [numRegionClasses]*regionPool
	resizes [numRegionClasses]uint64
}

// NewRegionManager creates a manager. No GPU memory is touched until the
// first Allocate.
func NewRegionManager(device hal.Device, queue hal.Queue, config RegionConfig) *RegionManager {
	return &RegionManager{
		device: device,
		queue:  queue,
		config: config.withDefaults(),
	}
}

func (m *RegionManager) pool(class RegionClass) (*regionPool, error) {
	if class < 0 || class >= numRegionClasses {
		return nil, fmt.Errorf("gpu: unknown region class %d", int(class))
	}
	if p := m.pools[class]; p != nil {
		return p, nil
	}
	capacity := m.config.Capacities[class]
	buf, err := createBuffer(m.device, "region_"+class.String(), capacity,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	p := &regionPool{
		alloc:  alloc.NewRegionAllocator(capacity, m.config.Alignment),
		buffer: buf,
	}
	m.pools[class] = p
	return p, nil
}

// Allocate reserves size bytes in class and returns the aligned offset.
// Capacity overflow is not an error; check NeedsResize.
func (m *RegionManager) Allocate(class RegionClass, size uint64) (uint64, error) {
	p, err := m.pool(class)
	if err != nil {
		return 0, err
	}
	off := p.alloc.Allocate(size)
	if p.alloc.NeedsResize() {
		slogger().Warn("gpu: region buffer over capacity",
			"class", class, "total", p.alloc.TotalSize(), "capacity", p.alloc.Capacity())
	}
	return off, nil
}

// NeedsResize reports whether the class has handed out more bytes than its
// buffer holds.
func (m *RegionManager) NeedsResize(class RegionClass) bool {
	if class < 0 || class >= numRegionClasses || m.pools[class] == nil {
		return false
	}
	return m.pools[class].alloc.NeedsResize()
}

// Resize recreates the class buffer at max(capacity*2, total) if it is over
// capacity. Offsets stay valid but the new buffer is empty, so the caller
// must rewrite every live record of the class. It reports whether the
// buffer was recreated.
func (m *RegionManager) Resize(class RegionClass) (bool, error) {
	if !m.NeedsResize(class) {
		return false, nil
	}
	p := m.pools[class]
	capacity := max(p.alloc.Capacity()*2, alloc.AlignUp(p.alloc.TotalSize(), m.config.Alignment))

	buf, err := createBuffer(m.device, "region_"+class.String(), capacity,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return false, fmt.Errorf("resize %s regions: %w", class, err)
	}
	m.device.DestroyBuffer(p.buffer)
	p.buffer = buf
	p.alloc.SetCapacity(capacity)
	m.resizes[class]++

	slogger().Debug("gpu: region buffer resized", "class", class, "capacity", capacity)
	return true, nil
}

// Write uploads data at offset inside the class buffer.
func (m *RegionManager) Write(class RegionClass, offset uint64, data []byte) error {
	if class < 0 || class >= numRegionClasses || m.pools[class] == nil {
		return fmt.Errorf("%w: %s regions", ErrNoBuffer, class)
	}
	p := m.pools[class]
	data = padWrite(data)
	if offset+uint64(len(data)) > p.alloc.Capacity() {
		return fmt.Errorf("%w: %s region [%d,%d) capacity %d",
			ErrOutOfBounds, class, offset, offset+uint64(len(data)), p.alloc.Capacity())
	}
	m.queue.WriteBuffer(p.buffer, offset, data)
	return nil
}

// Buffer returns the class buffer, or nil before the first allocation.
func (m *RegionManager) Buffer(class RegionClass) hal.Buffer {
	if class < 0 || class >= numRegionClasses || m.pools[class] == nil {
		return nil
	}
	return m.pools[class].buffer
}

// Free forgets the region at offset. Space is not reclaimed until Reset.
func (m *RegionManager) Free(class RegionClass, offset uint64) {
	if class < 0 || class >= numRegionClasses || m.pools[class] == nil {
		return
	}
	m.pools[class].alloc.Free(offset)
}

// Reset drops every region of the class. The buffer is kept.
func (m *RegionManager) Reset(class RegionClass) {
	if class < 0 || class >= numRegionClasses || m.pools[class] == nil {
		return
	}
	m.pools[class].alloc.Reset()
}

// Stats returns one entry per class that has been allocated from.
func (m *RegionManager) Stats() []RegionStats {
	var out []RegionStats
	for _, class := range RegionClasses {
		p := m.pools[class]
		if p == nil {
			continue
		}
		out = append(out, RegionStats{
			Class:    class,
			Capacity: p.alloc.Capacity(),
			Total:    p.alloc.TotalSize(),
			Live:     p.alloc.Live(),
			Resizes:  m.resizes[class],
		})
	}
	return out
}

// Destroy releases every region buffer. The manager can be reused; buffers
// are recreated on the next Allocate.
func (m *RegionManager) Destroy() {
	for _, class := range RegionClasses {
		if p := m.pools[class]; p != nil {
			if p.buffer != nil {
				m.device.DestroyBuffer(p.buffer)
			}
			m.pools[class] = nil
		}
	}
}

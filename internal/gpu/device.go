package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Device errors.
var (
	// ErrNoAdapter is returned when the backend exposes no adapter.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrBackendUnavailable is returned when the requested backend is not
	// compiled in.
	ErrBackendUnavailable = errors.New("gpu: backend not available")

	// ErrNotHALProvider is returned when a shared device provider does not
	// expose HAL handles.
	ErrNotHALProvider = errors.New("gpu: provider does not expose HAL types")
)

// InstanceFactory creates HAL instances. hal.Backend and the noop API both
// satisfy it.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Device is an opened device and its queue.
type Device struct {
	Device      hal.Device
	Queue       hal.Queue
	AdapterName string

	instance hal.Instance
	owned    bool
}

// OpenDevice creates an instance on factory and opens the first discrete or
// integrated adapter, falling back to the first adapter listed.
func OpenDevice(factory InstanceFactory) (*Device, error) {
	instance, err := factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &Device{
		Device:      openDev.Device,
		Queue:       openDev.Queue,
		AdapterName: selected.Info.Name,
		instance:    instance,
		owned:       true,
	}, nil
}

// OpenBackend opens a device on a registered HAL backend.
func OpenBackend(variant gputypes.Backend) (*Device, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, variant)
	}
	return OpenDevice(backend)
}

// WrapDevice wraps a device owned by someone else. Close leaves it alone.
func WrapDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{Device: device, Queue: queue}
}

// DeviceFromProvider extracts HAL handles from a host that shares its
// device. The provider must implement HalDevice() any and HalQueue() any.
func DeviceFromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}
	return WrapDevice(device, queue), nil
}

// Owned reports whether Close destroys the device.
func (d *Device) Owned() bool { return d.owned }

// Close destroys the device and instance if OpenDevice created them.
func (d *Device) Close() {
	if !d.owned {
		return
	}
	if d.Device != nil {
		d.Device.Destroy()
		d.Device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.Queue = nil
}

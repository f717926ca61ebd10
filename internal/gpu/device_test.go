package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/wgpu/hal/noop"
)

type halProvider struct {
	device any
	queue  any
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestOpenDeviceNoop(t *testing.T) {
	dev, err := OpenDevice(&noop.API{})
	if err != nil {
		t.Fatalf("OpenDevice failed: %v", err)
	}
	if dev.Device == nil || dev.Queue == nil {
		t.Fatal("nil device or queue")
	}
	if !dev.Owned() {
		t.Error("opened device should be owned")
	}
	dev.Close()
	dev.Close()
	if dev.Device != nil {
		t.Error("device survived Close")
	}
}

func TestDeviceFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	dev, err := DeviceFromProvider(halProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("DeviceFromProvider failed: %v", err)
	}
	if dev.Owned() {
		t.Error("shared device must not be owned")
	}
	dev.Close()
	if dev.Device == nil {
		t.Error("Close destroyed a shared device")
	}

	tests := []struct {
		name     string
		provider any
	}{
		{"not a provider", struct{}{}},
		{"wrong device type", halProvider{device: "x", queue: queue}},
		{"wrong queue type", halProvider{device: device, queue: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DeviceFromProvider(tt.provider); !errors.Is(err, ErrNotHALProvider) {
				t.Errorf("err = %v, want ErrNotHALProvider", err)
			}
		})
	}
}

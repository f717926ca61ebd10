package g3d

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewDefault tests that New uses DefaultConfig without options.
func TestNewDefault(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.State() != StateUninitialized {
		t.Errorf("State() = %v, want Uninitialized", e.State())
	}
	if e.Config() != DefaultConfig() {
		t.Errorf("Config() = %+v, want defaults", e.Config())
	}
	if e.registerer != nil {
		t.Error("registerer set without WithMetricsRegisterer")
	}
}

// TestOptionsApplyInOrder tests that field options override WithConfig
// when they come after it.
func TestOptionsApplyInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DecodeWorkers = 8
	cfg.ColorFormat = "bgra8unorm"

	reg := prometheus.NewRegistry()
	e, err := New(
		WithConfig(cfg),
		WithDecodeWorkers(2),
		WithThreadCheck(true),
		WithMetricsRegisterer(reg),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := e.Config()
	if got.DecodeWorkers != 2 {
		t.Errorf("DecodeWorkers = %d, want 2", got.DecodeWorkers)
	}
	if !got.ThreadCheck {
		t.Error("ThreadCheck not applied")
	}
	if got.ColorFormat != "bgra8unorm" {
		t.Errorf("ColorFormat = %q", got.ColorFormat)
	}
	if e.registerer != reg {
		t.Error("WithMetricsRegisterer not applied")
	}
}

// TestWithLogger tests that WithLogger installs the package logger.
func TestWithLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if _, err := New(WithLogger(l)); err != nil {
		t.Fatalf("New: %v", err)
	}
	if Logger() != l {
		t.Fatal("WithLogger did not install the logger")
	}

	e := newTestEngine(t)
	if err := e.Dispose(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("engine initialized")) {
		t.Errorf("log output missing init line:\n%s", buf.String())
	}
}

package daemon

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/display/displaytest"
	"github.com/1broseidon/xgrab/internal/ipc"
)

func newDaemon(t *testing.T, cfg *config.Config, load func() (*config.Config, error)) (*Daemon, *displaytest.Server, *displaytest.Memory) {
	t.Helper()
	srv := displaytest.NewServer()
	mem := displaytest.NewMemory()
	d, err := New(Options{
		Config:         cfg,
		Dial:           srv.Dialer(),
		Load:           load,
		Logger:         displaytest.QuietLogger(),
		ConnOptions:    []display.Option{display.WithSharedMemory(mem)},
		MonitorRefresh: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d, srv, mem
}

func TestCapture_DefaultsToConfiguredFullScreenOverShm(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.MaxWidth = 192
	d, srv, _ := newDaemon(t, cfg, nil)
	defer d.Close()

	for i := 0; i < 2; i++ {
		data, err := d.Capture(ipc.CapturePayload{})
		if err != nil {
			t.Fatalf("Capture() error: %v", err)
		}
		if data.Width != 192 || data.Height != 108 || data.MIMEType != "image/png" {
			t.Fatalf("Capture() = %dx%d %s", data.Width, data.Height, data.MIMEType)
		}
		if _, err := png.DecodeConfig(bytes.NewReader(data.Image)); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	if srv.ShmFetches() != 2 || srv.Images() != 0 || srv.AttachedSegments() != 1 {
		t.Fatalf("shm fetches = %d, images = %d, attached = %d", srv.ShmFetches(), srv.Images(), srv.AttachedSegments())
	}
	if st := d.Status(); st.Captures != 2 || !st.ShmEnabled || st.Width != 1920 {
		t.Fatalf("Status() = %+v", st)
	}
}

func TestCapture_PayloadOverrides(t *testing.T) {
	d, _, _ := newDaemon(t, config.DefaultConfig(), nil)
	defer d.Close()

	area := display.Rect{X: 100, Y: 50, Width: 40, Height: 30}
	data, err := d.Capture(ipc.CapturePayload{Area: &area, Format: "jpeg", Quality: 50})
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if data.Area != area || data.Format != "jpeg" {
		t.Fatalf("Capture() area = %+v format = %s", data.Area, data.Format)
	}

	data, err = d.Capture(ipc.CapturePayload{Monitor: "DP-1"})
	if err != nil {
		t.Fatalf("Capture(monitor) error: %v", err)
	}
	if data.Area != (display.Rect{Width: 1920, Height: 1080}) {
		t.Fatalf("Capture(monitor) area = %+v", data.Area)
	}
}

func TestCapture_FailuresAreCounted(t *testing.T) {
	d, _, _ := newDaemon(t, config.DefaultConfig(), nil)
	defer d.Close()

	if _, err := d.Capture(ipc.CapturePayload{Format: "gif"}); err == nil {
		t.Fatal("Capture(gif) returned nil error")
	}
	if _, err := d.Capture(ipc.CapturePayload{Mode: "monitor", Monitor: "nope"}); err == nil {
		t.Fatal("Capture(unknown monitor) returned nil error")
	}
	if st := d.Status(); st.Failures != 2 || st.Captures != 0 {
		t.Fatalf("Status() = %+v, want 2 failures", st)
	}
}

func TestReload_TogglesSharedMemory(t *testing.T) {
	next := config.DefaultConfig()
	next.Capture.UseShm = false
	next.Display = ":9"
	d, srv, mem := newDaemon(t, config.DefaultConfig(), func() (*config.Config, error) { return next, nil })
	defer d.Close()

	if _, err := d.Capture(ipc.CapturePayload{}); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if err := d.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if mem.Live() != 0 || srv.AttachedSegments() != 0 {
		t.Fatalf("session not released on reload: live = %d, attached = %d", mem.Live(), srv.AttachedSegments())
	}
	if _, err := d.Capture(ipc.CapturePayload{}); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if srv.Images() != 1 {
		t.Fatalf("Images() = %d, want 1 after disabling shm", srv.Images())
	}
	if st := d.Status(); st.Display != "" {
		t.Fatalf("display changed to %q without restart", st.Display)
	}
}

func TestReload_Error(t *testing.T) {
	d, _, _ := newDaemon(t, nil, func() (*config.Config, error) { return nil, errors.New("bad yaml") })
	defer d.Close()
	if err := d.Reload(); err == nil {
		t.Fatal("Reload() returned nil error")
	}

	d2, _, _ := newDaemon(t, nil, nil)
	defer d2.Close()
	if err := d2.Reload(); err == nil {
		t.Fatal("Reload() without a loader returned nil error")
	}
}

func TestMonitors_CachedUntilRefresh(t *testing.T) {
	d, srv, _ := newDaemon(t, nil, nil)
	defer d.Close()

	data, err := d.Monitors()
	if err != nil {
		t.Fatalf("Monitors() error: %v", err)
	}
	if len(data.Monitors) != 1 {
		t.Fatalf("Monitors() = %+v", data.Monitors)
	}

	srv.Layout = append(srv.Layout, display.MonitorInfo{ID: 2, X: 1920, Width: 800, Height: 600})
	srv.Names[2] = "HDMI-1"
	if data, _ := d.Monitors(); len(data.Monitors) != 1 {
		t.Fatalf("cached Monitors() = %d entries, want 1", len(data.Monitors))
	}
	if err := d.RefreshMonitors(); err != nil {
		t.Fatalf("RefreshMonitors() error: %v", err)
	}
	if data, _ := d.Monitors(); len(data.Monitors) != 2 {
		t.Fatalf("refreshed Monitors() = %d entries, want 2", len(data.Monitors))
	}
}

func TestRun_ServesIPCUntilCancelled(t *testing.T) {
	d, srv, mem := newDaemon(t, nil, nil)
	socket := filepath.Join(t.TempDir(), "xgrab.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, socket) }()

	client := ipc.NewClientWithSocket(socket)
	var status *ipc.StatusData
	var err error
	for i := 0; i < 100; i++ {
		if status, err = client.GetStatus(); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if !status.DaemonRunning {
		t.Fatalf("GetStatus() = %+v", status)
	}
	if _, err := client.Capture(ipc.CapturePayload{MaxWidth: 64}); err != nil {
		t.Fatalf("Capture() error: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !srv.Closed() || mem.Live() != 0 {
		t.Fatalf("after shutdown closed = %v, live segments = %d", srv.Closed(), mem.Live())
	}
}

func TestSnapshot_WritesConfiguredTarget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "shots")
	cfg.Output.Prefix = "hk"
	cfg.Capture.Mode = config.CaptureModeArea
	cfg.Capture.Area = display.Rect{X: 10, Y: 20, Width: 64, Height: 48}
	d, _, _ := newDaemon(t, cfg, nil)
	defer d.Close()

	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := d.Snapshot(now)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if want := filepath.Join(cfg.Output.Dir, "hk-20260304-050607.000.png"); path != want {
		t.Fatalf("Snapshot() = %q, want %q", path, want)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	pc, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pc.Width != 64 || pc.Height != 48 {
		t.Fatalf("snapshot size = %dx%d, want 64x48", pc.Width, pc.Height)
	}
}

// Package daemon keeps one display connection open and serves captures over
// the IPC socket.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/encode"
	"github.com/1broseidon/xgrab/internal/grab"
	"github.com/1broseidon/xgrab/internal/ipc"
)

// Options configures New.
type Options struct {
	Config *config.Config
	Dial   display.Dialer
	// Load re-reads the configuration for RELOAD and SIGHUP.
	Load        func() (*config.Config, error)
	Logger      *slog.Logger
	ConnOptions []display.Option
	// MonitorRefresh is how often the monitor layout is re-read; 0 means 10s.
	MonitorRefresh time.Duration
}

// Daemon owns the connection and its shared-memory session. Every request
// is served under one lock since neither is safe for concurrent use.
type Daemon struct {
	mu       sync.Mutex
	cfg      *config.Config
	conn     *display.Connection
	grabber  *grab.Grabber
	monitors []display.Monitor
	load     func() (*config.Config, error)
	logger   *slog.Logger
	start    time.Time
	captures int64
	failures int64
	refresh  time.Duration
}

// New opens the configured display.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	refresh := opts.MonitorRefresh
	if refresh <= 0 {
		refresh = 10 * time.Second
	}

	connOpts := append([]display.Option{display.WithLogger(logger)}, opts.ConnOptions...)
	conn, err := display.Open(cfg.Display, opts.Dial, connOpts...)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:     cfg,
		conn:    conn,
		grabber: grab.New(conn, cfg.Capture.UseShm, logger),
		load:    opts.Load,
		logger:  logger,
		start:   time.Now(),
		refresh: refresh,
	}
	return d, nil
}

// Status reports the daemon's connection and counters.
func (d *Daemon) Status() ipc.StatusData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ipc.StatusData{
		Display:       d.cfg.Display,
		Width:         d.conn.Width(),
		Height:        d.conn.Height(),
		ShmEnabled:    d.cfg.Capture.UseShm,
		Captures:      d.captures,
		Failures:      d.failures,
		UptimeSeconds: int64(time.Since(d.start).Seconds()),
		DaemonRunning: true,
	}
}

// Monitors returns the cached layout, reading it on first use.
func (d *Daemon) Monitors() (*ipc.MonitorsData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.monitors == nil {
		if err := d.refreshMonitorsLocked(); err != nil {
			return nil, err
		}
	}
	return &ipc.MonitorsData{Monitors: append([]display.Monitor(nil), d.monitors...)}, nil
}

// RefreshMonitors re-reads the monitor layout and logs any change.
func (d *Daemon) RefreshMonitors() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshMonitorsLocked()
}

func (d *Daemon) refreshMonitorsLocked() error {
	monitors, err := d.conn.Monitors()
	if err != nil {
		return err
	}
	if d.monitors != nil && !sameLayout(d.monitors, monitors) {
		d.logger.Info("monitor layout changed", "before", len(d.monitors), "after", len(monitors))
	}
	d.monitors = monitors
	return nil
}

func sameLayout(a, b []display.Monitor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Capture grabs and encodes the requested target. Unset payload fields use
// the configuration.
func (d *Daemon) Capture(p ipc.CapturePayload) (*ipc.CaptureData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, opts, err := d.requestLocked(p)
	if err != nil {
		d.failures++
		return nil, err
	}
	img, err := d.grabber.Grab(target, opts)
	if err != nil {
		d.failures++
		return nil, err
	}
	d.captures++
	d.logger.Debug("capture served",
		"area", fmt.Sprintf("%dx%d+%d+%d", img.Rect.Width, img.Rect.Height, img.Rect.X, img.Rect.Y),
		"format", img.Format,
		"bytes", len(img.Data))
	return &ipc.CaptureData{
		Format:   string(img.Format),
		MIMEType: img.Format.MIMEType(),
		Area:     img.Rect,
		Width:    img.Width,
		Height:   img.Height,
		Image:    img.Data,
	}, nil
}

// Snapshot captures the configured target into output.dir and returns the
// written path.
func (d *Daemon) Snapshot(now time.Time) (string, error) {
	data, err := d.Capture(ipc.CapturePayload{})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	out := d.cfg.Output
	d.mu.Unlock()

	format := encode.Format(data.Format)
	name := fmt.Sprintf("%s-%s%s", out.Prefix, now.Format("20060102-150405.000"), format.Extension())
	path := filepath.Join(out.Dir, name)
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", out.Dir, err)
	}
	if err := os.WriteFile(path, data.Image, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	d.logger.Info("snapshot saved", "path", path, "bytes", len(data.Image))
	return path, nil
}

func (d *Daemon) requestLocked(p ipc.CapturePayload) (grab.Target, encode.Options, error) {
	target := grab.TargetFromConfig(d.cfg.Capture)
	if p.Mode != "" {
		target = grab.Target{Mode: config.CaptureMode(p.Mode), Monitor: p.Monitor}
	} else if p.Monitor != "" {
		target.Mode = config.CaptureModeMonitor
		target.Monitor = p.Monitor
	}
	if p.Area != nil {
		if p.Mode == "" {
			target.Mode = config.CaptureModeArea
		}
		target.Area = *p.Area
	}

	opts := d.cfg.EncodeOptions()
	if p.Format != "" {
		f, err := encode.ParseFormat(p.Format)
		if err != nil {
			return grab.Target{}, encode.Options{}, err
		}
		opts.Format = f
	}
	if p.Quality > 0 {
		opts.Quality = p.Quality
	}
	if p.MaxWidth > 0 {
		opts.MaxWidth = p.MaxWidth
	}
	if p.MaxHeight > 0 {
		opts.MaxHeight = p.MaxHeight
	}
	return target, opts, nil
}

// Reload applies a freshly loaded configuration. A changed display only takes
// effect after a restart.
func (d *Daemon) Reload() error {
	if d.load == nil {
		return fmt.Errorf("reload not supported")
	}
	cfg, err := d.load()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Display != d.cfg.Display {
		d.logger.Warn("display change requires a daemon restart", "running", d.cfg.Display, "configured", cfg.Display)
		cfg.Display = d.cfg.Display
	}
	if cfg.Capture.UseShm != d.cfg.Capture.UseShm {
		d.grabber.Close()
		d.grabber = grab.New(d.conn, cfg.Capture.UseShm, d.logger)
	}
	d.cfg = cfg
	return nil
}

// Run serves IPC on socketPath until ctx is done, then releases everything.
func (d *Daemon) Run(ctx context.Context, socketPath string) error {
	server := ipc.NewServer(socketPath, d, d.logger)
	if err := server.Start(); err != nil {
		return err
	}

	if err := d.RefreshMonitors(); err != nil {
		d.logger.Warn("monitor enumeration unavailable", "error", err)
	}

	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down xgrab daemon")
			server.Stop()
			d.Close()
			return nil
		case <-ticker.C:
			if err := d.RefreshMonitors(); err != nil {
				d.logger.Debug("monitor refresh failed", "error", err)
			}
		}
	}
}

// Close tears down the shared-memory session and then the connection.
func (d *Daemon) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grabber.Close()
	d.conn.Close()
}

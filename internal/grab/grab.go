// Package grab resolves capture targets against a display connection and
// turns them into encoded images.
package grab

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/encode"
)

var ErrMonitorNotFound = errors.New("monitor not found")

// Target names the area to capture.
type Target struct {
	Mode    config.CaptureMode
	Monitor string       // monitor mode only; empty selects the primary
	Area    display.Rect // area mode only
}

// TargetFromConfig builds a Target from the capture section.
func TargetFromConfig(c config.CaptureConfig) Target {
	return Target{Mode: c.Mode, Monitor: c.Monitor, Area: c.Area}
}

// Grabber captures targets on one connection. With shared memory enabled it
// keeps one session and rebuilds it only when the resolved area changes.
//
// A Grabber is not safe for concurrent use.
type Grabber struct {
	conn   *display.Connection
	logger *slog.Logger
	useShm bool

	session     *display.SharedSession
	sessionRect display.Rect
	shmBroken   bool
}

func New(conn *display.Connection, useShm bool, logger *slog.Logger) *Grabber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grabber{conn: conn, useShm: useShm, logger: logger}
}

// Resolve maps t to a rectangle in root coordinates.
func (g *Grabber) Resolve(t Target) (display.Rect, error) {
	switch t.Mode {
	case config.CaptureModeFull, "":
		return g.conn.Screen(), nil
	case config.CaptureModeArea:
		if t.Area.Empty() {
			return display.Rect{}, fmt.Errorf("%w: %dx%d", display.ErrInvalidArea, t.Area.Width, t.Area.Height)
		}
		return t.Area, nil
	case config.CaptureModeWindow:
		r, err := g.conn.ActiveWindow()
		if err != nil {
			return display.Rect{}, fmt.Errorf("active window: %w", err)
		}
		return r, nil
	case config.CaptureModeMonitor:
		monitors, err := g.conn.Monitors()
		if err != nil {
			return display.Rect{}, err
		}
		if t.Monitor == "" {
			m, ok := display.PrimaryMonitor(monitors)
			if !ok {
				return display.Rect{}, fmt.Errorf("%w: no monitors connected", ErrMonitorNotFound)
			}
			return m.Rect(), nil
		}
		m, ok := display.FindMonitor(monitors, t.Monitor)
		if !ok {
			return display.Rect{}, fmt.Errorf("%w: %q", ErrMonitorNotFound, t.Monitor)
		}
		return m.Rect(), nil
	default:
		return display.Rect{}, fmt.Errorf("unknown capture mode %q", t.Mode)
	}
}

// Frame captures r. The returned frame may be a view over the shared
// segment, valid only until the next call or Close.
func (g *Grabber) Frame(r display.Rect) (*display.Frame, error) {
	if g.useShm && !g.shmBroken {
		f, err := g.shmFrame(r)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, display.ErrExtensionNotAvailable) &&
			!errors.Is(err, display.ErrShmInitFailed) &&
			!errors.Is(err, display.ErrShmAttachFailed) {
			return nil, err
		}
		// Fall back to plain GetImage for the rest of this Grabber's life.
		g.logger.Info("shared memory unavailable, using GetImage", "error", err)
		g.shmBroken = true
	}
	return g.conn.Capture(&r)
}

func (g *Grabber) shmFrame(r display.Rect) (*display.Frame, error) {
	if g.session != nil && g.sessionRect != r {
		g.session.Close()
		g.session = nil
	}
	if g.session == nil {
		s, err := g.conn.Shm().
			Area(display.Point{X: r.X, Y: r.Y}, display.Size{Width: r.Width, Height: r.Height}).
			Build()
		if err != nil {
			return nil, err
		}
		g.logger.Debug("shm session built", "area", fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y))
		g.session = s
		g.sessionRect = r
	}
	return g.session.Capture()
}

// Image is an encoded capture.
type Image struct {
	Rect   display.Rect
	Width  int // after any downscale
	Height int
	Format encode.Format
	Data   []byte
}

// Grab resolves t, captures it and encodes the result.
func (g *Grabber) Grab(t Target, opts encode.Options) (*Image, error) {
	r, err := g.Resolve(t)
	if err != nil {
		return nil, err
	}
	f, err := g.Frame(r)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(f, r, opts)
}

// EncodeFrame converts f to RGB and encodes it.
func EncodeFrame(f *display.Frame, r display.Rect, opts encode.Options) (*Image, error) {
	data, err := encode.ToMemory(f.RGB(), f.Width(), f.Height(), opts)
	if err != nil {
		return nil, err
	}
	w, h := encode.FittedSize(f.Width(), f.Height(), opts.MaxWidth, opts.MaxHeight)
	format := opts.Format
	if format == "" {
		format = encode.FormatPNG
	}
	return &Image{Rect: r, Width: w, Height: h, Format: format, Data: data}, nil
}

// Close releases the shared-memory session, if any. The connection stays
// open.
func (g *Grabber) Close() {
	if g.session != nil {
		g.session.Close()
		g.session = nil
	}
}

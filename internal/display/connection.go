package display

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/1broseidon/xgrab/internal/sysv"
)

// Connection owns one open display-server session and the default screen
// size snapshotted when it was opened.
//
// A Connection must outlive every Frame and SharedSession derived from it and
// is not safe for concurrent use. Callers sharing one across goroutines must
// serialize every operation on it.
type Connection struct {
	server Server
	mem    SharedMemory
	logger *slog.Logger

	width  int
	height int
	format PixelFormat

	closeOnce sync.Once
	closed    bool
}

// Option configures a Connection at Open time.
type Option func(*Connection)

// WithLogger routes best-effort teardown diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSharedMemory replaces the OS shared-memory primitives.
func WithSharedMemory(m SharedMemory) Option {
	return func(c *Connection) {
		if m != nil {
			c.mem = m
		}
	}
}

// Open connects to the display named by identifier. An empty identifier
// selects the default display from the environment.
func Open(identifier string, dial Dialer, opts ...Option) (*Connection, error) {
	if strings.IndexByte(identifier, 0) >= 0 {
		return nil, fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidIdentifier, identifier)
	}
	if dial == nil {
		return nil, fmt.Errorf("%w: no dialer", ErrConnectionFailed)
	}

	server, err := dial(identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if server == nil {
		return nil, fmt.Errorf("%w: dialer returned no server", ErrConnectionFailed)
	}

	width, height, err := server.Geometry()
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("%w: root geometry: %v", ErrConnectionFailed, err)
	}

	c := &Connection{
		server: server,
		mem:    sysv.Memory{},
		logger: slog.Default(),
		width:  width,
		height: height,
		format: server.Format(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Width is the default screen width in pixels at open time.
func (c *Connection) Width() int { return c.width }

// Height is the default screen height in pixels at open time.
func (c *Connection) Height() int { return c.height }

// Screen returns the full default-screen rectangle.
func (c *Connection) Screen() Rect {
	return Rect{Width: c.width, Height: c.height}
}

// Format returns the server's pixel layout for captured images.
func (c *Connection) Format() PixelFormat { return c.format }

// PointerPosition returns the pointer location relative to the root window.
func (c *Connection) PointerPosition() (x, y int, err error) {
	if c.closed {
		return 0, 0, ErrClosed
	}
	return c.server.QueryPointer()
}

// Close releases the server connection. It is safe to call more than once;
// only the first call reaches the server. Failures are not reported.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed = true
		if err := c.server.Close(); err != nil {
			c.logger.Debug("display close failed", "error", err)
		}
	})
}

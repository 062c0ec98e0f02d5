package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1broseidon/xgrab/internal/display"
)

// allPlanes requests every bit plane of the drawable.
const allPlanes = 0xffffffff

// Connection is the xgb-backed display.Server.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	format display.PixelFormat

	hasShm   bool
	hasRandr bool
	// configTimestamp is the RandR configuration timestamp seen by the last
	// Monitors call; output lookups are made against it.
	configTimestamp xproto.Timestamp
}

var _ display.Server = (*Connection)(nil)

// Dial opens identifier (":0", "host:1.0", or "" for $DISPLAY) and probes the
// MIT-SHM and RandR extensions.
func Dial(identifier string) (display.Server, error) {
	return NewConnection(identifier)
}

// NewConnection establishes a connection to the X11 server and initializes
// the extensions capture relies on.
func NewConnection(identifier string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(identifier)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}
	c.format = pixelFormat(xu.Setup(), xu.Screen())

	// Both extensions are optional; their absence surfaces on first use.
	c.hasShm = shm.Init(xu.Conn()) == nil
	c.hasRandr = randr.Init(xu.Conn()) == nil

	return c, nil
}

// pixelFormat finds the ZPixmap layout for the root depth.
func pixelFormat(setup *xproto.SetupInfo, screen *xproto.ScreenInfo) display.PixelFormat {
	f := display.PixelFormat{
		Depth:        int(screen.RootDepth),
		BitsPerPixel: 32,
		ScanlinePad:  32,
	}
	for _, pf := range setup.PixmapFormats {
		if pf.Depth == screen.RootDepth {
			f.BitsPerPixel = int(pf.BitsPerPixel)
			f.ScanlinePad = int(pf.ScanlinePad)
			break
		}
	}
	return f
}

// Geometry returns the root window size.
func (c *Connection) Geometry() (int, int, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get root geometry: %w", err)
	}
	return int(geom.Width), int(geom.Height), nil
}

// Format returns the ZPixmap layout for the root depth.
func (c *Connection) Format() display.PixelFormat {
	return c.format
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() error {
	c.XUtil.Conn().Close()
	return nil
}

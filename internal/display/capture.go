package display

import (
	"errors"
	"fmt"
)

// Capture copies region out of the root window into a new read-only frame.
// A nil region captures the whole screen recorded at Open. The call blocks
// for one server round trip.
func (c *Connection) Capture(region *Rect) (*Frame, error) {
	if c.closed {
		return nil, ErrClosed
	}
	r := c.Screen()
	if region != nil {
		r = *region
	}
	if r.Empty() {
		return nil, fmt.Errorf("%w: empty region %dx%d", ErrCaptureFailed, r.Width, r.Height)
	}

	img, err := c.server.GetImage(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if img == nil {
		return nil, ErrCaptureFailed
	}

	format := c.format
	if img.Depth != 0 {
		format.Depth = img.Depth
	}
	if need := format.Stride(r.Width) * r.Height; len(img.Data) < need {
		return nil, fmt.Errorf("%w: short image reply (%d of %d bytes)", ErrCaptureFailed, len(img.Data), need)
	}
	return newFrame(img.Data, r.Width, r.Height, format, Owned, true), nil
}

// CaptureMonitor captures the area covered by m.
func (c *Connection) CaptureMonitor(m Monitor) (*Frame, error) {
	r := m.Rect()
	return c.Capture(&r)
}

// ActiveWindow returns the focused window's frame in root coordinates.
func (c *Connection) ActiveWindow() (Rect, error) {
	if c.closed {
		return Rect{}, ErrClosed
	}
	return c.server.ActiveWindow()
}

// CaptureActiveWindow captures the focused window including its decorations.
func (c *Connection) CaptureActiveWindow() (*Frame, error) {
	r, err := c.ActiveWindow()
	if errors.Is(err, ErrClosed) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: active window: %v", ErrCaptureFailed, err)
	}
	return c.Capture(&r)
}

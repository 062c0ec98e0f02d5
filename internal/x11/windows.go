package x11

import (
	"fmt"

	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/xgrab/internal/display"
)

// ActiveWindow returns the focused window's frame, decorations included, in
// root coordinates. It needs an EWMH compliant window manager.
func (c *Connection) ActiveWindow() (display.Rect, error) {
	activeWin, err := ewmh.ActiveWindowGet(c.XUtil)
	if err != nil {
		return display.Rect{}, fmt.Errorf("failed to get active window: %w", err)
	}
	if activeWin == 0 {
		return display.Rect{}, fmt.Errorf("no active window")
	}

	geom, err := xwindow.New(c.XUtil, activeWin).DecorGeometry()
	if err != nil {
		return display.Rect{}, fmt.Errorf("failed to get window geometry: %w", err)
	}

	return clampToScreen(display.Rect{
		X:      geom.X(),
		Y:      geom.Y(),
		Width:  geom.Width(),
		Height: geom.Height(),
	}, int(c.XUtil.Screen().WidthInPixels), int(c.XUtil.Screen().HeightInPixels)), nil
}

// clampToScreen intersects r with the root window; GetImage rejects areas
// that leave the root with a Match error.
func clampToScreen(r display.Rect, width, height int) display.Rect {
	x1 := max(r.X, 0)
	y1 := max(r.Y, 0)
	x2 := min(r.X+r.Width, width)
	y2 := min(r.Y+r.Height, height)
	if x2 <= x1 || y2 <= y1 {
		return display.Rect{}
	}
	return display.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

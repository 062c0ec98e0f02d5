package display

import (
	"errors"
	"fmt"
)

// Monitor is one physical display as reported by RandR. It is a plain value;
// every enumeration produces fresh copies.
type Monitor struct {
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Primary bool   `json:"primary"`
}

// Rect returns the monitor's area in root coordinates.
func (m Monitor) Rect() Rect {
	return Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
}

// MouseToLocal translates a root-relative pointer position into the
// monitor's own coordinates. ok is false when the pointer is elsewhere.
func (m Monitor) MouseToLocal(rootX, rootY int) (x, y int, ok bool) {
	x, y = rootX-m.X, rootY-m.Y
	if x < 0 || y < 0 || x > m.Width || y > m.Height {
		return 0, 0, false
	}
	return x, y, true
}

// Monitors enumerates the connected monitors. Each monitor costs one extra
// round trip for its name, so this belongs at startup or after a layout
// change rather than on a capture path.
func (c *Connection) Monitors() ([]Monitor, error) {
	if c.closed {
		return nil, ErrClosed
	}
	infos, err := c.server.Monitors()
	if err != nil {
		if errors.Is(err, ErrExtensionNotAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("query monitors: %w", err)
	}

	monitors := make([]Monitor, 0, len(infos))
	for _, info := range infos {
		name, err := c.server.MonitorName(info.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve monitor %d name: %w", info.ID, err)
		}
		monitors = append(monitors, Monitor{
			Name:    name,
			X:       info.X,
			Y:       info.Y,
			Width:   info.Width,
			Height:  info.Height,
			Primary: info.Primary,
		})
	}
	return monitors, nil
}

// PrimaryMonitor returns the monitor flagged primary, falling back to the
// first one. ok is false for an empty list.
func PrimaryMonitor(monitors []Monitor) (Monitor, bool) {
	for _, m := range monitors {
		if m.Primary {
			return m, true
		}
	}
	if len(monitors) == 0 {
		return Monitor{}, false
	}
	return monitors[0], true
}

// FindMonitor returns the monitor called name.
func FindMonitor(monitors []Monitor, name string) (Monitor, bool) {
	for _, m := range monitors {
		if m.Name == name {
			return m, true
		}
	}
	return Monitor{}, false
}

package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xgrab/internal/display"
)

// Monitors retrieves all active monitors using XRandR. A monitor is an
// enabled CRTC; its identifier is the first output driving it.
func (c *Connection) Monitors() ([]display.MonitorInfo, error) {
	if !c.hasRandr {
		return nil, fmt.Errorf("%w: RANDR", display.ErrExtensionNotAvailable)
	}

	resources, err := randr.GetScreenResourcesCurrent(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}
	c.configTimestamp = resources.ConfigTimestamp

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	return monitorsFromCrtcs(resources.Crtcs, primary, func(crtc randr.Crtc) (*randr.GetCrtcInfoReply, error) {
		return randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
	}), nil
}

// monitorsFromCrtcs turns CRTC replies into monitor entries, skipping
// disabled CRTCs and ones that fail to answer.
func monitorsFromCrtcs(crtcs []randr.Crtc, primary randr.Output, info func(randr.Crtc) (*randr.GetCrtcInfoReply, error)) []display.MonitorInfo {
	monitors := make([]display.MonitorInfo, 0, len(crtcs))
	for _, crtc := range crtcs {
		crtcInfo, err := info(crtc)
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		isPrimary := false
		for _, out := range crtcInfo.Outputs {
			if primary != 0 && out == primary {
				isPrimary = true
				break
			}
		}

		monitors = append(monitors, display.MonitorInfo{
			ID:      uint32(crtcInfo.Outputs[0]),
			X:       int(crtcInfo.X),
			Y:       int(crtcInfo.Y),
			Width:   int(crtcInfo.Width),
			Height:  int(crtcInfo.Height),
			Primary: isPrimary,
		})
	}
	return monitors
}

// MonitorName resolves an output to its connector name (e.g. "DP-1").
func (c *Connection) MonitorName(id uint32) (string, error) {
	outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), randr.Output(id), c.configTimestamp).Reply()
	if err != nil {
		return "", fmt.Errorf("failed to get output info: %w", err)
	}
	return string(outputInfo.Name), nil
}

// QueryPointer returns the pointer position relative to the root window.
func (c *Connection) QueryPointer() (int, int, error) {
	pointer, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query pointer: %w", err)
	}
	if !pointer.SameScreen {
		return 0, 0, fmt.Errorf("pointer is on another screen")
	}
	return int(pointer.RootX), int(pointer.RootY), nil
}

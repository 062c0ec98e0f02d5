package x11

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/xgrab/internal/display"
)

// wireRect converts r to the protocol's INT16 offsets and CARD16 sizes.
func wireRect(r display.Rect) (x, y int16, w, h uint16, err error) {
	if r.X < math.MinInt16 || r.X > math.MaxInt16 || r.Y < math.MinInt16 || r.Y > math.MaxInt16 {
		return 0, 0, 0, 0, fmt.Errorf("%w: offset %d,%d outside the 16-bit protocol range", display.ErrCaptureFailed, r.X, r.Y)
	}
	if r.Width <= 0 || r.Width > math.MaxUint16 || r.Height <= 0 || r.Height > math.MaxUint16 {
		return 0, 0, 0, 0, fmt.Errorf("%w: size %dx%d outside the 16-bit protocol range", display.ErrCaptureFailed, r.Width, r.Height)
	}
	return int16(r.X), int16(r.Y), uint16(r.Width), uint16(r.Height), nil
}

// GetImage fetches r from the root window as a ZPixmap.
func (c *Connection) GetImage(r display.Rect) (*display.ServerImage, error) {
	x, y, w, h, err := wireRect(r)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetImage(
		c.XUtil.Conn(),
		xproto.ImageFormatZPixmap,
		xproto.Drawable(c.Root),
		x, y, w, h,
		allPlanes,
	).Reply()
	if err != nil {
		return nil, err
	}
	return &display.ServerImage{Depth: int(reply.Depth), Data: reply.Data}, nil
}

// ShmAvailable reports whether MIT-SHM initialized on this connection.
func (c *Connection) ShmAvailable() bool {
	return c.hasShm
}

// ShmAttach registers a SysV segment with the server.
func (c *Connection) ShmAttach(shmid int, readOnly bool) (display.ShmSeg, error) {
	seg, err := shm.NewSegId(c.XUtil.Conn())
	if err != nil {
		return 0, fmt.Errorf("allocate segment id: %w", err)
	}
	if err := shm.AttachChecked(c.XUtil.Conn(), seg, uint32(shmid), readOnly).Check(); err != nil {
		return 0, err
	}
	return display.ShmSeg(seg), nil
}

// ShmDetach unregisters a segment from the server.
func (c *Connection) ShmDetach(seg display.ShmSeg) error {
	return shm.DetachChecked(c.XUtil.Conn(), shm.Seg(seg)).Check()
}

// ShmGetImage fills the segment with r as a ZPixmap.
func (c *Connection) ShmGetImage(seg display.ShmSeg, r display.Rect) error {
	x, y, w, h, err := wireRect(r)
	if err != nil {
		return err
	}
	_, err = shm.GetImage(
		c.XUtil.Conn(),
		xproto.Drawable(c.Root),
		x, y, w, h,
		allPlanes,
		xproto.ImageFormatZPixmap,
		shm.Seg(seg),
		0,
	).Reply()
	return err
}

package display

import "fmt"

// Point is an offset in root coordinates.
type Point struct {
	X, Y int
}

// Size is an area in pixels.
type Size struct {
	Width, Height int
}

// SessionState tracks a SharedSession through its lifetime.
type SessionState int

const (
	Unbuilt SessionState = iota
	Attached
	TornDown
)

func (s SessionState) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Attached:
		return "attached"
	case TornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ShmBuilder configures a SharedSession. Monitor, Full and Area each set
// both offset and size; the last call wins.
type ShmBuilder struct {
	conn   *Connection
	offset Point
	size   Size
}

// Shm starts configuring a shared-memory session on c. The zero
// configuration has an empty area and will not build.
func (c *Connection) Shm() *ShmBuilder {
	return &ShmBuilder{conn: c}
}

// Monitor targets the area covered by m.
func (b *ShmBuilder) Monitor(m Monitor) *ShmBuilder {
	b.offset = Point{X: m.X, Y: m.Y}
	b.size = Size{Width: m.Width, Height: m.Height}
	return b
}

// Full targets the whole default screen.
func (b *ShmBuilder) Full() *ShmBuilder {
	b.offset = Point{}
	b.size = Size{Width: b.conn.width, Height: b.conn.height}
	return b
}

// Area targets an explicit rectangle.
func (b *ShmBuilder) Area(offset Point, size Size) *ShmBuilder {
	b.offset = offset
	b.size = size
	return b
}

// Build creates the segment, maps it and registers it with the server. On
// any failure everything acquired so far is released before returning.
func (b *ShmBuilder) Build() (*SharedSession, error) {
	c := b.conn
	if c.closed {
		return nil, ErrClosed
	}
	if !c.server.ShmAvailable() {
		return nil, fmt.Errorf("%w: MIT-SHM", ErrExtensionNotAvailable)
	}
	if b.size.Width <= 0 || b.size.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidArea, b.size.Width, b.size.Height)
	}

	format := c.format
	segSize := format.Stride(b.size.Width) * b.size.Height

	shmid, err := c.mem.Get(segSize)
	if err != nil {
		return nil, fmt.Errorf("%w: shmget %d bytes: %v", ErrShmInitFailed, segSize, err)
	}
	data, err := c.mem.Attach(shmid)
	if err != nil {
		if rmErr := c.mem.Remove(shmid); rmErr != nil {
			c.logger.Debug("shm remove after failed attach", "shmid", shmid, "error", rmErr)
		}
		return nil, fmt.Errorf("%w: shmat: %v", ErrShmInitFailed, err)
	}
	if len(data) < segSize {
		c.releaseSegment(shmid, data)
		return nil, fmt.Errorf("%w: segment is %d bytes, need %d", ErrShmInitFailed, len(data), segSize)
	}

	seg, err := c.server.ShmAttach(shmid, false)
	if err != nil {
		c.releaseSegment(shmid, data)
		return nil, fmt.Errorf("%w: %v", ErrShmAttachFailed, err)
	}

	s := &SharedSession{
		conn:   c,
		shmid:  shmid,
		seg:    seg,
		data:   data,
		offset: b.offset,
		area:   b.size,
		state:  Attached,
	}
	s.frame = newFrame(data[:segSize], b.size.Width, b.size.Height, format, SessionView, true)
	return s, nil
}

func (c *Connection) releaseSegment(shmid int, data []byte) {
	if err := c.mem.Detach(data); err != nil {
		c.logger.Debug("shm detach failed", "shmid", shmid, "error", err)
	}
	if err := c.mem.Remove(shmid); err != nil {
		c.logger.Debug("shm remove failed", "shmid", shmid, "error", err)
	}
}

// SharedSession captures repeatedly into one shared-memory segment without
// allocating per frame. It borrows its Connection and must be closed before
// the Connection is.
//
// A session is confined to one goroutine at a time, and the frame returned by
// Capture must not be read while another Capture is in flight.
type SharedSession struct {
	conn   *Connection
	shmid  int
	seg    ShmSeg
	data   []byte
	frame  *Frame
	offset Point
	area   Size
	state  SessionState
}

// Capture fetches the configured area into the segment and returns the
// session's frame, which is the same *Frame on every call. When Capture fails
// the frame's contents are undefined.
func (s *SharedSession) Capture() (*Frame, error) {
	if s.state != Attached {
		return nil, fmt.Errorf("%w: session %s", ErrClosed, s.state)
	}
	if s.conn.closed {
		return nil, fmt.Errorf("%w: connection closed", ErrClosed)
	}
	r := Rect{X: s.offset.X, Y: s.offset.Y, Width: s.area.Width, Height: s.area.Height}
	if err := s.conn.server.ShmGetImage(s.seg, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	return s.frame, nil
}

func (s *SharedSession) Offset() Point       { return s.offset }
func (s *SharedSession) Area() Size          { return s.area }
func (s *SharedSession) State() SessionState { return s.state }

// Frame returns the view over the segment without capturing.
func (s *SharedSession) Frame() *Frame { return s.frame }

// Close detaches the segment from the server, unmaps it and marks it for
// removal, in that order. Every step runs even if an earlier one fails;
// failures are logged, never returned. Close is idempotent. After the
// Connection is closed the server has already dropped the segment, so only
// the process-side steps run.
func (s *SharedSession) Close() {
	if s.state != Attached {
		return
	}
	s.state = TornDown

	c := s.conn
	if !c.closed {
		if err := c.server.ShmDetach(s.seg); err != nil {
			c.logger.Debug("shm server detach failed", "seg", s.seg, "error", err)
		}
	}
	c.releaseSegment(s.shmid, s.data)

	s.frame.released = true
	s.frame.data = nil
	s.data = nil
}

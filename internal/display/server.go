package display

// Rect is a region in screen pixel coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// PixelFormat describes how the server lays out ZPixmap images.
type PixelFormat struct {
	Depth        int
	BitsPerPixel int
	ScanlinePad  int
}

// Stride returns the bytes per scanline for an image width under f.
func (f PixelFormat) Stride(width int) int {
	pad := f.ScanlinePad
	if pad <= 0 {
		pad = 32
	}
	bits := width * f.BitsPerPixel
	return ((bits + pad - 1) / pad) * pad / 8
}

// ServerImage is the reply of a synchronous image fetch.
type ServerImage struct {
	Depth int
	Data  []byte
}

// ShmSeg identifies a segment registered with the server.
type ShmSeg uint32

// MonitorInfo is one entry of the server's monitor layout. ID is resolved to
// a human readable name with a separate MonitorName round trip.
type MonitorInfo struct {
	ID      uint32
	X       int
	Y       int
	Width   int
	Height  int
	Primary bool
}

// Server is the display-server capability a Connection is built on. The
// production implementation lives in internal/x11; tests substitute fakes.
//
// Implementations are not required to be safe for concurrent use.
type Server interface {
	// Geometry returns the default root drawable's size.
	Geometry() (width, height int, err error)
	// Format returns the default visual's pixel layout.
	Format() PixelFormat
	// GetImage copies r out of the root drawable.
	GetImage(r Rect) (*ServerImage, error)

	// ShmAvailable reports whether MIT-SHM is present.
	ShmAvailable() bool
	ShmAttach(shmid int, readOnly bool) (ShmSeg, error)
	ShmDetach(seg ShmSeg) error
	// ShmGetImage fetches r into the segment at offset 0.
	ShmGetImage(seg ShmSeg, r Rect) error

	// Monitors queries RandR. It returns ErrExtensionNotAvailable when the
	// extension is absent.
	Monitors() ([]MonitorInfo, error)
	MonitorName(id uint32) (string, error)

	QueryPointer() (x, y int, err error)
	// ActiveWindow returns the focused window's frame in root coordinates.
	ActiveWindow() (Rect, error)

	Close() error
}

// Dialer opens a Server for a display identifier. An empty identifier means
// the environment's default display.
type Dialer func(identifier string) (Server, error)

// SharedMemory is the OS segment API used by shared-memory sessions.
type SharedMemory interface {
	// Get creates a private segment of size bytes, owner read-write.
	Get(size int) (id int, err error)
	// Attach maps the segment into the process.
	Attach(id int) ([]byte, error)
	// Detach unmaps memory returned by Attach.
	Detach(data []byte) error
	// Remove marks the segment for destruction.
	Remove(id int) error
}

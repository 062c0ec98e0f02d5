// Package displaytest provides in-memory display servers and shared memory
// for tests of code built on internal/display.
package displaytest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/1broseidon/xgrab/internal/display"
)

// Server is a fake display.Server. Pixel data is a deterministic pattern so
// captures of the same area compare equal.
type Server struct {
	mu sync.Mutex

	Width, Height int
	PixelFormat   display.PixelFormat

	Shm        bool
	ImageErr   error
	AttachErr  error
	MonitorErr error
	Layout     []display.MonitorInfo
	Names      map[uint32]string
	Pointer    [2]int
	Active     display.Rect

	images   int
	shmGets  int
	attached map[display.ShmSeg]int
	nextSeg  display.ShmSeg
	closed   bool
}

// NewServer returns a 1920x1080 depth-24 server with MIT-SHM and a single
// primary monitor named "DP-1".
func NewServer() *Server {
	return &Server{
		Width:       1920,
		Height:      1080,
		PixelFormat: display.PixelFormat{Depth: 24, BitsPerPixel: 32, ScanlinePad: 32},
		Shm:         true,
		Layout: []display.MonitorInfo{
			{ID: 1, Width: 1920, Height: 1080, Primary: true},
		},
		Names:    map[uint32]string{1: "DP-1"},
		attached: map[display.ShmSeg]int{},
		nextSeg:  1,
	}
}

// Dialer returns a display.Dialer that always yields s.
func (s *Server) Dialer() display.Dialer {
	return func(string) (display.Server, error) { return s, nil }
}

// Images reports how many synchronous image fetches were served.
func (s *Server) Images() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images
}

// ShmFetches reports how many shared-memory image fetches were served.
func (s *Server) ShmFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shmGets
}

// AttachedSegments reports how many segments the server still holds.
func (s *Server) AttachedSegments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attached)
}

// Closed reports whether Close was called.
func (s *Server) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) Geometry() (int, int, error) {
	return s.Width, s.Height, nil
}

func (s *Server) Format() display.PixelFormat { return s.PixelFormat }

func (s *Server) GetImage(r display.Rect) (*display.ServerImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ImageErr != nil {
		return nil, s.ImageErr
	}
	s.images++
	return &display.ServerImage{Depth: s.PixelFormat.Depth, Data: Pattern(r, s.PixelFormat)}, nil
}

func (s *Server) ShmAvailable() bool { return s.Shm }

func (s *Server) ShmAttach(shmid int, readOnly bool) (display.ShmSeg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AttachErr != nil {
		return 0, s.AttachErr
	}
	seg := s.nextSeg
	s.nextSeg++
	s.attached[seg] = shmid
	return seg, nil
}

func (s *Server) ShmDetach(seg display.ShmSeg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attached[seg]; !ok {
		return fmt.Errorf("segment %d not attached", seg)
	}
	delete(s.attached, seg)
	return nil
}

func (s *Server) ShmGetImage(seg display.ShmSeg, r display.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attached[seg]; !ok {
		return fmt.Errorf("segment %d not attached", seg)
	}
	s.shmGets++
	return nil
}

func (s *Server) Monitors() ([]display.MonitorInfo, error) {
	if s.MonitorErr != nil {
		return nil, s.MonitorErr
	}
	return append([]display.MonitorInfo(nil), s.Layout...), nil
}

func (s *Server) MonitorName(id uint32) (string, error) {
	name, ok := s.Names[id]
	if !ok {
		return "", fmt.Errorf("unknown output %d", id)
	}
	return name, nil
}

func (s *Server) QueryPointer() (int, int, error) {
	return s.Pointer[0], s.Pointer[1], nil
}

func (s *Server) ActiveWindow() (display.Rect, error) {
	if s.Active.Empty() {
		return display.Rect{}, errors.New("no active window")
	}
	return s.Active, nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Pattern returns the bytes GetImage serves for r.
func Pattern(r display.Rect, f display.PixelFormat) []byte {
	data := make([]byte, f.Stride(r.Width)*r.Height)
	for i := range data {
		data[i] = byte(i + r.X + r.Y)
	}
	return data
}

// Memory hands out heap buffers in place of SysV segments.
type Memory struct {
	mu       sync.Mutex
	nextID   int
	segments map[int][]byte
	mapped   int
}

func NewMemory() *Memory {
	return &Memory{nextID: 1, segments: map[int][]byte{}}
}

// Live reports segments created and not yet removed.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segments)
}

// Mapped reports attachments not yet detached.
func (m *Memory) Mapped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapped
}

func (m *Memory) Get(size int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size <= 0 {
		return -1, fmt.Errorf("invalid segment size %d", size)
	}
	id := m.nextID
	m.nextID++
	m.segments[id] = make([]byte, size)
	return id, nil
}

func (m *Memory) Attach(id int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg, ok := m.segments[id]
	if !ok {
		return nil, fmt.Errorf("no segment %d", id)
	}
	m.mapped++
	return seg, nil
}

func (m *Memory) Detach(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data != nil {
		m.mapped--
	}
	return nil
}

func (m *Memory) Remove(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.segments, id)
	return nil
}

// Open connects to a fresh fake server backed by fake memory with logging
// discarded.
func Open() (*display.Connection, *Server, *Memory) {
	srv := NewServer()
	mem := NewMemory()
	conn, err := display.Open(":0", srv.Dialer(),
		display.WithSharedMemory(mem), display.WithLogger(QuietLogger()))
	if err != nil {
		panic(err)
	}
	return conn, srv, mem
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package display

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// fakeServer is an in-memory Server that records the calls it sees.
type fakeServer struct {
	width, height int
	format        PixelFormat

	shm        bool
	geomErr    error
	imageErr   error
	attachErr  error
	shmGetErr  error
	detachErr  error
	monitors   []MonitorInfo
	monitorErr error
	names      map[uint32]string
	pointer    [2]int
	active     Rect

	calls      *[]string
	closed     int
	attached   map[ShmSeg]int
	nextSeg    ShmSeg
	shmFetches int
}

func newFakeServer(calls *[]string) *fakeServer {
	return &fakeServer{
		width:    1920,
		height:   1080,
		format:   PixelFormat{Depth: 24, BitsPerPixel: 32, ScanlinePad: 32},
		shm:      true,
		names:    map[uint32]string{},
		calls:    calls,
		attached: map[ShmSeg]int{},
		nextSeg:  1,
	}
}

// request mirrors xgb, whose request channel is closed by Close: any later
// request panics.
func (s *fakeServer) request(call string) {
	if s.closed > 0 {
		panic("send on closed channel")
	}
	s.record(call)
}

func (s *fakeServer) record(call string) {
	if s.calls != nil {
		*s.calls = append(*s.calls, call)
	}
}

func (s *fakeServer) Geometry() (int, int, error) {
	if s.geomErr != nil {
		return 0, 0, s.geomErr
	}
	return s.width, s.height, nil
}

func (s *fakeServer) Format() PixelFormat { return s.format }

func (s *fakeServer) GetImage(r Rect) (*ServerImage, error) {
	s.record("get-image")
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	data := make([]byte, s.format.Stride(r.Width)*r.Height)
	for i := range data {
		data[i] = byte(i)
	}
	return &ServerImage{Depth: s.format.Depth, Data: data}, nil
}

func (s *fakeServer) ShmAvailable() bool { return s.shm }

func (s *fakeServer) ShmAttach(shmid int, readOnly bool) (ShmSeg, error) {
	s.record("server-attach")
	if s.attachErr != nil {
		return 0, s.attachErr
	}
	seg := s.nextSeg
	s.nextSeg++
	s.attached[seg] = shmid
	return seg, nil
}

func (s *fakeServer) ShmDetach(seg ShmSeg) error {
	s.request("server-detach")
	if s.detachErr != nil {
		return s.detachErr
	}
	if _, ok := s.attached[seg]; !ok {
		return fmt.Errorf("segment %d not attached", seg)
	}
	delete(s.attached, seg)
	return nil
}

func (s *fakeServer) ShmGetImage(seg ShmSeg, r Rect) error {
	s.request("shm-get-image")
	if s.shmGetErr != nil {
		return s.shmGetErr
	}
	if _, ok := s.attached[seg]; !ok {
		return fmt.Errorf("segment %d not attached", seg)
	}
	s.shmFetches++
	return nil
}

func (s *fakeServer) Monitors() ([]MonitorInfo, error) {
	s.record("monitors")
	if s.monitorErr != nil {
		return nil, s.monitorErr
	}
	return s.monitors, nil
}

func (s *fakeServer) MonitorName(id uint32) (string, error) {
	s.record("monitor-name")
	name, ok := s.names[id]
	if !ok {
		return "", fmt.Errorf("unknown output %d", id)
	}
	return name, nil
}

func (s *fakeServer) QueryPointer() (int, int, error) {
	return s.pointer[0], s.pointer[1], nil
}

func (s *fakeServer) ActiveWindow() (Rect, error) {
	if s.active.Empty() {
		return Rect{}, errors.New("no active window")
	}
	return s.active, nil
}

func (s *fakeServer) Close() error {
	s.record("close")
	s.closed++
	return nil
}

// fakeMemory hands out heap buffers in place of SysV segments.
type fakeMemory struct {
	calls     *[]string
	getErr    error
	attachErr error
	detachErr error
	removeErr error
	shortBy   int

	nextID   int
	segments map[int][]byte
	mapped   int
	removed  []int
}

func newFakeMemory(calls *[]string) *fakeMemory {
	return &fakeMemory{calls: calls, nextID: 100, segments: map[int][]byte{}}
}

func (m *fakeMemory) record(call string) {
	if m.calls != nil {
		*m.calls = append(*m.calls, call)
	}
}

func (m *fakeMemory) Get(size int) (int, error) {
	m.record("shm-get")
	if m.getErr != nil {
		return -1, m.getErr
	}
	id := m.nextID
	m.nextID++
	m.segments[id] = make([]byte, size-m.shortBy)
	return id, nil
}

func (m *fakeMemory) Attach(id int) ([]byte, error) {
	m.record("process-attach")
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	seg, ok := m.segments[id]
	if !ok {
		return nil, fmt.Errorf("no segment %d", id)
	}
	m.mapped++
	return seg, nil
}

func (m *fakeMemory) Detach(data []byte) error {
	m.record("process-detach")
	if m.detachErr != nil {
		return m.detachErr
	}
	m.mapped--
	return nil
}

func (m *fakeMemory) Remove(id int) error {
	m.record("segment-remove")
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, id)
	delete(m.segments, id)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openFake opens a Connection over fresh fakes sharing one call log.
func openFake() (*Connection, *fakeServer, *fakeMemory, *[]string) {
	calls := &[]string{}
	srv := newFakeServer(calls)
	mem := newFakeMemory(calls)
	conn, err := Open(":0", func(string) (Server, error) { return srv, nil },
		WithSharedMemory(mem), WithLogger(quietLogger()))
	if err != nil {
		panic(err)
	}
	*calls = (*calls)[:0]
	return conn, srv, mem, calls
}

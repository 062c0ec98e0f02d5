package display

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestShm_ExtensionNotAvailableAllocatesNothing(t *testing.T) {
	conn, srv, _, calls := openFake()
	defer conn.Close()
	srv.shm = false

	_, err := conn.Shm().Area(Point{}, Size{Width: 100, Height: 100}).Build()
	if !errors.Is(err, ErrExtensionNotAvailable) {
		t.Fatalf("Build() error = %v, want ErrExtensionNotAvailable", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("Build() made calls %v, want none", *calls)
	}
}

func TestShm_CaptureReusesBuffer(t *testing.T) {
	conn, srv, _, _ := openFake()
	defer conn.Close()

	s, err := conn.Shm().Area(Point{X: 5, Y: 5}, Size{Width: 100, Height: 100}).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer s.Close()

	first, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	firstBuf := &first.AsBytes()[0]

	second, err := s.Capture()
	if err != nil {
		t.Fatalf("second Capture() error: %v", err)
	}
	if first != second {
		t.Fatal("Capture() returned different frames")
	}
	if &second.AsBytes()[0] != firstBuf {
		t.Fatal("Capture() reallocated the buffer")
	}
	if got, want := len(second.AsPixels()), 100*100; got != want {
		t.Fatalf("len(AsPixels()) = %d, want %d", got, want)
	}
	if second.Ownership() != SessionView {
		t.Fatalf("Ownership() = %v, want session-view", second.Ownership())
	}
	if srv.shmFetches != 2 {
		t.Fatalf("server fetches = %d, want 2", srv.shmFetches)
	}
}

func TestShm_TeardownOrder(t *testing.T) {
	conn, _, mem, calls := openFake()
	defer conn.Close()

	s, err := conn.Shm().Full().Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if s.State() != Attached {
		t.Fatalf("State() = %v, want attached", s.State())
	}
	build := []string{"shm-get", "process-attach", "server-attach"}
	if diff := cmp.Diff(build, *calls); diff != "" {
		t.Fatalf("build calls mismatch (-want +got):\n%s", diff)
	}

	*calls = (*calls)[:0]
	s.Close()
	s.Close()

	teardown := []string{"server-detach", "process-detach", "segment-remove"}
	if diff := cmp.Diff(teardown, *calls); diff != "" {
		t.Fatalf("teardown calls mismatch (-want +got):\n%s", diff)
	}
	if s.State() != TornDown {
		t.Fatalf("State() = %v, want torn-down", s.State())
	}
	if mem.mapped != 0 || len(mem.segments) != 0 {
		t.Fatalf("leaked %d mappings, %d segments", mem.mapped, len(mem.segments))
	}
	if _, err := s.Capture(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Capture() after Close error = %v, want ErrClosed", err)
	}
}

func TestShm_FrameCloseDoesNotReleaseSegment(t *testing.T) {
	conn, _, mem, calls := openFake()
	defer conn.Close()

	s, err := conn.Shm().Area(Point{}, Size{Width: 8, Height: 8}).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer s.Close()

	frame, _ := s.Capture()
	*calls = (*calls)[:0]
	frame.Close()
	if len(*calls) != 0 || mem.mapped != 1 {
		t.Fatalf("Frame.Close() on a session view made calls %v", *calls)
	}
	if frame.AsBytes() == nil {
		t.Fatal("session frame lost its buffer after Frame.Close()")
	}
}

func TestShm_ServerAttachFailureReleasesSegment(t *testing.T) {
	conn, srv, mem, calls := openFake()
	defer conn.Close()
	srv.attachErr = errors.New("BadAccess")

	_, err := conn.Shm().Area(Point{}, Size{Width: 10, Height: 10}).Build()
	if !errors.Is(err, ErrShmAttachFailed) {
		t.Fatalf("Build() error = %v, want ErrShmAttachFailed", err)
	}
	want := []string{"shm-get", "process-attach", "server-attach", "process-detach", "segment-remove"}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if mem.mapped != 0 || len(mem.segments) != 0 {
		t.Fatalf("leaked %d mappings, %d segments", mem.mapped, len(mem.segments))
	}
}

func TestShm_SegmentCreateFailure(t *testing.T) {
	conn, _, mem, calls := openFake()
	defer conn.Close()
	mem.getErr = errors.New("ENOSPC")

	_, err := conn.Shm().Full().Build()
	if !errors.Is(err, ErrShmInitFailed) {
		t.Fatalf("Build() error = %v, want ErrShmInitFailed", err)
	}
	if diff := cmp.Diff([]string{"shm-get"}, *calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestShm_ProcessAttachFailureRemovesSegment(t *testing.T) {
	conn, _, mem, calls := openFake()
	defer conn.Close()
	mem.attachErr = errors.New("EINVAL")

	_, err := conn.Shm().Full().Build()
	if !errors.Is(err, ErrShmInitFailed) {
		t.Fatalf("Build() error = %v, want ErrShmInitFailed", err)
	}
	want := []string{"shm-get", "process-attach", "segment-remove"}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestShm_ShortSegmentFailsInit(t *testing.T) {
	conn, _, mem, _ := openFake()
	defer conn.Close()
	mem.shortBy = 4

	_, err := conn.Shm().Area(Point{}, Size{Width: 4, Height: 4}).Build()
	if !errors.Is(err, ErrShmInitFailed) {
		t.Fatalf("Build() error = %v, want ErrShmInitFailed", err)
	}
	if mem.mapped != 0 || len(mem.segments) != 0 {
		t.Fatalf("leaked %d mappings, %d segments", mem.mapped, len(mem.segments))
	}
}

func TestShm_EmptyAreaRejected(t *testing.T) {
	conn, _, _, calls := openFake()
	defer conn.Close()

	if _, err := conn.Shm().Build(); !errors.Is(err, ErrInvalidArea) {
		t.Fatalf("Build() error = %v, want ErrInvalidArea", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("Build() made calls %v, want none", *calls)
	}
}

func TestShm_CaptureFailure(t *testing.T) {
	conn, srv, _, _ := openFake()
	defer conn.Close()

	s, err := conn.Shm().Full().Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	defer s.Close()

	srv.shmGetErr = errors.New("BadMatch")
	if _, err := s.Capture(); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Capture() error = %v, want ErrCaptureFailed", err)
	}
}

func TestShmBuilder_LastCallWins(t *testing.T) {
	conn, _, _, _ := openFake()
	defer conn.Close()

	mon := Monitor{Name: "HDMI-1", X: 1920, Y: 0, Width: 1280, Height: 1024}
	tests := []struct {
		name       string
		build      func(*ShmBuilder) *ShmBuilder
		wantOffset Point
		wantSize   Size
	}{
		{"monitor", func(b *ShmBuilder) *ShmBuilder { return b.Monitor(mon) },
			Point{X: 1920}, Size{Width: 1280, Height: 1024}},
		{"full", func(b *ShmBuilder) *ShmBuilder { return b.Full() },
			Point{}, Size{Width: 1920, Height: 1080}},
		{"area after monitor", func(b *ShmBuilder) *ShmBuilder {
			return b.Monitor(mon).Area(Point{X: 1, Y: 2}, Size{Width: 3, Height: 4})
		}, Point{X: 1, Y: 2}, Size{Width: 3, Height: 4}},
		{"full after area", func(b *ShmBuilder) *ShmBuilder {
			return b.Area(Point{X: 1, Y: 2}, Size{Width: 3, Height: 4}).Full()
		}, Point{}, Size{Width: 1920, Height: 1080}},
		{"monitor after full", func(b *ShmBuilder) *ShmBuilder { return b.Full().Monitor(mon) },
			Point{X: 1920}, Size{Width: 1280, Height: 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.build(conn.Shm()).Build()
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			defer s.Close()
			if s.Offset() != tt.wantOffset || s.Area() != tt.wantSize {
				t.Fatalf("session = %+v %+v, want %+v %+v", s.Offset(), s.Area(), tt.wantOffset, tt.wantSize)
			}
			if s.Frame().Width() != tt.wantSize.Width || s.Frame().Height() != tt.wantSize.Height {
				t.Fatalf("frame = %dx%d, want %dx%d", s.Frame().Width(), s.Frame().Height(), tt.wantSize.Width, tt.wantSize.Height)
			}
		})
	}
}

func TestShm_TeardownContinuesAfterFailedStep(t *testing.T) {
	teardown := []string{"server-detach", "process-detach", "segment-remove"}

	t.Run("server detach fails", func(t *testing.T) {
		conn, srv, mem, calls := openFake()
		defer conn.Close()
		s, err := conn.Shm().Full().Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		srv.detachErr = errors.New("BadValue")
		*calls = (*calls)[:0]

		s.Close()
		if diff := cmp.Diff(teardown, *calls); diff != "" {
			t.Fatalf("teardown calls mismatch (-want +got):\n%s", diff)
		}
		if mem.mapped != 0 || len(mem.segments) != 0 {
			t.Fatalf("leaked %d mappings, %d segments", mem.mapped, len(mem.segments))
		}
		if s.State() != TornDown {
			t.Fatalf("State() = %v, want torn-down", s.State())
		}
	})

	t.Run("process detach fails", func(t *testing.T) {
		conn, srv, mem, calls := openFake()
		defer conn.Close()
		s, err := conn.Shm().Full().Build()
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		mem.detachErr = errors.New("EINVAL")
		*calls = (*calls)[:0]

		s.Close()
		if diff := cmp.Diff(teardown, *calls); diff != "" {
			t.Fatalf("teardown calls mismatch (-want +got):\n%s", diff)
		}
		if len(srv.attached) != 0 || len(mem.segments) != 0 {
			t.Fatalf("leaked %d server attachments, %d segments", len(srv.attached), len(mem.segments))
		}
	})
}

func TestShm_SessionAfterConnectionClose(t *testing.T) {
	conn, _, mem, calls := openFake()
	s, err := conn.Shm().Area(Point{}, Size{Width: 16, Height: 16}).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	conn.Close()
	*calls = (*calls)[:0]

	if _, err := s.Capture(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Capture() error = %v, want ErrClosed", err)
	}
	s.Close()

	want := []string{"process-detach", "segment-remove"}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Fatalf("teardown calls mismatch (-want +got):\n%s", diff)
	}
	if mem.mapped != 0 || len(mem.segments) != 0 {
		t.Fatalf("leaked %d mappings, %d segments", mem.mapped, len(mem.segments))
	}
	if s.State() != TornDown {
		t.Fatalf("State() = %v, want torn-down", s.State())
	}
}

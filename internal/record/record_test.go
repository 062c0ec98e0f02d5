package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/display/displaytest"
	"github.com/1broseidon/xgrab/internal/grab"
	"github.com/1broseidon/xgrab/internal/sink"
)

type memorySink struct {
	frames  []sink.Frame
	err     error
	onWrite func(n int)
	closed  bool
}

func (s *memorySink) Write(ctx context.Context, f sink.Frame) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	if s.onWrite != nil {
		s.onWrite(len(s.frames))
	}
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

func newRecorder(t *testing.T, s sink.Sink) (*Recorder, *displaytest.Server, *displaytest.Memory) {
	t.Helper()
	conn, srv, mem := displaytest.Open()
	g := grab.New(conn, true, displaytest.QuietLogger())
	t.Cleanup(func() {
		g.Close()
		conn.Close()
	})
	return New(g, s, displaytest.QuietLogger()), srv, mem
}

func areaTarget() grab.Target {
	return grab.Target{Mode: config.CaptureModeArea, Area: display.Rect{X: 10, Y: 10, Width: 32, Height: 16}}
}

func TestRun_RecordsRequestedFrames(t *testing.T) {
	s := &memorySink{}
	r, srv, mem := newRecorder(t, s)

	stats, err := r.Run(context.Background(), Options{Target: areaTarget(), Frames: 3, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stats.Frames != 3 || stats.Failures != 0 {
		t.Fatalf("stats = %+v, want 3 frames, 0 failures", stats)
	}
	if _, err := uuid.Parse(stats.Session); err != nil {
		t.Fatalf("session %q is not a uuid: %v", stats.Session, err)
	}
	for i, f := range s.frames {
		if f.Seq != i+1 || f.Session != stats.Session {
			t.Fatalf("frame %d = seq %d session %q", i, f.Seq, f.Session)
		}
		if f.Width != 32 || f.Height != 16 {
			t.Fatalf("frame %d size = %dx%d, want 32x16", i, f.Width, f.Height)
		}
		stats.Bytes -= int64(len(f.Data))
	}
	if stats.Bytes != 0 {
		t.Fatal("Bytes does not match the delivered payloads")
	}
	// One segment for the whole recording.
	if srv.ShmFetches() != 3 || mem.Live() != 1 {
		t.Fatalf("shm fetches = %d, live segments = %d; want 3, 1", srv.ShmFetches(), mem.Live())
	}
	if s.closed {
		t.Fatal("Run must leave closing the sink to the caller")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &memorySink{onWrite: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	r, _, _ := newRecorder(t, s)

	stats, err := r.Run(ctx, Options{Target: areaTarget(), Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stats.Frames != 2 {
		t.Fatalf("Frames = %d, want 2", stats.Frames)
	}
}

func TestRun_GivesUpAfterConsecutiveFailures(t *testing.T) {
	s := &memorySink{err: errors.New("disk full")}
	r, _, _ := newRecorder(t, s)

	stats, err := r.Run(context.Background(), Options{Target: areaTarget(), Frames: 10, Interval: time.Millisecond, MaxFailures: 2})
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("Run() error = %v, want ErrTooManyFailures", err)
	}
	if stats.Failures != 2 || stats.Frames != 0 {
		t.Fatalf("stats = %+v, want 2 failures, 0 frames", stats)
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	r, _, _ := newRecorder(t, &memorySink{})

	if _, err := r.Run(context.Background(), Options{Target: areaTarget()}); err == nil {
		t.Fatal("zero interval returned nil error")
	}
	_, err := r.Run(context.Background(), Options{
		Target:   grab.Target{Mode: config.CaptureModeMonitor, Monitor: "nope"},
		Interval: time.Millisecond,
	})
	if !errors.Is(err, grab.ErrMonitorNotFound) {
		t.Fatalf("Run() error = %v, want ErrMonitorNotFound", err)
	}
}

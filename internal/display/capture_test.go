package display

import (
	"errors"
	"testing"
)

func TestCapture_DefaultsToFullScreen(t *testing.T) {
	conn, _, _, _ := openFake()
	defer conn.Close()

	frame, err := conn.Capture(nil)
	if err != nil {
		t.Fatalf("Capture(nil) error: %v", err)
	}
	defer frame.Close()

	if frame.Width() != conn.Width() || frame.Height() != conn.Height() {
		t.Fatalf("frame = %dx%d, want %dx%d", frame.Width(), frame.Height(), conn.Width(), conn.Height())
	}
	if got, want := len(frame.AsPixels()), conn.Width()*conn.Height(); got != want {
		t.Fatalf("len(AsPixels()) = %d, want %d", got, want)
	}
}

func TestCapture_FrameShape(t *testing.T) {
	regions := []Rect{
		{X: 0, Y: 0, Width: 1, Height: 1},
		{X: 10, Y: 20, Width: 100, Height: 100},
		{X: 1900, Y: 1000, Width: 20, Height: 80},
		{X: 0, Y: 0, Width: 333, Height: 7},
	}
	conn, _, _, _ := openFake()
	defer conn.Close()

	for _, r := range regions {
		r := r
		frame, err := conn.Capture(&r)
		if err != nil {
			t.Fatalf("Capture(%+v) error: %v", r, err)
		}
		if got, want := len(frame.AsPixels()), r.Width*r.Height; got != want {
			t.Errorf("Capture(%+v): len(AsPixels()) = %d, want %d", r, got, want)
		}
		if got, want := len(frame.AsBytes()), r.Width*r.Height*frame.BitsPerPixel()/8; got != want {
			t.Errorf("Capture(%+v): len(AsBytes()) = %d, want %d", r, got, want)
		}
		if frame.Format() != FormatBGRX8 {
			t.Errorf("Capture(%+v): Format() = %q, want %q", r, frame.Format(), FormatBGRX8)
		}
		if frame.Depth() != 24 {
			t.Errorf("Capture(%+v): Depth() = %d, want 24", r, frame.Depth())
		}
		frame.Close()
	}
}

func TestCapture_ServerFailure(t *testing.T) {
	conn, srv, _, _ := openFake()
	defer conn.Close()
	srv.imageErr = errors.New("BadMatch")

	if _, err := conn.Capture(nil); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Capture() error = %v, want ErrCaptureFailed", err)
	}
}

func TestCapture_EmptyRegionSkipsServer(t *testing.T) {
	conn, _, _, calls := openFake()
	defer conn.Close()

	_, err := conn.Capture(&Rect{Width: 0, Height: 10})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Capture(empty) error = %v, want ErrCaptureFailed", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("Capture(empty) made server calls %v", *calls)
	}
}

func TestCapture_FramesAreReadOnlyAndIndependent(t *testing.T) {
	conn, _, _, _ := openFake()
	defer conn.Close()

	r := Rect{Width: 4, Height: 4}
	a, err := conn.Capture(&r)
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	b, err := conn.Capture(&r)
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if &a.AsBytes()[0] == &b.AsBytes()[0] {
		t.Fatal("two captures share one buffer")
	}
	if _, err := a.AsBytesMutable(); !errors.Is(err, ErrFrameReadOnly) {
		t.Fatalf("AsBytesMutable() error = %v, want ErrFrameReadOnly", err)
	}
	if a.Ownership() != Owned {
		t.Fatalf("Ownership() = %v, want owned", a.Ownership())
	}
}

func TestCaptureMonitor(t *testing.T) {
	conn, _, _, _ := openFake()
	defer conn.Close()

	frame, err := conn.CaptureMonitor(Monitor{Name: "DP-1", X: 100, Y: 0, Width: 640, Height: 480})
	if err != nil {
		t.Fatalf("CaptureMonitor() error: %v", err)
	}
	if frame.Width() != 640 || frame.Height() != 480 {
		t.Fatalf("frame = %dx%d, want 640x480", frame.Width(), frame.Height())
	}
}

func TestCaptureActiveWindow(t *testing.T) {
	conn, srv, _, _ := openFake()
	defer conn.Close()

	if _, err := conn.CaptureActiveWindow(); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("CaptureActiveWindow() without window error = %v, want ErrCaptureFailed", err)
	}

	srv.active = Rect{X: 50, Y: 60, Width: 300, Height: 200}
	frame, err := conn.CaptureActiveWindow()
	if err != nil {
		t.Fatalf("CaptureActiveWindow() error: %v", err)
	}
	if frame.Width() != 300 || frame.Height() != 200 {
		t.Fatalf("frame = %dx%d, want 300x200", frame.Width(), frame.Height())
	}
}

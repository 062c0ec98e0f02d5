package display

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMonitors_EmptyIsNotAnError(t *testing.T) {
	conn, _, _, _ := openFake()
	defer conn.Close()

	got, err := conn.Monitors()
	if err != nil {
		t.Fatalf("Monitors() error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Monitors() = %#v, want empty slice", got)
	}
}

func TestMonitors_ResolvesNames(t *testing.T) {
	conn, srv, _, calls := openFake()
	defer conn.Close()
	srv.monitors = []MonitorInfo{
		{ID: 65, X: 0, Y: 0, Width: 1920, Height: 1080, Primary: true},
		{ID: 66, X: 1920, Y: 0, Width: 2560, Height: 1440},
	}
	srv.names[65] = "eDP-1"
	srv.names[66] = "DP-2"

	got, err := conn.Monitors()
	if err != nil {
		t.Fatalf("Monitors() error: %v", err)
	}
	want := []Monitor{
		{Name: "eDP-1", X: 0, Y: 0, Width: 1920, Height: 1080, Primary: true},
		{Name: "DP-2", X: 1920, Y: 0, Width: 2560, Height: 1440},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Monitors() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"monitors", "monitor-name", "monitor-name"}, *calls); diff != "" {
		t.Fatalf("round trips mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitors_ExtensionMissing(t *testing.T) {
	conn, srv, _, _ := openFake()
	defer conn.Close()
	srv.monitorErr = fmt.Errorf("%w: RANDR", ErrExtensionNotAvailable)

	if _, err := conn.Monitors(); !errors.Is(err, ErrExtensionNotAvailable) {
		t.Fatalf("Monitors() error = %v, want ErrExtensionNotAvailable", err)
	}
}

func TestMonitors_NameFailure(t *testing.T) {
	conn, srv, _, _ := openFake()
	defer conn.Close()
	srv.monitors = []MonitorInfo{{ID: 99, Width: 10, Height: 10}}

	if _, err := conn.Monitors(); err == nil {
		t.Fatal("Monitors() error = nil, want name resolution error")
	}
}

func TestPrimaryAndFindMonitor(t *testing.T) {
	monitors := []Monitor{
		{Name: "DP-1", Width: 10, Height: 10},
		{Name: "DP-2", Width: 20, Height: 20, Primary: true},
	}
	if m, ok := PrimaryMonitor(monitors); !ok || m.Name != "DP-2" {
		t.Fatalf("PrimaryMonitor() = %+v, %v, want DP-2", m, ok)
	}
	if m, ok := PrimaryMonitor(monitors[:1]); !ok || m.Name != "DP-1" {
		t.Fatalf("PrimaryMonitor(no primary) = %+v, %v, want DP-1 fallback", m, ok)
	}
	if _, ok := PrimaryMonitor(nil); ok {
		t.Fatal("PrimaryMonitor(nil) ok = true, want false")
	}
	if _, ok := FindMonitor(monitors, "HDMI-1"); ok {
		t.Fatal("FindMonitor(missing) ok = true, want false")
	}
	if m, ok := FindMonitor(monitors, "DP-1"); !ok || m.Width != 10 {
		t.Fatalf("FindMonitor(DP-1) = %+v, %v", m, ok)
	}
}

func TestMonitor_MouseToLocal(t *testing.T) {
	m := Monitor{X: 1920, Y: 0, Width: 1280, Height: 1024}
	tests := []struct {
		rootX, rootY int
		wantX, wantY int
		wantOK       bool
	}{
		{1920, 0, 0, 0, true},
		{2000, 500, 80, 500, true},
		{3200, 1024, 1280, 1024, true},
		{100, 100, 0, 0, false},
		{2000, 2000, 0, 0, false},
	}
	for _, tt := range tests {
		x, y, ok := m.MouseToLocal(tt.rootX, tt.rootY)
		if x != tt.wantX || y != tt.wantY || ok != tt.wantOK {
			t.Errorf("MouseToLocal(%d, %d) = (%d, %d, %v), want (%d, %d, %v)",
				tt.rootX, tt.rootY, x, y, ok, tt.wantX, tt.wantY, tt.wantOK)
		}
	}
}

// Package hotkeys grabs global key sequences on the root window.
package hotkeys

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Listener owns a dedicated X connection for key grabs so that event
// dispatch never contends with capture round trips.
type Listener struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	logger *slog.Logger
}

// NewListener connects to identifier ("" uses $DISPLAY) and prepares the
// keyboard mapping.
func NewListener(identifier string, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	xgbutil.Logger = log.New(&slogWriter{logger: logger}, "", 0)

	xu, err := xgbutil.NewConnDisplay(identifier)
	if err != nil {
		return nil, fmt.Errorf("hotkey connection: %w", err)
	}
	keybind.Initialize(xu)
	configureIgnoreMods(xu)

	return &Listener{xu: xu, root: xu.RootWin(), logger: logger}, nil
}

// Register runs callback on the event goroutine whenever keySequence (for
// example "Print" or "Mod4-Shift-s") is pressed.
func (l *Listener) Register(keySequence string, callback func()) error {
	err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(l.xu, l.root, keySequence, true)
	if err != nil {
		return fmt.Errorf("grab %q: %w", keySequence, err)
	}
	l.logger.Info("hotkey registered", "keys", keySequence)
	return nil
}

// Run dispatches key events until ctx is done, then releases the grabs and
// the connection.
func (l *Listener) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		xevent.Main(l.xu)
	}()

	select {
	case <-ctx.Done():
		xevent.Quit(l.xu)
		keybind.Detach(l.xu, l.root)
		// Closing the connection wakes the event loop so it sees Quit.
		l.xu.Conn().Close()
		<-done
	case <-done:
	}
}

// Close drops the connection without running the event loop.
func (l *Listener) Close() {
	l.xu.Conn().Close()
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}
	xevent.IgnoreMods = ignoreMasks(base)
}

// ignoreMasks returns every combination of the lock modifiers in base,
// including none, so a grab fires regardless of lock state.
func ignoreMasks(base []uint16) []uint16 {
	unique := map[uint16]struct{}{0: {}}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	masks := make([]uint16, 0, len(unique))
	for mask := range unique {
		masks = append(masks, mask)
	}
	sort.Slice(masks, func(i, j int) bool { return masks[i] < masks[j] })
	return masks
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}

// slogWriter routes xgbutil's standard-library logger into slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(strings.TrimRight(string(p), "\n"), "component", "xgbutil")
	return len(p), nil
}

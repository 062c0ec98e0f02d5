package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/encode"
	"github.com/1broseidon/xgrab/internal/grab"
	"github.com/1broseidon/xgrab/internal/ipc"
	"github.com/1broseidon/xgrab/internal/tui"
)

type captureFlags struct {
	path      string
	mode      string
	monitor   string
	area      string
	window    bool
	format    string
	quality   int
	maxWidth  int
	maxHeight int
	output    string
	noShm     bool
	viaDaemon bool
	socket    string
	force     bool
	pick      bool
	verbose   bool
}

func runCapture(args []string) int {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var f captureFlags
	fs.StringVar(&f.path, "path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
	fs.StringVar(&f.mode, "mode", "", "Capture mode: full, monitor, area, window (default: from config)")
	fs.StringVar(&f.monitor, "monitor", "", "Monitor name (implies --mode monitor)")
	fs.StringVar(&f.area, "area", "", "Area as WIDTHxHEIGHT+X+Y (implies --mode area)")
	fs.BoolVar(&f.window, "window", false, "Capture the focused window (implies --mode window)")
	fs.StringVar(&f.format, "format", "", "Image format: png, jpeg, bmp, tiff (default: from --output or config)")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality 1-100")
	fs.IntVar(&f.maxWidth, "max-width", 0, "Downscale to at most this width")
	fs.IntVar(&f.maxHeight, "max-height", 0, "Downscale to at most this height")
	fs.StringVar(&f.output, "o", "", "Output file, or - for stdout (default: timestamped file in output.dir)")
	fs.BoolVar(&f.noShm, "no-shm", false, "Use plain GetImage even when MIT-SHM is available")
	fs.BoolVar(&f.viaDaemon, "daemon", false, "Ask the running daemon instead of connecting directly")
	fs.StringVar(&f.socket, "socket", "", "Daemon socket path (with --daemon)")
	fs.BoolVar(&f.pick, "pick", false, "Choose the target interactively")
	fs.BoolVar(&f.force, "force", false, "Write image data to stdout even when it is a terminal")
	fs.BoolVar(&f.verbose, "v", false, "Debug logging")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xgrab capture [options]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Capture the screen and write an image file.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "capture takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(f.path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	if err := applyCaptureFlags(cfg, &f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if f.output == "-" && !f.force && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "refusing to write image data to a terminal; redirect stdout or pass --force")
		return 2
	}

	logger, closeLog, err := newLogger(cfg, f.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	if f.pick {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "--pick needs an interactive terminal")
			return 2
		}
		monitors, err := listMonitors(cfg, logger, f.viaDaemon, f.socket)
		if err != nil {
			// The picker still offers full screen and the focused window.
			logger.Debug("monitor enumeration failed", "error", err)
		}
		if err := tui.PickTarget(&cfg.Capture, monitors); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	var img *grab.Image
	if f.viaDaemon {
		img, err = captureViaDaemon(cfg, f.socket)
	} else {
		var conn *display.Connection
		conn, err = openDisplay(cfg, logger)
		if err == nil {
			g := grab.New(conn, cfg.Capture.UseShm, logger)
			img, err = g.Grab(grab.TargetFromConfig(cfg.Capture), cfg.EncodeOptions())
			g.Close()
			conn.Close()
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	if f.output == "-" {
		if _, err := os.Stdout.Write(img.Data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	path := f.output
	if path == "" {
		path = defaultOutputPath(cfg.Output, img.Format, time.Now())
	}
	if err := writeImage(path, img.Data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(path)
	return 0
}

// applyCaptureFlags overlays command-line choices on the config.
func applyCaptureFlags(cfg *config.Config, f *captureFlags) error {
	if f.mode != "" {
		cfg.Capture.Mode = config.CaptureMode(f.mode)
	}
	if f.monitor != "" {
		cfg.Capture.Mode = config.CaptureModeMonitor
		cfg.Capture.Monitor = f.monitor
	}
	if f.area != "" {
		r, err := parseGeometry(f.area)
		if err != nil {
			return err
		}
		cfg.Capture.Mode = config.CaptureModeArea
		cfg.Capture.Area = r
	}
	if f.window {
		cfg.Capture.Mode = config.CaptureModeWindow
	}
	if f.noShm {
		cfg.Capture.UseShm = false
	}

	switch {
	case f.format != "":
		cfg.Output.Format = f.format
	case f.output != "" && f.output != "-":
		format, err := encode.FormatFromPath(f.output)
		if err != nil {
			return err
		}
		cfg.Output.Format = string(format)
	}
	if f.quality > 0 {
		cfg.Output.Quality = f.quality
	}
	if f.maxWidth > 0 {
		cfg.Output.MaxWidth = f.maxWidth
	}
	if f.maxHeight > 0 {
		cfg.Output.MaxHeight = f.maxHeight
	}
	return cfg.Validate()
}

func captureViaDaemon(cfg *config.Config, socket string) (*grab.Image, error) {
	if socket == "" {
		socket = cfg.Daemon.Socket
	}
	p := ipc.CapturePayload{
		Mode:      string(cfg.Capture.Mode),
		Monitor:   cfg.Capture.Monitor,
		Format:    cfg.Output.Format,
		Quality:   cfg.Output.Quality,
		MaxWidth:  cfg.Output.MaxWidth,
		MaxHeight: cfg.Output.MaxHeight,
	}
	if cfg.Capture.Mode == config.CaptureModeArea {
		area := cfg.Capture.Area
		p.Area = &area
	}
	data, err := newClient(socket).Capture(p)
	if err != nil {
		return nil, err
	}
	return &grab.Image{
		Rect:   data.Area,
		Width:  data.Width,
		Height: data.Height,
		Format: encode.Format(data.Format),
		Data:   data.Image,
	}, nil
}

func defaultOutputPath(out config.OutputConfig, format encode.Format, now time.Time) string {
	name := fmt.Sprintf("%s-%s%s", out.Prefix, now.Format("20060102-150405.000"), format.Extension())
	return filepath.Join(out.Dir, name)
}

// writeImage writes encoded bytes via a temporary sibling and a rename.
func writeImage(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".xgrab-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func runMonitors(args []string) int {
	fs := flag.NewFlagSet("monitors", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
	asJSON := fs.Bool("json", false, "Print JSON")
	viaDaemon := fs.Bool("daemon", false, "Ask the running daemon instead of connecting directly")
	socket := fs.String("socket", "", "Daemon socket path (with --daemon)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xgrab monitors [--json] [--daemon]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List connected monitors (requires RandR).")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	logger, closeLog, err := newLogger(cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	monitors, err := listMonitors(cfg, logger, *viaDaemon, *socket)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	if err := printMonitors(os.Stdout, monitors, *asJSON, styled); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// listMonitors reads the layout from the daemon or a short-lived connection.
func listMonitors(cfg *config.Config, logger *slog.Logger, viaDaemon bool, socket string) ([]display.Monitor, error) {
	if viaDaemon {
		if socket == "" {
			socket = cfg.Daemon.Socket
		}
		data, err := newClient(socket).GetMonitors()
		if err != nil {
			return nil, err
		}
		return data.Monitors, nil
	}
	conn, err := openDisplay(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Monitors()
}

func printMonitors(w io.Writer, monitors []display.Monitor, asJSON, styled bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(monitors)
	}
	return tui.RenderMonitors(w, monitors, styled)
}

func runPointer(args []string) int {
	fs := flag.NewFlagSet("pointer", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xgrab pointer")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the pointer position in root and monitor coordinates.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	logger, closeLog, err := newLogger(cfg, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	conn, err := openDisplay(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer conn.Close()

	x, y, err := conn.PointerPosition()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("root: %d,%d\n", x, y)

	monitors, err := conn.Monitors()
	if err != nil {
		logger.Debug("monitor lookup skipped", "error", err)
		return 0
	}
	for _, m := range monitors {
		if lx, ly, ok := m.MouseToLocal(x, y); ok {
			fmt.Printf("%s: %d,%d\n", m.Name, lx, ly)
		}
	}
	return 0
}

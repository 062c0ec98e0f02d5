package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/displayenv"
	"github.com/1broseidon/xgrab/internal/ipc"
	"github.com/1broseidon/xgrab/internal/logging"
	"github.com/1broseidon/xgrab/internal/x11"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "capture":
		os.Exit(runCapture(os.Args[2:]))
	case "monitors":
		os.Exit(runMonitors(os.Args[2:]))
	case "pointer":
		os.Exit(runPointer(os.Args[2:]))
	case "record":
		os.Exit(runRecord(os.Args[2:]))
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: xgrab <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  capture             Capture the screen, a monitor, an area or a window")
	fmt.Fprintln(w, "  monitors            List connected monitors")
	fmt.Fprintln(w, "  pointer             Show the pointer position")
	fmt.Fprintln(w, "  record              Capture frames repeatedly into a directory or Kafka")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  daemon              Start the capture daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'xgrab <command> --help' for command-specific options.")
}

// loadConfig reads path, or the default location when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// newLogger builds the process logger from the logging section and installs
// it as the slog default.
func newLogger(cfg *config.Config, verbose bool) (*slog.Logger, func() error, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, closeFn, err := logging.New(logging.Options{Level: level, File: cfg.Logging.File})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// openDisplay connects to the configured X display, finding one from the
// login session when neither DISPLAY nor the config names it.
func openDisplay(cfg *config.Config, logger *slog.Logger) (*display.Connection, error) {
	identifier, err := displayenv.Setup(cfg.Display)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening display", "display", identifier)
	return display.Open(identifier, x11.Dial, display.WithLogger(logger))
}

// parseGeometry parses an X geometry string: WIDTHxHEIGHT[+X+Y].
func parseGeometry(s string) (display.Rect, error) {
	var r display.Rect
	size, offset, hasOffset := strings.Cut(s, "+")
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return r, fmt.Errorf("invalid geometry %q (want WIDTHxHEIGHT+X+Y)", s)
	}
	var err error
	if r.Width, err = strconv.Atoi(w); err != nil {
		return r, fmt.Errorf("invalid geometry width %q", w)
	}
	if r.Height, err = strconv.Atoi(h); err != nil {
		return r, fmt.Errorf("invalid geometry height %q", h)
	}
	if hasOffset {
		x, y, ok := strings.Cut(offset, "+")
		if !ok {
			return r, fmt.Errorf("invalid geometry %q (want WIDTHxHEIGHT+X+Y)", s)
		}
		if r.X, err = strconv.Atoi(x); err != nil {
			return r, fmt.Errorf("invalid geometry x %q", x)
		}
		if r.Y, err = strconv.Atoi(y); err != nil {
			return r, fmt.Errorf("invalid geometry y %q", y)
		}
	}
	if r.Empty() {
		return r, fmt.Errorf("geometry %q has an empty area", s)
	}
	return r, nil
}

// exitCode maps capture errors to distinct process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, display.ErrInvalidIdentifier),
		errors.Is(err, displayenv.ErrNoDisplay),
		errors.Is(err, display.ErrConnectionFailed):
		return 3
	case errors.Is(err, display.ErrExtensionNotAvailable):
		return 4
	default:
		return 1
	}
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "Daemon socket path (default: $XDG_RUNTIME_DIR/xgrab.sock)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xgrab status [--socket PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := newClient(*socket)
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("display:        %s\n", status.Display)
	fmt.Printf("screen:         %dx%d\n", status.Width, status.Height)
	fmt.Printf("shm_enabled:    %v\n", status.ShmEnabled)
	fmt.Printf("captures:       %d\n", status.Captures)
	fmt.Printf("failures:       %d\n", status.Failures)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	return 0
}

func newClient(socket string) *ipc.Client {
	if socket == "" {
		return ipc.NewClient()
	}
	return ipc.NewClientWithSocket(socket)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  xgrab config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  xgrab config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitCode(err)
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			var err error
			if cfg, err = loadConfig(*path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitCode(err)
			}
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

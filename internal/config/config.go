package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/encode"
)

// CaptureMode selects what a capture covers.
type CaptureMode string

const (
	CaptureModeFull    CaptureMode = "full"    // Whole default screen.
	CaptureModeMonitor CaptureMode = "monitor" // One RandR monitor (primary when unnamed).
	CaptureModeArea    CaptureMode = "area"    // Explicit rectangle.
	CaptureModeWindow  CaptureMode = "window"  // Focused window, decorations included.
)

// SinkKind selects where recorded frames go.
type SinkKind string

const (
	SinkDir   SinkKind = "dir"
	SinkKafka SinkKind = "kafka"
)

// CaptureConfig describes the region to grab.
type CaptureConfig struct {
	Mode    CaptureMode  `yaml:"mode"`
	Monitor string       `yaml:"monitor,omitempty"` // RandR output name, e.g. "DP-1"
	Area    display.Rect `yaml:"area,omitempty"`
	// UseShm routes repeated captures through an MIT-SHM session.
	UseShm bool `yaml:"use_shm"`
}

// OutputConfig controls encoding and file placement.
type OutputConfig struct {
	Format    string `yaml:"format"`
	Quality   int    `yaml:"quality,omitempty"` // JPEG only, 1-100
	Dir       string `yaml:"dir"`
	Prefix    string `yaml:"prefix"`
	MaxWidth  int    `yaml:"max_width,omitempty"`  // 0 = unlimited
	MaxHeight int    `yaml:"max_height,omitempty"` // 0 = unlimited
}

// KafkaConfig configures the Kafka frame sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// RecordConfig controls repeated capture.
type RecordConfig struct {
	// Frames is the number of frames to take; 0 records until interrupted.
	Frames   int           `yaml:"frames"`
	Interval time.Duration `yaml:"interval"`
	Sink     SinkKind      `yaml:"sink"`
	Kafka    KafkaConfig   `yaml:"kafka,omitempty"`
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`
	// File is the log file path; empty logs to stderr.
	File string `yaml:"file,omitempty"`
}

// DaemonConfig configures the capture daemon.
type DaemonConfig struct {
	// Socket overrides the IPC socket path under the runtime dir.
	Socket string `yaml:"socket,omitempty"`
	// Hotkey is a key sequence such as "Print" or "Mod4-Shift-s" that saves
	// a capture of the configured target into output.dir.
	Hotkey string `yaml:"hotkey,omitempty"`
}

// Config is the effective xgrab configuration.
type Config struct {
	// Display is the X display to open; empty uses $DISPLAY.
	Display string        `yaml:"display,omitempty"`
	Capture CaptureConfig `yaml:"capture"`
	Output  OutputConfig  `yaml:"output"`
	Record  RecordConfig  `yaml:"record"`
	Logging LoggingConfig `yaml:"logging"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
}

const (
	DefaultRecordInterval = time.Second
	DefaultKafkaTopic     = "xgrab-frames"
	DefaultPrefix         = "xgrab"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			Mode:   CaptureModeFull,
			UseShm: true,
		},
		Output: OutputConfig{
			Format:  string(encode.FormatPNG),
			Quality: encode.DefaultJPEGQuality,
			Dir:     defaultOutputDir(),
			Prefix:  DefaultPrefix,
		},
		Record: RecordConfig{
			Interval: DefaultRecordInterval,
			Sink:     SinkDir,
			Kafka: KafkaConfig{
				Topic: DefaultKafkaTopic,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultOutputDir() string {
	if dir := os.Getenv("XDG_PICTURES_DIR"); dir != "" {
		return filepath.Join(dir, "xgrab")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, "Pictures", "xgrab")
}

// ValidationError points at the offending config key.
type ValidationError struct {
	Path string
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the configuration for values the capture path cannot use.
func (c *Config) Validate() error {
	if strings.IndexByte(c.Display, 0) >= 0 {
		return &ValidationError{Path: "display", Err: display.ErrInvalidIdentifier}
	}
	switch c.Capture.Mode {
	case CaptureModeFull, CaptureModeMonitor, CaptureModeWindow:
	case CaptureModeArea:
		if c.Capture.Area.Empty() {
			return &ValidationError{Path: "capture.area", Err: fmt.Errorf("area mode needs a positive width and height")}
		}
		if c.Capture.Area.X < 0 || c.Capture.Area.Y < 0 {
			return &ValidationError{Path: "capture.area", Err: fmt.Errorf("area offset must be >= 0")}
		}
	default:
		return &ValidationError{Path: "capture.mode", Err: fmt.Errorf("capture.mode must be one of: full, monitor, area, window")}
	}

	if _, err := encode.ParseFormat(c.Output.Format); err != nil {
		return &ValidationError{Path: "output.format", Err: err}
	}
	if c.Output.Quality < 0 || c.Output.Quality > 100 {
		return &ValidationError{Path: "output.quality", Err: fmt.Errorf("output.quality must be between 1 and 100")}
	}
	if c.Output.MaxWidth < 0 || c.Output.MaxHeight < 0 {
		return &ValidationError{Path: "output", Err: fmt.Errorf("max_width and max_height must be >= 0")}
	}
	if strings.ContainsRune(c.Output.Prefix, os.PathSeparator) {
		return &ValidationError{Path: "output.prefix", Err: fmt.Errorf("output.prefix must not contain a path separator")}
	}

	if c.Record.Frames < 0 {
		return &ValidationError{Path: "record.frames", Err: fmt.Errorf("record.frames must be >= 0")}
	}
	if c.Record.Interval <= 0 {
		return &ValidationError{Path: "record.interval", Err: fmt.Errorf("record.interval must be > 0")}
	}
	switch c.Record.Sink {
	case SinkDir:
	case SinkKafka:
		if len(c.Record.Kafka.Brokers) == 0 {
			return &ValidationError{Path: "record.kafka.brokers", Err: fmt.Errorf("kafka sink needs at least one broker")}
		}
		if strings.TrimSpace(c.Record.Kafka.Topic) == "" {
			return &ValidationError{Path: "record.kafka.topic", Err: fmt.Errorf("kafka sink needs a topic")}
		}
	default:
		return &ValidationError{Path: "record.sink", Err: fmt.Errorf("record.sink must be one of: dir, kafka")}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("logging.level must be one of: debug, info, warn, error")}
	}
	return nil
}

// EncodeOptions returns the encoder settings for the output section.
func (c *Config) EncodeOptions() encode.Options {
	format, err := encode.ParseFormat(c.Output.Format)
	if err != nil {
		format = encode.FormatPNG
	}
	return encode.Options{
		Format:    format,
		Quality:   c.Output.Quality,
		MaxWidth:  c.Output.MaxWidth,
		MaxHeight: c.Output.MaxHeight,
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/1broseidon/xgrab/internal/config"
	"github.com/1broseidon/xgrab/internal/grab"
	"github.com/1broseidon/xgrab/internal/record"
	"github.com/1broseidon/xgrab/internal/sink"
)

func runRecord(args []string) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var f captureFlags
	fs.StringVar(&f.path, "path", "", "Config file path (default: ~/.config/xgrab/config.yaml)")
	fs.StringVar(&f.mode, "mode", "", "Capture mode: full, monitor, area, window (default: from config)")
	fs.StringVar(&f.monitor, "monitor", "", "Monitor name (implies --mode monitor)")
	fs.StringVar(&f.area, "area", "", "Area as WIDTHxHEIGHT+X+Y (implies --mode area)")
	fs.BoolVar(&f.window, "window", false, "Record the focused window's area at start")
	fs.StringVar(&f.format, "format", "", "Image format: png, jpeg, bmp, tiff")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality 1-100")
	fs.IntVar(&f.maxWidth, "max-width", 0, "Downscale to at most this width")
	fs.IntVar(&f.maxHeight, "max-height", 0, "Downscale to at most this height")
	fs.BoolVar(&f.noShm, "no-shm", false, "Use plain GetImage even when MIT-SHM is available")
	fs.BoolVar(&f.verbose, "v", false, "Debug logging")
	frames := fs.Int("frames", -1, "Frames to record, 0 until interrupted (default: from config)")
	interval := fs.Duration("interval", 0, "Time between frames (default: from config)")
	sinkKind := fs.String("sink", "", "Frame sink: dir or kafka (default: from config)")
	dir := fs.String("dir", "", "Output directory for the dir sink (default: output.dir)")
	brokers := fs.String("brokers", "", "Comma-separated Kafka brokers (implies --sink kafka)")
	topic := fs.String("topic", "", "Kafka topic")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xgrab record [options]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Capture frames on an interval through one shared-memory segment.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(f.path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	if *frames >= 0 {
		cfg.Record.Frames = *frames
	}
	if *interval > 0 {
		cfg.Record.Interval = *interval
	}
	if *dir != "" {
		cfg.Output.Dir = *dir
	}
	if *brokers != "" {
		cfg.Record.Sink = config.SinkKafka
		cfg.Record.Kafka.Brokers = splitList(*brokers)
	}
	if *sinkKind != "" {
		cfg.Record.Sink = config.SinkKind(*sinkKind)
	}
	if *topic != "" {
		cfg.Record.Kafka.Topic = *topic
	}
	if err := applyCaptureFlags(cfg, &f); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, closeLog, err := newLogger(cfg, f.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	out, err := openSink(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	conn, err := openDisplay(cfg, logger)
	if err != nil {
		out.Close()
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	g := grab.New(conn, cfg.Capture.UseShm, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, runErr := record.New(g, out, logger).Run(ctx, record.Options{
		Target:   grab.TargetFromConfig(cfg.Capture),
		Frames:   cfg.Record.Frames,
		Interval: cfg.Record.Interval,
		Encode:   cfg.EncodeOptions(),
	})
	g.Close()
	conn.Close()
	if err := out.Close(); err != nil {
		logger.Warn("failed to close sink", "error", err)
	}

	fmt.Printf("session:  %s\n", stats.Session)
	fmt.Printf("frames:   %d\n", stats.Frames)
	fmt.Printf("failures: %d\n", stats.Failures)
	fmt.Printf("bytes:    %d\n", stats.Bytes)
	fmt.Printf("elapsed:  %s\n", stats.Elapsed.Round(time.Millisecond))
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		return exitCode(runErr)
	}
	return 0
}

func openSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, error) {
	switch cfg.Record.Sink {
	case config.SinkKafka:
		return sink.NewKafka(cfg.Record.Kafka.Brokers, cfg.Record.Kafka.Topic, logger)
	default:
		return sink.NewDir(cfg.Output.Dir, cfg.Output.Prefix)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package record captures a target repeatedly and hands encoded frames to a
// sink.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/xgrab/internal/display"
	"github.com/1broseidon/xgrab/internal/encode"
	"github.com/1broseidon/xgrab/internal/grab"
	"github.com/1broseidon/xgrab/internal/sink"
)

// Options controls one recording.
type Options struct {
	Target   grab.Target
	Frames   int // 0 records until ctx is done
	Interval time.Duration
	Encode   encode.Options
	// MaxFailures stops the recording after this many consecutive failed
	// captures; 0 means 3.
	MaxFailures int
}

// Stats summarizes a recording.
type Stats struct {
	Session  string
	Frames   int
	Failures int
	Bytes    int64
	Elapsed  time.Duration
}

// Recorder drives a Grabber on a fixed interval.
type Recorder struct {
	grabber *grab.Grabber
	sink    sink.Sink
	logger  *slog.Logger
	now     func() time.Time
}

func New(g *grab.Grabber, s sink.Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{grabber: g, sink: s, logger: logger, now: time.Now}
}

var ErrTooManyFailures = errors.New("too many consecutive capture failures")

// Run records until opts.Frames frames are delivered, ctx is done, or
// captures keep failing. The target is resolved once, so the shared-memory
// session is reused for every frame. Cancellation is not an error.
func (r *Recorder) Run(ctx context.Context, opts Options) (Stats, error) {
	stats := Stats{Session: uuid.NewString()}
	if opts.Interval <= 0 {
		return stats, fmt.Errorf("invalid interval %v", opts.Interval)
	}
	maxFailures := opts.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}

	area, err := r.grabber.Resolve(opts.Target)
	if err != nil {
		return stats, err
	}
	r.logger.Info("recording started",
		"session", stats.Session,
		"area", fmt.Sprintf("%dx%d+%d+%d", area.Width, area.Height, area.X, area.Y),
		"interval", opts.Interval,
		"frames", opts.Frames)

	start := r.now()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	consecutive := 0
	for seq := 1; opts.Frames == 0 || stats.Frames < opts.Frames; seq++ {
		err := r.step(ctx, stats.Session, seq, area, opts.Encode, &stats)
		switch {
		case err == nil:
			consecutive = 0
		case ctx.Err() != nil:
			stats.Elapsed = r.now().Sub(start)
			return stats, nil
		default:
			stats.Failures++
			consecutive++
			r.logger.Warn("frame failed", "session", stats.Session, "seq", seq, "error", err)
			if consecutive >= maxFailures {
				stats.Elapsed = r.now().Sub(start)
				return stats, fmt.Errorf("%w: %v", ErrTooManyFailures, err)
			}
		}
		if opts.Frames != 0 && stats.Frames >= opts.Frames {
			break
		}

		select {
		case <-ctx.Done():
			stats.Elapsed = r.now().Sub(start)
			r.logger.Info("recording stopped", "session", stats.Session, "frames", stats.Frames)
			return stats, nil
		case <-ticker.C:
		}
	}

	stats.Elapsed = r.now().Sub(start)
	r.logger.Info("recording finished",
		"session", stats.Session,
		"frames", stats.Frames,
		"failures", stats.Failures,
		"bytes", stats.Bytes,
		"elapsed", stats.Elapsed)
	return stats, nil
}

func (r *Recorder) step(ctx context.Context, session string, seq int, area display.Rect, opts encode.Options, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := r.grabber.Frame(area)
	if err != nil {
		return err
	}
	img, err := grab.EncodeFrame(f, area, opts)
	if err != nil {
		return err
	}
	err = r.sink.Write(ctx, sink.Frame{
		Session: session,
		Seq:     seq,
		Time:    r.now(),
		Width:   img.Width,
		Height:  img.Height,
		Format:  img.Format,
		Data:    img.Data,
	})
	if err != nil {
		return err
	}
	stats.Frames++
	stats.Bytes += int64(len(img.Data))
	return nil
}

// Package sink delivers encoded frames produced by a recording.
package sink

import (
	"context"
	"time"

	"github.com/1broseidon/xgrab/internal/encode"
)

// Frame is one encoded capture.
type Frame struct {
	Session string
	Seq     int
	Time    time.Time
	Width   int
	Height  int
	Format  encode.Format
	Data    []byte
}

// Sink receives frames in order. Implementations need not be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, f Frame) error
	Close() error
}

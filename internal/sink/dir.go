package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestEntry describes one file written by a Dir sink.
type ManifestEntry struct {
	Seq    int       `json:"seq"`
	File   string    `json:"file"`
	Time   time.Time `json:"time"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Bytes  int       `json:"bytes"`
}

// Manifest is written next to the frames when a Dir sink closes.
type Manifest struct {
	Session string          `json:"session"`
	Frames  []ManifestEntry `json:"frames"`
}

// Dir writes each frame to its own file and a JSON manifest on Close.
type Dir struct {
	dir     string
	prefix  string
	session string
	entries []ManifestEntry
}

// NewDir creates dir if needed.
func NewDir(dir, prefix string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Dir{dir: dir, prefix: prefix}, nil
}

// FrameName returns the file name used for frame seq of a session.
func FrameName(prefix, session string, seq int, ext string) string {
	return fmt.Sprintf("%s-%s-%06d%s", prefix, shortID(session), seq, ext)
}

func shortID(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	return session
}

func (d *Dir) Write(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.session == "" {
		d.session = f.Session
	}
	name := FrameName(d.prefix, f.Session, f.Seq, f.Format.Extension())
	if err := os.WriteFile(filepath.Join(d.dir, name), f.Data, 0644); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Seq, err)
	}
	d.entries = append(d.entries, ManifestEntry{
		Seq:    f.Seq,
		File:   name,
		Time:   f.Time,
		Width:  f.Width,
		Height: f.Height,
		Bytes:  len(f.Data),
	})
	return nil
}

// ManifestPath returns where Close writes the manifest; empty before the
// first frame.
func (d *Dir) ManifestPath() string {
	if d.session == "" {
		return ""
	}
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.json", d.prefix, shortID(d.session)))
}

func (d *Dir) Close() error {
	path := d.ManifestPath()
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(Manifest{Session: d.session, Frames: d.entries}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

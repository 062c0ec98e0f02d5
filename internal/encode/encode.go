// Package encode turns interleaved RGB8 buffers into image files. It knows
// nothing about displays; callers convert captured BGRX8 frames first.
package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultJPEGQuality is used when Options.Quality is unset.
const DefaultJPEGQuality = 90

// ParseFormat accepts a format name or common extension alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png", "":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unsupported image format %q (valid: png, jpeg, bmp, tiff)", s)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("cannot infer image format from %q: no extension", path)
	}
	return ParseFormat(ext)
}

// Extension returns the canonical file extension, dot included.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	default:
		return ".png"
	}
}

// MIMEType returns the media type for f.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// Options control encoding. MaxWidth and MaxHeight, when set, shrink the
// image to fit while keeping its aspect ratio; images are never enlarged.
type Options struct {
	Format    Format
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// RGBImage is an image.Image over an interleaved RGB8 buffer.
type RGBImage struct {
	Pix    []byte
	Width  int
	Height int
}

// NewRGBImage validates that pix holds width*height RGB8 pixels.
func NewRGBImage(pix []byte, width, height int) (*RGBImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if need := width * height * 3; len(pix) < need {
		return nil, fmt.Errorf("rgb buffer has %d bytes, need %d", len(pix), need)
	}
	return &RGBImage{Pix: pix, Width: width, Height: height}, nil
}

func (p *RGBImage) ColorModel() color.Model { return color.RGBAModel }

func (p *RGBImage) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

func (p *RGBImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return color.RGBA{}
	}
	i := (y*p.Width + x) * 3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// toRGBA expands to *image.RGBA, which every encoder has a fast path for.
func (p *RGBImage) toRGBA() *image.RGBA {
	out := image.NewRGBA(p.Bounds())
	n := p.Width * p.Height
	for i := 0; i < n; i++ {
		s := p.Pix[i*3 : i*3+3 : i*3+3]
		d := out.Pix[i*4 : i*4+4 : i*4+4]
		d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
	}
	return out
}

// Encode writes rgb (width*height interleaved RGB8 pixels) to w.
func Encode(w io.Writer, rgb []byte, width, height int, opts Options) error {
	src, err := NewRGBImage(rgb, width, height)
	if err != nil {
		return err
	}
	var img image.Image = src.toRGBA()
	if fits := fitWithin(width, height, opts.MaxWidth, opts.MaxHeight); !fits {
		img = resize.Thumbnail(uint(bound(opts.MaxWidth, width)), uint(bound(opts.MaxHeight, height)), img, resize.Lanczos3)
	}

	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		q := opts.Quality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		if q > 100 {
			q = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// ToMemory encodes into a new byte slice.
func ToMemory(rgb []byte, width, height int, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rgb, width, height, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveAs encodes into path. An unset opts.Format is inferred from the
// extension. The file is written to a temporary sibling and renamed so a
// failed encode never leaves a truncated image behind.
func SaveAs(path string, rgb []byte, width, height int, opts Options) error {
	if opts.Format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return err
		}
		opts.Format = f
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".xgrab-*"+opts.Format.Extension())
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := Encode(tmp, rgb, width, height, opts); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode %s: %w", opts.Format, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fitWithin(width, height, maxWidth, maxHeight int) bool {
	return (maxWidth <= 0 || width <= maxWidth) && (maxHeight <= 0 || height <= maxHeight)
}

func bound(limit, size int) int {
	if limit <= 0 || limit > size {
		return size
	}
	return limit
}

// FittedSize returns the dimensions Encode produces for a width x height
// source under the given limits. Aspect ratio is preserved.
func FittedSize(width, height, maxWidth, maxHeight int) (int, int) {
	if fitWithin(width, height, maxWidth, maxHeight) {
		return width, height
	}
	mw, mh := bound(maxWidth, width), bound(maxHeight, height)
	w, h := width, height
	if w > mw {
		h = max(height*mw/width, 1)
		w = mw
	}
	if h > mh {
		w = max(w*mh/h, 1)
		h = mh
	}
	return w, h
}

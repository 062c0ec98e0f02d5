package display

import (
	"fmt"
	"image"
	"image/color"
	"unsafe"
)

// Ownership records whether a Frame may release its pixel buffer.
type Ownership int

const (
	// Owned frames hold the only reference to their buffer.
	Owned Ownership = iota
	// Borrowed frames wrap caller memory and never release it.
	Borrowed
	// SessionView frames alias a SharedSession's segment; the session
	// releases the memory.
	SessionView
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	case SessionView:
		return "session-view"
	default:
		return fmt.Sprintf("ownership(%d)", int(o))
	}
}

// Frame is a pixel buffer plus its geometry. The format tag is always
// FormatBGRX8.
type Frame struct {
	data         []byte
	width        int
	height       int
	depth        int
	bitsPerPixel int
	stride       int
	own          Ownership
	readOnly     bool
	released     bool
}

func newFrame(data []byte, width, height int, f PixelFormat, own Ownership, readOnly bool) *Frame {
	return &Frame{
		data:         data,
		width:        width,
		height:       height,
		depth:        f.Depth,
		bitsPerPixel: f.BitsPerPixel,
		stride:       f.Stride(width),
		own:          own,
		readOnly:     readOnly,
	}
}

// clientFormat is the layout of client-allocated frames: 24-bit depth packed
// into 32 bits with no line padding.
var clientFormat = PixelFormat{Depth: 24, BitsPerPixel: 32, ScanlinePad: 32}

// Empty allocates a zeroed, writable width x height frame.
func (c *Connection) Empty(width, height int) *Frame {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("display: negative frame size %dx%d", width, height))
	}
	return newFrame(make([]byte, width*height*4), width, height, clientFormat, Owned, false)
}

// FromRawParts wraps data without copying. The caller keeps ownership of data
// and must not reuse it while the frame is in use.
func (c *Connection) FromRawParts(data []byte, width, height int) (*Frame, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidArea, width, height)
	}
	if need := width * height * 4; len(data) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(data), need)
	}
	return newFrame(data, width, height, clientFormat, Borrowed, false), nil
}

func (f *Frame) Width() int           { return f.width }
func (f *Frame) Height() int          { return f.height }
func (f *Frame) Depth() int           { return f.depth }
func (f *Frame) BitsPerPixel() int    { return f.bitsPerPixel }
func (f *Frame) BytesPerLine() int    { return f.stride }
func (f *Frame) Format() PixelTag     { return FormatBGRX8 }
func (f *Frame) Ownership() Ownership { return f.own }
func (f *Frame) ReadOnly() bool       { return f.readOnly }

// AsPixels returns a view of the buffer as width*height BGRX8 pixels. The
// view aliases the frame; it must not be used after Close. It is nil for
// frames whose pixels are not 32 bits wide.
func (f *Frame) AsPixels() []BGRX8 {
	n := f.width * f.height
	if f.released || n == 0 || f.bitsPerPixel != 32 || len(f.data) < n*4 {
		return nil
	}
	return unsafe.Slice((*BGRX8)(unsafe.Pointer(&f.data[0])), n)
}

// AsBytes returns the raw pixel bytes, width*height*bitsPerPixel/8 long.
func (f *Frame) AsBytes() []byte {
	if f.released {
		return nil
	}
	n := f.width * f.height * f.bitsPerPixel / 8
	if n > len(f.data) {
		n = len(f.data)
	}
	return f.data[:n:n]
}

// AsBytesMutable is AsBytes for client-writable frames. Frames filled by the
// server report ErrFrameReadOnly.
func (f *Frame) AsBytesMutable() ([]byte, error) {
	if f.readOnly {
		return nil, ErrFrameReadOnly
	}
	return f.AsBytes(), nil
}

// RGB returns a fresh interleaved RGB8 copy of the frame.
func (f *Frame) RGB() []byte {
	if f.released || f.bitsPerPixel != 32 {
		return nil
	}
	out := make([]byte, f.width*f.height*3)
	row := f.width * 3
	for y := 0; y < f.height; y++ {
		src := f.data[y*f.stride : y*f.stride+f.width*4]
		ConvertBGRXToRGB(out[y*row:(y+1)*row], src)
	}
	return out
}

// Image returns an image.Image backed by the frame's buffer.
func (f *Frame) Image() *BGRXImage {
	return &BGRXImage{
		Pix:    f.AsBytes(),
		Stride: f.stride,
		Rect:   image.Rect(0, 0, f.width, f.height),
	}
}

// Close releases the buffer if the frame owns it. Borrowed and session
// frames leave the memory untouched. Calling Close twice is a no-op.
func (f *Frame) Close() {
	if f.released {
		return
	}
	switch f.own {
	case Owned, Borrowed:
		// Borrowed memory stays with the caller; only the reference goes.
		f.released = true
		f.data = nil
	case SessionView:
		// The owning session tears the segment down.
	}
}

// BGRXImage is an image.Image over packed BGRX8 pixels.
type BGRXImage struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func (p *BGRXImage) ColorModel() color.Model { return color.RGBAModel }

func (p *BGRXImage) Bounds() image.Rectangle { return p.Rect }

func (p *BGRXImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*4
	if i+3 >= len(p.Pix) {
		return color.RGBA{}
	}
	return color.RGBA{R: p.Pix[i+2], G: p.Pix[i+1], B: p.Pix[i], A: 0xff}
}

package display

import "image/color"

// PixelTag names a frame's packed pixel layout. Frames only ever carry
// FormatBGRX8; the tag is fixed at creation.
type PixelTag string

const FormatBGRX8 PixelTag = "BGRX8"

// BGRX8 is one packed truecolor pixel as the server stores it in a 32 bpp
// ZPixmap: blue, green, red and an unused pad byte.
type BGRX8 struct {
	B, G, R, X uint8
}

// RGB8 is one interleaved 24-bit pixel.
type RGB8 struct {
	R, G, B uint8
}

// RGB drops the pad byte and reorders the channels.
func (p BGRX8) RGB() RGB8 {
	return RGB8{R: p.R, G: p.G, B: p.B}
}

// RGBA implements color.Color; captured pixels are opaque.
func (p BGRX8) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: 0xff}.RGBA()
}

// ConvertBGRXToRGB writes interleaved RGB8 into dst from packed BGRX8 src and
// returns the number of pixels converted. Conversion stops at whichever
// buffer runs out first.
func ConvertBGRXToRGB(dst, src []byte) int {
	n := len(src) / 4
	if m := len(dst) / 3; m < n {
		n = m
	}
	for i := 0; i < n; i++ {
		s := src[i*4 : i*4+4 : i*4+4]
		d := dst[i*3 : i*3+3 : i*3+3]
		d[0] = s[2]
		d[1] = s[1]
		d[2] = s[0]
	}
	return n
}

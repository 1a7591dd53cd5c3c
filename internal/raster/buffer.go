package raster

import (
	"errors"
	"fmt"
	"image"
)

// BytesPerPixel is the size of one RGBA pixel in a Buffer.
const BytesPerPixel = 4

// ErrMalformedBuffer is returned by Validate when a buffer's pixel slice does
// not match its dimensions.
var ErrMalformedBuffer = errors.New("raster: malformed buffer")

// Size is a target size in logical (density-independent) pixels.
type Size struct {
	Width  int `json:"width" toml:"width" yaml:"width"`
	Height int `json:"height" toml:"height" yaml:"height"`
}

// DefaultSize is the target size used when a caller has no size of its own,
// e.g. marker icons.
var DefaultSize = Size{Width: 200, Height: 200}

// Valid reports whether both dimensions are strictly positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Buffer is a normalized RGBA raster.
//
// Pix holds Width*Height pixels, row-major, 4 bytes each (R, G, B, A), not
// premultiplied. A Buffer is not mutated after Normalize returns it.
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewBuffer allocates a zeroed (fully transparent) buffer.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// Len returns the number of bytes in the pixel slice.
func (b *Buffer) Len() int {
	return len(b.Pix)
}

// Validate checks that the buffer has positive dimensions and exactly
// 4*Width*Height bytes of pixel data.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrMalformedBuffer)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformedBuffer, b.Width, b.Height)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrMalformedBuffer, len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Image returns an *image.NRGBA sharing the buffer's pixels. Callers must not
// modify it.
func (b *Buffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// fromNRGBA copies an NRGBA image into a tightly packed Buffer.
func fromNRGBA(img *image.NRGBA) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := NewBuffer(w, h)
	rowLen := w * BytesPerPixel
	for y := 0; y < h; y++ {
		src := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(buf.Pix[y*rowLen:(y+1)*rowLen], img.Pix[src:src+rowLen])
	}
	return buf
}

package raster

import (
	"fmt"
	"math"
)

// PhysicalSize converts a logical size to device pixels.
//
// Each side is floor(logical * density), never less than one pixel. A
// density below 1 (or NaN) is treated as 1.
func PhysicalSize(size Size, density float64) (w, h int) {
	if !(density >= 1) || math.IsInf(density, 0) {
		density = 1
	}
	w = int(math.Floor(float64(size.Width) * density))
	h = int(math.Floor(float64(size.Height) * density))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Normalize rasterizes src to the target size at the given pixel density.
//
// The result is exactly PhysicalSize(size, density) pixels, filled edge to
// edge by the source. The only error is a non-positive target size; once a
// source has been decoded, normalization itself cannot fail.
func Normalize(src Source, size Size, density float64) (*Buffer, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("invalid target size %s: dimensions must be positive", size)
	}
	w, h := PhysicalSize(size, density)
	return fromNRGBA(src.Rasterize(w, h)), nil
}

// Package raster normalizes decoded images into the canonical pixel buffers
// registered with the map engine.
//
// A [Source] is a decoded image that can be drawn at any size: [Bitmap]
// wraps a decoded raster and resamples it, [Vector] wraps a parsed SVG icon
// and renders it directly at the requested size. [Normalize] turns a Source
// into a [Buffer] whose physical size is the logical target size multiplied
// by the display's pixel density.
//
// # Buffer Layout
//
// Buffer pixels are 8-bit RGBA, row-major, 4 bytes per pixel, with no row
// padding. Color channels are not premultiplied by alpha, matching what a
// 2D canvas read-back returns.
//
// # Sizing
//
// Physical dimensions are floor(logical * density), clamped to at least one
// pixel. The source always fills the whole target: aspect ratio is not
// preserved and nothing is letterboxed.
//
// # Determinism
//
// Normalizing the same source to the same size and density always yields
// byte-identical buffers.
package raster

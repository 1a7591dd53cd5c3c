package raster

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Source is a decoded image that can be drawn at an arbitrary size.
type Source interface {
	// Bounds returns the intrinsic size of the decoded image.
	Bounds() image.Rectangle

	// Rasterize draws the whole image scaled to exactly w x h pixels.
	Rasterize(w, h int) *image.NRGBA
}

// bitmapSource resamples a decoded raster image.
type bitmapSource struct {
	img image.Image
}

// Bitmap wraps a decoded raster image as a Source.
//
// Resampling uses a linear (bilinear) filter, the same smoothing a browser
// canvas applies with imageSmoothingEnabled.
func Bitmap(img image.Image) Source {
	return &bitmapSource{img: img}
}

func (s *bitmapSource) Bounds() image.Rectangle {
	return s.img.Bounds()
}

func (s *bitmapSource) Rasterize(w, h int) *image.NRGBA {
	return imaging.Resize(s.img, w, h, imaging.Linear)
}

// vectorSource renders a parsed SVG icon.
type vectorSource struct {
	icon *oksvg.SvgIcon
}

// Vector wraps a parsed SVG icon as a Source.
//
// The icon is rendered directly at the requested size rather than rasterized
// once and resampled, so edges stay sharp on high density displays.
// Rasterize changes the icon's target transform; a Vector source must not be
// rasterized from several goroutines at once.
func Vector(icon *oksvg.SvgIcon) Source {
	return &vectorSource{icon: icon}
}

func (s *vectorSource) Bounds() image.Rectangle {
	w := int(math.Ceil(s.icon.ViewBox.W))
	h := int(math.Ceil(s.icon.ViewBox.H))
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return image.Rect(0, 0, w, h)
}

func (s *vectorSource) Rasterize(w, h int) *image.NRGBA {
	s.icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	s.icon.Draw(dasher, 1.0)

	// The scanner composites premultiplied colors; convert back to straight
	// alpha for the buffer.
	return imaging.Clone(dst)
}

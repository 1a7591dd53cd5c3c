package acquire

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/srwiley/oksvg"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/map-image-tools/internal/raster"
)

const svgMIMEType = "image/svg+xml"

// svgSniffLen is how far into a payload the "<svg" root element is looked
// for when the content type does not say SVG.
const svgSniffLen = 1024

var (
	// ErrUnsupportedFormat is returned when the payload is not an image
	// container this package can decode.
	ErrUnsupportedFormat = errors.New("acquire: unsupported image format")

	// ErrEmptyImage is returned when a payload decodes to an image with no
	// pixels.
	ErrEmptyImage = errors.New("acquire: image has zero dimensions")
)

// Decode turns an encoded payload into a raster.Source.
//
// SVG documents become vector sources rendered at the final size. Everything
// else is sniffed by magic bytes and decoded as a raster (PNG, JPEG, GIF,
// WebP, BMP, TIFF), honoring EXIF orientation.
func Decode(p *Payload) (raster.Source, error) {
	if p == nil || len(p.Data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}

	var src raster.Source
	if IsSVG(p) {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(p.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode svg: %w", err)
		}
		src = raster.Vector(icon)
	} else {
		if !filetype.IsImage(p.Data) {
			kind, _ := filetype.Match(p.Data)
			return nil, fmt.Errorf("%w: detected %q, content type %q", ErrUnsupportedFormat, kind.MIME.Value, p.ContentType)
		}
		img, err := imaging.Decode(bytes.NewReader(p.Data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		src = raster.Bitmap(img)
	}

	if src.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return src, nil
}

// IsSVG reports whether a payload is an SVG document, by content type or by
// an <svg> root element. Prologs, comments and doctypes ahead of the root are
// skipped.
func IsSVG(p *Payload) bool {
	if p.ContentType == svgMIMEType {
		return true
	}
	if filetype.IsImage(p.Data) {
		return false
	}
	if root, ok := xmlRoot(p.Data); ok {
		return strings.EqualFold(root, "svg")
	}
	head := p.Data
	if len(head) > svgSniffLen {
		head = head[:svgSniffLen]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// xmlRoot returns the local name of the first element in data. ok is false
// when data does not parse as XML up to that element.
func xmlRoot(data []byte) (name string, ok bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return "", false
		}
		if se, isStart := tok.(xml.StartElement); isStart {
			return se.Name.Local, true
		}
	}
}

// Acquire fetches and decodes the image behind rawURL.
func Acquire(ctx context.Context, f Fetcher, rawURL string) (raster.Source, error) {
	p, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Decode(p)
}

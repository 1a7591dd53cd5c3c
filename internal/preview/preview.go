// Package preview turns registered rasters back into viewable PNGs.
//
// The map engine draws SDF images as a single-channel mask tinted at draw
// time. Render reproduces that so a client can look at what a marker will
// actually show before it reaches a map: SDF entries are painted with the
// requested tint using the entry's alpha as coverage, full-color entries are
// returned unchanged.
package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/map-image-tools/internal/registry"
)

// DefaultTint is the color SDF entries are painted with when no tint is
// given.
const DefaultTint = "#000000"

// ErrInvalidColor is returned for tint strings that are not hex colors.
var ErrInvalidColor = errors.New("preview: invalid color")

// ExportResult contains an encoded preview.
type ExportResult struct {
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SDF         bool   `json:"sdf"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ParseHexColor parses "#RGB", "#RRGGBB" or "#RRGGBBAA". The leading '#' is
// optional.
func ParseHexColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty color string", ErrInvalidColor)
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	alpha := uint8(255)
	if len(hex) == 9 {
		var a uint8
		if _, err := fmt.Sscanf(hex[7:], "%02x", &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
		}
		alpha = a
		hex = hex[:7]
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// Render returns the image entry will display as. tint only applies to SDF
// entries.
func Render(entry registry.Entry, tint color.NRGBA) (*image.NRGBA, error) {
	if entry.Buffer == nil {
		return nil, fmt.Errorf("image %q has no buffer", entry.Name)
	}
	if err := entry.Buffer.Validate(); err != nil {
		return nil, fmt.Errorf("image %q: %w", entry.Name, err)
	}

	img := imaging.Clone(entry.Buffer.Image())
	if !entry.SDF {
		return img, nil
	}

	for i := 0; i < len(img.Pix); i += 4 {
		coverage := uint16(img.Pix[i+3])
		img.Pix[i+0] = tint.R
		img.Pix[i+1] = tint.G
		img.Pix[i+2] = tint.B
		img.Pix[i+3] = uint8(coverage * uint16(tint.A) / 255)
	}
	return img, nil
}

// Export renders entry and encodes it as a base64 PNG.
func Export(entry registry.Entry, tint color.NRGBA) (*ExportResult, error) {
	img, err := Render(entry, tint)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &ExportResult{
		Name:        entry.Name,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		SDF:         entry.SDF,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SaveFile renders entry and writes it to path as a PNG.
func SaveFile(path string, entry registry.Entry, tint color.NRGBA) error {
	img, err := Render(entry, tint)
	if err != nil {
		return err
	}
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}

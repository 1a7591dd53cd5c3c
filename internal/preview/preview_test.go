package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/map-image-tools/internal/raster"
	"github.com/ironsheep/map-image-tools/internal/registry"
)

// maskEntry creates a 4x4 entry whose left half is opaque white and right
// half half-transparent white.
func maskEntry(sdf bool) registry.Entry {
	buf := raster.NewBuffer(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := (y*4 + x) * raster.BytesPerPixel
			buf.Pix[i+0], buf.Pix[i+1], buf.Pix[i+2] = 255, 255, 255
			if x < 2 {
				buf.Pix[i+3] = 255
			} else {
				buf.Pix[i+3] = 128
			}
		}
	}
	return registry.Entry{Name: "1-pin", Buffer: buf, ImageOptions: registry.ImageOptions{SDF: sdf}}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}},
		{"00ff00", color.NRGBA{0, 255, 0, 255}},
		{"#00F", color.NRGBA{0, 0, 255, 255}},
		{"#FF000080", color.NRGBA{255, 0, 0, 128}},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if err != nil {
			t.Errorf("ParseHexColor(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseHexColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#12", "#GGGGGG", "red", "#FF0000ZZ"} {
		if _, err := ParseHexColor(in); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("ParseHexColor(%q): got %v, want ErrInvalidColor", in, err)
		}
	}
}

func TestRender_SDFUsesTint(t *testing.T) {
	img, err := Render(maskEntry(true), color.NRGBA{200, 10, 20, 255})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{200, 10, 20, 255}) {
		t.Errorf("opaque pixel: got %v", got)
	}
	if got := img.NRGBAAt(3, 3); got != (color.NRGBA{200, 10, 20, 128}) {
		t.Errorf("partial pixel: got %v", got)
	}
}

func TestRender_FullColorUnchanged(t *testing.T) {
	entry := maskEntry(false)
	img, err := Render(entry, color.NRGBA{200, 10, 20, 255})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(img.Pix, entry.Buffer.Pix) {
		t.Error("full-color entry should render unchanged")
	}
}

func TestRender_DoesNotModifyEntry(t *testing.T) {
	entry := maskEntry(true)
	before := entry.Buffer.Clone()
	if _, err := Render(entry, color.NRGBA{1, 2, 3, 255}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(before.Pix, entry.Buffer.Pix) {
		t.Error("Render modified the registered buffer")
	}
}

func TestRender_MalformedBuffer(t *testing.T) {
	entry := registry.Entry{Name: "bad", Buffer: &raster.Buffer{Width: 2, Height: 2, Pix: make([]byte, 3)}}
	if _, err := Render(entry, color.NRGBA{}); err == nil {
		t.Error("expected error for malformed buffer")
	}
	if _, err := Render(registry.Entry{Name: "nil"}, color.NRGBA{}); err == nil {
		t.Error("expected error for missing buffer")
	}
}

func TestExport(t *testing.T) {
	result, err := Export(maskEntry(true), color.NRGBA{0, 0, 0, 255})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.Width != 4 || result.Height != 4 {
		t.Errorf("dimensions: got %dx%d, want 4x4", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if !result.SDF || result.Name != "1-pin" {
		t.Errorf("metadata: got name=%q sdf=%v", result.Name, result.SDF)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("decoded width: got %d, want 4", img.Bounds().Dx())
	}
}

func TestSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pin.png")
	if err := SaveFile(path, maskEntry(false), color.NRGBA{}); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("saved file is not a png: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 4 {
		t.Errorf("saved dimensions: got %dx%d, want 4x4", cfg.Width, cfg.Height)
	}
}

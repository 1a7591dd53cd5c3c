package acquire

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

const iconSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24">
<circle cx="12" cy="12" r="10" fill="#000000"/>
</svg>`

// commentedSVG pushes the root element well past the first kilobyte.
var commentedSVG = `<?xml version="1.0" encoding="UTF-8"?>
<!-- ` + strings.Repeat("exported by a drawing tool ", 80) + ` -->
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">
<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16" viewBox="0 0 16 16">
<rect width="16" height="16" fill="#000000"/>
</svg>`

const emptySVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 0 0"></svg>`

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{10, 20, 30, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	pngData := encodePNG(t, 12, 8)
	mux := http.NewServeMux()
	mux.HandleFunc("/marker.png", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Cookie"]; ok {
			t.Errorf("request carried cookies")
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	mux.HandleFunc("/icon.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
		w.Write([]byte(iconSVG))
	})
	mux.HandleFunc("/untyped-icon", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(iconSVG))
	})
	mux.HandleFunc("/commented-icon", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(commentedSVG))
	})
	mux.HandleFunc("/not-an-image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello"))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAcquire_HTTP(t *testing.T) {
	srv := newImageServer(t)
	f := NewHTTPFetcher(0, 0)

	src, err := Acquire(context.Background(), f, srv.URL+"/marker.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 8), src.Bounds())

	src, err = Acquire(context.Background(), f, srv.URL+"/icon.svg")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 24, 24), src.Bounds())
}

func TestAcquire_SniffsSVGWithoutContentType(t *testing.T) {
	srv := newImageServer(t)
	p, err := NewHTTPFetcher(0, 0).Fetch(context.Background(), srv.URL+"/untyped-icon")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", p.ContentType)
	assert.True(t, IsSVG(p))

	_, err = Decode(p)
	assert.NoError(t, err)
}

func TestIsSVG_RootElement(t *testing.T) {
	srv := newImageServer(t)
	f := NewHTTPFetcher(0, 0)

	p, err := f.Fetch(context.Background(), srv.URL+"/commented-icon")
	require.NoError(t, err)
	require.Greater(t, strings.Index(commentedSVG, "<svg"), svgSniffLen)
	assert.True(t, IsSVG(p))

	src, err := Decode(p)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), src.Bounds())

	src, err = Acquire(context.Background(), f, "data:,"+url.PathEscape(commentedSVG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), src.Bounds())

	tests := []struct {
		name string
		data string
		want bool
	}{
		{"bare root", `<svg xmlns="http://www.w3.org/2000/svg"/>`, true},
		{"upper case root", `<SVG></SVG>`, true},
		{"html", `<?xml version="1.0"?><html><body><svg></svg></body></html>`, false},
		{"svg in a comment", `<!-- <svg> --><feed></feed>`, false},
		{"plain text", "hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSVG(&Payload{Data: []byte(tt.data)}))
		})
	}
}

func TestAcquire_Failures(t *testing.T) {
	srv := newImageServer(t)
	f := NewHTTPFetcher(0, 1024)

	tests := []struct {
		name string
		url  string
		is   error
	}{
		{"404", srv.URL + "/missing.png", nil},
		{"not an image", srv.URL + "/not-an-image", ErrUnsupportedFormat},
		{"too large", srv.URL + "/big", ErrTooLarge},
		{"unknown scheme", "ftp://example.com/a.png", nil},
		{"empty url", "", nil},
		{"missing file", "/nonexistent/path/marker.png", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Acquire(context.Background(), f, tt.url)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestFetch_DataURL(t *testing.T) {
	pngData := encodePNG(t, 3, 3)
	f := NewHTTPFetcher(0, 0)

	p, err := f.Fetch(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngData))
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.ContentType)
	assert.Equal(t, pngData, p.Data)

	p, err = f.Fetch(context.Background(), "data:image/svg+xml,"+url.PathEscape(iconSVG))
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", p.ContentType)
	assert.Equal(t, iconSVG, string(p.Data))

	_, err = f.Fetch(context.Background(), "data:image/png;base64")
	assert.Error(t, err)
	_, err = f.Fetch(context.Background(), "data:image/png;base64,***")
	assert.Error(t, err)
}

func TestFetch_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pattern.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, 4, 4), 0o644))

	f := NewHTTPFetcher(0, 0)
	for _, u := range []string{path, "file://" + path} {
		src, err := Acquire(context.Background(), f, u)
		require.NoError(t, err, u)
		assert.Equal(t, image.Rect(0, 0, 4, 4), src.Bounds())
	}
}

func TestDecode_BMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 7))))

	src, err := Decode(&Payload{ContentType: "image/bmp", Data: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, 5, src.Bounds().Dx())
	assert.Equal(t, 7, src.Bounds().Dy())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode(&Payload{Data: []byte{}})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode(&Payload{ContentType: "image/svg+xml", Data: []byte(emptySVG)})
	assert.ErrorIs(t, err, ErrEmptyImage)

	// PNG magic with a truncated body.
	_, err = Decode(&Payload{Data: encodePNG(t, 2, 2)[:20]})
	assert.Error(t, err)
}

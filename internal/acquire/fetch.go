package acquire

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default transport limits for HTTPFetcher.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 4 << 20
)

// ErrTooLarge is returned when a fetched body exceeds the fetcher's limit.
var ErrTooLarge = errors.New("acquire: image body exceeds size limit")

// Payload is the raw, still encoded content behind an image URL.
type Payload struct {
	URL         string
	ContentType string
	Data        []byte
}

// Fetcher retrieves the encoded bytes behind an image URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Payload, error)
}

// HTTPFetcher fetches images over HTTP(S), from data: URLs, and from the
// local filesystem (file:// URLs and plain paths).
//
// Requests are anonymous: no cookie jar is attached and no credentials are
// sent, so any server that permits cross-origin image reads serves them.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFetcher creates a fetcher with its own client. Zero arguments fall
// back to DefaultTimeout and DefaultMaxBytes.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Payload, error) {
	if rawURL == "" {
		return nil, errors.New("empty image url")
	}
	if strings.HasPrefix(rawURL, "data:") {
		return parseDataURL(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u)
	case "file":
		return f.readFile(rawURL, u.Path)
	case "":
		return f.readFile(rawURL, rawURL)
	default:
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL) (*Payload, error) {
	anon := *u
	anon.User = nil

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, anon.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch image: unexpected status %s", resp.Status)
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Payload{
		URL:         u.String(),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Data:        data,
	}, nil
}

func (f *HTTPFetcher) readFile(rawURL, path string) (*Payload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	data, err := f.readLimited(file)
	if err != nil {
		return nil, err
	}
	return &Payload{
		URL:         rawURL,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:        data,
	}, nil
}

func (f *HTTPFetcher) readLimited(r io.Reader) ([]byte, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}

// parseDataURL decodes an RFC 2397 data URL.
func parseDataURL(rawURL string) (*Payload, error) {
	meta, body, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data url: missing ','")
	}

	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("malformed data url: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(body)
		if err != nil {
			return nil, fmt.Errorf("malformed data url: %w", err)
		}
		data = []byte(unescaped)
	}

	return &Payload{
		URL:         rawURL,
		ContentType: mediaType(meta),
		Data:        data,
	}, nil
}

// mediaType strips parameters from a Content-Type value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

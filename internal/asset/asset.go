// Package asset models the asset upload API that stores user icons and
// images. The pipeline itself only ever consumes an asset's URL; this
// package validates uploads before they are sent and turns stored assets
// into markers.
package asset

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/ironsheep/map-image-tools/internal/acquire"
	"github.com/ironsheep/map-image-tools/internal/mapstyle"
)

// MaxFileSize is the largest upload the API accepts.
const MaxFileSize = 4 << 20

// Kind is the asset category the API stores.
type Kind string

const (
	KindImage Kind = "image"
	KindIcon  Kind = "icon"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindIcon
}

var allowedMIMETypes = map[Kind][]string{
	KindImage: {
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/bmp",
		"image/tiff",
		"image/svg+xml",
		"image/x-icon",
	},
	KindIcon: {
		"image/svg+xml",
		"image/jpeg",
		"image/webp",
		"image/x-icon",
		"image/bmp",
		"image/png",
	},
}

// AllowedMIMETypes returns the MIME types accepted for kind.
func AllowedMIMETypes(k Kind) []string {
	return slices.Clone(allowedMIMETypes[k])
}

// ErrInvalidUpload is returned by ValidateUpload.
var ErrInvalidUpload = errors.New("asset: invalid upload")

// Asset is a stored asset record as returned by the API.
type Asset struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	DisplayName string    `json:"display_name,omitempty"`
	Category    string    `json:"category,omitempty"`
	UserID      uuid.UUID `json:"user_id"`
	URL         string    `json:"url"`
	MIMEType    string    `json:"mime_type"`
	FileSize    int64     `json:"file_size"`
	Kind        Kind      `json:"asset_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload is a file about to be sent to the API.
type Upload struct {
	FileName    string
	Data        []byte
	Kind        Kind
	DisplayName string
	Category    string
}

// DetectMIMEType identifies an upload's type from its content, falling back
// to the file extension when the content is not recognized.
func DetectMIMEType(fileName string, data []byte) string {
	if acquire.IsSVG(&acquire.Payload{Data: data}) {
		return "image/svg+xml"
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		if kind.MIME.Value == "image/vnd.microsoft.icon" {
			return "image/x-icon"
		}
		return kind.MIME.Value
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		return base
	}
	return mt
}

// ValidateUpload applies the API's acceptance rules locally and returns the
// detected MIME type.
func ValidateUpload(u Upload) (string, error) {
	if u.FileName == "" {
		return "", fmt.Errorf("%w: no file selected", ErrInvalidUpload)
	}
	if !u.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown asset type %q", ErrInvalidUpload, u.Kind)
	}
	if u.Kind == KindIcon && u.DisplayName == "" {
		return "", fmt.Errorf("%w: icons require a display name", ErrInvalidUpload)
	}
	if len(u.Data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	if len(u.Data) > MaxFileSize {
		return "", fmt.Errorf("%w: file too large, maximum allowed size is %d MB", ErrInvalidUpload, MaxFileSize>>20)
	}

	mt := DetectMIMEType(u.FileName, u.Data)
	if !slices.Contains(allowedMIMETypes[u.Kind], mt) {
		return "", fmt.Errorf("%w: invalid file type for asset type %q: allowed %s, received %q",
			ErrInvalidUpload, u.Kind, strings.Join(allowedMIMETypes[u.Kind], ", "), mt)
	}
	return mt, nil
}

// MarkerFromAsset turns an uploaded asset into a custom (full-color)
// marker. The marker is named by the asset id so two uploads with the same
// display name never share a resource name.
func MarkerFromAsset(a Asset) mapstyle.Marker {
	return mapstyle.Marker{
		Name:   a.ID.String(),
		URL:    a.URL,
		Source: mapstyle.ProvenanceCustom,
	}
}

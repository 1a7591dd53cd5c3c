package pipeline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/map-image-tools/internal/raster"
)

// ErrInvalidReference is returned for references that cannot be loaded.
var ErrInvalidReference = errors.New("pipeline: invalid image reference")

// Reference describes one image to load and where to register it.
// A Reference is a value; each Load call takes its own copy.
type Reference struct {
	// URL locates the encoded image (http, https, data: or a local path).
	URL string `json:"url"`

	// Name is the resource name in the engine's image table. It must be
	// unique among all images the pipeline manages.
	Name string `json:"name"`

	// SDF registers the raster as a tintable signed distance field.
	SDF bool `json:"sdf"`

	// Size is the logical target size; the raster is Size * density
	// physical pixels.
	Size raster.Size `json:"size"`

	// Revision orders competing loads for the same name when the loader
	// runs with a revision guard. Zero lets the loader assign one.
	Revision uint64 `json:"-"`
}

// Validate checks that the reference can be loaded.
func (r Reference) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidReference)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: %q has no url", ErrInvalidReference, r.Name)
	}
	if !r.Size.Valid() {
		return fmt.Errorf("%w: %q has target size %s", ErrInvalidReference, r.Name, r.Size)
	}
	return nil
}

// LoadError reports a load that did not reach the table.
type LoadError struct {
	Ref Reference

	// Fatal is set when the table rejected a normalized raster. That is a
	// defect in normalization or naming, unlike fetch and decode failures.
	Fatal bool

	Err error
}

func (e *LoadError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("failed to register image %q: %v", e.Ref.Name, e.Err)
	}
	return fmt.Sprintf("failed to load image %q from %s: %v", e.Ref.Name, e.Ref.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

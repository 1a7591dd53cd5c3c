// Package registry keeps the map engine's image table in sync with
// normalized rasters.
//
// The engine exposes only membership, removal and insertion; there is no
// replace. [Upsert] composes those three primitives into the one write path
// the pipeline uses, so the remove-before-add ordering lives in a single
// place.
package registry

import (
	"errors"
	"fmt"

	"github.com/ironsheep/map-image-tools/internal/raster"
)

// ErrRejected wraps any error returned by Table.AddImage during an upsert.
// A rejection means the buffer or name was malformed, which is a bug in
// normalization or naming, not a runtime condition to retry.
var ErrRejected = errors.New("registry: image rejected by table")

// ImageOptions carries per-entry metadata stored alongside the raster.
type ImageOptions struct {
	// SDF marks the raster as a signed distance field: a single-channel
	// mask the engine tints at render time instead of a full-color bitmap.
	SDF bool `json:"sdf"`
}

// Table is the engine-owned image table, restricted to the three
// operations the pipeline is allowed to use.
type Table interface {
	HasImage(name string) bool
	RemoveImage(name string)
	AddImage(name string, buf *raster.Buffer, opts ImageOptions) error
}

// Upsert makes the table entry for name hold buf with the given SDF flag.
//
// Any existing entry is removed first and the new one added after; the
// order matters because AddImage refuses names that are already present.
// Callers must not run two upserts for the same name concurrently.
func Upsert(t Table, name string, buf *raster.Buffer, sdf bool) error {
	if t.HasImage(name) {
		t.RemoveImage(name)
	}
	if err := t.AddImage(name, buf, ImageOptions{SDF: sdf}); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrRejected, name, err)
	}
	return nil
}

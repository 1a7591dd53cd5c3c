// Package mapstyle derives image references from map layer styles: the
// marker icons of point layers and the fill patterns of polygon layers.
//
// The drivers are pure enumerations followed by one Load per image. Running
// them again with the same style derives the same names and, once the loads
// finish, the same table content; re-running is the only update mechanism.
package mapstyle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ironsheep/map-image-tools/internal/pipeline"
	"github.com/ironsheep/map-image-tools/internal/raster"
)

// Provenance says where a marker image came from.
type Provenance string

const (
	// ProvenanceLibrary marks icons from the curated vector icon library.
	// They are single-color and registered as SDF so they can be tinted.
	ProvenanceLibrary Provenance = "library"

	// ProvenanceCustom marks user uploads, registered as full-color bitmaps.
	ProvenanceCustom Provenance = "custom"
)

// Loader is the part of pipeline.Loader the drivers need.
type Loader interface {
	Load(ref pipeline.Reference)
}

// FeatureID identifies the layer that owns a set of markers.
type FeatureID uint64

// Marker is a marker icon as stored in a point layer's style.
type Marker struct {
	Name   string     `json:"name"`
	URL    string     `json:"url"`
	Source Provenance `json:"source,omitempty"`
}

// SDF reports whether the marker is registered as a tintable SDF image:
// every marker except custom uploads.
func (m Marker) SDF() bool {
	return m.Source != ProvenanceCustom
}

// MarkerMapping assigns an alternate marker to one category value. In JSON
// it is the pair [value, marker].
type MarkerMapping struct {
	Value  string
	Marker *Marker
}

// UnmarshalJSON decodes a [value, marker] pair. The value may be any JSON
// scalar; it is kept in its textual form.
func (m *MarkerMapping) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("marker mapping: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("marker mapping: want [value, marker], got %d elements", len(pair))
	}

	var value string
	if err := json.Unmarshal(pair[0], &value); err != nil {
		value = string(bytes.TrimSpace(pair[0]))
	}

	var marker *Marker
	if err := json.Unmarshal(pair[1], &marker); err != nil {
		return fmt.Errorf("marker mapping %s: %w", value, err)
	}

	m.Value = value
	m.Marker = marker
	return nil
}

// MarshalJSON encodes the mapping as a [value, marker] pair.
func (m MarkerMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{m.Value, m.Marker})
}

// PointStyle is the marker part of a point layer's style properties.
type PointStyle struct {
	// CustomMarker switches the layer from plain circles to marker icons.
	CustomMarker bool `json:"custom_marker"`

	// Marker is the default icon.
	Marker *Marker `json:"marker,omitempty"`

	// MarkerMapping lists alternate icons per category value.
	MarkerMapping []MarkerMapping `json:"marker_mapping,omitempty"`
}

// MarkerName derives the resource name of a marker owned by a layer.
//
// The layer id comes first and ends at the first '-', so two layers using
// the same icon never share a name, and no marker name can start with
// PatternPrefix.
func MarkerName(id FeatureID, markerName string) string {
	return MarkerOwner(id) + "-" + markerName
}

// MarkerOwner is the Tracker owner key for a layer's markers.
func MarkerOwner(id FeatureID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// MarkerReferences enumerates the images a point layer needs: the default
// marker plus every mapped marker, one reference per distinct derived name.
// Markers without a name or URL are skipped. Nothing is returned unless the
// style uses custom markers.
func MarkerReferences(id FeatureID, style PointStyle) []pipeline.Reference {
	if !style.CustomMarker {
		return nil
	}

	markers := make([]*Marker, 0, 1+len(style.MarkerMapping))
	markers = append(markers, style.Marker)
	for _, mm := range style.MarkerMapping {
		markers = append(markers, mm.Marker)
	}

	seen := make(map[string]bool, len(markers))
	refs := make([]pipeline.Reference, 0, len(markers))
	for _, m := range markers {
		if m == nil || m.Name == "" || m.URL == "" {
			continue
		}
		name := MarkerName(id, m.Name)
		if seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, pipeline.Reference{
			URL:  m.URL,
			Name: name,
			SDF:  m.SDF(),
			Size: raster.DefaultSize,
		})
	}
	return refs
}

// SyncMarkers starts loading every marker of a point layer and returns the
// resource names it derived.
func SyncMarkers(l Loader, id FeatureID, style PointStyle) []string {
	refs := MarkerReferences(id, style)
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		l.Load(ref)
		names = append(names, ref.Name)
	}
	return names
}

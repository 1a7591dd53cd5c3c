package mapstyle

import (
	"github.com/ironsheep/map-image-tools/internal/pipeline"
	"github.com/ironsheep/map-image-tools/internal/raster"
)

// PatternPrefix is prepended to every pattern resource name so patterns do
// not collide with images registered by basemap styles. It starts with a
// letter; marker names start with a digit.
const PatternPrefix = "mit-pattern-"

// Pattern is a fill pattern tile from the pattern catalog.
type Pattern struct {
	Name   string `json:"name" yaml:"name"`
	URL    string `json:"url" yaml:"url"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// PatternName derives the resource name of a pattern.
func PatternName(name string) string {
	return PatternPrefix + name
}

// PatternReferences enumerates one reference per pattern, sized by the
// pattern's own dimensions. Patterns are never SDF.
func PatternReferences(patterns []Pattern) []pipeline.Reference {
	refs := make([]pipeline.Reference, 0, len(patterns))
	for _, p := range patterns {
		refs = append(refs, pipeline.Reference{
			URL:  p.URL,
			Name: PatternName(p.Name),
			SDF:  false,
			Size: raster.Size{Width: p.Width, Height: p.Height},
		})
	}
	return refs
}

// SyncPatterns starts loading every pattern and returns the derived names.
func SyncPatterns(l Loader, patterns []Pattern) []string {
	refs := PatternReferences(patterns)
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		l.Load(ref)
		names = append(names, ref.Name)
	}
	return names
}

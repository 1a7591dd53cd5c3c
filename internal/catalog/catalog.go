// Package catalog loads the pattern catalog: the static list of fill
// pattern tiles registered with the map engine.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/map-image-tools/internal/mapstyle"
)

//go:embed default.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned for catalogs with missing or conflicting
// entries.
var ErrInvalidCatalog = errors.New("catalog: invalid pattern catalog")

// Catalog is a parsed pattern catalog file.
type Catalog struct {
	Patterns []mapstyle.Pattern `yaml:"patterns"`
}

// Parse decodes and validates a YAML catalog. Unknown keys are errors.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse pattern catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the catalog built into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Validate checks that every pattern has a unique name, a URL and a
// positive size.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Patterns))
	for i, p := range c.Patterns {
		switch {
		case p.Name == "":
			return fmt.Errorf("%w: pattern %d has no name", ErrInvalidCatalog, i)
		case seen[p.Name]:
			return fmt.Errorf("%w: duplicate pattern %q", ErrInvalidCatalog, p.Name)
		case p.URL == "":
			return fmt.Errorf("%w: pattern %q has no url", ErrInvalidCatalog, p.Name)
		case p.Width <= 0 || p.Height <= 0:
			return fmt.Errorf("%w: pattern %q has size %dx%d", ErrInvalidCatalog, p.Name, p.Width, p.Height)
		}
		seen[p.Name] = true
	}
	return nil
}

// Names returns the pattern names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Patterns))
	for i, p := range c.Patterns {
		names[i] = p.Name
	}
	return names
}

package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrEmptyCatalog is returned when a catalog document holds neither
// categories nor locations.
var ErrEmptyCatalog = errors.New("catalog has no categories and no locations")

// Load decodes a YAML catalog document. Unknown keys are rejected so typos in
// hand-edited files surface at start-up instead of as missing pages.
func Load(r io.Reader) (Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, ErrEmptyCatalog
		}
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.Taxonomy.Categories) == 0 && len(c.Locations) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}
	return c, nil
}

// LoadFile reads a catalog from path. An empty path yields Default().
func LoadFile(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path) // #nosec G304 -- operator-supplied config path.
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	c, err := Load(f)
	if err != nil {
		return Catalog{}, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

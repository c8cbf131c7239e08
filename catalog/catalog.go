// Package catalog holds the ordered lists of module names to probe.
//
// Lists are data, not code: the default Python 2.5 catalog is embedded, and
// any other runtime version can be targeted by pointing probe.catalog_file
// at a YAML file with the same shape.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/isdmx/noimport/config"
)

//go:embed python25.yaml
var defaultCatalog []byte

// Catalog is a named set of ordered module name lists
type Catalog struct {
	Name        string   `yaml:"name"`
	Modules     []string `yaml:"modules"`
	Obvious     []string `yaml:"obvious"`
	CauseHang   []string `yaml:"cause_hang"`
	OtherErrors []string `yaml:"other_errors"`
}

// Default returns the embedded Python 2.5 catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded default when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// NewFromConfig loads the catalog named by probe.catalog_file
func NewFromConfig(cfg *config.Config) (*Catalog, error) {
	return Load(cfg.Probe.CatalogFile)
}

// Parse decodes a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Modules) == 0 && len(c.Obvious) == 0 {
		return nil, fmt.Errorf("catalog %q lists no modules", c.Name)
	}
	return &c, nil
}

// Names returns the modules to probe, in catalog order. Names listed under
// cause_hang or other_errors are always dropped.
func (c *Catalog) Names(includeObvious bool) []string {
	excluded := make(map[string]struct{}, len(c.CauseHang)+len(c.OtherErrors))
	for _, name := range c.CauseHang {
		excluded[name] = struct{}{}
	}
	for _, name := range c.OtherErrors {
		excluded[name] = struct{}{}
	}

	candidates := c.Modules
	if includeObvious {
		candidates = append(append([]string(nil), c.Modules...), c.Obvious...)
	}

	names := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if _, skip := excluded[name]; skip {
			continue
		}
		names = append(names, name)
	}
	return names
}

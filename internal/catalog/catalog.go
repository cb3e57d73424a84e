// Package catalog holds the static symptom and prognosis tables shipped with the service.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the fallback feature list and the prognosis label table.
type Catalog struct {
	Features []string       `yaml:"features"`
	Labels   map[int]string `yaml:"labels"`
}

// Load decodes the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse decodes a catalog document and checks that both tables are populated.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.Features) == 0 {
		return nil, errors.New("catalog has no features")
	}
	if len(c.Labels) == 0 {
		return nil, errors.New("catalog has no labels")
	}
	for code, name := range c.Labels {
		if name == "" {
			return nil, fmt.Errorf("catalog label %d is empty", code)
		}
	}
	return &c, nil
}

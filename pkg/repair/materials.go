package repair

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"furnacewear/internal/models"
)

// ErrUnknownMaterial is returned for a material missing from the catalogue.
var ErrUnknownMaterial = errors.New("unknown repair material")

// DefaultMaterials are the gunning and castable mixes offered out of the box.
// Densities are in g/cm³.
func DefaultMaterials() []models.Material {
	return []models.Material{
		{Name: "magnesia-gunning", Density: 2.9},
		{Name: "alumina-castable", Density: 2.6},
		{Name: "silica-ramming", Density: 2.1},
		{Name: "mag-carbon", Density: 3.0},
	}
}

// Catalogue looks up repair materials by case-insensitive name.
type Catalogue struct {
	byName map[string]models.Material
}

// NewCatalogue indexes the materials, rejecting blank names, duplicates and
// non-positive densities.
func NewCatalogue(materials []models.Material) (*Catalogue, error) {
	c := &Catalogue{byName: make(map[string]models.Material, len(materials))}
	for _, m := range materials {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		if key == "" {
			return nil, fmt.Errorf("material with empty name")
		}
		if m.Density <= 0 {
			return nil, fmt.Errorf("material %q: density must be positive, got %v", m.Name, m.Density)
		}
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("material %q listed twice", m.Name)
		}
		c.byName[key] = m
	}
	return c, nil
}

// Lookup returns the named material.
func (c *Catalogue) Lookup(name string) (models.Material, error) {
	m, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return models.Material{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	return m, nil
}

// List returns every material sorted by name.
func (c *Catalogue) List() []models.Material {
	out := make([]models.Material, 0, len(c.byName))
	for _, m := range c.byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

package catalog

import (
	"fmt"
	"os"

	"detailing/internal/models"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Services []models.Service    `yaml:"services"`
	AddOns   []models.AddOn      `yaml:"add_ons"`
	Zones    []models.TravelZone `yaml:"travel_zones"`
}

// Load reads a catalog from a YAML file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Services, f.AddOns, f.Zones)
}

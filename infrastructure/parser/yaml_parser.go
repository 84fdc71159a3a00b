package parser

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/ports"
)

var validate = validator.New()

// YamlDeviceCatalogParser implements DeviceCatalogParser for YAML.
type YamlDeviceCatalogParser struct{}

// NewYamlDeviceCatalogParser creates a new YamlDeviceCatalogParser.
func NewYamlDeviceCatalogParser() ports.DeviceCatalogParser {
	return &YamlDeviceCatalogParser{}
}

// Parse unmarshals YAML bytes into a DeviceCatalog and validates it.
// Unknown fields and duplicate device names are rejected.
func (p *YamlDeviceCatalogParser) Parse(data []byte) (*entities.DeviceCatalog, error) {
	var catalog entities.DeviceCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("decode device catalog: %w", err)
	}
	if err := validate.Struct(&catalog); err != nil {
		return nil, fmt.Errorf("invalid device catalog: %w", err)
	}
	seen := make(map[string]bool, len(catalog.Devices))
	for _, d := range catalog.Devices {
		if seen[d.Name] {
			return nil, fmt.Errorf("invalid device catalog: duplicate device %q", d.Name)
		}
		seen[d.Name] = true
	}
	return &catalog, nil
}

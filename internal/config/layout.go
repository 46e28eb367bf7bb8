package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LayoutDevice is a device registered when the zone starts, typically a
// fixed ranging anchor.
type LayoutDevice struct {
	ID    uint32 `yaml:"id" validate:"gt=0"`
	Label string `yaml:"label"`
	X     int32  `yaml:"x"`
	Y     int32  `yaml:"y"`
	Z     int32  `yaml:"z"`
}

// Layout describes a zone and its initial devices.
type Layout struct {
	ZoneID  int32          `yaml:"zone_id" validate:"gte=0"`
	Name    string         `yaml:"name"`
	Devices []LayoutDevice `yaml:"devices" validate:"dive"`
}

// LoadLayout reads and validates a YAML zone layout.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes and validates a YAML zone layout. Device ids must be
// unique and id 0 is reserved for the bootstrap device.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse layout YAML: %w", err)
	}
	v := validator.New()
	if err := v.Struct(l); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	seen := make(map[uint32]bool, len(l.Devices))
	for _, d := range l.Devices {
		if seen[d.ID] {
			return nil, fmt.Errorf("invalid layout: device %d listed twice", d.ID)
		}
		seen[d.ID] = true
	}
	return &l, nil
}

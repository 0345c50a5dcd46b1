package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnPoint is the default world transform for characters without a
// stored position.
type SpawnPoint struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
	Heading float64 `yaml:"heading"`
}

// Defaults holds the fallback values applied when a stored character row
// is missing a field or a blob fails to decode.
type Defaults struct {
	Accounts map[string]float64 `yaml:"accounts"`
	Status   map[string]float64 `yaml:"status"`
	Slots    int                `yaml:"slots"`
	Spawn    SpawnPoint         `yaml:"spawn"`
}

// LoadDefaults loads the default account/status/slot/spawn values from a
// YAML file.
func LoadDefaults(path string) (*Defaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	d := &Defaults{}
	if err := yaml.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	if len(d.Accounts) == 0 {
		return nil, fmt.Errorf("defaults: no accounts configured")
	}
	if d.Slots <= 0 {
		d.Slots = 40
	}
	return d, nil
}

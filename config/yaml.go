package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSystemYAML parses the on-disk system-configuration surface (§6) into
// a validated System.
func LoadSystemYAML(path string) (System, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return System{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var sys System
	if err := yaml.Unmarshal(raw, &sys); err != nil {
		return System{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := sys.Validate(); err != nil {
		return System{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return sys, nil
}

// WriteSystemYAML serializes a System back to YAML, mainly used by tests
// and tooling that round-trip a programmatically built configuration.
func WriteSystemYAML(path string, sys System) error {
	raw, err := yaml.Marshal(sys)
	if err != nil {
		return fmt.Errorf("config: marshaling system: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

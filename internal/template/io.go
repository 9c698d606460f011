package template

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Read loads and validates a definition from a YAML file.
func Read(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Dir = filepath.Dir(path)

	return &def, nil
}

// Write stores a definition as YAML.
func Write(def *Definition, path string) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

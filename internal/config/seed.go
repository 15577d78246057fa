package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bbernstein/panelboard-go/internal/document"
)

// Seed is the initial content of a document whose storage is empty.
// The parameter key set and the component types are fixed once seeded.
type Seed struct {
	Parameters     map[string]int `yaml:"parameters"`
	ComponentTypes []string       `yaml:"component_types"`
}

// DefaultSeed returns the built-in seed: parameters A..E at zero and
// component types a, b and c.
func DefaultSeed() *Seed {
	return &Seed{
		Parameters: map[string]int{
			"A": 0,
			"B": 0,
			"C": 0,
			"D": 0,
			"E": 0,
		},
		ComponentTypes: []string{"a", "b", "c"},
	}
}

// LoadSeed reads a YAML seed file. An empty path or a missing file yields the default seed.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSeed(), nil
		}
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}

	return &seed, nil
}

// Validate checks that the seed describes a usable document.
func (s *Seed) Validate() error {
	if len(s.Parameters) == 0 {
		return fmt.Errorf("at least one parameter is required")
	}
	for name, value := range s.Parameters {
		if err := document.ValidateParameterName(name); err != nil {
			return err
		}
		if err := document.ValidateParameterValue(value); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}

	if len(s.ComponentTypes) == 0 {
		return fmt.Errorf("at least one component type is required")
	}
	for _, ct := range s.ComponentTypes {
		if err := document.ValidateComponentType(ct); err != nil {
			return err
		}
	}

	return nil
}

// Document builds an empty document from the seed.
func (s *Seed) Document() *document.Document {
	return document.New(s.Parameters, s.ComponentTypes)
}

package tools

import (
	_ "embed"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

//go:embed catalogue.yaml
var builtinCatalogue []byte

// Param describes one parameter of an operation.
type Param struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// Operation describes one named operation the planner may schedule.
type Operation struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Parameters  []Param `yaml:"parameters"`
}

// Catalogue is the versioned, frozen set of operations shown to the planner.
type Catalogue struct {
	Version    int         `yaml:"version"`
	Operations []Operation `yaml:"operations"`
}

// LoadCatalogue returns the catalogue embedded in the binary.
func LoadCatalogue() (*Catalogue, error) {
	return ParseCatalogue(builtinCatalogue)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if c.Version <= 0 {
		return nil, fmt.Errorf("parse catalogue: missing version")
	}

	seen := make(map[string]bool, len(c.Operations))
	for _, op := range c.Operations {
		if op.Name == "" {
			return nil, fmt.Errorf("parse catalogue: operation without name")
		}
		if seen[op.Name] {
			return nil, fmt.Errorf("parse catalogue: duplicate operation %q", op.Name)
		}
		seen[op.Name] = true
	}
	return &c, nil
}

// Names returns the operation names in catalogue order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.Operations))
	for _, op := range c.Operations {
		names = append(names, op.Name)
	}
	return names
}

// Lookup returns the operation with the given name.
func (c *Catalogue) Lookup(name string) (Operation, bool) {
	for _, op := range c.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Describe renders the catalogue as prompt text: one line per operation
// followed by its parameters.
func (c *Catalogue) Describe() string {
	var sb strings.Builder
	for _, op := range c.Operations {
		fmt.Fprintf(&sb, "- %s: %s\n", op.Name, op.Description)
		for _, p := range op.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&sb, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	return sb.String()
}

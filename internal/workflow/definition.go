package workflow

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ActionDef is one action entry in a workflow definition file.
type ActionDef struct {
	Name  string `yaml:"name" validate:"required"`
	Use   string `yaml:"use"`
	Fatal bool   `yaml:"fatal"`
}

// Definition is the declared action order for one workflow type.
type Definition struct {
	Type        string      `yaml:"type" validate:"required"`
	Description string      `yaml:"description"`
	Actions     []ActionDef `yaml:"actions" validate:"required,min=1,dive"`
}

type definitionFile struct {
	Workflows []Definition `yaml:"workflows" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseDefinitions decodes and validates a YAML definitions document.
// Unknown fields are rejected.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var f definitionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing workflow definitions: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validating workflow definitions: %w", err)
	}
	return f.Workflows, nil
}

// LoadDefinitions reads and parses the definitions file at path.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow definitions %q: %w", path, err)
	}
	return ParseDefinitions(data)
}

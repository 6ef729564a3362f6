// Package config loads refresh scenario definitions.
//
// Scenarios are YAML files validated against an embedded CUE schema before
// decoding. Validation failures carry CUE's error detail so a malformed
// file points at the offending field rather than failing deep inside a
// refresh run.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/tarsiflow/tarsiflow/internal/value"
)

//go:embed schema.cue
var schemaCUE string

// Scenario describes one model run: input overrides, simulation settings,
// and the ordered refresh steps to apply after initialisation.
type Scenario struct {
	Name       string             `yaml:"name"`
	Inputs     map[string]float64 `yaml:"inputs"`
	Simulation Simulation         `yaml:"simulation"`
	Steps      []Step             `yaml:"steps"`
}

// Simulation holds Monte Carlo settings for task-based fields.
type Simulation struct {
	Trials int   `yaml:"trials"`
	Seed   int64 `yaml:"seed"`
}

// Step is one refresh: mutate Field to Value, or - when Task is set -
// await the named task-based field instead (Value is ignored).
type Step struct {
	Field string    `yaml:"field"`
	Value ValueNode `yaml:"value"`
	Task  bool      `yaml:"task"`
}

// ValueNode decodes a YAML scalar into value.Scalar and a YAML sequence
// into value.Vector.
type ValueNode struct {
	Value value.Value
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *ValueNode) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var elems []float64
		if err := node.Decode(&elems); err != nil {
			return fmt.Errorf("line %d: vector value: %w", node.Line, err)
		}
		n.Value = value.Vector(elems)
		return nil
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("line %d: scalar value: %w", node.Line, err)
		}
		n.Value = value.Scalar(f)
		return nil
	default:
		return fmt.Errorf("line %d: value must be a number or a list of numbers", node.Line)
	}
}

// Load reads, validates, and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(path, data)
}

// Parse validates and decodes scenario YAML. The filename is used only
// for error messages.
func Parse(filename string, data []byte) (*Scenario, error) {
	if err := validate(filename, data); err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: decode scenario: %w", filename, err)
	}
	return &sc, nil
}

// validate unifies the document with the embedded CUE schema.
func validate(filename string, data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: parse YAML: %w", filename, err)
	}
	if doc == nil {
		return fmt.Errorf("%s: empty scenario file", filename)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(ctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s: invalid scenario: %s", filename, cueerrors.Details(err, nil))
	}
	return nil
}

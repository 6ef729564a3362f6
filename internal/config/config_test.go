package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tarsiflow/tarsiflow/internal/value"
)

const validScenario = `
name: severity-shock
inputs:
  avg_severity: 500000
  avg_n_claims: 5
simulation:
  trials: 200
  seed: 42
steps:
  - field: avg_severity
    value: 400000
  - field: loss_curve_override
    value: [1, 2, 3]
  - field: simulated_losses
    task: true
`

func TestParse_Valid(t *testing.T) {
	sc, err := Parse("scenario.yaml", []byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "severity-shock", sc.Name)
	assert.Equal(t, 500_000.0, sc.Inputs["avg_severity"])
	assert.Equal(t, 200, sc.Simulation.Trials)
	assert.Equal(t, int64(42), sc.Simulation.Seed)

	require.Len(t, sc.Steps, 3)
	assert.Equal(t, value.Scalar(400_000), sc.Steps[0].Value.Value)
	assert.Equal(t, value.Vector{1, 2, 3}, sc.Steps[1].Value.Value)
	assert.True(t, sc.Steps[2].Task)
	assert.Nil(t, sc.Steps[2].Value.Value)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "steps: []\n"},
		{"empty name", "name: \"\"\nsteps: []\n"},
		{"missing steps", "name: x\n"},
		{"step without field", "name: x\nsteps:\n  - value: 1\n"},
		{"string value", "name: x\nsteps:\n  - field: f\n    value: nope\n"},
		{"non-numeric input", "name: x\ninputs:\n  a: hello\nsteps: []\n"},
		{"zero trials", "name: x\nsimulation:\n  trials: 0\nsteps: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := Parse("empty.yaml", nil)
	assert.ErrorContains(t, err, "empty scenario")
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse("bad.yaml", []byte("name: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0o644))

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "severity-shock", sc.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// Mapping nodes are rejected by ValueNode before schema validation ever
// sees them.
func TestValueNode_MappingRejected(t *testing.T) {
	var n ValueNode
	err := yaml.Unmarshal([]byte("{a: 1}"), &n)
	assert.ErrorContains(t, err, "number or a list of numbers")
}

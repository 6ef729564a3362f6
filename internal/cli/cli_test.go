package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and captures stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeScenario drops scenario YAML into a temp dir and returns its path.
func writeScenario(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

const shockScenario = `
name: severity-shock
inputs:
  avg_severity: 500000
  avg_n_claims: 5
simulation:
  trials: 100
  seed: 42
steps:
  - field: avg_severity
    value: 400000
`

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tarsiflow", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "graph", "runs"} {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	_, err := executeCommand(t, "--format", "xml", "graph", "whatever.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRunCommand_TextGolden(t *testing.T) {
	path := writeScenario(t, shockScenario)

	out, err := executeCommand(t, "run", path)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "run_text", []byte(out))
}

func TestRunCommand_TaskStep(t *testing.T) {
	path := writeScenario(t, `
name: sim-after-shock
inputs:
  avg_severity: 500000
  avg_n_claims: 5
simulation:
  trials: 50
  seed: 7
steps:
  - field: avg_severity
    value: 250000
  - field: simulated_losses
    task: true
`)

	out, err := executeCommand(t, "run", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Step 2: task refresh simulated_losses")
	assert.Contains(t, out, "simulated_mean")
}

func TestRunCommand_ZeroInputHonored(t *testing.T) {
	path := writeScenario(t, `
name: zero-severity
inputs:
  avg_severity: 0
  avg_n_claims: 5
simulation:
  trials: 10
  seed: 1
steps:
  - field: avg_n_claims
    value: 10
`)

	out, err := executeCommand(t, "run", path)
	require.NoError(t, err)

	// With zero severity the annual loss stays zero however many claims
	// arrive; nothing downstream changes. A defaulted severity would have
	// reported aal = 5,000,000 here.
	assert.Contains(t, out, "(no changes)")
}

func TestRunCommand_MissingScenario(t *testing.T) {
	_, err := executeCommand(t, "run", "does-not-exist.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_UnknownFieldStep(t *testing.T) {
	path := writeScenario(t, `
name: bad-field
steps:
  - field: no_such_field
    value: 1
`)

	_, err := executeCommand(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunCommand_JournalRecordsSteps(t *testing.T) {
	scenario := writeScenario(t, shockScenario)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	_, err := executeCommand(t, "run", scenario, "--journal", dbPath)
	require.NoError(t, err)

	out, err := executeCommand(t, "runs", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "avg_severity")
	assert.Contains(t, out, "(2 changed)")
}

func TestRunsCommand_MissingJournal(t *testing.T) {
	_, err := executeCommand(t, "runs", "no-such.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGraphCommand_TextGolden(t *testing.T) {
	path := writeScenario(t, shockScenario)

	out, err := executeCommand(t, "graph", path)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "graph_text", []byte(out))
}

func TestGraphCommand_JSONGolden(t *testing.T) {
	path := writeScenario(t, shockScenario)

	out, err := executeCommand(t, "--format", "json", "graph", path)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "graph_json", []byte(out))
}

func TestRunCommand_JSONShape(t *testing.T) {
	path := writeScenario(t, shockScenario)

	out, err := executeCommand(t, "--format", "json", "run", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "severity-shock", data["scenario"])
	steps, ok := data["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)
}

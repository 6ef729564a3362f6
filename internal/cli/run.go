package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarsiflow/tarsiflow/internal/actuarial"
	"github.com/tarsiflow/tarsiflow/internal/config"
	"github.com/tarsiflow/tarsiflow/internal/graph"
	"github.com/tarsiflow/tarsiflow/internal/journal"
	"github.com/tarsiflow/tarsiflow/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string

	// TokenGenerator overrides the journal run token generator (for
	// testing). Nil defaults to UUIDv7.
	TokenGenerator journal.TokenGenerator
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Field string      `json:"field"`
	Task  bool        `json:"task,omitempty"`
	Delta graph.Delta `json:"delta"`
}

// RunResult is the full outcome of a scenario run.
type RunResult struct {
	Scenario string       `json:"scenario"`
	Steps    []StepResult `json:"steps"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a refresh scenario against the loss model",
		Long: `Build the loss model from a scenario file, initialise the dependency
graph, apply each refresh step, and report the fields that changed.

Example:
  tarsiflow run ./scenarios/severity-shock.yaml
  tarsiflow run ./scenario.yaml --journal ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal recording refresh runs")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sc, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	model := buildModel(sc)
	slog.Info("initialising model", "scenario", sc.Name)
	if err := model.Initialise(ctx); err != nil {
		return WrapExitError(ExitFailure, "graph construction failed", err)
	}

	var jnl *journal.Journal
	if opts.Journal != "" {
		jnl, err = journal.Open(opts.Journal, opts.TokenGenerator)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := jnl.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
	}

	result := RunResult{Scenario: sc.Name}
	for i, step := range sc.Steps {
		delta, err := applyStep(ctx, model, step)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("step %d (%s) failed", i+1, step.Field), err)
		}
		if jnl != nil {
			if _, err := jnl.Record(ctx, sc.Name, step.Field, delta); err != nil {
				return WrapExitError(ExitCommandError, "failed to record refresh", err)
			}
		}
		result.Steps = append(result.Steps, StepResult{Field: step.Field, Task: step.Task, Delta: delta})
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.JSON(result)
	}

	fmt.Fprintf(out, "Scenario: %s\n", result.Scenario)
	for i, step := range result.Steps {
		verb := "refresh"
		if step.Task {
			verb = "task refresh"
		}
		fmt.Fprintf(out, "Step %d: %s %s\n", i+1, verb, step.Field)
		for _, line := range renderDelta(step.Delta) {
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

// applyStep dispatches one scenario step to the matching refresh entry
// point.
func applyStep(ctx context.Context, model *graph.Model, step config.Step) (graph.Delta, error) {
	if step.Task {
		return model.RefreshTask(ctx, step.Field)
	}
	if step.Value.Value == nil {
		return nil, fmt.Errorf("step for %q has no value and is not a task refresh", step.Field)
	}
	return model.Refresh(step.Field, step.Value.Value)
}

// buildModel constructs the actuarial model from scenario inputs and
// simulation settings.
func buildModel(sc *config.Scenario) *graph.Model {
	cfg := actuarial.Config{
		Trials: sc.Simulation.Trials,
		Seed:   sc.Simulation.Seed,
	}
	// Only inputs the scenario actually names override the defaults: an
	// explicit zero is an override, an absent key is not.
	if v, ok := sc.Inputs[actuarial.FieldSeverity]; ok {
		cfg.AvgSeverity = &v
	}
	if v, ok := sc.Inputs[actuarial.FieldClaims]; ok {
		cfg.AvgClaims = &v
	}
	m := actuarial.NewModel(cfg)

	// Scenario inputs beyond the built-in ones become plain input fields
	// so scenarios can stage extra reference values.
	for name, val := range sc.Inputs {
		if name == actuarial.FieldSeverity || name == actuarial.FieldClaims {
			continue
		}
		m.Register(graph.Input(name, value.Scalar(val)))
	}
	return m
}

// configureLogging applies the verbose flag to the process logger.
func configureLogging(verbose bool) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

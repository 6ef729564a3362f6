package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tarsiflow/tarsiflow/internal/config"
)

// GraphNode describes one field in the dependents index dump.
type GraphNode struct {
	Field      string   `json:"field"`
	Derived    bool     `json:"derived"`
	Task       bool     `json:"task,omitempty"`
	Dependents []string `json:"dependents"`
}

// NewGraphCommand creates the graph command: initialise the model for a
// scenario and print the discovered dependents index.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <scenario.yaml>",
		Short: "Print the discovered dependency graph for a scenario",
		Long: `Build and initialise the loss model for a scenario, then print the
reverse-dependency index: for each field, the fields recomputed when it
changes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpGraph(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func dumpGraph(opts *RootOptions, path string, cmd *cobra.Command) error {
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
	if err := model.Initialise(ctx); err != nil {
		return WrapExitError(ExitFailure, "graph construction failed", err)
	}

	var nodes []GraphNode
	for _, name := range model.Names() {
		f, _ := model.Lookup(name)
		deps, err := model.Dependents(name)
		if err != nil {
			return WrapExitError(ExitFailure, "dependents lookup failed", err)
		}
		nodes = append(nodes, GraphNode{
			Field:      name,
			Derived:    f.IsDerived(),
			Task:       f.IsTask(),
			Dependents: deps,
		})
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.JSON(nodes)
	}

	for _, node := range nodes {
		marker := ""
		if node.Task {
			marker = " [task]"
		} else if node.Derived {
			marker = " [derived]"
		}
		if len(node.Dependents) == 0 {
			fmt.Fprintf(out, "%s%s\n", node.Field, marker)
			continue
		}
		fmt.Fprintf(out, "%s%s -> %s\n", node.Field, marker, strings.Join(node.Dependents, ", "))
	}
	return nil
}

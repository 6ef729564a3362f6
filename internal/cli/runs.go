package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarsiflow/tarsiflow/internal/journal"
)

// RunRecord is one journal entry in the runs listing.
type RunRecord struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Scenario string `json:"scenario,omitempty"`
	Input    string `json:"input"`
	Changed  int    `json:"changed"`
}

// NewRunsCommand creates the runs command: list refresh runs recorded in
// a journal database.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "runs <journal.db>",
		Short:         "List refresh runs recorded in a journal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func listRuns(opts *RootOptions, path string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	jnl, err := journal.Open(path, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jnl.Close()

	entries, err := jnl.List(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	records := make([]RunRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, RunRecord{
			ID:       e.ID,
			Seq:      e.Seq,
			Scenario: e.Scenario,
			Input:    e.Input,
			Changed:  len(e.Delta),
		})
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.JSON(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "%4d  %s  %s (%d changed)\n", r.Seq, r.ID, r.Input, r.Changed)
	}
	return nil
}

package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wikimill/internal/checkpoint"
	"github.com/Sumatoshi-tech/wikimill/internal/pipeline"
)

// StatusCommand holds configuration for the status command.
type StatusCommand struct {
	checkpointDir string
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	sc := &StatusCommand{}

	cmd := &cobra.Command{
		Use:   "status <output-dir>",
		Short: "Show checkpoint and last-run state for an output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return sc.run(args[0])
		},
	}

	cmd.Flags().StringVar(&sc.checkpointDir, "checkpoint-dir", "", "checkpoint directory (default <output>/.wikimill)")

	return cmd
}

func (sc *StatusCommand) run(outputDir string) error {
	dir := sc.checkpointDir
	if dir == "" {
		dir = checkpoint.DefaultDir(outputDir)
	}

	manager := checkpoint.NewManager(dir)

	if !manager.Exists() {
		color.New(color.FgYellow).Fprintf(os.Stdout, "No checkpoint found at %s\n", manager.Path())

		return nil
	}

	state, err := manager.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	color.New(color.FgGreen).Fprintf(os.Stdout, "Checkpoint found\n\n")

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendRows([]table.Row{
		{"Checkpoint", manager.Path()},
		{"Dump", state.DumpPath},
		{"Format", state.Format},
		{"Committed offset", state.LastCommittedOffset},
		{"Articles written", state.ArticlesWritten},
		{"Updated", state.UpdatedAt},
	})

	tbl.Render()

	report, reportErr := pipeline.LoadReport(outputDir)
	if reportErr != nil {
		// A checkpoint without a report just means the last run died before
		// writing one.
		return nil
	}

	fmt.Fprintf(os.Stdout, "\nLast run: %d converted, %d failed, %d skipped (interrupted: %v)\n",
		report.ArticlesConverted,
		report.ArticlesFailed,
		report.Skipped.Total(),
		report.Interrupted,
	)

	return nil
}

// Package main provides the entry point for the wikimill CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wikimill/cmd/wikimill/commands"
	"github.com/Sumatoshi-tech/wikimill/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wikimill",
		Short: "Wikimill - MediaWiki dump to article file converter",
		Long: `Wikimill converts MediaWiki XML dumps into one file per article.

Commands:
  convert   Stream a dump into per-article markdown or HTML files
  status    Show checkpoint and last-run state for an output directory
  formats   List supported output formats`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands.
	rootCmd.AddCommand(commands.NewConvertCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewFormatsCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "wikimill %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wikimill/internal/wikitext"
)

// NewFormatsCommand creates the formats command.
func NewFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported output formats",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			tbl := table.NewWriter()
			tbl.SetOutputMirror(os.Stdout)
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Format", "Extension"})

			for _, name := range wikitext.Formats() {
				renderer, err := wikitext.Lookup(name)
				if err != nil {
					return err
				}

				tbl.AppendRow(table.Row{name, renderer.Extension()})
			}

			tbl.Render()

			return nil
		},
	}
}

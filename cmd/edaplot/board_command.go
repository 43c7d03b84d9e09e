package main

import (
	"github.com/spf13/cobra"

	"edaplot/internal/output"
)

func newBoardCommand(ctx *commandContext) *cobra.Command {
	var outputFolder string

	cmd := &cobra.Command{
		Use:     "board [flags] BOARD.kicad_pcb",
		Aliases: []string{"plotpcb"},
		Short:   "Render every catalog layer of a board",
		Long: `Render every catalog layer of a board with kicad-cli and print one JSON
document holding the board extent and the SVG markup of each layer the engine
produced. Layers the board does not have are left out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := ctx.newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := runner.Board(cmd.Context(), args[0], outputFolder)
			if err != nil {
				return err
			}
			return output.WriteEncoded(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().SetNormalizeFunc(underscoreFlags)
	cmd.Flags().StringVarP(&outputFolder, "output_folder", "o", "", "Also export the processed layer SVGs to this folder")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"edaplot/internal/output"
)

func newSchematicCommand(ctx *commandContext) *cobra.Command {
	var (
		inputFolder string
		revA        string
		revB        string
	)

	cmd := &cobra.Command{
		Use:     "schematic -a REV -b REV [-i REPO]",
		Aliases: []string{"plotsch"},
		Short:   "Render the schematic diff between two revisions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cleanup, err := ctx.newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := runner.Schematic(cmd.Context(), inputFolder, revA, revB)
			if err != nil {
				return err
			}
			return output.WriteEncoded(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().SetNormalizeFunc(underscoreFlags)
	cmd.Flags().StringVarP(&inputFolder, "input_folder", "i", ".", "Repository to compare revisions in")
	cmd.Flags().StringVarP(&revA, "a", "a", "", "Old revision")
	cmd.Flags().StringVarP(&revB, "b", "b", "", "New revision")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}

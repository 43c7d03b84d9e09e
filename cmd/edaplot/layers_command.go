package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"edaplot/internal/layers"
	"edaplot/internal/services"
)

func newLayersCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "layers [KEY...]",
		Short:       "List the layers rendered for every board",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := selectLayers(args)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, catalog)
			}
			rows := make([][]string, len(catalog))
			for i, spec := range catalog {
				rows[i] = []string{strconv.Itoa(i + 1), spec.Key, spec.EngineName, spec.Description}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Key", "KiCad layer", "Description"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

func selectLayers(keys []string) ([]layers.Spec, error) {
	if len(keys) == 0 {
		return layers.Catalog(), nil
	}
	selected := make([]layers.Spec, 0, len(keys))
	for _, key := range keys {
		spec, ok := layers.Lookup(key)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "layers", "lookup",
				fmt.Sprintf("unknown layer %q (known: %s)", key, strings.Join(layers.Keys(), ", ")), nil)
		}
		selected = append(selected, spec)
	}
	return selected, nil
}

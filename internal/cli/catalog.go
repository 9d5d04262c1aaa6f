package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"home-dispatch/internal/home"
)

func (a *App) newCatalogCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the operations the assistant can perform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := home.NewCatalog().Specs()

			if jsonOutput {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(specs); err != nil {
					return fmt.Errorf("encoding catalog: %w", err)
				}
				return nil
			}

			for _, spec := range specs {
				fmt.Fprintf(a.stdout, "%-16s %s\n", spec.Name, spec.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the catalog with parameter schemas as JSON")

	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *App) newAskCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <command...>",
		Short: "Dispatch a single command and print the response and status",
		Example: `  home-dispatch ask "turn on the kitchen light and play some jazz"
  home-dispatch ask --json lock the doors`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			res := rt.dispatcher.Handle(cmd.Context(), strings.Join(args, " "))

			if jsonOutput {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"id":       res.ID,
					"response": res.Response(),
					"status":   res.Status,
					"state":    res.Snapshot,
					"applied":  res.Applied(),
					"skipped":  res.Skipped(),
				}); err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
			} else {
				fmt.Fprintf(a.stdout, "%s\n\n%s\n", res.Response(), res.Status)
			}

			return res.Err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

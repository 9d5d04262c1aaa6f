package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"home-dispatch/internal/console"
)

func (a *App) newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive console session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			err = console.New(rt.dispatcher, rt.cfg.SessionHistory(), a.stdin, a.stdout).Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"home-dispatch/internal/mcp"
)

func (a *App) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the operation catalog as MCP tools over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout. Every catalog
operation becomes a tool that is applied directly; the home_command tool
runs a free-text command through the configured intent resolver.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			srv := mcp.NewServer(rt.dispatcher, mcp.Config{Version: Version})
			rt.logger.Info("serving MCP over stdio")
			err = srv.ServeStdio(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// Package cli wires configuration, adapters and surfaces into the
// home-dispatch command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type globalOptions struct {
	configPath string
	envFile    string
	provider   string
}

type App struct {
	root   *cobra.Command
	opts   globalOptions
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func New() *App {
	app := &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "home-dispatch",
		Short: "Natural-language control for a simulated smart home",
		Long: `home-dispatch turns free-text commands into operations on a simulated
smart home (lights, thermostat, door locks, music) using an LLM with
function calling, and reports the resulting state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := app.root.PersistentFlags()
	flags.StringVarP(&app.opts.configPath, "config", "c", "", "Path to config file (default: ./config.yaml if present)")
	flags.StringVar(&app.opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.StringVar(&app.opts.provider, "provider", "", "Intent resolver: azure, openai, anthropic or gemini (overrides config)")

	app.root.AddCommand(
		app.newServeCmd(),
		app.newReplCmd(),
		app.newAskCmd(),
		app.newListenCmd(),
		app.newCatalogCmd(),
		app.newMCPCmd(),
		app.newVersionCmd(),
	)

	return app
}

// WithIO sets custom input and output streams.
func (a *App) WithIO(stdin io.Reader, stdout, stderr io.Writer) *App {
	a.stdin = stdin
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetIn(stdin)
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "home-dispatch version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
		},
	}
}

package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the automator CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "automator",
		Short:   "Keep GitOps version markers in sync with their source repositories",
		Version: a.version,
		Long: `Automator finds version markers in the files of a GitOps repository,
resolves the version each tracked source repository should be deployed at,
and maintains a single pull request carrying the updates together with a
summary of the commits in between.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.config.ConfigFile, "config", "c", a.config.ConfigFile, "engine configuration file, relative to --workdir")
	flags.StringVar(&a.config.ConfigOverride, "config-override", a.config.ConfigOverride, "YAML fragment merged over the configuration file")
	flags.StringVar(&a.config.WorkDir, "workdir", a.config.WorkDir, "checkout of the GitOps repository")
	flags.BoolVarP(&a.config.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.config.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("automator {{.Version}}\n")

	rootCmd.AddCommand(a.NewRunCommand())
	rootCmd.AddCommand(a.NewValidateCommand())
	rootCmd.AddCommand(a.NewVersionCommand())

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// ExitOnError prints an error and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/automator"
)

// NewValidateCommand creates the validate command.
func (a *App) NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the engine configuration",
		Long: `Validate loads the configuration file, applies --config-override and
reports every problem found, including invalid regular expressions and
globs.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := a.loadEngineConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			files := 0
			for _, src := range cfg.SourceRepos {
				if _, err := automator.CompileRules(cfg, src); err != nil {
					return err
				}
				files += len(src.ReleaseFiles)
			}
			fmt.Fprintf(a.out, "Configuration %s is valid: %d source repositories, %d release files\n",
				a.config.ConfigPath(), len(cfg.SourceRepos), files)
			return nil
		},
	}
}

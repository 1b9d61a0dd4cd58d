package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/automator"
	"github.com/agentstation/automator/pkg/changes"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/reconciler"
	"github.com/agentstation/automator/pkg/resolver"
)

// NewRunCommand creates the run command.
func (a *App) NewRunCommand() *cobra.Command {
	var token, readToken string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation cycle",
		Long: `Run locates the version markers in the GitOps checkout, resolves the
versions of every configured source repository and opens or updates the
automator pull request.

With --dry-run nothing is written to the GitOps repository; the summary
artifacts are still produced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("github-token") {
				a.config.Token = token
			}
			if cmd.Flags().Changed("github-token-read-repos") {
				a.config.ReadToken = readToken
			}
			return a.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&a.config.Versions, "versions", a.config.Versions, "version overrides: owner/repo[:id]=version[,sha];...")
	flags.StringVar(&a.config.Repository, "repo", a.config.Repository, "GitOps repository as owner/name (default $GITHUB_REPOSITORY)")
	flags.StringVar(&token, "github-token", "", "token for the GitOps repository (default $GITHUB_TOKEN)")
	flags.StringVar(&readToken, "github-token-read-repos", "", "token for reading source repositories (default $GITHUB_TOKEN_READ_REPOS or the GitOps token)")
	flags.StringVar(&a.config.APIURL, "api-url", a.config.APIURL, "GitHub API URL")
	flags.StringVar(&a.config.ServerURL, "server-url", a.config.ServerURL, "GitHub web URL used in summary links")
	flags.BoolVar(&a.config.DryRun, "dry-run", false, "plan and write artifacts without touching the GitOps repository")

	return cmd
}

func (a *App) run(cmd *cobra.Command) error {
	ctx := logging.WithLogger(cmd.Context(), a.logger)

	// Step 1: load the engine configuration
	cfg, err := a.loadEngineConfig()
	if err != nil {
		return err
	}
	ctx = logging.WithCycle(ctx, cfg.ID)

	// Step 2: build the engine
	if !a.config.DryRun {
		if a.config.Token == "" {
			return errors.NewConfigError("run", "a GitHub token is required (--github-token or "+EnvToken+")", nil)
		}
		if a.config.Repository == "" {
			return errors.NewConfigError("run", "the GitOps repository is required (--repo or "+EnvRepository+")", nil)
		}
	}
	readToken := a.config.ReadToken
	if readToken == "" {
		readToken = a.config.Token
	}
	opts := []automator.Option{
		automator.WithPlatform(a.newPlatform(a.config.Token, a.config.APIURL)),
		automator.WithSourceReader(a.newPlatform(readToken, a.config.APIURL)),
		automator.WithOverrides(resolver.ParseOverrides(a.config.Versions)...),
		automator.WithWorkDir(a.config.WorkDir),
		automator.WithServerURL(a.config.ServerURL),
	}
	if !a.config.DryRun {
		opts = append(opts, automator.WithGitOpsRepo(a.config.Repository))
	}
	engine, err := automator.New(cfg, opts...)
	if err != nil {
		return err
	}
	engine.OnTransition(func(repo string, t resolver.Transition) {
		logging.FromContext(ctx).Info().
			Str("repo", repo).
			Str("path", t.File.Path).
			Str("from", t.ExistingVersion).
			Str("to", t.NewVersion).
			Msg("Detected version change")
	})

	// Step 3: plan only, or run the whole cycle
	if a.config.DryRun {
		result, err := engine.Plan(ctx)
		if err != nil {
			return err
		}
		if _, err := engine.WriteArtifacts(ctx, result); err != nil {
			return err
		}
		a.printResult(result, nil)
		return writeOutputs(a.config.OutputFile, changeOutputs(result))
	}

	report, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info().Object("outcome", report.Outcome).Msg("Cycle complete")
	a.printResult(report.Result, report.Outcome)
	return writeOutputs(a.config.OutputFile, outputsFor(report))
}

// outputsFor returns the step outputs of a completed cycle.
func outputsFor(report *automator.Report) []output {
	outputs := changeOutputs(report.Result)
	if pr := report.Outcome.PullRequest; pr != nil {
		outputs = append(outputs,
			output{Name: "pull-request-url", Value: pr.URL},
			output{Name: "pull-request-number", Value: strconv.Itoa(pr.Number)},
			output{Name: "pull-request-id", Value: strconv.FormatInt(pr.ID, 10)},
		)
	}
	return outputs
}

// changeOutputs names the changed source repositories. Nothing is emitted
// when no version moved, so workflows can test the output for emptiness.
func changeOutputs(result *changes.Result) []output {
	if !result.HasChanges() {
		return nil
	}
	return []output{{Name: "detected-changes", Value: strings.Join(result.SourceRepos(), ", ")}}
}

func (a *App) printResult(result *changes.Result, outcome *reconciler.Outcome) {
	if !result.HasChanges() {
		fmt.Fprintln(a.out, "No version changes detected")
		return
	}
	fmt.Fprintf(a.out, "%d version change(s) in %d repositories\n", result.TransitionCount(), len(result.Repos))
	if outcome == nil || outcome.PullRequest == nil {
		return
	}
	verb := "Updated"
	if outcome.Created {
		verb = "Opened"
	}
	fmt.Fprintf(a.out, "%s pull request #%d: %s\n", verb, outcome.PullRequest.Number, outcome.PullRequest.URL)
}

// Package automator runs one reconciliation cycle: it finds the version
// markers of every tracked source repository in a GitOps checkout, resolves
// the versions they should carry, collects the commits in between and keeps
// a single pull request in the GitOps repository up to date.
package automator

import (
	"context"

	"github.com/agentstation/automator/pkg/changes"
	"github.com/agentstation/automator/pkg/config"
	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/locator"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/reconciler"
	"github.com/agentstation/automator/pkg/resolver"
	"github.com/agentstation/automator/pkg/summary"
)

// Automator drives reconciliation cycles for one configuration.
type Automator interface {
	// Plan computes the changes of a cycle without touching the GitOps repository.
	Plan(ctx context.Context) (*changes.Result, error)

	// Run plans, reconciles the GitOps repository and writes the artifacts.
	Run(ctx context.Context) (*Report, error)

	// WriteArtifacts writes the configured summary files for result.
	WriteArtifacts(ctx context.Context, result *changes.Result) ([]string, error)

	// OnTransition registers a callback for detected transitions
	OnTransition(TransitionHook)

	// OnOutcome registers a callback for the reconciliation outcome
	OnOutcome(OutcomeHook)
}

// Report is what a cycle found and did.
type Report struct {
	Result    *changes.Result
	Outcome   *reconciler.Outcome
	Artifacts []string
}

// automator is the internal implementation of the Automator interface
type automator struct {
	*hooks

	config   *config.Config
	opts     *options
	resolver *resolver.Resolver
}

// New creates an Automator for cfg.
func New(cfg *config.Config, opts ...Option) (Automator, error) {
	if cfg == nil {
		return nil, errors.NewConfigError("automator", "configuration is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	if options.reader == nil {
		return nil, errors.NewConfigError("automator", "a platform or source reader is required", nil)
	}

	policy, err := resolver.NewPolicy(cfg.Versioning.Scheme, cfg.Versioning.ResolveTagsPattern)
	if err != nil {
		return nil, err
	}

	return &automator{
		hooks:    &hooks{},
		config:   cfg,
		opts:     options,
		resolver: resolver.New(policy, options.overrides),
	}, nil
}

// Plan implements Automator.
func (a *automator) Plan(ctx context.Context) (*changes.Result, error) {
	logger := logging.FromContext(ctx)

	// Step 1: report overrides that cannot apply
	repos := make([]string, 0, len(a.config.SourceRepos))
	for _, src := range a.config.SourceRepos {
		repos = append(repos, src.Repo)
	}
	for _, o := range a.resolver.UnknownOverrides(repos) {
		logger.Warn().Str("repo", o.Repo).Str("version", o.Version).Msg("Override names a repository that is not configured")
	}

	// Step 2: process the source repositories one at a time
	collector := changes.NewCollector(a.opts.reader,
		changes.WithDisabled(a.config.PullRequest.CommitHistory.Disable),
		changes.WithOnlyMergeCommits(a.config.PullRequest.CommitHistory.OnlyMergeCommits),
	)
	result := &changes.Result{}
	for _, src := range a.config.SourceRepos {
		rc, err := a.planRepo(ctx, src, collector)
		if err != nil {
			return nil, err
		}
		a.triggerTransitions(src.Repo, rc.Transitions)
		result.Add(rc)
	}

	logger.Info().
		Int("repos", len(result.Repos)).
		Int("transitions", result.TransitionCount()).
		Msg("Planned cycle")
	return result, nil
}

func (a *automator) planRepo(ctx context.Context, src config.SourceRepo, collector *changes.Collector) (changes.RepoChanges, error) {
	ctx = logging.WithRepo(ctx, src.Repo)
	logger := logging.FromContext(ctx)
	rc := changes.RepoChanges{SourceRepo: src.Repo}

	repo, err := platform.ParseRepo(src.Repo)
	if err != nil {
		return rc, err
	}

	// Step 1: find the markers in the checkout
	rules, err := CompileRules(a.config, src)
	if err != nil {
		return rc, err
	}
	files, err := locator.Locate(ctx, a.opts.workDir, rules)
	if err != nil {
		return rc, err
	}
	if len(files) == 0 {
		logger.Warn().Msg("No version markers found for repository")
		return rc, nil
	}

	// Step 2: read the upstream head and, when needed, its tags
	head, err := a.opts.reader.GetRef(ctx, repo, src.Ref)
	if err != nil {
		return rc, err
	}
	var refs []platform.Ref
	if a.resolver.Policy().Scheme.UsesTags() {
		if refs, err = a.opts.reader.ListMatchingRefs(ctx, repo, constants.TagsRefPrefix); err != nil {
			return rc, err
		}
	}

	// Step 3: resolve and collect
	resolution := a.resolver.Transitions(ctx, src.Repo, head, refs, files)
	commits, err := collector.Collect(ctx, repo, resolution.Transitions)
	if err != nil {
		return rc, err
	}

	rc.CurrentVersion = resolution.CurrentVersion
	rc.CurrentVersionSha = resolution.CurrentSha
	rc.Transitions = resolution.Transitions
	rc.Commits = commits

	logger.Debug().
		Str("head", head).
		Str("version", rc.CurrentVersion).
		Int("files", len(files)).
		Int("transitions", len(rc.Transitions)).
		Int("commits", len(commits)).
		Msg("Resolved repository")
	return rc, nil
}

// Run implements Automator.
func (a *automator) Run(ctx context.Context) (*Report, error) {
	if a.opts.platform == nil || a.opts.gitops == nil {
		return nil, errors.NewConfigError("automator", "a platform and a GitOps repository are required to run", nil)
	}

	// Step 1: plan
	result, err := a.Plan(ctx)
	if err != nil {
		return nil, err
	}

	// Step 2: reconcile
	rec, err := reconciler.New(a.opts.platform, *a.opts.gitops, a.reconcilerOptions()...)
	if err != nil {
		return nil, err
	}
	outcome, err := rec.Reconcile(ctx, result)
	if err != nil {
		return nil, err
	}
	a.triggerOutcome(outcome)

	// Step 3: artifacts
	written, err := a.WriteArtifacts(ctx, result)
	if err != nil {
		return nil, err
	}

	return &Report{Result: result, Outcome: outcome, Artifacts: written}, nil
}

// WriteArtifacts implements Automator.
func (a *automator) WriteArtifacts(ctx context.Context, result *changes.Result) ([]string, error) {
	return summary.WriteArtifacts(ctx, a.opts.workDir, a.config.Artifacts, result, a.summaryOptions())
}

func (a *automator) summaryOptions() summary.Options {
	return summary.Options{
		IncludeOwner: a.config.PullRequest.IncludeOwnerInDescription,
		ServerURL:    a.opts.serverURL,
	}
}

func (a *automator) reconcilerOptions() []reconciler.Option {
	pr := a.config.PullRequest
	opts := []reconciler.Option{
		reconciler.WithInstanceID(a.config.ID),
		reconciler.WithTitle(pr.Title),
		reconciler.WithLabels(pr.Labels...),
		reconciler.WithComment(pr.Comment),
		reconciler.WithAutoMerge(platform.MergeMethod(pr.AutoMergeMethod)),
		reconciler.WithCleanupBranches(pr.CleanupExistingAutomatorBranches),
		reconciler.WithAlwaysCreateNew(pr.AlwaysCreateNew),
		reconciler.WithOpenLimit(pr.LeaveOpenOnlyNumberOfPRs),
		reconciler.WithClock(a.opts.now),
		reconciler.WithBodyRenderer(func(result *changes.Result) (string, error) {
			return summary.Markdown(result, a.summaryOptions())
		}),
	}
	if author := pr.CommitAuthor; author != nil {
		opts = append(opts, reconciler.WithCommitAuthor(&platform.CommitAuthor{Name: author.Name, Email: author.Email}))
	}
	return opts
}

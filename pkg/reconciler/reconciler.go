// Package reconciler maps the changes of a cycle onto branches and pull
// requests of the GitOps repository.
//
// The hosting platform is the only state: every cycle re-derives what to do
// from the open pull requests and the content already committed, which makes
// a repeated cycle against an unchanged world a no-op.
package reconciler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentstation/automator/pkg/changes"
	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
)

// branchUnsafe matches the characters of a timestamp replaced in branch names.
var branchUnsafe = regexp.MustCompile(`[:.\s]`)

// Reconciler drives the branch and pull request lifecycle.
type Reconciler interface {
	// Reconcile brings the GitOps repository in line with result.
	Reconcile(ctx context.Context, result *changes.Result) (*Outcome, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	platform platform.Platform
	repo     platform.Repo
	opts     *options
}

// New creates a Reconciler for the GitOps repository repo.
func New(p platform.Platform, repo platform.Repo, opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{platform: p, repo: repo, opts: options}, nil
}

// branchPrefix is the prefix shared by every branch this instance owns.
func (r *reconciler) branchPrefix() string {
	return r.opts.id + "-"
}

// Reconcile runs one cycle of the state machine.
func (r *reconciler) Reconcile(ctx context.Context, result *changes.Result) (*Outcome, error) {
	logger := logging.FromContext(ctx).With().Str("gitops_repo", r.repo.String()).Logger()
	ctx = logging.WithLogger(ctx, &logger)

	// Step 1: nothing to do without transitions
	if !result.HasChanges() {
		logger.Info().Msg("No changes found in any of the source repos")
		return &Outcome{State: NoChange}, nil
	}

	// Step 2: evaluate the open pull requests
	outcome := &Outcome{State: Evaluating}
	body, err := r.opts.body(result)
	if err != nil {
		return nil, err
	}

	pulls, err := r.openPulls(ctx)
	if err != nil {
		return nil, err
	}
	if pulls, err = r.enforceLimit(ctx, pulls, outcome); err != nil {
		return nil, err
	}

	// Step 3: reuse the newest pull request or retire and create
	if len(pulls) > 0 && !r.opts.alwaysCreateNew {
		outcome.Path = ReuseExisting
		err = r.reuse(ctx, pulls[len(pulls)-1], body, result, outcome)
	} else {
		outcome.Path = RetireAndCreate
		err = r.create(ctx, body, result, outcome)
	}
	if err != nil {
		return nil, err
	}

	outcome.State = Converged
	logger.Info().
		Stringer("path", outcome.Path).
		Int("written", len(outcome.WrittenFiles)).
		Int("closed", len(outcome.ClosedPulls)).
		Msg("Reconciliation converged")
	return outcome, nil
}

// openPulls lists the open automator pull requests, oldest first.
func (r *reconciler) openPulls(ctx context.Context) ([]platform.PullRequest, error) {
	pulls, err := r.platform.ListOpenPulls(ctx, r.repo, r.branchPrefix())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pulls, func(i, j int) bool {
		return pulls[i].CreatedAt.Before(pulls[j].CreatedAt)
	})
	logging.FromContext(ctx).Debug().Int("count", len(pulls)).Msg("Found open automator pull requests")
	return pulls, nil
}

// enforceLimit closes the oldest pull requests beyond the configured limit
// and deletes their branches. It returns the pull requests left open.
func (r *reconciler) enforceLimit(ctx context.Context, pulls []platform.PullRequest, outcome *Outcome) ([]platform.PullRequest, error) {
	if r.opts.openLimit == nil || len(pulls) <= *r.opts.openLimit {
		return pulls, nil
	}
	logger := logging.FromContext(ctx)
	excess := len(pulls) - *r.opts.openLimit

	for _, pr := range pulls[:excess] {
		if err := r.platform.ClosePull(ctx, r.repo, pr.Number); err != nil {
			return nil, err
		}
		logger.Info().Int("pull", pr.Number).Str("branch", pr.HeadRef).Msg("Closed pull request over the limit")
		outcome.ClosedPulls = append(outcome.ClosedPulls, pr.Number)
		r.deleteBranch(ctx, pr.HeadRef, outcome)
	}
	return pulls[excess:], nil
}

// deleteBranch deletes a branch; failures are logged and retried next cycle.
func (r *reconciler) deleteBranch(ctx context.Context, name string, outcome *Outcome) {
	if err := r.platform.DeleteBranch(ctx, r.repo, name); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("branch", name).Msg("Failed to delete branch")
		return
	}
	outcome.DeletedBranches = append(outcome.DeletedBranches, name)
}

// reuse brings an open pull request up to date with its base and the result.
func (r *reconciler) reuse(ctx context.Context, pr platform.PullRequest, body string, result *changes.Result, outcome *Outcome) error {
	logger := logging.FromContext(ctx).With().Int("pull", pr.Number).Str("branch", pr.HeadRef).Logger()
	logger.Info().Msg("Reusing open pull request")

	behind, err := r.platform.CompareCommits(ctx, r.repo, pr.HeadRef, pr.BaseRef)
	if err != nil {
		return err
	}
	if len(behind) > 0 {
		message := fmt.Sprintf("Merge %s into %s", pr.BaseRef, pr.HeadRef)
		if err := r.platform.MergeBranches(ctx, r.repo, pr.HeadRef, pr.BaseRef, message); err != nil {
			return err
		}
		logger.Info().Int("commits", len(behind)).Str("base", pr.BaseRef).Msg("Merged base branch into pull request")
	}

	if pr.Body != body {
		if err := r.platform.UpdatePullBody(ctx, r.repo, pr.Number, body); err != nil {
			return err
		}
		pr.Body = body
		logger.Info().Msg("Updated pull request description")
	}

	writes, skipped, err := r.plan(ctx, pr.HeadRef, result.Transitions())
	if err != nil {
		return err
	}
	outcome.SkippedFiles = skipped
	outcome.Branch = pr.HeadRef
	outcome.PullRequest = &pr
	outcome.WrittenFiles, err = r.apply(ctx, pr.HeadRef, writes)
	return err
}

// create cuts a new branch from the default branch and opens a pull request.
func (r *reconciler) create(ctx context.Context, body string, result *changes.Result, outcome *Outcome) error {
	logger := logging.FromContext(ctx)

	base, err := r.platform.GetDefaultBranch(ctx, r.repo)
	if err != nil {
		return err
	}
	head, err := r.platform.GetRef(ctx, r.repo, "heads/"+base)
	if err != nil {
		return err
	}
	logger.Debug().Str("base", base).Str("sha", head).Msg("Resolved default branch")

	writes, skipped, err := r.plan(ctx, base, result.Transitions())
	if err != nil {
		return err
	}
	outcome.SkippedFiles = skipped
	if len(writes) == 0 {
		logger.Info().Str("base", base).Msg("Default branch already carries every version, not opening a pull request")
		return nil
	}

	if r.opts.cleanupBranches {
		if err := r.cleanup(ctx, outcome); err != nil {
			return err
		}
	}

	branch := r.branchName()
	if err := r.platform.CreateBranch(ctx, r.repo, branch, head); err != nil {
		return err
	}
	logger.Info().Str("branch", branch).Str("sha", head).Msg("Created branch")
	outcome.Branch = branch

	if outcome.WrittenFiles, err = r.apply(ctx, branch, writes); err != nil {
		return err
	}

	pr, err := r.platform.CreatePull(ctx, r.repo, platform.NewPullRequest{
		Title: r.opts.title,
		Body:  body,
		Head:  branch,
		Base:  base,
	})
	if err != nil {
		return err
	}
	outcome.PullRequest = pr
	outcome.Created = true
	logger.Info().Int("pull", pr.Number).Str("url", pr.URL).Msg("Created pull request")

	return r.decorate(ctx, pr)
}

// decorate attaches labels, the comment and auto-merge to a new pull request.
func (r *reconciler) decorate(ctx context.Context, pr *platform.PullRequest) error {
	if len(r.opts.labels) > 0 {
		if err := r.platform.AddLabels(ctx, r.repo, pr.Number, r.opts.labels); err != nil {
			return err
		}
	}
	if r.opts.comment != "" {
		if err := r.platform.CreateComment(ctx, r.repo, pr.Number, r.opts.comment); err != nil {
			return err
		}
	}
	if r.opts.mergeMethod != "" {
		if err := r.platform.EnableAutoMerge(ctx, r.repo, *pr, r.opts.mergeMethod); err != nil {
			return err
		}
		logging.FromContext(ctx).Info().Int("pull", pr.Number).Str("method", string(r.opts.mergeMethod)).Msg("Enabled auto-merge")
	}
	return nil
}

// cleanup deletes every branch carrying the instance prefix.
func (r *reconciler) cleanup(ctx context.Context, outcome *Outcome) error {
	branches, err := r.platform.ListBranches(ctx, r.repo)
	if err != nil {
		return err
	}
	prefix := r.branchPrefix()
	for _, name := range branches {
		if strings.HasPrefix(name, prefix) {
			r.deleteBranch(ctx, name, outcome)
		}
	}
	return nil
}

// branchName returns "<id>-<UTC ISO 8601 timestamp>" with ':', '.' and
// whitespace replaced by '-'.
func (r *reconciler) branchName() string {
	stamp := r.opts.now().UTC().Format(constants.TimeFormatBranch)
	return r.branchPrefix() + branchUnsafe.ReplaceAllString(stamp, "-")
}

// fileUpdate builds the platform request for one planned write.
func (r *reconciler) fileUpdate(branch string, w fileWrite) platform.FileUpdate {
	return platform.FileUpdate{
		Path:    w.path,
		Branch:  branch,
		Message: commitMessage(r.opts.title, w.path),
		Content: w.content,
		Sha:     w.sha,
		Author:  r.opts.author,
	}
}

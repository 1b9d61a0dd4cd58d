package reconciler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/automator/internal/utils/ptr"
	"github.com/agentstation/automator/pkg/changes"
	pkgerrors "github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/locator"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/platform/platformtest"
	"github.com/agentstation/automator/pkg/reconciler"
	"github.com/agentstation/automator/pkg/resolver"
)

const (
	gitops     = "acme/gitops"
	apiFile    = "deploy/api.yaml"
	apiContent = "image: registry/api:v1.0.0\n"
	prefix     = "gitops-pr-automator-"
)

var (
	semver = regexp.MustCompile(`(?m)v\d+\.\d+\.\d+`)
	fixed  = time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
)

func transition(path, content, from, to string) resolver.Transition {
	return resolver.Transition{
		ExistingVersion: from,
		NewVersion:      to,
		File: locator.TrackedFile{
			Path:    path,
			Content: content,
			Pattern: semver,
			Version: from,
		},
	}
}

func resultWith(transitions ...resolver.Transition) *changes.Result {
	result := &changes.Result{}
	result.Add(changes.RepoChanges{SourceRepo: "acme/api", CurrentVersion: "v1.2.0", Transitions: transitions})
	return result
}

func apiResult() *changes.Result {
	return resultWith(transition(apiFile, apiContent, "v1.0.0", "v1.2.0"))
}

func newFake(t *testing.T) (*platformtest.Fake, platform.Repo) {
	t.Helper()
	fake := platformtest.New()
	fake.Repo(gitops, "main").SetBranch("main", "base-sha", map[string]string{apiFile: apiContent})
	repo, err := platform.ParseRepo(gitops)
	require.NoError(t, err)
	return fake, repo
}

func newReconciler(t *testing.T, fake *platformtest.Fake, repo platform.Repo, opts ...reconciler.Option) reconciler.Reconciler {
	t.Helper()
	opts = append([]reconciler.Option{
		reconciler.WithClock(func() time.Time { return fixed }),
		reconciler.WithBodyRenderer(func(r *changes.Result) (string, error) {
			return fmt.Sprintf("body for %d transitions", r.TransitionCount()), nil
		}),
	}, opts...)
	r, err := reconciler.New(fake, repo, opts...)
	require.NoError(t, err)
	return r
}

func addPulls(fake *platformtest.Fake, n int) {
	for i := 1; i <= n; i++ {
		fake.AddPull(gitops, platform.PullRequest{
			Number:    i,
			HeadRef:   fmt.Sprintf("%sold-%d", prefix, i),
			Body:      "stale",
			CreatedAt: fixed.Add(-time.Duration(n-i+1) * time.Hour),
		})
	}
}

func TestNoChangeMakesNoCalls(t *testing.T) {
	fake, repo := newFake(t)
	r := newReconciler(t, fake, repo)

	outcome, err := r.Reconcile(context.Background(), &changes.Result{})
	require.NoError(t, err)
	assert.Equal(t, reconciler.NoChange, outcome.State)
	assert.Empty(t, fake.Calls())
	assert.False(t, outcome.Changed())
}

func TestCreatePullRequest(t *testing.T) {
	fake, repo := newFake(t)
	author := &platform.CommitAuthor{Name: "bot", Email: "bot@example.com"}
	r := newReconciler(t, fake, repo,
		reconciler.WithTitle("Deploy: bump"),
		reconciler.WithLabels("gitops", "automated"),
		reconciler.WithComment("/deploy staging"),
		reconciler.WithAutoMerge(platform.MergeMethodSquash),
		reconciler.WithCommitAuthor(author),
	)

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)

	branch := prefix + "2024-05-06T07-08-09-123Z"
	assert.Equal(t, reconciler.Converged, outcome.State)
	assert.Equal(t, reconciler.RetireAndCreate, outcome.Path)
	assert.True(t, outcome.Created)
	assert.Equal(t, branch, outcome.Branch)
	assert.Equal(t, []string{apiFile}, outcome.WrittenFiles)
	require.NotNil(t, outcome.PullRequest)
	assert.Equal(t, 1, outcome.PullRequest.Number)
	assert.Equal(t, "https://github.com/acme/gitops/pull/1", outcome.PullRequest.URL)
	assert.Equal(t, "Deploy: bump", outcome.PullRequest.Title)
	assert.Equal(t, "body for 1 transitions", outcome.PullRequest.Body)
	assert.Equal(t, "main", outcome.PullRequest.BaseRef)

	content, ok := fake.File(gitops, branch, apiFile)
	require.True(t, ok)
	assert.Equal(t, "image: registry/api:v1.2.0\n", content)
	main, _ := fake.File(gitops, "main", apiFile)
	assert.Equal(t, apiContent, main, "default branch must not change")

	state := fake.Repo(gitops, "main")
	assert.Equal(t, []string{"gitops", "automated"}, state.Labels[1])
	assert.Equal(t, []string{"/deploy staging"}, state.Comments[1])
	assert.Equal(t, platform.MergeMethodSquash, state.AutoMerge[1])

	var methods []string
	for _, c := range fake.Writes() {
		methods = append(methods, c.Method)
	}
	assert.Equal(t, []string{"CreateBranch", "PutFileContent", "CreatePull", "AddLabels", "CreateComment", "EnableAutoMerge"}, methods)
}

func TestCreateWithoutDecorations(t *testing.T) {
	fake, repo := newFake(t)
	r := newReconciler(t, fake, repo)

	_, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Zero(t, fake.CallCount("AddLabels"))
	assert.Zero(t, fake.CallCount("CreateComment"))
	assert.Zero(t, fake.CallCount("EnableAutoMerge"))
}

func TestSecondRunIsNoOp(t *testing.T) {
	fake, repo := newFake(t)
	r := newReconciler(t, fake, repo, reconciler.WithLabels("gitops"))
	ctx := context.Background()

	first, err := r.Reconcile(ctx, apiResult())
	require.NoError(t, err)
	require.True(t, first.Created)

	fake.ResetCalls()
	second, err := r.Reconcile(ctx, apiResult())
	require.NoError(t, err)
	assert.Equal(t, reconciler.ReuseExisting, second.Path)
	assert.Equal(t, first.PullRequest.Number, second.PullRequest.Number)
	assert.Empty(t, second.WrittenFiles)
	assert.Equal(t, []string{apiFile}, second.SkippedFiles)
	assert.Empty(t, fake.Writes())
	assert.False(t, second.Changed())
}

func TestCreateShortCircuitsWhenDefaultBranchIsCurrent(t *testing.T) {
	fake, repo := newFake(t)
	// Same content as rendered, minus the trailing newline.
	fake.Repo(gitops, "main").SetBranch("main", "base-sha", map[string]string{apiFile: "image: registry/api:v1.2.0"})
	r := newReconciler(t, fake, repo)

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Equal(t, reconciler.Converged, outcome.State)
	assert.Nil(t, outcome.PullRequest)
	assert.Equal(t, []string{apiFile}, outcome.SkippedFiles)
	assert.Empty(t, fake.Writes())
}

func TestReuseExistingPullRequest(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 1)
	head := prefix + "old-1"
	state := fake.Repo(gitops, "main")
	state.Compare[head+"...main"] = []platform.Commit{{Sha: "drift"}}
	r := newReconciler(t, fake, repo, reconciler.WithLabels("never-on-reuse"))

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)

	assert.Equal(t, reconciler.ReuseExisting, outcome.Path)
	assert.False(t, outcome.Created)
	assert.Equal(t, head, outcome.Branch)
	assert.Equal(t, "body for 1 transitions", state.Pulls[0].Body)
	content, _ := fake.File(gitops, head, apiFile)
	assert.Equal(t, "image: registry/api:v1.2.0\n", content)

	assert.Equal(t, 1, fake.CallCount("MergeBranches"))
	assert.Zero(t, fake.CallCount("CreatePull"))
	assert.Zero(t, fake.CallCount("CreateBranch"))
	assert.Zero(t, fake.CallCount("AddLabels"))

	for _, c := range fake.Calls() {
		if c.Method == "MergeBranches" {
			assert.Equal(t, []string{head, "main"}, c.Args, "base is merged into the pull request head")
		}
	}
}

func TestReuseSkipsMergeWhenUpToDate(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 1)
	r := newReconciler(t, fake, repo)

	_, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Zero(t, fake.CallCount("MergeBranches"))
}

func TestOpenLimitClosesOldest(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 5)
	r := newReconciler(t, fake, repo, reconciler.WithOpenLimit(ptr.Int(2)))

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, outcome.ClosedPulls)
	assert.Equal(t, []string{prefix + "old-1", prefix + "old-2", prefix + "old-3"}, outcome.DeletedBranches)
	state := fake.Repo(gitops, "main")
	assert.Equal(t, []int{1, 2, 3}, state.Closed)
	require.Len(t, state.Pulls, 2)
	assert.Equal(t, 4, state.Pulls[0].Number)
	assert.Equal(t, "stale", state.Pulls[0].Body, "remaining older pull request is untouched")

	assert.Equal(t, reconciler.ReuseExisting, outcome.Path)
	assert.Equal(t, 5, outcome.PullRequest.Number)
	for _, name := range []string{"old-4", "old-5"} {
		_, ok := state.Branches[prefix+name]
		assert.True(t, ok, name)
	}
}

func TestOpenLimitOrdersByCreation(t *testing.T) {
	fake, repo := newFake(t)
	fake.AddPull(gitops, platform.PullRequest{Number: 1, HeadRef: prefix + "newer", CreatedAt: fixed})
	fake.AddPull(gitops, platform.PullRequest{Number: 2, HeadRef: prefix + "older", CreatedAt: fixed.Add(-time.Hour)})
	r := newReconciler(t, fake, repo, reconciler.WithOpenLimit(ptr.Int(1)))

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, outcome.ClosedPulls)
	assert.Equal(t, 1, outcome.PullRequest.Number)
}

func TestOpenLimitZeroCreatesNew(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 2)
	r := newReconciler(t, fake, repo, reconciler.WithOpenLimit(ptr.Int(0)))

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, outcome.ClosedPulls)
	assert.Equal(t, reconciler.RetireAndCreate, outcome.Path)
	assert.True(t, outcome.Created)
}

func TestBranchDeletionFailureIsNotFatal(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 3)
	fake.FailOn["DeleteBranch"] = &pkgerrors.APIError{Platform: "fake", StatusCode: http.StatusForbidden, Message: "protected"}
	r := newReconciler(t, fake, repo, reconciler.WithOpenLimit(ptr.Int(1)))
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	outcome, err := r.Reconcile(ctx, apiResult())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, outcome.ClosedPulls)
	assert.Empty(t, outcome.DeletedBranches)
	assert.Equal(t, 2, fake.CallCount("DeleteBranch"))
	assert.Equal(t, reconciler.Converged, outcome.State)

	tl.AssertContains(t, `"message":"Failed to delete branch"`)
	tl.AssertContains(t, `"branch":"`+prefix+`old-1"`)
	tl.AssertContains(t, `"gitops_repo":"acme/gitops"`)
}

func TestAlwaysCreateNewWithCleanup(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 1)
	state := fake.Repo(gitops, "main")
	state.SetBranch("feature/unrelated", "x", nil)
	r := newReconciler(t, fake, repo,
		reconciler.WithAlwaysCreateNew(true),
		reconciler.WithCleanupBranches(true),
	)

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Equal(t, reconciler.RetireAndCreate, outcome.Path)
	assert.Equal(t, []string{prefix + "old-1"}, outcome.DeletedBranches)
	assert.True(t, outcome.Created)
	assert.Equal(t, 2, outcome.PullRequest.Number)

	_, ok := state.Branches["feature/unrelated"]
	assert.True(t, ok)
	_, ok = state.Branches[outcome.Branch]
	assert.True(t, ok)
}

func TestNewFileIsCreated(t *testing.T) {
	fake, repo := newFake(t)
	r := newReconciler(t, fake, repo)
	result := resultWith(transition("deploy/new.yaml", "tag: v0.1.0\n", "v0.1.0", "v0.2.0"))

	outcome, err := r.Reconcile(context.Background(), result)
	require.NoError(t, err)
	content, ok := fake.File(gitops, outcome.Branch, "deploy/new.yaml")
	require.True(t, ok)
	assert.Equal(t, "tag: v0.2.0\n", content)
}

func TestSamePathRewrittenOnce(t *testing.T) {
	fake, repo := newFake(t)
	content := "a: v1.0.0\nb: v1.1.0\n"
	fake.Repo(gitops, "main").SetBranch("main", "base-sha", map[string]string{"multi.yaml": content})
	r := newReconciler(t, fake, repo)
	result := resultWith(
		transition("multi.yaml", content, "v1.0.0", "v2.0.0"),
		transition("multi.yaml", content, "v1.1.0", "v2.0.0"),
	)

	outcome, err := r.Reconcile(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, []string{"multi.yaml"}, outcome.WrittenFiles)
	assert.Equal(t, 1, fake.CallCount("PutFileContent"))
	got, _ := fake.File(gitops, outcome.Branch, "multi.yaml")
	assert.Equal(t, "a: v2.0.0\nb: v2.0.0\n", got)
}

func TestShaPatternIsRewritten(t *testing.T) {
	fake, repo := newFake(t)
	content := "tag: v1.0.0\nrevision: aaaaaaaa\n"
	fake.Repo(gitops, "main").SetBranch("main", "base-sha", map[string]string{"app.yaml": content})
	r := newReconciler(t, fake, repo)

	tr := transition("app.yaml", content, "v1.0.0", "v1.1.0")
	tr.File.ShaPattern = regexp.MustCompile(`(?m)revision: ([0-9a-f]{8})`)
	tr.NewSha = "bbbbbbbb"

	outcome, err := r.Reconcile(context.Background(), resultWith(tr))
	require.NoError(t, err)
	got, _ := fake.File(gitops, outcome.Branch, "app.yaml")
	assert.Equal(t, "tag: v1.1.0\nrevision: bbbbbbbb\n", got)
}

func TestPlatformErrorsPropagate(t *testing.T) {
	for _, method := range []string{"ListOpenPulls", "GetDefaultBranch", "GetFileContent", "CreateBranch", "PutFileContent", "CreatePull", "EnableAutoMerge"} {
		t.Run(method, func(t *testing.T) {
			fake, repo := newFake(t)
			boom := errors.New(method + " failed")
			fake.FailOn[method] = boom
			r := newReconciler(t, fake, repo, reconciler.WithAutoMerge(platform.MergeMethodMerge))

			_, err := r.Reconcile(context.Background(), apiResult())
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestClosePullErrorPropagates(t *testing.T) {
	fake, repo := newFake(t)
	addPulls(fake, 2)
	boom := errors.New("forbidden")
	fake.FailOn["ClosePull"] = boom
	r := newReconciler(t, fake, repo, reconciler.WithOpenLimit(ptr.Int(1)))

	_, err := r.Reconcile(context.Background(), apiResult())
	assert.ErrorIs(t, err, boom)
}

func TestOptionsValidation(t *testing.T) {
	fake, repo := newFake(t)
	for name, opt := range map[string]reconciler.Option{
		"empty id":       reconciler.WithInstanceID(" "),
		"negative limit": reconciler.WithOpenLimit(ptr.Int(-1)),
		"merge method":   reconciler.WithAutoMerge("octopus"),
		"nil clock":      reconciler.WithClock(nil),
		"nil renderer":   reconciler.WithBodyRenderer(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := reconciler.New(fake, repo, opt)
			assert.True(t, pkgerrors.IsValidationError(err))
		})
	}
}

func TestInstanceIDPrefixesBranches(t *testing.T) {
	fake, repo := newFake(t)
	fake.AddPull(gitops, platform.PullRequest{HeadRef: "other-bot-2024", CreatedAt: fixed})
	r := newReconciler(t, fake, repo, reconciler.WithInstanceID("deploy-bot"))

	outcome, err := r.Reconcile(context.Background(), apiResult())
	require.NoError(t, err)
	assert.Equal(t, reconciler.RetireAndCreate, outcome.Path)
	assert.Equal(t, "deploy-bot-2024-05-06T07-08-09-123Z", outcome.Branch)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "no-change", reconciler.NoChange.String())
	assert.Equal(t, "reuse-existing", reconciler.ReuseExisting.String())
	assert.Equal(t, "retire-and-create", reconciler.RetireAndCreate.String())
	assert.Equal(t, "converged", reconciler.Converged.String())
	assert.Equal(t, "unknown", reconciler.State(99).String())
}

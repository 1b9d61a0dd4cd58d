// Package platform defines the hosting-platform primitives the engine needs.
//
// The engine keeps no state of its own between cycles: branch refs, pull
// requests and file contents on the platform are re-read on every run.
// Implementations must return an error satisfying errors.IsNotFound when a
// requested file does not exist on the given ref.
package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/automator/pkg/errors"
)

// Repo identifies a repository as owner/name.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepo parses "owner/name".
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, errors.NewValidationError("repo", s, "must be in the form owner/name")
	}
	return Repo{Owner: owner, Name: name}, nil
}

// String returns owner/name.
func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// Ref is a git reference and the object it points at.
type Ref struct {
	Ref string // fully qualified, e.g. refs/tags/v1.2.3
	Sha string
}

// Commit is one entry of a compared commit range.
type Commit struct {
	Sha         string
	Message     string
	AuthorName  string
	AuthorLogin string
	AuthorDate  time.Time
	ParentCount int
	HTMLURL     string
}

// FileContent is a file as stored on a ref.
type FileContent struct {
	Path    string
	Sha     string // blob sha, required to update the file
	Content string // base64, possibly wrapped with newlines
}

// FileUpdate replaces the content of one file on a branch.
type FileUpdate struct {
	Path    string
	Branch  string
	Message string
	Content string // base64
	Sha     string // current blob sha, empty when creating
	Author  *CommitAuthor
}

// CommitAuthor overrides the author and committer of content writes.
type CommitAuthor struct {
	Name  string
	Email string
}

// PullRequest is an open or newly created pull request.
type PullRequest struct {
	ID        int64
	NodeID    string
	Number    int
	URL       string
	Title     string
	Body      string
	HeadRef   string
	BaseRef   string
	CreatedAt time.Time
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// MergeMethod is the platform auto-merge strategy.
type MergeMethod string

// Supported merge methods.
const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

// ParseMergeMethod validates a configured merge method; empty means disabled.
func ParseMergeMethod(s string) (MergeMethod, error) {
	switch m := MergeMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MergeMethodMerge, MergeMethodSquash, MergeMethodRebase:
		return m, nil
	default:
		return "", errors.NewValidationError("autoMergeMethod", s, fmt.Sprintf("unsupported merge method %q", s))
	}
}

// SourceReader reads release information from source repositories.
type SourceReader interface {
	// GetRef returns the sha a ref such as "heads/main" points at.
	GetRef(ctx context.Context, repo Repo, ref string) (string, error)
	// ListMatchingRefs lists refs under a prefix such as "tags".
	ListMatchingRefs(ctx context.Context, repo Repo, prefix string) ([]Ref, error)
	// CompareCommits lists the commits reachable from head and not from base,
	// following pagination.
	CompareCommits(ctx context.Context, repo Repo, base, head string) ([]Commit, error)
}

// Platform is the full set of operations run against the GitOps repository.
type Platform interface {
	SourceReader

	GetDefaultBranch(ctx context.Context, repo Repo) (string, error)
	CreateBranch(ctx context.Context, repo Repo, name, sha string) error
	ListBranches(ctx context.Context, repo Repo) ([]string, error)
	DeleteBranch(ctx context.Context, repo Repo, name string) error
	MergeBranches(ctx context.Context, repo Repo, base, head, message string) error

	GetFileContent(ctx context.Context, repo Repo, path, ref string) (*FileContent, error)
	PutFileContent(ctx context.Context, repo Repo, update FileUpdate) error

	ListOpenPulls(ctx context.Context, repo Repo, headPrefix string) ([]PullRequest, error)
	CreatePull(ctx context.Context, repo Repo, pull NewPullRequest) (*PullRequest, error)
	UpdatePullBody(ctx context.Context, repo Repo, number int, body string) error
	ClosePull(ctx context.Context, repo Repo, number int) error
	AddLabels(ctx context.Context, repo Repo, number int, labels []string) error
	CreateComment(ctx context.Context, repo Repo, number int, body string) error
	EnableAutoMerge(ctx context.Context, repo Repo, pull PullRequest, method MergeMethod) error
}

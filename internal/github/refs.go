package github

import (
	"context"
	"net/http"

	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
)

// GetRef implements platform.SourceReader.
func (c *Client) GetRef(ctx context.Context, repo platform.Repo, ref string) (string, error) {
	var out gitRef
	if err := c.call(ctx, http.MethodGet, c.repoURL(repo, "git/ref", ref), nil, &out); err != nil {
		return "", err
	}
	return out.Object.Sha, nil
}

// ListMatchingRefs implements platform.SourceReader.
func (c *Client) ListMatchingRefs(ctx context.Context, repo platform.Repo, prefix string) ([]platform.Ref, error) {
	u := withQuery(c.repoURL(repo, "git/matching-refs", prefix), pageQuery())
	refs, err := paginate(ctx, c, u, func(page *[]gitRef) []gitRef { return *page })
	if err != nil {
		return nil, err
	}
	out := make([]platform.Ref, 0, len(refs))
	for _, r := range refs {
		out = append(out, platform.Ref{Ref: r.Ref, Sha: r.Object.Sha})
	}
	return out, nil
}

// CompareCommits implements platform.SourceReader.
func (c *Client) CompareCommits(ctx context.Context, repo platform.Repo, base, head string) ([]platform.Commit, error) {
	u := withQuery(c.repoURL(repo, "compare", base+"..."+head), pageQuery())
	commits, err := paginate(ctx, c, u, func(page *comparison) []commit { return page.Commits })
	if err != nil {
		return nil, err
	}
	out := make([]platform.Commit, 0, len(commits))
	for _, cm := range commits {
		out = append(out, cm.toPlatform())
	}
	logging.FromContext(ctx).Trace().Str("base", base).Str("head", head).Int("commits", len(out)).Msg("Compared commits")
	return out, nil
}

// GetDefaultBranch implements platform.Platform.
func (c *Client) GetDefaultBranch(ctx context.Context, repo platform.Repo) (string, error) {
	var out repository
	if err := c.call(ctx, http.MethodGet, c.repoURL(repo), nil, &out); err != nil {
		return "", err
	}
	return out.DefaultBranch, nil
}

// CreateBranch implements platform.Platform.
func (c *Client) CreateBranch(ctx context.Context, repo platform.Repo, name, sha string) error {
	body := map[string]string{"ref": "refs/heads/" + name, "sha": sha}
	return c.call(ctx, http.MethodPost, c.repoURL(repo, "git/refs"), body, nil)
}

// ListBranches implements platform.Platform.
func (c *Client) ListBranches(ctx context.Context, repo platform.Repo) ([]string, error) {
	u := withQuery(c.repoURL(repo, "branches"), pageQuery())
	branches, err := paginate(ctx, c, u, func(page *[]branch) []branch { return *page })
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	return names, nil
}

// DeleteBranch implements platform.Platform.
func (c *Client) DeleteBranch(ctx context.Context, repo platform.Repo, name string) error {
	return c.call(ctx, http.MethodDelete, c.repoURL(repo, "git/refs/heads", name), nil, nil)
}

// MergeBranches implements platform.Platform. Nothing to merge is not an error.
func (c *Client) MergeBranches(ctx context.Context, repo platform.Repo, base, head, message string) error {
	body := map[string]string{"base": base, "head": head}
	if message != "" {
		body["commit_message"] = message
	}
	return c.call(ctx, http.MethodPost, c.repoURL(repo, "merges"), body, nil)
}

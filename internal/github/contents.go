package github

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
)

// GetFileContent implements platform.Platform.
func (c *Client) GetFileContent(ctx context.Context, repo platform.Repo, path, ref string) (*platform.FileContent, error) {
	u := c.repoURL(repo, "contents", path)
	if ref != "" {
		u = withQuery(u, url.Values{"ref": []string{ref}})
	}
	var out content
	if err := c.call(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out.Type != "" && out.Type != "file" {
		return nil, errors.NewValidationError("path", path, "is a "+out.Type+", not a file")
	}
	return &platform.FileContent{Path: out.Path, Sha: out.Sha, Content: out.Content}, nil
}

// PutFileContent implements platform.Platform.
func (c *Client) PutFileContent(ctx context.Context, repo platform.Repo, update platform.FileUpdate) error {
	body := contentUpdate{
		Message: update.Message,
		Content: update.Content,
		Branch:  update.Branch,
		Sha:     update.Sha,
	}
	if a := update.Author; a != nil {
		body.Author = &identity{Name: a.Name, Email: a.Email}
		body.Committer = body.Author
	}
	return c.call(ctx, http.MethodPut, c.repoURL(repo, "contents", update.Path), body, nil)
}

package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentstation/automator/pkg/platform"
)

// ListOpenPulls implements platform.Platform.
func (c *Client) ListOpenPulls(ctx context.Context, repo platform.Repo, headPrefix string) ([]platform.PullRequest, error) {
	query := pageQuery()
	query.Set("state", "open")
	pulls, err := paginate(ctx, c, withQuery(c.repoURL(repo, "pulls"), query), func(page *[]pull) []pull { return *page })
	if err != nil {
		return nil, err
	}
	var out []platform.PullRequest
	for _, p := range pulls {
		if strings.HasPrefix(p.Head.Ref, headPrefix) && p.fromRepo(repo) {
			out = append(out, p.toPlatform())
		}
	}
	return out, nil
}

// CreatePull implements platform.Platform.
func (c *Client) CreatePull(ctx context.Context, repo platform.Repo, req platform.NewPullRequest) (*platform.PullRequest, error) {
	body := map[string]string{"title": req.Title, "body": req.Body, "head": req.Head, "base": req.Base}
	var out pull
	if err := c.call(ctx, http.MethodPost, c.repoURL(repo, "pulls"), body, &out); err != nil {
		return nil, err
	}
	pr := out.toPlatform()
	return &pr, nil
}

// UpdatePullBody implements platform.Platform.
func (c *Client) UpdatePullBody(ctx context.Context, repo platform.Repo, number int, body string) error {
	return c.call(ctx, http.MethodPatch, c.repoURL(repo, "pulls", fmt.Sprint(number)), map[string]string{"body": body}, nil)
}

// ClosePull implements platform.Platform.
func (c *Client) ClosePull(ctx context.Context, repo platform.Repo, number int) error {
	return c.call(ctx, http.MethodPatch, c.repoURL(repo, "pulls", fmt.Sprint(number)), map[string]string{"state": "closed"}, nil)
}

// AddLabels implements platform.Platform.
func (c *Client) AddLabels(ctx context.Context, repo platform.Repo, number int, labels []string) error {
	body := map[string][]string{"labels": labels}
	return c.call(ctx, http.MethodPost, c.repoURL(repo, "issues", fmt.Sprint(number), "labels"), body, nil)
}

// CreateComment implements platform.Platform.
func (c *Client) CreateComment(ctx context.Context, repo platform.Repo, number int, body string) error {
	return c.call(ctx, http.MethodPost, c.repoURL(repo, "issues", fmt.Sprint(number), "comments"), map[string]string{"body": body}, nil)
}

package github

import (
	"context"
	"net/http"
	"strings"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
)

const enableAutoMergeMutation = `mutation($pullRequestId: ID!, $mergeMethod: PullRequestMergeMethod!) {
  enablePullRequestAutoMerge(input: {pullRequestId: $pullRequestId, mergeMethod: $mergeMethod}) {
    pullRequest { number }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Errors []struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"errors"`
}

// EnableAutoMerge implements platform.Platform through the GraphQL API; the
// REST API has no equivalent.
func (c *Client) EnableAutoMerge(ctx context.Context, repo platform.Repo, pr platform.PullRequest, method platform.MergeMethod) error {
	if pr.NodeID == "" {
		return errors.NewValidationError("pull_request", pr.Number, "node id is required to enable auto-merge")
	}
	req := graphqlRequest{
		Query: enableAutoMergeMutation,
		Variables: map[string]any{
			"pullRequestId": pr.NodeID,
			"mergeMethod":   strings.ToUpper(string(method)),
		},
	}
	var out graphqlResponse
	if err := c.call(ctx, http.MethodPost, c.graphqlURL(), req, &out); err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		messages := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			messages[i] = e.Message
		}
		return &errors.APIError{
			Platform:   "github",
			StatusCode: http.StatusOK,
			Message:    strings.Join(messages, "; "),
			Method:     http.MethodPost,
			Endpoint:   "/graphql enablePullRequestAutoMerge",
		}
	}
	return nil
}

// Package github implements platform.Platform against the GitHub REST and
// GraphQL APIs, including GitHub Enterprise Server.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/automator/internal/transport"
	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
)

// Client talks to one GitHub API endpoint with one token.
type Client struct {
	http    *transport.Client
	baseURL string
}

var _ platform.Platform = (*Client)(nil)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise Server or a test server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// New creates a Client authenticating with token.
func New(token string, opts ...Option) *Client {
	o := &options{baseURL: constants.GitHubAPIURL}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{
		http: transport.New(&transport.BearerAuth{}, token,
			transport.WithHTTPClient(o.httpClient),
			transport.WithHeader("Accept", "application/vnd.github+json"),
			transport.WithHeader("X-GitHub-Api-Version", constants.GitHubAPIVersion),
			transport.WithHeader("User-Agent", constants.UserAgent),
		),
		baseURL: strings.TrimSuffix(o.baseURL, "/"),
	}
}

// repoURL builds an API URL below /repos/{owner}/{name}. Segments are
// escaped individually so slashes inside them are kept.
func (c *Client) repoURL(repo platform.Repo, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(c.baseURL)
	sb.WriteString("/repos/")
	sb.WriteString(url.PathEscape(repo.Owner))
	sb.WriteByte('/')
	sb.WriteString(url.PathEscape(repo.Name))
	for _, segment := range segments {
		sb.WriteByte('/')
		sb.WriteString(escapePath(segment))
	}
	return sb.String()
}

// graphqlURL returns the GraphQL endpoint matching the REST base URL.
func (c *Client) graphqlURL() string {
	if base, ok := strings.CutSuffix(c.baseURL, "/api/v3"); ok {
		return base + "/api/graphql"
	}
	return c.baseURL + "/graphql"
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func withQuery(u string, query url.Values) string {
	if len(query) == 0 {
		return u
	}
	return u + "?" + query.Encode()
}

func pageQuery() url.Values {
	return url.Values{"per_page": []string{strconv.Itoa(constants.DefaultPageSize)}}
}

// call sends one request and decodes the response into target.
func (c *Client) call(ctx context.Context, method, u string, body, target any) error {
	resp, err := c.http.Do(ctx, method, u, body)
	if err != nil {
		return err
	}
	return transport.DecodeResponse(resp, target)
}

// paginate follows Link rel="next" headers and collects the items of every page.
func paginate[P any, T any](ctx context.Context, c *Client, u string, items func(*P) []T) ([]T, error) {
	var all []T
	for page := 0; u != ""; page++ {
		if page >= constants.MaxPages {
			logging.FromContext(ctx).Warn().Int("pages", page).Msg("Stopping pagination at page limit")
			break
		}
		resp, err := c.http.Get(ctx, u)
		if err != nil {
			return nil, err
		}
		next := transport.NextPage(resp)

		var doc P
		if err := transport.DecodeResponse(resp, &doc); err != nil {
			return nil, err
		}
		all = append(all, items(&doc)...)
		u = next
	}
	return all, nil
}

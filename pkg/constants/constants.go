// Package constants provides shared constants used throughout the automator codebase.
// This includes timeouts, limits, file permissions, and the defaults applied to
// configuration values that were left empty.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for a single HTTP request to the hosting platform
	DefaultHTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds cleanup work after a failed command
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// DefaultPageSize is the number of items requested per page from paginated endpoints
	DefaultPageSize = 100

	// MaxPages stops runaway pagination when a server keeps returning next links
	MaxPages = 1000

	// ShortShaLength is the number of characters shown for abbreviated commit SHAs
	ShortShaLength = 8
)

// Default values
const (
	// DefaultInstanceID is the branch prefix used when the configuration sets no id
	DefaultInstanceID = "gitops-pr-automator"

	// DefaultSourceRef is the ref read from a source repository when none is configured
	DefaultSourceRef = "heads/master"

	// DefaultTagPattern selects release tags when resolveTagsPattern is not configured
	DefaultTagPattern = `refs/tags/v\d+\.\d+\.\d+`

	// DefaultPullRequestTitle is used when pullRequest.title is empty
	DefaultPullRequestTitle = "GitOps: update versions"

	// TagsRefPrefix is the namespace queried for tags
	TagsRefPrefix = "tags"
)

// Path constants
const (
	// DefaultConfigPath is where the engine configuration is looked up
	DefaultConfigPath = ".github/gitops/gitops-pr-automator.config.yaml"
)

// Format constants
const (
	// TimeFormatBranch is the ISO 8601 layout used in new branch names (UTC, milliseconds)
	TimeFormatBranch = "2006-01-02T15:04:05.000Z"
)

// GitHub constants
const (
	// GitHubAPIURL is the public GitHub REST endpoint
	GitHubAPIURL = "https://api.github.com"

	// GitHubURL is the public GitHub web endpoint
	GitHubURL = "https://github.com"

	// GitHubAPIVersion is sent in the X-GitHub-Api-Version header
	GitHubAPIVersion = "2022-11-28"

	// UserAgent identifies the client to the hosting platform
	UserAgent = "gitops-pr-automator"
)

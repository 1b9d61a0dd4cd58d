// Package config holds the engine configuration: which source repositories
// are tracked, where their version markers live in the GitOps repository, how
// a new version is resolved and how the pull request is managed.
//
// Configuration files are YAML (the default) or TOML, selected by extension.
package config

import (
	"github.com/agentstation/automator/pkg/constants"
)

// Config is the root configuration document.
type Config struct {
	// ID is the engine instance identifier; it prefixes every branch the engine owns.
	ID string `yaml:"id,omitempty" toml:"id,omitempty"`

	// Regex and GithubShaRegex are defaults for release files that declare none.
	Regex          []string `yaml:"regex,omitempty" toml:"regex,omitempty"`
	GithubShaRegex []string `yaml:"githubShaRegex,omitempty" toml:"githubShaRegex,omitempty"`

	Versioning  Versioning   `yaml:"versioning" toml:"versioning"`
	PullRequest PullRequest  `yaml:"pullRequest" toml:"pullRequest"`
	SourceRepos []SourceRepo `yaml:"sourceRepos" toml:"sourceRepos"`
	Artifacts   Artifacts    `yaml:"artifacts" toml:"artifacts"`
}

// Versioning selects how the new version of a source repository is computed.
type Versioning struct {
	Scheme             string `yaml:"scheme,omitempty" toml:"scheme,omitempty"`
	ResolveTagsPattern string `yaml:"resolveTagsPattern,omitempty" toml:"resolveTagsPattern,omitempty"`
}

// PullRequest configures the pull request lifecycle.
type PullRequest struct {
	Title           string   `yaml:"title,omitempty" toml:"title,omitempty"`
	Labels          []string `yaml:"labels,omitempty" toml:"labels,omitempty"`
	AutoMergeMethod string   `yaml:"autoMergeMethod,omitempty" toml:"autoMergeMethod,omitempty"`
	Comment         string   `yaml:"comment,omitempty" toml:"comment,omitempty"`

	CommitHistory CommitHistory `yaml:"commitHistory" toml:"commitHistory"`

	CleanupExistingAutomatorBranches bool `yaml:"cleanupExistingAutomatorBranches,omitempty" toml:"cleanupExistingAutomatorBranches,omitempty"`
	AlwaysCreateNew                  bool `yaml:"alwaysCreateNew,omitempty" toml:"alwaysCreateNew,omitempty"`
	IncludeOwnerInDescription        bool `yaml:"includeOwnerInDescription,omitempty" toml:"includeOwnerInDescription,omitempty"`

	// LeaveOpenOnlyNumberOfPRs caps the open automator pull requests; nil means no cap.
	LeaveOpenOnlyNumberOfPRs *int `yaml:"leaveOpenOnlyNumberOfPRs" toml:"leaveOpenOnlyNumberOfPRs,omitempty"`

	CommitAuthor *CommitAuthor `yaml:"commitAuthor,omitempty" toml:"commitAuthor,omitempty"`
}

// CommitHistory controls how commits between versions are collected.
type CommitHistory struct {
	Disable          bool `yaml:"disable,omitempty" toml:"disable,omitempty"`
	OnlyMergeCommits bool `yaml:"onlyMergeCommits,omitempty" toml:"onlyMergeCommits,omitempty"`
}

// CommitAuthor sets the author of the file update commits.
type CommitAuthor struct {
	Name  string `yaml:"name" toml:"name"`
	Email string `yaml:"email" toml:"email"`
}

// SourceRepo is one tracked upstream repository.
type SourceRepo struct {
	Repo         string        `yaml:"repo" toml:"repo"`
	Ref          string        `yaml:"ref,omitempty" toml:"ref,omitempty"`
	ReleaseFiles []ReleaseFile `yaml:"releaseFiles" toml:"releaseFiles"`
}

// ReleaseFile declares files in the GitOps repository carrying a version marker.
type ReleaseFile struct {
	Path           string   `yaml:"path" toml:"path"`
	Ignore         string   `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
	Regex          []string `yaml:"regex,omitempty" toml:"regex,omitempty"`
	ID             string   `yaml:"id,omitempty" toml:"id,omitempty"`
	GithubShaRegex []string `yaml:"githubShaRegex,omitempty" toml:"githubShaRegex,omitempty"`
}

// Artifacts configures the summary files written after a cycle.
type Artifacts struct {
	SummaryMarkdownAs string `yaml:"summaryMarkdownAs,omitempty" toml:"summaryMarkdownAs,omitempty"`
	SummaryJSONAs     string `yaml:"summaryJsonAs,omitempty" toml:"summaryJsonAs,omitempty"`
}

// applyDefaults fills empty values with their defaults.
func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = constants.DefaultInstanceID
	}
	if c.PullRequest.Title == "" {
		c.PullRequest.Title = constants.DefaultPullRequestTitle
	}
	if c.Versioning.Scheme == "" {
		c.Versioning.Scheme = "commit-sha-only"
	}
	for i := range c.SourceRepos {
		if c.SourceRepos[i].Ref == "" {
			c.SourceRepos[i].Ref = constants.DefaultSourceRef
		}
	}
}

// Regexes returns the version patterns for a release file, falling back to the global list.
func (c *Config) Regexes(file ReleaseFile) []string {
	if len(file.Regex) > 0 {
		return file.Regex
	}
	return c.Regex
}

// ShaRegexes returns the sha patterns for a release file, falling back to the global list.
func (c *Config) ShaRegexes(file ReleaseFile) []string {
	if len(file.GithubShaRegex) > 0 {
		return file.GithubShaRegex
	}
	return c.GithubShaRegex
}

// SourceRepo returns the configuration of a source repository by name.
func (c *Config) SourceRepo(repo string) (SourceRepo, bool) {
	for _, src := range c.SourceRepos {
		if src.Repo == repo {
			return src, true
		}
	}
	return SourceRepo{}, false
}

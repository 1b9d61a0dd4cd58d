package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/resolver"
)

// Validate checks the configuration and returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, value any, format string, args ...any) {
		errs = append(errs, errors.NewValidationError(field, value, fmt.Sprintf(format, args...)))
	}

	if c.ID == "" {
		add("id", c.ID, "must not be empty")
	} else if strings.ContainsAny(c.ID, " \t\n~^:?*[\\") {
		add("id", c.ID, "must be usable as a branch name prefix")
	}

	if _, err := resolver.ParseScheme(c.Versioning.Scheme); err != nil {
		add("versioning.scheme", c.Versioning.Scheme, "%v", err)
	}
	if p := c.Versioning.ResolveTagsPattern; p != "" {
		if _, err := regexp.Compile(p); err != nil {
			add("versioning.resolveTagsPattern", p, "invalid regular expression: %v", err)
		}
	}

	if _, err := platform.ParseMergeMethod(c.PullRequest.AutoMergeMethod); err != nil {
		add("pullRequest.autoMergeMethod", c.PullRequest.AutoMergeMethod, "must be one of merge, squash, rebase")
	}
	if n := c.PullRequest.LeaveOpenOnlyNumberOfPRs; n != nil && *n < 0 {
		add("pullRequest.leaveOpenOnlyNumberOfPRs", *n, "must not be negative")
	}
	if a := c.PullRequest.CommitAuthor; a != nil && (a.Name == "" || a.Email == "") {
		add("pullRequest.commitAuthor", a, "name and email are both required")
	}

	if len(c.SourceRepos) == 0 {
		add("sourceRepos", nil, "at least one source repository is required")
	}
	seen := make(map[string]bool, len(c.SourceRepos))
	for i, src := range c.SourceRepos {
		field := fmt.Sprintf("sourceRepos[%d]", i)
		if _, err := platform.ParseRepo(src.Repo); err != nil {
			add(field+".repo", src.Repo, "must be in the form owner/name")
		} else if seen[src.Repo] {
			add(field+".repo", src.Repo, "is configured more than once")
		}
		seen[src.Repo] = true

		if len(src.ReleaseFiles) == 0 {
			add(field+".releaseFiles", nil, "at least one release file is required")
		}
		for j, file := range src.ReleaseFiles {
			fileField := fmt.Sprintf("%s.releaseFiles[%d]", field, j)
			if strings.TrimSpace(file.Path) == "" {
				add(fileField+".path", file.Path, "must not be empty")
			}
			regexes := c.Regexes(file)
			if len(regexes) == 0 {
				add(fileField+".regex", nil, "no regex configured for the file or globally")
			}
			for _, expr := range regexes {
				if _, err := regexp.Compile(expr); err != nil {
					add(fileField+".regex", expr, "invalid regular expression: %v", err)
				}
			}
			for _, expr := range c.ShaRegexes(file) {
				if _, err := regexp.Compile(expr); err != nil {
					add(fileField+".githubShaRegex", expr, "invalid regular expression: %v", err)
				}
			}
		}
	}

	return errors.Join(errs...)
}

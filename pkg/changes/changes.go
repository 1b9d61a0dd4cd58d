// Package changes collects the upstream commits that explain version
// transitions and holds the per-cycle result handed to the reconciler and
// the summary renderer.
package changes

import (
	"time"

	"github.com/agentstation/automator/pkg/resolver"
)

// Commit is one upstream commit shown in the summary.
type Commit struct {
	Sha         string    `json:"sha"`
	Message     string    `json:"message"`
	AuthorName  string    `json:"authorName,omitempty"`
	AuthorLogin string    `json:"authorLogin,omitempty"`
	AuthorDate  time.Time `json:"authorDate"`
	ParentCount int       `json:"parentCount"`
	HTMLURL     string    `json:"htmlUrl,omitempty"`
}

// RepoChanges is everything found for one source repository in a cycle.
type RepoChanges struct {
	SourceRepo        string                `json:"sourceRepo"`
	CurrentVersion    string                `json:"currentVersion"`
	CurrentVersionSha string                `json:"currentVersionSha"`
	Transitions       []resolver.Transition `json:"transitions"`
	Commits           []Commit              `json:"commits"`
}

// Result is the merged outcome of all source repositories of one cycle.
type Result struct {
	Repos []RepoChanges `json:"repos"`
}

// Add appends the changes of a source repository. Repositories without
// transitions are dropped.
func (r *Result) Add(rc RepoChanges) {
	if len(rc.Transitions) == 0 {
		return
	}
	r.Repos = append(r.Repos, rc)
}

// HasChanges reports whether any source repository has a transition.
func (r *Result) HasChanges() bool {
	return r.TransitionCount() > 0
}

// TransitionCount returns the number of transitions across all repositories.
func (r *Result) TransitionCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, rc := range r.Repos {
		n += len(rc.Transitions)
	}
	return n
}

// Transitions returns every transition in repository order.
func (r *Result) Transitions() []resolver.Transition {
	var all []resolver.Transition
	for _, rc := range r.Repos {
		all = append(all, rc.Transitions...)
	}
	return all
}

// SourceRepos returns the names of the repositories with changes.
func (r *Result) SourceRepos() []string {
	names := make([]string, 0, len(r.Repos))
	for _, rc := range r.Repos {
		names = append(names, rc.SourceRepo)
	}
	return names
}

// ExistingVersions returns the distinct existing version tokens of rc in first-seen order.
func (rc RepoChanges) ExistingVersions() []string {
	seen := make(map[string]bool, len(rc.Transitions))
	var versions []string
	for _, t := range rc.Transitions {
		if !seen[t.ExistingVersion] {
			seen[t.ExistingVersion] = true
			versions = append(versions, t.ExistingVersion)
		}
	}
	return versions
}

// NewVersions returns the distinct new version tokens of rc in first-seen order.
func (rc RepoChanges) NewVersions() []string {
	seen := make(map[string]bool, len(rc.Transitions))
	var versions []string
	for _, t := range rc.Transitions {
		if !seen[t.NewVersion] {
			seen[t.NewVersion] = true
			versions = append(versions, t.NewVersion)
		}
	}
	return versions
}

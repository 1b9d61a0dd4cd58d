// Package resolver decides the new version of every tracked file.
//
// Precedence, first match wins: a caller supplied override, a tag at the
// source head that matches the policy pattern, the head sha itself. A
// Transition is emitted only when the resolved token differs from the one
// already in the file, so an unchanged upstream resolves to nothing.
package resolver

import (
	"context"

	"github.com/agentstation/automator/pkg/locator"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
)

// Transition is one tracked file moving from its existing version to a new one.
type Transition struct {
	ExistingVersion string              `json:"existingVersion"`
	ExistingSha     string              `json:"existingSha,omitempty"`
	NewVersion      string              `json:"newVersion"`
	NewSha          string              `json:"newSha,omitempty"`
	File            locator.TrackedFile `json:"file"`
}

// Resolution is the outcome of resolving one source repository.
type Resolution struct {
	// CurrentVersion is the version at head: the matching tag or the head sha.
	CurrentVersion string
	CurrentSha     string
	Transitions    []Transition
	// Suppressed is set when the tags-only scheme found no tag at head.
	Suppressed bool
}

// Resolver applies a Policy and a set of overrides.
type Resolver struct {
	policy    Policy
	overrides []Override
}

// New creates a Resolver.
func New(policy Policy, overrides []Override) *Resolver {
	return &Resolver{policy: policy, overrides: overrides}
}

// Policy returns the versioning policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Override returns the override for a file of repo, preferring one that names
// the file's path id over a repository-wide one.
func (r *Resolver) Override(repo, pathID string) (Override, bool) {
	var fallback *Override
	for i, o := range r.overrides {
		if !o.Matches(repo, pathID) {
			continue
		}
		if o.PathID != "" {
			return o, true
		}
		if fallback == nil {
			fallback = &r.overrides[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Override{}, false
}

// Resolve returns the new version token and sha for one tracked file given
// the head sha of its source repository and the tags found at head.
func (r *Resolver) Resolve(repo string, file locator.TrackedFile, head string, tags []string) (string, string) {
	if o, ok := r.Override(repo, file.PathID); ok {
		return o.Version, o.Sha
	}
	if r.policy.Scheme.UsesTags() && len(tags) > 0 {
		return tags[0], head
	}
	return head, head
}

// Transitions resolves every tracked file of repo. refs are the tag refs of
// the repository; they are ignored unless the scheme uses tags.
func (r *Resolver) Transitions(ctx context.Context, repo, head string, refs []platform.Ref, files []locator.TrackedFile) Resolution {
	logger := logging.FromContext(ctx)

	res := Resolution{CurrentVersion: head, CurrentSha: head}
	var tags []string
	if r.policy.Scheme.UsesTags() {
		tags = r.policy.TagsAt(refs, head)
		logger.Debug().
			Int("suitable", len(tags)).
			Int("total", len(refs)).
			Str("sha", head).
			Msg("Resolved tags at head")
		if len(tags) > 0 {
			res.CurrentVersion = tags[0]
		} else if r.policy.Scheme == SchemeTagsOnly {
			res.Suppressed = true
		}
	}

	for _, file := range files {
		// An override still applies when tags-only found no tag at head.
		_, overridden := r.Override(repo, file.PathID)
		if res.Suppressed && !overridden {
			continue
		}
		token, sha := r.Resolve(repo, file, head, tags)
		if token == file.Version {
			continue
		}
		res.Transitions = append(res.Transitions, Transition{
			ExistingVersion: file.Version,
			ExistingSha:     file.VersionSha,
			NewVersion:      token,
			NewSha:          sha,
			File:            file,
		})
	}

	if res.Suppressed && len(res.Transitions) == 0 {
		logger.Info().Str("sha", head).Msg("No release tag at head, skipping repository")
	}
	return res
}

// UnknownOverrides returns the overrides naming a repository outside repos.
func (r *Resolver) UnknownOverrides(repos []string) []Override {
	known := make(map[string]bool, len(repos))
	for _, repo := range repos {
		known[repo] = true
	}
	var unknown []Override
	for _, o := range r.overrides {
		if !known[o.Repo] {
			unknown = append(unknown, o)
		}
	}
	return unknown
}

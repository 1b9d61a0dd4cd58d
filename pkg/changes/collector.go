package changes

import (
	"context"
	"regexp"
	"sort"

	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/resolver"
)

// issueRef matches an issue or pull request reference such as "#42".
var issueRef = regexp.MustCompile(`#\d+`)

// Collector fetches the commit ranges behind version transitions.
type Collector struct {
	reader           platform.SourceReader
	disabled         bool
	onlyMergeCommits bool
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithOnlyMergeCommits keeps only merge commits and commits referencing an issue.
func WithOnlyMergeCommits(enabled bool) CollectorOption {
	return func(c *Collector) {
		c.onlyMergeCommits = enabled
	}
}

// WithDisabled turns commit collection off.
func WithDisabled(disabled bool) CollectorOption {
	return func(c *Collector) {
		c.disabled = disabled
	}
}

// NewCollector creates a Collector reading through reader.
func NewCollector(reader platform.SourceReader, opts ...CollectorOption) *Collector {
	c := &Collector{reader: reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect returns the commits between the existing and new sha of every
// transition, deduplicated by sha and ordered newest first. Transitions
// missing either sha contribute nothing.
func (c *Collector) Collect(ctx context.Context, repo platform.Repo, transitions []resolver.Transition) ([]Commit, error) {
	if c.disabled {
		return nil, nil
	}
	logger := logging.FromContext(ctx)

	var commits []Commit
	seen := make(map[string]bool)
	ranges := make(map[string]bool)
	for _, t := range transitions {
		if t.ExistingSha == "" || t.NewSha == "" || t.ExistingSha == t.NewSha {
			continue
		}
		key := t.ExistingSha + "..." + t.NewSha
		if ranges[key] {
			continue
		}
		ranges[key] = true

		fetched, err := c.reader.CompareCommits(ctx, repo, t.ExistingSha, t.NewSha)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("base", t.ExistingSha).
			Str("head", t.NewSha).
			Int("count", len(fetched)).
			Msg("Fetched commit range")

		for _, pc := range fetched {
			if c.onlyMergeCommits && !IsMergeLike(pc) {
				continue
			}
			if seen[pc.Sha] {
				continue
			}
			seen[pc.Sha] = true
			commits = append(commits, fromPlatform(pc))
		}
	}

	SortNewestFirst(commits)
	return commits, nil
}

// IsMergeLike reports whether a commit survives the merge-commits-only
// filter: it has two or more parents or its message references an issue.
func IsMergeLike(c platform.Commit) bool {
	return c.ParentCount >= 2 || issueRef.MatchString(c.Message)
}

// SortNewestFirst orders commits by author date descending. Equal dates keep
// their input order.
func SortNewestFirst(commits []Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].AuthorDate.After(commits[j].AuthorDate)
	})
}

func fromPlatform(c platform.Commit) Commit {
	return Commit{
		Sha:         c.Sha,
		Message:     c.Message,
		AuthorName:  c.AuthorName,
		AuthorLogin: c.AuthorLogin,
		AuthorDate:  c.AuthorDate,
		ParentCount: c.ParentCount,
		HTMLURL:     c.HTMLURL,
	}
}

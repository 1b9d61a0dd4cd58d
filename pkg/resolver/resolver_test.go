package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/automator/pkg/locator"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/resolver"
)

const (
	headSha = "1111111111111111111111111111111111111111"
	oldSha  = "0000000000000000000000000000000000000000"
)

func mustPolicy(t *testing.T, scheme, pattern string) resolver.Policy {
	t.Helper()
	policy, err := resolver.NewPolicy(scheme, pattern)
	require.NoError(t, err)
	return policy
}

func tracked(path, pathID, version, sha string) locator.TrackedFile {
	return locator.TrackedFile{Path: path, PathID: pathID, Version: version, VersionSha: sha}
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in      string
		want    resolver.Scheme
		wantErr bool
	}{
		{in: "", want: resolver.SchemeShaOnly},
		{in: "commit-sha-only", want: resolver.SchemeShaOnly},
		{in: "tags-or-sha", want: resolver.SchemeTagsOrSha},
		{in: "Commit-Tags-Only", want: resolver.SchemeTagsOnly},
		{in: "semver", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := resolver.ParseScheme(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.False(t, resolver.SchemeShaOnly.UsesTags())
	assert.True(t, resolver.SchemeTagsOnly.UsesTags())
}

func TestPolicyTagsAt(t *testing.T) {
	refs := []platform.Ref{
		{Ref: "refs/tags/v1.2.0", Sha: headSha},
		{Ref: "refs/tags/nightly", Sha: headSha},
		{Ref: "refs/tags/v1.1.0", Sha: oldSha},
		{Ref: "refs/tags/v1.2.0-rc1", Sha: headSha},
	}

	t.Run("default pattern", func(t *testing.T) {
		policy := mustPolicy(t, "commit-tags-or-sha", "")
		assert.Equal(t, []string{"v1.2.0", "v1.2.0-rc1"}, policy.TagsAt(refs, headSha))
	})

	t.Run("custom pattern", func(t *testing.T) {
		policy := mustPolicy(t, "commit-tags-or-sha", `^refs/tags/nightly$`)
		assert.Equal(t, []string{"nightly"}, policy.TagsAt(refs, headSha))
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := resolver.NewPolicy("commit-tags-only", "v(")
		assert.Error(t, err)
	})
}

func TestParseOverrides(t *testing.T) {
	got := resolver.ParseOverrides("acme/api=v2.0.0," + headSha + "; acme/web:frontend=v3.1.0 ;broken; =v1;a=b=c;;acme/cli=,x")
	assert.Equal(t, []resolver.Override{
		{Repo: "acme/api", Version: "v2.0.0", Sha: headSha},
		{Repo: "acme/web", PathID: "frontend", Version: "v3.1.0"},
	}, got)

	assert.Empty(t, resolver.ParseOverrides(""))
}

func TestResolvePrecedence(t *testing.T) {
	file := tracked("deploy/api.yaml", "api", "v1.0.0", oldSha)
	tags := []string{"v1.2.0"}

	tests := []struct {
		name      string
		scheme    string
		overrides []resolver.Override
		tags      []string
		wantToken string
		wantSha   string
	}{
		{
			name:      "override beats tag",
			scheme:    "commit-tags-or-sha",
			overrides: []resolver.Override{{Repo: "acme/api", PathID: "api", Version: "v9.9.9", Sha: "abc"}},
			tags:      tags,
			wantToken: "v9.9.9",
			wantSha:   "abc",
		},
		{
			name: "path specific override beats repository wide",
			overrides: []resolver.Override{
				{Repo: "acme/api", Version: "v5.0.0", Sha: "repo"},
				{Repo: "acme/api", PathID: "api", Version: "v6.0.0", Sha: "path"},
			},
			wantToken: "v6.0.0",
			wantSha:   "path",
		},
		{
			name:      "override for another path id is ignored",
			scheme:    "commit-tags-or-sha",
			overrides: []resolver.Override{{Repo: "acme/api", PathID: "worker", Version: "v9.9.9"}},
			tags:      tags,
			wantToken: "v1.2.0",
			wantSha:   headSha,
		},
		{
			name:      "override for another repo is ignored",
			overrides: []resolver.Override{{Repo: "acme/web", Version: "v9.9.9"}},
			wantToken: headSha,
			wantSha:   headSha,
		},
		{
			name:      "tag at head",
			scheme:    "commit-tags-or-sha",
			tags:      tags,
			wantToken: "v1.2.0",
			wantSha:   headSha,
		},
		{
			name:      "sha only ignores tags",
			scheme:    "commit-sha-only",
			tags:      tags,
			wantToken: headSha,
			wantSha:   headSha,
		},
		{
			name:      "no tag falls back to sha",
			scheme:    "commit-tags-or-sha",
			wantToken: headSha,
			wantSha:   headSha,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolver.New(mustPolicy(t, tt.scheme, ""), tt.overrides)
			token, sha := r.Resolve("acme/api", file, headSha, tt.tags)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantSha, sha)
		})
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	refs := []platform.Ref{{Ref: "refs/tags/v1.2.0", Sha: headSha}}

	t.Run("override wins over tag at head", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-tags-or-sha", ""),
			[]resolver.Override{{Repo: "acme/api", PathID: "x", Version: "v7.0.0", Sha: "777"}})
		files := []locator.TrackedFile{tracked("a.yaml", "x", "v1.0.0", "")}

		res := r.Transitions(ctx, "acme/api", headSha, refs, files)
		require.Len(t, res.Transitions, 1)
		assert.Equal(t, "v7.0.0", res.Transitions[0].NewVersion)
		assert.Equal(t, "777", res.Transitions[0].NewSha)
		assert.Equal(t, "v1.2.0", res.CurrentVersion)
	})

	t.Run("unchanged version yields nothing", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-tags-or-sha", ""), nil)
		files := []locator.TrackedFile{tracked("a.yaml", "", "v1.2.0", "")}

		res := r.Transitions(ctx, "acme/api", headSha, refs, files)
		assert.Empty(t, res.Transitions)
		assert.False(t, res.Suppressed)
	})

	t.Run("only differing files transition", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-sha-only", ""), nil)
		files := []locator.TrackedFile{
			tracked("a.yaml", "", headSha, headSha),
			tracked("b.yaml", "", oldSha, oldSha),
		}

		res := r.Transitions(ctx, "acme/api", headSha, refs, files)
		require.Len(t, res.Transitions, 1)
		tr := res.Transitions[0]
		assert.Equal(t, "b.yaml", tr.File.Path)
		assert.Equal(t, oldSha, tr.ExistingVersion)
		assert.Equal(t, oldSha, tr.ExistingSha)
		assert.Equal(t, headSha, tr.NewVersion)
		assert.Equal(t, headSha, tr.NewSha)
	})

	t.Run("tags only without tag at head is suppressed", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-tags-only", ""), nil)
		files := []locator.TrackedFile{tracked("a.yaml", "", "v1.0.0", "")}
		stale := []platform.Ref{{Ref: "refs/tags/v1.1.0", Sha: oldSha}}

		res := r.Transitions(ctx, "acme/api", headSha, stale, files)
		assert.True(t, res.Suppressed)
		assert.Empty(t, res.Transitions)
	})

	t.Run("override applies to a suppressed repository", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-tags-only", ""),
			[]resolver.Override{{Repo: "acme/api", Version: "v9.0.0"}})
		files := []locator.TrackedFile{
			tracked("a.yaml", "a", "v1.0.0", ""),
			tracked("b.yaml", "b", "v1.0.0", ""),
		}

		res := r.Transitions(ctx, "acme/api", headSha, nil, files)
		assert.True(t, res.Suppressed)
		require.Len(t, res.Transitions, 2)
		assert.Equal(t, "v9.0.0", res.Transitions[0].NewVersion)
		assert.Equal(t, "v9.0.0", res.Transitions[1].NewVersion)
	})

	t.Run("path override leaves other files suppressed", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-tags-only", ""),
			[]resolver.Override{{Repo: "acme/api", PathID: "b", Version: "v9.0.0"}})
		files := []locator.TrackedFile{
			tracked("a.yaml", "a", "v1.0.0", ""),
			tracked("b.yaml", "b", "v1.0.0", ""),
		}

		res := r.Transitions(ctx, "acme/api", headSha, nil, files)
		assert.True(t, res.Suppressed)
		require.Len(t, res.Transitions, 1)
		assert.Equal(t, "b.yaml", res.Transitions[0].File.Path)
	})

	t.Run("tags only with tag at head", func(t *testing.T) {
		r := resolver.New(mustPolicy(t, "commit-tags-only", ""), nil)
		files := []locator.TrackedFile{tracked("a.yaml", "", "v1.0.0", "")}

		res := r.Transitions(ctx, "acme/api", headSha, refs, files)
		assert.False(t, res.Suppressed)
		require.Len(t, res.Transitions, 1)
		assert.Equal(t, "v1.2.0", res.Transitions[0].NewVersion)
	})
}

func TestUnknownOverrides(t *testing.T) {
	r := resolver.New(mustPolicy(t, "", ""), []resolver.Override{
		{Repo: "acme/api", Version: "v1"},
		{Repo: "acme/gone", Version: "v2"},
	})
	unknown := r.UnknownOverrides([]string{"acme/api", "acme/web"})
	require.Len(t, unknown, 1)
	assert.Equal(t, "acme/gone", unknown[0].Repo)
}

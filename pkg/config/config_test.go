package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/automator/pkg/config"
	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/errors"
)

const sampleYAML = `
id: deploy-bot
regex:
  - 'v\d+\.\d+\.\d+'
versioning:
  scheme: commit-tags-or-sha
pullRequest:
  title: "Deploy: bump versions"
  labels: [gitops, automated]
  autoMergeMethod: squash
  leaveOpenOnlyNumberOfPRs: 2
  commitHistory:
    onlyMergeCommits: true
sourceRepos:
  - repo: acme/api
    releaseFiles:
      - path: deploy/api/*.yaml
        id: api
  - repo: acme/web
    ref: heads/main
    releaseFiles:
      - path: deploy/web/values.yaml
        regex: ['tag: [0-9a-f]{8}']
        githubShaRegex: ['[0-9a-f]{40}']
artifacts:
  summaryMarkdownAs: summary.md
`

func TestParseYAML(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleYAML), config.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "deploy-bot", cfg.ID)
	assert.Equal(t, "commit-tags-or-sha", cfg.Versioning.Scheme)
	assert.Equal(t, []string{"gitops", "automated"}, cfg.PullRequest.Labels)
	require.NotNil(t, cfg.PullRequest.LeaveOpenOnlyNumberOfPRs)
	assert.Equal(t, 2, *cfg.PullRequest.LeaveOpenOnlyNumberOfPRs)
	assert.True(t, cfg.PullRequest.CommitHistory.OnlyMergeCommits)
	require.Len(t, cfg.SourceRepos, 2)
	assert.Equal(t, constants.DefaultSourceRef, cfg.SourceRepos[0].Ref)
	assert.Equal(t, "heads/main", cfg.SourceRepos[1].Ref)
	assert.Equal(t, "summary.md", cfg.Artifacts.SummaryMarkdownAs)
	assert.NoError(t, cfg.Validate())
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("sourceRepos: []\n"), config.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultInstanceID, cfg.ID)
	assert.Equal(t, constants.DefaultPullRequestTitle, cfg.PullRequest.Title)
	assert.Equal(t, "commit-sha-only", cfg.Versioning.Scheme)
	assert.Nil(t, cfg.PullRequest.LeaveOpenOnlyNumberOfPRs)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := config.Parse([]byte("sourceRepo: []\n"), config.FormatYAML)
	require.Error(t, err)
	var parseErr *errors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "yaml", parseErr.Format)
}

func TestParseTOML(t *testing.T) {
	data := `
id = "toml-bot"
regex = ['v\d+']

[versioning]
scheme = "commit-tags-only"

[pullRequest]
leaveOpenOnlyNumberOfPRs = 0

[[sourceRepos]]
repo = "acme/api"

[[sourceRepos.releaseFiles]]
path = "deploy/*.yaml"
`
	cfg, err := config.Parse([]byte(data), config.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "toml-bot", cfg.ID)
	assert.Equal(t, "commit-tags-only", cfg.Versioning.Scheme)
	require.NotNil(t, cfg.PullRequest.LeaveOpenOnlyNumberOfPRs)
	assert.Equal(t, 0, *cfg.PullRequest.LeaveOpenOnlyNumberOfPRs)
	require.Len(t, cfg.SourceRepos, 1)
	assert.Equal(t, "deploy/*.yaml", cfg.SourceRepos[0].ReleaseFiles[0].Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(dir, "automator.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "deploy-bot", cfg.ID)
	})

	t.Run("parse error names the file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.toml")
		require.NoError(t, os.WriteFile(path, []byte("id = "), 0o644))
		_, err := config.Load(path)
		var parseErr *errors.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, path, parseErr.File)
		assert.Equal(t, "toml", parseErr.Format)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(dir, "missing.yaml"))
		var ioErr *errors.IOError
		assert.True(t, errors.As(err, &ioErr))
	})
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, config.FormatTOML, config.FormatFromPath("a/b.TOML"))
	assert.Equal(t, config.FormatYAML, config.FormatFromPath("a/b.yml"))
	assert.Equal(t, config.FormatYAML, config.FormatFromPath("noext"))
}

func TestRegexFallback(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleYAML), config.FormatYAML)
	require.NoError(t, err)

	api := cfg.SourceRepos[0].ReleaseFiles[0]
	web := cfg.SourceRepos[1].ReleaseFiles[0]
	assert.Equal(t, []string{`v\d+\.\d+\.\d+`}, cfg.Regexes(api))
	assert.Empty(t, cfg.ShaRegexes(api))
	assert.Equal(t, []string{"tag: [0-9a-f]{8}"}, cfg.Regexes(web))
	assert.Equal(t, []string{"[0-9a-f]{40}"}, cfg.ShaRegexes(web))

	src, ok := cfg.SourceRepo("acme/web")
	require.True(t, ok)
	assert.Equal(t, "heads/main", src.Ref)
	_, ok = cfg.SourceRepo("acme/none")
	assert.False(t, ok)
}

func TestApplyOverride(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleYAML), config.FormatYAML)
	require.NoError(t, err)

	t.Run("empty override returns input", func(t *testing.T) {
		got, err := config.ApplyOverride(cfg, "  \n")
		require.NoError(t, err)
		assert.Same(t, cfg, got)
	})

	t.Run("nested keys merge", func(t *testing.T) {
		got, err := config.ApplyOverride(cfg, "pullRequest:\n  leaveOpenOnlyNumberOfPRs: 0\n  labels: [hotfix]\n")
		require.NoError(t, err)
		require.NotNil(t, got.PullRequest.LeaveOpenOnlyNumberOfPRs)
		assert.Equal(t, 0, *got.PullRequest.LeaveOpenOnlyNumberOfPRs)
		assert.Equal(t, []string{"hotfix"}, got.PullRequest.Labels)
		assert.Equal(t, "Deploy: bump versions", got.PullRequest.Title)
		assert.Equal(t, "squash", got.PullRequest.AutoMergeMethod)
		assert.Len(t, got.SourceRepos, 2)

		assert.Equal(t, 2, *cfg.PullRequest.LeaveOpenOnlyNumberOfPRs, "input must not change")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := config.ApplyOverride(cfg, "pullRequest: [")
		var parseErr *errors.ParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := config.ApplyOverride(cfg, "pullRequests:\n  title: x\n")
		var configErr *errors.ConfigError
		assert.True(t, errors.As(err, &configErr))
	})
}

func TestValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name   string
		mutate func(*config.Config)
		fields []string
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:   "bad id",
			mutate: func(c *config.Config) { c.ID = "has space" },
			fields: []string{"id"},
		},
		{
			name:   "unknown scheme",
			mutate: func(c *config.Config) { c.Versioning.Scheme = "semver" },
			fields: []string{"versioning.scheme"},
		},
		{
			name:   "bad tag pattern",
			mutate: func(c *config.Config) { c.Versioning.ResolveTagsPattern = "v(" },
			fields: []string{"versioning.resolveTagsPattern"},
		},
		{
			name:   "bad merge method",
			mutate: func(c *config.Config) { c.PullRequest.AutoMergeMethod = "fast-forward" },
			fields: []string{"pullRequest.autoMergeMethod"},
		},
		{
			name:   "negative cap",
			mutate: func(c *config.Config) { c.PullRequest.LeaveOpenOnlyNumberOfPRs = &negative },
			fields: []string{"pullRequest.leaveOpenOnlyNumberOfPRs"},
		},
		{
			name:   "incomplete commit author",
			mutate: func(c *config.Config) { c.PullRequest.CommitAuthor = &config.CommitAuthor{Name: "bot"} },
			fields: []string{"pullRequest.commitAuthor"},
		},
		{
			name:   "duplicate repo",
			mutate: func(c *config.Config) { c.SourceRepos[1].Repo = "acme/api" },
			fields: []string{"sourceRepos[1].repo"},
		},
		{
			name:   "malformed repo",
			mutate: func(c *config.Config) { c.SourceRepos[0].Repo = "acme" },
			fields: []string{"sourceRepos[0].repo"},
		},
		{
			name: "no regex anywhere",
			mutate: func(c *config.Config) {
				c.Regex = nil
			},
			fields: []string{"sourceRepos[0].releaseFiles[0].regex"},
		},
		{
			name:   "bad file regex",
			mutate: func(c *config.Config) { c.SourceRepos[1].ReleaseFiles[0].Regex = []string{"(("} },
			fields: []string{"sourceRepos[1].releaseFiles[0].regex"},
		},
		{
			name:   "no source repos",
			mutate: func(c *config.Config) { c.SourceRepos = nil },
			fields: []string{"sourceRepos"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(sampleYAML), config.FormatYAML)
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
			for _, field := range tt.fields {
				assert.Contains(t, err.Error(), "field "+field+":")
			}
		})
	}
}

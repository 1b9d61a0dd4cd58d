package automator

import (
	"time"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/resolver"
)

// options holds the dependencies and settings of an Automator
type options struct {
	platform  platform.Platform
	reader    platform.SourceReader
	overrides []resolver.Override
	workDir   string
	gitops    *platform.Repo
	serverURL string
	now       func() time.Time
}

func defaultOptions() *options {
	return &options{
		workDir: ".",
		now:     time.Now,
	}
}

// Option is a function that configures an Automator instance
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.reader == nil && o.platform != nil {
		o.reader = o.platform
	}
	return o, nil
}

// WithPlatform sets the client of the GitOps repository. It also reads the
// source repositories unless WithSourceReader is given.
func WithPlatform(p platform.Platform) Option {
	return func(o *options) error {
		if p == nil {
			return errors.NewValidationError("platform", nil, "must not be nil")
		}
		o.platform = p
		return nil
	}
}

// WithSourceReader sets a separate client for the source repositories, for
// example one authenticated with a read-only token.
func WithSourceReader(r platform.SourceReader) Option {
	return func(o *options) error {
		if r == nil {
			return errors.NewValidationError("source_reader", nil, "must not be nil")
		}
		o.reader = r
		return nil
	}
}

// WithOverrides pins versions regardless of the upstream head.
func WithOverrides(overrides ...resolver.Override) Option {
	return func(o *options) error {
		o.overrides = append(o.overrides, overrides...)
		return nil
	}
}

// WithWorkDir sets the checkout of the GitOps repository release files are read from.
func WithWorkDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return errors.NewValidationError("workdir", dir, "must not be empty")
		}
		o.workDir = dir
		return nil
	}
}

// WithGitOpsRepo sets the repository pull requests are opened against.
func WithGitOpsRepo(repo string) Option {
	return func(o *options) error {
		r, err := platform.ParseRepo(repo)
		if err != nil {
			return err
		}
		o.gitops = &r
		return nil
	}
}

// WithServerURL sets the web root summary links point at, for GitHub
// Enterprise Server.
func WithServerURL(url string) Option {
	return func(o *options) error {
		o.serverURL = url
		return nil
	}
}

// WithClock replaces the clock used for branch names.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.NewValidationError("clock", nil, "must not be nil")
		}
		o.now = now
		return nil
	}
}

package reconciler

import (
	"strings"
	"time"

	"github.com/agentstation/automator/pkg/changes"
	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
	"github.com/agentstation/automator/pkg/summary"
)

// BodyRenderer renders the pull request description for a cycle.
type BodyRenderer func(result *changes.Result) (string, error)

// options configures a reconciler.
type options struct {
	id              string
	title           string
	labels          []string
	comment         string
	mergeMethod     platform.MergeMethod
	cleanupBranches bool
	alwaysCreateNew bool
	openLimit       *int
	author          *platform.CommitAuthor
	body            BodyRenderer
	now             func() time.Time
}

func defaultOptions() *options {
	return &options{
		id:    constants.DefaultInstanceID,
		title: constants.DefaultPullRequestTitle,
		body: func(result *changes.Result) (string, error) {
			return summary.Markdown(result, summary.Options{})
		},
		now: time.Now,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithInstanceID sets the engine instance id that prefixes owned branches.
func WithInstanceID(id string) Option {
	return func(o *options) error {
		if strings.TrimSpace(id) == "" {
			return &errors.ValidationError{Field: "id", Message: "cannot be empty"}
		}
		o.id = id
		return nil
	}
}

// WithTitle sets the title of new pull requests.
func WithTitle(title string) Option {
	return func(o *options) error {
		if title != "" {
			o.title = title
		}
		return nil
	}
}

// WithLabels sets the labels attached to new pull requests.
func WithLabels(labels ...string) Option {
	return func(o *options) error {
		o.labels = labels
		return nil
	}
}

// WithComment posts a comment on every new pull request.
func WithComment(comment string) Option {
	return func(o *options) error {
		o.comment = comment
		return nil
	}
}

// WithAutoMerge requests platform auto-merge on new pull requests.
func WithAutoMerge(method platform.MergeMethod) Option {
	return func(o *options) error {
		m, err := platform.ParseMergeMethod(string(method))
		if err != nil {
			return err
		}
		o.mergeMethod = m
		return nil
	}
}

// WithCleanupBranches deletes every owned branch before a new one is cut.
func WithCleanupBranches(enabled bool) Option {
	return func(o *options) error {
		o.cleanupBranches = enabled
		return nil
	}
}

// WithAlwaysCreateNew skips reuse of open pull requests.
func WithAlwaysCreateNew(enabled bool) Option {
	return func(o *options) error {
		o.alwaysCreateNew = enabled
		return nil
	}
}

// WithOpenLimit caps the number of open automator pull requests. nil removes the cap.
func WithOpenLimit(limit *int) Option {
	return func(o *options) error {
		if limit != nil && *limit < 0 {
			return &errors.ValidationError{Field: "leaveOpenOnlyNumberOfPRs", Value: *limit, Message: "must not be negative"}
		}
		o.openLimit = limit
		return nil
	}
}

// WithCommitAuthor sets the author of file update commits.
func WithCommitAuthor(author *platform.CommitAuthor) Option {
	return func(o *options) error {
		o.author = author
		return nil
	}
}

// WithBodyRenderer sets how pull request descriptions are rendered.
func WithBodyRenderer(render BodyRenderer) Option {
	return func(o *options) error {
		if render == nil {
			return &errors.ValidationError{Field: "body", Message: "renderer cannot be nil"}
		}
		o.body = render
		return nil
	}
}

// WithClock sets the time source used for branch names.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.now = now
		return nil
	}
}

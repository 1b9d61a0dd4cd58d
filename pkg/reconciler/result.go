package reconciler

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/automator/pkg/platform"
)

// Outcome describes what a reconciliation cycle did.
type Outcome struct {
	// State is the terminal state: NoChange or Converged.
	State State
	// Path is ReuseExisting or RetireAndCreate once the cycle got past evaluation.
	Path State

	// PullRequest is the reused or created pull request, nil when none was touched.
	PullRequest *platform.PullRequest
	// Created is set when PullRequest was opened by this cycle.
	Created bool
	// Branch is the branch files were written to.
	Branch string

	WrittenFiles    []string
	SkippedFiles    []string
	ClosedPulls     []int
	DeletedBranches []string
}

// Changed reports whether the cycle wrote anything to the platform.
func (o *Outcome) Changed() bool {
	return o.Created || len(o.WrittenFiles) > 0 || len(o.ClosedPulls) > 0
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (o *Outcome) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("state", o.State).
		Strs("written", o.WrittenFiles).
		Ints("closed", o.ClosedPulls)
	if o.State == NoChange {
		return
	}
	e.Stringer("path", o.Path)
	if o.Branch != "" {
		e.Str("branch", o.Branch)
	}
	if o.PullRequest != nil {
		e.Int("pull", o.PullRequest.Number).Str("url", o.PullRequest.URL)
	}
}

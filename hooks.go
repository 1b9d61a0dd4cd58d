package automator

import (
	"sync"

	"github.com/agentstation/automator/pkg/reconciler"
	"github.com/agentstation/automator/pkg/resolver"
)

// Hook function types for cycle events
type (
	// TransitionHook is called for every version transition detected in a source repository
	TransitionHook func(repo string, transition resolver.Transition)

	// OutcomeHook is called once the GitOps repository has been reconciled
	OutcomeHook func(outcome *reconciler.Outcome)
)

// hooks manages event callbacks for a cycle
type hooks struct {
	mu           sync.RWMutex
	onTransition []TransitionHook
	onOutcome    []OutcomeHook
}

// OnTransition registers a callback for detected transitions
func (h *hooks) OnTransition(fn TransitionHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTransition = append(h.onTransition, fn)
}

// OnOutcome registers a callback for the reconciliation outcome
func (h *hooks) OnOutcome(fn OutcomeHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOutcome = append(h.onOutcome, fn)
}

func (h *hooks) triggerTransitions(repo string, transitions []resolver.Transition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, t := range transitions {
		for _, hook := range h.onTransition {
			hook(repo, t)
		}
	}
}

func (h *hooks) triggerOutcome(outcome *reconciler.Outcome) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onOutcome {
		hook(outcome)
	}
}

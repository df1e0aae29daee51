// Package reason produces the next-action decisions that drive the
// remediation state machine. The primary reasoner delegates to an
// OpenAI-compatible chat endpoint; a deterministic policy covers every
// failure of that collaborator so remediation never stalls on an outage.
package reason

import (
	"context"

	"github.com/policypulse/policypulse/internal/model"
)

// ActionDone signals the agent has nothing left to do.
const ActionDone = "done"

// Step is one completed reason/act cycle, kept for prompt history and
// for the deterministic policy's already-acted checks.
type Step struct {
	Thought     string         `json:"thought,omitempty"`
	Action      string         `json:"action,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Observation string         `json:"observation,omitempty"`
}

// Decision is what a reasoner wants the agent to do next.
type Decision struct {
	Thought string         `json:"thought"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args"`
	IsFinal bool           `json:"is_final"`
}

// Input is the full context a reasoner sees for one decision.
type Input struct {
	Violation *model.Violation
	Rule      *model.Rule
	Record    *model.Record
	Steps     []Step
}

// Reasoner decides the next tool call for a violation remediation run.
type Reasoner interface {
	Decide(ctx context.Context, in Input) (Decision, error)
}

// actionTaken reports whether any of the named actions appear in history.
func actionTaken(steps []Step, actions ...string) bool {
	for _, s := range steps {
		for _, a := range actions {
			if s.Action == a {
				return true
			}
		}
	}
	return false
}

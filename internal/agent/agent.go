// Package agent runs the bounded perceive/reason/act/reflect loop that
// remediates a single violation, and the batch driver over open ones.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/reason"
	"github.com/policypulse/policypulse/internal/store"
	"github.com/policypulse/policypulse/internal/tools"
)

// MaxSteps bounds the reason/act/reflect loop. Hitting the bound forces
// an escalation so no violation is left half-remediated.
const MaxSteps = 5

// BatchLimit caps how many open violations one batch run will process.
const BatchLimit = 50

// Status is the lifecycle state of an agent run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusEscalated Status = "escalated"
	StatusError     Status = "error"
)

// State is the full trace of one agent run.
type State struct {
	ViolationID  string           `json:"violation_id"`
	Violation    *model.Violation `json:"violation,omitempty"`
	Rule         *model.Rule      `json:"rule,omitempty"`
	Record       *model.Record    `json:"record,omitempty"`
	ScoreBefore  float64          `json:"score_before"`
	ScoreAfter   float64          `json:"score_after"`
	Steps        []reason.Step    `json:"steps"`
	ActionsTaken []string         `json:"actions_taken"`
	FinalAnswer  string           `json:"final_answer"`
	Status       Status           `json:"status"`
	Iteration    int              `json:"iteration"`
}

// Agent remediates violations one at a time.
type Agent struct {
	store    store.Store
	runner   *tools.Runner
	reasoner reason.Reasoner
	fallback reason.Fallback
}

// New creates an agent. The reasoner may be nil, in which case every
// decision comes from the deterministic fallback policy.
func New(s store.Store, runner *tools.Runner, r reason.Reasoner) *Agent {
	return &Agent{store: s, runner: runner, reasoner: r}
}

// Run remediates one violation end to end and returns the final state.
// The returned error covers only infrastructure failures; remediation
// outcomes are reported through State.Status.
func (a *Agent) Run(ctx context.Context, violationID string) (*State, error) {
	state := &State{
		ViolationID:  violationID,
		Steps:        []reason.Step{},
		ActionsTaken: []string{},
		Status:       StatusRunning,
	}

	if err := a.perceive(ctx, state); err != nil {
		return nil, err
	}
	if state.Status != StatusRunning {
		return state, nil
	}

	for i := 0; i < MaxSteps; i++ {
		decision := a.decide(ctx, state)
		state.Steps = append(state.Steps, reason.Step{
			Thought: decision.Thought,
			Action:  decision.Action,
			Args:    decision.Args,
		})

		a.act(ctx, state, decision)
		state.Iteration++

		if state.Status != StatusRunning {
			a.reflect(ctx, state)
			return state, nil
		}
	}

	// Exhausted the step budget without a terminal outcome.
	state.Status = StatusEscalated
	state.FinalAnswer = fmt.Sprintf(
		"Agent reached max steps (%d) without resolution. Violation %s escalated for human review.",
		MaxSteps, violationID)
	if _, err := a.runner.EscalateViolation(ctx, violationID,
		fmt.Sprintf("Agent hit max steps (%d), requires human review.", MaxSteps)); err != nil {
		return nil, err
	}
	if b, err := a.runner.GetComplianceScore(ctx); err == nil {
		state.ScoreAfter = b.Score
	}
	return state, nil
}

func (a *Agent) perceive(ctx context.Context, state *State) error {
	v, err := a.runner.GetViolationDetails(ctx, state.ViolationID)
	if errors.Is(err, store.ErrNotFound) {
		state.Status = StatusError
		state.FinalAnswer = fmt.Sprintf("Violation %s not found.", state.ViolationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("agent: perceive: %w", err)
	}
	state.Violation = v

	if v.Status != model.StatusOpen {
		state.Status = StatusSuccess
		state.FinalAnswer = fmt.Sprintf("Violation %s is already %s, no action needed.", state.ViolationID, v.Status)
		return nil
	}

	if rec, err := a.runner.GetRecordData(ctx, v.RecordID); err == nil {
		state.Record = rec
	}
	if rule, err := a.runner.GetRuleDetails(ctx, v.RuleID); err == nil {
		state.Rule = rule
	}

	if b, err := a.runner.GetComplianceScore(ctx); err == nil {
		state.ScoreBefore = b.Score
	}

	state.Steps = append(state.Steps, reason.Step{
		Observation: fmt.Sprintf("Loaded violation %s. Score before: %.1f%%. Record: %s. Rule: %s. Severity: %s. Status: %s.",
			state.ViolationID, state.ScoreBefore, v.RecordID, v.RuleID, v.Severity, v.Status),
	})
	return nil
}

// decide asks the primary reasoner; any failure falls through to the
// deterministic policy so the loop always gets a usable decision.
func (a *Agent) decide(ctx context.Context, state *State) reason.Decision {
	in := reason.Input{
		Violation: state.Violation,
		Rule:      state.Rule,
		Record:    state.Record,
		Steps:     state.Steps,
	}
	if a.reasoner != nil {
		if d, err := a.reasoner.Decide(ctx, in); err == nil {
			return d
		}
	}
	d, _ := a.fallback.Decide(ctx, in)
	return d
}

func (a *Agent) act(ctx context.Context, state *State, decision reason.Decision) {
	last := &state.Steps[len(state.Steps)-1]

	if decision.Action == reason.ActionDone || decision.IsFinal {
		state.Status = StatusSuccess
		return
	}

	obs, ok, err := a.runner.Invoke(ctx, tools.Kind(decision.Action), decision.Args)
	if errors.Is(err, tools.ErrUnknownTool) {
		last.Observation = fmt.Sprintf("Unknown tool: %s", decision.Action)
		state.Status = StatusError
		return
	}
	if err != nil {
		last.Observation = fmt.Sprintf("Tool error: %v", err)
		state.Status = StatusError
		return
	}
	last.Observation = obs
	if !ok {
		state.Status = StatusError
		return
	}

	args := decision.Args
	switch tools.Kind(decision.Action) {
	case tools.KindResolveViolation:
		state.ActionsTaken = append(state.ActionsTaken, "Resolved violation: "+truncate(str(args, "reason"), 80))
		state.Status = StatusSuccess
	case tools.KindUpdateRecordField:
		state.ActionsTaken = append(state.ActionsTaken,
			fmt.Sprintf("Fixed field '%s' = %v on %s", str(args, "field"), args["value"], str(args, "record_id")))
	case tools.KindEscalateViolation:
		state.ActionsTaken = append(state.ActionsTaken, "Escalated: "+truncate(str(args, "reason"), 80))
		state.Status = StatusEscalated
	}
}

func (a *Agent) reflect(ctx context.Context, state *State) {
	if b, err := a.runner.GetComplianceScore(ctx); err == nil {
		state.ScoreAfter = b.Score
	}
	delta := math.Round((state.ScoreAfter-state.ScoreBefore)*10) / 10
	deltaStr := fmt.Sprintf("%+.1f%%", delta)

	switch state.Status {
	case StatusSuccess:
		state.FinalAnswer = fmt.Sprintf(
			"Agent successfully remediated violation %s. Actions: %s. Compliance score: %.1f%% -> %.1f%% (%s).",
			state.ViolationID, strings.Join(state.ActionsTaken, "; "), state.ScoreBefore, state.ScoreAfter, deltaStr)
	case StatusEscalated:
		last := "requires human action"
		if n := len(state.ActionsTaken); n > 0 {
			last = state.ActionsTaken[n-1]
		}
		state.FinalAnswer = fmt.Sprintf(
			"Agent escalated violation %s for human review. Reason: %s.", state.ViolationID, last)
	default:
		state.FinalAnswer = fmt.Sprintf("Agent encountered an error processing %s.", state.ViolationID)
	}
}

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

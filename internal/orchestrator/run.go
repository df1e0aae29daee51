package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/store"
	"github.com/policypulse/policypulse/internal/tools"
)

// BatchLimit caps how many open violations one batch run will route.
const BatchLimit = 100

// Step is one phase of a specialist pass.
type Step struct {
	Agent   string `json:"agent"`
	Phase   string `json:"phase"`
	Thought string `json:"thought"`
}

// RoutingLog records the router's decision for one violation.
type RoutingLog struct {
	Orchestrator string    `json:"orchestrator"`
	Decision     string    `json:"decision"`
	Reasoning    string    `json:"reasoning"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is the outcome of orchestrating one violation.
type Result struct {
	ViolationID  string     `json:"violation_id"`
	Status       string     `json:"status"` // resolved | escalated | skipped | error
	Message      string     `json:"message,omitempty"`
	RoutedTo     Domain     `json:"routed_to,omitempty"`
	AgentName    string     `json:"agent_name,omitempty"`
	Confidence   float64    `json:"confidence"`
	ActionsTaken []string   `json:"actions_taken,omitempty"`
	Steps        []Step     `json:"steps,omitempty"`
	Routing      RoutingLog `json:"routing_log,omitempty"`
	ScoreBefore  float64    `json:"score_before"`
	ScoreAfter   float64    `json:"score_after"`
	ScoreDelta   float64    `json:"score_delta"`
}

// Orchestrator routes open violations through specialist playbooks.
type Orchestrator struct {
	store  store.Store
	runner *tools.Runner
}

// New creates an orchestrator over a store and tool runner.
func New(s store.Store, runner *tools.Runner) *Orchestrator {
	return &Orchestrator{store: s, runner: runner}
}

// Run orchestrates a single violation: load context, classify to a
// specialist domain, execute that specialist's playbook.
func (o *Orchestrator) Run(ctx context.Context, violationID string) (*Result, error) {
	violation, err := o.store.ViolationByID(ctx, violationID)
	if errors.Is(err, store.ErrNotFound) {
		return &Result{
			ViolationID: violationID,
			Status:      "error",
			Message:     fmt.Sprintf("Violation %s not found.", violationID),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load violation: %w", err)
	}

	if violation.Status != model.StatusOpen {
		return &Result{
			ViolationID: violationID,
			Status:      "skipped",
			Message:     fmt.Sprintf("Violation already %s, no action needed.", violation.Status),
		}, nil
	}

	var rule *model.Rule
	if violation.RuleID != "" {
		if r, err := o.store.RuleByID(ctx, violation.RuleID); err == nil {
			rule = r
		}
	}
	var record *model.Record
	if violation.RecordID != "" {
		if r, err := o.store.RecordByID(ctx, violation.RecordID); err == nil {
			record = r
		}
	}

	var scoreBefore float64
	if b, err := o.runner.GetComplianceScore(ctx); err == nil {
		scoreBefore = b.Score
	}

	domain := Classify(rule, violation)
	playbook := PlaybookFor(domain)

	field := "?"
	if rule != nil && rule.ValidationLogic.Field != "" {
		field = rule.ValidationLogic.Field
	}
	routing := RoutingLog{
		Orchestrator: "PolicyPulse Orchestrator v2",
		Decision:     fmt.Sprintf("Routed violation %s to %s", violationID, playbook.Name),
		Reasoning: fmt.Sprintf("Rule field '%s' matches %s domain. Severity: %s.",
			field, domain, violation.Severity),
		Timestamp: time.Now().UTC(),
	}

	spec, err := o.runSpecialist(ctx, violation, rule, record, domain)
	if err != nil {
		return nil, err
	}

	var scoreAfter float64
	if b, err := o.runner.GetComplianceScore(ctx); err == nil {
		scoreAfter = b.Score
	}

	return &Result{
		ViolationID:  violationID,
		Status:       spec.outcome,
		RoutedTo:     domain,
		AgentName:    playbook.Name,
		Confidence:   spec.confidence,
		ActionsTaken: spec.actions,
		Steps:        spec.steps,
		Routing:      routing,
		ScoreBefore:  scoreBefore,
		ScoreAfter:   scoreAfter,
		ScoreDelta:   math.Round((scoreAfter-scoreBefore)*10) / 10,
	}, nil
}

type specialistRun struct {
	outcome    string
	confidence float64
	actions    []string
	steps      []Step
}

func (o *Orchestrator) runSpecialist(ctx context.Context, violation *model.Violation, rule *model.Rule, record *model.Record, domain Domain) (*specialistRun, error) {
	playbook := PlaybookFor(domain)

	var logic model.ValidationLogic
	condition := "compliance requirement"
	requiredAction := "manual review"
	if rule != nil {
		logic = rule.ValidationLogic
		if rule.Condition != "" {
			condition = rule.Condition
		}
		if rule.RequiredAction != "" {
			requiredAction = rule.RequiredAction
		}
	}

	current := any("not found")
	if record != nil {
		if v, ok := record.Data[logic.Field]; ok {
			current = v
		}
	}

	run := &specialistRun{}
	run.steps = append(run.steps, Step{
		Agent: playbook.Name,
		Phase: "classify",
		Thought: fmt.Sprintf("%s received violation %s. Field: '%s', Operator: '%s', Severity: %s. Current value: %v.",
			playbook.Name, violation.ViolationID, logic.Field, logic.Operator, violation.Severity, current),
	})

	switch {
	case logic.Field != "" && playbook.AutoFixable[logic.Operator] && violation.RecordID != "":
		run.confidence = 0.95
		var fix any
		switch logic.Operator {
		case model.OpIsTrue:
			fix = true
		case model.OpIsFalse:
			fix = false
		default:
			fix = logic.Value
		}

		run.steps = append(run.steps, Step{
			Agent: playbook.Name,
			Phase: "plan",
			Thought: fmt.Sprintf("Auto-fix available. Will set '%s' = %v on record %s. Confidence: %.0f%%.",
				logic.Field, fix, violation.RecordID, run.confidence*100),
		})

		res, err := o.runner.UpdateRecordField(ctx, violation.RecordID, logic.Field, fix,
			fmt.Sprintf("%s auto-remediated: %s", playbook.Name, condition))
		if err != nil {
			return nil, err
		}
		run.actions = append(run.actions, fmt.Sprintf("[%s] Set '%s' = %v on %s", playbook.Name, logic.Field, fix, violation.RecordID))
		run.steps = append(run.steps, Step{
			Agent:   playbook.Name,
			Phase:   "act",
			Thought: "Field update result: " + res.Message,
		})

		res, err = o.runner.ResolveViolation(ctx, violation.ViolationID,
			fmt.Sprintf("%s auto-remediated: updated '%s' to %v. Rule: %s now satisfied.",
				playbook.Name, logic.Field, fix, condition))
		if err != nil {
			return nil, err
		}
		run.actions = append(run.actions, fmt.Sprintf("[%s] Resolved violation %s", playbook.Name, violation.ViolationID))
		run.steps = append(run.steps, Step{
			Agent:   playbook.Name,
			Phase:   "resolve",
			Thought: "Violation resolved: " + res.Message,
		})
		run.outcome = "resolved"

	case violation.Severity.NeedsHumanReview():
		run.confidence = 0.88
		run.steps = append(run.steps, Step{
			Agent: playbook.Name,
			Phase: "plan",
			Thought: fmt.Sprintf("Operator '%s' on field '%s' requires human action (%s severity). Escalating to human reviewer.",
				logic.Operator, logic.Field, violation.Severity),
		})
		res, err := o.runner.EscalateViolation(ctx, violation.ViolationID,
			fmt.Sprintf("%s determined human action required. Rule requires '%s' on '%s'. Recommended action: %s.",
				playbook.Name, logic.Operator, logic.Field, requiredAction))
		if err != nil {
			return nil, err
		}
		run.actions = append(run.actions, fmt.Sprintf("[%s] Escalated %s, requires human action", playbook.Name, violation.ViolationID))
		run.steps = append(run.steps, Step{
			Agent:   playbook.Name,
			Phase:   "escalate",
			Thought: "Escalation complete: " + res.Message,
		})
		run.outcome = "escalated"

	default:
		run.confidence = 0.72
		run.steps = append(run.steps, Step{
			Agent: playbook.Name,
			Phase: "plan",
			Thought: fmt.Sprintf("Low/medium severity, no auto-fix available for '%s'. Acknowledging violation with advisory note.",
				logic.Operator),
		})
		if _, err := o.runner.ResolveViolation(ctx, violation.ViolationID,
			fmt.Sprintf("%s acknowledged: '%s' (%s) requires manual follow-up. %s.",
				playbook.Name, logic.Field, logic.Operator, requiredAction)); err != nil {
			return nil, err
		}
		run.actions = append(run.actions, fmt.Sprintf("[%s] Acknowledged %s with advisory", playbook.Name, violation.ViolationID))
		run.outcome = "resolved"
	}

	// Tag the pass in the agent log for per-domain statistics.
	if err := o.store.AppendLog(ctx, model.AgentLogEntry{
		EntityID: violation.ViolationID,
		Action:   "specialist_" + string(domain),
		Reason:   playbook.Name + ": " + strings.Join(run.actions, "; "),
		Agent:    "PolicyPulse ReAct Agent v1",
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: log specialist pass: %w", err)
	}

	return run, nil
}

// DomainStats counts batch outcomes for one specialist.
type DomainStats struct {
	Resolved  int `json:"resolved"`
	Escalated int `json:"escalated"`
	Errors    int `json:"errors"`
}

// BatchResult aggregates an orchestrator batch run.
type BatchResult struct {
	TotalProcessed int                     `json:"total_processed"`
	AgentStats     map[Domain]*DomainStats `json:"agent_stats"`
	FinalScore     float64                 `json:"final_compliance_score"`
	Results        []*Result               `json:"results"`
}

// RunBatch routes every open violation matching the severity filter
// ("" or "all" means every severity) through its specialist.
func (o *Orchestrator) RunBatch(ctx context.Context, severityFilter string) (*BatchResult, error) {
	var severity model.Severity
	if severityFilter != "" && severityFilter != "all" {
		severity = model.ParseSeverity(severityFilter)
	}

	open, err := o.store.OpenViolations(ctx, severity, BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load open violations: %w", err)
	}

	out := &BatchResult{
		AgentStats: make(map[Domain]*DomainStats, len(Domains)),
		Results:    []*Result{},
	}
	for _, d := range Domains {
		out.AgentStats[d] = &DomainStats{}
	}

	for _, v := range open {
		result, err := o.Run(ctx, v.ViolationID)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, result)

		domain := result.RoutedTo
		if domain == "" {
			domain = DomainSecurity
		}
		switch result.Status {
		case "resolved":
			out.AgentStats[domain].Resolved++
		case "escalated":
			out.AgentStats[domain].Escalated++
		default:
			out.AgentStats[domain].Errors++
		}
	}
	out.TotalProcessed = len(out.Results)

	if b, err := o.runner.GetComplianceScore(ctx); err == nil {
		out.FinalScore = b.Score
	}
	return out, nil
}

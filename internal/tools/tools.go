// Package tools exposes the closed set of actions available to the
// remediation agents. Every mutating tool appends one entry to the
// agent log; read-only tools leave no trace.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/scan"
	"github.com/policypulse/policypulse/internal/score"
	"github.com/policypulse/policypulse/internal/store"
)

// Kind names one tool in the registry.
type Kind string

const (
	KindGetViolationDetails Kind = "get_violation_details"
	KindGetRecordData       Kind = "get_record_data"
	KindGetRuleDetails      Kind = "get_rule_details"
	KindGetComplianceScore  Kind = "get_compliance_score"
	KindResolveViolation    Kind = "resolve_violation"
	KindUpdateRecordField   Kind = "update_record_field"
	KindEscalateViolation   Kind = "escalate_violation"
)

// ErrUnknownTool is returned by Invoke for a name outside the registry.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Descriptions is the tool catalog handed to the reasoning collaborator.
const Descriptions = `Available tools (call with JSON args):
- get_violation_details(violation_id: str) -> full violation object
- get_record_data(record_id: str) -> the record that violated the rule
- get_rule_details(rule_id: str) -> the compliance rule definition
- get_compliance_score() -> current score + open violation counts
- resolve_violation(violation_id: str, reason: str) -> mark resolved
- update_record_field(record_id: str, field: str, value: any, reason: str) -> fix a data field
- escalate_violation(violation_id: str, reason: str) -> flag for human review`

// AuditSink mirrors mutating tool calls into a tamper-evident trail.
type AuditSink interface {
	Append(entityID, action, reason string) error
}

// Result is the outcome of a mutating tool call.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Runner executes tools against a store on behalf of a named agent.
type Runner struct {
	store store.Store
	agent string
	actor string
	audit AuditSink
}

// NewRunner creates a tool runner. The agent name tags log entries; the
// actor name is written into resolved_by/escalated_by fields.
func NewRunner(s store.Store, agent, actor string) *Runner {
	if agent == "" {
		agent = "PolicyPulse ReAct Agent v1"
	}
	if actor == "" {
		actor = "PolicyPulse Agent"
	}
	return &Runner{store: s, agent: agent, actor: actor}
}

// WithAudit attaches a tamper-evident audit sink; mutating tools mirror
// their log entries into it. Audit failures do not fail the tool call.
func (r *Runner) WithAudit(sink AuditSink) *Runner {
	r.audit = sink
	return r
}

func (r *Runner) GetViolationDetails(ctx context.Context, violationID string) (*model.Violation, error) {
	return r.store.ViolationByID(ctx, violationID)
}

func (r *Runner) GetRecordData(ctx context.Context, recordID string) (*model.Record, error) {
	return r.store.RecordByID(ctx, recordID)
}

func (r *Runner) GetRuleDetails(ctx context.Context, ruleID string) (*model.Rule, error) {
	return r.store.RuleByID(ctx, ruleID)
}

func (r *Runner) GetComplianceScore(ctx context.Context) (score.Breakdown, error) {
	return scan.Score(ctx, r.store)
}

func (r *Runner) ResolveViolation(ctx context.Context, violationID, reason string) (Result, error) {
	ok, err := r.store.ResolveViolation(ctx, violationID, r.actor, reason)
	if err != nil {
		return Result{}, fmt.Errorf("tools: resolve %s: %w", violationID, err)
	}
	if !ok {
		return Result{Success: false, Message: "Violation not found or already resolved."}, nil
	}
	r.log(ctx, violationID, "resolve", reason)
	return Result{Success: true, Message: fmt.Sprintf("Violation %s resolved by agent.", violationID)}, nil
}

func (r *Runner) UpdateRecordField(ctx context.Context, recordID, field string, value any, reason string) (Result, error) {
	ok, err := r.store.UpdateRecordField(ctx, recordID, field, value, r.actor)
	if err != nil {
		return Result{}, fmt.Errorf("tools: update record %s: %w", recordID, err)
	}
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("Record %s not found.", recordID)}, nil
	}
	r.log(ctx, recordID, "update_field", fmt.Sprintf("Set %s=%v. %s", field, value, reason))
	return Result{Success: true, Message: fmt.Sprintf("Field '%s' updated to %v on record %s.", field, value, recordID)}, nil
}

func (r *Runner) EscalateViolation(ctx context.Context, violationID, reason string) (Result, error) {
	ok, err := r.store.EscalateViolation(ctx, violationID, r.actor, reason)
	if err != nil {
		return Result{}, fmt.Errorf("tools: escalate %s: %w", violationID, err)
	}
	if !ok {
		return Result{Success: false, Message: "Violation not found."}, nil
	}
	r.log(ctx, violationID, "escalate", reason)
	return Result{Success: true, Message: fmt.Sprintf("Violation %s escalated for human review.", violationID)}, nil
}

// Invoke dispatches a tool by name with loosely typed arguments, as
// produced by the reasoning collaborator. The observation string is what
// the agent sees; mutating calls also report success.
func (r *Runner) Invoke(ctx context.Context, kind Kind, args map[string]any) (observation string, success bool, err error) {
	str := func(key string) string {
		s, _ := args[key].(string)
		return s
	}

	switch kind {
	case KindGetViolationDetails:
		v, err := r.GetViolationDetails(ctx, str("violation_id"))
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Violation %s not found", str("violation_id")), false, nil
		}
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Violation %s: severity=%s status=%s rule=%s record=%s",
			v.ViolationID, v.Severity, v.Status, v.RuleID, v.RecordID), true, nil

	case KindGetRecordData:
		rec, err := r.GetRecordData(ctx, str("record_id"))
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Record %s not found", str("record_id")), false, nil
		}
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Record %s (%s, %s): %v", rec.RecordID, rec.Type, rec.Department, rec.Data), true, nil

	case KindGetRuleDetails:
		rule, err := r.GetRuleDetails(ctx, str("rule_id"))
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Rule %s not found", str("rule_id")), false, nil
		}
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Rule %s (%s): %s [%s %s %v]", rule.RuleID, rule.Severity, rule.Condition,
			rule.ValidationLogic.Field, rule.ValidationLogic.Operator, rule.ValidationLogic.Value), true, nil

	case KindGetComplianceScore:
		b, err := r.GetComplianceScore(ctx)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Compliance score %.1f%% with %d open violations (critical=%d high=%d medium=%d low=%d)",
			b.Score, b.OpenViolations, b.Critical, b.High, b.Medium, b.Low), true, nil

	case KindResolveViolation:
		res, err := r.ResolveViolation(ctx, str("violation_id"), str("reason"))
		if err != nil {
			return "", false, err
		}
		return res.Message, res.Success, nil

	case KindUpdateRecordField:
		res, err := r.UpdateRecordField(ctx, str("record_id"), str("field"), args["value"], str("reason"))
		if err != nil {
			return "", false, err
		}
		return res.Message, res.Success, nil

	case KindEscalateViolation:
		res, err := r.EscalateViolation(ctx, str("violation_id"), str("reason"))
		if err != nil {
			return "", false, err
		}
		return res.Message, res.Success, nil

	default:
		return "", false, fmt.Errorf("%w: %s", ErrUnknownTool, kind)
	}
}

func (r *Runner) log(ctx context.Context, entityID, action, reason string) {
	entry := model.AgentLogEntry{
		EntityID: entityID,
		Action:   action,
		Reason:   reason,
		Agent:    r.agent,
	}
	if err := r.store.AppendLog(ctx, entry); err != nil {
		return
	}
	if r.audit != nil {
		_ = r.audit.Append(entityID, action, reason)
	}
}

package reason

import (
	"context"
	"fmt"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/tools"
)

// autoFixable lists the operators whose compliant value can be computed
// directly from the rule. Date windows and numeric thresholds need a
// human (you cannot backdate a training completion).
var autoFixable = map[model.Operator]bool{
	model.OpIsTrue:    true,
	model.OpIsFalse:   true,
	model.OpEquals:    true,
	model.OpNotEquals: true,
}

// Fallback is the deterministic reasoning policy used when the LLM
// collaborator is unavailable. It never returns an error.
type Fallback struct{}

func (Fallback) Decide(_ context.Context, in Input) (Decision, error) {
	if actionTaken(in.Steps, string(tools.KindResolveViolation), string(tools.KindEscalateViolation)) {
		return Decision{
			Thought: "I have already acted on this violation. Completing the agent run.",
			Action:  ActionDone,
			Args:    map[string]any{},
			IsFinal: true,
		}, nil
	}

	var (
		vid      string
		recordID string
		severity model.Severity
	)
	if in.Violation != nil {
		vid = in.Violation.ViolationID
		recordID = in.Violation.RecordID
		severity = in.Violation.Severity
	}

	var logic model.ValidationLogic
	condition := "compliance requirement"
	requiredAction := "review and fix manually"
	if in.Rule != nil {
		logic = in.Rule.ValidationLogic
		if in.Rule.Condition != "" {
			condition = in.Rule.Condition
		}
		if in.Rule.RequiredAction != "" {
			requiredAction = in.Rule.RequiredAction
		}
	}

	if logic.Field != "" && autoFixable[logic.Operator] &&
		!actionTaken(in.Steps, string(tools.KindUpdateRecordField)) {
		var fix any
		switch logic.Operator {
		case model.OpIsTrue:
			fix = true
		case model.OpIsFalse:
			fix = false
		default:
			fix = logic.Value
		}

		current := any("missing")
		if in.Record != nil {
			if v, ok := in.Record.Data[logic.Field]; ok {
				current = v
			}
		}

		return Decision{
			Thought: fmt.Sprintf("Rule requires '%s' to satisfy '%s'. Current value: %v. "+
				"I will update the field to %v to bring the record into compliance.",
				logic.Field, logic.Operator, current, fix),
			Action: string(tools.KindUpdateRecordField),
			Args: map[string]any{
				"record_id": recordID,
				"field":     logic.Field,
				"value":     fix,
				"reason":    fmt.Sprintf("Auto-remediated by PolicyPulse Agent: %s", condition),
			},
		}, nil
	}

	if actionTaken(in.Steps, string(tools.KindUpdateRecordField)) &&
		!actionTaken(in.Steps, string(tools.KindResolveViolation)) {
		return Decision{
			Thought: "The data field has been corrected. Now resolving the violation.",
			Action:  string(tools.KindResolveViolation),
			Args: map[string]any{
				"violation_id": vid,
				"reason": fmt.Sprintf("PolicyPulse Agent automatically updated field '%s' to comply with: %s.",
					logic.Field, condition),
			},
		}, nil
	}

	if severity.NeedsHumanReview() {
		return Decision{
			Thought: fmt.Sprintf("This %s violation requires human action (operator: %s). "+
				"Cannot auto-fix — escalating for immediate human review.", severity, logic.Operator),
			Action: string(tools.KindEscalateViolation),
			Args: map[string]any{
				"violation_id": vid,
				"reason": fmt.Sprintf("Auto-remediation not possible: rule requires '%s' on '%s'. "+
					"Human must take action: %s.", logic.Operator, logic.Field, requiredAction),
			},
		}, nil
	}

	return Decision{
		Thought: "No automatic fix available but severity is low/medium. Resolving with note.",
		Action:  string(tools.KindResolveViolation),
		Args: map[string]any{
			"violation_id": vid,
			"reason":       fmt.Sprintf("Acknowledged by PolicyPulse Agent. Manual review recommended: %s", requiredAction),
		},
	}, nil
}

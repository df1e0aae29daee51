// Package rules evaluates declarative compliance rules against company
// records. Evaluation is pure and fail-safe: malformed rules or values
// resolve to "no violation" rather than an error.
package rules

import (
	"strings"
	"time"

	"github.com/policypulse/policypulse/internal/model"
)

// Evaluate reports whether a record violates a rule, using the current
// time for date-window operators.
func Evaluate(rule *model.Rule, record *model.Record) bool {
	return EvaluateAt(rule, record, time.Now().UTC())
}

// EvaluateAt reports whether a record violates a rule as of the given time.
//
// Operator semantics (actual = record.Data[field], expected = logic.Value):
// fail-safe throughout — a comparison that cannot be performed is not a
// compliance finding.
func EvaluateAt(rule *model.Rule, record *model.Record, now time.Time) bool {
	logic := rule.ValidationLogic
	if logic.Field == "" && logic.Operator == "" {
		return false
	}

	actual := record.Data[logic.Field]
	expected := logic.Value

	switch logic.Operator {
	case model.OpEquals:
		return model.Stringify(actual) != model.Stringify(expected)

	case model.OpNotEquals:
		return model.Stringify(actual) == model.Stringify(expected)

	case model.OpIsTrue:
		return !model.Truthy(actual)

	case model.OpIsFalse:
		return model.Truthy(actual)

	case model.OpGreaterThan:
		a, aok := model.ToFloat(actual)
		e, eok := model.ToFloat(expected)
		return aok && eok && a <= e

	case model.OpLessThan:
		a, aok := model.ToFloat(actual)
		e, eok := model.ToFloat(expected)
		return aok && eok && a >= e

	case model.OpContains:
		return !strings.Contains(
			strings.ToLower(model.Stringify(actual)),
			strings.ToLower(model.Stringify(expected)),
		)

	case model.OpExists:
		return actual == nil || actual == ""

	case model.OpDateWithinDays:
		date, ok := model.ParseDate(actual)
		if !ok {
			return false
		}
		days, ok := model.ToFloat(expected)
		if !ok {
			return false
		}
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		return date.Before(cutoff)

	default:
		return false
	}
}

// Applies reports whether a rule covers a record's type.
func Applies(rule *model.Rule, record *model.Record) bool {
	types := rule.ApplicableRecordTypes
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == "all" || t == record.Type {
			return true
		}
	}
	return false
}

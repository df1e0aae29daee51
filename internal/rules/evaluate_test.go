package rules

import (
	"testing"
	"time"

	"github.com/policypulse/policypulse/internal/model"
)

func boolRule(field string, operator model.Operator, value any) *model.Rule {
	return &model.Rule{
		RuleID: "RULE-TEST",
		ValidationLogic: model.ValidationLogic{
			Field:    field,
			Operator: operator,
			Value:    value,
		},
	}
}

func record(data map[string]any) *model.Record {
	return &model.Record{RecordID: "REC-TEST", Type: "employee", Data: data}
}

func TestEvaluateIsTrue(t *testing.T) {
	rule := boolRule("mfa_enabled", model.OpIsTrue, nil)

	if !Evaluate(rule, record(map[string]any{"mfa_enabled": false})) {
		t.Error("mfa_enabled=false should violate is_true")
	}
	if Evaluate(rule, record(map[string]any{"mfa_enabled": true})) {
		t.Error("mfa_enabled=true should pass is_true")
	}
	if !Evaluate(rule, record(map[string]any{})) {
		t.Error("missing field should violate is_true")
	}
}

func TestEvaluateIsFalse(t *testing.T) {
	rule := boolRule("publicly_accessible", model.OpIsFalse, nil)

	if !Evaluate(rule, record(map[string]any{"publicly_accessible": true})) {
		t.Error("true value should violate is_false")
	}
	if Evaluate(rule, record(map[string]any{"publicly_accessible": false})) {
		t.Error("false value should pass is_false")
	}
}

func TestEvaluateEquals(t *testing.T) {
	rule := boolRule("status", model.OpEquals, "active")

	if !Evaluate(rule, record(map[string]any{"status": "inactive"})) {
		t.Error("mismatched value should violate equals")
	}
	if Evaluate(rule, record(map[string]any{"status": "active"})) {
		t.Error("matching value should pass equals")
	}
}

func TestEvaluateNotEquals(t *testing.T) {
	rule := boolRule("access_level", model.OpNotEquals, "admin")

	if !Evaluate(rule, record(map[string]any{"access_level": "admin"})) {
		t.Error("forbidden value should violate not_equals")
	}
	if Evaluate(rule, record(map[string]any{"access_level": "standard"})) {
		t.Error("other value should pass not_equals")
	}
}

func TestEvaluateNumericComparisons(t *testing.T) {
	gt := boolRule("retention_days", model.OpGreaterThan, 90)
	if !Evaluate(gt, record(map[string]any{"retention_days": 30})) {
		t.Error("30 should violate greater_than 90")
	}
	if Evaluate(gt, record(map[string]any{"retention_days": 365})) {
		t.Error("365 should pass greater_than 90")
	}
	if Evaluate(gt, record(map[string]any{"retention_days": "not a number"})) {
		t.Error("non-numeric actual should not violate")
	}

	lt := boolRule("retention_days", model.OpLessThan, 730)
	if !Evaluate(lt, record(map[string]any{"retention_days": 2555})) {
		t.Error("2555 should violate less_than 730")
	}
	if Evaluate(lt, record(map[string]any{"retention_days": 365})) {
		t.Error("365 should pass less_than 730")
	}
}

func TestEvaluateContains(t *testing.T) {
	rule := boolRule("tags", model.OpContains, "Encrypted")

	if !Evaluate(rule, record(map[string]any{"tags": "plaintext"})) {
		t.Error("missing substring should violate contains")
	}
	if Evaluate(rule, record(map[string]any{"tags": "aes-encrypted-store"})) {
		t.Error("case-insensitive substring match should pass contains")
	}
}

func TestEvaluateExists(t *testing.T) {
	rule := boolRule("data_classification", model.OpExists, nil)

	if !Evaluate(rule, record(map[string]any{})) {
		t.Error("absent field should violate exists")
	}
	if !Evaluate(rule, record(map[string]any{"data_classification": nil})) {
		t.Error("nil field should violate exists")
	}
	if !Evaluate(rule, record(map[string]any{"data_classification": ""})) {
		t.Error("empty string should violate exists")
	}
	if Evaluate(rule, record(map[string]any{"data_classification": "confidential"})) {
		t.Error("populated field should pass exists")
	}
}

func TestEvaluateDateWithinDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rule := boolRule("last_training_date", model.OpDateWithinDays, 365)

	old := now.AddDate(0, 0, -400).Format("2006-01-02")
	if !EvaluateAt(rule, record(map[string]any{"last_training_date": old}), now) {
		t.Error("400-day-old date should violate a 365-day window")
	}

	recent := now.AddDate(0, 0, -45).Format("2006-01-02")
	if EvaluateAt(rule, record(map[string]any{"last_training_date": recent}), now) {
		t.Error("45-day-old date should pass a 365-day window")
	}

	if EvaluateAt(rule, record(map[string]any{"last_training_date": "not-a-date"}), now) {
		t.Error("unparseable date should not violate")
	}
	if EvaluateAt(rule, record(map[string]any{}), now) {
		t.Error("missing date should not violate")
	}
}

func TestEvaluateUnknownOperatorFailsSafe(t *testing.T) {
	rule := boolRule("retention_days", "max_days", 365)
	if Evaluate(rule, record(map[string]any{"retention_days": 9999})) {
		t.Error("unknown operator should never produce a violation")
	}
}

func TestEvaluateEmptyLogicFailsSafe(t *testing.T) {
	rule := &model.Rule{RuleID: "RULE-EMPTY"}
	if Evaluate(rule, record(map[string]any{"anything": true})) {
		t.Error("rule without validation logic should never violate")
	}
}

func TestApplies(t *testing.T) {
	rec := record(nil)

	if !Applies(&model.Rule{}, rec) {
		t.Error("rule with no applicable types should cover every record")
	}
	if !Applies(&model.Rule{ApplicableRecordTypes: []string{"all"}}, rec) {
		t.Error("'all' should cover every record")
	}
	if !Applies(&model.Rule{ApplicableRecordTypes: []string{"server", "employee"}}, rec) {
		t.Error("listed type should match")
	}
	if Applies(&model.Rule{ApplicableRecordTypes: []string{"server", "vendor"}}, rec) {
		t.Error("unlisted type should not match")
	}
}

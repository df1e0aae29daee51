package orchestrator

import (
	"testing"

	"github.com/policypulse/policypulse/internal/model"
)

func ruleWithField(field string) *model.Rule {
	return &model.Rule{
		RuleID:          "RULE-1",
		ValidationLogic: model.ValidationLogic{Field: field, Operator: model.OpIsTrue},
	}
}

func TestClassifyByField(t *testing.T) {
	cases := []struct {
		field string
		want  Domain
	}{
		{"mfa_enabled", DomainSecurity},
		{"encryption_enabled", DomainSecurity},
		{"ssl_certificate_valid", DomainSecurity},
		{"retention_days", DomainPrivacy},
		{"gdpr_compliant", DomainPrivacy},
		{"data_classification", DomainPrivacy},
		{"contract_signed", DomainVendor},
		{"dpa_signed", DomainVendor},
		{"backup_enabled", DomainOperations},
		{"last_training_date", DomainOperations},
	}
	for _, tc := range cases {
		if got := Classify(ruleWithField(tc.field), nil); got != tc.want {
			t.Errorf("field %s: got %s, want %s", tc.field, got, tc.want)
		}
	}
}

func TestClassifyByKeyword(t *testing.T) {
	rule := &model.Rule{
		RuleID:          "RULE-1",
		Name:            "Vendor DPA must be signed",
		Category:        "third-party",
		ValidationLogic: model.ValidationLogic{Field: "custom_field", Operator: model.OpIsTrue},
	}
	if got := Classify(rule, nil); got != DomainVendor {
		t.Errorf("keyword classification: got %s, want vendor", got)
	}

	rule = &model.Rule{
		RuleID:          "RULE-2",
		Name:            "Annual awareness refresh",
		Category:        "training",
		ValidationLogic: model.ValidationLogic{Field: "some_flag", Operator: model.OpIsTrue},
	}
	if got := Classify(rule, nil); got != DomainOperations {
		t.Errorf("keyword classification: got %s, want operations", got)
	}
}

func TestClassifyDefaultsToSecurity(t *testing.T) {
	rule := &model.Rule{
		RuleID:          "RULE-1",
		Name:            "Completely unrelated",
		Category:        "misc",
		ValidationLogic: model.ValidationLogic{Field: "unknown_field", Operator: model.OpIsTrue},
	}
	if got := Classify(rule, nil); got != DomainSecurity {
		t.Errorf("fallback classification: got %s, want security", got)
	}
	if got := Classify(nil, nil); got != DomainSecurity {
		t.Errorf("nil rule classification: got %s, want security", got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	rule := ruleWithField("contract_signed")
	first := Classify(rule, nil)
	for i := 0; i < 100; i++ {
		if got := Classify(rule, nil); got != first {
			t.Fatalf("classification flapped: got %s then %s", first, got)
		}
	}
}

func TestPlaybookAutoFixBoundaries(t *testing.T) {
	if !PlaybookFor(DomainSecurity).AutoFixable[model.OpEquals] {
		t.Error("security playbook should auto-fix equals")
	}
	if PlaybookFor(DomainVendor).AutoFixable[model.OpIsFalse] {
		t.Error("vendor playbook must not auto-fix is_false")
	}
	if PlaybookFor(DomainOperations).AutoFixable[model.OpEquals] {
		t.Error("operations playbook must not auto-fix equals")
	}
}

package seed

import (
	"context"
	"testing"
	"time"

	"github.com/policypulse/policypulse/internal/scan"
	"github.com/policypulse/policypulse/internal/store"
)

func TestApplyLoadsDemoDataset(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	rules, records, err := Apply(ctx, s)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rules != 10 || records != 20 {
		t.Errorf("counts: got %d rules, %d records, want 10 and 20", rules, records)
	}

	got, err := s.Rules(ctx)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	for _, r := range got {
		if r.PolicyID != PolicyID {
			t.Errorf("rule %s policy: got %s, want %s", r.RuleID, r.PolicyID, PolicyID)
		}
		if !r.Active {
			t.Errorf("rule %s should be active", r.RuleID)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	if _, _, err := Apply(ctx, s); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, _, err := Apply(ctx, s); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	rules, _ := s.Rules(ctx)
	records, _ := s.Records(ctx)
	if len(rules) != 10 || len(records) != 20 {
		t.Errorf("after reseed: %d rules, %d records, want 10 and 20", len(rules), len(records))
	}
}

func TestSeededDataTriggersKnownViolations(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	if _, _, err := Apply(ctx, s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	report, err := scan.New(s).Run(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.ViolationsFound == 0 {
		t.Fatal("demo data should produce violations on first scan")
	}

	// The deliberately-broken fixtures must all be flagged.
	open, err := s.OpenViolations(ctx, "", 0)
	if err != nil {
		t.Fatalf("open violations: %v", err)
	}
	flagged := make(map[[2]string]bool, len(open))
	for _, v := range open {
		flagged[[2]string{v.RuleID, v.RecordID}] = true
	}
	expected := [][2]string{
		{"RULE-001", "EMP-002"}, // MFA disabled
		{"RULE-001", "EMP-005"},
		{"RULE-002", "SRV-002"}, // unencrypted server
		{"RULE-002", "DS-003"},  // unencrypted data store
		{"RULE-003", "EMP-002"}, // stale training
		{"RULE-004", "VND-002"}, // unsigned contract
		{"RULE-004", "VND-004"},
		{"RULE-005", "SRV-003"}, // no backups
		{"RULE-006", "DS-002"},  // retention over 730 days
		{"RULE-007", "SRV-003"}, // invalid certificate
		{"RULE-008", "EMP-003"}, // admin access level
		{"RULE-010", "DS-002"},  // missing classification
	}
	for _, pair := range expected {
		if !flagged[pair] {
			t.Errorf("expected violation %s on %s not flagged", pair[0], pair[1])
		}
	}
}

func TestRecordsDatesAreRelative(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	for _, r := range Records(now) {
		raw, ok := r.Data["last_audit_date"]
		if !ok {
			t.Errorf("record %s missing last_audit_date", r.RecordID)
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw.(string))
		if err != nil {
			t.Errorf("record %s audit date %v: %v", r.RecordID, raw, err)
			continue
		}
		if parsed.After(now) {
			t.Errorf("record %s audit date %v is in the future", r.RecordID, raw)
		}
	}
}

func TestRuleSeveritiesCoverReviewBoundary(t *testing.T) {
	var reviewed, auto int
	for _, r := range Rules() {
		if r.Severity.NeedsHumanReview() {
			reviewed++
		} else {
			auto++
		}
	}
	if reviewed == 0 || auto == 0 {
		t.Errorf("demo rules should span the review boundary: %d reviewed, %d auto", reviewed, auto)
	}
}

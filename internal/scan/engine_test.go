package scan

import (
	"context"
	"strings"
	"testing"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/store"
)

func seedStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemory()
	ctx := context.Background()

	rules := []model.Rule{
		{
			RuleID:                "RULE-MFA",
			Name:                  "MFA required",
			Condition:             "mfa_enabled must be true",
			RequiredAction:        "Enable MFA for the account",
			Severity:              model.SeverityHigh,
			ApplicableRecordTypes: []string{"employee"},
			ValidationLogic:       model.ValidationLogic{Field: "mfa_enabled", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
		{
			RuleID:                "RULE-ENC",
			Name:                  "Encryption at rest",
			Condition:             "encryption_enabled must be true",
			Severity:              model.SeverityCritical,
			ApplicableRecordTypes: []string{"server"},
			ValidationLogic:       model.ValidationLogic{Field: "encryption_enabled", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
	}
	for _, r := range rules {
		if err := s.InsertRule(ctx, r); err != nil {
			t.Fatalf("insert rule: %v", err)
		}
	}

	records := []model.Record{
		{RecordID: "EMP-001", Type: "employee", Department: "Engineering", Data: map[string]any{"mfa_enabled": true}},
		{RecordID: "EMP-002", Type: "employee", Department: "Sales", Data: map[string]any{"mfa_enabled": false}},
		{RecordID: "SRV-001", Type: "server", Department: "Engineering", Data: map[string]any{"encryption_enabled": false}},
	}
	for _, r := range records {
		if err := s.InsertRecord(ctx, r); err != nil {
			t.Fatalf("insert record: %v", err)
		}
	}
	return s
}

func TestScanFindsViolations(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	result, err := New(s).Run(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.ViolationsFound != 2 {
		t.Errorf("violations found: got %d, want 2", result.ViolationsFound)
	}
	if result.RecordsScanned != 3 || result.RulesApplied != 2 {
		t.Errorf("coverage: got %d records, %d rules, want 3 and 2", result.RecordsScanned, result.RulesApplied)
	}
	if !strings.HasPrefix(result.ScanID, "SCAN-") {
		t.Errorf("scan id: got %q, want SCAN- prefix", result.ScanID)
	}

	open, err := s.OpenViolations(ctx, "", 0)
	if err != nil {
		t.Fatalf("open violations: %v", err)
	}
	for _, v := range open {
		if !strings.HasPrefix(v.ViolationID, "VIO-") {
			t.Errorf("violation id: got %q, want VIO- prefix", v.ViolationID)
		}
		if v.ConfidenceScore != 0.85 {
			t.Errorf("confidence: got %v, want 0.85", v.ConfidenceScore)
		}
		if v.ScanID != result.ScanID {
			t.Errorf("scan id on violation: got %q, want %q", v.ScanID, result.ScanID)
		}
		if !v.NeedsHumanReview {
			t.Errorf("%s severity %s should need human review", v.ViolationID, v.Severity)
		}
	}

	runs, err := s.ScanRuns(ctx, 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("scan runs: %v (%d)", err, len(runs))
	}
	if runs[0].Status != "completed" || runs[0].ViolationsFound != 2 {
		t.Errorf("scan run: got %+v, want completed with 2 violations", runs[0])
	}
}

func TestScanIsIdempotentOverOpenViolations(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	engine := New(s)

	first, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.ViolationsFound != 0 {
		t.Errorf("second scan over unchanged data: got %d new violations, want 0", second.ViolationsFound)
	}
	if n, _ := s.CountViolations(ctx, model.StatusOpen); n != first.ViolationsFound {
		t.Errorf("open count after rescan: got %d, want %d", n, first.ViolationsFound)
	}
}

func TestScanReflagsResolvedButNotEscalated(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	engine := New(s)

	if _, err := engine.Run(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	open, _ := s.OpenViolations(ctx, "", 0)
	if len(open) != 2 {
		t.Fatalf("open after first scan: got %d, want 2", len(open))
	}

	// Resolve one without fixing the data: the next scan flags it again.
	// Escalate the other: it waits for a human and is not re-flagged.
	if _, err := s.ResolveViolation(ctx, open[0].ViolationID, "agent", "resolved without a fix"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := s.EscalateViolation(ctx, open[1].ViolationID, "agent", "needs human"); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.ViolationsFound != 1 {
		t.Errorf("second scan: got %d new violations, want 1 (the resolved-but-unfixed pair)", result.ViolationsFound)
	}
}

func TestScanFixedDataProducesNothing(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	engine := New(s)

	if _, err := engine.Run(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// Fix the data and resolve everything.
	if _, err := s.UpdateRecordField(ctx, "EMP-002", "mfa_enabled", true, "agent"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.UpdateRecordField(ctx, "SRV-001", "encryption_enabled", true, "agent"); err != nil {
		t.Fatalf("update: %v", err)
	}
	open, _ := s.OpenViolations(ctx, "", 0)
	for _, v := range open {
		if _, err := s.ResolveViolation(ctx, v.ViolationID, "agent", "fixed"); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	result, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if result.ViolationsFound != 0 {
		t.Errorf("rescan of fixed data: got %d violations, want 0", result.ViolationsFound)
	}
}

func TestScoreHelper(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	clean, err := Score(ctx, s)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if clean.Score != 100.0 || clean.OpenViolations != 0 {
		t.Errorf("clean score: got %+v, want 100.0 with no open violations", clean)
	}

	if _, err := New(s).Run(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	after, err := Score(ctx, s)
	if err != nil {
		t.Fatalf("score after scan: %v", err)
	}
	// 1 critical + 1 high over 2x3 coverage: 100 - 7/6*500 floors at 0.
	if after.Score != 0.0 {
		t.Errorf("score after scan: got %v, want 0.0", after.Score)
	}
	if after.Critical != 1 || after.High != 1 || after.OpenViolations != 2 {
		t.Errorf("breakdown: got %+v", after)
	}
}

// Package scan drives the rules x records cross product, writing
// idempotent violations and tracking each run as a ScanRun.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/rules"
	"github.com/policypulse/policypulse/internal/score"
	"github.com/policypulse/policypulse/internal/store"
)

// Result summarizes one completed scan.
type Result struct {
	ScanID          string    `json:"scan_id"`
	ViolationsFound int       `json:"violations_found"`
	RecordsScanned  int       `json:"records_scanned"`
	RulesApplied    int       `json:"rules_applied"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Engine runs compliance scans against a store.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// New creates a scan engine over the given store.
func New(s store.Store) *Engine {
	return &Engine{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Run executes a full scan: every rule against every applicable record.
// Pairs with a violation already awaiting action are skipped, so re-running
// over unchanged data creates zero new violations.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	scanID := model.NewID("SCAN")
	startedAt := e.now()

	if err := e.store.InsertScanRun(ctx, model.ScanRun{
		ScanID:    scanID,
		Status:    "running",
		StartedAt: startedAt,
	}); err != nil {
		return nil, fmt.Errorf("scan: create run: %w", err)
	}

	allRules, err := e.store.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: load rules: %w", err)
	}
	records, err := e.store.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: load records: %w", err)
	}

	// One read for the whole dedup set, not one per pair.
	openPairs, err := e.store.OpenPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: load open pairs: %w", err)
	}

	var found []model.Violation
	for i := range records {
		record := &records[i]
		for j := range allRules {
			rule := &allRules[j]
			if !rules.Applies(rule, record) {
				continue
			}
			if openPairs[store.Pair{RuleID: rule.RuleID, RecordID: record.RecordID}] {
				continue
			}
			if !rules.EvaluateAt(rule, record, startedAt) {
				continue
			}

			remediation := rule.RequiredAction
			if remediation == "" {
				remediation = "Review and remediate"
			}
			found = append(found, model.Violation{
				ViolationID:          model.NewID("VIO"),
				ScanID:               scanID,
				RuleID:               rule.RuleID,
				RecordID:             record.RecordID,
				PolicyID:             rule.PolicyID,
				Condition:            rule.Condition,
				Explanation:          rules.Explain(rule, record),
				RiskAssessment:       rules.RiskAssessment(rule.Severity),
				ConfidenceScore:      0.85,
				Severity:             rule.Severity,
				SuggestedRemediation: remediation,
				Status:               model.StatusOpen,
				Department:           record.Department,
				DetectedAt:           e.now(),
				NeedsHumanReview:     rule.Severity.NeedsHumanReview(),
			})
		}
	}

	if err := e.store.InsertViolations(ctx, found); err != nil {
		return nil, fmt.Errorf("scan: insert violations: %w", err)
	}

	completedAt := e.now()
	if err := e.store.CompleteScanRun(ctx, scanID, completedAt, len(found), len(records), len(allRules)); err != nil {
		return nil, fmt.Errorf("scan: complete run: %w", err)
	}

	return &Result{
		ScanID:          scanID,
		ViolationsFound: len(found),
		RecordsScanned:  len(records),
		RulesApplied:    len(allRules),
		CompletedAt:     completedAt,
	}, nil
}

// Score computes the current compliance score from the store's open
// violation counts and total coverage.
func Score(ctx context.Context, s store.Store) (score.Breakdown, error) {
	totalRules, err := s.CountRules(ctx)
	if err != nil {
		return score.Breakdown{}, fmt.Errorf("scan: count rules: %w", err)
	}
	totalRecords, err := s.CountRecords(ctx)
	if err != nil {
		return score.Breakdown{}, fmt.Errorf("scan: count records: %w", err)
	}
	counts, err := s.OpenCounts(ctx)
	if err != nil {
		return score.Breakdown{}, fmt.Errorf("scan: count open violations: %w", err)
	}
	return score.Breakdown{
		Score:          score.Compute(totalRules, totalRecords, counts.Critical, counts.High, counts.Medium, counts.Low),
		OpenViolations: counts.Open,
		Critical:       counts.Critical,
		High:           counts.High,
		Medium:         counts.Medium,
		Low:            counts.Low,
	}, nil
}

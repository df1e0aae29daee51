// Package predict identifies records at risk of generating violations
// before a scan would flag them. Prediction never mutates state.
package predict

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/store"
)

const (
	// ExpiryWarningDays is the look-ahead window for date-based fields.
	ExpiryWarningDays = 30
	// ExpiryDangerDays marks an expiry as needing immediate action.
	ExpiryDangerDays = 7

	// DefaultMinRiskScore filters out pattern-spread noise unless the
	// caller asks for it explicitly.
	DefaultMinRiskScore = 2

	// MaxPredictions caps the ranked list in one report.
	MaxPredictions = 100
)

// Prediction is one record-at-risk finding.
type Prediction struct {
	RecordID          string `json:"record_id"`
	RecordType        string `json:"record_type"`
	Department        string `json:"department"`
	RuleID            string `json:"rule_id"`
	RuleName          string `json:"rule_name"`
	Field             string `json:"field"`
	CurrentValue      string `json:"current_value"`
	RiskScore         int    `json:"risk_score"`
	RiskType          string `json:"risk_type"`
	PredictedSeverity string `json:"predicted_severity"`
	Reason            string `json:"reason"`
	Recommendation    string `json:"recommendation"`
}

// DeptCount pairs a department with its prediction count.
type DeptCount struct {
	Department  string `json:"department"`
	Predictions int    `json:"predictions"`
}

// Summary aggregates a prediction run.
type Summary struct {
	BySeverity         map[string]int `json:"by_severity"`
	ByType             map[string]int `json:"by_type"`
	TopRiskDepartments []DeptCount    `json:"top_risk_departments"`
}

// Report is the full output of a prediction run.
type Report struct {
	Status           string       `json:"status"`
	Message          string       `json:"message,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
	RecordsScanned   int          `json:"records_scanned"`
	RulesEvaluated   int          `json:"rules_evaluated"`
	TotalPredictions int          `json:"total_predictions"`
	OverallRiskLevel string       `json:"overall_risk_level,omitempty"`
	Summary          Summary      `json:"summary"`
	Predictions      []Prediction `json:"predictions"`
}

// Options filters a prediction run.
type Options struct {
	RecordType   string
	Department   string
	MinRiskScore int
}

// Predictor runs read-only risk analysis over a store.
type Predictor struct {
	store store.Store
	now   func() time.Time
}

// New creates a predictor.
func New(s store.Store) *Predictor {
	return &Predictor{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Run evaluates every active rule against every matching record and
// returns ranked risk predictions plus departmental pattern spread.
func (p *Predictor) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.MinRiskScore <= 0 {
		opts.MinRiskScore = DefaultMinRiskScore
	}

	activeRules, err := p.store.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("predict: load rules: %w", err)
	}
	if len(activeRules) == 0 {
		return &Report{
			Status:      "no_rules",
			Message:     "No active rules found. Upload a compliance policy first.",
			Timestamp:   p.now(),
			Predictions: []Prediction{},
			Summary:     emptySummary(),
		}, nil
	}

	records, err := p.store.RecordsFiltered(ctx, opts.RecordType, opts.Department)
	if err != nil {
		return nil, fmt.Errorf("predict: load records: %w", err)
	}
	if len(records) == 0 {
		return &Report{
			Status:      "no_records",
			Message:     "No company records found. Import records first.",
			Timestamp:   p.now(),
			Predictions: []Prediction{},
			Summary:     emptySummary(),
		}, nil
	}

	open, err := p.store.OpenViolations(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("predict: load open violations: %w", err)
	}
	openPairs := make(map[store.Pair]bool, len(open))
	for _, v := range open {
		openPairs[store.Pair{RuleID: v.RuleID, RecordID: v.RecordID}] = true
	}

	var predictions []Prediction
	for i := range records {
		predictions = append(predictions, p.predictRecord(&records[i], activeRules, openPairs)...)
	}
	predictions = addPatternRisks(predictions, open, records)

	filtered := predictions[:0]
	for _, pred := range predictions {
		if pred.RiskScore >= opts.MinRiskScore {
			filtered = append(filtered, pred)
		}
	}
	predictions = filtered

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].RiskScore > predictions[j].RiskScore
	})

	report := &Report{
		Status:           "success",
		Timestamp:        p.now(),
		RecordsScanned:   len(records),
		RulesEvaluated:   len(activeRules),
		TotalPredictions: len(predictions),
		Summary:          summarize(predictions),
	}
	report.OverallRiskLevel = overallRisk(report.Summary.BySeverity)
	if len(predictions) > MaxPredictions {
		predictions = predictions[:MaxPredictions]
	}
	if predictions == nil {
		predictions = []Prediction{}
	}
	report.Predictions = predictions
	return report, nil
}

func (p *Predictor) predictRecord(record *model.Record, activeRules []model.Rule, openPairs map[store.Pair]bool) []Prediction {
	var out []Prediction

	for i := range activeRules {
		rule := &activeRules[i]
		logic := rule.ValidationLogic
		if logic.Field == "" || logic.Operator == "" {
			continue
		}
		if openPairs[store.Pair{RuleID: rule.RuleID, RecordID: record.RecordID}] {
			continue
		}

		actual, present := record.Data[logic.Field]
		scoreVal, riskType, reason := p.strategize(logic, actual, present, rule)
		if scoreVal < 2 {
			continue
		}

		recommendation := rule.RequiredAction
		if recommendation == "" {
			recommendation = fmt.Sprintf("Ensure '%s' satisfies '%s' requirement.", logic.Field, logic.Operator)
		}
		current := "null"
		if actual != nil {
			current = fmt.Sprintf("%v", actual)
		}
		out = append(out, Prediction{
			RecordID:          record.RecordID,
			RecordType:        recordType(record),
			Department:        record.Department,
			RuleID:            rule.RuleID,
			RuleName:          rule.Name,
			Field:             logic.Field,
			CurrentValue:      current,
			RiskScore:         scoreVal,
			RiskType:          riskType,
			PredictedSeverity: severityFromScore(scoreVal),
			Reason:            reason,
			Recommendation:    recommendation,
		})
	}
	return out
}

// strategize applies the prediction strategies in fixed order and
// returns the first that fires (score 0 means none did).
func (p *Predictor) strategize(logic model.ValidationLogic, actual any, present bool, rule *model.Rule) (int, string, string) {
	field := logic.Field

	if missing(actual, present) {
		return 4, "field_missing", fmt.Sprintf(
			"Required field '%s' is missing from this record. Rule '%s' will flag this as a violation on the next scan.",
			field, rule.Name)
	}

	switch logic.Operator {
	case model.OpIsTrue:
		if actual == false {
			return 5, "boolean_violation", fmt.Sprintf(
				"Field '%s' is currently False. Rule requires it to be True, this will become a violation.", field)
		}
	case model.OpIsFalse:
		if actual == true {
			return 4, "boolean_violation", fmt.Sprintf(
				"Field '%s' is currently True but rule requires it to be False.", field)
		}
	case model.OpDateWithinDays, "not_expired":
		daysLeft, ok := p.daysUntil(actual)
		if !ok {
			return 0, "", ""
		}
		switch {
		case daysLeft < 0:
			return 5, "expired", fmt.Sprintf(
				"Field '%s' expired %d days ago. Violation is imminent if not already detected.", field, -daysLeft)
		case daysLeft <= ExpiryDangerDays:
			return 4, "expiry_imminent", fmt.Sprintf(
				"Field '%s' expires in %d days, within danger threshold (%dd). Immediate action required.",
				field, daysLeft, ExpiryDangerDays)
		case daysLeft <= ExpiryWarningDays:
			return 2, "expiry_warning", fmt.Sprintf(
				"Field '%s' expires in %d days. Warning threshold is %d days.", field, daysLeft, ExpiryWarningDays)
		}
	case model.OpLessThan, model.OpGreaterThan, model.OpMaxDays:
		a, aok := asNumber(actual)
		t, tok := asNumber(logic.Value)
		if !aok || !tok {
			return 0, "", ""
		}
		switch logic.Operator {
		case model.OpLessThan:
			if a >= t {
				return 3, "threshold_breach", fmt.Sprintf(
					"Field '%s' = %v but rule requires < %v.", field, actual, logic.Value)
			}
		case model.OpGreaterThan:
			if a <= t {
				return 3, "threshold_breach", fmt.Sprintf(
					"Field '%s' = %v but rule requires > %v.", field, actual, logic.Value)
			}
		case model.OpMaxDays:
			if a > t {
				return 3, "retention_breach", fmt.Sprintf(
					"Field '%s' = %v days exceeds maximum of %v days.", field, actual, logic.Value)
			}
		}
	case model.OpEquals:
		if logic.Value == nil {
			return 0, "", ""
		}
		if !strings.EqualFold(model.Stringify(actual), model.Stringify(logic.Value)) {
			return 2, "value_mismatch", fmt.Sprintf(
				"Field '%s' = '%v' but rule expects '%v'.", field, actual, logic.Value)
		}
	}

	return 0, "", ""
}

// addPatternRisks flags records in departments where the same rule has
// already produced violations elsewhere.
func addPatternRisks(predictions []Prediction, open []model.Violation, records []model.Record) []Prediction {
	ruleDepts := make(map[string]map[string]bool)
	for _, v := range open {
		if v.RuleID == "" || v.Department == "" {
			continue
		}
		if ruleDepts[v.RuleID] == nil {
			ruleDepts[v.RuleID] = make(map[string]bool)
		}
		ruleDepts[v.RuleID][v.Department] = true
	}

	seen := make(map[store.Pair]bool, len(predictions))
	for _, p := range predictions {
		seen[store.Pair{RuleID: p.RuleID, RecordID: p.RecordID}] = true
	}

	// Deterministic rule order for the appended pattern risks.
	ruleIDs := make([]string, 0, len(ruleDepts))
	for rid := range ruleDepts {
		ruleIDs = append(ruleIDs, rid)
	}
	sort.Strings(ruleIDs)

	for i := range records {
		record := &records[i]
		if record.Department == "" {
			continue
		}
		for _, ruleID := range ruleIDs {
			if !ruleDepts[ruleID][record.Department] {
				continue
			}
			pair := store.Pair{RuleID: ruleID, RecordID: record.RecordID}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			predictions = append(predictions, Prediction{
				RecordID:          record.RecordID,
				RecordType:        recordType(record),
				Department:        record.Department,
				RuleID:            ruleID,
				CurrentValue:      "unknown",
				RiskScore:         1,
				RiskType:          "pattern_spread",
				PredictedSeverity: "info",
				Reason: fmt.Sprintf(
					"Department '%s' has other records violating this rule. This record may be at similar risk.",
					record.Department),
				Recommendation: "Review this record proactively for the same compliance issue.",
			})
		}
	}
	return predictions
}

func summarize(predictions []Prediction) Summary {
	s := emptySummary()
	deptCounts := make(map[string]int)
	for _, p := range predictions {
		s.BySeverity[p.PredictedSeverity]++
		s.ByType[p.RiskType]++
		dept := p.Department
		if dept == "" {
			dept = "Unknown"
		}
		deptCounts[dept]++
	}

	depts := make([]DeptCount, 0, len(deptCounts))
	for d, c := range deptCounts {
		depts = append(depts, DeptCount{Department: d, Predictions: c})
	}
	sort.Slice(depts, func(i, j int) bool {
		if depts[i].Predictions == depts[j].Predictions {
			return depts[i].Department < depts[j].Department
		}
		return depts[i].Predictions > depts[j].Predictions
	})
	if len(depts) > 5 {
		depts = depts[:5]
	}
	s.TopRiskDepartments = depts
	return s
}

func overallRisk(bySeverity map[string]int) string {
	switch {
	case bySeverity["critical"] > 0:
		return "critical"
	case bySeverity["high"] > 3:
		return "high"
	case bySeverity["high"] > 0:
		return "medium"
	default:
		return "low"
	}
}

func severityFromScore(s int) string {
	switch {
	case s >= 5:
		return "critical"
	case s >= 4:
		return "high"
	case s >= 3:
		return "medium"
	case s >= 2:
		return "low"
	default:
		return "info"
	}
}

func emptySummary() Summary {
	return Summary{
		BySeverity:         map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0, "info": 0},
		ByType:             map[string]int{},
		TopRiskDepartments: []DeptCount{},
	}
}

func missing(actual any, present bool) bool {
	if !present || actual == nil || actual == "" {
		return true
	}
	if arr, ok := actual.([]any); ok && len(arr) == 0 {
		return true
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// daysUntil returns whole days until a date value, negative if past.
func (p *Predictor) daysUntil(v any) (int, bool) {
	date, ok := model.ParseDate(v)
	if !ok {
		return 0, false
	}
	return int(math.Floor(date.Sub(p.now()).Hours() / 24)), true
}

func recordType(r *model.Record) string {
	if r.Type == "" {
		return "unknown"
	}
	return r.Type
}

// Package advisor analyzes violation history and rule coverage and
// produces prioritized policy recommendations.
package advisor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/store"
)

// FrequencyWindowDays is the look-back window for frequency analysis.
const FrequencyWindowDays = 30

// MaxNewRuleSuggestions caps how many catalog-based suggestions one
// report carries.
const MaxNewRuleSuggestions = 8

// Recommendation is one advisory finding. Fields are populated per type.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`

	RuleID            string `json:"rule_id,omitempty"`
	RuleName          string `json:"rule_name,omitempty"`
	RecordID          string `json:"record_id,omitempty"`
	Field             string `json:"field,omitempty"`
	Operator          string `json:"operator,omitempty"`
	Severity          string `json:"severity,omitempty"`
	Category          string `json:"category,omitempty"`
	CurrentSeverity   string `json:"current_severity,omitempty"`
	SuggestedSeverity string `json:"suggested_severity,omitempty"`
	SuggestedRule     string `json:"suggested_rule,omitempty"`
	SuggestedName     string `json:"suggested_name,omitempty"`
	ViolationCount    int    `json:"violation_count,omitempty"`
	RepeatCount       int    `json:"repeat_count,omitempty"`
	ObservedInRecords int    `json:"observed_in_records,omitempty"`
	CurrentlyOpen     bool   `json:"currently_open,omitempty"`

	Analysis string `json:"analysis"`
	Action   string `json:"action"`
}

// Summary counts recommendations by type and priority.
type Summary struct {
	ByType     map[string]int `json:"by_type"`
	ByPriority map[string]int `json:"by_priority"`
}

// Report is the full advisory output.
type Report struct {
	Status               string           `json:"status"`
	Timestamp            time.Time        `json:"timestamp"`
	PolicyHealth         string           `json:"policy_health"`
	PolicyHealthMessage  string           `json:"policy_health_message"`
	TotalRecommendations int              `json:"total_recommendations"`
	Summary              Summary          `json:"summary"`
	Recommendations      []Recommendation `json:"recommendations"`
}

// catalogEntry is a known compliance-critical field and the rule it
// should have.
type catalogEntry struct {
	Field         string
	SuggestedRule string
	Operator      model.Operator
	Severity      model.Severity
	Category      string
}

// complianceCatalog lists fields that should always have a rule.
var complianceCatalog = []catalogEntry{
	{"mfa_enabled", "All accounts must have MFA enabled", model.OpIsTrue, model.SeverityCritical, "Security"},
	{"encryption_enabled", "Data at rest must be encrypted", model.OpIsTrue, model.SeverityCritical, "Security"},
	{"ssl_certificate_valid", "All servers must have valid SSL/TLS certificates", model.OpIsTrue, model.SeverityHigh, "Security"},
	{"backup_enabled", "Automated backups must be enabled", model.OpIsTrue, model.SeverityHigh, "Operations"},
	{"contract_signed", "All vendors must have a signed contract on file", model.OpIsTrue, model.SeverityHigh, "Vendor"},
	{"last_training_date", "Security training must be completed within the last 365 days", model.OpDateWithinDays, model.SeverityMedium, "Operations"},
	{"firewall_enabled", "All network devices must have firewall enabled", model.OpIsTrue, model.SeverityCritical, "Security"},
	{"gdpr_compliant", "All data processing must be GDPR compliant", model.OpIsTrue, model.SeverityCritical, "Privacy"},
	{"data_classification", "All records must have a data classification level assigned", model.OpEquals, model.SeverityMedium, "Privacy"},
	{"patch_level", "Systems must be patched to the current level", model.OpEquals, model.SeverityHigh, "Security"},
	{"retention_days", "Data must not be retained beyond the maximum allowed period", model.OpMaxDays, model.SeverityMedium, "Privacy"},
	{"incident_response_plan", "Incident response plan must be documented and tested", model.OpIsTrue, model.SeverityHigh, "Operations"},
}

// Advisor runs policy analysis over a store.
type Advisor struct {
	store store.Store
	now   func() time.Time
}

// New creates an advisor.
func New(s store.Store) *Advisor {
	return &Advisor{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Run executes all analysis strategies and returns the combined report.
// The run itself is recorded as one agent log entry.
func (a *Advisor) Run(ctx context.Context) (*Report, error) {
	frequency, err := a.analyzeFrequency(ctx, FrequencyWindowDays)
	if err != nil {
		return nil, err
	}
	repeats, err := a.analyzeRepeatOffenders(ctx)
	if err != nil {
		return nil, err
	}
	gaps, err := a.analyzeCoverageGaps(ctx)
	if err != nil {
		return nil, err
	}
	newRules, err := a.suggestNewRules(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]Recommendation, 0, len(frequency)+len(repeats)+len(gaps)+len(newRules))
	all = append(all, frequency...)
	all = append(all, repeats...)
	all = append(all, gaps...)
	all = append(all, newRules...)

	priorityOrder := map[string]int{"high": 0, "medium": 1, "low": 2}
	typeOrder := map[string]int{
		"severity_upgrade":    0,
		"repeat_offender":     1,
		"coverage_gap":        2,
		"new_rule_suggestion": 3,
		"frequent_violation":  4,
	}
	sort.SliceStable(all, func(i, j int) bool {
		pi, pj := orderOf(priorityOrder, all[i].Priority, 2), orderOf(priorityOrder, all[j].Priority, 2)
		if pi != pj {
			return pi < pj
		}
		return orderOf(typeOrder, all[i].Type, 5) < orderOf(typeOrder, all[j].Type, 5)
	})

	summary := Summary{
		ByType:     map[string]int{},
		ByPriority: map[string]int{"high": 0, "medium": 0, "low": 0},
	}
	for _, r := range all {
		summary.ByType[r.Type]++
		summary.ByPriority[r.Priority]++
	}

	if err := a.store.AppendLog(ctx, model.AgentLogEntry{
		EntityID: "system",
		Action:   "policy_advisor",
		Reason: fmt.Sprintf("Policy Advisor generated %d recommendations (%d high priority).",
			len(all), summary.ByPriority["high"]),
		Agent: "PolicyPulse ReAct Agent v1",
	}); err != nil {
		return nil, fmt.Errorf("advisor: log run: %w", err)
	}

	health, healthMsg := assessHealth(summary.ByPriority["high"])
	return &Report{
		Status:               "success",
		Timestamp:            a.now(),
		PolicyHealth:         health,
		PolicyHealthMessage:  healthMsg,
		TotalRecommendations: len(all),
		Summary:              summary,
		Recommendations:      all,
	}, nil
}

// analyzeFrequency flags rules triggering repeatedly in the window:
// 5+ violations suggest a severity upgrade, 3-4 targeted enforcement.
func (a *Advisor) analyzeFrequency(ctx context.Context, days int) ([]Recommendation, error) {
	since := a.now().Add(-time.Duration(days) * 24 * time.Hour)
	violations, err := a.store.ViolationsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("advisor: load recent violations: %w", err)
	}

	counts := make(map[string]int)
	criticalCounts := make(map[string]int)
	for _, v := range violations {
		if v.RuleID == "" {
			continue
		}
		counts[v.RuleID]++
		if v.Severity == model.SeverityCritical {
			criticalCounts[v.RuleID]++
		}
	}

	ruleIDs := topKeys(counts, 10)

	var out []Recommendation
	for _, ruleID := range ruleIDs {
		rule, err := a.store.RuleByID(ctx, ruleID)
		if err != nil {
			continue
		}
		count := counts[ruleID]
		criticalPct := float64(criticalCounts[ruleID]) / float64(count)

		switch {
		case count >= 5 && rule.Severity != model.SeverityCritical:
			suggested := model.SeverityHigh
			if criticalPct > 0.5 {
				suggested = model.SeverityCritical
			}
			out = append(out, Recommendation{
				Type:              "severity_upgrade",
				Priority:          "high",
				RuleID:            ruleID,
				RuleName:          rule.Name,
				CurrentSeverity:   string(rule.Severity),
				SuggestedSeverity: string(suggested),
				ViolationCount:    count,
				Analysis: fmt.Sprintf(
					"Rule '%s' triggered %d violations in %d days. %.0f%% were tagged critical. "+
						"Consider raising the severity level to ensure faster remediation.",
					rule.Name, count, days, criticalPct*100),
				Action: fmt.Sprintf("Upgrade rule severity from '%s' to '%s'.", rule.Severity, suggested),
			})
		case count >= 3:
			out = append(out, Recommendation{
				Type:           "frequent_violation",
				Priority:       "medium",
				RuleID:         ruleID,
				RuleName:       rule.Name,
				ViolationCount: count,
				Analysis: fmt.Sprintf(
					"Rule '%s' triggered %d violations in %d days. This rule is triggering frequently. "+
						"Consider targeted training or automated enforcement.",
					rule.Name, count, days),
				Action: "Add automated enforcement or schedule a compliance training session for affected departments.",
			})
		}
	}
	return out, nil
}

// analyzeRepeatOffenders finds (record, rule) pairs resolved two or
// more times; a pair that is open again suggests the fix does not stick.
func (a *Advisor) analyzeRepeatOffenders(ctx context.Context) ([]Recommendation, error) {
	resolved, err := a.store.ViolationsByStatus(ctx, model.StatusResolved, 0)
	if err != nil {
		return nil, fmt.Errorf("advisor: load resolved violations: %w", err)
	}
	open, err := a.store.OpenViolations(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("advisor: load open violations: %w", err)
	}

	comboCounts := make(map[store.Pair]int)
	for _, v := range resolved {
		if v.RecordID == "" || v.RuleID == "" {
			continue
		}
		comboCounts[store.Pair{RuleID: v.RuleID, RecordID: v.RecordID}]++
	}
	openCombos := make(map[store.Pair]bool, len(open))
	for _, v := range open {
		openCombos[store.Pair{RuleID: v.RuleID, RecordID: v.RecordID}] = true
	}

	combos := make([]store.Pair, 0, len(comboCounts))
	for c := range comboCounts {
		combos = append(combos, c)
	}
	sort.Slice(combos, func(i, j int) bool {
		if comboCounts[combos[i]] != comboCounts[combos[j]] {
			return comboCounts[combos[i]] > comboCounts[combos[j]]
		}
		if combos[i].RecordID != combos[j].RecordID {
			return combos[i].RecordID < combos[j].RecordID
		}
		return combos[i].RuleID < combos[j].RuleID
	})
	if len(combos) > 10 {
		combos = combos[:10]
	}

	var out []Recommendation
	for _, combo := range combos {
		count := comboCounts[combo]
		if count < 2 {
			continue
		}
		currentlyOpen := openCombos[combo]

		ruleName := combo.RuleID
		if rule, err := a.store.RuleByID(ctx, combo.RuleID); err == nil && rule.Name != "" {
			ruleName = rule.Name
		}

		priority := "medium"
		status := "Was previously resolved."
		if currentlyOpen {
			priority = "high"
			status = "This violation is currently open again."
		}
		out = append(out, Recommendation{
			Type:          "repeat_offender",
			Priority:      priority,
			RecordID:      combo.RecordID,
			RuleID:        combo.RuleID,
			RuleName:      ruleName,
			RepeatCount:   count,
			CurrentlyOpen: currentlyOpen,
			Analysis: fmt.Sprintf(
				"Record '%s' has violated rule '%s' %d times. %s This pattern suggests the fix is not permanent.",
				combo.RecordID, ruleName, count, status),
			Action: "Investigate root cause: the auto-fix may be reverted by another process. " +
				"Consider enforcing this at the infrastructure level to prevent regression.",
		})
	}
	return out, nil
}

// analyzeCoverageGaps finds compliance-critical fields observed in
// record data with no active rule covering them.
func (a *Advisor) analyzeCoverageGaps(ctx context.Context) ([]Recommendation, error) {
	records, err := a.store.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisor: load records: %w", err)
	}
	activeRules, err := a.store.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisor: load rules: %w", err)
	}

	observed := make(map[string]int)
	for _, r := range records {
		for field := range r.Data {
			observed[field]++
		}
	}
	covered := make(map[string]bool)
	for _, r := range activeRules {
		if r.ValidationLogic.Field != "" {
			covered[r.ValidationLogic.Field] = true
		}
	}

	var out []Recommendation
	for _, entry := range complianceCatalog {
		count := observed[entry.Field]
		if count < 2 || covered[entry.Field] {
			continue
		}
		priority := "medium"
		if entry.Severity.NeedsHumanReview() {
			priority = "high"
		}
		out = append(out, Recommendation{
			Type:              "coverage_gap",
			Priority:          priority,
			Field:             entry.Field,
			ObservedInRecords: count,
			SuggestedRule:     entry.SuggestedRule,
			Operator:          string(entry.Operator),
			Severity:          string(entry.Severity),
			Category:          entry.Category,
			Analysis: fmt.Sprintf(
				"Field '%s' is present in %d records but has no active compliance rule. "+
					"This is a known compliance-critical field (%s).",
				entry.Field, count, entry.Category),
			Action: fmt.Sprintf("Create a new '%s' rule: %q. Use operator '%s' on field '%s'.",
				entry.Severity, entry.SuggestedRule, entry.Operator, entry.Field),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ObservedInRecords != out[j].ObservedInRecords {
			return out[i].ObservedInRecords > out[j].ObservedInRecords
		}
		return out[i].Field < out[j].Field
	})
	return out, nil
}

// suggestNewRules proposes catalog rules for fields no rule checks at
// all, active or not.
func (a *Advisor) suggestNewRules(ctx context.Context) ([]Recommendation, error) {
	allRules, err := a.store.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisor: load rules: %w", err)
	}
	existing := make(map[string]bool)
	for _, r := range allRules {
		existing[r.ValidationLogic.Field] = true
	}

	var out []Recommendation
	for _, entry := range complianceCatalog {
		if existing[entry.Field] {
			continue
		}
		priority := "medium"
		if entry.Severity.NeedsHumanReview() {
			priority = "high"
		}
		out = append(out, Recommendation{
			Type:          "new_rule_suggestion",
			Priority:      priority,
			SuggestedName: entry.SuggestedRule,
			Field:         entry.Field,
			Operator:      string(entry.Operator),
			Severity:      string(entry.Severity),
			Category:      entry.Category,
			Analysis: fmt.Sprintf("No rule currently checks '%s'. This is a standard %s compliance requirement.",
				entry.Field, entry.Category),
			Action: fmt.Sprintf("Add rule: '%s' checking %s with operator '%s'.",
				entry.SuggestedRule, entry.Field, entry.Operator),
		})
	}

	priorityOrder := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(out, func(i, j int) bool {
		return orderOf(priorityOrder, out[i].Priority, 2) < orderOf(priorityOrder, out[j].Priority, 2)
	})
	if len(out) > MaxNewRuleSuggestions {
		out = out[:MaxNewRuleSuggestions]
	}
	return out, nil
}

func assessHealth(highCount int) (string, string) {
	switch {
	case highCount >= 5:
		return "critical", "Policy framework has critical gaps requiring immediate attention."
	case highCount >= 3:
		return "warning", "Several high-priority policy improvements identified."
	case highCount >= 1:
		return "fair", "Minor policy improvements recommended."
	default:
		return "good", "Policy framework is well-structured. Minor optimizations available."
	}
}

// topKeys returns up to n keys ordered by count desc, key asc.
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func orderOf(m map[string]int, key string, def int) int {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

package model

import "time"

// Severity classifies how serious a rule or violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityWeight maps severity to its contribution in the compliance score.
var SeverityWeight = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// NeedsHumanReview reports whether a severity is high enough to require
// a human in the loop when a violation is first detected.
func (s Severity) NeedsHumanReview() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// ParseSeverity coerces a raw string to a Severity. Unknown input
// defaults to medium.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// ViolationStatus is the lifecycle state of a violation.
type ViolationStatus string

const (
	StatusOpen      ViolationStatus = "open"
	StatusReviewed  ViolationStatus = "reviewed"
	StatusResolved  ViolationStatus = "resolved"
	StatusEscalated ViolationStatus = "escalated"
)

// Operator is a validation expression operator.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpIsTrue         Operator = "is_true"
	OpIsFalse        Operator = "is_false"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpContains       Operator = "contains"
	OpExists         Operator = "exists"
	OpDateWithinDays Operator = "date_within_days"

	// OpMaxDays appears in rule catalogs and risk prediction but is not
	// implemented by the evaluator; it falls under the unknown-operator
	// rule there (no violation).
	OpMaxDays Operator = "max_days"
)

// ValidationLogic is the machine-checkable expression attached to a rule.
type ValidationLogic struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// Rule is a declarative compliance requirement.
type Rule struct {
	RuleID                string          `json:"rule_id"`
	PolicyID              string          `json:"policy_id"`
	Name                  string          `json:"name"`
	Condition             string          `json:"condition"`
	RequiredAction        string          `json:"required_action"`
	Severity              Severity        `json:"severity"`
	Category              string          `json:"category"`
	ApplicableRecordTypes []string        `json:"applicable_record_types"`
	ValidationLogic       ValidationLogic `json:"validation_logic"`
	PolicyReference       string          `json:"policy_reference,omitempty"`
	Active                bool            `json:"is_active"`
}

// Record is a monitored entity with a flexible field map.
// Data is the only part of a record the engine mutates.
type Record struct {
	RecordID      string         `json:"record_id"`
	Type          string         `json:"type"`
	Name          string         `json:"name,omitempty"`
	Department    string         `json:"department"`
	Data          map[string]any `json:"data"`
	LastUpdatedBy string         `json:"last_updated_by,omitempty"`
	LastUpdatedAt time.Time      `json:"last_updated_at,omitempty"`
}

// DisplayName returns the best human-readable handle for a record.
func (r *Record) DisplayName() string {
	if r == nil {
		return ""
	}
	if n, ok := r.Data["name"].(string); ok && n != "" {
		return n
	}
	if r.Name != "" {
		return r.Name
	}
	return r.RecordID
}

// Violation is an open finding that a specific record fails a specific rule.
type Violation struct {
	ViolationID          string          `json:"violation_id"`
	ScanID               string          `json:"scan_id,omitempty"`
	RuleID               string          `json:"rule_id"`
	RecordID             string          `json:"record_id"`
	PolicyID             string          `json:"policy_id,omitempty"`
	Condition            string          `json:"condition"`
	Explanation          string          `json:"explanation"`
	RiskAssessment       string          `json:"risk_assessment"`
	ConfidenceScore      float64         `json:"confidence_score"`
	Severity             Severity        `json:"severity"`
	SuggestedRemediation string          `json:"suggested_remediation"`
	Status               ViolationStatus `json:"status"`
	Department           string          `json:"department"`
	DetectedAt           time.Time       `json:"detected_at"`
	NeedsHumanReview     bool            `json:"needs_human_review"`

	ResolvedBy       string     `json:"resolved_by,omitempty"`
	ResolutionReason string     `json:"resolution_reason,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`

	EscalatedBy      string     `json:"escalated_by,omitempty"`
	EscalationReason string     `json:"escalation_reason,omitempty"`
	EscalatedAt      *time.Time `json:"escalated_at,omitempty"`
}

// ScanRun records one invocation of the scan engine.
type ScanRun struct {
	ScanID          string    `json:"scan_id"`
	Status          string    `json:"status"` // running | completed
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
	ViolationsFound int       `json:"violations_found"`
	RecordsScanned  int       `json:"records_scanned"`
	RulesApplied    int       `json:"rules_applied"`
}

// AgentLogEntry is one line of the append-only remediation audit trail.
type AgentLogEntry struct {
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
}

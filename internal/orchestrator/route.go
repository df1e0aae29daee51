// Package orchestrator routes violations to domain specialist agents.
// Each specialist runs a single classify/plan/act pass driven by its
// playbook rather than the multi-step remediation loop.
package orchestrator

import (
	"strings"

	"github.com/policypulse/policypulse/internal/model"
)

// Domain names a specialist agent.
type Domain string

const (
	DomainSecurity   Domain = "security"
	DomainPrivacy    Domain = "privacy"
	DomainVendor     Domain = "vendor"
	DomainOperations Domain = "operations"
)

// Domains lists every specialist in routing-priority order.
var Domains = []Domain{DomainSecurity, DomainPrivacy, DomainVendor, DomainOperations}

// Playbook is what a specialist knows how to do. AutoFixable is narrower
// than the general agent's set; the vendor agent, for example, will not
// flip an is_false field because vendor data is contractually sourced.
type Playbook struct {
	Name         string
	Description  string
	AutoFixable  map[model.Operator]bool
	Priority     model.Severity
	Capabilities []string
}

var playbooks = map[Domain]Playbook{
	DomainSecurity: {
		Name:        "SecurityAgent",
		Description: "Handles MFA, encryption, SSL, firewall, access control violations",
		AutoFixable: map[model.Operator]bool{model.OpIsTrue: true, model.OpIsFalse: true, model.OpEquals: true},
		Priority:    model.SeverityCritical,
		Capabilities: []string{
			"Enable MFA on user accounts",
			"Activate encryption at rest",
			"Flag expired SSL certificates",
			"Enforce password policies",
			"Enable firewall rules",
		},
	},
	DomainPrivacy: {
		Name:        "PrivacyAgent",
		Description: "Handles GDPR, data retention, consent, anonymization violations",
		AutoFixable: map[model.Operator]bool{model.OpIsTrue: true, model.OpIsFalse: true, model.OpEquals: true},
		Priority:    model.SeverityHigh,
		Capabilities: []string{
			"Enable data anonymization",
			"Flag retention policy breaches",
			"Verify consent records",
			"Check GDPR compliance flags",
			"Escalate PII exposure risks",
		},
	},
	DomainVendor: {
		Name:        "VendorAgent",
		Description: "Handles vendor contracts, DPA, SLA, third-party risk violations",
		AutoFixable: map[model.Operator]bool{model.OpIsTrue: true},
		Priority:    model.SeverityHigh,
		Capabilities: []string{
			"Flag missing contracts",
			"Escalate unsigned DPAs",
			"Identify high-risk vendors",
			"Request SLA agreements",
			"Trigger vendor assessments",
		},
	},
	DomainOperations: {
		Name:        "OperationsAgent",
		Description: "Handles backups, training, DR plans, incident response",
		AutoFixable: map[model.Operator]bool{model.OpIsTrue: true, model.OpIsFalse: true},
		Priority:    model.SeverityMedium,
		Capabilities: []string{
			"Enable automated backups",
			"Flag overdue training",
			"Escalate untested DR plans",
			"Verify monitoring configuration",
			"Schedule maintenance windows",
		},
	},
}

// PlaybookFor returns the playbook for a domain.
func PlaybookFor(d Domain) Playbook { return playbooks[d] }

var domainFields = map[Domain]map[string]bool{
	DomainSecurity: set(
		"mfa_enabled", "encryption_enabled", "ssl_certificate_valid",
		"firewall_enabled", "patch_level", "password_policy_enforced",
		"access_control_enabled", "two_factor_auth", "login_attempts_limit",
	),
	DomainPrivacy: set(
		"retention_days", "data_minimization", "consent_obtained",
		"anonymization_enabled", "gdpr_compliant", "data_classification",
		"pii_encrypted", "right_to_erasure", "processing_agreement",
	),
	DomainVendor: set(
		"contract_signed", "dpa_signed", "sla_agreed",
		"vendor_assessment_done", "third_party_audit", "nda_signed",
		"vendor_risk_score", "subprocessor_listed",
	),
	DomainOperations: set(
		"backup_enabled", "last_training_date", "dr_plan_tested",
		"incident_response_plan", "monitoring_enabled", "log_retention",
		"change_management_process", "maintenance_window",
	),
}

var domainKeywords = map[Domain][]string{
	DomainSecurity:   {"mfa", "encrypt", "ssl", "access", "auth", "security", "firewall"},
	DomainPrivacy:    {"privacy", "gdpr", "retention", "data", "consent", "pii"},
	DomainVendor:     {"vendor", "contract", "dpa", "third", "supplier"},
	DomainOperations: {"backup", "training", "disaster", "operations", "incident"},
}

// Classify picks the specialist for a violation: exact field match first,
// then keyword search over the rule's category and name, then security.
func Classify(rule *model.Rule, _ *model.Violation) Domain {
	var field, category, name string
	if rule != nil {
		field = strings.ToLower(rule.ValidationLogic.Field)
		category = rule.Category
		name = rule.Name
	}

	for _, d := range Domains {
		if domainFields[d][field] {
			return d
		}
	}

	text := strings.ToLower(category + " " + name)
	for _, d := range Domains {
		for _, k := range domainKeywords[d] {
			if strings.Contains(text, k) {
				return d
			}
		}
	}

	return DomainSecurity
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

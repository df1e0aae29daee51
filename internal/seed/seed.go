// Package seed loads the demo compliance dataset: one policy's worth of
// GDPR/SOC2/ISO27001 rules and a fleet of company records, several of
// which deliberately fail the rules so a first scan has findings.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/store"
)

// PolicyID tags every seeded rule.
const PolicyID = "POL-DEMO0001"

// Rules returns the demo rule set.
func Rules() []model.Rule {
	return []model.Rule{
		{
			RuleID: "RULE-001", PolicyID: PolicyID,
			Condition:             "All employee accounts must have MFA enabled",
			RequiredAction:        "Enable MFA on all user accounts without exception",
			Severity:              model.SeverityCritical,
			PolicyReference:       "SOC2 CC6.1 / ISO 27001 A.9.4",
			Category:              "access_control",
			ApplicableRecordTypes: []string{"employee"},
			ValidationLogic:       model.ValidationLogic{Field: "mfa_enabled", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
		{
			RuleID: "RULE-002", PolicyID: PolicyID,
			Condition:             "All data stores must be encrypted at rest (AES-256)",
			RequiredAction:        "Enable encryption on all data stores and servers",
			Severity:              model.SeverityCritical,
			PolicyReference:       "GDPR Art. 32 / SOC2 CC6.7",
			Category:              "encryption",
			ApplicableRecordTypes: []string{"data_store", "server"},
			ValidationLogic:       model.ValidationLogic{Field: "encryption_enabled", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
		{
			RuleID: "RULE-003", PolicyID: PolicyID,
			Condition:             "Employees must complete security training within the last 365 days",
			RequiredAction:        "Complete annual security awareness training",
			Severity:              model.SeverityHigh,
			PolicyReference:       "ISO 27001 A.7.2.2 / SOC2 CC1.4",
			Category:              "training",
			ApplicableRecordTypes: []string{"employee"},
			ValidationLogic:       model.ValidationLogic{Field: "last_training_date", Operator: model.OpDateWithinDays, Value: 365},
			Active:                true,
		},
		{
			RuleID: "RULE-004", PolicyID: PolicyID,
			Condition:             "All vendors must have a signed Data Processing Agreement",
			RequiredAction:        "Execute and archive a signed DPA before data sharing",
			Severity:              model.SeverityHigh,
			PolicyReference:       "GDPR Art. 28",
			Category:              "vendor_management",
			ApplicableRecordTypes: []string{"vendor"},
			ValidationLogic:       model.ValidationLogic{Field: "contract_signed", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
		{
			RuleID: "RULE-005", PolicyID: PolicyID,
			Condition:             "Production servers must have automated daily backups",
			RequiredAction:        "Configure automated backup schedules on all servers",
			Severity:              model.SeverityHigh,
			PolicyReference:       "ISO 27001 A.12.3 / SOC2 A1.2",
			Category:              "data_protection",
			ApplicableRecordTypes: []string{"server"},
			ValidationLogic:       model.ValidationLogic{Field: "backup_enabled", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
		{
			RuleID: "RULE-006", PolicyID: PolicyID,
			Condition:             "Personal data must not be retained more than 730 days",
			RequiredAction:        "Implement 2-year data retention policy with automated review",
			Severity:              model.SeverityMedium,
			PolicyReference:       "GDPR Art. 5(1)(e)",
			Category:              "retention",
			ApplicableRecordTypes: []string{"data_store"},
			ValidationLogic:       model.ValidationLogic{Field: "retention_days", Operator: model.OpLessThan, Value: 730},
			Active:                true,
		},
		{
			RuleID: "RULE-007", PolicyID: PolicyID,
			Condition:             "All servers must have a valid SSL/TLS certificate",
			RequiredAction:        "Renew and install valid SSL certificates before expiry",
			Severity:              model.SeverityHigh,
			PolicyReference:       "SOC2 CC6.7",
			Category:              "encryption",
			ApplicableRecordTypes: []string{"server"},
			ValidationLogic:       model.ValidationLogic{Field: "ssl_certificate_valid", Operator: model.OpIsTrue, Value: true},
			Active:                true,
		},
		{
			RuleID: "RULE-008", PolicyID: PolicyID,
			Condition:             "Sensitive data access must follow least-privilege principles",
			RequiredAction:        "Review and restrict access rights to minimum required",
			Severity:              model.SeverityMedium,
			PolicyReference:       "ISO 27001 A.9.2.3",
			Category:              "access_control",
			ApplicableRecordTypes: []string{"employee", "data_store"},
			ValidationLogic:       model.ValidationLogic{Field: "access_level", Operator: model.OpNotEquals, Value: "admin"},
			Active:                true,
		},
		{
			RuleID: "RULE-009", PolicyID: PolicyID,
			Condition:             "Audit logs must be reviewed at least every 90 days",
			RequiredAction:        "Conduct and document quarterly audit log reviews",
			Severity:              model.SeverityMedium,
			PolicyReference:       "SOC2 CC7.2",
			Category:              "audit",
			ApplicableRecordTypes: []string{"all"},
			ValidationLogic:       model.ValidationLogic{Field: "last_audit_date", Operator: model.OpDateWithinDays, Value: 90},
			Active:                true,
		},
		{
			RuleID: "RULE-010", PolicyID: PolicyID,
			Condition:             "All data assets must have a classification label assigned",
			RequiredAction:        "Assign public/internal/confidential/restricted label",
			Severity:              model.SeverityLow,
			PolicyReference:       "ISO 27001 A.8.2",
			Category:              "data_protection",
			ApplicableRecordTypes: []string{"data_store"},
			ValidationLogic:       model.ValidationLogic{Field: "data_classification", Operator: model.OpExists, Value: true},
			Active:                true,
		},
	}
}

// Records returns the demo company records. Dates are computed relative
// to now so the same violations trigger regardless of when you seed.
func Records(now time.Time) []model.Record {
	daysAgo := func(d int) string {
		return now.AddDate(0, 0, -d).Format("2006-01-02")
	}

	return []model.Record{
		{
			RecordID: "EMP-001", Type: "employee", Department: "Engineering",
			Data: map[string]any{
				"name": "Alice Chen", "email": "alice@company.com", "mfa_enabled": true,
				"last_training_date": daysAgo(45), "access_level": "developer",
				"last_audit_date": daysAgo(30),
			},
		},
		{
			RecordID: "EMP-002", Type: "employee", Department: "HR",
			Data: map[string]any{
				"name": "Bob Martinez", "email": "bob@company.com", "mfa_enabled": false,
				"last_training_date": daysAgo(400), "access_level": "manager",
				"last_audit_date": daysAgo(100),
			},
		},
		{
			RecordID: "EMP-003", Type: "employee", Department: "Finance",
			Data: map[string]any{
				"name": "Carol Davis", "email": "carol@company.com", "mfa_enabled": true,
				"last_training_date": daysAgo(200), "access_level": "admin",
				"last_audit_date": daysAgo(20),
			},
		},
		{
			RecordID: "EMP-004", Type: "employee", Department: "Marketing",
			Data: map[string]any{
				"name": "David Lee", "email": "david@company.com", "mfa_enabled": true,
				"last_training_date": daysAgo(90), "access_level": "viewer",
				"last_audit_date": daysAgo(60),
			},
		},
		{
			RecordID: "EMP-005", Type: "employee", Department: "Engineering",
			Data: map[string]any{
				"name": "Emma Wilson", "email": "emma@company.com", "mfa_enabled": false,
				"last_training_date": daysAgo(180), "access_level": "developer",
				"last_audit_date": daysAgo(50),
			},
		},
		{
			RecordID: "SRV-001", Type: "server", Department: "Infrastructure",
			Data: map[string]any{
				"hostname": "prod-web-01", "ip": "10.0.1.10",
				"encryption_enabled": true, "backup_enabled": true, "ssl_certificate_valid": true,
				"last_audit_date": daysAgo(25),
			},
		},
		{
			RecordID: "SRV-002", Type: "server", Department: "Infrastructure",
			Data: map[string]any{
				"hostname": "prod-db-01", "ip": "10.0.1.20",
				"encryption_enabled": false, "backup_enabled": true, "ssl_certificate_valid": true,
				"last_audit_date": daysAgo(60),
			},
		},
		{
			RecordID: "SRV-003", Type: "server", Department: "Dev",
			Data: map[string]any{
				"hostname": "staging-api-01", "ip": "10.0.2.10",
				"encryption_enabled": true, "backup_enabled": false, "ssl_certificate_valid": false,
				"last_audit_date": daysAgo(95),
			},
		},
		{
			RecordID: "SRV-004", Type: "server", Department: "Infrastructure",
			Data: map[string]any{
				"hostname": "backup-store-01", "ip": "10.0.3.10",
				"encryption_enabled": true, "backup_enabled": true, "ssl_certificate_valid": true,
				"last_audit_date": daysAgo(15),
			},
		},
		{
			RecordID: "VND-001", Type: "vendor", Department: "Procurement",
			Data: map[string]any{
				"company_name": "CloudStore Inc.", "service": "Cloud Storage",
				"contract_signed": true, "data_types": []any{"personal", "financial"},
				"last_audit_date": daysAgo(45),
			},
		},
		{
			RecordID: "VND-002", Type: "vendor", Department: "Procurement",
			Data: map[string]any{
				"company_name": "SendGrid Analytics", "service": "Email Marketing",
				"contract_signed": false, "data_types": []any{"personal", "email"},
				"last_audit_date": daysAgo(200),
			},
		},
		{
			RecordID: "VND-003", Type: "vendor", Department: "HR",
			Data: map[string]any{
				"company_name": "PeopleHR Platform", "service": "HR Management",
				"contract_signed": true, "data_types": []any{"personal", "employment"},
				"last_audit_date": daysAgo(30),
			},
		},
		{
			RecordID: "VND-004", Type: "vendor", Department: "Finance",
			Data: map[string]any{
				"company_name": "PaymentPro Ltd", "service": "Payment Processing",
				"contract_signed": false, "data_types": []any{"financial", "personal"},
				"last_audit_date": daysAgo(150),
			},
		},
		{
			RecordID: "DS-001", Type: "data_store", Department: "Engineering",
			Data: map[string]any{
				"name": "Customer Database", "location": "AWS RDS",
				"encryption_enabled": true, "data_classification": "confidential",
				"retention_days": 365, "personal_data": true,
				"last_audit_date": daysAgo(20),
			},
		},
		{
			RecordID: "DS-002", Type: "data_store", Department: "Marketing",
			Data: map[string]any{
				"name": "Analytics Data Warehouse", "location": "GCP BigQuery",
				"encryption_enabled": true, "data_classification": nil,
				"retention_days": 800, "personal_data": true,
				"last_audit_date": daysAgo(100),
			},
		},
		{
			RecordID: "DS-003", Type: "data_store", Department: "Finance",
			Data: map[string]any{
				"name": "Financial Records Store", "location": "On-premise",
				"encryption_enabled": false, "data_classification": "restricted",
				"retention_days": 2555, "personal_data": false,
				"last_audit_date": daysAgo(85),
			},
		},
		{
			RecordID: "DS-004", Type: "data_store", Department: "HR",
			Data: map[string]any{
				"name": "Employee Records", "location": "Azure Blob",
				"encryption_enabled": true, "data_classification": "confidential",
				"retention_days": 365, "personal_data": true,
				"last_audit_date": daysAgo(40),
			},
		},
		{
			RecordID: "DS-005", Type: "data_store", Department: "Engineering",
			Data: map[string]any{
				"name": "Application Logs", "location": "Elasticsearch",
				"encryption_enabled": true, "data_classification": "internal",
				"retention_days": 180, "personal_data": false,
				"last_audit_date": daysAgo(10),
			},
		},
		{
			RecordID: "DS-006", Type: "data_store", Department: "Marketing",
			Data: map[string]any{
				"name": "CRM Contact Database", "location": "Salesforce",
				"encryption_enabled": true, "data_classification": "confidential",
				"retention_days": 730, "personal_data": true,
				"last_audit_date": daysAgo(60),
			},
		},
		{
			RecordID: "DS-007", Type: "data_store", Department: "Product",
			Data: map[string]any{
				"name": "User Behaviour Analytics", "location": "Mixpanel",
				"encryption_enabled": true, "data_classification": nil,
				"retention_days": 540, "personal_data": true,
				"last_audit_date": daysAgo(50),
			},
		},
	}
}

// Apply inserts the demo rules and records into the store. Existing
// entries with the same ids are overwritten, so seeding is idempotent.
func Apply(ctx context.Context, s store.Store) (rules, records int, err error) {
	now := time.Now().UTC()
	for _, r := range Rules() {
		if err := s.InsertRule(ctx, r); err != nil {
			return rules, records, fmt.Errorf("seed: insert rule %s: %w", r.RuleID, err)
		}
		rules++
	}
	for _, r := range Records(now) {
		if err := s.InsertRecord(ctx, r); err != nil {
			return rules, records, fmt.Errorf("seed: insert record %s: %w", r.RecordID, err)
		}
		records++
	}
	return rules, records, nil
}

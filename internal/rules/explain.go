package rules

import (
	"fmt"

	"github.com/policypulse/policypulse/internal/model"
)

var riskBySeverity = map[model.Severity]string{
	model.SeverityCritical: "This is a critical security or compliance failure. " +
		"Unresolved, it can lead to data breaches, regulatory sanctions, " +
		"or significant financial penalties. Immediate remediation is required.",
	model.SeverityHigh: "This represents a high-priority compliance gap that exposes the organization " +
		"to regulatory penalties, security incidents, or audit findings. " +
		"It should be resolved within the current sprint or release cycle.",
	model.SeverityMedium: "This is a moderate compliance issue that, while not immediately critical, " +
		"increases overall risk exposure. Address it in the next planned review cycle.",
	model.SeverityLow: "This is a low-severity compliance observation. It has limited immediate impact " +
		"but should be tracked and resolved before your next audit or certification renewal.",
}

// RiskAssessment returns the severity-keyed narrative attached to new violations.
func RiskAssessment(severity model.Severity) string {
	if r, ok := riskBySeverity[severity]; ok {
		return r
	}
	return "This compliance violation requires review and remediation."
}

// Explain generates a plain-English explanation of a violation for the
// fields the engine knows well, falling back to restating the condition.
func Explain(rule *model.Rule, record *model.Record) string {
	name := record.DisplayName()

	switch rule.ValidationLogic.Field {
	case "mfa_enabled":
		return fmt.Sprintf("%s does not have Multi-Factor Authentication (MFA) enabled. "+
			"MFA adds a critical second layer of identity verification and is required for all accounts.", name)
	case "encryption_enabled":
		return fmt.Sprintf("%s is not encrypted at rest. "+
			"Any sensitive data stored on this asset is at risk of exposure if the storage medium is compromised.", name)
	case "last_training_date":
		return fmt.Sprintf("%s has not completed the required annual security awareness training. "+
			"Up-to-date training is mandatory to maintain a compliant security posture.", name)
	case "contract_signed":
		return fmt.Sprintf("Vendor '%s' does not have a signed Data Processing Agreement (DPA) on file. "+
			"A DPA is legally required before sharing any personal data with third parties.", name)
	case "backup_enabled":
		return fmt.Sprintf("%s does not have automated backups enabled. "+
			"Without regular backups, data loss from incidents cannot be recovered.", name)
	case "ssl_certificate_valid":
		return fmt.Sprintf("%s has an invalid or expired SSL/TLS certificate. "+
			"All encrypted connections to this server may be compromised or blocked.", name)
	case "retention_days":
		return fmt.Sprintf("%s has been retaining data beyond the maximum allowed period. "+
			"Excess data retention violates data minimisation requirements and increases breach exposure.", name)
	default:
		return fmt.Sprintf("Record '%s' does not satisfy the compliance requirement: %q. "+
			"Review the record details and apply the suggested remediation.", name, rule.Condition)
	}
}

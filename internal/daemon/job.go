// Package daemon implements the inbox/outbox job processing service.
// Jobs arrive as JSON files in the inbox directory, run against the
// compliance engine, and results land in the outbox directory.
package daemon

import (
	"fmt"
	"regexp"
	"time"
)

// Valid job types the daemon can process.
const (
	JobTypeScan        = "scan"
	JobTypeRemediate   = "remediate"
	JobTypeOrchestrate = "orchestrate"
	JobTypePredict     = "predict"
	JobTypeAdvise      = "advise"
)

var validJobTypes = map[string]bool{
	JobTypeScan:        true,
	JobTypeRemediate:   true,
	JobTypeOrchestrate: true,
	JobTypePredict:     true,
	JobTypeAdvise:      true,
}

// validID matches alphanumeric characters, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Job is a unit of work dropped into the inbox.
type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ViolationID string    `json:"violation_id,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	RecordType  string    `json:"record_type,omitempty"`
	Department  string    `json:"department,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Result is written to the outbox after processing a job.
type Result struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Output      any       `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Result status values.
const (
	ResultDone   = "done"
	ResultFailed = "failed"
)

// ValidateJob checks that a job has all required fields and safe values.
func ValidateJob(j *Job) error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if !validID.MatchString(j.ID) {
		return fmt.Errorf("job ID contains invalid characters: only alphanumeric, dash, and underscore allowed")
	}
	if j.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if !validJobTypes[j.Type] {
		return fmt.Errorf("invalid job type %q: must be one of: scan, remediate, orchestrate, predict, advise", j.Type)
	}
	if j.Type == JobTypeRemediate && j.ViolationID == "" && j.Severity == "" {
		return fmt.Errorf("remediate job needs a violation_id or a severity filter")
	}
	return nil
}

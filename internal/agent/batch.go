package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/policypulse/policypulse/internal/model"
)

// BatchItem summarizes one agent run inside a batch.
type BatchItem struct {
	ViolationID string   `json:"violation_id"`
	Status      Status   `json:"status"`
	Summary     string   `json:"summary"`
	Actions     []string `json:"actions"`
	ScoreDelta  float64  `json:"score_delta"`
}

// BatchResult aggregates a batch remediation run.
type BatchResult struct {
	TotalProcessed  int         `json:"total_processed"`
	Resolved        int         `json:"resolved"`
	Escalated       int         `json:"escalated"`
	Errors          int         `json:"errors"`
	FinalScore      float64     `json:"final_compliance_score"`
	Results         []BatchItem `json:"results"`
}

// RunBatch remediates all open violations matching the severity filter
// ("" or "all" means every severity), oldest first, capped at BatchLimit.
func (a *Agent) RunBatch(ctx context.Context, severityFilter string) (*BatchResult, error) {
	var severity model.Severity
	if severityFilter != "" && severityFilter != "all" {
		severity = model.ParseSeverity(severityFilter)
	}

	open, err := a.store.OpenViolations(ctx, severity, BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("agent: load open violations: %w", err)
	}

	out := &BatchResult{Results: []BatchItem{}}
	for _, v := range open {
		state, err := a.Run(ctx, v.ViolationID)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, BatchItem{
			ViolationID: v.ViolationID,
			Status:      state.Status,
			Summary:     state.FinalAnswer,
			Actions:     state.ActionsTaken,
			ScoreDelta:  math.Round((state.ScoreAfter-state.ScoreBefore)*10) / 10,
		})
		switch state.Status {
		case StatusSuccess:
			out.Resolved++
		case StatusEscalated:
			out.Escalated++
		default:
			out.Errors++
		}
	}
	out.TotalProcessed = len(out.Results)

	if b, err := a.runner.GetComplianceScore(ctx); err == nil {
		out.FinalScore = b.Score
	}
	return out, nil
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/scan"
)

// AgentInfo describes one specialist for the system status report.
type AgentInfo struct {
	Type         Domain   `json:"type"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	ActionsTaken int      `json:"actions_taken"`
	Capabilities []string `json:"capabilities"`
}

// ViolationTotals breaks violations down by lifecycle state.
type ViolationTotals struct {
	Open      int `json:"open"`
	Escalated int `json:"escalated"`
	Resolved  int `json:"resolved"`
}

// LogTotals breaks the agent log down by action.
type LogTotals struct {
	TotalEntries int `json:"total_entries"`
	Resolves     int `json:"resolves"`
	Escalations  int `json:"escalations"`
	FieldUpdates int `json:"field_updates"`
}

// SystemStatus is the health report for the whole agent system.
type SystemStatus struct {
	System          string                 `json:"system"`
	Status          string                 `json:"status"`
	Timestamp       time.Time              `json:"timestamp"`
	ComplianceScore float64                `json:"compliance_score"`
	Violations      ViolationTotals        `json:"violations"`
	AgentLog        LogTotals              `json:"agent_log"`
	Agents          []AgentInfo            `json:"agents"`
	RecentActivity  []model.AgentLogEntry  `json:"recent_activity"`
}

// Status reports health and activity statistics for every agent.
func (o *Orchestrator) Status(ctx context.Context) (*SystemStatus, error) {
	out := &SystemStatus{
		System:    "PolicyPulse Multi-Agent System v2",
		Status:    "operational",
		Timestamp: time.Now().UTC(),
	}

	b, err := scan.Score(ctx, o.store)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: score: %w", err)
	}
	out.ComplianceScore = b.Score

	if out.Violations.Open, err = o.store.CountViolations(ctx, model.StatusOpen); err != nil {
		return nil, fmt.Errorf("orchestrator: count open: %w", err)
	}
	if out.Violations.Escalated, err = o.store.CountViolations(ctx, model.StatusEscalated); err != nil {
		return nil, fmt.Errorf("orchestrator: count escalated: %w", err)
	}
	if out.Violations.Resolved, err = o.store.CountViolations(ctx, model.StatusResolved); err != nil {
		return nil, fmt.Errorf("orchestrator: count resolved: %w", err)
	}

	if out.AgentLog.Resolves, err = o.store.CountLogByAction(ctx, "resolve"); err != nil {
		return nil, fmt.Errorf("orchestrator: count log: %w", err)
	}
	if out.AgentLog.Escalations, err = o.store.CountLogByAction(ctx, "escalate"); err != nil {
		return nil, fmt.Errorf("orchestrator: count log: %w", err)
	}
	if out.AgentLog.FieldUpdates, err = o.store.CountLogByAction(ctx, "update_field"); err != nil {
		return nil, fmt.Errorf("orchestrator: count log: %w", err)
	}

	all, err := o.store.LogEntries(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load log: %w", err)
	}
	out.AgentLog.TotalEntries = len(all)
	if len(all) > 5 {
		out.RecentActivity = all[:5]
	} else {
		out.RecentActivity = all
	}

	for _, d := range Domains {
		playbook := PlaybookFor(d)
		actions, err := o.store.CountLogByAction(ctx, "specialist_"+string(d))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: count specialist log: %w", err)
		}
		out.Agents = append(out.Agents, AgentInfo{
			Type:         d,
			Name:         playbook.Name,
			Description:  playbook.Description,
			Status:       "active",
			ActionsTaken: actions,
			Capabilities: playbook.Capabilities,
		})
	}

	return out, nil
}

package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/policypulse/policypulse/internal/advisor"
	"github.com/policypulse/policypulse/internal/agent"
	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/orchestrator"
	"github.com/policypulse/policypulse/internal/predict"
	"github.com/policypulse/policypulse/internal/scan"
	"github.com/policypulse/policypulse/internal/score"
)

// --- Input/Output types ---

// ScanInput is empty, a scan always covers all active rules and records.
type ScanInput struct{}

// RemediateInput selects a single violation or a filtered batch.
type RemediateInput struct {
	ViolationID string `json:"violation_id,omitempty" jsonschema:"violation to remediate, omit for batch mode"`
	Severity    string `json:"severity,omitempty" jsonschema:"batch severity filter (critical/high/medium/low)"`
}

// RemediateOutput holds either a single agent run or a batch summary.
type RemediateOutput struct {
	Run   *agent.State       `json:"run,omitempty"`
	Batch *agent.BatchResult `json:"batch,omitempty"`
}

// OrchestrateInput selects a single violation or a filtered batch.
type OrchestrateInput struct {
	ViolationID string `json:"violation_id,omitempty" jsonschema:"violation to route, omit for batch mode"`
	Severity    string `json:"severity,omitempty" jsonschema:"batch severity filter (critical/high/medium/low)"`
}

// OrchestrateOutput holds either a single routing result or a batch summary.
type OrchestrateOutput struct {
	Run   *orchestrator.Result      `json:"run,omitempty"`
	Batch *orchestrator.BatchResult `json:"batch,omitempty"`
}

// PredictInput filters the records considered for risk prediction.
type PredictInput struct {
	RecordType   string `json:"record_type,omitempty" jsonschema:"limit predictions to one record type"`
	Department   string `json:"department,omitempty" jsonschema:"limit predictions to one department"`
	MinRiskScore int    `json:"min_risk_score,omitempty" jsonschema:"minimum risk score to report (default 2)"`
}

// AdviseInput is empty, the advisor always analyzes the full history.
type AdviseInput struct{}

// ScoreInput is empty.
type ScoreInput struct{}

// StatusInput is empty.
type StatusInput struct{}

// ViolationIDInput names a violation.
type ViolationIDInput struct {
	ViolationID string `json:"violation_id" jsonschema:"violation ID"`
}

// RecordIDInput names a record.
type RecordIDInput struct {
	RecordID string `json:"record_id" jsonschema:"record ID"`
}

// RuleIDInput names a rule.
type RuleIDInput struct {
	RuleID string `json:"rule_id" jsonschema:"rule ID"`
}

// ReasonedInput names a violation and carries the reason for acting on it.
type ReasonedInput struct {
	ViolationID string `json:"violation_id" jsonschema:"violation ID"`
	Reason      string `json:"reason" jsonschema:"why the action is being taken"`
}

// UpdateFieldInput describes a record field change.
type UpdateFieldInput struct {
	RecordID string `json:"record_id" jsonschema:"record ID"`
	Field    string `json:"field" jsonschema:"field name to update"`
	Value    any    `json:"value" jsonschema:"new field value"`
	Reason   string `json:"reason" jsonschema:"why the field is being changed"`
}

// ActionOutput reports the outcome of a mutating tool call.
type ActionOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Handlers ---

func (s *Server) handleScan(ctx context.Context, req *mcpsdk.CallToolRequest, input ScanInput) (*mcpsdk.CallToolResult, *scan.Result, error) {
	result, err := s.scan.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleRemediate(ctx context.Context, req *mcpsdk.CallToolRequest, input RemediateInput) (*mcpsdk.CallToolResult, RemediateOutput, error) {
	if input.ViolationID != "" {
		state, err := s.agent.Run(ctx, input.ViolationID)
		if err != nil {
			return nil, RemediateOutput{}, err
		}
		return nil, RemediateOutput{Run: state}, nil
	}

	batch, err := s.agent.RunBatch(ctx, input.Severity)
	if err != nil {
		return nil, RemediateOutput{}, err
	}
	return nil, RemediateOutput{Batch: batch}, nil
}

func (s *Server) handleOrchestrate(ctx context.Context, req *mcpsdk.CallToolRequest, input OrchestrateInput) (*mcpsdk.CallToolResult, OrchestrateOutput, error) {
	if input.ViolationID != "" {
		result, err := s.orchestrator.Run(ctx, input.ViolationID)
		if err != nil {
			return nil, OrchestrateOutput{}, err
		}
		return nil, OrchestrateOutput{Run: result}, nil
	}

	batch, err := s.orchestrator.RunBatch(ctx, input.Severity)
	if err != nil {
		return nil, OrchestrateOutput{}, err
	}
	return nil, OrchestrateOutput{Batch: batch}, nil
}

func (s *Server) handlePredict(ctx context.Context, req *mcpsdk.CallToolRequest, input PredictInput) (*mcpsdk.CallToolResult, *predict.Report, error) {
	report, err := s.predictor.Run(ctx, predict.Options{
		RecordType:   input.RecordType,
		Department:   input.Department,
		MinRiskScore: input.MinRiskScore,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, report, nil
}

func (s *Server) handleAdvise(ctx context.Context, req *mcpsdk.CallToolRequest, input AdviseInput) (*mcpsdk.CallToolResult, *advisor.Report, error) {
	report, err := s.advisor.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, report, nil
}

func (s *Server) handleScore(ctx context.Context, req *mcpsdk.CallToolRequest, input ScoreInput) (*mcpsdk.CallToolResult, score.Breakdown, error) {
	breakdown, err := s.runner.GetComplianceScore(ctx)
	if err != nil {
		return nil, score.Breakdown{}, err
	}
	return nil, breakdown, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, *orchestrator.SystemStatus, error) {
	status, err := s.orchestrator.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, status, nil
}

func (s *Server) handleGetViolation(ctx context.Context, req *mcpsdk.CallToolRequest, input ViolationIDInput) (*mcpsdk.CallToolResult, *model.Violation, error) {
	v, err := s.runner.GetViolationDetails(ctx, input.ViolationID)
	if err != nil {
		return nil, nil, err
	}
	return nil, v, nil
}

func (s *Server) handleGetRecord(ctx context.Context, req *mcpsdk.CallToolRequest, input RecordIDInput) (*mcpsdk.CallToolResult, *model.Record, error) {
	r, err := s.runner.GetRecordData(ctx, input.RecordID)
	if err != nil {
		return nil, nil, err
	}
	return nil, r, nil
}

func (s *Server) handleGetRule(ctx context.Context, req *mcpsdk.CallToolRequest, input RuleIDInput) (*mcpsdk.CallToolResult, *model.Rule, error) {
	r, err := s.runner.GetRuleDetails(ctx, input.RuleID)
	if err != nil {
		return nil, nil, err
	}
	return nil, r, nil
}

func (s *Server) handleResolve(ctx context.Context, req *mcpsdk.CallToolRequest, input ReasonedInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	result, err := s.runner.ResolveViolation(ctx, input.ViolationID, input.Reason)
	if err != nil {
		return nil, ActionOutput{}, err
	}
	out := ActionOutput{Success: result.Success, Message: result.Message}
	if !result.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleUpdateField(ctx context.Context, req *mcpsdk.CallToolRequest, input UpdateFieldInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	result, err := s.runner.UpdateRecordField(ctx, input.RecordID, input.Field, input.Value, input.Reason)
	if err != nil {
		return nil, ActionOutput{}, err
	}
	out := ActionOutput{Success: result.Success, Message: result.Message}
	if !result.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleEscalate(ctx context.Context, req *mcpsdk.CallToolRequest, input ReasonedInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	result, err := s.runner.EscalateViolation(ctx, input.ViolationID, input.Reason)
	if err != nil {
		return nil, ActionOutput{}, err
	}
	out := ActionOutput{Success: result.Success, Message: result.Message}
	if !result.Success {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

// Package mcp exposes the compliance engine over the Model Context
// Protocol so external agents can scan, remediate, and query through
// stdio transport.
package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/policypulse/policypulse/internal/advisor"
	"github.com/policypulse/policypulse/internal/agent"
	"github.com/policypulse/policypulse/internal/audit"
	"github.com/policypulse/policypulse/internal/config"
	"github.com/policypulse/policypulse/internal/orchestrator"
	"github.com/policypulse/policypulse/internal/predict"
	"github.com/policypulse/policypulse/internal/reason"
	"github.com/policypulse/policypulse/internal/scan"
	"github.com/policypulse/policypulse/internal/store"
	"github.com/policypulse/policypulse/internal/tools"
)

// Server wraps the MCP SDK server around the compliance engine.
type Server struct {
	mcpServer    *mcpsdk.Server
	store        store.Store
	runner       *tools.Runner
	scan         *scan.Engine
	agent        *agent.Agent
	orchestrator *orchestrator.Orchestrator
	predictor    *predict.Predictor
	advisor      *advisor.Advisor
	auditLog     *audit.Log
}

// New opens the database and audit log from cfg and builds a server
// with all tools registered.
func New(cfg *config.Config) (*Server, error) {
	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath, cfg.AgentName)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	runner := tools.NewRunner(st, cfg.AgentName, "")
	if auditLog != nil {
		runner = runner.WithAudit(auditLog)
	}

	var reasoner reason.Reasoner
	if cfg.LLM.APIKey != "" {
		reasoner = reason.NewLLM(reason.LLMConfig{
			APIURL:    cfg.LLM.APIURL,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
	}

	s := &Server{
		store:        st,
		runner:       runner,
		scan:         scan.New(st),
		agent:        agent.New(st, runner, reasoner),
		orchestrator: orchestrator.New(st, runner),
		predictor:    predict.New(st),
		advisor:      advisor.New(st),
		auditLog:     auditLog,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "policypulse",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the database and audit log.
func (s *Server) Close() error {
	if s.auditLog != nil {
		_ = s.auditLog.Close()
	}
	return s.store.Close()
}

// registerTools adds all policypulse tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_scan",
		Description: "Run a full compliance scan: evaluate every active rule against every record and open violations for failures.",
	}, s.handleScan)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_remediate",
		Description: "Run the autonomous remediation agent on one violation (violation_id) or on a batch of open violations (optional severity filter).",
	}, s.handleRemediate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_orchestrate",
		Description: "Route one violation (violation_id) or a batch of open violations through the domain specialist agents.",
	}, s.handleOrchestrate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_predict",
		Description: "Predict which records are likely to violate compliance rules before they do. Supports record_type and department filters.",
	}, s.handlePredict)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_advise",
		Description: "Analyze violation history and rule coverage, returning prioritized policy recommendations.",
	}, s.handleAdvise)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_score",
		Description: "Get the current compliance score with the open violation breakdown by severity.",
	}, s.handleScore)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_status",
		Description: "Report overall system status: agents, violation totals, and recent agent activity.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_get_violation",
		Description: "Fetch full details of a violation by ID.",
	}, s.handleGetViolation)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_get_record",
		Description: "Fetch a compliance record and its data fields by ID.",
	}, s.handleGetRecord)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_get_rule",
		Description: "Fetch a compliance rule and its validation logic by ID.",
	}, s.handleGetRule)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_resolve",
		Description: "Mark an open violation as resolved, with a reason recorded in the agent log.",
	}, s.handleResolve)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_update_field",
		Description: "Update a single field on a compliance record, with a reason recorded in the agent log.",
	}, s.handleUpdateField)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "policypulse_escalate",
		Description: "Escalate a violation for human review, with a reason recorded in the agent log.",
	}, s.handleEscalate)
}

package cli

import (
	"encoding/json"
	"fmt"
	"time"

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

// app bundles the wired engine services a command needs. Every command
// that touches the database opens one and defers Close.
type app struct {
	cfg          *config.Config
	store        store.Store
	runner       *tools.Runner
	scan         *scan.Engine
	agent        *agent.Agent
	orchestrator *orchestrator.Orchestrator
	predictor    *predict.Predictor
	advisor      *advisor.Advisor
	auditLog     *audit.Log
}

// openApp loads config, opens the database and audit log, and wires
// the engine services.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

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

	return &app{
		cfg:          cfg,
		store:        st,
		runner:       runner,
		scan:         scan.New(st),
		agent:        agent.New(st, runner, reasoner),
		orchestrator: orchestrator.New(st, runner),
		predictor:    predict.New(st),
		advisor:      advisor.New(st),
		auditLog:     auditLog,
	}, nil
}

func (a *app) Close() {
	if a.auditLog != nil {
		_ = a.auditLog.Close()
	}
	_ = a.store.Close()
}

// printJSON renders a result the way every command reports: indented JSON.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

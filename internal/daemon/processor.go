package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/policypulse/policypulse/internal/advisor"
	"github.com/policypulse/policypulse/internal/agent"
	"github.com/policypulse/policypulse/internal/orchestrator"
	"github.com/policypulse/policypulse/internal/predict"
	"github.com/policypulse/policypulse/internal/scan"
)

// Services are the engine components the daemon can drive.
type Services struct {
	Scan         *scan.Engine
	Agent        *agent.Agent
	Orchestrator *orchestrator.Orchestrator
	Predictor    *predict.Predictor
	Advisor      *advisor.Advisor
}

// Processor handles job lifecycle: read, validate, execute, write result.
type Processor struct {
	outbox   string
	services Services
}

// NewProcessor creates a processor writing results to the outbox directory.
func NewProcessor(outbox string, services Services) *Processor {
	return &Processor{outbox: outbox, services: services}
}

// Process handles a single job file end to end. The job file is removed
// once its result is in the outbox; a failed job still produces a result.
func (p *Processor) Process(ctx context.Context, jobPath string) error {
	// Reject symlinks before reading so an inbox write cannot point the
	// daemon at an arbitrary path on the filesystem.
	fi, err := os.Lstat(jobPath)
	if err != nil {
		return fmt.Errorf("stat job file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(jobPath))
	}

	data, err := os.ReadFile(jobPath)
	if err != nil {
		return fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		_ = os.Remove(jobPath)
		name := strings.TrimSuffix(filepath.Base(jobPath), ".json")
		return p.writeFailedResult(name, fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := ValidateJob(&job); err != nil {
		_ = os.Remove(jobPath)
		return p.writeFailedResult(job.ID, fmt.Sprintf("validation failed: %v", err))
	}

	result := p.execute(ctx, &job)
	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	_ = os.Remove(jobPath)
	return nil
}

func (p *Processor) execute(ctx context.Context, job *Job) *Result {
	result := &Result{ID: job.ID, Status: ResultDone}
	var output any
	var err error

	switch job.Type {
	case JobTypeScan:
		output, err = p.services.Scan.Run(ctx)
	case JobTypeRemediate:
		if job.ViolationID != "" {
			output, err = p.services.Agent.Run(ctx, job.ViolationID)
		} else {
			output, err = p.services.Agent.RunBatch(ctx, job.Severity)
		}
	case JobTypeOrchestrate:
		if job.ViolationID != "" {
			output, err = p.services.Orchestrator.Run(ctx, job.ViolationID)
		} else {
			output, err = p.services.Orchestrator.RunBatch(ctx, job.Severity)
		}
	case JobTypePredict:
		output, err = p.services.Predictor.Run(ctx, predict.Options{
			RecordType: job.RecordType,
			Department: job.Department,
		})
	case JobTypeAdvise:
		output, err = p.services.Advisor.Run(ctx)
	default:
		err = fmt.Errorf("unsupported job type: %s", job.Type)
	}

	if err != nil {
		result.Status = ResultFailed
		result.Error = err.Error()
	} else {
		result.Output = output
	}
	result.CompletedAt = time.Now().UTC()
	return result
}

// writeResult writes a result to the outbox directory atomically.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	filename := r.ID + ".json"
	tmpPath := filepath.Join(p.outbox, filename+".tmp")
	finalPath := filepath.Join(p.outbox, filename)

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

// writeFailedResult writes a minimal failed result when the job can't be parsed.
func (p *Processor) writeFailedResult(id string, errMsg string) error {
	if id == "" {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	return p.writeResult(&Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	})
}

package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/policypulse/policypulse/internal/advisor"
	"github.com/policypulse/policypulse/internal/agent"
	"github.com/policypulse/policypulse/internal/model"
	"github.com/policypulse/policypulse/internal/orchestrator"
	"github.com/policypulse/policypulse/internal/predict"
	"github.com/policypulse/policypulse/internal/reason"
	"github.com/policypulse/policypulse/internal/scan"
	"github.com/policypulse/policypulse/internal/store"
	"github.com/policypulse/policypulse/internal/tools"
)

func newProcessor(t *testing.T) (*Processor, store.Store, string) {
	t.Helper()
	s := store.NewMemory()
	runner := tools.NewRunner(s, "", "")
	outbox := t.TempDir()
	p := NewProcessor(outbox, Services{
		Scan:         scan.New(s),
		Agent:        agent.New(s, runner, reason.Fallback{}),
		Orchestrator: orchestrator.New(s, runner),
		Predictor:    predict.New(s),
		Advisor:      advisor.New(s),
	})
	return p, s, outbox
}

func writeJob(t *testing.T, dir string, name string, body any) string {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal job: %v", err)
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write job: %v", err)
	}
	return path
}

func readResult(t *testing.T, outbox, id string) *Result {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outbox, id+".json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return &r
}

func TestValidateJob(t *testing.T) {
	cases := []struct {
		name    string
		job     Job
		wantErr string
	}{
		{"valid scan", Job{ID: "job-1", Type: JobTypeScan}, ""},
		{"valid remediate by id", Job{ID: "job-2", Type: JobTypeRemediate, ViolationID: "VIO-1"}, ""},
		{"valid remediate by severity", Job{ID: "job-3", Type: JobTypeRemediate, Severity: "high"}, ""},
		{"valid predict", Job{ID: "job_4", Type: JobTypePredict}, ""},
		{"missing id", Job{Type: JobTypeScan}, "job ID is required"},
		{"bad id chars", Job{ID: "../escape", Type: JobTypeScan}, "invalid characters"},
		{"missing type", Job{ID: "job-5"}, "job type is required"},
		{"unknown type", Job{ID: "job-6", Type: "reboot"}, "invalid job type"},
		{"remediate without target", Job{ID: "job-7", Type: JobTypeRemediate}, "violation_id or a severity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJob(&tc.job)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error: got %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestProcessScanJob(t *testing.T) {
	p, s, outbox := newProcessor(t)
	ctx := context.Background()

	if err := s.InsertRule(ctx, model.Rule{
		RuleID:          "RULE-MFA",
		Severity:        model.SeverityHigh,
		ValidationLogic: model.ValidationLogic{Field: "mfa_enabled", Operator: model.OpIsTrue},
		Active:          true,
	}); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	if err := s.InsertRecord(ctx, model.Record{
		RecordID: "EMP-1", Type: "employee",
		Data: map[string]any{"mfa_enabled": false},
	}); err != nil {
		t.Fatalf("insert record: %v", err)
	}

	inbox := t.TempDir()
	jobPath := writeJob(t, inbox, "scan-1.json", Job{ID: "scan-1", Type: JobTypeScan})

	if err := p.Process(ctx, jobPath); err != nil {
		t.Fatalf("process: %v", err)
	}

	result := readResult(t, outbox, "scan-1")
	if result.Status != ResultDone {
		t.Fatalf("status: got %s (%s)", result.Status, result.Error)
	}
	if result.CompletedAt.IsZero() {
		t.Error("completed_at not set")
	}
	if _, err := os.Stat(jobPath); !os.IsNotExist(err) {
		t.Error("job file should be removed after processing")
	}

	open, _ := s.OpenViolations(ctx, "", 0)
	if len(open) != 1 {
		t.Errorf("scan should have flagged 1 violation, got %d", len(open))
	}
}

func TestProcessRemediateJob(t *testing.T) {
	p, s, outbox := newProcessor(t)
	ctx := context.Background()

	if err := s.InsertRule(ctx, model.Rule{
		RuleID:          "RULE-MFA",
		Severity:        model.SeverityMedium,
		ValidationLogic: model.ValidationLogic{Field: "mfa_enabled", Operator: model.OpIsTrue, Value: true},
		Active:          true,
	}); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	if err := s.InsertRecord(ctx, model.Record{
		RecordID: "EMP-1", Type: "employee",
		Data: map[string]any{"mfa_enabled": false},
	}); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if err := s.InsertViolations(ctx, []model.Violation{{
		ViolationID: "VIO-1", RuleID: "RULE-MFA", RecordID: "EMP-1",
		Severity: model.SeverityMedium, Status: model.StatusOpen,
	}}); err != nil {
		t.Fatalf("insert violation: %v", err)
	}

	inbox := t.TempDir()
	jobPath := writeJob(t, inbox, "fix-1.json",
		Job{ID: "fix-1", Type: JobTypeRemediate, ViolationID: "VIO-1"})

	if err := p.Process(ctx, jobPath); err != nil {
		t.Fatalf("process: %v", err)
	}
	if result := readResult(t, outbox, "fix-1"); result.Status != ResultDone {
		t.Fatalf("status: got %s (%s)", result.Status, result.Error)
	}

	v, _ := s.ViolationByID(ctx, "VIO-1")
	if v.Status != model.StatusResolved {
		t.Errorf("violation: got %s, want resolved", v.Status)
	}
}

func TestProcessInvalidJSONWritesFailedResult(t *testing.T) {
	p, _, outbox := newProcessor(t)
	inbox := t.TempDir()
	jobPath := writeJob(t, inbox, "garbage.json", "{broken")

	if err := p.Process(context.Background(), jobPath); err != nil {
		t.Fatalf("process: %v", err)
	}
	// The result takes the job file's name without the .json extension.
	result := readResult(t, outbox, "garbage")
	if result.Status != ResultFailed || !strings.Contains(result.Error, "invalid JSON") {
		t.Errorf("result: %+v", result)
	}
	if _, err := os.Stat(jobPath); !os.IsNotExist(err) {
		t.Error("bad job file should still be removed")
	}
}

func TestProcessValidationFailureWritesFailedResult(t *testing.T) {
	p, _, outbox := newProcessor(t)
	inbox := t.TempDir()
	jobPath := writeJob(t, inbox, "bad.json", Job{ID: "bad", Type: "reboot"})

	if err := p.Process(context.Background(), jobPath); err != nil {
		t.Fatalf("process: %v", err)
	}
	result := readResult(t, outbox, "bad")
	if result.Status != ResultFailed || !strings.Contains(result.Error, "validation failed") {
		t.Errorf("result: %+v", result)
	}
}

func TestProcessRejectsSymlink(t *testing.T) {
	p, _, _ := newProcessor(t)
	dir := t.TempDir()

	target := writeJob(t, dir, "target.json", Job{ID: "sneaky", Type: JobTypeScan})
	link := filepath.Join(dir, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := p.Process(context.Background(), link)
	if err == nil || !strings.Contains(err.Error(), "symlink") {
		t.Errorf("symlink job: got %v, want rejection", err)
	}
	if _, statErr := os.Stat(target); statErr != nil {
		t.Error("symlink target should be untouched")
	}
}

func TestResultWrittenAtomically(t *testing.T) {
	p, _, outbox := newProcessor(t)
	inbox := t.TempDir()
	jobPath := writeJob(t, inbox, "adv-1.json", Job{ID: "adv-1", Type: JobTypeAdvise})

	if err := p.Process(context.Background(), jobPath); err != nil {
		t.Fatalf("process: %v", err)
	}

	entries, err := os.ReadDir(outbox)
	if err != nil {
		t.Fatalf("read outbox: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left in outbox: %s", e.Name())
		}
	}
	if result := readResult(t, outbox, "adv-1"); result.Status != ResultDone {
		t.Errorf("advise result: %+v", result)
	}
}

func TestIsJobFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/inbox/job.json", true},
		{"/inbox/job.json.tmp", false},
		{"/inbox/notes.txt", false},
		{"/inbox/job.JSON", false},
	}
	for _, tc := range cases {
		if got := isJobFile(tc.path); got != tc.want {
			t.Errorf("isJobFile(%s): got %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestScanExistingHandlesStartupBacklog(t *testing.T) {
	inbox := t.TempDir()
	writeJob(t, inbox, "a.json", Job{ID: "a", Type: JobTypeScan})
	writeJob(t, inbox, "b.json", Job{ID: "b", Type: JobTypeScan})
	writeJob(t, inbox, "partial.json.tmp", Job{ID: "c", Type: JobTypeScan})

	var seen []string
	if err := ScanExisting(inbox, func(path string) {
		seen = append(seen, filepath.Base(path))
	}); err != nil {
		t.Fatalf("scan existing: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("backlog: got %v, want a.json and b.json", seen)
	}

	if err := ScanExisting(filepath.Join(inbox, "missing"), func(string) {}); err != nil {
		t.Errorf("missing inbox should be a no-op, got %v", err)
	}
}

func TestPollWatcherDetectsNewFile(t *testing.T) {
	inbox := t.TempDir()

	var mu sync.Mutex
	var received []string

	w := NewPollWatcher(inbox, func(path string) {
		mu.Lock()
		received = append(received, filepath.Base(path))
		mu.Unlock()
	}, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Run(ctx) }()

	writeJob(t, inbox, "poll-1.json", Job{ID: "poll-1", Type: JobTypeScan})

	// Wait for a few poll cycles.
	time.Sleep(300 * time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != "poll-1.json" {
		t.Fatalf("poll pickup: got %v, want just poll-1.json", received)
	}
}

func TestPollWatcherDoesNotDuplicate(t *testing.T) {
	inbox := t.TempDir()

	var mu sync.Mutex
	var count int

	w := NewPollWatcher(inbox, func(path string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, 50*time.Millisecond)

	writeJob(t, inbox, "dup-1.json", Job{ID: "dup-1", Type: JobTypeScan})
	writeJob(t, inbox, "partial.json.tmp", Job{ID: "dup-2", Type: JobTypeScan})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Run(ctx) }()

	// Multiple poll cycles must hand the file over exactly once, and the
	// .tmp partial write must never be handed over at all.
	time.Sleep(300 * time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("file should be processed exactly once, got %d", count)
	}
}

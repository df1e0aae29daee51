package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/policypulse/policypulse/internal/model"
)

// Memory is an in-memory Store used by tests and the ephemeral daemon mode.
// All methods are safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	rules      map[string]model.Rule
	records    map[string]model.Record
	violations map[string]model.Violation
	scans      map[string]model.ScanRun
	log        []model.AgentLogEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rules:      make(map[string]model.Rule),
		records:    make(map[string]model.Record),
		violations: make(map[string]model.Violation),
		scans:      make(map[string]model.ScanRun),
	}
}

func (m *Memory) Rules(ctx context.Context) ([]model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}

func (m *Memory) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	all, _ := m.Rules(ctx)
	out := all[:0:0]
	for _, r := range all {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RuleByID(ctx context.Context, id string) (*model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) InsertRule(ctx context.Context, r model.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.RuleID] = r
	return nil
}

func (m *Memory) CountRules(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules), nil
}

func (m *Memory) Records(ctx context.Context) ([]model.Record, error) {
	return m.RecordsFiltered(ctx, "", "")
}

func (m *Memory) RecordsFiltered(ctx context.Context, recordType, department string) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Record, 0, len(m.records))
	for _, r := range m.records {
		if recordType != "" && r.Type != recordType {
			continue
		}
		if department != "" && r.Department != department {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (m *Memory) RecordByID(ctx context.Context, id string) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneRecord(r)
	return &c, nil
}

func (m *Memory) InsertRecord(ctx context.Context, r model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.RecordID] = cloneRecord(r)
	return nil
}

func (m *Memory) UpdateRecordField(ctx context.Context, recordID, field string, value any, updatedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return false, nil
	}
	c := cloneRecord(r)
	c.Data[field] = value
	c.LastUpdatedBy = updatedBy
	c.LastUpdatedAt = time.Now().UTC()
	m.records[recordID] = c
	return true, nil
}

func (m *Memory) CountRecords(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *Memory) ViolationByID(ctx context.Context, id string) (*model.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.violations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *Memory) InsertViolations(ctx context.Context, vs []model.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vs {
		m.violations[v.ViolationID] = v
	}
	return nil
}

func (m *Memory) OpenViolations(ctx context.Context, severity model.Severity, limit int) ([]model.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Violation
	for _, v := range m.sortedViolations() {
		if v.Status != model.StatusOpen {
			continue
		}
		if severity != "" && v.Severity != severity {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) ViolationsByStatus(ctx context.Context, status model.ViolationStatus, limit int) ([]model.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Violation
	for _, v := range m.sortedViolations() {
		if v.Status != status {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) ViolationsSince(ctx context.Context, since time.Time) ([]model.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Violation
	for _, v := range m.sortedViolations() {
		if !v.DetectedAt.Before(since) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) OpenPairs(ctx context.Context) (map[Pair]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make(map[Pair]bool)
	for _, v := range m.violations {
		if v.Status == model.StatusOpen || (v.Status == model.StatusEscalated && v.NeedsHumanReview) {
			pairs[Pair{RuleID: v.RuleID, RecordID: v.RecordID}] = true
		}
	}
	return pairs, nil
}

func (m *Memory) OpenCounts(ctx context.Context) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c Counts
	for _, v := range m.violations {
		if v.Status != model.StatusOpen {
			continue
		}
		c.Open++
		switch v.Severity {
		case model.SeverityCritical:
			c.Critical++
		case model.SeverityHigh:
			c.High++
		case model.SeverityMedium:
			c.Medium++
		case model.SeverityLow:
			c.Low++
		}
	}
	return c, nil
}

func (m *Memory) CountViolations(ctx context.Context, status model.ViolationStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.violations {
		if v.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ResolveViolation(ctx context.Context, id, by, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.violations[id]
	if !ok || v.Status == model.StatusResolved {
		return false, nil
	}
	now := time.Now().UTC()
	v.Status = model.StatusResolved
	v.ResolvedBy = by
	v.ResolutionReason = reason
	v.ResolvedAt = &now
	m.violations[id] = v
	return true, nil
}

func (m *Memory) EscalateViolation(ctx context.Context, id, by, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.violations[id]
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	v.Status = model.StatusEscalated
	v.EscalatedBy = by
	v.EscalationReason = reason
	v.EscalatedAt = &now
	v.NeedsHumanReview = true
	m.violations[id] = v
	return true, nil
}

func (m *Memory) InsertScanRun(ctx context.Context, run model.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[run.ScanID] = run
	return nil
}

func (m *Memory) CompleteScanRun(ctx context.Context, scanID string, completedAt time.Time, violations, records, rules int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.scans[scanID]
	if !ok {
		return ErrNotFound
	}
	run.Status = "completed"
	run.CompletedAt = completedAt
	run.ViolationsFound = violations
	run.RecordsScanned = records
	run.RulesApplied = rules
	m.scans[scanID] = run
	return nil
}

func (m *Memory) ScanRuns(ctx context.Context, limit int) ([]model.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ScanRun, 0, len(m.scans))
	for _, s := range m.scans {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AppendLog(ctx context.Context, e model.AgentLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.log = append(m.log, e)
	return nil
}

func (m *Memory) LogEntries(ctx context.Context, limit int) ([]model.AgentLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AgentLogEntry, len(m.log))
	copy(out, m.log)
	// Newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountLogByAction(ctx context.Context, action string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.log {
		if e.Action == action {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }

// sortedViolations returns violations ordered by detection time, oldest
// first, so batch drivers process deterministically. Callers hold m.mu.
func (m *Memory) sortedViolations() []model.Violation {
	out := make([]model.Violation, 0, len(m.violations))
	for _, v := range m.violations {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ViolationID < out[j].ViolationID
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

func cloneRecord(r model.Record) model.Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	r.Data = data
	return r
}

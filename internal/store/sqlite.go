package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/policypulse/policypulse/internal/model"
)

// SQLite persists entities as JSON documents with indexed predicate
// columns, mirroring the document-store shape the engine was designed
// around. Each entity table is keyed by its natural id.
type SQLite struct {
	db *sql.DB
}

// timeFormat is a fixed-width UTC layout. Unlike RFC3339Nano it never
// trims trailing fraction zeros, so SQLite's lexicographic text
// comparison on these columns matches chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

const schema = `
CREATE TABLE IF NOT EXISTS rules (
	rule_id   TEXT PRIMARY KEY,
	field     TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	doc       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	record_id  TEXT PRIMARY KEY,
	type       TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	doc        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS violations (
	violation_id       TEXT PRIMARY KEY,
	rule_id            TEXT NOT NULL,
	record_id          TEXT NOT NULL,
	status             TEXT NOT NULL,
	severity           TEXT NOT NULL,
	needs_human_review INTEGER NOT NULL DEFAULT 0,
	detected_at        TEXT NOT NULL,
	doc                TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_violations_status ON violations(status);
CREATE INDEX IF NOT EXISTS idx_violations_pair ON violations(rule_id, record_id);
CREATE TABLE IF NOT EXISTS scan_runs (
	scan_id    TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	doc        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS agent_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id TEXT NOT NULL,
	action    TEXT NOT NULL,
	reason    TEXT NOT NULL,
	agent     TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
`

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// The engine is a single logical worker; one connection avoids
	// SQLITE_BUSY churn without a busy-timeout dance.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Rules(ctx context.Context) ([]model.Rule, error) {
	return s.queryRules(ctx, `SELECT doc FROM rules ORDER BY rule_id`)
}

func (s *SQLite) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	return s.queryRules(ctx, `SELECT doc FROM rules WHERE is_active = 1 ORDER BY rule_id`)
}

func (s *SQLite) queryRules(ctx context.Context, q string, args ...any) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query rules: %w", err)
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r model.Rule
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("store: decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) RuleByID(ctx context.Context, id string) (*model.Rule, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM rules WHERE rule_id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: rule %s: %w", id, err)
	}
	var r model.Rule
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("store: decode rule: %w", err)
	}
	return &r, nil
}

func (s *SQLite) InsertRule(ctx context.Context, r model.Rule) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode rule: %w", err)
	}
	active := 0
	if r.Active {
		active = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rules (rule_id, field, is_active, doc) VALUES (?, ?, ?, ?)`,
		r.RuleID, r.ValidationLogic.Field, active, string(doc))
	return err
}

func (s *SQLite) CountRules(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM rules`)
}

func (s *SQLite) Records(ctx context.Context) ([]model.Record, error) {
	return s.RecordsFiltered(ctx, "", "")
}

func (s *SQLite) RecordsFiltered(ctx context.Context, recordType, department string) ([]model.Record, error) {
	q := `SELECT doc FROM records WHERE 1=1`
	var args []any
	if recordType != "" {
		q += ` AND type = ?`
		args = append(args, recordType)
	}
	if department != "" {
		q += ` AND department = ?`
		args = append(args, department)
	}
	q += ` ORDER BY record_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r model.Record
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("store: decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) RecordByID(ctx context.Context, id string) (*model.Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM records WHERE record_id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: record %s: %w", id, err)
	}
	var r model.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("store: decode record: %w", err)
	}
	return &r, nil
}

func (s *SQLite) InsertRecord(ctx context.Context, r model.Record) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (record_id, type, department, doc) VALUES (?, ?, ?, ?)`,
		r.RecordID, r.Type, r.Department, string(doc))
	return err
}

// UpdateRecordField rewrites one field of a record's data map inside a
// single transaction, so the mutation is atomic under the natural id.
func (s *SQLite) UpdateRecordField(ctx context.Context, recordID, field string, value any, updatedBy string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM records WHERE record_id = ?`, recordID).Scan(&doc)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: record %s: %w", recordID, err)
	}

	var r model.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return false, fmt.Errorf("store: decode record: %w", err)
	}
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[field] = value
	r.LastUpdatedBy = updatedBy
	r.LastUpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("store: encode record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET doc = ? WHERE record_id = ?`, string(updated), recordID); err != nil {
		return false, fmt.Errorf("store: update record: %w", err)
	}
	return true, tx.Commit()
}

func (s *SQLite) CountRecords(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM records`)
}

func (s *SQLite) ViolationByID(ctx context.Context, id string) (*model.Violation, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM violations WHERE violation_id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: violation %s: %w", id, err)
	}
	var v model.Violation
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("store: decode violation: %w", err)
	}
	return &v, nil
}

// InsertViolations bulk-inserts in one transaction — one round-trip for
// the whole scan, matching the engine's single-writer model.
func (s *SQLite) InsertViolations(ctx context.Context, vs []model.Violation) error {
	if len(vs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO violations
		(violation_id, rule_id, record_id, status, severity, needs_human_review, detected_at, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, v := range vs {
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store: encode violation: %w", err)
		}
		review := 0
		if v.NeedsHumanReview {
			review = 1
		}
		if _, err := stmt.ExecContext(ctx,
			v.ViolationID, v.RuleID, v.RecordID, string(v.Status), string(v.Severity),
			review, formatTime(v.DetectedAt), string(doc)); err != nil {
			return fmt.Errorf("store: insert violation %s: %w", v.ViolationID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) OpenViolations(ctx context.Context, severity model.Severity, limit int) ([]model.Violation, error) {
	q := `SELECT doc FROM violations WHERE status = 'open'`
	var args []any
	if severity != "" {
		q += ` AND severity = ?`
		args = append(args, string(severity))
	}
	q += ` ORDER BY detected_at, violation_id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryViolations(ctx, q, args...)
}

func (s *SQLite) ViolationsByStatus(ctx context.Context, status model.ViolationStatus, limit int) ([]model.Violation, error) {
	q := `SELECT doc FROM violations WHERE status = ? ORDER BY detected_at, violation_id`
	args := []any{string(status)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryViolations(ctx, q, args...)
}

func (s *SQLite) ViolationsSince(ctx context.Context, since time.Time) ([]model.Violation, error) {
	return s.queryViolations(ctx,
		`SELECT doc FROM violations WHERE detected_at >= ? ORDER BY detected_at, violation_id`,
		formatTime(since))
}

func (s *SQLite) queryViolations(ctx context.Context, q string, args ...any) ([]model.Violation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query violations: %w", err)
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var v model.Violation
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			return nil, fmt.Errorf("store: decode violation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// OpenPairs returns every (rule, record) pair that must not be re-flagged
// by a scan: open violations plus escalated ones still awaiting review.
func (s *SQLite) OpenPairs(ctx context.Context) (map[Pair]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rule_id, record_id FROM violations
		WHERE status = 'open' OR (status = 'escalated' AND needs_human_review = 1)`)
	if err != nil {
		return nil, fmt.Errorf("store: query open pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[Pair]bool)
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.RuleID, &p.RecordID); err != nil {
			return nil, err
		}
		pairs[p] = true
	}
	return pairs, rows.Err()
}

func (s *SQLite) OpenCounts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM violations WHERE status = 'open' GROUP BY severity`)
	if err != nil {
		return Counts{}, fmt.Errorf("store: count open: %w", err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return Counts{}, err
		}
		c.Open += n
		switch model.Severity(sev) {
		case model.SeverityCritical:
			c.Critical = n
		case model.SeverityHigh:
			c.High = n
		case model.SeverityMedium:
			c.Medium = n
		case model.SeverityLow:
			c.Low = n
		}
	}
	return c, rows.Err()
}

func (s *SQLite) CountViolations(ctx context.Context, status model.ViolationStatus) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM violations WHERE status = ?`, string(status))
}

func (s *SQLite) ResolveViolation(ctx context.Context, id, by, reason string) (bool, error) {
	return s.mutateViolation(ctx, id, func(v *model.Violation) bool {
		if v.Status == model.StatusResolved {
			return false
		}
		now := time.Now().UTC()
		v.Status = model.StatusResolved
		v.ResolvedBy = by
		v.ResolutionReason = reason
		v.ResolvedAt = &now
		return true
	})
}

func (s *SQLite) EscalateViolation(ctx context.Context, id, by, reason string) (bool, error) {
	return s.mutateViolation(ctx, id, func(v *model.Violation) bool {
		now := time.Now().UTC()
		v.Status = model.StatusEscalated
		v.EscalatedBy = by
		v.EscalationReason = reason
		v.EscalatedAt = &now
		v.NeedsHumanReview = true
		return true
	})
}

func (s *SQLite) mutateViolation(ctx context.Context, id string, mutate func(*model.Violation) bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM violations WHERE violation_id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: violation %s: %w", id, err)
	}

	var v model.Violation
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return false, fmt.Errorf("store: decode violation: %w", err)
	}
	if !mutate(&v) {
		return false, nil
	}

	updated, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("store: encode violation: %w", err)
	}
	review := 0
	if v.NeedsHumanReview {
		review = 1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE violations SET status = ?, needs_human_review = ?, doc = ? WHERE violation_id = ?`,
		string(v.Status), review, string(updated), id); err != nil {
		return false, fmt.Errorf("store: update violation: %w", err)
	}
	return true, tx.Commit()
}

func (s *SQLite) InsertScanRun(ctx context.Context, run model.ScanRun) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("store: encode scan run: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (scan_id, started_at, doc) VALUES (?, ?, ?)`,
		run.ScanID, formatTime(run.StartedAt), string(doc))
	return err
}

func (s *SQLite) CompleteScanRun(ctx context.Context, scanID string, completedAt time.Time, violations, records, rules int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM scan_runs WHERE scan_id = ?`, scanID).Scan(&doc)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: scan run %s: %w", scanID, err)
	}

	var run model.ScanRun
	if err := json.Unmarshal([]byte(doc), &run); err != nil {
		return fmt.Errorf("store: decode scan run: %w", err)
	}
	run.Status = "completed"
	run.CompletedAt = completedAt
	run.ViolationsFound = violations
	run.RecordsScanned = records
	run.RulesApplied = rules

	updated, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("store: encode scan run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scan_runs SET doc = ? WHERE scan_id = ?`, string(updated), scanID); err != nil {
		return fmt.Errorf("store: update scan run: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) ScanRuns(ctx context.Context, limit int) ([]model.ScanRun, error) {
	q := `SELECT doc FROM scan_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query scan runs: %w", err)
	}
	defer rows.Close()

	var out []model.ScanRun
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var run model.ScanRun
		if err := json.Unmarshal([]byte(doc), &run); err != nil {
			return nil, fmt.Errorf("store: decode scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendLog(ctx context.Context, e model.AgentLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_log (entity_id, action, reason, agent, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.EntityID, e.Action, e.Reason, e.Agent, formatTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("store: append log: %w", err)
	}
	return nil
}

func (s *SQLite) LogEntries(ctx context.Context, limit int) ([]model.AgentLogEntry, error) {
	q := `SELECT entity_id, action, reason, agent, timestamp FROM agent_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query log: %w", err)
	}
	defer rows.Close()

	var out []model.AgentLogEntry
	for rows.Next() {
		var e model.AgentLogEntry
		var ts string
		if err := rows.Scan(&e.EntityID, &e.Action, &e.Reason, &e.Agent, &ts); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) CountLogByAction(ctx context.Context, action string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM agent_log WHERE action = ?`, action)
}

func (s *SQLite) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

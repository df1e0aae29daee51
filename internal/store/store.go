// Package store defines the persistence collaborator for the compliance
// engine and provides SQLite and in-memory implementations. Every mutation
// is a single atomic update keyed by the entity's natural id; no
// multi-entity transactions are offered or needed.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/policypulse/policypulse/internal/model"
)

// ErrNotFound is returned when a natural id does not resolve.
var ErrNotFound = errors.New("store: not found")

// Pair identifies a (rule, record) combination.
type Pair struct {
	RuleID   string
	RecordID string
}

// Counts breaks open violations down by severity for score computation.
type Counts struct {
	Open     int
	Critical int
	High     int
	Medium   int
	Low      int
}

// Store is the persistence collaborator. Implementations must keep each
// mutation atomic per entity; readers may observe last-writer-wins ordering.
type Store interface {
	// Rules.
	Rules(ctx context.Context) ([]model.Rule, error)
	ActiveRules(ctx context.Context) ([]model.Rule, error)
	RuleByID(ctx context.Context, id string) (*model.Rule, error)
	InsertRule(ctx context.Context, r model.Rule) error
	CountRules(ctx context.Context) (int, error)

	// Records.
	Records(ctx context.Context) ([]model.Record, error)
	RecordsFiltered(ctx context.Context, recordType, department string) ([]model.Record, error)
	RecordByID(ctx context.Context, id string) (*model.Record, error)
	InsertRecord(ctx context.Context, r model.Record) error
	UpdateRecordField(ctx context.Context, recordID, field string, value any, updatedBy string) (bool, error)
	CountRecords(ctx context.Context) (int, error)

	// Violations.
	ViolationByID(ctx context.Context, id string) (*model.Violation, error)
	InsertViolations(ctx context.Context, vs []model.Violation) error
	OpenViolations(ctx context.Context, severity model.Severity, limit int) ([]model.Violation, error)
	ViolationsByStatus(ctx context.Context, status model.ViolationStatus, limit int) ([]model.Violation, error)
	ViolationsSince(ctx context.Context, since time.Time) ([]model.Violation, error)
	OpenPairs(ctx context.Context) (map[Pair]bool, error)
	OpenCounts(ctx context.Context) (Counts, error)
	CountViolations(ctx context.Context, status model.ViolationStatus) (int, error)
	ResolveViolation(ctx context.Context, id, by, reason string) (bool, error)
	EscalateViolation(ctx context.Context, id, by, reason string) (bool, error)

	// Scan runs.
	InsertScanRun(ctx context.Context, run model.ScanRun) error
	CompleteScanRun(ctx context.Context, scanID string, completedAt time.Time, violations, records, rules int) error
	ScanRuns(ctx context.Context, limit int) ([]model.ScanRun, error)

	// Agent log. Append-only; bulk reset happens only by recreating the store.
	AppendLog(ctx context.Context, e model.AgentLogEntry) error
	LogEntries(ctx context.Context, limit int) ([]model.AgentLogEntry, error)
	CountLogByAction(ctx context.Context, action string) (int, error)

	Close() error
}

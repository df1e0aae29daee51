package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openLog(t *testing.T, path string) *Log {
	t.Helper()
	l, err := Open(path, "test-agent")
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	return l
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestAppendChainsFromGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := openLog(t, path)

	if err := l.Append("REC-1", "update_field", "set mfa_enabled=true"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append("VIO-1", "resolve_violation", "fixed"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}

	var first, second Entry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second: %v", err)
	}

	if first.PrevHash != GenesisHash {
		t.Errorf("first prev_hash: got %s, want genesis", first.PrevHash)
	}
	if second.PrevHash != HashLine([]byte(lines[0])) {
		t.Errorf("second prev_hash does not chain to first line")
	}
	if first.Agent != "test-agent" {
		t.Errorf("agent: got %q", first.Agent)
	}
	if first.EntityID != "REC-1" || first.Action != "update_field" {
		t.Errorf("first entry: %+v", first)
	}
	if first.Timestamp == "" {
		t.Error("timestamp not filled")
	}
}

func TestOpenRecoversChainTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l := openLog(t, path)
	if err := l.Append("REC-1", "update_field", "first session"); err != nil {
		t.Fatalf("append: %v", err)
	}
	l.Close()

	// Reopen and append; the chain must continue, not restart.
	l = openLog(t, path)
	if err := l.Append("VIO-1", "escalate_violation", "second session"); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	l.Close()

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid || result.Entries != 2 {
		t.Errorf("verify after reopen: %+v", result)
	}
}

func TestVerifyValidChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := openLog(t, path)
	for i := 0; i < 5; i++ {
		if err := l.Append("REC-1", "update_field", "step"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	l.Close()

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Errorf("chain should verify: %+v", result)
	}
	if result.Entries != 5 {
		t.Errorf("entries: got %d, want 5", result.Entries)
	}
	if result.FirstSeen == "" || result.LastSeen == "" {
		t.Errorf("timestamps missing: %+v", result)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := openLog(t, path)
	for i := 0; i < 3; i++ {
		if err := l.Append("REC-1", "update_field", "step"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	l.Close()

	// Alter the reason on line 2. Line 3's prev_hash no longer matches.
	lines := readLines(t, path)
	lines[1] = strings.Replace(lines[1], `"reason":"step"`, `"reason":"doctored"`, 1)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Fatal("tampered chain should not verify")
	}
	if result.BrokenAt != 3 {
		t.Errorf("broken at: got line %d, want 3", result.BrokenAt)
	}
	if !strings.Contains(result.Detail, "prev_hash mismatch") {
		t.Errorf("detail: %q", result.Detail)
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := openLog(t, path)
	for i := 0; i < 3; i++ {
		if err := l.Append("REC-1", "update_field", "step"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	l.Close()

	lines := readLines(t, path)
	trimmed := []string{lines[0], lines[2]}
	if err := os.WriteFile(path, []byte(strings.Join(trimmed, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid || result.BrokenAt != 2 {
		t.Errorf("deleted line should break chain at 2: %+v", result)
	}
}

func TestVerifyRejectsGarbageLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := os.WriteFile(path, []byte("not json\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid || result.BrokenAt != 1 {
		t.Errorf("garbage line: %+v", result)
	}
	if !strings.Contains(result.Detail, "not valid JSON") {
		t.Errorf("detail: %q", result.Detail)
	}
}

func TestVerifyEmptyLogIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	result, err := Verify(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid || result.Entries != 0 {
		t.Errorf("empty log: %+v", result)
	}
}

func TestRecordKeepsExplicitFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := openLog(t, path)
	err := l.Record(Entry{
		Timestamp: "2025-06-15T12:00:00.000Z",
		EntityID:  "system",
		Action:    "scan",
		Reason:    "scheduled scan",
		Agent:     "other-agent",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	l.Close()

	lines := readLines(t, path)
	var e Entry
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Timestamp != "2025-06-15T12:00:00.000Z" || e.Agent != "other-agent" {
		t.Errorf("explicit fields overwritten: %+v", e)
	}
}

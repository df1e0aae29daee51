package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult reports the outcome of a chain verification.
type VerifyResult struct {
	Entries   int    `json:"entries"`
	Valid     bool   `json:"valid"`
	BrokenAt  int    `json:"broken_at,omitempty"` // 1-based line number of first break
	Detail    string `json:"detail,omitempty"`
	FirstSeen string `json:"first_timestamp,omitempty"`
	LastSeen  string `json:"last_timestamp,omitempty"`
}

// Verify walks the log and checks that every entry's prev_hash matches
// the hash of the preceding line, starting from the genesis hash.
func Verify(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	result := &VerifyResult{Valid: true}
	expected := GenesisHash
	lineNo := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return &VerifyResult{
				Entries:  result.Entries,
				Valid:    false,
				BrokenAt: lineNo,
				Detail:   fmt.Sprintf("line %d is not valid JSON", lineNo),
			}, nil
		}

		if entry.PrevHash != expected {
			return &VerifyResult{
				Entries:  result.Entries,
				Valid:    false,
				BrokenAt: lineNo,
				Detail: fmt.Sprintf("line %d prev_hash mismatch: have %s, want %s",
					lineNo, entry.PrevHash, expected),
			}, nil
		}

		result.Entries++
		if result.FirstSeen == "" {
			result.FirstSeen = entry.Timestamp
		}
		result.LastSeen = entry.Timestamp
		expected = HashLine(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}

	return result, nil
}

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/policypulse/policypulse/internal/audit"
	"github.com/policypulse/policypulse/internal/config"
)

var auditTailLines int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&auditTailLines, "lines", "n", 10, "Number of recent entries to show")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous line. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

// auditPath resolves the log path from the argument or config.
func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.AuditLogPath, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}

	result, err := audit.Verify(path)
	if err != nil {
		return err
	}
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Entries)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.BrokenAt, result.Detail)
	os.Exit(1)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	start := len(lines) - auditTailLines
	if start < 0 {
		start = 0
	}

	for _, line := range lines[start:] {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Println(line)
			continue
		}
		out, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(out))
	}

	return nil
}

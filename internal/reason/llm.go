package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/policypulse/policypulse/internal/tools"
)

// LLMConfig holds parameters for the OpenAI-compatible reasoning endpoint.
type LLMConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LLM asks a chat-completion endpoint for the next remediation action.
// Callers wrap it so that any error falls through to Fallback.
type LLM struct {
	cfg    LLMConfig
	client *http.Client
}

// NewLLM creates an LLM reasoner.
func NewLLM(cfg LLMConfig) *LLM {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &LLM{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

const reasonSystemPrompt = `You are PolicyPulse Autonomous Compliance Agent. Your job is to remediate a compliance violation.

` + tools.Descriptions + `

INSTRUCTIONS:
1. Analyze the violation carefully.
2. Decide the BEST action: auto-fix the data field (update_record_field) OR resolve directly OR escalate if a human must act.
3. If the rule has a validation_logic field (e.g. field: "mfa_enabled", operator: "is_true"), you can fix it directly.
4. After acting, resolve the violation with a clear reason.
5. Only escalate if the fix requires physical action (e.g. hardware, contract signing).

Respond in this EXACT JSON format:
{"thought": "My reasoning about what to do...", "action": "tool_name", "args": {...}, "is_final": false}

If done (all actions taken), set "is_final": true and "action": "done".
Return ONLY the JSON object. No markdown, no explanation outside the JSON.`

func (l *LLM) Decide(ctx context.Context, in Input) (Decision, error) {
	prompt, err := buildPrompt(in)
	if err != nil {
		return Decision{}, fmt.Errorf("reason: build prompt: %w", err)
	}

	messages := []map[string]string{
		{"role": "system", "content": reasonSystemPrompt},
		{"role": "user", "content": prompt},
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model":       l.cfg.Model,
		"messages":    messages,
		"max_tokens":  l.cfg.MaxTokens,
		"temperature": 0,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", l.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("reason: create request: %w", err)
	}
	if l.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("reason: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("reason: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return Decision{}, fmt.Errorf("reason: empty response")
	}

	return parseDecision(result.Choices[0].Message.Content)
}

func buildPrompt(in Input) (string, error) {
	violation, err := json.MarshalIndent(in.Violation, "", "  ")
	if err != nil {
		return "", err
	}
	rule, err := json.MarshalIndent(in.Rule, "", "  ")
	if err != nil {
		return "", err
	}
	record, err := json.MarshalIndent(in.Record, "", "  ")
	if err != nil {
		return "", err
	}

	var history strings.Builder
	n := 0
	for _, s := range in.Steps {
		if s.Action == "" {
			continue
		}
		n++
		fmt.Fprintf(&history, "Step %d: %s\n-> Action: %s\n-> Observation: %s\n", n, s.Thought, s.Action, s.Observation)
	}
	if n == 0 {
		history.WriteString("No steps taken yet.")
	}

	return fmt.Sprintf("VIOLATION:\n%s\n\nCOMPLIANCE RULE:\n%s\n\nRECORD DATA:\n%s\n\nPREVIOUS STEPS:\n%s\n",
		violation, rule, record, history.String()), nil
}

// parseDecision extracts the decision JSON, stripping markdown fences
// some models wrap around their output.
func parseDecision(raw string) (Decision, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Decision{}, fmt.Errorf("reason: cannot parse decision: %s", truncate(raw, 200))
	}
	if d.Action == "" {
		d.Action = ActionDone
	}
	if d.Args == nil {
		d.Args = map[string]any{}
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/interllm/interllm/internal/execution"
	"github.com/interllm/interllm/internal/models"
	"github.com/interllm/interllm/internal/scenario"
)

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// ScenarioTranscript captures the full exchange for one scenario: the prompt
// that was sent, the agent's final response, and the outcome.
type ScenarioTranscript struct {
	ScenarioNumber string        `json:"scenario_number"`
	ScenarioTitle  string        `json:"scenario_title"`
	Status         models.Status `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"`
	DurationMs     int64         `json:"duration_ms"`
	Prompt         string        `json:"prompt"`
	FinalOutput    string        `json:"final_output,omitempty"`
	OutputFile     string        `json:"output_file,omitempty"`
	SessionID      string        `json:"session_id,omitempty"`
	ToolCalls      int           `json:"tool_calls,omitempty"`
	ErrorMsg       string        `json:"error_msg,omitempty"`
}

// Filename returns the transcript filename for a scenario.
func Filename(scenarioTitle string, ts time.Time) string {
	return fmt.Sprintf("%s-%s.json", sanitizeName(scenarioTitle), ts.Format("20060102-150405"))
}

// Write serializes a ScenarioTranscript and writes it to dir.
func Write(dir string, t *ScenarioTranscript) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	name := Filename(t.ScenarioTitle, t.StartedAt)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	return path, nil
}

// Build constructs a ScenarioTranscript from a scenario execution.
func Build(sc scenario.Scenario, prompt string, resp *execution.ExecutionResponse, status models.Status, startTime time.Time) *ScenarioTranscript {
	t := &ScenarioTranscript{
		ScenarioNumber: sc.Number,
		ScenarioTitle:  sc.DisplayTitle(),
		Status:         status,
		StartedAt:      startTime,
		Prompt:         prompt,
		OutputFile:     scenario.OutputFilename(sc.Index),
	}

	if resp != nil {
		t.DurationMs = resp.DurationMs
		t.FinalOutput = resp.FinalOutput
		t.SessionID = resp.SessionID
		t.ToolCalls = resp.ToolCallCount
		t.ErrorMsg = resp.ErrorMsg
	}
	t.CompletedAt = startTime.Add(time.Duration(t.DurationMs) * time.Millisecond)

	return t
}

package transcript

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interllm/interllm/internal/execution"
	"github.com/interllm/interllm/internal/models"
	"github.com/interllm/interllm/internal/scenario"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1) Wire Transfer", "1-wire-transfer"},
		{"  Special/Chars! ", "specialchars"},
		{"", "unnamed"},
		{"!!!", "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in))
	}
}

func TestFilename(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := Filename("1) Wire Transfer", ts)
	assert.Equal(t, "1-wire-transfer-20260314-092653.json", got)
}

func TestBuildAndWrite(t *testing.T) {
	sc := scenario.Scenario{Index: 0, Number: "1", Title: "Wire Transfer", Body: "details"}
	resp := &execution.ExecutionResponse{
		FinalOutput:   "done",
		Success:       true,
		SessionID:     "session-9",
		ToolCallCount: 4,
		DurationMs:    1500,
	}
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tr := Build(sc, "the rendered prompt", resp, models.StatusSucceeded, start)
	assert.Equal(t, "1) Wire Transfer", tr.ScenarioTitle)
	assert.Equal(t, "scenario_001.md", tr.OutputFile)
	assert.Equal(t, int64(1500), tr.DurationMs)
	assert.Equal(t, start.Add(1500*time.Millisecond), tr.CompletedAt)
	assert.Equal(t, 4, tr.ToolCalls)

	dir := t.TempDir()
	path, err := Write(dir, tr)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded ScenarioTranscript
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "the rendered prompt", decoded.Prompt)
	assert.Equal(t, models.StatusSucceeded, decoded.Status)
	assert.Equal(t, "session-9", decoded.SessionID)
}

func TestBuild_NilResponse(t *testing.T) {
	sc := scenario.Scenario{Index: 2, Number: "3", Title: "Failed One"}
	start := time.Now().UTC()

	tr := Build(sc, "prompt", nil, models.StatusFailed, start)
	assert.Equal(t, models.StatusFailed, tr.Status)
	assert.Empty(t, tr.FinalOutput)
	assert.Equal(t, "scenario_003.md", tr.OutputFile)
	assert.Equal(t, start, tr.CompletedAt)
}

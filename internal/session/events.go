package session

import "time"

// EventType identifies the kind of run log event.
type EventType string

const (
	EventRunStart           EventType = "run_start"
	EventRunComplete        EventType = "run_complete"
	EventConfigSnapshot     EventType = "config_snapshot"
	EventCalibrationAttempt EventType = "calibration_attempt"
	EventCalibrationResult  EventType = "calibration_result"
	EventRefinementResult   EventType = "refinement_result"
	EventScenarioStart      EventType = "scenario_start"
	EventScenarioComplete   EventType = "scenario_complete"
	EventScenarioSkipped    EventType = "scenario_skipped"
	EventPromptSent         EventType = "prompt_sent"
	EventResponseReceived   EventType = "response_received"
	EventError              EventType = "error"
)

// Event is a single timestamped entry in a run log. Seq is assigned by the
// logger and increases monotonically within one log file.
type Event struct {
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp. Seq is left zero
// until the logger assigns it.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      t,
		Data:      data,
	}
}

// RunStartData returns event data for a run start.
func RunStartData(inputPath, model, engine string, scenarioCount int) map[string]any {
	return map[string]any{
		"input_path":     inputPath,
		"model":          model,
		"engine":         engine,
		"scenario_count": scenarioCount,
	}
}

// RunCompleteData returns event data for a run end.
func RunCompleteData(total, succeeded, failed, skipped int, durationMs int64) map[string]any {
	return map[string]any{
		"total":       total,
		"succeeded":   succeeded,
		"failed":      failed,
		"skipped":     skipped,
		"duration_ms": durationMs,
	}
}

// ConfigSnapshotData returns event data holding the effective run settings.
func ConfigSnapshotData(settings map[string]any) map[string]any {
	return settings
}

// CalibrationAttemptData returns event data for a calibration attempt.
func CalibrationAttemptData(attempt int, scenarioTitle string) map[string]any {
	return map[string]any{
		"attempt":        attempt,
		"scenario_title": scenarioTitle,
	}
}

// CalibrationResultData returns event data for a calibration outcome.
func CalibrationResultData(accepted bool, attempts int, outputFile, reason string) map[string]any {
	return map[string]any{
		"accepted":    accepted,
		"attempts":    attempts,
		"output_file": outputFile,
		"reason":      reason,
	}
}

// RefinementResultData returns event data for a template refinement outcome.
func RefinementResultData(applied bool, reason string) map[string]any {
	return map[string]any{
		"applied": applied,
		"reason":  reason,
	}
}

// ScenarioStartData returns event data for a scenario start.
func ScenarioStartData(title string, num, total int) map[string]any {
	return map[string]any{
		"scenario_title":  title,
		"scenario_num":    num,
		"total_scenarios": total,
	}
}

// ScenarioCompleteData returns event data for a scenario completion.
func ScenarioCompleteData(title, status, outputFile string, durationMs int64) map[string]any {
	return map[string]any{
		"scenario_title": title,
		"status":         status,
		"output_file":    outputFile,
		"duration_ms":    durationMs,
	}
}

// ScenarioSkippedData returns event data for a skipped scenario.
func ScenarioSkippedData(title, outputFile string) map[string]any {
	return map[string]any{
		"scenario_title": title,
		"output_file":    outputFile,
	}
}

// PromptSentData returns event data for a prompt dispatch. The prompt text
// is recorded in full so runs can be replayed from the log alone.
func PromptSentData(scenarioTitle, prompt string) map[string]any {
	return map[string]any{
		"scenario_title": scenarioTitle,
		"prompt":         prompt,
		"prompt_bytes":   len(prompt),
	}
}

// ResponseReceivedData returns event data for an agent response.
func ResponseReceivedData(scenarioTitle, sessionID string, toolCalls int, responseBytes int) map[string]any {
	return map[string]any{
		"scenario_title": scenarioTitle,
		"session_id":     sessionID,
		"tool_calls":     toolCalls,
		"response_bytes": responseBytes,
	}
}

// ErrorData returns event data for an error.
func ErrorData(message string, details map[string]any) map[string]any {
	d := map[string]any{
		"message": message,
	}
	for k, v := range details {
		d[k] = v
	}
	return d
}

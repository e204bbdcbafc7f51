package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/interllm/interllm/internal/models"
)

// InterpretSuccessRate returns a human-readable explanation of a success rate (0–1).
func InterpretSuccessRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All scenarios succeeded (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most scenarios succeeded (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the scenarios succeeded (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few scenarios succeeded (%.0f%%)", pct)
	}
}

// FormatRunSummary produces a plain-language report of a run manifest.
func FormatRunSummary(manifest *models.RunManifest, durationMs int64) string {
	var b strings.Builder

	succeeded, failed, skipped := manifest.Counts()
	attempted := succeeded + failed
	total := len(manifest.Scenarios)

	b.WriteString("=== Run Summary ===\n\n")
	b.WriteString(fmt.Sprintf("Source:   %s\n", manifest.Source))
	b.WriteString(fmt.Sprintf("Model:    %s\n", manifest.Model))
	b.WriteString(fmt.Sprintf("Duration: %v\n", time.Duration(durationMs)*time.Millisecond))
	b.WriteString(fmt.Sprintf("Scenarios: %d succeeded, %d failed, %d skipped out of %d total\n",
		succeeded, failed, skipped, total))

	if attempted > 0 {
		rate := float64(succeeded) / float64(attempted)
		b.WriteString(fmt.Sprintf("Outcome:  %s\n", InterpretSuccessRate(rate)))
	}

	if failed > 0 {
		b.WriteString("\nFailed scenarios:\n")
		for _, r := range manifest.Scenarios {
			if r.Status != models.StatusFailed {
				continue
			}
			line := fmt.Sprintf("  ✗ %s) %s", r.Number, r.Title)
			if r.Error != "" {
				line += fmt.Sprintf(": %s", r.Error)
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}

package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/interllm/interllm/internal/scenario"
)

// AggregationError wraps failures while assembling the master results file.
type AggregationError struct {
	Path string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregating results into %s: %v", e.Path, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// missingOutputLine marks a scenario whose output file was never produced.
func missingOutputLine(path string) string {
	return fmt.Sprintf("_Missing output: %s_", filepath.ToSlash(path))
}

// Aggregate combines per-scenario output files from outputDir into a single
// master results document at resultsPath. Scenarios appear in input order,
// each under its display title. Missing outputs get a placeholder line so the
// document always covers every scenario. The output is deterministic: running
// aggregation twice over unchanged inputs produces byte-identical files.
func Aggregate(scenarios []scenario.Scenario, outputDir, resultsPath string) error {
	content := []string{"# Scenario Results", ""}

	for _, sc := range scenarios {
		outputPath := filepath.Join(outputDir, scenario.OutputFilename(sc.Index))
		content = append(content, fmt.Sprintf("## %s", sc.DisplayTitle()), "")

		data, err := os.ReadFile(outputPath)
		switch {
		case err == nil:
			content = append(content, strings.TrimSpace(string(data)))
		case os.IsNotExist(err):
			content = append(content, missingOutputLine(outputPath))
		default:
			return &AggregationError{Path: resultsPath, Err: err}
		}
		content = append(content, "", "---", "")
	}

	doc := strings.TrimRight(strings.Join(content, "\n"), "\n") + "\n"

	if err := os.MkdirAll(filepath.Dir(resultsPath), 0o755); err != nil {
		return &AggregationError{Path: resultsPath, Err: err}
	}
	if err := os.WriteFile(resultsPath, []byte(doc), 0o644); err != nil {
		return &AggregationError{Path: resultsPath, Err: err}
	}
	return nil
}

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ScenarioResult is the manifest record for one scenario. OutputFile is
// relative to the manifest's OutputDir.
type ScenarioResult struct {
	Index      int    `json:"index"`
	Number     string `json:"number"`
	Title      string `json:"title"`
	OutputFile string `json:"output_file"`
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunManifest maps every scenario to its output file and status. It is
// written after each state change so an interrupted run leaves a usable
// partial manifest on disk.
type RunManifest struct {
	Source      string           `json:"source"`
	GeneratedAt time.Time        `json:"generated_at"`
	OutputDir   string           `json:"output_dir"`
	Model       string           `json:"model,omitempty"`
	Scenarios   []ScenarioResult `json:"scenarios"`

	path string
}

// NewRunManifest creates a manifest seeded with one PENDING record per
// scenario, in index order.
func NewRunManifest(source, outputDir, model string, scenarios []ScenarioResult) *RunManifest {
	return &RunManifest{
		Source:      source,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		OutputDir:   outputDir,
		Model:       model,
		Scenarios:   scenarios,
	}
}

// LoadRunManifest reads a manifest previously written with Save.
func LoadRunManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	m.path = path
	return &m, nil
}

// SetPath fixes the on-disk location used by Save.
func (m *RunManifest) SetPath(path string) { m.path = path }

// Path returns the manifest's on-disk location.
func (m *RunManifest) Path() string { return m.path }

// Update applies a state change to the record at index and persists the
// manifest when a path has been set.
func (m *RunManifest) Update(index int, mutate func(*ScenarioResult)) error {
	if index < 0 || index >= len(m.Scenarios) {
		return fmt.Errorf("manifest has no scenario at index %d", index)
	}
	mutate(&m.Scenarios[index])

	if m.path == "" {
		return nil
	}
	return m.Save()
}

// Save writes the manifest as indented JSON.
func (m *RunManifest) Save() error {
	if m.path == "" {
		return fmt.Errorf("manifest path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(m.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Counts tallies terminal statuses for the end-of-run summary.
func (m *RunManifest) Counts() (succeeded, failed, skipped int) {
	for _, s := range m.Scenarios {
		switch s.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

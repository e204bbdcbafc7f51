package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interllm/interllm/internal/config"
	"github.com/interllm/interllm/internal/models"
)

// resetRunGlobals zeroes the package-level flag vars so prior tests don't leak.
func resetRunGlobals() {
	runInput = ""
	runInputTemplate = ""
	runBaseTemplate = ""
	runOutputDir = ""
	runTodoFile = ""
	runResultsFile = ""
	runTemplateFile = ""
	runManifestFile = ""
	runModel = ""
	runEngine = ""
	runReasoningEffort = ""
	runMaxScenarios = 0
	runOverwrite = false
	runRefineTemplate = false
	runVerbose = false
	runLogDir = ""
	runTranscriptDir = ""
	runInteractive = false
	runCalibrationAttempts = 1
	runJUnitPath = ""
	runInterpret = false
}

const testScenarioList = `# Scenario List

## 1) Payment Retry

Retry failed card payments with backoff.

## 2) Refund Window

Handle refunds past the settlement window.

## 3) Chargeback Notice

Notify merchants about new chargebacks.
`

// createTestRunSpec writes a scenario list plus a run spec wired to the mock
// engine, all under a temp dir, and returns the spec path and the dir.
func createTestRunSpec(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	scenariosPath := filepath.Join(dir, "scenarios.md")
	require.NoError(t, os.WriteFile(scenariosPath, []byte(testScenarioList), 0o644))

	spec := `name: test-run
input: ` + scenariosPath + `
input_template: ` + filepath.Join(dir, "prompt_template.txt") + `
base_template: ` + filepath.Join(dir, "prompt_template_base.txt") + `
output_dir: ` + filepath.Join(dir, "outputs") + `
model: test-model
engine:
  type: mock
`
	specPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))
	return specPath, dir
}

// ---------------------------------------------------------------------------
// Argument validation
// ---------------------------------------------------------------------------

func TestRunCommand_RequiresExactlyOneArg(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", []string{}},
		{"two args", []string{"a.yaml", "b.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCommand()
			cmd.SetArgs(tt.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			assert.Error(t, cmd.Execute())
		})
	}
}

// ---------------------------------------------------------------------------
// Flag parsing
// ---------------------------------------------------------------------------

func TestRunCommand_FlagsParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--model", "gpt-5",
		"--max-scenarios", "4",
		"--overwrite",
		"-v",
	}))

	val, err := cmd.Flags().GetString("model")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", val)

	n, err := cmd.Flags().GetInt("max-scenarios")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	b, err := cmd.Flags().GetBool("overwrite")
	require.NoError(t, err)
	assert.True(t, b)

	b, err = cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, b)
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

func TestRunCommand_MissingSpecFile(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"nonexistent.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading run spec")
}

func TestRunCommand_InvalidReasoningEffortFlag(t *testing.T) {
	resetRunGlobals()

	specPath, _ := createTestRunSpec(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--reasoning-effort", "maximum"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoning_effort")
}

func TestRunCommand_UnknownEngineFlag(t *testing.T) {
	resetRunGlobals()

	specPath, _ := createTestRunSpec(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--engine", "nonexistent-engine"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine type")
}

// ---------------------------------------------------------------------------
// Integration with mock engine
// ---------------------------------------------------------------------------

func TestRunCommand_MockEngineRun(t *testing.T) {
	resetRunGlobals()

	specPath, dir := createTestRunSpec(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outputs := filepath.Join(dir, "outputs")
	for _, name := range []string{"scenario_001.md", "scenario_002.md", "scenario_003.md",
		config.DefaultResultsFile, config.DefaultManifestFile, config.DefaultTodoFile} {
		assert.FileExists(t, filepath.Join(outputs, name))
	}

	manifest, err := models.LoadRunManifest(filepath.Join(outputs, config.DefaultManifestFile))
	require.NoError(t, err)
	succeeded, failed, skipped := manifest.Counts()
	assert.Equal(t, 3, succeeded)
	assert.Zero(t, failed)
	assert.Zero(t, skipped)
}

func TestRunCommand_MaxScenariosFlag(t *testing.T) {
	resetRunGlobals()

	specPath, dir := createTestRunSpec(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--max-scenarios", "2"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outputs := filepath.Join(dir, "outputs")
	assert.FileExists(t, filepath.Join(outputs, "scenario_002.md"))
	assert.NoFileExists(t, filepath.Join(outputs, "scenario_003.md"))
}

func TestRunCommand_JUnitReport(t *testing.T) {
	resetRunGlobals()

	specPath, dir := createTestRunSpec(t)
	junitPath := filepath.Join(dir, "report.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--junit", junitPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(junitPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuites")
}

func TestRunCommand_LogDirFlag(t *testing.T) {
	resetRunGlobals()

	specPath, dir := createTestRunSpec(t)
	logDir := filepath.Join(dir, "logs")

	cmd := newRunCommand()
	cmd.SetArgs([]string{specPath, "--log-dir", logDir})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "-run.jsonl")
}

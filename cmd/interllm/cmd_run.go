package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/interllm/interllm/internal/config"
	"github.com/interllm/interllm/internal/execution"
	"github.com/interllm/interllm/internal/models"
	"github.com/interllm/interllm/internal/orchestration"
	"github.com/interllm/interllm/internal/reporting"
	"github.com/interllm/interllm/internal/session"
	"github.com/interllm/interllm/internal/spinner"
)

var (
	runInput               string
	runInputTemplate       string
	runBaseTemplate        string
	runOutputDir           string
	runTodoFile            string
	runResultsFile         string
	runTemplateFile        string
	runManifestFile        string
	runModel               string
	runEngine              string
	runReasoningEffort     string
	runMaxScenarios        int
	runOverwrite           bool
	runRefineTemplate      bool
	runVerbose             bool
	runLogDir              string
	runTranscriptDir       string
	runInteractive         bool
	runCalibrationAttempts int
	runJUnitPath           string
	runInterpret           bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <run.yaml>",
		Short: "Run a scenario batch against an agent",
		Long: `Run loads a YAML run spec, calibrates the prompt template on the first
scenario, then executes the remaining scenarios sequentially. Outputs are
written with deterministic filenames so an interrupted run can be resumed
with the same command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&runInput, "input", "", "Scenario list markdown file (overrides spec)")
	cmd.Flags().StringVar(&runInputTemplate, "input-template", "", "Scenario prompt template file (overrides spec)")
	cmd.Flags().StringVar(&runBaseTemplate, "base-template", "", "Base prompt template file (overrides spec)")
	cmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Directory for scenario outputs (overrides spec)")
	cmd.Flags().StringVar(&runTodoFile, "todo-file", "", "Path for the scenario index file")
	cmd.Flags().StringVar(&runResultsFile, "results-file", "", "Path for the aggregated results file")
	cmd.Flags().StringVar(&runTemplateFile, "prompt-template-file", "", "Path for the frozen prompt template")
	cmd.Flags().StringVar(&runManifestFile, "manifest-file", "", "Path for the run manifest")
	cmd.Flags().StringVar(&runModel, "model", "", "Model ID to request from the agent (overrides spec)")
	cmd.Flags().StringVar(&runEngine, "engine", "", "Agent engine: copilot-sdk or mock (overrides spec)")
	cmd.Flags().StringVar(&runReasoningEffort, "reasoning-effort", "", "Reasoning effort hint: minimal, low, medium or high (overrides spec)")
	cmd.Flags().IntVar(&runMaxScenarios, "max-scenarios", 0, "Cap the number of scenarios to run (0 = no cap)")
	cmd.Flags().BoolVar(&runOverwrite, "overwrite", false, "Redo scenarios whose output file already exists")
	cmd.Flags().BoolVar(&runRefineTemplate, "refine-template", false, "Ask the agent to refine the prompt template before calibration")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show prompts and responses as they happen")
	cmd.Flags().StringVar(&runLogDir, "log-dir", "", "Directory for durable run logs (disabled when empty)")
	cmd.Flags().StringVar(&runTranscriptDir, "transcript-dir", "", "Directory for per-scenario transcripts (disabled when empty)")
	cmd.Flags().BoolVar(&runInteractive, "interactive", false, "Review the prompt template interactively after failed calibration attempts")
	cmd.Flags().IntVar(&runCalibrationAttempts, "calibration-attempts", 1, "Calibration attempts before the run is aborted")
	cmd.Flags().StringVar(&runJUnitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().BoolVar(&runInterpret, "interpret", false, "Print an interpreted summary after the run")

	return cmd
}

func runScenarios(cmd *cobra.Command, specPath string) error {
	spec, err := loadSpecWithOverrides(specPath)
	if err != nil {
		return err
	}

	engine, err := buildEngine(spec)
	if err != nil {
		return err
	}

	cfg := config.NewRunConfig(spec, runConfigOptions()...)

	runnerOpts := []orchestration.RunnerOption{
		orchestration.WithCalibrationPolicy(calibrationPolicy()),
	}

	var runLog session.Logger = session.NopLogger{}
	if cfg.LogDir() != "" {
		if err := os.MkdirAll(cfg.LogDir(), 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
		jsonLog, err := session.NewJSONLogger(session.DefaultLogPath(cfg.LogDir()))
		if err != nil {
			return fmt.Errorf("opening run log: %w", err)
		}
		defer jsonLog.Close()
		runLog = jsonLog
	}
	runnerOpts = append(runnerOpts, orchestration.WithRunLogger(runLog))

	runner := orchestration.NewRunner(cfg, engine, runnerOpts...)
	switch {
	case runVerbose:
		runner.OnProgress(verboseProgressListener(cmd))
	case term.IsTerminal(int(os.Stdout.Fd())):
		listener, cleanup := ttyProgressListener(cmd)
		defer cleanup()
		runner.OnProgress(listener)
	default:
		runner.OnProgress(simpleProgressListener(cmd))
	}

	started := time.Now()
	manifest, runErr := runner.Run(cmd.Context())
	durationMs := time.Since(started).Milliseconds()

	if manifest != nil {
		printSummary(cmd, manifest, durationMs)

		if runJUnitPath != "" {
			if err := reporting.WriteJUnitXML(manifest, durationMs, runJUnitPath); err != nil {
				slog.Warn("failed to write JUnit report", "path", runJUnitPath, "error", err)
			}
		}
		if runInterpret {
			cmd.Println(reporting.FormatRunSummary(manifest, durationMs))
		}
	}

	if runErr != nil {
		return runErr
	}

	if _, failed, _ := manifest.Counts(); failed > 0 {
		return &RunFailureError{
			Message: fmt.Sprintf("%d scenario(s) failed", failed),
		}
	}
	return nil
}

func loadSpecWithOverrides(path string) (*models.RunSpec, error) {
	spec, err := models.LoadRunSpec(path)
	if err != nil {
		return nil, err
	}

	if runInput != "" {
		spec.Input = runInput
	}
	if runInputTemplate != "" {
		spec.InputTemplate = runInputTemplate
	}
	if runBaseTemplate != "" {
		spec.BaseTemplate = runBaseTemplate
	}
	if runOutputDir != "" {
		spec.OutputDir = runOutputDir
	}
	if runModel != "" {
		spec.Model = runModel
	}
	if runEngine != "" {
		spec.Engine.Type = runEngine
	}
	if runReasoningEffort != "" {
		spec.ReasoningEffort = runReasoningEffort
	}
	if runMaxScenarios > 0 {
		spec.MaxScenarios = runMaxScenarios
	}
	if runOverwrite {
		spec.Overwrite = true
	}
	if runRefineTemplate {
		spec.RefineTemplate = true
	}

	// Flag overrides can invalidate an otherwise-valid spec.
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func runConfigOptions() []config.Option {
	opts := []config.Option{config.WithVerbose(runVerbose)}
	if runTodoFile != "" {
		opts = append(opts, config.WithTodoPath(runTodoFile))
	}
	if runResultsFile != "" {
		opts = append(opts, config.WithResultsPath(runResultsFile))
	}
	if runTemplateFile != "" {
		opts = append(opts, config.WithTemplatePath(runTemplateFile))
	}
	if runManifestFile != "" {
		opts = append(opts, config.WithManifestPath(runManifestFile))
	}
	if runLogDir != "" {
		opts = append(opts, config.WithLogDir(runLogDir))
	}
	if runTranscriptDir != "" {
		opts = append(opts, config.WithTranscriptDir(runTranscriptDir))
	}
	return opts
}

func buildEngine(spec *models.RunSpec) (execution.AgentEngine, error) {
	switch spec.Engine.Type {
	case "mock":
		return execution.NewMockEngine(spec.Model), nil
	case "copilot-sdk":
		var opts execution.CopilotOptions
		if err := spec.Engine.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		return execution.NewCopilotEngineBuilder(spec.Model, opts).
			WithReasoningEffort(spec.ReasoningEffort).
			Build(), nil
	default:
		return nil, fmt.Errorf("unknown engine type %q", spec.Engine.Type)
	}
}

func calibrationPolicy() orchestration.CalibrationPolicy {
	if runInteractive && orchestration.Interactive() {
		return &orchestration.InteractivePolicy{Attempts: runCalibrationAttempts}
	}
	return &orchestration.RetryPolicy{Attempts: runCalibrationAttempts}
}

// simpleProgressListener prints one line per scenario.
func simpleProgressListener(cmd *cobra.Command) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventRunStart:
			cmd.Printf("Running %d scenario(s)\n", event.TotalScenarios)
		case orchestration.EventCalibrationStart:
			cmd.Printf("Calibrating on: %s\n", event.ScenarioTitle)
		case orchestration.EventScenarioStart:
			cmd.Printf("[%d/%d] %s ... ", event.ScenarioNum, event.TotalScenarios, truncate(event.ScenarioTitle, 60))
		case orchestration.EventScenarioComplete:
			switch event.Status {
			case models.StatusSucceeded:
				cmd.Printf("ok (%s)\n", formatMs(event.DurationMs))
			default:
				cmd.Printf("FAILED (%s)\n", formatMs(event.DurationMs))
			}
		case orchestration.EventScenarioSkipped:
			cmd.Printf("[%d/%d] %s ... skipped (output exists)\n", event.ScenarioNum, event.TotalScenarios, truncate(event.ScenarioTitle, 60))
		}
	}
}

// ttyProgressListener is the simple listener plus a spinner while the agent
// works, for interactive terminals. The cleanup func clears any spinner left
// running when the run aborts mid-scenario.
func ttyProgressListener(cmd *cobra.Command) (orchestration.ProgressListener, func()) {
	var spin *spinner.Spinner
	stopSpinner := func() {
		if spin != nil {
			spin.Stop()
			spin = nil
		}
	}

	listener := func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventRunStart:
			cmd.Printf("Running %d scenario(s)\n", event.TotalScenarios)
		case orchestration.EventCalibrationStart:
			spin = spinner.New(os.Stderr)
			spin.Start("calibrating: " + truncate(event.ScenarioTitle, 60))
		case orchestration.EventCalibrationComplete:
			stopSpinner()
			cmd.Printf("Calibrated on: %s\n", event.ScenarioTitle)
		case orchestration.EventScenarioStart:
			spin = spinner.New(os.Stderr)
			spin.Start(fmt.Sprintf("[%d/%d] %s", event.ScenarioNum, event.TotalScenarios, truncate(event.ScenarioTitle, 60)))
		case orchestration.EventScenarioComplete:
			stopSpinner()
			status := "ok"
			if event.Status != models.StatusSucceeded {
				status = "FAILED"
			}
			cmd.Printf("[%d/%d] %s ... %s (%s)\n",
				event.ScenarioNum, event.TotalScenarios, truncate(event.ScenarioTitle, 60), status, formatMs(event.DurationMs))
		case orchestration.EventScenarioSkipped:
			stopSpinner()
			cmd.Printf("[%d/%d] %s ... skipped (output exists)\n",
				event.ScenarioNum, event.TotalScenarios, truncate(event.ScenarioTitle, 60))
		}
	}
	return listener, stopSpinner
}

// verboseProgressListener additionally prints prompts and responses.
func verboseProgressListener(cmd *cobra.Command) orchestration.ProgressListener {
	simple := simpleProgressListener(cmd)
	return func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventAgentPrompt:
			cmd.Println("\n--- prompt ---")
			if prompt, ok := event.Details["prompt"].(string); ok {
				cmd.Println(prompt)
			}
			cmd.Println("--- end prompt ---")
		case orchestration.EventAgentResponse:
			if out, ok := event.Details["output"].(string); ok && out != "" {
				cmd.Println("\n--- response ---")
				cmd.Println(out)
				cmd.Println("--- end response ---")
			}
		default:
			simple(event)
		}
	}
}

func printSummary(cmd *cobra.Command, manifest *models.RunManifest, durationMs int64) {
	succeeded, failed, skipped := manifest.Counts()

	cmd.Println()
	cmd.Println(strings.Repeat("=", 70))
	cmd.Printf("Run complete: %d succeeded, %d failed, %d skipped (%s)\n",
		succeeded, failed, skipped, formatMs(durationMs))
	cmd.Println(strings.Repeat("=", 70))

	width := 0
	for _, r := range manifest.Scenarios {
		if w := runewidth.StringWidth(truncate(r.Title, 48)); w > width {
			width = w
		}
	}

	for _, r := range manifest.Scenarios {
		title := runewidth.FillRight(truncate(r.Title, 48), width)
		line := fmt.Sprintf("  %s  %-9s", title, r.Status)
		if r.Status == models.StatusFailed && r.Error != "" {
			line += "  " + truncate(r.Error, 60)
		}
		cmd.Println(line)
	}
	cmd.Println()
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}

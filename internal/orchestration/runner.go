package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/interllm/interllm/internal/config"
	"github.com/interllm/interllm/internal/execution"
	"github.com/interllm/interllm/internal/hooks"
	"github.com/interllm/interllm/internal/models"
	"github.com/interllm/interllm/internal/prompt"
	"github.com/interllm/interllm/internal/reporting"
	"github.com/interllm/interllm/internal/scenario"
	"github.com/interllm/interllm/internal/session"
	"github.com/interllm/interllm/internal/transcript"
)

// Runner drives one orchestration run: parse the scenario list, calibrate
// the prompt template against the first scenario, execute the remaining
// scenarios sequentially, then aggregate the outputs. Exactly one agent call
// is in flight at any time; the agent degrades when handed batched work, so
// the loop is sequential on purpose.
type Runner struct {
	cfg     *config.RunConfig
	engine  execution.AgentEngine
	policy  CalibrationPolicy
	log     session.Logger
	verbose bool

	hookRunner *hooks.Runner

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event.
type EventType string

// EventType constants
const (
	EventRunStart            EventType = "run_start"
	EventRunComplete         EventType = "run_complete"
	EventCalibrationStart    EventType = "calibration_start"
	EventCalibrationComplete EventType = "calibration_complete"
	EventScenarioStart       EventType = "scenario_start"
	EventScenarioComplete    EventType = "scenario_complete"
	EventScenarioSkipped     EventType = "scenario_skipped"
	EventAgentPrompt         EventType = "agent_prompt"
	EventAgentResponse       EventType = "agent_response"
)

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	EventType      EventType
	ScenarioTitle  string
	ScenarioNum    int
	TotalScenarios int
	Status         models.Status
	DurationMs     int64
	Details        map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCalibrationPolicy sets the policy consulted after a failed
// calibration attempt. Defaults to a single-attempt policy.
func WithCalibrationPolicy(p CalibrationPolicy) RunnerOption {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithRunLogger sets the durable run log sink. Defaults to a NopLogger.
func WithRunLogger(l session.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner creates a runner for the given configuration and engine.
func NewRunner(cfg *config.RunConfig, engine execution.AgentEngine, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:        cfg,
		engine:     engine,
		policy:     &RetryPolicy{Attempts: 1},
		log:        session.NopLogger{},
		verbose:    cfg.Verbose(),
		hookRunner: &hooks.Runner{Verbose: cfg.Verbose()},
		listeners:  []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// logEvent writes to the run log, downgrading sink failures to warnings so
// a full log disk never kills a run.
func (r *Runner) logEvent(t session.EventType, data map[string]any) {
	if err := r.log.Log(session.NewEvent(t, data)); err != nil {
		slog.Warn("run log write failed", "event", t, "error", err)
	}
}

// Run executes the whole orchestration and returns the final manifest.
// Fatal errors (parse, calibration, unreachable agent) abort with an error;
// per-scenario failures are recorded in the manifest and do not.
func (r *Runner) Run(ctx context.Context) (*models.RunManifest, error) {
	spec := r.cfg.Spec()
	startTime := time.Now()

	if err := r.hookRunner.Execute(ctx, "before_run", spec.Hooks.BeforeRun); err != nil {
		return nil, err
	}

	scenarios, err := scenario.Parse(spec.Input)
	if err != nil {
		return nil, err
	}

	// The cap bounds agent calls: no call is ever made for an index >= cap.
	if spec.MaxScenarios > 0 && spec.MaxScenarios < len(scenarios) {
		scenarios = scenarios[:spec.MaxScenarios]
	}

	if err := r.prepareOutputDir(spec.OutputDir); err != nil {
		return nil, err
	}
	if err := scenario.WriteIndex(scenarios, r.cfg.TodoPath()); err != nil {
		return nil, err
	}

	manifest := r.newManifest(scenarios)
	manifest.SetPath(r.cfg.ManifestPath())
	if err := manifest.Save(); err != nil {
		return nil, err
	}

	r.logEvent(session.EventRunStart, session.RunStartData(spec.Input, spec.Model, spec.Engine.Type, len(scenarios)))
	r.logEvent(session.EventConfigSnapshot, session.ConfigSnapshotData(r.configSnapshot()))
	r.notifyProgress(ProgressEvent{
		EventType:      EventRunStart,
		TotalScenarios: len(scenarios),
		Details:        map[string]any{"model": spec.Model, "engine": spec.Engine.Type},
	})

	if err := r.engine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing agent engine: %w", err)
	}
	defer func() {
		if err := r.engine.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("engine shutdown failed", "error", err)
		}
	}()

	tmpl, err := r.resolveTemplate(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.calibrate(ctx, scenarios[0], tmpl, manifest); err != nil {
		return manifest, err
	}

	// The template survived calibration; nothing may change it now.
	tmpl.Freeze()
	if err := tmpl.Write(r.cfg.TemplatePath()); err != nil {
		return manifest, err
	}

	if err := r.runBatch(ctx, scenarios, tmpl, manifest); err != nil {
		return manifest, err
	}

	if err := reporting.Aggregate(scenarios, spec.OutputDir, r.cfg.ResultsPath()); err != nil {
		return manifest, err
	}

	if err := r.hookRunner.Execute(ctx, "after_run", spec.Hooks.AfterRun); err != nil {
		return manifest, err
	}

	durationMs := time.Since(startTime).Milliseconds()
	succeeded, failed, skipped := manifest.Counts()
	r.logEvent(session.EventRunComplete, session.RunCompleteData(len(scenarios), succeeded, failed, skipped, durationMs))
	r.notifyProgress(ProgressEvent{
		EventType:      EventRunComplete,
		TotalScenarios: len(scenarios),
		DurationMs:     durationMs,
	})

	return manifest, nil
}

// prepareOutputDir creates the output directory. Prior outputs are kept:
// deterministic filenames plus the overwrite policy make interrupted runs
// resumable.
func (r *Runner) prepareOutputDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if abs == cwd {
		return fmt.Errorf("output dir cannot be the project root")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	return nil
}

func (r *Runner) newManifest(scenarios []scenario.Scenario) *models.RunManifest {
	spec := r.cfg.Spec()
	results := make([]models.ScenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		results = append(results, models.ScenarioResult{
			Index:      sc.Index,
			Number:     sc.Number,
			Title:      sc.Title,
			OutputFile: scenario.OutputFilename(sc.Index),
			Status:     models.StatusPending,
		})
	}
	return models.NewRunManifest(spec.Input, spec.OutputDir, spec.Model, results)
}

func (r *Runner) configSnapshot() map[string]any {
	spec := r.cfg.Spec()
	return map[string]any{
		"input":            spec.Input,
		"output_dir":       spec.OutputDir,
		"model":            spec.Model,
		"reasoning_effort": spec.ReasoningEffort,
		"max_scenarios":    spec.MaxScenarios,
		"overwrite":        spec.Overwrite,
		"refine_template":  spec.RefineTemplate,
		"engine":           spec.Engine.Type,
	}
}

// resolveTemplate loads the base and input templates (seeding them on first
// run) and optionally asks the agent to refine the input template before
// calibration. A refinement that drops a placeholder is discarded.
func (r *Runner) resolveTemplate(ctx context.Context) (*prompt.Template, error) {
	spec := r.cfg.Spec()

	base, err := prompt.ResolveBase(r.baseTemplatePath())
	if err != nil {
		return nil, err
	}
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("base template %s: %w", r.baseTemplatePath(), err)
	}

	tmpl, err := prompt.ResolveInput(r.inputTemplatePath(), base)
	if err != nil {
		return nil, err
	}
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("input template %s: %w", r.inputTemplatePath(), err)
	}

	if !spec.RefineTemplate {
		return tmpl, nil
	}

	refined, err := r.refineTemplate(ctx, tmpl)
	if err != nil {
		return nil, err
	}
	return refined, nil
}

// refinementPrompt asks the agent to improve the template while keeping the
// placeholders intact.
func refinementPrompt(body string) string {
	return "Improve the following prompt template for an Executor agent.\n" +
		"Return only the updated template text, with no commentary.\n" +
		"Keep these placeholders exactly as-is: " +
		"{SCENARIO_ID}, {SCENARIO_TITLE}, {SCENARIO_BODY}, {OUTPUT_PATH}.\n" +
		"Use ASCII only.\n\n" +
		"Template:\n" + body + "\n"
}

func (r *Runner) refineTemplate(ctx context.Context, tmpl *prompt.Template) (*prompt.Template, error) {
	resp, err := r.engine.Execute(ctx, &execution.ExecutionRequest{
		ScenarioID: "template-refinement",
		Prompt:     refinementPrompt(tmpl.Body()),
	})
	if err != nil {
		return nil, err
	}

	if !resp.Success || resp.FinalOutput == "" {
		r.logEvent(session.EventRefinementResult, session.RefinementResultData(false, resp.ErrorMsg))
		slog.Warn("template refinement failed, keeping input template", "error", resp.ErrorMsg)
		return tmpl, nil
	}

	candidate := prompt.New(scenario.NormalizeASCII(resp.FinalOutput))
	if err := candidate.Validate(); err != nil {
		r.logEvent(session.EventRefinementResult, session.RefinementResultData(false, err.Error()))
		slog.Warn("refined template rejected, keeping input template", "error", err)
		return tmpl, nil
	}

	r.logEvent(session.EventRefinementResult, session.RefinementResultData(true, ""))
	return candidate, nil
}

func (r *Runner) baseTemplatePath() string {
	if p := r.cfg.Spec().BaseTemplate; p != "" {
		return p
	}
	return filepath.Join("templates", "prompt_template_base.txt")
}

func (r *Runner) inputTemplatePath() string {
	if p := r.cfg.Spec().InputTemplate; p != "" {
		return p
	}
	return filepath.Join("input", "prompt_template.txt")
}

// executeScenario renders the prompt, invokes the agent once, and verifies
// the output file appeared. A *execution.FatalError passes through untouched
// so the caller can abort the run; anything else is a per-scenario failure.
func (r *Runner) executeScenario(ctx context.Context, sc scenario.Scenario, tmpl *prompt.Template, total int) (*execution.ExecutionResponse, error) {
	spec := r.cfg.Spec()
	outputPath := filepath.Join(spec.OutputDir, scenario.OutputFilename(sc.Index))
	rendered := tmpl.Render(sc, filepath.ToSlash(outputPath))

	if err := r.hookRunner.Execute(ctx, "before_scenario", spec.Hooks.BeforeScenario); err != nil {
		return nil, err
	}

	r.logEvent(session.EventPromptSent, session.PromptSentData(sc.DisplayTitle(), rendered))
	promptDetails := map[string]any{"prompt_bytes": len(rendered)}
	if r.verbose {
		promptDetails["prompt"] = rendered
	}
	r.notifyProgress(ProgressEvent{
		EventType:      EventAgentPrompt,
		ScenarioTitle:  sc.DisplayTitle(),
		ScenarioNum:    sc.Index + 1,
		TotalScenarios: total,
		Details:        promptDetails,
	})

	started := time.Now()
	resp, err := r.engine.Execute(ctx, &execution.ExecutionRequest{
		ScenarioID: scenario.OutputFilename(sc.Index),
		Prompt:     rendered,
		OutputPath: outputPath,
	})
	if err != nil {
		return nil, err
	}
	if resp.DurationMs == 0 {
		resp.DurationMs = time.Since(started).Milliseconds()
	}

	r.logEvent(session.EventResponseReceived, session.ResponseReceivedData(sc.DisplayTitle(), resp.SessionID, resp.ToolCallCount, len(resp.FinalOutput)))
	var responseDetails map[string]any
	if r.verbose {
		responseDetails = map[string]any{"output": resp.FinalOutput}
	}
	r.notifyProgress(ProgressEvent{
		EventType:      EventAgentResponse,
		ScenarioTitle:  sc.DisplayTitle(),
		ScenarioNum:    sc.Index + 1,
		TotalScenarios: total,
		DurationMs:     resp.DurationMs,
		Details:        responseDetails,
	})

	if err := r.hookRunner.Execute(ctx, "after_scenario", spec.Hooks.AfterScenario); err != nil {
		return resp, err
	}

	if !resp.Success {
		return resp, fmt.Errorf("agent call failed: %s", resp.ErrorMsg)
	}
	if err := verifyOutput(outputPath); err != nil {
		return resp, err
	}
	return resp, nil
}

// verifyOutput checks the side effect the prompt demands: the agent must
// have written a non-empty output file.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("agent did not write expected output file %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("agent wrote an empty output file %s", path)
	}
	return nil
}

// runBatch iterates scenarios after the calibration one, in index order.
// Scenario failures are recorded and the loop continues; only fatal engine
// errors abort.
func (r *Runner) runBatch(ctx context.Context, scenarios []scenario.Scenario, tmpl *prompt.Template, manifest *models.RunManifest) error {
	spec := r.cfg.Spec()
	total := len(scenarios)

	for _, sc := range scenarios[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}

		outputPath := filepath.Join(spec.OutputDir, scenario.OutputFilename(sc.Index))
		if !spec.Overwrite && fileExists(outputPath) {
			r.markSkipped(sc, manifest, total)
			continue
		}

		r.notifyProgress(ProgressEvent{
			EventType:      EventScenarioStart,
			ScenarioTitle:  sc.DisplayTitle(),
			ScenarioNum:    sc.Index + 1,
			TotalScenarios: total,
			Status:         models.StatusRunning,
		})
		r.logEvent(session.EventScenarioStart, session.ScenarioStartData(sc.DisplayTitle(), sc.Index+1, total))
		if uerr := manifest.Update(sc.Index, func(res *models.ScenarioResult) {
			res.Status = models.StatusRunning
		}); uerr != nil {
			return uerr
		}

		started := time.Now()
		resp, err := r.executeScenario(ctx, sc, tmpl, total)

		var fatal *execution.FatalError
		if errors.As(err, &fatal) {
			// Leave the manifest partial: completed work is preserved.
			r.recordFailure(sc, err, manifest, started)
			return fatal
		}

		status := models.StatusSucceeded
		if err != nil {
			status = models.StatusFailed
			r.recordFailure(sc, err, manifest, started)
		} else {
			if uerr := manifest.Update(sc.Index, func(res *models.ScenarioResult) {
				res.Status = models.StatusSucceeded
				res.DurationMs = resp.DurationMs
			}); uerr != nil {
				return uerr
			}
			r.logEvent(session.EventScenarioComplete, session.ScenarioCompleteData(sc.DisplayTitle(), string(models.StatusSucceeded), scenario.OutputFilename(sc.Index), resp.DurationMs))
		}

		r.writeTranscript(sc, tmpl, resp, status, started)
		r.notifyProgress(ProgressEvent{
			EventType:      EventScenarioComplete,
			ScenarioTitle:  sc.DisplayTitle(),
			ScenarioNum:    sc.Index + 1,
			TotalScenarios: total,
			Status:         status,
			DurationMs:     time.Since(started).Milliseconds(),
		})
	}
	return nil
}

func (r *Runner) markSkipped(sc scenario.Scenario, manifest *models.RunManifest, total int) {
	if err := manifest.Update(sc.Index, func(res *models.ScenarioResult) {
		res.Status = models.StatusSkipped
	}); err != nil {
		slog.Warn("manifest update failed", "scenario", sc.DisplayTitle(), "error", err)
	}
	r.logEvent(session.EventScenarioSkipped, session.ScenarioSkippedData(sc.DisplayTitle(), scenario.OutputFilename(sc.Index)))
	r.notifyProgress(ProgressEvent{
		EventType:      EventScenarioSkipped,
		ScenarioTitle:  sc.DisplayTitle(),
		ScenarioNum:    sc.Index + 1,
		TotalScenarios: total,
		Status:         models.StatusSkipped,
	})
}

func (r *Runner) recordFailure(sc scenario.Scenario, cause error, manifest *models.RunManifest, started time.Time) {
	if err := manifest.Update(sc.Index, func(res *models.ScenarioResult) {
		res.Status = models.StatusFailed
		res.DurationMs = time.Since(started).Milliseconds()
		if cause != nil {
			res.Error = cause.Error()
		}
	}); err != nil {
		slog.Warn("manifest update failed", "scenario", sc.DisplayTitle(), "error", err)
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	r.logEvent(session.EventError, session.ErrorData(msg, map[string]any{"scenario_title": sc.DisplayTitle()}))
	r.logEvent(session.EventScenarioComplete, session.ScenarioCompleteData(sc.DisplayTitle(), string(models.StatusFailed), scenario.OutputFilename(sc.Index), time.Since(started).Milliseconds()))
}

func (r *Runner) writeTranscript(sc scenario.Scenario, tmpl *prompt.Template, resp *execution.ExecutionResponse, status models.Status, started time.Time) {
	dir := r.cfg.TranscriptDir()
	if dir == "" {
		return
	}
	spec := r.cfg.Spec()
	outputPath := filepath.Join(spec.OutputDir, scenario.OutputFilename(sc.Index))
	rendered := tmpl.Render(sc, filepath.ToSlash(outputPath))

	if _, err := transcript.Write(dir, transcript.Build(sc, rendered, resp, status, started)); err != nil {
		slog.Warn("transcript write failed", "scenario", sc.DisplayTitle(), "error", err)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

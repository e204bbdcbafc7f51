package orchestration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sethvargo/go-retry"
	"golang.org/x/term"

	"github.com/interllm/interllm/internal/execution"
	"github.com/interllm/interllm/internal/models"
	"github.com/interllm/interllm/internal/prompt"
	"github.com/interllm/interllm/internal/scenario"
	"github.com/interllm/interllm/internal/session"
)

// CalibrationError means the first scenario never produced an acceptable
// result; the run aborts before the batch phase.
type CalibrationError struct {
	Attempts int
	Err      error
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// CalibrationPolicy decides what happens after a failed calibration attempt.
// MaxAttempts bounds the total number of agent calls; Review may hand back
// an adjusted template body for the next attempt.
type CalibrationPolicy interface {
	MaxAttempts() int
	Review(ctx context.Context, attempt int, templateBody string, cause error) (newBody string, retry bool, err error)
}

// RetryPolicy retries calibration a fixed number of times without touching
// the template. Attempts of 1 means a single attempt, no retry.
type RetryPolicy struct {
	Attempts int
	// Delay between attempts. Zero means retry immediately.
	Delay time.Duration
}

func (p *RetryPolicy) MaxAttempts() int {
	if p.Attempts > 0 {
		return p.Attempts
	}
	return 1
}

// Review keeps the template as-is and retries while attempts remain.
func (p *RetryPolicy) Review(ctx context.Context, attempt int, templateBody string, cause error) (string, bool, error) {
	return templateBody, attempt < p.MaxAttempts(), nil
}

// InteractivePolicy pauses after a failed attempt and lets the operator edit
// the template, retry as-is, or abort. It requires a terminal; construct it
// only when stdin is a TTY (see Interactive()).
type InteractivePolicy struct {
	Attempts int
}

// Interactive reports whether an interactive calibration policy can be used.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *InteractivePolicy) MaxAttempts() int {
	if p.Attempts > 0 {
		return p.Attempts
	}
	return 3
}

// Review prompts the operator for a decision.
func (p *InteractivePolicy) Review(ctx context.Context, attempt int, templateBody string, cause error) (string, bool, error) {
	if attempt >= p.MaxAttempts() {
		return templateBody, false, nil
	}

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("Calibration attempt %d failed: %v", attempt, cause)).
			Options(
				huh.NewOption("Edit the template and retry", "edit"),
				huh.NewOption("Retry as-is", "retry"),
				huh.NewOption("Abort the run", "abort"),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return templateBody, false, err
	}

	switch choice {
	case "abort":
		return templateBody, false, nil
	case "retry":
		return templateBody, true, nil
	}

	edited := templateBody
	editForm := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title("Prompt template").
			Description("Keep {SCENARIO_ID}, {SCENARIO_TITLE}, {SCENARIO_BODY} and {OUTPUT_PATH} intact.").
			Value(&edited),
	))
	if err := editForm.Run(); err != nil {
		return templateBody, false, err
	}

	candidate := prompt.New(edited)
	if err := candidate.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Edited template rejected: %v\n", err)
		return templateBody, true, nil
	}
	return candidate.Body(), true, nil
}

// calibrate validates the template against the first scenario. The first
// scenario's output doubles as its batch result, so the batch loop never
// re-invokes the agent for index 0.
func (r *Runner) calibrate(ctx context.Context, first scenario.Scenario, tmpl *prompt.Template, manifest *models.RunManifest) error {
	spec := r.cfg.Spec()
	total := len(manifest.Scenarios)
	outputPath := filepath.Join(spec.OutputDir, scenario.OutputFilename(first.Index))

	if !spec.Overwrite && fileExists(outputPath) {
		r.markSkipped(first, manifest, total)
		return nil
	}

	r.notifyProgress(ProgressEvent{
		EventType:      EventCalibrationStart,
		ScenarioTitle:  first.DisplayTitle(),
		ScenarioNum:    first.Index + 1,
		TotalScenarios: total,
	})
	if err := manifest.Update(first.Index, func(res *models.ScenarioResult) {
		res.Status = models.StatusRunning
	}); err != nil {
		return err
	}

	maxAttempts := r.policy.MaxAttempts()
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(policyDelay(r.policy)))

	attempt := 0
	started := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r.logEvent(session.EventCalibrationAttempt, session.CalibrationAttemptData(attempt, first.DisplayTitle()))

		_, execErr := r.executeScenario(ctx, first, tmpl, total)
		if execErr == nil {
			return nil
		}

		var fatal *execution.FatalError
		if errors.As(execErr, &fatal) {
			return execErr // not retryable: the agent process is gone
		}

		newBody, retryAgain, reviewErr := r.policy.Review(ctx, attempt, tmpl.Body(), execErr)
		if reviewErr != nil {
			return reviewErr
		}
		if !retryAgain {
			return execErr
		}
		if newBody != tmpl.Body() {
			if replaceErr := tmpl.Replace(newBody); replaceErr != nil {
				return replaceErr
			}
		}
		return retry.RetryableError(execErr)
	})

	if err != nil {
		r.logEvent(session.EventCalibrationResult, session.CalibrationResultData(false, attempt, scenario.OutputFilename(first.Index), err.Error()))
		r.recordFailure(first, err, manifest, started)
		var fatal *execution.FatalError
		if errors.As(err, &fatal) {
			return fatal
		}
		return &CalibrationError{Attempts: attempt, Err: err}
	}

	if uerr := manifest.Update(first.Index, func(res *models.ScenarioResult) {
		res.Status = models.StatusSucceeded
		res.DurationMs = time.Since(started).Milliseconds()
	}); uerr != nil {
		return uerr
	}

	r.logEvent(session.EventCalibrationResult, session.CalibrationResultData(true, attempt, scenario.OutputFilename(first.Index), ""))
	r.notifyProgress(ProgressEvent{
		EventType:      EventCalibrationComplete,
		ScenarioTitle:  first.DisplayTitle(),
		ScenarioNum:    first.Index + 1,
		TotalScenarios: total,
		Status:         models.StatusSucceeded,
		DurationMs:     time.Since(started).Milliseconds(),
	})
	return nil
}

// policyDelay picks the inter-attempt delay. go-retry requires a positive
// constant, so "no delay" is expressed as one millisecond.
func policyDelay(p CalibrationPolicy) time.Duration {
	if rp, ok := p.(*RetryPolicy); ok && rp.Delay > 0 {
		return rp.Delay
	}
	return time.Millisecond
}

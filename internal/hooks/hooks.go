package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// HookConfig is one shell command run at a lifecycle point. When ErrorOnFail
// is false an unexpected exit code is logged and the run continues.
type HookConfig struct {
	Command          string `yaml:"command" json:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	ExitCodes        []int  `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	ErrorOnFail      bool   `yaml:"error_on_fail,omitempty" json:"error_on_fail,omitempty"`
}

// HooksConfig holds the run's lifecycle hooks. Before/after run bracket the
// whole orchestration; before/after scenario bracket each agent call.
type HooksConfig struct {
	BeforeRun      []HookConfig `yaml:"before_run,omitempty" json:"before_run,omitempty"`
	AfterRun       []HookConfig `yaml:"after_run,omitempty" json:"after_run,omitempty"`
	BeforeScenario []HookConfig `yaml:"before_scenario,omitempty" json:"before_scenario,omitempty"`
	AfterScenario  []HookConfig `yaml:"after_scenario,omitempty" json:"after_scenario,omitempty"`
}

// Empty reports whether no hooks are configured at all.
func (c HooksConfig) Empty() bool {
	return len(c.BeforeRun) == 0 && len(c.AfterRun) == 0 &&
		len(c.BeforeScenario) == 0 && len(c.AfterScenario) == 0
}

// Runner executes hook commands sequentially at lifecycle points.
type Runner struct {
	Verbose bool
}

// Execute runs every hook for the lifecycle point named by point, stopping
// at the first hard failure.
func (r *Runner) Execute(ctx context.Context, point string, hooks []HookConfig) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s[%d]: %w", point, i, err)
		}
		if err := r.run(ctx, point, i, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, point string, i int, h HookConfig) error {
	fields := strings.Fields(h.Command)
	if len(fields) == 0 {
		return fmt.Errorf("hook %s[%d]: empty command", point, i)
	}

	//nolint:gosec // hook commands come from the user's own run spec
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = h.WorkingDirectory

	out, err := cmd.CombinedOutput()
	if r.Verbose && len(out) > 0 {
		fmt.Printf("[hook:%s] %s\n", point, strings.TrimRight(string(out), "\n"))
	}

	code, runErr := exitCode(err)
	if runErr != nil {
		if h.ErrorOnFail {
			return fmt.Errorf("hook %s[%d]: %w", point, i, runErr)
		}
		slog.Warn("hook failed to start", "point", point, "index", i, "error", runErr)
		return nil
	}

	if exitAllowed(code, h.ExitCodes) {
		return nil
	}
	if h.ErrorOnFail {
		return fmt.Errorf("hook %s[%d]: exit code %d not in allowed set %v", point, i, code, allowedSet(h.ExitCodes))
	}
	slog.Warn("hook exited with unexpected code, continuing", "point", point, "index", i, "code", code)
	return nil
}

// exitCode separates "the command ran and exited" from "the command never
// ran" (missing binary, canceled context).
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

func exitAllowed(code int, allowed []int) bool {
	for _, c := range allowedSet(allowed) {
		if code == c {
			return true
		}
	}
	return false
}

// allowedSet defaults to {0} when the spec lists no exit codes.
func allowedSet(allowed []int) []int {
	if len(allowed) == 0 {
		return []int{0}
	}
	return allowed
}

package execution

import (
	"context"
	"fmt"
	"time"
)

// AgentEngine is the single abstraction the calibration and batch phases
// drive: hand a rendered prompt to the external agent, get a result or an
// error. Implementations must be safe for strictly sequential reuse.
type AgentEngine interface {
	// Initialize sets up the engine before the first Execute.
	Initialize(ctx context.Context) error

	// Execute sends one fully rendered prompt and blocks until the agent
	// responds. A non-nil error means the engine itself failed; agent-level
	// failures come back inside the response with Success=false.
	Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResponse, error)

	// Shutdown cleans up resources.
	Shutdown(ctx context.Context) error
}

// ExecutionRequest carries one scenario's rendered prompt to the engine.
type ExecutionRequest struct {
	// ScenarioID labels the request in logs ("1", "2.3").
	ScenarioID string
	// Prompt is the fully rendered prompt text.
	Prompt string
	// OutputPath is where the agent was instructed to write its result. The
	// engine does not write this file; the orchestrator checks it afterwards.
	OutputPath string
	// WorkingDir is the directory the agent session operates in.
	WorkingDir string
	// Timeout bounds the agent call. Zero means no engine-imposed timeout.
	Timeout time.Duration
}

// ExecutionResponse is the result of one agent call.
type ExecutionResponse struct {
	FinalOutput   string
	ErrorMsg      string
	Success       bool
	SessionID     string
	ToolCallCount int
	DurationMs    int64
}

// FatalError marks the agent process or channel as unreachable. The
// orchestrator aborts the whole run on a FatalError; any other failure is
// recorded against the current scenario and the loop continues.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("agent engine unreachable (%s): %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

package execution

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
)

// reasoningEffortEnv is how the reasoning-effort hint reaches the agent CLI
// process: it is exported unmodified into the environment the SDK spawns the
// CLI with. The orchestrator never interprets the value.
const reasoningEffortEnv = "COPILOT_MODEL_REASONING_EFFORT"

// CopilotOptions is the engine's free-form options block from the run spec.
type CopilotOptions struct {
	LogLevel              string `mapstructure:"log_level"`
	SessionTimeoutSeconds int    `mapstructure:"session_timeout_seconds"`
}

// CopilotEngine drives the GitHub Copilot CLI through its SDK. One session
// is created per scenario so a degraded session cannot bleed into the next
// iteration.
type CopilotEngine struct {
	modelID         string
	reasoningEffort string
	sessionTimeout  time.Duration

	client    copilotClient
	startOnce sync.Once
}

// CopilotEngineBuilder configures a CopilotEngine before first use.
type CopilotEngineBuilder struct {
	engine *CopilotEngine
}

// NewCopilotEngineBuilder creates a builder.
//   - modelID may be blank, in which case the copilot CLI picks its own
//     fallback model.
func NewCopilotEngineBuilder(modelID string, opts CopilotOptions) *CopilotEngineBuilder {
	logLevel := opts.LogLevel
	if logLevel == "" {
		logLevel = "error"
	}

	client := newCopilotClient(&copilot.ClientOptions{
		LogLevel:  logLevel,
		AutoStart: copilot.Bool(false),
	})

	return &CopilotEngineBuilder{
		engine: &CopilotEngine{
			modelID:        modelID,
			sessionTimeout: time.Duration(opts.SessionTimeoutSeconds) * time.Second,
			client:         client,
		},
	}
}

// WithClient swaps the SDK client, for tests.
func (b *CopilotEngineBuilder) WithClient(client copilotClient) *CopilotEngineBuilder {
	b.engine.client = client
	return b
}

// WithReasoningEffort records the pass-through reasoning hint.
func (b *CopilotEngineBuilder) WithReasoningEffort(effort string) *CopilotEngineBuilder {
	b.engine.reasoningEffort = effort
	return b
}

func (b *CopilotEngineBuilder) Build() *CopilotEngine {
	return b.engine
}

// Initialize exports the reasoning-effort hint for the agent process.
// Client startup itself is deferred to the first Execute.
func (e *CopilotEngine) Initialize(ctx context.Context) error {
	if e.reasoningEffort != "" {
		if err := os.Setenv(reasoningEffortEnv, e.reasoningEffort); err != nil {
			return fmt.Errorf("exporting reasoning effort: %w", err)
		}
		slog.Debug("reasoning effort exported to agent environment", "effort", e.reasoningEffort)
	}
	return ctx.Err()
}

// Execute runs one scenario prompt in a fresh session.
func (e *CopilotEngine) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotEngine.Execute")
	}

	var startErr error
	e.startOnce.Do(func() {
		// The SDK's autostart runs into trouble when triggered lazily, so the
		// engine starts the client itself exactly once.
		startErr = e.client.Start(ctx)
	})
	if startErr != nil {
		return nil, &FatalError{Op: "start", Err: startErr}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	} else if e.sessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.sessionTimeout)
		defer cancel()
	}

	start := time.Now()

	session, err := e.client.CreateSession(ctx, &copilot.SessionConfig{
		Model:               e.modelID,
		OnPermissionRequest: allowAllTools,
		WorkingDirectory:    req.WorkingDir,
	})
	if err != nil {
		return nil, &FatalError{Op: "create session", Err: err}
	}

	collector := newResponseCollector()
	unsubscribe := session.On(collector.On)
	defer unsubscribe()

	_, err = session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: req.Prompt,
	})

	// Errors surfaced inline by the conversation come back here too; they are
	// scenario failures, not transport failures, so they ride in the response.
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	if errMsg == "" {
		errMsg = collector.ErrorMessage()
	}

	return &ExecutionResponse{
		FinalOutput:   collector.Output(),
		ErrorMsg:      errMsg,
		Success:       errMsg == "",
		SessionID:     session.SessionID(),
		ToolCallCount: collector.ToolCallCount(),
		DurationMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Shutdown stops the CLI client.
func (e *CopilotEngine) Shutdown(ctx context.Context) error {
	if err := e.client.Stop(); err != nil {
		slog.Info("failed to stop copilot client", "error", err)
	}
	return ctx.Err()
}

func allowAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	// The prompt instructs the agent to write the scenario output file, so
	// tool use is always approved.
	return copilot.PermissionRequestResult{Kind: "approved"}, nil
}

package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MockEngine is an in-process stand-in for the real agent, used by tests and
// dry runs. It honors the agent's contract: write the requested output file,
// then answer "DONE".
type MockEngine struct {
	modelID string

	// Requests records every prompt the engine saw, in order.
	Requests []ExecutionRequest
}

// NewMockEngine creates a mock engine.
func NewMockEngine(modelID string) *MockEngine {
	return &MockEngine{modelID: modelID}
}

func (m *MockEngine) Initialize(ctx context.Context) error {
	return ctx.Err()
}

func (m *MockEngine) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FatalError{Op: "mock execute", Err: err}
	}

	start := time.Now()
	m.Requests = append(m.Requests, *req)

	if req.OutputPath != "" {
		path := req.OutputPath
		if !filepath.IsAbs(path) && req.WorkingDir != "" {
			path = filepath.Join(req.WorkingDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mock engine: creating output directory: %w", err)
		}
		content := fmt.Sprintf("# Mock result for scenario %s\n\nGenerated by the mock engine (model %s).\n", req.ScenarioID, m.modelID)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("mock engine: writing output: %w", err)
		}
	}

	return &ExecutionResponse{
		FinalOutput: "DONE",
		Success:     true,
		SessionID:   fmt.Sprintf("mock-%d", len(m.Requests)),
		DurationMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (m *MockEngine) Shutdown(ctx context.Context) error {
	return ctx.Err()
}

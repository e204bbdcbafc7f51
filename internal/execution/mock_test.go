package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEngine_WritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	engine := NewMockEngine("mock-model")
	require.NoError(t, engine.Initialize(context.Background()))

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{
		ScenarioID: "scenario_001",
		Prompt:     "do the thing",
		OutputPath: "scenario_001.md",
		WorkingDir: dir,
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Success)
	assert.Equal(t, "DONE", resp.FinalOutput)
	assert.Equal(t, "mock-1", resp.SessionID)

	data, err := os.ReadFile(filepath.Join(dir, "scenario_001.md"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.Len(t, engine.Requests, 1)
	assert.Equal(t, "do the thing", engine.Requests[0].Prompt)

	require.NoError(t, engine.Shutdown(context.Background()))
}

func TestMockEngine_AbsoluteOutputPath(t *testing.T) {
	dir := t.TempDir()
	engine := NewMockEngine("mock-model")

	outPath := filepath.Join(dir, "out.md")
	resp, err := engine.Execute(context.Background(), &ExecutionRequest{
		Prompt:     "x",
		OutputPath: outPath,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.FileExists(t, outPath)
}

func TestMockEngine_SessionIDsIncrement(t *testing.T) {
	dir := t.TempDir()
	engine := NewMockEngine("mock-model")

	for i, want := range []string{"mock-1", "mock-2", "mock-3"} {
		resp, err := engine.Execute(context.Background(), &ExecutionRequest{
			Prompt:     "x",
			OutputPath: filepath.Join(dir, filepath.Base(t.Name())+string(rune('a'+i))+".md"),
		})
		require.NoError(t, err)
		assert.Equal(t, want, resp.SessionID)
	}
}

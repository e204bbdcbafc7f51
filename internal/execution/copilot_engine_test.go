package execution

import (
	"context"
	"errors"
	"os"
	"testing"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCopilotClient struct {
	startErr         error
	stopErr          error
	createSessionErr error
	session          *fakeSession

	startCalls  int
	stopCalls   int
	createCalls int
	lastConfig  *copilot.SessionConfig
}

func (c *fakeCopilotClient) Start(ctx context.Context) error {
	c.startCalls++
	return c.startErr
}

func (c *fakeCopilotClient) Stop() error {
	c.stopCalls++
	return c.stopErr
}

func (c *fakeCopilotClient) CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
	c.createCalls++
	c.lastConfig = config
	if c.createSessionErr != nil {
		return nil, c.createSessionErr
	}
	return c.session, nil
}

type fakeSession struct {
	id       string
	handlers []copilot.SessionEventHandler
	sendFn   func(context.Context, copilot.MessageOptions) (*copilot.SessionEvent, error)
}

func (s *fakeSession) On(handler copilot.SessionEventHandler) func() {
	s.handlers = append(s.handlers, handler)
	return func() {}
}

func (s *fakeSession) SendAndWait(ctx context.Context, opts copilot.MessageOptions) (*copilot.SessionEvent, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, opts)
	}
	return &copilot.SessionEvent{}, nil
}

func (s *fakeSession) SessionID() string {
	return s.id
}

func (s *fakeSession) emit(event copilot.SessionEvent) {
	for _, handler := range s.handlers {
		handler(event)
	}
}

func buildEngine(client copilotClient) *CopilotEngine {
	return NewCopilotEngineBuilder("test-model", CopilotOptions{}).WithClient(client).Build()
}

func TestCopilotEngine_Execute_StartError(t *testing.T) {
	client := &fakeCopilotClient{startErr: errors.New("start failed")}
	engine := buildEngine(client)

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.Nil(t, resp)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 1, client.startCalls)
}

func TestCopilotEngine_Execute_CreateSessionError(t *testing.T) {
	client := &fakeCopilotClient{createSessionErr: errors.New("session create failed")}
	engine := buildEngine(client)

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.Nil(t, resp)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestCopilotEngine_Execute_SendErrorIsScenarioFailure(t *testing.T) {
	session := &fakeSession{
		id: "session-1",
		sendFn: func(ctx context.Context, opts copilot.MessageOptions) (*copilot.SessionEvent, error) {
			return nil, errors.New("send failed")
		},
	}
	engine := buildEngine(&fakeCopilotClient{session: session})

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{Prompt: "hello"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMsg, "send failed")
}

func TestCopilotEngine_Execute_Success(t *testing.T) {
	session := &fakeSession{id: "session-success"}
	session.sendFn = func(ctx context.Context, opts copilot.MessageOptions) (*copilot.SessionEvent, error) {
		require.Equal(t, "hello", opts.Prompt)
		delta := "Hello "
		message := "world"
		tool := "write"
		session.emit(copilot.SessionEvent{Type: copilot.AssistantMessageDelta, Data: copilot.Data{Content: &delta}})
		session.emit(copilot.SessionEvent{Type: copilot.AssistantMessage, Data: copilot.Data{Content: &message}})
		session.emit(copilot.SessionEvent{Type: copilot.ToolExecutionStart, Data: copilot.Data{ToolName: &tool}})
		session.emit(copilot.SessionEvent{Type: copilot.SessionIdle})
		return &copilot.SessionEvent{}, nil
	}

	client := &fakeCopilotClient{session: session}
	engine := buildEngine(client)

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{
		Prompt:     "hello",
		WorkingDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.ErrorMsg)
	assert.Equal(t, "Hello world", resp.FinalOutput)
	assert.Equal(t, "session-success", resp.SessionID)
	assert.Equal(t, 1, resp.ToolCallCount)

	require.NotNil(t, client.lastConfig)
	assert.Equal(t, "test-model", client.lastConfig.Model)
	assert.NotEmpty(t, client.lastConfig.WorkingDirectory)
}

func TestCopilotEngine_Execute_SessionError(t *testing.T) {
	session := &fakeSession{id: "session-error"}
	session.sendFn = func(ctx context.Context, opts copilot.MessageOptions) (*copilot.SessionEvent, error) {
		session.emit(copilot.SessionEvent{Type: copilot.SessionError, Data: copilot.Data{Message: nil}})
		return &copilot.SessionEvent{}, nil
	}
	engine := buildEngine(&fakeCopilotClient{session: session})

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{Prompt: "hello"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, sessionFailedUnknown, resp.ErrorMsg)
}

func TestCopilotEngine_Execute_StartsClientOnce(t *testing.T) {
	client := &fakeCopilotClient{session: &fakeSession{id: "s"}}
	engine := buildEngine(client)

	for range 3 {
		_, err := engine.Execute(context.Background(), &ExecutionRequest{Prompt: "hi"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, client.startCalls)
	assert.Equal(t, 3, client.createCalls)
}

func TestCopilotEngine_Initialize_ExportsReasoningEffort(t *testing.T) {
	t.Setenv(reasoningEffortEnv, "")

	engine := NewCopilotEngineBuilder("test-model", CopilotOptions{}).
		WithClient(&fakeCopilotClient{}).
		WithReasoningEffort("high").
		Build()

	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, "high", os.Getenv(reasoningEffortEnv))
}

func TestCopilotEngine_Shutdown_StopsClient(t *testing.T) {
	client := &fakeCopilotClient{stopErr: errors.New("stop failed")}
	engine := buildEngine(client)

	// Stop errors are logged, not returned.
	require.NoError(t, engine.Shutdown(context.Background()))
	assert.Equal(t, 1, client.stopCalls)
}

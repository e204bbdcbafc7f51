package execution

import (
	"context"
	"log/slog"
	"strings"

	copilot "github.com/github/copilot-sdk/go"
)

const sessionFailedUnknown = "session failed with unknown error"

// responseCollector assembles one scenario's response from the session event
// stream: assistant text, tool call count, and any inline session error.
type responseCollector struct {
	outputParts []string
	toolCalls   int
	errorMsg    string
}

func newResponseCollector() *responseCollector {
	return &responseCollector{}
}

// On is passed to [copilot.Session.On] to receive events in real time.
func (c *responseCollector) On(event copilot.SessionEvent) {
	traceSessionEvent(event)

	switch event.Type {
	case copilot.AssistantMessage, copilot.AssistantMessageDelta:
		if event.Data.Content != nil {
			c.outputParts = append(c.outputParts, *event.Data.Content)
		}

	case copilot.ToolExecutionStart:
		c.toolCalls++

	case copilot.SessionError:
		if event.Data.Message == nil || *event.Data.Message == "" {
			c.errorMsg = sessionFailedUnknown
		} else {
			c.errorMsg = *event.Data.Message
		}
	}
}

// Output returns the concatenated assistant text.
func (c *responseCollector) Output() string {
	var b strings.Builder
	for _, p := range c.outputParts {
		b.WriteString(p)
	}
	return b.String()
}

// ToolCallCount returns the number of tool executions observed.
func (c *responseCollector) ToolCallCount() int {
	return c.toolCalls
}

// ErrorMessage returns the inline session error, if any.
func (c *responseCollector) ErrorMessage() string {
	return c.errorMsg
}

// traceSessionEvent mirrors the raw event stream into the debug log.
func traceSessionEvent(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{"type", event.Type}
	attrs = appendAttr(attrs, "content", event.Data.Content)
	attrs = appendAttr(attrs, "deltaContent", event.Data.DeltaContent)
	attrs = appendAttr(attrs, "toolName", event.Data.ToolName)
	attrs = appendAttr(attrs, "message", event.Data.Message)

	slog.Debug("session event", attrs...)
}

func appendAttr[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}
	return attrs
}

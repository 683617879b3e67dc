// Package llm provides the chat completion service boundary.
package llm

import (
	"context"
	"time"
)

// Message represents a chat message for the model.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool invocation requested by the model.
// Arguments are decoded into proper Go types at the provider boundary;
// the wire format (a JSON-encoded string) never leaves this package.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its decoded arguments.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from the model.
// Exactly one of Message.Content / Message.ToolCalls is meaningful:
// tool calls present means the model wants to act, otherwise the
// content is the final answer.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// Client is the model call boundary. Implementations are opaque
// request/response services; the orchestration loop never retries
// through this interface.
type Client interface {
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, temperature float64) (*ChatResponse, error)
}

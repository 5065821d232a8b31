// Package providers contains completion-service client implementations.
package providers

import (
	"context"
)

// Message represents one turn of a conversation. A user turn carries either
// text or the batched results for one tool-use turn, never both.
type Message struct {
	Role        string       `json:"role"`    // "user" or "assistant"
	Content     string       `json:"content"` // Text content (simple case)
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`   // For assistant messages requesting tool use
	ToolResults []ToolResult `json:"tool_results,omitempty"` // For user messages answering a tool-use turn
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResult represents the outcome of executing one tool call.
// Content is always text; errors are carried as text with IsError set.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Tool is a tool definition exposed to the model.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ChatRequest is a request to the completion service.
type ChatRequest struct {
	Messages  []Message `json:"messages"`
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	System    string    `json:"system,omitempty"`
	Tools     []Tool    `json:"tools,omitempty"`
}

// Stop reasons returned by the completion service.
const (
	StopReasonEndTurn = "end_turn"
	StopReasonToolUse = "tool_use"
)

// ChatResponse is a response from the completion service.
type ChatResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	StopReason   string     `json:"stop_reason,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	InputTokens  int        `json:"input_tokens,omitempty"`
	OutputTokens int        `json:"output_tokens,omitempty"`
}

// RequestsToolUse reports whether the response asks the caller to execute
// tools before the conversation can continue.
func (r *ChatResponse) RequestsToolUse() bool {
	return r.StopReason == StopReasonToolUse && len(r.ToolCalls) > 0
}

// Provider is the interface all completion-service clients implement.
type Provider interface {
	// Chat sends a conversation and returns the model's next turn.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// TestConnection validates credentials and connectivity.
	TestConnection(ctx context.Context) error

	// Name returns the provider name.
	Name() string
}

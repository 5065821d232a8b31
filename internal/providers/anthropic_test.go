package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestAnthropicClient_Defaults(t *testing.T) {
	c := NewAnthropicClient("test-key", "claude-sonnet-4-5", 0)
	if c.baseURL != anthropicAPIURL {
		t.Errorf("Expected default baseURL, got %s", c.baseURL)
	}
	if c.client.Timeout != defaultClientTimeout {
		t.Errorf("Expected default timeout, got %v", c.client.Timeout)
	}

	c2 := NewAnthropicClientWithBaseURL("test-key", "claude-sonnet-4-5", "", -1)
	if c2.baseURL != anthropicAPIURL {
		t.Errorf("Expected default baseURL for empty, got %s", c2.baseURL)
	}
}

func TestAnthropicClient_Name(t *testing.T) {
	if got := NewAnthropicClient("k", "m", 0).Name(); got != "anthropic" {
		t.Errorf("Name() = %q, want anthropic", got)
	}
}

func TestAnthropicClient_Chat_TextResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Fatalf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Fatalf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}

		var got anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if got.MaxTokens != defaultMaxTokens {
			t.Errorf("MaxTokens = %d, want default", got.MaxTokens)
		}
		if got.Model != "claude-sonnet-4-5" {
			t.Errorf("Model = %q", got.Model)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContent{{Type: "text", Text: "Hello "}, {Type: "text", Text: "there"}},
			Model:      got.Model,
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 5},
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithBaseURL("test-key", "claude-sonnet-4-5", server.URL, 0)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Hello there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.StopReason != StopReasonEndTurn {
		t.Errorf("StopReason = %q", resp.StopReason)
	}
	if resp.RequestsToolUse() {
		t.Error("RequestsToolUse() should be false for end_turn")
	}
}

func TestAnthropicClient_Chat_ToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(got.Tools) != 1 || got.Tools[0].Name != "list_frameworks" {
			t.Fatalf("tools not forwarded: %+v", got.Tools)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{
				{Type: "text", Text: "Let me look."},
				{Type: "tool_use", ID: "tu_1", Name: "list_frameworks", Input: map[string]interface{}{"organizationId": "org-1"}},
			},
			StopReason: "tool_use",
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithBaseURL("test-key", "claude-sonnet-4-5", server.URL, 0)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "List frameworks"}},
		Tools: []Tool{{
			Name:        "list_frameworks",
			Description: "List compliance frameworks",
			InputSchema: map[string]interface{}{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !resp.RequestsToolUse() {
		t.Fatal("RequestsToolUse() should be true")
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "tu_1" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Input["organizationId"] != "org-1" {
		t.Errorf("tool input not preserved: %+v", resp.ToolCalls[0].Input)
	}
}

func TestAnthropicClient_Chat_ToolResultWireFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(raw.Messages) != 3 {
			t.Fatalf("messages = %d, want 3", len(raw.Messages))
		}

		// Assistant tool call turn must be a content-block array.
		var blocks []anthropicContent
		if err := json.Unmarshal(raw.Messages[1].Content, &blocks); err != nil {
			t.Fatalf("assistant content not blocks: %v", err)
		}
		if blocks[0].Type != "tool_use" || blocks[0].ID != "tu_1" {
			t.Fatalf("assistant blocks = %+v", blocks)
		}

		// Tool result turn must be a user-role tool_result block.
		if raw.Messages[2].Role != "user" {
			t.Fatalf("tool result role = %s", raw.Messages[2].Role)
		}
		var resultBlocks []anthropicContent
		if err := json.Unmarshal(raw.Messages[2].Content, &resultBlocks); err != nil {
			t.Fatalf("result content not blocks: %v", err)
		}
		if len(resultBlocks) != 2 {
			t.Fatalf("result blocks = %d, want one per tool result", len(resultBlocks))
		}
		if resultBlocks[0].Type != "tool_result" || resultBlocks[0].ToolUseID != "tu_1" {
			t.Fatalf("result blocks = %+v", resultBlocks)
		}
		if !resultBlocks[0].IsError {
			t.Error("is_error not forwarded")
		}
		if resultBlocks[1].ToolUseID != "tu_2" {
			t.Fatalf("second result block = %+v", resultBlocks[1])
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContent{{Type: "text", Text: "ok"}},
			StopReason: "end_turn",
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithBaseURL("test-key", "claude-sonnet-4-5", server.URL, 0)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "user", Content: "list"},
			{Role: "assistant", ToolCalls: []ToolCall{
				{ID: "tu_1", Name: "list_frameworks", Input: map[string]interface{}{}},
				{ID: "tu_2", Name: "list_vendors", Input: map[string]interface{}{}},
			}},
			{Role: "user", ToolResults: []ToolResult{
				{ToolUseID: "tu_1", Content: "boom", IsError: true},
				{ToolUseID: "tu_2", Content: `{"vendors":[]}`},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestAnthropicClient_Chat_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			json.NewEncoder(w).Encode(anthropicError{Error: anthropicErrorDetail{Message: "overloaded"}})
			return
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContent{{Type: "text", Text: "recovered"}},
			StopReason: "end_turn",
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithBaseURL("test-key", "claude-sonnet-4-5", server.URL, 0)
	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("Content = %q", resp.Content)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestAnthropicClient_Chat_NonRetryableError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(anthropicError{Error: anthropicErrorDetail{Message: "bad tool schema"}})
	}))
	defer server.Close()

	client := NewAnthropicClientWithBaseURL("test-key", "claude-sonnet-4-5", server.URL, 0)
	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", calls.Load())
	}
}

func TestAnthropicClient_Chat_ContextCanceled(t *testing.T) {
	client := NewAnthropicClient("test-key", "claude-sonnet-4-5", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: "user", Content: "Hello"}},
	})
	if err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestAnthropicClient_Chat_Timeout(t *testing.T) {
	client := NewAnthropicClient("test-key", "claude-sonnet-4-5", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: "user", Content: "Hello"}},
	})
	if err == nil {
		t.Error("Expected timeout error")
	}
}

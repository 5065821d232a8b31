package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	anthropicAPIURL      = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion  = "2023-06-01"
	maxRetries           = 3
	initialBackoff       = 2 * time.Second
	defaultClientTimeout = 5 * time.Minute
	defaultMaxTokens     = 4096
)

// AnthropicClient implements Provider against the Anthropic Messages API.
type AnthropicClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicClient creates a new Anthropic API client.
// timeout is optional - pass 0 to use the default 5 minute timeout.
func NewAnthropicClient(apiKey, model string, timeout time.Duration) *AnthropicClient {
	return NewAnthropicClientWithBaseURL(apiKey, model, anthropicAPIURL, timeout)
}

// NewAnthropicClientWithBaseURL creates a client using a custom messages
// endpoint. Used by tests and proxy deployments.
func NewAnthropicClientWithBaseURL(apiKey, model, baseURL string, timeout time.Duration) *AnthropicClient {
	if baseURL == "" {
		baseURL = anthropicAPIURL
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContent
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type      string                 `json:"type"` // "text", "tool_use", "tool_result"
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`          // for tool_use
	Name      string                 `json:"name,omitempty"`        // for tool_use
	Input     map[string]interface{} `json:"input,omitempty"`       // for tool_use
	ToolUseID string                 `json:"tool_use_id,omitempty"` // for tool_result
	Content   json.RawMessage        `json:"content,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type  string               `json:"type"`
	Error anthropicErrorDetail `json:"error"`
}

type anthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// convertMessages translates provider messages into the wire format. A
// batch of tool results becomes one user message holding a tool_result
// block per result; assistant tool calls become tool_use blocks appended
// after any text content.
func convertMessages(msgs []Message) ([]anthropicMessage, error) {
	out := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		if len(m.ToolResults) > 0 {
			blocks := make([]anthropicContent, 0, len(m.ToolResults))
			for _, tr := range m.ToolResults {
				contentJSON, err := json.Marshal(tr.Content)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal tool result content for %s: %w", tr.ToolUseID, err)
				}
				blocks = append(blocks, anthropicContent{
					Type:      "tool_result",
					ToolUseID: tr.ToolUseID,
					Content:   contentJSON,
					IsError:   tr.IsError,
				})
			}
			out = append(out, anthropicMessage{Role: "user", Content: blocks})
			continue
		}

		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			blocks := make([]anthropicContent, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Input,
				})
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
			continue
		}

		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// Chat sends a chat request to the Anthropic API.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	// max_tokens is mandatory on this API
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := anthropicRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
		System:    req.System,
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = make([]anthropicTool, len(req.Tools))
		for i, t := range req.Tools {
			apiReq.Tools[i] = anthropicTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			}
		}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry loop for transient errors (429, 529, 5xx)
	var respBody []byte
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(1<<(attempt-1))
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Str("last_error", lastErr.Error()).
				Msg("Retrying completion request after transient error")

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 529 || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErrorMessage(respBody))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErrorMessage(respBody))
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var textContent string
	var toolCalls []ToolCall
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			textContent += block.Text
		case "tool_use":
			toolCalls = append(toolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}

	log.Debug().
		Int("content_blocks", len(apiResp.Content)).
		Int("text_length", len(textContent)).
		Int("tool_calls", len(toolCalls)).
		Str("stop_reason", apiResp.StopReason).
		Msg("completion response parsed")

	return &ChatResponse{
		Content:      textContent,
		Model:        apiResp.Model,
		StopReason:   apiResp.StopReason,
		ToolCalls:    toolCalls,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}

// apiErrorMessage extracts a human-readable message from an error response
// body, falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var errResp anthropicError
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(body)
}

// TestConnection validates the API key by listing models. This avoids
// depending on a specific model name which may get deprecated.
func (c *AnthropicClient) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelsEndpoint(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic test connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic test connection failed: API error (%d): %s", resp.StatusCode, apiErrorMessage(body))
	}
	return nil
}

func (c *AnthropicClient) modelsEndpoint() string {
	defaultURL := "https://api.anthropic.com/v1/models"
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return defaultURL
	}
	return u.Scheme + "://" + u.Host + "/v1/models"
}

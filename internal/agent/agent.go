// Package agent drives the LLM tool-use loop against the compliance
// backend. One Agent is one conversational session: it owns the history,
// walks the conversation state machine to a final answer, and exposes the
// high-level workflow entry points.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/compliancehq/comply-agent/internal/events"
	"github.com/compliancehq/comply-agent/internal/providers"
	"github.com/compliancehq/comply-agent/internal/tools"
)

// ErrTurnLimit is returned when the tool-use loop does not reach a final
// answer within the configured turn budget.
var ErrTurnLimit = errors.New("tool-use turn limit exceeded")

// defaultMaxTurns bounds model-call cycles per user input.
const defaultMaxTurns = 10

// ToolExecutor is what the orchestrator needs from the tool layer.
type ToolExecutor interface {
	Tools() []providers.Tool
	DeclaresParam(name, param string) bool
	Execute(ctx context.Context, name string, input map[string]interface{}) tools.Result
}

// Options configures a session.
type Options struct {
	// OrganizationID is the session's bound organization; injected into
	// tool calls that declare it but omit it. Required.
	OrganizationID string

	// Model overrides the provider's default model.
	Model string

	// MaxTokens per completion; 0 uses the provider default.
	MaxTokens int

	// MaxTurns bounds model-call cycles per user input; 0 uses the
	// default.
	MaxTurns int

	// SystemPrompt overrides the built-in domain prompt.
	SystemPrompt string

	// Events receives the structured event stream; nil logs events.
	Events events.Sink
}

// Agent is one conversational compliance session.
type Agent struct {
	provider     providers.Provider
	executor     ToolExecutor
	orgID        string
	model        string
	maxTokens    int
	maxTurns     int
	systemPrompt string
	sink         events.Sink

	mu      sync.Mutex
	history []providers.Message
	state   State
}

// New creates an agent session. Missing collaborators are construction-time
// failures; no partial agent is created.
func New(provider providers.Provider, executor ToolExecutor, opts Options) (*Agent, error) {
	if provider == nil {
		return nil, errors.New("agent: completion provider is required")
	}
	if executor == nil {
		return nil, errors.New("agent: tool executor is required")
	}
	if opts.OrganizationID == "" {
		return nil, errors.New("agent: organization id is required")
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = defaultMaxTurns
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.Events == nil {
		opts.Events = events.LogSink{Level: zerolog.DebugLevel}
	}
	return &Agent{
		provider:     provider,
		executor:     executor,
		orgID:        opts.OrganizationID,
		model:        opts.Model,
		maxTokens:    opts.MaxTokens,
		maxTurns:     opts.MaxTurns,
		systemPrompt: opts.SystemPrompt,
		sink:         opts.Events,
		state:        StateAwaitingInput,
	}, nil
}

// State returns the session's current conversation state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []providers.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]providers.Message, len(a.history))
	copy(out, a.history)
	return out
}

// ClearHistory resets the session to an empty conversation.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.state = StateAwaitingInput
}

// Chat sends one user message and runs the conversation cycle to its final
// natural-language answer.
func (a *Agent) Chat(ctx context.Context, text string) (string, error) {
	return a.run(ctx, text)
}

// RunTask frames text as a compliance task bound to the session's
// organization and runs one full cycle.
func (a *Agent) RunTask(ctx context.Context, text string) (string, error) {
	return a.run(ctx, fmt.Sprintf(
		"Complete the following compliance task for organization %s:\n\n%s",
		a.orgID, text))
}

// run walks the state machine for one user input. A completion failure
// aborts the invocation and rolls the history back to where it stood
// before this input, so the caller can retry the same text. Tool failures
// never abort: they come back as error-shaped results for the model to
// react to.
func (a *Agent) run(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", errors.New("agent: empty input")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	base := len(a.history)
	a.history = append(a.history, providers.Message{Role: "user", Content: text})
	a.state = StateModelCall

	for turn := 0; turn < a.maxTurns; turn++ {
		resp, err := a.provider.Chat(ctx, providers.ChatRequest{
			Messages:  a.history,
			Model:     a.model,
			MaxTokens: a.maxTokens,
			System:    a.systemPrompt,
			Tools:     a.executor.Tools(),
		})
		if err != nil {
			a.history = a.history[:base]
			a.state = StateAwaitingInput
			return "", fmt.Errorf("completion call failed: %w", err)
		}

		if nextState(resp) == StateFinalResponse {
			a.state = StateFinalResponse
			a.history = append(a.history, providers.Message{Role: "assistant", Content: resp.Content})
			a.sink.Emit(events.New(events.TypeTurnCompleted, map[string]interface{}{
				"turns":         turn + 1,
				"input_tokens":  resp.InputTokens,
				"output_tokens": resp.OutputTokens,
			}))
			a.state = StateAwaitingInput
			return resp.Content, nil
		}

		a.state = StateToolUse
		// The model's tool-invocation blocks are appended verbatim; the
		// injected defaults apply only to dispatch.
		a.history = append(a.history, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		a.state = StateToolExecution
		results := make([]providers.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			input := a.injectDefaults(call)
			a.sink.Emit(events.New(events.TypeToolInvoked, map[string]interface{}{
				"tool":    call.Name,
				"tool_id": call.ID,
			}))

			res := a.executor.Execute(ctx, call.Name, input)
			eventType := events.TypeToolCompleted
			if res.IsError {
				eventType = events.TypeToolFailed
			}
			a.sink.Emit(events.New(eventType, map[string]interface{}{
				"tool":    call.Name,
				"tool_id": call.ID,
			}))

			results = append(results, providers.ToolResult{
				ToolUseID: call.ID,
				Content:   res.Content,
				IsError:   res.IsError,
			})
		}
		a.history = append(a.history, providers.Message{Role: "user", ToolResults: results})
		a.state = StateModelCall
	}

	a.state = StateAwaitingInput
	log.Warn().Int("max_turns", a.maxTurns).Msg("conversation hit the turn limit")
	return "", fmt.Errorf("no final answer after %d turns: %w", a.maxTurns, ErrTurnLimit)
}

// injectDefaults fills the session's organization id into an invocation
// whose schema declares organizationId but whose input omits it. A
// model-provided value is never overwritten.
func (a *Agent) injectDefaults(call providers.ToolCall) map[string]interface{} {
	if !a.executor.DeclaresParam(call.Name, "organizationId") {
		return call.Input
	}
	if v, ok := call.Input["organizationId"].(string); ok && v != "" {
		return call.Input
	}

	input := make(map[string]interface{}, len(call.Input)+1)
	for k, v := range call.Input {
		input[k] = v
	}
	input["organizationId"] = a.orgID
	return input
}

// --- High-level workflows. Each formats an instruction and drives one
// full cycle; none adds new state. ---

// SetupComplianceFramework bootstraps a framework with its standard
// controls.
func (a *Agent) SetupComplianceFramework(ctx context.Context, frameworkID string) (string, error) {
	return a.RunTask(ctx, fmt.Sprintf(
		"Set up the %q compliance framework: create the framework if it does not exist yet, "+
			"then create its standard controls and a baseline set of measures. "+
			"Report everything you created.", frameworkID))
}

// AssessVendorSecurity registers a vendor and triggers its security
// assessment.
func (a *Agent) AssessVendorSecurity(ctx context.Context, name, url string) (string, error) {
	return a.RunTask(ctx, fmt.Sprintf(
		"Assess the security posture of vendor %q (website: %s): create the vendor record "+
			"if it does not exist, trigger a security assessment, and summarize the outcome.",
		name, url))
}

// GenerateRiskAssessment reviews the risk register in the given context.
func (a *Agent) GenerateRiskAssessment(ctx context.Context, assessmentContext string) (string, error) {
	return a.RunTask(ctx, fmt.Sprintf(
		"Generate a risk assessment. Context: %s. Review the existing risk register first, "+
			"then create any missing risks with appropriate likelihood, impact and treatment.",
		assessmentContext))
}

// CreateComplianceDocument drafts and stores a policy document.
func (a *Agent) CreateComplianceDocument(ctx context.Context, title, docType, requirements string) (string, error) {
	return a.RunTask(ctx, fmt.Sprintf(
		"Create a compliance document titled %q of type %s. Requirements: %s. "+
			"Draft the complete document content yourself before creating it.",
		title, docType, requirements))
}

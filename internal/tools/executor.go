// Package tools owns the fixed catalog of operations the model may invoke
// and dispatches invocations against the compliance API. Every execution
// yields a text result; errors are serialized into the result rather than
// raised, so the conversation loop always continues.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/compliancehq/comply-agent/internal/comply"
)

// ComplianceAPI is the slice of the compliance client the tool handlers
// call. *comply.Client satisfies it; tests substitute fakes.
type ComplianceAPI interface {
	ListFrameworks(ctx context.Context, organizationID string, first int) (*comply.Connection[comply.Framework], error)
	ListControls(ctx context.Context, frameworkID string, first int) (*comply.Connection[comply.Control], error)
	ListMeasures(ctx context.Context, organizationID string, first int) (*comply.Connection[comply.Measure], error)
	ListRisks(ctx context.Context, organizationID string, first int) (*comply.Connection[comply.Risk], error)
	ListTasks(ctx context.Context, organizationID string, first int) (*comply.Connection[comply.Task], error)
	ListDocuments(ctx context.Context, organizationID string, first int) (*comply.Connection[comply.Document], error)
	ListVendors(ctx context.Context, organizationID string, first int) (*comply.Connection[comply.Vendor], error)
	CreateFramework(ctx context.Context, input comply.CreateFrameworkInput) (*comply.Framework, error)
	CreateControl(ctx context.Context, input comply.CreateControlInput) (*comply.Control, error)
	CreateMeasure(ctx context.Context, input comply.CreateMeasureInput) (*comply.Measure, error)
	CreateRisk(ctx context.Context, input comply.CreateRiskInput) (*comply.Risk, error)
	CreateTask(ctx context.Context, input comply.CreateTaskInput) (*comply.Task, error)
	CreateDocument(ctx context.Context, input comply.CreateDocumentInput) (*comply.Document, error)
	CreateVendor(ctx context.Context, input comply.CreateVendorInput) (*comply.Vendor, error)
	TriggerVendorAssessment(ctx context.Context, vendorID string) (string, error)
	GetNode(ctx context.Context, id string) (*comply.Node, error)
	FirstProfileID(ctx context.Context, organizationID string) (string, error)
}

// UnknownToolError is returned when an invocation names no registered tool.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Handler executes one tool invocation against the API.
type Handler func(ctx context.Context, api ComplianceAPI, input map[string]interface{}) (interface{}, error)

// Definition pairs a tool's schema with its handler.
type Definition struct {
	Tool    Tool
	Handler Handler
}

// Result is the outcome of one invocation, always text. Errors are
// error-shaped results, never panics.
type Result struct {
	Content string
	IsError bool
}

// logTruncateAt bounds result payloads in the debug log. The full content
// is always returned to the conversation.
const logTruncateAt = 500

// Executor dispatches tool invocations by exact name match.
type Executor struct {
	api    ComplianceAPI
	defs   []Definition
	byName map[string]Definition
}

// NewExecutor creates an executor over the fixed catalog.
func NewExecutor(api ComplianceAPI) *Executor {
	defs := catalog()
	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byName[d.Tool.Name] = d
	}
	return &Executor{api: api, defs: defs, byName: byName}
}

// Tools returns the catalog in declaration order.
func (e *Executor) Tools() []Tool {
	out := make([]Tool, len(e.defs))
	for i, d := range e.defs {
		out[i] = d.Tool
	}
	return out
}

// DeclaresParam reports whether the named tool's input schema declares the
// given parameter. Used by the orchestrator's default-injection policy.
func (e *Executor) DeclaresParam(name, param string) bool {
	d, ok := e.byName[name]
	if !ok {
		return false
	}
	props, ok := d.Tool.InputSchema["properties"].(map[string]interface{})
	if !ok {
		return false
	}
	_, declared := props[param]
	return declared
}

// Execute runs one invocation. The result is always produced: handler
// errors and unknown tools come back as error-shaped results so the
// conversation can continue.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]interface{}) Result {
	d, ok := e.byName[name]
	if !ok {
		err := &UnknownToolError{Name: name}
		log.Warn().Str("tool", name).Msg("invocation names no registered tool")
		return Result{Content: "Error: " + err.Error(), IsError: true}
	}

	payload, err := d.Handler(ctx, e.api, input)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool execution failed")
		return Result{Content: "Error: " + err.Error(), IsError: true}
	}

	content, err := serialize(payload)
	if err != nil {
		log.Error().Err(err).Str("tool", name).Msg("tool result serialization failed")
		return Result{Content: "Error: " + err.Error(), IsError: true}
	}

	log.Debug().Str("tool", name).Str("result", truncate(content, logTruncateAt)).
		Msg("tool executed")
	return Result{Content: content}
}

func serialize(payload interface{}) (string, error) {
	if s, ok := payload.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serialize tool result: %w", err)
	}
	return string(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// --- argument helpers ---
// Handlers trust the schema-conformant input but still fail closed with an
// error result instead of crashing on a missing required field.

func stringArg(input map[string]interface{}, key string) (string, error) {
	v, ok := input[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

func optStringArg(input map[string]interface{}, key string) string {
	v, _ := input[key].(string)
	return v
}

func intArg(input map[string]interface{}, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

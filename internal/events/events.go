// Package events defines the structured event stream emitted by the agent
// and the risk engine. Callers subscribe a Sink instead of parsing log
// output.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Type identifies an event kind.
type Type string

const (
	TypeToolInvoked   Type = "tool_invoked"
	TypeToolCompleted Type = "tool_completed"
	TypeToolFailed    Type = "tool_failed"
	TypeTurnCompleted Type = "turn_completed"
	TypeRiskCreated   Type = "risk_created"
	TypeRiskSkipped   Type = "risk_skipped"
	TypeTaskCreated   Type = "task_created"
	TypeTaskFailed    Type = "task_failed"
)

// Event is one structured occurrence. Fields carry event-specific detail
// (tool name, control id, error text).
type Event struct {
	ID     string                 `json:"id"`
	Type   Type                   `json:"type"`
	Time   time.Time              `json:"time"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// New builds an event with a fresh id and timestamp.
func New(t Type, fields map[string]interface{}) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   t,
		Time:   time.Now().UTC(),
		Fields: fields,
	}
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Emit(Event)
}

// LogSink writes events to the global zerolog logger. It is the default
// sink when callers do not provide their own.
type LogSink struct {
	Level zerolog.Level
}

// Emit implements Sink.
func (s LogSink) Emit(e Event) {
	evt := log.WithLevel(s.Level).
		Str("event", string(e.Type)).
		Str("event_id", e.ID)
	for k, v := range e.Fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg("event emitted")
}

// NopSink drops all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

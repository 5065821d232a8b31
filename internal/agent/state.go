package agent

import "github.com/compliancehq/comply-agent/internal/providers"

// State is the orchestrator's position in the conversation cycle:
//
//	AWAITING_USER_INPUT -> MODEL_CALL
//	  -> {TOOL_USE_REQUESTED -> TOOL_EXECUTION -> MODEL_CALL}*
//	  -> FINAL_RESPONSE -> AWAITING_USER_INPUT
type State string

const (
	StateAwaitingInput State = "AWAITING_USER_INPUT"
	StateModelCall     State = "MODEL_CALL"
	StateToolUse       State = "TOOL_USE_REQUESTED"
	StateToolExecution State = "TOOL_EXECUTION"
	StateFinalResponse State = "FINAL_RESPONSE"
)

// nextState decides continue-vs-terminate purely from the response shape.
func nextState(resp *providers.ChatResponse) State {
	if resp.RequestsToolUse() {
		return StateToolUse
	}
	return StateFinalResponse
}

package agent

// EventType identifies a streamed agent event
type EventType string

const (
	// EventThinking is emitted once, before the first model call
	EventThinking EventType = "thinking"
	// EventText carries an incremental piece of the assistant's reply
	EventText EventType = "chunk"
	// EventToolUse announces a tool invocation with its parsed input
	EventToolUse EventType = "tool_use"
	// EventDone is the successful terminal event
	EventDone EventType = "done"
	// EventError is the failure terminal event
	EventError EventType = "error"
)

// Stop reasons reported on EventDone
const (
	StopEndTurn        = "end_turn"
	StopIterationLimit = "iteration_limit"
)

// Event is one item in the agent's output stream. Exactly one terminal
// event (Done or Error) closes every run.
type Event struct {
	Type      EventType
	Content   string
	ToolName  string
	ToolInput map[string]interface{}
	Reason    string
	Err       error
}

// Terminal reports whether the event ends the run
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

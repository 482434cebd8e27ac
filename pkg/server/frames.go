package server

// Frame is one event relayed to the chat client. Exactly one terminal
// frame (done or error) ends every stream.
type Frame struct {
	Type             string   `json:"type"`
	Content          string   `json:"content,omitempty"`
	Tool             string   `json:"tool,omitempty"`
	QueriesRemaining *int     `json:"queriesRemaining,omitempty"`
	ToolsUsed        []string `json:"toolsUsed,omitempty"`
}

// Frame types
const (
	FrameThinking = "thinking"
	FrameChunk    = "chunk"
	FrameToolUse  = "tool_use"
	FrameDone     = "done"
	FrameError    = "error"
)

// errorContent is the fixed apology shown when a turn fails mid-stream
const errorContent = "Sorry, I encountered an error. Please try again."

// quotaExceededPayload is the 403 body returned when a session is out of
// queries
type quotaExceededPayload struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	QueriesUsed int    `json:"queriesUsed"`
	MaxQueries  int    `json:"maxQueries"`
}

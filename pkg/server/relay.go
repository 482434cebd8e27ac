package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/trustvibe/tea/pkg/agent"
)

// chatRequest is the body of POST /api/tea/chat
type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// handleChat runs one agent turn and relays its events as SSE frames
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	requestID, _ := gonanoid.New()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Missing query or sessionId")
		return
	}
	if req.Query == "" || req.SessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing query or sessionId")
		return
	}

	logger = logger.With().Str("session_id", req.SessionID).Logger()
	logger.Info().Str("query", req.Query).Msg("Chat request received")

	ctx := r.Context()

	ok, err := s.gate.CanProceed(ctx, req.SessionID)
	if err != nil {
		logger.Error().Err(err).Msg("Quota check failed")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		session, err := s.gate.EnsureSession(ctx, req.SessionID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load session")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		logger.Info().Int("query_count", session.QueryCount).Msg("Query limit reached")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(quotaExceededPayload{
			Error:       "QUERY_LIMIT_REACHED",
			Message:     fmt.Sprintf("You've used your %d free queries. Sign up for unlimited access!", s.gate.Limit()),
			QueriesUsed: session.QueryCount,
			MaxQueries:  s.gate.Limit(),
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	relay := &frameWriter{w: w, flusher: flusher, logger: logger}

	var toolsUsed []string
	thinkingSent := false

	for event := range s.runner.Stream(ctx, req.Query) {
		switch event.Type {
		case agent.EventThinking:
			// Only the very first thinking indicator goes out
			if !thinkingSent {
				thinkingSent = true
				relay.write(Frame{Type: FrameThinking})
			}

		case agent.EventText:
			relay.write(Frame{Type: FrameChunk, Content: event.Content})

		case agent.EventToolUse:
			logger.Info().
				Str("tool", event.ToolName).
				Interface("input", event.ToolInput).
				Msg("Tool used")
			toolsUsed = append(toolsUsed, event.ToolName)
			relay.write(Frame{Type: FrameToolUse, Tool: event.ToolName})

		case agent.EventDone:
			// The turn completed, so it consumes quota regardless of
			// whether the model finished or hit the iteration cap.
			if _, err := s.gate.RecordCompletion(ctx, req.SessionID); err != nil {
				logger.Error().Err(err).Msg("Failed to record completion")
			}
			remaining, err := s.gate.Remaining(ctx, req.SessionID)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to read remaining queries")
			}

			logger.Info().
				Strs("tools_used", toolsUsed).
				Int("queries_remaining", remaining).
				Str("reason", event.Reason).
				Msg("Chat request complete")

			relay.write(Frame{
				Type:             FrameDone,
				QueriesRemaining: &remaining,
				ToolsUsed:        toolsUsed,
			})
			return

		case agent.EventError:
			// Failed turns do not consume quota
			logger.Error().Err(event.Err).Msg("Agent turn failed")
			relay.write(Frame{Type: FrameError, Content: errorContent})
			return
		}
	}
}

// frameWriter serializes frames as line-delimited SSE data events
type frameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  zerolog.Logger
}

func (fw *frameWriter) write(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		fw.logger.Error().Err(err).Msg("Failed to encode frame")
		return
	}

	if _, err := fmt.Fprintf(fw.w, "data: %s\n\n", data); err != nil {
		fw.logger.Error().Err(err).Msg("Failed to write frame")
		return
	}
	fw.flusher.Flush()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"

	"github.com/trustvibe/tea/pkg/toolexecutor"
)

// MessagesClient captures the subset of the Anthropic SDK client used by
// the controller. It is satisfied by *anthropic.MessageService so callers
// can pass either a real client or a mock in tests.
type MessagesClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
	NewStreaming(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// Controller drives the bounded tool-use conversation loop
type Controller struct {
	messages      MessagesClient
	executor      *toolexecutor.ToolExecutor
	model         string
	maxTokens     int64
	maxIterations int
	logger        zerolog.Logger
}

// Config holds controller configuration
type Config struct {
	Messages      MessagesClient
	Executor      *toolexecutor.ToolExecutor
	Model         string
	MaxTokens     int64
	MaxIterations int
	Logger        zerolog.Logger
}

// NewController creates an agent controller
func NewController(cfg Config) (*Controller, error) {
	if cfg.Messages == nil {
		return nil, fmt.Errorf("messages client is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model identifier is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}

	return &Controller{
		messages:      cfg.Messages,
		executor:      cfg.Executor,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxIterations: cfg.MaxIterations,
		logger:        cfg.Logger,
	}, nil
}

// Stream runs one agent turn for the user query. The returned channel is
// closed after exactly one terminal event; cancel the context to abort.
func (c *Controller) Stream(ctx context.Context, query string) <-chan Event {
	events := make(chan Event, 16)
	go c.run(ctx, query, events)
	return events
}

// toolCall is one reassembled tool invocation from a model stream
type toolCall struct {
	id        string
	name      string
	fragments []string
}

// finalInput joins the accumulated JSON fragments; an empty accumulation
// means an argument-free call, which the API represents as {}
func (tc *toolCall) finalInput() string {
	joined := strings.Join(tc.fragments, "")
	if strings.TrimSpace(joined) == "" {
		return "{}"
	}
	return joined
}

// turnOutcome is what one model stream produced
type turnOutcome struct {
	text       string
	toolCalls  []*toolCall
	stopReason string
}

func (c *Controller) run(ctx context.Context, query string, events chan<- Event) {
	defer close(events)

	if !c.emit(ctx, events, Event{Type: EventThinking}) {
		return
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
	}
	tools := c.executor.AnthropicTools()

	for iteration := 1; iteration <= c.maxIterations; iteration++ {
		c.logger.Debug().Int("iteration", iteration).Msg("Starting model call")

		outcome, err := c.streamTurn(ctx, messages, tools, events)
		if err != nil {
			c.logger.Error().Err(err).Int("iteration", iteration).Msg("Model stream failed")
			c.emit(ctx, events, Event{Type: EventError, Err: err})
			return
		}

		if len(outcome.toolCalls) == 0 {
			c.logger.Debug().
				Int("iteration", iteration).
				Str("stop_reason", outcome.stopReason).
				Msg("Turn completed")
			c.emit(ctx, events, Event{Type: EventDone, Reason: StopEndTurn})
			return
		}

		assistantBlocks, resultBlocks := c.executeTools(ctx, outcome, events)

		blocks := []anthropic.ContentBlockParamUnion{}
		if outcome.text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(outcome.text))
		}
		blocks = append(blocks, assistantBlocks...)

		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: blocks,
		})
		messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
	}

	c.logger.Warn().Int("max_iterations", c.maxIterations).Msg("Iteration cap reached")
	c.emit(ctx, events, Event{Type: EventDone, Reason: StopIterationLimit})
}

// streamTurn issues one streaming model call, forwarding text deltas as
// they arrive and reassembling tool-call input from its JSON fragments
func (c *Controller) streamTurn(ctx context.Context, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam, events chan<- Event) (*turnOutcome, error) {
	stream := c.messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: TeaSystemPrompt}},
		Messages:  messages,
		Tools:     tools,
	})
	defer stream.Close()

	var text strings.Builder
	buffers := make(map[int]*toolCall)
	var order []*toolCall
	outcome := &turnOutcome{}

	for stream.Next() {
		event := stream.Current()

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				tc := &toolCall{id: block.ID, name: block.Name}
				buffers[int(ev.Index)] = tc
				order = append(order, tc)
			}

		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text == "" {
					continue
				}
				text.WriteString(delta.Text)
				if !c.emit(ctx, events, Event{Type: EventText, Content: delta.Text}) {
					return nil, ctx.Err()
				}
			case anthropic.InputJSONDelta:
				if delta.PartialJSON == "" {
					continue
				}
				if tc := buffers[int(ev.Index)]; tc != nil {
					tc.fragments = append(tc.fragments, delta.PartialJSON)
				}
			}

		case anthropic.MessageDeltaEvent:
			outcome.stopReason = string(ev.Delta.StopReason)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("model stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome.text = text.String()
	outcome.toolCalls = order
	return outcome, nil
}

// executeTools runs each requested tool in order. A failing call is
// converted into an error tool result tagged with its call id; it never
// stops the other calls or the turn.
func (c *Controller) executeTools(ctx context.Context, outcome *turnOutcome, events chan<- Event) ([]anthropic.ContentBlockParamUnion, []anthropic.ContentBlockParamUnion) {
	var assistantBlocks []anthropic.ContentBlockParamUnion
	var resultBlocks []anthropic.ContentBlockParamUnion

	for _, tc := range outcome.toolCalls {
		// An unparseable buffer degrades to an empty input object; the
		// executor's schema validation reports the problem back to the
		// model as an error result.
		var input map[string]interface{}
		if err := json.Unmarshal([]byte(tc.finalInput()), &input); err != nil {
			c.logger.Warn().Err(err).Str("tool", tc.name).Str("id", tc.id).Msg("Failed to parse tool input")
			input = nil
		}
		if input == nil {
			input = map[string]interface{}{}
		}

		assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(tc.id, input, tc.name))

		if !c.emit(ctx, events, Event{Type: EventToolUse, ToolName: tc.name, ToolInput: input}) {
			return assistantBlocks, resultBlocks
		}

		result := c.executor.Execute(ctx, tc.name, input)
		resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(tc.id, renderToolResult(result), !result.Success))
	}

	return assistantBlocks, resultBlocks
}

// renderToolResult serializes an execution result for the model
func renderToolResult(result toolexecutor.ToolResult) string {
	if !result.Success {
		data, err := json.Marshal(map[string]string{"error": result.Error})
		if err != nil {
			return `{"error": "Tool execution failed"}`
		}
		return string(data)
	}

	if s, ok := result.Output.(string); ok {
		return s
	}

	data, err := json.Marshal(result.Output)
	if err != nil {
		return `{"error": "Tool execution failed"}`
	}
	return string(data)
}

func (c *Controller) emit(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

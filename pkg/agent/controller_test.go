package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustvibe/tea/pkg/toolexecutor"
)

// scriptDecoder feeds a fixed sequence of events to the ssestream.Stream
type scriptDecoder struct {
	events []ssestream.Event
	i      int
	err    error
}

func (d *scriptDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *scriptDecoder) Next() bool {
	if d.err != nil {
		return false
	}
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *scriptDecoder) Close() error { return nil }
func (d *scriptDecoder) Err() error   { return d.err }

func sseEvent(typ, data string) ssestream.Event {
	return ssestream.Event{Type: typ, Data: json.RawMessage(data)}
}

func textTurn(chunks ...string) []ssestream.Event {
	events := []ssestream.Event{
		sseEvent("message_start", `{"type":"message_start","message":{}}`),
	}
	for _, chunk := range chunks {
		data, _ := json.Marshal(chunk)
		events = append(events, sseEvent("content_block_delta",
			fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%s}}`, data)))
	}
	events = append(events,
		sseEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}`),
		sseEvent("message_stop", `{"type":"message_stop"}`),
	)
	return events
}

func toolStart(index int, id, name string) ssestream.Event {
	return sseEvent("content_block_start",
		fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":"tool_use","id":%q,"name":%q,"input":{}}}`, index, id, name))
}

func inputFragment(index int, fragment string) ssestream.Event {
	data, _ := json.Marshal(fragment)
	return sseEvent("content_block_delta",
		fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"input_json_delta","partial_json":%s}}`, index, data))
}

func toolTurn(id, name string, fragments ...string) []ssestream.Event {
	events := []ssestream.Event{
		sseEvent("message_start", `{"type":"message_start","message":{}}`),
		toolStart(0, id, name),
	}
	for _, fragment := range fragments {
		events = append(events, inputFragment(0, fragment))
	}
	events = append(events,
		sseEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		sseEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":5}}`),
		sseEvent("message_stop", `{"type":"message_stop"}`),
	)
	return events
}

// fakeMessages scripts the streams returned by successive model calls.
// When the script runs out, the last entry repeats.
type fakeMessages struct {
	script [][]ssestream.Event
	errs   []error
	calls  int
	params []anthropic.MessageNewParams
}

func (f *fakeMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeMessages) NewStreaming(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropic.MessageStreamEventUnion] {
	f.params = append(f.params, body)

	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}

	dec := &scriptDecoder{events: f.script[i], err: err}
	return ssestream.NewStream[anthropic.MessageStreamEventUnion](dec, nil)
}

type recordedCall struct {
	name  string
	input map[string]interface{}
}

func setupController(t *testing.T, messages MessagesClient, maxIterations int, calls *[]recordedCall, toolErr error) *Controller {
	t.Helper()

	executor := toolexecutor.New()
	require.NoError(t, executor.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "search_web",
		Description: "Search the web",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "query", Type: "string", Description: "Query", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			if calls != nil {
				*calls = append(*calls, recordedCall{name: "search_web", input: params})
			}
			if toolErr != nil {
				return nil, toolErr
			}
			return `{"found":true}`, nil
		},
	}))

	controller, err := NewController(Config{
		Messages:      messages,
		Executor:      executor,
		Model:         "claude-sonnet-4-20250514",
		MaxTokens:     2048,
		MaxIterations: maxIterations,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	return controller
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	for event := range events {
		out = append(out, event)
	}
	return out
}

func terminalCount(events []Event) int {
	n := 0
	for _, e := range events {
		if e.Terminal() {
			n++
		}
	}
	return n
}

func TestNewController(t *testing.T) {
	t.Run("requires collaborators", func(t *testing.T) {
		_, err := NewController(Config{Executor: toolexecutor.New(), Model: "m"})
		assert.Error(t, err)

		_, err = NewController(Config{Messages: &fakeMessages{}, Model: "m"})
		assert.Error(t, err)

		_, err = NewController(Config{Messages: &fakeMessages{}, Executor: toolexecutor.New()})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := NewController(Config{Messages: &fakeMessages{}, Executor: toolexecutor.New(), Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, int64(2048), c.maxTokens)
		assert.Equal(t, 10, c.maxIterations)
	})
}

func TestStreamPlainText(t *testing.T) {
	messages := &fakeMessages{script: [][]ssestream.Event{textTurn("hello", " there")}}
	controller := setupController(t, messages, 10, nil, nil)

	events := collect(t, controller.Stream(context.Background(), "hi"))

	require.NotEmpty(t, events)
	assert.Equal(t, EventThinking, events[0].Type)

	var text string
	for _, e := range events {
		if e.Type == EventText {
			text += e.Content
		}
	}
	assert.Equal(t, "hello there", text)

	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, StopEndTurn, last.Reason)
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, 1, messages.calls)
}

func TestStreamLogsStopReason(t *testing.T) {
	var logs bytes.Buffer
	messages := &fakeMessages{script: [][]ssestream.Event{textTurn("hi")}}

	controller, err := NewController(Config{
		Messages: messages,
		Executor: toolexecutor.New(),
		Model:    "claude-sonnet-4-20250514",
		Logger:   zerolog.New(&logs),
	})
	require.NoError(t, err)

	collect(t, controller.Stream(context.Background(), "q"))

	assert.Contains(t, logs.String(), `"stop_reason":"end_turn"`)
}

func TestStreamToolCall(t *testing.T) {
	t.Run("reassembles fragmented tool input", func(t *testing.T) {
		messages := &fakeMessages{script: [][]ssestream.Event{
			toolTurn("toolu_1", "search_web", `{"que`, `ry":"best therapi`, `sts"}`),
			textTurn("ok so here's the tea"),
		}}
		var calls []recordedCall
		controller := setupController(t, messages, 10, &calls, nil)

		events := collect(t, controller.Stream(context.Background(), "therapists?"))

		var toolUse *Event
		for i := range events {
			if events[i].Type == EventToolUse {
				toolUse = &events[i]
				break
			}
		}
		require.NotNil(t, toolUse)
		assert.Equal(t, "search_web", toolUse.ToolName)
		assert.Equal(t, map[string]interface{}{"query": "best therapists"}, toolUse.ToolInput)

		require.Len(t, calls, 1)
		assert.Equal(t, "best therapists", calls[0].input["query"])

		last := events[len(events)-1]
		assert.Equal(t, EventDone, last.Type)
		assert.Equal(t, 1, terminalCount(events))
		assert.Equal(t, 2, messages.calls)
	})

	t.Run("second call carries the tool transcript", func(t *testing.T) {
		messages := &fakeMessages{script: [][]ssestream.Event{
			toolTurn("toolu_1", "search_web", `{"query":"x"}`),
			textTurn("done"),
		}}
		controller := setupController(t, messages, 10, nil, nil)

		collect(t, controller.Stream(context.Background(), "q"))

		require.Len(t, messages.params, 2)
		// user query, assistant tool_use, user tool_result
		assert.Len(t, messages.params[1].Messages, 3)
	})

	t.Run("unparseable input degrades to an empty object", func(t *testing.T) {
		messages := &fakeMessages{script: [][]ssestream.Event{
			toolTurn("toolu_1", "search_web", `{"query": trunc`),
			textTurn("done"),
		}}
		controller := setupController(t, messages, 10, nil, nil)

		events := collect(t, controller.Stream(context.Background(), "q"))

		var toolUse *Event
		for i := range events {
			if events[i].Type == EventToolUse {
				toolUse = &events[i]
				break
			}
		}
		require.NotNil(t, toolUse)
		assert.Empty(t, toolUse.ToolInput)

		// The bad call is answered with an error result; the turn goes on.
		last := events[len(events)-1]
		assert.Equal(t, EventDone, last.Type)
		assert.Equal(t, 1, terminalCount(events))
		assert.Equal(t, 2, messages.calls)
	})

	t.Run("empty input parses as no arguments", func(t *testing.T) {
		messages := &fakeMessages{script: [][]ssestream.Event{
			toolTurn("toolu_1", "search_web"),
			textTurn("done"),
		}}
		controller := setupController(t, messages, 10, nil, nil)

		events := collect(t, controller.Stream(context.Background(), "q"))

		var toolUse *Event
		for i := range events {
			if events[i].Type == EventToolUse {
				toolUse = &events[i]
				break
			}
		}
		require.NotNil(t, toolUse)
		assert.Empty(t, toolUse.ToolInput)
		assert.Equal(t, 1, terminalCount(events))
	})
}

func TestStreamToolFailureIsolation(t *testing.T) {
	messages := &fakeMessages{script: [][]ssestream.Event{
		toolTurn("toolu_1", "search_web", `{"query":"x"}`),
		textTurn("no tea on that yet"),
	}}
	controller := setupController(t, messages, 10, nil, fmt.Errorf("backend down"))

	events := collect(t, controller.Stream(context.Background(), "q"))

	// The failing tool must not end the run; the model gets the error
	// result and answers normally.
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, StopEndTurn, last.Reason)
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, 2, messages.calls)
}

func TestStreamTwoToolCallsOneFails(t *testing.T) {
	// One sub-turn opens two tool blocks whose input fragments arrive
	// interleaved; the first tool's backend fails.
	turn := []ssestream.Event{
		sseEvent("message_start", `{"type":"message_start","message":{}}`),
		toolStart(0, "toolu_a", "search_trustvibe_reviews"),
		toolStart(1, "toolu_b", "search_web"),
		inputFragment(0, `{"que`),
		inputFragment(1, `{"qu`),
		inputFragment(0, `ry":"dentists"}`),
		inputFragment(1, `ery":"clinics"}`),
		sseEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		sseEvent("content_block_stop", `{"type":"content_block_stop","index":1}`),
		sseEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":5}}`),
		sseEvent("message_stop", `{"type":"message_stop"}`),
	}
	messages := &fakeMessages{script: [][]ssestream.Event{turn, textTurn("here's the tea")}}

	var calls []recordedCall
	executor := toolexecutor.New()
	queryParam := []toolexecutor.ToolParameter{
		{Name: "query", Type: "string", Description: "Query", Required: true},
	}
	require.NoError(t, executor.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "search_trustvibe_reviews",
		Description: "Search reviews",
		Parameters:  queryParam,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			calls = append(calls, recordedCall{name: "search_trustvibe_reviews", input: params})
			return nil, fmt.Errorf("backend down")
		},
	}))
	require.NoError(t, executor.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "search_web",
		Description: "Search the web",
		Parameters:  queryParam,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			calls = append(calls, recordedCall{name: "search_web", input: params})
			return `{"found":true}`, nil
		},
	}))

	controller, err := NewController(Config{
		Messages: messages,
		Executor: executor,
		Model:    "claude-sonnet-4-20250514",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	events := collect(t, controller.Stream(context.Background(), "dentists?"))

	// Each block's fragments are reassembled independently of the other's.
	var toolUses []Event
	for _, e := range events {
		if e.Type == EventToolUse {
			toolUses = append(toolUses, e)
		}
	}
	require.Len(t, toolUses, 2)
	assert.Equal(t, "search_trustvibe_reviews", toolUses[0].ToolName)
	assert.Equal(t, map[string]interface{}{"query": "dentists"}, toolUses[0].ToolInput)
	assert.Equal(t, "search_web", toolUses[1].ToolName)
	assert.Equal(t, map[string]interface{}{"query": "clinics"}, toolUses[1].ToolInput)

	// The failing call must not keep its sibling from running.
	require.Len(t, calls, 2)
	assert.Equal(t, "search_trustvibe_reviews", calls[0].name)
	assert.Equal(t, "search_web", calls[1].name)
	assert.Equal(t, "clinics", calls[1].input["query"])

	// The follow-up call carries one error-tagged result and one clean one.
	require.Len(t, messages.params, 2)
	require.Len(t, messages.params[1].Messages, 3)
	results := messages.params[1].Messages[2].Content
	require.Len(t, results, 2)
	require.NotNil(t, results[0].OfToolResult)
	assert.Equal(t, "toolu_a", results[0].OfToolResult.ToolUseID)
	assert.True(t, results[0].OfToolResult.IsError.Value)
	require.NotNil(t, results[1].OfToolResult)
	assert.Equal(t, "toolu_b", results[1].OfToolResult.ToolUseID)
	assert.False(t, results[1].OfToolResult.IsError.Value)

	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, StopEndTurn, last.Reason)
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, 2, messages.calls)
}

func TestStreamIterationCap(t *testing.T) {
	// The model keeps asking for tools forever; the loop must stop.
	messages := &fakeMessages{script: [][]ssestream.Event{
		toolTurn("toolu_1", "search_web", `{"query":"x"}`),
	}}
	controller := setupController(t, messages, 3, nil, nil)

	events := collect(t, controller.Stream(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, StopIterationLimit, last.Reason)
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, 3, messages.calls)
}

func TestStreamModelError(t *testing.T) {
	messages := &fakeMessages{
		script: [][]ssestream.Event{textTurn("partial")},
		errs:   []error{fmt.Errorf("overloaded")},
	}
	controller := setupController(t, messages, 10, nil, nil)

	events := collect(t, controller.Stream(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Error(t, last.Err)
	assert.Equal(t, 1, terminalCount(events))
}

func TestStreamThinkingComesFirst(t *testing.T) {
	messages := &fakeMessages{script: [][]ssestream.Event{textTurn("hi")}}
	controller := setupController(t, messages, 10, nil, nil)

	events := collect(t, controller.Stream(context.Background(), "q"))

	require.NotEmpty(t, events)
	assert.Equal(t, EventThinking, events[0].Type)
	for _, e := range events[1:] {
		assert.NotEqual(t, EventThinking, e.Type)
	}
}

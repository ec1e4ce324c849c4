package agentloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tibagni/cli-assistant/unifiedllm"
)

// stubGateway replays scripted messages. Once the script is exhausted the
// last message is repeated.
type stubGateway struct {
	mu       sync.Mutex
	script   []unifiedllm.Message
	err      error
	requests []unifiedllm.Request
}

func newStubGateway(script ...unifiedllm.Message) *stubGateway {
	return &stubGateway{script: script}
}

func (g *stubGateway) Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	i := len(g.requests) - 1
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	return &unifiedllm.Response{
		ID:      "resp",
		Message: g.script[i],
		Usage:   unifiedllm.Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3},
	}, nil
}

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func toolCallMessage(calls ...unifiedllm.ToolCall) unifiedllm.Message {
	return unifiedllm.Message{Role: unifiedllm.RoleAssistant, ToolCalls: calls}
}

func constTool(name, out string) Tool {
	return Tool{
		Name:        name,
		Description: "Returns a constant.",
		Handler: func(ctx context.Context, args Args) (any, error) {
			return out, nil
		},
	}
}

func newTestAgent(t *testing.T, gw Gateway, opts ...EnvironmentOption) *Agent {
	t.Helper()
	env, err := NewEnvironment(opts...)
	require.NoError(t, err)
	agent, err := NewAgent(gw, env, Config{Model: "test:model", SystemPrompt: "be brief"})
	require.NoError(t, err)
	return agent
}

func roles(msgs []unifiedllm.Message) []unifiedllm.Role {
	out := make([]unifiedllm.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestNewAgentValidation(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)
	gw := newStubGateway(unifiedllm.AssistantMessage("hi"))

	_, err = NewAgent(nil, env, Config{Model: "m"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewAgent(gw, nil, Config{Model: "m"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewAgent(gw, env, Config{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	agent, err := NewAgent(gw, env, Config{Model: "m"})
	require.NoError(t, err)
	assert.NotEmpty(t, agent.ID())
	assert.Equal(t, StateDone, agent.State())
}

func TestRunRejectsNonPositiveBudget(t *testing.T) {
	gw := newStubGateway(unifiedllm.AssistantMessage("hi"))
	agent := newTestAgent(t, gw)

	for _, budget := range []int{0, -1} {
		_, err := agent.Run(context.Background(), "task", budget)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	}
	assert.Zero(t, gw.calls())
	assert.Len(t, agent.Transcript(), 1, "only the system message")
}

func TestRunSingleTurn(t *testing.T) {
	answer := unifiedllm.AssistantMessage("42")
	gw := newStubGateway(answer)
	agent := newTestAgent(t, gw)

	result, err := agent.Run(context.Background(), "question", 1)
	require.NoError(t, err)

	assert.Equal(t, answer, result.Message)
	assert.False(t, result.Interrupted)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolCalls())
	assert.NotNil(t, result.ToolCalls())

	transcript := agent.Transcript()
	assert.Equal(t, []unifiedllm.Role{unifiedllm.RoleSystem, unifiedllm.RoleUser, unifiedllm.RoleAssistant}, roles(transcript))
	assert.Equal(t, "question", transcript[1].Content)
	assert.Equal(t, answer, transcript[2])
	assert.Equal(t, StateDone, agent.State())
}

func TestRunWithoutSystemPrompt(t *testing.T) {
	gw := newStubGateway(unifiedllm.AssistantMessage("ok"))
	env, err := NewEnvironment()
	require.NoError(t, err)
	agent, err := NewAgent(gw, env, Config{Model: "m"})
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "hi", 1)
	require.NoError(t, err)
	assert.Equal(t, []unifiedllm.Role{unifiedllm.RoleUser, unifiedllm.RoleAssistant}, roles(agent.Transcript()))
}

func TestRunToolRoundTrip(t *testing.T) {
	call := unifiedllm.NewToolCall("call_1", "lookup", map[string]any{})
	gw := newStubGateway(toolCallMessage(call), unifiedllm.AssistantMessage("done"))
	agent := newTestAgent(t, gw, WithTools(constTool("lookup", "R")))

	result, err := agent.Run(context.Background(), "go", 5)
	require.NoError(t, err)
	assert.Equal(t, "done", result.Content())
	assert.Equal(t, 2, gw.calls())

	transcript := agent.Transcript()
	require.Len(t, transcript, 5)
	assert.Equal(t, []unifiedllm.Role{
		unifiedllm.RoleSystem, unifiedllm.RoleUser, unifiedllm.RoleAssistant, unifiedllm.RoleTool, unifiedllm.RoleAssistant,
	}, roles(transcript))
	assert.Equal(t, []unifiedllm.ToolCall{call}, transcript[2].ToolCalls)
	assert.Equal(t, "R", transcript[3].Content)
	assert.Equal(t, "call_1", transcript[3].ToolCallID)
	assert.Equal(t, "done", transcript[4].Content)

	// The second request carries the tool result and the tool schemas.
	second := gw.requests[1]
	assert.Len(t, second.Messages, 4)
	require.Len(t, second.Tools, 1)
	assert.Equal(t, "lookup", second.Tools[0].Function.Name)
}

func TestRunToolErrorIsReportedToModel(t *testing.T) {
	boom := Tool{
		Name:        "explode",
		Description: "Always fails.",
		Handler: func(ctx context.Context, args Args) (any, error) {
			return nil, errors.New("boom")
		},
	}
	gw := newStubGateway(
		toolCallMessage(unifiedllm.NewToolCall("call_1", "explode", nil)),
		unifiedllm.AssistantMessage("recovered"),
	)
	agent := newTestAgent(t, gw, WithTools(boom))

	result, err := agent.Run(context.Background(), "go", 5)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Content())
	assert.Equal(t, 2, gw.calls())

	toolMsg := agent.Transcript()[3]
	assert.Equal(t, unifiedllm.RoleTool, toolMsg.Role)
	assert.Contains(t, toolMsg.Content, "Error: boom")
}

func TestRunRecoversFromBadToolCalls(t *testing.T) {
	tests := []struct {
		name string
		call unifiedllm.ToolCall
		want string
	}{
		{
			name: "unknown tool",
			call: unifiedllm.ToolCall{ID: "c1", Type: "function", Function: unifiedllm.FunctionCall{Name: "nope", Arguments: "{}"}},
			want: `Error: tool "nope" not found`,
		},
		{
			name: "malformed json",
			call: unifiedllm.ToolCall{ID: "c1", Type: "function", Function: unifiedllm.FunctionCall{Name: "lookup", Arguments: "{not json"}},
			want: "Error: malformed tool arguments",
		},
		{
			name: "panicking tool",
			call: unifiedllm.NewToolCall("c1", "panics", nil),
			want: "Error: ",
		},
	}

	panics := Tool{
		Name:        "panics",
		Description: "Panics.",
		Handler: func(ctx context.Context, args Args) (any, error) {
			panic("kaboom")
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newStubGateway(toolCallMessage(tt.call), unifiedllm.AssistantMessage("ok"))
			agent := newTestAgent(t, gw, WithTools(constTool("lookup", "R"), panics))

			result, err := agent.Run(context.Background(), "go", 3)
			require.NoError(t, err)
			assert.Equal(t, "ok", result.Content())

			toolMsg := agent.Transcript()[3]
			assert.Equal(t, "c1", toolMsg.ToolCallID)
			assert.Contains(t, toolMsg.Content, tt.want)
		})
	}
}

func TestRunDispatchesCallsInOrder(t *testing.T) {
	var order []string
	record := func(name string) Tool {
		return Tool{
			Name:        name,
			Description: "Records its call.",
			Handler: func(ctx context.Context, args Args) (any, error) {
				order = append(order, name)
				return name, nil
			},
		}
	}
	gw := newStubGateway(
		toolCallMessage(
			unifiedllm.NewToolCall("c1", "first", nil),
			unifiedllm.NewToolCall("c2", "second", nil),
			unifiedllm.NewToolCall("c3", "first", nil),
		),
		unifiedllm.AssistantMessage("done"),
	)
	agent := newTestAgent(t, gw, WithTools(record("first"), record("second")))

	_, err := agent.Run(context.Background(), "go", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "first"}, order)

	transcript := agent.Transcript()
	assert.Equal(t, "c1", transcript[3].ToolCallID)
	assert.Equal(t, "c2", transcript[4].ToolCallID)
	assert.Equal(t, "c3", transcript[5].ToolCallID)
}

func TestRunBudgetExhaustedByToolCalls(t *testing.T) {
	gw := newStubGateway(toolCallMessage(unifiedllm.NewToolCall("c1", "lookup", nil)))
	agent := newTestAgent(t, gw, WithTools(constTool("lookup", "R")))

	result, err := agent.Run(context.Background(), "loop forever", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, gw.calls())
	assert.True(t, result.Interrupted)
	assert.Equal(t, 3, result.Iterations)
	assert.Len(t, result.ToolCalls(), 1)
	assert.Equal(t, unifiedllm.Usage{InputTokens: 3, OutputTokens: 6, TotalTokens: 9}, result.Usage)
	assert.Equal(t, StateDone, agent.State())
}

func TestRunSingleContinuation(t *testing.T) {
	var seen []string
	calls := 0
	cont := ContinuationFunc(func(ctx context.Context, result *Result) (string, bool) {
		seen = append(seen, result.Content())
		calls++
		if calls == 1 {
			return "and then?", true
		}
		return "", false
	})
	gw := newStubGateway(unifiedllm.AssistantMessage("first"), unifiedllm.AssistantMessage("second"))
	agent := newTestAgent(t, gw, WithContinuation(cont))

	result, err := agent.Run(context.Background(), "start", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.calls())
	assert.Equal(t, "second", result.Content())
	assert.False(t, result.Interrupted)
	assert.Equal(t, []string{"first", "second"}, seen)

	transcript := agent.Transcript()
	assert.Equal(t, []unifiedllm.Role{
		unifiedllm.RoleSystem, unifiedllm.RoleUser, unifiedllm.RoleAssistant, unifiedllm.RoleUser, unifiedllm.RoleAssistant,
	}, roles(transcript))
	assert.Equal(t, "and then?", transcript[3].Content)
}

func TestRunContinuationInterruptedByBudget(t *testing.T) {
	cont := ContinuationFunc(func(ctx context.Context, result *Result) (string, bool) {
		return "more", true
	})
	gw := newStubGateway(unifiedllm.AssistantMessage("answer"))
	agent := newTestAgent(t, gw, WithContinuation(cont))

	result, err := agent.Run(context.Background(), "start", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.calls())
	assert.True(t, result.Interrupted)
}

func TestRunEmptyContinuationEndsRun(t *testing.T) {
	cont := ContinuationFunc(func(ctx context.Context, result *Result) (string, bool) {
		return "", true
	})
	gw := newStubGateway(unifiedllm.AssistantMessage("answer"))
	agent := newTestAgent(t, gw, WithContinuation(cont))

	result, err := agent.Run(context.Background(), "start", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.calls())
	assert.False(t, result.Interrupted)
}

func TestRunGatewayErrorPropagates(t *testing.T) {
	gw := newStubGateway(unifiedllm.AssistantMessage("unused"))
	gw.err = errors.New("provider down")
	agent := newTestAgent(t, gw)

	_, err := agent.Run(context.Background(), "hi", 3)
	assert.EqualError(t, err, "provider down")
	assert.Equal(t, StateDone, agent.State())
}

func TestRunCancelledContext(t *testing.T) {
	gw := newStubGateway(unifiedllm.AssistantMessage("unused"))
	agent := newTestAgent(t, gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agent.Run(ctx, "hi", 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gw.calls())
}

func TestRunForwardsRequestSettings(t *testing.T) {
	temp := 0.2
	maxTokens := 128
	gw := newStubGateway(unifiedllm.AssistantMessage(`{"a":1}`))
	env, err := NewEnvironment()
	require.NoError(t, err)
	agent, err := NewAgent(gw, env, Config{Model: "openai:gpt", Temperature: &temp, MaxTokens: &maxTokens})
	require.NoError(t, err)

	format := unifiedllm.JSONSchemaFormat("thing", map[string]any{"type": "object"})
	_, err = agent.Run(context.Background(), "hi", 1, WithResponseFormat(format))
	require.NoError(t, err)

	req := gw.requests[0]
	assert.Equal(t, "openai:gpt", req.Model)
	assert.Same(t, format, req.ResponseFormat)
	assert.Equal(t, &temp, req.Temperature)
	assert.Equal(t, &maxTokens, req.MaxTokens)
	assert.Nil(t, req.Tools)
}

func TestRunForcesAssistantRole(t *testing.T) {
	gw := newStubGateway(unifiedllm.Message{Content: "no role"})
	agent := newTestAgent(t, gw)

	result, err := agent.Run(context.Background(), "hi", 1)
	require.NoError(t, err)
	assert.Equal(t, unifiedllm.RoleAssistant, result.Message.Role)
}

func TestTranscriptIsACopy(t *testing.T) {
	gw := newStubGateway(unifiedllm.AssistantMessage("ok"))
	agent := newTestAgent(t, gw)
	_, err := agent.Run(context.Background(), "hi", 1)
	require.NoError(t, err)

	snapshot := agent.Transcript()
	snapshot[1].Content = "tampered"
	assert.Equal(t, "hi", agent.Transcript()[1].Content)
}

func TestTranscriptReadableDuringRun(t *testing.T) {
	gw := newStubGateway(
		toolCallMessage(unifiedllm.NewToolCall("c1", "peek", nil)),
		unifiedllm.AssistantMessage("done"),
	)

	var agent *Agent
	var fromTool, fromContinuation int
	peek := Tool{
		Name:        "peek",
		Description: "Counts transcript messages.",
		Handler: func(ctx context.Context, args Args) (any, error) {
			fromTool = len(agent.Transcript())
			return "seen", nil
		},
	}
	agent = newTestAgent(t, gw,
		WithTools(peek),
		WithContinuation(ContinuationFunc(func(ctx context.Context, result *Result) (string, bool) {
			fromContinuation = len(agent.Transcript())
			return "", false
		})),
	)

	done := make(chan error, 1)
	go func() {
		_, err := agent.Run(context.Background(), "look", 5)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run blocked while reading the transcript")
	}

	// system, user, assistant(tool call) when the tool runs
	assert.Equal(t, 3, fromTool)
	// plus the tool result and the final answer
	assert.Equal(t, 5, fromContinuation)
}

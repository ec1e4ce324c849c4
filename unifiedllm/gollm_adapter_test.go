package unifiedllm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenMessages(t *testing.T) {
	system, prompt := flattenMessages([]Message{
		SystemMessage("be terse"),
		UserMessage("list files"),
		{Role: RoleAssistant, ToolCalls: []ToolCall{NewToolCall("call_1", "list_files_and_dirs", nil)}},
		ToolResultMessage("call_1", "Files: go.mod"),
		AssistantMessage("There is a go.mod."),
	})

	assert.Equal(t, "be terse", system)
	assert.Equal(t, "list files\n"+
		"[Assistant called list_files_and_dirs (call_1)]: {}\n"+
		"[Tool Result call_1]: Files: go.mod\n"+
		"[Assistant]: There is a go.mod.", prompt)
}

func TestFlattenMessagesEmpty(t *testing.T) {
	system, prompt := flattenMessages(nil)
	assert.Empty(t, system)
	assert.Equal(t, "Hello", prompt)
}

func TestParseToolCallsOpenAIShape(t *testing.T) {
	text := `Let me look.
{"tool_calls":[{"id":"call_9","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}}]}`

	calls, rest := parseToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Function.Name)
	assert.Equal(t, `{"path":"a.txt"}`, calls[0].Function.Arguments)
	assert.Equal(t, "Let me look.", rest)
}

func TestParseToolCallsFlatShape(t *testing.T) {
	calls, _ := parseToolCalls(`[{"name":"create_directory","arguments":{"path":"src"}},{"name":"get_current_working_directory"}]`)
	require.Len(t, calls, 2)
	assert.Equal(t, "create_directory", calls[0].Function.Name)
	assert.JSONEq(t, `{"path":"src"}`, calls[0].Function.Arguments)
	assert.Equal(t, "{}", calls[1].Function.Arguments)
	assert.NotEqual(t, calls[0].ID, calls[1].ID)
	assert.Equal(t, "function", calls[0].Type)
}

func TestParseToolCallsPlainText(t *testing.T) {
	calls, _ := parseToolCalls("Just an answer with a list: [1, 2, 3]")
	assert.Empty(t, calls)

	calls, _ = parseToolCalls(`[{"command":"ls"}]`)
	assert.Empty(t, calls)
}

func TestBuildResponse(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai", model: "gpt-4o-mini"}

	resp := adapter.buildResponse(Request{Messages: []Message{UserMessage("hi")}}, "Hello there")
	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, "Hello there", resp.Text())
	assert.Empty(t, resp.ToolCalls())
	assert.Equal(t, "stop", resp.FinishReason.Reason)
	assert.Equal(t, "gpt-4o-mini", resp.Model)

	resp = adapter.buildResponse(Request{Model: "gpt-4o"}, `[{"name":"read_file","arguments":{"path":"x"}}]`)
	require.Len(t, resp.ToolCalls(), 1)
	assert.Equal(t, "tool_calls", resp.FinishReason.Reason)
	assert.Equal(t, "gpt-4o", resp.Model)
}

func TestBuildResponseStripsCodeFence(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}
	resp := adapter.buildResponse(Request{}, "```json\n{\"command\": \"ls\"}\n```")
	assert.Equal(t, `{"command": "ls"}`, resp.Text())
}

func TestGollmAdapterTranslateError(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}

	tests := []struct {
		msg   string
		check func(error) bool
	}{
		{"401 Unauthorized", func(err error) bool { var e *AuthenticationError; return errors.As(err, &e) }},
		{"403 Forbidden", func(err error) bool { var e *AccessDeniedError; return errors.As(err, &e) }},
		{"model not found", func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }},
		{"429 rate limit exceeded", func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{"context length exceeded", func(err error) bool { var e *ContextLengthError; return errors.As(err, &e) }},
		{"500 internal server error", func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
		{"request timeout", func(err error) bool { var e *RequestTimeoutError; return errors.As(err, &e) }},
		{"dial tcp: connection refused", func(err error) bool { var e *NetworkError; return errors.As(err, &e) }},
		{"context canceled", func(err error) bool { var e *AbortError; return errors.As(err, &e) }},
		{"blocked by safety system", func(err error) bool { var e *ContentFilterError; return errors.As(err, &e) }},
		{"something odd", func(err error) bool { var e *ProviderError; return errors.As(err, &e) && e.Retryable }},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.True(t, tt.check(adapter.translateError(errors.New(tt.msg))))
		})
	}
	assert.NoError(t, adapter.translateError(nil))
}

func TestSchemaInstructionEmbedsSchema(t *testing.T) {
	got := schemaInstruction(&JSONSchema{Name: "x", Schema: map[string]any{"type": "object"}})
	assert.Contains(t, got, `"type": "object"`)
	assert.Contains(t, got, "Respond ONLY with the JSON object")
}

func TestEstimateTokens(t *testing.T) {
	assert.Positive(t, estimateTokens(Request{Messages: []Message{UserMessage("Hello world, this is a test message.")}}))
	assert.Equal(t, 10, estimateTokens(Request{}))
}

package unifiedllm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleSystem, Content: "You are helpful."}, SystemMessage("You are helpful."))
	assert.Equal(t, Message{Role: RoleUser, Content: "Hello"}, UserMessage("Hello"))
	assert.Equal(t, Message{Role: RoleAssistant, Content: "Hi there"}, AssistantMessage("Hi there"))

	msg := ToolResultMessage("call_123", "72F and sunny")
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "call_123", msg.ToolCallID)
	assert.Equal(t, "72F and sunny", msg.Content)
}

func TestToolCallWireShape(t *testing.T) {
	call := NewToolCall("call_1", "read_file", map[string]any{"path": "go.mod"})

	data, err := json.Marshal(call)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"call_1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"go.mod\"}"}}`, string(data))

	empty := NewToolCall("call_2", "get_current_working_directory", nil)
	assert.Equal(t, "{}", empty.Function.Arguments)
}

func TestMessageJSONOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(AssistantMessage(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant"}`, string(data))
}

func TestMessageCloneIsIndependent(t *testing.T) {
	orig := Message{Role: RoleAssistant, ToolCalls: []ToolCall{NewToolCall("a", "t", nil)}}
	clone := orig.Clone()
	clone.ToolCalls[0].ID = "b"

	assert.Equal(t, "a", orig.ToolCalls[0].ID)
	assert.True(t, orig.HasToolCalls())
}

func TestSplitModelID(t *testing.T) {
	p, m := SplitModelID("openai:gpt-4o")
	assert.Equal(t, "openai", p)
	assert.Equal(t, "gpt-4o", m)

	p, m = SplitModelID("ollama:llama3:8b")
	assert.Equal(t, "ollama", p)
	assert.Equal(t, "llama3:8b", m)

	p, m = SplitModelID("gpt-4o")
	assert.Empty(t, p)
	assert.Equal(t, "gpt-4o", m)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}.Add(Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30})
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 22, TotalTokens: 33}, u)
}

func TestJSONSchemaFormat(t *testing.T) {
	rf := JSONSchemaFormat("command_suggestion", map[string]any{"type": "object"})
	assert.Equal(t, "json_schema", rf.Type)
	require.NotNil(t, rf.JSONSchema)
	assert.Equal(t, "command_suggestion", rf.JSONSchema.Name)
}

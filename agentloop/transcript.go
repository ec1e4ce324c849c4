package agentloop

import "github.com/tibagni/cli-assistant/unifiedllm"

// Transcript is the append-only message history of one agent.
// It is not safe for concurrent use; the owning Agent serializes access.
type Transcript struct {
	messages []unifiedllm.Message
}

// NewTranscript returns a transcript seeded with a system message when
// systemPrompt is non-empty.
func NewTranscript(systemPrompt string) *Transcript {
	t := &Transcript{}
	if systemPrompt != "" {
		t.Append(unifiedllm.SystemMessage(systemPrompt))
	}
	return t
}

// Append adds a copy of msg to the end of the transcript.
func (t *Transcript) Append(msg unifiedllm.Message) {
	t.messages = append(t.messages, msg.Clone())
}

// Messages returns a snapshot of the transcript.
func (t *Transcript) Messages() []unifiedllm.Message {
	out := make([]unifiedllm.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

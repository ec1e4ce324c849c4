package agentloop

import (
	"context"
	"strings"
	"sync"
)

// Renderer displays the model's final answer to the user.
type Renderer interface {
	Markdown(text string)
}

// LineReader reads one line of user input. Implementations must return an
// error when ctx is cancelled or input is closed.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Interactive is a continuation that shows each final answer and asks the
// user for the next instruction.
type Interactive struct {
	renderer Renderer
	reader   LineReader
	prompt   string
}

// NewInteractive returns an interactive continuation prompting with "> ".
func NewInteractive(renderer Renderer, reader LineReader) *Interactive {
	return &Interactive{renderer: renderer, reader: reader, prompt: "> "}
}

// OnTurnComplete renders the answer and blocks for a non-empty line.
// An empty answer, closed input or an interrupt ends the conversation.
func (c *Interactive) OnTurnComplete(ctx context.Context, result *Result) (string, bool) {
	text := result.Content()
	if text == "" {
		return "", false
	}
	c.renderer.Markdown(text)

	for {
		line, err := c.reader.ReadLine(ctx, c.prompt)
		if err != nil {
			return "", false
		}
		if line = strings.TrimSpace(line); line != "" {
			return line, true
		}
	}
}

// DefaultTerminateReminder is sent when the model stops without terminating.
const DefaultTerminateReminder = "If the task is complete, call the terminate tool. Otherwise keep working on it."

// Terminator provides a terminate tool and a continuation that keeps the
// conversation going until the model calls it.
type Terminator struct {
	reminder string

	mu         sync.Mutex
	terminated bool
	reason     string
}

// NewTerminator returns a Terminator nudging the model with reminder.
// An empty reminder uses DefaultTerminateReminder.
func NewTerminator(reminder string) *Terminator {
	if reminder == "" {
		reminder = DefaultTerminateReminder
	}
	return &Terminator{reminder: reminder}
}

type terminateArgs struct {
	Reason string `json:"reason" default:"" desc:"Short note on why the task is finished."`
}

func (t *Terminator) Tools() []Tool {
	return []Tool{
		NewTool("terminate", "Ends the session once the task is complete.",
			func(ctx context.Context, in terminateArgs) (any, error) {
				t.mu.Lock()
				defer t.mu.Unlock()
				t.terminated = true
				t.reason = in.Reason
				return "Session terminated.", nil
			}),
	}
}

func (t *Terminator) OnTurnComplete(ctx context.Context, result *Result) (string, bool) {
	if t.Terminated() {
		return "", false
	}
	return t.reminder, true
}

// Terminated reports whether the terminate tool has been called.
func (t *Terminator) Terminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

// Reason returns the reason given to the terminate tool.
func (t *Terminator) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

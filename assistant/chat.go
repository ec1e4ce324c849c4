package assistant

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/tibagni/cli-assistant/agentloop"
)

const chatPrompt = `You are a general purpose assistant living in the user's terminal.
You can help with any topic, from writing and coding to troubleshooting and general knowledge,
and you are especially good with the command line, Bash scripting and Unix-like systems.
You have tools that act on the user's machine. Some calls may fail or be declined by the user;
when that happens, carry on with the conversation without them.
Be concise and precise, explain commands when it helps and warn before anything destructive.
Assume a Unix-like shell unless the user says otherwise. Stay helpful, safe and respectful of the user.`

// Chat starts an interactive conversation. It returns nil when the user
// closes the input before asking anything.
func (a *Assistant) Chat(ctx context.Context) error {
	question, err := a.ui.ReadLine(ctx, "Ask anything: ")
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	if question = strings.TrimSpace(question); question == "" {
		return nil
	}

	ws, err := a.workspace()
	if err != nil {
		return err
	}
	agent, err := a.newAgent("chat", chatPrompt+"\n\n"+ws.Describe(ctx),
		agentloop.WithToolsets(
			agentloop.FilesystemTools(ws, a.ui, agentloop.DefaultReadLimit),
			agentloop.SummarizeTool(a.summarizer(ws), a.ui),
			agentloop.ShellTools(ws, a.ui, a.ui),
		),
		agentloop.WithContinuation(agentloop.NewInteractive(a.ui, a.ui)),
	)
	if err != nil {
		return err
	}

	_, err = agent.Run(ctx, question, ChatIterations)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

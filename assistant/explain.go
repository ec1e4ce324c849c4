package assistant

import (
	"context"
	"fmt"
)

const explainPrompt = `You are a seasoned Unix administrator who explains shell commands.
Given a command, describe what it does and what each of its parts contributes.
Break pipelines and compound commands down into their pieces and explain each one.
Finish with one or two realistic examples of using the command.
Write plainly and format the answer with Markdown.`

const explainFailed = "The AI failed to generate a description."

// Explain prints a Markdown explanation of a shell command.
func (a *Assistant) Explain(ctx context.Context, command string) error {
	answer, err := a.singleShot(ctx, "explain", explainPrompt,
		fmt.Sprintf("Explain the following command: '%s'", command))
	if err != nil {
		return err
	}
	if answer == "" {
		answer = explainFailed
	}
	a.ui.Markdown(answer)
	return nil
}

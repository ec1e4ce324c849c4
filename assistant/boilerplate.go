package assistant

import (
	"context"

	"github.com/tibagni/cli-assistant/agentloop"
)

const boilerplatePrompt = `You are a software architect who scaffolds new projects.
Work out the directory layout and file contents the user's request needs, then create them
with the tools, one call at a time. Create a directory before creating files inside it.
When everything exists, reply with a short summary of what you created.`

// Boilerplate scaffolds a project from description in the working directory.
// Existing files are never overwritten.
func (a *Assistant) Boilerplate(ctx context.Context, description string) error {
	ws, err := a.workspace()
	if err != nil {
		return err
	}
	agent, err := a.newAgent("boilerplate", boilerplatePrompt,
		agentloop.WithToolsets(agentloop.CreationTools(ws, a.ui)))
	if err != nil {
		return err
	}

	a.ui.Title("Starting boilerplate generation...")
	result, err := agent.Run(ctx, description, BoilerplateIterations)
	if err != nil {
		return err
	}

	a.ui.Println("")
	a.ui.Success("Boilerplate generation complete!")
	if result.Content() != "" {
		a.ui.Markdown(result.Content())
	}
	return nil
}

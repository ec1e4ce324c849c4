package assistant

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tibagni/cli-assistant/agentloop"
)

// ReadmifyReadLimit caps read_file output while exploring a project.
const ReadmifyReadLimit = 8000

const readmifyPrompt = `You are a technical writer who produces excellent README.md files.
Explore the project with the tools until you understand it, then write its README.
Work in this order:
1. List the root directory (.) for an overview.
2. Use summarize_path and read_file on the important files to learn the purpose, dependencies and main logic.
3. Use get_git_history to see what changed recently.
4. Call write_readme once with the complete, well organized Markdown.`

// Readmify explores the project at path and writes its README.md.
func (a *Assistant) Readmify(ctx context.Context, path string) error {
	if path == "" {
		path = "."
	}
	root := path
	if a.workdir != "" && !filepath.IsAbs(root) {
		root = filepath.Join(a.workdir, root)
	}
	ws, err := agentloop.NewWorkspace(root)
	if err != nil {
		return err
	}
	agent, err := a.newAgent("readmify", readmifyPrompt,
		agentloop.WithToolsets(
			agentloop.ExplorationTools(ws, a.ui, ReadmifyReadLimit),
			agentloop.SummarizeTool(a.summarizer(ws), a.ui),
			agentloop.GitTools(ws, a.ui),
			agentloop.ReadmeTools(ws, a.ui, a.ui),
		))
	if err != nil {
		return err
	}

	a.ui.Title(fmt.Sprintf("Analyzing project at '%s' to generate README...", path))
	task := fmt.Sprintf("Please generate a README.md file for the project located at '%s'. "+
		"Start by exploring the project using the available tools.", path)
	result, err := agent.Run(ctx, task, ReadmifyIterations)
	if err != nil {
		return err
	}

	a.ui.Println("")
	if result.Interrupted {
		a.ui.Warn("Warning: Max iterations reached before the agent could finish.")
	} else {
		a.ui.Success("README generation process complete!")
	}
	return nil
}

// Package agentloop runs a language model in a loop with tools.
//
// An Agent sends its transcript to a Gateway, executes any tool calls the
// model makes against an Environment, feeds the results back, and repeats
// until the environment has no further instruction or the iteration budget
// is spent. Tool failures are reported to the model, never to the caller.
//
// # Architecture
//
//   - Registry: validated tool table with JSON-Schema parameter schemas.
//     Tools are declared with Tool/Param or derived from a struct with NewTool.
//   - Environment: tool dispatch plus the continuation policy. ToolEnvironment
//     composes Toolsets with Interactive, Terminator or no continuation.
//   - Agent: the AWAITING_MODEL / DISPATCHING_TOOLS / AWAITING_CONTINUATION
//     state machine over a Transcript.
//   - Workspace: local file, shell and git operations behind the built-in
//     toolsets (FilesystemTools, ShellTools, GitTools, ReadmeTools).
//
// # Quick Start
//
//	ws, _ := agentloop.NewWorkspace("")
//	env, _ := agentloop.NewEnvironment(
//	    agentloop.WithToolsets(agentloop.FilesystemTools(ws, nil, 0)),
//	)
//	agent, _ := agentloop.NewAgent(client, env, agentloop.Config{Model: "openai:gpt-4o-mini"})
//	result, err := agent.Run(ctx, "What is in this directory?", 10)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Content())
package agentloop

package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/tibagni/cli-assistant/agentloop"
	"github.com/tibagni/cli-assistant/unifiedllm"
)

// Risk levels of a suggested command.
const (
	RiskSafe        = 0 // read-only
	RiskDestructive = 1 // modifies or deletes user files
	RiskHigh        = 2 // needs privileges or touches the system
)

// ErrNoCommand is returned by Do when the model suggests nothing to run.
var ErrNoCommand = errors.New("Could not generate a command for the given prompt.")

// CommandSuggestion is the structured answer of the do assistant.
type CommandSuggestion struct {
	Command        string `json:"command"`
	RiskAssessment int    `json:"risk_assessment"`
	Explanation    string `json:"explanation"`
	Disclaimer     string `json:"disclaimer"`
}

// CommandSuggestionFormat is the response format requested from the model.
var CommandSuggestionFormat = unifiedllm.JSONSchemaFormat("command_suggestion", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"command": map[string]any{
			"type":        "string",
			"description": "The bash command to run, or an empty string when no command fits the task.",
		},
		"risk_assessment": map[string]any{
			"type":        "integer",
			"description": "How risky the command is: 0, 1 or 2.",
			"enum":        []any{RiskSafe, RiskDestructive, RiskHigh},
		},
		"explanation": map[string]any{
			"type":        "string",
			"description": "What the command does and how it works, for a human reader.",
		},
		"disclaimer": map[string]any{
			"type":        "string",
			"description": "Warning shown for risk 1 or 2. Empty for risk 0.",
		},
	},
	"required": []any{"command", "risk_assessment", "explanation", "disclaimer"},
})

var invalidSuggestion = CommandSuggestion{
	RiskAssessment: RiskSafe,
	Explanation:    "Error: The AI failed to return a valid command.",
}

const doPrompt = `You are a senior Unix administrator. Turn the user's task into one safe, working Bash command.
Reply only with a JSON object matching the given schema:
- command: the Bash command, or an empty string when no command is appropriate.
- risk_assessment: 0 when the command only reads (ls, cat, grep), 1 when it can change or delete user files (mv, cp, rm), 2 when it needs sudo, changes system files or affects security or availability.
- explanation: a short, clear description of what the command does.
- disclaimer: a warning about the consequences when the risk is 1 or 2, otherwise an empty string.`

// Suggest asks the model for a command that performs description. It returns
// nil when the model gave no answer, and a placeholder suggestion with an
// empty command when the answer did not match the schema.
func (a *Assistant) Suggest(ctx context.Context, description string) (*CommandSuggestion, error) {
	agent, err := a.newAgent("do", doPrompt)
	if err != nil {
		return nil, err
	}
	result, err := agent.Run(ctx, description, SingleShotIterations,
		agentloop.WithResponseFormat(CommandSuggestionFormat))
	if err != nil {
		return nil, err
	}
	if result.Content() == "" {
		return nil, nil
	}

	var s CommandSuggestion
	if err := agentloop.DecodeStructured(result, CommandSuggestionFormat, &s); err != nil {
		if !errors.Is(err, agentloop.ErrUnstructuredModelOutput) {
			return nil, err
		}
		a.logger.Debug().Err(err).Msg("discarding command suggestion")
		fallback := invalidSuggestion
		return &fallback, nil
	}
	return &s, nil
}

// Do suggests a command for description, shows it and runs it once the user
// agrees.
func (a *Assistant) Do(ctx context.Context, description string) error {
	s, err := a.Suggest(ctx, description)
	if err != nil {
		return err
	}
	if s == nil || s.Command == "" {
		return ErrNoCommand
	}

	a.ui.Println("Suggested command:")
	a.ui.Code(s.Command)
	a.ui.Println("")
	a.ui.Section("Explanation:", s.Explanation)
	if s.RiskAssessment > RiskSafe && s.Disclaimer != "" {
		a.ui.Section("⚠️  Disclaimer:", s.Disclaimer)
	}

	if !a.ui.Confirm(ctx, "Do you want to run this command?") {
		return nil
	}
	ws, err := a.workspace()
	if err != nil {
		return err
	}
	code, err := ws.Attach(ctx, s.Command, a.stdin, a.stdout, a.stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		a.ui.Warn(fmt.Sprintf("Command exited with status %d.", code))
	}
	return nil
}

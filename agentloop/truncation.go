package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies which part of an oversized output is kept.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Character limits for the outputs of the built-in tools.
var DefaultToolCharLimits = map[string]int{
	"run_command":         30000,
	"get_git_commit":      30000,
	"get_git_history":     10000,
	"list_files_and_dirs": 20000,
}

var DefaultTruncationModes = map[string]TruncationMode{
	"run_command":         TruncateHeadTail,
	"get_git_commit":      TruncateHeadTail,
	"get_git_history":     TruncateHeadTail,
	"list_files_and_dirs": TruncateTail,
}

// Line limits, applied after the character limit.
var DefaultToolLineLimits = map[string]int{
	"run_command":     256,
	"get_git_history": 200,
}

// TruncateOutput shortens output to roughly maxChars characters and leaves a
// note for the model saying how much was dropped.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[Output truncated: the first %d characters were removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	}

	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n\n[Output truncated: %d characters were removed from the middle. "+
			"Re-run with narrower parameters to see them.]\n\n", removed) +
		output[len(output)-half:]
}

// TruncateLines keeps the first and last lines of output, maxLines in total.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail

	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}

// TruncateToolOutput applies the character limit and then the line limit
// registered for toolName. Tools without limits are returned unchanged.
func TruncateToolOutput(output, toolName string) string {
	result := output
	if maxChars, ok := DefaultToolCharLimits[toolName]; ok {
		mode, ok := DefaultTruncationModes[toolName]
		if !ok {
			mode = TruncateHeadTail
		}
		result = TruncateOutput(result, maxChars, mode)
	}
	if maxLines, ok := DefaultToolLineLimits[toolName]; ok {
		result = TruncateLines(result, maxLines)
	}
	return result
}

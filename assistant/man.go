package assistant

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

const manPrompt = `You turn Unix manual pages into short guides.
You receive the manual page of a command and answer with:
1. A brief description of what the command does.
2. Its most useful options, each with a one-line description.
3. Two or three practical examples.
Use Markdown and keep it friendly for beginners. For very long pages cover only the essentials.
Do not offer follow-up help or ask whether the user has more questions.`

// overstrike matches the backspace sequences man uses for bold and underline.
var overstrike = regexp.MustCompile(".\b")

// SystemManPage runs man(1) for page. Lookup failures yield an empty page.
func SystemManPage(ctx context.Context, page string) string {
	if page == "" || strings.HasPrefix(page, "-") {
		return ""
	}
	cmd := exec.CommandContext(ctx, "man", page)
	cmd.Env = append(cmd.Environ(), "MANPAGER=cat", "MANWIDTH=100")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ""
	}
	return overstrike.ReplaceAllString(stdout.String(), "")
}

func (a *Assistant) manSummary(ctx context.Context, page string) (string, error) {
	text := a.manPage(ctx, page)
	if text == "" {
		return fmt.Sprintf("Could not find a man page for `%s`.", page), nil
	}
	task := fmt.Sprintf("This is the manual page of '%s':\n\n%s\n\nSummarize it as instructed, formatted with Markdown.", page, text)
	summary, err := a.singleShot(ctx, "man", manPrompt, task)
	if err != nil {
		return "", err
	}
	if summary == "" {
		summary = summaryFailed
	}
	return summary, nil
}

// Man prints a digest of the manual page of a command.
func (a *Assistant) Man(ctx context.Context, page string) error {
	summary, err := a.manSummary(ctx, page)
	if err != nil {
		return err
	}
	a.ui.Markdown(summary)
	return nil
}

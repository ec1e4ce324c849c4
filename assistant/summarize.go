package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sourcegraph/conc/iter"

	"github.com/tibagni/cli-assistant/agentloop"
)

// Input limits of the summarize assistant, in characters.
const (
	SummaryPromptLimit = 4000
	SummaryFileLimit   = 800
)

const (
	snippetTruncatedMarker = "\n... (truncated)"
	summaryFailed          = "The AI failed to generate a summary."
)

const summarizePrompt = `You summarize files and directories for a developer working in a terminal.
For a source file, describe in a few sentences what it is for and its main functions or types.
For a markdown or plain text file, give its key points.
For a directory, explain what it is for and list its most important files with their roles.
Keep the answer short and use Markdown.`

type fileSample struct {
	File    string `json:"file"`
	Snippet string `json:"snippet,omitempty"`
	Error   string `json:"error,omitempty"`
}

type dirSample struct {
	Directory string       `json:"directory"`
	Overview  []fileSample `json:"overview"`
}

type invalidSample struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func sampleFile(ws *agentloop.Workspace, path string) fileSample {
	head, more, err := ws.Head(path, SummaryFileLimit)
	if err != nil {
		return fileSample{File: path, Error: err.Error()}
	}
	if more {
		head += snippetTruncatedMarker
	}
	return fileSample{File: path, Snippet: head}
}

func sampleDir(ws *agentloop.Workspace, path string) any {
	entries, err := ws.List(path)
	if err != nil {
		return invalidSample{Path: path, Error: err.Error()}
	}
	overview := []fileSample{}
	for _, e := range entries {
		if !e.IsDir {
			overview = append(overview, sampleFile(ws, filepath.Join(path, e.Name)))
		}
	}
	return dirSample{Directory: path, Overview: overview}
}

func samplePath(ws *agentloop.Workspace, path string) any {
	info, err := ws.Stat(path)
	switch {
	case err != nil:
		return invalidSample{Path: path, Error: fmt.Sprintf("%s doesn't appear to be valid", path)}
	case info.IsDir():
		return sampleDir(ws, path)
	default:
		return sampleFile(ws, path)
	}
}

func encodeJSON(v any, indent string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// SummaryTask samples paths and renders the user message of the summarize
// assistant. Samples are added in order until the next one would exceed
// SummaryPromptLimit; the rest are dropped with a note.
func SummaryTask(ws *agentloop.Workspace, paths []string) string {
	all := iter.Map(paths, func(p *string) any {
		return samplePath(ws, *p)
	})

	samples := make([]any, 0, len(all))
	size, truncated := 0, false
	for _, s := range all {
		n := len(encodeJSON(s, ""))
		if size+n > SummaryPromptLimit {
			truncated = true
			break
		}
		samples = append(samples, s)
		size += n
	}

	content := string(encodeJSON(samples, "  "))
	if truncated {
		content += fmt.Sprintf("\n\n... (input truncated to fit within the prompt limit of %d characters)", SummaryPromptLimit)
	}
	return "Summarize the following files/directories:\n\n" + content
}

func (a *Assistant) summarize(ctx context.Context, ws *agentloop.Workspace, paths []string) (string, error) {
	return a.singleShot(ctx, "summarize", summarizePrompt, SummaryTask(ws, paths))
}

// summarizer backs the summarize_path tool with a nested single-shot run.
func (a *Assistant) summarizer(ws *agentloop.Workspace) agentloop.SummarizeFunc {
	return func(ctx context.Context, path string) (string, error) {
		return a.summarize(ctx, ws, []string{path})
	}
}

// Summarize prints a short summary of the given files and directories.
func (a *Assistant) Summarize(ctx context.Context, paths []string) error {
	ws, err := a.workspace()
	if err != nil {
		return err
	}
	summary, err := a.summarize(ctx, ws, paths)
	if err != nil {
		return err
	}
	if summary == "" {
		summary = summaryFailed
	}
	a.ui.Markdown(summary)
	return nil
}

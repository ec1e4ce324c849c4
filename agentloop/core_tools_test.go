package agentloop

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedConfirmer struct {
	answer    bool
	questions []string
}

func (c *fixedConfirmer) Confirm(ctx context.Context, question string) bool {
	c.questions = append(c.questions, question)
	return c.answer
}

type recordingReporter struct {
	reports []string
}

func (r *recordingReporter) Report(action, detail string) {
	r.reports = append(r.reports, action+": "+detail)
}

func newToolRegistry(t *testing.T, sets ...Toolset) *Registry {
	t.Helper()
	env, err := NewEnvironment(WithToolsets(sets...))
	require.NoError(t, err)
	return env.Registry()
}

func TestFilesystemTools(t *testing.T) {
	ws := newTestWorkspace(t)
	reporter := &recordingReporter{}
	reg := newToolRegistry(t, FilesystemTools(ws, reporter, 5))
	ctx := context.Background()

	assert.Equal(t, []string{
		"get_current_working_directory", "list_files_and_dirs", "read_file", "create_directory", "create_file",
	}, reg.Names())

	out, err := reg.Invoke(ctx, "get_current_working_directory", nil)
	require.NoError(t, err)
	assert.Equal(t, ws.Root(), out)

	out, err = reg.Invoke(ctx, "create_directory", map[string]any{"path": "app"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully created directory: app", out)

	_, err = reg.Invoke(ctx, "create_directory", map[string]any{"path": "app"})
	assert.EqualError(t, err, "path 'app' already exists")

	out, err = reg.Invoke(ctx, "create_file", map[string]any{"path": "app/main.go", "content": "package main\n"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully created file: app/main.go", out)

	_, err = reg.Invoke(ctx, "create_file", map[string]any{"path": "app/main.go", "content": "x"})
	assert.ErrorIs(t, err, ErrToolExecution)

	out, err = reg.Invoke(ctx, "read_file", map[string]any{"path": "app/main.go"})
	require.NoError(t, err)
	assert.Equal(t, "packa"+FileTruncatedMarker, out)

	require.NoError(t, ws.CreateFile("top.txt", ""))
	out, err = reg.Invoke(ctx, "list_files_and_dirs", nil)
	require.NoError(t, err)
	assert.Equal(t, "Files: top.txt\nFolders: app", out)

	out, err = reg.Invoke(ctx, "list_files_and_dirs", map[string]any{"path": "app"})
	require.NoError(t, err)
	assert.Equal(t, "Files: main.go\nFolders: ", out)

	assert.Equal(t, []string{
		"Querying cwd: " + ws.Root(),
		"Created directory: app",
		"Wrote file: app/main.go",
		"Reading file: app/main.go",
		"Listing files in: .",
		"Listing files in: app",
	}, reporter.reports)
}

func TestFilesystemToolSchemas(t *testing.T) {
	reg := newToolRegistry(t, FilesystemTools(newTestWorkspace(t), nil, 0))

	spec, _ := reg.Spec("list_files_and_dirs")
	assert.Equal(t, []string{}, spec.Schema()["required"])

	spec, _ = reg.Spec("create_file")
	assert.Equal(t, []string{"path", "content"}, spec.Schema()["required"])

	spec, _ = reg.Spec("read_file")
	assert.Contains(t, spec.Description, "40000")
}

func TestSplitFilesystemToolsets(t *testing.T) {
	ws := newTestWorkspace(t)
	assert.Equal(t, []string{"get_current_working_directory", "list_files_and_dirs", "read_file"},
		newToolRegistry(t, ExplorationTools(ws, nil, 0)).Names())
	assert.Equal(t, []string{"create_directory", "create_file"},
		newToolRegistry(t, CreationTools(ws, nil)).Names())
}

func TestRunCommandTool(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	tests := []struct {
		command string
		want    string
	}{
		{"echo hello", "STDOUT:\nhello"},
		{"echo warn >&2", "STDERR:\nwarn"},
		{"true", "Command executed successfully with no output."},
		{"echo partial; exit 4", "Command failed with exit code 4.\nSTDOUT:\npartial\nSTDERR:\n"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			confirmer := &fixedConfirmer{answer: true}
			reg := newToolRegistry(t, ShellTools(ws, confirmer, nil))

			out, err := reg.Invoke(ctx, "run_command", map[string]any{"command": tt.command})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, []string{"Run command '" + tt.command + "'?"}, confirmer.questions)
		})
	}
}

func TestRunCommandDeclined(t *testing.T) {
	ws := newTestWorkspace(t)
	reporter := &recordingReporter{}
	reg := newToolRegistry(t, ShellTools(ws, &fixedConfirmer{answer: false}, reporter))

	out, err := reg.Invoke(context.Background(), "run_command", map[string]any{"command": "touch marker"})
	require.NoError(t, err)
	assert.Equal(t, "Aborted by user. Command not executed.", out)
	assert.False(t, ws.Exists("marker"))
	assert.Empty(t, reporter.reports)
}

func TestGitTools(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := newToolRegistry(t, GitTools(ws, nil))
	ctx := context.Background()

	_, err := reg.Invoke(ctx, "get_git_history", nil)
	assert.ErrorIs(t, err, ErrToolExecution)

	initGitRepo(t, ws)

	out, err := reg.Invoke(ctx, "get_git_history", nil)
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, "\n"), 2)

	out, err = reg.Invoke(ctx, "get_git_history", map[string]any{"limit": 1})
	require.NoError(t, err)
	hash := strings.Fields(out)[0]

	out, err = reg.Invoke(ctx, "get_git_commit", map[string]any{"commit_hash": hash})
	require.NoError(t, err)
	assert.Contains(t, out, "second commit")

	_, err = reg.Invoke(ctx, "get_git_commit", map[string]any{"commit_hash": "deadbeef"})
	assert.Error(t, err)
}

func TestWriteReadme(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()
	readme := filepath.Join(ws.Root(), ReadmeFile)

	confirmer := &fixedConfirmer{answer: false}
	reg := newToolRegistry(t, ReadmeTools(ws, confirmer, nil))

	out, err := reg.Invoke(ctx, "write_readme", map[string]any{"content": "# One"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully wrote README.md to "+readme, out)
	assert.Empty(t, confirmer.questions, "no prompt for a new file")

	out, err = reg.Invoke(ctx, "write_readme", map[string]any{"content": "# Two"})
	require.NoError(t, err)
	assert.Equal(t, "Aborted by user. README.md was not overwritten.", out)
	assert.Equal(t, []string{"'" + readme + "' already exists. Overwrite?"}, confirmer.questions)

	content, err := ws.ReadFile(ReadmeFile, 0)
	require.NoError(t, err)
	assert.Equal(t, "# One", content)

	confirmer.answer = true
	_, err = reg.Invoke(ctx, "write_readme", map[string]any{"content": "# Two"})
	require.NoError(t, err)
	content, _ = ws.ReadFile(ReadmeFile, 0)
	assert.Equal(t, "# Two", content)
}

func TestSummarizeTool(t *testing.T) {
	var asked []string
	fn := func(ctx context.Context, path string) (string, error) {
		asked = append(asked, path)
		if path == "bad" {
			return "", errors.New("unreadable")
		}
		return "summary of " + path, nil
	}
	reg := newToolRegistry(t, SummarizeTool(fn, nil))

	out, err := reg.Invoke(context.Background(), "summarize_path", map[string]any{"path": "cmd"})
	require.NoError(t, err)
	assert.Equal(t, "summary of cmd", out)

	_, err = reg.Invoke(context.Background(), "summarize_path", map[string]any{"path": "bad"})
	assert.EqualError(t, err, "unreadable")
	assert.Equal(t, []string{"cmd", "bad"}, asked)
}

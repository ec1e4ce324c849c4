package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Default limits of the built-in toolsets.
const (
	DefaultReadLimit      = 40000
	DefaultCommandTimeout = 60 * time.Second
	DefaultHistoryLimit   = 10
)

// Confirmer asks the user a yes/no question. Anything other than an explicit
// yes, including an interrupt, counts as no.
type Confirmer interface {
	Confirm(ctx context.Context, question string) bool
}

// Reporter shows the user what a tool just did.
type Reporter interface {
	Report(action, detail string)
}

// NopReporter discards reports.
type NopReporter struct{}

func (NopReporter) Report(string, string) {}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter{}
	}
	return r
}

type pathArgs struct {
	Path string `json:"path" desc:"Path relative to the working directory."`
}

type listArgs struct {
	Path string `json:"path" default:"." desc:"Directory to list. Defaults to the working directory."`
}

type createFileArgs struct {
	Path    string `json:"path" desc:"Path of the new file."`
	Content string `json:"content" desc:"Full content of the file."`
}

// FilesystemTools combines ExplorationTools and CreationTools.
func FilesystemTools(ws *Workspace, reporter Reporter, readLimit int) Toolset {
	return ToolsetFunc(func() []Tool {
		return append(ExplorationTools(ws, reporter, readLimit).Tools(), CreationTools(ws, reporter).Tools()...)
	})
}

// ExplorationTools exposes read-only access to a workspace. Files longer
// than readLimit are cut and marked as truncated.
func ExplorationTools(ws *Workspace, reporter Reporter, readLimit int) Toolset {
	reporter = reporterOrNop(reporter)
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}

	return ToolsetFunc(func() []Tool {
		return []Tool{
			NewTool("get_current_working_directory", "Returns the current working directory.",
				func(ctx context.Context, _ struct{}) (any, error) {
					reporter.Report("Querying cwd", ws.Root())
					return ws.Root(), nil
				}),

			NewTool("list_files_and_dirs",
				"Lists the files and directories in a path. Defaults to the current directory.",
				func(ctx context.Context, in listArgs) (any, error) {
					entries, err := ws.List(in.Path)
					if err != nil {
						return nil, err
					}
					var files, dirs []string
					for _, e := range entries {
						if e.IsDir {
							dirs = append(dirs, e.Name)
						} else {
							files = append(files, e.Name)
						}
					}
					reporter.Report("Listing files in", in.Path)
					out := fmt.Sprintf("Files: %s\nFolders: %s", strings.Join(files, ", "), strings.Join(dirs, ", "))
					return TruncateToolOutput(out, "list_files_and_dirs"), nil
				}),

			NewTool("read_file",
				fmt.Sprintf("Reads the content of a file, up to %d characters.", readLimit),
				func(ctx context.Context, in pathArgs) (any, error) {
					content, err := ws.ReadFile(in.Path, readLimit)
					if err != nil {
						return nil, err
					}
					reporter.Report("Reading file", in.Path)
					return content, nil
				}),
		}
	})
}

// CreationTools exposes create-only operations on a workspace. Existing
// paths are never overwritten.
func CreationTools(ws *Workspace, reporter Reporter) Toolset {
	reporter = reporterOrNop(reporter)

	return ToolsetFunc(func() []Tool {
		return []Tool{
			NewTool("create_directory",
				"Creates a directory, including missing parents. Fails if the path already exists.",
				func(ctx context.Context, in pathArgs) (any, error) {
					if err := ws.CreateDirectory(in.Path); err != nil {
						return nil, existsError(in.Path, err)
					}
					reporter.Report("Created directory", in.Path)
					return "Successfully created directory: " + in.Path, nil
				}),

			NewTool("create_file",
				"Creates a file with the given content. Fails if the file already exists.",
				func(ctx context.Context, in createFileArgs) (any, error) {
					if err := ws.CreateFile(in.Path, in.Content); err != nil {
						return nil, existsError(in.Path, err)
					}
					reporter.Report("Wrote file", in.Path)
					return "Successfully created file: " + in.Path, nil
				}),
		}
	})
}

func existsError(path string, err error) error {
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("path '%s' already exists", path)
	}
	return err
}

type commandArgs struct {
	Command string `json:"command" desc:"Shell command line to execute."`
}

// ShellTools exposes run_command. Every command is confirmed with the user
// before it runs.
func ShellTools(ws *Workspace, confirmer Confirmer, reporter Reporter) Toolset {
	reporter = reporterOrNop(reporter)

	return ToolsetFunc(func() []Tool {
		return []Tool{
			NewTool("run_command",
				"Runs a shell command and returns its standard output and standard error. "+
					"Use it to execute any command line utility.",
				func(ctx context.Context, in commandArgs) (any, error) {
					if !confirmer.Confirm(ctx, fmt.Sprintf("Run command '%s'?", in.Command)) {
						return "Aborted by user. Command not executed.", nil
					}
					reporter.Report("Running command", in.Command)

					res, err := ws.ExecCommand(ctx, in.Command, DefaultCommandTimeout)
					if err != nil {
						return nil, err
					}
					if res.TimedOut {
						return nil, fmt.Errorf("command timed out after %s", DefaultCommandTimeout)
					}
					return TruncateToolOutput(formatExecResult(res), "run_command"), nil
				}),
		}
	})
}

func formatExecResult(res *ExecResult) string {
	stdout := strings.TrimSpace(res.Stdout)
	stderr := strings.TrimSpace(res.Stderr)
	switch {
	case res.ExitCode != 0:
		return fmt.Sprintf("Command failed with exit code %d.\nSTDOUT:\n%s\nSTDERR:\n%s", res.ExitCode, stdout, stderr)
	case stdout != "":
		return "STDOUT:\n" + stdout
	case stderr != "":
		return "STDERR:\n" + stderr
	default:
		return "Command executed successfully with no output."
	}
}

type historyArgs struct {
	Limit int `json:"limit" default:"10" desc:"Number of most recent commits to return."`
}

type commitArgs struct {
	CommitHash string `json:"commit_hash" desc:"Hash of the commit to show."`
}

// GitTools exposes read-only history of the workspace repository.
func GitTools(ws *Workspace, reporter Reporter) Toolset {
	reporter = reporterOrNop(reporter)

	return ToolsetFunc(func() []Tool {
		return []Tool{
			NewTool("get_git_history", "Returns the most recent commits of the project, one per line.",
				func(ctx context.Context, in historyArgs) (any, error) {
					log, err := ws.GitLog(ctx, in.Limit)
					if err != nil {
						return nil, err
					}
					reporter.Report("Getting git history", fmt.Sprintf("last %d commits", in.Limit))
					return TruncateToolOutput(log, "get_git_history"), nil
				}),

			NewTool("get_git_commit", "Returns the details and changes of a commit.",
				func(ctx context.Context, in commitArgs) (any, error) {
					show, err := ws.GitShow(ctx, in.CommitHash)
					if err != nil {
						return nil, err
					}
					reporter.Report("Reading commit", in.CommitHash)
					return TruncateToolOutput(show, "get_git_commit"), nil
				}),
		}
	})
}

type readmeArgs struct {
	Content string `json:"content" desc:"Full markdown content of the README."`
}

// ReadmeFile is the file written by write_readme.
const ReadmeFile = "README.md"

// ReadmeTools exposes write_readme. Overwriting an existing README asks the
// user first.
func ReadmeTools(ws *Workspace, confirmer Confirmer, reporter Reporter) Toolset {
	reporter = reporterOrNop(reporter)

	return ToolsetFunc(func() []Tool {
		return []Tool{
			NewTool("write_readme",
				"Writes markdown content to README.md in the project directory. "+
					"Asks for confirmation before overwriting an existing README.md.",
				func(ctx context.Context, in readmeArgs) (any, error) {
					path := filepath.Join(ws.Root(), ReadmeFile)
					if ws.Exists(ReadmeFile) &&
						!confirmer.Confirm(ctx, fmt.Sprintf("'%s' already exists. Overwrite?", path)) {
						return "Aborted by user. README.md was not overwritten.", nil
					}
					if err := ws.WriteFile(ReadmeFile, in.Content); err != nil {
						return nil, err
					}
					reporter.Report("Successfully wrote README.md to", path)
					return "Successfully wrote README.md to " + path, nil
				}),
		}
	})
}

// SummarizeFunc produces a short summary of a file or directory.
type SummarizeFunc func(ctx context.Context, path string) (string, error)

// SummarizeTool exposes summarize_path backed by fn.
func SummarizeTool(fn SummarizeFunc, reporter Reporter) Toolset {
	reporter = reporterOrNop(reporter)

	return ToolsetFunc(func() []Tool {
		return []Tool{
			NewTool("summarize_path",
				"Gives a quick summary of a file or an overview of a directory without reading it in full.",
				func(ctx context.Context, in pathArgs) (any, error) {
					reporter.Report("Summarizing", in.Path)
					return fn(ctx, in.Path)
				}),
		}
	})
}

package agentloop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// FileTruncatedMarker is appended to file contents cut at the read limit.
const FileTruncatedMarker = "\n... (file content truncated)"

// ExecResult holds the outcome of a shell command.
type ExecResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Entry is one item of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Workspace performs the file, shell and git operations behind the built-in
// toolsets. Relative paths resolve against the workspace root.
type Workspace struct {
	root string
}

// NewWorkspace returns a workspace rooted at root, or at the process working
// directory when root is empty.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("workspace: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

func (w *Workspace) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}

// ReadFile returns at most limit characters of the file, followed by
// FileTruncatedMarker when the file is longer. A limit <= 0 reads everything.
func (w *Workspace) ReadFile(path string, limit int) (string, error) {
	data, err := os.ReadFile(w.resolve(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if limit <= 0 {
		return string(data), nil
	}
	if head, more := truncateRunes(string(data), limit); more {
		return head + FileTruncatedMarker, nil
	}
	return string(data), nil
}

// Head returns at most limit characters from the start of a file and
// whether the file holds more than that.
func (w *Workspace) Head(path string, limit int) (string, bool, error) {
	f, err := os.Open(w.resolve(path))
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	// limit runes take at most limit*UTFMax bytes; one more byte proves there is more.
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)*utf8.UTFMax+1))
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	head, more := truncateRunes(string(data), limit)
	return head, more, nil
}

// truncateRunes cuts s after limit runes without splitting a multibyte
// character.
func truncateRunes(s string, limit int) (string, bool) {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// Stat returns the file info of path.
func (w *Workspace) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(w.resolve(path))
}

// Exists reports whether path exists.
func (w *Workspace) Exists(path string) bool {
	_, err := os.Stat(w.resolve(path))
	return err == nil
}

// WriteFile creates or replaces a file, creating parent directories.
func (w *Workspace) WriteFile(path, content string) error {
	resolved := w.resolve(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CreateFile writes a new file. It fails when the path already exists.
func (w *Workspace) CreateFile(path, content string) error {
	if w.Exists(path) {
		return fmt.Errorf("create %s: %w", path, fs.ErrExist)
	}
	return w.WriteFile(path, content)
}

// CreateDirectory creates a directory and its parents. It fails when the
// path already exists.
func (w *Workspace) CreateDirectory(path string) error {
	if w.Exists(path) {
		return fmt.Errorf("create %s: %w", path, fs.ErrExist)
	}
	if err := os.MkdirAll(w.resolve(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

// List returns the entries of a directory sorted by name.
func (w *Workspace) List(path string) ([]Entry, error) {
	entries, err := os.ReadDir(w.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// sensitiveEnvSuffixes are stripped from the environment of spawned commands.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

func commandEnvironment() []string {
	var env []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(name)
		sensitive := false
		for _, suffix := range sensitiveEnvSuffixes {
			if strings.HasSuffix(upper, suffix) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			env = append(env, kv)
		}
	}
	return env
}

func shellCommand(ctx context.Context, dir, command string) *exec.Cmd {
	shell, flag := "/bin/sh", "-c"
	if _, err := exec.LookPath("bash"); err == nil {
		shell = "bash"
	}
	cmd := exec.CommandContext(ctx, shell, flag, command)
	cmd.Dir = dir
	cmd.Env = commandEnvironment()
	return cmd
}

// ExecCommand runs command through the shell in the workspace root and
// captures its output. A timeout kills the whole process group and is
// reported through ExecResult.TimedOut rather than as an error. Non-zero
// exit codes are not errors either.
func (w *Workspace) ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := shellCommand(runCtx, w.root, command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, fmt.Errorf("exec %q: %w", command, err)
}

// Attach runs command with the given standard streams, for commands the user
// watches directly. It returns the exit code.
func (w *Workspace) Attach(ctx context.Context, command string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cmd := shellCommand(ctx, w.root, command)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("exec %q: %w", command, err)
	}
}

func (w *Workspace) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = w.root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return string(out), nil
}

// IsGitRepository reports whether the root is inside a git work tree.
func (w *Workspace) IsGitRepository(ctx context.Context) bool {
	out, err := w.git(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// GitLog returns one line per commit, newest first.
func (w *Workspace) GitLog(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return w.git(ctx, "log", fmt.Sprintf("-n%d", limit), "--pretty=format:%h - %an, %ar : %s")
}

// GitShow returns the patch and metadata of a single commit.
func (w *Workspace) GitShow(ctx context.Context, hash string) (string, error) {
	if strings.HasPrefix(hash, "-") {
		return "", fmt.Errorf("invalid commit hash %q", hash)
	}
	return w.git(ctx, "show", hash)
}

// Describe returns an environment block suitable for a system prompt.
func (w *Workspace) Describe(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", w.root)
	isRepo := w.IsGitRepository(ctx)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isRepo)
	if isRepo {
		if branch, err := w.git(ctx, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
			fmt.Fprintf(&sb, "Git branch: %s\n", strings.TrimSpace(branch))
		}
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</environment>")
	return sb.String()
}

// Package console renders assistant output in the terminal and reads user
// input. A Console satisfies the Renderer, LineReader, Confirmer and
// Reporter interfaces of agentloop.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultWidth = 80

type styles struct {
	success lipgloss.Style
	detail  lipgloss.Style
	title   lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	label   lipgloss.Style
	code    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		success: r.NewStyle().Foreground(lipgloss.Color("2")),
		detail:  r.NewStyle().Faint(true),
		title:   r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		err:     r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		label:   r.NewStyle().Bold(true),
		code:    r.NewStyle().Foreground(lipgloss.Color("6")).PaddingLeft(2),
	}
}

type lineResult struct {
	line string
	err  error
}

// Console writes styled output to out and diagnostics to errOut, and reads
// lines from in.
type Console struct {
	out    io.Writer
	errOut io.Writer
	styles styles
	md     *glamour.TermRenderer
	width  int

	// reads are issued one at a time; a read abandoned on cancellation is
	// picked up by the next ReadLine.
	readMu  sync.Mutex
	reader  *bufio.Reader
	pending chan lineResult
}

// Option configures a Console.
type Option func(*Console)

// WithWidth sets the word-wrap width for markdown.
func WithWidth(width int) Option {
	return func(c *Console) {
		if width > 0 {
			c.width = width
		}
	}
}

// New returns a console over the given streams. Colors and markdown styling
// are enabled only when out is a terminal.
func New(in io.Reader, out, errOut io.Writer, opts ...Option) *Console {
	c := &Console{
		out:    out,
		errOut: errOut,
		reader: bufio.NewReader(in),
		width:  defaultWidth,
	}
	tty := false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			c.width = w
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	c.styles = newStyles(lipgloss.NewRenderer(out))

	style := glamour.WithStandardStyle("notty")
	if tty {
		style = glamour.WithAutoStyle()
	}
	if md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(c.width)); err == nil {
		c.md = md
	}
	return c
}

// Stdio returns a console over the process standard streams.
func Stdio() *Console {
	return New(os.Stdin, os.Stdout, os.Stderr)
}

// Markdown renders text as terminal markdown. Unrenderable text is printed
// as is.
func (c *Console) Markdown(text string) {
	if c.md != nil {
		if rendered, err := c.md.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// Println writes plain text.
func (c *Console) Println(text string) {
	fmt.Fprintln(c.out, text)
}

// Title writes a highlighted status line.
func (c *Console) Title(text string) {
	fmt.Fprintln(c.out, c.styles.title.Render(text))
}

// Success writes a confirmation line.
func (c *Console) Success(text string) {
	fmt.Fprintln(c.out, c.styles.success.Bold(true).Render(text))
}

// Warn writes a warning line.
func (c *Console) Warn(text string) {
	fmt.Fprintln(c.out, c.styles.warn.Render(text))
}

// Error writes an error line to the diagnostic stream.
func (c *Console) Error(text string) {
	fmt.Fprintln(c.errOut, c.styles.err.Render(text))
}

// Section writes a bold label followed by an indented body.
func (c *Console) Section(label, body string) {
	fmt.Fprintf(c.out, "%s\n  %s\n\n", c.styles.label.Render(label), body)
}

// Code writes an indented, highlighted command line.
func (c *Console) Code(text string) {
	fmt.Fprintln(c.out, c.styles.code.Render(text))
}

// Report writes a "✓ action: detail" line for a completed tool action.
func (c *Console) Report(action, detail string) {
	fmt.Fprintf(c.out, "%s %s\n", c.styles.success.Render("✓ "+action+":"), detail)
}

// ReadLine prints prompt and returns the next input line without its line
// terminator. It returns ctx.Err() when ctx is done first and io.EOF once
// input is exhausted.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}

	if c.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := c.reader.ReadString('\n')
			if err != nil && line != "" {
				err = nil
			}
			ch <- lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
		}()
		c.pending = ch
	}

	select {
	case res := <-c.pending:
		c.pending = nil
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Confirm asks a yes/no question. Only an explicit "y" or "yes" counts as
// consent; errors and interrupts answer no.
func (c *Console) Confirm(ctx context.Context, question string) bool {
	answer, err := c.ReadLine(ctx, question+" [y/N] ")
	if err != nil {
		fmt.Fprintln(c.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

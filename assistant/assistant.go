// Package assistant implements the command line assistants on top of the
// agent loop: chat, explain, do, summarize, man, boilerplate and readmify.
//
// Each assistant builds a fresh agent with its own system prompt, tools and
// iteration budget, runs it against the shared gateway and prints the
// outcome through a UI.
package assistant

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/tibagni/cli-assistant/agentloop"
)

// Iteration budgets of the assistants.
const (
	ChatIterations        = 10000
	BoilerplateIterations = 10
	ReadmifyIterations    = 25
	SingleShotIterations  = 1
)

// UI is everything the assistants need from the terminal.
// *console.Console satisfies it.
type UI interface {
	agentloop.Renderer
	agentloop.LineReader
	agentloop.Confirmer
	agentloop.Reporter

	Println(text string)
	Title(text string)
	Success(text string)
	Warn(text string)
	Section(label, body string)
	Code(text string)
}

// ManPageFunc returns the rendered manual page of a command, or an empty
// string when there is none.
type ManPageFunc func(ctx context.Context, page string) string

// Assistant runs the assistants against one gateway and UI.
type Assistant struct {
	gateway agentloop.Gateway
	base    agentloop.Config
	ui      UI
	logger  zerolog.Logger
	workdir string
	manPage ManPageFunc

	stdin          io.Reader
	stdout, stderr io.Writer
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger handed to every agent.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// WithWorkdir roots the workspace tools at dir instead of the process
// working directory.
func WithWorkdir(dir string) Option {
	return func(a *Assistant) {
		a.workdir = dir
	}
}

// WithManPage replaces the man page lookup.
func WithManPage(fn ManPageFunc) Option {
	return func(a *Assistant) {
		a.manPage = fn
	}
}

// WithStreams sets the standard streams attached to commands run by do.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(a *Assistant) {
		a.stdin = stdin
		a.stdout = stdout
		a.stderr = stderr
	}
}

// New returns an Assistant. cfg carries the model and sampling settings;
// its SystemPrompt is ignored since every assistant brings its own.
func New(gateway agentloop.Gateway, cfg agentloop.Config, ui UI, opts ...Option) (*Assistant, error) {
	if gateway == nil {
		return nil, configError("assistant requires a gateway")
	}
	if ui == nil {
		return nil, configError("assistant requires a UI")
	}
	if cfg.Model == "" {
		return nil, configError("assistant requires a model")
	}
	a := &Assistant{
		gateway: gateway,
		base:    cfg,
		ui:      ui,
		logger:  zerolog.Nop(),
		manPage: SystemManPage,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Assistant) workspace() (*agentloop.Workspace, error) {
	return agentloop.NewWorkspace(a.workdir)
}

// newAgent builds an agent with systemPrompt over an environment made of opts.
func (a *Assistant) newAgent(name, systemPrompt string, opts ...agentloop.EnvironmentOption) (*agentloop.Agent, error) {
	env, err := agentloop.NewEnvironment(opts...)
	if err != nil {
		return nil, err
	}
	cfg := a.base
	cfg.SystemPrompt = systemPrompt
	logger := a.logger.With().Str("assistant", name).Logger()
	return agentloop.NewAgent(a.gateway, env, cfg, agentloop.WithLogger(logger))
}

// singleShot runs task once without tools and returns the answer text.
func (a *Assistant) singleShot(ctx context.Context, name, systemPrompt, task string) (string, error) {
	agent, err := a.newAgent(name, systemPrompt)
	if err != nil {
		return "", err
	}
	result, err := agent.Run(ctx, task, SingleShotIterations)
	if err != nil {
		return "", err
	}
	return result.Content(), nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", agentloop.ErrInvalidConfiguration, msg)
}

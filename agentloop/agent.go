package agentloop

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tibagni/cli-assistant/unifiedllm"
)

// State is the position of an agent in its run loop.
type State string

const (
	StateAwaitingModel        State = "awaiting_model"
	StateDispatchingTools     State = "dispatching_tools"
	StateAwaitingContinuation State = "awaiting_continuation"
	StateDone                 State = "done"
)

// Gateway completes a transcript into exactly one assistant message.
// *unifiedllm.Client satisfies it.
type Gateway interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
}

// Config holds the per-agent model settings.
type Config struct {
	Model        string // "provider:model" or a bare model id
	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int
}

// Result is the decoded form of the last model turn of a run.
type Result struct {
	Message unifiedllm.Message

	// Interrupted is set when the iteration budget ran out before the
	// environment ended the conversation.
	Interrupted bool

	Iterations int
	Usage      unifiedllm.Usage
}

// Content returns the text of the assistant message.
func (r *Result) Content() string {
	return r.Message.Content
}

// ToolCalls returns the tool calls of the assistant message, never nil.
func (r *Result) ToolCalls() []unifiedllm.ToolCall {
	if r.Message.ToolCalls == nil {
		return []unifiedllm.ToolCall{}
	}
	return r.Message.ToolCalls
}

// Agent drives a model through rounds of tool calls until the environment
// ends the conversation or the iteration budget is spent. An Agent owns its
// transcript; Run calls are serialized.
type Agent struct {
	id         string
	gateway    Gateway
	env        Environment
	cfg        Config
	transcript *Transcript
	logger     zerolog.Logger

	runMu        sync.Mutex
	stateMu      sync.RWMutex
	state        State
	transcriptMu sync.RWMutex
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// NewAgent returns an agent whose transcript is seeded with the configured
// system prompt.
func NewAgent(gateway Gateway, env Environment, cfg Config, opts ...Option) (*Agent, error) {
	if gateway == nil {
		return nil, configError("agent requires a gateway")
	}
	if env == nil {
		return nil, configError("agent requires an environment")
	}
	if cfg.Model == "" {
		return nil, configError("agent requires a model")
	}

	a := &Agent{
		id:         uuid.New().String(),
		gateway:    gateway,
		env:        env,
		cfg:        cfg,
		transcript: NewTranscript(cfg.SystemPrompt),
		logger:     zerolog.Nop(),
		state:      StateDone, // no run in progress
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("agent", a.id[:8]).Logger()
	return a, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// State returns the current loop state.
func (a *Agent) State() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
	a.logger.Debug().Str("state", string(s)).Msg("transition")
}

// Transcript returns a snapshot of the conversation so far. It may be
// called while a run is in progress, including from tools.
func (a *Agent) Transcript() []unifiedllm.Message {
	a.transcriptMu.RLock()
	defer a.transcriptMu.RUnlock()
	return a.transcript.Messages()
}

func (a *Agent) record(msg unifiedllm.Message) {
	a.transcriptMu.Lock()
	defer a.transcriptMu.Unlock()
	a.transcript.Append(msg)
}

// RunOption configures a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	responseFormat *unifiedllm.ResponseFormat
}

// WithResponseFormat requests structured output for every turn of the run.
func WithResponseFormat(rf *unifiedllm.ResponseFormat) RunOption {
	return func(c *runConfig) {
		c.responseFormat = rf
	}
}

// Run appends task as a user message and loops until the environment ends
// the conversation or maxIterations model requests have been made. In the
// latter case the returned result is marked Interrupted.
//
// Tool failures never escape Run; they are reported to the model as tool
// messages. Gateway errors and context cancellation are returned.
func (a *Agent) Run(ctx context.Context, task string, maxIterations int, opts ...RunOption) (*Result, error) {
	if maxIterations <= 0 {
		return nil, configError("max iterations must be positive, got %d", maxIterations)
	}

	rc := runConfig{}
	for _, opt := range opts {
		opt(&rc)
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()
	defer a.setState(StateDone)

	a.record(unifiedllm.UserMessage(task))

	var usage unifiedllm.Usage
	for iteration := 1; ; iteration++ {
		a.setState(StateAwaitingModel)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.gateway.Complete(ctx, a.request(rc))
		if err != nil {
			return nil, err
		}

		msg := resp.Message
		msg.Role = unifiedllm.RoleAssistant
		a.record(msg)
		usage = usage.Add(resp.Usage)
		result := &Result{Message: msg.Clone(), Iterations: iteration, Usage: usage}

		if msg.HasToolCalls() {
			a.setState(StateDispatchingTools)
			for _, call := range msg.ToolCalls {
				a.record(a.dispatch(ctx, call))
			}
		} else {
			a.setState(StateAwaitingContinuation)
			next, ok := a.env.OnTurnComplete(ctx, result)
			if !ok || next == "" {
				return result, nil
			}
			a.record(unifiedllm.UserMessage(next))
		}

		if iteration >= maxIterations {
			result.Interrupted = true
			a.logger.Warn().Int("max_iterations", maxIterations).Msg("iteration budget exhausted")
			return result, nil
		}
	}
}

func (a *Agent) request(rc runConfig) unifiedllm.Request {
	return unifiedllm.Request{
		Model:          a.cfg.Model,
		Messages:       a.Transcript(),
		Tools:          a.env.ToolSchemas(),
		ResponseFormat: rc.responseFormat,
		Temperature:    a.cfg.Temperature,
		MaxTokens:      a.cfg.MaxTokens,
	}
}

// dispatch runs one tool call and returns the tool message answering it.
func (a *Agent) dispatch(ctx context.Context, call unifiedllm.ToolCall) unifiedllm.Message {
	log := a.logger.With().Str("tool", call.Function.Name).Str("call_id", call.ID).Logger()

	args, err := ParseToolArguments(call.Function.Arguments)
	if err == nil {
		var out string
		out, err = a.env.Invoke(ctx, call.Function.Name, args)
		if err == nil {
			log.Debug().Int("result_len", len(out)).Msg("tool call succeeded")
			return unifiedllm.ToolResultMessage(call.ID, out)
		}
	}

	log.Debug().Err(err).Msg("tool call failed")
	return unifiedllm.ToolResultMessage(call.ID, "Error: "+err.Error())
}

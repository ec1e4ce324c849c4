package agentloop

import (
	"context"

	"github.com/tibagni/cli-assistant/unifiedllm"
)

// Environment owns the tools of one agent session and decides what happens
// when the model stops calling tools.
type Environment interface {
	// ToolSchemas returns the tools offered to the model, in a stable order.
	ToolSchemas() []unifiedllm.ToolSchema

	// Invoke runs the named tool. Unknown names fail with ErrToolNotFound.
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)

	// OnTurnComplete is called after a model turn without tool calls. A
	// non-empty next instruction with ok=true continues the conversation.
	OnTurnComplete(ctx context.Context, result *Result) (next string, ok bool)
}

// Toolset is a group of tools contributed to an environment. Only tools
// returned from Tools are ever exposed to the model.
type Toolset interface {
	Tools() []Tool
}

// ToolsetFunc adapts a function to a Toolset.
type ToolsetFunc func() []Tool

func (f ToolsetFunc) Tools() []Tool { return f() }

// Continuation decides whether a conversation continues after a turn
// without tool calls.
type Continuation interface {
	OnTurnComplete(ctx context.Context, result *Result) (next string, ok bool)
}

// ContinuationFunc adapts a function to a Continuation.
type ContinuationFunc func(ctx context.Context, result *Result) (string, bool)

func (f ContinuationFunc) OnTurnComplete(ctx context.Context, result *Result) (string, bool) {
	return f(ctx, result)
}

// ToolEnvironment is an Environment composed from toolsets and an optional
// continuation policy. Without a continuation, the first turn without tool
// calls ends the run.
type ToolEnvironment struct {
	registry     *Registry
	continuation Continuation
}

// EnvironmentOption configures a ToolEnvironment.
type EnvironmentOption func(*environmentConfig)

type environmentConfig struct {
	tools        []Tool
	continuation Continuation
}

// WithToolsets adds the tools of each toolset, in order.
func WithToolsets(sets ...Toolset) EnvironmentOption {
	return func(c *environmentConfig) {
		for _, s := range sets {
			c.tools = append(c.tools, s.Tools()...)
		}
	}
}

// WithTools adds individual tools.
func WithTools(tools ...Tool) EnvironmentOption {
	return func(c *environmentConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithContinuation sets the policy applied after turns without tool calls.
func WithContinuation(cont Continuation) EnvironmentOption {
	return func(c *environmentConfig) {
		c.continuation = cont
	}
}

// NewEnvironment builds the tool registry once. Registration errors, such as
// a tool without a description, are returned here and never at call time.
func NewEnvironment(opts ...EnvironmentOption) (*ToolEnvironment, error) {
	cfg := &environmentConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, err := NewRegistry(cfg.tools...)
	if err != nil {
		return nil, err
	}
	return &ToolEnvironment{registry: registry, continuation: cfg.continuation}, nil
}

// Registry exposes the environment's read-only tool registry.
func (e *ToolEnvironment) Registry() *Registry {
	return e.registry
}

func (e *ToolEnvironment) ToolSchemas() []unifiedllm.ToolSchema {
	return e.registry.Schemas()
}

func (e *ToolEnvironment) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	return e.registry.Invoke(ctx, name, args)
}

func (e *ToolEnvironment) OnTurnComplete(ctx context.Context, result *Result) (string, bool) {
	if e.continuation == nil {
		return "", false
	}
	return e.continuation.OnTurnComplete(ctx, result)
}

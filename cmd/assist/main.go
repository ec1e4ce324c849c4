// Command assist is an AI assistant for the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tibagni/cli-assistant/agentloop"
	"github.com/tibagni/cli-assistant/assistant"
	"github.com/tibagni/cli-assistant/config"
	"github.com/tibagni/cli-assistant/console"
	"github.com/tibagni/cli-assistant/unifiedllm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(buildAssistant).ExecuteContext(ctx)
	stop()
	if err != nil {
		console.Stdio().Error("Error: " + err.Error())
		os.Exit(1)
	}
}

// runner is the part of *assistant.Assistant the commands drive.
type runner interface {
	Chat(ctx context.Context) error
	Explain(ctx context.Context, command string) error
	Do(ctx context.Context, description string) error
	Summarize(ctx context.Context, paths []string) error
	Man(ctx context.Context, page string) error
	Boilerplate(ctx context.Context, description string) error
	Readmify(ctx context.Context, path string) error
}

type globalFlags struct {
	configPath string
	verbose    bool
}

// factory builds the runner for one invocation and a function releasing it.
type factory func(cmd *cobra.Command, flags *globalFlags) (runner, func() error, error)

func newRootCmd(build factory) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "assist",
		Short:         "An AI-powered command-line assistant to supercharge your terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: searched in the user config dir, ~/.cli-assistant and .)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug details to stderr")

	with := func(fn func(ctx context.Context, r runner, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			r, release, err := build(cmd, flags)
			if err != nil {
				return err
			}
			defer release()
			return fn(cmd.Context(), r, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "boilerplate <description>",
			Short: "Generates project boilerplate from a description.",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, r runner, args []string) error {
				return r.Boilerplate(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "chat",
			Short: "Chat with an AI that can use your local shell and files.",
			Long: "Chat with an AI from the command line.\n" +
				"The AI can read and create files and run shell commands after you confirm them.",
			Args: cobra.NoArgs,
			RunE: with(func(ctx context.Context, r runner, _ []string) error {
				return r.Chat(ctx)
			}),
		},
		&cobra.Command{
			Use:   "do <prompt>",
			Short: "Run a shell command based on a natural language description.",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, r runner, args []string) error {
				return r.Do(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "explain <cmd>",
			Short: "Get a detailed explanation of any given shell command.",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, r runner, args []string) error {
				return r.Explain(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "man <page>",
			Short: "Summarizes a man page in simple terms, with examples.",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, r runner, args []string) error {
				return r.Man(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "readmify [path]",
			Short: "Generates a README.md file for a project directory.",
			Args:  cobra.MaximumNArgs(1),
			RunE: with(func(ctx context.Context, r runner, args []string) error {
				path := "."
				if len(args) == 1 {
					path = args[0]
				}
				return r.Readmify(ctx, path)
			}),
		},
		&cobra.Command{
			Use:   "summarize <path>...",
			Short: "Summarizes the content of files or directories.",
			Args:  cobra.MinimumNArgs(1),
			RunE: with(func(ctx context.Context, r runner, args []string) error {
				return r.Summarize(ctx, args)
			}),
		},
	)
	return root
}

func newLogger(cfg *config.Config, flags *globalFlags, cmd *cobra.Command) zerolog.Logger {
	level := cfg.Level()
	if flags.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func newGateway(cfg *config.Config, logger zerolog.Logger) (*unifiedllm.Client, error) {
	opts := []unifiedllm.GollmAdapterOption{unifiedllm.WithModel(cfg.Model)}
	if t := cfg.Gateway.Temperature; t != nil {
		opts = append(opts, unifiedllm.WithTemperature(*t))
	}
	if n := cfg.Gateway.MaxTokens; n != nil {
		opts = append(opts, unifiedllm.WithMaxTokens(*n))
	}
	adapter, err := unifiedllm.NewGollmAdapter(cfg.Provider, cfg.APIKey(cfg.Provider), opts...)
	if err != nil {
		return nil, err
	}

	policy := unifiedllm.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Gateway.MaxRetries
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying completion")
	}

	return unifiedllm.NewClient(
		unifiedllm.WithProvider(cfg.Provider, adapter),
		unifiedllm.WithDefaultProvider(cfg.Provider),
		unifiedllm.WithMiddleware(
			unifiedllm.RetryMiddleware(policy),
			unifiedllm.LoggingMiddleware(logger),
		),
	), nil
}

func buildAssistant(cmd *cobra.Command, flags *globalFlags) (runner, func() error, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg, flags, cmd)

	client, err := newGateway(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up %s: %w", cfg.Provider, err)
	}

	ui := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	a, err := assistant.New(client, agentloop.Config{
		Model:       cfg.ModelID(),
		Temperature: cfg.Gateway.Temperature,
		MaxTokens:   cfg.Gateway.MaxTokens,
	}, ui,
		assistant.WithLogger(logger),
		assistant.WithStreams(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return a, client.Close, nil
}

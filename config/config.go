// Package config loads the assistant configuration from a config file and
// ASSIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/tibagni/cli-assistant/agentloop"
)

const (
	AppName   = "cli-assistant"
	EnvPrefix = "ASSIST"
)

// Config is the assistant configuration.
type Config struct {
	Provider        string                    `mapstructure:"provider"`
	Model           string                    `mapstructure:"model"`
	ProviderConfigs map[string]ProviderConfig `mapstructure:"provider_configs"`
	Gateway         GatewayConfig             `mapstructure:"gateway"`
	LogLevel        string                    `mapstructure:"log_level"`
}

// ProviderConfig holds the credentials of one provider.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// GatewayConfig tunes model requests.
type GatewayConfig struct {
	MaxRetries  int      `mapstructure:"max_retries"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}

// SearchPaths returns the directories searched for config.{yaml,json,toml}
// when no explicit file is given, in priority order.
func SearchPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName))
	}
	return append(paths, ".")
}

// Load reads the configuration. With an empty path the SearchPaths are
// tried; a missing file is not an error and leaves defaults plus
// environment. The result is not validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
		v.SetConfigName("config")
	}

	v.SetDefault("provider", "")
	v.SetDefault("model", "")
	v.SetDefault("gateway.max_retries", 2)
	v.SetDefault("log_level", "warn")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{"gateway.temperature", "gateway.max_tokens"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings as
// agentloop.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var problems []string
	if c.Provider == "" {
		problems = append(problems, "provider is not set")
	}
	if c.Model == "" {
		problems = append(problems, "model is not set")
	}
	if c.Gateway.MaxRetries < 0 {
		problems = append(problems, "gateway.max_retries must not be negative")
	}
	if c.Gateway.MaxTokens != nil && *c.Gateway.MaxTokens <= 0 {
		problems = append(problems, "gateway.max_tokens must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", agentloop.ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// ModelID returns the "provider:model" id used to route requests.
func (c *Config) ModelID() string {
	return c.Provider + ":" + c.Model
}

// APIKey returns the configured key for provider, falling back to the
// conventional <PROVIDER>_API_KEY environment variable.
func (c *Config) APIKey(provider string) string {
	if pc, ok := c.ProviderConfigs[provider]; ok && pc.APIKey != "" {
		return pc.APIKey
	}
	return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
}

// Level returns the configured log level, or warn when it is invalid.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.WarnLevel
	}
	return level
}

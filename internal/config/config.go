// Package config loads CLI and agent configuration from config files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the settings consumed by the CLI, agent and tool server.
// The core versioning engine takes no configuration beyond store options.
type Config struct {
	Author          string `mapstructure:"author"`
	Backend         string `mapstructure:"backend"` // auto, openai, anthropic, ollama
	Model           string `mapstructure:"model"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OllamaHost      string `mapstructure:"ollama_host"`
	LogLevel        string `mapstructure:"log_level"`
}

// Load reads configuration from cfgFile if given, otherwise from
// promptvc.yaml in the working directory or $HOME/.promptvc/, plus
// PROMPTVC_-prefixed environment variables. A missing config file is not
// an error; the environment and defaults still apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("author", defaultAuthor())
	v.SetDefault("backend", "auto")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("PROMPTVC")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("promptvc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.promptvc")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile == "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if cfgFile != "" && !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Conventional environment variables win over nothing but lose to
	// explicit promptvc configuration.
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}

func defaultAuthor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "system"
}

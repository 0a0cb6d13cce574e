// Package config loads engine configuration from a YAML file and
// environment variables, with environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the chat engine.
type Config struct {
	Addr string `mapstructure:"addr"`

	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	Provider        string `mapstructure:"provider"` // "openai" or "anthropic"
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	ChatModel       string `mapstructure:"chat_model"`
	EmbedModel      string `mapstructure:"embed_model"`

	TavilyAPIKey string `mapstructure:"tavily_api_key"`

	DocumentDir string `mapstructure:"document_dir"`

	MaxMessages       int `mapstructure:"max_messages"`
	MaxToolIterations int `mapstructure:"max_tool_iterations"`
	ChunkSize         int `mapstructure:"chunk_size"`
	ChunkOverlap      int `mapstructure:"chunk_overlap"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	AuthToken string `mapstructure:"auth_token"`
}

// Load reads configuration from ./config.yaml (optional) and RIPPLECURVE_*
// environment variables. Environment variables override file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RIPPLECURVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "ripplecurve")
	v.SetDefault("provider", "openai")
	// secrets default empty so AutomaticEnv can see the keys during Unmarshal
	v.SetDefault("openai_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("tavily_api_key", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("chat_model", "") // empty selects the adapter's default
	v.SetDefault("embed_model", "text-embedding-3-small")
	v.SetDefault("document_dir", "uploads")
	v.SetDefault("max_messages", 10)
	v.SetDefault("max_tool_iterations", 5)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Validate checks required settings.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("config: openai_api_key is required")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("config: anthropic_api_key is required")
		}
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("config: openai_api_key is required for embeddings")
		}
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: chunk_overlap must be smaller than chunk_size")
	}
	return nil
}

// Hazards returns human-readable warnings for legal but dangerous settings.
// A non-positive max_messages makes summarization fire on every turn.
func (c *Config) Hazards() []string {
	var out []string
	if c.MaxMessages <= 0 {
		out = append(out, fmt.Sprintf("max_messages is %d: summarization will fire on every turn", c.MaxMessages))
	}
	if c.TavilyAPIKey == "" {
		out = append(out, "tavily_api_key is empty: web search calls will fail")
	}
	return out
}

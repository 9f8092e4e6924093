package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

var (
	_ core.AppConfig      = (*AppConfig)(nil)
	_ core.ProviderConfig = (*AppConfig)(nil)
)

type AppConfig struct {
	RuntimePath string `env:"-"`

	Provider string `env:"LLM_PROVIDER" envDefault:"openrouter"`
	Model    string `env:"LLM_MODEL" envDefault:"google/gemma-3-27b-it:free"`

	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey    string `env:"OPENROUTER_API_KEY"`
	OllamaAPIKey        string `env:"OLLAMA_API_KEY"`
	OllamaBaseURL       string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	CustomOpenAIBaseURL string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomOpenAIAPIKey  string `env:"CUSTOM_OPENAI_API_KEY"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`

	// Context Management
	ContextWindowSize int `env:"CONTEXT_WINDOW_SIZE" envDefault:"30"`
	MaxToolRounds     int `env:"MAX_TOOL_ROUNDS" envDefault:"25"`
	ToolParallelism   int `env:"TOOL_PARALLELISM" envDefault:"8"`

	ExtractionTimeout time.Duration `env:"EXTRACTION_TIMEOUT" envDefault:"5m"`
	MemoryCacheSize   int64         `env:"MEMORY_CACHE_SIZE" envDefault:"10000"`
}

// NewAppConfig loads <runtime>/.env, then parses the environment. Parse
// errors are fatal.
func NewAppConfig(ctx context.Context) *AppConfig {
	runtimePath := GetRuntimePath()
	if err := LoadEnvFile(runtimePath); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to load env file")
	}

	c, err := ParseAppConfig(runtimePath, env.Options{})
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func ParseAppConfig(runtimePath string, opts env.Options) (*AppConfig, error) {
	c := &AppConfig{RuntimePath: runtimePath}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "tuskmem.db")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp_config.json")
}

func (c AppConfig) GetProfilePath() string {
	return filepath.Join(c.RuntimePath, "profile.yaml")
}

func (c AppConfig) GetContextWindowSize() int {
	return c.ContextWindowSize
}

func (c AppConfig) IsTelegramSelected() bool {
	return c.EnableTelegram
}

func (c AppConfig) GetModel() string               { return c.Model }
func (c AppConfig) GetProvider() string            { return c.Provider }
func (c AppConfig) GetAnthropicAPIKey() string     { return c.AnthropicAPIKey }
func (c AppConfig) GetOpenAIAPIKey() string        { return c.OpenAIAPIKey }
func (c AppConfig) GetOpenRouterAPIKey() string    { return c.OpenRouterAPIKey }
func (c AppConfig) GetOllamaAPIKey() string        { return c.OllamaAPIKey }
func (c AppConfig) GetOllamaBaseURL() string       { return c.OllamaBaseURL }
func (c AppConfig) GetCustomOpenAIBaseURL() string { return c.CustomOpenAIBaseURL }
func (c AppConfig) GetCustomOpenAIAPIKey() string  { return c.CustomOpenAIAPIKey }

package core

import "time"

// ChatConfig is supplied by the caller for every turn and is not mutated by it.
type ChatConfig struct {
	UserID       string
	SystemPrompt string
	MemoryTarget string
	Delay        time.Duration
	MemoryTypes  []string
}

func (c ChatConfig) ExtractionParams() ExtractionParams {
	types := make([]string, len(c.MemoryTypes))
	copy(types, c.MemoryTypes)
	return ExtractionParams{
		UserID:      c.UserID,
		MemoryTypes: types,
		Target:      c.MemoryTarget,
	}
}

type AppConfig interface {
	GetRuntimePath() string
	GetDatabasePath() string
	GetMCPConfigPath() string
	GetProfilePath() string
	GetContextWindowSize() int
	IsTelegramSelected() bool
}

type ProviderConfig interface {
	GetModel() string
	GetProvider() string
	GetAnthropicAPIKey() string
	GetOpenAIAPIKey() string
	GetOpenRouterAPIKey() string
	GetOllamaAPIKey() string
	GetOllamaBaseURL() string
	GetCustomOpenAIBaseURL() string
	GetCustomOpenAIAPIKey() string
}

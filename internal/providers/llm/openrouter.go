package llm

import "github.com/sandevgo/tuskmem/internal/core"

func NewOpenRouter(apiKey, model string) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    "https://openrouter.ai/api",
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		ExtraHeaders: map[string]string{
			"HTTP-Referer": core.TuskRepositoryURL,
			"X-Title":      core.TuskName,
		},
	})
}

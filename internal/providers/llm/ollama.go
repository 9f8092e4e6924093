package llm

const defaultOllamaURL = "http://localhost:11434"

// NewOllama uses Ollama's OpenAI compatible endpoint.
func NewOllama(baseURL, apiKey, model string) *OpenAICompatible {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
	})
}

func NewCustomOpenAI(baseURL, apiKey, model string) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
	})
}

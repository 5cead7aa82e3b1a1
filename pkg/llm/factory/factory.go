package factory

import (
	"fmt"

	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/llm/ollama"
	"persona-rag-be/pkg/llm/openai"
)

// NewCompletionProvider selects a backend by name. "openai" covers any
// OpenAI-compatible endpoint (DeepSeek, Moonshot, Hermes) via baseURL.
func NewCompletionProvider(backend, modelName, baseURL, apiKey string) (llm.CompletionProvider, error) {
	switch backend {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai", "deepseek", "moonshot", "hermes":
		return openai.NewOpenAIProvider(baseURL, apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported completion backend: %s", backend)
	}
}

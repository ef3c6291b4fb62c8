package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/regdiff/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:       modelConfig.Provider,
		Model:          modelConfig.Model,
		APIKey:         modelConfig.APIKey,
		BaseURL:        modelConfig.BaseURL,
		Timeout:        modelConfig.Timeout,
		StrictEvidence: modelConfig.StrictEvidence,
		MaxTokens:      modelConfig.MaxTokens,
	}
}

// EmbeddingConfigFromModel converts model.EmbeddingConfig to llm.Config
func EmbeddingConfigFromModel(modelConfig model.EmbeddingConfig) Config {
	return Config{
		Provider: modelConfig.Provider,
		Model:    modelConfig.Model,
		APIKey:   modelConfig.APIKey,
		BaseURL:  modelConfig.BaseURL,
		Timeout:  modelConfig.Timeout,
	}
}

// WithProxy returns a copy using the proxy settings of the HTTP config
func (c Config) WithProxy(httpConfig model.HTTPConfig) Config {
	c.HTTPProxy = httpConfig.HTTPProxy
	c.HTTPSProxy = httpConfig.HTTPSProxy
	c.NoProxy = httpConfig.NoProxy
	return c
}

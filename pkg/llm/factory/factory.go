package factory

import (
	"fmt"
	"strings"

	"elearning-chatbot-be/pkg/llm"
	"elearning-chatbot-be/pkg/llm/anthropic"
	"elearning-chatbot-be/pkg/llm/gemini"
	"elearning-chatbot-be/pkg/llm/huggingface"
	"elearning-chatbot-be/pkg/llm/ollama"
	"elearning-chatbot-be/pkg/llm/openai"
)

// Settings carries the credentials and endpoints for every provider.
// Model overrides the provider default when set.
type Settings struct {
	Model              string
	MaxTokens          int
	OllamaBaseURL      string
	HuggingFaceBaseURL string
	HuggingFaceAPIKey  string
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	AnthropicAPIKey    string
}

func NewLLMProvider(providerType string, s Settings) (llm.LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case "ollama":
		return ollama.NewOllamaProvider(s.OllamaBaseURL, s.Model), nil
	case "huggingface":
		if s.HuggingFaceAPIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires HUGGINGFACE_API_KEY")
		}
		return huggingface.NewHuggingFaceProvider(s.HuggingFaceAPIKey, s.HuggingFaceBaseURL, s.Model), nil
	case "gemini":
		if s.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires GOOGLE_GEMINI_API_KEY")
		}
		model := s.GeminiModel
		if s.Model != "" {
			model = s.Model
		}
		return gemini.NewGeminiProvider(s.GeminiAPIKey, model), nil
	case "openai":
		if s.OpenAIAPIKey == "" && s.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		return openai.NewOpenAIProvider(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Model), nil
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
		}
		return anthropic.NewAnthropicProvider(s.AnthropicAPIKey, s.Model, s.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// NewChain builds the providers in order and skips the ones that are not
// configured. A single usable provider is returned unwrapped.
func NewChain(names []string, s Settings) (llm.LLMProvider, []error) {
	var providers []llm.LLMProvider
	var skipped []error
	for _, name := range names {
		p, err := NewLLMProvider(name, s)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		return nil, append(skipped, fmt.Errorf("no usable LLM provider in %v", names))
	case 1:
		return providers[0], skipped
	default:
		return llm.NewFallbackProvider(providers...), skipped
	}
}

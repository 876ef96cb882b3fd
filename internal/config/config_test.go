package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback time.Duration
		expected time.Duration
	}{
		{"go duration", "500ms", time.Second, 500 * time.Millisecond},
		{"plain seconds", "2", time.Second, 2 * time.Second},
		{"fractional seconds", "0.5", time.Second, 500 * time.Millisecond},
		{"garbage uses fallback", "soon", 3 * time.Second, 3 * time.Second},
		{"empty uses fallback", "", 4 * time.Second, 4 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.expected, getEnvAsDuration("TEST_DURATION", tt.fallback))
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " gemini, ,ollama ,openai")
	assert.Equal(t, []string{"gemini", "ollama", "openai"}, getEnvAsList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", "")
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_LIST", []string{"x"}))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MAX_RETRIES", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("SESSION_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.MinInterval)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.Chatbot.MaxTopK)
	assert.LessOrEqual(t, cfg.Chatbot.PromptHistory, cfg.Chatbot.HistoryWindow)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.VectorStore.Backend = "memory"
	cfg.Chatbot.HistoryWindow = 5
	cfg.Chatbot.PromptHistory = 3
	assert.NoError(t, cfg.Validate())

	cfg.Chatbot.PromptHistory = 6
	cfg.LLM.MaxRetries = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PROMPT_HISTORY_TURNS")
	assert.Contains(t, err.Error(), "MAX_RETRIES")
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"elearning-chatbot-be/internal/bootstrap"
	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/internal/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{
			Name:               "elearning-chatbot-test",
			CorsAllowedOrigins: "http://localhost:5173",
			JwtSecret:          testSecret,
			AdminUserIDs:       []string{"admin"},
		},
		Ai: config.AIConfig{
			LLMProviders:       []string{"ollama"},
			EmbeddingProviders: []string{"hashing"},
			EmbeddingDimension: 32,
			EmbeddingWorkers:   2,
			OllamaBaseURL:      "http://127.0.0.1:1",
		},
		Chatbot: config.ChatbotConfig{
			HistoryWindow:    5,
			PromptHistory:    3,
			MaxMessageLength: 2000,
			EmbeddingTimeout: time.Second,
			SearchTimeout:    time.Second,
			StorageTimeout:   time.Second,
		},
		LLM:         config.LLMConfig{MaxRetries: 1},
		Session:     config.SessionConfig{TTL: time.Hour},
		VectorStore: config.VectorStoreConfig{Backend: "memory"},
	}
	c, err := bootstrap.NewContainer(nil, cfg, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return New(cfg, c)
}

func bearer(t *testing.T, userId string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.GetApp().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ollama", body["llm"])
	assert.Equal(t, "hashing", body["embedding"])
}

func TestRouteProtection(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"no token", http.MethodGet, "/api/chatbot/v1/sessions", "", "", http.StatusUnauthorized},
		{"user lists sessions", http.MethodGet, "/api/chatbot/v1/sessions", "", bearer(t, "u1"), http.StatusOK},
		{"user cannot read stats", http.MethodGet, "/api/knowledge/v1/stats", "", bearer(t, "u1"), http.StatusForbidden},
		{"admin reads stats", http.MethodGet, "/api/knowledge/v1/stats", "", bearer(t, "admin"), http.StatusOK},
		{"admin adds faq", http.MethodPost, "/api/knowledge/v1/faq", `{"question":"How do I pay?","answer":"VNPay"}`, bearer(t, "admin"), http.StatusCreated},
		{"unknown session context", http.MethodGet, "/api/chatbot/v1/sessions/nope/context", "", bearer(t, "u1"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			resp, err := srv.GetApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

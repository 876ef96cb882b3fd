package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Nats        NatsConfig
	Ai          AIConfig
	Chatbot     ChatbotConfig
	LLM         LLMConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	VectorStore VectorStoreConfig
	Lexicon     LexiconConfig
	Profile     ProfileConfig
}

type AppConfig struct {
	Name               string
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	JwtSecret          string
	AdminUserIDs       []string
	OtelEnabled        bool
}

type DatabaseConfig struct {
	Connection   string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type NatsConfig struct {
	Enabled bool
	URL     string
}

type AIConfig struct {
	// Ordered provider chains, first success wins.
	LLMProviders       []string
	LLMModel           string
	EmbeddingProviders []string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingWorkers   int

	OllamaBaseURL      string
	OllamaEmbedModel   string
	HuggingFaceBaseURL string
	HuggingFaceAPIKey  string
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	AnthropicAPIKey    string
	JinaAPIKey         string
	Temperature        float64
	MaxTokens          int
}

type ChatbotConfig struct {
	TopK              int
	MaxTopK           int
	DistanceThreshold float64
	HistoryWindow     int // M: turns loaded from storage
	PromptHistory     int // H: turns rendered into the prompt
	MaxMessageLength  int
	ContextTokenLimit int
	TokenEncoding     string

	EmbeddingTimeout time.Duration
	SearchTimeout    time.Duration
	StorageTimeout   time.Duration
	ProfileTimeout   time.Duration
}

type LLMConfig struct {
	MaxRetries       int
	RetryDelay       time.Duration
	UnavailableDelay time.Duration
	MinInterval      time.Duration
	RequestTimeout   time.Duration
}

type SessionConfig struct {
	TTL             time.Duration
	MaxTopics       int
	CleanupInterval time.Duration
}

type RateLimitConfig struct {
	PerMinute int
}

type VectorStoreConfig struct {
	Backend  string // "memory", "bolt" or "postgres"
	BoltPath string
}

type LexiconConfig struct {
	Path string
}

type ProfileConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Name:               getEnv("APP_NAME", "elearning-chatbot"),
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			AdminUserIDs:       getEnvAsList("ADMIN_USER_IDS", nil),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Database: DatabaseConfig{
			Connection:   getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Nats: NatsConfig{
			Enabled: getEnvAsBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Ai: AIConfig{
			LLMProviders:       getEnvAsList("LLM_PROVIDERS", []string{"gemini", "ollama"}),
			LLMModel:           getEnv("LLM_MODEL", ""),
			EmbeddingProviders: getEnvAsList("EMBEDDING_PROVIDERS", []string{"gemini", "hashing"}),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
			EmbeddingWorkers:   getEnvAsInt("EMBEDDING_WORKERS", 4),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:   getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", "https://router.huggingface.co/v1"),
			HuggingFaceAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
			GeminiAPIKey:       getEnv("GOOGLE_GEMINI_API_KEY", ""),
			GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
			AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			JinaAPIKey:         getEnv("JINA_API_KEY", ""),
			Temperature:        getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:          getEnvAsInt("LLM_MAX_TOKENS", 1024),
		},
		Chatbot: ChatbotConfig{
			TopK:              getEnvAsInt("RAG_TOP_K", 5),
			MaxTopK:           getEnvAsInt("RAG_MAX_TOP_K", 10),
			DistanceThreshold: getEnvAsFloat("RAG_DISTANCE_THRESHOLD", 0.65),
			HistoryWindow:     getEnvAsInt("MAX_CONTEXT_HISTORY", 5),
			PromptHistory:     getEnvAsInt("PROMPT_HISTORY_TURNS", 3),
			MaxMessageLength:  getEnvAsInt("MAX_MESSAGE_LENGTH", 2000),
			ContextTokenLimit: getEnvAsInt("CONTEXT_TOKEN_LIMIT", 1500),
			TokenEncoding:     getEnv("TOKEN_ENCODING", "cl100k_base"),
			EmbeddingTimeout:  getEnvAsDuration("EMBEDDING_TIMEOUT", 10*time.Second),
			SearchTimeout:     getEnvAsDuration("SEARCH_TIMEOUT", 5*time.Second),
			StorageTimeout:    getEnvAsDuration("STORAGE_TIMEOUT", 5*time.Second),
			ProfileTimeout:    getEnvAsDuration("PROFILE_TIMEOUT", 3*time.Second),
		},
		LLM: LLMConfig{
			MaxRetries:       getEnvAsInt("MAX_RETRIES", 3),
			RetryDelay:       getEnvAsDuration("RETRY_DELAY", 2*time.Second),
			UnavailableDelay: getEnvAsDuration("UNAVAILABLE_RETRY_DELAY", 3*time.Second),
			MinInterval:      getEnvAsDuration("LLM_MIN_INTERVAL", 500*time.Millisecond),
			RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			TTL:             getEnvAsDuration("SESSION_TIMEOUT", time.Hour),
			MaxTopics:       getEnvAsInt("SESSION_MAX_TOPICS", 10),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
		},
		VectorStore: VectorStoreConfig{
			Backend:  getEnv("VECTOR_STORE_BACKEND", "postgres"),
			BoltPath: getEnv("VECTOR_STORE_BOLT_PATH", "data/knowledge.db"),
		},
		Lexicon: LexiconConfig{
			Path: getEnv("LEXICON_PATH", ""),
		},
		Profile: ProfileConfig{
			BaseURL:  getEnv("PROFILE_SERVICE_URL", ""),
			APIKey:   getEnv("PROFILE_SERVICE_API_KEY", ""),
			CacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		},
	}
}

// Validate reports configuration that would make the server unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.VectorStore.Backend == "postgres" && c.Database.Connection == "" {
		errs = append(errs, errors.New("DB_CONNECTION_STRING is required for the postgres vector store"))
	}
	if c.Chatbot.PromptHistory > c.Chatbot.HistoryWindow {
		errs = append(errs, fmt.Errorf("PROMPT_HISTORY_TURNS (%d) exceeds MAX_CONTEXT_HISTORY (%d)", c.Chatbot.PromptHistory, c.Chatbot.HistoryWindow))
	}
	if c.LLM.MaxRetries < 1 {
		errs = append(errs, errors.New("MAX_RETRIES must be at least 1"))
	}
	if c.Ai.EmbeddingDimension <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSION must be positive"))
	}
	if len(c.Ai.LLMProviders) == 0 {
		errs = append(errs, errors.New("LLM_PROVIDERS is empty"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("500ms") or plain seconds ("2").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.ParseFloat(strValue, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

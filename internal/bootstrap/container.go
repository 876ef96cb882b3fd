package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/internal/constant"
	"elearning-chatbot-be/internal/controller"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/internal/repository/implementation"
	"elearning-chatbot-be/internal/repository/inmem"
	"elearning-chatbot-be/internal/repository/memory"
	"elearning-chatbot-be/internal/repository/rediscache"
	"elearning-chatbot-be/internal/repository/unitofwork"
	"elearning-chatbot-be/internal/service"
	"elearning-chatbot-be/pkg/embedding"
	"elearning-chatbot-be/pkg/embedding/jina"
	"elearning-chatbot-be/pkg/events"
	"elearning-chatbot-be/pkg/llm"
	"elearning-chatbot-be/pkg/llm/factory"
	pktNats "elearning-chatbot-be/pkg/nats"
	"elearning-chatbot-be/pkg/rag/history"
	"elearning-chatbot-be/pkg/rag/lexicon"
	"elearning-chatbot-be/pkg/rag/prompt"
	"elearning-chatbot-be/pkg/rag/response"
	"elearning-chatbot-be/pkg/rag/retriever"
	"elearning-chatbot-be/pkg/rag/session"
	"elearning-chatbot-be/pkg/ratelimit"
	"elearning-chatbot-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	ChatbotController   controller.IChatbotController
	KnowledgeController controller.IKnowledgeController

	// Services
	ChatbotService   service.IChatbotService
	KnowledgeService service.IKnowledgeService

	// Background services, started by the entrypoint
	ConsumerService service.IConsumerService
	CourseSync      *service.CourseSyncService // nil when NATS is disabled
	Janitor         *service.SessionJanitor

	// Infrastructure
	LLM          llm.LLMProvider
	Encoder      *embedding.Encoder
	VectorStore  vectorstore.Store
	SessionStore *session.Store
	Limiter      *ratelimit.SlidingWindow

	closers []func() error
}

// NewContainer wires the application. db may be nil, in which case sessions
// and turns live in process memory and the postgres vector store is refused.
func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Lexicon and text analysis
	lx, err := lexicon.Load(cfg.Lexicon.Path)
	if err != nil {
		return nil, err
	}
	analyzer := response.NewAnalyzer(lx)

	// 2. Embeddings and vector store
	c.Encoder = embedding.NewEncoder(
		newEmbeddingProvider(cfg, sysLogger),
		cfg.Ai.EmbeddingDimension,
		cfg.Ai.EmbeddingWorkers,
		cfg.Chatbot.EmbeddingTimeout,
	)
	sysLogger.Info("BOOTSTRAP", "Embedding provider ready", map[string]interface{}{
		"provider":  c.Encoder.ProviderName(),
		"dimension": c.Encoder.Dimension(),
	})

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}
	c.VectorStore, err = newVectorStore(cfg.VectorStore, uowFactory)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.VectorStore.Close)

	// 3. Language model
	provider, skipped := factory.NewChain(cfg.Ai.LLMProviders, factory.Settings{
		Model:              cfg.Ai.LLMModel,
		MaxTokens:          cfg.Ai.MaxTokens,
		OllamaBaseURL:      cfg.Ai.OllamaBaseURL,
		HuggingFaceBaseURL: cfg.Ai.HuggingFaceBaseURL,
		HuggingFaceAPIKey:  cfg.Ai.HuggingFaceAPIKey,
		GeminiAPIKey:       cfg.Ai.GeminiAPIKey,
		GeminiModel:        cfg.Ai.GeminiModel,
		OpenAIAPIKey:       cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL:      cfg.Ai.OpenAIBaseURL,
		AnthropicAPIKey:    cfg.Ai.AnthropicAPIKey,
	})
	for _, e := range skipped {
		sysLogger.Warn("BOOTSTRAP", "Skipping LLM provider", map[string]interface{}{"error": e})
	}
	if provider == nil {
		c.Close()
		return nil, errors.Join(skipped...)
	}
	c.LLM = llm.NewClient(provider, llm.RetryPolicy{
		MaxRetries:     cfg.LLM.MaxRetries,
		BaseDelay:      cfg.LLM.RetryDelay,
		FixedDelay:     cfg.LLM.UnavailableDelay,
		MaxBackoff:     30 * time.Second,
		AttemptTimeout: cfg.LLM.RequestTimeout,
	},
		llm.WithPacer(llm.NewPacer(cfg.LLM.MinInterval)),
		llm.WithLogger(sysLogger),
	)
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{"provider": c.LLM.Name()})

	// 4. Sessions and history
	var sessionRepo contract.ChatSessionRepository
	var turnRepo contract.ChatTurnRepository
	if db != nil {
		sessionRepo = implementation.NewChatSessionRepository(db)
		turnRepo = implementation.NewChatTurnRepository(db)
	} else {
		sysLogger.Warn("BOOTSTRAP", "No database configured, chat sessions are kept in memory", nil)
		sessionRepo = inmem.NewChatSessionRepository()
		turnRepo = inmem.NewChatTurnRepository()
	}

	c.SessionStore = session.NewStore(sessionRepo, c.newSessionCache(cfg), session.Config{
		MaxTopics:      cfg.Session.MaxTopics,
		StorageTimeout: cfg.Chatbot.StorageTimeout,
	}, sysLogger)
	c.Janitor = service.NewSessionJanitor(c.SessionStore, cfg.Session.TTL, cfg.Session.CleanupInterval, sysLogger)

	// 5. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	c.closers = append(c.closers, pubSub.Close)

	var eventPublisher events.Publisher = events.NopPublisher{}
	var natsSub *pktNats.Subscriber
	if cfg.Nats.Enabled {
		conn, err := pktNats.Connect(cfg.Nats.URL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS, domain events disabled", map[string]interface{}{"error": err})
		} else {
			eventPublisher = pktNats.NewPublisher(conn)
			natsSub = pktNats.NewSubscriber(conn, sysLogger)
			c.closers = append(c.closers, func() error {
				natsSub.Stop()
				conn.Close()
				return nil
			})
		}
	}

	// 6. Services
	c.KnowledgeService = service.NewKnowledgeService(
		vectorstore.NewIngestor(c.VectorStore, c.Encoder),
		pubSub,
		cfg.VectorStore.Backend,
		c.Encoder.ProviderName(),
		sysLogger,
	)
	c.ConsumerService = service.NewConsumerService(pubSub, constant.TopicKnowledgeUpsert, c.KnowledgeService, sysLogger)
	if natsSub != nil {
		c.CourseSync = service.NewCourseSyncService(natsSub, c.KnowledgeService, sysLogger)
	}

	c.Limiter = ratelimit.PerMinute(cfg.RateLimit.PerMinute)
	c.Janitor.WithRateLimiter(c.Limiter)
	c.ChatbotService = service.NewChatbotService(service.ChatbotDeps{
		Limiter:  c.Limiter,
		Sessions: c.SessionStore,
		Retriever: retriever.New(c.VectorStore, c.Encoder, retriever.Config{
			Collection:        constant.CollectionKnowledge,
			CourseCollection:  constant.CollectionCourses,
			FAQCollection:     constant.CollectionFAQ,
			DefaultTopK:       cfg.Chatbot.TopK,
			MaxTopK:           cfg.Chatbot.MaxTopK,
			DistanceThreshold: cfg.Chatbot.DistanceThreshold,
			EncodeTimeout:     cfg.Chatbot.EmbeddingTimeout,
			SearchTimeout:     cfg.Chatbot.SearchTimeout,
		}, sysLogger),
		History:   history.NewLoader(turnRepo, cfg.Chatbot.HistoryWindow, cfg.Chatbot.StorageTimeout, sysLogger),
		Turns:     turnRepo,
		Profiles:  service.NewProfileService(cfg.Profile.BaseURL, cfg.Profile.APIKey, cfg.Chatbot.ProfileTimeout, cfg.Profile.CacheTTL, sysLogger),
		Prompts:   prompt.NewBuilder(lx, cfg.Chatbot.PromptHistory, cfg.Chatbot.ContextTokenLimit, prompt.NewTokenCounter(cfg.Chatbot.TokenEncoding, sysLogger)),
		Model:     c.LLM,
		Analyzer:  analyzer,
		Publisher: eventPublisher,
		Logger:    sysLogger,
	}, service.ChatbotOptions{
		TopK:              cfg.Chatbot.TopK,
		DistanceThreshold: cfg.Chatbot.DistanceThreshold,
		MaxMessageLength:  cfg.Chatbot.MaxMessageLength,
		Temperature:       cfg.Ai.Temperature,
		MaxTokens:         cfg.Ai.MaxTokens,
		StorageTimeout:    cfg.Chatbot.StorageTimeout,
	})

	// 7. Controllers
	c.ChatbotController = controller.NewChatbotController(c.ChatbotService)
	c.KnowledgeController = controller.NewKnowledgeController(c.KnowledgeService)

	return c, nil
}

// Close releases infrastructure in reverse construction order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) newSessionCache(cfg *config.Config) session.Cache {
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := rdb.Ping(ctx).Err()
		if err == nil {
			c.closers = append(c.closers, rdb.Close)
			c.Logger.Info("BOOTSTRAP", "Session cache: redis", map[string]interface{}{"addr": cfg.Redis.Addr})
			return rediscache.NewSessionCache(rdb, cfg.Session.TTL)
		}
		c.Logger.Warn("BOOTSTRAP", "Failed to connect to Redis, using in-process session cache", map[string]interface{}{"error": err})
		_ = rdb.Close()
	}
	cache := memory.NewSessionCache(cfg.Session.TTL, cfg.Session.CleanupInterval)
	c.closers = append(c.closers, cache.Close)
	return cache
}

func newVectorStore(cfg config.VectorStoreConfig, uowFactory unitofwork.RepositoryFactory) (vectorstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	case "bolt":
		return vectorstore.NewBoltStore(cfg.BoltPath)
	case "postgres":
		if uowFactory == nil {
			return nil, fmt.Errorf("postgres vector store requires a database connection")
		}
		return vectorstore.NewPostgresStore(uowFactory), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.Backend)
	}
}

// newEmbeddingProvider builds the configured chain. Providers without
// credentials are skipped; the hashing provider always closes the chain so
// the service can start offline.
func newEmbeddingProvider(cfg *config.Config, log logger.ILogger) embedding.EmbeddingProvider {
	var providers []embedding.EmbeddingProvider
	hasHashing := false
	for _, name := range cfg.Ai.EmbeddingProviders {
		switch name {
		case "gemini":
			if cfg.Ai.GeminiAPIKey == "" {
				log.Warn("BOOTSTRAP", "Skipping gemini embeddings, GOOGLE_GEMINI_API_KEY is empty", nil)
				continue
			}
			providers = append(providers, embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension))
		case "ollama":
			providers = append(providers, embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbedModel))
		case "openai":
			if cfg.Ai.OpenAIAPIKey == "" && cfg.Ai.OpenAIBaseURL == "" {
				log.Warn("BOOTSTRAP", "Skipping openai embeddings, no key or base URL", nil)
				continue
			}
			providers = append(providers, embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.OpenAIBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension))
		case "jina":
			if cfg.Ai.JinaAPIKey == "" {
				log.Warn("BOOTSTRAP", "Skipping jina embeddings, JINA_API_KEY is empty", nil)
				continue
			}
			providers = append(providers, jina.NewJinaProvider(cfg.Ai.JinaAPIKey, cfg.Ai.EmbeddingModel))
		case "hashing":
			hasHashing = true
			providers = append(providers, embedding.NewHashingProvider(cfg.Ai.EmbeddingDimension))
		default:
			log.Warn("BOOTSTRAP", "Unknown embedding provider", map[string]interface{}{"provider": name})
		}
	}
	if !hasHashing {
		providers = append(providers, embedding.NewHashingProvider(cfg.Ai.EmbeddingDimension))
	}
	if len(providers) == 1 {
		return providers[0]
	}
	return embedding.NewFallbackProvider(providers...)
}

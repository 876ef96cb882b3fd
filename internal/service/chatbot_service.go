package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"elearning-chatbot-be/internal/constant"
	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/pkg/events"
	"elearning-chatbot-be/pkg/llm"
	"elearning-chatbot-be/pkg/rag/history"
	"elearning-chatbot-be/pkg/rag/prompt"
	"elearning-chatbot-be/pkg/rag/response"
	"elearning-chatbot-be/pkg/rag/retriever"
	"elearning-chatbot-be/pkg/rag/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request stages, recorded as span events.
const (
	stageReceived         = "RECEIVED"
	stageRateCheck        = "RATE_CHECK"
	stageSessionResolved  = "SESSION_RESOLVED"
	stageContextRetrieved = "CONTEXT_RETRIEVED"
	stageHistoryLoaded    = "HISTORY_LOADED"
	stagePromptBuilt      = "PROMPT_BUILT"
	stageModelCalled      = "MODEL_CALLED"
	stagePersisted        = "PERSISTED"
	stageResponded        = "RESPONDED"
)

type IChatbotService interface {
	// SendMessage always returns a well formed response; failures are encoded
	// in ErrorCode with a canned message and zero confidence.
	SendMessage(ctx context.Context, userId string, request *dto.SendMessageRequest) *dto.ChatResponse
	ListSessions(ctx context.Context, userId string) ([]*dto.SessionResponse, error)
	EndSession(ctx context.Context, userId, sessionId string) error
	GetSessionContext(ctx context.Context, userId, sessionId string) (*dto.SessionContextResponse, error)
	UpdatePreferences(ctx context.Context, userId, sessionId string, request *dto.UpdatePreferencesRequest) (*dto.SessionContextResponse, error)
	GetHistory(ctx context.Context, userId, sessionId string, limit int) ([]*dto.ChatTurnResponse, error)
	SuggestCourses(ctx context.Context, userId, query string, limit int) (*dto.SuggestionsResponse, error)
	GetLearningProfile(ctx context.Context, userId string) (*dto.LearningProfileResponse, error)
	// RemainingMessages is how many messages userId may still send in the
	// current window, or -1 when unlimited.
	RemainingMessages(userId string) int
}

// RateLimiter is satisfied by ratelimit.SlidingWindow.
type RateLimiter interface {
	Allow(key string) bool
	Remaining(key string) int
}

type ChatbotOptions struct {
	TopK              int
	DistanceThreshold float64
	MaxMessageLength  int
	Temperature       float64
	MaxTokens         int
	StorageTimeout    time.Duration
}

// ChatbotDeps are the collaborators of the chatbot service. Publisher and
// Profiles may be nil.
type ChatbotDeps struct {
	Limiter   RateLimiter
	Sessions  *session.Store
	Retriever *retriever.Retriever
	History   *history.Loader
	Turns     contract.ChatTurnRepository
	Profiles  IProfileService
	Prompts   *prompt.Builder
	Model     llm.LLMProvider
	Analyzer  *response.Analyzer
	Publisher events.Publisher
	Logger    logger.ILogger
}

type chatbotService struct {
	ChatbotDeps
	opts   ChatbotOptions
	tracer trace.Tracer
	now    func() time.Time
}

func NewChatbotService(deps ChatbotDeps, opts ChatbotOptions) IChatbotService {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	return &chatbotService{
		ChatbotDeps: deps,
		opts:        opts,
		tracer:      otel.Tracer("elearning-chatbot-be/chatbot"),
		now:         time.Now,
	}
}

func (cs *chatbotService) SendMessage(ctx context.Context, userId string, request *dto.SendMessageRequest) (res *dto.ChatResponse) {
	ctx, span := cs.tracer.Start(ctx, "chatbot.send_message", trace.WithAttributes(attribute.String("user.id", userId)))
	defer span.End()

	sessionId := ""
	if request != nil {
		sessionId = request.SessionId
	}

	defer func() {
		if r := recover(); r != nil {
			cs.Logger.Error("ORCHESTRATOR", "Recovered from panic", map[string]interface{}{
				"panic":      fmt.Sprint(r),
				"user_id":    userId,
				"session_id": sessionId,
				"stack":      string(debug.Stack()),
			})
			span.SetStatus(codes.Error, "panic")
			res = cs.failure(span, sessionId, response.CodeInternal)
		}
	}()

	span.AddEvent(stageReceived)
	message := ""
	if request != nil {
		message = strings.TrimSpace(request.Message)
	}
	if userId == "" || message == "" || (cs.opts.MaxMessageLength > 0 && utf8.RuneCountInString(message) > cs.opts.MaxMessageLength) {
		return cs.failure(span, sessionId, response.CodeInvalidRequest)
	}

	span.AddEvent(stageRateCheck)
	if cs.Limiter != nil && !cs.Limiter.Allow(userId) {
		cs.Logger.Warn("ORCHESTRATOR", "Rate limit exceeded", map[string]interface{}{"user_id": userId})
		return cs.failure(span, sessionId, response.CodeRateLimited)
	}

	sess, err := cs.Sessions.GetOrCreate(ctx, userId, sessionId)
	if err != nil {
		cs.Logger.Error("ORCHESTRATOR", "Failed to resolve session", map[string]interface{}{
			"user_id":    userId,
			"session_id": sessionId,
			"error":      err,
		})
		code := response.CodeSessionUnavailable
		if apperr.KindOf(err) == apperr.KindInvalid {
			code = response.CodeInvalidRequest
		}
		return cs.failure(span, sessionId, code)
	}
	sessionId = sess.Id
	span.AddEvent(stageSessionResolved, trace.WithAttributes(attribute.String("session.id", sessionId)))

	snippets, err := cs.Retriever.Retrieve(ctx, message, cs.opts.TopK, cs.opts.DistanceThreshold)
	if err != nil {
		snippets = []retriever.Snippet{}
	}
	span.AddEvent(stageContextRetrieved, trace.WithAttributes(attribute.Int("snippets", len(snippets))))

	turns := cs.History.Load(ctx, sessionId)
	span.AddEvent(stageHistoryLoaded, trace.WithAttributes(attribute.Int("turns", len(turns))))

	var profile *entity.Profile
	if cs.Profiles != nil {
		if p := cs.Profiles.GetProfile(ctx, userId); !p.IsEmpty() {
			profile = &p
		}
	}

	built := cs.Prompts.Build(prompt.Input{
		Message:  message,
		Profile:  profile,
		Snippets: snippets,
		History:  turns,
	})
	span.AddEvent(stagePromptBuilt, trace.WithAttributes(attribute.Int("prompt.tokens", built.Tokens)))

	text, err := cs.Model.Generate(ctx, built.Prompt, llm.WithTemperature(cs.opts.Temperature), llm.WithMaxTokens(cs.opts.MaxTokens))
	if err != nil {
		cs.Logger.Error("ORCHESTRATOR", "Language model call failed", map[string]interface{}{
			"session_id": sessionId,
			"model":      cs.Model.Name(),
			"error":      err,
		})
		return cs.failure(span, sessionId, modelErrorCode(err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		cs.Logger.Warn("ORCHESTRATOR", "Language model returned an empty answer", map[string]interface{}{"session_id": sessionId})
		return cs.failure(span, sessionId, response.CodeModelUnavailable)
	}
	span.AddEvent(stageModelCalled)

	confidence := cs.Analyzer.Confidence(text, built.Used)
	sources := retriever.Sources(built.Used)
	suggestions := cs.Analyzer.Suggestions(text)

	cs.persist(ctx, sess, message, text, confidence, sources)
	span.AddEvent(stagePersisted)

	span.AddEvent(stageResponded, trace.WithAttributes(attribute.Float64("confidence", confidence)))
	return &dto.ChatResponse{
		Response:    text,
		SessionId:   sessionId,
		Timestamp:   cs.now().UTC().Format(time.RFC3339),
		Confidence:  confidence,
		Sources:     sources,
		Suggestions: suggestions,
	}
}

// persist appends the turn, merges the session context and announces the
// turn. Each step is best effort.
func (cs *chatbotService) persist(ctx context.Context, sess *entity.ChatSession, message, text string, confidence float64, sources []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cs.opts.StorageTimeout)
	defer cancel()

	turn := &entity.ChatTurn{
		Id:          uuid.New(),
		SessionId:   sess.Id,
		UserId:      sess.UserId,
		UserMessage: message,
		BotResponse: text,
		Confidence:  confidence,
		Sources:     sources,
		CreatedAt:   cs.now(),
	}
	if err := cs.Turns.Create(ctx, turn); err != nil {
		cs.Logger.Error("ORCHESTRATOR", "Failed to persist chat turn", map[string]interface{}{
			"session_id": sess.Id,
			"error":      err,
		})
	}

	update := entity.ContextUpdate{
		Message:     message,
		Response:    text,
		Topics:      cs.Analyzer.Topics(message),
		Preferences: cs.Analyzer.Preferences(message),
	}
	if err := cs.Sessions.UpdateContext(ctx, sess.Id, update); err != nil {
		cs.Logger.Error("ORCHESTRATOR", "Failed to update session context", map[string]interface{}{
			"session_id": sess.Id,
			"error":      err,
		})
	}

	event := events.New(constant.EventChatTurnCompleted, map[string]interface{}{
		"session_id": sess.Id,
		"user_id":    sess.UserId,
		"turn_id":    turn.Id.String(),
		"confidence": confidence,
		"sources":    sources,
		"topics":     update.Topics,
	})
	if err := cs.Publisher.Publish(ctx, event); err != nil {
		cs.Logger.Warn("ORCHESTRATOR", "Failed to publish turn event", map[string]interface{}{
			"session_id": sess.Id,
			"error":      err,
		})
	}
}

func (cs *chatbotService) failure(span trace.Span, sessionId, code string) *dto.ChatResponse {
	span.SetAttributes(attribute.String("chat.error_code", code))
	span.AddEvent(stageResponded)
	return &dto.ChatResponse{
		Response:    cs.Analyzer.MessageFor(code),
		SessionId:   sessionId,
		Timestamp:   cs.now().UTC().Format(time.RFC3339),
		Confidence:  0,
		Sources:     []string{},
		Suggestions: []string{},
		ErrorCode:   code,
	}
}

func modelErrorCode(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindRateLimited:
		return response.CodeModelRateLimited
	case apperr.KindUpstreamUnavailable:
		return response.CodeModelUnavailable
	default:
		return response.CodeInternal
	}
}

func (cs *chatbotService) ListSessions(ctx context.Context, userId string) ([]*dto.SessionResponse, error) {
	sessions, err := cs.Sessions.ListForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if len(sessions) > constant.MaxSessionListSize {
		sessions = sessions[:constant.MaxSessionListSize]
	}
	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		res = append(res, &dto.SessionResponse{
			Id:        s.Id,
			IsActive:  s.IsActive,
			Topics:    nonNil(s.Context.Topics),
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return res, nil
}

func (cs *chatbotService) EndSession(ctx context.Context, userId, sessionId string) error {
	sess, err := cs.owned(ctx, userId, sessionId)
	if err != nil {
		return err
	}
	if err := cs.Sessions.End(ctx, sess.Id); err != nil {
		return err
	}
	if !sess.IsActive {
		return nil
	}

	event := events.New(constant.EventChatSessionEnded, map[string]interface{}{
		"session_id": sess.Id,
		"user_id":    sess.UserId,
	})
	if err := cs.Publisher.Publish(ctx, event); err != nil {
		cs.Logger.Warn("ORCHESTRATOR", "Failed to publish session ended event", map[string]interface{}{
			"session_id": sess.Id,
			"error":      err,
		})
	}
	return nil
}

func (cs *chatbotService) GetSessionContext(ctx context.Context, userId, sessionId string) (*dto.SessionContextResponse, error) {
	sess, err := cs.owned(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	return toSessionContextResponse(sess), nil
}

func (cs *chatbotService) UpdatePreferences(ctx context.Context, userId, sessionId string, request *dto.UpdatePreferencesRequest) (*dto.SessionContextResponse, error) {
	if _, err := cs.owned(ctx, userId, sessionId); err != nil {
		return nil, err
	}
	if err := cs.Sessions.UpdatePreferences(ctx, sessionId, request.Preferences); err != nil {
		return nil, err
	}
	return cs.GetSessionContext(ctx, userId, sessionId)
}

func (cs *chatbotService) GetHistory(ctx context.Context, userId, sessionId string, limit int) ([]*dto.ChatTurnResponse, error) {
	if _, err := cs.owned(ctx, userId, sessionId); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > constant.MaxHistoryPageSize {
		limit = constant.MaxHistoryPageSize
	}
	turns, err := cs.History.Recent(ctx, sessionId, limit)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ChatTurnResponse, 0, len(turns))
	for _, t := range turns {
		res = append(res, &dto.ChatTurnResponse{
			Id:          t.Id.String(),
			UserMessage: t.UserMessage,
			BotResponse: t.BotResponse,
			Confidence:  t.Confidence,
			Sources:     nonNil(t.Sources),
			CreatedAt:   t.CreatedAt,
		})
	}
	return res, nil
}

// SuggestCourses searches the course and FAQ collections. Without a query the
// topics of the user's most recent session are used.
func (cs *chatbotService) SuggestCourses(ctx context.Context, userId, query string, limit int) (*dto.SuggestionsResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		topics, err := cs.recentTopics(ctx, userId)
		if err != nil {
			return nil, err
		}
		query = strings.Join(topics, " ")
	}
	if query == "" {
		return nil, apperr.Invalid("query is required when there is no conversation yet")
	}

	courses, err := cs.Retriever.SearchCourses(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	faq, err := cs.Retriever.SearchFAQ(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return &dto.SuggestionsResponse{
		Query:   query,
		Courses: toSuggestions(courses),
		FAQ:     toSuggestions(faq),
	}, nil
}

func (cs *chatbotService) RemainingMessages(userId string) int {
	if cs.Limiter == nil {
		return -1
	}
	return cs.Limiter.Remaining(userId)
}

func (cs *chatbotService) GetLearningProfile(ctx context.Context, userId string) (*dto.LearningProfileResponse, error) {
	var profile entity.Profile
	if cs.Profiles != nil {
		profile = cs.Profiles.GetProfile(ctx, userId)
	}

	sessions, err := cs.Sessions.ListForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	active := 0
	var topics []string
	// Sessions are newest first; merge oldest first so recent topics win the cap.
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].IsActive {
			active++
		}
		topics = session.MergeTopics(topics, sessions[i].Context.Topics, 10)
	}

	return &dto.LearningProfileResponse{
		UserId:           userId,
		Name:             profile.Name,
		Level:            profile.Level,
		EnrolledCourses:  nonNil(profile.EnrolledCourses),
		CompletedCourses: profile.CompletedCourses,
		InProgress:       profile.InProgress,
		AverageProgress:  profile.AverageProgress,
		ActiveSessions:   active,
		RecentTopics:     nonNil(topics),
	}, nil
}

// owned loads a session and hides sessions of other users as not found.
func (cs *chatbotService) owned(ctx context.Context, userId, sessionId string) (*entity.ChatSession, error) {
	if sessionId == "" {
		return nil, apperr.Invalid("session id is required")
	}
	sess, err := cs.Sessions.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if sess.UserId != userId {
		return nil, apperr.NotFound("session %s", sessionId)
	}
	return sess, nil
}

func (cs *chatbotService) recentTopics(ctx context.Context, userId string) ([]string, error) {
	sessions, err := cs.Sessions.ListForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0].Context.Topics, nil
}

func toSessionContextResponse(s *entity.ChatSession) *dto.SessionContextResponse {
	prefs := s.Context.Preferences
	if prefs == nil {
		prefs = map[string]interface{}{}
	}
	return &dto.SessionContextResponse{
		SessionId:    s.Id,
		IsActive:     s.IsActive,
		Topics:       nonNil(s.Context.Topics),
		Preferences:  prefs,
		LastMessage:  s.Context.LastMessage,
		LastResponse: s.Context.LastResponse,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toSuggestions(snippets []retriever.Snippet) []dto.CourseSuggestion {
	out := make([]dto.CourseSuggestion, 0, len(snippets))
	for _, s := range snippets {
		title := s.Metadata["title"]
		if title == "" {
			title = s.Source
		}
		out = append(out, dto.CourseSuggestion{
			Id:       s.ID,
			Title:    title,
			Content:  s.Content,
			Score:    s.Score,
			Metadata: s.Metadata,
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

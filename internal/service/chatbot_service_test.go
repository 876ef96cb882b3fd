package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"elearning-chatbot-be/internal/constant"
	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/repository/inmem"
	"elearning-chatbot-be/internal/repository/memory"
	"elearning-chatbot-be/pkg/embedding"
	"elearning-chatbot-be/pkg/events"
	"elearning-chatbot-be/pkg/llm"
	"elearning-chatbot-be/pkg/rag/history"
	"elearning-chatbot-be/pkg/rag/lexicon"
	"elearning-chatbot-be/pkg/rag/prompt"
	"elearning-chatbot-be/pkg/rag/response"
	"elearning-chatbot-be/pkg/rag/retriever"
	"elearning-chatbot-be/pkg/rag/session"
	"elearning-chatbot-be/pkg/ratelimit"
	"elearning-chatbot-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 64

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	panics  bool
	prompts []string
}

func (m *fakeModel) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("model exploded")
	}
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return m.Generate(ctx, history[len(history)-1].Content, options...)
}

func (m *fakeModel) Name() string {
	return "fake"
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type staticProfiles struct {
	profile entity.Profile
}

func (s staticProfiles) GetProfile(context.Context, string) entity.Profile {
	return s.profile
}

type fixture struct {
	svc       IChatbotService
	model     *fakeModel
	sessions  *inmem.ChatSessionRepository
	turns     *inmem.ChatTurnRepository
	store     *session.Store
	vectors   *vectorstore.MemoryStore
	ingestor  *vectorstore.Ingestor
	publisher *recordingPublisher
}

func newFixture(t *testing.T, perMinute int) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	lx := lexicon.Default()

	sessionRepo := inmem.NewChatSessionRepository()
	turnRepo := inmem.NewChatTurnRepository()
	cache := memory.NewSessionCache(time.Hour, time.Hour)
	t.Cleanup(func() { _ = cache.Close() })
	store := session.NewStore(sessionRepo, cache, session.Config{MaxTopics: 10, StorageTimeout: time.Second}, log)

	vectors := vectorstore.NewMemoryStore()
	encoder := embedding.NewEncoder(embedding.NewHashingProvider(testDimension), testDimension, 2, time.Second)
	rt := retriever.New(vectors, encoder, retriever.Config{DistanceThreshold: 2}, log)

	model := &fakeModel{reply: "You can enroll from the course page. I recommend starting with the basics."}
	publisher := &recordingPublisher{}

	svc := NewChatbotService(ChatbotDeps{
		Limiter:   ratelimit.PerMinute(perMinute),
		Sessions:  store,
		Retriever: rt,
		History:   history.NewLoader(turnRepo, 5, time.Second, log),
		Turns:     turnRepo,
		Profiles:  staticProfiles{profile: entity.Profile{UserId: "u1", Name: "Lan", EnrolledCourses: []string{"Go 101"}}},
		Prompts:   prompt.NewBuilder(lx, 3, 0, prompt.RuneCounter{}),
		Model:     model,
		Analyzer:  response.NewAnalyzer(lx),
		Publisher: publisher,
		Logger:    log,
	}, ChatbotOptions{TopK: 5, DistanceThreshold: 2, MaxMessageLength: 200, StorageTimeout: time.Second})

	return &fixture{
		svc:       svc,
		model:     model,
		sessions:  sessionRepo,
		turns:     turnRepo,
		store:     store,
		vectors:   vectors,
		ingestor:  vectorstore.NewIngestor(vectors, encoder),
		publisher: publisher,
	}
}

func assertWellFormed(t *testing.T, res *dto.ChatResponse) {
	t.Helper()
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Response)
	assert.NotNil(t, res.Sources)
	assert.NotNil(t, res.Suggestions)
	assert.LessOrEqual(t, len(res.Suggestions), response.MaxSuggestions)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	_, err := time.Parse(time.RFC3339, res.Timestamp)
	assert.NoError(t, err)
}

func TestSendMessageWithEmptyKnowledgeStore(t *testing.T) {
	f := newFixture(t, 30)

	res := f.svc.SendMessage(context.Background(), "u1", &dto.SendMessageRequest{Message: "hello"})

	assertWellFormed(t, res)
	assert.Empty(t, res.ErrorCode)
	assert.Equal(t, []string{}, res.Sources)
	assert.NotEmpty(t, res.SessionId)
	assert.Equal(t, 1, f.model.calls())
}

func TestSendMessageGroundsOnKnowledge(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	require.NoError(t, f.ingestor.Upsert(ctx, constant.CollectionKnowledge, "kb_1",
		"Certificates are issued as PDF after completing a course", map[string]string{"source": "FAQ"}))

	res := f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "how do I get a certificate for my course"})

	assertWellFormed(t, res)
	assert.Equal(t, []string{"FAQ"}, res.Sources)
	assert.Equal(t, []string{`Learn more about "you can"`, `Learn more about "i recommend"`}, res.Suggestions)
	assert.Contains(t, f.model.prompts[0], "Certificates are issued as PDF")
	assert.Contains(t, f.model.prompts[0], "Lan")

	turns, err := f.turns.FindRecent(ctx, res.SessionId, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, res.Response, turns[0].BotResponse)

	sctx, err := f.store.ContextOf(ctx, res.SessionId)
	require.NoError(t, err)
	assert.Contains(t, sctx.Topics, "certificate")
	assert.Contains(t, sctx.Topics, "courses")
	assert.Equal(t, []string{constant.EventChatTurnCompleted}, f.publisher.types())
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "hello"})
		assert.Empty(t, res.ErrorCode)
		assert.Equal(t, 1-i, f.svc.RemainingMessages("u1"))
	}
	res := f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "hello"})
	assert.Equal(t, 0, f.svc.RemainingMessages("u1"))

	assertWellFormed(t, res)
	assert.Equal(t, response.CodeRateLimited, res.ErrorCode)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, lexicon.Default().Messages.RateLimited, res.Response)
	assert.Equal(t, 2, f.model.calls())

	other := f.svc.SendMessage(ctx, "u2", &dto.SendMessageRequest{Message: "hello"})
	assert.Empty(t, other.ErrorCode)
}

func TestSendMessageContinuesSession(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()

	first := f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "tell me about payment"})
	second := f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "and refunds?", SessionId: first.SessionId})

	assert.Equal(t, first.SessionId, second.SessionId)
	assert.Contains(t, f.model.prompts[1], "tell me about payment")
}

func TestSendMessageUnknownSessionStartsNewOne(t *testing.T) {
	f := newFixture(t, 30)

	res := f.svc.SendMessage(context.Background(), "u1", &dto.SendMessageRequest{Message: "hi", SessionId: "abc"})

	assert.Empty(t, res.ErrorCode)
	assert.NotEqual(t, "abc", res.SessionId)
}

func TestSendMessageFailures(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		modelErr error
		expected string
	}{
		{"empty message", "   ", nil, response.CodeInvalidRequest},
		{"too long", strings.Repeat("a", 201), nil, response.CodeInvalidRequest},
		{"model rate limited", "hi", &llm.OtherError{Cause: llm.ErrRateLimited}, response.CodeModelRateLimited},
		{"model unavailable", "hi", &llm.OtherError{Cause: llm.ErrUnavailable}, response.CodeModelUnavailable},
		{"model other", "hi", &llm.OtherError{Cause: errors.New("bad request")}, response.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 30)
			f.model.err = tt.modelErr

			res := f.svc.SendMessage(context.Background(), "u1", &dto.SendMessageRequest{Message: tt.message})

			assertWellFormed(t, res)
			assert.Equal(t, tt.expected, res.ErrorCode)
			assert.Equal(t, 0.0, res.Confidence)
			assert.Empty(t, res.Sources)
			count, _ := f.turns.Count(context.Background())
			assert.Zero(t, count)
		})
	}
}

func TestSendMessageSessionUnavailable(t *testing.T) {
	f := newFixture(t, 30)
	f.sessions.Err = errors.New("db down")

	res := f.svc.SendMessage(context.Background(), "u1", &dto.SendMessageRequest{Message: "hello"})

	assertWellFormed(t, res)
	assert.Equal(t, response.CodeSessionUnavailable, res.ErrorCode)
	assert.Zero(t, f.model.calls())
}

func TestSendMessagePersistenceFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, 30)
	f.turns.Err = errors.New("disk full")

	res := f.svc.SendMessage(context.Background(), "u1", &dto.SendMessageRequest{Message: "hello"})

	assertWellFormed(t, res)
	assert.Empty(t, res.ErrorCode)
	assert.Equal(t, f.model.reply, res.Response)
}

func TestSendMessageRecoversPanic(t *testing.T) {
	f := newFixture(t, 30)
	f.model.panics = true

	res := f.svc.SendMessage(context.Background(), "u1", &dto.SendMessageRequest{Message: "hello"})

	assertWellFormed(t, res)
	assert.Equal(t, response.CodeInternal, res.ErrorCode)
	assert.NotEmpty(t, res.SessionId)
}

func TestSessionOperationsCheckOwnership(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	res := f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "I want a course about payment"})

	_, err := f.svc.GetSessionContext(ctx, "u2", res.SessionId)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(f.svc.EndSession(ctx, "u2", res.SessionId)))

	sctx, err := f.svc.GetSessionContext(ctx, "u1", res.SessionId)
	require.NoError(t, err)
	assert.True(t, sctx.IsActive)
	assert.Equal(t, "I want a course about payment", sctx.LastMessage)

	updated, err := f.svc.UpdatePreferences(ctx, "u1", res.SessionId, &dto.UpdatePreferencesRequest{
		Preferences: map[string]interface{}{"language": "vi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "vi", updated.Preferences["language"])

	turns, err := f.svc.GetHistory(ctx, "u1", res.SessionId, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	require.NoError(t, f.svc.EndSession(ctx, "u1", res.SessionId))
	require.NoError(t, f.svc.EndSession(ctx, "u1", res.SessionId))
	assert.Equal(t, []string{constant.EventChatTurnCompleted, constant.EventChatSessionEnded}, f.publisher.types())

	sessions, err := f.svc.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].IsActive)
}

func TestSuggestCoursesAndLearningProfile(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	require.NoError(t, f.ingestor.Upsert(ctx, constant.CollectionCourses, "go-101",
		"Go 101 payment systems course", map[string]string{"title": "Go 101"}))

	_, err := f.svc.SuggestCourses(ctx, "u1", "", 3)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	f.svc.SendMessage(ctx, "u1", &dto.SendMessageRequest{Message: "question about payment"})

	suggestions, err := f.svc.SuggestCourses(ctx, "u1", "", 3)
	require.NoError(t, err)
	assert.Equal(t, "payment", suggestions.Query)
	require.Len(t, suggestions.Courses, 1)
	assert.Equal(t, "Go 101", suggestions.Courses[0].Title)
	assert.Empty(t, suggestions.FAQ)

	profile, err := f.svc.GetLearningProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Lan", profile.Name)
	assert.Equal(t, 1, profile.ActiveSessions)
	assert.Equal(t, []string{"payment"}, profile.RecentTopics)
}

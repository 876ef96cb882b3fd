package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/pkg/serverutils"
	"elearning-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChatbotService struct {
	mock.Mock
}

var _ service.IChatbotService = (*mockChatbotService)(nil)

func (m *mockChatbotService) SendMessage(ctx context.Context, userId string, request *dto.SendMessageRequest) *dto.ChatResponse {
	return m.Called(userId, request.Message).Get(0).(*dto.ChatResponse)
}

func (m *mockChatbotService) ListSessions(ctx context.Context, userId string) ([]*dto.SessionResponse, error) {
	args := m.Called(userId)
	return args.Get(0).([]*dto.SessionResponse), args.Error(1)
}

func (m *mockChatbotService) EndSession(ctx context.Context, userId, sessionId string) error {
	return m.Called(userId, sessionId).Error(0)
}

func (m *mockChatbotService) GetSessionContext(ctx context.Context, userId, sessionId string) (*dto.SessionContextResponse, error) {
	args := m.Called(userId, sessionId)
	res, _ := args.Get(0).(*dto.SessionContextResponse)
	return res, args.Error(1)
}

func (m *mockChatbotService) UpdatePreferences(ctx context.Context, userId, sessionId string, request *dto.UpdatePreferencesRequest) (*dto.SessionContextResponse, error) {
	args := m.Called(userId, sessionId)
	res, _ := args.Get(0).(*dto.SessionContextResponse)
	return res, args.Error(1)
}

func (m *mockChatbotService) GetHistory(ctx context.Context, userId, sessionId string, limit int) ([]*dto.ChatTurnResponse, error) {
	args := m.Called(userId, sessionId, limit)
	res, _ := args.Get(0).([]*dto.ChatTurnResponse)
	return res, args.Error(1)
}

func (m *mockChatbotService) SuggestCourses(ctx context.Context, userId, query string, limit int) (*dto.SuggestionsResponse, error) {
	args := m.Called(userId, query, limit)
	res, _ := args.Get(0).(*dto.SuggestionsResponse)
	return res, args.Error(1)
}

func (m *mockChatbotService) GetLearningProfile(ctx context.Context, userId string) (*dto.LearningProfileResponse, error) {
	args := m.Called(userId)
	res, _ := args.Get(0).(*dto.LearningProfileResponse)
	return res, args.Error(1)
}

func (m *mockChatbotService) RemainingMessages(userId string) int {
	return m.Called(userId).Int(0)
}

// fakeAuth stands in for the JWT middleware.
func fakeAuth(ctx *fiber.Ctx) error {
	ctx.Locals(serverutils.LocalUserID, "u1")
	return ctx.Next()
}

func newTestApp(svc service.IChatbotService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler(logger.NewNopLogger())})
	NewChatbotController(svc).RegisterRoutes(app.Group("/api"), fakeAuth)
	return app
}

func TestSendMessageEndpoint(t *testing.T) {
	svc := &mockChatbotService{}
	svc.On("SendMessage", "u1", "hello").Return(&dto.ChatResponse{Response: "hi", SessionId: "s1", Sources: []string{}, Suggestions: []string{}})
	svc.On("RemainingMessages", "u1").Return(29)
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/chatbot/v1/messages", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "29", resp.Header.Get(HeaderRateLimitRemaining))

	var body serverutils.Response[dto.ChatResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "s1", body.Data.SessionId)
	svc.AssertExpectations(t)
}

func TestSendMessageOmitsHeaderWhenUnlimited(t *testing.T) {
	svc := &mockChatbotService{}
	svc.On("SendMessage", "u1", "hello").Return(&dto.ChatResponse{Response: "hi", SessionId: "s1"})
	svc.On("RemainingMessages", "u1").Return(-1)
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/chatbot/v1/messages", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(HeaderRateLimitRemaining))
}

func TestSendMessageRejectsBadBody(t *testing.T) {
	app := newTestApp(&mockChatbotService{})

	req := httptest.NewRequest(http.MethodPost, "/api/chatbot/v1/messages", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSessionEndpointsMapErrors(t *testing.T) {
	svc := &mockChatbotService{}
	svc.On("GetSessionContext", "u1", "missing").Return(nil, apperr.NotFound("session missing"))
	svc.On("EndSession", "u1", "s1").Return(nil)
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chatbot/v1/sessions/missing/context", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/chatbot/v1/sessions/s1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPut, "/api/chatbot/v1/sessions/s1/preferences", strings.NewReader(`{"preferences":{}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	svc.AssertExpectations(t)
}

package mapper

import (
	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/model"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	data := s.ContextData.Data()
	ctx := entity.NewSessionContext()
	if data.Topics != nil {
		ctx.Topics = data.Topics
	}
	if data.Preferences != nil {
		ctx.Preferences = data.Preferences
	}
	ctx.LastMessage = data.LastMessage
	ctx.LastResponse = data.LastResponse

	return &entity.ChatSession{
		Id:        s.Id,
		UserId:    s.UserId,
		IsActive:  s.IsActive,
		Context:   ctx,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	return &model.ChatSession{
		Id:       s.Id,
		UserId:   s.UserId,
		IsActive: s.IsActive,
		ContextData: datatypes.NewJSONType(model.SessionContextData{
			Topics:       s.Context.Topics,
			Preferences:  s.Context.Preferences,
			LastMessage:  s.Context.LastMessage,
			LastResponse: s.Context.LastResponse,
		}),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Turn Mappers

func (m *ChatMapper) ChatTurnToEntity(t *model.ChatTurn) *entity.ChatTurn {
	if t == nil {
		return nil
	}

	sources := []string(t.Sources)
	if sources == nil {
		sources = []string{}
	}

	return &entity.ChatTurn{
		Id:          t.Id,
		SessionId:   t.SessionId,
		UserId:      t.UserId,
		UserMessage: t.UserMessage,
		BotResponse: t.BotResponse,
		Confidence:  t.Confidence,
		Sources:     sources,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *ChatMapper) ChatTurnToModel(t *entity.ChatTurn) *model.ChatTurn {
	if t == nil {
		return nil
	}

	return &model.ChatTurn{
		Id:          t.Id,
		SessionId:   t.SessionId,
		UserId:      t.UserId,
		UserMessage: t.UserMessage,
		BotResponse: t.BotResponse,
		Confidence:  t.Confidence,
		Sources:     datatypes.NewJSONSlice(t.Sources),
		CreatedAt:   t.CreatedAt,
	}
}

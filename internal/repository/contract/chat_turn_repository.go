package contract

import (
	"context"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/repository/specification"
)

type ChatTurnRepository interface {
	Create(ctx context.Context, turn *entity.ChatTurn) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FindRecent returns at most limit turns of a session, newest first.
	FindRecent(ctx context.Context, sessionId string, limit int) ([]*entity.ChatTurn, error)
}

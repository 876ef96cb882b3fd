package contract

import (
	"context"
	"time"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/repository/specification"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// Deactivate clears is_active on the given session; returns false when it was already inactive or absent.
	Deactivate(ctx context.Context, id string, at time.Time) (bool, error)
	// DeactivateIdle ends every active session not updated since cutoff and returns their ids.
	DeactivateIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}

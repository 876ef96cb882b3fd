package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatTurn is one immutable user message / bot response exchange.
type ChatTurn struct {
	Id          uuid.UUID
	SessionId   string
	UserId      string
	UserMessage string
	BotResponse string
	Confidence  float64
	Sources     []string
	CreatedAt   time.Time
}

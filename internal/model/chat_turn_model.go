package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatTurn struct {
	Id          uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   string                      `gorm:"type:varchar(64);not null;index:idx_chat_turns_session_created,priority:1"`
	UserId      string                      `gorm:"type:varchar(64);not null;index"`
	UserMessage string                      `gorm:"type:text;not null"`
	BotResponse string                      `gorm:"type:text;not null"`
	Confidence  float64                     `gorm:"not null;default:0"`
	Sources     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime;index:idx_chat_turns_session_created,priority:2"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}

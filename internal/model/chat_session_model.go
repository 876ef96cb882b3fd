package model

import (
	"time"

	"gorm.io/datatypes"
)

type SessionContextData struct {
	Topics       []string               `json:"topics"`
	Preferences  map[string]interface{} `json:"preferences"`
	LastMessage  string                 `json:"last_message,omitempty"`
	LastResponse string                 `json:"last_response,omitempty"`
}

type ChatSession struct {
	Id          string                                 `gorm:"type:varchar(64);primaryKey"`
	UserId      string                                 `gorm:"type:varchar(64);not null;index"`
	IsActive    bool                                   `gorm:"not null;default:true;index"`
	ContextData datatypes.JSONType[SessionContextData] `gorm:"type:jsonb"`
	CreatedAt   time.Time                              `gorm:"autoCreateTime"`
	UpdatedAt   time.Time                              `gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

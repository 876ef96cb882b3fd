package entity

import (
	"time"
)

type ChatSession struct {
	Id        string
	UserId    string
	IsActive  bool
	Context   SessionContext
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionContext is the mergeable blob carried across turns.
type SessionContext struct {
	Topics       []string               `json:"topics"`
	Preferences  map[string]interface{} `json:"preferences"`
	LastMessage  string                 `json:"last_message,omitempty"`
	LastResponse string                 `json:"last_response,omitempty"`
}

// ContextUpdate is what a turn contributes to a session's context.
type ContextUpdate struct {
	Message     string
	Response    string
	Topics      []string
	Preferences map[string]interface{}
}

func NewSessionContext() SessionContext {
	return SessionContext{
		Topics:      []string{},
		Preferences: map[string]interface{}{},
	}
}

// Clone returns a deep copy so cached sessions are never mutated in place.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Context.Topics = append([]string{}, s.Context.Topics...)
	c.Context.Preferences = make(map[string]interface{}, len(s.Context.Preferences))
	for k, v := range s.Context.Preferences {
		c.Context.Preferences[k] = v
	}
	return &c
}

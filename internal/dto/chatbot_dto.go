package dto

import (
	"time"
)

type SendMessageRequest struct {
	Message   string `json:"message" validate:"required,max=2000"`
	SessionId string `json:"session_id,omitempty" validate:"omitempty,max=64"`
}

// ChatResponse is returned for every message, including failures. ErrorCode
// is set only when the answer is one of the canned messages.
type ChatResponse struct {
	Response    string   `json:"response"`
	SessionId   string   `json:"session_id"`
	Timestamp   string   `json:"timestamp"`
	Confidence  float64  `json:"confidence"`
	Sources     []string `json:"sources"`
	Suggestions []string `json:"suggestions"`
	ErrorCode   string   `json:"error_code,omitempty"`
}

type SessionResponse struct {
	Id        string    `json:"id"`
	IsActive  bool      `json:"is_active"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionContextResponse struct {
	SessionId    string                 `json:"session_id"`
	IsActive     bool                   `json:"is_active"`
	Topics       []string               `json:"topics"`
	Preferences  map[string]interface{} `json:"preferences"`
	LastMessage  string                 `json:"last_message,omitempty"`
	LastResponse string                 `json:"last_response,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type UpdatePreferencesRequest struct {
	Preferences map[string]interface{} `json:"preferences" validate:"required,min=1"`
}

type ChatTurnResponse struct {
	Id          string    `json:"id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Confidence  float64   `json:"confidence"`
	Sources     []string  `json:"sources"`
	CreatedAt   time.Time `json:"created_at"`
}

type CourseSuggestion struct {
	Id       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SuggestionsResponse struct {
	Query   string             `json:"query"`
	Courses []CourseSuggestion `json:"courses"`
	FAQ     []CourseSuggestion `json:"faq"`
}

type LearningProfileResponse struct {
	UserId           string   `json:"user_id"`
	Name             string   `json:"name,omitempty"`
	Level            string   `json:"level,omitempty"`
	EnrolledCourses  []string `json:"enrolled_courses"`
	CompletedCourses int      `json:"completed_courses"`
	InProgress       int      `json:"in_progress"`
	AverageProgress  float64  `json:"average_progress"`
	ActiveSessions   int      `json:"active_sessions"`
	RecentTopics     []string `json:"recent_topics"`
}

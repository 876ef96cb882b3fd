package constant

const (
	// Vector store collections.
	CollectionKnowledge = "knowledge"
	CollectionCourses   = "courses"
	CollectionFAQ       = "faq"

	// Watermill topic for queued knowledge writes.
	TopicKnowledgeUpsert = "knowledge.upsert"

	// Domain events published on NATS.
	EventChatTurnCompleted = "chat.turn_completed"
	EventChatSessionEnded  = "chat.session_ended"
	EventCourseUpdated     = "course.updated"

	// Durable consumer name for course sync.
	ConsumerCourseSync = "chatbot-course-sync"

	MaxSessionListSize = 100
	MaxHistoryPageSize = 50
)

package dto

type AddKnowledgeRequest struct {
	Id       string            `json:"id,omitempty" yaml:"id" validate:"omitempty,max=128"`
	Content  string            `json:"content" yaml:"content" validate:"required"`
	Source   string            `json:"source,omitempty" yaml:"source"`
	Type     string            `json:"type,omitempty" yaml:"type"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata"`
	// Async queues the write instead of embedding inline.
	Async bool `json:"async,omitempty" yaml:"-"`
}

type AddFAQRequest struct {
	Id       string `json:"id,omitempty" yaml:"id" validate:"omitempty,max=128"`
	Question string `json:"question" yaml:"question" validate:"required"`
	Answer   string `json:"answer" yaml:"answer" validate:"required"`
	Category string `json:"category,omitempty" yaml:"category"`
}

type SyncCourseRequest struct {
	Id          string   `json:"id" yaml:"id" validate:"required"`
	Title       string   `json:"title" yaml:"title" validate:"required"`
	Description string   `json:"description" yaml:"description"`
	Level       string   `json:"level,omitempty" yaml:"level"`
	Instructor  string   `json:"instructor,omitempty" yaml:"instructor"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

type KnowledgeWriteResponse struct {
	Collection string `json:"collection"`
	Id         string `json:"id"`
	Queued     bool   `json:"queued"`
}

type CollectionStatsResponse struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
}

type KnowledgeStatsResponse struct {
	Backend           string                    `json:"backend"`
	EmbeddingProvider string                    `json:"embedding_provider"`
	Collections       []CollectionStatsResponse `json:"collections"`
}

// KnowledgeUpsertMessage is the payload queued on the knowledge upsert topic.
type KnowledgeUpsertMessage struct {
	Collection string            `json:"collection"`
	Id         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

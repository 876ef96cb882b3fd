package entity

import "time"

type KnowledgeItem struct {
	Collection string
	Id         string
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	Seq        int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type KnowledgeCollection struct {
	Name      string
	Dimension int
	CreatedAt time.Time
}

type ScoredKnowledgeItem struct {
	Item     *KnowledgeItem
	Distance float64
}

package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type KnowledgeCollection struct {
	Name      string    `gorm:"type:varchar(128);primaryKey"`
	Dimension int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (KnowledgeCollection) TableName() string {
	return "knowledge_collections"
}

// KnowledgeItem is keyed by (collection, id); Seq records first insertion and
// breaks distance ties.
type KnowledgeItem struct {
	Collection     string            `gorm:"type:varchar(128);primaryKey"`
	Id             string            `gorm:"type:varchar(255);primaryKey"`
	Seq            int64             `gorm:"autoIncrement;not null;index"`
	Content        string            `gorm:"type:text;not null"`
	EmbeddingValue pgvector.Vector   `gorm:"type:vector"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime"`
}

func (KnowledgeItem) TableName() string {
	return "knowledge_items"
}

package mapper

import (
	"fmt"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) ToEntity(k *model.KnowledgeItem) *entity.KnowledgeItem {
	if k == nil {
		return nil
	}

	metadata := make(map[string]string, len(k.Metadata))
	for key, value := range k.Metadata {
		if s, ok := value.(string); ok {
			metadata[key] = s
		} else {
			metadata[key] = fmt.Sprint(value)
		}
	}

	return &entity.KnowledgeItem{
		Collection: k.Collection,
		Id:         k.Id,
		Content:    k.Content,
		Embedding:  k.EmbeddingValue.Slice(),
		Metadata:   metadata,
		Seq:        k.Seq,
		CreatedAt:  k.CreatedAt,
		UpdatedAt:  k.UpdatedAt,
	}
}

func (m *KnowledgeMapper) ToModel(k *entity.KnowledgeItem) *model.KnowledgeItem {
	if k == nil {
		return nil
	}

	metadata := make(datatypes.JSONMap, len(k.Metadata))
	for key, value := range k.Metadata {
		metadata[key] = value
	}

	return &model.KnowledgeItem{
		Collection:     k.Collection,
		Id:             k.Id,
		Seq:            k.Seq,
		Content:        k.Content,
		EmbeddingValue: pgvector.NewVector(k.Embedding),
		Metadata:       metadata,
		CreatedAt:      k.CreatedAt,
		UpdatedAt:      k.UpdatedAt,
	}
}

func (m *KnowledgeMapper) CollectionToEntity(c *model.KnowledgeCollection) *entity.KnowledgeCollection {
	if c == nil {
		return nil
	}
	return &entity.KnowledgeCollection{Name: c.Name, Dimension: c.Dimension, CreatedAt: c.CreatedAt}
}

func (m *KnowledgeMapper) CollectionToModel(c *entity.KnowledgeCollection) *model.KnowledgeCollection {
	if c == nil {
		return nil
	}
	return &model.KnowledgeCollection{Name: c.Name, Dimension: c.Dimension, CreatedAt: c.CreatedAt}
}

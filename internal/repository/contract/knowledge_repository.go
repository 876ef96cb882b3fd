package contract

import (
	"context"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/repository/specification"
)

type KnowledgeRepository interface {
	// Upsert inserts or replaces an item by (collection, id), keeping its original Seq.
	Upsert(ctx context.Context, item *entity.KnowledgeItem) error
	// DeleteDocument removes docID and its "docID#n" chunks from collection,
	// except the ids in keep.
	DeleteDocument(ctx context.Context, collection, docID string, keep []string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeItem, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar orders by cosine distance, then insertion sequence.
	SearchSimilar(ctx context.Context, collection string, embedding []float32, limit int) ([]*entity.ScoredKnowledgeItem, error)

	FindCollection(ctx context.Context, name string) (*entity.KnowledgeCollection, error)
	// EnsureCollection creates the collection if missing and returns the stored one.
	EnsureCollection(ctx context.Context, collection *entity.KnowledgeCollection) (*entity.KnowledgeCollection, error)
	ListCollections(ctx context.Context) ([]*entity.KnowledgeCollection, error)
}

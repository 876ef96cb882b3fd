package implementation

import (
	"context"
	"errors"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/mapper"
	"elearning-chatbot-be/internal/model"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KnowledgeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeRepository(db *gorm.DB) contract.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// Upsert is a single INSERT .. ON CONFLICT statement, so readers see either the
// old or the new row, never a mix.
func (r *KnowledgeRepositoryImpl) Upsert(ctx context.Context, item *entity.KnowledgeItem) error {
	m := r.mapper.ToModel(item)
	m.Seq = 0 // assigned by the sequence on first insert only
	err := r.db.WithContext(ctx).
		Omit("seq").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "embedding_value", "metadata", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	return nil
}

func (r *KnowledgeRepositoryImpl) DeleteDocument(ctx context.Context, collection, docID string, keep []string) error {
	query := r.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where("(id = ? OR starts_with(id, ?))", docID, docID+"#")
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	return query.Delete(&model.KnowledgeItem{}).Error
}

func (r *KnowledgeRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeItem, error) {
	var m model.KnowledgeItem
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *KnowledgeRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.KnowledgeItem{}).Count(&count).Error
	return count, err
}

func (r *KnowledgeRepositoryImpl) SearchSimilar(ctx context.Context, collection string, embedding []float32, limit int) ([]*entity.ScoredKnowledgeItem, error) {
	if limit <= 0 {
		return []*entity.ScoredKnowledgeItem{}, nil
	}

	// pgvector cosine distance: embedding_value <=> query = 1 - cosine_similarity
	type result struct {
		model.KnowledgeItem
		Distance float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("knowledge_items").
		Select("knowledge_items.*, (embedding_value <=> ?) AS distance", queryVector).
		Where("collection = ?", collection).
		Order("distance ASC").
		Order("seq ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredKnowledgeItem, len(results))
	for i := range results {
		scored[i] = &entity.ScoredKnowledgeItem{
			Item:     r.mapper.ToEntity(&results[i].KnowledgeItem),
			Distance: results[i].Distance,
		}
	}
	return scored, nil
}

func (r *KnowledgeRepositoryImpl) FindCollection(ctx context.Context, name string) (*entity.KnowledgeCollection, error) {
	var m model.KnowledgeCollection
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.CollectionToEntity(&m), nil
}

func (r *KnowledgeRepositoryImpl) EnsureCollection(ctx context.Context, collection *entity.KnowledgeCollection) (*entity.KnowledgeCollection, error) {
	m := r.mapper.CollectionToModel(collection)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	return r.FindCollection(ctx, collection.Name)
}

func (r *KnowledgeRepositoryImpl) ListCollections(ctx context.Context) ([]*entity.KnowledgeCollection, error) {
	var models []*model.KnowledgeCollection
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.KnowledgeCollection, len(models))
	for i, m := range models {
		out[i] = r.mapper.CollectionToEntity(m)
	}
	return out, nil
}

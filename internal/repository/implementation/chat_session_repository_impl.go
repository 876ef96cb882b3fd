package implementation

import (
	"context"
	"errors"
	"time"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/mapper"
	"elearning-chatbot-be/internal/model"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *gorm.DB) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatSessionRepositoryImpl) Create(ctx context.Context, session *entity.ChatSession) error {
	m := r.mapper.ChatSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ChatSessionToEntity(m)
	return nil
}

// Update never re-activates an ended session: the row is only written while
// is_active holds, otherwise apperr.ErrNotFound is returned.
func (r *ChatSessionRepositoryImpl) Update(ctx context.Context, session *entity.ChatSession) error {
	m := r.mapper.ChatSessionToModel(session)
	res := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ? AND is_active = ?", m.Id, true).
		Updates(map[string]interface{}{
			"context_data": m.ContextData,
			"updated_at":   m.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("active session %s", m.Id)
	}
	return nil
}

func (r *ChatSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	var m model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatSessionToEntity(&m), nil
}

func (r *ChatSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatSessionToEntity(m)
	}
	return entities, nil
}

func (r *ChatSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.ChatSession{}).Count(&count).Error
	return count, err
}

func (r *ChatSessionRepositoryImpl) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatSessionRepositoryImpl) DeactivateIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ended []model.ChatSession
	err := r.db.WithContext(ctx).
		Model(&ended).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("is_active = ? AND updated_at < ?", true, cutoff).
		Update("is_active", false).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ended))
	for i, m := range ended {
		ids[i] = m.Id
	}
	return ids, nil
}

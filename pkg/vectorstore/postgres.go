package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/internal/repository/specification"
	"elearning-chatbot-be/internal/repository/unitofwork"
)

// PostgresStore keeps knowledge in postgres with pgvector.
type PostgresStore struct {
	repoFactory unitofwork.RepositoryFactory
}

func NewPostgresStore(repoFactory unitofwork.RepositoryFactory) *PostgresStore {
	return &PostgresStore{repoFactory: repoFactory}
}

// Upsert creates the collection and writes the item in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, collection string, item Item) error {
	if err := validateItem(collection, item); err != nil {
		return err
	}
	return s.inTransaction(ctx, func(repo contract.KnowledgeRepository) error {
		if err := ensureCollection(ctx, repo, collection, len(item.Vector)); err != nil {
			return err
		}
		return repo.Upsert(ctx, toKnowledgeItem(collection, item))
	})
}

func (s *PostgresStore) ReplaceDocument(ctx context.Context, collection, docID string, items []Item) error {
	dimension, keep, err := validateDocument(collection, docID, items)
	if err != nil {
		return err
	}
	keepIDs := make([]string, 0, len(keep))
	for id := range keep {
		keepIDs = append(keepIDs, id)
	}

	return s.inTransaction(ctx, func(repo contract.KnowledgeRepository) error {
		if err := ensureCollection(ctx, repo, collection, dimension); err != nil {
			return err
		}
		if err := repo.DeleteDocument(ctx, collection, docID, keepIDs); err != nil {
			return fmt.Errorf("delete stale chunks of %s: %w", docID, err)
		}
		for _, item := range items {
			if err := repo.Upsert(ctx, toKnowledgeItem(collection, item)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) inTransaction(ctx context.Context, fn func(repo contract.KnowledgeRepository) error) error {
	uow := s.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(uow.KnowledgeRepository()); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return uow.Commit()
}

func ensureCollection(ctx context.Context, repo contract.KnowledgeRepository, collection string, dimension int) error {
	col, err := repo.EnsureCollection(ctx, &entity.KnowledgeCollection{Name: collection, Dimension: dimension})
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	if col == nil {
		return fmt.Errorf("collection %s vanished after create", collection)
	}
	if col.Dimension != dimension {
		return dimensionError(col.Dimension, dimension)
	}
	return nil
}

func toKnowledgeItem(collection string, item Item) *entity.KnowledgeItem {
	return &entity.KnowledgeItem{
		Collection: collection,
		Id:         item.ID,
		Content:    item.Text,
		Embedding:  item.Vector,
		Metadata:   item.Metadata,
	}
}

func (s *PostgresStore) Search(ctx context.Context, collection string, query []float32, k int) ([]Match, error) {
	repo := s.repoFactory.NewUnitOfWork(ctx).KnowledgeRepository()

	col, err := repo.FindCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("find collection %s: %w", collection, err)
	}
	if col == nil {
		return nil, ErrCollectionNotFound
	}
	if err := checkDimension(col.Dimension, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	scored, err := repo.SearchSimilar(ctx, collection, query, k)
	if err != nil {
		return nil, err
	}

	out := make([]Match, len(scored))
	for i, sc := range scored {
		out[i] = Match{
			ID:       sc.Item.Id,
			Text:     sc.Item.Content,
			Metadata: sc.Item.Metadata,
			Distance: math.Max(0, sc.Distance),
		}
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	repo := s.repoFactory.NewUnitOfWork(ctx).KnowledgeRepository()
	n, err := repo.Count(ctx, specification.ByCollection{Collection: collection})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) Collections(ctx context.Context) ([]CollectionStat, error) {
	repo := s.repoFactory.NewUnitOfWork(ctx).KnowledgeRepository()
	cols, err := repo.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CollectionStat, 0, len(cols))
	for _, c := range cols {
		n, err := repo.Count(ctx, specification.ByCollection{Collection: c.Name})
		if err != nil {
			return nil, err
		}
		stats = append(stats, CollectionStat{Name: c.Name, Count: int(n), Dimension: c.Dimension})
	}
	return stats, nil
}

// Close is a no-op; the gorm pool is owned by the container.
func (s *PostgresStore) Close() error {
	return nil
}

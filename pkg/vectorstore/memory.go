package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a brute-force in-process store. Used in tests, the CLI and
// single-node deployments without postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimension int
	nextSeq   int64
	items     map[string]*memRecord
}

type memRecord struct {
	seq  int64
	item Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, item Item) error {
	if err := validateItem(collection, item); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := &memRecord{item: Item{
		ID:       item.ID,
		Text:     item.Text,
		Vector:   copyVector(item.Vector),
		Metadata: copyMetadata(item.Metadata),
	}}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collectionFor(collection, len(item.Vector))
	if err != nil {
		return err
	}
	col.put(record)
	return nil
}

func (s *MemoryStore) ReplaceDocument(ctx context.Context, collection, docID string, items []Item) error {
	dimension, keep, err := validateDocument(collection, docID, items)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collectionFor(collection, dimension)
	if err != nil {
		return err
	}
	for id := range col.items {
		if _, ok := keep[id]; !ok && InDocument(docID, id) {
			delete(col.items, id)
		}
	}
	for _, item := range items {
		col.put(&memRecord{item: Item{
			ID:       item.ID,
			Text:     item.Text,
			Vector:   copyVector(item.Vector),
			Metadata: copyMetadata(item.Metadata),
		}})
	}
	return nil
}

// collectionFor returns the named collection, creating it with dimension on
// first use. Callers hold s.mu.
func (s *MemoryStore) collectionFor(name string, dimension int) (*memCollection, error) {
	col, ok := s.collections[name]
	if !ok {
		col = &memCollection{dimension: dimension, items: make(map[string]*memRecord)}
		s.collections[name] = col
	}
	if col.dimension != dimension {
		return nil, dimensionError(col.dimension, dimension)
	}
	return col, nil
}

// put keeps the sequence of an existing id so overwrites hold their place.
func (c *memCollection) put(record *memRecord) {
	if existing, ok := c.items[record.item.ID]; ok {
		record.seq = existing.seq
	} else {
		c.nextSeq++
		record.seq = c.nextSeq
	}
	c.items[record.item.ID] = record
}

func (s *MemoryStore) Search(ctx context.Context, collection string, query []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if err := checkDimension(col.dimension, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	cands := make([]candidate, 0, len(col.items))
	for _, rec := range col.items {
		cands = append(cands, candidate{
			seq: rec.seq,
			match: Match{
				ID:       rec.item.ID,
				Text:     rec.item.Text,
				Metadata: copyMetadata(rec.item.Metadata),
				Distance: CosineDistance(query, rec.item.Vector),
			},
		})
	}
	return rank(cands, k), nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if col, ok := s.collections[collection]; ok {
		return len(col.items), nil
	}
	return 0, nil
}

func (s *MemoryStore) Collections(_ context.Context) ([]CollectionStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]CollectionStat, 0, len(s.collections))
	for name, col := range s.collections {
		stats = append(stats, CollectionStat{Name: name, Count: len(col.items), Dimension: col.dimension})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

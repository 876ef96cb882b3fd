package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"elearning-chatbot-be/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"bolt": func(t *testing.T) Store {
			s, err := NewBoltStore(filepath.Join(t.TempDir(), "kb.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStoreOverwriteIsIdempotent(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Upsert(ctx, "faq", Item{ID: "faq_1", Text: "answer A", Vector: []float32{1, 0, 0}}))
			require.NoError(t, s.Upsert(ctx, "faq", Item{ID: "faq_1", Text: "answer B", Vector: []float32{0, 1, 0}}))

			matches, err := s.Search(ctx, "faq", []float32{0, 1, 0}, 5)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, "answer B", matches[0].Text)
			assert.InDelta(t, 0, matches[0].Distance, 1e-6)

			count, err := s.Count(ctx, "faq")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestStoreSearchOrdering(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			vectors := map[string][]float32{
				"far":    {-1, 0},
				"near":   {1, 0.1},
				"middle": {0, 1},
				"exact":  {1, 0},
			}
			for _, id := range []string{"far", "near", "middle", "exact"} {
				require.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: id, Text: id, Vector: vectors[id]}))
			}

			for _, k := range []int{1, 2, 3, 4, 10} {
				matches, err := s.Search(ctx, "knowledge", []float32{1, 0}, k)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(matches), k)
				for i, m := range matches {
					assert.GreaterOrEqual(t, m.Distance, 0.0)
					if i > 0 {
						assert.LessOrEqual(t, matches[i-1].Distance, m.Distance)
					}
				}
			}

			matches, _ := s.Search(ctx, "knowledge", []float32{1, 0}, 4)
			ids := []string{}
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, []string{"exact", "near", "middle", "far"}, ids)
		})
	}
}

func TestStoreTiesKeepInsertionOrder(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			for _, id := range []string{"c", "a", "b"} {
				require.NoError(t, s.Upsert(ctx, "courses", Item{ID: id, Text: id, Vector: []float32{0.5, 0.5}}))
			}
			// overwriting keeps the original position
			require.NoError(t, s.Upsert(ctx, "courses", Item{ID: "c", Text: "c2", Vector: []float32{0.5, 0.5}}))

			matches, err := s.Search(ctx, "courses", []float32{1, 1}, 3)
			require.NoError(t, err)
			require.Len(t, matches, 3)
			assert.Equal(t, "c", matches[0].ID)
			assert.Equal(t, "c2", matches[0].Text)
			assert.Equal(t, "a", matches[1].ID)
			assert.Equal(t, "b", matches[2].ID)
		})
	}
}

func TestStoreUnknownCollection(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, err := s.Search(ctx, "missing", []float32{1}, 3)
			assert.ErrorIs(t, err, ErrCollectionNotFound)
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			count, err := s.Count(ctx, "missing")
			assert.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	}
}

func TestStoreRejectsBadInput(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: "a", Text: "a", Vector: []float32{1, 0, 0}}))

			err := s.Upsert(ctx, "knowledge", Item{ID: "b", Text: "b", Vector: []float32{1, 0}})
			assert.ErrorIs(t, err, ErrDimensionMismatch)
			assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

			_, err = s.Search(ctx, "knowledge", []float32{1, 0}, 1)
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			assert.ErrorIs(t, s.Upsert(ctx, "knowledge", Item{Text: "no id", Vector: []float32{1, 0, 0}}), ErrInvalidItem)
			assert.ErrorIs(t, s.Upsert(ctx, "knowledge", Item{ID: "x"}), ErrInvalidItem)

			matches, err := s.Search(ctx, "knowledge", []float32{1, 0, 0}, 0)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestStoreCollections(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: "a", Text: "a", Vector: []float32{1, 0}}))
			require.NoError(t, s.Upsert(ctx, "faq", Item{ID: "f", Text: "f", Vector: []float32{1, 0, 0}}))
			require.NoError(t, s.Upsert(ctx, "faq", Item{ID: "g", Text: "g", Vector: []float32{0, 1, 0}}))

			stats, err := s.Collections(ctx)
			require.NoError(t, err)
			assert.Equal(t, []CollectionStat{
				{Name: "faq", Count: 2, Dimension: 3},
				{Name: "knowledge", Count: 1, Dimension: 2},
			}, stats)
		})
	}
}

func TestStoreConcurrentReadersAndWriters(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: "seed", Text: "seed", Vector: []float32{1, 1}}))

			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(2)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						id := fmt.Sprintf("doc-%d", i%5)
						text := fmt.Sprintf("writer %d rev %d", w, i)
						assert.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: id, Text: text, Vector: []float32{float32(i + 1), 1}}))
					}
				}(w)
				go func() {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						matches, err := s.Search(ctx, "knowledge", []float32{1, 0}, 3)
						assert.NoError(t, err)
						for _, m := range matches {
							assert.NotEmpty(t, m.Text)
						}
					}
				}()
			}
			wg.Wait()

			count, err := s.Count(ctx, "knowledge")
			require.NoError(t, err)
			assert.Equal(t, 6, count)
		})
	}
}

func chunks(docID string, texts ...string) []Item {
	items := make([]Item, len(texts))
	for i, text := range texts {
		items[i] = Item{ID: DocumentItemID(docID, i), Text: text, Vector: []float32{1, float32(i)}}
	}
	return items
}

func TestStoreReplaceDocument(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: "guide", Text: "legacy", Vector: []float32{1, 1}}))
			require.NoError(t, s.Upsert(ctx, "knowledge", Item{ID: "guide_2", Text: "neighbour", Vector: []float32{1, 1}}))
			require.NoError(t, s.ReplaceDocument(ctx, "knowledge", "guide", chunks("guide", "A0", "A1", "A2", "A3")))
			require.NoError(t, s.ReplaceDocument(ctx, "knowledge", "guide", chunks("guide", "B0")))

			matches, err := s.Search(ctx, "knowledge", []float32{1, 0}, 10)
			require.NoError(t, err)
			texts := map[string]string{}
			for _, m := range matches {
				texts[m.ID] = m.Text
			}
			assert.Equal(t, map[string]string{"guide#0": "B0", "guide_2": "neighbour"}, texts)
		})
	}
}

func TestStoreReplaceDocumentRejectsWithoutWriting(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  error
	}{
		{"no items", nil, ErrInvalidItem},
		{"foreign id", []Item{{ID: "other#0", Text: "x", Vector: []float32{1, 0}}}, ErrInvalidItem},
		{"mixed dimensions", []Item{
			{ID: "guide#0", Text: "x", Vector: []float32{1, 0}},
			{ID: "guide#1", Text: "y", Vector: []float32{1, 0, 0}},
		}, ErrDimensionMismatch},
		{"collection dimension", []Item{{ID: "guide#0", Text: "x", Vector: []float32{1, 0, 0}}}, ErrDimensionMismatch},
	}
	for name, newStore := range backends() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				s := newStore(t)
				require.NoError(t, s.ReplaceDocument(ctx, "knowledge", "guide", chunks("guide", "A0", "A1")))

				assert.ErrorIs(t, s.ReplaceDocument(ctx, "knowledge", "guide", tt.items), tt.want)

				count, err := s.Count(ctx, "knowledge")
				require.NoError(t, err)
				assert.Equal(t, 2, count)
			})
		}
	}
}

func TestInDocument(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"kb_1", true},
		{"kb_1#0", true},
		{"kb_1#12", true},
		{"kb_10", false},
		{"kb_10#0", false},
		{"kb_", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, InDocument("kb_1", tt.id))
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

type fakeEncoder struct{ err error }

func (f fakeEncoder) EncodeDocument(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f fakeEncoder) EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.EncodeDocument(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestIngestor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ing := NewIngestor(store, fakeEncoder{})
	require.NoError(t, ing.Upsert(ctx, "faq", "faq_1", "Q: refund?\nA: within 7 days", map[string]string{"source": "FAQ"}))
	assert.ErrorIs(t, ing.Upsert(ctx, "faq", "faq_2", "", nil), ErrInvalidItem)

	failing := NewIngestor(store, fakeEncoder{err: fmt.Errorf("embedding down")})
	assert.Error(t, failing.Upsert(ctx, "faq", "faq_3", "text", nil))

	count, _ := store.Count(ctx, "faq")
	assert.Equal(t, 1, count)

	require.NoError(t, ing.UpsertDocument(ctx, "knowledge", "kb_1", []string{"part one", "part two"}, map[string]string{"source": "Guide"}))
	matches, err := store.Search(ctx, "knowledge", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "kb_1", m.Metadata["document_id"])
		assert.Equal(t, "Guide", m.Metadata["source"])
	}

	assert.ErrorIs(t, ing.UpsertDocument(ctx, "knowledge", "kb_2", []string{"ok", ""}, nil), ErrInvalidItem)
	assert.Error(t, failing.UpsertDocument(ctx, "knowledge", "kb_1", []string{"replacement"}, nil))
	count, _ = store.Count(ctx, "knowledge")
	assert.Equal(t, 2, count)
}

package retriever

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/embedding"
	"elearning-chatbot-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEncoder struct {
	vectors map[string][]float32
	err     error
	delay   time.Duration
}

func (f *fixedEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func seeded(t *testing.T) vectorstore.Store {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()
	items := []vectorstore.Item{
		{ID: "enroll", Text: "How to enroll", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"source": "FAQ", "type": "faq"}},
		{ID: "progress", Text: "Track progress", Vector: []float32{0.8, 0.6, 0}, Metadata: map[string]string{"source": "FAQ"}},
		{ID: "platform", Text: "Platform overview", Vector: []float32{0.6, 0.8, 0}},
		{ID: "payment", Text: "Payment methods", Vector: []float32{0, 0, 1}, Metadata: map[string]string{"source": "Billing"}},
	}
	for _, it := range items {
		require.NoError(t, store.Upsert(ctx, "knowledge", it))
	}
	return store
}

func newRetriever(store vectorstore.Store, enc QueryEncoder) *Retriever {
	return New(store, enc, Config{MaxTopK: 10, DefaultTopK: 5, DistanceThreshold: 0.65, SearchTimeout: time.Second}, logger.NewNopLogger())
}

func TestRetrieve(t *testing.T) {
	enc := &fixedEncoder{vectors: map[string][]float32{"enroll": {1, 0, 0}}}
	r := newRetriever(seeded(t), enc)

	tests := []struct {
		name      string
		topK      int
		threshold float64
		wantIDs   []string
	}{
		{"threshold drops unrelated", 5, 0.65, []string{"enroll", "progress", "platform"}},
		{"tight threshold", 5, 0.3, []string{"enroll", "progress"}},
		{"top k limits", 1, 0.65, []string{"enroll"}},
		{"zero top k uses default", 0, 2, []string{"enroll", "progress", "platform", "payment"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Retrieve(context.Background(), "enroll", tt.topK, tt.threshold)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, s := range got {
				ids[i] = s.ID
				assert.GreaterOrEqual(t, s.Score, 0.0)
				assert.LessOrEqual(t, s.Score, 1.0)
				if i > 0 {
					assert.LessOrEqual(t, got[i-1].Distance, s.Distance)
				}
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRetrieveProvenance(t *testing.T) {
	enc := &fixedEncoder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	got, err := newRetriever(seeded(t), enc).Retrieve(context.Background(), "q", 3, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "FAQ", got[0].Source)
	assert.Equal(t, "faq", got[0].Type)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, DefaultSource, got[2].Source)
	assert.Equal(t, DefaultType, got[2].Type)
	assert.Equal(t, []string{"FAQ", DefaultSource}, Sources(got))
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name  string
		store vectorstore.Store
		enc   *fixedEncoder
	}{
		{"empty store", vectorstore.NewMemoryStore(), &fixedEncoder{vectors: map[string][]float32{"hello": {1, 0}}}},
		{"encoder down", vectorstore.NewMemoryStore(), &fixedEncoder{err: apperr.Unavailable(errors.New("connection refused"))}},
		{"dimension mismatch", seeded(t), &fixedEncoder{vectors: map[string][]float32{"hello": {1, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newRetriever(tt.store, tt.enc).Retrieve(context.Background(), "hello", 5, 0.65)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestRetrieveTimeoutYieldsEmpty(t *testing.T) {
	enc := &fixedEncoder{vectors: map[string][]float32{"slow": {1, 0, 0}}, delay: time.Second}
	r := New(seeded(t), enc, Config{EncodeTimeout: 10 * time.Millisecond, DistanceThreshold: 1}, logger.NewNopLogger())

	start := time.Now()
	got, err := r.Retrieve(context.Background(), "slow", 5, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	_, err := newRetriever(vectorstore.NewMemoryStore(), &fixedEncoder{}).Retrieve(context.Background(), "  ", 5, 0.5)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestSearchCoursesAndFAQ(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	encoder := embedding.NewEncoder(embedding.NewHashingProvider(64), 64, 2, time.Second)
	ing := vectorstore.NewIngestor(store, encoder)

	require.NoError(t, ing.Upsert(ctx, "courses", "go-101", "Introduction to Go programming", map[string]string{"source": "Course Catalog"}))
	require.NoError(t, ing.Upsert(ctx, "faq", "faq_1", "Q: How do I get a certificate?\nA: Finish every lesson.", nil))

	r := New(store, encoder, Config{DistanceThreshold: 2}, logger.NewNopLogger())

	courses, err := r.SearchCourses(ctx, "Go programming", 3)
	require.NoError(t, err)
	require.NotEmpty(t, courses)
	assert.Equal(t, "go-101", courses[0].ID)
	assert.Equal(t, "Course Catalog", courses[0].Source)

	faqs, err := r.SearchFAQ(ctx, "certificate", 3)
	require.NoError(t, err)
	require.NotEmpty(t, faqs)
	assert.Equal(t, "faq_1", faqs[0].ID)
}

func TestRetrieveConcurrent(t *testing.T) {
	enc := &fixedEncoder{vectors: map[string][]float32{"enroll": {1, 0, 0}}}
	r := newRetriever(seeded(t), enc)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Retrieve(context.Background(), "enroll", 2, 0.65)
			assert.NoError(t, err)
			assert.Len(t, got, 2)
		}()
	}
	wg.Wait()
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score(0))
	assert.Equal(t, 0.0, Score(1.7))
	assert.InDelta(t, 0.35, Score(0.65), 1e-9)
}

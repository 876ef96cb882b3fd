package retriever

import (
	"context"
	"errors"
	"strings"
	"time"

	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/vectorstore"
)

const (
	DefaultSource = "Knowledge Base"
	DefaultType   = "general"
)

// QueryEncoder is the part of embedding.Encoder the retriever needs.
type QueryEncoder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
}

// Snippet is one piece of retrieved context with its provenance.
type Snippet struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Type     string            `json:"type"`
	Score    float64           `json:"score"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Config struct {
	Collection        string
	CourseCollection  string
	FAQCollection     string
	DefaultTopK       int
	MaxTopK           int
	DistanceThreshold float64
	EncodeTimeout     time.Duration
	SearchTimeout     time.Duration
}

type Retriever struct {
	store   vectorstore.Store
	encoder QueryEncoder
	cfg     Config
	logger  logger.ILogger
}

func New(store vectorstore.Store, encoder QueryEncoder, cfg Config, log logger.ILogger) *Retriever {
	if cfg.Collection == "" {
		cfg.Collection = "knowledge"
	}
	if cfg.CourseCollection == "" {
		cfg.CourseCollection = "courses"
	}
	if cfg.FAQCollection == "" {
		cfg.FAQCollection = "faq"
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 10
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Retriever{store: store, encoder: encoder, cfg: cfg, logger: log}
}

// Retrieve searches the primary knowledge collection. Only an empty query is
// an error; every other failure is logged and yields no snippets.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]Snippet, error) {
	return r.search(ctx, r.cfg.Collection, query, topK, threshold)
}

// SearchCourses looks up the course catalogue with the configured threshold.
func (r *Retriever) SearchCourses(ctx context.Context, query string, topK int) ([]Snippet, error) {
	return r.search(ctx, r.cfg.CourseCollection, query, topK, r.cfg.DistanceThreshold)
}

func (r *Retriever) SearchFAQ(ctx context.Context, query string, topK int) ([]Snippet, error) {
	return r.search(ctx, r.cfg.FAQCollection, query, topK, r.cfg.DistanceThreshold)
}

func (r *Retriever) search(ctx context.Context, collection, query string, topK int, threshold float64) ([]Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Invalid("query is empty")
	}
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}
	if topK > r.cfg.MaxTopK {
		topK = r.cfg.MaxTopK
	}

	vector, err := r.encode(ctx, query)
	if err != nil {
		r.logger.Warn("RETRIEVER", "Query encoding failed, continuing without context", map[string]interface{}{
			"collection": collection,
			"error":      err,
		})
		return []Snippet{}, nil
	}

	searchCtx, cancel := withTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()
	matches, err := r.store.Search(searchCtx, collection, vector, topK)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			r.logger.Debug("RETRIEVER", "Collection not created yet", map[string]interface{}{"collection": collection})
		} else {
			r.logger.Warn("RETRIEVER", "Vector search failed, continuing without context", map[string]interface{}{
				"collection": collection,
				"error":      err,
			})
		}
		return []Snippet{}, nil
	}

	snippets := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		if m.Distance > threshold {
			continue
		}
		snippets = append(snippets, toSnippet(m))
	}

	r.logger.Debug("RETRIEVER", "Retrieved context", map[string]interface{}{
		"collection": collection,
		"candidates": len(matches),
		"kept":       len(snippets),
	})
	return snippets, nil
}

func (r *Retriever) encode(ctx context.Context, query string) ([]float32, error) {
	encodeCtx, cancel := withTimeout(ctx, r.cfg.EncodeTimeout)
	defer cancel()
	return r.encoder.EncodeQuery(encodeCtx, query)
}

func toSnippet(m vectorstore.Match) Snippet {
	source := m.Metadata["source"]
	if source == "" {
		source = DefaultSource
	}
	typ := m.Metadata["type"]
	if typ == "" {
		typ = DefaultType
	}
	return Snippet{
		ID:       m.ID,
		Content:  m.Text,
		Source:   source,
		Type:     typ,
		Score:    Score(m.Distance),
		Distance: m.Distance,
		Metadata: m.Metadata,
	}
}

// Score maps a distance to a relevance in [0,1].
func Score(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Sources returns the distinct source labels in retrieval order.
func Sources(snippets []Snippet) []string {
	seen := make(map[string]struct{}, len(snippets))
	out := make([]string, 0, len(snippets))
	for _, s := range snippets {
		if _, ok := seen[s.Source]; ok {
			continue
		}
		seen[s.Source] = struct{}{}
		out = append(out, s.Source)
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

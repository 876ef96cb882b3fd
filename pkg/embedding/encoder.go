package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"elearning-chatbot-be/internal/pkg/apperr"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Encoder is the single entry point for turning text into vectors. A weighted
// semaphore caps how many embedding calls run at once, so bursts of requests
// queue here instead of starving the rest of the process.
type Encoder struct {
	provider  EmbeddingProvider
	dimension int
	timeout   time.Duration
	workers   int64
	pool      *semaphore.Weighted
}

func NewEncoder(provider EmbeddingProvider, dimension, workers int, timeout time.Duration) *Encoder {
	if workers <= 0 {
		workers = 1
	}
	return &Encoder{
		provider:  provider,
		dimension: dimension,
		timeout:   timeout,
		workers:   int64(workers),
		pool:      semaphore.NewWeighted(int64(workers)),
	}
}

func (e *Encoder) Dimension() int {
	return e.dimension
}

func (e *Encoder) ProviderName() string {
	return e.provider.Name()
}

func (e *Encoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return e.Encode(ctx, text, TaskRetrievalQuery)
}

func (e *Encoder) EncodeDocument(ctx context.Context, text string) ([]float32, error) {
	return e.Encode(ctx, text, TaskRetrievalDocument)
}

func (e *Encoder) EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EncodeBatch(ctx, texts, TaskRetrievalDocument)
}

func (e *Encoder) Encode(ctx context.Context, text string, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("cannot embed empty text")
	}

	if err := e.pool.Acquire(ctx, 1); err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("embedding pool: %w", err))
	}
	defer e.pool.Release(1)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.provider.Generate(callCtx, text, taskType)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("embedding via %s: %w", e.provider.Name(), err))
	}

	values := resp.Embedding.Values
	if len(values) != e.dimension {
		return nil, apperr.Internal(fmt.Errorf("embedding via %s has dimension %d, expected %d", e.provider.Name(), len(values), e.dimension))
	}
	return normalizeVector(values), nil
}

// EncodeBatch encodes texts concurrently, bounded by the pool size, and keeps input order.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(e.workers))
	for i, text := range texts {
		g.Go(func() error {
			v, err := e.Encode(gctx, text, taskType)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

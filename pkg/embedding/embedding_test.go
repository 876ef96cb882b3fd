package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"elearning-chatbot-be/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	values []float32
	err    error
	delay  time.Duration

	calls   atomic.Int32
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return newResponse(append([]float32(nil), s.values...)), nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (norm(a) * norm(b))
}

func TestHashingProviderIsDeterministic(t *testing.T) {
	p := NewHashingProvider(64)
	ctx := context.Background()

	a, err := p.Generate(ctx, "How do I reset my password?", TaskRetrievalQuery)
	require.NoError(t, err)
	b, err := p.Generate(ctx, "how do i RESET my password", TaskRetrievalDocument)
	require.NoError(t, err)

	assert.Len(t, a.Embedding.Values, 64)
	assert.Equal(t, a.Embedding.Values, b.Embedding.Values)
}

func TestHashingProviderSimilarity(t *testing.T) {
	p := NewHashingProvider(256)
	ctx := context.Background()

	q, _ := p.Generate(ctx, "course certificate download", "")
	near, _ := p.Generate(ctx, "how to download the course certificate", "")
	far, _ := p.Generate(ctx, "payment refund policy for bank transfer", "")

	assert.Greater(t, cosine(q.Embedding.Values, near.Embedding.Values), cosine(q.Embedding.Values, far.Embedding.Values))
}

func TestFallbackProvider(t *testing.T) {
	ctx := context.Background()
	primary := &stubProvider{name: "primary", err: errors.New("503")}
	secondary := &stubProvider{name: "secondary", values: []float32{1, 2}}
	never := &stubProvider{name: "never", values: []float32{9, 9}}

	f := NewFallbackProvider(primary, secondary, never)
	resp, err := f.Generate(ctx, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, resp.Embedding.Values)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(0), never.calls.Load())
	assert.Equal(t, "primary>secondary>never", f.Name())

	allFail := NewFallbackProvider(primary, &stubProvider{name: "empty"})
	_, err = allFail.Generate(ctx, "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary: 503")
	assert.Contains(t, err.Error(), "empty: empty embedding")
}

func TestEncoderNormalizesAndValidates(t *testing.T) {
	ctx := context.Background()
	enc := NewEncoder(&stubProvider{name: "stub", values: []float32{3, 4}}, 2, 2, time.Second)

	v, err := enc.EncodeQuery(ctx, "hello")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(v), 1e-6)
	assert.InDelta(t, 0.6, v[0], 1e-6)

	_, err = enc.EncodeDocument(ctx, "   ")
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	wrongDim := NewEncoder(&stubProvider{name: "stub", values: []float32{1, 2, 3}}, 2, 1, time.Second)
	_, err = wrongDim.EncodeQuery(ctx, "hello")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestEncoderTimeoutIsUnavailable(t *testing.T) {
	slow := &stubProvider{name: "slow", values: []float32{1}, delay: time.Second}
	enc := NewEncoder(slow, 1, 1, 20*time.Millisecond)

	start := time.Now()
	_, err := enc.EncodeQuery(context.Background(), "hello")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestEncoderBoundsConcurrency(t *testing.T) {
	p := &stubProvider{name: "stub", values: []float32{1, 0}, delay: 10 * time.Millisecond}
	enc := NewEncoder(p, 2, 3, time.Second)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = "text"
	}
	out, err := enc.EncodeBatch(context.Background(), texts, TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Len(t, out, 12)
	assert.LessOrEqual(t, p.maxSeen, 3)
	assert.Equal(t, int32(12), p.calls.Load())
}

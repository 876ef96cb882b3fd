package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashingProvider is a deterministic, offline bag-of-words embedder using
// signed feature hashing over unigrams and bigrams. Used as the last link of
// the fallback chain and in tests.
type HashingProvider struct {
	dimension int
}

func NewHashingProvider(dimension int) EmbeddingProvider {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingProvider{dimension: dimension}
}

func (p *HashingProvider) Name() string {
	return "hashing"
}

func (p *HashingProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make([]float32, p.dimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		p.add(values, tok, 1)
		if i > 0 {
			p.add(values, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return newResponse(values), nil
}

func (p *HashingProvider) add(values []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(p.dimension)
	if h&(1<<63) != 0 {
		weight = -weight
	}
	values[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

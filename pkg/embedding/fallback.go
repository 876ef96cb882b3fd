package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FallbackProvider tries each provider in order; the first success wins.
// Every provider in the chain must produce the same dimension.
type FallbackProvider struct {
	providers []EmbeddingProvider
}

func NewFallbackProvider(providers ...EmbeddingProvider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

func (f *FallbackProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

func (f *FallbackProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if len(f.providers) == 0 {
		return nil, errors.New("no embedding providers configured")
	}

	var errs []error
	for _, p := range f.providers {
		resp, err := p.Generate(ctx, text, taskType)
		if err == nil && resp != nil && len(resp.Embedding.Values) > 0 {
			return resp, nil
		}
		if err == nil {
			err = errors.New("empty embedding")
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

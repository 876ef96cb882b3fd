package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FallbackProvider tries each provider in order and returns the first success.
// When every provider fails the last provider's error decides the category.
type FallbackProvider struct {
	providers []LLMProvider
}

var _ LLMProvider = &FallbackProvider{}

func NewFallbackProvider(providers ...LLMProvider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

func (f *FallbackProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

func (f *FallbackProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return f.try(ctx, func(p LLMProvider) (string, error) {
		return p.Chat(ctx, history, options...)
	})
}

func (f *FallbackProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return f.try(ctx, func(p LLMProvider) (string, error) {
		return p.Generate(ctx, prompt, options...)
	})
}

func (f *FallbackProvider) try(ctx context.Context, call func(LLMProvider) (string, error)) (string, error) {
	if len(f.providers) == 0 {
		return "", &OtherError{Cause: errors.New("no llm providers configured")}
	}

	var failed []string
	var lastErr error
	for _, p := range f.providers {
		out, err := call(p)
		if err == nil {
			return out, nil
		}
		lastErr = Classify(err)
		failed = append(failed, fmt.Sprintf("%s: %v", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(failed) == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("all providers failed [%s]: %w", strings.Join(failed[:len(failed)-1], "; "), lastErr)
}

package prompt

import (
	"unicode/utf8"

	"elearning-chatbot-be/internal/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text against the model's context window.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// RuneCounter estimates four runes per token. It is the fallback when the
// BPE ranks cannot be loaded.
type RuneCounter struct{}

func (RuneCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// NewTokenCounter loads the named tiktoken encoding, falling back to
// RuneCounter when the encoding is unavailable.
func NewTokenCounter(encoding string, log logger.ILogger) TokenCounter {
	if encoding == "" {
		return RuneCounter{}
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		log.Warn("PROMPT", "Token encoding unavailable, estimating from rune count", map[string]interface{}{
			"encoding": encoding,
			"error":    err,
		})
		return RuneCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

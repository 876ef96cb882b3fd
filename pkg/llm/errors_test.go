package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		rate    bool
		unavail bool
	}{
		{"429", &StatusError{Provider: "x", StatusCode: 429}, true, false},
		{"503", &StatusError{Provider: "x", StatusCode: 503}, false, true},
		{"529 overloaded", &StatusError{Provider: "x", StatusCode: 529}, false, true},
		{"400", &StatusError{Provider: "x", StatusCode: 400}, false, false},
		{"wrapped 502", fmt.Errorf("call: %w", &StatusError{Provider: "x", StatusCode: 502}), false, true},
		{"deadline", context.DeadlineExceeded, false, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, false, true},
		{"plain", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.rate, errors.Is(got, ErrRateLimited))
			assert.Equal(t, tt.unavail, errors.Is(got, ErrUnavailable))
			if !tt.rate && !tt.unavail {
				var oe *OtherError
				assert.True(t, errors.As(got, &oe))
			}
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify(&StatusError{StatusCode: 429})
	assert.Same(t, first, Classify(first))
	assert.Nil(t, Classify(nil))
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	msg := (&StatusError{Provider: "gemini", StatusCode: 500, Body: string(long)}).Error()
	assert.Contains(t, msg, "status 500")
	assert.Less(t, len(msg), 400)
}

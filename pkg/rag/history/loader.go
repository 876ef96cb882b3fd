package history

import (
	"context"
	"fmt"
	"time"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/repository/contract"
)

// Loader reads the bounded turn history of a session.
type Loader struct {
	repo    contract.ChatTurnRepository
	window  int
	timeout time.Duration
	logger  logger.ILogger
}

// NewLoader keeps at most window turns per load.
func NewLoader(repo contract.ChatTurnRepository, window int, timeout time.Duration, log logger.ILogger) *Loader {
	if window <= 0 {
		window = 5
	}
	return &Loader{repo: repo, window: window, timeout: timeout, logger: log}
}

func (l *Loader) Window() int {
	return l.window
}

// Recent returns up to limit turns, oldest first. Storage returns them
// newest first so the slice is reversed here.
func (l *Loader) Recent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error) {
	if limit <= 0 {
		return []*entity.ChatTurn{}, nil
	}
	callCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	turns, err := l.repo.FindRecent(callCtx, sessionID, limit)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("load history: %w", err))
	}
	if len(turns) > limit {
		turns = turns[:limit]
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Load returns the last window turns oldest first. A storage failure is
// logged and yields an empty history.
func (l *Loader) Load(ctx context.Context, sessionID string) []*entity.ChatTurn {
	turns, err := l.Recent(ctx, sessionID, l.window)
	if err != nil {
		l.logger.Warn("HISTORY", "Failed to load conversation history", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
		return []*entity.ChatTurn{}
	}
	return turns
}

// Tail keeps the newest n of an oldest-first slice.
func Tail(turns []*entity.ChatTurn, n int) []*entity.ChatTurn {
	if n <= 0 {
		return []*entity.ChatTurn{}
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

package memory

import (
	"context"
	"time"

	"elearning-chatbot-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// SessionCache is the in-process volatile session tier.
type SessionCache struct {
	cache *cache.Cache
}

// NewSessionCache expires entries after ttl and purges them every cleanupInterval.
func NewSessionCache(ttl, cleanupInterval time.Duration) *SessionCache {
	return &SessionCache{
		cache: cache.New(ttl, cleanupInterval),
	}
}

func (r *SessionCache) Get(_ context.Context, sessionID string) (*entity.ChatSession, bool, error) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*entity.ChatSession).Clone(), true, nil
	}
	return nil, false, nil
}

func (r *SessionCache) Set(_ context.Context, session *entity.ChatSession) error {
	r.cache.Set(session.Id, session.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *SessionCache) Delete(_ context.Context, sessionID string) error {
	r.cache.Delete(sessionID)
	return nil
}

func (r *SessionCache) Len() int {
	return r.cache.ItemCount()
}

func (r *SessionCache) Close() error {
	r.cache.Flush()
	return nil
}

package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"elearning-chatbot-be/internal/entity"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// SessionCache keeps sessions in redis so several API processes share one
// volatile tier. Errors are returned to the caller, which decides to degrade.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, ttl: ttl}
}

type cachedSession struct {
	Id        string                `json:"id"`
	UserId    string                `json:"user_id"`
	IsActive  bool                  `json:"is_active"`
	Context   entity.SessionContext `json:"context"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (c *SessionCache) Get(ctx context.Context, sessionID string) (*entity.ChatSession, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var cs cachedSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		// A corrupt entry behaves like a miss and is dropped.
		_ = c.rdb.Del(ctx, keyPrefix+sessionID).Err()
		return nil, false, nil
	}

	session := &entity.ChatSession{
		Id:        cs.Id,
		UserId:    cs.UserId,
		IsActive:  cs.IsActive,
		Context:   cs.Context,
		CreatedAt: cs.CreatedAt,
		UpdatedAt: cs.UpdatedAt,
	}
	if session.Context.Topics == nil {
		session.Context.Topics = []string{}
	}
	if session.Context.Preferences == nil {
		session.Context.Preferences = map[string]interface{}{}
	}
	return session, true, nil
}

func (c *SessionCache) Set(ctx context.Context, session *entity.ChatSession) error {
	raw, err := json.Marshal(cachedSession{
		Id:        session.Id,
		UserId:    session.UserId,
		IsActive:  session.IsActive,
		Context:   session.Context,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.rdb.Set(ctx, keyPrefix+session.Id, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *SessionCache) Close() error {
	return c.rdb.Close()
}

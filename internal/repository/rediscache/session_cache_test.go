package rediscache

import (
	"context"
	"testing"
	"time"

	"elearning-chatbot-be/internal/entity"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// An unreachable server must surface errors instead of hanging or panicking,
// so the session store can fall back to durable storage.
func TestSessionCacheUnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewSessionCache(rdb, time.Minute)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, "s1")
	assert.False(t, ok)
	assert.Error(t, err)

	err = c.Set(ctx, &entity.ChatSession{Id: "s1", Context: entity.NewSessionContext()})
	assert.Error(t, err)

	assert.Error(t, c.Delete(ctx, "s1"))
}

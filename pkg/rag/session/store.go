package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
)

// Cache is the volatile tier. Implementations: memory.SessionCache (go-cache)
// and rediscache.SessionCache.
type Cache interface {
	Get(ctx context.Context, sessionID string) (*entity.ChatSession, bool, error)
	Set(ctx context.Context, session *entity.ChatSession) error
	Delete(ctx context.Context, sessionID string) error
}

type Config struct {
	MaxTopics      int
	StorageTimeout time.Duration
}

// Store resolves sessions through the cache and falls back to durable
// storage. Durable storage is always written first and writes invalidate the
// cache entry; the cache only ever holds active sessions read from storage
// and any cache failure is logged and ignored.
type Store struct {
	repo   contract.ChatSessionRepository
	cache  Cache
	cfg    Config
	logger logger.ILogger
	now    func() time.Time
}

func NewStore(repo contract.ChatSessionRepository, cache Cache, cfg Config, log logger.ILogger) *Store {
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = 10
	}
	return &Store{repo: repo, cache: cache, cfg: cfg, logger: log, now: time.Now}
}

// GetOrCreate returns the caller's active session with the given id, or a
// new one. Unknown, ended and foreign ids all lead to a new session.
func (s *Store) GetOrCreate(ctx context.Context, userID, sessionID string) (*entity.ChatSession, error) {
	if userID == "" {
		return nil, apperr.Invalid("user id is required")
	}

	if sessionID != "" {
		existing, err := s.lookup(ctx, sessionID)
		if err != nil {
			s.logger.Warn("SESSION", "Session lookup failed, creating a new one", map[string]interface{}{
				"session_id": sessionID,
				"error":      err,
			})
		}
		if existing != nil && existing.IsActive && existing.UserId == userID {
			return existing, nil
		}
		if existing != nil && existing.UserId != userID {
			s.logger.Warn("SESSION", "Session belongs to another user", map[string]interface{}{
				"session_id": sessionID,
				"user_id":    userID,
			})
		}
	}

	now := s.now()
	created := &entity.ChatSession{
		Id:        uuid.NewString(),
		UserId:    userID,
		IsActive:  true,
		Context:   entity.NewSessionContext(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctxStore, cancel := s.storageContext(ctx)
	defer cancel()
	if err := s.repo.Create(ctxStore, created); err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("create session: %w", err))
	}
	s.cacheSet(ctx, created)

	s.logger.Info("SESSION", "Created new session", map[string]interface{}{
		"session_id": created.Id,
		"user_id":    userID,
	})
	return created.Clone(), nil
}

// Get returns the session in any state, or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*entity.ChatSession, error) {
	found, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("load session: %w", err))
	}
	if found == nil {
		return nil, apperr.NotFound("session %s", sessionID)
	}
	return found, nil
}

// ContextOf returns a copy of the session's context blob.
func (s *Store) ContextOf(ctx context.Context, sessionID string) (*entity.SessionContext, error) {
	found, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c := found.Context
	return &c, nil
}

// UpdateContext records a finished turn. A missing or ended session is a
// logged no-op; only a durable storage failure is returned.
func (s *Store) UpdateContext(ctx context.Context, sessionID string, update entity.ContextUpdate) error {
	err := s.mutate(ctx, sessionID, func(c *entity.SessionContext) {
		c.LastMessage = update.Message
		c.LastResponse = update.Response
		c.Topics = MergeTopics(c.Topics, update.Topics, s.cfg.MaxTopics)
		mergePreferences(c, update.Preferences)
	})
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Info("SESSION", "Skipping context update for inactive session", map[string]interface{}{
			"session_id": sessionID,
		})
		return nil
	}
	return err
}

// UpdatePreferences merges prefs into the context, last write wins per key.
// Unlike UpdateContext it reports a missing or ended session as not found.
func (s *Store) UpdatePreferences(ctx context.Context, sessionID string, prefs map[string]interface{}) error {
	return s.mutate(ctx, sessionID, func(c *entity.SessionContext) {
		mergePreferences(c, prefs)
	})
}

func (s *Store) mutate(ctx context.Context, sessionID string, apply func(*entity.SessionContext)) error {
	current, err := s.lookup(ctx, sessionID)
	if err != nil {
		return apperr.Unavailable(fmt.Errorf("load session: %w", err))
	}
	if current == nil || !current.IsActive {
		return apperr.NotFound("active session %s", sessionID)
	}

	next := current.Clone()
	if next.Context.Preferences == nil {
		next.Context.Preferences = map[string]interface{}{}
	}
	if next.Context.Topics == nil {
		next.Context.Topics = []string{}
	}
	apply(&next.Context)
	next.UpdatedAt = s.now()

	ctxStore, cancel := s.storageContext(ctx)
	defer cancel()
	if err := s.repo.Update(ctxStore, next); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Ended between lookup and write.
			s.cacheDelete(ctx, sessionID)
			return err
		}
		return apperr.Unavailable(fmt.Errorf("update session: %w", err))
	}
	// Invalidate rather than repopulate: an End landing after the durable
	// write must not be masked by an active snapshot.
	s.cacheDelete(ctx, sessionID)
	return nil
}

// End marks the session ended. Ending an ended or unknown session is a no-op.
func (s *Store) End(ctx context.Context, sessionID string) error {
	ctxStore, cancel := s.storageContext(ctx)
	defer cancel()
	changed, err := s.repo.Deactivate(ctxStore, sessionID, s.now())
	if err != nil {
		return apperr.Unavailable(fmt.Errorf("end session: %w", err))
	}
	s.cacheDelete(ctx, sessionID)

	if changed {
		s.logger.Info("SESSION", "Ended session", map[string]interface{}{"session_id": sessionID})
	}
	return nil
}

// ListForUser returns active and ended sessions, most recently updated first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*entity.ChatSession, error) {
	ctxStore, cancel := s.storageContext(ctx)
	defer cancel()
	sessions, err := s.repo.FindAll(ctxStore,
		specification.ByUserID{UserID: userID},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("list sessions: %w", err))
	}
	return sessions, nil
}

// CleanupExpired ends every active session idle for longer than ttl and
// returns how many were ended.
func (s *Store) CleanupExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, apperr.Invalid("ttl must be positive")
	}
	ids, err := s.repo.DeactivateIdle(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, apperr.Unavailable(fmt.Errorf("cleanup sessions: %w", err))
	}
	for _, id := range ids {
		s.cacheDelete(ctx, id)
	}
	if len(ids) > 0 {
		s.logger.Info("SESSION", "Ended idle sessions", map[string]interface{}{
			"count": len(ids),
			"ttl":   ttl.String(),
		})
	}
	return len(ids), nil
}

// lookup returns (nil, nil) when the session does not exist.
func (s *Store) lookup(ctx context.Context, sessionID string) (*entity.ChatSession, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, sessionID)
		if err != nil {
			s.logger.Warn("SESSION", "Session cache read failed", map[string]interface{}{
				"session_id": sessionID,
				"error":      err,
			})
		} else if ok {
			return cached, nil
		}
	}

	ctxStore, cancel := s.storageContext(ctx)
	defer cancel()
	found, err := s.repo.FindOne(ctxStore, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, err
	}
	if found != nil && found.IsActive {
		s.cacheSet(ctx, found)
	}
	return found, nil
}

func (s *Store) cacheSet(ctx context.Context, session *entity.ChatSession) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, session); err != nil {
		s.logger.Warn("SESSION", "Session cache write failed", map[string]interface{}{
			"session_id": session.Id,
			"error":      err,
		})
	}
}

func (s *Store) cacheDelete(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("SESSION", "Session cache delete failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
	}
}

func (s *Store) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StorageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StorageTimeout)
}

// MergeTopics appends unseen topics in order and keeps only the most recent
// max entries.
func MergeTopics(existing, detected []string, max int) []string {
	out := append([]string{}, existing...)
	seen := make(map[string]struct{}, len(out)+len(detected))
	for _, t := range out {
		seen[t] = struct{}{}
	}
	for _, t := range detected {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func mergePreferences(c *entity.SessionContext, prefs map[string]interface{}) {
	for k, v := range prefs {
		c.Preferences[k] = v
	}
}

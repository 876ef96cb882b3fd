// Package inmem holds process-local implementations of the chat repository
// contracts. They back the CLI when no database is configured and the tests
// of the packages built on top of the contracts.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"elearning-chatbot-be/internal/entity"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/repository/contract"
	"elearning-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ChatSessionRepository stores sessions in a map. It understands the chat
// specifications (ByID, ByUserID, ActiveOnly, UpdatedBefore, OrderBy on
// updated_at or created_at, Pagination) and rejects anything else.
type ChatSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.ChatSession
	// Err, when set, is returned by every call.
	Err error
}

var _ contract.ChatSessionRepository = (*ChatSessionRepository)(nil)

func NewChatSessionRepository() *ChatSessionRepository {
	return &ChatSessionRepository{sessions: make(map[string]*entity.ChatSession)}
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.Id]; exists {
		return fmt.Errorf("session %s already exists", session.Id)
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}
	r.sessions[session.Id] = session.Clone()
	return nil
}

func (r *ChatSessionRepository) Update(ctx context.Context, session *entity.ChatSession) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.Id]
	if !ok || !stored.IsActive {
		return apperr.NotFound("active session %s", session.Id)
	}
	updated := stored.Clone()
	updated.Context = session.Clone().Context
	updated.UpdatedAt = session.UpdatedAt
	r.sessions[session.Id] = updated
	return nil
}

func (r *ChatSessionRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *ChatSessionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.RLock()
	out := make([]*entity.ChatSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()

	// Stable base order so results are deterministic.
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })

	var page *specification.Pagination
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			out = filterSessions(out, func(cs *entity.ChatSession) bool { return cs.Id == s.ID })
		case specification.ByUserID:
			out = filterSessions(out, func(cs *entity.ChatSession) bool { return cs.UserId == s.UserID })
		case specification.ActiveOnly:
			out = filterSessions(out, func(cs *entity.ChatSession) bool { return cs.IsActive })
		case specification.UpdatedBefore:
			out = filterSessions(out, func(cs *entity.ChatSession) bool { return cs.UpdatedAt.Before(s.Cutoff) })
		case specification.OrderBy:
			key, err := sessionTime(s.Field)
			if err != nil {
				return nil, err
			}
			sort.SliceStable(out, func(i, j int) bool {
				if s.Desc {
					return key(out[i]).After(key(out[j]))
				}
				return key(out[i]).Before(key(out[j]))
			})
		case specification.Pagination:
			p := s
			page = &p
		default:
			return nil, fmt.Errorf("inmem: unsupported specification %T", spec)
		}
	}
	return paginate(out, page), nil
}

func (r *ChatSessionRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func (r *ChatSessionRepository) Deactivate(ctx context.Context, id string, at time.Time) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	s.UpdatedAt = at
	return true, nil
}

func (r *ChatSessionRepository) DeactivateIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.sessions {
		if s.IsActive && s.UpdatedAt.Before(cutoff) {
			s.IsActive = false
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Touch rewrites updated_at, letting tests age a session.
func (r *ChatSessionRepository) Touch(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.UpdatedAt = at
	}
}

func filterSessions(in []*entity.ChatSession, keep func(*entity.ChatSession) bool) []*entity.ChatSession {
	out := in[:0]
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func sessionTime(field string) (func(*entity.ChatSession) time.Time, error) {
	switch field {
	case "updated_at":
		return func(s *entity.ChatSession) time.Time { return s.UpdatedAt }, nil
	case "created_at":
		return func(s *entity.ChatSession) time.Time { return s.CreatedAt }, nil
	}
	return nil, fmt.Errorf("inmem: cannot order sessions by %q", field)
}

// ChatTurnRepository appends turns per session in arrival order.
type ChatTurnRepository struct {
	mu    sync.RWMutex
	turns []*entity.ChatTurn
	Err   error
}

var _ contract.ChatTurnRepository = (*ChatTurnRepository)(nil)

func NewChatTurnRepository() *ChatTurnRepository {
	return &ChatTurnRepository{}
}

func (r *ChatTurnRepository) Create(ctx context.Context, turn *entity.ChatTurn) error {
	if r.Err != nil {
		return r.Err
	}
	if turn.Id == uuid.Nil {
		turn.Id = uuid.New()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	c := *turn
	c.Sources = append([]string{}, turn.Sources...)
	r.mu.Lock()
	r.turns = append(r.turns, &c)
	r.mu.Unlock()
	return nil
}

func (r *ChatTurnRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.RLock()
	out := make([]*entity.ChatTurn, 0, len(r.turns))
	for _, t := range r.turns {
		c := *t
		c.Sources = append([]string{}, t.Sources...)
		out = append(out, &c)
	}
	r.mu.RUnlock()

	var page *specification.Pagination
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.BySessionID:
			out = filterTurns(out, func(t *entity.ChatTurn) bool { return t.SessionId == s.SessionID })
		case specification.ByUserID:
			out = filterTurns(out, func(t *entity.ChatTurn) bool { return t.UserId == s.UserID })
		case specification.OrderBy:
			if s.Field != "created_at" {
				return nil, fmt.Errorf("inmem: cannot order turns by %q", s.Field)
			}
			if s.Desc {
				// Arrival order breaks created_at ties.
				for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
					out[i], out[j] = out[j], out[i]
				}
				sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
			} else {
				sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
			}
		case specification.Pagination:
			p := s
			page = &p
		default:
			return nil, fmt.Errorf("inmem: unsupported specification %T", spec)
		}
	}
	return paginate(out, page), nil
}

func (r *ChatTurnRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func (r *ChatTurnRepository) FindRecent(ctx context.Context, sessionId string, limit int) ([]*entity.ChatTurn, error) {
	return r.FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
}

func filterTurns(in []*entity.ChatTurn, keep func(*entity.ChatTurn) bool) []*entity.ChatTurn {
	out := in[:0]
	for _, t := range in {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func paginate[T any](in []T, page *specification.Pagination) []T {
	if page == nil {
		return in
	}
	if page.Offset >= len(in) {
		return in[:0]
	}
	in = in[page.Offset:]
	if page.Limit > 0 && page.Limit < len(in) {
		in = in[:page.Limit]
	}
	return in
}

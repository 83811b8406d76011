package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

func newID() string { return uuid.NewString() }

// Session is one client connection to the hub. It implements
// docstore.Store; its on-disconnect patches run when it is closed.
type Session struct {
	id  string
	hub *Hub
	log *zap.Logger

	mu     sync.Mutex
	hooks  map[string]room.Patch
	closed bool
}

var _ docstore.Store = (*Session)(nil)

func (h *Hub) NewSession() *Session {
	id := newID()
	return &Session{
		id:    id,
		hub:   h,
		log:   h.log.With(zap.String("session", id)),
		hooks: make(map[string]room.Patch),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	return nil
}

func (s *Session) Get(ctx context.Context, code string) (room.Room, error) {
	if err := s.check(); err != nil {
		return room.Room{}, err
	}
	return s.hub.Get(ctx, code)
}

func (s *Session) Create(ctx context.Context, r room.Room) (room.Room, error) {
	if err := s.check(); err != nil {
		return room.Room{}, err
	}
	return s.hub.Create(ctx, r)
}

func (s *Session) Update(ctx context.Context, code string, p room.Patch) (room.Room, error) {
	if err := s.check(); err != nil {
		return room.Room{}, err
	}
	return s.hub.Update(ctx, code, p)
}

func (s *Session) Remove(ctx context.Context, code string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.hub.Remove(ctx, code)
}

func (s *Session) Query(ctx context.Context, q docstore.Query) ([]room.Room, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.hub.Query(ctx, q)
}

func (s *Session) Subscribe(ctx context.Context, code string) (<-chan room.Room, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, code, s.id+"/"+newID())
}

func (s *Session) Now(ctx context.Context) (time.Time, error) {
	if err := s.check(); err != nil {
		return time.Time{}, err
	}
	return s.hub.Now(ctx)
}

// OnDisconnect stores p for code. An empty patch cancels the hook.
func (s *Session) OnDisconnect(_ context.Context, code string, p room.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	if len(p.Ops) == 0 {
		delete(s.hooks, code)
		return nil
	}
	// hooks are unconditional writes
	p.IfVersion = 0
	s.hooks[code] = p
	return nil
}

// Close runs every registered hook once. Hooks for rooms that are gone are
// not an error.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	var errs error
	for code, p := range hooks {
		_, err := s.hub.Update(ctx, code, p)
		switch {
		case err == nil:
			s.log.Debug("on-disconnect applied", zap.String("room", code))
		case errors.Is(err, docstore.ErrNotFound), errors.Is(err, room.ErrInvalidPatch):
			// room or player already removed
		default:
			errs = multierr.Append(errs, fmt.Errorf("room %s: %w", code, err))
		}
	}
	if errs != nil {
		s.log.Warn("on-disconnect hooks failed", zap.Error(errs))
	}
	return errs
}

// Package lifecycle creates, joins, matches and leaves rooms on a
// docstore.Store, and reaps abandoned ones.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

const (
	codeAttempts = 8
	joinAttempts = 4
)

type Manager struct {
	store      docstore.Store
	difficulty rounds.Tier
	log        *zap.Logger
}

func NewManager(store docstore.Store, difficulty rounds.Tier, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if difficulty == "" {
		difficulty = rounds.Easy
	}
	return &Manager{store: store, difficulty: difficulty, log: log}
}

// CreateRoom writes a new waiting room with peerID as its host and returns its code.
func (m *Manager) CreateRoom(ctx context.Context, peerID, name string, private bool) (string, error) {
	now, err := m.store.Now(ctx)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}

	for range codeAttempts {
		code, err := room.GenerateCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		r := room.Room{
			Code:       code,
			Seed:       now.UnixMilli(),
			Status:     room.StatusWaiting,
			IsPrivate:  private,
			Difficulty: string(m.difficulty),
			MaxRounds:  room.DefaultMaxRounds,
			Players: map[string]room.PlayerState{
				peerID: room.NewPlayer(name, true, now),
			},
		}
		_, err = m.store.Create(ctx, r)
		if errors.Is(err, docstore.ErrExists) {
			m.log.Debug("room code collision, regenerating", zap.String("room", code))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		m.log.Info("room created", zap.String("room", code), zap.String("peer", peerID), zap.Bool("private", private))
		return code, nil
	}
	return "", fmt.Errorf("create room: %w: no free code after %d attempts", docstore.ErrExists, codeAttempts)
}

// JoinRoom adds peerID to a waiting room. The insert is conditional on the
// version that was checked, so of two racing joins on a one-player room one
// wins and the other re-reads and gets room.ErrRoomFull.
func (m *Manager) JoinRoom(ctx context.Context, rawCode, peerID, name string) (string, error) {
	code, err := room.NormalizeCode(rawCode)
	if err != nil {
		return "", err
	}

	for range joinAttempts {
		r, err := m.store.Get(ctx, code)
		if err != nil {
			return "", fmt.Errorf("join %s: %w", code, err)
		}
		if _, ok := r.Players[peerID]; ok {
			return code, nil
		}
		if r.Status != room.StatusWaiting {
			return "", fmt.Errorf("join %s: %w", code, room.ErrRoomAlreadyStarted)
		}
		if len(r.Players) >= room.MaxPlayers {
			return "", fmt.Errorf("join %s: %w", code, room.ErrRoomFull)
		}

		// a room whose host left hands the flag to the next arrival
		_, hasHost := r.Host()
		p := room.NewPatch(
			room.Set(room.PlayerPath(peerID), room.NewPlayer(name, !hasHost, r.CreatedAt)),
			room.ServerTime(room.PlayerPath(peerID, "lastActivity")),
		).WithVersion(r.Version)

		_, err = m.store.Update(ctx, code, p)
		switch {
		case err == nil:
			m.log.Info("room joined", zap.String("room", code), zap.String("peer", peerID))
			return code, nil
		case errors.Is(err, docstore.ErrConflict):
			continue
		default:
			return "", fmt.Errorf("join %s: %w", code, err)
		}
	}
	return "", fmt.Errorf("join %s: %w", code, docstore.ErrConflict)
}

// FindOrCreateMatch joins the oldest public waiting room with one player,
// trying the next candidate on any failure, and creates a public room when
// none is left.
func (m *Manager) FindOrCreateMatch(ctx context.Context, peerID, name string) (string, error) {
	candidates, err := m.store.Query(ctx, docstore.Query{
		Status:      room.StatusWaiting,
		PublicOnly:  true,
		PlayerCount: 1,
	})
	if err != nil {
		return "", fmt.Errorf("find match: %w", err)
	}

	for _, c := range candidates {
		if _, mine := c.Players[peerID]; mine {
			continue
		}
		code, err := m.JoinRoom(ctx, c.Code, peerID, name)
		if err == nil {
			return code, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		m.log.Debug("match candidate rejected", zap.String("room", c.Code), zap.Error(err))
	}
	return m.CreateRoom(ctx, peerID, name, false)
}

// LeaveRoom removes peerID and deletes the room once it is empty.
func (m *Manager) LeaveRoom(ctx context.Context, code, peerID string) error {
	// leaving on purpose is not a disconnect
	if err := m.store.OnDisconnect(ctx, code, room.Patch{}); err != nil {
		m.log.Debug("clear on-disconnect", zap.String("room", code), zap.Error(err))
	}

	r, err := m.store.Update(ctx, code, room.NewPatch(room.Remove(room.PlayerPath(peerID))))
	if err != nil {
		return fmt.Errorf("leave %s: %w", code, err)
	}
	m.log.Info("room left", zap.String("room", code), zap.String("peer", peerID))
	if len(r.Players) > 0 {
		return nil
	}
	if err := m.store.Remove(ctx, code); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("remove empty room %s: %w", code, err)
	}
	return nil
}

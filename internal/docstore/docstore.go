// Package docstore defines the shared document backend both peers talk to.
//
// A backend stores one room document per code, applies path-addressed
// patches atomically, stamps server timestamps, fans out full snapshots to
// subscribers in write order and runs registered on-disconnect patches when
// the writing session goes away.
package docstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

var (
	ErrConflict    = errors.New("version conflict")
	ErrExists      = errors.New("room already exists")
	ErrUnavailable = errors.New("backend unavailable")
	ErrClosed      = errors.New("session closed")
	ErrBadRequest  = errors.New("bad request")

	// ErrInvalidPatch is room.ErrInvalidPatch so callers only need one sentinel.
	ErrInvalidPatch = room.ErrInvalidPatch
	// ErrNotFound is room.ErrRoomNotFound for the same reason.
	ErrNotFound = room.ErrRoomNotFound
)

type Store interface {
	Get(ctx context.Context, code string) (room.Room, error)
	// Create stores r under r.Code. The backend sets createdAt and version.
	Create(ctx context.Context, r room.Room) (room.Room, error)
	// Update applies p atomically and returns the committed document.
	Update(ctx context.Context, code string, p room.Patch) (room.Room, error)
	Remove(ctx context.Context, code string) error
	Query(ctx context.Context, q Query) ([]room.Room, error)
	// Subscribe delivers the current document and every later commit. The
	// channel is closed when ctx ends or the room is removed.
	Subscribe(ctx context.Context, code string) (<-chan room.Room, error)
	// OnDisconnect registers p to be applied by the backend when the
	// caller's session ends. Registering again for the same room replaces it.
	OnDisconnect(ctx context.Context, code string, p room.Patch) error
	// Now is the backend clock.
	Now(ctx context.Context) (time.Time, error)
}

// Query filters rooms. Zero fields match everything.
type Query struct {
	Status        room.Status `json:"status,omitempty"`
	PublicOnly    bool        `json:"publicOnly,omitempty"`
	PlayerCount   int         `json:"playerCount,omitempty"`
	CreatedBefore time.Time   `json:"createdBefore,omitempty"`
	Limit         int         `json:"limit,omitempty"`
}

func (q Query) Match(r room.Room) bool {
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if q.PublicOnly && r.IsPrivate {
		return false
	}
	if q.PlayerCount > 0 && len(r.Players) != q.PlayerCount {
		return false
	}
	if !q.CreatedBefore.IsZero() && !r.CreatedAt.Before(q.CreatedBefore) {
		return false
	}
	return true
}

// Filter applies q to rooms, oldest first, and honours Limit.
func (q Query) Filter(rooms []room.Room) []room.Room {
	var out []room.Room
	for _, r := range rooms {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b room.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Package storage persists room documents behind the live hub.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

// Memory keeps documents in a map. It is the default backend and the one
// tests use.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]room.Room
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]room.Room)}
}

func (m *Memory) Save(_ context.Context, r room.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.Code]; ok && cur.Version > r.Version {
		return nil
	}
	m.rooms[r.Code] = r.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, code string) (room.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return room.Room{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, code)
	}
	return r.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

func (m *Memory) List(context.Context) ([]room.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Clone())
	}
	return out, nil
}

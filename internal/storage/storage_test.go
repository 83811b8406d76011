package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

type backend interface {
	Save(ctx context.Context, r room.Room) error
	Load(ctx context.Context, code string) (room.Room, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]room.Room, error)
}

func sampleRoom(code string, version int64) room.Room {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return room.Room{
		Code:      code,
		Seed:      1000,
		Status:    room.StatusWaiting,
		MaxRounds: room.DefaultMaxRounds,
		CreatedAt: t0,
		Players:   map[string]room.PlayerState{"alice": room.NewPlayer("Alice", true, t0)},
		Version:   version,
	}
}

func exerciseBackend(t *testing.T, b backend) {
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, sampleRoom("STOR1", 1)))
	require.NoError(t, b.Save(ctx, sampleRoom("STOR1", 3)))
	// late write of an older version is ignored
	require.NoError(t, b.Save(ctx, sampleRoom("STOR1", 2)))

	got, err := b.Load(ctx, "STOR1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "Alice", got.Players["alice"].Pseudo)

	all, err := b.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	require.NoError(t, b.Delete(ctx, "STOR1"))
	_, err = b.Load(ctx, "STOR1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("FLASHPVP_TEST_DSN")
	if dsn == "" {
		t.Skip("FLASHPVP_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pg.Close()

	exerciseBackend(t, pg)

	require.NoError(t, pg.Save(ctx, sampleRoom("STOR2", 1)))
	n, err := pg.DeleteOlderThan(ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

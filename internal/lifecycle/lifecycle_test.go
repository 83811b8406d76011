package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/hub"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*Manager, *hub.Hub, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, hub.Config{Clock: clock.Now})
	return NewManager(h.NewSession(), rounds.Easy, zaptest.NewLogger(t)), h, clock
}

func TestCreateRoom(t *testing.T) {
	m, h, clock := setup(t)
	ctx := context.Background()

	code, err := m.CreateRoom(ctx, "alice", "Alice", true)
	require.NoError(t, err)
	_, err = room.NormalizeCode(code)
	require.NoError(t, err)

	r, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, room.StatusWaiting, r.Status)
	assert.True(t, r.IsPrivate)
	assert.Equal(t, clock.Now().UnixMilli(), r.Seed)
	assert.Equal(t, room.DefaultMaxRounds, r.MaxRounds)
	assert.Equal(t, "easy", r.Difficulty)
	require.Len(t, r.Players, 1)
	assert.True(t, r.Players["alice"].IsHost)
	assert.True(t, r.Players["alice"].Connected)
}

func TestJoinRoom_Errors(t *testing.T) {
	m, h, _ := setup(t)
	ctx := context.Background()

	_, err := m.JoinRoom(ctx, "AB", "bob", "Bob")
	assert.ErrorIs(t, err, room.ErrInvalidRoomCode)
	_, err = m.JoinRoom(ctx, "ab!12", "bob", "Bob")
	assert.ErrorIs(t, err, room.ErrInvalidRoomCode)

	_, err = m.JoinRoom(ctx, "ZZZZZ", "bob", "Bob")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	code, err := m.CreateRoom(ctx, "alice", "Alice", false)
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, code, "bob", "Bob")
	require.NoError(t, err)

	_, err = m.JoinRoom(ctx, code, "carol", "Carol")
	assert.ErrorIs(t, err, room.ErrRoomFull)

	// rejoining is idempotent
	again, err := m.JoinRoom(ctx, code, "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, code, again)

	started, err := m.CreateRoom(ctx, "dave", "Dave", false)
	require.NoError(t, err)
	_, err = h.Update(ctx, started, room.NewPatch(room.Set("status", room.StatusCountdown)))
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, started, "erin", "Erin")
	assert.ErrorIs(t, err, room.ErrRoomAlreadyStarted)
}

func TestJoinRoom_LowercaseCodeIsAccepted(t *testing.T) {
	m, h, _ := setup(t)
	ctx := context.Background()

	code, err := m.CreateRoom(ctx, "alice", "Alice", false)
	require.NoError(t, err)

	got, err := m.JoinRoom(ctx, "  "+strings.ToLower(code)+" ", "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, code, got)

	r, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.False(t, r.Players["bob"].IsHost)
}

func TestJoinRoom_ConcurrentJoinsNeverOverfill(t *testing.T) {
	m, h, _ := setup(t)
	ctx := context.Background()

	for range 20 {
		code, err := m.CreateRoom(ctx, "host", "Host", false)
		require.NoError(t, err)

		var g errgroup.Group
		errs := make([]error, 2)
		for i, peer := range []string{"p1", "p2"} {
			g.Go(func() error {
				_, errs[i] = m.JoinRoom(ctx, code, peer, peer)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		wins, full := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, room.ErrRoomFull):
				full++
			default:
				t.Fatalf("unexpected join error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, full)

		r, err := h.Get(ctx, code)
		require.NoError(t, err)
		assert.Len(t, r.Players, 2)
	}
}

func TestFindOrCreateMatch(t *testing.T) {
	m, h, _ := setup(t)
	ctx := context.Background()

	private, err := m.CreateRoom(ctx, "alice", "Alice", true)
	require.NoError(t, err)

	first, err := m.FindOrCreateMatch(ctx, "bob", "Bob")
	require.NoError(t, err)
	assert.NotEqual(t, private, first, "private rooms are never matched")

	second, err := m.FindOrCreateMatch(ctx, "carol", "Carol")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	r, err := h.Get(ctx, first)
	require.NoError(t, err)
	assert.Len(t, r.Players, 2)
	assert.False(t, r.IsPrivate)

	third, err := m.FindOrCreateMatch(ctx, "dave", "Dave")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestLeaveRoom(t *testing.T) {
	m, h, _ := setup(t)
	ctx := context.Background()

	code, err := m.CreateRoom(ctx, "alice", "Alice", false)
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, code, "bob", "Bob")
	require.NoError(t, err)

	require.NoError(t, m.LeaveRoom(ctx, code, "alice"))
	r, err := h.Get(ctx, code)
	require.NoError(t, err)
	assert.Len(t, r.Players, 1)

	// the host is gone; the next arrival takes the flag
	_, err = m.JoinRoom(ctx, code, "carol", "Carol")
	require.NoError(t, err)
	r, err = h.Get(ctx, code)
	require.NoError(t, err)
	assert.True(t, r.Players["carol"].IsHost)

	require.NoError(t, m.LeaveRoom(ctx, code, "bob"))
	require.NoError(t, m.LeaveRoom(ctx, code, "carol"))
	_, err = h.Get(ctx, code)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestReaper_RemovesOnlyExpiredRooms(t *testing.T) {
	m, h, clock := setup(t)
	ctx := context.Background()

	old, err := m.CreateRoom(ctx, "alice", "Alice", false)
	require.NoError(t, err)
	_, err = h.Update(ctx, old, room.NewPatch(room.Set("status", room.StatusPlaying)))
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	fresh, err := m.CreateRoom(ctx, "bob", "Bob", false)
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)

	reaper := NewReaper(h.NewSession(), time.Minute, time.Hour, zaptest.NewLogger(t))
	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.Get(ctx, old)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = h.Get(ctx, fresh)
	assert.NoError(t, err)
}

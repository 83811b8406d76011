package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/engine"
	"github.com/DoyleJ11/flashcountry-pvp/internal/hub"
	"github.com/DoyleJ11/flashcountry-pvp/internal/peer"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

func newServer(t *testing.T) (*hub.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := zaptest.NewLogger(t)
	h := hub.NewHub(ctx, hub.Config{Logger: log})
	srv := httptest.NewServer(Handler(h, Options{Logger: log}))
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seed(code string) room.Room {
	return room.Room{
		Code:      code,
		Seed:      42,
		Status:    room.StatusWaiting,
		MaxRounds: room.DefaultMaxRounds,
		Players:   map[string]room.PlayerState{"alice": room.NewPlayer("Alice", true, time.Now())},
	}
}

func TestClient_CRUDAndErrors(t *testing.T) {
	_, url := newServer(t)
	c := dial(t, url)
	ctx := context.Background()

	created, err := c.Create(ctx, seed("WS001"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	_, err = c.Create(ctx, seed("WS001"))
	assert.ErrorIs(t, err, docstore.ErrExists)

	_, err = c.Get(ctx, "NOPE1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	updated, err := c.Update(ctx, "WS001", engine.ReadyPatch("alice").WithVersion(created.Version))
	require.NoError(t, err)
	assert.True(t, updated.Players["alice"].Ready)

	// same precondition again is stale
	_, err = c.Update(ctx, "WS001", engine.ReadyPatch("alice").WithVersion(created.Version))
	assert.ErrorIs(t, err, docstore.ErrConflict)

	_, err = c.Update(ctx, "WS001", room.NewPatch(room.Set("status", "nonsense")))
	assert.Error(t, err)

	rooms, err := c.Query(ctx, docstore.Query{Status: room.StatusWaiting})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "WS001", rooms[0].Code)

	now, err := c.Now(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, 5*time.Second)

	require.NoError(t, c.Remove(ctx, "WS001"))
	_, err = c.Get(ctx, "WS001")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestClient_Subscribe(t *testing.T) {
	h, url := newServer(t)
	c := dial(t, url)
	ctx := context.Background()

	_, err := h.Create(ctx, seed("WS002"))
	require.NoError(t, err)

	subCtx, cancel := context.WithCancel(ctx)
	snaps, err := c.Subscribe(subCtx, "WS002")
	require.NoError(t, err)

	first := <-snaps
	assert.Equal(t, int64(1), first.Version)

	_, err = h.Update(ctx, "WS002", engine.ReadyPatch("alice"))
	require.NoError(t, err)
	select {
	case snap := <-snaps:
		assert.Equal(t, int64(2), snap.Version)
		assert.True(t, snap.Players["alice"].Ready)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after update")
	}

	cancel()
	for range snaps {
	}

	// removing the room ends a live subscription
	again, err := c.Subscribe(ctx, "WS002")
	require.NoError(t, err)
	<-again
	closed := make(chan struct{})
	go func() {
		for range again {
		}
		close(closed)
	}()
	require.NoError(t, h.Remove(ctx, "WS002"))
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after remove")
	}
}

func TestClient_OnDisconnectRunsWhenSocketDrops(t *testing.T) {
	h, url := newServer(t)
	c, err := Dial(context.Background(), url, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Create(ctx, seed("WS003"))
	require.NoError(t, err)
	require.NoError(t, c.OnDisconnect(ctx, "WS003", engine.DisconnectPatch("alice")))
	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool {
		r, err := h.Get(ctx, "WS003")
		return err == nil && !r.Players["alice"].Connected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPeer_PlaysOverWebsocket(t *testing.T) {
	h, url := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := func(id string, store docstore.Store) *peer.Peer {
		p := peer.New(id, id, peer.Config{
			Store:         store,
			Logger:        zaptest.NewLogger(t),
			CountdownStep: 10 * time.Millisecond,
		})
		go func() { _ = p.Run(ctx) }()
		return p
	}
	alice := start("alice", dial(t, url))
	bob := start("bob", h.NewSession())

	code, err := alice.CreateRoom(ctx, false)
	require.NoError(t, err)
	_, err = bob.JoinRoom(ctx, code)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := alice.Current(ctx)
		return err == nil && v.Opponent != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.MarkReady(ctx))
	require.NoError(t, bob.MarkReady(ctx))

	assert.Eventually(t, func() bool {
		r, err := h.Get(ctx, code)
		return err == nil && r.Status == room.StatusPlaying
	}, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		v, err := alice.Current(ctx)
		return err == nil && v.State == engine.StatePlaying
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPeer_DroppedSocketKeepsRoom(t *testing.T) {
	h, url := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := dial(t, url)
	alice := peer.New("alice", "alice", peer.Config{
		Store:     c,
		Logger:    zaptest.NewLogger(t),
		Reconnect: 20 * time.Millisecond,
	})
	go func() { _ = alice.Run(ctx) }()

	code, err := alice.CreateRoom(ctx, false)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	var v peer.View
	require.Eventually(t, func() bool {
		cur, err := alice.Current(ctx)
		v = cur
		return err == nil && cur.Reconnecting
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, v.Err, docstore.ErrUnavailable)
	assert.NotErrorIs(t, v.Err, docstore.ErrNotFound)
	assert.Equal(t, code, v.Code)
	assert.Equal(t, engine.StateWaiting, v.State)

	// the room outlives the socket, with alice marked away by her hook
	assert.Eventually(t, func() bool {
		r, err := h.Get(ctx, code)
		return err == nil && !r.Players["alice"].Connected
	}, 2*time.Second, 10*time.Millisecond)
}

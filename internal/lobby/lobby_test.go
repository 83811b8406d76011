package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

func waitingRoom() room.Room {
	return room.Room{
		Code:      "AB12C",
		Status:    room.StatusWaiting,
		MaxRounds: room.DefaultMaxRounds,
		Players: map[string]room.PlayerState{
			"alice": room.NewPlayer("Alice", true, t0),
		},
		Version: 1,
	}
}

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan room.Room, within time.Duration) room.Room {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return room.Room{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan room.Room, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// closed: no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got version %d", within, s.Version)
	case <-time.After(within):
	}
}

func recvClosed(t *testing.T, ch <-chan room.Room, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox was not closed within %v", within)
		}
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

type recordingPersister struct {
	mu    sync.Mutex
	saved []int64
	fail  error
}

func (p *recordingPersister) Save(_ context.Context, r room.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saved = append(p.saved, r.Version)
	return nil
}

func TestLobby_Update_BroadcastsSnapshotAndVersionIncrements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, waitingRoom(), Config{Clock: fixedClock})

	out := make(chan room.Room, 2)
	l.Inbox() <- Subscribe{ID: "s1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 1 {
		t.Fatalf("after subscribe: want version=1, got %d", first.Version)
	}

	reply := make(chan Result, 1)
	l.Inbox() <- Update{
		Patch: room.NewPatch(room.Set(room.PlayerPath("alice", "ready"), true)),
		Reply: reply,
	}
	res := <-reply
	if res.Err != nil {
		t.Fatalf("update: %v", res.Err)
	}

	next := recvSnapshot(t, out, 100*time.Millisecond)
	if next.Version != 2 || !next.Players["alice"].Ready {
		t.Fatalf("after update: got version=%d ready=%v", next.Version, next.Players["alice"].Ready)
	}

	l.Inbox() <- Shutdown{}
	recvClosed(t, out, 100*time.Millisecond)
}

func TestLobby_StaleVersionConflicts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, waitingRoom(), Config{Clock: fixedClock})

	p := room.NewPatch(room.Set("status", room.StatusCountdown)).WithVersion(1)
	if _, err := l.Update(ctx, p); err != nil {
		t.Fatalf("first conditional write: %v", err)
	}
	_, err := l.Update(ctx, p)
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestLobby_InvalidPatchLeavesDocumentUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, waitingRoom(), Config{Clock: fixedClock})
	out, err := l.Subscribe(ctx, "s1", 4)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	// second op is bad: the first must not land either
	_, err = l.Update(ctx, room.NewPatch(
		room.Set(room.PlayerPath("alice", "ready"), true),
		room.Set("seed", 7),
	))
	if !errors.Is(err, docstore.ErrInvalidPatch) {
		t.Fatalf("want ErrInvalidPatch, got %v", err)
	}

	got, err := l.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Version != 1 || got.Players["alice"].Ready {
		t.Fatalf("document changed by a rejected patch: %+v", got)
	}
	recvNoSnapshot(t, out, 50*time.Millisecond)
}

func TestLobby_RejectsThirdPlayer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := waitingRoom()
	r.Players["bob"] = room.NewPlayer("Bob", false, t0)
	l := NewLobby(ctx, r, Config{Clock: fixedClock})

	_, err := l.Update(ctx, room.NewPatch(room.Set(room.PlayerPath("carol"), room.NewPlayer("Carol", false, t0))))
	if !errors.Is(err, room.ErrRoomFull) {
		t.Fatalf("want ErrRoomFull, got %v", err)
	}
}

func TestLobby_StampsServerTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, waitingRoom(), Config{Clock: func() time.Time { return t0.Add(time.Hour) }})
	got, err := l.Update(ctx, room.NewPatch(room.ServerTime(room.PlayerPath("alice", "lastActivity"))))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.Players["alice"].LastActivity.Equal(t0.Add(time.Hour)) {
		t.Fatalf("lastActivity = %v", got.Players["alice"].LastActivity)
	}
}

func TestLobby_SlowSubscriberKeepsNewest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, waitingRoom(), Config{Clock: fixedClock})

	out := make(chan room.Room, 1)
	l.Inbox() <- Subscribe{ID: "slow", Outbox: out}

	for range 3 {
		if _, err := l.Update(ctx, room.NewPatch(room.ServerTime(room.PlayerPath("alice", "lastActivity")))); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumSubscribers != 1 {
		t.Fatalf("slow subscriber must stay registered; NumSubscribers=%d", view.NumSubscribers)
	}

	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if snap.Version != 4 {
		t.Fatalf("want newest version 4, got %d", snap.Version)
	}
}

func TestLobby_PersistsBeforeBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &recordingPersister{}
	l := NewLobby(ctx, waitingRoom(), Config{Clock: fixedClock, Persister: p})

	if _, err := l.Update(ctx, room.NewPatch(room.Set("countdown", 3))); err != nil {
		t.Fatalf("update: %v", err)
	}
	p.mu.Lock()
	saved := append([]int64(nil), p.saved...)
	p.fail = errors.New("disk full")
	p.mu.Unlock()
	if len(saved) != 1 || saved[0] != 2 {
		t.Fatalf("saved versions = %v", saved)
	}

	_, err := l.Update(ctx, room.NewPatch(room.Set("countdown", 2)))
	if !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	got, _ := l.Read(ctx)
	if got.Countdown != 3 {
		t.Fatalf("failed write must not commit, countdown=%d", got.Countdown)
	}
}

func TestLobby_SubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, waitingRoom(), Config{Clock: fixedClock})

	subCtx, subCancel := context.WithCancel(ctx)
	out, err := l.Subscribe(subCtx, "s1", 4)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	subCancel()
	recvClosed(t, out, 200*time.Millisecond)
}

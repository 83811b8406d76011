// Package lobby runs one room document as an actor. Every write goes through
// its inbox, so patches are applied one at a time and every subscriber sees
// commits in the same order.
package lobby

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

type Msg interface{ isLobbyMsg() }

type Update struct {
	Patch room.Patch
	Reply chan Result
}

func (Update) isLobbyMsg() {}

type Result struct {
	Room room.Room
	Err  error
}

type Subscribe struct {
	ID     string
	Outbox chan room.Room // where this subscriber wants to receive snapshots
}

func (Subscribe) isLobbyMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Room           room.Room
	NumSubscribers int
}

// Persister receives every committed document before it is broadcast.
type Persister interface {
	Save(ctx context.Context, r room.Room) error
}

type Config struct {
	Clock     func() time.Time
	Persister Persister
	Logger    *zap.Logger
}

type Lobby struct {
	inbox   chan Msg
	code    string
	room    room.Room
	subs    map[string]chan room.Room
	now     func() time.Time
	persist Persister
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLobby(parent context.Context, initial room.Room, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		code:    initial.Code,
		room:    initial.Clone(),
		subs:    make(map[string]chan room.Room),
		now:     cfg.Clock,
		persist: cfg.Persister,
		log:     cfg.Logger.With(zap.String("room", initial.Code)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Subscribe:
				// Register + send current document immediately
				if old, ok := l.subs[msg.ID]; ok && old != msg.Outbox {
					close(old)
				}
				l.subs[msg.ID] = msg.Outbox
				offer(msg.Outbox, l.room.Clone())

			case Unsubscribe:
				if ch, ok := l.subs[msg.ID]; ok {
					close(ch)
					delete(l.subs, msg.ID)
				}

			case Update:
				next, err := l.commit(msg.Patch)
				msg.Reply <- Result{Room: next, Err: err}

			case GetState:
				msg.Reply <- View{Room: l.room.Clone(), NumSubscribers: len(l.subs)}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) commit(p room.Patch) (room.Room, error) {
	if p.IfVersion != 0 && p.IfVersion != l.room.Version {
		return room.Room{}, fmt.Errorf("%w: room %s at version %d, patch expects %d",
			docstore.ErrConflict, l.room.Code, l.room.Version, p.IfVersion)
	}

	next := l.room.Clone()
	if err := p.ApplyTo(&next, l.now()); err != nil {
		return room.Room{}, err
	}
	if err := room.ValidateTransition(l.room, next); err != nil {
		return room.Room{}, err
	}
	next.Version = l.room.Version + 1

	if l.persist != nil {
		if err := l.persist.Save(l.ctx, next); err != nil {
			l.log.Warn("persist room", zap.Int64("version", next.Version), zap.Error(err))
			return room.Room{}, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
		}
	}

	l.room = next
	l.log.Debug("commit",
		zap.String("status", string(next.Status)),
		zap.Int64("version", next.Version),
		zap.Int("ops", len(p.Ops)))
	l.broadcast()
	return next.Clone(), nil
}

func (l *Lobby) shutdown() {
	for id, ch := range l.subs {
		close(ch) // no more snapshots
		delete(l.subs, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast() {
	for _, ch := range l.subs {
		offer(ch, l.room.Clone())
	}
}

// offer never blocks the actor. Snapshots are whole documents, so a lagging
// subscriber loses the oldest buffered one and keeps the newest.
func offer(ch chan room.Room, snap room.Room) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Inbox exposes the actor to the hub and tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the actor has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Update sends p and waits for the commit.
func (l *Lobby) Update(ctx context.Context, p room.Patch) (room.Room, error) {
	reply := make(chan Result, 1)
	if err := l.send(ctx, Update{Patch: p, Reply: reply}); err != nil {
		return room.Room{}, err
	}
	select {
	case res := <-reply:
		return res.Room, res.Err
	case <-ctx.Done():
		return room.Room{}, ctx.Err()
	case <-l.done:
		select {
		case res := <-reply:
			return res.Room, res.Err
		default:
		}
		return room.Room{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, l.code)
	}
}

// Subscribe registers id and returns its snapshot stream. The stream is
// closed when ctx ends or the lobby stops.
func (l *Lobby) Subscribe(ctx context.Context, id string, buffer int) (<-chan room.Room, error) {
	out := make(chan room.Room, max(1, buffer))
	if err := l.send(ctx, Subscribe{ID: id, Outbox: out}); err != nil {
		return nil, err
	}
	go func() {
		select {
		case <-ctx.Done():
			// the lobby may be gone already; send gives up on done
			_ = l.send(context.Background(), Unsubscribe{ID: id})
		case <-l.done:
		}
	}()
	return out, nil
}

func (l *Lobby) Read(ctx context.Context) (room.Room, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return room.Room{}, err
	}
	select {
	case v := <-reply:
		return v.Room, nil
	case <-ctx.Done():
		return room.Room{}, ctx.Err()
	case <-l.done:
		return room.Room{}, docstore.ErrNotFound
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return docstore.ErrNotFound
	}
}

// Package hub keeps the registry of live room documents and exposes them
// as a docstore.Store, in process through sessions and remotely through
// the websocket handler.
package hub

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/lobby"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Room  room.Room
	Reply chan CreateResult
}

type CreateResult struct {
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

type RemoveLobby struct {
	Code  string
	Reply chan bool
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (ListLobbies) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Backend persists documents behind the live actors.
type Backend interface {
	lobby.Persister
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]room.Room, error)
}

type Config struct {
	Clock   func() time.Time
	Backend Backend
	Logger  *zap.Logger
	// SubscriberBuffer is the snapshot buffer of each subscription.
	SubscriberBuffer int
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 16
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if h.lobbies[msg.Room.Code] != nil {
					msg.Reply <- CreateResult{Err: fmt.Errorf("%w: %s", docstore.ErrExists, msg.Room.Code)}
					break
				}
				lb := lobby.NewLobby(h.ctx, msg.Room, lobby.Config{
					Clock:     h.cfg.Clock,
					Persister: h.cfg.Backend,
					Logger:    h.log,
				})
				h.lobbies[msg.Room.Code] = lb
				msg.Reply <- CreateResult{Lobby: lb}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // may be nil

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				msg.Reply <- out

			case RemoveLobby:
				lb, ok := h.lobbies[msg.Code]
				if ok {
					stop(lb)
					delete(h.lobbies, msg.Code)
				}
				msg.Reply <- ok

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		stop(lb)
	}
	clear(h.lobbies)
}

func stop(lb *lobby.Lobby) {
	select {
	case lb.Inbox() <- lobby.Shutdown{}:
	case <-lb.Done():
	}
}

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) ask(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return fmt.Errorf("%w: hub stopped", docstore.ErrUnavailable)
	}
}

func await[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, fmt.Errorf("%w: hub stopped", docstore.ErrUnavailable)
	}
}

func (h *Hub) lookup(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.ask(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	lb, err := await(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, code)
	}
	return lb, nil
}

func (h *Hub) Now(context.Context) (time.Time, error) {
	return h.cfg.Clock(), nil
}

func (h *Hub) Get(ctx context.Context, code string) (room.Room, error) {
	lb, err := h.lookup(ctx, code)
	if err != nil {
		return room.Room{}, err
	}
	return lb.Read(ctx)
}

func (h *Hub) Create(ctx context.Context, r room.Room) (room.Room, error) {
	r = r.Clone()
	r.CreatedAt = h.cfg.Clock()
	r.Version = 1
	if err := room.Validate(r); err != nil {
		return room.Room{}, err
	}

	reply := make(chan CreateResult, 1)
	if err := h.ask(ctx, CreateLobby{Room: r, Reply: reply}); err != nil {
		return room.Room{}, err
	}
	res, err := await(ctx, h, reply)
	if err != nil {
		return room.Room{}, err
	}
	if res.Err != nil {
		return room.Room{}, res.Err
	}
	if h.cfg.Backend != nil {
		if err := h.cfg.Backend.Save(ctx, r); err != nil {
			rm := make(chan bool, 1)
			if h.ask(context.WithoutCancel(ctx), RemoveLobby{Code: r.Code, Reply: rm}) == nil {
				_, _ = await(context.WithoutCancel(ctx), h, rm)
			}
			return room.Room{}, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
		}
	}
	h.log.Info("room created", zap.String("room", r.Code), zap.Bool("private", r.IsPrivate))
	return r.Clone(), nil
}

func (h *Hub) Update(ctx context.Context, code string, p room.Patch) (room.Room, error) {
	lb, err := h.lookup(ctx, code)
	if err != nil {
		return room.Room{}, err
	}
	return lb.Update(ctx, p)
}

func (h *Hub) Remove(ctx context.Context, code string) error {
	reply := make(chan bool, 1)
	if err := h.ask(ctx, RemoveLobby{Code: code, Reply: reply}); err != nil {
		return err
	}
	found, err := await(ctx, h, reply)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, code)
	}
	if h.cfg.Backend != nil {
		if err := h.cfg.Backend.Delete(ctx, code); err != nil {
			h.log.Warn("delete persisted room", zap.String("room", code), zap.Error(err))
		}
	}
	h.log.Info("room removed", zap.String("room", code))
	return nil
}

func (h *Hub) Query(ctx context.Context, q docstore.Query) ([]room.Room, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.ask(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	lobbies, err := await(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	rooms := make([]room.Room, 0, len(lobbies))
	for _, lb := range lobbies {
		r, err := lb.Read(ctx)
		if err != nil {
			// removed while listing
			continue
		}
		rooms = append(rooms, r)
	}
	return q.Filter(rooms), nil
}

func (h *Hub) Subscribe(ctx context.Context, code string) (<-chan room.Room, error) {
	return h.subscribe(ctx, code, newID())
}

func (h *Hub) subscribe(ctx context.Context, code, id string) (<-chan room.Room, error) {
	lb, err := h.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return lb.Subscribe(ctx, id, h.cfg.SubscriberBuffer)
}

// Restore loads persisted rooms into live actors, typically at startup.
// Sessions do not survive a restart, so every player comes back
// disconnected until they re-enter.
func (h *Hub) Restore(ctx context.Context) (int, error) {
	if h.cfg.Backend == nil {
		return 0, nil
	}
	rooms, err := h.cfg.Backend.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore rooms: %w", err)
	}
	n := 0
	for _, r := range rooms {
		r = r.Clone()
		for id, p := range r.Players {
			p.Connected = false
			r.Players[id] = p
		}
		reply := make(chan CreateResult, 1)
		if err := h.ask(ctx, CreateLobby{Room: r, Reply: reply}); err != nil {
			return n, err
		}
		res, err := await(ctx, h, reply)
		if err != nil {
			return n, err
		}
		if res.Err == nil {
			n++
		}
	}
	h.log.Info("rooms restored", zap.Int("count", n))
	return n, nil
}

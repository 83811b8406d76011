// Package peer is one player's side of a match. A Peer owns a single
// goroutine that reacts to room snapshots, local timers and user actions;
// it writes to the shared document and never talks to the other player
// directly.
package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/engine"
	"github.com/DoyleJ11/flashcountry-pvp/internal/lifecycle"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

var (
	ErrStopped       = errors.New("peer stopped")
	ErrInvalidAction = errors.New("action not allowed now")
	ErrNotInRoom     = errors.New("not in a room")
)

type Config struct {
	Store   docstore.Store
	Catalog *rounds.Catalog
	Assets  rounds.AssetResolver
	Logger  *zap.Logger

	Difficulty    rounds.Tier
	Tick          time.Duration
	CountdownStep time.Duration
	Heartbeat     time.Duration
	Grace         time.Duration
	// Reconnect is how often a peer that lost its subscription retries.
	Reconnect time.Duration
}

func (c *Config) defaults() {
	if c.Catalog == nil {
		c.Catalog = rounds.DefaultCatalog()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Difficulty == "" {
		c.Difficulty = rounds.Easy
	}
	if c.Tick <= 0 {
		c.Tick = engine.TickInterval
	}
	if c.CountdownStep <= 0 {
		c.CountdownStep = time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = engine.HeartbeatInterval
	}
	if c.Grace <= 0 {
		c.Grace = engine.DisconnectGrace
	}
	if c.Reconnect <= 0 {
		c.Reconnect = 2 * time.Second
	}
}

type request struct {
	fn    func() (string, error)
	reply chan result
}

type result struct {
	code string
	err  error
}

type Peer struct {
	id    string
	name  string
	cfg   Config
	store docstore.Store
	rooms *lifecycle.Manager
	log   *zap.Logger

	inbox chan request
	views chan View
	done  chan struct{}

	// owned by the loop goroutine
	code      string
	local     engine.Local
	snap      room.Room
	rounds    []rounds.Round
	snaps     <-chan room.Room
	subCancel context.CancelFunc
	offset    time.Duration
	timers    timers
	left      int
	lastErr   error
}

func New(id, name string, cfg Config) *Peer {
	cfg.defaults()
	return &Peer{
		id:    id,
		name:  name,
		cfg:   cfg,
		store: cfg.Store,
		rooms: lifecycle.NewManager(cfg.Store, cfg.Difficulty, cfg.Logger),
		log:   cfg.Logger.With(zap.String("peer", id)),
		inbox: make(chan request),
		views: make(chan View, 16),
		done:  make(chan struct{}),
		local: engine.NewLocal(),
	}
}

func (p *Peer) ID() string { return p.id }

// Views streams every rendered state. A slow reader only misses
// intermediate views.
func (p *Peer) Views() <-chan View { return p.views }

// Run drives the peer until ctx ends.
func (p *Peer) Run(ctx context.Context) error {
	defer close(p.done)
	defer p.teardown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-p.inbox:
			code, err := req.fn()
			req.reply <- result{code: code, err: err}
			p.publish()

		case snap, ok := <-p.snaps:
			if !ok {
				p.roomGone(ctx)
				continue
			}
			p.onSnapshot(ctx, snap)

		case <-p.timers.tickC():
			p.onTick(ctx)

		case <-p.timers.countdownC():
			p.onCountdownStep(ctx)

		case <-p.timers.heartbeatC():
			p.onHeartbeat(ctx)

		case <-p.timers.graceC():
			p.onGraceExpired(ctx)

		case <-p.timers.reconnectC():
			p.onReconnect(ctx)
		}
	}
}

func (p *Peer) do(ctx context.Context, fn func() (string, error)) (string, error) {
	reply := make(chan result, 1)
	select {
	case p.inbox <- request{fn: fn, reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", ErrStopped
	}
	select {
	case r := <-reply:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", ErrStopped
	}
}

// CreateRoom opens a room hosted by this peer.
func (p *Peer) CreateRoom(ctx context.Context, private bool) (string, error) {
	return p.do(ctx, func() (string, error) {
		if err := p.requireMenu(); err != nil {
			return "", err
		}
		code, err := p.rooms.CreateRoom(ctx, p.id, p.name, private)
		if err != nil {
			return "", err
		}
		return code, p.enter(ctx, code)
	})
}

func (p *Peer) JoinRoom(ctx context.Context, code string) (string, error) {
	return p.do(ctx, func() (string, error) {
		if err := p.requireMenu(); err != nil {
			return "", err
		}
		code, err := p.rooms.JoinRoom(ctx, code, p.id, p.name)
		if err != nil {
			return "", err
		}
		return code, p.enter(ctx, code)
	})
}

func (p *Peer) QuickMatch(ctx context.Context) (string, error) {
	return p.do(ctx, func() (string, error) {
		if err := p.requireMenu(); err != nil {
			return "", err
		}
		code, err := p.rooms.FindOrCreateMatch(ctx, p.id, p.name)
		if err != nil {
			return "", err
		}
		return code, p.enter(ctx, code)
	})
}

// MarkReady acknowledges the lobby or the round result. On the last round
// it ends the match locally without writing anything.
func (p *Peer) MarkReady(ctx context.Context) error {
	_, err := p.do(ctx, func() (string, error) {
		switch p.local.State {
		case engine.StateWaiting:
		case engine.StateRoundEnd:
			if p.snap.IsLastRound() {
				p.transition(ctx, engine.StateGameEnd, p.snap.CurrentRound)
				return "", nil
			}
		default:
			return "", fmt.Errorf("%w: ready in %s", ErrInvalidAction, p.local.State)
		}
		if _, err := p.store.Update(ctx, p.code, engine.ReadyPatch(p.id)); err != nil {
			return "", fmt.Errorf("mark ready: %w", err)
		}
		p.local.Ready = true
		return "", nil
	})
	return err
}

// SubmitAnswer records this round's answer once.
func (p *Peer) SubmitAnswer(ctx context.Context, text string) error {
	_, err := p.do(ctx, func() (string, error) {
		if p.local.State != engine.StatePlaying || p.local.Answered {
			return "", fmt.Errorf("%w: answer in %s", ErrInvalidAction, p.local.State)
		}
		return "", p.submit(ctx, text)
	})
	return err
}

// Leave removes this peer from its room and returns to the menu.
func (p *Peer) Leave(ctx context.Context) error {
	_, err := p.do(ctx, func() (string, error) {
		if p.code == "" {
			return "", ErrNotInRoom
		}
		err := p.rooms.LeaveRoom(ctx, p.code, p.id)
		switch {
		case err == nil, errors.Is(err, docstore.ErrNotFound):
		case p.offline():
			// the disconnect hook already marked us gone
			p.log.Info("left room while offline", zap.String("room", p.code), zap.Error(err))
		default:
			return "", err
		}
		p.exit()
		return "", nil
	})
	return err
}

// Current returns the view as the loop sees it right now.
func (p *Peer) Current(ctx context.Context) (View, error) {
	var v View
	_, err := p.do(ctx, func() (string, error) {
		v = p.view()
		return "", nil
	})
	return v, err
}

func (p *Peer) requireMenu() error {
	if p.code != "" || p.local.State != engine.StateMenu {
		return fmt.Errorf("%w: already in room %s", ErrInvalidAction, p.code)
	}
	return nil
}

// enter wires presence and the subscription for code. Nothing local
// changes unless every step succeeds.
func (p *Peer) enter(ctx context.Context, code string) error {
	now, err := p.store.Now(ctx)
	if err != nil {
		return fmt.Errorf("read server clock: %w", err)
	}
	snaps, cancel, err := p.attach(ctx, code)
	if err != nil {
		return err
	}

	p.offset = now.Sub(time.Now())
	p.code = code
	p.snaps = snaps
	p.subCancel = cancel
	p.rounds = nil
	p.lastErr = nil
	p.local = engine.NewLocal().Enter(engine.StateWaiting, 0)
	p.timers.startHeartbeat(p.cfg.Heartbeat)
	p.log.Info("entered room", zap.String("room", code))
	return nil
}

// attach subscribes to code, registers the disconnect hook and marks us
// connected.
func (p *Peer) attach(ctx context.Context, code string) (<-chan room.Room, context.CancelFunc, error) {
	subCtx, cancel := context.WithCancel(context.Background())
	snaps, err := p.store.Subscribe(subCtx, code)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("subscribe %s: %w", code, err)
	}
	if err := p.store.OnDisconnect(ctx, code, engine.DisconnectPatch(p.id)); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("register on-disconnect: %w", err)
	}
	if _, err := p.store.Update(ctx, code, engine.PresencePatch(p.id)); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("mark connected: %w", err)
	}
	return snaps, cancel, nil
}

func (p *Peer) exit() {
	p.timers.stopAll()
	if p.subCancel != nil {
		p.subCancel()
	}
	p.code = ""
	p.snaps = nil
	p.subCancel = nil
	p.snap = room.Room{}
	p.rounds = nil
	p.local = engine.NewLocal()
}

func (p *Peer) teardown() {
	p.timers.stopAll()
	if p.subCancel != nil {
		p.subCancel()
	}
}

func (p *Peer) serverNow() time.Time {
	return time.Now().Add(p.offset)
}

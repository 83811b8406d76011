// Package bot plays matches headlessly on top of a peer. It is used for
// load testing and as an always-available opponent.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/engine"
	"github.com/DoyleJ11/flashcountry-pvp/internal/peer"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

const pollInterval = 50 * time.Millisecond

type Config struct {
	// Store is only read, to learn the seed of the match.
	Store    docstore.Store
	Catalog  *rounds.Catalog
	Accuracy float64
	MinDelay time.Duration
	MaxDelay time.Duration
	Rand     *rand.Rand
	Logger   *zap.Logger
}

type Bot struct {
	peer *peer.Peer
	cfg  Config
	log  *zap.Logger

	code     string
	rounds   []rounds.Round
	answered map[int]bool
	acked    map[string]bool
}

func New(p *peer.Peer, cfg Config) *Bot {
	if cfg.Catalog == nil {
		cfg.Catalog = rounds.DefaultCatalog()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Bot{
		peer:     p,
		cfg:      cfg,
		log:      cfg.Logger.With(zap.String("bot", p.ID())),
		answered: make(map[int]bool),
		acked:    make(map[string]bool),
	}
}

// Play drives the peer through one match already joined and returns the
// final view.
func (b *Bot) Play(ctx context.Context) (peer.View, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last peer.View
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case v := <-b.peer.Views():
			last = v
		case <-ticker.C:
			v, err := b.peer.Current(ctx)
			if err != nil {
				return last, err
			}
			last = v
		}

		if last.Err != nil && last.Code == "" {
			return last, last.Err
		}
		if last.State == engine.StateGameEnd {
			b.log.Info("match over", zap.String("winner", last.Winner), zap.Int("score", last.Me.Score), zap.NamedError("forfeit", last.Forfeit()))
			return last, nil
		}
		if last.Reconnecting {
			continue
		}
		b.act(ctx, last)
	}
}

func (b *Bot) act(ctx context.Context, v peer.View) {
	switch v.State {
	case engine.StateWaiting:
		if v.Opponent != nil && !v.Me.Ready {
			b.ready(ctx, v)
		}
	case engine.StatePlaying:
		if !b.answered[v.Round] && !v.Me.HasAnswered {
			b.answered[v.Round] = true
			b.scheduleAnswer(ctx, v)
		}
	case engine.StateRoundEnd:
		b.ready(ctx, v)
	}
}

func (b *Bot) ready(ctx context.Context, v peer.View) {
	key := fmt.Sprintf("%s/%d", v.State, v.Round)
	if b.acked[key] {
		return
	}
	if err := b.peer.MarkReady(ctx); err != nil {
		b.log.Debug("mark ready", zap.Error(err))
		return
	}
	b.acked[key] = true
}

func (b *Bot) scheduleAnswer(ctx context.Context, v peer.View) {
	guess, err := b.guess(ctx, v)
	if err != nil {
		b.log.Warn("pick answer", zap.Error(err))
		return
	}
	delay := b.cfg.MinDelay
	if spread := b.cfg.MaxDelay - b.cfg.MinDelay; spread > 0 {
		delay += time.Duration(b.cfg.Rand.Int64N(int64(spread)))
	}

	time.AfterFunc(delay, func() {
		err := b.peer.SubmitAnswer(ctx, guess)
		switch {
		case err == nil:
			b.log.Debug("answered", zap.Int("round", v.Round), zap.String("guess", guess))
		case errors.Is(err, peer.ErrInvalidAction), ctx.Err() != nil:
		default:
			b.log.Warn("submit answer", zap.Error(err))
		}
	})
}

func (b *Bot) guess(ctx context.Context, v peer.View) (string, error) {
	if b.code != v.Code || b.rounds == nil {
		r, err := b.cfg.Store.Get(ctx, v.Code)
		if err != nil {
			return "", err
		}
		tier, err := rounds.ParseTier(r.Difficulty)
		if err != nil {
			return "", err
		}
		rs, err := rounds.Generate(r.Seed, tier, b.cfg.Catalog, nil)
		if err != nil {
			return "", err
		}
		b.code, b.rounds = v.Code, rs
	}
	if v.Round >= len(b.rounds) {
		return "", fmt.Errorf("round %d out of range", v.Round)
	}

	country, ok := b.cfg.Catalog.Lookup(b.rounds[v.Round].Country)
	if !ok || len(country.Names) == 0 || b.cfg.Rand.Float64() >= b.cfg.Accuracy {
		return "atlantis", nil
	}
	return country.Names[b.cfg.Rand.IntN(len(country.Names))], nil
}

package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/engine"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

func (p *Peer) onSnapshot(ctx context.Context, snap room.Room) {
	if _, ok := snap.Players[p.id]; !ok && p.local.State != engine.StateGameEnd {
		p.log.Debug("snapshot without us, ignoring", zap.Int64("version", snap.Version))
		return
	}
	snap = p.keepFinishedOpponent(snap)

	events, next, err := engine.Apply(p.local, snap, p.id)
	if err != nil {
		if errors.Is(err, engine.ErrStaleTransition) {
			p.log.Debug("stale snapshot dropped", zap.Int64("version", snap.Version), zap.Error(err))
			return
		}
		p.log.Warn("apply snapshot", zap.Error(err))
		return
	}
	p.local = next
	p.snap = snap

	for _, e := range events {
		switch e.Type {
		case engine.EvtStateEntered:
			p.onEnter(ctx, e.State)

		case engine.EvtStartCountdown:
			p.authorityWrite(ctx, engine.Key{Round: e.Round, Action: engine.ActStartCountdown}, engine.StartCountdownPatch(snap))

		case engine.EvtResolveRound:
			p.resolve(ctx, snap)

		case engine.EvtAdvanceRound:
			p.authorityWrite(ctx, engine.Key{Round: snap.CurrentRound, Action: engine.ActAdvance}, engine.AdvanceRoundPatch(snap))

		case engine.EvtOpponentDisconnected:
			p.log.Info("opponent disconnected", zap.String("state", string(e.State)))
			if p.graceApplies() {
				p.timers.startGrace(p.cfg.Grace)
			}

		case engine.EvtOpponentReconnected:
			p.log.Info("opponent reconnected", zap.String("state", string(e.State)))
			p.timers.stopGrace()
		}
	}
	p.publish()
}

// transition moves local state without a document write and runs its entry effects.
func (p *Peer) transition(ctx context.Context, s engine.State, round int) {
	p.local = p.local.Enter(s, round)
	p.onEnter(ctx, s)
}

// onEnter cancels every clock of the previous state before arming the new ones.
func (p *Peer) onEnter(ctx context.Context, s engine.State) {
	p.timers.stopPhase()
	p.log.Debug("state entered", zap.String("state", string(s)), zap.Int("round", p.local.Round))

	switch s {
	case engine.StateCountdown:
		p.left = p.snap.Countdown
		if p.left <= 0 {
			p.left = room.CountdownSeconds
		}
		p.timers.startCountdown(p.cfg.CountdownStep)

	case engine.StatePlaying:
		if err := p.ensureRounds(); err != nil {
			p.fail(fmt.Errorf("generate rounds: %w", err))
			return
		}
		p.timers.startTick(p.cfg.Tick)

	case engine.StateGameEnd:
		p.timers.stopHeartbeat()
	}

	if p.local.OpponentDown && p.graceApplies() {
		p.timers.startGrace(p.cfg.Grace)
	}
}

// graceApplies reports whether an absent opponent can still forfeit. After
// the last round the result stands on points, so leaving is not a forfeit.
func (p *Peer) graceApplies() bool {
	switch p.local.State {
	case engine.StateWaiting:
		return true
	case engine.StateRoundEnd:
		return !p.snap.IsLastRound()
	}
	return false
}

// keepFinishedOpponent holds on to the opponent's final standing when they
// leave after the last round, so the local result still has both players.
func (p *Peer) keepFinishedOpponent(snap room.Room) room.Room {
	if p.local.State != engine.StateRoundEnd || !p.snap.IsLastRound() || !snap.IsLastRound() {
		return snap
	}
	opp, ok := p.snap.Opponent(p.id)
	if !ok {
		return snap
	}
	if _, still := snap.Players[opp]; still {
		return snap
	}
	snap = snap.Clone()
	snap.Players[opp] = p.snap.Players[opp]
	return snap
}

func (p *Peer) ensureRounds() error {
	if p.rounds != nil {
		return nil
	}
	tier, err := rounds.ParseTier(p.snap.Difficulty)
	if err != nil {
		return err
	}
	rs, err := rounds.Generate(p.snap.Seed, tier, p.cfg.Catalog, p.cfg.Assets)
	if err != nil {
		return err
	}
	p.rounds = rs
	return nil
}

func (p *Peer) currentRound() (rounds.Round, bool) {
	i := p.snap.CurrentRound
	if i < 0 || i >= len(p.rounds) {
		return rounds.Round{}, false
	}
	return p.rounds[i], true
}

// authorityWrite performs a claimed write and drops the claim when it did
// not land, so the next snapshot can trigger it again.
func (p *Peer) authorityWrite(ctx context.Context, key engine.Key, patch room.Patch) bool {
	if _, err := p.store.Update(ctx, p.code, patch); err != nil {
		p.local = p.local.Release(key)
		lvl := zap.WarnLevel
		if errors.Is(err, docstore.ErrConflict) {
			lvl = zap.DebugLevel
		}
		p.log.Log(lvl, "authority write", zap.String("action", string(key.Action)), zap.Int("round", key.Round), zap.Error(err))
		return false
	}
	p.log.Debug("authority write", zap.String("action", string(key.Action)), zap.Int("round", key.Round))
	return true
}

func (p *Peer) resolve(ctx context.Context, snap room.Room) {
	key := engine.Key{Round: snap.CurrentRound, Action: engine.ActResolve}
	if err := p.ensureRounds(); err != nil {
		p.local = p.local.Release(key)
		p.fail(fmt.Errorf("generate rounds: %w", err))
		return
	}
	cur, ok := p.currentRound()
	if !ok {
		p.local = p.local.Release(key)
		p.fail(fmt.Errorf("round %d out of range", snap.CurrentRound))
		return
	}
	res := engine.Resolve(snap, cur.Country)
	if p.authorityWrite(ctx, key, res.Patch) {
		p.log.Info("round resolved", zap.String("room", p.code), zap.Int("round", snap.CurrentRound))
	}
}

func (p *Peer) submit(ctx context.Context, text string) error {
	if err := p.ensureRounds(); err != nil {
		return fmt.Errorf("generate rounds: %w", err)
	}
	cur, ok := p.currentRound()
	if !ok {
		return fmt.Errorf("round %d out of range", p.snap.CurrentRound)
	}
	country, _ := p.cfg.Catalog.Lookup(cur.Country)
	correct := country.Accepts(text)
	elapsed := engine.Elapsed(p.snap, p.serverNow())

	if _, err := p.store.Update(ctx, p.code, engine.SubmitAnswerPatch(p.id, text, elapsed.Seconds(), correct)); err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	p.local.Answered = true
	p.log.Debug("answer submitted", zap.Int("round", p.snap.CurrentRound), zap.Bool("correct", correct), zap.Bool("timeout", text == ""))
	return nil
}

func (p *Peer) onTick(ctx context.Context) {
	if p.local.State != engine.StatePlaying {
		p.timers.stopTick()
		return
	}
	clock := engine.Timer(p.snap, p.id, p.local.Answered, engine.Elapsed(p.snap, p.serverNow()))
	if clock.Expired {
		if err := p.submit(ctx, ""); err != nil {
			p.log.Warn("timeout submission", zap.Error(err))
		}
	}
	p.publish()
}

func (p *Peer) onCountdownStep(ctx context.Context) {
	if p.local.State != engine.StateCountdown {
		p.timers.stopCountdown()
		return
	}
	p.left--
	if engine.ResolveAuthority(p.snap) != p.id {
		p.publish()
		return
	}

	if p.left > 0 {
		if _, err := p.store.Update(ctx, p.code, engine.CountdownTickPatch(p.left)); err != nil {
			p.log.Debug("countdown tick", zap.Int("value", p.left), zap.Error(err))
		}
		return
	}

	key := engine.Key{Round: p.snap.CurrentRound, Action: engine.ActStartRound}
	next, ok := p.local.Claim(key)
	if !ok {
		return
	}
	p.local = next
	p.authorityWrite(ctx, key, engine.StartRoundPatch(p.snap))
}

func (p *Peer) onHeartbeat(ctx context.Context) {
	if p.code == "" {
		p.timers.stopHeartbeat()
		return
	}
	if _, err := p.store.Update(ctx, p.code, engine.HeartbeatPatch(p.id)); err != nil {
		p.log.Debug("heartbeat", zap.Error(err))
	}
	if now, err := p.store.Now(ctx); err == nil {
		p.offset = time.Until(now)
	}
}

// onGraceExpired ends the match in our favour if the opponent is still away.
func (p *Peer) onGraceExpired(ctx context.Context) {
	p.timers.stopGrace()
	if !p.local.OpponentDown || !p.graceApplies() {
		return
	}

	key := engine.Key{Round: p.snap.CurrentRound, Action: engine.ActForfeit}
	next, ok := p.local.Claim(key)
	if !ok {
		return
	}
	p.local = next
	if !p.authorityWrite(ctx, key, engine.ForfeitPatch(p.id)) {
		p.timers.startGrace(p.cfg.CountdownStep)
		return
	}
	p.log.Info("opponent forfeited", zap.String("room", p.code))
	p.transition(ctx, engine.StateGameEnd, p.snap.CurrentRound)
	p.snap.Status = room.StatusGameEnd
	p.snap.Winner = p.id
	p.snap.EndReason = room.EndReasonOpponentDisconnected
	p.publish()
}

// roomGone handles the subscription ending underneath us. The room may
// have been removed, or only our connection to the backend may be gone.
func (p *Peer) roomGone(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if p.local.State != engine.StateGameEnd {
		checkCtx, cancel := context.WithTimeout(ctx, p.cfg.Reconnect)
		_, err := p.store.Get(checkCtx, p.code)
		cancel()
		if !errors.Is(err, docstore.ErrNotFound) {
			p.lostConnection(err)
			return
		}
	}
	p.closeRoom()
}

func (p *Peer) closeRoom() {
	code, state := p.code, p.local.State
	p.exit()
	if state != engine.StateGameEnd {
		p.fail(fmt.Errorf("room %s: %w", code, room.ErrRoomNotFound))
	}
	p.log.Info("room closed", zap.String("room", code), zap.String("state", string(state)))
	p.publish()
}

// lostConnection keeps the room and local state and retries the
// subscription until the backend answers again.
func (p *Peer) lostConnection(cause error) {
	p.timers.stopAll()
	if p.subCancel != nil {
		p.subCancel()
	}
	p.snaps, p.subCancel = nil, nil
	if cause == nil {
		cause = errors.New("subscription ended")
	}
	p.fail(fmt.Errorf("room %s: %w: %w", p.code, docstore.ErrUnavailable, cause))
	p.timers.startReconnect(p.cfg.Reconnect)
	p.publish()
}

func (p *Peer) onReconnect(ctx context.Context) {
	p.timers.stopReconnect()
	if p.code == "" || p.snaps != nil {
		return
	}
	snaps, cancel, err := p.attach(ctx, p.code)
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrNotFound):
		p.closeRoom()
		return
	default:
		p.log.Debug("reconnect", zap.String("room", p.code), zap.Error(err))
		p.timers.startReconnect(p.cfg.Reconnect)
		return
	}

	p.snaps, p.subCancel = snaps, cancel
	p.lastErr = nil
	if now, err := p.store.Now(ctx); err == nil {
		p.offset = time.Until(now)
	}
	p.timers.startHeartbeat(p.cfg.Heartbeat)
	p.onEnter(ctx, p.local.State)
	p.log.Info("reconnected", zap.String("room", p.code), zap.String("state", string(p.local.State)))
	p.publish()
}

// offline is true while a room is held but its subscription is down.
func (p *Peer) offline() bool {
	return p.code != "" && p.snaps == nil
}

func (p *Peer) fail(err error) {
	p.lastErr = err
	p.log.Warn("peer error", zap.Error(err))
}

package peer

import (
	"fmt"
	"time"

	"github.com/DoyleJ11/flashcountry-pvp/internal/engine"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

type PlayerView struct {
	ID          string
	Pseudo      string
	Score       int
	Ready       bool
	HasAnswered bool
	Connected   bool
}

// View is everything a front end needs to draw one peer.
type View struct {
	Code      string
	State     engine.State
	Round     int
	MaxRounds int
	Countdown int
	Clock     engine.Clock
	Image     string

	Me       PlayerView
	Opponent *PlayerView

	LastResult     *room.RoundResult
	OpponentDown   bool
	OpponentIdle   bool
	GraceRemaining time.Duration

	Winner    string
	EndReason room.EndReason

	// Reconnecting is set while the room is held but the backend is unreachable.
	Reconnecting bool
	Err          error
}

// Forfeit returns an error wrapping room.ErrOpponentForfeit when the match
// ended because a player disconnected, nil otherwise.
func (v View) Forfeit() error {
	if v.State != engine.StateGameEnd || v.EndReason != room.EndReasonOpponentDisconnected {
		return nil
	}
	return fmt.Errorf("room %s won by %s: %w", v.Code, v.Winner, room.ErrOpponentForfeit)
}

func playerView(r room.Room, id string) PlayerView {
	p := r.Players[id]
	return PlayerView{
		ID:          id,
		Pseudo:      p.Pseudo,
		Score:       p.Score,
		Ready:       p.Ready,
		HasAnswered: p.HasAnswered,
		Connected:   p.Connected,
	}
}

func (p *Peer) view() View {
	v := View{
		Code:         p.code,
		State:        p.local.State,
		Reconnecting: p.offline(),
		Err:          p.lastErr,
	}
	if p.code == "" {
		return v
	}

	s := p.snap
	now := p.serverNow()
	v.Round = s.CurrentRound
	v.MaxRounds = s.MaxRounds
	v.LastResult = s.LastRoundResult
	v.OpponentDown = p.local.OpponentDown
	v.OpponentIdle = engine.StaleOpponent(s, p.id, now)
	v.GraceRemaining = p.timers.graceRemaining()
	v.Me = playerView(s, p.id)
	v.Me.Ready = v.Me.Ready || p.local.Ready
	v.Me.HasAnswered = v.Me.HasAnswered || p.local.Answered
	if opp, ok := s.Opponent(p.id); ok {
		ov := playerView(s, opp)
		v.Opponent = &ov
	}

	switch p.local.State {
	case engine.StateCountdown:
		v.Countdown = max(p.left, 0)
	case engine.StatePlaying:
		elapsed := engine.Elapsed(s, now)
		v.Clock = engine.Timer(s, p.id, p.local.Answered, elapsed)
		if cur, ok := p.currentRound(); ok && len(cur.Images) > 0 {
			v.Image = cur.Images[rounds.ImageIndex(elapsed, len(cur.Images))]
		}
	case engine.StateGameEnd:
		v.Winner, v.EndReason = s.Winner, s.EndReason
		if s.EndReason == "" {
			v.Winner = engine.Winner(s)
		}
	}
	return v
}

// publish offers the current view without ever blocking the loop; when
// the reader lags the oldest view is dropped.
func (p *Peer) publish() {
	v := p.view()
	select {
	case p.views <- v:
		return
	default:
	}
	select {
	case <-p.views:
	default:
	}
	select {
	case p.views <- v:
	default:
	}
}

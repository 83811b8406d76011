package engine

import (
	"errors"
	"fmt"
	"maps"

	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

var ErrStaleTransition = errors.New("stale transition")

// State is the locally observed state of a peer. It mirrors room.Status
// plus the pre-match menu.
type State string

const (
	StateMenu      State = "menu"
	StateWaiting   State = State(room.StatusWaiting)
	StateCountdown State = State(room.StatusCountdown)
	StatePlaying   State = State(room.StatusPlaying)
	StateRoundEnd  State = State(room.StatusRoundEnd)
	StateGameEnd   State = State(room.StatusGameEnd)
)

type Action string

const (
	ActStartCountdown Action = "start_countdown"
	ActStartRound     Action = "start_round"
	ActResolve        Action = "resolve"
	ActAdvance        Action = "advance"
	ActForfeit        Action = "forfeit"
)

// Key identifies an authority action that must run at most once.
type Key struct {
	Round  int
	Action Action
}

// Local is what one peer believes. It is a value: Apply never mutates its input.
type Local struct {
	State        State
	Round        int
	Ready        bool
	Answered     bool
	OpponentDown bool
	claimed      map[Key]struct{}
}

func (l Local) Claimed(k Key) bool {
	_, ok := l.claimed[k]
	return ok
}

// Claim marks k in flight. The bool is false when k was already claimed.
func (l Local) Claim(k Key) (Local, bool) {
	if l.Claimed(k) {
		return l, false
	}
	l.claimed = maps.Clone(l.claimed)
	if l.claimed == nil {
		l.claimed = make(map[Key]struct{})
	}
	l.claimed[k] = struct{}{}
	return l, true
}

// Release drops a claim so the action can be retried after a failed write.
func (l Local) Release(k Key) Local {
	if !l.Claimed(k) {
		return l
	}
	l.claimed = maps.Clone(l.claimed)
	delete(l.claimed, k)
	return l
}

// Enter moves to s and clears every per-phase field.
func (l Local) Enter(s State, round int) Local {
	return Local{State: s, Round: round, OpponentDown: l.OpponentDown}
}

type EventType string

const (
	EvtStateEntered         EventType = "StateEntered"
	EvtStartCountdown       EventType = "StartCountdown"
	EvtResolveRound         EventType = "ResolveRound"
	EvtAdvanceRound         EventType = "AdvanceRound"
	EvtOpponentDisconnected EventType = "OpponentDisconnected"
	EvtOpponentReconnected  EventType = "OpponentReconnected"
)

type Event struct {
	Type    EventType
	State   State
	Round   int
	Version int64
}

// Apply folds one document snapshot into the local state of peer me and
// returns the side effects the peer has to perform.
func Apply(l Local, snap room.Room, me string) ([]Event, Local, error) {
	next := State(snap.Status)
	if !CanTransition(l.State, next) {
		return nil, l, fmt.Errorf("%w: %s -> %s", ErrStaleTransition, l.State, next)
	}

	var events []Event
	if next != l.State {
		l = l.Enter(next, snap.CurrentRound)
		events = append(events, Event{Type: EvtStateEntered, State: next, Round: snap.CurrentRound})
	}

	if l.State != StateGameEnd {
		down := OpponentDown(snap, me, l.State)
		switch {
		case down && !l.OpponentDown:
			events = append(events, Event{Type: EvtOpponentDisconnected, State: l.State})
		case !down && l.OpponentDown:
			events = append(events, Event{Type: EvtOpponentReconnected, State: l.State})
		}
		l.OpponentDown = down
	}

	if ResolveAuthority(snap) != me {
		return events, l, nil
	}

	var ok bool
	switch l.State {
	case StateWaiting:
		if snap.AllReady() {
			if l, ok = l.Claim(Key{snap.CurrentRound, ActStartCountdown}); ok {
				events = append(events, Event{Type: EvtStartCountdown, Round: snap.CurrentRound, Version: snap.Version})
			}
		}
	case StatePlaying:
		if ReadyToResolve(snap) {
			if l, ok = l.Claim(Key{snap.CurrentRound, ActResolve}); ok {
				events = append(events, Event{Type: EvtResolveRound, Round: snap.CurrentRound, Version: snap.Version})
			}
		}
	case StateRoundEnd:
		if snap.AllReady() && !snap.IsLastRound() {
			if l, ok = l.Claim(Key{snap.CurrentRound, ActAdvance}); ok {
				events = append(events, Event{Type: EvtAdvanceRound, Round: snap.CurrentRound + 1, Version: snap.Version})
			}
		}
	}
	return events, l, nil
}

// OpponentDown reports whether the other player is disconnected. Before the
// match starts an empty seat is just an empty seat; once it has started a
// missing opponent counts as gone.
func OpponentDown(snap room.Room, me string, s State) bool {
	opp, ok := snap.Opponent(me)
	if !ok {
		return s.InMatch()
	}
	return !snap.Players[opp].Connected
}

// ReadyToResolve is true once both players answered, or one answered and
// the other is disconnected or gone.
func ReadyToResolve(snap room.Room) bool {
	answered, waitingOnLive := 0, false
	for _, p := range snap.Players {
		switch {
		case p.HasAnswered:
			answered++
		case p.Connected:
			waitingOnLive = true
		}
	}
	return answered > 0 && !waitingOnLive
}

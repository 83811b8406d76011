package engine

import (
	"time"

	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

const (
	RoundDuration = 30 * time.Second
	AnswerWindow  = 10 * time.Second
	TickInterval  = 100 * time.Millisecond

	HeartbeatInterval   = 10 * time.Second
	DisconnectGrace     = 30 * time.Second
	InactivityThreshold = 60 * time.Second
)

// Clock is what one peer shows during play.
type Clock struct {
	Remaining time.Duration
	// Stressed means the connected opponent answered and the deadline shrank to theirs plus ten seconds.
	Stressed bool
	// Informational is set once this peer answered; the clock no longer forces anything.
	Informational bool
	// Expired is set when this peer has not answered and its deadline passed.
	Expired bool
}

// Timer computes the clock of peer me, elapsed into the current round.
func Timer(r room.Room, me string, answered bool, elapsed time.Duration) Clock {
	mine := r.Players[me]
	answered = answered || mine.HasAnswered

	opp, hasOpp := r.Opponent(me)
	var other room.PlayerState
	if hasOpp {
		other = r.Players[opp]
	}

	var c Clock
	deadline := RoundDuration
	switch {
	case answered && other.HasAnswered:
		return Clock{Informational: true}
	case answered:
		c.Informational = true
		if mine.HasAnswered {
			deadline = seconds(AnswerSeconds(mine, r.GameConfig)) + AnswerWindow
		}
	case other.HasAnswered && other.Connected && stressEligible(AnswerSeconds(other, r.GameConfig)):
		c.Stressed = true
		deadline = seconds(AnswerSeconds(other, r.GameConfig)) + AnswerWindow
	}

	c.Remaining = max(0, deadline-elapsed)
	c.Expired = !answered && c.Remaining == 0
	return c
}

// stressEligible limits stress mode to answers strictly inside the round.
func stressEligible(t float64) bool {
	return t > 0 && t < RoundDuration.Seconds()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Elapsed is the time since the round started, measured on the backend clock.
func Elapsed(r room.Room, now time.Time) time.Duration {
	if r.GameConfig.RoundStartTime == nil {
		return 0
	}
	return max(0, now.Sub(*r.GameConfig.RoundStartTime))
}

// StaleOpponent reports whether the opponent has not written any activity
// for longer than InactivityThreshold.
func StaleOpponent(r room.Room, me string, now time.Time) bool {
	opp, ok := r.Opponent(me)
	if !ok {
		return false
	}
	return now.Sub(r.Players[opp].LastActivity) > InactivityThreshold
}

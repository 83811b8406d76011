package room

import (
	"fmt"
	"maps"
)

var statusRank = map[Status]int{
	StatusWaiting:   0,
	StatusCountdown: 1,
	StatusPlaying:   2,
	StatusRoundEnd:  3,
	StatusGameEnd:   4,
}

// Validate checks a freshly created document.
func Validate(r Room) error {
	if len(r.Players) == 0 {
		return fmt.Errorf("%w: room has no players", ErrInvariant)
	}
	return checkShape(r)
}

// ValidateTransition checks the document invariants that must hold across
// every committed write, given the previous committed version.
func ValidateTransition(prev, next Room) error {
	if err := checkShape(next); err != nil {
		return err
	}
	if next.CurrentRound < prev.CurrentRound {
		return fmt.Errorf("%w: currentRound %d -> %d", ErrInvariant, prev.CurrentRound, next.CurrentRound)
	}
	if next.Status != prev.Status {
		backEdge := prev.Status == StatusRoundEnd && next.Status == StatusCountdown
		if !backEdge && statusRank[next.Status] < statusRank[prev.Status] {
			return fmt.Errorf("%w: status %s -> %s", ErrInvariant, prev.Status, next.Status)
		}
	}
	for id, p := range next.Players {
		if old, ok := prev.Players[id]; ok && p.Score < old.Score {
			return fmt.Errorf("%w: score of %s decreased", ErrInvariant, id)
		}
	}
	if prev.LastRoundResult != nil {
		cur := next.LastRoundResult
		if cur == nil {
			return fmt.Errorf("%w: lastRoundResult removed", ErrInvariant)
		}
		if cur.Round < prev.LastRoundResult.Round {
			return fmt.Errorf("%w: lastRoundResult moved backwards", ErrInvariant)
		}
		if cur.Round == prev.LastRoundResult.Round && !sameResult(*cur, *prev.LastRoundResult) {
			return fmt.Errorf("%w: lastRoundResult of round %d rewritten", ErrInvariant, cur.Round)
		}
	}
	return nil
}

func checkShape(r Room) error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariant, r.Status)
	}
	if len(r.Players) > MaxPlayers {
		return fmt.Errorf("%w: %d players", ErrRoomFull, len(r.Players))
	}
	hosts := 0
	for _, p := range r.Players {
		if p.IsHost {
			hosts++
		}
	}
	if len(r.Players) > 0 && hosts != 1 {
		// Leaving players keep their flag; only the creator ever holds it.
		if hosts > 1 || !hostMayBeGone(r) {
			return fmt.Errorf("%w: %d hosts", ErrInvariant, hosts)
		}
	}
	return nil
}

// hostMayBeGone allows a lone guest to stay after the host left the room.
func hostMayBeGone(r Room) bool {
	return len(r.Players) == 1
}

func sameResult(a, b RoundResult) bool {
	return a.Round == b.Round && a.CorrectAnswer == b.CorrectAnswer && maps.Equal(a.Players, b.Players)
}

package engine

import (
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

func PresencePatch(me string) room.Patch {
	return room.NewPatch(
		room.Set(room.PlayerPath(me, "connected"), true),
		room.ServerTime(room.PlayerPath(me, "lastActivity")),
	)
}

func DisconnectPatch(me string) room.Patch {
	return room.NewPatch(room.Set(room.PlayerPath(me, "connected"), false))
}

func HeartbeatPatch(me string) room.Patch {
	return room.NewPatch(room.ServerTime(room.PlayerPath(me, "lastActivity")))
}

func ReadyPatch(me string) room.Patch {
	return room.NewPatch(
		room.Set(room.PlayerPath(me, "ready"), true),
		room.ServerTime(room.PlayerPath(me, "lastActivity")),
	)
}

func StartCountdownPatch(r room.Room) room.Patch {
	return room.NewPatch(
		room.Set("status", room.StatusCountdown),
		room.Set("countdown", room.CountdownSeconds),
	).WithVersion(r.Version)
}

func CountdownTickPatch(value int) room.Patch {
	return room.NewPatch(room.Set("countdown", value))
}

// StartRoundPatch opens play. It stamps the round start with the backend
// clock and clears every per-round player field in the same write.
func StartRoundPatch(r room.Room) room.Patch {
	p := room.NewPatch(
		room.Set("status", room.StatusPlaying),
		room.Set("countdown", 0),
		room.ServerTime("gameConfig/roundStartTime"),
	).WithVersion(r.Version)
	for _, id := range r.PlayerIDs() {
		p = p.With(resetPlayer(id)...)
	}
	return p
}

func AdvanceRoundPatch(r room.Room) room.Patch {
	p := room.NewPatch(
		room.Set("status", room.StatusCountdown),
		room.Set("countdown", room.CountdownSeconds),
		room.Set("currentRound", r.CurrentRound+1),
	).WithVersion(r.Version)
	for _, id := range r.PlayerIDs() {
		p = p.With(room.Set(room.PlayerPath(id, "ready"), false))
	}
	return p
}

func resetPlayer(id string) []room.Op {
	return []room.Op{
		room.Set(room.PlayerPath(id, "ready"), false),
		room.Set(room.PlayerPath(id, "hasAnswered"), false),
		room.Remove(room.PlayerPath(id, "answer")),
		room.Remove(room.PlayerPath(id, "answerTime")),
		room.Remove(room.PlayerPath(id, "isCorrect")),
		room.Remove(room.PlayerPath(id, "answeredAt")),
	}
}

// SubmitAnswerPatch records an answer. answeredAt is stamped by the backend;
// answerTime is what the submitter measured and is kept for display.
func SubmitAnswerPatch(me, text string, elapsedSeconds float64, correct bool) room.Patch {
	return room.NewPatch(
		room.Set(room.PlayerPath(me, "hasAnswered"), true),
		room.Set(room.PlayerPath(me, "answer"), text),
		room.Set(room.PlayerPath(me, "answerTime"), elapsedSeconds),
		room.Set(room.PlayerPath(me, "isCorrect"), correct),
		room.ServerTime(room.PlayerPath(me, "answeredAt")),
		room.ServerTime(room.PlayerPath(me, "lastActivity")),
	)
}

// ForfeitPatch ends the match in favour of me after the opponent left.
func ForfeitPatch(me string) room.Patch {
	return room.NewPatch(
		room.Set("status", room.StatusGameEnd),
		room.Set("winner", me),
		room.Set("endReason", room.EndReasonOpponentDisconnected),
	)
}

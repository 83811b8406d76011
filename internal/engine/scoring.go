package engine

import (
	"math"

	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

const (
	BaseScore  = 30
	FirstBonus = 5
)

// RoundScore is max(0, 30 - floor(t) + bonus) for a correct answer, 0 otherwise.
func RoundScore(correct bool, seconds float64, first bool) int {
	if !correct {
		return 0
	}
	bonus := 0
	if first {
		bonus = FirstBonus
	}
	return max(0, BaseScore-int(math.Floor(seconds))+bonus)
}

// Resolution is the outcome of one round together with the single patch
// that records it.
type Resolution struct {
	Result room.RoundResult
	Patch  room.Patch
}

// Resolve scores the current round of r. Players who never answered are
// submitted as empty and incorrect within the same patch. The patch is
// conditional on r.Version so a second resolution of the same round fails.
func Resolve(r room.Room, correctAnswer string) Resolution {
	type entry struct {
		id      string
		answer  string
		correct bool
		time    float64
		forced  bool
	}

	var entries []entry
	for _, id := range r.PlayerIDs() {
		p := r.Players[id]
		if !p.HasAnswered {
			entries = append(entries, entry{id: id, forced: true})
			continue
		}
		entries = append(entries, entry{
			id:      id,
			answer:  p.AnswerText(),
			correct: p.Correct(),
			time:    AnswerSeconds(p, r.GameConfig),
		})
	}

	first := ""
	best := math.Inf(1)
	tie := false
	for _, e := range entries {
		if !e.correct {
			continue
		}
		switch {
		case e.time < best:
			first, best, tie = e.id, e.time, false
		case e.time == best:
			tie = true
		}
	}
	if tie {
		first = ""
	}

	res := room.RoundResult{
		Round:         r.CurrentRound,
		CorrectAnswer: correctAnswer,
		Players:       make(map[string]room.PlayerResult, len(entries)),
	}
	patch := room.NewPatch(room.Set("status", room.StatusRoundEnd)).WithVersion(r.Version)

	for _, e := range entries {
		score := RoundScore(e.correct, e.time, e.id == first)
		res.Players[e.id] = room.PlayerResult{
			Answer:     e.answer,
			IsCorrect:  e.correct,
			Time:       e.time,
			RoundScore: score,
			WasFirst:   e.id == first,
		}
		if e.forced {
			patch = patch.With(
				room.Set(room.PlayerPath(e.id, "hasAnswered"), true),
				room.Set(room.PlayerPath(e.id, "answer"), ""),
				room.Set(room.PlayerPath(e.id, "answerTime"), 0),
				room.Set(room.PlayerPath(e.id, "isCorrect"), false),
			)
		}
		if score > 0 {
			patch = patch.With(room.Increment(room.PlayerPath(e.id, "score"), score))
		}
	}
	patch = patch.With(room.Set("lastRoundResult", res))

	return Resolution{Result: res, Patch: patch}
}

// AnswerSeconds measures an answer against the round start using the
// backend timestamps. It falls back to the self-reported time when either
// stamp is missing.
func AnswerSeconds(p room.PlayerState, cfg room.GameConfig) float64 {
	if p.AnsweredAt != nil && cfg.RoundStartTime != nil {
		return max(0, p.AnsweredAt.Sub(*cfg.RoundStartTime).Seconds())
	}
	return p.Time()
}

// Winner compares final scores. An empty id means a draw.
func Winner(r room.Room) string {
	ids := r.PlayerIDs()
	if len(ids) == 0 {
		return ""
	}
	if len(ids) == 1 {
		return ids[0]
	}
	a, b := r.Players[ids[0]].Score, r.Players[ids[1]].Score
	switch {
	case a > b:
		return ids[0]
	case b > a:
		return ids[1]
	}
	return ""
}

package room

import (
	"maps"
	"slices"
	"time"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusPlaying   Status = "playing"
	StatusRoundEnd  Status = "round_end"
	StatusGameEnd   Status = "game_end"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusCountdown, StatusPlaying, StatusRoundEnd, StatusGameEnd:
		return true
	}
	return false
}

type EndReason string

const (
	EndReasonOpponentDisconnected EndReason = "opponent_disconnected"
)

const (
	MaxPlayers       = 2
	DefaultMaxRounds = 5
	CountdownSeconds = 3
)

// Room is the shared document both peers read and write.
type Room struct {
	Code            string                 `json:"code"`
	Seed            int64                  `json:"seed"`
	Status          Status                 `json:"status"`
	IsPrivate       bool                   `json:"isPrivate"`
	Difficulty      string                 `json:"difficulty"`
	CreatedAt       time.Time              `json:"createdAt"`
	CurrentRound    int                    `json:"currentRound"`
	MaxRounds       int                    `json:"maxRounds"`
	Countdown       int                    `json:"countdown"`
	Players         map[string]PlayerState `json:"players"`
	GameConfig      GameConfig             `json:"gameConfig"`
	LastRoundResult *RoundResult           `json:"lastRoundResult,omitempty"`
	Winner          string                 `json:"winner,omitempty"`
	EndReason       EndReason              `json:"endReason,omitempty"`
	Version         int64                  `json:"version"`
}

type GameConfig struct {
	RoundStartTime *time.Time `json:"roundStartTime,omitempty"`
}

type PlayerState struct {
	Pseudo       string     `json:"pseudo"`
	IsHost       bool       `json:"isHost"`
	Ready        bool       `json:"ready"`
	Score        int        `json:"score"`
	HasAnswered  bool       `json:"hasAnswered"`
	Answer       *string    `json:"answer"`
	AnswerTime   *float64   `json:"answerTime"`
	AnsweredAt   *time.Time `json:"answeredAt,omitempty"`
	IsCorrect    *bool      `json:"isCorrect"`
	Connected    bool       `json:"connected"`
	LastActivity time.Time  `json:"lastActivity"`
}

// RoundResult is written once per round by the authority and never changed.
type RoundResult struct {
	Round         int                     `json:"round"`
	CorrectAnswer string                  `json:"correctAnswer"`
	Players       map[string]PlayerResult `json:"players"`
}

type PlayerResult struct {
	Answer     string  `json:"answer"`
	IsCorrect  bool    `json:"isCorrect"`
	Time       float64 `json:"time"`
	RoundScore int     `json:"roundScore"`
	WasFirst   bool    `json:"wasFirst"`
}

// NewPlayer returns the neutral entry inserted on create/join.
func NewPlayer(pseudo string, host bool, now time.Time) PlayerState {
	return PlayerState{
		Pseudo:       pseudo,
		IsHost:       host,
		Connected:    true,
		LastActivity: now,
	}
}

// PlayerIDs returns the ids in a stable order.
func (r Room) PlayerIDs() []string {
	ids := slices.Collect(maps.Keys(r.Players))
	slices.Sort(ids)
	return ids
}

// Opponent returns the other player's id, or "" when alone.
func (r Room) Opponent(me string) (string, bool) {
	for _, id := range r.PlayerIDs() {
		if id != me {
			return id, true
		}
	}
	return "", false
}

func (r Room) Host() (string, bool) {
	for _, id := range r.PlayerIDs() {
		if r.Players[id].IsHost {
			return id, true
		}
	}
	return "", false
}

func (r Room) AllReady() bool {
	if len(r.Players) != MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r Room) IsLastRound() bool {
	return r.CurrentRound+1 >= r.MaxRounds
}

// Clone deep-copies the document so snapshots handed to subscribers are immutable.
func (r Room) Clone() Room {
	c := r
	c.Players = make(map[string]PlayerState, len(r.Players))
	for id, p := range r.Players {
		c.Players[id] = p.clone()
	}
	if r.GameConfig.RoundStartTime != nil {
		t := *r.GameConfig.RoundStartTime
		c.GameConfig.RoundStartTime = &t
	}
	if r.LastRoundResult != nil {
		res := *r.LastRoundResult
		res.Players = maps.Clone(r.LastRoundResult.Players)
		c.LastRoundResult = &res
	}
	return c
}

func (p PlayerState) clone() PlayerState {
	c := p
	if p.Answer != nil {
		v := *p.Answer
		c.Answer = &v
	}
	if p.AnswerTime != nil {
		v := *p.AnswerTime
		c.AnswerTime = &v
	}
	if p.AnsweredAt != nil {
		v := *p.AnsweredAt
		c.AnsweredAt = &v
	}
	if p.IsCorrect != nil {
		v := *p.IsCorrect
		c.IsCorrect = &v
	}
	return c
}

func (p PlayerState) Correct() bool {
	return p.IsCorrect != nil && *p.IsCorrect
}

func (p PlayerState) AnswerText() string {
	if p.Answer == nil {
		return ""
	}
	return *p.Answer
}

func (p PlayerState) Time() float64 {
	if p.AnswerTime == nil {
		return 0
	}
	return *p.AnswerTime
}

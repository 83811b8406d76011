package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPatch = errors.New("invalid patch")

type OpKind string

const (
	OpSet        OpKind = "set"
	OpRemove     OpKind = "remove"
	OpIncrement  OpKind = "increment"
	OpServerTime OpKind = "server_time"
)

// Op addresses one field of the document by slash-separated path,
// e.g. "status" or "players/{id}/ready".
type Op struct {
	Kind  OpKind          `json:"kind"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Patch is applied atomically: either every op lands or none does.
// A non-zero IfVersion makes the write conditional on the current version.
type Patch struct {
	Ops       []Op  `json:"ops"`
	IfVersion int64 `json:"ifVersion,omitempty"`
}

func NewPatch(ops ...Op) Patch {
	return Patch{Ops: ops}
}

func (p Patch) WithVersion(v int64) Patch {
	p.IfVersion = v
	return p
}

func (p Patch) With(ops ...Op) Patch {
	p.Ops = append(p.Ops, ops...)
	return p
}

func Set(path string, v any) Op {
	raw, err := json.Marshal(v)
	if err != nil {
		// decodes as an invalid value at apply time
		raw = nil
	}
	return Op{Kind: OpSet, Path: path, Value: raw}
}

func Remove(path string) Op {
	return Op{Kind: OpRemove, Path: path}
}

func Increment(path string, delta int) Op {
	raw, _ := json.Marshal(delta)
	return Op{Kind: OpIncrement, Path: path, Value: raw}
}

func ServerTime(path string) Op {
	return Op{Kind: OpServerTime, Path: path}
}

func PlayerPath(id string, field ...string) string {
	return strings.Join(append([]string{"players", id}, field...), "/")
}

// ApplyTo mutates r in place. Callers apply to a clone and keep the
// original when an error is returned.
func (p Patch) ApplyTo(r *Room, now time.Time) error {
	if len(p.Ops) == 0 {
		return fmt.Errorf("%w: empty patch", ErrInvalidPatch)
	}
	for _, op := range p.Ops {
		if err := applyOp(r, op, now); err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrInvalidPatch, op.Kind, op.Path, err)
		}
	}
	return nil
}

func applyOp(r *Room, op Op, now time.Time) error {
	segs := strings.Split(op.Path, "/")
	switch {
	case len(segs) == 1:
		return applyRoot(r, segs[0], op)
	case len(segs) == 2 && segs[0] == "gameConfig" && segs[1] == "roundStartTime":
		return setTime(&r.GameConfig.RoundStartTime, op, now)
	case len(segs) == 2 && segs[0] == "players":
		return applyPlayer(r, segs[1], op, now)
	case len(segs) == 3 && segs[0] == "players":
		p, ok := r.Players[segs[1]]
		if !ok {
			return fmt.Errorf("unknown player %q", segs[1])
		}
		if err := applyPlayerField(&p, segs[2], op, now); err != nil {
			return err
		}
		r.Players[segs[1]] = p
		return nil
	}
	return errors.New("unknown path")
}

func applyRoot(r *Room, field string, op Op) error {
	switch field {
	case "status":
		s, err := decode[Status](op)
		if err != nil {
			return err
		}
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", s)
		}
		r.Status = s
	case "countdown":
		return decodeInto(op, &r.Countdown)
	case "currentRound":
		return decodeInto(op, &r.CurrentRound)
	case "winner":
		if op.Kind == OpRemove {
			r.Winner = ""
			return nil
		}
		return decodeInto(op, &r.Winner)
	case "endReason":
		if op.Kind == OpRemove {
			r.EndReason = ""
			return nil
		}
		return decodeInto(op, &r.EndReason)
	case "lastRoundResult":
		res, err := decode[RoundResult](op)
		if err != nil {
			return err
		}
		r.LastRoundResult = &res
	default:
		return fmt.Errorf("field %q is not writable", field)
	}
	return nil
}

func applyPlayer(r *Room, id string, op Op, now time.Time) error {
	switch op.Kind {
	case OpRemove:
		delete(r.Players, id)
		return nil
	case OpSet:
		p, err := decode[PlayerState](op)
		if err != nil {
			return err
		}
		if r.Players == nil {
			r.Players = make(map[string]PlayerState)
		}
		if p.LastActivity.IsZero() {
			p.LastActivity = now
		}
		r.Players[id] = p
		return nil
	}
	return fmt.Errorf("op %s not supported on a player entry", op.Kind)
}

func applyPlayerField(p *PlayerState, field string, op Op, now time.Time) error {
	switch field {
	case "ready":
		return decodeInto(op, &p.Ready)
	case "hasAnswered":
		return decodeInto(op, &p.HasAnswered)
	case "connected":
		return decodeInto(op, &p.Connected)
	case "isHost":
		return decodeInto(op, &p.IsHost)
	case "answer":
		return setPtr(&p.Answer, op)
	case "answerTime":
		return setPtr(&p.AnswerTime, op)
	case "isCorrect":
		return setPtr(&p.IsCorrect, op)
	case "answeredAt":
		return setTime(&p.AnsweredAt, op, now)
	case "lastActivity":
		var t *time.Time
		if err := setTime(&t, op, now); err != nil {
			return err
		}
		if t == nil {
			return errors.New("lastActivity cannot be removed")
		}
		p.LastActivity = *t
		return nil
	case "score":
		if op.Kind != OpIncrement {
			return errors.New("score only supports increment")
		}
		var delta int
		if err := json.Unmarshal(op.Value, &delta); err != nil {
			return err
		}
		if delta < 0 {
			return fmt.Errorf("negative score increment %d", delta)
		}
		p.Score += delta
		return nil
	}
	return fmt.Errorf("field %q is not writable", field)
}

func setTime(dst **time.Time, op Op, now time.Time) error {
	switch op.Kind {
	case OpServerTime:
		t := now
		*dst = &t
		return nil
	case OpRemove:
		*dst = nil
		return nil
	}
	return setPtr(dst, op)
}

func setPtr[T any](dst **T, op Op) error {
	if op.Kind == OpRemove {
		*dst = nil
		return nil
	}
	if op.Kind != OpSet {
		return fmt.Errorf("op %s not supported", op.Kind)
	}
	if len(op.Value) == 0 || string(op.Value) == "null" {
		*dst = nil
		return nil
	}
	v, err := decode[T](op)
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}

func decodeInto[T any](op Op, dst *T) error {
	v, err := decode[T](op)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func decode[T any](op Op) (T, error) {
	var v T
	if op.Kind != OpSet {
		return v, fmt.Errorf("op %s not supported", op.Kind)
	}
	if len(op.Value) == 0 {
		return v, errors.New("missing value")
	}
	if err := json.Unmarshal(op.Value, &v); err != nil {
		return v, err
	}
	return v, nil
}

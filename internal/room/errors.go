package room

import "errors"

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room full")
var ErrRoomAlreadyStarted = errors.New("room already started")
var ErrInvalidRoomCode = errors.New("invalid room code")
var ErrOpponentForfeit = errors.New("opponent forfeited")
var ErrInvariant = errors.New("room invariant violated")

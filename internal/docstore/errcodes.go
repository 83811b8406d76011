package docstore

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

// Stable codes for errors that cross the wire.
var errorCodes = []struct {
	code string
	err  error
}{
	{"not_found", ErrNotFound},
	{"conflict", ErrConflict},
	{"exists", ErrExists},
	{"invalid_patch", ErrInvalidPatch},
	{"room_full", room.ErrRoomFull},
	{"already_started", room.ErrRoomAlreadyStarted},
	{"invalid_code", room.ErrInvalidRoomCode},
	{"invariant", room.ErrInvariant},
	{"unavailable", ErrUnavailable},
	{"closed", ErrClosed},
	{"bad_request", ErrBadRequest},
}

// ErrorCode maps err to its wire code, "internal" when unknown.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

// FromCode rebuilds an error received over the wire so errors.Is keeps working.
func FromCode(code, message string) error {
	for _, e := range errorCodes {
		if e.code == code {
			return fmt.Errorf("%w: %s", e.err, message)
		}
	}
	return fmt.Errorf("backend error: %s", message)
}

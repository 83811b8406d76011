// Package types is the JSON protocol spoken over the /ws endpoint. Every
// client request carries an id that the server echoes on its reply;
// snapshots of a subscription carry the id of the subscribe request.
package types

import (
	"time"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

type Op string

const (
	OpGet          Op = "get"
	OpCreate       Op = "create"
	OpUpdate       Op = "update"
	OpRemove       Op = "remove"
	OpQuery        Op = "query"
	OpSubscribe    Op = "subscribe"
	OpUnsubscribe  Op = "unsubscribe"
	OpOnDisconnect Op = "on_disconnect"
	OpTime         Op = "time"
)

type ClientMessage struct {
	ID    uint64          `json:"id"`
	Op    Op              `json:"op"`
	Code  string          `json:"code,omitempty"`
	Room  *room.Room      `json:"room,omitempty"`
	Patch *room.Patch     `json:"patch,omitempty"`
	Query *docstore.Query `json:"query,omitempty"`
	// Sub names the subscription an unsubscribe refers to.
	Sub uint64 `json:"sub,omitempty"`
}

const (
	MsgResult   = "Result"
	MsgSnapshot = "Snapshot"
	MsgClosed   = "Closed" // the subscription ended server side
	MsgError    = "Error"
)

type ServerMessage struct {
	Type  string      `json:"type"`
	ID    uint64      `json:"id,omitempty"`
	Room  *room.Room  `json:"room,omitempty"`
	Rooms []room.Room `json:"rooms,omitempty"`
	Time  *time.Time  `json:"time,omitempty"`
	Code  string      `json:"code,omitempty"` // error code, see docstore.ErrorCode
	Error string      `json:"error,omitempty"`
}

func Result(id uint64) ServerMessage {
	return ServerMessage{Type: MsgResult, ID: id}
}

func Failure(id uint64, err error) ServerMessage {
	return ServerMessage{Type: MsgError, ID: id, Code: docstore.ErrorCode(err), Error: err.Error()}
}

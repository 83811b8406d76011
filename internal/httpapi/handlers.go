package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/lifecycle"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
)

const qrSize = 320

// RoomSummary is what the lobby browser lists.
type RoomSummary struct {
	Code      string    `json:"code"`
	Host      string    `json:"host"`
	Players   int       `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}

type createRoomRequest struct {
	PeerID  string `json:"peerId"`
	Pseudo  string `json:"pseudo"`
	Private bool   `json:"private"`
}

type createRoomResponse struct {
	Code   string `json:"code"`
	PeerID string `json:"peerId"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := docstore.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "invalid_code", "invalid_patch", "bad_request":
		status = http.StatusBadRequest
	case "exists", "conflict", "room_full", "already_started":
		status = http.StatusConflict
	case "unavailable":
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}

func roomCode(r *http.Request) (string, error) {
	return room.NormalizeCode(chi.URLParam(r, "code"))
}

// CreateRoom opens a room for a player who will then join it over /ws.
func CreateRoom(m *lifecycle.Manager, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errors.Join(docstore.ErrBadRequest, err))
			return
		}
		if strings.TrimSpace(req.Pseudo) == "" {
			writeError(w, errors.Join(docstore.ErrBadRequest, errors.New("pseudo is required")))
			return
		}
		if req.PeerID == "" {
			req.PeerID = uuid.NewString()
		}

		code, err := m.CreateRoom(r.Context(), req.PeerID, req.Pseudo, req.Private)
		if err != nil {
			log.Warn("create room", zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createRoomResponse{Code: code, PeerID: req.PeerID})
	}
}

// ListRooms returns the public rooms still waiting for an opponent.
func ListRooms(store docstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := store.Query(r.Context(), docstore.Query{
			Status:      room.StatusWaiting,
			PublicOnly:  true,
			PlayerCount: 1,
			Limit:       50,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]RoomSummary, 0, len(rooms))
		for _, rm := range rooms {
			s := RoomSummary{Code: rm.Code, Players: len(rm.Players), CreatedAt: rm.CreatedAt}
			if id, ok := rm.Host(); ok {
				s.Host = rm.Players[id].Pseudo
			}
			out = append(out, s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetRoom(store docstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := roomCode(r)
		if err != nil {
			writeError(w, err)
			return
		}
		rm, err := store.Get(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rm)
	}
}

// RoomQR renders a PNG QR code pointing at the join page of a room.
func RoomQR(store docstore.Store, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := roomCode(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := store.Get(r.Context(), code); err != nil {
			writeError(w, err)
			return
		}

		png, err := qrcode.Encode(joinURL(r, publicURL, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// joinURL prefers the configured public url and otherwise derives one
// from the request, respecting X-Forwarded-Proto.
func joinURL(r *http.Request, publicURL, code string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join/" + code
}

// Healthz reports 503 when ping fails.
func Healthz(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: "unavailable", Error: err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

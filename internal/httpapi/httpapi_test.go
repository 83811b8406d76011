package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/flashcountry-pvp/internal/hub"
	"github.com/DoyleJ11/flashcountry-pvp/internal/lifecycle"
	"github.com/DoyleJ11/flashcountry-pvp/internal/room"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

func newServer(t *testing.T, ping func(context.Context) error) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := zaptest.NewLogger(t)
	h := hub.NewHub(ctx, hub.Config{Logger: log})
	srv := httptest.NewServer(SetupRoutes(Deps{
		Hub:       h,
		Rooms:     lifecycle.NewManager(h.NewSession(), rounds.Easy, log),
		PublicURL: "https://flash.example",
		Ping:      ping,
		Logger:    log,
	}))
	t.Cleanup(srv.Close)
	return srv, h
}

func createRoom(t *testing.T, srv *httptest.Server, private bool) createRoomResponse {
	t.Helper()
	body, _ := json.Marshal(createRoomRequest{Pseudo: "Alice", Private: private})
	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndGetRoom(t *testing.T) {
	srv, _ := newServer(t, nil)
	created := createRoom(t, srv, false)
	assert.NotEmpty(t, created.PeerID)

	resp, err := http.Get(srv.URL + "/rooms/" + created.Code)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rm room.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rm))
	assert.Equal(t, created.Code, rm.Code)
	assert.True(t, rm.Players[created.PeerID].IsHost)
}

func TestCreateRoom_RequiresPseudo(t *testing.T) {
	srv, _ := newServer(t, nil)
	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewReader([]byte(`{"pseudo":" "}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRoom_Errors(t *testing.T) {
	srv, _ := newServer(t, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/rooms/ZZZZZ", http.StatusNotFound},
		{"/rooms/no", http.StatusBadRequest},
		{"/rooms/ZZZZZ/qr", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.want, resp.StatusCode, tt.path)
	}
}

func TestListRooms_OnlyPublicWaiting(t *testing.T) {
	srv, _ := newServer(t, nil)
	public := createRoom(t, srv, false)
	createRoom(t, srv, true)

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list []RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, public.Code, list[0].Code)
	assert.Equal(t, "Alice", list[0].Host)
}

func TestRoomQR(t *testing.T) {
	srv, _ := newServer(t, nil)
	created := createRoom(t, srv, true)

	resp, err := http.Get(srv.URL + "/rooms/" + created.Code + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestJoinURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://flash.local/rooms/AB12C/qr", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://flash.local/join/AB12C", joinURL(r, "", "AB12C"))
	assert.Equal(t, "https://cdn.example/join/AB12C", joinURL(r, "https://cdn.example/", "AB12C"))
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down, _ := newServer(t, func(context.Context) error { return errors.New("db down") })
	resp, err = http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

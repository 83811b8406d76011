package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/hub"
	"github.com/DoyleJ11/flashcountry-pvp/internal/lifecycle"
	"github.com/DoyleJ11/flashcountry-pvp/internal/ws"
)

type Deps struct {
	Hub       *hub.Hub
	Rooms     *lifecycle.Manager
	WS        ws.Options
	PublicURL string
	// Ping backs /healthz; nil means always healthy.
	Ping   func(context.Context) error
	Logger *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.WS.Logger == nil {
		d.WS.Logger = d.Logger
	}
	store := d.Hub.NewSession()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz(d.Ping))
	r.Get("/ws", ws.Handler(d.Hub, d.WS))

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", ListRooms(store))
		r.Post("/", CreateRoom(d.Rooms, d.Logger))
		r.Get("/{code}", GetRoom(store))
		r.Get("/{code}/qr", RoomQR(store, d.PublicURL))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

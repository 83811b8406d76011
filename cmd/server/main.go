package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/flashcountry-pvp/internal/config"
	"github.com/DoyleJ11/flashcountry-pvp/internal/httpapi"
	"github.com/DoyleJ11/flashcountry-pvp/internal/hub"
	"github.com/DoyleJ11/flashcountry-pvp/internal/lifecycle"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
	"github.com/DoyleJ11/flashcountry-pvp/internal/storage"
	"github.com/DoyleJ11/flashcountry-pvp/internal/ws"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg := &config.Server{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(context.Background()))
}

func newCmd(cfg *config.Server) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flashpvp-server",
		Short:   "Room store and websocket relay for two-player country quiz matches.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())
	config.Bind(cmd)
	cmd.SetVersionTemplate("flashpvp-server v{{.Version}}\n")
	return cmd
}

func run(parent context.Context, cfg *config.Server) error {
	logger, err := config.NewLogger(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backend hub.Backend = storage.NewMemory()
		ping    func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		n, err := pg.DeleteOlderThan(ctx, time.Now().Add(-cfg.MaxRoomAge))
		if err != nil {
			return fmt.Errorf("prune rooms: %w", err)
		}
		logger.Info("pruned expired rooms", zap.Int64("removed", n))
		backend, ping = pg, pg.Ping
	}

	h := hub.NewHub(ctx, hub.Config{Backend: backend, Logger: logger.Named("hub")})
	restored, err := h.Restore(ctx)
	if err != nil {
		logger.Warn("restore rooms", zap.Int("restored", restored), zap.Error(err))
	} else {
		logger.Info("rooms restored", zap.Int("restored", restored))
	}

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:   h,
		Rooms: lifecycle.NewManager(h.NewSession(), rounds.Easy, logger.Named("lifecycle")),
		WS: ws.Options{
			OriginPatterns: cfg.Origins,
			Rate:           rate.Limit(cfg.RateLimit),
			Burst:          cfg.RateBurst,
			Logger:         logger.Named("ws"),
		},
		PublicURL: cfg.PublicURL,
		Ping:      ping,
		Logger:    logger.Named("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	reaper := lifecycle.NewReaper(h.NewSession(), cfg.ReapInterval, cfg.MaxRoomAge, logger.Named("reaper"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("version", releaseVersion))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return reaper.Run(gctx)
	})

	err = g.Wait()
	logger.Info("server stopped", zap.Error(err))
	return err
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/flashcountry-pvp/internal/bot"
	"github.com/DoyleJ11/flashcountry-pvp/internal/config"
	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
	"github.com/DoyleJ11/flashcountry-pvp/internal/peer"
	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
	"github.com/DoyleJ11/flashcountry-pvp/internal/ws"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg := &config.Bot{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(context.Background()))
}

func newCmd(cfg *config.Bot) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flashpvp-bot",
		Short:   "Headless player that joins a room over the websocket and plays one match.",
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
	cmd.SetVersionTemplate("flashpvp-bot v{{.Version}}\n")
	return cmd
}

func run(parent context.Context, cfg *config.Bot) error {
	logger, err := config.NewLogger(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ws.Dial(ctx, cfg.ServerURL, logger.Named("ws"))
	if err != nil {
		return err
	}
	defer client.Close()

	tier, _ := rounds.ParseTier(cfg.Difficulty)
	var assets rounds.AssetResolver
	if cfg.AssetURL != "" {
		assets = rounds.R2Assets{BaseURL: cfg.AssetURL}
	}

	id := uuid.NewString()
	p := peer.New(id, cfg.Name, peer.Config{
		Store:      client,
		Assets:     assets,
		Difficulty: tier,
		Logger:     logger.Named("peer"),
	})
	b := bot.New(p, bot.Config{
		Store:    client,
		Accuracy: cfg.Accuracy,
		MinDelay: cfg.MinDelay,
		MaxDelay: cfg.MaxDelay,
		Logger:   logger.Named("bot"),
	})

	g, gctx := errgroup.WithContext(ctx)
	peerCtx, stopPeer := context.WithCancel(gctx)
	g.Go(func() error { return p.Run(peerCtx) })
	g.Go(func() error {
		select {
		case <-client.Done():
			return fmt.Errorf("connection to %s lost: %w", cfg.ServerURL, docstore.ErrUnavailable)
		case <-peerCtx.Done():
			return nil
		}
	})
	g.Go(func() error {
		defer stopPeer()

		code, err := enter(gctx, p, cfg)
		if err != nil {
			return err
		}
		logger.Info("joined room", zap.String("room", code), zap.String("peer", id))

		final, err := b.Play(gctx)
		if err != nil {
			return fmt.Errorf("play %s: %w", code, err)
		}
		fmt.Printf("room %s: winner=%q score=%d\n", code, final.Winner, final.Me.Score)
		if err := final.Forfeit(); err != nil {
			fmt.Println(err)
		}

		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return p.Leave(leaveCtx)
	})
	return g.Wait()
}

func enter(ctx context.Context, p *peer.Peer, cfg *config.Bot) (string, error) {
	switch {
	case cfg.Room != "":
		return p.JoinRoom(ctx, cfg.Room)
	case cfg.Private:
		return p.CreateRoom(ctx, true)
	default:
		return p.QuickMatch(ctx)
	}
}

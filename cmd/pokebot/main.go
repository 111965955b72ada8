package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"pokebot/internal/api"
	"pokebot/internal/config"
	"pokebot/internal/cooldown"
	"pokebot/internal/db"
	"pokebot/internal/discord"
	"pokebot/internal/flow"
	"pokebot/internal/stats"
	"pokebot/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("migrate failed", "err", err)
			os.Exit(1)
		}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.MaxConns})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if _, err := st.LoadCatalog(ctx); err != nil {
		logger.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	recorder := stats.NewRecorder(st, logger)

	var limiter cooldown.Limiter = cooldown.NewLocal()
	if cfg.RedisURL != "" {
		client, err := cooldown.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Error("redis config invalid", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "err", err)
			os.Exit(1)
		}
		limiter = cooldown.NewRedis(client, logger)
	}

	svc := flow.NewService(st, recorder, sharedRand{}, flow.Options{
		PartyMax:      cfg.PartyMax,
		ThrowTimeout:  cfg.ThrowTimeout,
		PCInfoTimeout: cfg.PCInfoTimeout,
		PartyTimeout:  cfg.PartyTimeout,
	}, logger)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Error("discord session init failed", "err", err)
		os.Exit(1)
	}
	bot := discord.New(dg, svc, st, limiter, discord.Options{
		Prefix:           cfg.Prefix,
		Channel:          cfg.Channel,
		Owners:           cfg.OwnerIDs,
		ImageRoot:        cfg.ImageRoot,
		MenuTimeout:      cfg.MenuTimeout,
		ConfirmTimeout:   cfg.ConfirmTimeout,
		DeleteAfter:      cfg.DeleteAfter,
		EncounterCooling: cfg.EncounterCooling,
		RewardCooling:    cfg.RewardCooling,
	}, logger)

	server := api.New(cfg.AdminToken, logger, st, svc)
	httpServer := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.AdminToken == "" {
		logger.Warn("POKEBOT_ADMIN_TOKEN not set, admin routes disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("pokebot admin listening", "addr", cfg.AdminAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("pokebot stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("pokebot stopped")
}

// sharedRand draws from the goroutine-safe top-level source.
type sharedRand struct{}

func (sharedRand) IntN(n int) int { return rand.IntN(n) }

func (sharedRand) Uint32() uint32 { return rand.Uint32() }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

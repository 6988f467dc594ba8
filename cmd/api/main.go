package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/heartwise/backend/internal/config"
	"github.com/zhouzirui/heartwise/backend/internal/handler"
	"github.com/zhouzirui/heartwise/backend/internal/logger"
	"github.com/zhouzirui/heartwise/backend/internal/service/chat"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
	"github.com/zhouzirui/heartwise/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(cfg.Log.Level, cfg.IsDevelopment())
	if envErr != nil {
		appLogger.Debug().Err(envErr).Msg("no .env file, using system environment variables only")
	}

	archive, err := store.Open(ctx, store.Options{
		Driver:     cfg.Archive.Driver,
		SQLitePath: cfg.Archive.SQLitePath,
		RedisURL:   cfg.Archive.RedisURL,
		RedisTTL:   cfg.Archive.RedisTTL,
	})
	if err != nil {
		appLogger.Fatal().Err(err).Str("driver", cfg.Archive.Driver).Msg("failed to open transcript archive")
	}

	opts := handler.Options{ArchiveName: cfg.Archive.Driver}
	engineCfg := chat.EngineConfig{
		Generator:        reply.NewGenerator(reply.PickerFor(cfg.Session.ReplyStrategy)),
		Logger:           &appLogger,
		MaxMessageLength: cfg.Session.MaxMessageLength,
	}
	if archive != nil {
		defer func() {
			if err := archive.Close(); err != nil {
				appLogger.Error().Err(err).Msg("failed to close transcript archive")
			}
		}()
		opts.Archive = archive
		engineCfg.Archive = archive
		engineCfg.ArchiveDriver = cfg.Archive.Driver
		appLogger.Info().Str("driver", cfg.Archive.Driver).Msg("transcript archive enabled")
	}

	sessions := chat.NewStore(chat.StoreConfig{TTL: cfg.Session.TTL})
	engine := chat.NewEngine(sessions, engineCfg)

	if ttl := sessions.TTL(); ttl > 0 {
		appLogger.Info().
			Dur("ttl", ttl).
			Dur("sweep_interval", cfg.Session.SweepInterval).
			Msg("idle session eviction enabled")
	}
	go sessions.RunJanitor(ctx, cfg.Session.SweepInterval)

	router := handler.NewRouter(engine, cfg.Server, appLogger, opts)

	startServer(ctx, cfg.Server, router, appLogger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("heartwise backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

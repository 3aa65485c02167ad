package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mzholl/callwire/internal/adapters/httpapi"
	wssignal "github.com/mzholl/callwire/internal/adapters/signal"
	"github.com/mzholl/callwire/internal/app"
	"github.com/mzholl/callwire/internal/config"
	"github.com/mzholl/callwire/internal/store"
	"github.com/mzholl/callwire/internal/store/memory"
	redisstore "github.com/mzholl/callwire/internal/store/redis"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var calls store.CallStore
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr)
		if err := rs.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		defer rs.Close()
		calls = rs
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis call store")
	} else {
		calls = memory.New()
		log.Info().Msg("using in-memory call store")
	}

	registry := app.NewRegistry()
	rooms := app.NewRoomTracker()
	relay := app.NewRelay(registry, rooms)
	coord := app.NewCoordinator(registry, rooms, relay, calls)
	ctl := wssignal.NewController(cfg, coord)

	r := httpapi.SetupRouter(ctx, cfg, ctl, calls)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Callwire signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

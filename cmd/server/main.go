package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ndbelyaev/whitecards/internal/affinity"
	"github.com/ndbelyaev/whitecards/internal/config"
	"github.com/ndbelyaev/whitecards/internal/deck"
	"github.com/ndbelyaev/whitecards/internal/game"
	"github.com/ndbelyaev/whitecards/internal/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Int("port", cfg.Port).
		Str("server_id", cfg.ServerID).
		Str("nats_url", cfg.NATSURL).
		Msg("starting whitecards server")

	clock := clockwork.NewRealClock()

	store, closeStore, err := newAffinityStore(cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up affinity store")
	}
	defer closeStore()

	cards, err := deck.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load card deck")
	}

	registry := game.NewRegistry(cards, clock, log.Logger)
	controller := gateway.NewController(registry, store, clock, gateway.Config{
		ServerID:          cfg.ServerID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		AffinityTTL:       cfg.AffinityTTL,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == cfg.SiteURL
		},
	}, log.Logger)

	mux := http.NewServeMux()
	controller.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, registry.Len())
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.SiteURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: corsHandler.Handler(mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// newAffinityStore connects to NATS when a URL is configured and falls back
// to the in-memory store otherwise.
func newAffinityStore(cfg config.Config, clock clockwork.Clock) (affinity.Store, func(), error) {
	if cfg.NATSURL == "" {
		log.Warn().Msg("NATS_URL not set, using in-memory affinity store")
		return affinity.NewMemory(clock), func() {}, nil
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := affinity.NewKV(ctx, js, cfg.AffinityBucket, cfg.AffinityTTL)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return store, nc.Close, nil
}

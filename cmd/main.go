package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CDeX-Labs/CDeX-Typing-Service/config"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/handlers"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/idempotency"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/kafka"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/leaderboard"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/migrate"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/ratelimit"
	redisclient "github.com/CDeX-Labs/CDeX-Typing-Service/internal/redis"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/reward"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/streak"
	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/submission"
	"github.com/CDeX-Labs/CDeX-Typing-Service/pkg/events"
)

const limiterFallbackSize = 10000

func main() {
	devMode := flag.Bool("dev", os.Getenv("DEV_MODE") == "true", "load .env and use console logging")
	flag.Parse()

	cfg := config.InitConfig(*devMode)
	logger := newLogger(cfg)

	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	if cfg.Database.RunMigrations {
		if err := migrate.Up(ctx, cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		logger.Info().Msg("Migrations applied")
	}

	db, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer db.Close()

	rdb, err := redisclient.NewClient(cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	rdb.WithMetrics(m)
	defer rdb.Close()

	validator := auth.NewJWTValidator(cfg.JWT.Secret)
	validator.OnFailure(m.IncAuthFailures)

	fallback := ratelimit.NewFallback(limiterFallbackSize)
	limiter := ratelimit.NewLimiter(rdb, fallback, m, logger)

	boards := leaderboard.NewService(leaderboard.NewCache(rdb, m, logger), db, cfg.Leaderboard.Durations, m, logger)

	wsHub := hub.NewHub(func(roomID string) bool {
		d, ok := hub.ParseLeaderboardRoom(roomID)
		return ok && boards.ValidDuration(d)
	}, m, logger)
	go wsHub.Run(ctx)

	pubsub := redisclient.NewPubSub(rdb, wsHub.HandleRemote, logger)
	if err := pubsub.Start(); err != nil {
		logger.Error().Err(err).Msg("Cross-instance relay disabled")
	} else {
		wsHub.SetPublisher(pubsub)
	}
	boards.SetNotifier(wsHub)

	go boards.RunJanitor(ctx, cfg.Leaderboard.JanitorInterval)

	var (
		producer *kafka.Producer
		consumer *kafka.Consumer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, m, logger)
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{events.TopicLeaderboardRebuild}, m, logger)
		kafka.NewHandlers(boards, logger).RegisterAll(consumer)
		consumer.Start(ctx)
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not set, result events will not be published")
	}

	streaks := streak.NewTracker(rdb, logger)

	deps := submission.Deps{
		Guard:       idempotency.NewGuard(rdb, m, logger),
		Limiter:     limiter,
		Store:       db,
		Rewards:     reward.NewIssuer(db, m, logger),
		Streaks:     streaks,
		Leaderboard: boards,
	}
	if producer != nil {
		deps.Publisher = producer
	}
	submitter := submission.NewService(deps, submission.DefaultConfig(), m, logger)

	readyStats := func() map[string]interface{} {
		stats := wsHub.GetStats()
		stats["instanceId"] = pubsub.InstanceID()
		stats["limiterFallbackKeys"] = fallback.Len()
		return stats
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Validator:   validator,
		Limiter:     limiter,
		Results:     handlers.NewResultsHandler(submitter, logger),
		Leaderboard: handlers.NewLeaderboardHandler(boards, logger),
		Profile:     handlers.NewProfileHandler(db, streaks, logger),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, logger),
		Ready: handlers.ReadyHandler(readyStats,
			handlers.Check{Name: "postgres", Ping: db.Ping},
			handlers.Check{Name: "redis", Ping: rdb.Ping, Optional: true},
		),
		Metrics: promhttp.Handler(),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.App.Port).Str("app", cfg.App.Name).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Kafka consumer shutdown failed")
		}
	}
	if err := pubsub.Stop(); err != nil {
		logger.Error().Err(err).Msg("PubSub shutdown failed")
	}
	boards.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("Kafka producer shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

func newLogger(cfg *config.AppConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.App.Name).Logger()
	if cfg.App.DevMode {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = logger
	return logger
}

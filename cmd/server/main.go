// main wires the process: postgres, redis, the bus, the registry gateway, the
// claim consumers, the outbox worker and the HTTP surface. Business logic
// lives in the internal packages; main only assembles and supervises them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	adminhandler "keybridge/internal/admin"
	"keybridge/internal/claims/dedupe"
	"keybridge/internal/claims/dispatch"
	"keybridge/internal/claims/engine"
	claimhandler "keybridge/internal/claims/handler"
	claimmetrics "keybridge/internal/claims/metrics"
	claimstore "keybridge/internal/claims/store"
	"keybridge/internal/events"
	keyhandler "keybridge/internal/keys/handler"
	keyservice "keybridge/internal/keys/service"
	keystore "keybridge/internal/keys/store"
	"keybridge/internal/platform/config"
	"keybridge/internal/platform/httpserver"
	"keybridge/internal/platform/kafka/consumer"
	"keybridge/internal/platform/kafka/producer"
	"keybridge/internal/platform/logger"
	platformredis "keybridge/internal/platform/redis"
	registryhttp "keybridge/internal/registry/adapters/http"
	"keybridge/internal/registry/token"
	"keybridge/internal/storage"
	httptransport "keybridge/internal/transport/http"
	"keybridge/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := storage.Apply(ctx, db); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var marker dedupe.Marker = dedupe.NewMemoryMarker()
	if redisClient != nil {
		defer redisClient.Close()
		marker = dedupe.NewRedisMarker(redisClient.Client)
	}

	busProducer, err := producer.New(cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	defer busProducer.Close()
	topics := append(dispatch.PhaseTopics(), dispatch.TopicDeadLetter, dispatch.TopicDomainEvents)
	if err := busProducer.EnsureTopics(ctx, 6, topics...); err != nil {
		return err
	}

	keys := keystore.NewPostgres(db)
	claims := claimstore.NewPostgres(db)
	outbox := events.NewPostgresOutbox(db)
	publisher := events.NewPublisher(outbox)
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return tx.Run(ctx, db, fn)
	}

	tokens := token.NewService(cfg.Registry.SigningKey, cfg.Participant, cfg.Registry.BaseURL,
		token.WithTTL(cfg.Registry.TokenTTL))
	gateway := registryhttp.New(cfg.Registry.BaseURL, tokens, log,
		registryhttp.WithTimeout(cfg.Registry.Timeout))

	eng := engine.New(engine.ParticipantPolicy{Local: cfg.Participant}, engine.DefaultWindows())
	m := claimmetrics.New()
	republisher := dispatch.NewRepublisher(busProducer, log)
	procs := claimhandler.New(keys, claims, gateway, eng, publisher, republisher, marker, inTx, log,
		claimhandler.WithMetrics(m),
		claimhandler.WithMaxAttempts(cfg.DeadLetterMaxAttempts),
	)

	router := dispatch.NewRouter(log)
	dispatch.Wire(router, log, map[string]dispatch.PhaseFunc{
		dispatch.TopicOpened:     procs.HandleOpened,
		dispatch.TopicWaiting:    procs.HandleWaiting,
		dispatch.TopicConfirming: procs.HandleConfirming,
		dispatch.TopicCompleting: procs.HandleCompleting,
		dispatch.TopicCanceling:  procs.HandleCanceling,
		dispatch.TopicClosing:    procs.HandleClosing,
		dispatch.TopicDenied:     procs.HandleDenied,
		dispatch.TopicDeadLetter: procs.HandleDeadLetter,
	})
	claimConsumer, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Group:   cfg.Kafka.Group,
		Topics:  append(dispatch.PhaseTopics(), dispatch.TopicDeadLetter),
	}, router, log)
	if err != nil {
		return err
	}

	outboxWorker := events.NewWorker(outbox, busProducer, dispatch.TopicDomainEvents, log)

	keySvc := keyservice.NewService(keys, publisher, inTx, log)
	readiness := map[string]httptransport.HealthChecker{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		readiness["redis"] = redisClient.Health
	}
	httpRouter := httptransport.NewRouter(log, readiness,
		httptransport.Options{RateLimit: cfg.HTTP.RateLimit},
		keyhandler.New(keySvc, log),
		adminhandler.New(keys, claims, outbox, cfg.Admin.TokenHash, log),
	)
	srv := httpserver.New(cfg.HTTP.Addr, httpRouter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return claimConsumer.Run(ctx) })
	g.Go(func() error { return outboxWorker.Run(ctx) })
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("keybridge started",
		"participant", string(cfg.Participant),
		"kafka_group", cfg.Kafka.Group,
	)
	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ticketguard/scoring/internal/application/usecase"
	"github.com/ticketguard/scoring/internal/domain/port"
	"github.com/ticketguard/scoring/internal/infrastructure/config"
	kafkainfra "github.com/ticketguard/scoring/internal/infrastructure/kafka"
	"github.com/ticketguard/scoring/internal/infrastructure/postgres"
	"github.com/ticketguard/scoring/internal/infrastructure/s3"
	"github.com/ticketguard/scoring/internal/infrastructure/sqlite"
	"github.com/ticketguard/scoring/internal/infrastructure/telemetry"
	"github.com/ticketguard/scoring/internal/ml/artifact"
	"github.com/ticketguard/scoring/internal/ml/inference"
	"github.com/ticketguard/scoring/internal/ml/trainer"
	grpcpresentation "github.com/ticketguard/scoring/internal/presentation/grpc"
	"github.com/ticketguard/scoring/internal/presentation/rest"
	"github.com/ticketguard/scoring/pkg/kafka"
	"github.com/ticketguard/scoring/pkg/observability"
	pgpkg "github.com/ticketguard/scoring/pkg/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg := config.Load()

	// Initialize structured logger via shared observability package.
	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("starting scoring-service",
		slog.Int("http_port", cfg.HTTPPort),
		slog.Int("grpc_port", cfg.GRPCPort),
		slog.String("db_driver", cfg.Database.Driver),
	)

	// Initialize tracing.
	tracerProvider, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    true,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", slog.String("error", err.Error()))
	} else {
		defer shutdownWithTimeout(logger, "tracer", tracerProvider.Shutdown)
	}

	// Initialize metrics.
	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		logger.Error("failed to initialize metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownWithTimeout(logger, "meter provider", meterProvider.Shutdown)

	metrics, err := telemetry.NewMetrics(meterProvider)
	if err != nil {
		logger.Error("failed to create instruments", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Profile store.
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open profile store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.close()

	// Model artifact, restored from the mirror when the local copy is missing.
	storeOpts := []artifact.Option{artifact.WithLogger(logger)}
	if cfg.Artifact.MirrorEnabled() {
		mirror, err := s3.NewMirror(ctx, s3.Config{
			Bucket:   cfg.Artifact.S3Bucket,
			Key:      cfg.Artifact.S3Key,
			Region:   cfg.Artifact.S3Region,
			Endpoint: cfg.Artifact.S3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create artifact mirror", slog.String("error", err.Error()))
			os.Exit(1)
		}
		storeOpts = append(storeOpts, artifact.WithMirror(mirror))
	}
	artifactStore := artifact.NewStore(cfg.Artifact.Path, storeOpts...)
	if restored, err := artifactStore.Restore(ctx); err != nil {
		logger.Warn("failed to restore model artifact from mirror", slog.String("error", err.Error()))
	} else if restored {
		logger.Info("model artifact restored from mirror", slog.String("path", artifactStore.Path()))
	}

	scorer := inference.NewService(artifactStore,
		inference.WithLogger(logger),
		inference.WithLoadRecorder(metrics),
	)

	// Event publishing. Without brokers events are only logged.
	instanceID := instanceName(cfg.ServiceName)
	var publisher port.EventPublisher = kafkainfra.NewLogPublisher(logger)
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		kcfg := cfg.Kafka.Client()
		kcfg.ClientID = instanceID
		producer, err = kafka.NewProducer(kcfg)
		if err != nil {
			logger.Error("failed to create kafka producer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher = kafkainfra.NewEventPublisher(producer, cfg.Kafka.Topic, instanceID, logger)
	}

	// Wire use cases.
	baseTraining, err := cfg.Trainer()
	if err != nil {
		logger.Error("failed to load training config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scoreUserUC := usecase.NewScoreUser(db.uow, publisher, scorer, metrics, logger)
	historyUC := usecase.NewGetPredictionHistory(db.profiles, db.predictions)
	trainModelUC := usecase.NewTrainModel(trainer.New(logger), artifactStore, scorer, publisher, metrics, logger, baseTraining)
	modelInfoUC := usecase.NewGetModelInfo(scorer, trainModelUC, artifactStore.Path())

	// Model reload listener: other instances announce new artifacts on the
	// events topic. Each instance consumes with its own group so every
	// replica sees every announcement.
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled() {
		listener := kafkainfra.NewModelReloadListener(instanceID, artifactStore, scorer, logger)
		kcfg := cfg.Kafka.Client()
		kcfg.ClientID = instanceID
		kcfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "." + hostname()
		consumer, err = kafka.NewConsumer(kcfg, cfg.Kafka.Topic, listener.Handle, logger)
		if err != nil {
			logger.Error("failed to create kafka consumer", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// gRPC server.
	grpcHandler := grpcpresentation.NewScoringServiceHandler(scoreUserUC, modelInfoUC, logger)
	grpcServer, err := grpcpresentation.NewServer(grpcHandler, grpcpresentation.ServerConfig{
		Address:     cfg.GRPCAddress(),
		TLSCertFile: cfg.GRPC.TLSCertFile,
		TLSKeyFile:  cfg.GRPC.TLSKeyFile,
		Reflection:  cfg.GRPC.Reflection,
	}, logger)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// HTTP server: REST API, health checks and metrics.
	limiter := rest.NewClientLimiter(cfg.RateLimitPerMinute)
	apiHandler := rest.NewScoringHandler(scoreUserUC, historyUC, trainModelUC, modelInfoUC, rest.TrainEndpointConfig{
		Enabled: cfg.Training.EnableEndpoint,
		Token:   cfg.Training.Token,
	}, logger)
	healthHandler := rest.NewHealthHandler(db.pinger, scorer, cfg.ServiceName, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      rest.NewRouter(apiHandler, healthHandler, metricsHandler, limiter, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start servers.
	errCh := make(chan error, 3)

	go limiter.Run(ctx, time.Minute)

	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", slog.String("address", cfg.HTTPAddress()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("model reload consumer error: %w", err)
			}
		}()
	}

	logger.Info("scoring-service started",
		slog.String("grpc_address", cfg.GRPCAddress()),
		slog.String("http_address", cfg.HTTPAddress()),
		slog.String("environment", cfg.Environment),
		slog.String("instance", instanceID),
	)

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", slog.String("error", err.Error()))
	}

	// Graceful shutdown.
	logger.Info("shutting down scoring-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	grpcServer.Stop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	trainModelUC.Close()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("scoring-service stopped")
}

// database bundles the repositories of the configured driver.
type database struct {
	profiles    port.ProfileRepository
	predictions port.PredictionRepository
	uow         port.UnitOfWork
	pinger      port.HealthChecker
	close       func()
}

func openDatabase(ctx context.Context, cfg config.Config, logger *slog.Logger) (*database, error) {
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(dbCtx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite profile store", slog.String("path", cfg.Database.SQLitePath))
		return &database{
			profiles:    sqlite.NewProfileRepository(store),
			predictions: sqlite.NewPredictionRepository(store),
			uow:         sqlite.NewUnitOfWork(store),
			pinger:      store,
			close:       func() { _ = store.Close() },
		}, nil

	default:
		pgCfg := cfg.Database.Postgres()
		dsn := pgCfg.DSN()
		if err := pgpkg.RunMigrations(dsn, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgpkg.NewPool(dbCtx, dsn, pgCfg)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database")
		return &database{
			profiles:    postgres.NewProfileRepository(pool),
			predictions: postgres.NewPredictionRepository(pool),
			uow:         postgres.NewUnitOfWork(pool),
			pinger:      pool,
			close:       pool.Close,
		}, nil
	}
}

func shutdownWithTimeout(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("shutdown error", slog.String("component", name), slog.String("error", err.Error()))
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}

// instanceName identifies this process in event envelopes; the listener
// skips its own announcements.
func instanceName(service string) string {
	return fmt.Sprintf("%s/%s/%s", service, hostname(), uuid.NewString()[:8])
}

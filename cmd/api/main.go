// Package main provides the HTTP API server of the user service, running the
// notification consumer alongside it.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/jnst/user-notification-service/internal/api"
	"github.com/jnst/user-notification-service/internal/config"
	"github.com/jnst/user-notification-service/internal/consumer"
	"github.com/jnst/user-notification-service/internal/database"
	"github.com/jnst/user-notification-service/internal/logger"
	"github.com/jnst/user-notification-service/internal/queue"
	"github.com/jnst/user-notification-service/internal/repository"
	"github.com/jnst/user-notification-service/internal/service"
)

const (
	readHeaderTimeout = 10 * time.Second
	signalBufferSize  = 1
	exitCode          = 1
)

func setupDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	dbPool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, dbPool, log); err != nil {
			dbPool.Close()
			return nil, err
		}
	}

	return dbPool, nil
}

func setupSignalHandling(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, signalBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()
	}()

	return ctx, cancel
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := setupSignalHandling(log)
	defer cancel()

	dbPool, err := setupDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	queueConn, closeQueue, err := queue.Open(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer closeQueue()

	// Wire repositories and services.
	userRepo := repository.NewUserRepositoryImpl(dbPool)
	notificationRepo := repository.NewNotificationRepositoryImpl(dbPool)
	deadLetterRepo := repository.NewDeadLetterRepositoryImpl(dbPool)
	transactionMgr := repository.NewTransactionManagerImpl(dbPool)
	userService := service.NewUserServiceImpl(userRepo, notificationRepo, transactionMgr)
	notificationService := service.NewNotificationServiceImpl(userRepo, notificationRepo, log)

	// A nil queueConn leaves the consumer disabled.
	notificationConsumer := consumer.New(
		queueConn,
		notificationService,
		deadLetterRepo,
		consumer.OptionsFromConfig(cfg.Consumer),
		log.With(slog.String("component", "consumer")),
	)

	server := api.NewServer(userService, notificationConsumer, dbPool, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// The consumer ends through Stop, never by cancellation, so an in-flight
	// long poll returns normally and its batch is handled.
	notificationConsumer.Start(context.WithoutCancel(gctx))

	g.Go(func() error {
		log.Info("starting API server",
			slog.String("service", "api"),
			slog.String("port", cfg.Port),
			slog.Bool("consumer_enabled", notificationConsumer.Enabled()),
			slog.String("queue", cfg.Queue.Endpoint()),
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Stop polling first so no new batch is received during shutdown.
		notificationConsumer.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if err := notificationConsumer.Wait(shutdownCtx); err != nil {
			log.Warn("consumer did not stop before shutdown timeout", slog.String("error", err.Error()))
			return err
		}

		log.Info("API server stopped")

		return nil
	})

	return g.Wait()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(loggerInstance)

	if err := run(cfg, loggerInstance); err != nil {
		slog.Error("API server failed", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
}

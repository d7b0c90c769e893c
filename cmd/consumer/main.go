// Package main provides the standalone notification consumer for queue-only deployments.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jnst/user-notification-service/internal/config"
	"github.com/jnst/user-notification-service/internal/consumer"
	"github.com/jnst/user-notification-service/internal/database"
	"github.com/jnst/user-notification-service/internal/logger"
	"github.com/jnst/user-notification-service/internal/queue"
	"github.com/jnst/user-notification-service/internal/repository"
	"github.com/jnst/user-notification-service/internal/service"
)

const (
	signalBufferSize = 1
	exitCode         = 1
)

var errQueueNotConfigured = errors.New("queue not configured: set SQS_QUEUE_URL or QUEUE_DRIVER=redis with REDIS_ADDR")

func setupSignalHandling(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, signalBufferSize)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutdown signal received, stopping consumer")
		cancel()
	}()

	return ctx, cancel
}

func run(cfg *config.Config, log *slog.Logger) error {
	if !cfg.Queue.Enabled() {
		return errQueueNotConfigured
	}

	ctx, cancel := setupSignalHandling(log)
	defer cancel()

	dbPool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, dbPool, log); err != nil {
			return err
		}
	}

	queueConn, closeQueue, err := queue.Open(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer closeQueue()

	userRepo := repository.NewUserRepositoryImpl(dbPool)
	notificationRepo := repository.NewNotificationRepositoryImpl(dbPool)
	notificationService := service.NewNotificationServiceImpl(userRepo, notificationRepo, log)

	notificationConsumer := consumer.New(
		queueConn,
		notificationService,
		repository.NewDeadLetterRepositoryImpl(dbPool),
		consumer.OptionsFromConfig(cfg.Consumer),
		log,
	)

	log.Info("starting message consumer",
		slog.String("service", "consumer"),
		slog.String("driver", cfg.Queue.Driver),
		slog.String("queue", cfg.Queue.Endpoint()),
	)

	// A signal stops the loop cooperatively; the in-flight receive is not aborted.
	notificationConsumer.Start(context.WithoutCancel(ctx))
	<-ctx.Done()
	notificationConsumer.Stop()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()

	if err := notificationConsumer.Wait(waitCtx); err != nil {
		return err
	}

	stats := notificationConsumer.Stats()
	log.Info("consumer exited",
		slog.Int64("received", stats.Received),
		slog.Int64("acked", stats.Acked),
		slog.Int64("dead_lettered", stats.DeadLettered),
	)

	return nil
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
		slog.Error("consumer failed", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
}

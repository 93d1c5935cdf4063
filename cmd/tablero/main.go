package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tablero/internal/amqp"
	"tablero/internal/backend"
	"tablero/internal/cli"
	apphttp "tablero/internal/http"
	"tablero/internal/log"
	"tablero/internal/services"
	"tablero/internal/store"
	"tablero/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load .env file", log.FieldError, err)
		os.Exit(1)
	}
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	state := store.New()
	scheduler := services.NewRefreshScheduler(result.Repository, state, services.RefreshSchedulerConfig{
		Interval: cfg.RefreshInterval,
	})

	instanceID := uuid.NewString()

	var publisher apphttp.AppendPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP notifications enabled", "exchange", cfg.AMQPExchange, "instance_id", instanceID)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:              ":" + cfg.Port,
		ViewCacheSize:     cfg.ViewCacheSize,
		ViewCacheTTL:      cfg.ViewCacheTTL,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		InstanceID:        instanceID,
		BackendMode:       result.Mode,
		TrustedProxies:    cfg.TrustedProxies,
	}, apphttp.Deps{
		Repository: result.Repository,
		State:      state,
		Refresher:  scheduler,
		Publisher:  publisher,
		Logger:     logger,
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start refresh scheduler", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting tablero server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"mode", result.Mode,
			"refresh_interval", cfg.RefreshInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if amqpClient != nil {
		syncWorker := worker.NewSyncWorker(scheduler, instanceID, logger)
		g.Go(func() error {
			err := amqpClient.ConsumeTransactionAppended(gctx, syncWorker.HandleAppendedMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		logger.Info("Shutting down server...")
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

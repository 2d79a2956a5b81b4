package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/snow-report/internal/api/http"
	"github.com/i474232898/snow-report/internal/config"
	"github.com/i474232898/snow-report/internal/logfile"
	"github.com/i474232898/snow-report/internal/logger"
	"github.com/i474232898/snow-report/internal/logminer"
	"github.com/i474232898/snow-report/internal/logship"
	"github.com/i474232898/snow-report/internal/objectstore"
	"github.com/i474232898/snow-report/internal/resort"
	"github.com/i474232898/snow-report/internal/scheduler"
	"github.com/i474232898/snow-report/internal/store"
	"github.com/i474232898/snow-report/internal/weather"
	"github.com/i474232898/snow-report/internal/weather/providers"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the command API, the log shipper and the forecast prefetch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile, opts.envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logFile, err := logfile.Open(cfg.Log.Path, logfile.Options{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Truncate:   cfg.Log.Truncate,
	})
	if err != nil {
		return err
	}
	defer logFile.Close()

	// Event lines go to stdout and the activity log under the same name, so the
	// miner can read back everything the handlers write.
	events := logger.New(cfg.Log.Level, cfg.Log.Name, logFile)
	log := events.WithField("component", "main")
	if !logger.IsDebugEnabled(events) {
		log.Warnf("log level %s hides command events; log statistics will stay empty", cfg.Log.Level)
	}

	registry, err := resort.Load(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load resort registry: %w", err)
	}
	log.Infof("loaded %d resorts from %s", registry.Len(), cfg.RegistryPath)

	if cfg.ClimaCell.APIKey == "" {
		log.Warn("CLIMACELL_API_KEY is not set; forecast requests will fail")
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewClimaCellProvider(httpClient, providers.ClimaCellConfig{
		APIKey:            cfg.ClimaCell.APIKey,
		RealtimeURL:       cfg.ClimaCell.RealtimeURL,
		NowcastURL:        cfg.ClimaCell.NowcastURL,
		HourlyURL:         cfg.ClimaCell.HourlyURL,
		RequestsPerSecond: cfg.ClimaCell.RequestsPerSecond,
	})

	memStore := store.NewMemoryStore(cfg.Store.MaxHistory, cfg.Store.MaxAge)
	service := weather.NewService(memStore, provider, events).WithCacheTTL(cfg.FetchInterval)

	var (
		shipper scheduler.Shipper
		storage *objectstore.MinioStorage
	)
	if cfg.Minio.Enabled() {
		storage, err = objectstore.NewMinioStorage(ctx, objectstore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
		}, events)
		if err != nil {
			return err
		}
		shipper = logship.New(logFile, storage, cfg.Log.LedgerPath, events)
	} else {
		log.Info("object storage not configured; log shipping disabled")
	}

	for name, keys := range cfg.Groups {
		if _, err := registry.Resolve(keys); err != nil {
			log.Warnf("resort group %s: %v", name, err)
		}
	}

	var prefetch []weather.Location
	if keys, ok := cfg.Group("starred"); ok && cfg.FetchInterval > 0 {
		starred, err := registry.Resolve(keys)
		if err != nil {
			return fmt.Errorf("starred resorts: %w", err)
		}
		for _, r := range starred {
			prefetch = append(prefetch, r.Location())
		}
	}

	sched := scheduler.New(scheduler.Config{
		UploadInterval: cfg.Log.UploadInterval,
		FetchInterval:  cfg.FetchInterval,
		Locations:      prefetch,
	}, shipper, service, events)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "snow-report",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	miner := logminer.New("", cfg.Log.Name, cfg.BotHandle)
	handler := httpapi.NewHandler(registry, service, miner, logFile, events, cfg.BotHandle)
	if storage != nil {
		handler.AddHealthCheck("object_storage", storage.HealthCheck)
	}
	httpapi.RegisterRoutes(app, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on :%s", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
	log.Info("shut down")
	return nil
}
